//
//  Copyright 2012 Dmitry Kolesnikov, All Rights Reserved
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fogfish/idcompressor/internal/filestore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// cli is the command line of compressor state file. Flags are resolved
// through viper: command line, IDCOMPRESSOR_* env, config file, defaults.
type cli struct {
	root   *cobra.Command
	viper  *viper.Viper
	logger *slog.Logger
}

func newCLI() *cli {
	c := &cli{
		viper:  viper.New(),
		logger: slog.Default(),
	}

	c.root = &cobra.Command{
		Use:   "idcompressor",
		Short: "Distributed id compressor",
		Long: `Allocates compact identifiers of a session kept in a state file.

Ranges of identifiers are exchanged as YAML documents:
take-range exports them, finalize applies them in the agreed order.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	flags := c.root.PersistentFlags()
	flags.StringP("state", "s", "idcompressor.bin", "path to state file")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("config", "", "path to config file")
	_ = c.viper.BindPFlags(flags)

	c.viper.SetEnvPrefix("IDCOMPRESSOR")
	c.viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.viper.AutomaticEnv()

	c.root.AddCommand(
		c.initCmd(),
		c.generateCmd(),
		c.takeRangeCmd(),
		c.finalizeCmd(),
		c.inspectCmd(),
		c.decompressCmd(),
		c.recompressCmd(),
		c.normalizeCmd(),
	)

	return c
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	if path := c.viper.GetString("config"); path != "" {
		c.viper.SetConfigFile(path)
		if err := c.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	level, has := logLevels[strings.ToLower(c.viper.GetString("log-level"))]
	if !has {
		return fmt.Errorf("unknown log level %q", c.viper.GetString("log-level"))
	}

	c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func (c *cli) store() *filestore.Store {
	return filestore.Open(c.viper.GetString("state"), filestore.WithLogger(c.logger))
}
