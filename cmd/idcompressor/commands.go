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
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fogfish/idcompressor"
	"github.com/fogfish/idcompressor/host"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *cli) initCmd() *cobra.Command {
	var (
		session  string
		capacity uint64
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create state file of new session",
		Long: `Create state file of new session.

Session id is taken from --session, CONFIG_IDCOMPRESSOR_SESSION_ID env
or generated randomly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if capacity > host.DefaultMaxClusterCapacity {
				return fmt.Errorf("capacity %d: %w", capacity, host.ErrClusterCapacityTooLarge)
			}

			opts := []idcompressor.Config{
				idcompressor.WithSessionFromEnv(),
				idcompressor.WithClusterCapacity(capacity),
			}
			if session != "" {
				id, err := idcompressor.ParseSessionID(session)
				if err != nil {
					return fmt.Errorf("session %q: %w", session, err)
				}
				opts = append(opts, idcompressor.WithSessionID(id))
			}

			compressor, err := c.store().Create(cmd.Context(), opts...)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), compressor.SessionID())
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "session id (version 4 UUID)")
	cmd.Flags().Uint64Var(&capacity, "capacity", idcompressor.DefaultClusterCapacity, "cluster capacity")
	return cmd
}

func (c *cli) generateCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate identifiers in session space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 1 {
				return fmt.Errorf("invalid number of ids %d", n)
			}

			seq := make([]idcompressor.SessionSpaceID, 0, n)
			err := c.store().Update(cmd.Context(), func(compressor *idcompressor.IDCompressor) error {
				for i := 0; i < n; i++ {
					seq = append(seq, compressor.GenerateNextID())
				}
				return nil
			})
			if err != nil {
				return err
			}

			for _, id := range seq {
				fmt.Fprintln(cmd.OutOrStdout(), int64(id))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "count", "n", 1, "number of ids")
	return cmd
}

func (c *cli) takeRangeCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "take-range",
		Short: "Export ids generated since last range as YAML document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var buf bytes.Buffer

			// the range is lost unless it is written before state is saved
			err := c.store().Update(cmd.Context(), func(compressor *idcompressor.IDCompressor) error {
				if err := encodeYAML(&buf, newRangeDoc(compressor.TakeNextRange())); err != nil {
					return err
				}
				if out != "" {
					return os.WriteFile(out, buf.Bytes(), 0o644)
				}
				return nil
			})
			if err != nil {
				return err
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write range to file")
	return cmd
}

func (c *cli) finalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize FILE...",
		Short: "Finalize ranges in the order of YAML documents (- for stdin)",
		Long: `Finalize ranges in the order of YAML documents (- for stdin).

Either all ranges are finalized or the state file is left unchanged.

Finalization of local ranges is logged as IdCompressorFinalizeStatus.
Id counters are not kept in the state file, so eagerFinalIdCount and
localIdCount of ids generated by earlier commands are always 0.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ranges []idcompressor.IDRange
			for _, file := range args {
				seq, err := readRanges(cmd, file)
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				ranges = append(ranges, seq...)
			}

			ctx := cmd.Context()
			return c.store().Update(ctx, func(compressor *idcompressor.IDCompressor) error {
				h, err := host.New(compressor, host.WithLogger(c.logger))
				if err != nil {
					return err
				}

				for _, r := range ranges {
					if err := h.FinalizeRange(ctx, r); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func readRanges(cmd *cobra.Command, file string) ([]idcompressor.IDRange, error) {
	if file == "-" {
		return decodeRanges(cmd.InOrStdin())
	}

	fd, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	return decodeRanges(fd)
}

func (c *cli) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show state of compressor as YAML document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			compressor, err := c.store().Load(cmd.Context())
			if err != nil {
				return err
			}

			h, err := host.New(compressor, host.WithLogger(c.logger))
			if err != nil {
				return err
			}

			size := len(h.Serialize(cmd.Context(), false))
			return encodeYAML(cmd.OutOrStdout(), newStateDoc(compressor, size))
		},
	}
}

func (c *cli) decompressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decompress [--] ID...",
		Short: "Convert session space ids to stable ids",
		Long: `Convert session space ids to stable ids.

Local ids are negative, separate them from flags with --.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			compressor, err := c.store().Load(cmd.Context())
			if err != nil {
				return err
			}

			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}

				stable, err := compressor.Decompress(idcompressor.SessionSpaceID(id))
				if err != nil {
					return fmt.Errorf("decompress %d: %w", id, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), stable)
			}
			return nil
		},
	}
}

func (c *cli) recompressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompress UUID...",
		Short: "Convert stable ids to session space ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			compressor, err := c.store().Load(cmd.Context())
			if err != nil {
				return err
			}

			for _, arg := range args {
				stable, err := idcompressor.ParseStableID(arg)
				if err != nil {
					return fmt.Errorf("%q: %w", arg, err)
				}

				id, err := compressor.Recompress(stable)
				if err != nil {
					return fmt.Errorf("recompress %s: %w", stable, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), int64(id))
			}
			return nil
		},
	}
}

func (c *cli) normalizeCmd() *cobra.Command {
	var (
		to         string
		originator string
	)

	cmd := &cobra.Command{
		Use:   "normalize [--] ID...",
		Short: "Convert ids between session and op space",
		Long: `Convert ids between session and op space.

--to op converts ids of local session to op space.
--to session converts op space ids written by --originator (local
session by default) to session space.
Local ids are negative, separate them from flags with --.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			compressor, err := c.store().Load(cmd.Context())
			if err != nil {
				return err
			}

			h, err := host.New(compressor, host.WithLogger(c.logger))
			if err != nil {
				return err
			}

			source := compressor.SessionID()
			if originator != "" {
				source, err = idcompressor.ParseSessionID(originator)
				if err != nil {
					return fmt.Errorf("originator %q: %w", originator, err)
				}
			}

			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}

				var val int64
				switch to {
				case "op":
					op, err := h.NormalizeToOpSpace(idcompressor.SessionSpaceID(id))
					if err != nil {
						return fmt.Errorf("normalize %d: %w", id, err)
					}
					val = int64(op)
				case "session":
					ss, err := h.NormalizeToSessionSpace(idcompressor.OpSpaceID(id), source)
					if err != nil {
						return fmt.Errorf("normalize %d: %w", id, err)
					}
					val = int64(ss)
				default:
					return fmt.Errorf("unknown space %q", to)
				}
				fmt.Fprintln(cmd.OutOrStdout(), val)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "op", "target space (op, session)")
	cmd.Flags().StringVar(&originator, "originator", "", "session that wrote op space ids")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
