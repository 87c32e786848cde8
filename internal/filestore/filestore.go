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

// Package filestore keeps compressor state in a file. Every access holds an
// exclusive lock of the sibling ".lock" file, so that processes sharing the
// state never interleave load and save.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/fogfish/idcompressor"
	"github.com/gofrs/flock"
)

var (
	ErrLocked   = errors.New("state file is locked")
	ErrNotFound = errors.New("state file does not exist")
	ErrExists   = errors.New("state file already exists")
)

const defaultRetryInterval = 50 * time.Millisecond

// Store of compressor state
type Store struct {
	path          string
	lock          *flock.Flock
	logger        *slog.Logger
	retryInterval time.Duration
}

// Option of store
type Option func(*Store)

// WithLogger configures logger of store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithRetryInterval configures delay between attempts to acquire the lock
func WithRetryInterval(d time.Duration) Option {
	return func(s *Store) {
		s.retryInterval = d
	}
}

// Open store at the path, the state file is not accessed until used
func Open(path string, opts ...Option) *Store {
	s := &Store{
		path:          path,
		lock:          flock.New(path + ".lock"),
		logger:        slog.Default(),
		retryInterval: defaultRetryInterval,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path of the state file
func (s *Store) Path() string { return s.path }

// Create new compressor and persists it
func (s *Store) Create(ctx context.Context, opts ...idcompressor.Config) (*idcompressor.IDCompressor, error) {
	var c *idcompressor.IDCompressor

	err := s.withLock(ctx, func() error {
		if _, err := os.Stat(s.path); err == nil {
			return fmt.Errorf("%s: %w", s.path, ErrExists)
		}

		var err error
		c, err = idcompressor.New(opts...)
		if err != nil {
			return err
		}
		return s.save(c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "created compressor state",
		slog.String("path", s.path),
		slog.String("sessionId", c.SessionID().String()),
	)
	return c, nil
}

// Load compressor from the state file
func (s *Store) Load(ctx context.Context) (*idcompressor.IDCompressor, error) {
	var c *idcompressor.IDCompressor

	err := s.withLock(ctx, func() (err error) {
		c, err = s.load()
		return
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Update loads compressor, applies the function and persists the result.
// The state file is not changed if the function fails.
func (s *Store) Update(ctx context.Context, fn func(*idcompressor.IDCompressor) error) error {
	return s.withLock(ctx, func() error {
		c, err := s.load()
		if err != nil {
			return err
		}

		if err := fn(c); err != nil {
			return err
		}
		return s.save(c)
	})
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	locked, err := s.lock.TryLockContext(ctx, s.retryInterval)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("%s: %w", s.lock.Path(), ErrLocked)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.WarnContext(ctx, "failed to release lock",
				slog.String("path", s.lock.Path()),
				slog.Any("error", err),
			)
		}
	}()

	return fn()
}

func (s *Store) load() (*idcompressor.IDCompressor, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	c, err := idcompressor.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return c, nil
}

// state is written to temp file and renamed over the previous one
func (s *Store) save(c *idcompressor.IDCompressor) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, c.Serialize(true), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
