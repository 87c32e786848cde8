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

package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fogfish/idcompressor"
	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stableIDs = cmp.Comparer(func(a, b idcompressor.StableID) bool { return a == b })

func TestCreateLoad(t *testing.T) {
	ctx := context.Background()
	s := Open(filepath.Join(t.TempDir(), "state.bin"))

	c, err := s.Create(ctx, idcompressor.WithClusterCapacity(8))
	require.NoError(t, err)

	l, err := s.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, c.SessionID(), l.SessionID())
	assert.Equal(t, uint64(8), l.ClusterCapacity())
	assert.True(t, l.Equal(c, true))
}

func TestCreateExisting(t *testing.T) {
	ctx := context.Background()
	s := Open(filepath.Join(t.TempDir(), "state.bin"))

	_, err := s.Create(ctx)
	require.NoError(t, err)

	_, err = s.Create(ctx)
	assert.ErrorIs(t, err, ErrExists)
}

func TestLoadMissing(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "state.bin"))

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 0}, 0o644))

	_, err := Open(path).Load(context.Background())
	assert.ErrorIs(t, err, idcompressor.ErrMalformedInput)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := Open(filepath.Join(t.TempDir(), "state.bin"))
	_, err := s.Create(ctx)
	require.NoError(t, err)

	var want []idcompressor.ClusterInfo
	err = s.Update(ctx, func(c *idcompressor.IDCompressor) error {
		c.GenerateNextID()
		c.GenerateNextID()
		if err := c.FinalizeRange(c.TakeNextRange()); err != nil {
			return err
		}
		want = c.Clusters()
		return nil
	})
	require.NoError(t, err)

	l, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), l.GeneratedIDCount())
	if diff := cmp.Diff(want, l.Clusters(), stableIDs); diff != "" {
		t.Errorf("clusters mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s := Open(filepath.Join(t.TempDir(), "state.bin"))
	_, err := s.Create(ctx)
	require.NoError(t, err)

	failure := errors.New("failure")
	err = s.Update(ctx, func(c *idcompressor.IDCompressor) error {
		c.GenerateNextID()
		return failure
	})
	assert.ErrorIs(t, err, failure)

	l, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), l.GeneratedIDCount())
}

func TestUpdateLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.bin")
	s := Open(path, WithRetryInterval(5*time.Millisecond))
	_, err := s.Create(context.Background())
	require.NoError(t, err)

	other := flock.New(path + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = other.Unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = s.Update(ctx, func(c *idcompressor.IDCompressor) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
