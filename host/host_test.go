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

package host

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fogfish/idcompressor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func newHost(t *testing.T, buf *bytes.Buffer, opts ...idcompressor.Config) *Compressor {
	t.Helper()

	c, err := idcompressor.New(append([]idcompressor.Config{idcompressor.WithClusterCapacity(4)}, opts...)...)
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h, err := New(c,
		WithLogger(logger),
		WithMeterProvider(noop.NewMeterProvider()),
		WithTokenCacheSize(2),
	)
	require.NoError(t, err)
	return h
}

func events(t *testing.T, buf *bytes.Buffer, name string) []map[string]any {
	t.Helper()

	var seq []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var event map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		if event["msg"] == name {
			seq = append(seq, event)
		}
	}
	return seq
}

func TestNewRejectsLargeCapacity(t *testing.T) {
	c, err := idcompressor.New()
	require.NoError(t, err)

	_, err = New(c, WithMaxClusterCapacity(100))
	assert.ErrorIs(t, err, ErrClusterCapacityTooLarge)

	h, err := New(c)
	require.NoError(t, err)
	assert.ErrorIs(t, h.SetClusterCapacity(DefaultMaxClusterCapacity+1), ErrClusterCapacityTooLarge)
	assert.NoError(t, h.SetClusterCapacity(DefaultMaxClusterCapacity))
	assert.ErrorIs(t, h.SetClusterCapacity(0), idcompressor.ErrInvalidClusterCapacity)
	assert.Equal(t, uint64(DefaultMaxClusterCapacity), h.ClusterCapacity())
}

func TestFinalizeReportsTelemetry(t *testing.T) {
	var buf bytes.Buffer
	h := newHost(t, &buf)
	ctx := context.Background()

	h.GenerateNextID()
	h.GenerateNextID()
	require.NoError(t, h.FinalizeRange(ctx, h.TakeNextRange()))

	for i := 0; i < 5; i++ {
		h.GenerateNextID()
	}
	require.NoError(t, h.FinalizeRange(ctx, h.TakeNextRange()))

	for i := 0; i < 2; i++ {
		h.GenerateNextID()
	}
	require.NoError(t, h.FinalizeRange(ctx, h.TakeNextRange()))

	seq := events(t, &buf, "IdCompressorFinalizeStatus")
	require.Len(t, seq, 3)

	assert.Equal(t, ClusterChangeCreation, seq[0]["clusterChange"])
	assert.Equal(t, float64(2), seq[0]["localIdCount"])
	assert.Equal(t, float64(2), seq[0]["rangeSize"])
	assert.Equal(t, float64(4), seq[0]["clusterCapacity"])
	assert.Equal(t, h.SessionID().String(), seq[0]["sessionId"])

	assert.Equal(t, ClusterChangeExpansion, seq[1]["clusterChange"])
	assert.Equal(t, float64(4), seq[1]["eagerFinalIdCount"])
	assert.Equal(t, float64(1), seq[1]["localIdCount"])

	assert.Equal(t, ClusterChangeNone, seq[2]["clusterChange"])
	assert.Equal(t, float64(2), seq[2]["eagerFinalIdCount"])
}

func TestFinalizeForeignRangeIsSilent(t *testing.T) {
	var buf bytes.Buffer
	h := newHost(t, &buf)
	other, err := idcompressor.New()
	require.NoError(t, err)

	other.GenerateNextID()
	require.NoError(t, h.FinalizeRange(context.Background(), other.TakeNextRange()))

	assert.Empty(t, events(t, &buf, "IdCompressorFinalizeStatus"))
}

func TestFinalizeForeignRangeDrainsTelemetry(t *testing.T) {
	var buf bytes.Buffer
	h := newHost(t, &buf)
	ctx := context.Background()
	other, err := idcompressor.New()
	require.NoError(t, err)

	h.GenerateNextID()
	require.NoError(t, h.FinalizeRange(ctx, h.TakeNextRange()))

	other.GenerateNextID()
	require.NoError(t, h.FinalizeRange(ctx, other.TakeNextRange()))

	// fills the cluster reserved by the first range
	h.GenerateNextID()
	require.NoError(t, h.FinalizeRange(ctx, h.TakeNextRange()))

	seq := events(t, &buf, "IdCompressorFinalizeStatus")
	require.Len(t, seq, 2)

	assert.Equal(t, ClusterChangeCreation, seq[0]["clusterChange"])
	assert.Equal(t, ClusterChangeNone, seq[1]["clusterChange"])
	assert.Equal(t, float64(1), seq[1]["eagerFinalIdCount"])
	assert.Equal(t, float64(0), seq[1]["localIdCount"])
	assert.Len(t, h.Clusters(), 2)
}

func TestFinalizeFailure(t *testing.T) {
	var buf bytes.Buffer
	h := newHost(t, &buf)
	h.GenerateNextID()
	r := h.TakeNextRange()

	require.NoError(t, h.FinalizeRange(context.Background(), r))
	err := h.FinalizeRange(context.Background(), r)

	assert.ErrorIs(t, err, idcompressor.ErrRangeFinalizedOutOfOrder)
	assert.Len(t, events(t, &buf, "failed to finalize range"), 1)
}

func TestSerializeReportsSize(t *testing.T) {
	var buf bytes.Buffer
	h := newHost(t, &buf)

	data := h.Serialize(context.Background(), true)

	seq := events(t, &buf, "SerializedIdCompressorSize")
	require.Len(t, seq, 1)
	assert.Equal(t, float64(len(data)), seq[0]["size"])
	assert.Equal(t, true, seq[0]["withLocalState"])
}

func TestSessionTokenCache(t *testing.T) {
	var buf bytes.Buffer
	h := newHost(t, &buf)
	other, err := idcompressor.New()
	require.NoError(t, err)

	assert.Equal(t, idcompressor.NilToken, h.SessionToken(other.SessionID()))
	assert.Equal(t, 0, h.tokens.Len())

	other.GenerateNextID()
	require.NoError(t, h.FinalizeRange(context.Background(), other.TakeNextRange()))

	assert.Equal(t, 1, h.SessionToken(other.SessionID()))
	assert.Equal(t, 1, h.tokens.Len())

	id, err := h.NormalizeToSessionSpace(-1, other.SessionID())
	require.NoError(t, err)
	assert.Equal(t, idcompressor.SessionSpaceID(0), id)

	_, err = h.NormalizeToSessionSpace(-1, idcompressor.NewSessionID())
	assert.ErrorIs(t, err, idcompressor.ErrNoTokenForSession)
}

func TestClusterChange(t *testing.T) {
	assert.Equal(t, ClusterChangeCreation, clusterChange(idcompressor.TelemetryStats{ClusterCreationCount: 1, ExpansionCount: 1}))
	assert.Equal(t, ClusterChangeExpansion, clusterChange(idcompressor.TelemetryStats{ExpansionCount: 1}))
	assert.Equal(t, ClusterChangeNone, clusterChange(idcompressor.TelemetryStats{EagerFinalCount: 10}))
}
