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
	"context"
	"fmt"
	"log/slog"

	"github.com/fogfish/idcompressor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// kind of change of cluster layout caused by finalization
const (
	ClusterChangeCreation  = "Creation"
	ClusterChangeExpansion = "Expansion"
	ClusterChangeNone      = "None"
)

type metrics struct {
	eagerFinal     metric.Int64Counter
	local          metric.Int64Counter
	clusterChange  metric.Int64Counter
	serializedSize metric.Int64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	m.eagerFinal, err = meter.Int64Counter(
		"idcompressor.ids.eager_final",
		metric.WithDescription("Identifiers generated in final form"),
		metric.WithUnit("{id}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create eager final counter: %w", err)
	}

	m.local, err = meter.Int64Counter(
		"idcompressor.ids.local",
		metric.WithDescription("Identifiers generated in local form"),
		metric.WithUnit("{id}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create local counter: %w", err)
	}

	m.clusterChange, err = meter.Int64Counter(
		"idcompressor.cluster.change",
		metric.WithDescription("Finalizations of local ranges by change of cluster layout"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cluster change counter: %w", err)
	}

	m.serializedSize, err = meter.Int64Histogram(
		"idcompressor.serialized.size",
		metric.WithDescription("Size of serialized compressor"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create serialized size histogram: %w", err)
	}

	return m, nil
}

func clusterChange(stats idcompressor.TelemetryStats) string {
	switch {
	case stats.ClusterCreationCount > 0:
		return ClusterChangeCreation
	case stats.ExpansionCount > 0:
		return ClusterChangeExpansion
	default:
		return ClusterChangeNone
	}
}

func (c *Compressor) reportFinalize(ctx context.Context, r idcompressor.IDRange, stats idcompressor.TelemetryStats) {
	change := clusterChange(stats)

	c.logger.LogAttrs(ctx, slog.LevelInfo, "IdCompressorFinalizeStatus",
		slog.Uint64("eagerFinalIdCount", stats.EagerFinalCount),
		slog.Uint64("localIdCount", stats.LocalIDCount),
		slog.Uint64("rangeSize", r.IDs.Count),
		slog.Uint64("clusterCapacity", c.ClusterCapacity()),
		slog.String("clusterChange", change),
		slog.String("sessionId", r.SessionID.String()),
	)

	c.metrics.eagerFinal.Add(ctx, int64(stats.EagerFinalCount))
	c.metrics.local.Add(ctx, int64(stats.LocalIDCount))
	c.metrics.clusterChange.Add(ctx, 1,
		metric.WithAttributes(attribute.String("change", change)),
	)
}

func (c *Compressor) reportSerialize(ctx context.Context, size int, withLocal bool) {
	c.logger.LogAttrs(ctx, slog.LevelDebug, "SerializedIdCompressorSize",
		slog.Int("size", size),
		slog.Bool("withLocalState", withLocal),
	)

	c.metrics.serializedSize.Record(ctx, int64(size),
		metric.WithAttributes(attribute.Bool("local", withLocal)),
	)
}
