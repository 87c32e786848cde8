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

/*

Package host binds the compressor to the hosting application. The host
owns the policies the core is agnostic of: capacity of clusters exchanged
with runtimes limited to 53-bit integers, caching of session tokens, and
telemetry of finalization.
*/
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fogfish/idcompressor"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultMaxClusterCapacity keeps generation counts and final
	// identifiers safe for 53-bit integer runtimes.
	DefaultMaxClusterCapacity = 1 << 11

	DefaultTokenCacheSize = 1024
)

var ErrClusterCapacityTooLarge = errors.New("cluster capacity exceeds host limit")

// Compressor is the compressor instrumented for host
type Compressor struct {
	*idcompressor.IDCompressor

	logger             *slog.Logger
	meterProvider      metric.MeterProvider
	tokenCacheSize     int
	maxClusterCapacity uint64

	tokens  *lru.Cache[idcompressor.SessionID, int]
	metrics *metrics
}

// Option of host behavior
type Option func(*Compressor)

// WithLogger configures structured logger for telemetry events
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compressor) {
		c.logger = logger
	}
}

// WithMeterProvider configures provider of telemetry counters
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *Compressor) {
		c.meterProvider = provider
	}
}

// WithTokenCacheSize configures number of session tokens cached by host
func WithTokenCacheSize(n int) Option {
	return func(c *Compressor) {
		c.tokenCacheSize = n
	}
}

// WithMaxClusterCapacity configures the upper limit of cluster capacity
func WithMaxClusterCapacity(n uint64) Option {
	return func(c *Compressor) {
		c.maxClusterCapacity = n
	}
}

// New binds compressor to host
func New(compressor *idcompressor.IDCompressor, opts ...Option) (*Compressor, error) {
	c := &Compressor{
		IDCompressor:       compressor,
		logger:             slog.Default(),
		meterProvider:      otel.GetMeterProvider(),
		tokenCacheSize:     DefaultTokenCacheSize,
		maxClusterCapacity: DefaultMaxClusterCapacity,
	}

	for _, opt := range opts {
		opt(c)
	}

	if compressor.ClusterCapacity() > c.maxClusterCapacity {
		return nil, fmt.Errorf("capacity %d: %w", compressor.ClusterCapacity(), ErrClusterCapacityTooLarge)
	}

	tokens, err := lru.New[idcompressor.SessionID, int](c.tokenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	c.tokens = tokens

	metrics, err := newMetrics(c.meterProvider.Meter("github.com/fogfish/idcompressor/host"))
	if err != nil {
		return nil, err
	}
	c.metrics = metrics

	return c, nil
}

// SetClusterCapacity changes capacity within host limit
func (c *Compressor) SetClusterCapacity(n uint64) error {
	if n > c.maxClusterCapacity {
		return fmt.Errorf("capacity %d: %w", n, ErrClusterCapacityTooLarge)
	}
	return c.IDCompressor.SetClusterCapacity(n)
}

// SessionToken resolves token of session, known tokens are cached.
func (c *Compressor) SessionToken(id idcompressor.SessionID) int {
	if token, has := c.tokens.Get(id); has {
		return token
	}

	token := c.IDCompressor.SessionToken(id)
	if token != idcompressor.NilToken {
		c.tokens.Add(id, token)
	}
	return token
}

// NormalizeToSessionSpace translates op space identifier using cached
// session token of originator.
func (c *Compressor) NormalizeToSessionSpace(id idcompressor.OpSpaceID, originator idcompressor.SessionID) (idcompressor.SessionSpaceID, error) {
	return c.NormalizeToSessionSpaceWithToken(id, c.SessionToken(originator))
}

// FinalizeRange finalizes the range and reports telemetry if the range
// belongs to the local session. Counters are drained by every finalized
// range, so the report covers only changes since the previous one.
func (c *Compressor) FinalizeRange(ctx context.Context, r idcompressor.IDRange) error {
	if err := c.IDCompressor.FinalizeRange(r); err != nil {
		c.logger.WarnContext(ctx, "failed to finalize range",
			slog.String("sessionId", r.SessionID.String()),
			slog.Any("error", err),
		)
		return fmt.Errorf("finalize range of %s: %w", r.SessionID, err)
	}

	stats := c.TelemetryStats()
	if r.SessionID != c.SessionID() || r.IDs == nil {
		return nil
	}

	c.reportFinalize(ctx, r, stats)
	return nil
}

// Serialize encodes compressor and reports size of snapshot
func (c *Compressor) Serialize(ctx context.Context, withLocal bool) []byte {
	data := c.IDCompressor.Serialize(withLocal)
	c.reportSerialize(ctx, len(data), withLocal)
	return data
}
