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

package idcompressor

import (
	"math"
	"slices"
)

// NilToken is the session token of unknown session
const NilToken = -1

// IDCompressor allocates identifiers of the session and translates
// identifiers between session space, op space and stable unique values.
// The instance is not safe for concurrent use.
type IDCompressor struct {
	sessionID    SessionID
	localSession int
	sessions     *sessions
	finalSpace   finalSpace
	normalizer   normalizer

	clusterCapacity uint64
	// identifiers generated by the session
	generatedIDCount uint64
	// generation count of the first identifier of the next range
	nextRangeBase uint64
	// the next unallocated final identifier
	finalIDLimit uint64

	telemetry TelemetryStats
}

// New creates compressor for new session
func New(opts ...Config) (*IDCompressor, error) {
	c := &IDCompressor{
		clusterCapacity: DefaultClusterCapacity,
		nextRangeBase:   1,
	}

	defopt := []Config{WithSessionRandom()}
	for _, opt := range append(defopt, opts...) {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.sessions = newSessions()
	c.localSession = c.sessions.getOrCreate(c.sessionID)
	return c, nil
}

func newWithSessionID(id SessionID) *IDCompressor {
	c := &IDCompressor{
		sessionID:       id,
		sessions:        newSessions(),
		clusterCapacity: DefaultClusterCapacity,
		nextRangeBase:   1,
	}
	c.localSession = c.sessions.getOrCreate(id)
	return c
}

// SessionID of the compressor
func (c *IDCompressor) SessionID() SessionID { return c.sessionID }

// GeneratedIDCount is number of identifiers generated by the session
func (c *IDCompressor) GeneratedIDCount() uint64 { return c.generatedIDCount }

// SessionCount is number of sessions known to the compressor
func (c *IDCompressor) SessionCount() int { return c.sessions.len() }

// ClusterCapacity is number of identifiers reserved by new clusters
func (c *IDCompressor) ClusterCapacity() uint64 { return c.clusterCapacity }

// SetClusterCapacity changes capacity of clusters created afterwards
func (c *IDCompressor) SetClusterCapacity(n uint64) error {
	if n == 0 {
		return ErrInvalidClusterCapacity
	}
	c.clusterCapacity = n
	return nil
}

/*

GenerateNextID allocates a new identifier of the session. The final
identifier is returned if the session's tail cluster already reserves
the slot (eager final), the local one otherwise.
*/
func (c *IDCompressor) GenerateNextID() SessionSpaceID {
	c.generatedIDCount++
	local := localFromGenCount(c.generatedIDCount)

	if tail := c.sessions.deref(c.localSession).tail(); tail != nil {
		if final, ok := tail.allocatedFinal(local); ok {
			c.telemetry.EagerFinalCount++
			return final.SessionSpace()
		}
	}

	c.normalizer.add(local, 1)
	c.telemetry.LocalIDCount++
	return local.SessionSpace()
}

// TakeNextRange exports identifiers generated since the previous range.
func (c *IDCompressor) TakeNextRange() IDRange {
	r := IDRange{SessionID: c.sessionID}

	count := c.generatedIDCount - (c.nextRangeBase - 1)
	if count == 0 {
		return r
	}

	r.IDs = &IDSpan{FirstGenCount: c.nextRangeBase, Count: count}
	c.nextRangeBase = c.generatedIDCount + 1
	return r
}

/*

FinalizeRange assigns final identifiers to the range. Ranges of a session
must be finalized in the order they were taken. The range either fills
the session's tail cluster, or overflows into a grown tail cluster
(if it is the last cluster of final space) or into a new cluster:

	                  remaining      overflow
	|-----------------|------------|----------|
	        tail cluster (count)    new cluster (overflow + capacity)

Nothing is modified if the range fails.
*/
func (c *IDCompressor) FinalizeRange(r IDRange) error {
	if r.IDs == nil {
		return nil
	}

	base, count := r.IDs.FirstGenCount, r.IDs.Count
	if base == 0 || count == 0 || base > math.MaxInt64 || count > math.MaxInt64-base+1 {
		return ErrMalformedIDRange
	}

	ref, known := c.sessions.get(r.SessionID)

	var tail *idCluster
	if known {
		tail = c.sessions.deref(ref).tail()
	}

	next := uint64(1)
	if tail != nil {
		next = tail.baseGen() + tail.count
	}
	if base != next {
		return ErrRangeFinalizedOutOfOrder
	}

	if tail != nil && tail.capacity-tail.count >= count {
		tail.count += count
		return nil
	}

	remaining, expand := uint64(0), false
	if tail != nil {
		remaining = tail.capacity - tail.count
		last, _ := c.finalSpace.tail()
		expand = last == clusterRef{session: ref, index: len(c.sessions.deref(ref).chain) - 1}
	}

	overflow := count - remaining
	firstGen := base + remaining
	reserve, ok := c.reservation(overflow, firstGen)
	if !ok {
		return ErrMalformedIDRange
	}

	lo := r.SessionID.Add(firstGen - 1)
	hi := lo.Add(reserve - 1)
	if c.sessions.rangeCollides(r.SessionID, lo, hi) {
		return ErrClusterCollision
	}

	if expand {
		tail.capacity += reserve
		tail.count += count
		c.telemetry.ExpansionCount++
	} else {
		if tail != nil {
			tail.count = tail.capacity
		}
		if !known {
			ref = c.sessions.getOrCreate(r.SessionID)
		}

		space := c.sessions.deref(ref)
		space.chain = append(space.chain, idCluster{
			baseFinal: FinalID(c.finalIDLimit),
			baseLocal: localFromGenCount(firstGen),
			capacity:  reserve,
			count:     overflow,
		})
		c.finalSpace.add(c.sessions, clusterRef{session: ref, index: len(space.chain) - 1})
		c.telemetry.ClusterCreationCount++
	}

	c.finalIDLimit += reserve
	return nil
}

// number of slots to reserve for overflow, bounded by what both final and
// local identifiers can address
func (c *IDCompressor) reservation(overflow, firstGen uint64) (uint64, bool) {
	if c.finalIDLimit > math.MaxInt64 {
		return 0, false
	}

	limit := min(math.MaxInt64-c.finalIDLimit, math.MaxInt64-firstGen) + 1
	reserve := overflow + c.clusterCapacity
	if reserve < overflow || reserve > limit {
		reserve = limit
	}
	return reserve, reserve >= overflow
}

// NormalizeToOpSpace translates identifier of the session to the most final
// form known to compressor.
func (c *IDCompressor) NormalizeToOpSpace(id SessionSpaceID) (OpSpaceID, error) {
	if final, ok := id.ToFinal(); ok {
		return final.OpSpace(), nil
	}

	local, _ := id.ToLocal()
	if !c.normalizer.contains(local) {
		return 0, ErrInvalidSessionSpaceID
	}

	space := c.sessions.deref(c.localSession)
	if i, ok := space.clusterByLocal(local, false); ok {
		final, _ := space.chain[i].finalizedFinal(local)
		return final.OpSpace(), nil
	}
	return local.OpSpace(), nil
}

// NormalizeToSessionSpace translates identifier created by originator
// session into session space.
func (c *IDCompressor) NormalizeToSessionSpace(id OpSpaceID, originator SessionID) (SessionSpaceID, error) {
	if final, ok := id.ToFinal(); ok {
		return c.normalizeFinal(final)
	}

	ref, ok := c.sessions.get(originator)
	if !ok {
		return 0, ErrNoTokenForSession
	}

	local, _ := id.ToLocal()
	return c.normalizeLocal(local, ref)
}

// SessionToken returns the token of known session, NilToken otherwise.
// Token is stable for the lifetime of compressor.
func (c *IDCompressor) SessionToken(id SessionID) int {
	ref, ok := c.sessions.get(id)
	if !ok {
		return NilToken
	}
	return ref
}

// NormalizeToSessionSpaceWithToken is NormalizeToSessionSpace for
// originator resolved by SessionToken.
func (c *IDCompressor) NormalizeToSessionSpaceWithToken(id OpSpaceID, token int) (SessionSpaceID, error) {
	if final, ok := id.ToFinal(); ok {
		return c.normalizeFinal(final)
	}

	if token < 0 || token >= c.sessions.len() {
		return 0, ErrNoTokenForSession
	}

	local, _ := id.ToLocal()
	return c.normalizeLocal(local, token)
}

func (c *IDCompressor) normalizeLocal(local LocalID, ref int) (SessionSpaceID, error) {
	if ref == c.localSession {
		if !c.normalizer.contains(local) {
			return 0, ErrInvalidOpSpaceID
		}
		return local.SessionSpace(), nil
	}

	space := c.sessions.deref(ref)
	i, ok := space.clusterByLocal(local, false)
	if !ok {
		return 0, ErrInvalidOpSpaceID
	}

	final, _ := space.chain[i].finalizedFinal(local)
	return final.SessionSpace(), nil
}

func (c *IDCompressor) normalizeFinal(final FinalID) (SessionSpaceID, error) {
	ref, ok := c.finalSpace.search(c.sessions, final)
	if !ok {
		return 0, ErrInvalidOpSpaceID
	}

	cluster := c.sessions.cluster(ref)
	local, _ := cluster.alignedLocal(final)

	if ref.session == c.localSession {
		switch {
		case c.normalizer.contains(local):
			return local.SessionSpace(), nil
		case local.genCount() <= c.generatedIDCount:
			return final.SessionSpace(), nil
		default:
			return 0, ErrInvalidOpSpaceID
		}
	}

	if _, ok := cluster.finalizedFinal(local); !ok {
		return 0, ErrInvalidOpSpaceID
	}
	return final.SessionSpace(), nil
}

// Decompress returns stable unique value of the identifier.
func (c *IDCompressor) Decompress(id SessionSpaceID) (StableID, error) {
	if local, ok := id.ToLocal(); ok {
		if !c.normalizer.contains(local) {
			return StableID{}, ErrInvalidSessionSpaceID
		}
		return c.sessionID.Add(local.genCount() - 1), nil
	}

	final, _ := id.ToFinal()
	ref, ok := c.finalSpace.search(c.sessions, final)
	if !ok {
		return StableID{}, ErrInvalidSessionSpaceID
	}

	cluster := c.sessions.cluster(ref)
	local, _ := cluster.alignedLocal(final)

	if ref.session == c.localSession {
		if local.genCount() > c.generatedIDCount {
			return StableID{}, ErrInvalidSessionSpaceID
		}
	} else {
		if _, ok := cluster.finalizedFinal(local); !ok {
			return StableID{}, ErrInvalidSessionSpaceID
		}
	}

	return c.sessions.deref(ref.session).id.Add(local.genCount() - 1), nil
}

// Recompress returns session space identifier of the stable unique value.
func (c *IDCompressor) Recompress(id StableID) (SessionSpaceID, error) {
	if off, ok := id.offsetFrom(c.sessionID.StableID); ok && off < c.generatedIDCount {
		local := localFromGenCount(off + 1)
		if c.normalizer.contains(local) {
			return local.SessionSpace(), nil
		}

		space := c.sessions.deref(c.localSession)
		if i, ok := space.clusterByLocal(local, true); ok {
			final, _ := space.chain[i].allocatedFinal(local)
			return final.SessionSpace(), nil
		}
		return 0, ErrInvalidStableID
	}

	ref, local, ok := c.sessions.getContainingCluster(id)
	if !ok || ref.session == c.localSession {
		return 0, ErrInvalidStableID
	}

	final, ok := c.sessions.cluster(ref).finalizedFinal(local)
	if !ok {
		return 0, ErrInvalidStableID
	}
	return final.SessionSpace(), nil
}

// ClusterInfo is a read-only view of the cluster.
type ClusterInfo struct {
	SessionID SessionID
	BaseFinal FinalID
	BaseLocal LocalID
	Capacity  uint64
	Count     uint64
}

// Clusters lists clusters in order of final identifiers
func (c *IDCompressor) Clusters() []ClusterInfo {
	seq := make([]ClusterInfo, 0, len(c.finalSpace.clusters))
	for _, ref := range c.finalSpace.clusters {
		cluster := c.sessions.cluster(ref)
		seq = append(seq, ClusterInfo{
			SessionID: c.sessions.deref(ref.session).id,
			BaseFinal: cluster.baseFinal,
			BaseLocal: cluster.baseLocal,
			Capacity:  cluster.capacity,
			Count:     cluster.count,
		})
	}
	return seq
}

// Equal compares state of compressors. Session specific state is
// compared only if compareLocal is set.
func (c *IDCompressor) Equal(other *IDCompressor, compareLocal bool) bool {
	if compareLocal {
		if c.sessionID != other.sessionID ||
			c.generatedIDCount != other.generatedIDCount ||
			c.nextRangeBase != other.nextRangeBase ||
			!slices.Equal(c.normalizer.runs, other.normalizer.runs) {
			return false
		}
	}

	return c.clusterCapacity == other.clusterCapacity &&
		c.finalIDLimit == other.finalIDLimit &&
		slices.Equal(c.Clusters(), other.Clusters())
}
