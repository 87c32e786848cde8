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
	"slices"
	"sort"
)

/*

idCluster links a block of final identifiers to a block of local identifiers
of one session. The block is reserved (capacity) ahead of its use, only
count identifiers are finalized.

	  baseFinal                 baseFinal + count    baseFinal + capacity
	  |-------------------------|--------------------|
	  ◀──────── finalized ─────▶◀────── eager ──────▶
	  baseLocal
*/
type idCluster struct {
	baseFinal FinalID
	baseLocal LocalID
	capacity  uint64
	count     uint64
}

func (c *idCluster) baseGen() uint64 { return c.baseLocal.genCount() }

func (c *idCluster) maxAllocatedFinal() FinalID { return c.baseFinal + FinalID(c.capacity-1) }

// generation count of the last reserved slot
func (c *idCluster) maxAllocatedGen() uint64 { return c.baseGen() + c.capacity - 1 }

// slot of local identifier within the cluster
func (c *idCluster) offsetOf(local LocalID) (uint64, bool) {
	g := local.genCount()
	if g < c.baseGen() {
		return 0, false
	}
	return g - c.baseGen(), true
}

// final identifier reserved for the local one, not necessary finalized
func (c *idCluster) allocatedFinal(local LocalID) (FinalID, bool) {
	off, ok := c.offsetOf(local)
	if !ok || off >= c.capacity {
		return 0, false
	}
	return c.baseFinal + FinalID(off), true
}

// final identifier of the local one, only if finalized
func (c *idCluster) finalizedFinal(local LocalID) (FinalID, bool) {
	off, ok := c.offsetOf(local)
	if !ok || off >= c.count {
		return 0, false
	}
	return c.baseFinal + FinalID(off), true
}

// local identifier aligned with reserved final one
func (c *idCluster) alignedLocal(final FinalID) (LocalID, bool) {
	if final < c.baseFinal || uint64(final-c.baseFinal) >= c.capacity {
		return 0, false
	}
	return localFromGenCount(c.baseGen() + uint64(final-c.baseFinal)), true
}

// clusterRef is an index handle of cluster in the session table arena
type clusterRef struct {
	session int
	index   int
}

// sessionSpace is the chain of clusters owned by the session
type sessionSpace struct {
	id    SessionID
	chain []idCluster
}

func (s *sessionSpace) tail() *idCluster {
	if len(s.chain) == 0 {
		return nil
	}
	return &s.chain[len(s.chain)-1]
}

// the last unique value reserved by the session
func (s *sessionSpace) maxAllocatedStable() StableID {
	tail := s.tail()
	if tail == nil {
		return s.id.StableID
	}
	return s.id.Add(tail.maxAllocatedGen() - 1)
}

// binary search of cluster covering local identifier. The cluster covers
// reserved slots if includeAllocated is set, finalized ones otherwise.
func (s *sessionSpace) clusterByLocal(local LocalID, includeAllocated bool) (int, bool) {
	g := local.genCount()
	i := sort.Search(len(s.chain), func(i int) bool { return s.chain[i].baseGen() > g }) - 1
	if i < 0 {
		return 0, false
	}

	limit := s.chain[i].count
	if includeAllocated {
		limit = s.chain[i].capacity
	}
	if g-s.chain[i].baseGen() >= limit {
		return 0, false
	}
	return i, true
}

type sessionEntry struct {
	id  StableID
	ref int
}

/*

sessions is the table of sessions known to the compressor. Sessions are
stored in order of creation (the arena, referenced by index handles), the
sorted index resolves ownership of arbitrary unique value. The dense form of
each session id is kept in a parallel byte buffer, 16 bytes per session.
*/
type sessions struct {
	spaces []sessionSpace
	sorted []sessionEntry
	bytes  []byte
}

func newSessions() *sessions {
	return &sessions{}
}

func (s *sessions) len() int { return len(s.spaces) }

func (s *sessions) search(id SessionID) (int, bool) {
	return slices.BinarySearchFunc(s.sorted, id.StableID,
		func(e sessionEntry, x StableID) int { return e.id.Compare(x) },
	)
}

func (s *sessions) get(id SessionID) (int, bool) {
	at, has := s.search(id)
	if !has {
		return 0, false
	}
	return s.sorted[at].ref, true
}

func (s *sessions) getOrCreate(id SessionID) int {
	at, has := s.search(id)
	if has {
		return s.sorted[at].ref
	}

	ref := len(s.spaces)
	s.spaces = append(s.spaces, sessionSpace{id: id})
	s.sorted = slices.Insert(s.sorted, at, sessionEntry{id: id.StableID, ref: ref})
	s.bytes = id.appendBytes(s.bytes)
	return ref
}

func (s *sessions) deref(ref int) *sessionSpace { return &s.spaces[ref] }

func (s *sessions) cluster(ref clusterRef) *idCluster {
	return &s.spaces[ref.session].chain[ref.index]
}

// greatest session id less or equal to query
func (s *sessions) floor(query StableID) int {
	return sort.Search(len(s.sorted), func(i int) bool { return query.Less(s.sorted[i].id) }) - 1
}

// getContainingCluster resolves the cluster which reserves the unique value.
// It returns the cluster and local identifier of the value in the originator
// session.
func (s *sessions) getContainingCluster(query StableID) (clusterRef, LocalID, bool) {
	at := s.floor(query)
	if at < 0 {
		return clusterRef{}, 0, false
	}

	ref := s.sorted[at].ref
	space := &s.spaces[ref]
	if space.maxAllocatedStable().Less(query) {
		return clusterRef{}, 0, false
	}

	delta, ok := query.offsetFrom(space.id.StableID)
	if !ok {
		return clusterRef{}, 0, false
	}

	local := localFromGenCount(delta + 1)
	index, ok := space.clusterByLocal(local, true)
	if !ok {
		return clusterRef{}, 0, false
	}
	return clusterRef{session: ref, index: index}, local, true
}

// rangeCollides is true if other session has reserved any unique value of
// [base, last]. Regions of sessions never overlap, the closest session below
// last other than originator is the only candidate.
func (s *sessions) rangeCollides(originator SessionID, base, last StableID) bool {
	for at := s.floor(last); at >= 0; at-- {
		e := s.sorted[at]
		if e.id == originator.StableID {
			continue
		}
		return !s.spaces[e.ref].maxAllocatedStable().Less(base)
	}
	return false
}
