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
	"encoding/binary"
	"math"
)

/*

Serialized compressor, version 1. All fields are little-endian.

	version                 u32 = 1
	has local state         u32
	clusters are 32 bit     u32
	[ local state ]
	  session id            u128 (uuid)
	  generated id count    u64
	  next range base       u64
	  normalizer            u64 run count, (u64 gen count, u64 length)...
	cluster capacity        u64
	session count           u64
	session ids             u128 (dense)...
	cluster count           u64
	clusters                (session index, capacity, count)...  u32 or u64 each
*/
const version1 = uint32(1)

// Serialize encodes compressor. The session specific state is included
// only if withLocal is set.
func (c *IDCompressor) Serialize(withLocal bool) []byte {
	is32 := c.clustersFit32()

	b := make([]byte, 0, 64+len(c.sessions.bytes)+24*len(c.finalSpace.clusters))
	b = binary.LittleEndian.AppendUint32(b, version1)
	b = appendBool(b, withLocal)
	b = appendBool(b, is32)

	if withLocal {
		b = c.sessionID.appendUUIDBytes(b)
		b = binary.LittleEndian.AppendUint64(b, c.generatedIDCount)
		b = binary.LittleEndian.AppendUint64(b, c.nextRangeBase)
		b = binary.LittleEndian.AppendUint64(b, uint64(len(c.normalizer.runs)))
		for _, run := range c.normalizer.runs {
			b = binary.LittleEndian.AppendUint64(b, run.genCount)
			b = binary.LittleEndian.AppendUint64(b, run.count)
		}
	}

	b = binary.LittleEndian.AppendUint64(b, c.clusterCapacity)

	// the local session is always first, it is omitted while empty
	skip := 0
	if c.generatedIDCount == 0 && len(c.sessions.deref(c.localSession).chain) == 0 {
		skip = 1
	}
	b = binary.LittleEndian.AppendUint64(b, uint64(c.sessions.len()-skip))
	b = append(b, c.sessions.bytes[16*skip:]...)

	b = binary.LittleEndian.AppendUint64(b, uint64(len(c.finalSpace.clusters)))
	for _, ref := range c.finalSpace.clusters {
		cluster := c.sessions.cluster(ref)
		index := uint64(ref.session - skip)
		if is32 {
			b = binary.LittleEndian.AppendUint32(b, uint32(index))
			b = binary.LittleEndian.AppendUint32(b, uint32(cluster.capacity))
			b = binary.LittleEndian.AppendUint32(b, uint32(cluster.count))
		} else {
			b = binary.LittleEndian.AppendUint64(b, index)
			b = binary.LittleEndian.AppendUint64(b, cluster.capacity)
			b = binary.LittleEndian.AppendUint64(b, cluster.count)
		}
	}

	return b
}

func (c *IDCompressor) clustersFit32() bool {
	tail, ok := c.finalSpace.tail()
	if !ok {
		return true
	}
	return c.sessions.cluster(tail).maxAllocatedFinal() < math.MaxUint32
}

func appendBool(b []byte, x bool) []byte {
	if x {
		return binary.LittleEndian.AppendUint32(b, 1)
	}
	return binary.LittleEndian.AppendUint32(b, 0)
}

// Deserialize decodes compressor. A new random session is used if data has
// no session specific state.
func Deserialize(data []byte) (*IDCompressor, error) {
	return DeserializeWithSessionGenerator(data, NewSessionID)
}

// DeserializeWithSessionID decodes compressor. The session is used if data
// has no session specific state.
func DeserializeWithSessionID(data []byte, id SessionID) (*IDCompressor, error) {
	return DeserializeWithSessionGenerator(data, func() SessionID { return id })
}

// DeserializeWithSessionGenerator decodes compressor. The generator is
// called only if data has no session specific state.
func DeserializeWithSessionGenerator(data []byte, gen func() SessionID) (*IDCompressor, error) {
	r := &reader{buf: data}

	version := r.uint32()
	if r.err != nil {
		return nil, r.err
	}

	switch version {
	case version1:
		return deserializeV1(r, gen)
	default:
		return nil, ErrUnknownVersion
	}
}

func deserializeV1(r *reader, gen func() SessionID) (*IDCompressor, error) {
	hasLocal := r.uint32() != 0
	is32 := r.uint32() != 0

	var c *IDCompressor
	if hasLocal {
		id := r.bytes(16)
		if r.err != nil {
			return nil, r.err
		}
		c = newWithSessionID(SessionID{stableFromUUIDBytes(id)})
		c.generatedIDCount = r.uint64()
		c.nextRangeBase = r.uint64()
		if c.nextRangeBase == 0 || c.nextRangeBase-1 > c.generatedIDCount {
			return nil, malformed(r)
		}

		// runs are ordered and disjoint
		runs, next := r.length(16), uint64(1)
		for i := uint64(0); i < runs; i++ {
			g, n := r.uint64(), r.uint64()
			if g < next || n == 0 || g > c.generatedIDCount || n > c.generatedIDCount-g+1 {
				return nil, malformed(r)
			}
			c.normalizer.add(localFromGenCount(g), n)
			next = g + n
		}
	} else {
		c = newWithSessionID(gen())
	}

	c.clusterCapacity = r.uint64()
	if c.clusterCapacity == 0 {
		return nil, malformed(r)
	}

	sessions := r.length(16)
	refs := make([]int, 0, sessions)
	for i := uint64(0); i < sessions; i++ {
		id := SessionID{stableFromBytes(r.bytes(16))}
		if !hasLocal && id == c.sessionID {
			return nil, ErrInvalidResumedSession
		}
		refs = append(refs, c.sessions.getOrCreate(id))
	}

	width := uint64(24)
	if is32 {
		width = 12
	}

	clusters := r.length(width)
	for i := uint64(0); i < clusters; i++ {
		var index, capacity, count uint64
		if is32 {
			index, capacity, count = uint64(r.uint32()), uint64(r.uint32()), uint64(r.uint32())
		} else {
			index, capacity, count = r.uint64(), r.uint64(), r.uint64()
		}

		if index >= uint64(len(refs)) || capacity == 0 || count > capacity {
			return nil, malformed(r)
		}

		space := c.sessions.deref(refs[index])
		baseGen := uint64(1)
		if tail := space.tail(); tail != nil {
			baseGen = tail.baseGen() + tail.capacity
		}

		if c.finalIDLimit > math.MaxInt64 ||
			capacity-1 > math.MaxInt64-c.finalIDLimit ||
			capacity-1 > math.MaxInt64-baseGen {
			return nil, malformed(r)
		}

		space.chain = append(space.chain, idCluster{
			baseFinal: FinalID(c.finalIDLimit),
			baseLocal: localFromGenCount(baseGen),
			capacity:  capacity,
			count:     count,
		})
		c.finalSpace.add(c.sessions, clusterRef{session: refs[index], index: len(space.chain) - 1})
		c.finalIDLimit += capacity
	}

	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

func malformed(r *reader) error {
	if r.err != nil {
		return r.err
	}
	return ErrMalformedInput
}

// reader is bounds checked little-endian decoder. The first failure is
// sticky, reads after it return zero values.
type reader struct {
	buf []byte
	err error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil || len(r.buf) < n {
		r.err = ErrMalformedInput
		return make([]byte, n)
	}

	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) uint32() uint32 { return binary.LittleEndian.Uint32(r.bytes(4)) }

func (r *reader) uint64() uint64 { return binary.LittleEndian.Uint64(r.bytes(8)) }

// length reads number of items of given width, the items must fit the buffer
func (r *reader) length(width uint64) uint64 {
	n := r.uint64()
	if r.err == nil && n > uint64(len(r.buf))/width {
		r.err = ErrMalformedInput
		return 0
	}
	return n
}
