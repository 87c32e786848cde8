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

package idcompressor_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/fogfish/idcompressor"
	"github.com/fogfish/it/v2"
)

// compressor with own and foreign clusters, eager finals and outstanding locals
func populated(t *testing.T, capacity uint64) (*idcompressor.IDCompressor, *idcompressor.IDCompressor) {
	t.Helper()
	a := compressor(t, withSession(t, sessionA), idcompressor.WithClusterCapacity(capacity))
	b := compressor(t, withSession(t, sessionB), idcompressor.WithClusterCapacity(capacity))

	for i := 1; i < 5; i++ {
		generate(a, i)
		generate(b, 2*i)
		ra, rb := a.TakeNextRange(), b.TakeNextRange()
		finalize(t, a, ra)
		finalize(t, a, rb)
		finalize(t, b, ra)
		finalize(t, b, rb)
	}
	generate(a, 3)

	return a, b
}

func TestSerializeEmpty(t *testing.T) {
	c := compressor(t)
	data := c.Serialize(false)

	d, err := idcompressor.Deserialize(data)

	it.Then(t).Should(
		it.Equal(len(data), 36),
		it.Equal(binary.LittleEndian.Uint32(data[0:4]), 1),
		it.Equal(binary.LittleEndian.Uint32(data[4:8]), 0),
		it.Equal(binary.LittleEndian.Uint32(data[8:12]), 1),
		it.Equal(binary.LittleEndian.Uint64(data[12:20]), idcompressor.DefaultClusterCapacity),
		it.Equal(err, nil),
		it.Equal(d.SessionCount(), 1),
		it.True(d.Equal(c, false)),
	)
}

func TestSerializeWithLocalState(t *testing.T) {
	a, _ := populated(t, 3)

	d, err := idcompressor.Deserialize(a.Serialize(true))

	it.Then(t).Should(
		it.Equal(err, nil),
		it.True(d.Equal(a, true)),
		it.Equal(d.SessionID(), a.SessionID()),
		it.Equal(d.GeneratedIDCount(), a.GeneratedIDCount()),
		it.Equal(d.SessionCount(), a.SessionCount()),
	)

	// restored session continues where the original stopped
	ida, idd := a.GenerateNextID(), d.GenerateNextID()
	ra, rd := a.TakeNextRange(), d.TakeNextRange()

	it.Then(t).Should(
		it.Equal(idd, ida),
		it.Equal(*rd.IDs, *ra.IDs),
		it.Equal(d.FinalizeRange(rd), nil),
		it.Equal(a.FinalizeRange(ra), nil),
		it.True(d.Equal(a, true)),
	)
}

func TestSerializeWithoutLocalState(t *testing.T) {
	a, b := populated(t, 3)
	id := idcompressor.NewSessionID()

	d, err := idcompressor.DeserializeWithSessionID(a.Serialize(false), id)

	it.Then(t).Should(
		it.Equal(err, nil),
		it.Equal(d.SessionID(), id),
		it.Equal(d.GeneratedIDCount(), 0),
		it.Equal(d.SessionCount(), 3),
		it.True(d.Equal(a, false)),
		it.True(d.Equal(b, false)),
	)
}

func TestSerializeRoundTripStable(t *testing.T) {
	a, _ := populated(t, 5)

	d, err := idcompressor.Deserialize(a.Serialize(true))

	it.Then(t).Should(
		it.Equal(err, nil),
		it.True(bytes.Equal(d.Serialize(false), a.Serialize(false))),
		it.True(bytes.Equal(d.Serialize(true), a.Serialize(true))),
	)
}

func TestSerialize64BitClusters(t *testing.T) {
	c := compressor(t, idcompressor.WithClusterCapacity(1<<33))
	generate(c, 2)
	finalize(t, c, c.TakeNextRange())

	data := c.Serialize(true)
	d, err := idcompressor.Deserialize(data)

	it.Then(t).Should(
		it.Equal(binary.LittleEndian.Uint32(data[8:12]), 0),
		it.Equal(err, nil),
		it.True(d.Equal(c, true)),
	)
}

func TestDeserializeResumedSession(t *testing.T) {
	a, _ := populated(t, 3)

	_, err := idcompressor.DeserializeWithSessionID(a.Serialize(false), a.SessionID())

	it.Then(t).Should(
		it.Equal(err, idcompressor.ErrInvalidResumedSession),
	)
}

func TestDeserializeUnknownVersion(t *testing.T) {
	data := compressor(t).Serialize(false)
	binary.LittleEndian.PutUint32(data, 2)

	_, err := idcompressor.Deserialize(data)

	it.Then(t).Should(
		it.Equal(err, idcompressor.ErrUnknownVersion),
	)
}

func TestDeserializeMalformed(t *testing.T) {
	a, _ := populated(t, 3)

	for _, data := range [][]byte{a.Serialize(true), a.Serialize(false)} {
		for n := 0; n < len(data); n++ {
			_, err := idcompressor.Deserialize(data[:n])
			it.Then(t).Should(
				it.Equal(err, idcompressor.ErrMalformedInput),
			)
		}
	}
}

func TestDeserializeMalformedCluster(t *testing.T) {
	c := compressor(t)
	generate(c, 1)
	finalize(t, c, c.TakeNextRange())

	data := c.Serialize(false)
	// count of the only cluster exceeds its capacity
	binary.LittleEndian.PutUint32(data[len(data)-4:], 0xffff)

	_, err := idcompressor.Deserialize(data)

	it.Then(t).Should(
		it.Equal(err, idcompressor.ErrMalformedInput),
	)
}

// local state of 6 generated ids, recorded in local form by given runs
func withRuns(runs ...[2]uint64) []byte {
	b := binary.LittleEndian.AppendUint32(nil, 1)
	b = binary.LittleEndian.AppendUint32(b, 1)
	b = binary.LittleEndian.AppendUint32(b, 1)
	b = append(b, bytes.Repeat([]byte{0x42}, 16)...)
	b = binary.LittleEndian.AppendUint64(b, 6)
	b = binary.LittleEndian.AppendUint64(b, 7)
	b = binary.LittleEndian.AppendUint64(b, uint64(len(runs)))
	for _, run := range runs {
		b = binary.LittleEndian.AppendUint64(b, run[0])
		b = binary.LittleEndian.AppendUint64(b, run[1])
	}
	b = binary.LittleEndian.AppendUint64(b, idcompressor.DefaultClusterCapacity)
	b = binary.LittleEndian.AppendUint64(b, 0)
	return binary.LittleEndian.AppendUint64(b, 0)
}

func TestDeserializeNormalizerRuns(t *testing.T) {
	c, err := idcompressor.Deserialize(withRuns([2]uint64{1, 3}, [2]uint64{4, 3}))
	it.Then(t).Should(it.Equal(err, nil))

	_, err = c.Decompress(-5)
	it.Then(t).Should(it.Equal(err, nil))

	_, errUnordered := idcompressor.Deserialize(withRuns([2]uint64{4, 3}, [2]uint64{1, 3}))
	_, errOverlap := idcompressor.Deserialize(withRuns([2]uint64{1, 3}, [2]uint64{3, 2}))
	_, errZero := idcompressor.Deserialize(withRuns([2]uint64{0, 3}))

	it.Then(t).Should(
		it.Equal(errUnordered, idcompressor.ErrMalformedInput),
		it.Equal(errOverlap, idcompressor.ErrMalformedInput),
		it.Equal(errZero, idcompressor.ErrMalformedInput),
	)
}
