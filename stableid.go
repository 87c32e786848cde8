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
	"math/bits"

	"github.com/google/uuid"
)

/*
StableID is a dense form of version 4 UUID. The fixed version and variant bits
are stripped so that the remaining 122 bits are a plain unsigned integer.
Sessions allocate contiguous blocks of this integer space, the arithmetic on
StableID re-expands into a valid UUID at any offset.

	  48 bit            4 bit  12 bit  2 bit      62 bit
	|------------------|----|--------|--|---------------------|
	      upper          ver   middie var         lower
	^                  ^    ^        ^  ^                     ^
	128               80   76       64 62                     0

	  48 bit            12 bit          62 bit
	|------------------|--------|---------------------|
	      upper          middie         lower
	^                  ^        ^                     ^
	122               74       62                     0
*/
type StableID struct{ hi, lo uint64 }

const (
	maskUpper  = uint64(1)<<48 - 1
	maskMiddie = uint64(0xfff)
	maskLower  = uint64(1)<<62 - 1

	// version nibble at bits 79..76 of UUID (hi word)
	uuidVersion = uint64(0x4) << 12
	// variant 0b10 at bits 63..62 of UUID (lo word)
	uuidVariant = uint64(0x2) << 62
)

// packs UUID words into dense form
func compress(hi, lo uint64) StableID {
	upper := hi >> 16
	middie := hi & maskMiddie
	lower := lo & maskLower

	return StableID{
		hi: upper<<10 | middie>>2,
		lo: middie<<62 | lower,
	}
}

// unpacks dense form into UUID words, fixed bits are re-inserted
func (id StableID) expand() (hi, lo uint64) {
	upper := (id.hi >> 10) & maskUpper
	middie := (id.hi&0x3ff)<<2 | id.lo>>62
	lower := id.lo & maskLower

	return upper<<16 | uuidVersion | middie, uuidVariant | lower
}

// StableIDFromUUID converts UUID to dense form. UUID must be version 4 of
// RFC 4122 variant.
func StableIDFromUUID(u uuid.UUID) (StableID, error) {
	if u.Version() != 4 || u.Variant() != uuid.RFC4122 {
		return StableID{}, ErrInvalidVersionOrVariant
	}

	hi := binary.BigEndian.Uint64(u[0:8])
	lo := binary.BigEndian.Uint64(u[8:16])
	return compress(hi, lo), nil
}

// ParseStableID decodes canonical UUID string into dense form.
func ParseStableID(s string) (StableID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return StableID{}, ErrInvalidUUIDString
	}

	return StableIDFromUUID(u)
}

// UUID expands dense form back to UUID
func (id StableID) UUID() uuid.UUID {
	var u uuid.UUID
	hi, lo := id.expand()
	binary.BigEndian.PutUint64(u[0:8], hi)
	binary.BigEndian.PutUint64(u[8:16], lo)
	return u
}

// String returns canonical UUID text of the identifier
func (id StableID) String() string { return id.UUID().String() }

// Add returns id + n
func (id StableID) Add(n uint64) StableID {
	lo, carry := bits.Add64(id.lo, n, 0)
	hi, _ := bits.Add64(id.hi, 0, carry)
	return StableID{hi: hi, lo: lo}
}

// Sub returns id - x, the caller guarantees x <= id
func (id StableID) Sub(x StableID) StableID {
	lo, borrow := bits.Sub64(id.lo, x.lo, 0)
	hi, _ := bits.Sub64(id.hi, x.hi, borrow)
	return StableID{hi: hi, lo: lo}
}

// Compare returns -1, 0 or +1 depending on order of identifiers
func (id StableID) Compare(x StableID) int {
	switch {
	case id.hi < x.hi:
		return -1
	case id.hi > x.hi:
		return 1
	case id.lo < x.lo:
		return -1
	case id.lo > x.lo:
		return 1
	default:
		return 0
	}
}

// Less is true if id < x
func (id StableID) Less(x StableID) bool { return id.Compare(x) < 0 }

// distance from origin to id if it fits into 64 bits
func (id StableID) offsetFrom(origin StableID) (uint64, bool) {
	if id.Less(origin) {
		return 0, false
	}

	d := id.Sub(origin)
	return d.lo, d.hi == 0
}

// u128 little-endian encoding of the dense form
func (id StableID) appendBytes(b []byte) []byte {
	b = binary.LittleEndian.AppendUint64(b, id.lo)
	return binary.LittleEndian.AppendUint64(b, id.hi)
}

func stableFromBytes(b []byte) StableID {
	return StableID{
		lo: binary.LittleEndian.Uint64(b[0:8]),
		hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// u128 little-endian encoding of the expanded UUID
func (id StableID) appendUUIDBytes(b []byte) []byte {
	hi, lo := id.expand()
	b = binary.LittleEndian.AppendUint64(b, lo)
	return binary.LittleEndian.AppendUint64(b, hi)
}

func stableFromUUIDBytes(b []byte) StableID {
	lo := binary.LittleEndian.Uint64(b[0:8])
	hi := binary.LittleEndian.Uint64(b[8:16])
	return compress(hi, lo)
}
