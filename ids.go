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

import "github.com/google/uuid"

/*

Identifier spaces

	                 Local                Final
	  ... -3 -2 -1 |  0  1  2  3 ...
	  ◀────────────┼──────────────▶

Local identifiers are negative, -n is the n-th identifier generated by the
session (its generation count). Final identifiers are non-negative, they are
assigned by finalizing ranges in the total order shared by all sessions.
SessionSpaceID and OpSpaceID share this encoding, they only differ by the
representation they prefer: session space keeps the most local form known to
the compressor, op space the most final one.
*/

// LocalID is session private identifier, always negative.
type LocalID int64

func localFromGenCount(n uint64) LocalID { return LocalID(-int64(n)) }

func (id LocalID) genCount() uint64 { return uint64(-int64(id)) }

// SessionSpace converts id to session space
func (id LocalID) SessionSpace() SessionSpaceID { return SessionSpaceID(id) }

// OpSpace converts id to op space
func (id LocalID) OpSpace() OpSpaceID { return OpSpaceID(id) }

// FinalID is globally stable identifier.
type FinalID uint64

// SessionSpace converts id to session space
func (id FinalID) SessionSpace() SessionSpaceID { return SessionSpaceID(id) }

// OpSpace converts id to op space
func (id FinalID) OpSpace() OpSpaceID { return OpSpaceID(id) }

// SessionSpaceID is the identifier as consumed by the application of
// the session.
type SessionSpaceID int64

// IsLocal is true for identifiers in local form
func (id SessionSpaceID) IsLocal() bool { return id < 0 }

// IsFinal is true for identifiers in final form
func (id SessionSpaceID) IsFinal() bool { return id >= 0 }

// ToLocal returns local form of the identifier if it is local
func (id SessionSpaceID) ToLocal() (LocalID, bool) { return LocalID(id), id < 0 }

// ToFinal returns final form of the identifier if it is final
func (id SessionSpaceID) ToFinal() (FinalID, bool) { return FinalID(id), id >= 0 }

// OpSpaceID is the identifier as written to ops and persisted documents.
type OpSpaceID int64

// IsLocal is true for identifiers in local form
func (id OpSpaceID) IsLocal() bool { return id < 0 }

// IsFinal is true for identifiers in final form
func (id OpSpaceID) IsFinal() bool { return id >= 0 }

// ToLocal returns local form of the identifier if it is local
func (id OpSpaceID) ToLocal() (LocalID, bool) { return LocalID(id), id < 0 }

// ToFinal returns final form of the identifier if it is final
func (id OpSpaceID) ToFinal() (FinalID, bool) { return FinalID(id), id >= 0 }

// SessionID is the origin of session's block of unique values.
type SessionID struct{ StableID }

// NewSessionID generates random session identifier
func NewSessionID() SessionID {
	id, _ := StableIDFromUUID(uuid.New())
	return SessionID{id}
}

// SessionIDFromUUID converts version 4 UUID to session identifier
func SessionIDFromUUID(u uuid.UUID) (SessionID, error) {
	id, err := StableIDFromUUID(u)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID{id}, nil
}

// ParseSessionID decodes canonical UUID string to session identifier
func ParseSessionID(s string) (SessionID, error) {
	id, err := ParseStableID(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID{id}, nil
}

// IDRange is a block of identifiers taken from the session for finalization.
// IDs is nil when the session had nothing new to export.
type IDRange struct {
	SessionID SessionID
	IDs       *IDSpan
}

// IDSpan is a contiguous run of generation counts.
type IDSpan struct {
	FirstGenCount uint64
	Count         uint64
}
