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

import "errors"

var (
	ErrInvalidUUIDString        = errors.New("string is not a valid uuid")
	ErrInvalidVersionOrVariant  = errors.New("uuid is not v4 of rfc 4122 variant")
	ErrInvalidClusterCapacity   = errors.New("cluster capacity must be a non-zero integer")
	ErrRangeFinalizedOutOfOrder = errors.New("ranges finalized out of order")
	ErrMalformedIDRange         = errors.New("malformed id range")
	ErrClusterCollision         = errors.New("cluster collision detected")
	ErrInvalidStableID          = errors.New("unknown stable id")
	ErrInvalidSessionSpaceID    = errors.New("unknown session space id")
	ErrInvalidOpSpaceID         = errors.New("unknown op space id")
	ErrNoTokenForSession        = errors.New("no ids have ever been finalized by the session")
)

// persistence
var (
	ErrUnknownVersion        = errors.New("unknown serialization version")
	ErrMalformedInput        = errors.New("malformed serialized input")
	ErrInvalidResumedSession = errors.New("cannot resume existing session")
)
