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

import "encoding/json"

// MarshalText encodes stable id as canonical UUID string
func (id StableID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText decodes canonical UUID string
func (id *StableID) UnmarshalText(b []byte) (err error) {
	*id, err = ParseStableID(string(b))
	return
}

/*
UnmarshalJSON decodes UUID string to stable id
*/
func (id *StableID) UnmarshalJSON(b []byte) (err error) {
	var val string
	if err = json.Unmarshal(b, &val); err != nil {
		return
	}
	return id.UnmarshalText([]byte(val))
}

/*
MarshalJSON encodes stable id to UUID JSON string
*/
func (id StableID) MarshalJSON() (bytes []byte, err error) {
	return json.Marshal(id.String())
}
