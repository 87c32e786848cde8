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

import "os"

// DefaultClusterCapacity is number of identifiers reserved by new cluster
// on top of identifiers finalized into it.
const DefaultClusterCapacity = 512

// Config option of compressor behavior.
type Config func(*IDCompressor) error

// WithSessionID explicitly configures the session of compressor
func WithSessionID(id SessionID) Config {
	return func(c *IDCompressor) error {
		c.sessionID = id
		return nil
	}
}

// WithSessionRandom configures the session using random UUID
func WithSessionRandom() Config {
	return func(c *IDCompressor) error {
		c.sessionID = NewSessionID()
		return nil
	}
}

// WithSessionFromEnv configures the session using env variable, the random
// one is used if variable is not defined.
//
// CONFIG_IDCOMPRESSOR_SESSION_ID - defines session as UUID string
func WithSessionFromEnv() Config {
	return func(c *IDCompressor) error {
		val, has := os.LookupEnv("CONFIG_IDCOMPRESSOR_SESSION_ID")
		if !has {
			return nil
		}

		id, err := ParseSessionID(val)
		if err != nil {
			return err
		}
		c.sessionID = id
		return nil
	}
}

// WithClusterCapacity configures capacity of clusters
func WithClusterCapacity(n uint64) Config {
	return func(c *IDCompressor) error {
		return c.SetClusterCapacity(n)
	}
}
