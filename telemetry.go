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

// TelemetryStats counts compressor events since the last read.
type TelemetryStats struct {
	// identifiers generated in final form
	EagerFinalCount uint64
	// identifiers generated in local form
	LocalIDCount uint64
	// clusters grown in place
	ExpansionCount uint64
	// clusters created
	ClusterCreationCount uint64
}

// TelemetryStats returns counters and resets them
func (c *IDCompressor) TelemetryStats() TelemetryStats {
	stats := c.telemetry
	c.telemetry = TelemetryStats{}
	return stats
}
