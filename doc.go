/*

  Copyright 2012 Dmitry Kolesnikov, All Rights Reserved

  Licensed under the Apache License, Version 2.0 (the "License");
  you may not use this file except in compliance with the License.
  You may obtain a copy of the License at

      http://www.apache.org/licenses/LICENSE-2.0

  Unless required by applicable law or agreed to in writing, software
  distributed under the License is distributed on an "AS IS" BASIS,
  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
  See the License for the specific language governing permissions and
  limitations under the License.

*/


/*

Package idcompressor implements decentralized allocation of compact
identifiers. Each participant (session) mints identifiers locally without
coordination. The identifiers are globally unique values (UUID) but the
application handles them as small integers. The participants agree on the
small integers by finalizing ranges of identifiers in the total order
established by an external sequencing authority.

Key features

↣ Allocation is local, it never blocks on network round trips.

↣ Identifiers are 64-bit integers in memory and on the wire, unique values
are 128-bit only when the application asks for them.

↣ Eager finals: once the session owns reserved block of final identifiers,
new identifiers are final immediately, ahead of their acknowledgment.

↣ State is a compact, version-tagged binary snapshot.

Identity Schema

Each session is a random version 4 UUID. The session owns the contiguous
block of unique values started at its UUID, n-th identifier minted by the
session is session + (n - 1). The arithmetic is performed over dense
122-bit form of UUID (StableID) that skips fixed version and variant bits.

  session                                 session + n - 1
   |--------|--------|--------|-----    ---|
     -1       -2       -3                -n        local identifiers

Local identifiers are negative and meaningful only for the session. Ranges
of local identifiers are exported by TakeNextRange, sequenced by external
authority, and applied to every compressor by FinalizeRange. Finalizing
assigns the range a block of non-negative final identifiers (cluster).
Clusters reserve capacity beyond the range so that the following ranges of
the same session land in the same block.

  final space   0                                              finalIDLimit
               |--- A: 0..5 ---|--- B: 6..10 ---|--- A: 11..20 ---|

Identifier spaces

The same identifier has two encodings. Session space is what the session
application holds, the most local form known to the compressor. Op space is
what session writes to ops and documents, the most final form. NormalizeToOpSpace
and NormalizeToSessionSpace translate between them, Decompress and Recompress
between identifiers and unique values.

*/
package idcompressor
