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

import "sort"

// finalSpace is the global index of clusters ordered by final identifier.
type finalSpace struct {
	clusters []clusterRef
}

// add appends cluster at the upper bound of final space
func (fs *finalSpace) add(s *sessions, ref clusterRef) {
	if tail, ok := fs.tail(); ok {
		if s.cluster(ref).baseFinal <= s.cluster(tail).baseFinal {
			panic("idcompressor: cluster must be added at the tail of final space")
		}
	}
	fs.clusters = append(fs.clusters, ref)
}

func (fs *finalSpace) tail() (clusterRef, bool) {
	if len(fs.clusters) == 0 {
		return clusterRef{}, false
	}
	return fs.clusters[len(fs.clusters)-1], true
}

// search looks up cluster reserving the final identifier. The identifier is
// not necessary finalized.
func (fs *finalSpace) search(s *sessions, final FinalID) (clusterRef, bool) {
	i := sort.Search(len(fs.clusters), func(i int) bool {
		return s.cluster(fs.clusters[i]).baseFinal > final
	}) - 1
	if i < 0 {
		return clusterRef{}, false
	}

	ref := fs.clusters[i]
	if c := s.cluster(ref); uint64(final-c.baseFinal) >= c.capacity {
		return clusterRef{}, false
	}
	return ref, true
}
