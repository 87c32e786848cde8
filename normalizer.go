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

// run of local identifiers handed out by the session in local form
type localRun struct {
	genCount uint64
	count    uint64
}

// normalizer tracks local identifiers issued to the session in local
// form. Identifiers issued as eager finals are not recorded.
type normalizer struct {
	runs []localRun
}

func (n *normalizer) add(base LocalID, count uint64) {
	g := base.genCount()
	if len(n.runs) > 0 {
		last := &n.runs[len(n.runs)-1]
		if last.genCount+last.count == g {
			last.count += count
			return
		}
	}
	n.runs = append(n.runs, localRun{genCount: g, count: count})
}

func (n *normalizer) contains(local LocalID) bool {
	g := local.genCount()
	i := sort.Search(len(n.runs), func(i int) bool { return n.runs[i].genCount > g }) - 1
	if i < 0 {
		return false
	}
	return g-n.runs[i].genCount < n.runs[i].count
}
