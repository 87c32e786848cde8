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

package main

import (
	"errors"
	"io"

	"github.com/fogfish/idcompressor"
	"gopkg.in/yaml.v3"
)

// rangeDoc is YAML form of the range exchanged between sessions.
// Span fields are omitted for empty range.
type rangeDoc struct {
	Session       idcompressor.SessionID `yaml:"session"`
	FirstGenCount uint64                 `yaml:"firstGenCount,omitempty"`
	Count         uint64                 `yaml:"count,omitempty"`
}

func newRangeDoc(r idcompressor.IDRange) rangeDoc {
	doc := rangeDoc{Session: r.SessionID}
	if r.IDs != nil {
		doc.FirstGenCount = r.IDs.FirstGenCount
		doc.Count = r.IDs.Count
	}
	return doc
}

func (doc rangeDoc) IDRange() idcompressor.IDRange {
	r := idcompressor.IDRange{SessionID: doc.Session}
	if doc.FirstGenCount != 0 || doc.Count != 0 {
		r.IDs = &idcompressor.IDSpan{
			FirstGenCount: doc.FirstGenCount,
			Count:         doc.Count,
		}
	}
	return r
}

// decodeRanges reads stream of YAML documents
func decodeRanges(r io.Reader) ([]idcompressor.IDRange, error) {
	var seq []idcompressor.IDRange

	dec := yaml.NewDecoder(r)
	for {
		var doc rangeDoc
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return seq, nil
		}
		if err != nil {
			return nil, err
		}
		seq = append(seq, doc.IDRange())
	}
}

// clusterDoc is YAML view of the cluster
type clusterDoc struct {
	Session   idcompressor.SessionID `yaml:"session"`
	BaseFinal uint64                 `yaml:"baseFinal"`
	BaseLocal int64                  `yaml:"baseLocal"`
	Capacity  uint64                 `yaml:"capacity"`
	Count     uint64                 `yaml:"count"`
}

// stateDoc is YAML view of the compressor
type stateDoc struct {
	Session          idcompressor.SessionID `yaml:"session"`
	ClusterCapacity  uint64                 `yaml:"clusterCapacity"`
	GeneratedIDCount uint64                 `yaml:"generatedIdCount"`
	Sessions         int                    `yaml:"sessions"`
	SerializedSize   int                    `yaml:"serializedSize"`
	Clusters         []clusterDoc           `yaml:"clusters"`
}

func newStateDoc(c *idcompressor.IDCompressor, size int) stateDoc {
	doc := stateDoc{
		Session:          c.SessionID(),
		ClusterCapacity:  c.ClusterCapacity(),
		GeneratedIDCount: c.GeneratedIDCount(),
		Sessions:         c.SessionCount(),
		SerializedSize:   size,
		Clusters:         []clusterDoc{},
	}

	for _, cluster := range c.Clusters() {
		doc.Clusters = append(doc.Clusters, clusterDoc{
			Session:   cluster.SessionID,
			BaseFinal: uint64(cluster.BaseFinal),
			BaseLocal: int64(cluster.BaseLocal),
			Capacity:  cluster.Capacity,
			Count:     cluster.Count,
		})
	}
	return doc
}
