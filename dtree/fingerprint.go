// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package dtree

import (
	"encoding/binary"
	"fmt"

	"github.com/dchest/siphash"
	"golang.org/x/exp/slices"
)

// fixed keys; fingerprints are
// compared across runs
const (
	k0 = 0x7065657067656e30
	k1 = 0x6474726565667031
)

// Fingerprint returns a structural hash of the
// tree. It depends on the kind, value, and level
// of every node, on the shape of the tree, and on
// the attached replacements, but not on node IDs
// or on the order in which siblings were inserted.
func (t *Tree) Fingerprint() uint64 {
	var walk func(id NodeID) uint64
	walk = func(id NodeID) uint64 {
		n := &t.nodes[id]
		kids := make([]uint64, len(n.Next))
		for i, c := range n.Next {
			kids[i] = walk(c)
		}
		slices.Sort(kids)
		var buf []byte
		buf = append(buf, byte(n.Kind))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(n.Level))
		buf = append(buf, n.Value...)
		buf = append(buf, 0)
		if a, ok := t.actions[id]; ok {
			buf = append(buf, a.Replacement.String()...)
		}
		buf = append(buf, 0)
		for _, h := range kids {
			buf = binary.LittleEndian.AppendUint64(buf, h)
		}
		return siphash.Hash(k0, k1, buf)
	}
	return walk(t.Root())
}

// FingerprintString formats a fingerprint
// the way it is stamped into generated code.
func FingerprintString(h uint64) string {
	return fmt.Sprintf("%016x", h)
}
