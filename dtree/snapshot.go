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
	"sigs.k8s.io/yaml"
)

// SnapshotNode is the serialized form of a Node.
type SnapshotNode struct {
	ID     NodeID   `json:"id"`
	Kind   string   `json:"kind"`
	Value  string   `json:"value"`
	Level  int      `json:"level"`
	Next   []NodeID `json:"next,omitempty"`
	Rule   string   `json:"rule,omitempty"`
	Action []string `json:"action,omitempty"`
}

// Snapshot is a serializable view of a tree,
// used for diagnostic dumps.
type Snapshot struct {
	Fingerprint string         `json:"fingerprint"`
	Actions     int            `json:"actions"`
	Nodes       []SnapshotNode `json:"nodes"`
}

// Snapshot captures the current state of t.
func (t *Tree) Snapshot() *Snapshot {
	s := &Snapshot{
		Fingerprint: FingerprintString(t.Fingerprint()),
		Actions:     len(t.actions),
		Nodes:       make([]SnapshotNode, len(t.nodes)),
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		sn := &s.Nodes[i]
		sn.ID = n.ID
		sn.Kind = n.Kind.String()
		sn.Value = n.Value
		sn.Level = n.Level
		sn.Next = n.Next
		if a, ok := t.actions[n.ID]; ok {
			sn.Rule = a.Rule
			for j := range a.Replacement {
				sn.Action = append(sn.Action, a.Replacement[j].String())
			}
		}
	}
	return s
}

// YAML encodes the snapshot as YAML.
func (s *Snapshot) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// ParseSnapshot decodes a snapshot
// produced by Snapshot.YAML.
func ParseSnapshot(buf []byte) (*Snapshot, error) {
	s := new(Snapshot)
	if err := yaml.Unmarshal(buf, s); err != nil {
		return nil, err
	}
	return s, nil
}
