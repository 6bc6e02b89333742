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

// Arena owns a set of nodes.
// A node's ID is its index in the arena,
// so IDs are dense and strictly increasing
// in creation order.
type Arena struct {
	nodes []Node
}

// Len returns the number of nodes in the arena.
func (a *Arena) Len() int { return len(a.nodes) }

// Node returns the node with the given ID.
// The returned pointer is valid until the
// next node is added to the arena.
func (a *Arena) Node(id NodeID) (*Node, error) {
	if id < 0 || int(id) >= len(a.nodes) {
		return nil, &NotFoundError{ID: id}
	}
	return &a.nodes[id], nil
}

// Nodes returns the nodes of the arena in ID order.
// The caller must not modify them.
func (a *Arena) Nodes() []Node { return a.nodes }

func (a *Arena) add(n Node) NodeID {
	n.ID = NodeID(len(a.nodes))
	n.Next = nil
	a.nodes = append(a.nodes, n)
	return n.ID
}

func (a *Arena) link(from, to NodeID) error {
	if _, err := a.Node(to); err != nil {
		return err
	}
	n, err := a.Node(from)
	if err != nil {
		return err
	}
	n.Next = append(n.Next, to)
	return nil
}
