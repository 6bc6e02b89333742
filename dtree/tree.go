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
	"fmt"

	"github.com/SnellerInc/peepgen/isa"

	"golang.org/x/exp/slices"
)

// Action is a replacement attached
// to an actionable node.
type Action struct {
	// Rule is the textual form of the rule.
	Rule string
	// Pos is the source position of the rule.
	Pos string
	// Replacement is the replacement sequence.
	// Its Var instructions are numbered by
	// pattern-variable ordinal (see Trie.Params).
	Replacement isa.Seq
}

type key struct {
	parent NodeID
	kind   Kind
	value  string
}

// Tree is a merged prefix tree.
// The root node always has ID 0.
type Tree struct {
	Arena
	lookup  map[key]NodeID
	actions map[NodeID]*Action
}

// New returns a tree containing only its root.
func New() *Tree {
	t := &Tree{
		lookup:  make(map[key]NodeID),
		actions: make(map[NodeID]*Action),
	}
	t.add(Node{Kind: Root, Value: "root"})
	return t
}

// Root returns the ID of the root node.
func (t *Tree) Root() NodeID { return 0 }

// Action returns the action attached to id, if any.
func (t *Tree) Action(id NodeID) (*Action, bool) {
	a, ok := t.actions[id]
	return a, ok
}

// Actionable returns the IDs of every
// node that carries an action, in ID order.
func (t *Tree) Actionable() []NodeID {
	out := make([]NodeID, 0, len(t.actions))
	for id := range t.actions {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// renumber rewrites the variables of a
// replacement to pattern-variable ordinals
func renumber(tr *Trie, rhs isa.Seq) (isa.Seq, error) {
	out := slices.Clone(rhs)
	for i := range out {
		if out[i].Op != isa.Var {
			continue
		}
		ord, ok := tr.Params[out[i].Var]
		if !ok {
			return nil, &isa.MalformedError{
				Inst:    i,
				Operand: -1,
				Msg:     fmt.Sprintf("replacement uses variable %d, which the pattern does not bind", out[i].Var),
			}
		}
		out[i].Var = ord
	}
	return out, nil
}

// Insert merges tr into the tree and attaches
// act to the node where tr's pattern is fully
// determined, returning that node's ID.
//
// The chain is walked in lock-step with the tree
// for as long as the tree already holds each value;
// the remaining suffix is grafted onto the last
// shared node as a new branch. A pattern that is
// already fully present yields a *DuplicateError
// and leaves the tree unchanged.
func (t *Tree) Insert(tr *Trie, act Action) (NodeID, error) {
	if err := act.Replacement.ValidateReplacement(); err != nil {
		return None, err
	}
	rhs, err := renumber(tr, act.Replacement)
	if err != nil {
		return None, err
	}
	act.Replacement = rhs
	chain := tr.Chain()
	if len(chain) == 0 {
		return None, &isa.MalformedError{Inst: -1, Operand: -1, Msg: "empty pattern"}
	}
	cur := t.Root()
	i := 0
	for ; i < len(chain); i++ {
		next, ok := t.lookup[key{cur, chain[i].Kind, chain[i].Value}]
		if !ok {
			break
		}
		cur = next
	}
	if i == len(chain) {
		if prev, ok := t.actions[cur]; ok {
			return None, &DuplicateError{
				Leaf:     cur,
				Existing: prev.Rule,
				Same:     slices.EqualFunc(prev.Replacement, rhs, sameInst),
			}
		}
	}
	for ; i < len(chain); i++ {
		parent, err := t.Node(cur)
		if err != nil {
			return None, err
		}
		n := chain[i]
		n.Level = parent.Level + 1
		id := t.add(n)
		if err := t.link(cur, id); err != nil {
			return None, err
		}
		t.lookup[key{cur, n.Kind, n.Value}] = id
		cur = id
	}
	t.actions[cur] = &act
	return cur, nil
}

// sameInst ignores widths; neither matching
// nor replacement code depends on them
func sameInst(x, y isa.Inst) bool {
	return x.Result == y.Result && x.Op == y.Op && x.Shape == y.Shape &&
		x.Cond == y.Cond && x.Var == y.Var &&
		slices.Equal(x.Args, y.Args)
}

// Children returns the forward links of id.
func (t *Tree) Children(id NodeID) ([]NodeID, error) {
	n, err := t.Node(id)
	if err != nil {
		return nil, err
	}
	return n.Next, nil
}
