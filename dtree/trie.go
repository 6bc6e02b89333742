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
	"strconv"

	"github.com/SnellerInc/peepgen/isa"
)

// Trie is the decision chain for a single pattern.
// Every node has at most one forward link, and
// nodes appear in the arena in chain order.
type Trie struct {
	Arena
	// Leaf is the node at which the
	// pattern is fully determined.
	Leaf NodeID
	// Params maps each pattern variable number
	// (isa.Inst.Var) to its ordinal in chain order.
	Params map[int]int
}

// Chain returns the nodes of the trie in chain order.
func (t *Trie) Chain() []Node { return t.nodes }

type trieBuilder struct {
	trie  *Trie
	seq   isa.Seq
	last  NodeID
	level int
	ninst int         // next instruction ordinal
	ords  map[int]int // var index -> ordinal
	uses  map[int]int // var index -> number of uses
}

// Build expands the pattern seq into a single-pattern trie.
//
// Starting at the instruction named by the Infer
// instruction, each instruction contributes a selector
// and value for its instruction data and opcode, then
// for its condition if it is a comparison, then a
// selector and value definition for each operand.
// Operands defined by other instructions are expanded
// in place; constants are followed by a ConstLeaf
// holding the literal. Pattern variables are never
// expanded.
func Build(seq isa.Seq) (*Trie, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	root, err := seq.Root()
	if err != nil {
		return nil, err
	}
	b := &trieBuilder{
		trie: &Trie{Leaf: None, Params: make(map[int]int)},
		seq:  seq,
		last: None,
		ords: make(map[int]int),
		uses: make(map[int]int),
	}
	b.count(root)
	if err := b.inst(root); err != nil {
		return nil, err
	}
	b.trie.Leaf = b.last
	for idx, ord := range b.ords {
		b.trie.Params[seq[idx].Var] = ord
	}
	return b.trie, nil
}

// count counts variable uses
// in the expanded pattern rooted at i
func (b *trieBuilder) count(i int) {
	for _, a := range b.seq[i].Args {
		if !a.IsRef() {
			continue
		}
		r := a.Index()
		if b.seq[r].Op == isa.Var {
			b.uses[r]++
		} else {
			b.count(r)
		}
	}
}

func (b *trieBuilder) emit(kind Kind, value string, inst int) *Node {
	b.level++
	id := b.trie.add(Node{Kind: kind, Value: value, Level: b.level, Inst: inst})
	if b.last != None {
		b.trie.link(b.last, id)
	}
	b.last = id
	return &b.trie.nodes[id]
}

func selector(s isa.Shape, i int, a isa.Operand) string {
	switch s {
	case isa.Binary, isa.IntCompare:
		return ArgsField(i)
	case isa.UnaryImm:
		return FieldImm
	}
	if a.IsConst() {
		return FieldImm
	}
	return FieldArg
}

func (b *trieBuilder) inst(i int) error {
	in := &b.seq[i]
	k := b.ninst
	b.ninst++
	if _, err := isa.ShapeLiteral(in.Shape.String()); err != nil {
		return err
	}
	if _, err := isa.OpcodeLiteral(in.Op.String()); err != nil {
		return err
	}
	b.emit(MatchInstData, FieldInstData, k)
	b.emit(InstData, in.Shape.String(), k).Width = in.Width
	b.emit(MatchOpcode, FieldOpcode, k)
	b.emit(Opcode, in.Op.String(), k)
	if in.Op.Compare() {
		if _, err := isa.CondLiteral(in.Cond.String()); err != nil {
			return err
		}
		b.emit(MatchCond, FieldCond, k)
		b.emit(Cond, in.Cond.String(), k)
	}
	for j, a := range in.Args {
		b.emit(MatchArg, selector(in.Shape, j, a), k)
		if a.IsConst() {
			b.emit(ValueDef, DefConst, k)
			b.emit(ConstLeaf, strconv.FormatInt(a.Value(), 10), k)
			continue
		}
		if !a.IsRef() {
			return &isa.MalformedError{Inst: i, Operand: j, Msg: "operand is neither a reference nor a constant"}
		}
		r := a.Index()
		def := &b.seq[r]
		if def.Op != isa.Var {
			b.emit(ValueDef, DefResult, b.ninst)
			if err := b.inst(r); err != nil {
				return err
			}
			continue
		}
		if ord, ok := b.ords[r]; ok {
			n := b.emit(ValueDef, DefSame(ord), k)
			n.Var, n.Width = ord, def.Width
			continue
		}
		ord := len(b.ords) + 1
		b.ords[r] = ord
		value := DefParam
		if b.uses[r] > 1 {
			value = DefBind(ord)
		}
		n := b.emit(ValueDef, value, k)
		n.Var, n.Width = ord, def.Width
	}
	return nil
}

func (t *Trie) String() string {
	s := ""
	for i := range t.nodes {
		if i > 0 {
			s += " -> "
		}
		s += fmt.Sprintf("%s(%s)", t.nodes[i].Kind, t.nodes[i].Value)
	}
	return s
}

// NewTrie builds a trie directly from a chain of
// nodes, assigning IDs, levels, and forward links.
// The Kind, Value, Inst, Var, and Width of each
// node are kept as given.
func NewTrie(chain []Node, params map[int]int) *Trie {
	t := &Trie{Leaf: None, Params: params}
	if t.Params == nil {
		t.Params = make(map[int]int)
	}
	for i := range chain {
		n := chain[i]
		n.Level = i + 1
		id := t.add(n)
		if i > 0 {
			t.link(id-1, id)
		}
		t.Leaf = id
	}
	return t
}
