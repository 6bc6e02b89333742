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
	"strconv"

	"github.com/SnellerInc/peepgen/isa"
)

// Path returns the nodes on the path from the
// root of the tree (exclusive) to id (inclusive).
func (t *Tree) Path(id NodeID) ([]Node, error) {
	if _, err := t.Node(id); err != nil {
		return nil, err
	}
	var stack []NodeID
	var walk func(at NodeID) bool
	walk = func(at NodeID) bool {
		if at == id {
			return true
		}
		for _, c := range t.nodes[at].Next {
			stack = append(stack, c)
			if walk(c) {
				return true
			}
			stack = stack[:len(stack)-1]
		}
		return false
	}
	if !walk(t.Root()) {
		return nil, &NotFoundError{ID: id}
	}
	out := make([]Node, len(stack))
	for i, c := range stack {
		out[i] = t.nodes[c]
	}
	return out, nil
}

// Seq reads the trie back into the
// pattern sequence it was built from.
func (t *Trie) Seq() (isa.Seq, error) {
	return Reconstruct(t.Chain())
}

type reader struct {
	path []Node
	pos  int
	out  isa.Seq
	vars map[int]int // ordinal -> index in out
}

// Reconstruct reads a root-to-leaf chain of nodes
// back into a canonical pattern sequence ending
// in an Infer instruction. Pattern variables are
// numbered by their ordinal in the chain.
//
// A pattern in which one instruction result is
// used more than once is expanded into a tree
// when it is built, so it reads back with that
// instruction repeated.
func Reconstruct(path []Node) (isa.Seq, error) {
	r := &reader{path: path, vars: make(map[int]int)}
	root, err := r.inst()
	if err != nil {
		return nil, err
	}
	if r.pos != len(path) {
		return nil, r.errorf("trailing nodes after the pattern")
	}
	r.out = append(r.out, isa.Inst{Op: isa.Infer, Args: []isa.Operand{isa.Ref(root)}})
	return r.out, nil
}

func (r *reader) errorf(msg string) error {
	at := None
	if r.pos < len(r.path) {
		at = r.path[r.pos].ID
	} else if len(r.path) > 0 {
		at = r.path[len(r.path)-1].ID
	}
	return &PathError{At: at, Msg: msg}
}

func (r *reader) expect(k Kind) (*Node, error) {
	if r.pos >= len(r.path) {
		return nil, r.errorf("path ends before " + k.String())
	}
	n := &r.path[r.pos]
	if n.Kind != k {
		return nil, r.errorf("expected " + k.String() + ", found " + n.Kind.String())
	}
	r.pos++
	return n, nil
}

func (r *reader) inst() (int, error) {
	if _, err := r.expect(MatchInstData); err != nil {
		return 0, err
	}
	n, err := r.expect(InstData)
	if err != nil {
		return 0, err
	}
	shape, ok := isa.LookupShape(n.Value)
	if !ok {
		return 0, &isa.UnsupportedError{What: "instruction data", Name: n.Value}
	}
	in := isa.Inst{Result: isa.Result, Shape: shape, Width: n.Width}
	if _, err := r.expect(MatchOpcode); err != nil {
		return 0, err
	}
	if n, err = r.expect(Opcode); err != nil {
		return 0, err
	}
	if in.Op, ok = isa.LookupOpcode(n.Value); !ok {
		return 0, &isa.UnsupportedError{What: "opcode", Name: n.Value}
	}
	if in.Op.Compare() {
		if _, err := r.expect(MatchCond); err != nil {
			return 0, err
		}
		if n, err = r.expect(Cond); err != nil {
			return 0, err
		}
		if in.Cond, ok = isa.LookupCond(n.Value); !ok {
			return 0, &isa.UnsupportedError{What: "condition", Name: n.Value}
		}
	}
	for j := 0; j < shape.Arity(); j++ {
		if _, err := r.expect(MatchArg); err != nil {
			return 0, err
		}
		def, err := r.expect(ValueDef)
		if err != nil {
			return 0, err
		}
		name, k, err := ParseDef(def.Value)
		if err != nil {
			return 0, &isa.UnsupportedError{What: "value definition", Name: def.Value}
		}
		switch name {
		case DefConst:
			leaf, err := r.expect(ConstLeaf)
			if err != nil {
				return 0, err
			}
			c, err := strconv.ParseInt(leaf.Value, 10, 64)
			if err != nil {
				return 0, &PathError{At: leaf.ID, Msg: "bad constant " + strconv.Quote(leaf.Value)}
			}
			in.Args = append(in.Args, isa.Const(c))
		case DefResult:
			idx, err := r.inst()
			if err != nil {
				return 0, err
			}
			in.Args = append(in.Args, isa.Ref(idx))
		case "Same":
			idx, ok := r.vars[k]
			if !ok {
				return 0, &PathError{At: def.ID, Msg: "use of unbound variable " + strconv.Itoa(k)}
			}
			in.Args = append(in.Args, isa.Ref(idx))
		default: // Param, Bind
			if _, ok := r.vars[def.Var]; ok {
				return 0, &PathError{At: def.ID, Msg: "variable " + strconv.Itoa(def.Var) + " bound twice"}
			}
			r.out = append(r.out, isa.Inst{
				Result: isa.Param,
				Op:     isa.Var,
				Shape:  isa.VarShape,
				Width:  def.Width,
				Var:    def.Var,
			})
			r.vars[def.Var] = len(r.out) - 1
			in.Args = append(in.Args, isa.Ref(len(r.out)-1))
		}
	}
	r.out = append(r.out, in)
	return len(r.out) - 1, nil
}
