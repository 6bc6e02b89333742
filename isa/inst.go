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

package isa

import (
	"fmt"
	"strconv"
	"strings"
)

// Operand is an instruction operand: either
// a reference to an earlier instruction in the
// same sequence, or an inline integer constant.
type Operand struct {
	ref   int32 // index + 1; zero means "not a reference"
	konst int64
	isk   bool
}

// Ref returns an operand referencing
// instruction i of the enclosing sequence.
func Ref(i int) Operand { return Operand{ref: int32(i) + 1} }

// Const returns an inline constant operand.
func Const(c int64) Operand { return Operand{konst: c, isk: true} }

// IsRef returns whether o references another instruction.
func (o Operand) IsRef() bool { return o.ref > 0 }

// IsConst returns whether o is an inline constant.
func (o Operand) IsConst() bool { return o.isk }

// Index returns the referenced instruction index.
// Index panics if o is not a reference.
func (o Operand) Index() int {
	if o.ref <= 0 {
		panic("isa: Index of non-reference operand")
	}
	return int(o.ref - 1)
}

// Value returns the constant value of o.
// Value panics if o is not a constant.
func (o Operand) Value() int64 {
	if !o.isk {
		panic("isa: Value of non-constant operand")
	}
	return o.konst
}

func (o Operand) String() string {
	switch {
	case o.isk:
		return strconv.FormatInt(o.konst, 10)
	case o.ref > 0:
		return "%" + strconv.Itoa(int(o.ref-1))
	default:
		return "<invalid>"
	}
}

// Inst is one canonical instruction.
type Inst struct {
	Result ResultKind `json:"result"`
	Op     Opcode     `json:"op"`
	Shape  Shape      `json:"shape,omitempty"`
	Cond   Cond       `json:"cond,omitempty"`
	Width  int        `json:"width,omitempty"`
	// Var is the variable number for
	// Var instructions; zero otherwise.
	Var  int       `json:"var,omitempty"`
	Args []Operand `json:"args,omitempty"`
}

func (i *Inst) String() string {
	var sb strings.Builder
	sb.WriteString(i.Op.String())
	if i.Op == Var {
		fmt.Fprintf(&sb, " %d", i.Var)
	}
	if i.Cond != CondNone {
		sb.WriteByte(' ')
		sb.WriteString(i.Cond.String())
	}
	if i.Width != 0 {
		fmt.Fprintf(&sb, ".i%d", i.Width)
	}
	for j := range i.Args {
		if j == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(i.Args[j].String())
	}
	return sb.String()
}

// Seq is an ordered canonical instruction sequence.
type Seq []Inst

// Root returns the index of the instruction
// the sequence's Infer instruction points at.
func (s Seq) Root() (int, error) {
	at := -1
	for i := range s {
		if s[i].Op != Infer {
			continue
		}
		if at >= 0 {
			return -1, malformed(i, -1, "more than one infer instruction")
		}
		at = i
	}
	if at < 0 {
		return -1, malformed(-1, -1, "missing infer instruction")
	}
	inf := &s[at]
	if len(inf.Args) != 1 || !inf.Args[0].IsRef() {
		return -1, malformed(at, 0, "infer must have exactly one reference operand")
	}
	r := inf.Args[0].Index()
	if r < 0 || r >= len(s) {
		return -1, malformed(at, 0, "infer references instruction %d outside the sequence", r)
	}
	if s[r].Op.Pseudo() {
		return -1, malformed(at, 0, "infer references pseudo-instruction %s", s[r].Op)
	}
	return r, nil
}

// Params returns the indices of the
// Var instructions in s, in order.
func (s Seq) Params() []int {
	var out []int
	for i := range s {
		if s[i].Op == Var {
			out = append(out, i)
		}
	}
	return out
}

func (s Seq) String() string {
	var sb strings.Builder
	for i := range s {
		fmt.Fprintf(&sb, "%%%d = %s\n", i, s[i].String())
	}
	return sb.String()
}
