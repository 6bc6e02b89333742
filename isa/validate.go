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

// Validate checks that s is a well-formed
// left-hand side: exactly one Infer with a single
// reference operand, every other instruction drawn
// from the supported vocabulary with operands that
// match its shape, and every reference pointing
// strictly backwards at a Var or a real instruction.
func (s Seq) Validate() error {
	for i := range s {
		if err := s.check(i, false); err != nil {
			return err
		}
	}
	if err := s.checkvars(); err != nil {
		return err
	}
	_, err := s.Root()
	return err
}

// checkvars checks that variable
// numbers are positive and unique
func (s Seq) checkvars() error {
	seen := make(map[int]int)
	for i := range s {
		if s[i].Op != Var {
			continue
		}
		if s[i].Var <= 0 {
			return malformed(i, -1, "variable number must be positive")
		}
		if j, ok := seen[s[i].Var]; ok {
			return malformed(i, -1, "variable %d already declared by %%%d", s[i].Var, j)
		}
		seen[s[i].Var] = i
	}
	return nil
}

// ValidateReplacement checks that s is a well-formed
// right-hand side. A replacement has no Infer
// instruction; it may end with a single ResultOp
// pseudo-instruction naming the replacement value,
// and it must produce a value one way or the other.
func (s Seq) ValidateReplacement() error {
	if len(s) == 0 {
		return malformed(-1, -1, "empty replacement")
	}
	for i := range s {
		if err := s.check(i, true); err != nil {
			return err
		}
	}
	if err := s.checkvars(); err != nil {
		return err
	}
	last := &s[len(s)-1]
	if last.Op == Var {
		return malformed(len(s)-1, -1, "replacement must not end with a var")
	}
	return nil
}

func (s Seq) check(i int, rhs bool) error {
	in := &s[i]
	if !in.Op.valid() {
		return &UnsupportedError{What: "opcode", Name: in.Op.String()}
	}
	if in.Width < 0 {
		return malformed(i, -1, "negative width %d", in.Width)
	}
	switch in.Op {
	case Var:
		if in.Result != Param {
			return malformed(i, -1, "var must define a parameter, not %s", in.Result)
		}
		if len(in.Args) != 0 {
			return malformed(i, -1, "var takes no operands")
		}
		if in.Cond != CondNone {
			return malformed(i, -1, "var has a condition")
		}
		return nil
	case Infer:
		if rhs {
			return malformed(i, -1, "infer in replacement")
		}
		// checked by Root
		return nil
	case ResultOp:
		if !rhs {
			return malformed(i, -1, "result in pattern")
		}
		if i != len(s)-1 {
			return malformed(i, -1, "result must be the last instruction")
		}
		if len(in.Args) != 1 {
			return malformed(i, -1, "result takes exactly one operand")
		}
		return s.checkref(i, 0)
	}
	if in.Result != Result {
		return malformed(i, -1, "%s must define a result, not %s", in.Op, in.Result)
	}
	if in.Shape != in.Op.Shape() {
		if !in.Shape.valid() {
			return &UnsupportedError{What: "instruction data", Name: in.Shape.String()}
		}
		return malformed(i, -1, "opcode %s has shape %s, not %s", in.Op, in.Op.Shape(), in.Shape)
	}
	if in.Op.Compare() {
		if !in.Cond.valid() {
			return &UnsupportedError{What: "condition", Name: in.Cond.String()}
		}
	} else if in.Cond != CondNone {
		return malformed(i, -1, "condition %s on non-comparison %s", in.Cond, in.Op)
	}
	if n := in.Shape.Arity(); len(in.Args) != n {
		return malformed(i, -1, "%s takes %d operands, got %d", in.Shape, n, len(in.Args))
	}
	consts := 0
	for j := range in.Args {
		if in.Args[j].IsConst() {
			consts++
			continue
		}
		if err := s.checkref(i, j); err != nil {
			return err
		}
	}
	if in.Shape.Imm() {
		if consts != 1 {
			return malformed(i, -1, "%s needs exactly one constant operand, got %d", in.Shape, consts)
		}
	} else if consts != 0 {
		return malformed(i, -1, "%s takes no constant operands", in.Shape)
	}
	return nil
}

func (s Seq) checkref(i, j int) error {
	a := s[i].Args[j]
	if a.IsConst() {
		return nil
	}
	if !a.IsRef() {
		return malformed(i, j, "operand is neither a reference nor a constant")
	}
	r := a.Index()
	if r >= i {
		return malformed(i, j, "reference %%%d does not point backwards", r)
	}
	if op := s[r].Op; op == Infer || op == ResultOp {
		return malformed(i, j, "reference to pseudo-instruction %s", op)
	}
	return nil
}
