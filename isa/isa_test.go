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
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// addimm is x + 5 with x an i32 parameter
func addimm() Seq {
	return Seq{
		{Result: Param, Op: Var, Shape: VarShape, Width: 32, Var: 1},
		{Result: Result, Op: IaddImm, Shape: BinaryImm, Width: 32, Args: []Operand{Ref(0), Const(5)}},
		{Op: Infer, Args: []Operand{Ref(1)}},
	}
}

func TestVocabulary(t *testing.T) {
	for op := Opcode(1); op < _opmax; op++ {
		got, ok := LookupOpcode(op.String())
		if !ok || got != op {
			t.Errorf("LookupOpcode(%q) = %v, %v", op.String(), got, ok)
		}
		if op.Pseudo() {
			if op.Literal() != "" {
				t.Errorf("pseudo-opcode %s has literal %q", op, op.Literal())
			}
			continue
		}
		if !op.Shape().valid() {
			t.Errorf("opcode %s has no shape", op)
		}
		if imm, ok := op.ImmForm(); ok && !imm.Shape().Imm() {
			t.Errorf("immediate form %s of %s has register shape %s", imm, op, imm.Shape())
		}
	}
	lits := []struct {
		text, want string
		lookup     func(string) (string, error)
	}{
		{"iadd_imm", "Opcode::IaddImm", OpcodeLiteral},
		{"irsub_imm", "Opcode::IrsubImm", OpcodeLiteral},
		{"popcnt", "Opcode::Popcnt", OpcodeLiteral},
		{"ule", "IntCC::UnsignedLessThanOrEqual", CondLiteral},
		{"slt", "IntCC::SignedLessThan", CondLiteral},
		{"BinaryImm", "InstructionData::BinaryImm { opcode, arg, imm }", ShapeLiteral},
		{"IntCompare", "InstructionData::IntCompare { opcode, cond, args }", ShapeLiteral},
	}
	for i := range lits {
		got, err := lits[i].lookup(lits[i].text)
		if err != nil {
			t.Errorf("%s: %v", lits[i].text, err)
			continue
		}
		if got != lits[i].want {
			t.Errorf("%s: got %q want %q", lits[i].text, got, lits[i].want)
		}
	}
	unsupported := []struct {
		text   string
		lookup func(string) (string, error)
	}{
		{"fadd", OpcodeLiteral},
		{"var", OpcodeLiteral},
		{"sgt", CondLiteral},
		{"Ternary", ShapeLiteral},
		{"Var", ShapeLiteral},
	}
	for i := range unsupported {
		_, err := unsupported[i].lookup(unsupported[i].text)
		var ue *UnsupportedError
		if !errors.As(err, &ue) {
			t.Errorf("%s: expected UnsupportedError, got %v", unsupported[i].text, err)
		} else if ue.Name != unsupported[i].text {
			t.Errorf("%s: error names %q", unsupported[i].text, ue.Name)
		}
	}
}

func TestRoot(t *testing.T) {
	s := addimm()
	r, err := s.Root()
	if err != nil {
		t.Fatal(err)
	}
	if r != 1 {
		t.Errorf("root = %d, want 1", r)
	}
	if p := s.Params(); !cmp.Equal(p, []int{0}) {
		t.Errorf("params = %v", p)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mod       func(s Seq) Seq
		malformed bool // otherwise unsupported
	}{
		// missing infer
		{func(s Seq) Seq { return s[:2] }, true},
		// two infers
		{func(s Seq) Seq { return append(s, s[2]) }, true},
		// infer with a constant
		{func(s Seq) Seq { s[2].Args[0] = Const(1); return s }, true},
		// infer pointing at a var
		{func(s Seq) Seq { s[2].Args[0] = Ref(0); return s }, true},
		// forward reference
		{func(s Seq) Seq { s[1].Args[0] = Ref(1); return s }, true},
		// zero operand
		{func(s Seq) Seq { s[1].Args[0] = Operand{}; return s }, true},
		// arity mismatch
		{func(s Seq) Seq { s[1].Args = s[1].Args[:1]; return s }, true},
		// two constants in an immediate form
		{func(s Seq) Seq { s[1].Args[0] = Const(3); return s }, true},
		// shape does not match opcode
		{func(s Seq) Seq { s[1].Shape = Binary; return s }, true},
		// condition on an add
		{func(s Seq) Seq { s[1].Cond = Eq; return s }, true},
		// unknown opcode
		{func(s Seq) Seq { s[1].Op = Opcode(200); return s }, false},
		// comparison without a condition
		{func(s Seq) Seq { s[1].Op = IcmpImm; s[1].Shape = IntCompareImm; return s }, false},
		// bad shape
		{func(s Seq) Seq { s[1].Shape = Shape(99); return s }, false},
	}
	if err := addimm().Validate(); err != nil {
		t.Fatalf("valid sequence rejected: %v", err)
	}
	for i := range tests {
		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			s := tests[i].mod(addimm())
			err := s.Validate()
			if err == nil {
				t.Fatalf("accepted %s", s)
			}
			var me *MalformedError
			var ue *UnsupportedError
			if tests[i].malformed && !errors.As(err, &me) {
				t.Errorf("want MalformedError, got %T: %v", err, err)
			}
			if !tests[i].malformed && !errors.As(err, &ue) {
				t.Errorf("want UnsupportedError, got %T: %v", err, err)
			}
		})
	}
}

func TestValidateReplacement(t *testing.T) {
	good := []Seq{
		{
			{Result: Param, Op: Var, Shape: VarShape, Width: 32, Var: 1},
			{Result: Result, Op: ImulImm, Shape: BinaryImm, Width: 32, Args: []Operand{Ref(0), Const(10)}},
		},
		{
			{Op: ResultOp, Args: []Operand{Const(0)}},
		},
		{
			{Result: Param, Op: Var, Shape: VarShape, Width: 32, Var: 1},
			{Op: ResultOp, Args: []Operand{Ref(0)}},
		},
	}
	for i := range good {
		if err := good[i].ValidateReplacement(); err != nil {
			t.Errorf("case %d: %v", i, err)
		}
	}
	bad := []Seq{
		nil,
		addimm(),
		{{Result: Param, Op: Var, Shape: VarShape, Width: 32, Var: 1}},
		{
			{Op: ResultOp, Args: []Operand{Const(0)}},
			{Result: Param, Op: Var, Shape: VarShape, Width: 32, Var: 1},
		},
	}
	for i := range bad {
		if err := bad[i].ValidateReplacement(); err == nil {
			t.Errorf("case %d: accepted %s", i, bad[i])
		}
	}
}

func TestJSON(t *testing.T) {
	text := `[
  {"op": "var", "width": 32, "var": 1},
  {"op": "iadd_imm", "width": 32, "args": ["%0", 5]},
  {"op": "icmp_imm", "cond": "slt", "width": 1, "args": ["%1", -3]},
  {"op": "infer", "args": ["%2"]}
]`
	var s Seq
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		t.Fatal(err)
	}
	want := addimm()
	want = append(want[:2],
		Inst{Result: Result, Op: IcmpImm, Shape: IntCompareImm, Cond: Slt, Width: 1, Args: []Operand{Ref(1), Const(-3)}},
		Inst{Op: Infer, Args: []Operand{Ref(2)}},
	)
	if diff := cmp.Diff(want, s, cmp.AllowUnexported(Operand{})); diff != "" {
		t.Fatalf("decoded sequence differs (-want +got):\n%s", diff)
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	// re-encoding must decode to the same thing
	buf, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var again Seq
	if err := json.Unmarshal(buf, &again); err != nil {
		t.Fatalf("%s: %v", buf, err)
	}
	if diff := cmp.Diff(s, again, cmp.AllowUnexported(Operand{})); diff != "" {
		t.Fatalf("re-decoded sequence differs:\n%s", diff)
	}

	errs := []string{
		`[{"op": "fadd"}]`,
		`[{"op": "iadd", "args": ["x", 1]}]`,
		`[{"op": "iadd", "args": [1.5, 1]}]`,
		`[{"op": "icmp", "cond": "sgt"}]`,
		`[{"op": "iadd", "shape": "Ternary"}]`,
	}
	for i := range errs {
		var s Seq
		if err := json.Unmarshal([]byte(errs[i]), &s); err == nil {
			t.Errorf("%s: accepted", errs[i])
		}
	}
}

func TestString(t *testing.T) {
	want := "%0 = var 1.i32\n%1 = iadd_imm.i32 %0, 5\n%2 = infer %1\n"
	if got := addimm().String(); got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}
