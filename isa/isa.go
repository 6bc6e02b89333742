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

// Package isa describes the canonical,
// target-shaped instructions that peephole
// rules are expressed in once they have been
// mapped out of the rule DSL.
//
// The vocabulary is deliberately small:
// integer arithmetic, bitwise and shift
// operations, bit counting, and integer
// comparison, each in a register form and
// (where one exists) an immediate form.
// A handful of pseudo-opcodes (Var, Infer,
// ResultOp) carry rule structure rather
// than computation.
package isa

import (
	"fmt"
	"strconv"
)

// ResultKind classifies the value an
// instruction defines.
type ResultKind uint8

const (
	// NoResult is used by pseudo-instructions.
	NoResult ResultKind = iota
	// Result is a value computed by an instruction.
	Result
	// Param is a free input to the pattern.
	Param
)

var resultnames = [...]string{
	NoResult: "None",
	Result:   "Result",
	Param:    "Param",
}

func (r ResultKind) String() string {
	if int(r) < len(resultnames) {
		return resultnames[r]
	}
	return "ResultKind(" + strconv.Itoa(int(r)) + ")"
}

// Shape is the instruction-data layout
// of an instruction in the target IR.
type Shape uint8

const (
	ShapeNone Shape = iota
	Unary
	UnaryImm
	Binary
	BinaryImm
	IntCompare
	IntCompareImm
	VarShape
)

type shapedesc struct {
	text    string
	pattern string // destructuring pattern in the target IR
	argc    int    // number of operands
	imm     bool   // one operand is an inline constant
	args    string // name of the register operand field
}

var shapeinfo = [...]shapedesc{
	ShapeNone:     {text: "None"},
	Unary:         {text: "Unary", pattern: "InstructionData::Unary { opcode, arg }", argc: 1, args: "arg"},
	UnaryImm:      {text: "UnaryImm", pattern: "InstructionData::UnaryImm { opcode, imm }", argc: 1, imm: true},
	Binary:        {text: "Binary", pattern: "InstructionData::Binary { opcode, args }", argc: 2, args: "args"},
	BinaryImm:     {text: "BinaryImm", pattern: "InstructionData::BinaryImm { opcode, arg, imm }", argc: 2, imm: true, args: "arg"},
	IntCompare:    {text: "IntCompare", pattern: "InstructionData::IntCompare { opcode, cond, args }", argc: 2, args: "args"},
	IntCompareImm: {text: "IntCompareImm", pattern: "InstructionData::IntCompareImm { opcode, cond, arg, imm }", argc: 2, imm: true, args: "arg"},
	VarShape:      {text: "Var"},
}

func (s Shape) valid() bool { return s > ShapeNone && int(s) < len(shapeinfo) }

func (s Shape) String() string {
	if int(s) < len(shapeinfo) {
		return shapeinfo[s].text
	}
	return "Shape(" + strconv.Itoa(int(s)) + ")"
}

// Pattern returns the target-IR pattern that
// destructures an instruction of this shape.
func (s Shape) Pattern() string {
	if int(s) < len(shapeinfo) {
		return shapeinfo[s].pattern
	}
	return ""
}

// Imm returns whether the shape carries
// an inline immediate operand.
func (s Shape) Imm() bool { return int(s) < len(shapeinfo) && shapeinfo[s].imm }

// Arity returns the number of operands
// an instruction of this shape takes.
func (s Shape) Arity() int {
	if int(s) < len(shapeinfo) {
		return shapeinfo[s].argc
	}
	return 0
}

// ArgField returns the name of the field
// holding the register operand(s), or the
// empty string if the shape has none.
func (s Shape) ArgField() string {
	if int(s) < len(shapeinfo) {
		return shapeinfo[s].args
	}
	return ""
}

// LookupShape returns the shape with the given name.
func LookupShape(name string) (Shape, bool) {
	for i := range shapeinfo {
		if shapeinfo[i].text == name && Shape(i) != ShapeNone {
			return Shape(i), true
		}
	}
	return ShapeNone, false
}

// Opcode is a target operation.
type Opcode uint8

const (
	OpNone Opcode = iota
	Iadd
	IaddImm
	Imul
	ImulImm
	Isub
	IrsubImm
	Band
	BandImm
	Bor
	BorImm
	Bxor
	BxorImm
	Ishl
	IshlImm
	Sshr
	SshrImm
	Ushr
	UshrImm
	Popcnt
	Clz
	Ctz
	Icmp
	IcmpImm
	Iconst
	Var
	Infer
	ResultOp

	_opmax
)

type opdesc struct {
	text    string // builder / textual name
	literal string // enum literal in the target IR
	shape   Shape
	imm     Opcode // immediate-form counterpart of a register form
	compare bool
	pseudo  bool
}

var opinfo = [_opmax]opdesc{
	OpNone:   {text: "none"},
	Iadd:     {text: "iadd", literal: "Opcode::Iadd", shape: Binary, imm: IaddImm},
	IaddImm:  {text: "iadd_imm", literal: "Opcode::IaddImm", shape: BinaryImm},
	Imul:     {text: "imul", literal: "Opcode::Imul", shape: Binary, imm: ImulImm},
	ImulImm:  {text: "imul_imm", literal: "Opcode::ImulImm", shape: BinaryImm},
	Isub:     {text: "isub", literal: "Opcode::Isub", shape: Binary, imm: IrsubImm},
	IrsubImm: {text: "irsub_imm", literal: "Opcode::IrsubImm", shape: BinaryImm},
	Band:     {text: "band", literal: "Opcode::Band", shape: Binary, imm: BandImm},
	BandImm:  {text: "band_imm", literal: "Opcode::BandImm", shape: BinaryImm},
	Bor:      {text: "bor", literal: "Opcode::Bor", shape: Binary, imm: BorImm},
	BorImm:   {text: "bor_imm", literal: "Opcode::BorImm", shape: BinaryImm},
	Bxor:     {text: "bxor", literal: "Opcode::Bxor", shape: Binary, imm: BxorImm},
	BxorImm:  {text: "bxor_imm", literal: "Opcode::BxorImm", shape: BinaryImm},
	Ishl:     {text: "ishl", literal: "Opcode::Ishl", shape: Binary, imm: IshlImm},
	IshlImm:  {text: "ishl_imm", literal: "Opcode::IshlImm", shape: BinaryImm},
	Sshr:     {text: "sshr", literal: "Opcode::Sshr", shape: Binary, imm: SshrImm},
	SshrImm:  {text: "sshr_imm", literal: "Opcode::SshrImm", shape: BinaryImm},
	Ushr:     {text: "ushr", literal: "Opcode::Ushr", shape: Binary, imm: UshrImm},
	UshrImm:  {text: "ushr_imm", literal: "Opcode::UshrImm", shape: BinaryImm},
	Popcnt:   {text: "popcnt", literal: "Opcode::Popcnt", shape: Unary},
	Clz:      {text: "clz", literal: "Opcode::Clz", shape: Unary},
	Ctz:      {text: "ctz", literal: "Opcode::Ctz", shape: Unary},
	Icmp:     {text: "icmp", literal: "Opcode::Icmp", shape: IntCompare, imm: IcmpImm, compare: true},
	IcmpImm:  {text: "icmp_imm", literal: "Opcode::IcmpImm", shape: IntCompareImm, compare: true},
	Iconst:   {text: "iconst", literal: "Opcode::Iconst", shape: UnaryImm},
	Var:      {text: "var", shape: VarShape, pseudo: true},
	Infer:    {text: "infer", pseudo: true},
	ResultOp: {text: "result", pseudo: true},
}

var name2op map[string]Opcode

func init() {
	name2op = make(map[string]Opcode, _opmax)
	for i := Opcode(1); i < _opmax; i++ {
		name2op[opinfo[i].text] = i
	}
}

func (o Opcode) valid() bool { return o > OpNone && o < _opmax }

func (o Opcode) String() string {
	if o < _opmax {
		return opinfo[o].text
	}
	return "Opcode(" + strconv.Itoa(int(o)) + ")"
}

// Literal returns the target-IR enum literal
// for o, or the empty string for pseudo-opcodes.
func (o Opcode) Literal() string {
	if o < _opmax {
		return opinfo[o].literal
	}
	return ""
}

// Shape returns the instruction-data shape
// that instructions with opcode o must have.
func (o Opcode) Shape() Shape {
	if o < _opmax {
		return opinfo[o].shape
	}
	return ShapeNone
}

// Compare returns whether o is a comparison
// (and therefore carries a condition code).
func (o Opcode) Compare() bool { return o < _opmax && opinfo[o].compare }

// Pseudo returns whether o is one of
// Var, Infer, or ResultOp.
func (o Opcode) Pseudo() bool { return o < _opmax && opinfo[o].pseudo }

// ImmForm returns the immediate form of a
// register-form opcode, if there is one.
func (o Opcode) ImmForm() (Opcode, bool) {
	if o < _opmax && opinfo[o].imm != OpNone {
		return opinfo[o].imm, true
	}
	return OpNone, false
}

// LookupOpcode returns the opcode with the given textual name.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := name2op[name]
	return op, ok
}

// Cond is an integer comparison condition code.
//
// Only "less-than" orderings appear; the rule
// language always normalizes to them.
type Cond uint8

const (
	CondNone Cond = iota
	Eq
	Ne
	Slt
	Ult
	Sle
	Ule

	_condmax
)

var condinfo = [_condmax]struct{ text, literal string }{
	CondNone: {"", ""},
	Eq:       {"eq", "IntCC::Equal"},
	Ne:       {"ne", "IntCC::NotEqual"},
	Slt:      {"slt", "IntCC::SignedLessThan"},
	Ult:      {"ult", "IntCC::UnsignedLessThan"},
	Sle:      {"sle", "IntCC::SignedLessThanOrEqual"},
	Ule:      {"ule", "IntCC::UnsignedLessThanOrEqual"},
}

func (c Cond) valid() bool { return c > CondNone && c < _condmax }

func (c Cond) String() string {
	if c < _condmax {
		return condinfo[c].text
	}
	return fmt.Sprintf("Cond(%d)", int(c))
}

// Literal returns the target-IR condition code literal.
func (c Cond) Literal() string {
	if c < _condmax {
		return condinfo[c].literal
	}
	return ""
}

// LookupCond returns the condition with the given name.
func LookupCond(name string) (Cond, bool) {
	for i := Cond(1); i < _condmax; i++ {
		if condinfo[i].text == name {
			return i, true
		}
	}
	return CondNone, false
}

// ShapeLiteral returns the destructuring
// pattern for the shape named by text.
func ShapeLiteral(text string) (string, error) {
	s, ok := LookupShape(text)
	if !ok || s == VarShape {
		return "", &UnsupportedError{What: "instruction data", Name: text}
	}
	return s.Pattern(), nil
}

// OpcodeLiteral returns the enum literal
// for the opcode named by text.
func OpcodeLiteral(text string) (string, error) {
	op, ok := LookupOpcode(text)
	if !ok || op.Pseudo() {
		return "", &UnsupportedError{What: "opcode", Name: text}
	}
	return op.Literal(), nil
}

// CondLiteral returns the condition code
// literal for the condition named by text.
func CondLiteral(text string) (string, error) {
	c, ok := LookupCond(text)
	if !ok {
		return "", &UnsupportedError{What: "condition", Name: text}
	}
	return c.Literal(), nil
}
