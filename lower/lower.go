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

// Package lower maps parsed rewrite rules
// onto canonical instruction sequences.
//
// The left-hand side of a rule becomes a
// pattern sequence ending in an Infer
// instruction; the right-hand side becomes
// a replacement sequence. Constant operands
// select immediate-form opcodes, and constant
// sub-expressions on the right-hand side are
// folded away.
package lower

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/SnellerInc/peepgen/isa"
	"github.com/SnellerInc/peepgen/rules"
)

// Error is an error associated
// with a position in a rule file.
type Error struct {
	Pos scanner.Position
	Err error
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return e.Pos.String() + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func errat(pos scanner.Position, err error) *Error {
	return &Error{Pos: pos, Err: err}
}

func malformedf(pos scanner.Position, f string, args ...any) *Error {
	return errat(pos, &isa.MalformedError{Inst: -1, Operand: -1, Msg: fmt.Sprintf(f, args...)})
}

func unsupported(pos scanner.Position, what, name string) *Error {
	return errat(pos, &isa.UnsupportedError{What: what, Name: name})
}

type opdesc struct {
	op   isa.Opcode
	cond isa.Cond
	// constant may appear in either operand
	commutes bool
}

// binary operations by rule-language name
var binops = map[string]opdesc{
	"add":  {op: isa.Iadd, commutes: true},
	"sub":  {op: isa.Isub},
	"mul":  {op: isa.Imul, commutes: true},
	"and":  {op: isa.Band, commutes: true},
	"or":   {op: isa.Bor, commutes: true},
	"xor":  {op: isa.Bxor, commutes: true},
	"shl":  {op: isa.Ishl},
	"lshr": {op: isa.Ushr},
	"ashr": {op: isa.Sshr},
	"eq":   {op: isa.Icmp, cond: isa.Eq, commutes: true},
	"ne":   {op: isa.Icmp, cond: isa.Ne, commutes: true},
	"slt":  {op: isa.Icmp, cond: isa.Slt},
	"ult":  {op: isa.Icmp, cond: isa.Ult},
	"sle":  {op: isa.Icmp, cond: isa.Sle},
	"ule":  {op: isa.Icmp, cond: isa.Ule},
}

var unops = map[string]isa.Opcode{
	"ctpop": isa.Popcnt,
	"ctlz":  isa.Clz,
	"cttz":  isa.Ctz,
}

func width(pos scanner.Position, ty string) (int, error) {
	n, ok := strings.CutPrefix(ty, "i")
	if ok {
		w, err := strconv.Atoi(n)
		if err == nil {
			switch w {
			case 1, 8, 16, 32, 64, 128:
				return w, nil
			}
		}
	}
	return 0, unsupported(pos, "type", ty)
}

// builder accumulates one canonical sequence
type builder struct {
	seq   isa.Seq
	names map[string]isa.Operand
	nvars int
	// for the replacement: the pattern,
	// whose variables it may use
	lhs *builder
}

func newBuilder(lhs *builder) *builder {
	return &builder{names: make(map[string]isa.Operand), lhs: lhs}
}

func (b *builder) push(in isa.Inst) isa.Operand {
	b.seq = append(b.seq, in)
	return isa.Ref(len(b.seq) - 1)
}

func (b *builder) width(o isa.Operand) int {
	if o.IsRef() {
		return b.seq[o.Index()].Width
	}
	return 0
}

// Rule lowers r into a pattern sequence
// and a replacement sequence. Errors are
// returned as *Error wrapping either an
// *isa.UnsupportedError or an *isa.MalformedError.
func Rule(r *rules.Rule) (lhs, rhs isa.Seq, err error) {
	if len(r.From) == 0 {
		return nil, nil, malformedf(r.Location, "rule with empty pattern")
	}
	if len(r.From) > 1 {
		return nil, nil, unsupported(r.Location, "predicate", r.From[1].String())
	}
	pat, ok := r.From[0].(rules.List)
	if !ok {
		return nil, nil, malformedf(r.Location, "expected pattern to be a list, found %s", r.From[0])
	}
	lb := newBuilder(nil)
	root, err := lb.pattern(&rules.Term{Value: pat, Location: r.Location})
	if err != nil {
		return nil, nil, err
	}
	if !root.IsRef() || lb.seq[root.Index()].Op == isa.Var {
		return nil, nil, malformedf(r.Location, "pattern must be an operation")
	}
	lb.push(isa.Inst{Op: isa.Infer, Args: []isa.Operand{root}})
	if err := lb.seq.Validate(); err != nil {
		return nil, nil, errat(r.Location, err)
	}

	rb := newBuilder(lb)
	out, err := rb.replacement(&r.To)
	if err != nil {
		return nil, nil, err
	}
	if out.IsConst() || rb.seq[out.Index()].Op == isa.Var {
		rb.push(isa.Inst{Op: isa.ResultOp, Args: []isa.Operand{out}})
	} else if out.Index() != len(rb.seq)-1 {
		// the replacement value is a shared
		// sub-expression, not the last instruction
		rb.push(isa.Inst{Op: isa.ResultOp, Args: []isa.Operand{out}})
	}
	if err := rb.seq.ValidateReplacement(); err != nil {
		return nil, nil, errat(r.To.Location, err)
	}
	return lb.seq, rb.seq, nil
}

// pattern lowers one pattern term
func (b *builder) pattern(t *rules.Term) (isa.Operand, error) {
	switch v := t.Value.(type) {
	case nil:
		if t.Name == "" || t.Name == "_" {
			return isa.Operand{}, malformedf(t.Location, "wildcard operands are not supported; use (var iN)")
		}
		o, ok := b.names[t.Name]
		if !ok {
			return isa.Operand{}, malformedf(t.Location, "variable %s used before it is declared", t.Name)
		}
		return o, nil
	case rules.Int:
		if t.Name != "" {
			return isa.Operand{}, malformedf(t.Location, "cannot bind constant to %s", t.Name)
		}
		return isa.Const(int64(v)), nil
	case rules.List:
		if _, ok := b.names[t.Name]; ok && t.Name != "" {
			return isa.Operand{}, malformedf(t.Location, "variable %s re-bound", t.Name)
		}
		o, err := b.list(t, v, b.pattern, false)
		if err != nil {
			return o, err
		}
		if t.Name != "" && t.Name != "_" {
			b.names[t.Name] = o
		}
		return o, nil
	default:
		return isa.Operand{}, unsupported(t.Location, "term", t.String())
	}
}

// replacement lowers one replacement term
func (b *builder) replacement(t *rules.Term) (isa.Operand, error) {
	switch v := t.Value.(type) {
	case nil:
		if o, ok := b.names[t.Name]; ok {
			return o, nil
		}
		if o, ok := b.lhs.names[t.Name]; ok && o.IsRef() {
			in := b.lhs.seq[o.Index()]
			if in.Op != isa.Var {
				return isa.Operand{}, unsupported(t.Location, "reference to matched sub-expression", t.Name)
			}
			ref := b.push(in)
			b.names[t.Name] = ref
			return ref, nil
		}
		return isa.Operand{}, malformedf(t.Location, "unknown variable %s in replacement", t.Name)
	case rules.Int:
		return isa.Const(int64(v)), nil
	case rules.List:
		if v.Head() == "var" {
			return isa.Operand{}, malformedf(t.Location, "cannot declare variables in a replacement")
		}
		o, err := b.list(t, v, b.replacement, true)
		if err != nil {
			return o, err
		}
		if t.Name != "" && t.Name != "_" {
			b.names[t.Name] = o
		}
		return o, nil
	default:
		return isa.Operand{}, unsupported(t.Location, "term", t.String())
	}
}

func (b *builder) list(t *rules.Term, lst rules.List, sub func(*rules.Term) (isa.Operand, error), fold bool) (isa.Operand, error) {
	head := lst.Head()
	if head == "" {
		return isa.Operand{}, malformedf(t.Location, "list %s has no operation in head position", lst)
	}
	args := lst[1:]
	if head == "var" {
		if len(args) != 1 || args[0].Value != nil {
			return isa.Operand{}, malformedf(t.Location, "expected (var <type>)")
		}
		w, err := width(args[0].Location, args[0].Name)
		if err != nil {
			return isa.Operand{}, err
		}
		b.nvars++
		return b.push(isa.Inst{
			Result: isa.Param,
			Op:     isa.Var,
			Shape:  isa.VarShape,
			Width:  w,
			Var:    b.nvars,
		}), nil
	}
	if op, ok := unops[head]; ok {
		if len(args) != 1 {
			return isa.Operand{}, malformedf(t.Location, "%s takes 1 operand, got %d", head, len(args))
		}
		x, err := sub(&args[0])
		if err != nil {
			return x, err
		}
		if x.IsConst() {
			if fold {
				return isa.Const(fold1(op, x.Value())), nil
			}
			return isa.Operand{}, malformedf(t.Location, "%s of a constant in a pattern", head)
		}
		return b.push(isa.Inst{
			Result: isa.Result,
			Op:     op,
			Shape:  op.Shape(),
			Width:  b.width(x),
			Args:   []isa.Operand{x},
		}), nil
	}
	desc, ok := binops[head]
	if !ok {
		return isa.Operand{}, unsupported(lst[0].Location, "operation", head)
	}
	if len(args) != 2 {
		return isa.Operand{}, malformedf(t.Location, "%s takes 2 operands, got %d", head, len(args))
	}
	x, err := sub(&args[0])
	if err != nil {
		return x, err
	}
	y, err := sub(&args[1])
	if err != nil {
		return y, err
	}
	return b.binary(t, head, desc, x, y, fold)
}

func (b *builder) binary(t *rules.Term, head string, desc opdesc, x, y isa.Operand, fold bool) (isa.Operand, error) {
	if x.IsConst() && y.IsConst() {
		if fold {
			return isa.Const(fold2(desc, x.Value(), y.Value())), nil
		}
		return isa.Operand{}, malformedf(t.Location, "%s of two constants in a pattern", head)
	}
	w := b.width(x)
	if x.IsConst() {
		w = b.width(y)
	} else if y.IsRef() && b.width(y) != w && !isShift(desc.op) {
		return isa.Operand{}, malformedf(t.Location, "%s operands have widths i%d and i%d", head, w, b.width(y))
	}
	op, cond := desc.op, desc.cond
	if cond != isa.CondNone {
		w = 1
	}
	args := []isa.Operand{x, y}
	if x.IsConst() || y.IsConst() {
		switch {
		case y.IsConst() && op == isa.Isub:
			// x - c == x + (-c)
			op, args = isa.IaddImm, []isa.Operand{x, isa.Const(-y.Value())}
		case x.IsConst() && op == isa.Isub:
			op, args = isa.IrsubImm, []isa.Operand{y, x}
		case x.IsConst() && !desc.commutes:
			return isa.Operand{}, unsupported(t.Location, "constant in first operand of", head)
		default:
			if x.IsConst() {
				args = []isa.Operand{y, x}
			}
			op, _ = op.ImmForm()
		}
	}
	return b.push(isa.Inst{
		Result: isa.Result,
		Op:     op,
		Shape:  op.Shape(),
		Cond:   cond,
		Width:  w,
		Args:   args,
	}), nil
}

func isShift(op isa.Opcode) bool {
	return op == isa.Ishl || op == isa.Ushr || op == isa.Sshr
}

// ErrNotConstant is returned by Const when
// a term does not fold to a constant.
var ErrNotConstant = errors.New("lower: term is not constant")

// Const folds t, which must be made up only
// of integer literals and operations on them.
func Const(t *rules.Term) (int64, error) {
	b := newBuilder(newBuilder(nil))
	o, err := b.replacement(t)
	if err != nil {
		return 0, err
	}
	if !o.IsConst() {
		return 0, ErrNotConstant
	}
	return o.Value(), nil
}
