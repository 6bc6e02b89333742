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

package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SnellerInc/peepgen/dtree"
	"github.com/SnellerInc/peepgen/isa"
)

// the type of the instruction being replaced
const resultType = "pos.func.dfg.value_type(pos.func.dfg.first_result(inst))"

// action renders a replacement in place.
//
// Every instruction but the last is inserted
// ahead of the matched instruction and named
// after its index in the replacement; the last
// replaces the matched instruction. Pattern
// variables resolve to the expressions they were
// matched through.
func (g *generator) action(a *dtree.Action, st *state) error {
	rhs := a.Replacement
	names := make([]string, len(rhs))
	var body []int
	for i := range rhs {
		switch rhs[i].Op {
		case isa.Var:
			p, ok := st.params[rhs[i].Var]
			if !ok {
				return fmt.Errorf("variable %d is not bound on this path", rhs[i].Var)
			}
			names[i] = p
		case isa.Infer:
			return &isa.MalformedError{Inst: i, Operand: -1, Msg: "infer in replacement"}
		default:
			body = append(body, i)
		}
	}
	if len(body) == 0 {
		return &isa.MalformedError{Inst: -1, Operand: -1, Msg: "empty replacement"}
	}
	g.line("// %s", oneline(a.Rule))
	for _, i := range body[:len(body)-1] {
		if rhs[i].Op == isa.ResultOp {
			return &isa.MalformedError{Inst: i, Operand: -1, Msg: "result must be the last instruction"}
		}
		call, err := g.call(&rhs[i], names)
		if err != nil {
			return err
		}
		names[i] = "v" + strconv.Itoa(i)
		g.line("let %s = pos.ins().%s;", names[i], call)
	}
	last := &rhs[body[len(body)-1]]
	if last.Op == isa.ResultOp {
		if len(last.Args) != 1 {
			return &isa.MalformedError{Inst: body[len(body)-1], Operand: -1, Msg: "result takes exactly one operand"}
		}
		o := last.Args[0]
		if o.IsConst() {
			g.line("let ty = %s;", resultType)
			g.line("pos.func.dfg.replace(inst).iconst(ty, %d);", o.Value())
		} else {
			v, err := operand(o, names)
			if err != nil {
				return err
			}
			g.line("pos.func.dfg.replace(inst).copy(%s);", v)
		}
	} else {
		call, err := g.call(last, names)
		if err != nil {
			return err
		}
		g.line("pos.func.dfg.replace(inst).%s;", call)
	}
	g.line("return;")
	return nil
}

func oneline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func operand(o isa.Operand, names []string) (string, error) {
	if o.IsConst() {
		return strconv.FormatInt(o.Value(), 10), nil
	}
	if !o.IsRef() || o.Index() >= len(names) || names[o.Index()] == "" {
		return "", &isa.MalformedError{Inst: -1, Operand: -1, Msg: "operand " + o.String() + " does not name an earlier value"}
	}
	return names[o.Index()], nil
}

// call renders an instruction-builder call;
// register operands precede immediates
func (g *generator) call(in *isa.Inst, names []string) (string, error) {
	if _, err := isa.OpcodeLiteral(in.Op.String()); err != nil {
		return "", err
	}
	var args []string
	if in.Op == isa.Iconst {
		if in.Width > 0 {
			args = append(args, "types::I"+strconv.Itoa(max(in.Width, 8)))
		} else {
			args = append(args, resultType)
		}
	}
	if in.Op.Compare() {
		lit, err := isa.CondLiteral(in.Cond.String())
		if err != nil {
			return "", err
		}
		args = append(args, lit)
	}
	for pass := 0; pass < 2; pass++ {
		for _, o := range in.Args {
			if o.IsConst() != (pass == 1) {
				continue
			}
			s, err := operand(o, names)
			if err != nil {
				return "", err
			}
			args = append(args, s)
		}
	}
	return in.Op.String() + "(" + strings.Join(args, ", ") + ")", nil
}
