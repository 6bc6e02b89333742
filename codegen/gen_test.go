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
	"errors"
	"strings"
	"testing"

	"github.com/SnellerInc/peepgen/dtree"
	"github.com/SnellerInc/peepgen/isa"
	"github.com/SnellerInc/peepgen/lower"
	"github.com/SnellerInc/peepgen/rules"

	"github.com/google/go-cmp/cmp"
)

func tree(t *testing.T, text ...string) *dtree.Tree {
	t.Helper()
	tr := dtree.New()
	for i := range text {
		lst, err := rules.ParseNamed("test.rules", strings.NewReader(text[i]))
		if err != nil {
			t.Fatal(err)
		}
		lhs, rhs, err := lower.Rule(&lst[0])
		if err != nil {
			t.Fatalf("%s: %s", text[i], err)
		}
		trie, err := dtree.Build(lhs)
		if err != nil {
			t.Fatalf("%s: %s", text[i], err)
		}
		if _, err := tr.Insert(trie, dtree.Action{Rule: text[i], Replacement: rhs}); err != nil {
			t.Fatalf("%s: %s", text[i], err)
		}
	}
	return tr
}

func generate(t *testing.T, text ...string) *Func {
	t.Helper()
	fn, err := Generate(tree(t, text...), "superopt_0")
	if err != nil {
		t.Fatal(err)
	}
	return fn
}

func TestScenario(t *testing.T) {
	fn := generate(t, `(add x:(var i32) 5) -> (mul x (add 5 5))`)
	want := `fn superopt_0(pos: &mut FuncCursor, inst: Inst) {
    match pos.func.dfg[inst] {
        InstructionData::BinaryImm { opcode, arg, imm } => {
            let args_0 = arg;
            let rhs_0 : i64 = imm.into();
            match opcode {
                Opcode::IaddImm => {
                    if rhs_0 == 5 {
                        // (add x:(var i32) 5) -> (mul x (add 5 5))
                        pos.func.dfg.replace(inst).imul_imm(args_0, 10);
                        return;
                    }
                },
                _ => {},
            }
        },
        _ => {},
    }
}
`
	if diff := cmp.Diff(want, fn.Text); diff != "" {
		t.Fatalf("generated text differs (-want +got):\n%s", diff)
	}
	counts := []struct {
		text string
		n    int
	}{
		{"match pos.func.dfg[inst] {", 1},
		{"Opcode::IaddImm => {", 1},
		{"if rhs_0 == 5 {", 1},
		{"imul_imm(args_0, 10)", 1},
	}
	for _, c := range counts {
		if got := strings.Count(fn.Text, c.text); got != c.n {
			t.Errorf("%q appears %d times", c.text, got)
		}
	}
	if fn.Stats.Actions != 1 || fn.Stats.Nodes != 10 {
		t.Errorf("stats %+v", fn.Stats)
	}
}

func TestSharedBranch(t *testing.T) {
	fn := generate(t,
		`(add x:(var i32) 0) -> x`,
		`(add (mul x:(var i32) 3) 5) -> (mul x 15)`,
	)
	want := `fn superopt_0(pos: &mut FuncCursor, inst: Inst) {
    match pos.func.dfg[inst] {
        InstructionData::BinaryImm { opcode, arg, imm } => {
            let args_0 = arg;
            let rhs_0 : i64 = imm.into();
            match opcode {
                Opcode::IaddImm => {
                    match pos.func.dfg.value_def(args_0) {
                        ValueDef::Result(inst_1, _) => {
                            match pos.func.dfg[inst_1] {
                                InstructionData::BinaryImm { opcode, arg, imm } => {
                                    let args_1 = arg;
                                    let rhs_1 : i64 = imm.into();
                                    match opcode {
                                        Opcode::ImulImm => {
                                            if rhs_1 == 3 {
                                                if rhs_0 == 5 {
                                                    // (add (mul x:(var i32) 3) 5) -> (mul x 15)
                                                    pos.func.dfg.replace(inst).imul_imm(args_1, 15);
                                                    return;
                                                }
                                            }
                                        },
                                        _ => {},
                                    }
                                },
                                _ => {},
                            }
                        },
                        _ => {
                            if rhs_0 == 0 {
                                // (add x:(var i32) 0) -> x
                                pos.func.dfg.replace(inst).copy(args_0);
                                return;
                            }
                        },
                    }
                },
                _ => {},
            }
        },
        _ => {},
    }
}
`
	if diff := cmp.Diff(want, fn.Text); diff != "" {
		t.Fatalf("generated text differs (-want +got):\n%s", diff)
	}
}

func TestSingleCatchAll(t *testing.T) {
	fn := generate(t,
		`(add (mul y:(var i32) z:(var i32)) x:(var i32)) -> (mul y x)`,
		`(add x:(var i32) x) -> (shl x 1)`,
		`(add x:(var i32) y:(var i32)) -> (sub y x)`,
	)
	want := `fn superopt_0(pos: &mut FuncCursor, inst: Inst) {
    match pos.func.dfg[inst] {
        InstructionData::Binary { opcode, args } => {
            let args_0 = args;
            match opcode {
                Opcode::Iadd => {
                    match pos.func.dfg.value_def(args_0[0]) {
                        ValueDef::Result(inst_1, _) => {
                            match pos.func.dfg[inst_1] {
                                InstructionData::Binary { opcode, args } => {
                                    let args_1 = args;
                                    match opcode {
                                        Opcode::Imul => {
                                            // (add (mul y:(var i32) z:(var i32)) x:(var i32)) -> (mul y x)
                                            pos.func.dfg.replace(inst).imul(args_1[0], args_0[1]);
                                            return;
                                        },
                                        _ => {},
                                    }
                                },
                                _ => {},
                            }
                        },
                        _ => {
                            let p_1 = args_0[0];
                            if args_0[1] == p_1 {
                                // (add x:(var i32) x) -> (shl x 1)
                                pos.func.dfg.replace(inst).ishl_imm(p_1, 1);
                                return;
                            }
                            // (add x:(var i32) y:(var i32)) -> (sub y x)
                            pos.func.dfg.replace(inst).isub(args_0[1], args_0[0]);
                            return;
                        },
                    }
                },
                _ => {},
            }
        },
        _ => {},
    }
}
`
	if diff := cmp.Diff(want, fn.Text); diff != "" {
		t.Fatalf("generated text differs (-want +got):\n%s", diff)
	}
}

func TestCatchAllArms(t *testing.T) {
	// every match on a value definition
	// has at most one catch-all arm
	fn := generate(t, append(ruleset,
		`(add x:(var i32) (mul y:(var i32) 3)) -> (mul y x)`,
		`(add x:(var i32) y:(var i32)) -> (add y x)`,
		`(sub x:(var i32) y:(var i32)) -> (add x (sub 0 y))`,
	)...)
	var stack []int
	lines := strings.Split(fn.Text, "\n")
	for i, ln := range lines {
		text := strings.TrimSpace(ln)
		switch {
		case strings.HasPrefix(text, "match "):
			stack = append(stack, 0)
		case text == "}" && len(stack) > 0 && strings.HasPrefix(strings.TrimSpace(lines[matchOpen(lines, i)]), "match "):
			stack = stack[:len(stack)-1]
		case text == "_ => {" || text == "_ => {},":
			if len(stack) == 0 {
				t.Fatalf("line %d: catch-all arm outside a match", i+1)
			}
			stack[len(stack)-1]++
			if stack[len(stack)-1] > 1 {
				t.Errorf("line %d: second catch-all arm in one match:\n%s", i+1, fn.Text)
			}
		}
	}
	if !balanced(fn.Text) {
		t.Errorf("unbalanced output:\n%s", fn.Text)
	}
	if fn.Stats.Actions != len(ruleset)+3 {
		t.Errorf("rendered %d rules", fn.Stats.Actions)
	}
}

// matchOpen returns the line that opened
// the block closed on line i
func matchOpen(lines []string, i int) int {
	depth := 0
	for j := i; j >= 0; j-- {
		depth += strings.Count(lines[j], "}") - strings.Count(lines[j], "{")
		if depth == 0 {
			return j
		}
	}
	return 0
}

func TestReplacements(t *testing.T) {
	tests := []struct {
		rule string
		want []string
	}{
		{
			rule: `(eq 0 (and x:(var i64) 1)) -> (xor (and x 1) 1)`,
			want: []string{
				"let v1 = pos.ins().band_imm(args_1, 1);",
				"pos.func.dfg.replace(inst).bxor_imm(v1, 1);",
			},
		},
		{
			rule: `(slt (add x:(var i32) 1) 0) -> (slt x -1)`,
			want: []string{
				"Opcode::IcmpImm => {",
				"match cond {",
				"IntCC::SignedLessThan => {",
				"pos.func.dfg.replace(inst).icmp_imm(IntCC::SignedLessThan, args_1, -1);",
			},
		},
		{
			rule: `(add x:(var i32) x) -> (shl x 1)`,
			want: []string{
				"InstructionData::Binary { opcode, args } => {",
				"let args_0 = args;",
				"let p_1 = args_0[0];",
				"if args_0[1] == p_1 {",
				"pos.func.dfg.replace(inst).ishl_imm(p_1, 1);",
			},
		},
		{
			rule: `(sub (add x:(var i32) y:(var i32)) y) -> x`,
			want: []string{
				"match pos.func.dfg.value_def(args_0[0]) {",
				"ValueDef::Result(inst_1, _) => {",
				"let p_2 = args_1[1];",
				"if args_0[1] == p_2 {",
				"pos.func.dfg.replace(inst).copy(args_1[0]);",
			},
		},
		{
			rule: `(ctpop (xor x:(var i16) x)) -> 0`,
			want: []string{
				"InstructionData::Unary { opcode, arg } => {",
				"Opcode::Popcnt => {",
				"let ty = pos.func.dfg.value_type(pos.func.dfg.first_result(inst));",
				"pos.func.dfg.replace(inst).iconst(ty, 0);",
			},
		},
		{
			rule: `(sub 7 x:(var i8)) -> (mul (add x 1) (sub x 2))`,
			want: []string{
				"Opcode::IrsubImm => {",
				"let v1 = pos.ins().iadd_imm(args_0, 1);",
				"let v2 = pos.ins().iadd_imm(args_0, -2);",
				"pos.func.dfg.replace(inst).imul(v1, v2);",
			},
		},
	}
	for _, tc := range tests {
		fn := generate(t, tc.rule)
		for _, w := range tc.want {
			if !strings.Contains(fn.Text, w) {
				t.Errorf("%s: output lacks %q:\n%s", tc.rule, w, fn.Text)
			}
		}
		if !balanced(fn.Text) {
			t.Errorf("%s: unbalanced output:\n%s", tc.rule, fn.Text)
		}
	}
}

func balanced(text string) bool {
	depth := 0
	for _, c := range text {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

var ruleset = []string{
	`(add x:(var i32) 5) -> (mul x 10)`,
	`(add x:(var i32) 7) -> (mul x 14)`,
	`(add x:(var i32) 0) -> x`,
	`(add (mul x:(var i32) 3) 5) -> (mul x 15)`,
	`(sub (add x:(var i32) y:(var i32)) y) -> x`,
	`(sub x:(var i32) x) -> 0`,
	`(slt x:(var i32) y:(var i32)) -> 0`,
	`(ult x:(var i32) y:(var i32)) -> 1`,
	`(eq x:(var i32) 0) -> (eq x 0)`,
	`(add x:(var i32) x) -> (shl x 1)`,
	`(ctpop (xor x:(var i16) x)) -> 0`,
	`(ctlz (and x:(var i64) 0)) -> 64`,
}

func TestActionOnce(t *testing.T) {
	tr := tree(t, ruleset...)
	fn, err := Generate(tr, "superopt_1")
	if err != nil {
		t.Fatal(err)
	}
	acts := tr.Actionable()
	if fn.Stats.Actions != len(acts) || len(fn.Rendered) != len(acts) {
		t.Fatalf("rendered %d of %d actions", len(fn.Rendered), len(acts))
	}
	seen := make(map[dtree.NodeID]bool)
	for _, id := range fn.Rendered {
		if seen[id] {
			t.Errorf("action at %d rendered twice", id)
		}
		seen[id] = true
	}
	for _, r := range ruleset {
		if n := strings.Count(fn.Text, "// "+r+"\n"); n != 1 {
			t.Errorf("rule %s rendered %d times", r, n)
		}
	}
	if fn.Stats.Nodes != tr.Len() {
		t.Errorf("visited %d of %d nodes", fn.Stats.Nodes, tr.Len())
	}
	if !balanced(fn.Text) {
		t.Errorf("unbalanced output:\n%s", fn.Text)
	}
	if strings.Count(fn.Text, "return;") != len(ruleset) {
		t.Errorf("wrong number of returns")
	}
}

func TestDeterministicText(t *testing.T) {
	a := generate(t, ruleset...)
	rev := make([]string, len(ruleset))
	for i := range ruleset {
		rev[len(rev)-1-i] = ruleset[i]
	}
	b := generate(t, rev...)
	if diff := cmp.Diff(a.Text, b.Text); diff != "" {
		t.Errorf("output depends on rule order:\n%s", diff)
	}
	if a.Fingerprint != b.Fingerprint {
		t.Error("fingerprints differ")
	}
}

func TestGenerateErrors(t *testing.T) {
	rhs := isa.Seq{{Op: isa.ResultOp, Args: []isa.Operand{isa.Const(0)}}}
	tests := []struct {
		chain []dtree.Node
		check func(error) bool
	}{
		{
			chain: []dtree.Node{
				{Kind: dtree.MatchOpcode, Value: dtree.FieldOpcode},
				{Kind: dtree.Opcode, Value: "fadd"},
			},
			check: func(err error) bool {
				var ue *isa.UnsupportedError
				return errors.As(err, &ue) && ue.Name == "fadd"
			},
		},
		{
			chain: []dtree.Node{
				{Kind: dtree.MatchCond, Value: dtree.FieldCond},
				{Kind: dtree.Cond, Value: "sgt"},
			},
			check: func(err error) bool {
				var ue *isa.UnsupportedError
				return errors.As(err, &ue) && ue.What == "condition"
			},
		},
		{
			chain: []dtree.Node{
				{Kind: dtree.MatchInstData, Value: dtree.FieldInstData},
				{Kind: dtree.InstData, Value: "Ternary"},
			},
			check: func(err error) bool {
				var ue *isa.UnsupportedError
				return errors.As(err, &ue)
			},
		},
		{
			chain: []dtree.Node{
				{Kind: dtree.ValueDef, Value: dtree.DefParam, Var: 1},
			},
			check: func(err error) bool { return errors.Is(err, ErrNoField) },
		},
		{
			chain: []dtree.Node{
				{Kind: dtree.MatchArg, Value: dtree.FieldImm},
				{Kind: dtree.ValueDef, Value: dtree.DefConst},
				{Kind: dtree.ConstLeaf, Value: "3"},
			},
			check: func(err error) bool { return err != nil && strings.Contains(err.Error(), "no immediate") },
		},
		{
			chain: []dtree.Node{
				{Kind: dtree.MatchArg, Value: "args[x]"},
			},
			check: func(err error) bool {
				var ue *isa.UnsupportedError
				return errors.As(err, &ue)
			},
		},
	}
	for i := range tests {
		tr := dtree.New()
		if _, err := tr.Insert(dtree.NewTrie(tests[i].chain, nil), dtree.Action{Rule: "bad", Replacement: rhs}); err != nil {
			t.Fatal(err)
		}
		_, err := Generate(tr, "superopt_bad")
		if !tests[i].check(err) {
			t.Errorf("case %d: unexpected error %v", i, err)
		}
	}
}
