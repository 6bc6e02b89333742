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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/SnellerInc/peepgen/isa"
	"github.com/SnellerInc/peepgen/lower"
	"github.com/SnellerInc/peepgen/rules"

	"github.com/google/go-cmp/cmp"
)

type lowered struct {
	text     string
	lhs, rhs isa.Seq
}

func lowerAll(t *testing.T, text ...string) []lowered {
	t.Helper()
	out := make([]lowered, len(text))
	for i := range text {
		lst, err := rules.ParseNamed("test.rules", strings.NewReader(text[i]))
		if err != nil {
			t.Fatal(err)
		}
		if len(lst) != 1 {
			t.Fatalf("%q: %d rules", text[i], len(lst))
		}
		lhs, rhs, err := lower.Rule(&lst[0])
		if err != nil {
			t.Fatalf("%q: %s", text[i], err)
		}
		out[i] = lowered{text: text[i], lhs: lhs, rhs: rhs}
	}
	return out
}

func build(t *testing.T, text ...string) *Tree {
	t.Helper()
	tree := New()
	for _, l := range lowerAll(t, text...) {
		tr, err := Build(l.lhs)
		if err != nil {
			t.Fatalf("%q: %s", l.text, err)
		}
		if _, err := tree.Insert(tr, Action{Rule: l.text, Replacement: l.rhs}); err != nil {
			t.Fatalf("%q: %s", l.text, err)
		}
	}
	return tree
}

type kv struct {
	Kind  Kind
	Value string
}

func values(nodes []Node) []kv {
	out := make([]kv, len(nodes))
	for i := range nodes {
		out[i] = kv{nodes[i].Kind, nodes[i].Value}
	}
	return out
}

func TestScenarioChain(t *testing.T) {
	l := lowerAll(t, `(add x:(var i32) 5) -> (mul x (add 5 5))`)[0]
	tr, err := Build(l.lhs)
	if err != nil {
		t.Fatal(err)
	}
	want := []kv{
		{MatchInstData, FieldInstData},
		{InstData, "BinaryImm"},
		{MatchOpcode, FieldOpcode},
		{Opcode, "iadd_imm"},
		{MatchArg, FieldArg},
		{ValueDef, DefParam},
		{MatchArg, FieldImm},
		{ValueDef, DefConst},
		{ConstLeaf, "5"},
	}
	chain := tr.Chain()
	if diff := cmp.Diff(want, values(chain)); diff != "" {
		t.Fatalf("chain differs (-want +got):\n%s", diff)
	}
	for i := range chain {
		if chain[i].ID != NodeID(i) {
			t.Errorf("node %d has id %d", i, chain[i].ID)
		}
		if chain[i].Level != i+1 {
			t.Errorf("node %d has level %d", i, chain[i].Level)
		}
		if i < len(chain)-1 {
			if !cmp.Equal(chain[i].Next, []NodeID{NodeID(i + 1)}) {
				t.Errorf("node %d links to %v", i, chain[i].Next)
			}
		} else if len(chain[i].Next) != 0 {
			t.Errorf("leaf links to %v", chain[i].Next)
		}
	}
	if tr.Leaf != chain[len(chain)-1].ID {
		t.Errorf("leaf is %d", tr.Leaf)
	}
	if chain[1].Width != 32 || chain[5].Width != 32 || chain[5].Var != 1 {
		t.Errorf("metadata not recorded: %v %v", chain[1], chain[5])
	}
}

func TestBuildValues(t *testing.T) {
	tests := []struct {
		text string
		want []string // ValueDef values in chain order
	}{
		{`(add x:(var i32) x) -> (shl x 1)`, []string{"Bind(1)", "Same(1)"}},
		{`(sub (add x:(var i32) y:(var i32)) y) -> x`, []string{"Result", "Param", "Bind(2)", "Same(2)"}},
		{`(eq (ctpop x:(var i8)) 0) -> (eq x 0)`, []string{"Result", "Param", "Const"}},
		{`(xor (and x:(var i64) y:(var i64)) (or x y)) -> (xor x y)`, []string{"Result", "Bind(1)", "Bind(2)", "Result", "Same(1)", "Same(2)"}},
	}
	for i := range tests {
		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			l := lowerAll(t, tests[i].text)[0]
			tr, err := Build(l.lhs)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, n := range tr.Chain() {
				if n.Kind == ValueDef {
					got = append(got, n.Value)
				}
			}
			if diff := cmp.Diff(tests[i].want, got); diff != "" {
				t.Errorf("%s: (-want +got):\n%s", tr, diff)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	all := lowerAll(t,
		`(add x:(var i32) 5) -> (mul x 10)`,
		`(sub 7 x:(var i8)) -> (add x 1)`,
		`(slt (add x:(var i32) y:(var i32)) 0) -> (slt x (sub 0 y))`,
		`(ctpop (xor x:(var i16) x)) -> 0`,
		`(ult (lshr x:(var i64) 3) (shl y:(var i64) 2)) -> 1`,
		`(ne (mul (and x:(var i32) 255) (or y:(var i32) x)) (cttz y)) -> 1`,
	)
	opt := cmp.AllowUnexported(isa.Operand{})
	for i := range all {
		tr, err := Build(all[i].lhs)
		if err != nil {
			t.Fatalf("%s: %s", all[i].text, err)
		}
		got, err := tr.Seq()
		if err != nil {
			t.Fatalf("%s: %s", all[i].text, err)
		}
		if diff := cmp.Diff(all[i].lhs, got, opt); diff != "" {
			t.Errorf("%s: read back differently (-want +got):\n%s", all[i].text, diff)
		}
		// the same holds for the path in a merged tree
		tree := New()
		leaf, err := tree.Insert(tr, Action{Rule: all[i].text, Replacement: all[i].rhs})
		if err != nil {
			t.Fatal(err)
		}
		path, err := tree.Path(leaf)
		if err != nil {
			t.Fatal(err)
		}
		got, err = Reconstruct(path)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(all[i].lhs, got, opt); diff != "" {
			t.Errorf("%s: tree path read back differently (-want +got):\n%s", all[i].text, diff)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	good := func() isa.Seq {
		return lowerAll(t, `(add x:(var i32) 5) -> x`)[0].lhs
	}
	bad := []isa.Seq{
		good()[:2],
		func() isa.Seq { s := good(); s[2].Args[0] = isa.Const(3); return s }(),
		func() isa.Seq { s := good(); s[1].Op = isa.Opcode(250); return s }(),
		func() isa.Seq { s := good(); s[1].Args = s[1].Args[:1]; return s }(),
	}
	for i := range bad {
		_, err := Build(bad[i])
		var me *isa.MalformedError
		var ue *isa.UnsupportedError
		if !errors.As(err, &me) && !errors.As(err, &ue) {
			t.Errorf("case %d: unexpected error %v", i, err)
		}
	}
}

func TestArena(t *testing.T) {
	tree := build(t, `(add x:(var i32) 5) -> x`)
	if _, err := tree.Node(NodeID(tree.Len())); err == nil {
		t.Error("found node past the end")
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.ID != NodeID(tree.Len()) {
			t.Errorf("unexpected error %v", err)
		}
	}
	if _, err := tree.Node(None); err == nil {
		t.Error("found node None")
	}
	if _, err := tree.Path(NodeID(100)); err == nil {
		t.Error("found path to a missing node")
	}
	for i, n := range tree.Nodes() {
		if n.ID != NodeID(i) {
			t.Errorf("node at slot %d has id %d", i, n.ID)
		}
		for _, c := range n.Next {
			child, err := tree.Node(c)
			if err != nil {
				t.Fatal(err)
			}
			if child.Level != n.Level+1 {
				t.Errorf("node %d at level %d has child at level %d", n.ID, n.Level, child.Level)
			}
			if child.ID <= n.ID {
				t.Errorf("child %d not created after parent %d", child.ID, n.ID)
			}
		}
	}
}
