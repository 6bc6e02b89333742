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

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Stats describes one generated function.
type Stats struct {
	// Nodes is the number of decision nodes visited.
	Nodes int
	// Actions is the number of replacements rendered.
	Actions int
	// MaxDepth is the deepest scope nesting.
	MaxDepth int
}

// Func is one generated dispatch function.
type Func struct {
	Name        string
	Fingerprint uint64
	Text        string
	Stats       Stats
	// Rendered lists the actionable nodes
	// in the order their replacements appear.
	Rendered []dtree.NodeID
}

// path state, inherited by each child
// of a node and restored per branch
type state struct {
	field Field
	// pending immediate bindings
	imms []string
	// parameter ordinal -> expression
	params map[int]string
}

func (s *state) clone() *state {
	return &state{
		field:  s.field,
		imms:   slices.Clone(s.imms),
		params: maps.Clone(s.params),
	}
}

type generator struct {
	tree     *dtree.Tree
	out      strings.Builder
	scopes   Scopes
	stats    Stats
	rendered []dtree.NodeID
	log      *zap.Logger
}

// Generate renders tree as a dispatch function
// called name. The tree must not be modified
// while it is being rendered.
//
// Matching does not backtrack: once an arm of a
// match is taken, the other arms of that match are
// not tried, even if nothing under the taken arm
// applies. A rule below a catch-all arm is therefore
// only reached when no more specific sibling arm
// matched. Rules under one catch-all arm are tried
// in order, since each replacement returns.
func Generate(tree *dtree.Tree, name string) (*Func, error) {
	g := &generator{
		tree: tree,
		log:  Logger().With(zap.String("func", name)),
	}
	root, err := tree.Node(tree.Root())
	if err != nil {
		return nil, err
	}
	if root.Kind != dtree.Root {
		return nil, &isa.UnsupportedError{What: "root node kind", Name: root.Kind.String()}
	}
	g.stats.Nodes++
	g.visitlog(root)
	g.open(FuncFrame, root.Level, false, "fn %s(pos: &mut FuncCursor, inst: Inst) {", name)
	st := &state{params: make(map[int]string)}
	for _, c := range g.order(root.Next) {
		if err := g.walk(c, st.clone()); err != nil {
			return nil, err
		}
	}
	g.close(0, g.scopes.CloseAll())
	if g.scopes.Depth() != 0 {
		return nil, ErrScopeUnderflow
	}
	return &Func{
		Name:        name,
		Fingerprint: tree.Fingerprint(),
		Text:        g.out.String(),
		Stats:       g.stats,
		Rendered:    g.rendered,
	}, nil
}

func (g *generator) visitlog(n *dtree.Node) {
	g.log.Debug("visit",
		zap.Int32("id", int32(n.ID)),
		zap.Stringer("kind", n.Kind),
		zap.String("value", n.Value),
		zap.Int("level", n.Level),
		zap.Any("next", n.Next),
	)
}

func (g *generator) walk(id dtree.NodeID, st *state) error {
	n, err := g.tree.Node(id)
	if err != nil {
		return err
	}
	g.stats.Nodes++
	g.visitlog(n)
	if err := g.visit(n, st); err != nil {
		return fmt.Errorf("node #%d (%s %q): %w", n.ID, n.Kind, n.Value, err)
	}
	if a, ok := g.tree.Action(id); ok {
		if err := g.action(a, st); err != nil {
			return fmt.Errorf("rule %s: %w", a.Rule, err)
		}
		g.stats.Actions++
		g.rendered = append(g.rendered, id)
	}
	for _, c := range g.order(n.Next) {
		if err := g.walk(c, st.clone()); err != nil {
			return err
		}
	}
	return nil
}

// sibling value definitions are rendered
// with the wildcard arms last
func defrank(v string) int {
	name, _, _ := dtree.ParseDef(v)
	switch name {
	case dtree.DefResult:
		return 0
	case "Same":
		return 1
	case dtree.DefConst:
		return 2
	case "Bind":
		return 3
	case dtree.DefParam:
		return 4
	}
	return 5
}

func (g *generator) order(ids []dtree.NodeID) []dtree.NodeID {
	out := slices.Clone(ids)
	nodes := g.tree.Nodes()
	valid := func(id dtree.NodeID) bool { return id >= 0 && int(id) < len(nodes) }
	slices.SortStableFunc(out, func(x, y dtree.NodeID) bool {
		if !valid(x) || !valid(y) {
			return false
		}
		a, b := &nodes[x], &nodes[y]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Kind == dtree.ValueDef {
			ra, rb := defrank(a.Value), defrank(b.Value)
			if ra != rb {
				return ra < rb
			}
		}
		return a.Value < b.Value
	})
	return out
}

func (g *generator) indent(depth int, f string, args ...any) {
	for i := 0; i < depth; i++ {
		g.out.WriteString("    ")
	}
	fmt.Fprintf(&g.out, f, args...)
	g.out.WriteByte('\n')
}

func (g *generator) line(f string, args ...any) {
	g.indent(g.scopes.Depth(), f, args...)
}

// close renders the closing text of lst,
// which were popped innermost first from
// a stack now base frames deep
func (g *generator) close(base int, lst []Closed) {
	for i := range lst {
		depth := base + len(lst) - 1 - i
		switch lst[i].Kind {
		case CaseFrame:
			g.indent(depth, "},")
			if lst[i].Fallback() {
				g.indent(depth, "_ => {},")
			}
		default:
			g.indent(depth, "}")
		}
	}
}

func (g *generator) unwind(level int) {
	closed := g.scopes.Unwind(level)
	g.close(g.scopes.Depth(), closed)
}

func (g *generator) open(kind FrameKind, level int, wildcard bool, f string, args ...any) {
	closed := g.scopes.Enter(kind, level, wildcard)
	outer := g.scopes.Depth() - 1
	g.close(outer, closed)
	g.indent(outer, f, args...)
	if d := g.scopes.Depth(); d > g.stats.MaxDepth {
		g.stats.MaxDepth = d
	}
}

func instvar(k int) string {
	if k == 0 {
		return "inst"
	}
	return "inst_" + strconv.Itoa(k)
}

func argsvar(k int) string { return "args_" + strconv.Itoa(k) }
func immvar(k int) string  { return "rhs_" + strconv.Itoa(k) }
func paramvar(k int) string {
	return "p_" + strconv.Itoa(k)
}

// valueDefOpen returns whether a match on the
// definition of the operand selected at level
// is open; the selector itself opens no scope
func (g *generator) valueDefOpen(level int) bool {
	f, ok := g.scopes.At(level)
	return ok && f.Kind == MatchFrame
}

func (g *generator) visit(n *dtree.Node, st *state) error {
	switch n.Kind {
	case dtree.MatchInstData:
		st.field.Select(instvar(n.Inst))
		g.open(MatchFrame, n.Level, false, "match pos.func.dfg[%s] {", instvar(n.Inst))
	case dtree.MatchOpcode:
		st.field.Select(n.Value)
		g.open(MatchFrame, n.Level, false, "match %s {", n.Value)
	case dtree.MatchCond:
		st.field.Select(n.Value)
		g.open(MatchFrame, n.Level, false, "match %s {", n.Value)
	case dtree.MatchArg:
		g.unwind(n.Level)
		switch n.Value {
		case dtree.FieldArg:
			st.field.Select(argsvar(n.Inst))
		case dtree.FieldImm:
			st.field.Select(immvar(n.Inst))
		default:
			var i int
			if _, err := fmt.Sscanf(n.Value, "args[%d]", &i); err != nil || dtree.ArgsField(i) != n.Value {
				return &isa.UnsupportedError{What: "operand selector", Name: n.Value}
			}
			st.field.Select(argsvar(n.Inst) + "[" + strconv.Itoa(i) + "]")
		}
	case dtree.InstData:
		return g.instdata(n, st)
	case dtree.Opcode:
		if _, err := st.field.Consume(); err != nil {
			return err
		}
		lit, err := isa.OpcodeLiteral(n.Value)
		if err != nil {
			return err
		}
		g.open(CaseFrame, n.Level, false, "%s => {", lit)
	case dtree.Cond:
		if _, err := st.field.Consume(); err != nil {
			return err
		}
		lit, err := isa.CondLiteral(n.Value)
		if err != nil {
			return err
		}
		g.open(CaseFrame, n.Level, false, "%s => {", lit)
	case dtree.ValueDef:
		return g.valuedef(n, st)
	case dtree.ConstLeaf:
		if len(st.imms) == 0 {
			return fmt.Errorf("constant %s: no immediate bound", n.Value)
		}
		if _, err := strconv.ParseInt(n.Value, 10, 64); err != nil {
			return &isa.UnsupportedError{What: "constant", Name: n.Value}
		}
		imm := st.imms[len(st.imms)-1]
		st.imms = st.imms[:len(st.imms)-1]
		g.open(BlockFrame, n.Level, false, "if %s == %s {", imm, n.Value)
	default:
		return &isa.UnsupportedError{What: "node kind", Name: n.Kind.String()}
	}
	return nil
}

func (g *generator) instdata(n *dtree.Node, st *state) error {
	if _, err := st.field.Consume(); err != nil {
		return err
	}
	lit, err := isa.ShapeLiteral(n.Value)
	if err != nil {
		return err
	}
	shape, _ := isa.LookupShape(n.Value)
	g.open(CaseFrame, n.Level, false, "%s => {", lit)
	k := n.Inst
	if f := shape.ArgField(); f != "" {
		g.line("let %s = %s;", argsvar(k), f)
	}
	if shape.Imm() {
		g.line("let %s : i64 = imm.into();", immvar(k))
		st.imms = append(st.imms, immvar(k))
	}
	return nil
}

// wildcard opens the catch-all arm at level, or
// continues in it if a sibling already opened it;
// a match has at most one catch-all arm
func (g *generator) wildcard(level int) {
	g.unwind(level + 1)
	if f, ok := g.scopes.Top(); ok && f.Kind == CaseFrame && f.Level == level && f.Wildcard {
		return
	}
	g.open(CaseFrame, level, true, "_ => {")
}

func (g *generator) valuedef(n *dtree.Node, st *state) error {
	field, err := st.field.Consume()
	if err != nil {
		return err
	}
	name, k, err := dtree.ParseDef(n.Value)
	if err != nil {
		return &isa.UnsupportedError{What: "value definition", Name: n.Value}
	}
	inMatch := g.valueDefOpen(n.Level - 1)
	switch name {
	case dtree.DefResult:
		if !inMatch {
			g.open(MatchFrame, n.Level-1, false, "match pos.func.dfg.value_def(%s) {", field)
		}
		g.open(CaseFrame, n.Level, false, "ValueDef::Result(%s, _) => {", instvar(n.Inst))
	case "Same":
		p, ok := st.params[k]
		if !ok {
			return fmt.Errorf("variable %d compared before it is bound", k)
		}
		if inMatch {
			g.open(CaseFrame, n.Level, false, "_ if %s == %s => {", field, p)
		} else {
			g.open(BlockFrame, n.Level, false, "if %s == %s {", field, p)
		}
	case "Bind":
		if inMatch {
			g.wildcard(n.Level)
		} else {
			g.unwind(n.Level)
		}
		g.line("let %s = %s;", paramvar(k), field)
		st.params[n.Var] = paramvar(k)
	case dtree.DefParam:
		if inMatch {
			g.wildcard(n.Level)
		} else {
			g.unwind(n.Level)
		}
		st.params[n.Var] = field
	case dtree.DefConst:
		// the ConstLeaf that follows does the test
		g.unwind(n.Level)
	}
	return nil
}
