// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.


// Package rules implements the textual syntax
// of peephole rewrite rules.
//
// A rule is one or more conjoined match values,
// an arrow, and a replacement term:
//
//	(add x:(var i32) 5) -> (mul x 10)
//	(sub x:(var i64) x) -> 0
//
// The first value is the pattern; any further
// values are predicates on the match. Terms are
// identifiers, integer literals, strings, or
// parenthesized lists, and an identifier may be
// bound to a value with name:value.
package rules

import (
	"io"
	"strconv"
	"strings"
	"text/scanner"

	"golang.org/x/exp/slices"
)

type Rule struct {
	// From is the conjunction of
	// expressions to match against.
	// From[0] is the pattern itself.
	From []Value
	// To is the replacement term.
	To Term
	// Location is the textual position
	// at which the rule began.
	Location scanner.Position
}

func (r *Rule) String() string {
	var out strings.Builder
	for i := range r.From {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(r.From[i].String())
	}
	out.WriteString(" -> ")
	out.WriteString(r.To.String())
	return out.String()
}

// Equal returns whether r and o are
// syntactically identical (ignoring position).
func (r *Rule) Equal(o *Rule) bool {
	return slices.EqualFunc(r.From, o.From, equal) && r.To.Equal(&o.To)
}

// WriteTo writes each rule in lst to dst,
// one per line, in a form that Parse accepts.
func WriteTo(dst io.Writer, lst []Rule) (int64, error) {
	n := int64(0)
	for i := range lst {
		nn, err := io.WriteString(dst, lst[i].String()+"\n")
		n += int64(nn)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

type Term struct {
	// Name is the identifier of this term.
	// If Value is non-nil, then Name
	// may be the empty string.
	Name string

	// Value is the value of the term.
	// Value is nil if this term is
	// a bare identifier.
	Value Value

	// Location is the position of the term
	// in the source text.
	Location scanner.Position
}

func (t *Term) String() string {
	if t.Name == "" {
		if t.Value != nil {
			return t.Value.String()
		}
		return "_"
	}
	if t.Value == nil {
		return t.Name
	}
	return t.Name + ":" + t.Value.String()
}

// IsList returns the term's list value, if it has one.
func (t *Term) IsList() (List, bool) {
	l, ok := t.Value.(List)
	return l, ok
}

// IsInt returns the term's integer value, if it has one.
func (t *Term) IsInt() (Int, bool) {
	i, ok := t.Value.(Int)
	return i, ok
}

func (t *Term) Equal(o *Term) bool {
	return t.Name == o.Name && equal(t.Value, o.Value)
}

// Value is one of List, String, or Int.
type Value interface {
	String() string
}

type List []Term

func (l List) String() string {
	var out strings.Builder
	out.WriteByte('(')
	for i := range l {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(l[i].String())
	}
	out.WriteByte(')')
	return out.String()
}

// Head returns the bare identifier at the
// start of the list, or the empty string.
func (l List) Head() string {
	if len(l) == 0 || l[0].Value != nil {
		return ""
	}
	return l[0].Name
}

type String string

func (s String) String() string { return strconv.Quote(string(s)) }

type Int int64

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

func equal(x, y Value) bool {
	if l, ok := x.(List); ok {
		if l2, ok := y.(List); ok {
			return slices.EqualFunc(l, l2, func(x, y Term) bool {
				return x.Equal(&y)
			})
		}
		return false
	}
	// String or Int (or nil)
	return x == y
}
