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
	"strconv"
)

var (
	// ErrScopeUnderflow is returned when a scope
	// is closed and none is open.
	ErrScopeUnderflow = errors.New("codegen: scope stack underflow")
	// ErrNoField is returned when a value is
	// compared and no field has been selected.
	ErrNoField = errors.New("codegen: no field selected")
)

// FrameKind is the kind of an open scope.
type FrameKind uint8

const (
	// FuncFrame is the body of a dispatch function.
	FuncFrame FrameKind = iota
	// MatchFrame is a match on one field.
	MatchFrame
	// CaseFrame is one arm of a match.
	CaseFrame
	// BlockFrame is a plain conditional block.
	BlockFrame
)

var framenames = [...]string{
	FuncFrame:  "func",
	MatchFrame: "match",
	CaseFrame:  "case",
	BlockFrame: "block",
}

func (k FrameKind) String() string {
	if int(k) < len(framenames) {
		return framenames[k]
	}
	return "FrameKind(" + strconv.Itoa(int(k)) + ")"
}

// Frame is one open scope.
type Frame struct {
	Kind  FrameKind
	Level int
	// Wildcard is set for match arms
	// that match any value.
	Wildcard bool
}

// Closed is a frame that has been popped.
type Closed struct {
	Frame
	// Final is set for case arms that are the
	// last arm of their match. It is clear when an
	// arm is closed so that a sibling arm at the
	// same level can be opened.
	Final bool
}

// Fallback returns whether closing c must also
// emit a default arm for the enclosing match.
func (c *Closed) Fallback() bool {
	return c.Kind == CaseFrame && c.Final && !c.Wildcard
}

// Scopes is the stack of open scopes.
//
// At most one scope is open per level: before a
// scope is opened at level L, every scope at
// level L or deeper is closed.
type Scopes struct {
	stack []Frame
}

// Depth returns the number of open scopes.
func (s *Scopes) Depth() int { return len(s.stack) }

// Top returns the innermost open scope.
func (s *Scopes) Top() (Frame, bool) {
	if len(s.stack) == 0 {
		return Frame{}, false
	}
	return s.stack[len(s.stack)-1], true
}

// Pop closes the innermost open scope.
func (s *Scopes) Pop() (Frame, error) {
	if len(s.stack) == 0 {
		return Frame{}, ErrScopeUnderflow
	}
	f := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return f, nil
}

// Unwind closes every scope at level or deeper,
// innermost first.
func (s *Scopes) Unwind(level int) []Closed {
	var out []Closed
	for len(s.stack) > 0 && s.stack[len(s.stack)-1].Level >= level {
		f, _ := s.Pop()
		out = append(out, Closed{Frame: f, Final: true})
	}
	return out
}

// Enter opens a scope of the given kind at level,
// returning the scopes it closed to do so.
// A case arm that is closed because a sibling arm
// is entered at its level is not Final.
func (s *Scopes) Enter(kind FrameKind, level int, wildcard bool) []Closed {
	out := s.Unwind(level)
	if kind == CaseFrame && len(out) > 0 {
		last := &out[len(out)-1]
		if last.Kind == CaseFrame && last.Level == level {
			last.Final = false
		}
	}
	s.stack = append(s.stack, Frame{Kind: kind, Level: level, Wildcard: wildcard})
	return out
}

// CloseAll closes every open scope.
func (s *Scopes) CloseAll() []Closed {
	return s.Unwind(-1)
}

// Field is the current-field register.
// Its zero value has no field selected.
type Field struct {
	name string
	ok   bool
}

// Select selects the named field.
func (f *Field) Select(name string) {
	f.name, f.ok = name, true
}

// Consume returns the selected field
// and clears the register.
func (f *Field) Consume() (string, error) {
	if !f.ok {
		return "", ErrNoField
	}
	name := f.name
	*f = Field{}
	return name, nil
}

// At returns the open scope at level, if any.
func (s *Scopes) At(level int) (Frame, bool) {
	for i := len(s.stack) - 1; i >= 0; i-- {
		switch f := s.stack[i]; {
		case f.Level == level:
			return f, true
		case f.Level < level:
			return Frame{}, false
		}
	}
	return Frame{}, false
}
