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


package rules

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/scanner"
)

// SyntaxError is returned from Parse
// when the input is not well-formed.
// It describes the first error encountered.
type SyntaxError struct {
	Pos scanner.Position
	Msg string
	// Count is the total number
	// of errors reported.
	Count int
}

func (s *SyntaxError) Error() string {
	if s.Count > 1 {
		return fmt.Sprintf("%s: %s (and %d other errors)", s.Pos, s.Msg, s.Count-1)
	}
	return fmt.Sprintf("%s: %s", s.Pos, s.Msg)
}

// Parse parses a list of rules from r.
// If r is an *os.File, positions carry
// its name.
func Parse(r io.Reader) ([]Rule, error) {
	name := ""
	if f, ok := r.(*os.File); ok {
		name = f.Name()
	}
	return ParseNamed(name, r)
}

// ParseNamed is like Parse, but positions
// carry the given file name.
func ParseNamed(name string, r io.Reader) ([]Rule, error) {
	var serr *SyntaxError
	s := new(scanner.Scanner)
	s = s.Init(r)
	s.Position.Filename = name
	s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings |
		scanner.ScanRawStrings | scanner.ScanComments | scanner.SkipComments
	// the scanner counts its own errors
	s.Error = func(s *scanner.Scanner, msg string) {
		if serr == nil {
			pos := s.Position
			if !pos.IsValid() {
				pos = s.Pos()
			}
			serr = &SyntaxError{Pos: pos, Msg: msg}
		}
	}
	var rules []Rule
	p := &parser{src: s}
	for !p.atEOF() && s.ErrorCount == 0 {
		conj := p.conj()
		if !p.ok() {
			break
		}
		loc := p.start
		if !p.arrow() {
			p.errorf("expected '->' after %d match value(s)", len(conj))
			break
		}
		to := p.term()
		if !p.ok() {
			break
		}
		rules = append(rules, Rule{Location: loc, From: conj, To: to})
	}
	if s.ErrorCount > 0 {
		serr.Count = s.ErrorCount
		return nil, serr
	}
	return rules, nil
}

type parser struct {
	src     *scanner.Scanner
	la      rune // lookahead character
	lavalid bool // lookahead is valid
	start   scanner.Position
}

func (p *parser) peek() rune {
	if !p.lavalid {
		p.la = p.src.Scan()
		p.lavalid = true
	}
	return p.la
}

func (p *parser) next() rune {
	r := p.peek()
	p.lavalid = false
	return r
}

func (p *parser) atEOF() bool {
	return p.peek() == scanner.EOF
}

func (p *parser) ok() bool {
	return p.src.ErrorCount == 0
}

func (p *parser) errorf(f string, args ...any) {
	p.src.ErrorCount++
	p.src.Error(p.src, fmt.Sprintf(f, args...))
}

func (p *parser) consume(r rune) bool {
	if p.peek() == r {
		p.lavalid = false
		return true
	}
	return false
}

// conj = value {',' value}
func (p *parser) conj() []Value {
	p.peek()
	p.start = p.src.Position
	first := p.value()
	if !p.ok() {
		return nil
	}
	out := []Value{first}
	for p.ok() && p.consume(',') {
		v := p.value()
		if v == nil {
			break // error
		}
		out = append(out, v)
	}
	return out
}

func (p *parser) arrow() bool {
	return p.consume('-') && p.consume('>')
}

func unquote(x string) String {
	// the scanner has already
	// validated the syntax here
	out, err := strconv.Unquote(x)
	if err != nil {
		panic(err)
	}
	return String(out)
}

func unbacktick(x string) String {
	return String(x[1 : len(x)-1])
}

func (p *parser) integer(neg bool) Value {
	text := p.src.TokenText()
	if neg {
		text = "-" + text
	}
	i, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		p.errorf("bad integer literal %s", text)
		return nil
	}
	return Int(i)
}

// literal parses the token r that has
// already been consumed as a value
func (p *parser) literal(r rune) Value {
	if !p.ok() {
		// e.g. an unterminated string
		return nil
	}
	switch r {
	case scanner.RawString:
		return unbacktick(p.src.TokenText())
	case scanner.String:
		return unquote(p.src.TokenText())
	case scanner.Int:
		return p.integer(false)
	case '-':
		if p.next() != scanner.Int {
			p.errorf("expected integer after '-'")
			return nil
		}
		return p.integer(true)
	case '(':
		return p.list()
	default:
		p.errorf("unexpected token %s", scanner.TokenString(r))
		return nil
	}
}

func (p *parser) value() Value {
	return p.literal(p.next())
}

func (p *parser) list() Value {
	out := List{}
	for r := p.peek(); r != ')' && p.ok(); r = p.peek() {
		if r == scanner.EOF {
			p.errorf("unterminated list")
			return nil
		}
		out = append(out, p.term())
	}
	p.next() // skip ')'
	return out
}

// term = ident [':' value] | value
func (p *parser) term() Term {
	r := p.next()
	pos := p.src.Position
	if r == scanner.Ident {
		name := p.src.TokenText()
		var v Value
		if p.consume(':') {
			v = p.value()
		}
		return Term{Name: name, Value: v, Location: pos}
	}
	v := p.literal(r)
	if v == nil {
		return Term{}
	}
	return Term{Value: v, Location: pos}
}
