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

package peepgen

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/SnellerInc/peepgen/isa"
	"github.com/SnellerInc/peepgen/lower"
	"github.com/SnellerInc/peepgen/rules"

	"sigs.k8s.io/yaml"
)

// Source is one rule in canonical form,
// ready to be merged into a decision tree.
type Source struct {
	// Name is the text of the rule, or the
	// name given to it in a canonical file.
	Name string
	// Pos is the position of the rule.
	Pos string
	// File is the input the rule was read from.
	File string
	LHS  isa.Seq
	RHS  isa.Seq
}

// Canonical is one entry of a canonical rule file.
type Canonical struct {
	Name string  `json:"name"`
	LHS  isa.Seq `json:"lhs"`
	RHS  isa.Seq `json:"rhs"`
}

// IsCanonical returns whether path names
// a canonical (YAML or JSON) rule file.
func IsCanonical(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// load reads the rules in buf, which
// was read from the file at path
func load(path string, buf []byte) ([]Source, Errors) {
	if IsCanonical(path) {
		return LoadCanonical(path, buf)
	}
	return LoadRules(path, buf)
}

// LoadRules lowers each rule in the rule file buf.
// A syntax error rejects the whole file.
func LoadRules(name string, buf []byte) ([]Source, Errors) {
	lst, err := rules.ParseNamed(name, bytes.NewReader(buf))
	if err != nil {
		rerr := &RuleError{Err: err}
		var se *rules.SyntaxError
		if errors.As(err, &se) {
			rerr.Pos = se.Pos.String()
			rerr.Err = errors.New(strings.TrimPrefix(se.Error(), rerr.Pos+": "))
		}
		return nil, Errors{rerr}
	}
	var out []Source
	var errs Errors
	for i := range lst {
		r := &lst[i]
		text := r.String()
		lhs, rhs, err := lower.Rule(r)
		if err != nil {
			var le *lower.Error
			if errors.As(err, &le) {
				err = le.Err
			}
			errs = append(errs, &RuleError{Rule: text, Pos: r.Location.String(), Err: err})
			continue
		}
		out = append(out, Source{
			Name: text,
			Pos:  r.Location.String(),
			File: name,
			LHS:  lhs,
			RHS:  rhs,
		})
	}
	return out, errs
}

// LoadCanonical reads a YAML or JSON list of
// canonical rules. Each rule is validated on
// its own; an undecodable file is rejected whole.
func LoadCanonical(name string, buf []byte) ([]Source, Errors) {
	var lst []Canonical
	if err := yaml.Unmarshal(buf, &lst); err != nil {
		return nil, Errors{&RuleError{Pos: name, Err: err}}
	}
	var out []Source
	var errs Errors
	for i := range lst {
		c := &lst[i]
		pos := fmt.Sprintf("%s:#%d", name, i)
		if c.Name == "" {
			c.Name = fmt.Sprintf("rule #%d", i)
		}
		if err := c.LHS.Validate(); err != nil {
			errs = append(errs, &RuleError{Rule: c.Name, Pos: pos, Err: fmt.Errorf("lhs: %w", err)})
			continue
		}
		if err := c.RHS.ValidateReplacement(); err != nil {
			errs = append(errs, &RuleError{Rule: c.Name, Pos: pos, Err: fmt.Errorf("rhs: %w", err)})
			continue
		}
		out = append(out, Source{
			Name: c.Name,
			Pos:  pos,
			File: name,
			LHS:  c.LHS,
			RHS:  c.RHS,
		})
	}
	return out, errs
}
