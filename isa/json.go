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

package isa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Enumerations marshal as their textual names
// and operands as either a JSON number (constant)
// or a "%N" string (reference), so that canonical
// rule files read the same way sequences print.

func unquote(b []byte, what string) (string, error) {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", fmt.Errorf("isa: %s must be a string: %w", what, err)
	}
	return s, nil
}

func (r ResultKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *ResultKind) UnmarshalJSON(b []byte) error {
	s, err := unquote(b, "result kind")
	if err != nil {
		return err
	}
	for i := range resultnames {
		if resultnames[i] == s {
			*r = ResultKind(i)
			return nil
		}
	}
	return &UnsupportedError{What: "result kind", Name: s}
}

func (o Opcode) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *Opcode) UnmarshalJSON(b []byte) error {
	s, err := unquote(b, "opcode")
	if err != nil {
		return err
	}
	op, ok := LookupOpcode(s)
	if !ok {
		return &UnsupportedError{What: "opcode", Name: s}
	}
	*o = op
	return nil
}

func (s Shape) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Shape) UnmarshalJSON(b []byte) error {
	str, err := unquote(b, "shape")
	if err != nil {
		return err
	}
	sh, ok := LookupShape(str)
	if !ok {
		return &UnsupportedError{What: "instruction data", Name: str}
	}
	*s = sh
	return nil
}

func (c Cond) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Cond) UnmarshalJSON(b []byte) error {
	s, err := unquote(b, "condition")
	if err != nil {
		return err
	}
	if s == "" {
		*c = CondNone
		return nil
	}
	cc, ok := LookupCond(s)
	if !ok {
		return &UnsupportedError{What: "condition", Name: s}
	}
	*c = cc
	return nil
}

func (o Operand) MarshalJSON() ([]byte, error) {
	switch {
	case o.isk:
		return []byte(strconv.FormatInt(o.konst, 10)), nil
	case o.ref > 0:
		return json.Marshal(o.String())
	default:
		return nil, fmt.Errorf("isa: cannot marshal invalid operand")
	}
}

func (o *Operand) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		s, err := unquote(b, "operand")
		if err != nil {
			return err
		}
		n, ok := strings.CutPrefix(s, "%")
		if !ok {
			return fmt.Errorf("isa: operand %q is not a %%N reference", s)
		}
		i, err := strconv.Atoi(n)
		if err != nil || i < 0 {
			return fmt.Errorf("isa: bad reference %q", s)
		}
		*o = Ref(i)
		return nil
	}
	var c int64
	if err := json.Unmarshal(b, &c); err != nil {
		return fmt.Errorf("isa: operand must be an integer or a %%N reference: %w", err)
	}
	*o = Const(c)
	return nil
}

// UnmarshalJSON decodes an instruction,
// deriving the shape from the opcode when
// it is omitted and the result kind from
// the opcode when that is omitted.
func (i *Inst) UnmarshalJSON(b []byte) error {
	type plain Inst
	var p struct {
		plain
		Result *ResultKind `json:"result"`
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*i = Inst(p.plain)
	if p.Result != nil {
		i.Result = *p.Result
	} else {
		switch {
		case i.Op == Var:
			i.Result = Param
		case i.Op.Pseudo():
			i.Result = NoResult
		default:
			i.Result = Result
		}
	}
	if i.Shape == ShapeNone {
		i.Shape = i.Op.Shape()
	}
	return nil
}
