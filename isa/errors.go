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
	"fmt"
)

// UnsupportedError is returned when an opcode,
// condition, shape, or other vocabulary item
// is outside the supported set.
type UnsupportedError struct {
	What string // "opcode", "condition", ...
	Name string
}

func (u *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported %s %q", u.What, u.Name)
}

// MalformedError is returned when an
// instruction sequence violates its
// structural contract.
type MalformedError struct {
	// Inst is the offending instruction index,
	// or -1 if the error concerns the whole sequence.
	Inst int
	// Operand is the offending operand index, or -1.
	Operand int
	Msg     string
}

func (m *MalformedError) Error() string {
	switch {
	case m.Inst < 0:
		return "malformed sequence: " + m.Msg
	case m.Operand < 0:
		return fmt.Sprintf("malformed instruction %%%d: %s", m.Inst, m.Msg)
	default:
		return fmt.Sprintf("malformed instruction %%%d operand %d: %s", m.Inst, m.Operand, m.Msg)
	}
}

func malformed(inst, operand int, f string, args ...any) *MalformedError {
	return &MalformedError{Inst: inst, Operand: operand, Msg: fmt.Sprintf(f, args...)}
}
