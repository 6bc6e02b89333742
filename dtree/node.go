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

// Package dtree builds the decision trees
// that peephole patterns are matched with.
//
// Each rule's pattern first becomes a
// single-pattern trie: a chain of nodes that
// select a field of the instruction under test
// and then name the value that field must hold.
// Tries are then merged into one Tree that
// shares every common prefix, and each rule's
// replacement is attached to the node at which
// its pattern is fully determined.
//
// Nodes live in an Arena and refer to one
// another only by NodeID.
package dtree

import (
	"fmt"
	"strconv"
)

// NodeID identifies a node within an Arena.
type NodeID int32

// None is the invalid NodeID.
const None NodeID = -1

// Kind is the kind of a decision node.
type Kind uint8

const (
	// Root is the root of a merged tree.
	Root Kind = iota
	// MatchInstData selects the instruction data
	// of the instruction under test.
	MatchInstData
	// InstData names an instruction-data shape.
	InstData
	// MatchOpcode selects the opcode.
	MatchOpcode
	// Opcode names an opcode.
	Opcode
	// MatchCond selects the condition code.
	MatchCond
	// Cond names a condition code.
	Cond
	// MatchArg selects one operand.
	MatchArg
	// ValueDef classifies the selected operand.
	ValueDef
	// ConstLeaf tests an immediate against a literal.
	ConstLeaf

	_kindmax
)

var kindnames = [_kindmax]string{
	Root:          "Root",
	MatchInstData: "MatchInstData",
	InstData:      "InstData",
	MatchOpcode:   "MatchOpcode",
	Opcode:        "Opcode",
	MatchCond:     "MatchCond",
	Cond:          "Cond",
	MatchArg:      "MatchArg",
	ValueDef:      "ValueDef",
	ConstLeaf:     "ConstLeaf",
}

func (k Kind) String() string {
	if k < _kindmax {
		return kindnames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}


// Field names used as selector values.
const (
	FieldInstData = "InstructionData"
	FieldOpcode   = "opcode"
	FieldCond     = "cond"
	FieldArg      = "arg"
	FieldImm      = "imm"
)

// ArgsField returns the selector value for
// positional operand i of a register form.
func ArgsField(i int) string { return "args[" + strconv.Itoa(i) + "]" }

// ValueDef values.
const (
	// DefResult is an operand defined by another
	// instruction, which is matched in turn.
	DefResult = "Result"
	// DefParam is a pattern variable used once.
	DefParam = "Param"
	// DefConst is an inline constant,
	// followed by a ConstLeaf.
	DefConst = "Const"
)

// DefBind is the first use of a pattern variable
// that is used again later in the pattern.
func DefBind(k int) string { return "Bind(" + strconv.Itoa(k) + ")" }

// DefSame is a repeated use of pattern variable k.
func DefSame(k int) string { return "Same(" + strconv.Itoa(k) + ")" }

// ParseDef splits a ValueDef value into its
// name and parameter ordinal (zero if none).
func ParseDef(v string) (name string, k int, err error) {
	switch v {
	case DefResult, DefParam, DefConst:
		return v, 0, nil
	}
	for _, name := range []string{"Bind", "Same"} {
		if len(v) > len(name)+2 && v[:len(name)+1] == name+"(" && v[len(v)-1] == ')' {
			k, err := strconv.Atoi(v[len(name)+1 : len(v)-1])
			if err == nil && k > 0 {
				return name, k, nil
			}
		}
	}
	return "", 0, fmt.Errorf("dtree: bad value definition %q", v)
}

// Node is one decision node.
type Node struct {
	ID    NodeID
	Kind  Kind
	Value string
	// Level is the depth of the node;
	// the root of a tree has level 0.
	Level int
	// Next holds the forward links.
	Next []NodeID
	// Inst is the depth-first ordinal of the
	// pattern instruction this node belongs to.
	// For a Result ValueDef it is the ordinal of
	// the defining instruction that follows.
	Inst int
	// Var is the ordinal of the pattern variable
	// a Param, Bind, or Same ValueDef refers to.
	Var int
	// Width is the bit width of the instruction
	// (InstData) or variable (ValueDef).
	Width int
}

func (n *Node) String() string {
	return fmt.Sprintf("#%d %s %q level=%d next=%v", n.ID, n.Kind, n.Value, n.Level, n.Next)
}
