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
	"bufio"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/SnellerInc/peepgen/dtree"

	"golang.org/x/crypto/blake2b"
)

// Banner is the first line of every generated file.
const Banner = "// Code generated by peepgen; DO NOT EDIT."

const digestPrefix = "// input: "

// DefaultPreamble is emitted ahead of the
// generated functions when no other preamble
// is configured.
const DefaultPreamble = `use cranelift_codegen::cursor::{Cursor, FuncCursor};
use cranelift_codegen::ir::condcodes::IntCC;
use cranelift_codegen::ir::dfg::ValueDef;
use cranelift_codegen::ir::{types, Inst, InstBuilder, InstructionData, Opcode};`

// NewDigest returns the hash used to
// fingerprint the inputs of a generated file.
func NewDigest() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}

// File is one generated source file.
type File struct {
	// Digest is the hex-encoded digest of the inputs.
	Digest   string
	Preamble string
	Funcs    []*Func
}

// SetDigest records the digest accumulated in h.
func (f *File) SetDigest(h hash.Hash) {
	f.Digest = hex.EncodeToString(h.Sum(nil))
}

// WriteTo writes the file to w.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString(Banner + "\n")
	if f.Digest != "" {
		b.WriteString(digestPrefix + f.Digest + "\n")
	}
	for _, fn := range f.Funcs {
		fmt.Fprintf(&b, "// tree %s: %s (%d nodes, %d rules)\n",
			fn.Name, dtree.FingerprintString(fn.Fingerprint), fn.Stats.Nodes, fn.Stats.Actions)
	}
	if f.Preamble != "" {
		b.WriteString("\n" + strings.TrimRight(f.Preamble, "\n") + "\n")
	}
	for _, fn := range f.Funcs {
		b.WriteString("\n")
		b.WriteString(fn.Text)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// ReadDigest returns the input digest stamped into
// the header of a generated file, or the empty
// string if there is none.
func ReadDigest(r io.Reader) (string, error) {
	s := bufio.NewScanner(r)
	first := true
	for s.Scan() {
		line := s.Text()
		if first {
			if line != Banner {
				return "", fmt.Errorf("codegen: not a generated file")
			}
			first = false
			continue
		}
		if !strings.HasPrefix(line, "//") {
			break
		}
		if d, ok := strings.CutPrefix(line, digestPrefix); ok {
			return d, nil
		}
	}
	return "", s.Err()
}
