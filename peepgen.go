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

// Package peepgen generates peephole optimizers
// from rewrite rules.
//
// Rules are read from rule files or canonical
// YAML/JSON files, lowered to canonical instruction
// sequences, merged into one decision tree per group,
// and rendered as dispatch functions. A rule that
// cannot be processed is reported and left out;
// every other rule is still generated.
package peepgen

import (
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/SnellerInc/peepgen/codegen"
	"github.com/SnellerInc/peepgen/compr"
	"github.com/SnellerInc/peepgen/dtree"

	"go.uber.org/zap"
	"sigs.k8s.io/yaml"
)

// Options controls code generation.
type Options struct {
	// Prefix is the prefix of function names;
	// each function is named Prefix followed
	// by the index of its group.
	Prefix string
	// GroupBy is GroupByFile or GroupAll.
	GroupBy string
	// Strict makes any rule error fatal.
	Strict bool
	// Preamble is written ahead of the functions.
	// If empty, codegen.DefaultPreamble is used.
	Preamble string
}

// Options returns the generation options of c.
func (c *Config) Options() *Options {
	return &Options{
		Prefix:   c.FunctionPrefix,
		GroupBy:  c.GroupBy,
		Strict:   c.Strict,
		Preamble: c.Preamble,
	}
}

func (o *Options) prefix() string {
	if o.Prefix == "" {
		return DefaultPrefix
	}
	return o.Prefix
}

func (o *Options) groupBy() string {
	if o.GroupBy == "" {
		return GroupByFile
	}
	return o.GroupBy
}

func (o *Options) preamble() string {
	if o.Preamble == "" {
		return codegen.DefaultPreamble
	}
	return o.Preamble
}

// Group is one merged tree and
// the function generated from it.
type Group struct {
	Name  string
	Files []string
	Tree  *dtree.Tree
	Func  *codegen.Func
}

// Result is the outcome of Run.
type Result struct {
	File   *codegen.File
	Groups []*Group
	// Errors lists the rules that were
	// left out of the generated code.
	Errors Errors
}

// WriteTo writes the generated file to w.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	return r.File.WriteTo(w)
}

// the digest covers everything the
// generated text depends on
func digestOptions(h hash.Hash, opts *Options) {
	fmt.Fprintf(h, "prefix=%s\x00group=%s\x00preamble=%s\x00", opts.prefix(), opts.groupBy(), opts.preamble())
}

func digestFile(h hash.Hash, path string, buf []byte) {
	fmt.Fprintf(h, "%s\x00%d\x00", filepath.Base(path), len(buf))
	h.Write(buf)
}

// Digest returns the digest that Run
// would stamp into the file it generates
// from inputs.
func Digest(inputs []string, opts *Options) (string, error) {
	h := codegen.NewDigest()
	digestOptions(h, opts)
	for _, path := range inputs {
		buf, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		digestFile(h, path, buf)
	}
	f := &codegen.File{}
	f.SetDigest(h)
	return f.Digest, nil
}

// Check returns whether the generated file at
// output was produced from the current inputs.
func Check(output string, inputs []string, opts *Options) (bool, error) {
	f, err := os.Open(output)
	if err != nil {
		return false, err
	}
	defer f.Close()
	got, err := codegen.ReadDigest(f)
	if err != nil {
		return false, fmt.Errorf("%s: %w", output, err)
	}
	want, err := Digest(inputs, opts)
	if err != nil {
		return false, err
	}
	return got == want, nil
}

type group struct {
	files []string
	srcs  []Source
}

// Run generates a dispatch function for each
// group of rules read from inputs.
//
// Rule errors are collected in Result.Errors
// and the offending rules are skipped. In strict
// mode any rule error aborts the run, and the
// returned error is an Errors. A pattern that is
// repeated with the same replacement is only
// logged; one repeated with a different
// replacement is a rule error.
func Run(inputs []string, opts *Options) (*Result, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("peepgen: no inputs")
	}
	switch opts.groupBy() {
	case GroupByFile, GroupAll:
	default:
		return nil, fmt.Errorf("peepgen: unknown grouping %q", opts.GroupBy)
	}
	log := Logger()
	h := codegen.NewDigest()
	digestOptions(h, opts)

	var errs Errors
	var groups []*group
	for _, path := range inputs {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		digestFile(h, path, buf)
		srcs, rerrs := load(path, buf)
		log.Debug("loaded",
			zap.String("file", path),
			zap.Int("rules", len(srcs)),
			zap.Int("errors", len(rerrs)),
		)
		errs = append(errs, rerrs...)
		if opts.groupBy() == GroupAll {
			if len(groups) == 0 {
				groups = append(groups, &group{})
			}
			groups[0].files = append(groups[0].files, path)
			groups[0].srcs = append(groups[0].srcs, srcs...)
		} else {
			groups = append(groups, &group{files: []string{path}, srcs: srcs})
		}
	}

	res := &Result{
		File: &codegen.File{Preamble: opts.preamble()},
	}
	for i, g := range groups {
		name := fmt.Sprintf("%s%d", opts.prefix(), i)
		tree, merr := merge(g.srcs, log.With(zap.String("func", name)))
		errs = append(errs, merr...)
		if len(tree.Actionable()) == 0 {
			log.Warn("no rules to generate", zap.String("func", name), zap.Strings("files", g.files))
			continue
		}
		res.Groups = append(res.Groups, &Group{Name: name, Files: g.files, Tree: tree})
	}
	if len(errs) > 0 && opts.Strict {
		return nil, errs
	}
	for _, g := range res.Groups {
		fn, err := codegen.Generate(g.Tree, g.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", g.Name, err)
		}
		log.Info("generated",
			zap.String("func", fn.Name),
			zap.String("fingerprint", dtree.FingerprintString(fn.Fingerprint)),
			zap.Int("nodes", fn.Stats.Nodes),
			zap.Int("rules", fn.Stats.Actions),
			zap.Int("depth", fn.Stats.MaxDepth),
		)
		g.Func = fn
		res.File.Funcs = append(res.File.Funcs, fn)
	}
	res.File.SetDigest(h)
	res.Errors = errs
	return res, nil
}

// merge builds a tree from srcs,
// returning the rules it could not merge
func merge(srcs []Source, log *zap.Logger) (*dtree.Tree, Errors) {
	tree := dtree.New()
	var errs Errors
	for i := range srcs {
		src := &srcs[i]
		trie, err := dtree.Build(src.LHS)
		if err != nil {
			errs = append(errs, &RuleError{Rule: src.Name, Pos: src.Pos, Err: err})
			continue
		}
		leaf, err := tree.Insert(trie, dtree.Action{
			Rule:        src.Name,
			Pos:         src.Pos,
			Replacement: src.RHS,
		})
		if err != nil {
			var dup *dtree.DuplicateError
			if errors.As(err, &dup) && dup.Same {
				log.Warn("duplicate rule",
					zap.String("rule", src.Name),
					zap.String("pos", src.Pos),
					zap.String("existing", dup.Existing),
				)
				continue
			}
			errs = append(errs, &RuleError{Rule: src.Name, Pos: src.Pos, Err: err})
			continue
		}
		log.Debug("merged",
			zap.String("rule", src.Name),
			zap.Int32("leaf", int32(leaf)),
			zap.Int("nodes", tree.Len()),
		)
	}
	return tree, errs
}

// WriteDump writes a YAML snapshot of each
// tree to path, compressed according to the
// extension of path (see compr.ForPath).
func (r *Result) WriteDump(path string) error {
	snaps := make(map[string]*dtree.Snapshot, len(r.Groups))
	for _, g := range r.Groups {
		snaps[g.Name] = g.Tree.Snapshot()
	}
	buf, err := yaml.Marshal(snaps)
	if err != nil {
		return err
	}
	if name := compr.ForPath(path); name != "" {
		buf = compr.Compression(name).Compress(buf, nil)
	}
	return os.WriteFile(path, buf, 0644)
}

// ReadDump reads a dump written by WriteDump.
func ReadDump(path string) (map[string]*dtree.Snapshot, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if name := compr.ForPath(path); name != "" {
		buf, err = compr.Decompression(name).Decompress(buf, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	var out map[string]*dtree.Snapshot
	if err := yaml.Unmarshal(buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}
