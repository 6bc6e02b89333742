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

// Command peepgen generates a peephole
// optimizer from a set of rewrite rules.
//
// Usage:
//
//	peepgen [-c config.yaml] [-o out.rs] [-prefix superopt_] [-group file|all]
//	        [-strict] [-dump tree.yaml[.zst|.s2]] [-check] [-v] files...
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/SnellerInc/peepgen"
	"github.com/SnellerInc/peepgen/codegen"

	"go.uber.org/zap"
)

var (
	dashc      string
	dasho      string
	dashprefix string
	dashgroup  string
	dashstrict bool
	dashdump   string
	dashcheck  bool
	dashv      bool
)

func init() {
	flag.StringVar(&dashc, "c", "", "YAML configuration file")
	flag.StringVar(&dasho, "o", "", "output file (default is stdout)")
	flag.StringVar(&dashprefix, "prefix", peepgen.DefaultPrefix, "prefix of generated function names")
	flag.StringVar(&dashgroup, "group", peepgen.GroupByFile, "generate one function per \"file\" or for \"all\" inputs")
	flag.BoolVar(&dashstrict, "strict", false, "fail if any rule is rejected")
	flag.StringVar(&dashdump, "dump", "", "write a snapshot of each decision tree to this file (.zst and .s2 are compressed)")
	flag.BoolVar(&dashcheck, "check", false, "exit with status 1 if the output is stale")
	flag.BoolVar(&dashv, "v", false, "log every decision node visited")
}

func exitf(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

// config reads the configuration file, if any,
// and applies the flags given on the command line
func config() *peepgen.Config {
	c := peepgen.DefaultConfig()
	if dashc != "" {
		var err error
		c, err = peepgen.LoadConfig(dashc)
		if err != nil {
			exitf("%s", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			c.Output = dasho
		case "prefix":
			c.FunctionPrefix = dashprefix
		case "group":
			c.GroupBy = dashgroup
		case "strict":
			c.Strict = dashstrict
		case "dump":
			c.Dump = dashdump
		case "v":
			if dashv {
				c.Log.Level = "debug"
			}
		}
	})
	if flag.NArg() > 0 {
		c.Inputs = flag.Args()
	}
	if err := c.Validate(); err != nil {
		exitf("%s", err)
	}
	return c
}

func main() {
	flag.Parse()
	c := config()
	if len(c.Inputs) == 0 {
		exitf("usage: %s [flags] files...", os.Args[0])
	}
	log, err := peepgen.NewLogger(&c.Log)
	if err != nil {
		exitf("%s", err)
	}
	defer log.Sync()
	peepgen.SetLogger(log)
	codegen.SetLogger(log)

	if dashcheck {
		if c.Output == "" {
			exitf("-check requires an output file")
		}
		ok, err := peepgen.Check(c.Output, c.Inputs, c.Options())
		if err != nil {
			exitf("%s", err)
		}
		if !ok {
			exitf("%s is out of date", c.Output)
		}
		return
	}

	res, err := peepgen.Run(c.Inputs, c.Options())
	if err != nil {
		exitf("%s", err)
	}
	for _, e := range res.Errors {
		fmt.Fprintln(os.Stderr, e)
	}
	if c.Dump != "" {
		if err := res.WriteDump(c.Dump); err != nil {
			exitf("%s", err)
		}
	}
	var buf bytes.Buffer
	if _, err := res.WriteTo(&buf); err != nil {
		exitf("%s", err)
	}
	if c.Output == "" {
		os.Stdout.Write(buf.Bytes())
		return
	}
	// a previous run left the output read-only
	os.Remove(c.Output)
	const rdonly = 0444
	if err := os.WriteFile(c.Output, buf.Bytes(), rdonly); err != nil {
		exitf("%s", err)
	}
	log.Info("wrote output",
		zap.String("file", c.Output),
		zap.Int("functions", len(res.File.Funcs)),
		zap.Int("rejected", len(res.Errors)),
	)
}
