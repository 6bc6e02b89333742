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
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Grouping modes.
const (
	// GroupByFile generates one
	// function per input file.
	GroupByFile = "file"
	// GroupAll generates a single
	// function for every input.
	GroupAll = "all"
)

// DefaultPrefix is the default
// prefix of generated function names.
const DefaultPrefix = "superopt_"

// LogConfig configures the log stream.
type LogConfig struct {
	// Level is a zap level name
	// (debug, info, warn, error).
	Level string `json:"level,omitempty"`
	// Format is "json" or "console".
	Format string `json:"format,omitempty"`
}

// Config is the configuration of a run.
// It is read from a YAML file and
// overridden by command-line flags.
type Config struct {
	Inputs         []string  `json:"inputs,omitempty"`
	Output         string    `json:"output,omitempty"`
	FunctionPrefix string    `json:"function_prefix,omitempty"`
	GroupBy        string    `json:"group_by,omitempty"`
	Preamble       string    `json:"preamble,omitempty"`
	Strict         bool      `json:"strict,omitempty"`
	Dump           string    `json:"dump,omitempty"`
	Log            LogConfig `json:"log"`
}

// DefaultConfig returns the configuration
// used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		FunctionPrefix: DefaultPrefix,
		GroupBy:        GroupByFile,
		Log:            LogConfig{Level: "info", Format: "console"},
	}
}

// LoadConfig reads a YAML configuration file.
// Unset fields take their default values, and
// unknown fields are an error.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

// ParseConfig is like LoadConfig,
// but reads from buf.
func ParseConfig(buf []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.UnmarshalStrict(buf, c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the values of c.
func (c *Config) Validate() error {
	switch c.GroupBy {
	case GroupByFile, GroupAll:
	default:
		return fmt.Errorf("config: group_by must be %q or %q, not %q", GroupByFile, GroupAll, c.GroupBy)
	}
	if c.FunctionPrefix == "" {
		return fmt.Errorf("config: function_prefix must not be empty")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}
