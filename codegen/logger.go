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

// Package codegen renders merged decision
// trees as dispatch functions for the target
// compiler's instruction selector.
//
// The generated code destructures the instruction
// under test with nested match expressions whose
// block structure mirrors the branches of the tree,
// and replaces the instruction in place wherever a
// rule's pattern is fully matched.
package codegen

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the codegen package's logger.
// It uses a no-op logger by default.
// Every visited decision node is logged at debug level.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the codegen package's logger.
// This must be called before any code is generated.
func SetLogger(l *zap.Logger) {
	logger = l
}
