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

package dtree

import (
	"fmt"
)

// NotFoundError is returned when a
// node ID is not present in an arena.
type NotFoundError struct {
	ID NodeID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dtree: node #%d not found", e.ID)
}

// DuplicateError is returned from Tree.Insert
// when a pattern is already fully present in
// the tree.
type DuplicateError struct {
	// Leaf is the node the existing rule is attached to.
	Leaf NodeID
	// Existing is the rule already attached there.
	Existing string
	// Same is set when the replacement
	// is identical to the existing one.
	Same bool
}

func (e *DuplicateError) Error() string {
	if e.Same {
		return fmt.Sprintf("pattern and replacement duplicate rule %s", e.Existing)
	}
	return fmt.Sprintf("pattern duplicates rule %s with a different replacement", e.Existing)
}

// PathError is returned when a chain of
// nodes cannot be read back into a sequence.
type PathError struct {
	At  NodeID
	Msg string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("dtree: node #%d: %s", e.At, e.Msg)
}
