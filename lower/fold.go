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

package lower

import (
	"math/bits"

	"github.com/SnellerInc/peepgen/isa"
)

// Constant folding happens at 64 bits;
// rule constants carry no width of their own.

func fold1(op isa.Opcode, x int64) int64 {
	switch op {
	case isa.Popcnt:
		return int64(bits.OnesCount64(uint64(x)))
	case isa.Clz:
		return int64(bits.LeadingZeros64(uint64(x)))
	case isa.Ctz:
		return int64(bits.TrailingZeros64(uint64(x)))
	}
	panic("lower: cannot fold " + op.String())
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func fold2(desc opdesc, x, y int64) int64 {
	switch desc.op {
	case isa.Iadd:
		return x + y
	case isa.Isub:
		return x - y
	case isa.Imul:
		return x * y
	case isa.Band:
		return x & y
	case isa.Bor:
		return x | y
	case isa.Bxor:
		return x ^ y
	case isa.Ishl:
		return x << (uint64(y) & 63)
	case isa.Ushr:
		return int64(uint64(x) >> (uint64(y) & 63))
	case isa.Sshr:
		return x >> (uint64(y) & 63)
	case isa.Icmp:
		switch desc.cond {
		case isa.Eq:
			return b2i(x == y)
		case isa.Ne:
			return b2i(x != y)
		case isa.Slt:
			return b2i(x < y)
		case isa.Ult:
			return b2i(uint64(x) < uint64(y))
		case isa.Sle:
			return b2i(x <= y)
		case isa.Ule:
			return b2i(uint64(x) <= uint64(y))
		}
	}
	panic("lower: cannot fold " + desc.op.String())
}
