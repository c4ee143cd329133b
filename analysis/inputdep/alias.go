// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inputdep

import (
	"go/types"

	"github.com/awslabs/argot-inputdep/analysis/lang"
	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
)

// An AliasOracle decides whether a write may modify the memory at some location
type AliasOracle interface {
	// MayWrite returns true if instr may write to the sizeHint bytes at location. location is an address (a pointer,
	// or a slice, map or channel value).
	MayWrite(instr ssa.Instruction, location ssa.Value, sizeHint int64) bool
}

// TypeBasedOracle approximates aliasing with types: distinct allocations never alias, other addresses may alias when
// they point to identical types.
type TypeBasedOracle struct{}

// MayWrite implements AliasOracle
func (o TypeBasedOracle) MayWrite(instr ssa.Instruction, location ssa.Value, sizeHint int64) bool {
	if sizeHint == 0 {
		return false
	}
	for _, addr := range writtenAddresses(instr) {
		if o.mayAlias(addr, location) {
			return true
		}
	}
	return false
}

func (TypeBasedOracle) mayAlias(a, b ssa.Value) bool {
	ra, rb := lang.MemoryRoot(a), lang.MemoryRoot(b)
	if ra == rb {
		return true
	}
	if isObjectRoot(ra) && isObjectRoot(rb) {
		return false
	}
	ta, tb := lang.PointeeType(a.Type()), lang.PointeeType(b.Type())
	if ta == nil || tb == nil {
		// unsafe pointers
		return true
	}
	if types.Identical(ta, tb) {
		return true
	}
	rta, rtb := lang.PointeeType(ra.Type()), lang.PointeeType(rb.Type())
	return rta != nil && rtb != nil && types.Identical(rta, rtb)
}

// PointsToOracle answers with the result of the pointer analysis. Locations that were not queried are handled by the
// type-based approximation.
type PointsToOracle struct {
	result   *pointer.Result
	fallback TypeBasedOracle
}

// NewPointsToOracle returns an oracle that uses the queries of result
func NewPointsToOracle(result *pointer.Result) *PointsToOracle {
	return &PointsToOracle{result: result}
}

// MayWrite implements AliasOracle
func (o *PointsToOracle) MayWrite(instr ssa.Instruction, location ssa.Value, sizeHint int64) bool {
	if sizeHint == 0 {
		return false
	}
	for _, addr := range writtenAddresses(instr) {
		pa, okA := o.result.Queries[addr]
		pb, okB := o.result.Queries[location]
		if okA && okB {
			if pa.MayAlias(pb) {
				return true
			}
			continue
		}
		if o.fallback.mayAlias(addr, location) {
			return true
		}
	}
	return false
}

// writtenAddresses returns the addresses instr may write to. Calls may write through any of their reference
// arguments.
func writtenAddresses(instr ssa.Instruction) []ssa.Value {
	if addrs := lang.WrittenAddresses(instr); addrs != nil {
		return addrs
	}
	call, ok := instr.(ssa.CallInstruction)
	if !ok {
		return nil
	}
	if b, isBuiltin := call.Common().Value.(*ssa.Builtin); isBuiltin {
		if b.Name() == "append" {
			return call.Common().Args[:1]
		}
		return nil
	}
	var res []ssa.Value
	for _, arg := range lang.GetArgs(call) {
		if isReferenceParam(arg) {
			res = append(res, arg)
		}
	}
	if mc, isClosure := call.Common().Value.(*ssa.MakeClosure); isClosure {
		for _, b := range mc.Bindings {
			if isReferenceParam(b) {
				res = append(res, b)
			}
		}
	}
	return res
}

// isObjectRoot returns true if v is the address of a memory object of its own: a global, or a fresh allocation
func isObjectRoot(v ssa.Value) bool {
	switch v.(type) {
	case *ssa.Alloc, *ssa.Global, *ssa.MakeMap, *ssa.MakeChan, *ssa.MakeSlice:
		return true
	default:
		return false
	}
}
