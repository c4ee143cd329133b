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

package analysis

import (
	"golang.org/x/tools/go/ssa"
)

// SSAStatsResult contains general statistics about the SSA representation of a set of functions
type SSAStatsResult struct {
	NumberOfFunctions         uint `json:"functions" yaml:"functions"`
	NumberOfNonemptyFunctions uint `json:"nonempty-functions" yaml:"nonempty-functions"`
	NumberOfBlocks            uint `json:"blocks" yaml:"blocks"`
	NumberOfInstructions      uint `json:"instructions" yaml:"instructions"`
	NumberOfCalls             uint `json:"calls" yaml:"calls"`
	NumberOfMemoryWrites      uint `json:"memory-writes" yaml:"memory-writes"`
}

// SSAStatistics returns a SSAStatsResult with general statistics about the SSA representation of the functions.
// Functions for which filter returns false are ignored; a nil filter keeps every function.
func SSAStatistics(functions map[*ssa.Function]bool, filter func(*ssa.Function) bool) SSAStatsResult {
	result := SSAStatsResult{}

	for f := range functions {
		if filter != nil && !filter(f) {
			continue
		}
		result.NumberOfFunctions++

		if len(f.Blocks) != 0 {
			result.NumberOfNonemptyFunctions++
			for _, b := range f.Blocks {
				result.NumberOfBlocks++
				result.NumberOfInstructions += uint(len(b.Instrs))
				for _, instr := range b.Instrs {
					switch instr.(type) {
					case ssa.CallInstruction:
						result.NumberOfCalls++
					case *ssa.Store, *ssa.MapUpdate, *ssa.Send:
						result.NumberOfMemoryWrites++
					}
				}
			}
		}
	}

	return result
}
