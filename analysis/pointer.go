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
	"fmt"
	"go/types"

	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// DoPointerAnalysis runs the pointer analysis on the program p, marking every value in the functions filtered by
// functionFilter as potential value to query for aliasing.
//
// - p is the program to be analyzed
//
// - functionFilter determines whether to add the values of the function in the Queries of the result
//
// - buildCallGraph determines whether the analysis must also build the callgraph of the program
//
// If error == nil, every pointer-like operand of the functions f such that functionFilter(f) is true is in the
// Queries of the pointer.Result
func DoPointerAnalysis(p *ssa.Program, functionFilter func(*ssa.Function) bool, buildCallGraph bool) (*pointer.Result,
	error) {
	mains := ssautil.MainPackages(p.AllPackages())
	if len(mains) == 0 {
		return nil, fmt.Errorf("pointer analysis needs a main package")
	}
	pCfg := &pointer.Config{
		Mains:           mains,
		Reflection:      false,
		BuildCallGraph:  buildCallGraph,
		Queries:         make(map[ssa.Value]struct{}),
		IndirectQueries: make(map[ssa.Value]struct{}),
	}

	for function := range ssautil.AllFunctions(p) {
		// If the function is a user-defined function (it can be from a dependency) then every value that can
		// can potentially alias is marked for querying.
		if functionFilter(function) {
			for _, b := range function.Blocks {
				for _, instr := range b.Instrs {
					addQuery(pCfg, instr)
				}
			}
		}
	}

	// Do the pointer analysis
	return pointer.Analyze(pCfg)
}

// addQuery adds a query for the instruction to the pointer configuration, performing all the necessary checks to
// ensure the query can be added safely.
func addQuery(cfg *pointer.Config, instruction ssa.Instruction) {
	if instruction == nil {
		return
	}
	if v, ok := instruction.(ssa.Value); ok && canQuery(v.Type()) {
		cfg.AddQuery(v)
	}
	for _, operand := range instruction.Operands([]*ssa.Value{}) {
		if *operand != nil && (*operand).Type() != nil && canQuery((*operand).Type()) {
			cfg.AddQuery(*operand)
		}
	}
}

// canQuery wraps pointer.CanPoint because typ.Underlying() may panic despite typ being non-nil
func canQuery(typ types.Type) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			// Occurs on a *ssa.opaqueType
			ok = false
		}
	}()
	return pointer.CanPoint(typ)
}
