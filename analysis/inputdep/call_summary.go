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
	"golang.org/x/tools/go/ssa"
)

// CallSummary is what a caller needs to know about a callee: dependencies relative to the formal arguments of the
// callee and to the globals it references.
type CallSummary struct {
	// Return is the dependency of the returned value
	Return DepInfo
	// OutParams maps reference formal arguments to the dependency of what the callee writes through them
	OutParams ArgumentDependenciesMap
	// Globals maps the globals the callee writes to the dependency of the written values
	Globals GlobalsDependenciesMap
	// ReferencedGlobals are the globals whose value at the call matters to the callee
	ReferencedGlobals []*ssa.Global
}

// BoundCall is the effect of a call at one call site, relative to the caller
type BoundCall struct {
	Return    DepInfo
	OutParams ArgumentDependenciesMap
	Globals   GlobalsDependenciesMap
}

// Bind substitutes the formal arguments of the callee with args and the globals with globals. Formal arguments
// missing from args are bound to InputDep; globals missing from globals stay pending.
func (s CallSummary) Bind(args ArgumentDependenciesMap, globals GlobalsDependenciesMap) BoundCall {
	gv := globals.asValueMap()
	bind := func(d DepInfo) DepInfo {
		binding := make(map[ssa.Value]DepInfo, len(d.ArgumentDependencies()))
		for a := range d.ArgumentDependencies() {
			if b, ok := args[a]; ok {
				binding[a] = b
			} else {
				binding[a] = NewDepInfo(InputDep)
			}
		}
		return d.substituteArguments(binding).substituteValues(gv)
	}
	res := BoundCall{
		Return:    bind(s.Return),
		OutParams: make(ArgumentDependenciesMap, len(s.OutParams)),
		Globals:   make(GlobalsDependenciesMap, len(s.Globals)),
	}
	for p, d := range s.OutParams {
		res.OutParams[p] = bind(d)
	}
	for g, d := range s.Globals {
		res.Globals[g] = bind(d)
	}
	return res
}

// summaryOf returns the summary of an analyzed function
func summaryOf(r FunctionResult) CallSummary {
	return CallSummary{
		Return:            r.ReturnDependency(),
		OutParams:         r.OutParamDependencies(),
		Globals:           r.GlobalsDependencies(),
		ReferencedGlobals: r.ReferencedGlobals(),
	}
}

// conservativeSummary is the summary of a function nothing is known about
func conservativeSummary(fn *ssa.Function) CallSummary {
	s := CallSummary{Return: NewDepInfo(InputDep), OutParams: ArgumentDependenciesMap{}}
	if fn == nil {
		return s
	}
	for _, p := range fn.Params {
		if isReferenceParam(p) {
			s.OutParams[p] = NewDepInfo(InputDep)
		}
	}
	return s
}

// equalSummaries returns true if a and b are the same summaries
func equalSummaries(a, b CallSummary) bool {
	if !a.Return.Equal(b.Return) || len(a.OutParams) != len(b.OutParams) || len(a.Globals) != len(b.Globals) {
		return false
	}
	for p, d := range a.OutParams {
		if o, ok := b.OutParams[p]; !ok || !o.Equal(d) {
			return false
		}
	}
	for g, d := range a.Globals {
		if o, ok := b.Globals[g]; !ok || !o.Equal(d) {
			return false
		}
	}
	if len(a.ReferencedGlobals) != len(b.ReferencedGlobals) {
		return false
	}
	for i := range a.ReferencedGlobals {
		if a.ReferencedGlobals[i] != b.ReferencedGlobals[i] {
			return false
		}
	}
	return true
}
