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
	"fmt"
	"go/token"
	"sort"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// FunctionCallDepInfo records, for one callee, how the caller binds the callee's formal arguments and the globals
// the callee references. Bindings are kept per call site; call sites in call mode and invoke sites (interface method
// calls and calls through function values) are kept apart.
type FunctionCallDepInfo struct {
	callee        *ssa.Function
	callArgs      map[ssa.CallInstruction]ArgumentDependenciesMap
	callGlobals   map[ssa.CallInstruction]GlobalsDependenciesMap
	invokeArgs    map[ssa.CallInstruction]ArgumentDependenciesMap
	invokeGlobals map[ssa.CallInstruction]GlobalsDependenciesMap
}

// NewFunctionCallDepInfo returns an empty summary of the calls to callee
func NewFunctionCallDepInfo(callee *ssa.Function) *FunctionCallDepInfo {
	return &FunctionCallDepInfo{
		callee:        callee,
		callArgs:      map[ssa.CallInstruction]ArgumentDependenciesMap{},
		callGlobals:   map[ssa.CallInstruction]GlobalsDependenciesMap{},
		invokeArgs:    map[ssa.CallInstruction]ArgumentDependenciesMap{},
		invokeGlobals: map[ssa.CallInstruction]GlobalsDependenciesMap{},
	}
}

// Callee returns the function whose calls are summarized
func (f *FunctionCallDepInfo) Callee() *ssa.Function { return f.callee }

// AddCallArgumentDependencies joins args into the argument bindings of the call site call
func (f *FunctionCallDepInfo) AddCallArgumentDependencies(call ssa.CallInstruction, args ArgumentDependenciesMap) {
	addArgs(f.callArgs, call, args)
}

// AddInvokeArgumentDependencies joins args into the argument bindings of the invoke site call
func (f *FunctionCallDepInfo) AddInvokeArgumentDependencies(call ssa.CallInstruction, args ArgumentDependenciesMap) {
	addArgs(f.invokeArgs, call, args)
}

// AddCallGlobalsDependencies joins globals into the global bindings of the call site call
func (f *FunctionCallDepInfo) AddCallGlobalsDependencies(call ssa.CallInstruction, globals GlobalsDependenciesMap) {
	addGlobals(f.callGlobals, call, globals)
}

// AddInvokeGlobalsDependencies joins globals into the global bindings of the invoke site call
func (f *FunctionCallDepInfo) AddInvokeGlobalsDependencies(call ssa.CallInstruction, globals GlobalsDependenciesMap) {
	addGlobals(f.invokeGlobals, call, globals)
}

func addArgs(m map[ssa.CallInstruction]ArgumentDependenciesMap, call ssa.CallInstruction,
	args ArgumentDependenciesMap) {
	cur, ok := m[call]
	if !ok {
		cur = make(ArgumentDependenciesMap, len(args))
		m[call] = cur
	}
	args.mergeInto(cur)
}

func addGlobals(m map[ssa.CallInstruction]GlobalsDependenciesMap, call ssa.CallInstruction,
	globals GlobalsDependenciesMap) {
	cur, ok := m[call]
	if !ok {
		cur = make(GlobalsDependenciesMap, len(globals))
		m[call] = cur
	}
	globals.mergeInto(cur)
}

// ArgumentDependenciesForCall returns the argument bindings of the call site call
func (f *FunctionCallDepInfo) ArgumentDependenciesForCall(call ssa.CallInstruction) (ArgumentDependenciesMap, bool) {
	m, ok := f.callArgs[call]
	return m, ok
}

// ArgumentDependenciesForInvoke returns the argument bindings of the invoke site call
func (f *FunctionCallDepInfo) ArgumentDependenciesForInvoke(call ssa.CallInstruction) (ArgumentDependenciesMap,
	bool) {
	m, ok := f.invokeArgs[call]
	return m, ok
}

// GlobalsDependenciesForCall returns the global bindings of the call site call
func (f *FunctionCallDepInfo) GlobalsDependenciesForCall(call ssa.CallInstruction) (GlobalsDependenciesMap, bool) {
	m, ok := f.callGlobals[call]
	return m, ok
}

// GlobalsDependenciesForInvoke returns the global bindings of the invoke site call
func (f *FunctionCallDepInfo) GlobalsDependenciesForInvoke(call ssa.CallInstruction) (GlobalsDependenciesMap,
	bool) {
	m, ok := f.invokeGlobals[call]
	return m, ok
}

// MergedArgumentDependencies returns the join of the argument bindings of every call and invoke site
func (f *FunctionCallDepInfo) MergedArgumentDependencies() ArgumentDependenciesMap {
	res := ArgumentDependenciesMap{}
	for _, m := range f.callArgs {
		m.mergeInto(res)
	}
	for _, m := range f.invokeArgs {
		m.mergeInto(res)
	}
	return res
}

// MergedGlobalsDependencies returns the join of the global bindings of every call and invoke site
func (f *FunctionCallDepInfo) MergedGlobalsDependencies() GlobalsDependenciesMap {
	res := GlobalsDependenciesMap{}
	for _, m := range f.callGlobals {
		m.mergeInto(res)
	}
	for _, m := range f.invokeGlobals {
		m.mergeInto(res)
	}
	return res
}

// Merge adds the call sites of other to f. Both must summarize calls to the same callee.
func (f *FunctionCallDepInfo) Merge(other *FunctionCallDepInfo) {
	if other.callee != f.callee {
		violation("merging calls to %s into calls to %s", other.callee, f.callee)
	}
	for call, m := range other.callArgs {
		addArgs(f.callArgs, call, m)
	}
	for call, m := range other.invokeArgs {
		addArgs(f.invokeArgs, call, m)
	}
	for call, m := range other.callGlobals {
		addGlobals(f.callGlobals, call, m)
	}
	for call, m := range other.invokeGlobals {
		addGlobals(f.invokeGlobals, call, m)
	}
}

// RemoveCall removes every binding of the call site call. Returns true if there was any.
func (f *FunctionCallDepInfo) RemoveCall(call ssa.CallInstruction) bool {
	_, a := f.callArgs[call]
	_, b := f.invokeArgs[call]
	_, c := f.callGlobals[call]
	_, d := f.invokeGlobals[call]
	delete(f.callArgs, call)
	delete(f.invokeArgs, call)
	delete(f.callGlobals, call)
	delete(f.invokeGlobals, call)
	return a || b || c || d
}

// CallSites returns the call and invoke sites of the callee, ordered by position
func (f *FunctionCallDepInfo) CallSites() []ssa.CallInstruction {
	set := map[ssa.CallInstruction]bool{}
	for _, m := range []map[ssa.CallInstruction]ArgumentDependenciesMap{f.callArgs, f.invokeArgs} {
		for call := range m {
			set[call] = true
		}
	}
	for _, m := range []map[ssa.CallInstruction]GlobalsDependenciesMap{f.callGlobals, f.invokeGlobals} {
		for call := range m {
			set[call] = true
		}
	}
	return sortedCalls(set)
}

// IsEmpty returns true when no call site is recorded
func (f *FunctionCallDepInfo) IsEmpty() bool {
	return len(f.callArgs) == 0 && len(f.invokeArgs) == 0 && len(f.callGlobals) == 0 && len(f.invokeGlobals) == 0
}

// isInvoke returns true if call is recorded as an invoke site
func (f *FunctionCallDepInfo) isInvoke(call ssa.CallInstruction) bool {
	_, a := f.invokeArgs[call]
	_, g := f.invokeGlobals[call]
	return a || g
}

// moveCall moves the bindings of call to to, renaming the formal arguments of the callee of f with rename.
// Returns false if f has no binding for call.
func (f *FunctionCallDepInfo) moveCall(call ssa.CallInstruction, to *FunctionCallDepInfo,
	rename func(ssa.Value) ssa.Value) bool {
	invoke := f.isInvoke(call)
	argsMap, globalsMap := f.callArgs, f.callGlobals
	toArgs, toGlobals := to.callArgs, to.callGlobals
	if invoke {
		argsMap, globalsMap = f.invokeArgs, f.invokeGlobals
		toArgs, toGlobals = to.invokeArgs, to.invokeGlobals
	}
	args, okArgs := argsMap[call]
	globals, okGlobals := globalsMap[call]
	if !okArgs && !okGlobals {
		return false
	}
	if okArgs {
		renamed := make(ArgumentDependenciesMap, len(args))
		for formal, d := range args {
			renamed[rename(formal)] = d
		}
		addArgs(toArgs, call, renamed)
	}
	if okGlobals {
		addGlobals(toGlobals, call, globals)
	}
	f.RemoveCall(call)
	return true
}

// updateArgBinding applies update to the binding of key at call. Returns false if there is no such binding.
func (f *FunctionCallDepInfo) updateArgBinding(invoke bool, call ssa.CallInstruction, key ssa.Value,
	update func(d *DepInfo)) bool {
	m := f.callArgs
	if invoke {
		m = f.invokeArgs
	}
	args, ok := m[call]
	if !ok {
		return false
	}
	d, ok := args[key]
	if !ok {
		return false
	}
	update(&d)
	args[key] = d
	return true
}

// updateGlobalBinding applies update to the binding of the global key at call. Returns false if there is no such
// binding.
func (f *FunctionCallDepInfo) updateGlobalBinding(invoke bool, call ssa.CallInstruction, key *ssa.Global,
	update func(d *DepInfo)) bool {
	m := f.callGlobals
	if invoke {
		m = f.invokeGlobals
	}
	globals, ok := m[call]
	if !ok {
		return false
	}
	d, ok := globals[key]
	if !ok {
		return false
	}
	update(&d)
	globals[key] = d
	return true
}

// forEachBinding applies fn to every binding
func (f *FunctionCallDepInfo) forEachBinding(fn func(d *DepInfo)) {
	for _, m := range []map[ssa.CallInstruction]ArgumentDependenciesMap{f.callArgs, f.invokeArgs} {
		for _, args := range m {
			for k, d := range args {
				fn(&d)
				args[k] = d
			}
		}
	}
	for _, m := range []map[ssa.CallInstruction]GlobalsDependenciesMap{f.callGlobals, f.invokeGlobals} {
		for _, globals := range m {
			for k, d := range globals {
				fn(&d)
				globals[k] = d
			}
		}
	}
}

func (f *FunctionCallDepInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "calls to %s:\n", f.callee)
	for _, call := range f.CallSites() {
		kind := "call"
		argsMap, globalsMap := f.callArgs, f.callGlobals
		if f.isInvoke(call) {
			kind = "invoke"
			argsMap, globalsMap = f.invokeArgs, f.invokeGlobals
		}
		fmt.Fprintf(&b, "  %s %s:\n", kind, call)
		for _, k := range sortedValues(argsMap[call]) {
			fmt.Fprintf(&b, "    %s <- %s\n", valueName(k), argsMap[call][k])
		}
		for _, g := range sortedGlobals(globalsMap[call]) {
			fmt.Fprintf(&b, "    %s <- %s\n", valueName(g), globalsMap[call][g])
		}
	}
	return b.String()
}

func sortedCalls(set map[ssa.CallInstruction]bool) []ssa.CallInstruction {
	res := make([]ssa.CallInstruction, 0, len(set))
	for call := range set {
		res = append(res, call)
	}
	sort.Slice(res, func(i, j int) bool {
		pi, pj := res[i].Pos(), res[j].Pos()
		if pi != pj && pi != token.NoPos && pj != token.NoPos {
			return pi < pj
		}
		return res[i].String() < res[j].String()
	})
	return res
}

func sortedValues[T any](m map[ssa.Value]T) []ssa.Value {
	res := make([]ssa.Value, 0, len(m))
	for v := range m {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return valueName(res[i]) < valueName(res[j]) })
	return res
}

func sortedGlobals[T any](m map[*ssa.Global]T) []*ssa.Global {
	res := make([]*ssa.Global, 0, len(m))
	for g := range m {
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RelString(nil) < res[j].RelString(nil) })
	return res
}
