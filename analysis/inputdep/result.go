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
	"github.com/awslabs/argot-inputdep/analysis/lang"
	"github.com/awslabs/argot-inputdep/internal/funcutil"
	"golang.org/x/tools/go/ssa"
)

// FunctionResult is the result of the input dependency analysis of one function, as seen by the callers of the
// function and by the transformations that consume the verdicts.
type FunctionResult interface {
	// Function returns the analyzed function
	Function() *ssa.Function

	// IsInputDependent returns true if instr may depend on the input. Instructions the result does not know about
	// are input dependent.
	IsInputDependent(instr ssa.Instruction) bool
	// IsInputIndependent returns true if instr is known not to depend on the input
	IsInputIndependent(instr ssa.Instruction) bool
	// IsInputDependentBlock returns true if some instruction of b may depend on the input
	IsInputDependentBlock(b *ssa.BasicBlock) bool

	// IsInputDepFunction returns true if the behavior of the function depends on the input whatever its arguments
	IsInputDepFunction() bool
	SetIsInputDepFunction(bool)
	// IsExtractedFunction marks functions that were extracted from input independent regions
	IsExtractedFunction() bool
	SetIsExtractedFunction(bool)

	// CalledFunctions returns the callees that have call summaries, sorted by name
	CalledFunctions() []*ssa.Function
	// FunctionCallDepInfo returns the summary of the calls to callee
	FunctionCallDepInfo(callee *ssa.Function) (*FunctionCallDepInfo, bool)
	// ChangeFunctionCall moves the bindings of call from oldCallee to newCallee, renaming the formal arguments by
	// position. Returns false if call has no binding for oldCallee.
	ChangeFunctionCall(call ssa.CallInstruction, oldCallee, newCallee *ssa.Function) bool

	// Stats returns the counters of the result
	Stats() Stats

	// ReturnDependency returns the dependency of the returned values, relative to the formal arguments and the
	// referenced globals
	ReturnDependency() DepInfo
	// OutParamDependencies maps the reference formal arguments written by the function to the written dependency
	OutParamDependencies() ArgumentDependenciesMap
	// GlobalsDependencies maps the globals written by the function to the written dependency
	GlobalsDependencies() GlobalsDependenciesMap
	// ReferencedGlobals returns the globals the summaries depend on, sorted by name
	ReferencedGlobals() []*ssa.Global

	// Freeze makes the result read-only
	Freeze()
	IsFrozen() bool
}

// Stats are the counters of a function result. Unknown instructions are reachable instructions whose dependency
// still refers to arguments or globals.
type Stats struct {
	InputDepInstructions    int `json:"input-dep-instructions" yaml:"input-dep-instructions" msgpack:"input-dep-instructions"`
	InputIndepInstructions  int `json:"input-indep-instructions" yaml:"input-indep-instructions" msgpack:"input-indep-instructions"`
	InputDepBlocks          int `json:"input-dep-blocks" yaml:"input-dep-blocks" msgpack:"input-dep-blocks"`
	InputIndepBlocks        int `json:"input-indep-blocks" yaml:"input-indep-blocks" msgpack:"input-indep-blocks"`
	UnreachableBlocks       int `json:"unreachable-blocks" yaml:"unreachable-blocks" msgpack:"unreachable-blocks"`
	UnreachableInstructions int `json:"unreachable-instructions" yaml:"unreachable-instructions" msgpack:"unreachable-instructions"`
	UnknownInstructions     int `json:"unknown-instructions" yaml:"unknown-instructions" msgpack:"unknown-instructions"`
}

// Add adds the counters of other to s
func (s *Stats) Add(other Stats) {
	s.InputDepInstructions += other.InputDepInstructions
	s.InputIndepInstructions += other.InputIndepInstructions
	s.InputDepBlocks += other.InputDepBlocks
	s.InputIndepBlocks += other.InputIndepBlocks
	s.UnreachableBlocks += other.UnreachableBlocks
	s.UnreachableInstructions += other.UnreachableInstructions
	s.UnknownInstructions += other.UnknownInstructions
}

// Instructions returns the number of reachable instructions
func (s Stats) Instructions() int {
	return s.InputDepInstructions + s.InputIndepInstructions + s.UnknownInstructions
}

// callSummaries are the call summaries of a function result, keyed by callee
type callSummaries map[*ssa.Function]*FunctionCallDepInfo

func (c callSummaries) CalledFunctions() []*ssa.Function {
	return funcutil.KeysSortedBy(c, (*ssa.Function).String)
}

func (c callSummaries) FunctionCallDepInfo(callee *ssa.Function) (*FunctionCallDepInfo, bool) {
	info, ok := c[callee]
	return info, ok
}

func (c callSummaries) ChangeFunctionCall(call ssa.CallInstruction, oldCallee, newCallee *ssa.Function) bool {
	info, ok := c[oldCallee]
	if !ok {
		return false
	}
	oldFormals := lang.FormalArguments(oldCallee)
	newFormals := lang.FormalArguments(newCallee)
	rename := func(v ssa.Value) ssa.Value {
		for i, f := range oldFormals {
			if f == v && i < len(newFormals) {
				return newFormals[i]
			}
		}
		return v
	}
	target, exists := c[newCallee]
	if !exists {
		target = NewFunctionCallDepInfo(newCallee)
	}
	if !info.moveCall(call, target, rename) {
		return false
	}
	c[newCallee] = target
	if info.IsEmpty() {
		delete(c, oldCallee)
	}
	return true
}

// get returns the summary of the calls to callee, creating it if needed
func (c callSummaries) get(callee *ssa.Function) *FunctionCallDepInfo {
	info, ok := c[callee]
	if !ok {
		info = NewFunctionCallDepInfo(callee)
		c[callee] = info
	}
	return info
}

// FunctionAnalysisResult is the result computed by AnalyzeFunction
type FunctionAnalysisResult struct {
	callSummaries

	fn     *ssa.Function
	frozen bool

	isInputDepFunction  bool
	isExtractedFunction bool

	deps        map[ssa.Instruction]DepInfo
	unreachable map[*ssa.BasicBlock]bool

	returnDep         DepInfo
	outParams         ArgumentDependenciesMap
	globals           GlobalsDependenciesMap
	globalStores      GlobalsDependenciesMap
	referencedGlobals []*ssa.Global

	argumentsFinalized bool
	globalsFinalized   bool
	iterations         int
}

func newFunctionAnalysisResult(fn *ssa.Function) *FunctionAnalysisResult {
	r := &FunctionAnalysisResult{fn: fn, unreachable: map[*ssa.BasicBlock]bool{}}
	r.reset()
	return r
}

// reset clears everything a pass over the blocks computes
func (r *FunctionAnalysisResult) reset() {
	r.mustNotBeFrozen()
	r.callSummaries = callSummaries{}
	r.deps = map[ssa.Instruction]DepInfo{}
	r.returnDep = DepInfo{}
	r.outParams = ArgumentDependenciesMap{}
	r.globals = GlobalsDependenciesMap{}
	r.globalStores = GlobalsDependenciesMap{}
	r.referencedGlobals = nil
}

func (r *FunctionAnalysisResult) mustNotBeFrozen() {
	if r.frozen {
		violation("modifying the frozen result of %s", r.fn)
	}
}

// Function implements FunctionResult
func (r *FunctionAnalysisResult) Function() *ssa.Function { return r.fn }

// Iterations returns the number of passes the analysis of the function took
func (r *FunctionAnalysisResult) Iterations() int { return r.iterations }

// InstructionDependency returns the dependency of instr
func (r *FunctionAnalysisResult) InstructionDependency(instr ssa.Instruction) (DepInfo, bool) {
	d, ok := r.deps[instr]
	return d, ok
}

// IsInputDependent implements FunctionResult. Until the result is finalized, instructions that depend on arguments
// or globals are input dependent.
func (r *FunctionAnalysisResult) IsInputDependent(instr ssa.Instruction) bool {
	d, ok := r.deps[instr]
	if !ok {
		return true
	}
	return !d.IsInputIndep()
}

// IsInputIndependent implements FunctionResult
func (r *FunctionAnalysisResult) IsInputIndependent(instr ssa.Instruction) bool {
	d, ok := r.deps[instr]
	return ok && d.IsInputIndep()
}

// IsInputDependentBlock implements FunctionResult
func (r *FunctionAnalysisResult) IsInputDependentBlock(b *ssa.BasicBlock) bool {
	for _, instr := range b.Instrs {
		if r.IsInputDependent(instr) {
			return true
		}
	}
	return false
}

// IsUnreachableBlock returns true if b cannot be reached from the entry of the function
func (r *FunctionAnalysisResult) IsUnreachableBlock(b *ssa.BasicBlock) bool { return r.unreachable[b] }

func (r *FunctionAnalysisResult) IsInputDepFunction() bool      { return r.isInputDepFunction }
func (r *FunctionAnalysisResult) SetIsInputDepFunction(b bool)  { r.isInputDepFunction = b }
func (r *FunctionAnalysisResult) IsExtractedFunction() bool     { return r.isExtractedFunction }
func (r *FunctionAnalysisResult) SetIsExtractedFunction(b bool) { r.isExtractedFunction = b }

// Stats implements FunctionResult
func (r *FunctionAnalysisResult) Stats() Stats {
	var s Stats
	for _, b := range r.fn.Blocks {
		if r.unreachable[b] {
			s.UnreachableBlocks++
			s.UnreachableInstructions += len(b.Instrs)
			continue
		}
		if r.IsInputDependentBlock(b) {
			s.InputDepBlocks++
		} else {
			s.InputIndepBlocks++
		}
		for _, instr := range b.Instrs {
			d := r.deps[instr]
			switch {
			case d.Floor() == InputDep:
				s.InputDepInstructions++
			case d.IsInputIndep():
				s.InputIndepInstructions++
			default:
				s.UnknownInstructions++
			}
		}
	}
	return s
}

// ReturnDependency implements FunctionResult
func (r *FunctionAnalysisResult) ReturnDependency() DepInfo { return r.returnDep }

// OutParamDependencies implements FunctionResult
func (r *FunctionAnalysisResult) OutParamDependencies() ArgumentDependenciesMap {
	res := make(ArgumentDependenciesMap, len(r.outParams))
	r.outParams.mergeInto(res)
	return res
}

// GlobalsDependencies implements FunctionResult
func (r *FunctionAnalysisResult) GlobalsDependencies() GlobalsDependenciesMap {
	res := make(GlobalsDependenciesMap, len(r.globals))
	r.globals.mergeInto(res)
	return res
}

// GlobalStores returns, for every global the function writes to, the join of the dependencies of every write
func (r *FunctionAnalysisResult) GlobalStores() GlobalsDependenciesMap {
	res := make(GlobalsDependenciesMap, len(r.globalStores))
	r.globalStores.mergeInto(res)
	return res
}

// ReferencedGlobals implements FunctionResult
func (r *FunctionAnalysisResult) ReferencedGlobals() []*ssa.Global { return r.referencedGlobals }

// Freeze implements FunctionResult
func (r *FunctionAnalysisResult) Freeze() { r.frozen = true }

// IsFrozen implements FunctionResult
func (r *FunctionAnalysisResult) IsFrozen() bool { return r.frozen }

// FinalizeArguments binds the formal arguments the verdicts depend on to binding. Arguments missing from binding are
// input dependent. The summaries are left relative to the formal arguments.
func (r *FunctionAnalysisResult) FinalizeArguments(binding ArgumentDependenciesMap) {
	apply := func(d DepInfo) DepInfo {
		b := make(map[ssa.Value]DepInfo, len(d.ArgumentDependencies()))
		for a := range d.ArgumentDependencies() {
			if x, ok := binding[a]; ok {
				b[a] = x
			} else {
				b[a] = NewDepInfo(InputDep)
			}
		}
		return d.substituteArguments(b)
	}
	r.finalize(apply)
	r.argumentsFinalized = true
}

// FinalizeGlobals binds the globals the verdicts depend on to binding. Globals missing from binding are input
// dependent.
func (r *FunctionAnalysisResult) FinalizeGlobals(binding GlobalsDependenciesMap) {
	apply := func(d DepInfo) DepInfo {
		b := make(map[ssa.Value]DepInfo, len(d.ValueDependencies()))
		for v := range d.ValueDependencies() {
			g, ok := v.(*ssa.Global)
			if !ok {
				violation("unresolved value %s in the result of %s", v, r.fn)
			}
			if x, found := binding[g]; found {
				b[v] = x
			} else {
				b[v] = NewDepInfo(InputDep)
			}
		}
		return d.substituteValues(b)
	}
	r.finalize(apply)
	r.globalsFinalized = true
}

func (r *FunctionAnalysisResult) finalize(apply func(DepInfo) DepInfo) {
	for instr, d := range r.deps {
		r.deps[instr] = apply(d)
	}
	for _, info := range r.callSummaries {
		info.forEachBinding(func(d *DepInfo) { *d = apply(*d) })
	}
}

// pendingGlobals returns the globals the verdicts and the call bindings are pending on
func (r *FunctionAnalysisResult) pendingGlobals() map[*ssa.Global]bool {
	res := map[*ssa.Global]bool{}
	add := func(d DepInfo) {
		for v := range d.ValueDependencies() {
			if g, ok := v.(*ssa.Global); ok {
				res[g] = true
			}
		}
	}
	for _, d := range r.deps {
		add(d)
	}
	for _, info := range r.callSummaries {
		info.forEachBinding(func(d *DepInfo) { add(*d) })
	}
	return res
}

// IsFinalized returns true once both the arguments and the globals have been finalized
func (r *FunctionAnalysisResult) IsFinalized() bool { return r.argumentsFinalized && r.globalsFinalized }

// ClonedFunctionResult is the result of a function created by a transformation from an analyzed function. Its
// verdicts are given instead of computed; its summary is conservative.
type ClonedFunctionResult struct {
	callSummaries

	fn     *ssa.Function
	frozen bool

	isInputDepFunction  bool
	isExtractedFunction bool

	inputDep       map[ssa.Instruction]bool
	inputIndep     map[ssa.Instruction]bool
	inputDepBlocks map[*ssa.BasicBlock]bool
}

// NewClonedFunctionResult returns the result of fn, seeded with the sets of input dependent instructions, input
// independent instructions and input dependent blocks.
func NewClonedFunctionResult(fn *ssa.Function, inputDep, inputIndep map[ssa.Instruction]bool,
	inputDepBlocks map[*ssa.BasicBlock]bool) *ClonedFunctionResult {
	return &ClonedFunctionResult{
		callSummaries:  callSummaries{},
		fn:             fn,
		inputDep:       copySet(inputDep),
		inputIndep:     copySet(inputIndep),
		inputDepBlocks: copySet(inputDepBlocks),
	}
}

func copySet[T comparable](s map[T]bool) map[T]bool {
	res := make(map[T]bool, len(s))
	for x, b := range s {
		if b {
			res[x] = true
		}
	}
	return res
}

// SetFunctionCallDepInfo sets the summary of the calls to the callee of info
func (c *ClonedFunctionResult) SetFunctionCallDepInfo(info *FunctionCallDepInfo) {
	if c.frozen {
		violation("modifying the frozen result of %s", c.fn)
	}
	c.callSummaries[info.Callee()] = info
}

func (c *ClonedFunctionResult) Function() *ssa.Function { return c.fn }

func (c *ClonedFunctionResult) IsInputDependent(instr ssa.Instruction) bool {
	return c.inputDep[instr] || !c.inputIndep[instr]
}

func (c *ClonedFunctionResult) IsInputIndependent(instr ssa.Instruction) bool {
	return !c.inputDep[instr] && c.inputIndep[instr]
}

func (c *ClonedFunctionResult) IsInputDependentBlock(b *ssa.BasicBlock) bool { return c.inputDepBlocks[b] }

func (c *ClonedFunctionResult) IsInputDepFunction() bool      { return c.isInputDepFunction }
func (c *ClonedFunctionResult) SetIsInputDepFunction(b bool)  { c.isInputDepFunction = b }
func (c *ClonedFunctionResult) IsExtractedFunction() bool     { return c.isExtractedFunction }
func (c *ClonedFunctionResult) SetIsExtractedFunction(b bool) { c.isExtractedFunction = b }

// Stats counts the blocks that cannot be reached from the entry as unreachable, and the reachable instructions that
// were given no verdict as unknown. Queries answer input dependent for them.
func (c *ClonedFunctionResult) Stats() Stats {
	var s Stats
	reachable := make(map[*ssa.BasicBlock]bool, len(c.fn.Blocks))
	for _, b := range lang.ReversePostorder(c.fn) {
		reachable[b] = true
	}
	for _, b := range c.fn.Blocks {
		if !reachable[b] {
			s.UnreachableBlocks++
			s.UnreachableInstructions += len(b.Instrs)
			continue
		}
		if c.IsInputDependentBlock(b) {
			s.InputDepBlocks++
		} else {
			s.InputIndepBlocks++
		}
		for _, instr := range b.Instrs {
			switch {
			case c.inputDep[instr]:
				s.InputDepInstructions++
			case c.inputIndep[instr]:
				s.InputIndepInstructions++
			default:
				s.UnknownInstructions++
			}
		}
	}
	return s
}

// ReturnDependency is input dependent: the cloned body is not analyzed
func (c *ClonedFunctionResult) ReturnDependency() DepInfo { return NewDepInfo(InputDep) }

// OutParamDependencies maps every reference parameter to InputDep
func (c *ClonedFunctionResult) OutParamDependencies() ArgumentDependenciesMap {
	return conservativeSummary(c.fn).OutParams
}

func (c *ClonedFunctionResult) GlobalsDependencies() GlobalsDependenciesMap { return GlobalsDependenciesMap{} }
func (c *ClonedFunctionResult) ReferencedGlobals() []*ssa.Global            { return nil }
func (c *ClonedFunctionResult) Freeze()                                     { c.frozen = true }
func (c *ClonedFunctionResult) IsFrozen() bool                              { return c.frozen }
