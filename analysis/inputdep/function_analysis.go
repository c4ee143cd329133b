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
	"sort"

	"github.com/awslabs/argot-inputdep/analysis/config"
	"github.com/awslabs/argot-inputdep/analysis/lang"
	"golang.org/x/tools/go/ssa"
)

// FunctionEnv is what the analysis of a function needs from the rest of the program
type FunctionEnv struct {
	// Oracle decides which writes may reach a memory location. Defaults to the TypeBasedOracle.
	Oracle AliasOracle
	// Library provides the summaries of functions that are not analyzed. It is consulted first.
	Library LibraryTable
	// Lookup returns the summary of an analyzed callee, and false when the callee has not been analyzed.
	Lookup func(*ssa.Function) (CallSummary, bool)
	// Callees returns the possible callees of call sites without a static callee
	Callees func(ssa.CallInstruction) []*ssa.Function
	// Logger defaults to a log group at the default level
	Logger *config.LogGroup
	// MaxIterations bounds the number of passes over the blocks of the function
	MaxIterations int
}

func (env FunctionEnv) withDefaults() FunctionEnv {
	if env.Oracle == nil {
		env.Oracle = TypeBasedOracle{}
	}
	if env.Library == nil {
		env.Library = emptyLibrary{}
	}
	if env.Logger == nil {
		env.Logger = config.NewLogGroup(config.NewDefault())
	}
	if env.MaxIterations <= 0 {
		env.MaxIterations = config.DefaultMaxFixpointIterations
	}
	return env
}

var sizes = types.SizesFor("gc", "amd64")

// memoryState maps the memory roots to the dependency of their content, and records which instructions may have
// written each root.
//
// Deferred calls and goroutines may write a root at any later point of the function, up to its exit. Their writes
// are also kept in pending, and no strong update removes them.
type memoryState struct {
	deps    map[ssa.Value]DepInfo
	writers map[ssa.Value]map[ssa.Instruction]bool

	pending        map[ssa.Value]DepInfo
	pendingWriters map[ssa.Value]map[ssa.Instruction]bool
}

func newMemoryState() *memoryState {
	return &memoryState{
		deps:           map[ssa.Value]DepInfo{},
		writers:        map[ssa.Value]map[ssa.Instruction]bool{},
		pending:        map[ssa.Value]DepInfo{},
		pendingWriters: map[ssa.Value]map[ssa.Instruction]bool{},
	}
}

func (m *memoryState) clone() *memoryState {
	c := &memoryState{
		deps:           make(map[ssa.Value]DepInfo, len(m.deps)),
		writers:        make(map[ssa.Value]map[ssa.Instruction]bool, len(m.writers)),
		pending:        make(map[ssa.Value]DepInfo, len(m.pending)),
		pendingWriters: make(map[ssa.Value]map[ssa.Instruction]bool, len(m.pendingWriters)),
	}
	for r, d := range m.deps {
		c.deps[r] = d
	}
	for r, ws := range m.writers {
		c.writers[r] = copySet(ws)
	}
	for r, d := range m.pending {
		c.pending[r] = d
	}
	for r, ws := range m.pendingWriters {
		c.pendingWriters[r] = copySet(ws)
	}
	return c
}

func (m *memoryState) equal(other *memoryState) bool {
	return ValueDependencies(m.deps).Equal(other.deps) &&
		ValueDependencies(m.pending).Equal(other.pending) &&
		equalWriters(m.writers, other.writers) &&
		equalWriters(m.pendingWriters, other.pendingWriters)
}

func equalWriters(a, b map[ssa.Value]map[ssa.Instruction]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for r, ws := range a {
		ows, ok := b[r]
		if !ok || len(ws) != len(ows) {
			return false
		}
		for w := range ws {
			if !ows[w] {
				return false
			}
		}
	}
	return true
}

// addPending records that the deferred call or goroutine instr may write a value of dependency d in root
func (m *memoryState) addPending(root ssa.Value, instr ssa.Instruction, d DepInfo) {
	if cur, ok := m.pending[root]; ok {
		d = Merge(cur, d)
	}
	m.pending[root] = d
	addWriter(m.pendingWriters, root, instr)
}

func addWriter(writers map[ssa.Value]map[ssa.Instruction]bool, root ssa.Value, instr ssa.Instruction) {
	ws, ok := writers[root]
	if !ok {
		ws = map[ssa.Instruction]bool{}
		writers[root] = ws
	}
	ws[instr] = true
}

// functionAnalysis is the state of the analysis of one function
type functionAnalysis struct {
	env    FunctionEnv
	fn     *ssa.Function
	result *FunctionAnalysisResult

	order     []*ssa.BasicBlock
	reachable map[*ssa.BasicBlock]bool
	cdeps     [][]*ssa.BasicBlock

	in     map[*ssa.BasicBlock]*memoryState
	out    map[*ssa.BasicBlock]*memoryState
	exit   *memoryState
	blocks map[*ssa.BasicBlock]*blockAnalysis
	// exitIndex indexes the summary entries computed from the exit state
	exitIndex reverseIndex
}

// AnalyzeFunction computes the input dependency of every instruction of fn. The blocks are analyzed in reverse
// postorder, repeatedly, until the memory state at the entry of every block is stable; the pending dependencies are
// then resolved by reflection. The result is not frozen.
//
// Callees are summarized by env.Library first, then by env.Lookup. Calls to functions without a summary are input
// dependent and may write input dependent values through their reference arguments.
func AnalyzeFunction(fn *ssa.Function, env FunctionEnv) *FunctionAnalysisResult {
	if len(fn.Blocks) == 0 {
		violation("analyzing %s, which has no body", fn)
	}
	env = env.withDefaults()
	fa := &functionAnalysis{
		env:       env,
		fn:        fn,
		result:    newFunctionAnalysisResult(fn),
		reachable: map[*ssa.BasicBlock]bool{},
		cdeps:     lang.ControlDependences(fn),
		in:        map[*ssa.BasicBlock]*memoryState{},
		out:       map[*ssa.BasicBlock]*memoryState{},
	}
	fa.order = lang.ReversePostorder(fn)
	if fn.Recover != nil && !containsBlock(fa.order, fn.Recover) {
		fa.order = append(fa.order, fn.Recover)
	}
	for _, b := range fa.order {
		fa.reachable[b] = true
	}

	if !fa.fixpoint() {
		env.Logger.Warnf("%s did not stabilize after %d passes, assuming input dependent\n", fn, env.MaxIterations)
		fa.giveUp()
		return fa.result
	}
	fa.markUnreachable()
	fa.summarize()
	fa.reflect()
	fa.result.referencedGlobals = fa.referencedGlobals()
	for _, d := range fa.result.deps {
		if d.Floor() == InputDep {
			fa.result.isInputDepFunction = true
			break
		}
	}
	env.Logger.Debugf("%s analyzed in %d passes: return %s\n", fn, fa.result.iterations, fa.result.returnDep)
	return fa.result
}

// fixpoint runs passes until the entry states are stable. Returns false if the bound on the number of passes was
// reached first.
func (fa *functionAnalysis) fixpoint() bool {
	for i := 1; i <= fa.env.MaxIterations; i++ {
		fa.result.iterations = i
		if !fa.pass() {
			return true
		}
		fa.env.Logger.Tracef("%s: pass %d changed some block entry state\n", fa.fn, i)
	}
	return false
}

// pass analyzes every reachable block once. Returns true if the entry state of some block changed.
func (fa *functionAnalysis) pass() bool {
	fa.result.reset()
	fa.blocks = map[*ssa.BasicBlock]*blockAnalysis{}
	fa.exit = nil
	changed := false
	for _, b := range fa.order {
		in := fa.entryState(b)
		if old, ok := fa.in[b]; ok {
			// widening: entry states only grow
			in = fa.join(old, in)
			changed = changed || !in.equal(old)
		} else {
			changed = true
		}
		fa.in[b] = in
		ba := newBlockAnalysis(fa, b, in.clone())
		ba.run()
		fa.out[b] = ba.state
		fa.blocks[b] = ba
	}
	return changed
}

// entryState joins the exit states of the predecessors of b that have one
func (fa *functionAnalysis) entryState(b *ssa.BasicBlock) *memoryState {
	var preds []*memoryState
	if b == fa.fn.Recover {
		// any instruction may panic
		for _, p := range fa.order {
			if o, ok := fa.out[p]; ok && p != b {
				preds = append(preds, o)
			}
		}
	} else {
		for _, p := range b.Preds {
			if o, ok := fa.out[p]; ok {
				preds = append(preds, o)
			}
		}
	}
	if len(preds) == 0 {
		return newMemoryState()
	}
	state := preds[0].clone()
	for _, o := range preds[1:] {
		state = fa.join(state, o)
	}
	return state
}

// join returns the join of a and b. A root absent from one of the states has its default dependency there.
func (fa *functionAnalysis) join(a, b *memoryState) *memoryState {
	res := newMemoryState()
	for _, s := range []*memoryState{a, b} {
		for r := range s.deps {
			if _, done := res.deps[r]; done {
				continue
			}
			res.deps[r] = Merge(fa.stateDep(a, r), fa.stateDep(b, r))
		}
		for r, ws := range s.writers {
			for w := range ws {
				addWriter(res.writers, r, w)
			}
		}
		for r, ws := range s.pendingWriters {
			for w := range ws {
				res.addPending(r, w, s.pending[r])
			}
		}
	}
	return res
}

func (fa *functionAnalysis) stateDep(s *memoryState, root ssa.Value) DepInfo {
	if d, ok := s.deps[root]; ok {
		return d
	}
	return fa.defaultDep(root)
}

// defaultDep is the dependency of the content of root before the function writes it
func (fa *functionAnalysis) defaultDep(root ssa.Value) DepInfo {
	switch r := root.(type) {
	case *ssa.Alloc, *ssa.MakeMap, *ssa.MakeChan, *ssa.MakeSlice:
		return NewDepInfo(InputIndep)
	case *ssa.Global:
		return NewValueDep(r)
	case *ssa.Parameter, *ssa.FreeVar:
		if lang.IsFormalArgument(fa.fn, r) {
			return NewArgumentDep(r)
		}
		return NewDepInfo(InputDep)
	default:
		return fa.valueDep(root)
	}
}

// valueDep returns the dependency of v at this point of the current pass. Instructions that have not been analyzed
// yet in the pass are pending.
func (fa *functionAnalysis) valueDep(v ssa.Value) DepInfo {
	switch x := v.(type) {
	case nil:
		return NewDepInfo(InputIndep)
	case *ssa.Const, *ssa.Function, *ssa.Builtin, *ssa.Global:
		return NewDepInfo(InputIndep)
	case *ssa.Parameter, *ssa.FreeVar:
		if lang.IsFormalArgument(fa.fn, x) {
			return NewArgumentDep(x)
		}
		return NewDepInfo(InputDep)
	case ssa.Instruction:
		if d, ok := fa.result.deps[x]; ok {
			return d
		}
		return NewValueDep(v)
	default:
		return NewDepInfo(InputDep)
	}
}

// controlDep returns the join of the dependencies of the branches b is control dependent on
func (fa *functionAnalysis) controlDep(b *ssa.BasicBlock) DepInfo {
	d := NewDepInfo(InputIndep)
	if b.Index < 0 || b.Index >= len(fa.cdeps) {
		return d
	}
	for _, branch := range fa.cdeps[b.Index] {
		d.MergeDependencies(fa.branchDep(branch))
	}
	return d
}

// branchDep returns the dependency of the terminating branch of b
func (fa *functionAnalysis) branchDep(b *ssa.BasicBlock) DepInfo {
	last := lang.LastInstr(b)
	if last == nil {
		return NewDepInfo(InputIndep)
	}
	if d, ok := fa.result.deps[last]; ok {
		return d
	}
	if cond, ok := last.(*ssa.If); ok {
		return fa.valueDep(cond.Cond)
	}
	return NewDepInfo(InputIndep)
}

// sizeOf returns the size of the memory addressed by addr. Only pointers can address zero bytes: the content of
// maps and channels always matters.
func (fa *functionAnalysis) sizeOf(addr ssa.Value) int64 {
	t := lang.PointeeType(addr.Type())
	if t == nil {
		return 1
	}
	size := sizes.Sizeof(t)
	if _, isPtr := addr.Type().Underlying().(*types.Pointer); !isPtr && size == 0 {
		return 1
	}
	return size
}

// markUnreachable records the blocks the passes did not visit. Their instructions are input independent.
func (fa *functionAnalysis) markUnreachable() {
	for _, b := range fa.fn.Blocks {
		if fa.reachable[b] {
			continue
		}
		fa.result.unreachable[b] = true
		for _, instr := range b.Instrs {
			fa.result.deps[instr] = NewDepInfo(InputIndep)
		}
	}
}

// summarize computes the out-parameters and the written globals from the exit state
func (fa *functionAnalysis) summarize() {
	fa.exitIndex = reverseIndex{}
	exit := fa.exit
	if exit == nil {
		exit = newMemoryState()
	}
	for _, formal := range lang.FormalArguments(fa.fn) {
		if !isReferenceParam(formal) {
			continue
		}
		written := len(exit.writers[formal]) > 0
		d := fa.stateDep(exit, formal)
		if !written {
			d = NewDepInfo(InputIndep)
		}
		size := fa.sizeOf(formal)
		for r, ws := range exit.writers {
			if r == formal || isObjectRoot(r) || lang.IsFormalArgument(fa.fn, r) {
				continue
			}
			for w := range ws {
				if fa.env.Oracle.MayWrite(w, formal, size) {
					d.MergeDependencies(fa.stateDep(exit, r))
					written = true
					break
				}
			}
		}
		if written {
			fa.result.outParams[formal] = d
			fa.exitIndex.add(d, slot{kind: slotOutParam, key: formal})
		}
	}
	for r := range exit.writers {
		if g, ok := r.(*ssa.Global); ok {
			d := fa.stateDep(exit, g)
			fa.result.globals[g] = d
			fa.exitIndex.add(d, slot{kind: slotGlobalWrite, key: g})
		}
	}
}

// giveUp replaces the results of the passes by conservative ones
func (fa *functionAnalysis) giveUp() {
	r := fa.result
	for _, b := range fa.fn.Blocks {
		for _, instr := range b.Instrs {
			r.deps[instr] = NewDepInfo(InputDep)
		}
	}
	for _, info := range r.callSummaries {
		info.forEachBinding(func(d *DepInfo) { d.SetDependency(InputDep) })
	}
	r.returnDep = NewDepInfo(InputDep)
	r.outParams = conservativeSummary(fa.fn).OutParams
	for _, fv := range fa.fn.FreeVars {
		if isReferenceParam(fv) {
			r.outParams[fv] = NewDepInfo(InputDep)
		}
	}
	for g := range r.globals {
		r.globals[g] = NewDepInfo(InputDep)
	}
	if fa.exit != nil {
		for root := range fa.exit.writers {
			if g, ok := root.(*ssa.Global); ok {
				r.globals[g] = NewDepInfo(InputDep)
			}
		}
	}
	for g := range r.globalStores {
		r.globalStores[g] = NewDepInfo(InputDep)
	}
	r.isInputDepFunction = true
}

// referencedGlobals returns the globals the summary depends on and the globals the function uses
func (fa *functionAnalysis) referencedGlobals() []*ssa.Global {
	set := map[*ssa.Global]bool{}
	addPending := func(d DepInfo) {
		for v := range d.ValueDependencies() {
			if g, ok := v.(*ssa.Global); ok {
				set[g] = true
			}
		}
	}
	addPending(fa.result.returnDep)
	for _, d := range fa.result.outParams {
		addPending(d)
	}
	for _, d := range fa.result.globals {
		addPending(d)
	}
	var operands []*ssa.Value
	for _, b := range fa.fn.Blocks {
		for _, instr := range b.Instrs {
			operands = instr.Operands(operands[:0])
			for _, op := range operands {
				if g, ok := (*op).(*ssa.Global); ok {
					set[g] = true
				}
			}
		}
	}
	res := make([]*ssa.Global, 0, len(set))
	for g := range set {
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RelString(nil) < res[j].RelString(nil) })
	return res
}

func containsBlock(blocks []*ssa.BasicBlock, b *ssa.BasicBlock) bool {
	for _, x := range blocks {
		if x == b {
			return true
		}
	}
	return false
}
