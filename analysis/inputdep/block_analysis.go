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
	"go/token"
	"go/types"

	"github.com/awslabs/argot-inputdep/analysis/config"
	"github.com/awslabs/argot-inputdep/analysis/lang"
	"golang.org/x/tools/go/ssa"
)

// blockAnalysis computes the dependencies of the instructions of one block in one pass. It implements lang.InstrOp.
// Every dependency it records is indexed by the values it is pending on, for reflection.
type blockAnalysis struct {
	fa    *functionAnalysis
	block *ssa.BasicBlock
	state *memoryState
	cdep  DepInfo
	index reverseIndex
	// deferred is set while the effects of a deferred call or a goroutine are applied
	deferred bool
}

func newBlockAnalysis(fa *functionAnalysis, block *ssa.BasicBlock, state *memoryState) *blockAnalysis {
	return &blockAnalysis{fa: fa, block: block, state: state, index: reverseIndex{}}
}

func (ba *blockAnalysis) run() {
	ba.cdep = ba.fa.controlDep(ba.block)
	for _, instr := range ba.block.Instrs {
		lang.InstrSwitch(ba, instr)
	}
}

// record sets the dependency of instr to d joined with the control dependency of the block
func (ba *blockAnalysis) record(instr ssa.Instruction, d DepInfo) DepInfo {
	d.MergeDependencies(ba.cdep)
	ba.fa.result.deps[instr] = d
	ba.index.add(d, slot{kind: slotInstruction, instr: instr})
	if ba.fa.env.Logger.LevelEnabled(config.TraceLevel) {
		ba.fa.env.Logger.Tracef("  %s: %s\n", instr, d)
	}
	return d
}

func (ba *blockAnalysis) dep(v ssa.Value) DepInfo { return ba.fa.valueDep(v) }

// operands returns the join of the dependencies of the operands of instr
func (ba *blockAnalysis) operands(instr ssa.Instruction) DepInfo {
	d := NewDepInfo(InputIndep)
	for _, op := range instr.Operands(nil) {
		if *op != nil {
			d.MergeDependencies(ba.dep(*op))
		}
	}
	return d
}

// get returns the dependency of the content of root in the current state
func (ba *blockAnalysis) get(root ssa.Value) DepInfo { return ba.fa.stateDep(ba.state, root) }

// load returns the dependency of the memory addressed by addr: the content of its root, and of every other root
// some write to which may reach addr
func (ba *blockAnalysis) load(addr ssa.Value) DepInfo {
	root := lang.MemoryRoot(addr)
	d := ba.get(root)
	size := ba.fa.sizeOf(addr)
	for r, ws := range ba.state.writers {
		if r == root {
			continue
		}
		for w := range ws {
			if ba.fa.env.Oracle.MayWrite(w, addr, size) {
				d.MergeDependencies(ba.get(r))
				break
			}
		}
	}
	return d
}

// write records that instr writes a value of dependency d at addr. The update is strong only when addr is the root
// itself, and it keeps the writes of the deferred calls and goroutines started before.
func (ba *blockAnalysis) write(instr ssa.Instruction, addr ssa.Value, d DepInfo, strong bool) {
	root := lang.MemoryRoot(addr)
	switch {
	case ba.deferred:
		ba.state.addPending(root, instr, d)
		ba.state.deps[root] = Merge(ba.get(root), d)
		addWriter(ba.state.writers, root, instr)
	case strong && root == addr:
		ws := map[ssa.Instruction]bool{instr: true}
		if p, ok := ba.state.pending[root]; ok {
			d = Merge(d, p)
			for w := range ba.state.pendingWriters[root] {
				ws[w] = true
			}
		}
		ba.state.deps[root] = d
		ba.state.writers[root] = ws
	default:
		ba.state.deps[root] = Merge(ba.get(root), d)
		addWriter(ba.state.writers, root, instr)
	}
	if g, ok := root.(*ssa.Global); ok {
		stores := ba.fa.result.globalStores
		stores[g] = Merge(stores[g], d)
		ba.index.add(d, slot{kind: slotGlobalStore, key: g})
	}
}

func (ba *blockAnalysis) DoDebugRef(x *ssa.DebugRef) { ba.record(x, ba.dep(x.X)) }

func (ba *blockAnalysis) DoUnOp(x *ssa.UnOp) {
	d := ba.dep(x.X)
	switch x.Op {
	case token.MUL, token.ARROW:
		d.MergeDependencies(ba.load(x.X))
	}
	ba.record(x, d)
}

func (ba *blockAnalysis) DoBinOp(x *ssa.BinOp) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoCall(x *ssa.Call) { ba.record(x, ba.call(x)) }

func (ba *blockAnalysis) DoChangeInterface(x *ssa.ChangeInterface) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoChangeType(x *ssa.ChangeType) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoConvert(x *ssa.Convert) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoSliceArrayToPointer(x *ssa.SliceToArrayPointer) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoMakeInterface(x *ssa.MakeInterface) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoExtract(x *ssa.Extract) { ba.record(x, ba.dep(x.Tuple)) }

func (ba *blockAnalysis) DoSlice(x *ssa.Slice) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoReturn(x *ssa.Return) {
	d := ba.record(x, ba.operands(x))
	r := ba.fa.result
	r.returnDep = Merge(r.returnDep, d)
	ba.index.add(d, slot{kind: slotReturn})
	if ba.fa.exit == nil {
		ba.fa.exit = ba.state.clone()
	} else {
		ba.fa.exit = ba.fa.join(ba.fa.exit, ba.state)
	}
}

func (ba *blockAnalysis) DoRunDefers(x *ssa.RunDefers) { ba.record(x, NewDepInfo(InputIndep)) }

func (ba *blockAnalysis) DoPanic(x *ssa.Panic) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoSend(x *ssa.Send) {
	d := ba.record(x, ba.operands(x))
	ba.write(x, x.Chan, d, false)
}

func (ba *blockAnalysis) DoStore(x *ssa.Store) {
	d := ba.record(x, ba.operands(x))
	ba.write(x, x.Addr, d, true)
}

func (ba *blockAnalysis) DoIf(x *ssa.If) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoJump(x *ssa.Jump) { ba.record(x, NewDepInfo(InputIndep)) }

// DoDefer binds the call at the defer statement, where its arguments are evaluated. Its writes happen at the exit of
// the function, after any store that follows: they stay pending in the memory state until then.
func (ba *blockAnalysis) DoDefer(x *ssa.Defer) { ba.record(x, ba.deferredCall(x)) }

// DoGo binds the call like DoDefer: the goroutine may write at any point after it starts.
func (ba *blockAnalysis) DoGo(x *ssa.Go) { ba.record(x, ba.deferredCall(x)) }

func (ba *blockAnalysis) deferredCall(instr ssa.CallInstruction) DepInfo {
	ba.deferred = true
	defer func() { ba.deferred = false }()
	return ba.call(instr)
}

func (ba *blockAnalysis) DoMakeChan(x *ssa.MakeChan) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoAlloc(x *ssa.Alloc) { ba.record(x, NewDepInfo(InputIndep)) }

func (ba *blockAnalysis) DoMakeSlice(x *ssa.MakeSlice) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoMakeMap(x *ssa.MakeMap) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoRange(x *ssa.Range) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoNext(x *ssa.Next) {
	d := ba.dep(x.Iter)
	if rng, ok := x.Iter.(*ssa.Range); ok && !x.IsString {
		d.MergeDependencies(ba.load(rng.X))
	}
	ba.record(x, d)
}

func (ba *blockAnalysis) DoFieldAddr(x *ssa.FieldAddr) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoField(x *ssa.Field) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoIndexAddr(x *ssa.IndexAddr) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoIndex(x *ssa.Index) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoLookup(x *ssa.Lookup) {
	d := ba.operands(x)
	if _, isMap := x.X.Type().Underlying().(*types.Map); isMap {
		d.MergeDependencies(ba.load(x.X))
	}
	ba.record(x, d)
}

func (ba *blockAnalysis) DoMapUpdate(x *ssa.MapUpdate) {
	d := ba.record(x, ba.operands(x))
	ba.write(x, x.Map, d, false)
}

func (ba *blockAnalysis) DoTypeAssert(x *ssa.TypeAssert) { ba.record(x, ba.operands(x)) }

func (ba *blockAnalysis) DoMakeClosure(x *ssa.MakeClosure) { ba.record(x, ba.operands(x)) }

// DoPhi joins the edges with the branches that decide which edge is taken
func (ba *blockAnalysis) DoPhi(x *ssa.Phi) {
	d := NewDepInfo(InputIndep)
	for i, edge := range x.Edges {
		d.MergeDependencies(ba.dep(edge))
		if i < len(x.Block().Preds) {
			pred := x.Block().Preds[i]
			d.MergeDependencies(ba.fa.controlDep(pred))
			if len(pred.Succs) > 1 {
				d.MergeDependencies(ba.fa.branchDep(pred))
			}
		}
	}
	ba.record(x, d)
}

// DoSelect makes the choice of a select with several cases input dependent: it depends on scheduling.
func (ba *blockAnalysis) DoSelect(x *ssa.Select) {
	d := ba.operands(x)
	for _, st := range x.States {
		switch st.Dir {
		case types.RecvOnly:
			d.MergeDependencies(ba.load(st.Chan))
		case types.SendOnly:
			ba.write(x, st.Chan, Merge(ba.dep(st.Send), ba.cdep), false)
		}
	}
	if len(x.States) > 1 || !x.Blocking {
		d.MergeDependency(InputDep)
	}
	ba.record(x, d)
}

// call returns the dependency of the result of a call, and applies its effects on the memory state
func (ba *blockAnalysis) call(instr ssa.CallInstruction) DepInfo {
	common := instr.Common()
	if b, ok := common.Value.(*ssa.Builtin); ok {
		return ba.builtin(instr, b)
	}
	res := NewDepInfo(InputIndep)
	var callees []*ssa.Function
	if f := common.StaticCallee(); f != nil {
		callees = []*ssa.Function{f}
	} else {
		// the callee is chosen by the function value or the receiver
		res.MergeDependencies(ba.dep(common.Value))
		if ba.fa.env.Callees != nil {
			callees = ba.fa.env.Callees(instr)
		}
	}
	if len(callees) == 0 {
		ba.fa.env.Logger.Debugf("no callee for %s in %s, assuming input dependent\n", instr, ba.fa.fn)
		res.MergeDependencies(ba.conservativeCall(instr))
		return res
	}
	for _, callee := range callees {
		res.MergeDependencies(ba.callTo(instr, callee))
	}
	return res
}

// callTo binds the summary of callee at instr
func (ba *blockAnalysis) callTo(instr ssa.CallInstruction, callee *ssa.Function) DepInfo {
	invoke := instr.Common().StaticCallee() == nil
	args, actuals, ok := ba.bindArguments(instr, callee)
	if !ok {
		ba.fa.env.Logger.Warnf("%s cannot call %s: arguments do not match\n", instr, callee)
		return ba.conservativeCall(instr)
	}
	info := ba.fa.result.get(callee)
	if invoke {
		info.AddInvokeArgumentDependencies(instr, args)
	} else {
		info.AddCallArgumentDependencies(instr, args)
	}
	ba.indexCallSite(info, instr, invoke)

	var bound BoundCall
	if lib, isLib := ba.fa.env.Library.Resolved(callee); isLib {
		bound = lib.BindCall(args)
	} else if summary, analyzed := ba.lookup(callee); analyzed {
		globals := make(GlobalsDependenciesMap, len(summary.ReferencedGlobals))
		for _, g := range summary.ReferencedGlobals {
			globals[g] = ba.get(g)
		}
		if invoke {
			info.AddInvokeGlobalsDependencies(instr, globals)
		} else {
			info.AddCallGlobalsDependencies(instr, globals)
		}
		ba.indexCallSite(info, instr, invoke)
		bound = summary.Bind(args, globals)
	} else {
		ba.fa.env.Logger.Debugf("no summary for %s, assuming input dependent\n", callee)
		return ba.conservativeCall(instr)
	}

	for formal, d := range bound.OutParams {
		if actual, found := actuals[formal]; found && isReferenceParam(actual) {
			ba.write(instr, actual, Merge(d, ba.cdep), false)
		}
	}
	for g, d := range bound.Globals {
		ba.write(instr, g, Merge(d, ba.cdep), false)
	}
	return bound.Return
}

func (ba *blockAnalysis) lookup(callee *ssa.Function) (CallSummary, bool) {
	if len(callee.Blocks) == 0 || ba.fa.env.Lookup == nil {
		return CallSummary{}, false
	}
	return ba.fa.env.Lookup(callee)
}

// bindArguments maps the formal arguments of callee to the dependencies of the actual arguments at instr, and to the
// actual arguments themselves. Free variables are bound when the called value is a closure of callee.
func (ba *blockAnalysis) bindArguments(instr ssa.CallInstruction,
	callee *ssa.Function) (ArgumentDependenciesMap, map[ssa.Value]ssa.Value, bool) {
	actualArgs := lang.GetArgs(instr)
	if len(actualArgs) != len(callee.Params) {
		return nil, nil, false
	}
	args := make(ArgumentDependenciesMap, len(callee.Params)+len(callee.FreeVars))
	actuals := make(map[ssa.Value]ssa.Value, len(args))
	for i, p := range callee.Params {
		args[p] = ba.dep(actualArgs[i])
		actuals[p] = actualArgs[i]
	}
	mc, isClosure := instr.Common().Value.(*ssa.MakeClosure)
	for i, fv := range callee.FreeVars {
		if isClosure && mc.Fn == ssa.Value(callee) && i < len(mc.Bindings) {
			args[fv] = ba.dep(mc.Bindings[i])
			actuals[fv] = mc.Bindings[i]
		} else {
			args[fv] = NewDepInfo(InputDep)
		}
	}
	return args, actuals, true
}

// indexCallSite indexes the bindings of instr in info
func (ba *blockAnalysis) indexCallSite(info *FunctionCallDepInfo, instr ssa.CallInstruction, invoke bool) {
	argKind, globalKind := slotCallArg, slotCallGlobal
	args, _ := info.ArgumentDependenciesForCall(instr)
	globals, _ := info.GlobalsDependenciesForCall(instr)
	if invoke {
		argKind, globalKind = slotInvokeArg, slotInvokeGlobal
		args, _ = info.ArgumentDependenciesForInvoke(instr)
		globals, _ = info.GlobalsDependenciesForInvoke(instr)
	}
	for k, d := range args {
		ba.index.add(d, slot{kind: argKind, instr: instr, callee: info.Callee(), key: k})
	}
	for g, d := range globals {
		ba.index.add(d, slot{kind: globalKind, instr: instr, callee: info.Callee(), key: g})
	}
}

// conservativeCall is the effect of a call nothing is known about: the result is input dependent, and so is the
// memory the call can reach through its arguments
func (ba *blockAnalysis) conservativeCall(instr ssa.CallInstruction) DepInfo {
	for _, addr := range writtenAddresses(instr) {
		ba.write(instr, addr, NewDepInfo(InputDep), false)
	}
	return NewDepInfo(InputDep)
}

func (ba *blockAnalysis) builtin(instr ssa.CallInstruction, b *ssa.Builtin) DepInfo {
	args := instr.Common().Args
	d := NewDepInfo(InputIndep)
	for _, a := range args {
		d.MergeDependencies(ba.dep(a))
	}
	switch b.Name() {
	case "recover":
		return NewDepInfo(InputDep)
	case "len", "cap":
		switch args[0].Type().Underlying().(type) {
		case *types.Map, *types.Chan:
			d.MergeDependencies(ba.load(args[0]))
		}
	case "append":
		d.MergeDependencies(ba.load(args[0]))
		if len(args) > 1 && lang.IsReference(args[1].Type()) {
			d.MergeDependencies(ba.load(args[1]))
		}
		ba.write(instr, args[0], Merge(d, ba.cdep), false)
	case "copy":
		w := Merge(d, ba.cdep)
		if lang.IsReference(args[1].Type()) {
			w.MergeDependencies(ba.load(args[1]))
		}
		ba.write(instr, args[0], w, false)
		d = w
	case "delete", "close":
		ba.write(instr, args[0], Merge(d, ba.cdep), false)
	}
	return d
}
