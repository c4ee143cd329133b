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

type slotKind int

const (
	slotInstruction slotKind = iota
	slotOutParam
	slotCallArg
	slotCallGlobal
	slotInvokeArg
	slotInvokeGlobal
	slotReturn
	slotGlobalWrite
	slotGlobalStore
)

// slot identifies a recorded dependency: the dependency of an instruction, of an out-parameter, of a binding at a
// call or invoke site, of the returned value, or of a global.
type slot struct {
	kind   slotKind
	instr  ssa.Instruction
	callee *ssa.Function
	key    ssa.Value
}

// reverseIndex maps pending values to the slots whose dependency is pending on them
type reverseIndex map[ssa.Value]map[slot]bool

func (ri reverseIndex) add(d DepInfo, s slot) {
	for v := range d.ValueDependencies() {
		slots, ok := ri[v]
		if !ok {
			slots = map[slot]bool{}
			ri[v] = slots
		}
		slots[s] = true
	}
}

// reflect resolves every pending dependency on an instruction of the function. Only pending dependencies on globals
// remain afterwards.
func (fa *functionAnalysis) reflect() {
	indexes := make([]reverseIndex, 0, len(fa.blocks)+1)
	for _, b := range fa.order {
		if ba, ok := fa.blocks[b]; ok {
			indexes = append(indexes, ba.index)
		}
	}
	indexes = append(indexes, fa.exitIndex)

	var pending []ssa.Value
	for _, ri := range indexes {
		for v := range ri {
			if _, isGlobal := v.(*ssa.Global); !isGlobal {
				pending = append(pending, v)
			}
		}
	}
	final := fa.finalDependencies(pending)

	for i, ri := range indexes {
		var values []ssa.Value
		for v := range ri {
			if _, isGlobal := v.(*ssa.Global); !isGlobal {
				values = append(values, v)
			}
		}
		for _, v := range values {
			for s := range ri[v] {
				d := fa.updateSlot(s, func(d *DepInfo) { d.resolveValue(v, final[v]) })
				// globals coming from final stay open; other pending values are indexed where they were recorded
				ri.add(stripLocalValues(d), s)
			}
			delete(ri, v)
		}
		for v := range ri {
			if _, isGlobal := v.(*ssa.Global); !isGlobal {
				violation("value %s still pending after reflection of block %d of %s", v, i, fa.fn)
			}
		}
	}
}

// finalDependencies computes the dependency of every value in roots and every value they transitively depend on,
// with a worklist. The result only contains pending dependencies on globals. A value that only depends on itself is
// input independent.
func (fa *functionAnalysis) finalDependencies(roots []ssa.Value) map[ssa.Value]DepInfo {
	final := map[ssa.Value]DepInfo{}
	users := map[ssa.Value][]ssa.Value{}
	queue := append([]ssa.Value{}, roots...)
	var order []ssa.Value
	for len(queue) > 0 {
		v := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if _, seen := final[v]; seen {
			continue
		}
		d := fa.recordedDep(v)
		final[v] = stripLocalValues(d)
		order = append(order, v)
		for u := range d.ValueDependencies() {
			if _, isGlobal := u.(*ssa.Global); isGlobal {
				continue
			}
			users[u] = append(users[u], v)
			queue = append(queue, u)
		}
	}

	work := order
	for len(work) > 0 {
		u := work[len(work)-1]
		work = work[:len(work)-1]
		for _, v := range users[u] {
			merged := Merge(final[v], final[u])
			if !merged.Equal(final[v]) {
				final[v] = merged
				work = append(work, v)
			}
		}
	}
	return final
}

// recordedDep returns the dependency recorded for the instruction v in the last pass
func (fa *functionAnalysis) recordedDep(v ssa.Value) DepInfo {
	instr, ok := v.(ssa.Instruction)
	if !ok {
		violation("pending dependency on %s, which is not an instruction of %s", v, fa.fn)
	}
	if d, found := fa.result.deps[instr]; found {
		return d
	}
	if instr.Parent() != fa.fn {
		violation("pending dependency on %s, which belongs to %s and not %s", v, instr.Parent(), fa.fn)
	}
	violation("no dependency recorded for %s in %s", v, fa.fn)
	return DepInfo{}
}

// stripLocalValues returns d without its pending values that are not globals
func stripLocalValues(d DepInfo) DepInfo {
	res := DepInfo{floor: d.floor, args: d.args}
	for v := range d.values {
		if g, ok := v.(*ssa.Global); ok {
			res.MergeValueDependencies(ValueSet{g: true})
		}
	}
	return res
}

// updateSlot applies update to the dependency recorded in s and returns the updated dependency. A slot that is not
// recorded is a violation.
func (fa *functionAnalysis) updateSlot(s slot, update func(d *DepInfo)) DepInfo {
	r := fa.result
	var res DepInfo
	switch s.kind {
	case slotInstruction:
		d, ok := r.deps[s.instr]
		if !ok {
			violation("instruction %s is indexed but has no dependency", s.instr)
		}
		update(&d)
		r.deps[s.instr] = d
		res = d
	case slotOutParam:
		d, ok := r.outParams[s.key]
		if !ok {
			violation("out-parameter %s is indexed but has no dependency", s.key)
		}
		update(&d)
		r.outParams[s.key] = d
		res = d
	case slotCallArg, slotInvokeArg:
		info, ok := r.callSummaries[s.callee]
		call, isCall := s.instr.(ssa.CallInstruction)
		if !ok || !isCall || !info.updateArgBinding(s.kind == slotInvokeArg, call, s.key, func(d *DepInfo) {
			update(d)
			res = *d
		}) {
			violation("call site %s is indexed but missing from the calls to %s", s.instr, s.callee)
		}
	case slotCallGlobal, slotInvokeGlobal:
		info, ok := r.callSummaries[s.callee]
		call, isCall := s.instr.(ssa.CallInstruction)
		g, isGlobal := s.key.(*ssa.Global)
		if !ok || !isCall || !isGlobal || !info.updateGlobalBinding(s.kind == slotInvokeGlobal, call, g,
			func(d *DepInfo) {
				update(d)
				res = *d
			}) {
			violation("call site %s is indexed but missing from the calls to %s", s.instr, s.callee)
		}
	case slotReturn:
		update(&r.returnDep)
		res = r.returnDep
	case slotGlobalWrite, slotGlobalStore:
		m := r.globals
		if s.kind == slotGlobalStore {
			m = r.globalStores
		}
		g, _ := s.key.(*ssa.Global)
		d, ok := m[g]
		if !ok {
			violation("global %s is indexed but has no dependency", s.key)
		}
		update(&d)
		m[g] = d
		res = d
	default:
		violation("unknown slot kind %d", int(s.kind))
	}
	return res
}
