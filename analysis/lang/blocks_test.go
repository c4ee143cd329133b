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

package lang_test

import (
	"testing"

	"github.com/awslabs/argot-inputdep/analysis/lang"
	"github.com/awslabs/argot-inputdep/internal/analysistest"
	"golang.org/x/tools/go/ssa"
)

const cfgSource = `
package p

func input() int

func branch() int {
	x := 0
	if input() > 0 {
		x = 1
	} else {
		x = 2
	}
	return x
}

func loop(n int) int {
	s := 0
	for i := 0; i < n; i++ {
		s += i
	}
	return s
}
`

func TestReversePostorderVisitsPredecessorsFirst(t *testing.T) {
	pkg := analysistest.BuildSSA(t, cfgSource)
	for _, name := range []string{"branch", "loop"} {
		fn := analysistest.Func(t, pkg, name)
		order := lang.ReversePostorder(fn)
		if len(order) != len(fn.Blocks) {
			t.Fatalf("%s: expected %d blocks in order, got %d", name, len(fn.Blocks), len(order))
		}
		if order[0] != fn.Blocks[0] {
			t.Errorf("%s: entry block should come first", name)
		}
		pos := map[*ssa.BasicBlock]int{}
		for i, b := range order {
			pos[b] = i
		}
		for _, b := range order {
			for _, pred := range b.Preds {
				// a predecessor appearing later must be the source of a back edge, i.e. dominated by b
				if pos[pred] > pos[b] && !b.Dominates(pred) {
					t.Errorf("%s: block %d appears before its predecessor %d", name, b.Index, pred.Index)
				}
			}
		}
	}
}

func TestPostDominatorsOfDiamond(t *testing.T) {
	pkg := analysistest.BuildSSA(t, cfgSource)
	fn := analysistest.Func(t, pkg, "branch")
	ipdom := lang.PostDominators(fn)
	entry := fn.Blocks[0]
	if len(entry.Succs) != 2 {
		t.Fatalf("expected entry of branch to end with an if, got %d successors", len(entry.Succs))
	}
	join := entry.Succs[0].Succs[0]
	if ipdom[entry.Index] != join.Index {
		t.Errorf("entry should be post-dominated by the join block %d, got %d", join.Index, ipdom[entry.Index])
	}
	if ipdom[join.Index] != -1 {
		t.Errorf("the returning block should be post-dominated by the exit, got %d", ipdom[join.Index])
	}
}

func TestControlDependences(t *testing.T) {
	pkg := analysistest.BuildSSA(t, cfgSource)

	fn := analysistest.Func(t, pkg, "branch")
	cd := lang.ControlDependences(fn)
	entry := fn.Blocks[0]
	for _, s := range entry.Succs {
		if len(cd[s.Index]) != 1 || cd[s.Index][0] != entry {
			t.Errorf("branch block %d should be control dependent on the entry only, got %v", s.Index, cd[s.Index])
		}
	}
	join := entry.Succs[0].Succs[0]
	if len(cd[join.Index]) != 0 {
		t.Errorf("join block should not be control dependent, got %v", cd[join.Index])
	}

	fn = analysistest.Func(t, pkg, "loop")
	cd = lang.ControlDependences(fn)
	var header *ssa.BasicBlock
	for _, b := range fn.Blocks {
		if _, ok := lang.LastInstr(b).(*ssa.If); ok {
			header = b
		}
	}
	if header == nil {
		t.Fatalf("no loop header in loop")
	}
	var body *ssa.BasicBlock
	for _, s := range header.Succs {
		if len(s.Succs) > 0 {
			body = s
			break
		}
	}
	if body == nil {
		t.Fatalf("no loop body in loop")
	}
	if len(cd[body.Index]) == 0 || cd[body.Index][0] != header {
		t.Errorf("loop body should be control dependent on the loop header")
	}
	if len(cd[header.Index]) != 1 || cd[header.Index][0] != header {
		t.Errorf("loop header should be control dependent on itself, got %v", cd[header.Index])
	}
}

func TestHasPathTo(t *testing.T) {
	pkg := analysistest.BuildSSA(t, cfgSource)
	fn := analysistest.Func(t, pkg, "branch")
	entry := fn.Blocks[0]
	left, right := entry.Succs[0], entry.Succs[1]
	mem := map[*ssa.BasicBlock]map[*ssa.BasicBlock]bool{}
	if !lang.HasPathTo(entry, left, mem) || !lang.HasPathTo(entry, right, nil) {
		t.Errorf("entry should reach both branches")
	}
	if lang.HasPathTo(left, right, mem) {
		t.Errorf("the branches of an if should not reach each other")
	}
}

func TestMemoryRoot(t *testing.T) {
	pkg := analysistest.BuildSSA(t, `
package p

type S struct{ f [4]int }

func write(s *S, v int) {
	s.f[2] = v
}
`)
	fn := analysistest.Func(t, pkg, "write")
	store := analysistest.FirstInstr[*ssa.Store](t, fn)
	if root := lang.MemoryRoot(store.Addr); root != fn.Params[0] {
		t.Errorf("root of s.f[2] should be s, got %v", root)
	}
	if !lang.IsReference(fn.Params[0].Type()) || lang.IsReference(fn.Params[1].Type()) {
		t.Errorf("pointer parameter should be a reference, int should not")
	}
	if got := lang.WrittenAddresses(store); len(got) != 1 || got[0] != store.Addr {
		t.Errorf("store should write to its address")
	}
}
