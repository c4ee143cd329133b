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
	"errors"
	"testing"

	"github.com/awslabs/argot-inputdep/internal/analysistest"
	"golang.org/x/tools/go/ssa"
)

func TestFunctionCallDepInfo(t *testing.T) {
	pkg := analysistest.BuildSSA(t, engineSrc)
	id := analysistest.Func(t, pkg, "id")
	useId := analysistest.Func(t, pkg, "useId")
	calls := analysistest.Instrs[*ssa.Call](useId)
	x := id.Params[0]
	g := pkg.Var("g")

	first := NewFunctionCallDepInfo(id)
	first.AddCallArgumentDependencies(calls[0], ArgumentDependenciesMap{x: NewArgumentDep(useId.Params[0])})
	second := NewFunctionCallDepInfo(id)
	second.AddCallArgumentDependencies(calls[1], ArgumentDependenciesMap{x: NewDepInfo(InputIndep)})
	second.AddCallGlobalsDependencies(calls[1], GlobalsDependenciesMap{g: NewDepInfo(InputDep)})

	first.Merge(second)
	if sites := first.CallSites(); len(sites) != 2 || sites[0] != calls[0] || sites[1] != calls[1] {
		t.Errorf("expected the two call sites in order, got %v", sites)
	}
	assertArgumentDep(t, first.MergedArgumentDependencies()[x], useId.Params[0])
	if !first.MergedGlobalsDependencies()[g].IsInputDep() {
		t.Errorf("expected g to be input dependent at some call")
	}
	if globals, ok := first.GlobalsDependenciesForCall(calls[1]); !ok || len(globals) != 1 {
		t.Errorf("expected the global binding of the second call, got %v", globals)
	}

	// adding again joins the bindings
	first.AddCallArgumentDependencies(calls[1], ArgumentDependenciesMap{x: NewDepInfo(InputDep)})
	args, _ := first.ArgumentDependenciesForCall(calls[1])
	if !args[x].IsInputDep() {
		t.Errorf("bindings of the same call should be joined, got %s", args[x])
	}

	if !first.RemoveCall(calls[1]) || first.RemoveCall(calls[1]) {
		t.Errorf("a call should be removed exactly once")
	}
	if _, ok := first.ArgumentDependenciesForCall(calls[1]); ok {
		t.Errorf("the removed call still has bindings")
	}
	if first.IsEmpty() {
		t.Errorf("the first call is still recorded")
	}
	first.RemoveCall(calls[0])
	if !first.IsEmpty() {
		t.Errorf("no call should be left")
	}

	err := func() (err error) {
		defer recoverInvariant(&err)
		first.Merge(NewFunctionCallDepInfo(useId))
		return nil
	}()
	var ie *InvariantError
	if !errors.As(err, &ie) {
		t.Errorf("merging the calls of different callees should be an invariant error, got %v", err)
	}
}
