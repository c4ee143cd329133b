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

const libSrc = `package p

func lib(a, b int) int

func fill(dst []byte, src string, n int)

func logf(format string, args ...any) int
`

func TestLibFunctionInfoResolve(t *testing.T) {
	pkg := analysistest.BuildSSA(t, libSrc)
	lib := analysistest.Func(t, pkg, "lib")

	info := NewLibFunctionInfo("p.lib", nil, LibArgDepInfo{Dependency: InputArgumentDep, Args: []int{1}})
	if err := info.Resolve(lib); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	first := info.ReturnDependency()
	if err := info.Resolve(lib); err != nil {
		t.Fatalf("resolving twice failed: %v", err)
	}
	if !first.Equal(info.ReturnDependency()) {
		t.Errorf("resolving twice changed the summary: %s then %s", first, info.ReturnDependency())
	}
	if !first.IsInputArgumentDep() || !first.ArgumentDependencies()[lib.Params[1]] ||
		first.ArgumentDependencies()[lib.Params[0]] {
		t.Errorf("expected the return to depend on b only, got %s", first)
	}

	// two call sites
	dep := info.BindCall(ArgumentDependenciesMap{
		lib.Params[0]: NewDepInfo(InputIndep),
		lib.Params[1]: NewDepInfo(InputDep),
	})
	indep := info.BindCall(ArgumentDependenciesMap{
		lib.Params[0]: NewDepInfo(InputDep),
		lib.Params[1]: NewDepInfo(InputIndep),
	})
	if !dep.Return.IsInputDep() {
		t.Errorf("expected input dependent return, got %s", dep.Return)
	}
	if !indep.Return.IsInputIndep() {
		t.Errorf("expected input independent return, got %s", indep.Return)
	}
}

func TestLibFunctionInfoOutParams(t *testing.T) {
	pkg := analysistest.BuildSSA(t, libSrc)
	fill := analysistest.Func(t, pkg, "fill")
	info := NewLibFunctionInfo("p.fill",
		map[int]LibArgDepInfo{
			0: {Dependency: InputArgumentDep, Args: []int{1, 2}},
			2: {Dependency: InputDep}, // not a reference, ignored
		},
		LibArgDepInfo{Dependency: InputIndep})
	if err := info.Resolve(fill); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	d, ok := info.ArgumentDependency(fill.Params[0])
	if !ok || !d.ArgumentDependencies()[fill.Params[1]] || !d.ArgumentDependencies()[fill.Params[2]] {
		t.Errorf("expected dst to depend on src and n, got %s", d)
	}
	if _, ok := info.ArgumentDependency(fill.Params[2]); ok {
		t.Errorf("n is not a reference and cannot be written")
	}
	bound := info.BindCall(ArgumentDependenciesMap{
		fill.Params[0]: NewDepInfo(InputIndep),
		fill.Params[1]: NewDepInfo(InputIndep),
	})
	if !bound.OutParams[fill.Params[0]].IsInputDep() {
		t.Errorf("unbound arguments should be input dependent, got %s", bound.OutParams[fill.Params[0]])
	}
}

func TestLibFunctionInfoVariadic(t *testing.T) {
	pkg := analysistest.BuildSSA(t, libSrc)
	logf := analysistest.Func(t, pkg, "logf")
	info := NewLibFunctionInfo("p.logf", nil, LibArgDepInfo{Dependency: InputIndep, Args: []int{0, 3}})
	if err := info.Resolve(logf); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	ret := info.ReturnDependency()
	if !ret.ArgumentDependencies()[logf.Params[0]] || !ret.ArgumentDependencies()[logf.Params[1]] {
		t.Errorf("expected the return to depend on the format and the variadic arguments, got %s", ret)
	}

	all := NewLibFunctionInfo("p.logf", nil, LibArgDepInfo{Dependency: InputArgumentDep})
	if err := all.Resolve(logf); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(all.ReturnDependency().ArgumentDependencies()) != 2 {
		t.Errorf("argument dependency without indexes should depend on all arguments, got %s",
			all.ReturnDependency())
	}
}

func TestLibFunctionInfoErrors(t *testing.T) {
	pkg := analysistest.BuildSSA(t, libSrc)
	lib := analysistest.Func(t, pkg, "lib")
	fill := analysistest.Func(t, pkg, "fill")

	bad := NewLibFunctionInfo("p.lib", nil, LibArgDepInfo{Dependency: InputArgumentDep, Args: []int{5}})
	if err := bad.Resolve(lib); err == nil {
		t.Errorf("expected an error for an out of range argument")
	}

	panics := map[string]func(){
		"query before resolve": func() {
			NewLibFunctionInfo("p.lib", nil, LibArgDepInfo{}).ReturnDependency()
		},
		"resolve against another function": func() {
			info := NewLibFunctionInfo("p.lib", nil, LibArgDepInfo{})
			_ = info.Resolve(lib)
			_ = info.Resolve(fill)
		},
		"clone resolved": func() {
			info := NewLibFunctionInfo("p.lib", nil, LibArgDepInfo{})
			_ = info.Resolve(lib)
			info.Clone()
		},
	}
	for name, f := range panics {
		t.Run(name, func(t *testing.T) {
			err := func() (err error) {
				defer recoverInvariant(&err)
				f()
				return nil
			}()
			var ie *InvariantError
			if !errors.As(err, &ie) {
				t.Errorf("expected an invariant error, got %v", err)
			}
		})
	}
}

func TestDependencyText(t *testing.T) {
	for _, d := range []Dependency{Unknown, InputIndep, InputArgumentDep, InputDep, ValueDep} {
		b, err := d.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", d, err)
		}
		var back Dependency
		if err := back.UnmarshalText(b); err != nil || back != d {
			t.Errorf("%s does not round trip: got %s, %v", d, back, err)
		}
	}
	var d Dependency
	if err := d.UnmarshalText([]byte("sometimes")); err == nil {
		t.Errorf("expected an error for an unknown dependency")
	}
}

// testLibrary is a library table resolving the templates it holds once per function
type testLibrary struct {
	templates map[string]*LibFunctionInfo
	resolved  map[*ssa.Function]*LibFunctionInfo
	inputs    map[string]bool
}

func newTestLibrary(infos ...*LibFunctionInfo) *testLibrary {
	l := &testLibrary{
		templates: map[string]*LibFunctionInfo{},
		resolved:  map[*ssa.Function]*LibFunctionInfo{},
		inputs:    map[string]bool{},
	}
	for _, info := range infos {
		l.templates[info.Name()] = info
	}
	return l
}

func (l *testLibrary) Resolved(fn *ssa.Function) (*LibFunctionInfo, bool) {
	if info, ok := l.resolved[fn]; ok {
		return info, true
	}
	tmpl, ok := l.templates[fn.String()]
	if !ok {
		return nil, false
	}
	info := tmpl.Clone()
	if err := info.Resolve(fn); err != nil {
		return nil, false
	}
	l.resolved[fn] = info
	return info, true
}

func (l *testLibrary) IsInputGlobal(g *ssa.Global) bool { return l.inputs[g.RelString(nil)] }
