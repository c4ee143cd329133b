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

	"golang.org/x/tools/go/ssa"
)

func sampleDeps() []DepInfo {
	a, b := new(ssa.Parameter), new(ssa.Parameter)
	v, w := new(ssa.BinOp), new(ssa.UnOp)
	return []DepInfo{
		NewDepInfo(InputIndep),
		NewDepInfo(InputDep),
		NewArgumentDep(a),
		NewArgumentDep(a, b),
		NewValueDep(v),
		NewValueDep(v, w),
		Merge(NewArgumentDep(b), NewValueDep(v)),
		Merge(NewArgumentDep(a), NewValueDep(w)),
	}
}

func TestMergeLaws(t *testing.T) {
	deps := append(sampleDeps(), DepInfo{})
	for i, x := range deps {
		if !Merge(x, x).Equal(x) {
			t.Errorf("merge is not idempotent on %s", x)
		}
		for _, y := range deps {
			xy := Merge(x, y)
			if !xy.Equal(Merge(y, x)) {
				t.Errorf("merge is not commutative on %s and %s", x, y)
			}
			if xy.Floor() < x.Floor() {
				t.Errorf("merge of %s and %s decreases the floor", x, y)
			}
			if !xy.IsInputDep() {
				for arg := range x.ArgumentDependencies() {
					if !xy.ArgumentDependencies()[arg] {
						t.Errorf("merge of %s and %s lost an argument", x, y)
					}
				}
				for val := range x.ValueDependencies() {
					if !xy.DependsOnValue(val) {
						t.Errorf("merge of %s and %s lost a value", x, y)
					}
				}
			}
			for _, z := range deps {
				if !Merge(Merge(x, y), z).Equal(Merge(x, Merge(y, z))) {
					t.Errorf("merge is not associative on %s, %s and %s", x, y, z)
				}
			}
		}
		if i < len(deps)-1 && !Merge(NewDepInfo(InputIndep), x).Equal(x) {
			t.Errorf("input independent is not neutral for %s", x)
		}
	}
}

func TestMergeDoesNotAlias(t *testing.T) {
	a, b := new(ssa.Parameter), new(ssa.Parameter)
	x := NewArgumentDep(a)
	y := Merge(x, NewArgumentDep(b))
	if len(x.ArgumentDependencies()) != 1 {
		t.Errorf("merge modified its argument: %s", x)
	}
	if len(y.ArgumentDependencies()) != 2 {
		t.Errorf("expected two arguments, got %s", y)
	}
}

func TestDependencyKinds(t *testing.T) {
	a := new(ssa.Parameter)
	v := new(ssa.BinOp)
	tests := []struct {
		name string
		dep  DepInfo
		want Dependency
	}{
		{"zero", DepInfo{}, Unknown},
		{"constant", NewDepInfo(InputIndep), InputIndep},
		{"argument", NewArgumentDep(a), InputArgumentDep},
		{"no argument", NewArgumentDep(), InputIndep},
		{"value", NewValueDep(v), ValueDep},
		{"argument and value", Merge(NewArgumentDep(a), NewValueDep(v)), ValueDep},
		{"input absorbs", Merge(NewDepInfo(InputDep), Merge(NewArgumentDep(a), NewValueDep(v))), InputDep},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.dep.Dependency(); got != test.want {
				t.Errorf("got %s, want %s", got, test.want)
			}
		})
	}
}

func TestSetDependencyClearsSets(t *testing.T) {
	a := new(ssa.Parameter)
	v := new(ssa.BinOp)
	d := Merge(NewArgumentDep(a), NewValueDep(v))
	d.SetDependency(InputIndep)
	if !d.IsInputIndep() || len(d.ArgumentDependencies()) != 0 || len(d.ValueDependencies()) != 0 {
		t.Errorf("expected a plain input independent dependency, got %s", d)
	}
	d = Merge(NewArgumentDep(a), NewValueDep(v))
	d.MergeDependency(InputDep)
	if !d.IsInputDep() || len(d.ArgumentDependencies()) != 0 || len(d.ValueDependencies()) != 0 {
		t.Errorf("expected a plain input dependent dependency, got %s", d)
	}
	d.MergeArgumentDependencies(ArgumentSet{a: true})
	if !d.IsInputDep() || len(d.ArgumentDependencies()) != 0 {
		t.Errorf("input dependency should absorb arguments, got %s", d)
	}
}

func TestInvariantViolationsPanic(t *testing.T) {
	tests := map[string]func(){
		"value dep without values": func() { NewDepInfo(ValueDep) },
		"empty value dep":          func() { NewValueDep() },
		"set value dep":            func() { d := NewDepInfo(InputIndep); d.SetDependency(ValueDep) },
		"merge value dep kind":     func() { d := NewDepInfo(InputIndep); d.MergeDependency(ValueDep) },
		"arg dep without args":     func() { NewDepInfo(InputArgumentDep) },
		"set arg dep without args": func() { d := NewDepInfo(InputIndep); d.SetDependency(InputArgumentDep) },
		"merge arg dep kind":       func() { d := NewDepInfo(InputIndep); d.MergeDependency(InputArgumentDep) },
	}
	for name, f := range tests {
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

func TestUnknownIsBottom(t *testing.T) {
	a := new(ssa.Parameter)
	for _, d := range []DepInfo{NewDepInfo(InputIndep), NewArgumentDep(a), NewDepInfo(InputDep)} {
		if m := Merge(d, NewDepInfo(Unknown)); !m.Equal(d) {
			t.Errorf("Merge(%s, unknown) = %s", d, m)
		}
		if m := Merge(NewDepInfo(Unknown), d); !m.Equal(d) {
			t.Errorf("Merge(unknown, %s) = %s", d, m)
		}
	}
}

func TestClearArguments(t *testing.T) {
	d := NewArgumentDep(new(ssa.Parameter))
	d.SetArgumentDependencies(nil)
	if !d.IsInputIndep() || len(d.ArgumentDependencies()) != 0 {
		t.Errorf("an argument dependency without arguments should be input independent, got %s", d)
	}
}

func TestResolveValue(t *testing.T) {
	a := new(ssa.Parameter)
	v, w := new(ssa.BinOp), new(ssa.UnOp)
	g := new(ssa.Global)

	d := Merge(NewArgumentDep(a), NewValueDep(v, w))
	if !d.resolveValue(v, NewDepInfo(InputIndep)) {
		t.Errorf("resolving %s should change the dependency", v)
	}
	if !d.IsValueDep() || d.DependsOnValue(v) || !d.DependsOnValue(w) {
		t.Errorf("expected a dependency pending on w only, got %s", d)
	}
	d.resolveValue(w, NewValueDep(g))
	if !d.DependsOnValue(g) || d.DependsOnValue(w) || d.Floor() != InputArgumentDep {
		t.Errorf("expected an argument dependency pending on the global, got %s", d)
	}
	if d.resolveValue(w, NewDepInfo(InputDep)) {
		t.Errorf("resolving a value that is not pending should not change the dependency")
	}

	self := NewValueDep(v)
	self.resolveValue(v, stripLocalValues(self))
	if !self.IsInputIndep() {
		t.Errorf("a value that only depends on itself should be input independent, got %s", self)
	}
}

func TestSubstitution(t *testing.T) {
	a, b := new(ssa.Parameter), new(ssa.Parameter)
	g := new(ssa.Global)
	d := Merge(NewArgumentDep(a, b), NewValueDep(g))

	bound := d.substituteArguments(map[ssa.Value]DepInfo{a: NewDepInfo(InputIndep)})
	if bound.ArgumentDependencies()[a] || !bound.ArgumentDependencies()[b] || !bound.DependsOnValue(g) {
		t.Errorf("unexpected substitution result %s", bound)
	}
	bound = bound.substituteArguments(map[ssa.Value]DepInfo{b: NewDepInfo(InputIndep)})
	if bound.Floor() != InputIndep || !bound.DependsOnValue(g) {
		t.Errorf("expected input independent floor pending on the global, got %s", bound)
	}
	bound = bound.substituteValues(map[ssa.Value]DepInfo{g: NewDepInfo(InputDep)})
	if !bound.IsInputDep() {
		t.Errorf("expected input dependent, got %s", bound)
	}
}
