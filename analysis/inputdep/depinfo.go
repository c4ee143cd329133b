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
	"strings"

	"github.com/awslabs/argot-inputdep/internal/funcutil"
	"golang.org/x/tools/go/ssa"
)

// Dependency is the kind of dependency of a value on the input of the program
type Dependency int

const (
	// Unknown is the dependency of values that have not been classified yet. It is the bottom of the lattice.
	Unknown Dependency = iota
	// InputIndep values can be computed from constants and the structure of the program alone
	InputIndep
	// InputArgumentDep values depend only on some formal arguments of the function they are defined in
	InputArgumentDep
	// InputDep values can vary with the input of the program
	InputDep
	// ValueDep values are provisional: their dependency is pending on the dependency of other values
	ValueDep
)

func (d Dependency) String() string {
	switch d {
	case Unknown:
		return "unknown"
	case InputIndep:
		return "input-indep"
	case InputArgumentDep:
		return "arg-dep"
	case InputDep:
		return "input-dep"
	case ValueDep:
		return "value-dep"
	default:
		return fmt.Sprintf("dependency(%d)", int(d))
	}
}

// ArgumentSet is a set of formal arguments (*ssa.Parameter or *ssa.FreeVar)
type ArgumentSet = map[ssa.Value]bool

// ValueSet is a set of values
type ValueSet = map[ssa.Value]bool

// DepInfo is the dependency of a value on the input. It is made of a floor, which is the kind of dependency that is
// known for sure, a set of formal arguments the value depends on, and a set of values whose classification is still
// pending. While the pending set is non-empty, the dependency is ValueDep; once the pending values are resolved, their
// dependencies are folded into the floor.
//
// The zero DepInfo is Unknown. The sets of a DepInfo are never mutated once they are stored in it: every mutator
// replaces them. Copying a DepInfo is therefore safe.
type DepInfo struct {
	floor  Dependency
	args   ArgumentSet
	values ValueSet
}

// NewDepInfo returns a DepInfo of kind d with empty sets. Use NewArgumentDep for argument dependencies and
// NewValueDep for provisional dependencies.
func NewDepInfo(d Dependency) DepInfo {
	switch d {
	case ValueDep:
		violation("a value dependency needs values to depend on")
	case InputArgumentDep:
		violation("an argument dependency needs arguments to depend on")
	}
	return DepInfo{floor: d}
}

// NewArgumentDep returns the dependency on the formal arguments args
func NewArgumentDep(args ...ssa.Value) DepInfo {
	if len(args) == 0 {
		return NewDepInfo(InputIndep)
	}
	a := make(ArgumentSet, len(args))
	for _, arg := range args {
		a[arg] = true
	}
	return DepInfo{floor: InputArgumentDep, args: a}
}

// NewValueDep returns the provisional dependency on values
func NewValueDep(values ...ssa.Value) DepInfo {
	if len(values) == 0 {
		violation("a value dependency needs values to depend on")
	}
	v := make(ValueSet, len(values))
	for _, val := range values {
		v[val] = true
	}
	return DepInfo{floor: InputIndep, values: v}
}

// Dependency returns the current kind of the dependency: ValueDep if some values are pending, the floor otherwise.
func (d DepInfo) Dependency() Dependency {
	if len(d.values) > 0 {
		return ValueDep
	}
	return d.floor
}

// Floor returns the kind the dependency will have at least once all its pending values are resolved
func (d DepInfo) Floor() Dependency {
	return d.floor
}

// IsDefined returns true if the dependency is not Unknown
func (d DepInfo) IsDefined() bool { return d.Dependency() != Unknown }

// IsInputDep returns true if the dependency is InputDep
func (d DepInfo) IsInputDep() bool { return d.Dependency() == InputDep }

// IsInputIndep returns true if the dependency is InputIndep
func (d DepInfo) IsInputIndep() bool { return d.Dependency() == InputIndep }

// IsInputArgumentDep returns true if the dependency is InputArgumentDep
func (d DepInfo) IsInputArgumentDep() bool { return d.Dependency() == InputArgumentDep }

// IsValueDep returns true if the dependency is pending on some values
func (d DepInfo) IsValueDep() bool { return d.Dependency() == ValueDep }

// ArgumentDependencies returns the arguments the value depends on. The returned set must not be modified.
func (d DepInfo) ArgumentDependencies() ArgumentSet { return d.args }

// ValueDependencies returns the values the dependency is pending on. The returned set must not be modified.
func (d DepInfo) ValueDependencies() ValueSet { return d.values }

// DependsOnValue returns true if v is one of the pending values of d
func (d DepInfo) DependsOnValue(v ssa.Value) bool { return d.values[v] }

// SetDependency sets the kind of the dependency.
// Setting InputIndep clears both sets, setting InputDep clears both sets since InputDep absorbs everything.
// Setting ValueDep is only valid if some values are already pending, and setting InputArgumentDep if some arguments
// are.
func (d *DepInfo) SetDependency(k Dependency) {
	switch k {
	case ValueDep:
		if len(d.values) == 0 {
			violation("cannot set value dependency without values")
		}
	case InputIndep, InputDep:
		d.floor = k
		d.args = nil
		d.values = nil
	case InputArgumentDep:
		d.floor = k
	case Unknown:
		d.floor = k
		d.args = nil
		d.values = nil
	default:
		violation("unexpected dependency kind %d", int(k))
	}
	d.check()
}

// SetArgumentDependencies replaces the argument set of d. Setting a non-empty set on an input independent or unknown
// dependency makes it argument dependent; setting an empty set on an argument dependency makes it input independent.
func (d *DepInfo) SetArgumentDependencies(args ArgumentSet) {
	if d.floor == InputDep {
		return
	}
	d.args = funcutil.SetCopy(args)
	if len(d.args) == 0 {
		d.args = nil
		if d.floor == InputArgumentDep {
			d.floor = InputIndep
		}
	} else if d.floor < InputArgumentDep {
		d.floor = InputArgumentDep
	}
	d.check()
}

// SetValueDependencies replaces the pending values of d. The pending values of an input dependent value are dropped.
func (d *DepInfo) SetValueDependencies(values ValueSet) {
	if d.floor == InputDep {
		return
	}
	d.values = funcutil.SetCopy(values)
	if len(d.values) > 0 && d.floor == Unknown {
		d.floor = InputIndep
	}
	d.check()
}

// MergeDependency joins the kind k into d. Use MergeValueDependencies to add pending values.
func (d *DepInfo) MergeDependency(k Dependency) {
	if k == ValueDep {
		violation("cannot merge a value dependency without values")
	}
	if k <= d.floor {
		return
	}
	d.floor = k
	if k == InputDep {
		d.args = nil
		d.values = nil
	}
	d.check()
}

// MergeArgumentDependencies adds args to the argument set of d
func (d *DepInfo) MergeArgumentDependencies(args ArgumentSet) {
	if len(args) == 0 || d.floor == InputDep {
		return
	}
	merged := funcutil.SetCopy(d.args)
	if merged == nil {
		merged = make(ArgumentSet, len(args))
	}
	d.args = funcutil.Union(merged, args)
	if d.floor < InputArgumentDep {
		d.floor = InputArgumentDep
	}
	d.check()
}

// MergeValueDependencies adds values to the pending values of d. Pending values of an input dependent value are
// dropped.
func (d *DepInfo) MergeValueDependencies(values ValueSet) {
	if len(values) == 0 || d.floor == InputDep {
		return
	}
	merged := funcutil.SetCopy(d.values)
	if merged == nil {
		merged = make(ValueSet, len(values))
	}
	d.values = funcutil.Union(merged, values)
	if d.floor == Unknown {
		d.floor = InputIndep
	}
	d.check()
}

// MergeDependencies joins other into d
func (d *DepInfo) MergeDependencies(other DepInfo) {
	// the arguments come first: an argument dependent floor is only valid with its arguments
	d.MergeArgumentDependencies(other.args)
	d.MergeValueDependencies(other.values)
	d.MergeDependency(other.floor)
}

// Merge returns the join of a and b. Unknown is the bottom of the lattice: Merge(InputIndep, Unknown) is InputIndep.
func Merge(a, b DepInfo) DepInfo {
	c := a
	c.MergeDependencies(b)
	return c
}

// Clone returns a copy of d
func (d DepInfo) Clone() DepInfo {
	return DepInfo{floor: d.floor, args: funcutil.SetCopy(d.args), values: funcutil.SetCopy(d.values)}
}

// Equal returns true if d and other are the same dependency
func (d DepInfo) Equal(other DepInfo) bool {
	return d.floor == other.floor && funcutil.SetEqual(d.args, other.args) && funcutil.SetEqual(d.values, other.values)
}

// resolveValue replaces the pending value v by its final dependency. Returns true if d changed.
func (d *DepInfo) resolveValue(v ssa.Value, final DepInfo) bool {
	if !d.values[v] {
		return false
	}
	before := *d
	rest := make(ValueSet, len(d.values))
	for x := range d.values {
		if x != v {
			rest[x] = true
		}
	}
	if len(rest) == 0 {
		rest = nil
	}
	d.values = rest
	// final may still contain v when v is an open global
	d.MergeDependencies(final)
	return !before.Equal(*d)
}

// substituteArguments replaces every argument a of d by binding[a]. Arguments without binding are kept.
func (d DepInfo) substituteArguments(binding map[ssa.Value]DepInfo) DepInfo {
	if len(d.args) == 0 {
		return d
	}
	res := DepInfo{floor: d.floor, values: d.values}
	if res.floor == InputArgumentDep {
		res.floor = InputIndep
	}
	for arg := range d.args {
		if b, ok := binding[arg]; ok {
			res.MergeDependencies(b)
		} else {
			res.MergeArgumentDependencies(ArgumentSet{arg: true})
		}
	}
	return res
}

// substituteValues replaces every pending value v of d by binding[v]. Values without binding are kept pending.
func (d DepInfo) substituteValues(binding map[ssa.Value]DepInfo) DepInfo {
	if len(d.values) == 0 {
		return d
	}
	res := DepInfo{floor: d.floor, args: d.args}
	for v := range d.values {
		if b, ok := binding[v]; ok {
			res.MergeDependencies(b)
		} else {
			res.MergeValueDependencies(ValueSet{v: true})
		}
	}
	return res
}

// check panics if d is inconsistent
func (d DepInfo) check() {
	switch d.floor {
	case ValueDep:
		violation("value dependency cannot be a floor")
	case Unknown:
		if len(d.args) > 0 || len(d.values) > 0 {
			violation("unknown dependency with non-empty sets %s", d)
		}
	case InputIndep:
		if len(d.args) > 0 {
			violation("input independent value with argument dependencies %s", d)
		}
	case InputArgumentDep:
		if len(d.args) == 0 {
			violation("argument dependent value without arguments %s", d)
		}
	case InputDep:
		if len(d.args) > 0 || len(d.values) > 0 {
			violation("input dependent value with non-empty sets %s", d)
		}
	}
}

func (d DepInfo) String() string {
	var b strings.Builder
	b.WriteString(d.Dependency().String())
	if len(d.args) > 0 {
		fmt.Fprintf(&b, " args{%s}", strings.Join(valueNames(d.args), ", "))
	}
	if len(d.values) > 0 {
		fmt.Fprintf(&b, " values{%s}", strings.Join(valueNames(d.values), ", "))
		if d.floor > InputIndep {
			fmt.Fprintf(&b, " floor=%s", d.floor)
		}
	}
	return b.String()
}

func valueNames(s map[ssa.Value]bool) []string {
	names := make(map[string]bool, len(s))
	for v := range s {
		names[valueName(v)] = true
	}
	return funcutil.SetToOrderedSlice(names)
}

func valueName(v ssa.Value) string {
	if g, ok := v.(*ssa.Global); ok && g.Pkg != nil {
		return g.Pkg.Pkg.Name() + "." + g.Name()
	}
	return v.Name()
}

// ValueDependencies maps values of one function to their dependency
type ValueDependencies map[ssa.Value]DepInfo

// Clone returns a copy of vd
func (vd ValueDependencies) Clone() ValueDependencies {
	c := make(ValueDependencies, len(vd))
	for v, d := range vd {
		c[v] = d
	}
	return c
}

// Equal returns true if vd and other map the same values to equal dependencies
func (vd ValueDependencies) Equal(other ValueDependencies) bool {
	if len(vd) != len(other) {
		return false
	}
	for v, d := range vd {
		o, ok := other[v]
		if !ok || !d.Equal(o) {
			return false
		}
	}
	return true
}

// MergeValue joins dep into the dependency of v
func (vd ValueDependencies) MergeValue(v ssa.Value, dep DepInfo) {
	vd[v] = Merge(vd[v], dep)
}

// ArgumentDependenciesMap maps formal arguments of a callee to the dependency of the actual argument at a call site
type ArgumentDependenciesMap map[ssa.Value]DepInfo

// GlobalsDependenciesMap maps globals to their dependency
type GlobalsDependenciesMap map[*ssa.Global]DepInfo

// mergeInto joins every entry of m into dst
func (m ArgumentDependenciesMap) mergeInto(dst ArgumentDependenciesMap) {
	for k, d := range m {
		dst[k] = Merge(dst[k], d)
	}
}

func (m GlobalsDependenciesMap) mergeInto(dst GlobalsDependenciesMap) {
	for k, d := range m {
		dst[k] = Merge(dst[k], d)
	}
}

// asValueMap returns the map from globals to dependencies with ssa.Value keys
func (m GlobalsDependenciesMap) asValueMap() map[ssa.Value]DepInfo {
	res := make(map[ssa.Value]DepInfo, len(m))
	for g, d := range m {
		res[g] = d
	}
	return res
}
