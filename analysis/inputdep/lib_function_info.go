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
	"go/types"
	"sort"
	"strings"

	"github.com/awslabs/argot-inputdep/analysis/lang"
	"golang.org/x/tools/go/ssa"
)

// AllArguments can be used in the Args of a LibArgDepInfo to refer to every argument of the function
const AllArguments = -1

// LibArgDepInfo is a dependency template, relative to the arguments of a function, identified by their index.
// The receiver of a method is argument 0.
type LibArgDepInfo struct {
	// Dependency is the minimum dependency. InputArgumentDep without Args means every argument.
	Dependency Dependency `yaml:"dependency" json:"dependency"`
	// Args are the indexes of the arguments the value depends on
	Args []int `yaml:"args,omitempty" json:"args,omitempty"`
}

// String returns a compact representation of the template
func (l LibArgDepInfo) String() string {
	if len(l.Args) == 0 {
		return l.Dependency.String()
	}
	args := make([]string, len(l.Args))
	for i, a := range l.Args {
		if a == AllArguments {
			args[i] = "*"
		} else {
			args[i] = fmt.Sprint(a)
		}
	}
	return fmt.Sprintf("%s(%s)", l.Dependency, strings.Join(args, ","))
}

// LibFunctionInfo is the dependency summary of a function whose body is not analyzed. It is declared with templates
// relative to argument indexes, and must be resolved against a function before it is used: resolution binds the
// indexes to the parameters of the function and discards the templates.
type LibFunctionInfo struct {
	name string

	// templates, nil once resolved
	argTemplates   map[int]LibArgDepInfo
	returnTemplate *LibArgDepInfo

	fn        *ssa.Function
	returnDep DepInfo
	// argDeps maps reference parameters to the dependency of the memory they refer to after the call
	argDeps ArgumentDependenciesMap
}

// NewLibFunctionInfo returns the unresolved summary of the function name. args maps argument indexes to the
// dependency of the memory the argument refers to after the call; ret is the dependency of the returned value.
func NewLibFunctionInfo(name string, args map[int]LibArgDepInfo, ret LibArgDepInfo) *LibFunctionInfo {
	templates := make(map[int]LibArgDepInfo, len(args))
	for i, a := range args {
		templates[i] = a
	}
	return &LibFunctionInfo{name: name, argTemplates: templates, returnTemplate: &ret}
}

// Name returns the name of the summarized function
func (l *LibFunctionInfo) Name() string { return l.name }

// IsResolved returns true once Resolve has succeeded
func (l *LibFunctionInfo) IsResolved() bool { return l.fn != nil }

// Function returns the function the summary has been resolved against, or nil
func (l *LibFunctionInfo) Function() *ssa.Function { return l.fn }

// Clone returns an unresolved copy of l. Cloning a resolved summary is an error, since its templates are gone.
func (l *LibFunctionInfo) Clone() *LibFunctionInfo {
	if l.IsResolved() {
		violation("cloning the resolved summary of %s", l.name)
	}
	return NewLibFunctionInfo(l.name, l.argTemplates, *l.returnTemplate)
}

// Resolve binds the templates of l to the parameters of fn. Resolving again against the same function does nothing;
// resolving against another function is an error of the caller and panics. An error is returned when the templates
// refer to arguments fn does not have.
func (l *LibFunctionInfo) Resolve(fn *ssa.Function) error {
	if l.IsResolved() {
		if l.fn != fn {
			violation("summary of %s resolved against %s and %s", l.name, l.fn, fn)
		}
		return nil
	}
	variadic := fn.Signature.Variadic()
	ret, err := l.returnTemplate.resolve(fn.Params, variadic)
	if err != nil {
		return fmt.Errorf("return of %s: %w", l.name, err)
	}
	argDeps := make(ArgumentDependenciesMap, len(l.argTemplates))
	for i, t := range l.argTemplates {
		if i < 0 || i >= len(fn.Params) {
			return fmt.Errorf("argument %d of %s: %s has %d parameters", i, l.name, fn, len(fn.Params))
		}
		p := fn.Params[i]
		if !lang.IsReference(p.Type()) {
			// only the memory referred to by an argument can be modified
			continue
		}
		d, err := t.resolve(fn.Params, variadic)
		if err != nil {
			return fmt.Errorf("argument %d of %s: %w", i, l.name, err)
		}
		argDeps[p] = d
	}
	l.fn = fn
	l.returnDep = ret
	l.argDeps = argDeps
	l.argTemplates = nil
	l.returnTemplate = nil
	return nil
}

func (l LibArgDepInfo) resolve(params []*ssa.Parameter, variadic bool) (DepInfo, error) {
	var d DepInfo
	switch l.Dependency {
	case Unknown, InputIndep:
		d = NewDepInfo(InputIndep)
	case InputArgumentDep:
		d = NewDepInfo(InputIndep)
		if len(l.Args) == 0 {
			d.MergeDependencies(allParams(params))
		}
	case InputDep:
		return NewDepInfo(InputDep), nil
	default:
		return DepInfo{}, fmt.Errorf("%s is not a valid summary dependency", l.Dependency)
	}
	for _, i := range l.Args {
		switch {
		case i == AllArguments:
			d.MergeDependencies(allParams(params))
		case i < 0:
			return DepInfo{}, fmt.Errorf("invalid argument index %d", i)
		case i < len(params):
			d.MergeArgumentDependencies(ArgumentSet{params[i]: true})
		case variadic && len(params) > 0:
			// indexes past the end refer to the variadic arguments
			d.MergeArgumentDependencies(ArgumentSet{params[len(params)-1]: true})
		default:
			return DepInfo{}, fmt.Errorf("argument index %d out of range (%d parameters)", i, len(params))
		}
	}
	return d, nil
}

func allParams(params []*ssa.Parameter) DepInfo {
	d := NewDepInfo(InputIndep)
	for _, p := range params {
		d.MergeArgumentDependencies(ArgumentSet{p: true})
	}
	return d
}

func (l *LibFunctionInfo) mustBeResolved() {
	if !l.IsResolved() {
		violation("summary of %s queried before resolution", l.name)
	}
}

// ReturnDependency returns the dependency of the value returned by the function, relative to its parameters
func (l *LibFunctionInfo) ReturnDependency() DepInfo {
	l.mustBeResolved()
	return l.returnDep
}

// ArgumentDependency returns the dependency of the memory referred to by p after the call, if the function writes
// it.
func (l *LibFunctionInfo) ArgumentDependency(p *ssa.Parameter) (DepInfo, bool) {
	l.mustBeResolved()
	d, ok := l.argDeps[p]
	return d, ok
}

// Summary returns the summary in the same form as the summary of an analyzed function
func (l *LibFunctionInfo) Summary() CallSummary {
	l.mustBeResolved()
	out := make(ArgumentDependenciesMap, len(l.argDeps))
	for p, d := range l.argDeps {
		out[p] = d
	}
	return CallSummary{Return: l.returnDep, OutParams: out}
}

// BindCall substitutes the parameters of the resolved summary with the dependencies args of the actual arguments
// at a call site. Parameters missing from args are bound to InputDep.
func (l *LibFunctionInfo) BindCall(args ArgumentDependenciesMap) BoundCall {
	return l.Summary().Bind(args, nil)
}

func (l *LibFunctionInfo) String() string {
	var b strings.Builder
	b.WriteString(l.name)
	if !l.IsResolved() {
		indexes := make([]int, 0, len(l.argTemplates))
		for i := range l.argTemplates {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)
		for _, i := range indexes {
			fmt.Fprintf(&b, " arg%d:%s", i, l.argTemplates[i])
		}
		fmt.Fprintf(&b, " return:%s", l.returnTemplate)
		return b.String()
	}
	for _, p := range sortedValues(l.argDeps) {
		fmt.Fprintf(&b, " %s:%s", p.Name(), l.argDeps[p])
	}
	fmt.Fprintf(&b, " return:%s", l.returnDep)
	return b.String()
}

// LibraryTable provides the summaries of the functions whose body is not analyzed
type LibraryTable interface {
	// Resolved returns the summary of fn resolved against fn, if there is one
	Resolved(fn *ssa.Function) (*LibFunctionInfo, bool)
	// IsInputGlobal returns true if g holds input of the program
	IsInputGlobal(g *ssa.Global) bool
}

type emptyLibrary struct{}

func (emptyLibrary) Resolved(*ssa.Function) (*LibFunctionInfo, bool) { return nil, false }
func (emptyLibrary) IsInputGlobal(*ssa.Global) bool                  { return false }

// MarshalText encodes d with the name String returns
func (d Dependency) MarshalText() ([]byte, error) {
	switch d {
	case Unknown, InputIndep, InputArgumentDep, InputDep, ValueDep:
		return []byte(d.String()), nil
	default:
		return nil, fmt.Errorf("invalid dependency %d", int(d))
	}
}

// UnmarshalText decodes the names of the dependencies, as String returns them
func (d *Dependency) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "unknown":
		*d = Unknown
	case "input-indep", "independent":
		*d = InputIndep
	case "arg-dep", "argument":
		*d = InputArgumentDep
	case "input-dep", "dependent", "input":
		*d = InputDep
	case "value-dep":
		*d = ValueDep
	default:
		return fmt.Errorf("unknown dependency %q", text)
	}
	return nil
}

// isReferenceParam returns true if the memory p refers to can be written by the function
func isReferenceParam(v ssa.Value) bool {
	t := v.Type()
	if _, ok := t.Underlying().(*types.Signature); ok {
		return false
	}
	return lang.IsReference(t)
}
