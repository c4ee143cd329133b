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

// Package summaries provides the dependency summaries of the library functions the input dependency analysis does
// not analyze. A Table combines a built-in table for the standard library, package-level defaults for packages
// whose functions have no effect besides their result, summaries loaded from YAML files, and the input sources of
// the configuration.
package summaries

import (
	"fmt"
	"go/types"
	"os"
	"strings"

	"github.com/awslabs/argot-inputdep/analysis"
	"github.com/awslabs/argot-inputdep/analysis/config"
	"github.com/awslabs/argot-inputdep/analysis/inputdep"
	"github.com/awslabs/argot-inputdep/analysis/lang"
	"github.com/awslabs/argot-inputdep/internal/funcutil"
	"golang.org/x/tools/go/ssa"
	"gopkg.in/yaml.v3"
)

// File is the content of a library summaries file
type File struct {
	// Functions are the summaries of individual functions
	Functions []FunctionSummary `yaml:"functions"`
	// PurePackages are packages whose functions only compute their result from their arguments
	PurePackages []string `yaml:"pure-packages"`
	// InputFunctions are functions whose results, and the memory they can write, are input
	InputFunctions []string `yaml:"input-functions"`
	// InputGlobals are globals that hold input, named as package.Name
	InputGlobals []string `yaml:"input-globals"`
}

// FunctionSummary is the summary of a function, named as ssa.Function.String() names it. The receiver of a method
// is argument 0.
type FunctionSummary struct {
	Name   string                         `yaml:"name"`
	Args   map[int]inputdep.LibArgDepInfo `yaml:"args,omitempty"`
	Return inputdep.LibArgDepInfo         `yaml:"return"`
}

// Table is a library table: it holds templates keyed by function name, and resolves them once per function.
// It implements inputdep.LibraryTable.
type Table struct {
	logger         *config.LogGroup
	templates      map[string]*inputdep.LibFunctionInfo
	purePackages   map[string]bool
	inputFunctions map[string]bool
	inputGlobals   map[string]bool
	inputSource    func(*ssa.Function) bool

	resolved     map[*ssa.Function]*inputdep.LibFunctionInfo
	unresolvable map[*ssa.Function]bool
}

// NewTable returns an empty table
func NewTable(logger *config.LogGroup) *Table {
	if logger == nil {
		logger = config.NewLogGroup(config.NewDefault())
	}
	return &Table{
		logger:         logger,
		templates:      map[string]*inputdep.LibFunctionInfo{},
		purePackages:   map[string]bool{},
		inputFunctions: map[string]bool{},
		inputGlobals:   map[string]bool{},
		resolved:       map[*ssa.Function]*inputdep.LibFunctionInfo{},
		unresolvable:   map[*ssa.Function]bool{},
	}
}

// NewStandardTable returns a table with the summaries of the standard library and of the common third-party
// packages
func NewStandardTable(logger *config.LogGroup) *Table {
	t := NewTable(logger)
	for _, s := range stdSummaries {
		t.Add(inputdep.NewLibFunctionInfo(s.Name, s.Args, s.Return))
	}
	for _, s := range otherSummaries {
		t.Add(inputdep.NewLibFunctionInfo(s.Name, s.Args, s.Return))
	}
	for _, name := range stdInputFunctions {
		t.AddInputFunction(name)
	}
	for _, pkg := range stdPurePackages {
		t.AddPurePackage(pkg)
	}
	for _, name := range stdInputGlobals {
		t.AddInputGlobal(name)
	}
	return t
}

// LoadTable returns the standard table extended with the summary files and the input sources of cfg, and with the
// directives of program
func LoadTable(cfg *config.Config, program analysis.LoadedProgram) (*Table, error) {
	t := NewStandardTable(config.NewLogGroup(cfg))
	for _, filename := range cfg.LibrarySummaryFiles() {
		if err := t.LoadFile(filename); err != nil {
			return nil, err
		}
	}
	if len(cfg.InputDependency.InputSources) > 0 {
		t.inputSource = func(f *ssa.Function) bool { return cfg.IsInputSource(functionIdentifier(f)) }
	}
	if program.Program != nil {
		t.AddDirectives(program.Program, program.InitialFunctions(), program.Directives)
	}
	return t, nil
}

// Add adds the template info, replacing any template with the same name
func (t *Table) Add(info *inputdep.LibFunctionInfo) {
	t.templates[info.Name()] = info
}

// AddPurePackage makes the package-level functions of the package at path default to summaries where the result,
// and the memory written through reference arguments, depend on all the arguments
func (t *Table) AddPurePackage(path string) { t.purePackages[path] = true }

// AddInputFunction marks the function name as a source of input
func (t *Table) AddInputFunction(name string) { t.inputFunctions[name] = true }

// AddInputGlobal marks the global name as holding input
func (t *Table) AddInputGlobal(name string) { t.inputGlobals[name] = true }

// AddDirectives summarizes the functions annotated with a directive: input functions are input sources, independent
// functions get the summary of pure functions, where the result and the memory written through reference arguments
// depend on all the arguments
func (t *Table) AddDirectives(prog *ssa.Program, functions map[*ssa.Function]bool, directives analysis.Directives) {
	if len(directives) == 0 {
		return
	}
	for f := range functions {
		d, ok := directives.FunctionDirective(prog, f)
		if !ok {
			continue
		}
		switch d.Kind {
		case analysis.DirectiveInput:
			t.AddInputFunction(f.String())
		case analysis.DirectiveIndependent:
			t.Add(pureTemplate(f))
		}
		t.logger.Debugf("%s summarized by directive %s\n", f, d.Kind)
	}
}

// LoadFile loads the summaries of the YAML file filename
func (t *Table) LoadFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("could not read library summaries: %w", err)
	}
	if err := t.Parse(data); err != nil {
		return fmt.Errorf("in %s: %w", filename, err)
	}
	t.logger.Infof("loaded library summaries from %s\n", filename)
	return nil
}

// Parse adds the summaries of the YAML content data
func (t *Table) Parse(data []byte) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("could not parse library summaries: %w", err)
	}
	for i, s := range file.Functions {
		if s.Name == "" {
			return fmt.Errorf("summary %d has no name", i)
		}
		t.Add(inputdep.NewLibFunctionInfo(s.Name, s.Args, s.Return))
	}
	for _, pkg := range file.PurePackages {
		t.AddPurePackage(pkg)
	}
	for _, name := range file.InputFunctions {
		t.AddInputFunction(name)
	}
	for _, name := range file.InputGlobals {
		t.AddInputGlobal(name)
	}
	return nil
}

// Len returns the number of function templates in the table
func (t *Table) Len() int { return len(t.templates) }

// Resolved returns the summary of fn, resolved against fn. The summary of a function is resolved once; functions
// whose template does not match their signature are not summarized.
func (t *Table) Resolved(fn *ssa.Function) (*inputdep.LibFunctionInfo, bool) {
	if fn == nil || t.unresolvable[fn] {
		return nil, false
	}
	if info, ok := t.resolved[fn]; ok {
		return info, true
	}
	info := t.template(fn)
	if info == nil {
		return nil, false
	}
	if err := info.Resolve(fn); err != nil {
		t.logger.Warnf("ignoring summary of %s: %v\n", fn, err)
		t.unresolvable[fn] = true
		return nil, false
	}
	t.resolved[fn] = info
	return info, true
}

// template returns a fresh template for fn, or nil if fn is not summarized
func (t *Table) template(fn *ssa.Function) *inputdep.LibFunctionInfo {
	name := fn.String()
	if tmpl, ok := t.templates[name]; ok {
		return tmpl.Clone()
	}
	if t.inputFunctions[name] || (t.inputSource != nil && t.inputSource(fn)) {
		return inputTemplate(fn)
	}
	if t.isPure(fn) {
		return pureTemplate(fn)
	}
	return nil
}

// isPure returns true if the package-level default applies to fn. Methods and functions taking functions are
// excluded: their effects depend on code the default cannot see.
func (t *Table) isPure(fn *ssa.Function) bool {
	if fn.Signature.Recv() != nil || fn.Parent() != nil || !t.purePackages[analysis.PackageNameFromFunction(fn)] {
		return false
	}
	params := fn.Signature.Params()
	for i := 0; i < params.Len(); i++ {
		if _, isFunc := params.At(i).Type().Underlying().(*types.Signature); isFunc {
			return false
		}
	}
	return true
}

// IsInputGlobal implements inputdep.LibraryTable
func (t *Table) IsInputGlobal(g *ssa.Global) bool {
	return g != nil && t.inputGlobals[g.RelString(nil)]
}

// inputTemplate returns the summary of an input source: its result and everything it can write are input
func inputTemplate(fn *ssa.Function) *inputdep.LibFunctionInfo {
	args := map[int]inputdep.LibArgDepInfo{}
	for i, p := range fn.Params {
		if lang.IsReference(p.Type()) {
			args[i] = inputdep.LibArgDepInfo{Dependency: inputdep.InputDep}
		}
	}
	return inputdep.NewLibFunctionInfo(fn.String(), args, inputdep.LibArgDepInfo{Dependency: inputdep.InputDep})
}

// pureTemplate returns the default summary of the functions of pure packages
func pureTemplate(fn *ssa.Function) *inputdep.LibFunctionInfo {
	all := inputdep.LibArgDepInfo{Dependency: inputdep.InputArgumentDep, Args: []int{inputdep.AllArguments}}
	args := map[int]inputdep.LibArgDepInfo{}
	for i, p := range fn.Params {
		if lang.IsReference(p.Type()) {
			args[i] = all
		}
	}
	return inputdep.NewLibFunctionInfo(fn.String(), args, all)
}

// functionIdentifier returns the code identifier matching fn in the configuration
func functionIdentifier(fn *ssa.Function) config.CodeIdentifier {
	cid := config.CodeIdentifier{Package: analysis.PackageNameFromFunction(fn), Method: fn.Name()}
	if recv := fn.Signature.Recv(); recv != nil {
		cid.Receiver = receiverName(recv.Type())
	}
	return cid
}

func receiverName(t types.Type) string {
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	if n, ok := t.(*types.Named); ok {
		return n.Obj().Name()
	}
	return strings.TrimPrefix(t.String(), "*")
}

// IsStdPackageName returns true if the package path name is in the standard library or the runtime
func IsStdPackageName(name string) bool {
	return stdPackages[name] || strings.HasPrefix(name, "runtime") || strings.HasPrefix(name, "internal/")
}

// IsStdFunction returns true if function is a function from the standard library or the runtime.
//
// Returns false if the input is nil.
func IsStdFunction(function *ssa.Function) bool {
	if function == nil {
		return false
	}
	return IsStdPackageName(analysis.PackageNameFromFunction(function))
}

// IsUserDefinedFunction returns true when function is a user-defined function: it is not in the standard library or
// in the runtime, and it belongs to a package.
func IsUserDefinedFunction(function *ssa.Function) bool {
	if function == nil {
		return false
	}
	pkgKey := analysis.PackageNameFromFunction(function)
	if pkgKey == "" {
		return false
	}
	return !IsStdPackageName(pkgKey)
}

// StdPackages returns the paths of the standard library packages the table knows, sorted
func StdPackages() []string {
	return funcutil.SetToOrderedSlice(stdPackages)
}
