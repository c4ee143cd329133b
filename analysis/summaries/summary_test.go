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

package summaries

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/awslabs/argot-inputdep/analysis"
	"github.com/awslabs/argot-inputdep/analysis/config"
	"github.com/awslabs/argot-inputdep/analysis/inputdep"
	"github.com/awslabs/argot-inputdep/internal/analysistest"
	"golang.org/x/tools/go/ssa"
)

const osSrc = `package os

var Args []string

func Getenv(key string) string

func ReadFile(name string) ([]byte, error)

func Chdir(dir string) error
`

const stringsSrc = `package strings

type Builder struct{ buf []byte }

func ToUpper(s string) string

func Map(mapping func(rune) rune, s string) string

func (b *Builder) WriteString(s string) (int, error)

func (b *Builder) Cap() int
`

const libSrc = `package p

var config string

func lib(a, b int) int

func fill(dst []byte, n int)

func broken(a int) int

func read() string

func read2(buf []byte) int

func marked(x int, out *int) int

func plain() int
`

const libYaml = `
functions:
  - name: p.lib
    return: {dependency: arg-dep, args: [1]}
  - name: p.fill
    args:
      0: {dependency: arg-dep, args: [1]}
    return: {dependency: input-indep}
  - name: p.broken
    return: {dependency: arg-dep, args: [4]}
input-functions: [p.read]
input-globals: [p.config]
`

func TestStandardTable(t *testing.T) {
	table := NewStandardTable(nil)
	if table.Len() == 0 {
		t.Fatalf("the standard table has no summaries")
	}

	pkg := analysistest.BuildSSA(t, osSrc)
	getenv := analysistest.Func(t, pkg, "Getenv")
	info, ok := table.Resolved(getenv)
	if !ok || !info.ReturnDependency().IsInputDep() {
		t.Errorf("os.Getenv should be an input source")
	}
	again, _ := table.Resolved(getenv)
	if again != info {
		t.Errorf("a function should be resolved once")
	}
	if _, ok := table.Resolved(analysistest.Func(t, pkg, "Chdir")); ok {
		t.Errorf("os.Chdir has no summary")
	}
	if !table.IsInputGlobal(pkg.Var("Args")) {
		t.Errorf("os.Args should hold input")
	}
}

func TestPurePackages(t *testing.T) {
	table := NewStandardTable(nil)
	pkg := analysistest.BuildSSA(t, stringsSrc)

	upper := analysistest.Func(t, pkg, "ToUpper")
	info, ok := table.Resolved(upper)
	if !ok {
		t.Fatalf("strings.ToUpper should have the pure default summary")
	}
	ret := info.ReturnDependency()
	if !ret.IsInputArgumentDep() || !ret.ArgumentDependencies()[upper.Params[0]] {
		t.Errorf("expected the result of ToUpper to depend on its argument, got %s", ret)
	}

	if _, ok := table.Resolved(analysistest.Func(t, pkg, "Map")); ok {
		t.Errorf("functions taking functions should not get the pure default")
	}
	if _, ok := table.Resolved(analysistest.Func(t, pkg, "Builder.Cap")); ok {
		t.Errorf("methods should not get the pure default")
	}

	write := analysistest.Func(t, pkg, "Builder.WriteString")
	info, ok = table.Resolved(write)
	if !ok {
		t.Fatalf("(*strings.Builder).WriteString has a built-in summary")
	}
	d, ok := info.ArgumentDependency(write.Params[0])
	if !ok || !d.ArgumentDependencies()[write.Params[1]] {
		t.Errorf("WriteString should write its argument in the builder, got %s", d)
	}
}

func TestParse(t *testing.T) {
	table := NewTable(nil)
	if err := table.Parse([]byte(libYaml)); err != nil {
		t.Fatalf("could not parse summaries: %v", err)
	}
	pkg := analysistest.BuildSSA(t, libSrc)

	lib := analysistest.Func(t, pkg, "lib")
	info, ok := table.Resolved(lib)
	if !ok || !info.ReturnDependency().ArgumentDependencies()[lib.Params[1]] {
		t.Errorf("the result of lib should depend on b")
	}

	fill := analysistest.Func(t, pkg, "fill")
	info, ok = table.Resolved(fill)
	if !ok {
		t.Fatalf("fill should be summarized")
	}
	if d, ok := info.ArgumentDependency(fill.Params[0]); !ok || !d.ArgumentDependencies()[fill.Params[1]] {
		t.Errorf("fill should write n in dst, got %s", d)
	}

	broken := analysistest.Func(t, pkg, "broken")
	for i := 0; i < 2; i++ {
		if _, ok := table.Resolved(broken); ok {
			t.Errorf("a summary referring to missing arguments should be ignored")
		}
	}

	info, ok = table.Resolved(analysistest.Func(t, pkg, "read"))
	if !ok || !info.ReturnDependency().IsInputDep() {
		t.Errorf("read should be an input source")
	}
	if !table.IsInputGlobal(pkg.Var("config")) {
		t.Errorf("p.config should hold input")
	}
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"syntax":             "functions: {",
		"missing name":       "functions: [{return: {dependency: input-dep}}]",
		"unknown dependency": "functions: [{name: p.f, return: {dependency: sometimes}}]",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if err := NewTable(nil).Parse([]byte(content)); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.yaml"), []byte(libYaml), 0600); err != nil {
		t.Fatal(err)
	}
	cfgContent := `
input-dependency:
  library-summaries: [lib.yaml]
  input-sources:
    - package: "^p$"
      method: "^read2$"
`
	cfgFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgFile, []byte(cfgContent), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}

	pkg := analysistest.BuildSSA(t, libSrc)
	marked := analysistest.Func(t, pkg, "marked")
	pos := pkg.Prog.Fset.Position(marked.Pos())
	program := analysis.LoadedProgram{
		Program: pkg.Prog,
		Directives: analysis.Directives{
			{Filename: pos.Filename, Line: pos.Line - 1}: {Kind: analysis.DirectiveIndependent},
		},
	}
	table, err := LoadTable(cfg, program)
	if err != nil {
		t.Fatalf("could not load the table: %v", err)
	}
	if _, ok := table.Resolved(analysistest.Func(t, pkg, "lib")); !ok {
		t.Errorf("the summaries of the configured files should be loaded")
	}
	read2 := analysistest.Func(t, pkg, "read2")
	info, ok := table.Resolved(read2)
	if !ok || !info.ReturnDependency().IsInputDep() {
		t.Fatalf("read2 is a configured input source")
	}
	if d, ok := info.ArgumentDependency(read2.Params[0]); !ok || !d.IsInputDep() {
		t.Errorf("an input source writes input through its reference arguments, got %s", d)
	}
	if _, ok := table.Resolved(analysistest.Func(t, pkg, "plain")); ok {
		t.Errorf("plain has no summary")
	}

	// marked has a directive but is not an initial function of the loaded program
	if _, ok := table.Resolved(marked); ok {
		t.Errorf("directives only apply to the initial functions")
	}
	table.AddDirectives(pkg.Prog, map[*ssa.Function]bool{marked: true}, program.Directives)
	info, ok = table.Resolved(marked)
	if !ok {
		t.Fatalf("marked is summarized by directive")
	}
	if ret := info.ReturnDependency(); !ret.IsInputArgumentDep() || !ret.ArgumentDependencies()[marked.Params[0]] {
		t.Errorf("the result of marked depends on its arguments, got %s", ret)
	}
	if d, ok := info.ArgumentDependency(marked.Params[1]); !ok || !d.IsInputArgumentDep() {
		t.Errorf("marked may write its arguments through out, got %s", d)
	}
	bound := info.BindCall(inputdep.ArgumentDependenciesMap{
		marked.Params[0]: inputdep.NewDepInfo(inputdep.InputDep),
		marked.Params[1]: inputdep.NewDepInfo(inputdep.InputIndep),
	})
	if !bound.Return.IsInputDep() {
		t.Errorf("marked called with input should return input dependent values, got %s", bound.Return)
	}
}

func TestStdFunctions(t *testing.T) {
	stdPkg := analysistest.BuildSSA(t, osSrc)
	userPkg := analysistest.BuildSSA(t, libSrc)
	if !IsStdFunction(analysistest.Func(t, stdPkg, "Getenv")) {
		t.Errorf("os.Getenv is in the standard library")
	}
	if IsStdFunction(analysistest.Func(t, userPkg, "lib")) || !IsUserDefinedFunction(analysistest.Func(t, userPkg, "lib")) {
		t.Errorf("p.lib is user defined")
	}
	if IsStdFunction(nil) || IsUserDefinedFunction(nil) {
		t.Errorf("nil is neither standard nor user defined")
	}
	pkgs := StdPackages()
	for i := 1; i < len(pkgs); i++ {
		if pkgs[i-1] >= pkgs[i] {
			t.Fatalf("packages are not sorted")
		}
	}
}
