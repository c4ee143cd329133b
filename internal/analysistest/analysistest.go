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

// Package analysistest contains helpers to build the programs the analyses are tested on.
package analysistest

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"testing"

	"github.com/awslabs/argot-inputdep/analysis"
	"github.com/awslabs/argot-inputdep/analysis/config"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// LoadTest loads the program in the directory dir, looking for a main.go and a config.yaml. If additional files
// are specified as extraFiles, the program will be loaded using those files too.
func LoadTest(t *testing.T, dir string, extraFiles []string) (analysis.LoadedProgram, *config.Config) {
	var err error
	// Load config; in command, should be set using some flag
	configFile := filepath.Join(dir, "config.yaml")
	config.SetGlobalConfig(configFile)
	files := []string{filepath.Join(dir, "./main.go")}
	for _, extraFile := range extraFiles {
		files = append(files, filepath.Join(dir, extraFile))
	}

	program, err := analysis.LoadProgram(nil, "", ssa.BuilderMode(0), files)
	if err != nil {
		t.Fatalf("error loading packages: %v", err)
	}
	cfg, err := config.LoadGlobal()
	if err != nil {
		t.Fatalf("error loading global config: %v", err)
	}
	return program, cfg
}

// BuildSSA parses and type-checks the source of a single file package, and returns the package built in SSA form.
// The source should only import packages that can be found by the default importer. Functions declared without a
// body have no blocks in SSA, and are treated by the analyses as library functions.
func BuildSSA(t *testing.T, src string) *ssa.Package {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("failed to parse test source: %v", err)
	}
	pkg := types.NewPackage(f.Name.Name, f.Name.Name)
	conf := &types.Config{Importer: importer.Default()}
	ssaPkg, _, err := ssautil.BuildPackage(conf, fset, pkg, []*ast.File{f}, ssa.SanityCheckFunctions)
	if err != nil {
		t.Fatalf("failed to build test package: %v", err)
	}
	return ssaPkg
}

// Func returns the function or method named name in pkg. Methods are named "Type.Method" and are looked up on both
// the type and its pointer.
func Func(t *testing.T, pkg *ssa.Package, name string) *ssa.Function {
	t.Helper()
	if f := pkg.Func(name); f != nil {
		return f
	}
	for _, mem := range pkg.Members {
		typ, ok := mem.(*ssa.Type)
		if !ok {
			continue
		}
		for _, recv := range []types.Type{typ.Type(), types.NewPointer(typ.Type())} {
			mset := pkg.Prog.MethodSets.MethodSet(recv)
			for i := 0; i < mset.Len(); i++ {
				sel := mset.At(i)
				if typ.Name()+"."+sel.Obj().Name() == name {
					if f := pkg.Prog.MethodValue(sel); f != nil {
						return f
					}
				}
			}
		}
	}
	t.Fatalf("no function %q in package %s", name, pkg.Pkg.Path())
	return nil
}

// Instrs returns all the instructions of type T in fn, in block order.
func Instrs[T ssa.Instruction](fn *ssa.Function) []T {
	var res []T
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if x, ok := instr.(T); ok {
				res = append(res, x)
			}
		}
	}
	return res
}

// FirstInstr returns the first instruction of type T in fn, and fails the test if there is none.
func FirstInstr[T ssa.Instruction](t *testing.T, fn *ssa.Function) T {
	t.Helper()
	instrs := Instrs[T](fn)
	if len(instrs) == 0 {
		var zero T
		t.Fatalf("no instruction of type %T in %s", zero, fn.Name())
		return zero
	}
	return instrs[0]
}

// CallTo returns the first call in fn whose static callee is named callee.
func CallTo(t *testing.T, fn *ssa.Function, callee string) *ssa.Call {
	t.Helper()
	for _, c := range Instrs[*ssa.Call](fn) {
		if f := c.Call.StaticCallee(); f != nil && f.Name() == callee {
			return c
		}
	}
	t.Fatalf("no call to %s in %s", callee, fn.Name())
	return nil
}
