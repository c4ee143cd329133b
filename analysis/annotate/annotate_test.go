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

package annotate

import (
	"bytes"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/awslabs/argot-inputdep/analysis"
	"github.com/awslabs/argot-inputdep/analysis/config"
	"github.com/awslabs/argot-inputdep/analysis/inputdep"
	"github.com/awslabs/argot-inputdep/analysis/summaries"
	"github.com/awslabs/argot-inputdep/internal/analysistest"
	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/ssa"
)

const src = `package main

// input reads a value
func input() int

// double doubles.
func double(x int) int { return 2 * x }

//inputdep:dependent
func seven() int { return 7 }

func main() {
	println(double(input()), seven())
}
`

func analyze(t *testing.T) Verdicts {
	pkg := analysistest.BuildSSA(t, src)
	functions := map[*ssa.Function]bool{}
	for _, mem := range pkg.Members {
		if f, ok := mem.(*ssa.Function); ok && len(f.Blocks) > 0 {
			functions[f] = true
		}
	}
	cfg := config.NewDefault()
	library := summaries.NewTable(nil)
	library.AddInputFunction("main.input")
	reg, err := inputdep.AnalyzeProgram(&inputdep.State{
		Program:   pkg.Prog,
		Config:    cfg,
		Logger:    config.NewLogGroup(cfg),
		Functions: functions,
		Library:   library,
		CallGraph: cha.CallGraph(pkg.Prog),
		Oracle:    inputdep.TypeBasedOracle{},
	})
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	return NewVerdicts(pkg.Prog, reg)
}

func decorate(t *testing.T) (*decorator.Decorator, *token.FileSet, *dst.File) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	d := decorator.NewDecorator(fset)
	file, err := d.DecorateFile(f)
	if err != nil {
		t.Fatalf("failed to decorate: %v", err)
	}
	return d, fset, file
}

func TestNewVerdicts(t *testing.T) {
	verdicts := analyze(t)
	if len(verdicts) != 3 {
		t.Errorf("expected verdicts for double, seven and main, got %v", verdicts)
	}
	for line, expected := range map[int]analysis.DirectiveKind{
		7:  analysis.DirectiveDependent,
		10: analysis.DirectiveIndependent,
		12: analysis.DirectiveDependent,
	} {
		pos := analysis.DirectivePos{Filename: "test.go", Line: line}
		if verdicts[pos] != expected {
			t.Errorf("line %d: expected %q, got %q", line, expected, verdicts[pos])
		}
	}
}

func TestAnnotateFile(t *testing.T) {
	verdicts := analyze(t)
	d, fset, file := decorate(t)
	if n := AnnotateFile(d, fset, file, verdicts); n != 3 {
		t.Errorf("expected 3 annotated declarations, got %d", n)
	}
	var buf bytes.Buffer
	if err := Fprint(&buf, file); err != nil {
		t.Fatalf("failed to print: %v", err)
	}
	out := buf.String()
	for _, expected := range []string{
		"// input reads a value\nfunc input() int",
		"// double doubles.\n//inputdep:dependent\nfunc double",
		"//inputdep:independent\nfunc seven",
		"//inputdep:dependent\nfunc main",
	} {
		if !strings.Contains(out, expected) {
			t.Errorf("expected %q in output:\n%s", expected, out)
		}
	}
	if strings.Contains(out, "//inputdep:dependent\nfunc seven") {
		t.Errorf("stale verdict on seven was kept:\n%s", out)
	}

	// annotating twice does not stack verdicts
	AnnotateFile(d, fset, file, verdicts)
	var again bytes.Buffer
	if err := Fprint(&again, file); err != nil {
		t.Fatalf("failed to print: %v", err)
	}
	if again.String() != out {
		t.Errorf("annotation is not idempotent:\n%s", again.String())
	}
}

func TestAnnotatedDirectivesParse(t *testing.T) {
	d, fset, file := decorate(t)
	AnnotateFile(d, fset, file, Verdicts{{Filename: "test.go", Line: 7}: analysis.DirectiveIndependent})
	var buf bytes.Buffer
	if err := Fprint(&buf, file); err != nil {
		t.Fatalf("failed to print: %v", err)
	}
	f, err := parser.ParseFile(token.NewFileSet(), "out.go", buf.Bytes(), parser.ParseComments)
	if err != nil {
		t.Fatalf("annotated source does not parse: %v", err)
	}
	kinds := map[analysis.DirectiveKind]int{}
	for _, group := range f.Comments {
		for _, c := range group.List {
			if dir, ok := analysis.NewDirective(c); ok {
				kinds[dir.Kind]++
			}
		}
	}
	if kinds[analysis.DirectiveIndependent] != 1 || kinds[analysis.DirectiveDependent] != 1 {
		t.Errorf("expected one directive of each kind, got %v", kinds)
	}
}
