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
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/awslabs/argot-inputdep/analysis/config"
	"github.com/awslabs/argot-inputdep/internal/analysistest"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

const programSrc = `package main

func input() int

func double(x int) int { return 2 * x }

func counter(n int) int {
	s := 1
	for i := 0; i < n; i++ {
		s = double(s)
	}
	return s
}

func fact(n int) int {
	if n <= 1 {
		return 1
	}
	return n * fact(n-1)
}

func main() {
	a := double(input())
	b := double(3)
	println(a, b, counter(10), fact(4))
}
`

const globalsSrc = `package main

type I interface{ M(x int) int }

type T struct{}

func (T) M(x int) int { return x + 1 }

var g, h int

func input() int

func setG() { g = input() }

func setH() { h = 4 }

func getG() int { return g }

func getH() int { return h }

func viaCallee() int {
	setG()
	return g
}

func call(i I) int { return i.M(3) }

func main() {
	setG()
	setH()
	println(getG(), getH(), viaCallee(), call(T{}))
}
`

func programState(t *testing.T) (*ssa.Package, *State) { return programStateOf(t, programSrc) }

// programStateOf prepares the analysis of the functions and methods declared in src
func programStateOf(t *testing.T, src string) (*ssa.Package, *State) {
	pkg := analysistest.BuildSSA(t, src)
	functions := map[*ssa.Function]bool{}
	for f := range ssautil.AllFunctions(pkg.Prog) {
		if f.Pkg == pkg && len(f.Blocks) > 0 {
			functions[f] = true
		}
	}
	cfg := config.NewDefault()
	return pkg, &State{
		Program:   pkg.Prog,
		Config:    cfg,
		Logger:    config.NewLogGroup(cfg),
		Functions: functions,
		Library:   newTestLibrary(NewLibFunctionInfo("main.input", nil, LibArgDepInfo{Dependency: InputDep})),
		CallGraph: cha.CallGraph(pkg.Prog),
		Oracle:    TypeBasedOracle{},
	}
}

func TestAnalyzeProgram(t *testing.T) {
	pkg, state := programState(t)
	reg, err := AnalyzeProgram(state)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if reg.Len() != len(state.Functions) {
		t.Errorf("expected %d results, got %d", len(state.Functions), reg.Len())
	}

	double := analysistest.Func(t, pkg, "double")
	r, ok := reg.Lookup(double)
	if !ok {
		t.Fatalf("double is not analyzed")
	}
	if !r.IsInputDependent(analysistest.FirstInstr[*ssa.Return](t, double)) {
		t.Errorf("double is called with an input, its return should be input dependent")
	}
	if s, _ := reg.Summary(double); !s.Return.IsInputArgumentDep() {
		t.Errorf("the summary of double should stay relative to its argument, got %s", s.Return)
	}

	main := analysistest.Func(t, pkg, "main")
	r, _ = reg.Lookup(main)
	calls := analysistest.Instrs[*ssa.Call](main)
	var doubles []*ssa.Call
	for _, c := range calls {
		if c.Call.StaticCallee() == double {
			doubles = append(doubles, c)
		}
	}
	if len(doubles) != 2 {
		t.Fatalf("expected two calls to double in main, got %d", len(doubles))
	}
	if !r.IsInputDependent(doubles[0]) || !r.IsInputIndependent(doubles[1]) {
		t.Errorf("expected double(input()) to be input dependent and double(3) input independent")
	}
	if !r.IsInputDepFunction() {
		t.Errorf("main calls input and should be an input dependent function")
	}

	for _, name := range []string{"counter", "fact"} {
		fn := analysistest.Func(t, pkg, name)
		r, _ := reg.Lookup(fn)
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				if !r.IsInputIndependent(instr) {
					t.Errorf("%s is only called with constants, %s should be input independent", name, instr)
				}
			}
		}
		if ar, ok := r.(*FunctionAnalysisResult); !ok || !ar.IsFinalized() {
			t.Errorf("the result of %s should be finalized", name)
		}
	}

	fact := analysistest.Func(t, pkg, "fact")
	s, _ := reg.Summary(fact)
	if !s.Return.IsInputArgumentDep() || !s.Return.ArgumentDependencies()[fact.Params[0]] {
		t.Errorf("the summary of the recursive fact should depend on n, got %s", s.Return)
	}
}

func TestGlobalsFinalization(t *testing.T) {
	pkg, state := programStateOf(t, globalsSrc)
	reg, err := AnalyzeProgram(state)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	returns := func(name string) (FunctionResult, *ssa.Return) {
		fn := analysistest.Func(t, pkg, name)
		r, ok := reg.Lookup(fn)
		if !ok {
			t.Fatalf("%s is not analyzed", name)
		}
		return r, analysistest.FirstInstr[*ssa.Return](t, fn)
	}

	if r, ret := returns("getG"); !r.IsInputDependent(ret) {
		t.Errorf("g is assigned an input, getG should return input dependent values")
	}
	if r, ret := returns("getH"); !r.IsInputIndependent(ret) {
		t.Errorf("h is only assigned constants, getH should return input independent values")
	}
	if r, ret := returns("viaCallee"); !r.IsInputDependent(ret) {
		t.Errorf("viaCallee reads g after setG writes it, its return should be input dependent")
	}

	setG := analysistest.Func(t, pkg, "setG")
	r, _ := reg.Lookup(setG)
	if d, ok := r.GlobalsDependencies()[pkg.Var("g")]; !ok || !d.IsInputDep() {
		t.Errorf("setG should write an input dependent value in g, got %s", d)
	}
}

func TestInvokeBindings(t *testing.T) {
	pkg, state := programStateOf(t, globalsSrc)
	reg, err := AnalyzeProgram(state)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	call := analysistest.Func(t, pkg, "call")
	method := analysistest.Func(t, pkg, "T.M")
	r, ok := reg.Lookup(call)
	if !ok {
		t.Fatalf("call is not analyzed")
	}
	invoke := analysistest.FirstInstr[*ssa.Call](t, call)
	if !invoke.Call.IsInvoke() {
		t.Fatalf("expected an invoke call, got %s", invoke)
	}

	info, ok := r.FunctionCallDepInfo(method)
	if !ok {
		t.Fatalf("the call to T.M is not recorded")
	}
	if _, ok := info.ArgumentDependenciesForCall(invoke); ok {
		t.Errorf("an invoke site should not be recorded as a static call")
	}
	args, ok := info.ArgumentDependenciesForInvoke(invoke)
	if !ok {
		t.Fatalf("no invoke binding for %s", invoke)
	}
	if d := args[method.Params[1]]; !d.IsInputIndep() {
		t.Errorf("x is bound to a constant and should be input independent, got %s", d)
	}
	if len(info.CallSites()) != 1 {
		t.Errorf("expected one site calling T.M, got %d", len(info.CallSites()))
	}
}

func TestAnalyzeProgramInputEntryPoints(t *testing.T) {
	pkg, state := programState(t)
	state.Config.InputDependency.EntryPointsInput = false
	reg, err := AnalyzeProgram(state)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	counter := analysistest.Func(t, pkg, "counter")
	r, _ := reg.Lookup(counter)
	if !r.IsInputIndependent(analysistest.FirstInstr[*ssa.Return](t, counter)) {
		t.Errorf("counter(10) should be input independent")
	}
}

func TestRegistry(t *testing.T) {
	pkg, state := programState(t)
	reg, err := AnalyzeProgram(state)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	fns := reg.Functions()
	for i := 1; i < len(fns); i++ {
		if fns[i-1].String() > fns[i].String() {
			t.Errorf("functions are not sorted: %s before %s", fns[i-1], fns[i])
		}
	}
	for _, f := range fns {
		r, _ := reg.Lookup(f)
		if !r.IsFrozen() {
			t.Errorf("published result of %s is not frozen", f)
		}
	}
	if _, ok := reg.Lookup(analysistest.Func(t, pkg, "input")); ok {
		t.Errorf("input has no body and should not have a result")
	}
}

func TestReport(t *testing.T) {
	_, state := programState(t)
	reg, err := AnalyzeProgram(state)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	report := NewReport(reg)
	if len(report.Functions) != reg.Len() {
		t.Errorf("expected one entry per function, got %d", len(report.Functions))
	}
	if report.Total.InputDepInstructions == 0 || report.Total.InputIndepInstructions == 0 {
		t.Errorf("expected both input dependent and independent instructions, got %+v", report.Total)
	}

	var text bytes.Buffer
	if err := report.Encode(&text, "text"); err != nil {
		t.Fatalf("text encoding failed: %v", err)
	}
	if !strings.Contains(text.String(), "total") || !strings.Contains(text.String(), "main.double") {
		t.Errorf("unexpected text report:\n%s", text.String())
	}

	var buf bytes.Buffer
	if err := report.Encode(&buf, "json"); err != nil {
		t.Fatalf("json encoding failed: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json report: %v", err)
	}
	if decoded.Total != report.Total {
		t.Errorf("json report total %+v differs from %+v", decoded.Total, report.Total)
	}

	buf.Reset()
	if err := report.Encode(&buf, "msgpack"); err != nil {
		t.Fatalf("msgpack encoding failed: %v", err)
	}
	decoded = Report{}
	if err := msgpack.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid msgpack report: %v", err)
	}
	if len(decoded.Functions) != len(report.Functions) {
		t.Errorf("msgpack report has %d functions, want %d", len(decoded.Functions), len(report.Functions))
	}

	if err := report.Encode(&buf, "xml"); err == nil {
		t.Errorf("expected an error for an unsupported format")
	}

	state.Config.ReportsDir = t.TempDir()
	state.Config.ReportFormat = "yaml"
	name, err := WriteReport(report, state.Config)
	if err != nil {
		t.Fatalf("could not write the report: %v", err)
	}
	content, err := os.ReadFile(name)
	if err != nil || !strings.Contains(string(content), "functions:") {
		t.Errorf("unexpected report file %s: %v", name, err)
	}
}

func TestInvariantErrorsAreReported(t *testing.T) {
	err := func() (err error) {
		defer recoverInvariant(&err)
		violation("broken %d", 1)
		return nil
	}()
	if err == nil || !strings.Contains(err.Error(), "broken 1") {
		t.Errorf("expected the violation to be returned as an error, got %v", err)
	}
}
