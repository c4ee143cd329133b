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

	"github.com/awslabs/argot-inputdep/analysis"
	"github.com/awslabs/argot-inputdep/analysis/config"
	"github.com/awslabs/argot-inputdep/analysis/lang"
	"github.com/awslabs/argot-inputdep/internal/funcutil"
	"github.com/awslabs/argot-inputdep/internal/graphutil"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// State is the input of the analysis of a program
type State struct {
	Program *ssa.Program
	Config  *config.Config
	Logger  *config.LogGroup
	// Functions are the functions whose bodies are analyzed
	Functions map[*ssa.Function]bool
	Library   LibraryTable
	CallGraph *callgraph.Graph
	Oracle    AliasOracle
}

// NewState prepares the analysis of the initial packages of program: it selects the functions to analyze with the
// package filter of cfg, builds the call graph and the alias oracle.
func NewState(program analysis.LoadedProgram, cfg *config.Config, library LibraryTable) (*State, error) {
	logger := config.NewLogGroup(cfg)
	if library == nil {
		library = emptyLibrary{}
	}
	functions := map[*ssa.Function]bool{}
	for f := range program.InitialFunctions() {
		if len(f.Blocks) == 0 {
			continue
		}
		if cfg.PkgFilter != "" && !cfg.MatchPkgFilter(analysis.PackageNameFromFunction(f)) {
			continue
		}
		if _, summarized := library.Resolved(f); summarized {
			continue
		}
		functions[f] = true
	}

	mode, err := analysis.ParseCallgraphMode(cfg.InputDependency.Callgraph)
	if err != nil {
		return nil, err
	}
	logger.Infof("computing %s call graph\n", mode)
	cg, err := mode.ComputeCallgraph(program.Program)
	if err != nil {
		return nil, fmt.Errorf("failed to compute the call graph: %w", err)
	}

	var oracle AliasOracle = TypeBasedOracle{}
	if cfg.InputDependency.UsePointerAlias {
		result, err := analysis.DoPointerAnalysis(program.Program, func(f *ssa.Function) bool { return functions[f] },
			false)
		if err != nil {
			logger.Warnf("pointer analysis failed, using type-based aliasing: %v\n", err)
		} else {
			oracle = NewPointsToOracle(result)
		}
	}

	return &State{
		Program:   program.Program,
		Config:    cfg,
		Logger:    logger,
		Functions: functions,
		Library:   library,
		CallGraph: cg,
		Oracle:    oracle,
	}, nil
}

// programAnalysis is the state of AnalyzeProgram
type programAnalysis struct {
	state         *State
	registry      *Registry
	siteCallees   map[ssa.CallInstruction][]*ssa.Function
	calls         *graphutil.Graph[*ssa.Function]
	maxIterations int
}

// AnalyzeProgram analyzes every function of state.Functions, callees first, and publishes the results in a new
// registry. Recursive functions are analyzed until their summaries are stable. The verdicts are finally bound to
// the dependencies of the arguments at the call sites and of the globals.
//
// An error is returned when an invariant of the analysis is violated: the results are then unusable.
func AnalyzeProgram(state *State) (registry *Registry, err error) {
	defer recoverInvariant(&err)
	if state.Logger == nil {
		state.Logger = config.NewLogGroup(state.Config)
	}
	if state.Library == nil {
		state.Library = emptyLibrary{}
	}
	pa := &programAnalysis{
		state:         state,
		registry:      NewRegistry(),
		siteCallees:   map[ssa.CallInstruction][]*ssa.Function{},
		maxIterations: state.Config.InputDependency.MaxFixpointIterations,
	}
	if pa.maxIterations <= 0 {
		pa.maxIterations = config.DefaultMaxFixpointIterations
	}
	if state.CallGraph != nil {
		pa.indexCallGraph()
	}

	nodes := funcutil.KeysSortedBy(state.Functions, (*ssa.Function).String)
	pa.calls = graphutil.New(nodes, pa.analyzedCallees)
	stats := pa.calls.Stats()
	state.Logger.Debugf("call graph of analyzed functions: %d nodes, %d edges, %d self loops, %d isolated, acyclic: %v\n",
		stats.Nodes, stats.Edges, stats.Loops, stats.Isolated, stats.Acyclic)
	sccs := pa.calls.Components()
	state.Logger.Infof("analyzing %d functions in %d components\n", len(nodes), len(sccs))

	for _, scc := range sccs {
		pa.analyzeComponent(scc, !stats.Acyclic && pa.calls.IsRecursive(scc))
	}
	pa.finalize()
	return pa.registry, nil
}

// indexCallGraph maps call sites to their callees and logs statistics about the call graph
func (pa *programAnalysis) indexCallGraph() {
	cg := pa.state.CallGraph
	for _, node := range cg.Nodes {
		for _, e := range node.Out {
			if e.Site == nil || e.Callee == nil || e.Callee.Func == nil {
				continue
			}
			if !containsFunction(pa.siteCallees[e.Site], e.Callee.Func) {
				pa.siteCallees[e.Site] = append(pa.siteCallees[e.Site], e.Callee.Func)
			}
		}
	}
	pa.state.Logger.Debugf("call graph: %d nodes, %d resolved call sites\n", len(cg.Nodes),
		len(pa.siteCallees))
}

func containsFunction(fs []*ssa.Function, f *ssa.Function) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

// callees returns the callees of a call site without a static callee
func (pa *programAnalysis) callees(instr ssa.CallInstruction) []*ssa.Function {
	return pa.siteCallees[instr]
}

// analyzedCallees returns the analyzed functions f calls
func (pa *programAnalysis) analyzedCallees(f *ssa.Function) []*ssa.Function {
	var res []*ssa.Function
	for _, b := range f.Blocks {
		for _, instr := range b.Instrs {
			call, ok := instr.(ssa.CallInstruction)
			if !ok {
				continue
			}
			var targets []*ssa.Function
			if callee := call.Common().StaticCallee(); callee != nil {
				targets = []*ssa.Function{callee}
			} else {
				targets = pa.siteCallees[call]
			}
			for _, t := range targets {
				if pa.state.Functions[t] && !containsFunction(res, t) {
					res = append(res, t)
				}
			}
		}
	}
	return res
}

func (pa *programAnalysis) env(lookup func(*ssa.Function) (CallSummary, bool)) FunctionEnv {
	return FunctionEnv{
		Oracle:        pa.state.Oracle,
		Library:       pa.state.Library,
		Lookup:        lookup,
		Callees:       pa.callees,
		Logger:        pa.state.Logger,
		MaxIterations: pa.maxIterations,
	}
}

// analyzeComponent analyzes the functions of one strongly connected component of the call graph. Recursive
// components start from input independent summaries and are analyzed until the summaries are stable.
func (pa *programAnalysis) analyzeComponent(scc []*ssa.Function, recursive bool) {
	if !recursive {
		pa.registry.Publish(AnalyzeFunction(scc[0], pa.env(pa.registry.Summary)))
		return
	}

	current := make(map[*ssa.Function]CallSummary, len(scc))
	for _, f := range scc {
		current[f] = CallSummary{Return: NewDepInfo(InputIndep)}
	}
	lookup := func(f *ssa.Function) (CallSummary, bool) {
		if s, ok := current[f]; ok {
			return s, true
		}
		return pa.registry.Summary(f)
	}
	results := make(map[*ssa.Function]*FunctionAnalysisResult, len(scc))
	for i := 1; i <= pa.maxIterations; i++ {
		changed := false
		for _, f := range scc {
			res := AnalyzeFunction(f, pa.env(lookup))
			results[f] = res
			s := summaryOf(res)
			if !equalSummaries(s, current[f]) {
				changed = true
				current[f] = s
			}
		}
		if !changed {
			pa.state.Logger.Debugf("recursive component of %d functions stable after %d iterations\n", len(scc), i)
			for _, f := range scc {
				pa.registry.Publish(results[f])
			}
			return
		}
	}

	pa.state.Logger.Warnf("recursive component of %s did not stabilize, assuming input dependent calls\n", scc[0])
	for _, f := range scc {
		pa.registry.Publish(AnalyzeFunction(f, pa.env(pa.registry.Summary)))
	}
}

// finalize computes the dependencies of the arguments of every function and of every global, jointly, and binds the
// verdicts of the results to them. Callers are visited before their callees.
func (pa *programAnalysis) finalize() {
	var results []*FunctionAnalysisResult
	for _, f := range pa.calls.TopologicalOrder() {
		if r, ok := pa.registry.results[f].(*FunctionAnalysisResult); ok {
			results = append(results, r)
		}
	}

	analyzedPackages := map[*ssa.Package]bool{}
	for f := range pa.state.Functions {
		if f.Pkg != nil {
			analyzedPackages[f.Pkg] = true
		}
	}
	fixedGlobals := map[*ssa.Global]bool{}
	globals := GlobalsDependenciesMap{}
	globalDep := func(g *ssa.Global) DepInfo {
		if d, ok := globals[g]; ok {
			return d
		}
		d := NewDepInfo(InputIndep)
		if !analyzedPackages[g.Pkg] || pa.state.Library.IsInputGlobal(g) || pa.isConfiguredInputGlobal(g) {
			d = NewDepInfo(InputDep)
			fixedGlobals[g] = true
		}
		globals[g] = d
		return d
	}

	args := make(map[*ssa.Function]ArgumentDependenciesMap, len(results))
	for _, r := range results {
		entry := pa.isEntryPoint(r.Function())
		m := ArgumentDependenciesMap{}
		for _, formal := range lang.FormalArguments(r.Function()) {
			if entry && pa.state.Config.InputDependency.EntryPointsInput {
				m[formal] = NewDepInfo(InputDep)
			} else {
				m[formal] = NewDepInfo(InputIndep)
			}
		}
		args[r.Function()] = m
	}

	concrete := func(d DepInfo, binding ArgumentDependenciesMap) DepInfo {
		if d.Floor() == InputDep {
			return d
		}
		res := NewDepInfo(InputIndep)
		for a := range d.ArgumentDependencies() {
			if x, ok := binding[a]; ok {
				res.MergeDependencies(x)
			} else {
				res.MergeDependency(InputDep)
			}
		}
		for v := range d.ValueDependencies() {
			g, ok := v.(*ssa.Global)
			if !ok {
				violation("unresolved value %s after reflection", v)
			}
			res.MergeDependencies(globalDep(g))
		}
		return res
	}
	join := func(m map[ssa.Value]DepInfo, k ssa.Value, d DepInfo) bool {
		old := m[k]
		merged := Merge(old, d)
		m[k] = merged
		return !merged.Equal(old)
	}

	for changed, round := true, 0; changed; round++ {
		changed = false
		for _, r := range results {
			binding := args[r.Function()]
			for _, callee := range r.CalledFunctions() {
				calleeArgs, analyzed := args[callee]
				if !analyzed {
					continue
				}
				info, _ := r.FunctionCallDepInfo(callee)
				for formal, d := range info.MergedArgumentDependencies() {
					if join(calleeArgs, formal, concrete(d, binding)) {
						changed = true
					}
				}
			}
			for g, d := range r.GlobalStores() {
				globalDep(g)
				if fixedGlobals[g] {
					continue
				}
				c := concrete(d, binding)
				if merged := Merge(globals[g], c); !merged.Equal(globals[g]) {
					globals[g] = merged
					changed = true
				}
			}
		}
		pa.state.Logger.Tracef("finalization round %d, changed: %v\n", round, changed)
	}

	// globals that are only read
	for _, r := range results {
		for g := range r.pendingGlobals() {
			globalDep(g)
		}
	}
	for _, r := range results {
		r.FinalizeArguments(args[r.Function()])
		r.FinalizeGlobals(globals)
	}
}

// isEntryPoint returns true if some caller of f is not analyzed, or f has no caller
func (pa *programAnalysis) isEntryPoint(f *ssa.Function) bool {
	if pa.state.CallGraph == nil {
		return true
	}
	node, ok := pa.state.CallGraph.Nodes[f]
	if !ok || len(node.In) == 0 {
		return true
	}
	for _, e := range node.In {
		if e.Caller == nil || e.Caller.Func == nil || !pa.state.Functions[e.Caller.Func] {
			return true
		}
	}
	return false
}

func (pa *programAnalysis) isConfiguredInputGlobal(g *ssa.Global) bool {
	if g.Pkg == nil {
		return false
	}
	return pa.state.Config.IsInputGlobal(config.CodeIdentifier{Package: g.Pkg.Pkg.Path(), Global: g.Name()})
}
