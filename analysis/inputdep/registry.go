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
	"github.com/awslabs/argot-inputdep/internal/funcutil"
	"golang.org/x/tools/go/ssa"
)

// Registry holds the published results of the analysis, keyed by function. Published results are frozen.
type Registry struct {
	results map[*ssa.Function]FunctionResult
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{results: map[*ssa.Function]FunctionResult{}}
}

// Publish freezes r and registers it for its function, replacing any previous result
func (reg *Registry) Publish(r FunctionResult) {
	r.Freeze()
	reg.results[r.Function()] = r
}

// Lookup returns the result of fn
func (reg *Registry) Lookup(fn *ssa.Function) (FunctionResult, bool) {
	r, ok := reg.results[fn]
	return r, ok
}

// Summary returns the summary of fn for its callers
func (reg *Registry) Summary(fn *ssa.Function) (CallSummary, bool) {
	r, ok := reg.results[fn]
	if !ok {
		return CallSummary{}, false
	}
	return summaryOf(r), true
}

// Functions returns the functions that have a result, sorted by name
func (reg *Registry) Functions() []*ssa.Function {
	return funcutil.KeysSortedBy(reg.results, (*ssa.Function).String)
}

// Len returns the number of results
func (reg *Registry) Len() int { return len(reg.results) }
