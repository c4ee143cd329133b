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

package graphutil

import (
	"errors"

	"gonum.org/v1/gonum/graph/topo"
)

// Components returns the strongly connected components of g, successors first: a component appears before every
// component with an edge into it. For summary-based bottom-up analyses over a call graph, callees are then
// available before their callers. The order within a component is arbitrary.
//
// The traversal is Tarjan's algorithm with an explicit stack, so deep graphs do not exhaust the goroutine stack.
func (g *Graph[T]) Components() [][]T {
	n := len(g.nodes)
	index := make([]int, n) // 0 for unvisited nodes
	low := make([]int, n)
	onStack := make([]bool, n)
	var stack []int
	var sccs [][]T
	next := 1

	type frame struct{ v, edge int }
	push := func(v int) frame {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true
		return frame{v: v}
	}

	for root := 0; root < n; root++ {
		if index[root] != 0 {
			continue
		}
		frames := []frame{push(root)}
		for len(frames) > 0 {
			top := len(frames) - 1
			v := frames[top].v
			if e := frames[top].edge; e < len(g.succs[v]) {
				frames[top].edge++
				w := g.succs[v][e]
				if index[w] == 0 {
					frames = append(frames, push(w))
				} else if onStack[w] && index[w] < low[v] {
					low[v] = index[w]
				}
				continue
			}
			frames = frames[:top]
			if top > 0 {
				if p := frames[top-1].v; low[v] < low[p] {
					low[p] = low[v]
				}
			}
			if low[v] != index[v] {
				continue
			}
			var scc []T
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, g.nodes[w])
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}
	return sccs
}

// IsRecursive returns true if the component scc of g contains a cycle
func (g *Graph[T]) IsRecursive(scc []T) bool {
	return len(scc) > 1 || (len(scc) == 1 && g.HasSelfLoop(scc[0]))
}

// TopologicalOrder returns the nodes of g such that x appears before y when there is a path from x to y but none
// from y to x. The nodes of a strongly connected component are contiguous, ordered by number.
func (g *Graph[T]) TopologicalOrder() []T {
	sorted, err := topo.Sort(g)
	var cyclic topo.Unorderable
	if err != nil && !errors.As(err, &cyclic) {
		panic(err)
	}
	res := make([]T, 0, len(g.nodes))
	for _, n := range sorted {
		if n != nil {
			res = append(res, g.nodes[n.ID()])
			continue
		}
		// the cyclic components are listed in the order of their placeholders
		for _, m := range cyclic[0] {
			res = append(res, g.nodes[m.ID()])
		}
		cyclic = cyclic[1:]
	}
	return res
}

// StronglyConnectedComponents returns the strongly connected components of the graph over nodes with the edges
// given by successors, successors first.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) [][]T {
	return New(nodes, successors).Components()
}
