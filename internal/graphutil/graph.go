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

// Package graphutil contains directed graphs over arbitrary nodes that can be handed to the graph libraries.
package graphutil

import (
	yb "github.com/yourbasic/graph"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
)

// Graph is a directed graph whose nodes are labelled by values of T. Nodes are numbered densely in the order they
// were given to New: the number of a node is its id for github.com/yourbasic/graph and Gonum.
type Graph[T comparable] struct {
	nodes []T
	index map[T]int
	succs [][]int
	preds [][]int
}

var (
	_ yb.Iterator    = (*Graph[int])(nil)
	_ graph.Directed = (*Graph[int])(nil)
)

// New returns the graph over nodes with an edge from x to every y in successors(x). Successors that are not in nodes
// are ignored, as are duplicate nodes and edges.
func New[T comparable](nodes []T, successors func(T) []T) *Graph[T] {
	g := &Graph[T]{index: make(map[T]int, len(nodes))}
	for _, x := range nodes {
		if _, ok := g.index[x]; ok {
			continue
		}
		g.index[x] = len(g.nodes)
		g.nodes = append(g.nodes, x)
	}
	g.succs = make([][]int, len(g.nodes))
	g.preds = make([][]int, len(g.nodes))
	for v, x := range g.nodes {
		for _, y := range successors(x) {
			w, ok := g.index[y]
			if !ok || containsInt(g.succs[v], w) {
				continue
			}
			g.succs[v] = append(g.succs[v], w)
			g.preds[w] = append(g.preds[w], v)
		}
	}
	return g
}

func containsInt(s []int, x int) bool {
	for _, y := range s {
		if y == x {
			return true
		}
	}
	return false
}

// Label returns the node numbered v
func (g *Graph[T]) Label(v int) T { return g.nodes[v] }

// Number returns the number of x and true if x is a node of g
func (g *Graph[T]) Number(x T) (int, bool) {
	v, ok := g.index[x]
	return v, ok
}

// Successors returns the successors of x in g
func (g *Graph[T]) Successors(x T) []T {
	v, ok := g.index[x]
	if !ok {
		return nil
	}
	res := make([]T, len(g.succs[v]))
	for i, w := range g.succs[v] {
		res[i] = g.nodes[w]
	}
	return res
}

// HasSelfLoop returns true if there is an edge from x to itself
func (g *Graph[T]) HasSelfLoop(x T) bool {
	v, ok := g.index[x]
	return ok && containsInt(g.succs[v], v)
}

// *************** github.com/yourbasic/graph **********************

// Order implements yb.Iterator
func (g *Graph[T]) Order() int { return len(g.nodes) }

// Visit implements yb.Iterator. Every edge has cost 1.
func (g *Graph[T]) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if v < 0 || v >= len(g.nodes) {
		return false
	}
	for _, w := range g.succs[v] {
		if do(w, 1) {
			return true
		}
	}
	return false
}

// Stats summarizes the shape of a graph
type Stats struct {
	Nodes    int
	Edges    int
	Loops    int
	Isolated int
	Acyclic  bool
}

// Stats returns the statistics of g
func (g *Graph[T]) Stats() Stats {
	s := yb.Check(g)
	return Stats{
		Nodes:    g.Order(),
		Edges:    s.Size,
		Loops:    s.Loops,
		Isolated: s.Isolated,
		Acyclic:  yb.Acyclic(g),
	}
}

// *************** gonum.org/v1/gonum/graph **********************

func (g *Graph[T]) nodeSet(vs []int) graph.Nodes {
	if len(vs) == 0 {
		return graph.Empty
	}
	nodes := make([]graph.Node, len(vs))
	for i, v := range vs {
		nodes[i] = simple.Node(v)
	}
	return iterator.NewOrderedNodes(nodes)
}

func (g *Graph[T]) valid(id int64) bool { return id >= 0 && id < int64(len(g.nodes)) }

// Node implements graph.Graph
func (g *Graph[T]) Node(id int64) graph.Node {
	if !g.valid(id) {
		return nil
	}
	return simple.Node(id)
}

// Nodes implements graph.Graph
func (g *Graph[T]) Nodes() graph.Nodes {
	all := make([]int, len(g.nodes))
	for v := range all {
		all[v] = v
	}
	return g.nodeSet(all)
}

// From implements graph.Graph
func (g *Graph[T]) From(id int64) graph.Nodes {
	if !g.valid(id) {
		return graph.Empty
	}
	return g.nodeSet(g.succs[id])
}

// To implements graph.Directed
func (g *Graph[T]) To(id int64) graph.Nodes {
	if !g.valid(id) {
		return graph.Empty
	}
	return g.nodeSet(g.preds[id])
}

// HasEdgeFromTo implements graph.Directed
func (g *Graph[T]) HasEdgeFromTo(uid, vid int64) bool {
	return g.valid(uid) && g.valid(vid) && containsInt(g.succs[uid], int(vid))
}

// HasEdgeBetween implements graph.Graph
func (g *Graph[T]) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// Edge implements graph.Graph
func (g *Graph[T]) Edge(uid, vid int64) graph.Edge {
	if !g.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}
