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

package lang

import "golang.org/x/tools/go/ssa"

// HasPathTo returns true if there is a control-flow path from b1 to b2. Use mem to amortize cost. If mem is nil,
// then the algorithm runs without memoization, and no map is allocated.
func HasPathTo(b1 *ssa.BasicBlock, b2 *ssa.BasicBlock, mem map[*ssa.BasicBlock]map[*ssa.BasicBlock]bool) bool {
	if mem != nil {
		if _, ok := mem[b1]; !ok {
			mem[b1] = map[*ssa.BasicBlock]bool{}
		}
		if val, ok := mem[b1][b2]; ok {
			return val
		}
	}
	vis := map[*ssa.BasicBlock]bool{}
	que := []*ssa.BasicBlock{b1}
	for len(que) > 0 {
		cur := que[0]
		if cur == b2 {
			if mem != nil {
				mem[b1][b2] = true
			}
			return true
		}
		if mem != nil && mem[cur] != nil && mem[cur][b2] {
			mem[b1][b2] = true
			return true
		}
		vis[cur] = true
		que = que[1:]
		for _, nb := range cur.Succs {
			if !vis[nb] {
				que = append(que, nb)
			}
		}
	}
	if mem != nil {
		mem[b1][b2] = false
	}
	return false
}

// ReversePostorder returns the blocks of fn that are reachable from its entry block, or from its recover block, in
// reverse postorder. Every block appears after all its predecessors, except for the predecessors through back edges.
func ReversePostorder(fn *ssa.Function) []*ssa.BasicBlock {
	if len(fn.Blocks) == 0 {
		return nil
	}
	visited := make(map[*ssa.BasicBlock]bool, len(fn.Blocks))
	order := make([]*ssa.BasicBlock, 0, len(fn.Blocks))
	var dfs func(b *ssa.BasicBlock)
	dfs = func(b *ssa.BasicBlock) {
		visited[b] = true
		for _, s := range b.Succs {
			if !visited[s] {
				dfs(s)
			}
		}
		order = append(order, b)
	}
	dfs(fn.Blocks[0])
	if fn.Recover != nil && !visited[fn.Recover] {
		// the recover block is entered only through a panic
		dfs(fn.Recover)
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// PostDominators computes the immediate post-dominator of every block using the Cooper-Harvey-Kennedy algorithm on
// the reversed control-flow graph, with a virtual exit node succeeding every block without successors.
//
// ipdom[i] is the index of the immediate post-dominator of fn.Blocks[i], or -1 if the block is immediately
// post-dominated by the virtual exit, or cannot reach any exit.
func PostDominators(fn *ssa.Function) []int {
	blocks := fn.Blocks
	n := len(blocks)
	exit := n
	total := n + 1

	// reversed edges: succ -> pred, and the virtual exit -> exit blocks
	revAdj := make([][]int, total)
	for i, b := range blocks {
		if len(b.Succs) == 0 {
			revAdj[exit] = append(revAdj[exit], i)
		}
		for _, s := range b.Succs {
			revAdj[s.Index] = append(revAdj[s.Index], i)
		}
	}
	// predecessors in the reversed graph are the successors in the CFG
	revPreds := make([][]int, total)
	for from, tos := range revAdj {
		for _, to := range tos {
			revPreds[to] = append(revPreds[to], from)
		}
	}

	rpo := intReversePostorder(revAdj, exit, total)
	rpoPos := make([]int, total)
	for i := range rpoPos {
		rpoPos[i] = -1
	}
	for i, node := range rpo {
		rpoPos[node] = i
	}

	idom := make([]int, total)
	for i := range idom {
		idom[i] = -1
	}
	idom[exit] = exit

	for changed := true; changed; {
		changed = false
		for _, b := range rpo {
			if b == exit {
				continue
			}
			newIdom := -1
			for _, p := range revPreds[b] {
				if idom[p] != -1 {
					newIdom = p
					break
				}
			}
			if newIdom == -1 {
				continue
			}
			for _, p := range revPreds[b] {
				if p == newIdom || idom[p] == -1 {
					continue
				}
				newIdom = intersect(idom, rpoPos, p, newIdom)
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	ipdom := make([]int, n)
	for i := 0; i < n; i++ {
		if d := idom[i]; d >= 0 && d < n {
			ipdom[i] = d
		} else {
			ipdom[i] = -1
		}
	}
	return ipdom
}

// intersect returns the nearest common ancestor of a and b in the dominator tree idom
func intersect(idom, rpoPos []int, a, b int) int {
	for a != b {
		for rpoPos[a] > rpoPos[b] {
			a = idom[a]
		}
		for rpoPos[b] > rpoPos[a] {
			b = idom[b]
		}
	}
	return a
}

func intReversePostorder(adj [][]int, root, n int) []int {
	visited := make([]bool, n)
	order := make([]int, 0, n)
	var dfs func(int)
	dfs = func(node int) {
		visited[node] = true
		for _, next := range adj[node] {
			if !visited[next] {
				dfs(next)
			}
		}
		order = append(order, node)
	}
	dfs(root)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// ControlDependences returns, for every block of fn (by index), the branching blocks it is control dependent on.
// A block Y is control dependent on a block X with several successors when some successor of X is post-dominated
// by Y (or is Y) and Y does not strictly post-dominate X.
func ControlDependences(fn *ssa.Function) [][]*ssa.BasicBlock {
	deps := make([][]*ssa.BasicBlock, len(fn.Blocks))
	if len(fn.Blocks) < 2 {
		return deps
	}
	ipdom := PostDominators(fn)
	for u, block := range fn.Blocks {
		if len(block.Succs) < 2 {
			continue
		}
		stop := ipdom[u]
		for _, succ := range block.Succs {
			seen := map[int]bool{}
			for w := succ.Index; w != -1 && w != stop && !seen[w]; w = ipdom[w] {
				seen[w] = true
				if !containsBlock(deps[w], block) {
					deps[w] = append(deps[w], block)
				}
			}
		}
	}
	return deps
}

func containsBlock(blocks []*ssa.BasicBlock, b *ssa.BasicBlock) bool {
	for _, x := range blocks {
		if x == b {
			return true
		}
	}
	return false
}
