// Package domain partitions particles across workers with a binary tree,
// balances per-worker work by moving split planes toward work centroids,
// migrates strays over a round-robin tournament and exchanges overlap
// ghosts between peers.
package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// Node is one partition-tree node. Leaves map onto workers.
type Node struct {
	Box      core.Box
	Axis     int     // split axis, internal nodes only
	Plane    float64 // split coordinate along Axis
	Left     int     // child node indices, -1 on leaves
	Right    int
	Parent   int
	Level    int // depth, root = 0
	Worker   int // leaf-to-worker mapping, -1 on internal nodes
}

// Tree is the binary partition tree, replicated identically on all
// workers. Leaf count equals the worker count (a power of two).
type Tree struct {
	NDim   int
	Depth  int
	Nodes  []Node
	Leaves []int // node index per worker rank
}

// rootBox converts the simulation box into the partition root: open axes
// stretch to infinity, closed axes pin to the box faces.
func rootBox(sim core.Box, ndim int) core.Box {
	b := sim
	for k := 0; k < ndim; k++ {
		if sim.Bound[k][0] == core.BoundaryOpen {
			b.Min[k] = math.Inf(-1)
		}
		if sim.Bound[k][1] == core.BoundaryOpen {
			b.Max[k] = math.Inf(1)
		}
	}
	return b
}

// widestAxis picks the axis of largest particle spread.
func widestAxis(parts []core.Particle, ids []int, ndim int) int {
	axis := 0
	best := -1.0
	for k := 0; k < ndim; k++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range ids {
			if parts[i].R[k] < lo {
				lo = parts[i].R[k]
			}
			if parts[i].R[k] > hi {
				hi = parts[i].R[k]
			}
		}
		if hi-lo > best {
			best = hi - lo
			axis = k
		}
	}
	return axis
}

// NewTree builds an equal-count partition of parts into nWorkers leaves.
// nWorkers must be a power of two.
func NewTree(sim core.Box, ndim, nWorkers int, parts []core.Particle) (*Tree, error) {
	if nWorkers < 1 || nWorkers&(nWorkers-1) != 0 {
		return nil, fmt.Errorf("%w: worker count %d is not a power of two", core.ErrConfig, nWorkers)
	}
	depth := 0
	for 1<<depth < nWorkers {
		depth++
	}
	t := &Tree{NDim: ndim, Depth: depth, Leaves: make([]int, nWorkers)}

	ids := make([]int, len(parts))
	for i := range ids {
		ids[i] = i
	}

	nextWorker := 0
	var build func(box core.Box, ids []int, level, parent int) int
	build = func(box core.Box, ids []int, level, parent int) int {
		idx := len(t.Nodes)
		t.Nodes = append(t.Nodes, Node{Box: box, Left: -1, Right: -1, Parent: parent, Level: level, Worker: -1})
		if level == depth {
			t.Nodes[idx].Worker = nextWorker
			t.Leaves[nextWorker] = idx
			nextWorker++
			return idx
		}

		axis := widestAxis(parts, ids, ndim)
		sorted := append([]int(nil), ids...)
		sort.Slice(sorted, func(a, b int) bool {
			return parts[sorted[a]].R[axis] < parts[sorted[b]].R[axis]
		})
		var plane float64
		mid := len(sorted) / 2
		switch {
		case len(sorted) == 0:
			plane = planeFallback(box, axis)
		case mid == 0 || mid == len(sorted):
			plane = parts[sorted[0]].R[axis]
		default:
			plane = 0.5 * (parts[sorted[mid-1]].R[axis] + parts[sorted[mid]].R[axis])
		}

		t.Nodes[idx].Axis = axis
		t.Nodes[idx].Plane = plane

		lBox, rBox := box, box
		lBox.Max[axis] = plane
		rBox.Min[axis] = plane
		l := build(lBox, sorted[:mid], level+1, idx)
		r := build(rBox, sorted[mid:], level+1, idx)
		t.Nodes[idx].Left = l
		t.Nodes[idx].Right = r
		return idx
	}
	build(rootBox(sim, ndim), ids, 0, -1)
	return t, nil
}

// planeFallback bisects a possibly unbounded box extent.
func planeFallback(box core.Box, axis int) float64 {
	lo, hi := box.Min[axis], box.Max[axis]
	if math.IsInf(lo, -1) {
		lo = -1
	}
	if math.IsInf(hi, 1) {
		hi = 1
	}
	return 0.5 * (lo + hi)
}

// LeafFor returns the worker owning position r.
func (t *Tree) LeafFor(r core.Vec) int {
	n := 0
	for t.Nodes[n].Left >= 0 {
		if r[t.Nodes[n].Axis] < t.Nodes[n].Plane {
			n = t.Nodes[n].Left
		} else {
			n = t.Nodes[n].Right
		}
	}
	return t.Nodes[n].Worker
}

// LeafBox returns the partition box of one worker.
func (t *Tree) LeafBox(worker int) core.Box {
	return t.Nodes[t.Leaves[worker]].Box
}

// propagateBoxes rebuilds every descendant box from the current planes.
func (t *Tree) propagateBoxes(n int) {
	node := &t.Nodes[n]
	if node.Left < 0 {
		return
	}
	lBox, rBox := node.Box, node.Box
	lBox.Max[node.Axis] = node.Plane
	rBox.Min[node.Axis] = node.Plane
	t.Nodes[node.Left].Box = lBox
	t.Nodes[node.Right].Box = rBox
	t.propagateBoxes(node.Left)
	t.propagateBoxes(node.Right)
}

// leavesUnder collects worker ranks in the subtree rooted at n.
func (t *Tree) leavesUnder(n int) []int {
	node := &t.Nodes[n]
	if node.Left < 0 {
		return []int{node.Worker}
	}
	return append(t.leavesUnder(node.Left), t.leavesUnder(node.Right)...)
}

// nodesAtLevel lists internal node indices at one depth.
func (t *Tree) nodesAtLevel(level int) []int {
	var out []int
	for i := range t.Nodes {
		if t.Nodes[i].Level == level && t.Nodes[i].Left >= 0 {
			out = append(out, i)
		}
	}
	return out
}
