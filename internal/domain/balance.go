package domain

import (
	"fmt"
	"math"

	"github.com/stefano-meschiari/gandalf/internal/comm"
	"github.com/stefano-meschiari/gandalf/internal/core"
)

// leafStats is one worker's contribution to the balance collective.
type leafStats struct {
	Work     float64  // sum over particles of 1/nstep
	Centroid core.Vec // work-weighted position sum (not yet normalised)
	Count    int
}

// Worker is the per-rank domain state: the replicated tree plus this
// worker's export bookkeeping for the ghost exchange.
type Worker struct {
	Comm      comm.Comm
	Tree      *Tree
	NDim      int
	KernRange float64
	MaxPart   int // particle storage budget, 0 = unlimited

	balanceLevel int // cyclic level cursor, visits depth-1 .. 0

	exports  [][]int // per peer: indices exported as remote ghosts
	nImports []int   // per peer: ghosts received
}

// localStats measures this worker's particles. Work counts 1/nstep so
// finely stepped particles weigh more.
func localStats(parts []core.Particle, n, ndim int) leafStats {
	var st leafStats
	for i := 0; i < n; i++ {
		w := 1.0
		if parts[i].NStep > 0 {
			w = 1.0 / float64(parts[i].NStep)
		}
		st.Work += w
		for k := 0; k < ndim; k++ {
			st.Centroid[k] += w * parts[i].R[k]
		}
		st.Count++
	}
	return st
}

// subtreeStats aggregates leaf stats under node n.
func (w *Worker) subtreeStats(n int, stats []leafStats) leafStats {
	var agg leafStats
	for _, rank := range w.Tree.leavesUnder(n) {
		agg.Work += stats[rank].Work
		agg.Count += stats[rank].Count
		for k := 0; k < w.NDim; k++ {
			agg.Centroid[k] += stats[rank].Centroid[k]
		}
	}
	return agg
}

// Rebalance runs one load-balance step: gather per-leaf work, move the
// split planes of the active level toward balance, broadcast the new
// boxes from rank 0, and migrate strays over the tournament schedule.
// Levels are visited cyclically from the bottom up.
func (w *Worker) Rebalance(parts []core.Particle, n int) ([]core.Particle, int, error) {
	if w.Comm.Size() == 1 {
		return parts, n, nil
	}

	local := localStats(parts, n, w.NDim)
	gathered := w.Comm.AllGather(local)
	stats := make([]leafStats, len(gathered))
	for r, g := range gathered {
		stats[r] = g.(leafStats)
	}

	// Active level cycles bottom-up, wrapping back to the root split.
	level := w.Tree.Depth - 1 - w.balanceLevel%w.Tree.Depth
	w.balanceLevel++

	// Every worker holds identical stats, so every worker derives the
	// identical new tree; the broadcast pins rank 0's copy regardless.
	for _, idx := range w.Tree.nodesAtLevel(level) {
		w.moveSplitPlane(idx, stats)
	}
	w.Tree.propagateBoxes(0)

	planes := make([]float64, len(w.Tree.Nodes))
	for i := range w.Tree.Nodes {
		planes[i] = w.Tree.Nodes[i].Plane
	}
	bc := w.Comm.Bcast(0, planes).([]float64)
	for i := range w.Tree.Nodes {
		w.Tree.Nodes[i].Plane = bc[i]
	}
	w.Tree.propagateBoxes(0)

	return w.migrate(parts, n)
}

// moveSplitPlane shifts the split of internal node idx by
// dx = dW / (dW/dx|left + dW/dx|right), the work-centroid estimate of
// the plane displacement that equalises the two subtrees.
func (w *Worker) moveSplitPlane(idx int, stats []leafStats) {
	node := &w.Tree.Nodes[idx]
	left := w.subtreeStats(node.Left, stats)
	right := w.subtreeStats(node.Right, stats)
	if left.Work <= 0 || right.Work <= 0 {
		return
	}
	k := node.Axis
	cLeft := left.Centroid[k] / left.Work
	cRight := right.Centroid[k] / right.Work

	dLeft := node.Plane - cLeft
	dRight := cRight - node.Plane
	if dLeft <= 0 || dRight <= 0 {
		return
	}
	// Work density gradient estimate on each side of the plane.
	gLeft := 0.5 * left.Work / dLeft
	gRight := 0.5 * right.Work / dRight

	dx := 0.5 * (left.Work - right.Work) / (gLeft + gRight)

	// Keep the plane strictly between the two centroids.
	newPlane := node.Plane - dx
	if newPlane < cLeft {
		newPlane = cLeft
	}
	if newPlane > cRight {
		newPlane = cRight
	}
	node.Plane = newPlane
}

// schedule returns the round-robin tournament as XOR masks: in round r
// every worker pairs with rank^mask[r], a perfect matching, so no two
// exchanges contend for the same peer. Rank 0 computes the schedule and
// broadcasts it, per the shared-resource policy.
func (w *Worker) schedule() []int {
	size := w.Comm.Size()
	var sched []int
	if w.Comm.Rank() == 0 {
		for r := 1; r < size; r++ {
			sched = append(sched, r)
		}
	}
	return w.Comm.Bcast(0, sched).([]int)
}

// migrate ships every particle that left this worker's box to its new
// owner, one tournament round per peer.
func (w *Worker) migrate(parts []core.Particle, n int) ([]core.Particle, int, error) {
	rank := w.Comm.Rank()
	size := w.Comm.Size()

	outgoing := make([][]core.Particle, size)
	kept := 0
	for i := 0; i < n; i++ {
		dst := w.Tree.LeafFor(parts[i].R)
		if dst == rank {
			parts[kept] = parts[i]
			kept++
			continue
		}
		outgoing[dst] = append(outgoing[dst], parts[i])
	}
	n = kept
	parts = parts[:n]

	for _, mask := range w.schedule() {
		peer := rank ^ mask
		if peer >= size {
			continue
		}
		// Symmetric exchange; the lower rank sends first.
		if rank < peer {
			w.Comm.Send(peer, outgoing[peer])
			in := w.Comm.Recv(peer).([]core.Particle)
			parts = append(parts, in...)
			n += len(in)
		} else {
			in := w.Comm.Recv(peer).([]core.Particle)
			w.Comm.Send(peer, outgoing[peer])
			parts = append(parts, in...)
			n += len(in)
		}
	}

	if w.MaxPart > 0 && n > w.MaxPart {
		return parts, n, fmt.Errorf("%w: %d particles exceed budget %d after migration", core.ErrParticleOverflow, n, w.MaxPart)
	}
	w.Comm.Barrier()
	return parts, n, nil
}

// GlobalMax reduces an integer across all workers; every rank sees the
// largest value. Keeps the sub-step schedule identical everywhere.
func (w *Worker) GlobalMax(v int) int {
	if w.Comm.Size() == 1 {
		return v
	}
	for _, g := range w.Comm.AllGather(v) {
		if g.(int) > v {
			v = g.(int)
		}
	}
	return v
}

// Imbalance returns (max-min)/mean of the per-worker work after a
// collective gather; every rank sees the same value.
func (w *Worker) Imbalance(parts []core.Particle, n int) float64 {
	local := localStats(parts, n, w.NDim)
	gathered := w.Comm.AllGather(local)
	lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, g := range gathered {
		wk := g.(leafStats).Work
		lo = math.Min(lo, wk)
		hi = math.Max(hi, wk)
		sum += wk
	}
	if sum == 0 {
		return 0
	}
	return (hi - lo) / (sum / float64(len(gathered)))
}
