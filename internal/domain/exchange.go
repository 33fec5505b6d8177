package domain

import (
	"fmt"
	"math"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// peerBoxes is one worker's footprint for the overlap test: the tight
// particle box, the neighbour-reach r-box and the largest local h.
type peerBoxes struct {
	PBox core.Box
	RBox core.Box
	HMax float64
}

func (w *Worker) boxes(parts []core.Particle, n int) peerBoxes {
	var pb peerBoxes
	for k := 0; k < w.NDim; k++ {
		pb.PBox.Min[k] = math.Inf(1)
		pb.PBox.Max[k] = math.Inf(-1)
	}
	for i := 0; i < n; i++ {
		for k := 0; k < w.NDim; k++ {
			if parts[i].R[k] < pb.PBox.Min[k] {
				pb.PBox.Min[k] = parts[i].R[k]
			}
			if parts[i].R[k] > pb.PBox.Max[k] {
				pb.PBox.Max[k] = parts[i].R[k]
			}
		}
		if parts[i].H > pb.HMax {
			pb.HMax = parts[i].H
		}
	}
	pb.RBox = pb.PBox.Grow(w.KernRange*pb.HMax, w.NDim)
	return pb
}

// distToBox is the closest approach from r to box b.
func distToBox(r core.Vec, b *core.Box, ndim int) float64 {
	d2 := 0.0
	for k := 0; k < ndim; k++ {
		if r[k] < b.Min[k] {
			d := b.Min[k] - r[k]
			d2 += d * d
		} else if r[k] > b.Max[k] {
			d := r[k] - b.Max[k]
			d2 += d * d
		}
	}
	return math.Sqrt(d2)
}

// ExchangeGhosts exports owned particles whose kernels reach a peer's box
// and imports the peers' exports as remote ghosts appended after index
// nLocal (reals plus boundary ghosts). One collective carries the counts,
// a second the payloads; the export sets are kept for the update pass.
func (w *Worker) ExchangeGhosts(parts []core.Particle, nLocal int) ([]core.Particle, int, error) {
	size := w.Comm.Size()
	if size == 1 {
		return parts, nLocal, nil
	}
	rank := w.Comm.Rank()

	mine := w.boxes(parts, nLocal)
	gathered := w.Comm.AllGather(mine)
	peers := make([]peerBoxes, size)
	for r, g := range gathered {
		peers[r] = g.(peerBoxes)
	}

	w.exports = make([][]int, size)
	for q := 0; q < size; q++ {
		if q == rank || !mine.RBox.Overlaps(&peers[q].RBox, w.NDim) {
			continue
		}
		for i := 0; i < nLocal; i++ {
			reach := w.KernRange * math.Max(parts[i].H, peers[q].HMax)
			if distToBox(parts[i].R, &peers[q].PBox, w.NDim) <= reach {
				w.exports[q] = append(w.exports[q], i)
			}
		}
	}

	// Counts first, then the variable-size payloads.
	counts := make([]any, size)
	for q := 0; q < size; q++ {
		counts[q] = len(w.exports[q])
	}
	inCounts := w.Comm.Alltoall(counts)

	payloads := make([]any, size)
	for q := 0; q < size; q++ {
		batch := make([]core.Particle, len(w.exports[q]))
		for bi, i := range w.exports[q] {
			g := parts[i]
			g.Tag.Remote = true
			g.Origin = i
			g.Active = false
			batch[bi] = g
		}
		payloads[q] = batch
	}
	inPayloads := w.Comm.Alltoall(payloads)

	w.nImports = make([]int, size)
	nTotal := nLocal
	parts = parts[:nLocal]
	for q := 0; q < size; q++ {
		if q == rank {
			continue
		}
		batch := inPayloads[q].([]core.Particle)
		if len(batch) != inCounts[q].(int) {
			return parts, nTotal, fmt.Errorf("%w: peer %d announced %d ghosts, sent %d", core.ErrCountMismatch, q, inCounts[q].(int), len(batch))
		}
		parts = append(parts, batch...)
		w.nImports[q] = len(batch)
		nTotal += len(batch)
	}
	return parts, nTotal, nil
}

// UpdateGhosts refreshes previously exchanged ghosts: the stored export
// sets are resent in order and overwrite the same import slots, so no
// overlap test is re-derived. base is the index of the first remote ghost.
func (w *Worker) UpdateGhosts(parts []core.Particle, base int) error {
	size := w.Comm.Size()
	if size == 1 {
		return nil
	}
	rank := w.Comm.Rank()

	payloads := make([]any, size)
	for q := 0; q < size; q++ {
		batch := make([]core.Particle, len(w.exports[q]))
		for bi, i := range w.exports[q] {
			g := parts[i]
			g.Tag.Remote = true
			g.Origin = i
			g.Active = false
			batch[bi] = g
		}
		payloads[q] = batch
	}
	inPayloads := w.Comm.Alltoall(payloads)

	at := base
	for q := 0; q < size; q++ {
		if q == rank {
			continue
		}
		batch := inPayloads[q].([]core.Particle)
		if len(batch) != w.nImports[q] {
			return fmt.Errorf("%w: peer %d refresh size %d, expected %d", core.ErrCountMismatch, q, len(batch), w.nImports[q])
		}
		copy(parts[at:at+len(batch)], batch)
		at += len(batch)
	}
	return nil
}
