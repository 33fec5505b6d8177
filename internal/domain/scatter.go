package domain

import (
	"github.com/stefano-meschiari/gandalf/internal/comm"
	"github.com/stefano-meschiari/gandalf/internal/core"
)

// clone deep-copies the tree so every worker owns an independent replica.
func (t *Tree) clone() *Tree {
	nt := *t
	nt.Nodes = append([]Node(nil), t.Nodes...)
	nt.Leaves = append([]int(nil), t.Leaves...)
	return &nt
}

// InitialDecompose builds the partition tree on rank 0 from the full
// particle set (equal weights), broadcasts it, and scatters each worker
// its subset. Non-root ranks pass all == nil.
func InitialDecompose(c comm.Comm, sim core.Box, ndim int, all []core.Particle) (*Tree, []core.Particle, error) {
	size := c.Size()
	rank := c.Rank()

	var tree *Tree
	if rank == 0 {
		var err error
		tree, err = NewTree(sim, ndim, size, all)
		if err != nil {
			return nil, nil, err
		}
	}
	if size == 1 {
		return tree, all, nil
	}

	bc := c.Bcast(0, tree).(*Tree)
	tree = bc.clone()

	out := make([]any, size)
	if rank == 0 {
		batches := make([][]core.Particle, size)
		for i := range all {
			dst := tree.LeafFor(all[i].R)
			batches[dst] = append(batches[dst], all[i])
		}
		for q := 0; q < size; q++ {
			out[q] = batches[q]
		}
	} else {
		for q := 0; q < size; q++ {
			out[q] = []core.Particle(nil)
		}
	}
	in := c.Alltoall(out)
	mine := in[0].([]core.Particle)
	if rank != 0 {
		mine = append([]core.Particle(nil), mine...)
	}
	return tree, mine, nil
}
