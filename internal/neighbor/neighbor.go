// Package neighbor provides candidate interaction lists for SPH
// summations: a uniform cell grid rebuilt each step, and a brute-force
// source for tiny systems. Lists are candidates only; the kernel range
// cut in the SPH engine restores exactness.
package neighbor

import (
	"math"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// Source returns candidate neighbours around a point.
type Source interface {
	// Build indexes the first n entries of parts (real plus ghosts).
	Build(parts []core.Particle, n int)
	// Gather appends to dst the indices of all candidates within radius
	// of r and returns the extended slice.
	Gather(r core.Vec, radius float64, dst []int) []int
}

// BruteForce checks every particle. Exact, O(N) per query.
type BruteForce struct {
	ndim  int
	parts []core.Particle
	n     int
}

// NewBruteForce returns a brute-force source for ndim dimensions.
func NewBruteForce(ndim int) *BruteForce { return &BruteForce{ndim: ndim} }

func (b *BruteForce) Build(parts []core.Particle, n int) {
	b.parts = parts
	b.n = n
}

func (b *BruteForce) Gather(r core.Vec, radius float64, dst []int) []int {
	r2 := radius * radius
	for j := 0; j < b.n; j++ {
		if core.Dist2(r, b.parts[j].R, b.ndim) <= r2 {
			dst = append(dst, j)
		}
	}
	return dst
}

// Grid is a uniform cell grid over the particle bounding box. Cell size
// targets a few particles per cell; queries walk the cell blocks covering
// the search sphere.
type Grid struct {
	ndim     int
	parts    []core.Particle
	n        int
	min      core.Vec
	cell     float64
	dims     [3]int
	cells    [][]int
	maxCells int
}

// NewGrid returns a cell-grid source for ndim dimensions.
func NewGrid(ndim int) *Grid {
	return &Grid{ndim: ndim, maxCells: 1 << 20}
}

func (g *Grid) Build(parts []core.Particle, n int) {
	g.parts = parts
	g.n = n
	if n == 0 {
		return
	}

	min, max := parts[0].R, parts[0].R
	for i := 1; i < n; i++ {
		for k := 0; k < g.ndim; k++ {
			if parts[i].R[k] < min[k] {
				min[k] = parts[i].R[k]
			}
			if parts[i].R[k] > max[k] {
				max[k] = parts[i].R[k]
			}
		}
	}
	g.min = min

	// Aim for order-unity occupancy per cell.
	vol := 1.0
	for k := 0; k < g.ndim; k++ {
		vol *= math.Max(max[k]-min[k], 1e-12)
	}
	g.cell = math.Pow(vol/float64(n), 1.0/float64(g.ndim))
	if g.cell <= 0 || math.IsNaN(g.cell) {
		g.cell = 1.0
	}

	total := 1
	for k := 0; k < 3; k++ {
		g.dims[k] = 1
	}
	for k := 0; k < g.ndim; k++ {
		g.dims[k] = int((max[k]-min[k])/g.cell) + 1
		total *= g.dims[k]
	}
	// A degenerate aspect ratio can explode the cell count; coarsen.
	for total > g.maxCells {
		g.cell *= 2.0
		total = 1
		for k := 0; k < g.ndim; k++ {
			g.dims[k] = int((max[k]-min[k])/g.cell) + 1
			total *= g.dims[k]
		}
	}

	if cap(g.cells) < total {
		g.cells = make([][]int, total)
	} else {
		g.cells = g.cells[:total]
		for i := range g.cells {
			g.cells[i] = g.cells[i][:0]
		}
	}

	for i := 0; i < n; i++ {
		c := g.cellIndex(parts[i].R)
		g.cells[c] = append(g.cells[c], i)
	}
}

func (g *Grid) cellCoord(r core.Vec, k int) int {
	c := int((r[k] - g.min[k]) / g.cell)
	if c < 0 {
		c = 0
	}
	if c >= g.dims[k] {
		c = g.dims[k] - 1
	}
	return c
}

func (g *Grid) cellIndex(r core.Vec) int {
	idx := g.cellCoord(r, 0)
	if g.ndim > 1 {
		idx += g.dims[0] * g.cellCoord(r, 1)
	}
	if g.ndim > 2 {
		idx += g.dims[0] * g.dims[1] * g.cellCoord(r, 2)
	}
	return idx
}

func (g *Grid) Gather(r core.Vec, radius float64, dst []int) []int {
	if g.n == 0 {
		return dst
	}
	r2 := radius * radius
	reach := int(radius/g.cell) + 1

	var lo, hi [3]int
	for k := 0; k < 3; k++ {
		lo[k], hi[k] = 0, 0
	}
	for k := 0; k < g.ndim; k++ {
		c := g.cellCoord(r, k)
		lo[k] = c - reach
		if lo[k] < 0 {
			lo[k] = 0
		}
		hi[k] = c + reach
		if hi[k] >= g.dims[k] {
			hi[k] = g.dims[k] - 1
		}
	}

	for cz := lo[2]; cz <= hi[2]; cz++ {
		for cy := lo[1]; cy <= hi[1]; cy++ {
			base := g.dims[0] * (cy + g.dims[1]*cz)
			for cx := lo[0]; cx <= hi[0]; cx++ {
				for _, j := range g.cells[base+cx] {
					if core.Dist2(r, g.parts[j].R, g.ndim) <= r2 {
						dst = append(dst, j)
					}
				}
			}
		}
	}
	return dst
}
