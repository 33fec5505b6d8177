package neighbor

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

func randomParticles(n, ndim int, seed int64) []core.Particle {
	rnd := rand.New(rand.NewSource(seed))
	parts := make([]core.Particle, n)
	for i := range parts {
		for k := 0; k < ndim; k++ {
			parts[i].R[k] = rnd.Float64()
		}
	}
	return parts
}

func sorted(ids []int) []int {
	out := append([]int(nil), ids...)
	sort.Ints(out)
	return out
}

func TestGridMatchesBruteForce(t *testing.T) {
	for _, ndim := range []int{1, 2, 3} {
		parts := randomParticles(500, ndim, 7)
		grid := NewGrid(ndim)
		grid.Build(parts, len(parts))
		bf := NewBruteForce(ndim)
		bf.Build(parts, len(parts))

		for trial := 0; trial < 20; trial++ {
			var r core.Vec
			for k := 0; k < ndim; k++ {
				r[k] = float64(trial) / 20.0
			}
			radius := 0.05 + 0.01*float64(trial)
			got := sorted(grid.Gather(r, radius, nil))
			want := sorted(bf.Gather(r, radius, nil))
			if len(got) != len(want) {
				t.Fatalf("ndim=%d trial=%d: grid %d candidates, brute force %d", ndim, trial, len(got), len(want))
			}
			for i := range got {
				if got[i] != want[i] {
					t.Fatalf("ndim=%d trial=%d: candidate mismatch at %d", ndim, trial, i)
				}
			}
		}
	}
}

func TestGatherAppends(t *testing.T) {
	parts := randomParticles(100, 3, 3)
	grid := NewGrid(3)
	grid.Build(parts, len(parts))

	dst := make([]int, 0, 64)
	dst = grid.Gather(core.Vec{0.5, 0.5, 0.5}, 0.2, dst)
	n1 := len(dst)
	dst = grid.Gather(core.Vec{0.1, 0.1, 0.1}, 0.2, dst)
	if len(dst) <= n1 {
		t.Error("second Gather should append to dst")
	}
}

func TestEmptyBuild(t *testing.T) {
	grid := NewGrid(3)
	grid.Build(nil, 0)
	if got := grid.Gather(core.Vec{}, 1.0, nil); len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
}
