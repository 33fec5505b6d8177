// Package ic generates the bundled initial conditions: shock tube,
// uniform lattice cube, uniform random sphere, binary star pair and the
// Boss-Bodenheimer rotating core.
package ic

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// Generate dispatches by name. Fluid-only generators return an empty
// star slice and vice versa.
func Generate(name string, n int, box core.Box, ndim int, seed int64) ([]core.Particle, []core.Star, error) {
	switch name {
	case "shocktube":
		return ShockTube(n, box), nil, nil
	case "uniform_cube":
		return UniformCube(n, box), nil, nil
	case "uniform_sphere":
		return UniformSphere(n, 1.0, seed), nil, nil
	case "binary":
		return nil, Binary(1.0, 1.0), nil
	case "boss_bodenheimer":
		return BossBodenheimer(n, seed), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown initial condition: %s", name)
}

// ShockTube lays out a 1-D tube with a 4:1 spacing contrast about the
// midpoint: equal-mass particles, denser packing on the left.
func ShockTube(n int, box core.Box) []core.Particle {
	length := box.Max[0] - box.Min[0]
	mid := box.Min[0] + 0.5*length

	// Density 1 left, 0.25 right, equal particle masses.
	nLeft := n * 4 / 5
	nRight := n - nLeft
	totalMass := 0.5*length*1.0 + 0.5*length*0.25
	m := totalMass / float64(n)

	parts := make([]core.Particle, 0, n)
	dxL := 0.5 * length / float64(nLeft)
	for i := 0; i < nLeft; i++ {
		parts = append(parts, core.Particle{
			R: core.Vec{box.Min[0] + (float64(i)+0.5)*dxL},
			M: m, H: 2.0 * dxL, U: 1.0, Sink: -1,
		})
	}
	dxR := 0.5 * length / float64(nRight)
	for i := 0; i < nRight; i++ {
		parts = append(parts, core.Particle{
			R: core.Vec{mid + (float64(i)+0.5)*dxR},
			M: m, H: 2.0 * dxR, U: 1.0, Sink: -1,
		})
	}
	return parts
}

// UniformCube places round(n^(1/3))^3 particles on a lattice filling the
// box with unit total mass.
func UniformCube(n int, box core.Box) []core.Particle {
	side := int(math.Round(math.Cbrt(float64(n))))
	if side < 1 {
		side = 1
	}
	total := side * side * side
	m := 1.0 / float64(total)
	parts := make([]core.Particle, 0, total)
	var d core.Vec
	for k := 0; k < 3; k++ {
		d[k] = (box.Max[k] - box.Min[k]) / float64(side)
	}
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			for z := 0; z < side; z++ {
				parts = append(parts, core.Particle{
					R: core.Vec{
						box.Min[0] + (float64(x)+0.5)*d[0],
						box.Min[1] + (float64(y)+0.5)*d[1],
						box.Min[2] + (float64(z)+0.5)*d[2],
					},
					M: m, H: 1.2 * d[0], U: 1.0, Sink: -1,
				})
			}
		}
	}
	return parts
}

// UniformSphere draws n positions uniformly inside a sphere of the given
// radius, unit total mass.
func UniformSphere(n int, radius float64, seed int64) []core.Particle {
	rnd := rand.New(rand.NewSource(seed))
	m := 1.0 / float64(n)
	hGuess := 1.2 * radius * math.Cbrt(4.0*math.Pi/(3.0*float64(n)))
	parts := make([]core.Particle, 0, n)
	for len(parts) < n {
		r := core.Vec{
			(2.0*rnd.Float64() - 1.0) * radius,
			(2.0*rnd.Float64() - 1.0) * radius,
			(2.0*rnd.Float64() - 1.0) * radius,
		}
		if r.Dot(r, 3) > radius*radius {
			continue
		}
		parts = append(parts, core.Particle{R: r, M: m, H: hGuess, U: 0.05, Sink: -1})
	}
	return parts
}

// Binary returns two equal point masses on a circular orbit of the given
// separation about their barycentre (G = 1).
func Binary(mass, sep float64) []core.Star {
	v := 0.5 * math.Sqrt(mass/sep)
	return []core.Star{
		{R: core.Vec{-0.5 * sep, 0, 0}, V: core.Vec{0, -v, 0}, M: 0.5 * mass, H: 1e-4 * sep, Binary: -1},
		{R: core.Vec{0.5 * sep, 0, 0}, V: core.Vec{0, v, 0}, M: 0.5 * mass, H: 1e-4 * sep, Binary: -1},
	}
}

// BossBodenheimer samples a unit-mass, unit-radius core in solid-body
// rotation with the m=2 azimuthal density perturbation
// rho(phi) = rho0 (1 + 0.5 cos 2 phi) that seeds the binary fragmentation.
func BossBodenheimer(n int, seed int64) []core.Particle {
	rnd := rand.New(rand.NewSource(seed))
	const (
		amp    = 0.5
		omega  = 1.6 // solid-body angular speed
		radius = 1.0
	)
	m := 1.0 / float64(n)
	hGuess := 1.2 * radius * math.Cbrt(4.0*math.Pi/(3.0*float64(n)))
	parts := make([]core.Particle, 0, n)
	for len(parts) < n {
		r := core.Vec{
			(2.0*rnd.Float64() - 1.0) * radius,
			(2.0*rnd.Float64() - 1.0) * radius,
			(2.0*rnd.Float64() - 1.0) * radius,
		}
		if r.Dot(r, 3) > radius*radius {
			continue
		}
		phi := math.Atan2(r[1], r[0])
		// Rejection sample the azimuthal perturbation.
		if rnd.Float64()*(1.0+amp) > 1.0+amp*math.Cos(2.0*phi) {
			continue
		}
		parts = append(parts, core.Particle{
			R: r,
			V: core.Vec{-omega * r[1], omega * r[0], 0},
			M: m, H: hGuess, U: 0.01, Sink: -1,
		})
	}
	return parts
}
