package core

import "math"

// Vec is a position, velocity or acceleration in up to three dimensions.
// Components beyond the simulation dimensionality stay zero.
type Vec [3]float64

// Add returns v + w.
func (v Vec) Add(w Vec) Vec {
	return Vec{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w.
func (v Vec) Sub(w Vec) Vec {
	return Vec{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Scale returns f*v.
func (v Vec) Scale(f float64) Vec {
	return Vec{f * v[0], f * v[1], f * v[2]}
}

// Dot returns the inner product over the first ndim components.
func (v Vec) Dot(w Vec, ndim int) float64 {
	s := 0.0
	for k := 0; k < ndim; k++ {
		s += v[k] * w[k]
	}
	return s
}

// Norm returns the Euclidean length over the first ndim components.
func (v Vec) Norm(ndim int) float64 {
	return math.Sqrt(v.Dot(v, ndim))
}

// Dist2 returns the squared distance between a and b.
func Dist2(a, b Vec, ndim int) float64 {
	s := 0.0
	for k := 0; k < ndim; k++ {
		d := a[k] - b[k]
		s += d * d
	}
	return s
}

// BoundaryKind tags one face of the simulation box.
type BoundaryKind uint8

const (
	BoundaryOpen BoundaryKind = iota
	BoundaryPeriodic
	BoundaryMirror
)

func (b BoundaryKind) String() string {
	switch b {
	case BoundaryOpen:
		return "open"
	case BoundaryPeriodic:
		return "periodic"
	case BoundaryMirror:
		return "mirror"
	}
	return "unknown"
}

// ParseBoundary maps a config tag to a BoundaryKind.
func ParseBoundary(s string) (BoundaryKind, bool) {
	switch s {
	case "open", "":
		return BoundaryOpen, true
	case "periodic":
		return BoundaryPeriodic, true
	case "mirror":
		return BoundaryMirror, true
	}
	return BoundaryOpen, false
}

// Box is an axis-aligned simulation or domain box. Open axes of the root
// simulation box use -Inf/+Inf sentinels on domain boxes but keep finite
// values on the root box itself.
type Box struct {
	Min Vec
	Max Vec
	// Bound holds the boundary kind of the lower (index 0) and upper
	// (index 1) face on each axis.
	Bound [3][2]BoundaryKind
}

// Size returns the box extent along axis k.
func (b *Box) Size(k int) float64 { return b.Max[k] - b.Min[k] }

// SizeVec returns the extent on all axes.
func (b *Box) SizeVec() Vec {
	return Vec{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Contains reports whether r lies inside the box (lower bound inclusive).
func (b *Box) Contains(r Vec, ndim int) bool {
	for k := 0; k < ndim; k++ {
		if r[k] < b.Min[k] || r[k] >= b.Max[k] {
			return false
		}
	}
	return true
}

// Overlaps reports whether two boxes intersect.
func (b *Box) Overlaps(o *Box, ndim int) bool {
	for k := 0; k < ndim; k++ {
		if b.Max[k] < o.Min[k] || o.Max[k] < b.Min[k] {
			return false
		}
	}
	return true
}

// Grow expands the box by pad on both faces of each of the first ndim
// axes, whatever their boundary kind.
func (b *Box) Grow(pad float64, ndim int) Box {
	out := *b
	for k := 0; k < ndim; k++ {
		out.Min[k] -= pad
		out.Max[k] += pad
	}
	return out
}

// Closed reports whether any face of axis k is periodic or mirror.
func (b *Box) Closed(k int) bool {
	return b.Bound[k][0] != BoundaryOpen || b.Bound[k][1] != BoundaryOpen
}
