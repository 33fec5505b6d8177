package kernel

import "math"

// Tabulated samples another kernel on a uniform s^2 grid once at
// construction and answers all queries by linear interpolation. The s^2
// spacing makes the hot-loop lookups sqrt-free.
type Tabulated struct {
	src      Kernel
	rng      float64
	rngSqd   float64
	norm     float64
	ds2      float64
	w0Tab    []float64
	w1Tab    []float64
	omegaTab []float64
	zetaTab  []float64
	gravTab  []float64
	potTab   []float64
}

const tabSize = 1000

// NewTabulated tabulates src on a uniform s^2 grid.
func NewTabulated(src Kernel) *Tabulated {
	t := &Tabulated{
		src:      src,
		rng:      src.Range(),
		rngSqd:   src.RangeSqd(),
		norm:     src.Norm(),
		ds2:      src.RangeSqd() / float64(tabSize-1),
		w0Tab:    make([]float64, tabSize),
		w1Tab:    make([]float64, tabSize),
		omegaTab: make([]float64, tabSize),
		zetaTab:  make([]float64, tabSize),
		gravTab:  make([]float64, tabSize),
		potTab:   make([]float64, tabSize),
	}
	for i := 0; i < tabSize; i++ {
		s2 := float64(i) * t.ds2
		s := math.Sqrt(s2)
		t.w0Tab[i] = src.W0(s)
		t.w1Tab[i] = src.W1(s)
		t.omegaTab[i] = src.WOmegaS2(s2)
		t.zetaTab[i] = src.WZetaS2(s2)
		t.gravTab[i] = src.WGrav(s)
		t.potTab[i] = src.WPot(s)
	}
	return t
}

func (t *Tabulated) Range() float64    { return t.rng }
func (t *Tabulated) RangeSqd() float64 { return t.rngSqd }
func (t *Tabulated) Norm() float64     { return t.norm }

func (t *Tabulated) lookupS2(tab []float64, s2 float64) float64 {
	if s2 >= t.rngSqd {
		return 0.0
	}
	x := s2 / t.ds2
	i := int(x)
	if i >= tabSize-1 {
		return tab[tabSize-1]
	}
	f := x - float64(i)
	return tab[i]*(1.0-f) + tab[i+1]*f
}

func (t *Tabulated) W0(s float64) float64         { return t.lookupS2(t.w0Tab, s*s) }
func (t *Tabulated) W0S2(s2 float64) float64      { return t.lookupS2(t.w0Tab, s2) }
func (t *Tabulated) W1(s float64) float64         { return t.lookupS2(t.w1Tab, s*s) }
func (t *Tabulated) WOmegaS2(s2 float64) float64  { return t.lookupS2(t.omegaTab, s2) }
func (t *Tabulated) WZetaS2(s2 float64) float64   { return t.lookupS2(t.zetaTab, s2) }

// WGrav and WPot stay exact beyond the support radius where the tabulated
// compact form would clip the point-mass tail.
func (t *Tabulated) WGrav(s float64) float64 {
	if s*s >= t.rngSqd {
		return 1.0 / (s * s)
	}
	return t.lookupS2(t.gravTab, s*s)
}

func (t *Tabulated) WPot(s float64) float64 {
	if s*s >= t.rngSqd {
		return 1.0 / s
	}
	return t.lookupS2(t.potTab, s*s)
}
