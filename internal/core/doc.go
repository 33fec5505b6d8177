// Package core provides the shared value types of the engine: vectors,
// simulation boxes, fluid and star particles, ghost tags, and the error
// values every other package reports through.
//
// All geometry is stored in fixed [3]float64 arrays regardless of the
// configured dimensionality; loops run over the first ndim components.
package core
