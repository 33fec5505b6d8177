// Package snap reads and writes particle snapshots behind a format tag:
// "csv" for the tabular interchange format, "gob" for the compact binary
// one. The engine itself never touches file formats.
package snap

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

// Snapshot is the particle state at one instant.
type Snapshot struct {
	Time  float64
	NDim  int
	Parts []core.Particle
	Stars []core.Star
}

// record is one CSV row: kinematics plus the thermodynamic state.
type record struct {
	X   float64 `csv:"x"`
	Y   float64 `csv:"y"`
	Z   float64 `csv:"z"`
	VX  float64 `csv:"vx"`
	VY  float64 `csv:"vy"`
	VZ  float64 `csv:"vz"`
	M   float64 `csv:"m"`
	H   float64 `csv:"h"`
	U   float64 `csv:"u"`
	Rho float64 `csv:"rho"`
}

// Write stores s at path in the given format.
func Write(path, format string, s *Snapshot) error {
	switch format {
	case "csv":
		return writeCSV(path, s)
	case "gob":
		return writeGob(path, s)
	}
	return fmt.Errorf("unknown snapshot format: %s", format)
}

// Read loads a snapshot from path in the given format.
func Read(path, format string) (*Snapshot, error) {
	switch format {
	case "csv":
		return readCSV(path)
	case "gob":
		return readGob(path)
	}
	return nil, fmt.Errorf("unknown snapshot format: %s", format)
}

func writeCSV(path string, s *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	recs := make([]*record, len(s.Parts))
	for i := range s.Parts {
		p := &s.Parts[i]
		recs[i] = &record{
			X: p.R[0], Y: p.R[1], Z: p.R[2],
			VX: p.V[0], VY: p.V[1], VZ: p.V[2],
			M: p.M, H: p.H, U: p.U, Rho: p.Rho,
		}
	}
	return gocsv.MarshalFile(&recs, f)
}

func readCSV(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recs []*record
	if err := gocsv.UnmarshalFile(f, &recs); err != nil {
		return nil, err
	}
	s := &Snapshot{NDim: 3, Parts: make([]core.Particle, len(recs))}
	for i, r := range recs {
		s.Parts[i] = core.Particle{
			R: core.Vec{r.X, r.Y, r.Z},
			V: core.Vec{r.VX, r.VY, r.VZ},
			M: r.M, H: r.H, U: r.U, Rho: r.Rho,
			Sink: -1,
		}
	}
	return s, nil
}

func writeGob(path string, s *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(s)
}

func readGob(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
