package snap

import (
	"path/filepath"
	"testing"

	"github.com/stefano-meschiari/gandalf/internal/core"
)

func sample() *Snapshot {
	return &Snapshot{
		Time: 0.125,
		NDim: 3,
		Parts: []core.Particle{
			{R: core.Vec{0.1, 0.2, 0.3}, V: core.Vec{-1, 0, 1}, M: 0.5, H: 0.05, U: 1.5, Rho: 2.0, Sink: -1},
			{R: core.Vec{0.7, 0.8, 0.9}, M: 0.5, H: 0.06, U: 0.9, Rho: 1.1, Sink: -1},
		},
	}
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.csv")
	if err := Write(path, "csv", sample()); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path, "csv")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Parts) != 2 {
		t.Fatalf("got %d particles", len(got.Parts))
	}
	p := got.Parts[0]
	if p.R[1] != 0.2 || p.V[0] != -1 || p.M != 0.5 || p.U != 1.5 {
		t.Errorf("csv round trip mangled particle: %+v", p)
	}
	if p.Sink != -1 {
		t.Error("loaded particle must start outside any sink")
	}
}

func TestGobRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.gob")
	s := sample()
	s.Stars = []core.Star{{R: core.Vec{1, 2, 3}, M: 10, Binary: -1}}
	if err := Write(path, "gob", s); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path, "gob")
	if err != nil {
		t.Fatal(err)
	}
	if got.Time != 0.125 || len(got.Parts) != 2 || len(got.Stars) != 1 {
		t.Errorf("gob round trip lost data: t=%g parts=%d stars=%d", got.Time, len(got.Parts), len(got.Stars))
	}
	if got.Stars[0].M != 10 {
		t.Error("star state lost")
	}
}

func TestUnknownFormat(t *testing.T) {
	if err := Write("x", "hdf5", sample()); err == nil {
		t.Error("expected unknown format error on write")
	}
	if _, err := Read("x", "hdf5"); err == nil {
		t.Error("expected unknown format error on read")
	}
}
