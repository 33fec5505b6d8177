// Package storage persists runs: a metadata.json describing the
// configuration and outcome plus a series.csv of per-step diagnostics,
// one directory per run.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/stefano-meschiari/gandalf/internal/sim"
)

// Store writes and lists run directories under a base path.
type Store struct {
	baseDir string
}

// New returns a store rooted at baseDir.
func New(baseDir string) *Store { return &Store{baseDir: baseDir} }

// Init creates the base directory.
func (s *Store) Init() error { return os.MkdirAll(s.baseDir, 0755) }

// RunMetadata summarises one stored run.
type RunMetadata struct {
	ID         string    `json:"id"`
	Preset     string    `json:"preset"`
	Timestamp  time.Time `json:"timestamp"`
	Seed       int64     `json:"seed"`
	DtMax      float64   `json:"dt_max"`
	TEnd       float64   `json:"t_end"`
	Kernel     string    `json:"kernel"`
	Eos        string    `json:"eos"`
	Steps      int       `json:"steps"`
	FinalParts int       `json:"final_parts"`
	FinalSinks int       `json:"final_sinks"`
}

// Save writes one run's metadata and diagnostic series; returns the run id.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", meta.Preset, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()
	meta.Steps = result.StepsTaken
	if n := len(result.Stats); n > 0 {
		meta.FinalParts = result.Stats[n-1].NParts
		meta.FinalSinks = result.Stats[n-1].NSinks
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "series.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()
	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := []string{"step", "time", "kinetic", "thermal", "potential", "max_vel", "nparts", "nghosts", "nsinks", "imbalance"}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, st := range result.Stats {
		row := []string{
			strconv.Itoa(st.Step),
			fmtF(st.Time), fmtF(st.Kinetic), fmtF(st.Thermal), fmtF(st.Potential), fmtF(st.MaxVel),
			strconv.Itoa(st.NParts), strconv.Itoa(st.NGhosts), strconv.Itoa(st.NSinks),
			fmtF(st.Imbalance),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	return runID, nil
}

func fmtF(v float64) string { return strconv.FormatFloat(v, 'g', 12, 64) }

// List returns the stored run metadata, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Timestamp.After(out[b].Timestamp) })
	return out, nil
}

// Load reads one run's metadata.
func (s *Store) Load(runID string) (RunMetadata, error) {
	var meta RunMetadata
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

// Series reads one diagnostic column of a stored run.
func (s *Store) Series(runID, column string) ([]float64, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "series.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("run %s has an empty series", runID)
	}
	col := -1
	for i, name := range rows[0] {
		if name == column {
			col = i
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("unknown series column: %s", column)
	}
	out := make([]float64, 0, len(rows)-1)
	for _, row := range rows[1:] {
		v, err := strconv.ParseFloat(row[col], 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
