package storage

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
)

type ExportData struct {
	RunMetadata
	Species []string    `json:"species"`
	Times   []float64   `json:"times"`
	States  [][]float64 `json:"states"`
}

// ExportJSON writes a stored run with its trajectory as indented JSON.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	states, times, err := s.LoadStates(runID)
	if err != nil {
		return err
	}

	n := 0
	if len(states) > 0 {
		n = len(states[0])
	}

	data := ExportData{
		RunMetadata: *meta,
		Species:     SpeciesHeader(n)[1:],
		Times:       times,
		States:      states,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV copies the stored states.csv of a run to w.
func (s *Store) ExportCSV(w io.Writer, runID string) error {
	f, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
