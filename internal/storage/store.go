package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/fermsim/internal/analysis"
	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

const (
	ModeSingle      = "single"
	ModeSensitivity = "sensitivity"

	metadataFile    = "metadata.json"
	statesFile      = "states.csv"
	sensitivityFile = "sensitivity.csv"
)

var ErrNoSensitivity = errors.New("storage: run has no sensitivity data")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Mode      string             `json:"mode"`
	Timestamp time.Time          `json:"timestamp"`
	Preset    string             `json:"preset,omitempty"`
	Method    string             `json:"method"`
	Start     float64            `json:"start"`
	End       float64            `json:"end"`
	Step      float64            `json:"step,omitempty"`
	AbsTol    float64            `json:"atol"`
	RelTol    float64            `json:"rtol"`
	Params    map[string]float64 `json:"params"`
	Initial   map[string]float64 `json:"initial,omitempty"`
	Targets   []string           `json:"targets,omitempty"`
	Factor    float64            `json:"factor,omitempty"`
	Metrics   map[string]float64 `json:"metrics"`
	Stats     dynamo.Stats       `json:"stats"`
	Samples   int                `json:"samples"`
}

// Save writes a single run. ID, Mode, Timestamp, Method, Metrics, Stats
// and Samples are filled from the result.
func (s *Store) Save(meta RunMetadata, result *dynamo.Result) (string, error) {
	meta.Mode = ModeSingle
	meta.Method = result.Method
	meta.Metrics = result.Metrics
	meta.Stats = result.Stats
	meta.Samples = len(result.Times)

	runDir, err := s.create(&meta)
	if err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), result); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// SaveSensitivity writes the baseline trajectory as states.csv and one
// column per parameter and species to sensitivity.csv.
func (s *Store) SaveSensitivity(meta RunMetadata, sens *analysis.Sensitivity) (string, error) {
	meta.Mode = ModeSensitivity
	meta.Method = sens.Baseline.Method
	meta.Metrics = sens.Baseline.Metrics
	meta.Stats = sens.Baseline.Stats
	meta.Samples = len(sens.Times)
	meta.Targets = sens.Params
	meta.Factor = sens.Factor

	runDir, err := s.create(&meta)
	if err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), sens.Baseline); err != nil {
		return "", err
	}
	if err := writeSensitivity(filepath.Join(runDir, sensitivityFile), sens); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func (s *Store) create(meta *RunMetadata) (string, error) {
	now := s.now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Mode, now.UnixNano())
	meta.Timestamp = now

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return runDir, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeCSV(path string, header []string, rows int, row func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// SpeciesHeader is the states.csv header for an n-component state.
func SpeciesHeader(n int) []string {
	header := []string{"time"}
	for i := 0; i < n; i++ {
		header = append(header, kinetics.Species(i).Key())
	}
	return header
}

func writeStates(path string, result *dynamo.Result) error {
	n := 0
	if len(result.States) > 0 {
		n = len(result.States[0])
	}
	return writeCSV(path, SpeciesHeader(n), len(result.States), func(i int) []string {
		row := []string{formatFloat(result.Times[i])}
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		return row
	})
}

func writeSensitivity(path string, sens *analysis.Sensitivity) error {
	header := []string{"time"}
	for i, name := range sens.Params {
		for sp := range sens.Curves[i] {
			header = append(header, name+"/"+kinetics.Species(sp).Key())
		}
	}
	return writeCSV(path, header, len(sens.Times), func(k int) []string {
		row := []string{formatFloat(sens.Times[k])}
		for _, perParam := range sens.Curves {
			for _, curve := range perParam {
				row = append(row, formatFloat(curve[k]))
			}
		}
		return row
	})
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	return &meta, nil
}

// LoadStates reads states.csv back as states and times.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	_, records, err := readCSV(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, nil, err
	}
	return splitTime(records)
}

// LoadSensitivity reads sensitivity.csv back as its header columns (after
// time), times and one row per time.
func (s *Store) LoadSensitivity(runID string) ([]string, []float64, [][]float64, error) {
	path := filepath.Join(s.baseDir, runID, sensitivityFile)
	header, records, err := readCSV(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil, fmt.Errorf("run %s: %w", runID, ErrNoSensitivity)
		}
		return nil, nil, nil, err
	}
	rows, times, err := splitTime(records)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(header) > 0 {
		header = header[1:]
	}
	return header, times, rows, nil
}

func readCSV(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func splitTime(records [][]string) ([][]float64, []float64, error) {
	times := make([]float64, 0, len(records))
	states := make([][]float64, 0, len(records))

	for i, record := range records {
		if len(record) == 0 {
			continue
		}

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		times = append(times, t)

		state := make([]float64, 0, len(record)-1)
		for j := 1; j < len(record); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %d: %w", i+1, j, err)
			}
			state = append(state, val)
		}
		states = append(states, state)
	}

	return states, times, nil
}
