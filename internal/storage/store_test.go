package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/fermsim/internal/analysis"
	"github.com/san-kum/fermsim/internal/dynamo"
	"github.com/san-kum/fermsim/internal/kinetics"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return st
}

func testResult() *dynamo.Result {
	x0 := kinetics.DefaultComposition().State()
	x1 := x0.Clone()
	x1[kinetics.Glucose] = 30.123456789012
	x1[kinetics.Ethanol] = 4.5

	return &dynamo.Result{
		States:  []dynamo.State{x0, x1},
		Times:   []float64{0, 0.1},
		Metrics: map[string]float64{"ethanol_yield": 0.41},
		Stats:   dynamo.Stats{Evaluations: 120, Accepted: 18, Rejected: 2},
		Method:  "rk45",
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := newTestStore(t)

	runID, err := st.Save(RunMetadata{Preset: "default", End: 50, AbsTol: 1e-6, RelTol: 1e-3, Params: kinetics.DefaultParams().Map()}, testResult())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, "single_"))

	meta, err := st.Load(runID)
	require.NoError(t, err)

	assert.Equal(t, ModeSingle, meta.Mode)
	assert.Equal(t, "rk45", meta.Method)
	assert.Equal(t, "default", meta.Preset)
	assert.Equal(t, 0.41, meta.Metrics["ethanol_yield"])
	assert.Equal(t, 120, meta.Stats.Evaluations)
	assert.Equal(t, 2, meta.Samples)
	assert.Equal(t, 1.7271, meta.Params["numaxG"])

	states, times, err := st.LoadStates(runID)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, []float64{0, 0.1}, times)
	assert.Equal(t, 30.123456789012, states[1][kinetics.Glucose], "values survive without rounding")
	assert.Len(t, states[0], kinetics.NumSpecies)
}

func TestStoreCSVHeader(t *testing.T) {
	st := newTestStore(t)

	runID, err := st.Save(RunMetadata{}, testResult())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(st.baseDir, runID, "states.csv"))
	require.NoError(t, err)

	firstLine := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, "time,glucose,xylose,furfural,furfuryl_alcohol,hmf,hac,ethanol,biomass", firstLine)
}

func TestStoreList(t *testing.T) {
	st := newTestStore(t)

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	first, err := st.Save(RunMetadata{}, testResult())
	require.NoError(t, err)
	second, err := st.Save(RunMetadata{}, testResult())
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(st.baseDir, "not-a-run"), 0755))

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, second, runs[1].ID)
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStoreSensitivity(t *testing.T) {
	st := newTestStore(t)

	base := testResult()
	curves := make([][]float64, kinetics.NumSpecies)
	for i := range curves {
		curves[i] = []float64{0, -0.05 * float64(i)}
	}
	sens := &analysis.Sensitivity{
		Times:    base.Times,
		Params:   []string{"numaxG"},
		Values:   []float64{3.9872},
		Factor:   1.1,
		Baseline: base,
		Curves:   [][][]float64{curves},
	}

	runID, err := st.SaveSensitivity(RunMetadata{Preset: "sensitivity"}, sens)
	require.NoError(t, err)

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, ModeSensitivity, meta.Mode)
	assert.Equal(t, []string{"numaxG"}, meta.Targets)
	assert.Equal(t, 1.1, meta.Factor)

	columns, times, rows, err := st.LoadSensitivity(runID)
	require.NoError(t, err)
	assert.Equal(t, "numaxG/glucose", columns[0])
	assert.Equal(t, "numaxG/biomass", columns[kinetics.NumSpecies-1])
	assert.Equal(t, []float64{0, 0.1}, times)
	assert.InDelta(t, -0.05, rows[1][1], 1e-15)

	single, err := st.Save(RunMetadata{}, testResult())
	require.NoError(t, err)
	_, _, _, err = st.LoadSensitivity(single)
	assert.ErrorIs(t, err, ErrNoSensitivity)
}

func TestStoreFileStructure(t *testing.T) {
	st := newTestStore(t)

	runID, err := st.Save(RunMetadata{}, testResult())
	require.NoError(t, err)

	runDir := filepath.Join(st.baseDir, runID)
	assert.FileExists(t, filepath.Join(runDir, "metadata.json"))
	assert.FileExists(t, filepath.Join(runDir, "states.csv"))
	assert.NoFileExists(t, filepath.Join(runDir, "sensitivity.csv"))
}

func TestExportJSON(t *testing.T) {
	st := newTestStore(t)

	runID, err := st.Save(RunMetadata{Preset: "krishnan"}, testResult())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, st.ExportJSON(&buf, runID))

	var data ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))

	assert.Equal(t, runID, data.ID)
	assert.Equal(t, "krishnan", data.Preset)
	assert.Equal(t, "glucose", data.Species[0])
	assert.Len(t, data.Species, kinetics.NumSpecies)
	assert.Len(t, data.States, 2)
	assert.Equal(t, 4.5, data.States[1][kinetics.Ethanol])
}

func TestExportCSV(t *testing.T) {
	st := newTestStore(t)

	runID, err := st.Save(RunMetadata{}, testResult())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, st.ExportCSV(&buf, runID))
	assert.True(t, strings.HasPrefix(buf.String(), "time,glucose"))

	assert.Error(t, st.ExportCSV(&buf, "missing"))
}
