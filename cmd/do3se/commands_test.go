package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/do3se-driver/internal/config"
	"github.com/couchcryptid/do3se-driver/internal/distributed"
	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/grid"
	"github.com/couchcryptid/do3se-driver/internal/observability"
)

func testApp() *app {
	return &app{
		cfg: &config.Config{
			LogLevel:        "info",
			LogFormat:       "text",
			ShutdownTimeout: time.Second,
			BatchSize:       4,
			Workers:         2,
			GridCacheSize:   8,
		},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: observability.NewMetricsForTesting(),
		tracker: observability.NewTracker(),
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeGrid writes a 2x1 grid with four hourly steps over days 1 and 2.
// Every cell has o3 = 50, so each in-season step adds 10 to AOT40.
func writeGrid(t *testing.T, dir string) (input, state string) {
	t.Helper()
	input = filepath.Join(dir, "input.nc")
	state = filepath.Join(dir, "e_state.nc")
	lat, lon := []float64{52, 52}, []float64{-1, -0.5}

	require.NoError(t, grid.WriteFile(input,
		[]string{"time", "y", "x"}, []int{4, 1, 2},
		[]*grid.Variable{
			{Name: "lat", Dims: []string{"y", "x"}, Data: lat},
			{Name: "lon", Dims: []string{"y", "x"}, Data: lon},
			{Name: "dd", Dims: []string{"time"}, Data: []float64{1, 1, 2, 2}},
			{Name: "hr", Dims: []string{"time"}, Data: []float64{0, 1, 2, 3}},
			{Name: "ts_c", Dims: []string{"time", "y", "x"}, Data: []float64{15, 15, 15, 15, 15, 15, 15, 15}},
			{Name: "o3", Dims: []string{"time", "y", "x"}, Data: []float64{50, 50, 50, 50, 50, 50, 50, 50}},
		}, nil))
	require.NoError(t, grid.WriteFile(state,
		[]string{"y", "x"}, []int{1, 2},
		[]*grid.Variable{
			{Name: "lat", Dims: []string{"y", "x"}, Data: lat},
			{Name: "lon", Dims: []string{"y", "x"}, Data: lon},
			{Name: "elevation", Dims: []string{"y", "x"}, Data: []float64{10, 20}},
		}, nil))
	return input, state
}

func TestRunGrid_GrowingSeasonOnly(t *testing.T) {
	dir := t.TempDir()
	input, state := writeGrid(t, dir)
	cfg := writeFile(t, filepath.Join(dir, "params.json"), `{"h": 1, "sgs": 2, "egs": 366}`)
	out := filepath.Join(dir, "out")

	a := testApp()
	f := gridFlags{
		runFlags:  runFlags{fields: "hr,aot40", inputs: "dd,hr,ts_c,o3", noHeaders: true, gsOnly: true},
		outDir:    out,
		mode:      "csv",
		processor: "default",
	}
	require.NoError(t, a.runGrid(f, cfg, input, state))

	for _, name := range []string{"0_0.csv", "1_0.csv"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err)
		assert.Equal(t, "2,10\n3,20\n", string(data), name)
	}
	p := a.tracker.Snapshot()
	assert.EqualValues(t, 2, p.Done)
	assert.EqualValues(t, 0, p.Failed)
}

func TestRunGrid_ReduceSummary(t *testing.T) {
	dir := t.TempDir()
	input, state := writeGrid(t, dir)
	cfg := writeFile(t, filepath.Join(dir, "params.json"), `{"h": 1}`)
	summary := filepath.Join(dir, "summary.json")

	f := gridFlags{
		runFlags:  runFlags{fields: "aot40", inputs: "dd,hr,ts_c,o3"},
		mode:      "reduce",
		processor: "default",
		summary:   summary,
	}
	require.NoError(t, testApp().runGrid(f, cfg, input, state))

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	var got []domain.RunSummary
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "0_0", got[0].Key)
	assert.Equal(t, "1_0", got[1].Key)
	assert.InDelta(t, 40.0, got[1].Values["aot40"], 1e-9)
	require.NotNil(t, got[1].Location)
	assert.InDelta(t, 20.0, got[1].Location.Elevation, 0)
}

func TestRunGrid_BadFlags(t *testing.T) {
	dir := t.TempDir()
	input, state := writeGrid(t, dir)
	cfg := writeFile(t, filepath.Join(dir, "params.json"), `{"h": 1}`)
	a := testApp()

	base := gridFlags{runFlags: runFlags{inputs: "dd,hr,ts_c,o3"}, mode: "reduce", processor: "default"}

	f := base
	f.mode = "parquet"
	require.Error(t, a.runGrid(f, cfg, input, state))

	f = base
	f.processor = "wrf"
	require.Error(t, a.runGrid(f, cfg, input, state))

	f = base
	f.mode = "csv"
	require.Error(t, a.runGrid(f, cfg, input, state), "csv mode needs --out")
}

const validInput = "\"dd\",\"hr\",\"ts_c\",\"o3\"\n1,0,10,50\n1,1,10,NaN\n"

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "in.csv"), validInput)
	opts := domain.RunOptions{Inputs: []string{"dd", "hr", "ts_c", "o3"}, Trim: 1}

	t.Run("input only", func(t *testing.T) {
		phases := validate(testApp(), input, "", opts)
		require.Len(t, phases, 1)
		assert.True(t, phases[0].passed())
		assert.Contains(t, strings.Join(phases[0].notes, "\n"), "1 rows have missing values")
	})

	t.Run("with parameters", func(t *testing.T) {
		cfg := writeFile(t, filepath.Join(dir, "ok.json"), `{"h": 1, "sgs": 5, "egs": 9, "soil_tex": "clay_loam"}`)
		phases := validate(testApp(), input, cfg, opts)
		require.Len(t, phases, 3)
		for _, p := range phases {
			assert.True(t, p.passed(), p.name)
		}
		assert.Contains(t, phases[1].notes[0], "clay_loam")
		assert.Equal(t, []string{"sgs 5, egs 9"}, phases[2].notes)
	})

	t.Run("unknown variant", func(t *testing.T) {
		cfg := writeFile(t, filepath.Join(dir, "bad.json"), `{"h": 1, "fo3_method": "maize"}`)
		phases := validate(testApp(), input, cfg, opts)
		require.Len(t, phases, 2)
		assert.False(t, phases[1].passed())
	})

	t.Run("unquoted string", func(t *testing.T) {
		bad := writeFile(t, filepath.Join(dir, "bad.csv"), "\"dd\",\"hr\",\"ts_c\",\"o3\"\n1,0,warm,50\n")
		phases := validate(testApp(), bad, "", opts)
		require.Len(t, phases, 1)
		assert.False(t, phases[0].passed())
	})
}

func TestExecutePlan(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, filepath.Join(dir, "params.json"), `{"h": 1}`)
	var inputs []string
	for _, site := range []string{"site1", "site2"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, site), 0o755))
		o3 := map[string]string{"site1": "50", "site2": "60"}[site]
		inputs = append(inputs, writeFile(t, filepath.Join(dir, site, "met_0_0.csv"),
			"\"header\"\n1,0,10,"+o3+"\n"))
	}
	inputs = append(inputs, writeFile(t, filepath.Join(dir, "broken.csv"), "\"header\"\n1,0,warm,50\n"))

	opts := domain.RunOptions{Inputs: []string{"dd", "hr", "ts_c", "o3"}, Fields: []string{"aot40"}, Trim: 1}
	plan := distributed.NewPlan([]string{cfg}, inputs, filepath.Join(dir, "out"), opts, nil)

	a := testApp()
	err := a.executePlan(plan, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 runs failed")

	for i, want := range []string{"10\n", "20\n"} {
		data, err := os.ReadFile(plan.Runs[i].OutputPath)
		require.NoError(t, err)
		assert.Equal(t, want, string(data), "same file name in two directories keeps both outputs")
	}
	p := a.tracker.Snapshot()
	assert.EqualValues(t, 3, p.Done)
	assert.EqualValues(t, 1, p.Failed)
}
