package distributed_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/couchcryptid/do3se-driver/internal/distributed"
	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/driver"
	"github.com/couchcryptid/do3se-driver/internal/kernel"
	"github.com/couchcryptid/do3se-driver/internal/observability"
	"github.com/couchcryptid/do3se-driver/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- mocks ---

type fakeRunner struct {
	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeRunner) RunFile(ctx context.Context, args domain.RunArguments) (*driver.Resultset, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, args.InputPath)
	f.mu.Unlock()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if strings.Contains(args.InputPath, "bad") {
		return nil, &domain.NoDataError{Trim: args.Options.Trim}
	}
	if strings.Contains(args.InputPath, "crash") {
		var rows []domain.OutputRow
		_ = rows[len(args.InputPath)]
	}
	return &driver.Resultset{Rows: []domain.OutputRow{{"aot40": 7}}}, nil
}

type mockSink struct {
	mu     sync.Mutex
	loaded []domain.RunSummary
}

func (m *mockSink) LoadBatch(_ context.Context, s []domain.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = append(m.loaded, s...)
	return nil
}

func plan(t *testing.T, inputs ...string) *distributed.Plan {
	t.Helper()
	return distributed.NewPlan([]string{"params.json"}, inputs, t.TempDir(), domain.RunOptions{Trim: 1}, nil)
}

// --- plan ---

func TestNewPlan(t *testing.T) {
	coords := distributed.CoordinateMap{"12_40": {52.5, -1.5, 120}}
	opts := domain.RunOptions{Fields: []string{"dd", "aot40"}, Overrides: domain.Params{"h": 2.0}}

	p := distributed.NewPlan(
		[]string{"cfg/wheat.json", "cfg/beech.yaml"},
		[]string{"met/site_12_40.csv", "met/site_3_3.csv", "met/plain.csv"},
		"results", opts, coords)

	require.Len(t, p.Runs, 6)
	ids := map[string]bool{}
	for _, r := range p.Runs {
		assert.NotEmpty(t, r.ID)
		ids[r.ID] = true
	}
	assert.Len(t, ids, 6, "ids are unique")

	first := p.Runs[0]
	assert.Equal(t, "cfg/wheat.json", first.ConfigPath)
	assert.Equal(t, filepath.Join("results", "wheat", "site_12_40.csv"), first.OutputPath)
	assert.Equal(t, domain.Params{"h": 2.0, "lat": 52.5, "lon": -1.5, "elev": 120.0}, first.Options.Overrides)

	assert.Equal(t, domain.Params{"h": 2.0}, p.Runs[1].Options.Overrides, "3_3 is not in the map")
	assert.Equal(t, domain.Params{"h": 2.0}, p.Runs[2].Options.Overrides)
	assert.Equal(t, filepath.Join("results", "beech", "plain.csv"), p.Runs[5].OutputPath)
	assert.Equal(t, domain.Params{"h": 2.0}, opts.Overrides, "caller options untouched")
}

func TestNewPlan_SharedStemsGetDistinctOutputs(t *testing.T) {
	p := distributed.NewPlan(
		[]string{"cfg/a/params.json", "cfg/b/params.json", "cfg/wheat.json"},
		[]string{"site1/met_1_2.csv", "site2/met_1_2.csv", "met_3_3.csv"},
		"out", domain.RunOptions{}, nil)
	require.Len(t, p.Runs, 9)
	require.NoError(t, p.Validate())

	outputs := make(map[string]int)
	for _, r := range p.Runs {
		outputs[r.OutputPath]++
	}
	assert.Len(t, outputs, 9, "every run writes its own file")

	assert.Equal(t, filepath.Join("out", "params-1", "met_1_2-1.csv"), p.Runs[0].OutputPath)
	assert.Equal(t, filepath.Join("out", "params-1", "met_1_2-2.csv"), p.Runs[1].OutputPath)
	assert.Equal(t, filepath.Join("out", "params-2", "met_3_3.csv"), p.Runs[5].OutputPath)
	assert.Equal(t, filepath.Join("out", "wheat", "met_1_2-1.csv"), p.Runs[6].OutputPath)
}

func TestNewPlan_SuffixAvoidsExistingStem(t *testing.T) {
	p := distributed.NewPlan([]string{"p.json"}, []string{"a/x.csv", "x-1.csv", "b/x.csv"}, "out", domain.RunOptions{}, nil)
	require.NoError(t, p.Validate())
	var got []string
	for _, r := range p.Runs {
		got = append(got, filepath.Base(r.OutputPath))
	}
	assert.Equal(t, []string{"x-2.csv", "x-1.csv", "x-3.csv"}, got)
}

func TestPlan_SharedOutputRejected(t *testing.T) {
	dir := t.TempDir()
	p := distributed.NewPlan([]string{"params.json"}, []string{"a.csv", "b.csv"}, dir, domain.RunOptions{}, nil)
	p.Runs[1].OutputPath = p.Runs[0].OutputPath
	require.Error(t, p.Validate())

	path := filepath.Join(dir, "plan.json")
	require.NoError(t, distributed.SavePlan(path, p))
	_, err := distributed.LoadPlan(path)
	require.Error(t, err)

	runner := &fakeRunner{}
	_, err = distributed.NewExecutor(runner, 2, slog.Default(), observability.NewMetricsForTesting()).
		Execute(context.Background(), p)
	require.Error(t, err)
	assert.Empty(t, runner.calls)
}

func TestPlan_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	coords := distributed.CoordinateMap{"1_2": {10, 20, 30}}
	p := distributed.NewPlan([]string{"a.json"}, []string{"in_1_2.csv", "in.csv"}, dir,
		domain.RunOptions{Fields: []string{"td"}, Headers: true, Trim: 2}, coords)

	path := filepath.Join(dir, "plan.json")
	require.NoError(t, distributed.SavePlan(path, p))
	got, err := distributed.LoadPlan(path)
	require.NoError(t, err)

	if diff := cmp.Diff(p, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("plan round trip mismatch (-want +got):\n%s", diff)
	}

	_, err = distributed.LoadPlan(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestLoadCoordinateMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coords.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"0_0": [51.0, -0.5, 12], "4_9": [52, 1, 300]}`), 0o644))

	m, err := distributed.LoadCoordinateMap(path)
	require.NoError(t, err)
	assert.Equal(t, distributed.CoordinateMap{"0_0": {51, -0.5, 12}, "4_9": {52, 1, 300}}, m)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"0_0": "x"}`), 0o644))
	_, err = distributed.LoadCoordinateMap(bad)
	require.Error(t, err)
}

// --- executor ---

func TestExecutor_IsolatesFailures(t *testing.T) {
	runner := &fakeRunner{delay: 5 * time.Millisecond}
	sink := &mockSink{}
	exec := distributed.NewExecutor(runner, 2, slog.Default(), observability.NewMetricsForTesting())
	exec.Sink = sink

	outcomes, err := exec.Execute(context.Background(), plan(t, "a.csv", "bad.csv", "c.csv", "d.csv", "e.csv"))
	require.NoError(t, err)
	require.Len(t, outcomes, 5)

	failed := distributed.Failed(outcomes)
	require.Len(t, failed, 1)
	assert.Equal(t, "bad.csv", failed[0].Args.InputPath)
	var nd *domain.NoDataError
	assert.True(t, errors.As(failed[0].Err, &nd))

	assert.Len(t, runner.calls, 5, "a failure does not stop other runs")
	assert.LessOrEqual(t, runner.peak.Load(), int32(2), "pool size bounds concurrency")
	assert.Len(t, sink.loaded, 4)
	for _, o := range outcomes {
		assert.DirExists(t, filepath.Dir(o.Args.OutputPath))
	}
}

func TestExecutor_RecoversPanickingRun(t *testing.T) {
	runner := &fakeRunner{}
	sink := &mockSink{}
	exec := distributed.NewExecutor(runner, 2, slog.Default(), observability.NewMetricsForTesting())
	exec.Sink = sink

	outcomes, err := exec.Execute(context.Background(), plan(t, "a.csv", "crash.csv", "c.csv"))
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	failed := distributed.Failed(outcomes)
	require.Len(t, failed, 1)
	assert.Equal(t, "crash.csv", failed[0].Args.InputPath)
	var pe *domain.PanicError
	require.True(t, errors.As(failed[0].Err, &pe), "got %v", failed[0].Err)
	assert.NotEmpty(t, pe.Stack)

	assert.NoError(t, outcomes[0].Err)
	assert.NoError(t, outcomes[2].Err)
	assert.Len(t, sink.loaded, 2)
}

func TestExecutor_Resume(t *testing.T) {
	dir := t.TempDir()
	p := distributed.NewPlan([]string{"params.json"}, []string{"a.csv", "b.csv"}, dir, domain.RunOptions{}, nil)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.Runs[0].OutputPath), 0o755))
	require.NoError(t, os.WriteFile(p.Runs[0].OutputPath, []byte("done\n"), 0o644))

	runner := &fakeRunner{}
	exec := distributed.NewExecutor(runner, 4, slog.Default(), observability.NewMetricsForTesting())
	exec.Resume = true
	var reported atomic.Int32
	exec.OnOutcome = func(distributed.Outcome) { reported.Add(1) }

	outcomes, err := exec.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int32(2), reported.Load())
	assert.True(t, outcomes[0].Skipped)
	assert.False(t, outcomes[1].Skipped)
	assert.Equal(t, []string{"b.csv"}, runner.calls)
}

func TestExecutor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{delay: time.Second}
	exec := distributed.NewExecutor(runner, 1, slog.Default(), observability.NewMetricsForTesting())
	outcomes, err := exec.Execute(ctx, plan(t, "a.csv", "b.csv"))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Empty(t, runner.calls)
}

// TestExecutor_Pipeline runs real file-backed runs through the pipeline.
func TestExecutor_Pipeline(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "params.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"h": 1}`), 0o644))

	inputs := []string{"dd", "hr", "ts_c", "o3"}
	var files []string
	for _, name := range []string{"cell_0_0.csv", "cell_1_0.csv", "broken.csv"} {
		path := filepath.Join(dir, name)
		content := "\"header\"\n1,0,10,50\n1,1,10,55\n"
		if name == "broken.csv" {
			content = "\"header\"\n1,0,abc,50\n"
		}
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		files = append(files, path)
	}

	opts := domain.RunOptions{Inputs: inputs, Fields: []string{"aot40"}, Trim: 1}
	p := distributed.NewPlan([]string{cfg}, files, filepath.Join(dir, "out"), opts, nil)

	metrics := observability.NewMetricsForTesting()
	pipe := pipeline.New(kernel.ReferenceFactory(inputs), slog.Default(), metrics)
	outcomes, err := distributed.NewExecutor(pipe, 2, slog.Default(), metrics).Execute(context.Background(), p)
	require.NoError(t, err)

	failed := distributed.Failed(outcomes)
	require.Len(t, failed, 1)
	var us *domain.UnquotedStringError
	assert.True(t, errors.As(failed[0].Err, &us))

	data, err := os.ReadFile(outcomes[1].Args.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "10\n25\n", string(data))
}
