package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/driver"
	"github.com/couchcryptid/do3se-driver/internal/observability"
	"github.com/couchcryptid/do3se-driver/internal/pipeline"
)

// alignmentTolerance is the largest lat/lon difference, in degrees, accepted
// between the input and overrides grids.
const alignmentTolerance = 1e-4

// OutputMode selects what happens to each cell's resultset.
type OutputMode int

const (
	// OutputCSV writes <OutDir>/<x>_<y>.csv per cell.
	OutputCSV OutputMode = iota
	// OutputReduce reduces each cell to a RunSummary.
	OutputReduce
	// OutputCombined writes one NetCDF file per batch.
	OutputCombined
)

func (m OutputMode) String() string {
	switch m {
	case OutputCSV:
		return "csv"
	case OutputReduce:
		return "reduce"
	case OutputCombined:
		return "combined"
	default:
		return "unknown"
	}
}

// ParseOutputMode parses "csv", "reduce" or "combined".
func ParseOutputMode(s string) (OutputMode, error) {
	for _, m := range []OutputMode{OutputCSV, OutputReduce, OutputCombined} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown output mode %q", s)
}

// Options configure a Runner.
type Options struct {
	Inputs    []string // kernel input fields, in row order
	Outputs   []string
	Processor *Processor
	// OverrideFields maps overrides-grid variables to parameter names, in
	// addition to lat, lon and elevation.
	OverrideFields  map[string]string
	Mode            OutputMode
	OutDir          string
	Headers         bool
	Reducer         pipeline.Reducer
	ThrowExceptions bool
	// GrowingSeasonOnly keeps only the rows inside each cell's [sgs, egs]
	// period, for every output mode.
	GrowingSeasonOnly bool
	// OnBatch, when set, is called from RunAll as each batch finishes. It
	// may be called concurrently.
	OnBatch func(*BatchResult)
}

// BatchResult is the outcome of one batch.
type BatchResult struct {
	Index     int
	Processed int
	Failed    int
	Files     []string
	Summaries []domain.RunSummary
}

// Runner runs batches of grid cells through a pipeline. Batches may run
// concurrently; every cell gets its own kernel.
type Runner struct {
	input     *Dataset
	overrides *Dataset
	base      domain.Params
	pipe      *pipeline.Pipeline
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	axis    TimeAxis
	sources []string
	// outputs requested from the kernel; dd is added for the growing
	// season filter when the caller did not ask for it.
	outputs []string
}

// NewRunner prepares a runner over input and overrides. base holds the
// parameters shared by every cell.
func NewRunner(input, overrides *Dataset, base domain.Params, pipe *pipeline.Pipeline, opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Runner, error) {
	if opts.Processor == nil {
		opts.Processor = DefaultProcessor()
	}
	if opts.Mode == OutputReduce && opts.Reducer == nil {
		opts.Reducer = pipeline.Summarize
	}
	if opts.Mode != OutputReduce && opts.OutDir == "" {
		return nil, fmt.Errorf("output mode %s needs an output directory", opts.Mode)
	}
	for _, ds := range []*Dataset{input, overrides} {
		for _, name := range []string{latVar, lonVar} {
			if !ds.Has(name) {
				return nil, fmt.Errorf("%s: missing %s variable", ds.Path(), name)
			}
		}
	}

	axis, err := ReadTimeAxis(input)
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}
	outputs := opts.Outputs
	if opts.GrowingSeasonOnly && !slices.Contains(outputs, ddVar) {
		outputs = append(slices.Clone(outputs), ddVar)
	}
	return &Runner{
		input:     input,
		overrides: overrides,
		base:      base,
		pipe:      pipe,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
		axis:      axis,
		sources:   seriesVariables(input),
		outputs:   outputs,
	}, nil
}

// RunAll runs batches on up to workers goroutines. Results are returned in
// batch order.
func (r *Runner) RunAll(ctx context.Context, batches [][]domain.Coordinate, workers int) ([]*BatchResult, error) {
	results := make([]*BatchResult, len(batches))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, batch := range batches {
		g.Go(func() error {
			res, err := r.RunBatch(ctx, i, batch)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			results[i] = res
			if r.opts.OnBatch != nil {
				r.opts.OnBatch(res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunBatch runs every real cell of batch. A failing cell, including one that
// panics or whose grids are misaligned, is logged and skipped unless
// ThrowExceptions is set.
func (r *Runner) RunBatch(ctx context.Context, index int, batch []domain.Coordinate) (*BatchResult, error) {
	start := time.Now()
	cells := Real(batch)
	r.metrics.BatchSize.Observe(float64(len(cells)))

	res := &BatchResult{Index: index}
	var combined *Combined
	if r.opts.Mode == OutputCombined {
		combined = NewCombined(r.opts.Outputs)
	}

	for _, c := range cells {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.processCell(ctx, c, res, combined); err != nil {
			if r.opts.ThrowExceptions {
				return nil, fmt.Errorf("cell %s: %w", c.Key(), err)
			}
			r.logCellFailure(c, err)
			r.metrics.CellsFailed.Inc()
			res.Failed++
			continue
		}
		r.metrics.CellsProcessed.Inc()
		res.Processed++
	}

	if combined != nil && combined.Len() > 0 {
		path := filepath.Join(r.opts.OutDir, fmt.Sprintf("batch_%04d.nc", index))
		if err := combined.Write(path); err != nil {
			return nil, err
		}
		res.Files = append(res.Files, path)
	}

	r.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("batch complete", "batch", index, "processed", res.Processed, "failed", res.Failed)
	return res, nil
}

// processCell runs one cell and emits its result. A panic is returned as a
// *domain.PanicError.
func (r *Runner) processCell(ctx context.Context, c domain.Coordinate, res *BatchResult, combined *Combined) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = domain.NewPanicError(v)
		}
	}()
	rs, loc, err := r.runCell(ctx, c)
	if err != nil {
		return err
	}
	return r.emit(c, loc, rs, res, combined)
}

func (r *Runner) logCellFailure(c domain.Coordinate, err error) {
	var (
		misaligned *domain.AlignmentError
		pe         *domain.PanicError
	)
	switch {
	case errors.As(err, &misaligned):
		r.logger.Error("grid misaligned, skipping cell", "error", err, "x", c.X, "y", c.Y)
	case errors.As(err, &pe):
		r.logger.Error("cell panicked, skipping", "panic", pe.Value, "x", c.X, "y", c.Y, "stack", string(pe.Stack))
	default:
		r.logger.Warn("cell failed, skipping", "error", err, "x", c.X, "y", c.Y)
	}
}

func (r *Runner) runCell(ctx context.Context, c domain.Coordinate) (*driver.Resultset, domain.Location, error) {
	loc, overrides, err := r.cellOverrides(c)
	if err != nil {
		return nil, loc, err
	}

	src, err := cellSeries(r.input, r.sources, c)
	if err != nil {
		return nil, loc, err
	}
	series, err := r.opts.Processor.Process(src)
	if err != nil {
		return nil, loc, err
	}
	rows, err := buildRows(series, r.axis, r.opts.Inputs)
	if err != nil {
		return nil, loc, err
	}

	rs, err := r.pipe.Execute(ctx, r.base.Merge(overrides), rows, r.outputs)
	return rs, loc, err
}

// cellOverrides checks the two grids agree on the cell's position and builds
// its location parameters.
func (r *Runner) cellOverrides(c domain.Coordinate) (domain.Location, domain.Params, error) {
	var loc domain.Location
	for _, name := range []string{latVar, lonVar} {
		in, err := cellValue(r.input, name, c)
		if err != nil {
			return loc, nil, err
		}
		ov, err := cellValue(r.overrides, name, c)
		if err != nil {
			return loc, nil, err
		}
		if math.IsNaN(in) || math.IsNaN(ov) || math.Abs(in-ov) > alignmentTolerance {
			return loc, nil, &domain.AlignmentError{Coord: c, Field: name, Source: in, Overrides: ov}
		}
		if name == latVar {
			loc.Lat = in
		} else {
			loc.Lon = in
		}
	}

	p := domain.Params{"lat": loc.Lat, "lon": loc.Lon}
	if r.overrides.Has("elevation") {
		elev, err := cellValue(r.overrides, "elevation", c)
		if err != nil {
			return loc, nil, err
		}
		if !math.IsNaN(elev) {
			loc.Elevation = elev
			p["elev"] = elev
		}
	}
	for from, to := range r.opts.OverrideFields {
		v, err := cellValue(r.overrides, from, c)
		if err != nil {
			return loc, nil, err
		}
		if !math.IsNaN(v) {
			p[to] = v
		}
	}
	return loc, p, nil
}

func (r *Runner) emit(c domain.Coordinate, loc domain.Location, rs *driver.Resultset, res *BatchResult, combined *Combined) error {
	if r.opts.GrowingSeasonOnly {
		period, err := rs.GrowingSeason()
		if err != nil {
			return fmt.Errorf("growing season period: %w", err)
		}
		if rs, err = rs.Within(*period, r.opts.Outputs); err != nil {
			return err
		}
	}

	switch r.opts.Mode {
	case OutputCSV:
		path := filepath.Join(r.opts.OutDir, c.Key()+".csv")
		if err := rs.SaveFile(path, r.opts.Outputs, r.opts.Headers, nil); err != nil {
			return err
		}
		res.Files = append(res.Files, path)
	case OutputReduce:
		s := r.opts.Reducer(c.Key(), rs)
		s.Coord = &c
		s.Location = &loc
		res.Summaries = append(res.Summaries, s)
	case OutputCombined:
		combined.Add(c, rs)
	}
	return nil
}

// EnsureOutDir creates the output directory when the mode writes files.
func (o Options) EnsureOutDir() error {
	if o.Mode == OutputReduce {
		return nil
	}
	if err := os.MkdirAll(o.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
