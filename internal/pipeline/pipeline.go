package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/driver"
	"github.com/couchcryptid/do3se-driver/internal/kernel"
	"github.com/couchcryptid/do3se-driver/internal/observability"
	"github.com/couchcryptid/do3se-driver/internal/phenology"
	"github.com/couchcryptid/do3se-driver/internal/switchboard"
)

// progressEvery is how many rows pass between debug progress logs.
const progressEvery = 5000

// Sink receives summaries of finished runs.
type Sink interface {
	LoadBatch(ctx context.Context, summaries []domain.RunSummary) error
}

// Pipeline runs the resolve, phenology and drive stages for one parameter
// set and row sequence. Each call builds its own kernel, so one Pipeline may
// be shared by concurrent workers.
type Pipeline struct {
	factory kernel.Factory
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline that builds kernels with factory.
func New(factory kernel.Factory, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		factory: factory,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once at least one run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed any runs yet")
	}
	return nil
}

// Configure resolves params into a switchboard and kernel parameters. When
// the growing season comes from thermal time, the window is derived from
// rows and written into the resolved parameters.
func (p *Pipeline) Configure(params domain.Params, rows []domain.InputRow) (switchboard.Resolved, error) {
	resolved, err := switchboard.Resolve(params)
	if err != nil {
		return switchboard.Resolved{}, err
	}

	switch resolved.Switchboard.SgsEgs {
	case switchboard.SgsEgsStatic, switchboard.SgsEgsLatitude, switchboard.SgsEgsInputDates:
		// sgs and egs are taken from the parameters as given; the thermal
		// time settings have no consumer.
		delete(resolved.Params, "mid_anthesis")
		delete(resolved.Params, "allow_invalid_td")
	case switchboard.SgsEgsThermalTime:
		w, err := growingSeason(resolved.Params, rows)
		if err != nil {
			return switchboard.Resolved{}, err
		}
		if w.InvalidTD {
			p.logger.Warn("thermal time never crossed season thresholds, using sentinel window")
		}
		w.Apply(resolved.Params)
	}
	return resolved, nil
}

func growingSeason(params domain.Params, rows []domain.InputRow) (phenology.Window, error) {
	cfg, err := phenology.ConfigFromParams(params)
	if err != nil {
		return phenology.Window{}, fmt.Errorf("phenology: %w", err)
	}
	series, err := phenology.Accumulate(rows)
	if err != nil {
		return phenology.Window{}, fmt.Errorf("phenology: %w", err)
	}
	w, err := phenology.Calculate(series, cfg)
	if err != nil {
		return phenology.Window{}, fmt.Errorf("phenology: %w", err)
	}
	return w, nil
}

// Execute configures a fresh kernel from params and drives rows through it.
func (p *Pipeline) Execute(ctx context.Context, params domain.Params, rows []domain.InputRow, outputs []string) (*driver.Resultset, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Inc()
	defer p.metrics.PipelineRunning.Dec()

	rs, err := p.execute(ctx, params, rows, outputs)
	if err != nil {
		p.metrics.RunsFailed.Inc()
		return nil, err
	}

	p.metrics.RowsProcessed.Add(float64(len(rs.Rows)))
	p.metrics.RowsSkipped.Add(float64(rs.Skipped))
	p.metrics.RunsCompleted.Inc()
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)

	if rs.Skipped > 0 {
		p.logger.Info("rows skipped for missing values", "skipped", rs.Skipped, "processed", len(rs.Rows))
	}
	return rs, nil
}

func (p *Pipeline) execute(ctx context.Context, params domain.Params, rows []domain.InputRow, outputs []string) (*driver.Resultset, error) {
	resolved, err := p.Configure(params, rows)
	if err != nil {
		return nil, err
	}

	k := p.factory()
	if err := driver.Prepare(k, resolved.Params, resolved.Switchboard.Options()); err != nil {
		return nil, err
	}

	total := len(rows)
	rs, err := driver.Run(ctx, k, rows, outputs, func(done int) {
		if done%progressEvery == 0 {
			p.logger.Debug("run progress", "rows", done, "total", total)
		}
	})
	if err != nil {
		return nil, err
	}
	rs.Params = resolved.Params
	return rs, nil
}
