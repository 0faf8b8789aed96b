package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/do3se-driver/internal/dataset"
	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/driver"
	"github.com/couchcryptid/do3se-driver/internal/fields"
	"github.com/couchcryptid/do3se-driver/internal/paramfile"
)

// RunFile performs the complete file-backed run described by args: load the
// parameter file and overrides, load the input CSV, execute, and save the
// resultset to args.OutputPath.
func (p *Pipeline) RunFile(ctx context.Context, args domain.RunArguments) (*driver.Resultset, error) {
	params, err := paramfile.Load(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	params = params.Merge(args.Options.Overrides)

	inputs := args.Options.Inputs
	if len(inputs) == 0 {
		inputs = fields.DefaultInputs
	}
	outputs := args.Options.Fields
	if len(outputs) == 0 {
		outputs = fields.Default
	}

	ds, err := dataset.LoadFile(args.InputPath, inputs, args.Options.Trim)
	if err != nil {
		return nil, err
	}

	rs, err := p.Execute(ctx, params, ds.Rows, outputs)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", args.InputPath, err)
	}

	var period *domain.Period
	if args.Options.GrowingSeasonOnly {
		if period, err = rs.GrowingSeason(); err != nil {
			return nil, fmt.Errorf("growing season period: %w", err)
		}
	}
	if args.OutputPath != "" {
		if err := rs.SaveFile(args.OutputPath, outputs, args.Options.Headers, period); err != nil {
			return nil, err
		}
	}

	p.logger.Info("run complete",
		"id", args.ID,
		"config", args.ConfigPath,
		"input", args.InputPath,
		"output", args.OutputPath,
		"rows", len(rs.Rows),
		"skipped", rs.Skipped,
	)
	return rs, nil
}

// Publish sends summaries to sink. A nil sink is a no-op.
func (p *Pipeline) Publish(ctx context.Context, sink Sink, summaries ...domain.RunSummary) error {
	if sink == nil || len(summaries) == 0 {
		return nil
	}
	if err := sink.LoadBatch(ctx, summaries); err != nil {
		p.logger.Error("publish summaries failed", "error", err, "count", len(summaries))
		return fmt.Errorf("publish summaries: %w", err)
	}
	p.metrics.SummariesPublished.Add(float64(len(summaries)))
	return nil
}
