package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/grid"
	"github.com/couchcryptid/do3se-driver/internal/paramfile"
)

type gridFlags struct {
	runFlags
	outDir     string
	mode       string
	processor  string
	throw      bool
	precompute bool
	batchSize  int
	mapFields  []string
	summary    string
}

func newGridCmd(a *app) *cobra.Command {
	var f gridFlags
	cmd := &cobra.Command{
		Use:   "grid CONFIG INPUT_NC STATE_NC",
		Short: "Run the model for every cell of a gridded NetCDF input",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runGrid(f, args[0], args[1], args[2])
		},
	}
	f.register(cmd, false)
	cmd.Flags().StringVar(&f.outDir, "out", "", "output directory for csv and combined modes")
	cmd.Flags().StringVar(&f.mode, "mode", "csv", "output mode: csv, reduce or combined")
	cmd.Flags().StringVar(&f.processor, "processor", "default", "source variable processor: "+strings.Join(grid.ProcessorNames(), ", "))
	cmd.Flags().BoolVar(&f.throw, "throw", false, "abort a batch on the first failing cell")
	cmd.Flags().BoolVar(&f.precompute, "precompute", false, "read every variable before processing (overrides GRID_PRECOMPUTE)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "target cells per batch (overrides BATCH_SIZE)")
	cmd.Flags().StringArrayVar(&f.mapFields, "map", nil, "map a state variable to a parameter, var=param (repeatable)")
	cmd.Flags().StringVar(&f.summary, "summary", "", "write reduce-mode summaries to this JSON file")
	return cmd
}

func (a *app) runGrid(f gridFlags, config, inputPath, statePath string) error {
	runOpts, err := f.options()
	if err != nil {
		return err
	}
	mode, err := grid.ParseOutputMode(f.mode)
	if err != nil {
		return err
	}
	processor, err := grid.ProcessorByName(f.processor)
	if err != nil {
		return err
	}
	mapped, err := parseFieldMap(f.mapFields)
	if err != nil {
		return err
	}
	params, err := paramfile.Load(config)
	if err != nil {
		return err
	}
	params = params.Merge(runOpts.Overrides)

	input, err := grid.OpenDataset(inputPath, a.cfg.GridCacheSize, a.metrics)
	if err != nil {
		return err
	}
	defer input.Close()
	state, err := grid.OpenDataset(statePath, a.cfg.GridCacheSize, a.metrics)
	if err != nil {
		return err
	}
	defer state.Close()

	if f.precompute || a.cfg.Precompute {
		a.logger.Info("precomputing grid variables")
		if err := input.Precompute(); err != nil {
			return err
		}
		if err := state.Precompute(); err != nil {
			return err
		}
	}

	coords, err := grid.Coordinates(input)
	if err != nil {
		return err
	}
	if len(coords) == 0 {
		return fmt.Errorf("%s: grid has no cells", inputPath)
	}
	batchSize := a.cfg.BatchSize
	if f.batchSize > 0 {
		batchSize = f.batchSize
	}
	batches, err := grid.MakeBatches(coords, batchSize)
	if err != nil {
		return err
	}

	opts := grid.Options{
		Inputs:            runOpts.Inputs,
		Outputs:           runOpts.Fields,
		Processor:         processor,
		OverrideFields:    mapped,
		Mode:              mode,
		OutDir:            f.outDir,
		Headers:           runOpts.Headers,
		ThrowExceptions:   f.throw,
		GrowingSeasonOnly: runOpts.GrowingSeasonOnly,
		OnBatch: func(res *grid.BatchResult) {
			a.tracker.Add(res.Processed+res.Failed, res.Failed)
		},
	}
	ctx, stop := a.signalContext()
	defer stop()

	p := a.pipeline(runOpts.Inputs)
	runner, err := grid.NewRunner(input, state, params, p, opts, a.logger, a.metrics)
	if err != nil {
		return err
	}
	if err := opts.EnsureOutDir(); err != nil {
		return err
	}
	shutdown := a.serve(a.tracker)
	defer shutdown()
	sink, closeSink := a.sink()
	defer closeSink()

	a.logger.Info("grid run starting",
		"cells", len(coords), "batches", len(batches), "batch_size", len(batches[0]),
		"workers", a.cfg.Workers, "mode", mode)
	a.tracker.Start("grid", len(coords))

	results, err := runner.RunAll(ctx, batches, a.cfg.Workers)
	if err != nil {
		return err
	}

	var (
		summaries         []domain.RunSummary
		processed, failed int
	)
	for _, res := range results {
		processed += res.Processed
		failed += res.Failed
		summaries = append(summaries, res.Summaries...)
	}
	a.logger.Info("grid run complete", "processed", processed, "failed", failed)

	if f.summary != "" {
		if err := writeJSONFile(f.summary, summaries); err != nil {
			return err
		}
	}
	return p.Publish(ctx, sink, summaries...)
}

// parseFieldMap turns var=param pairs into a state variable to parameter map.
func parseFieldMap(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		from, to, ok := strings.Cut(pair, "=")
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid field mapping %q: want var=param", pair)
		}
		out[from] = to
	}
	return out, nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
