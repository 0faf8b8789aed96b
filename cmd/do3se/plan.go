package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/do3se-driver/internal/distributed"
	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/driver"
	"github.com/couchcryptid/do3se-driver/internal/fields"
)

func newPlanCmd(a *app) *cobra.Command {
	var (
		flags    runFlags
		configs  []string
		outDir   string
		coords   string
		planFile string
	)
	cmd := &cobra.Command{
		Use:   "plan INPUT...",
		Short: "Write a plan of every parameter file and input pair",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, inputs []string) error {
			if len(configs) == 0 {
				return errors.New("at least one --config is required")
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			var cm distributed.CoordinateMap
			if coords != "" {
				if cm, err = distributed.LoadCoordinateMap(coords); err != nil {
					return err
				}
			}

			plan := distributed.NewPlan(configs, inputs, outDir, opts, cm)
			if err := distributed.SavePlan(planFile, plan); err != nil {
				return err
			}
			a.logger.Info("plan written", "path", planFile, "runs", len(plan.Runs))
			fmt.Fprintf(cmd.OutOrStdout(), "%d runs written to %s\n", len(plan.Runs), planFile)
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringArrayVar(&configs, "config", nil, "parameter file (repeatable)")
	cmd.Flags().StringVar(&outDir, "out", "results", "output root directory")
	cmd.Flags().StringVar(&coords, "coords", "", "coordinate map JSON: \"<x>_<y>\": [lat, lon, elevation]")
	cmd.Flags().StringVar(&planFile, "plan-file", "plan.json", "where to write the plan")
	return cmd
}

func newExecuteCmd(a *app) *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "execute PLAN",
		Short: "Run every entry of a saved plan on a worker pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			plan, err := distributed.LoadPlan(args[0])
			if err != nil {
				return err
			}
			return a.executePlan(plan, resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "skip runs whose output already exists")
	return cmd
}

func (a *app) executePlan(plan *distributed.Plan, resume bool) error {
	ctx, stop := a.signalContext()
	defer stop()

	runner := &planRunner{app: a}
	exec := distributed.NewExecutor(runner, a.cfg.Workers, a.logger, a.metrics)
	exec.Resume = resume
	exec.OnOutcome = func(o distributed.Outcome) {
		failed := 0
		if o.Err != nil {
			failed = 1
		}
		a.tracker.Add(1, failed)
	}
	sink, closeSink := a.sink()
	defer closeSink()
	exec.Sink = sink

	shutdown := a.serve(a.tracker)
	defer shutdown()

	a.tracker.Start("plan", len(plan.Runs))
	outcomes, err := exec.Execute(ctx, plan)
	if err != nil {
		return err
	}
	if failed := distributed.Failed(outcomes); len(failed) > 0 {
		for _, o := range failed {
			a.logger.Error("run failed", "id", o.Args.ID, "input", o.Args.InputPath, "error", o.Err)
		}
		return fmt.Errorf("%d of %d runs failed", len(failed), len(outcomes))
	}
	return nil
}

// planRunner builds a pipeline for each run's own input fields.
type planRunner struct {
	app *app
}

func (r *planRunner) RunFile(ctx context.Context, args domain.RunArguments) (*driver.Resultset, error) {
	inputs := args.Options.Inputs
	if len(inputs) == 0 {
		inputs = fields.DefaultInputs
	}
	return r.app.pipeline(inputs).RunFile(ctx, args)
}
