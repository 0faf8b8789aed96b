package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		flags  runFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "run CONFIG INPUT",
		Short: "Run the model over one CSV input with one parameter file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			runArgs := domain.RunArguments{
				ID:         uuid.NewString(),
				ConfigPath: args[0],
				InputPath:  args[1],
				OutputPath: output,
				Options:    opts,
			}

			ctx, stop := a.signalContext()
			defer stop()

			p := a.pipeline(opts.Inputs)
			shutdown := a.serve(p)
			defer shutdown()
			sink, closeSink := a.sink()
			defer closeSink()

			a.tracker.Start("run", 1)
			rs, err := p.RunFile(ctx, runArgs)
			if err != nil {
				a.tracker.Add(1, 1)
				a.logger.Error("run failed", "error", err)
				return err
			}
			a.tracker.Add(1, 0)
			return p.Publish(ctx, sink, pipeline.Summarize(runArgs.ID, rs))
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV path (no file is written when empty)")
	return cmd
}
