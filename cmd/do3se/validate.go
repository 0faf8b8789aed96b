package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/do3se-driver/internal/dataset"
	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/paramfile"
	"github.com/couchcryptid/do3se-driver/internal/switchboard"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	notes  []string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func (p *phase) report(w io.Writer) {
	status := "PASS"
	if !p.passed() {
		status = "FAIL"
	}
	fmt.Fprintf(w, "[%s] %s\n", status, p.name)
	for _, n := range p.notes {
		fmt.Fprintf(w, "       %s\n", n)
	}
	for _, e := range p.errors {
		fmt.Fprintf(w, "       error: %s\n", e)
	}
}

var errValidationFailed = errors.New("validation failed")

func newValidateCmd(a *app) *cobra.Command {
	var (
		flags  runFlags
		config string
	)
	cmd := &cobra.Command{
		Use:   "validate INPUT",
		Short: "Check an input CSV, and optionally a parameter file, without running the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			phases := validate(a, args[0], config, opts)
			ok := true
			for _, p := range phases {
				p.report(cmd.OutOrStdout())
				ok = ok && p.passed()
			}
			if !ok {
				return errValidationFailed
			}
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVar(&config, "config", "", "parameter file to resolve against the input")
	return cmd
}

func validate(a *app, input, config string, opts domain.RunOptions) []*phase {
	structure := &phase{name: "input structure"}
	ds, err := dataset.LoadFile(input, opts.Inputs, opts.Trim)
	if err != nil {
		structure.errorf("%v", err)
		return []*phase{structure}
	}
	structure.notef("%d data rows, %d fields", len(ds.Rows), len(ds.Fields))

	missing := 0
	for _, row := range ds.Rows {
		if row.HasMissing() {
			missing++
		}
	}
	if missing > 0 {
		structure.notef("%d rows have missing values and will be skipped", missing)
	}
	phases := []*phase{structure}
	if config == "" {
		return phases
	}

	params := &phase{name: "parameters"}
	phases = append(phases, params)
	raw, err := paramfile.Load(config)
	if err != nil {
		params.errorf("%v", err)
		return phases
	}
	raw = raw.Merge(opts.Overrides)
	resolved, err := switchboard.Resolve(raw)
	if err != nil {
		params.errorf("%v", err)
		return phases
	}
	params.notef("soil: %s, growing season: %s", resolved.Soil.Texture, resolved.Switchboard.SgsEgs)

	season := &phase{name: "growing season"}
	phases = append(phases, season)
	configured, err := a.pipeline(opts.Inputs).Configure(raw, ds.Rows)
	if err != nil {
		season.errorf("%v", err)
		return phases
	}
	sgs, _ := configured.Params.Float("sgs")
	egs, _ := configured.Params.Float("egs")
	season.notef("sgs %g, egs %g", sgs, egs)
	return phases
}
