package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/do3se-driver/internal/fields"
)

func newFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List input and output fields",
		Args:  cobra.NoArgs,
		// Listing fields needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tNAME\tDESCRIPTION\tUNIT\tDEFAULT")
			for _, f := range fields.Inputs {
				fmt.Fprintf(tw, "input\t%s\t%s\t%s\t%s\n", f.Name, f.Short, f.Unit, mark(slices.Contains(fields.DefaultInputs, f.Name)))
			}
			for _, f := range fields.Outputs {
				fmt.Fprintf(tw, "output\t%s\t%s\t%s\t%s\n", f.Name, f.Short, f.Unit, mark(slices.Contains(fields.Default, f.Name)))
			}
			return tw.Flush()
		},
	}
}

func mark(b bool) string {
	if b {
		return "*"
	}
	return ""
}
