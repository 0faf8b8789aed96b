// Package driver feeds validated input rows through a kernel and collects
// the named outputs into a Resultset.
package driver

import (
	"context"
	"fmt"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/kernel"
)

// RowResult is the outcome of validating one row.
type RowResult int

const (
	RowOK RowResult = iota
	RowSkip
	RowFatal
)

func (r RowResult) String() string {
	switch r {
	case RowOK:
		return "ok"
	case RowSkip:
		return "skip"
	case RowFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ProgressFunc receives the number of rows handled so far.
type ProgressFunc func(done int)

func validateRow(row domain.InputRow) (RowResult, error) {
	if len(row.Values) != len(row.Fields) {
		return RowFatal, &domain.InvalidFieldCountError{Row: row.Line, Got: len(row.Values), Expected: len(row.Fields)}
	}
	if row.HasMissing() {
		return RowSkip, nil
	}
	return RowOK, nil
}

// Run advances k once per row and reads outputs after each advance. Rows with
// a missing value are skipped and counted. The kernel must already have its
// parameters, options and initialization applied. ctx is checked between
// rows.
func Run(ctx context.Context, k kernel.Kernel, rows []domain.InputRow, outputs []string, progress ProgressFunc) (*Resultset, error) {
	rs := &Resultset{
		Rows:      make([]domain.OutputRow, 0, len(rows)),
		CreatedAt: domain.Now(),
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted at row %d: %w", row.Line, err)
		}

		res, err := validateRow(row)
		switch res {
		case RowOK:
		case RowSkip:
			rs.Skipped++
			report(progress, i+1)
			continue
		case RowFatal:
			return nil, fmt.Errorf("validate row: %w", err)
		}

		if err := k.SetInputs(row); err != nil {
			return nil, fmt.Errorf("set inputs: %w", err)
		}
		if err := k.AdvanceRow(); err != nil {
			return nil, fmt.Errorf("advance row %d: %w", row.Line, err)
		}
		out, err := k.ReadOutputs(outputs)
		if err != nil {
			return nil, fmt.Errorf("read outputs at row %d: %w", row.Line, err)
		}
		rs.Rows = append(rs.Rows, domain.OutputRow(out))
		report(progress, i+1)
	}
	return rs, nil
}

// Prepare applies parameters and options to k and initializes it.
func Prepare(k kernel.Kernel, p domain.Params, opts map[string]string) error {
	if err := k.SetParameters(p); err != nil {
		return fmt.Errorf("set parameters: %w", err)
	}
	if err := k.SetOptions(opts); err != nil {
		return fmt.Errorf("set options: %w", err)
	}
	if err := k.Initialize(); err != nil {
		return fmt.Errorf("initialize kernel: %w", err)
	}
	return nil
}

func report(progress ProgressFunc, n int) {
	if progress != nil {
		progress(n)
	}
}
