package driver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/fields"
)

const dayField = "dd"

// Resultset holds the outputs of one run. It is owned by the run that made
// it and not modified after the run returns.
type Resultset struct {
	Rows      []domain.OutputRow
	Skipped   int
	Params    domain.Params
	CreatedAt time.Time
}

// Save writes the selected columns as CSV. Headers are quoted so the file
// loads back with one trimmed line. When period is non-nil only rows whose
// day of year lies inside it are written. Output values that are not
// selected are dropped; selected values a row lacks are left empty.
func (rs *Resultset) Save(w io.Writer, cols []string, headers bool, period *domain.Period) error {
	if period != nil {
		for _, row := range rs.Rows {
			if _, ok := row[dayField]; !ok {
				return &domain.RequiredFieldError{Fields: []string{dayField}}
			}
		}
	}

	bw := bufio.NewWriter(w)
	if headers {
		hs := make([]string, len(cols))
		for i, c := range cols {
			hs[i] = quote(fields.Header(c))
		}
		if _, err := bw.WriteString(strings.Join(hs, ",") + "\n"); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	cells := make([]string, len(cols))
	for _, row := range rs.Rows {
		if period != nil && !period.Contains(row[dayField]) {
			continue
		}
		for i, c := range cols {
			v, ok := row[c]
			if !ok {
				cells[i] = ""
				continue
			}
			cells[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if _, err := bw.WriteString(strings.Join(cells, ",") + "\n"); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return bw.Flush()
}

// SaveFile writes the resultset to path, replacing any existing file.
func (rs *Resultset) SaveFile(path string, cols []string, headers bool, period *domain.Period) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	if err := rs.Save(f, cols, headers, period); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Column returns the values of one output, skipping rows that lack it.
func (rs *Resultset) Column(name string) []float64 {
	out := make([]float64, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if v, ok := row[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

// GrowingSeason returns the [sgs, egs] period recorded in the run's
// parameters.
func (rs *Resultset) GrowingSeason() (*domain.Period, error) {
	sgs, okS := rs.Params.Float("sgs")
	egs, okE := rs.Params.Float("egs")
	if !okS || !okE {
		var missing []string
		if !okS {
			missing = append(missing, "sgs")
		}
		if !okE {
			missing = append(missing, "egs")
		}
		return nil, &domain.RequiredFieldError{Fields: missing}
	}
	return &domain.Period{Start: int(sgs), End: int(egs)}, nil
}

// Within returns a copy of rs holding only the rows whose day of year lies
// inside period. When cols is non-nil the copied rows keep only those
// outputs.
func (rs *Resultset) Within(period domain.Period, cols []string) (*Resultset, error) {
	out := &Resultset{Skipped: rs.Skipped, Params: rs.Params, CreatedAt: rs.CreatedAt}
	for _, row := range rs.Rows {
		day, ok := row[dayField]
		if !ok {
			return nil, &domain.RequiredFieldError{Fields: []string{dayField}}
		}
		if !period.Contains(day) {
			continue
		}
		if cols == nil {
			out.Rows = append(out.Rows, row)
			continue
		}
		kept := make(domain.OutputRow, len(cols))
		for _, c := range cols {
			if v, ok := row[c]; ok {
				kept[c] = v
			}
		}
		out.Rows = append(out.Rows, kept)
	}
	return out, nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
