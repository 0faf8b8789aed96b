package grid

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/do3se-driver/internal/domain"
)

const (
	latVar  = "lat"
	lonVar  = "lon"
	timeVar = "time"
	ddVar   = "dd"
	hrVar   = "hr"
)

var timeUnitsRe = regexp.MustCompile(`^\s*(days|hours|minutes|seconds) since (\d{4}-\d{1,2}-\d{1,2})(?:[ T](\d{1,2}:\d{2}(?::\d{2})?))?`)

// TimeAxis is the day of year and hour of each time step.
type TimeAxis struct {
	DD []float64
	HR []float64
}

// Len returns the number of time steps.
func (a TimeAxis) Len() int { return len(a.DD) }

// ReadTimeAxis reads dd and hr variables, or derives them from a CF time
// variable with units such as "hours since 2019-01-01 00:00:00".
func ReadTimeAxis(ds *Dataset) (TimeAxis, error) {
	if ds.Has(ddVar) && ds.Has(hrVar) {
		dd, err := ds.Var(ddVar)
		if err != nil {
			return TimeAxis{}, err
		}
		hr, err := ds.Var(hrVar)
		if err != nil {
			return TimeAxis{}, err
		}
		if len(dd.Data) != len(hr.Data) {
			return TimeAxis{}, fmt.Errorf("dd has %d steps, hr has %d", len(dd.Data), len(hr.Data))
		}
		return TimeAxis{DD: dd.Data, HR: hr.Data}, nil
	}
	if !ds.Has(timeVar) {
		return TimeAxis{}, &domain.RequiredFieldError{Fields: []string{ddVar, hrVar}}
	}

	tv, err := ds.Var(timeVar)
	if err != nil {
		return TimeAxis{}, err
	}
	base, unit, err := parseTimeUnits(tv.Units)
	if err != nil {
		return TimeAxis{}, err
	}
	axis := TimeAxis{DD: make([]float64, len(tv.Data)), HR: make([]float64, len(tv.Data))}
	for i, v := range tv.Data {
		t := base.Add(time.Duration(math.Round(v * float64(unit))))
		axis.DD[i] = float64(t.YearDay())
		axis.HR[i] = float64(t.Hour())
	}
	return axis, nil
}

func parseTimeUnits(units string) (time.Time, time.Duration, error) {
	m := timeUnitsRe.FindStringSubmatch(units)
	if m == nil {
		return time.Time{}, 0, fmt.Errorf("unsupported time units %q", units)
	}

	var unit time.Duration
	switch m[1] {
	case "days":
		unit = 24 * time.Hour
	case "hours":
		unit = time.Hour
	case "minutes":
		unit = time.Minute
	case "seconds":
		unit = time.Second
	}

	stamp, layout := m[2], "2006-1-2"
	if m[3] != "" {
		stamp += " " + m[3]
		layout += " 15:04"
		if strings.Count(m[3], ":") == 2 {
			layout += ":05"
		}
	}
	base, err := time.Parse(layout, stamp)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("time units %q: %w", units, err)
	}
	return base, unit, nil
}

// Coordinates lists every (x, y) cell of the dataset's lat grid, x-major.
func Coordinates(ds *Dataset) ([]domain.Coordinate, error) {
	lat, err := ds.Var(latVar)
	if err != nil {
		return nil, err
	}
	if len(lat.Shape) != 2 {
		return nil, fmt.Errorf("lat must have dimensions (y, x), has %v", lat.Dims)
	}
	ny, nx := lat.Shape[0], lat.Shape[1]
	out := make([]domain.Coordinate, 0, nx*ny)
	for x := range nx {
		for y := range ny {
			out = append(out, domain.Coordinate{X: x, Y: y})
		}
	}
	return out, nil
}

// cellSeries returns every (time, y, x) variable of ds at c.
func cellSeries(ds *Dataset, names []string, c domain.Coordinate) (map[string][]float64, error) {
	out := make(map[string][]float64, len(names))
	for _, name := range names {
		v, err := ds.Var(name)
		if err != nil {
			return nil, err
		}
		s, err := v.Series(c.X, c.Y)
		if err != nil {
			return nil, err
		}
		out[name] = s
	}
	return out, nil
}

// cellValue returns a (y, x) variable of ds at c.
func cellValue(ds *Dataset, name string, c domain.Coordinate) (float64, error) {
	v, err := ds.Var(name)
	if err != nil {
		return 0, err
	}
	return v.Cell(c.X, c.Y)
}

// seriesVariables lists the variables of ds with three dimensions.
func seriesVariables(ds *Dataset) []string {
	var out []string
	for _, name := range ds.Variables() {
		if len(ds.Dims(name)) == 3 {
			out = append(out, name)
		}
	}
	return out
}

// buildRows assembles input rows for the given fields from per-field series.
func buildRows(series map[string][]float64, axis TimeAxis, inputs []string) ([]domain.InputRow, error) {
	var missing []string
	for _, f := range inputs {
		if f == ddVar || f == hrVar {
			continue
		}
		s, ok := series[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		if len(s) != axis.Len() {
			return nil, fmt.Errorf("%s has %d steps, time axis has %d", f, len(s), axis.Len())
		}
	}
	if len(missing) > 0 {
		return nil, &domain.RequiredFieldError{Fields: missing}
	}

	rows := make([]domain.InputRow, axis.Len())
	for t := range rows {
		vals := make([]float64, len(inputs))
		for i, f := range inputs {
			switch f {
			case ddVar:
				vals[i] = axis.DD[t]
			case hrVar:
				vals[i] = axis.HR[t]
			default:
				vals[i] = series[f][t]
			}
		}
		rows[t] = domain.InputRow{Line: t + 1, Fields: inputs, Values: vals}
	}
	return rows, nil
}
