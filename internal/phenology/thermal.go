// Package phenology derives growing-season day markers from accumulated
// daily mean temperature (thermal time).
package phenology

import (
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/do3se-driver/internal/domain"
)

// DaysInYear is the number of day-of-year slots, leap day included.
const DaysInYear = 366

// Thermal time offsets from the value at mid-anthesis, in degree days.
const (
	sgsOffset        = -1075
	egsOffset        = 700
	astartOffset     = -456
	fphen1Offset     = -795
	leafFPhen1Offset = 100
	leafFPhen2Offset = 525
	sgsGuard         = 1075
	astartGuard      = 456
)

// Markers substituted when thermal time is invalid.
const (
	invalidSGS    = -999
	invalidEGS    = 999
	invalidAstart = -998
	invalidAend   = 998
	invalidFPhen4 = 999
)

const (
	dayField  = "dd"
	tempField = "ts_c"
)

// Series is daily mean temperature and its running total for days 1..366.
// Index 0 holds day 1.
type Series struct {
	Mean        [DaysInYear]float64
	Accumulated [DaysInYear]float64
}

// At returns the accumulated thermal time on day (1-based).
func (s *Series) At(day int) float64 { return s.Accumulated[day-1] }

// Accumulate groups rows by day of year and builds the thermal time series.
// Rows with a missing temperature or a day outside 1..366 are ignored.
func Accumulate(rows []domain.InputRow) (*Series, error) {
	if len(rows) > 0 {
		var missing []string
		if _, ok := rows[0].Get(dayField); !ok {
			missing = append(missing, dayField)
		}
		if _, ok := rows[0].Get(tempField); !ok {
			missing = append(missing, tempField)
		}
		if len(missing) > 0 {
			return nil, &domain.RequiredFieldError{Fields: missing}
		}
	}

	var (
		sums   [DaysInYear]float64
		counts [DaysInYear]int
	)
	for _, row := range rows {
		dd, _ := row.Get(dayField)
		t, _ := row.Get(tempField)
		if math.IsNaN(dd) || math.IsNaN(t) {
			continue
		}
		day := int(dd)
		if day < 1 || day > DaysInYear {
			continue
		}
		sums[day-1] += t
		counts[day-1]++
	}

	s := &Series{}
	for i := range s.Mean {
		if counts[i] > 0 {
			s.Mean[i] = max(sums[i]/float64(counts[i]), 0)
		}
		s.Accumulated[i] = s.Mean[i]
		if i > 0 {
			s.Accumulated[i] += s.Accumulated[i-1]
		}
	}
	return s, nil
}

// Config controls window derivation.
type Config struct {
	MidAnthesis    int
	AllowInvalidTD bool
}

// Window holds the derived growing-season markers.
type Window struct {
	SGS        int
	EGS        int
	Astart     int
	Aend       int
	FPhen1     int
	LeafFPhen1 int
	LeafFPhen2 int
	FPhen4     int
	InvalidTD  bool
}

// invalidWindow is substituted when thresholds are never crossed and
// invalid thermal time is allowed.
var invalidWindow = Window{
	SGS:       invalidSGS,
	EGS:       invalidEGS,
	Astart:    invalidAstart,
	Aend:      invalidAend,
	FPhen4:    invalidFPhen4,
	InvalidTD: true,
}

// Calculate scans s for the first day crossing each threshold relative to
// the thermal time at mid-anthesis and derives the window. A crossing is the
// lowest day whose accumulated value is strictly greater than the threshold.
func Calculate(s *Series, cfg Config) (Window, error) {
	if cfg.MidAnthesis < 1 || cfg.MidAnthesis > DaysInYear {
		return Window{}, fmt.Errorf("mid_anthesis %d outside 1..%d", cfg.MidAnthesis, DaysInYear)
	}
	mid := s.At(cfg.MidAnthesis)

	markers := []struct {
		name   string
		offset float64
		guard  bool
		day    int
	}{
		{name: "sgs", offset: sgsOffset, guard: mid > sgsGuard},
		{name: "egs", offset: egsOffset, guard: true},
		{name: "astart", offset: astartOffset, guard: mid > astartGuard},
		{name: "fphen_1", offset: fphen1Offset, guard: true},
		{name: "leaf_fphen_1", offset: leafFPhen1Offset, guard: true},
		{name: "leaf_fphen_2", offset: leafFPhen2Offset, guard: true},
	}
	for i := range markers {
		m := &markers[i]
		if !m.guard {
			continue
		}
		for d := 1; d <= DaysInYear; d++ {
			if s.At(d) > mid+m.offset {
				m.day = d
				break
			}
		}
	}

	var never []string
	for _, m := range markers {
		if m.day == 0 {
			never = append(never, m.name)
		}
	}
	if len(never) > 0 {
		if cfg.AllowInvalidTD {
			return invalidWindow, nil
		}
		return Window{}, fmt.Errorf("%w: %s (mid_anthesis day %d, td %.1f)",
			domain.ErrThermalTimeInvalid, strings.Join(never, ", "), cfg.MidAnthesis, mid)
	}

	sgs, egs, astart := markers[0].day, markers[1].day, markers[2].day
	aend := egs + 1
	return Window{
		SGS:        sgs,
		EGS:        egs,
		Astart:     astart,
		Aend:       aend,
		FPhen1:     markers[3].day - sgs,
		LeafFPhen1: markers[4].day - astart,
		LeafFPhen2: aend - markers[5].day,
		FPhen4:     egs - cfg.MidAnthesis,
	}, nil
}

// ConfigFromParams reads and removes mid_anthesis and allow_invalid_td.
func ConfigFromParams(p domain.Params) (Config, error) {
	mid, ok := p.Float("mid_anthesis")
	if !ok {
		return Config{}, &domain.RequiredFieldError{Fields: []string{"mid_anthesis"}}
	}
	cfg := Config{MidAnthesis: int(mid), AllowInvalidTD: p.Bool("allow_invalid_td")}
	delete(p, "mid_anthesis")
	delete(p, "allow_invalid_td")
	return cfg, nil
}

// Apply writes the window into p.
func (w Window) Apply(p domain.Params) {
	p["sgs"] = float64(w.SGS)
	p["egs"] = float64(w.EGS)
	p["astart"] = float64(w.Astart)
	p["aend"] = float64(w.Aend)
	p["fphen_1"] = float64(w.FPhen1)
	p["leaf_fphen_1"] = float64(w.LeafFPhen1)
	p["leaf_fphen_2"] = float64(w.LeafFPhen2)
	p["fphen_4"] = float64(w.FPhen4)
	p["invalid_td"] = w.InvalidTD
}
