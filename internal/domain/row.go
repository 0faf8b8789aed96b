package domain

import "math"

// InputRow is one hourly row of model input.
type InputRow struct {
	Line   int // 1-based line in the source file; 0 when not file backed
	Fields []string
	Values []float64
}

// Get returns the value of field name and whether the row has that field.
func (r InputRow) Get(name string) (float64, bool) {
	for i, f := range r.Fields {
		if f == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return math.NaN(), false
}

// HasMissing reports whether any value is NaN.
func (r InputRow) HasMissing() bool {
	for _, v := range r.Values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// Map returns the row as a field-to-value map.
func (r InputRow) Map() map[string]float64 {
	m := make(map[string]float64, len(r.Fields))
	for i, f := range r.Fields {
		if i < len(r.Values) {
			m[f] = r.Values[i]
		}
	}
	return m
}

// OutputRow is one row of named kernel outputs.
type OutputRow map[string]float64

// Period is an inclusive day-of-year range.
type Period struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether day falls within p.
func (p Period) Contains(day float64) bool {
	return day >= float64(p.Start) && day <= float64(p.End)
}
