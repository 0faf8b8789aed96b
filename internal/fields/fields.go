// Package fields is the registry of model input and output fields and the
// output presets selectable from the command line.
package fields

import (
	"fmt"
	"strings"
)

// Field describes one named column.
type Field struct {
	Name  string
	Short string // header text written above the column
	Unit  string
}

// Inputs are the hourly input fields, in file column order.
var Inputs = []Field{
	{"yr", "Year", ""},
	{"mm", "Month", ""},
	{"mdd", "Day of month", ""},
	{"dd", "Day of year", ""},
	{"hr", "Hour", ""},
	{"ts_c", "Air temperature", "C"},
	{"vpd", "Vapour pressure deficit", "kPa"},
	{"uh_zr", "Wind speed", "m/s"},
	{"precip", "Precipitation", "mm"},
	{"p", "Pressure", "kPa"},
	{"o3", "O3 concentration", "ppb"},
	{"r", "Global radiation", "W/m2"},
}

// Outputs are the fields a kernel can report after each row.
var Outputs = []Field{
	{"yr", "Year", ""},
	{"mm", "Month", ""},
	{"mdd", "Day of month", ""},
	{"dd", "Day of year", ""},
	{"hr", "Hour", ""},
	{"row_index", "Row", ""},
	{"ts_c", "Air temperature", "C"},
	{"vpd", "VPD", "kPa"},
	{"uh_zr", "Wind speed", "m/s"},
	{"precip", "Precipitation", "mm"},
	{"p", "Pressure", "kPa"},
	{"o3", "O3", "ppb"},
	{"r", "Global radiation", "W/m2"},
	{"td", "Thermal time", "C days"},
	{"is_gs", "In growing season", ""},
	{"aot40", "AOT40", "ppb h"},
	{"gsto", "Stomatal conductance", "mmol/m2/s"},
	{"fst", "Stomatal O3 flux", "nmol/m2/s"},
	{"pody", "POD", "mmol/m2"},
}

// Default is the output selection used when none is given.
var Default = []string{"dd", "hr", "ts_c", "o3", "td", "is_gs", "aot40"}

// DefaultInputs is the input field list used when none is given.
var DefaultInputs = []string{"dd", "hr", "ts_c", "vpd", "uh_zr", "precip", "p", "o3", "r"}

var (
	inputByName  = index(Inputs)
	outputByName = index(Outputs)
)

func index(fs []Field) map[string]Field {
	m := make(map[string]Field, len(fs))
	for _, f := range fs {
		m[f.Name] = f
	}
	return m
}

// Names returns the names of fs in order.
func Names(fs []Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

// Output looks up an output field by name.
func Output(name string) (Field, bool) {
	f, ok := outputByName[name]
	return f, ok
}

// Input looks up an input field by name.
func Input(name string) (Field, bool) {
	f, ok := inputByName[name]
	return f, ok
}

// Header returns the header text for an output column. Unregistered names
// are used as-is.
func Header(name string) string {
	if f, ok := outputByName[name]; ok {
		if f.Unit != "" {
			return fmt.Sprintf("%s (%s)", f.Short, f.Unit)
		}
		return f.Short
	}
	return name
}

// ParseSelection turns "+default", "+all" or a comma-separated list of field
// names into an ordered output selection.
func ParseSelection(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "+default":
		return append([]string(nil), Default...), nil
	case "+all":
		return Names(Outputs), nil
	}
	if strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("unknown output preset %q", s)
	}
	return parseList(s, outputByName, "output")
}

// ParseInputs turns a comma-separated list into an input field list. An empty
// string yields DefaultInputs.
func ParseInputs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return append([]string(nil), DefaultInputs...), nil
	}
	return parseList(s, inputByName, "input")
}

func parseList(s string, known map[string]Field, kind string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("unknown %s field %q", kind, name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s field list", kind)
	}
	return out, nil
}
