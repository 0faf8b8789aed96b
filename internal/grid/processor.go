package grid

import (
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/do3se-driver/internal/fields"
)

const (
	kelvinOffset   = 273.15
	secondsPerHour = 3600.0
)

// Derivation computes one input field elementwise from other series.
type Derivation struct {
	Output string
	Inputs []string
	Fn     func(in []float64) float64
}

// Processor maps the variables of a gridded source onto model input fields.
// Renames are applied first, then derivations in order. A derivation whose
// output already exists or whose inputs are missing is skipped.
type Processor struct {
	Name    string
	Rename  map[string]string
	Derived []Derivation
}

// Process converts one cell's source series into input field series.
func (p *Processor) Process(src map[string][]float64) (map[string][]float64, error) {
	out := make(map[string][]float64, len(src))
	for from, to := range p.Rename {
		if s, ok := src[from]; ok {
			out[to] = s
		}
	}

	lookup := func(name string) ([]float64, bool) {
		if s, ok := out[name]; ok {
			return s, true
		}
		s, ok := src[name]
		return s, ok
	}

	for _, d := range p.Derived {
		if _, done := out[d.Output]; done {
			continue
		}
		args := make([][]float64, len(d.Inputs))
		complete := true
		for i, name := range d.Inputs {
			s, ok := lookup(name)
			if !ok {
				complete = false
				break
			}
			args[i] = s
		}
		if !complete {
			continue
		}

		n := len(args[0])
		for i, a := range args {
			if len(a) != n {
				return nil, fmt.Errorf("derive %s: %s has %d steps, %s has %d",
					d.Output, d.Inputs[i], len(a), d.Inputs[0], n)
			}
		}
		series := make([]float64, n)
		in := make([]float64, len(args))
		for t := range n {
			for i, a := range args {
				in[i] = a[t]
			}
			series[t] = d.Fn(in)
		}
		out[d.Output] = series
	}
	return out, nil
}

// SaturationVapourPressure returns es in kPa at temperature tc in Celsius.
func SaturationVapourPressure(tc float64) float64 {
	return 0.6108 * math.Exp(17.27*tc/(tc+237.3))
}

// VPD returns the vapour pressure deficit in kPa from temperature in
// Celsius and relative humidity in percent.
func VPD(tc, rh float64) float64 {
	return SaturationVapourPressure(tc) * (1 - rh/100)
}

var vpdFromHumidity = Derivation{
	Output: "vpd",
	Inputs: []string{"ts_c", "rh"},
	Fn:     func(in []float64) float64 { return VPD(in[0], in[1]) },
}

// DefaultProcessor passes through variables already named like input
// fields and derives vpd from relative humidity when it is absent.
func DefaultProcessor() *Processor {
	rename := make(map[string]string, len(fields.Inputs))
	for _, f := range fields.Inputs {
		rename[f.Name] = f.Name
	}
	return &Processor{
		Name:    "default",
		Rename:  rename,
		Derived: []Derivation{vpdFromHumidity},
	}
}

// ERA5Processor converts ERA5 single-level variables: 2 m temperature in K,
// 10 m wind components, surface pressure in Pa, total precipitation in m and
// accumulated downward shortwave radiation in J/m2 per hour.
func ERA5Processor() *Processor {
	return &Processor{
		Name:   "era5",
		Rename: map[string]string{"o3": "o3", "rh": "rh"},
		Derived: []Derivation{
			{Output: "ts_c", Inputs: []string{"t2m"}, Fn: func(in []float64) float64 { return in[0] - kelvinOffset }},
			vpdFromHumidity,
			{Output: "uh_zr", Inputs: []string{"u10", "v10"}, Fn: func(in []float64) float64 { return math.Hypot(in[0], in[1]) }},
			{Output: "p", Inputs: []string{"sp"}, Fn: func(in []float64) float64 { return in[0] / 1000 }},
			{Output: "precip", Inputs: []string{"tp"}, Fn: func(in []float64) float64 { return in[0] * 1000 }},
			{Output: "r", Inputs: []string{"ssrd"}, Fn: func(in []float64) float64 { return in[0] / secondsPerHour }},
		},
	}
}

var processors = map[string]func() *Processor{
	"default": DefaultProcessor,
	"era5":    ERA5Processor,
}

// ProcessorNames lists the built-in processors.
func ProcessorNames() []string {
	names := make([]string, 0, len(processors))
	for n := range processors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ProcessorByName returns a built-in processor.
func ProcessorByName(name string) (*Processor, error) {
	mk, ok := processors[name]
	if !ok {
		return nil, fmt.Errorf("unknown grid processor %q (have %v)", name, ProcessorNames())
	}
	return mk(), nil
}
