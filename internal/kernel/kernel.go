// Package kernel defines the contract of the deposition model kernel and a
// bookkeeping reference implementation.
//
// A Kernel holds the state of one run. Instances are not safe for concurrent
// use; parallel runs each get their own instance from a Factory.
package kernel

import (
	"errors"
	"fmt"
	"maps"
	"math"

	"github.com/couchcryptid/do3se-driver/internal/domain"
)

// Kernel is the set-inputs, advance, read-outputs contract of a model kernel.
type Kernel interface {
	SetParameters(p domain.Params) error
	SetOptions(opts map[string]string) error
	Initialize() error
	SetInputs(row domain.InputRow) error
	AdvanceRow() error
	// ReadOutputs returns the current value of each requested output the
	// kernel knows. Unknown names are left out of the result.
	ReadOutputs(names []string) (map[string]float64, error)
}

// Factory builds a fresh kernel for one run.
type Factory func() Kernel

var (
	ErrNotInitialized = errors.New("kernel not initialized")
	ErrNoInputs       = errors.New("kernel inputs not set")
)

const (
	aot40Threshold    = 40.0 // ppb
	daylightRadiation = 50.0 // W/m2
	hoursPerDay       = 24.0
)

// Reference is a kernel that passes its inputs through and keeps running
// totals that need no plant physiology: row index, thermal time, growing
// season membership and daylight AOT40 inside the growing season.
type Reference struct {
	inputs  []string
	params  domain.Params
	options map[string]string

	ready   bool
	current map[string]float64
	pending bool

	rowIndex float64
	td       float64
	aot40    float64
	isGS     float64
	sgs, egs float64
}

// NewReference returns a reference kernel expecting rows with exactly the
// given input fields.
func NewReference(inputs []string) *Reference {
	return &Reference{inputs: append([]string(nil), inputs...)}
}

// ReferenceFactory returns a Factory building reference kernels for inputs.
func ReferenceFactory(inputs []string) Factory {
	return func() Kernel { return NewReference(inputs) }
}

func (k *Reference) SetParameters(p domain.Params) error {
	k.params = p.Clone()
	k.ready = false
	return nil
}

func (k *Reference) SetOptions(opts map[string]string) error {
	k.options = maps.Clone(opts)
	k.ready = false
	return nil
}

// Options returns the options the kernel was configured with.
func (k *Reference) Options() map[string]string { return k.options }

func (k *Reference) Initialize() error {
	if k.params == nil {
		return fmt.Errorf("initialize: %w: parameters not set", ErrNotInitialized)
	}
	k.sgs, k.egs = 1, 366
	if v, ok := k.params.Float("sgs"); ok {
		k.sgs = v
	}
	if v, ok := k.params.Float("egs"); ok {
		k.egs = v
	}
	k.rowIndex, k.td, k.aot40, k.isGS = 0, 0, 0, 0
	k.current = nil
	k.pending = false
	k.ready = true
	return nil
}

func (k *Reference) SetInputs(row domain.InputRow) error {
	if !k.ready {
		return ErrNotInitialized
	}
	if len(row.Values) != len(k.inputs) {
		return &domain.InvalidFieldCountError{Row: row.Line, Got: len(row.Values), Expected: len(k.inputs)}
	}
	k.current = make(map[string]float64, len(k.inputs))
	for i, name := range k.inputs {
		k.current[name] = row.Values[i]
	}
	k.pending = true
	return nil
}

func (k *Reference) AdvanceRow() error {
	if !k.ready {
		return ErrNotInitialized
	}
	if !k.pending {
		return ErrNoInputs
	}
	k.pending = false
	k.rowIndex++

	if t, ok := k.current["ts_c"]; ok {
		k.td += math.Max(t, 0) / hoursPerDay
	}
	k.isGS = 0
	if dd, ok := k.current["dd"]; ok && dd >= k.sgs && dd <= k.egs {
		k.isGS = 1
	}
	if o3, ok := k.current["o3"]; ok && k.isGS == 1 {
		r, hasR := k.current["r"]
		if !hasR || r > daylightRadiation {
			k.aot40 += math.Max(0, o3-aot40Threshold)
		}
	}
	return nil
}

func (k *Reference) ReadOutputs(names []string) (map[string]float64, error) {
	if !k.ready {
		return nil, ErrNotInitialized
	}
	out := make(map[string]float64, len(names))
	for _, name := range names {
		switch name {
		case "row_index":
			out[name] = k.rowIndex
		case "td":
			out[name] = k.td
		case "aot40":
			out[name] = k.aot40
		case "is_gs":
			out[name] = k.isGS
		default:
			if v, ok := k.current[name]; ok {
				out[name] = v
			}
		}
	}
	return out, nil
}
