package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Value is a numeric parameter that may be disabled in favour of a derived default.
type Value struct {
	Value    float64 `json:"value"`
	Disabled bool    `json:"disabled"`
}

// Params is a parameter store keyed by parameter name. Values are float64,
// string, bool or Value.
type Params map[string]any

// Clone returns a shallow copy of p. A nil receiver yields an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)
	return out
}

// Merge returns a copy of p with every entry of other applied on top.
func (p Params) Merge(other Params) Params {
	out := p.Clone()
	maps.Copy(out, other)
	return out
}

// Pop removes key from p and returns its previous value.
func (p Params) Pop(key string) (any, bool) {
	v, ok := p[key]
	if ok {
		delete(p, key)
	}
	return v, ok
}

// Float returns the numeric value of key. Numeric strings are accepted; an
// enabled Value pair yields its value.
func (p Params) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	return AsFloat(v)
}

// String returns the value of key rendered as a string.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

// Bool reports whether key is set to a truthy value.
func (p Params) Bool(key string) bool {
	switch t := p[key].(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	default:
		f, ok := AsFloat(t)
		return ok && f != 0
	}
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// UnmarshalJSON decodes a JSON object, converting each entry with ParseValue.
func (p *Params) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Params, len(raw))
	for k, v := range raw {
		pv, err := ParseValue(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		out[k] = pv
	}
	*p = out
	return nil
}

// ParseValue converts a raw decoded parameter (from JSON or YAML) into the
// representation Params expects. Objects with a "value" or "disabled" key
// become Value pairs.
func ParseValue(raw any) (any, error) {
	switch t := raw.(type) {
	case map[string]any:
		var v Value
		if d, ok := t["disabled"]; ok {
			b, isBool := d.(bool)
			if !isBool {
				return nil, fmt.Errorf("parse value: disabled must be a boolean, got %T", d)
			}
			v.Disabled = b
		}
		if x, ok := t["value"]; ok && x != nil {
			f, isNum := AsFloat(x)
			if !isNum {
				return nil, fmt.Errorf("parse value: value must be numeric, got %v", x)
			}
			v.Value = f
		}
		return v, nil
	case Value, bool, string, float64:
		return t, nil
	default:
		if f, ok := AsFloat(t); ok {
			return f, nil
		}
		return nil, fmt.Errorf("parse value: unsupported type %T", raw)
	}
}

// AsFloat converts a numeric parameter value to float64.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case Value:
		if t.Disabled {
			return 0, false
		}
		return t.Value, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
