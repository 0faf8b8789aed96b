// Package paramfile reads parameter files and override files (JSON, YAML or
// TOML) into a parameter store.
package paramfile

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/viper"

	"github.com/couchcryptid/do3se-driver/internal/domain"
)

// Load reads each file in order; later files override earlier ones.
func Load(paths ...string) (domain.Params, error) {
	out := domain.Params{}
	for _, path := range paths {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read parameters %s: %w", path, err)
		}
		p, err := convert(v.AllSettings())
		if err != nil {
			return nil, fmt.Errorf("parameters %s: %w", path, err)
		}
		out = out.Merge(p)
	}
	return out, nil
}

// Decode reads parameters of the given format ("json", "yaml", ...) from r.
func Decode(r io.Reader, format string) (domain.Params, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	return convert(v.AllSettings())
}

func convert(settings map[string]any) (domain.Params, error) {
	p := make(domain.Params, len(settings))
	for _, k := range slices.Sorted(maps.Keys(settings)) {
		val, err := domain.ParseValue(settings[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		p[k] = val
	}
	return p, nil
}
