package pipeline

import (
	"maps"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/driver"
)

// Reducer turns a finished run into a summary.
type Reducer func(key string, rs *driver.Resultset) domain.RunSummary

// Summarize is the default Reducer. For every output it reports the final
// value under the output's name plus "<name>_max" and "<name>_mean".
func Summarize(key string, rs *driver.Resultset) domain.RunSummary {
	names := make(map[string]struct{})
	for _, row := range rs.Rows {
		for name := range row {
			names[name] = struct{}{}
		}
	}

	values := make(map[string]float64, 3*len(names))
	for _, name := range slices.Sorted(maps.Keys(names)) {
		col := rs.Column(name)
		if len(col) == 0 {
			continue
		}
		values[name] = col[len(col)-1]
		values[name+"_max"] = floats.Max(col)
		values[name+"_mean"] = floats.Sum(col) / float64(len(col))
	}

	return domain.RunSummary{
		Key:         key,
		Values:      values,
		Rows:        len(rs.Rows),
		Skipped:     rs.Skipped,
		ProcessedAt: domain.Now(),
	}
}
