// Package distributed plans every (parameter file, input file) run and
// executes the plan on a bounded pool of workers.
package distributed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/couchcryptid/do3se-driver/internal/domain"
)

// CoordinateMap maps "<x>_<y>" to [lat, lon, elevation].
type CoordinateMap map[string][3]float64

// LoadCoordinateMap reads a coordinate map from a JSON file.
func LoadCoordinateMap(path string) (CoordinateMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coordinate map: %w", err)
	}
	var m CoordinateMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse coordinate map %s: %w", path, err)
	}
	return m, nil
}

// Plan is the persisted list of runs.
type Plan struct {
	Runs []domain.RunArguments `json:"runs"`
}

// NewPlan builds one run per parameter file and input file pair. Outputs go
// to <outDir>/<config>/<input>.csv, where config and input are file stems.
// Stems shared by several paths get a "-<n>" suffix in argument order so
// every run writes its own file. When coords is non-nil and an input's file
// name contains a known "<x>_<y>", the cell's lat, lon and elev are added to
// that run's overrides.
func NewPlan(configs, inputs []string, outDir string, opts domain.RunOptions, coords CoordinateMap) *Plan {
	plan := &Plan{Runs: make([]domain.RunArguments, 0, len(configs)*len(inputs))}
	cfgNames, inNames := uniqueStems(configs), uniqueStems(inputs)
	for i, cfg := range configs {
		for j, in := range inputs {
			runOpts := opts
			runOpts.Overrides = opts.Overrides.Clone()
			if loc, ok := lookupCoordinates(in, coords); ok {
				runOpts.Overrides["lat"] = loc[0]
				runOpts.Overrides["lon"] = loc[1]
				runOpts.Overrides["elev"] = loc[2]
			}
			plan.Runs = append(plan.Runs, domain.RunArguments{
				ID:         uuid.NewString(),
				ConfigPath: cfg,
				InputPath:  in,
				OutputPath: filepath.Join(outDir, cfgNames[i], inNames[j]+".csv"),
				Options:    runOpts,
			})
		}
	}
	return plan
}

func lookupCoordinates(input string, coords CoordinateMap) ([3]float64, bool) {
	if coords == nil {
		return [3]float64{}, false
	}
	c, ok := domain.CoordinateFromName(filepath.Base(input))
	if !ok {
		return [3]float64{}, false
	}
	loc, ok := coords[c.Key()]
	return loc, ok
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// uniqueStems returns one distinct name per path: the file stem, suffixed
// with "-<n>" when several paths share it.
func uniqueStems(paths []string) []string {
	count := make(map[string]int, len(paths))
	for _, p := range paths {
		count[stem(p)]++
	}
	used := make(map[string]bool, len(paths))
	for _, p := range paths {
		if s := stem(p); count[s] == 1 {
			used[s] = true
		}
	}

	next := make(map[string]int)
	out := make([]string, len(paths))
	for i, p := range paths {
		s := stem(p)
		if count[s] == 1 {
			out[i] = s
			continue
		}
		for {
			next[s]++
			name := fmt.Sprintf("%s-%d", s, next[s])
			if !used[name] {
				used[name] = true
				out[i] = name
				break
			}
		}
	}
	return out
}

// Validate reports an error when two runs share an output file.
func (p *Plan) Validate() error {
	seen := make(map[string]string, len(p.Runs))
	for _, r := range p.Runs {
		if r.OutputPath == "" {
			continue
		}
		out := filepath.Clean(r.OutputPath)
		if id, ok := seen[out]; ok {
			return fmt.Errorf("runs %s and %s both write %s", id, r.ID, out)
		}
		seen[out] = r.ID
	}
	return nil
}

// SavePlan writes plan to path as JSON.
func SavePlan(path string, plan *Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	return nil
}

// LoadPlan reads a plan written by SavePlan.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return &plan, nil
}
