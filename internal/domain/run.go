package domain

import "time"

// RunOptions are the flags that, with the paths in RunArguments, fully
// determine one run.
type RunOptions struct {
	Inputs            []string `json:"inputs,omitempty"`
	Fields            []string `json:"fields"`
	Headers           bool     `json:"headers"`
	GrowingSeasonOnly bool     `json:"growing_season_only,omitempty"`
	Trim              int      `json:"trim"`
	Overrides         Params   `json:"overrides,omitempty"`
}

// RunArguments describes one independent run. It is persisted so a plan can
// be replayed without planning again.
type RunArguments struct {
	ID         string     `json:"id"`
	ConfigPath string     `json:"config_path"`
	InputPath  string     `json:"input_path"`
	OutputPath string     `json:"output_path"`
	Options    RunOptions `json:"options"`
}

// RunSummary is a reduced view of a run, keyed by run or grid cell.
type RunSummary struct {
	Key         string             `json:"key"`
	Coord       *Coordinate        `json:"coord,omitempty"`
	Location    *Location          `json:"location,omitempty"`
	Values      map[string]float64 `json:"values"`
	Rows        int                `json:"rows"`
	Skipped     int                `json:"skipped"`
	ProcessedAt time.Time          `json:"processed_at"`
}
