// Command genmock writes deterministic synthetic model inputs for local runs
// and tests: one hourly CSV per grid cell, a coordinate map, a gridded
// NetCDF input with its state overrides file, and a parameter file.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -nx 4 -ny 3 -days 365
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/fields"
	"github.com/couchcryptid/do3se-driver/internal/grid"
)

const (
	baseLat = 52.0
	baseLon = -1.5
	step    = 0.25
)

var baseTime = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory")
	nx := flag.Int("nx", 3, "grid cells in x")
	ny := flag.Int("ny", 2, "grid cells in y")
	days := flag.Int("days", 365, "days of hourly data")
	flag.Parse()

	if *out == "" || *nx <= 0 || *ny <= 0 || *days <= 0 {
		flag.Usage()
		return fmt.Errorf("missing or invalid flags: -out, -nx, -ny, -days")
	}

	// Set a fixed clock for reproducible file metadata.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	if err := os.MkdirAll(filepath.Join(*out, "met"), 0o755); err != nil {
		return err
	}

	g := newGen(*nx, *ny, *days)
	coords := make(map[string][3]float64, *nx**ny)
	for x := range *nx {
		for y := range *ny {
			c := domain.Coordinate{X: x, Y: y}
			path := filepath.Join(*out, "met", "met_"+c.Key()+".csv")
			if err := g.writeCSV(path, x, y); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			coords[c.Key()] = [3]float64{g.lat(y), g.lon(x), g.elevation(x, y)}
		}
	}
	log.Printf("wrote %d cell CSVs", *nx**ny)

	if err := writeJSON(filepath.Join(*out, "coords.json"), coords); err != nil {
		return fmt.Errorf("writing coordinate map: %w", err)
	}
	if err := g.writeInput(filepath.Join(*out, "input.nc")); err != nil {
		return fmt.Errorf("writing gridded input: %w", err)
	}
	if err := g.writeState(filepath.Join(*out, "e_state.nc")); err != nil {
		return fmt.Errorf("writing state overrides: %w", err)
	}
	params := map[string]any{
		"h":              1.0,
		"sgs":            100.0,
		"egs":            250.0,
		"soil_tex":       "medium",
		"sgs_egs_method": "static",
	}
	if err := writeJSON(filepath.Join(*out, "params.json"), params); err != nil {
		return fmt.Errorf("writing parameter file: %w", err)
	}
	log.Printf("wrote grid %dx%d, %d hours, to %s", *nx, *ny, g.hours(), *out)
	return nil
}

// gen produces smooth diurnal and seasonal cycles with small per-cell offsets.
type gen struct {
	nx, ny, days int
}

func newGen(nx, ny, days int) *gen { return &gen{nx: nx, ny: ny, days: days} }

func (g *gen) hours() int { return g.days * 24 }

func (g *gen) lat(y int) float64 { return baseLat + step*float64(y) }
func (g *gen) lon(x int) float64 { return baseLon + step*float64(x) }

func (g *gen) elevation(x, y int) float64 { return 50 + 25*float64(x) + 10*float64(y) }

func diurnal(h int) float64 { return math.Sin(2 * math.Pi * float64(h-9) / 24) }

func seasonal(d int) float64 { return math.Sin(2 * math.Pi * float64(d-110) / 365) }

// at returns the input fields for cell (x, y) at hour t from the start.
func (g *gen) at(x, y, t int) map[string]float64 {
	d, h := t/24+1, t%24
	ts := 12 + 8*seasonal(d) + 5*diurnal(h) - 0.5*float64(y) + 0.2*float64(x)
	rh := 70 - 20*diurnal(h)
	r := math.Max(0, 800*math.Sin(math.Pi*float64(h-6)/12))
	precip := 0.0
	if d%5 == 0 && h == 15 {
		precip = 2
	}
	return map[string]float64{
		"dd":     float64(d),
		"hr":     float64(h),
		"ts_c":   round(ts),
		"rh":     round(rh),
		"vpd":    round(grid.VPD(ts, rh)),
		"uh_zr":  3 + 0.1*float64(x),
		"precip": precip,
		"p":      101.3,
		"o3":     round(35 + 10*diurnal(h) + float64(x)),
		"r":      round(r),
	}
}

func round(v float64) float64 { return math.Round(v*1000) / 1000 }

func (g *gen) writeCSV(path string, x, y int) error {
	var b strings.Builder
	header := make([]string, len(fields.DefaultInputs))
	for i, name := range fields.DefaultInputs {
		header[i] = strconv.Quote(name)
	}
	b.WriteString(strings.Join(header, ",") + "\n")

	row := make([]string, len(fields.DefaultInputs))
	for t := range g.hours() {
		vals := g.at(x, y, t)
		for i, name := range fields.DefaultInputs {
			row[i] = strconv.FormatFloat(vals[name], 'g', -1, 64)
		}
		b.WriteString(strings.Join(row, ",") + "\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// gridVars are written to the NetCDF input; vpd is left for the processor to
// derive from rh.
var gridVars = []string{"ts_c", "rh", "uh_zr", "precip", "p", "o3", "r"}

func (g *gen) writeInput(path string) error {
	nt, cells := g.hours(), g.nx*g.ny
	lat, lon := g.latlon()

	hoursSince := make([]float64, nt)
	for t := range nt {
		hoursSince[t] = float64(t)
	}
	vars := []*grid.Variable{
		{Name: "time", Dims: []string{"time"}, Data: hoursSince, Units: "hours since " + baseTime.Format("2006-01-02 15:04:05")},
		{Name: "lat", Dims: []string{"y", "x"}, Data: lat, Units: "degrees_north"},
		{Name: "lon", Dims: []string{"y", "x"}, Data: lon, Units: "degrees_east"},
	}
	for _, name := range gridVars {
		data := make([]float64, nt*cells)
		for t := range nt {
			for y := range g.ny {
				for x := range g.nx {
					data[(t*g.ny+y)*g.nx+x] = g.at(x, y, t)[name]
				}
			}
		}
		v := &grid.Variable{Name: name, Dims: []string{"time", "y", "x"}, Data: data}
		if f, ok := fields.Input(name); ok {
			v.Units = f.Unit
		}
		vars = append(vars, v)
	}
	return grid.WriteFile(path, []string{"time", "y", "x"}, []int{nt, g.ny, g.nx}, vars, g.attrs("synthetic hourly input"))
}

func (g *gen) writeState(path string) error {
	lat, lon := g.latlon()
	elev := make([]float64, g.nx*g.ny)
	for y := range g.ny {
		for x := range g.nx {
			elev[y*g.nx+x] = g.elevation(x, y)
		}
	}
	vars := []*grid.Variable{
		{Name: "lat", Dims: []string{"y", "x"}, Data: lat},
		{Name: "lon", Dims: []string{"y", "x"}, Data: lon},
		{Name: "elevation", Dims: []string{"y", "x"}, Data: elev, Units: "m"},
	}
	return grid.WriteFile(path, []string{"y", "x"}, []int{g.ny, g.nx}, vars, g.attrs("synthetic state overrides"))
}

func (g *gen) latlon() (lat, lon []float64) {
	lat = make([]float64, g.nx*g.ny)
	lon = make([]float64, g.nx*g.ny)
	for y := range g.ny {
		for x := range g.nx {
			lat[y*g.nx+x] = g.lat(y)
			lon[y*g.nx+x] = g.lon(x)
		}
	}
	return lat, lon
}

func (g *gen) attrs(title string) map[string]string {
	return map[string]string{
		"title":   title,
		"created": domain.Now().Format(time.RFC3339),
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
