package grid

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/observability"
)

const (
	testNX = 3
	testNY = 2
	testNT = 4
)

// fixture describes a small synthetic grid. Cell (x, y) has
// o3 = 40 + x + 10*y at every step, so AOT40 grows by x + 10*y per row.
type fixture struct {
	dir       string
	input     string
	overrides string
	// latShift moves one overrides cell off the input grid.
	latShift map[domain.Coordinate]float64
	// rPar sets r_par_method in the overrides grid.
	rPar map[domain.Coordinate]float64
	// dd replaces the day of year of each step; every step is day 1 when nil.
	dd []float64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		dir:       dir,
		input:     filepath.Join(dir, "input.nc"),
		overrides: filepath.Join(dir, "e_state.nc"),
		latShift:  map[domain.Coordinate]float64{},
		rPar:      map[domain.Coordinate]float64{},
	}
}

func latlon() (lat, lon []float64) {
	lat = make([]float64, testNY*testNX)
	lon = make([]float64, testNY*testNX)
	for y := range testNY {
		for x := range testNX {
			lat[y*testNX+x] = 50 + float64(y)
			lon[y*testNX+x] = float64(x) - 1
		}
	}
	return lat, lon
}

func (f *fixture) write(t *testing.T) {
	t.Helper()
	lat, lon := latlon()

	dd := make([]float64, testNT)
	hr := make([]float64, testNT)
	ts := make([]float64, testNT*testNY*testNX)
	o3 := make([]float64, testNT*testNY*testNX)
	for tt := range testNT {
		dd[tt] = 1
		if f.dd != nil {
			dd[tt] = f.dd[tt]
		}
		hr[tt] = float64(tt)
		for y := range testNY {
			for x := range testNX {
				i := (tt*testNY+y)*testNX + x
				ts[i] = 24
				o3[i] = 40 + float64(x) + 10*float64(y)
			}
		}
	}
	require.NoError(t, WriteFile(f.input,
		[]string{"time", "y", "x"}, []int{testNT, testNY, testNX},
		[]*Variable{
			{Name: "lat", Dims: []string{"y", "x"}, Data: lat, Units: "degrees_north"},
			{Name: "lon", Dims: []string{"y", "x"}, Data: lon, Units: "degrees_east"},
			{Name: "dd", Dims: []string{"time"}, Data: dd},
			{Name: "hr", Dims: []string{"time"}, Data: hr},
			{Name: "ts_c", Dims: []string{"time", "y", "x"}, Data: ts, Units: "C"},
			{Name: "o3", Dims: []string{"time", "y", "x"}, Data: o3, Units: "ppb"},
		},
		map[string]string{"title": "test input"}))

	olat := append([]float64(nil), lat...)
	elev := make([]float64, len(lat))
	rPar := make([]float64, len(lat))
	for y := range testNY {
		for x := range testNX {
			c := domain.Coordinate{X: x, Y: y}
			olat[y*testNX+x] += f.latShift[c]
			elev[y*testNX+x] = 100 * float64(x+1)
			rPar[y*testNX+x] = f.rPar[c]
		}
	}
	require.NoError(t, WriteFile(f.overrides,
		[]string{"y", "x"}, []int{testNY, testNX},
		[]*Variable{
			{Name: "lat", Dims: []string{"y", "x"}, Data: olat},
			{Name: "lon", Dims: []string{"y", "x"}, Data: lon},
			{Name: "elevation", Dims: []string{"y", "x"}, Data: elev, Units: "m"},
			{Name: "r_par", Dims: []string{"y", "x"}, Data: rPar},
		}, nil))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestDataset_RoundTrip(t *testing.T) {
	f := newFixture(t)
	f.write(t)

	metrics := observability.NewMetricsForTesting()
	ds, err := OpenDataset(f.input, 4, metrics)
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, f.input, ds.Path())
	assert.ElementsMatch(t, []string{"lat", "lon", "dd", "hr", "ts_c", "o3"}, ds.Variables())
	assert.True(t, ds.Has("o3"))
	assert.False(t, ds.Has("rh"))
	assert.Equal(t, []string{"time", "y", "x"}, ds.Dims("o3"))

	o3, err := ds.Var("o3")
	require.NoError(t, err)
	assert.Equal(t, []int{testNT, testNY, testNX}, o3.Shape)
	assert.Equal(t, "ppb", o3.Units)
	assert.InDelta(t, 52.0, o3.At(3, 1, 2), 0)

	series, err := o3.Series(2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{52, 52, 52, 52}, series)

	_, err = o3.Series(3, 0)
	require.Error(t, err)
	_, err = o3.Cell(0, 0)
	require.Error(t, err, "3-D variable has no single cell value")

	lat, err := ds.Var("lat")
	require.NoError(t, err)
	v, err := lat.Cell(2, 1)
	require.NoError(t, err)
	assert.InDelta(t, 51.0, v, 0)

	_, err = ds.Var("o3")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, counterValue(t, metrics.GridCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 2.0, counterValue(t, metrics.GridCache.WithLabelValues("miss")), 0)

	_, err = ds.Var("rh")
	require.Error(t, err)
}

func TestDataset_Precompute(t *testing.T) {
	f := newFixture(t)
	f.write(t)

	metrics := observability.NewMetricsForTesting()
	ds, err := OpenDataset(f.input, 1, metrics)
	require.NoError(t, err)
	defer ds.Close()

	require.NoError(t, ds.Precompute())
	for _, name := range ds.Variables() {
		_, err := ds.Var(name)
		require.NoError(t, err)
	}
	assert.Zero(t, counterValue(t, metrics.GridCache.WithLabelValues("miss")), "pinned variables bypass the cache")
}

func TestOpenDataset_Errors(t *testing.T) {
	_, err := OpenDataset(filepath.Join(t.TempDir(), "missing.nc"), 4, nil)
	require.Error(t, err)

	f := newFixture(t)
	f.write(t)
	_, err = OpenDataset(f.input, 0, nil)
	require.Error(t, err, "cache size must be positive")
}

func TestWriteFile_LengthMismatch(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "bad.nc"), []string{"x"}, []int{3},
		[]*Variable{{Name: "v", Dims: []string{"x"}, Data: []float64{1, 2}}}, nil)
	require.Error(t, err)
}

func TestFillValue(t *testing.T) {
	v, ok := fillValue([]float64{-999})
	assert.True(t, ok)
	assert.InDelta(t, -999.0, v, 0)

	v, ok = fillValue([]float32{1e20})
	assert.True(t, ok)
	assert.InDelta(t, float64(float32(1e20)), v, 0)

	_, ok = fillValue("n/a")
	assert.False(t, ok)
	_, ok = fillValue([]float64{})
	assert.False(t, ok)
}

func TestToFloat64(t *testing.T) {
	got, err := toFloat64([]int16{1, -2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2}, got)

	got, err = toFloat64([]float32{0.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, got)

	_, err = toFloat64("abc")
	require.Error(t, err)
	assert.Equal(t, 6, product([]int{2, 3}))
}
