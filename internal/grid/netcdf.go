package grid

import (
	"fmt"
	"math"
	"os"
	"slices"
	"sync"

	"github.com/ctessum/cdf"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/do3se-driver/internal/observability"
)

// Variable is one fully read NetCDF variable, stored row-major as float64.
// Fill values are NaN.
type Variable struct {
	Name  string
	Dims  []string
	Shape []int
	Data  []float64
	Units string
}

// At returns the element at the given index, one position per dimension.
func (v *Variable) At(idx ...int) float64 {
	off := 0
	for i, n := range v.Shape {
		off = off*n + idx[i]
	}
	return v.Data[off]
}

// Series returns the time series of a (time, y, x) variable at cell (x, y).
func (v *Variable) Series(x, y int) ([]float64, error) {
	if len(v.Shape) != 3 {
		return nil, fmt.Errorf("variable %s: series needs 3 dimensions, has %d", v.Name, len(v.Shape))
	}
	nt, ny, nx := v.Shape[0], v.Shape[1], v.Shape[2]
	if x < 0 || x >= nx || y < 0 || y >= ny {
		return nil, fmt.Errorf("variable %s: cell %d_%d outside %dx%d grid", v.Name, x, y, nx, ny)
	}
	out := make([]float64, nt)
	for t := range nt {
		out[t] = v.Data[(t*ny+y)*nx+x]
	}
	return out, nil
}

// Cell returns the value of a (y, x) variable at cell (x, y).
func (v *Variable) Cell(x, y int) (float64, error) {
	if len(v.Shape) != 2 {
		return 0, fmt.Errorf("variable %s: cell value needs 2 dimensions, has %d", v.Name, len(v.Shape))
	}
	ny, nx := v.Shape[0], v.Shape[1]
	if x < 0 || x >= nx || y < 0 || y >= ny {
		return 0, fmt.Errorf("variable %s: cell %d_%d outside %dx%d grid", v.Name, x, y, nx, ny)
	}
	return v.Data[y*nx+x], nil
}

// Dataset is an open NetCDF file whose variables are read on first access
// and kept in an LRU cache. It is safe for concurrent use.
type Dataset struct {
	path    string
	file    *os.File
	nc      *cdf.File
	mu      sync.Mutex // serializes reads from nc
	cache   *lru.Cache[string, *Variable]
	pinned  map[string]*Variable
	metrics *observability.Metrics
}

// OpenDataset opens path for lazy reading. metrics may be nil.
func OpenDataset(path string, cacheSize int, metrics *observability.Metrics) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read netcdf header %s: %w", path, err)
	}
	cache, err := lru.New[string, *Variable](cacheSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create variable cache: %w", err)
	}
	return &Dataset{path: path, file: f, nc: nc, cache: cache, metrics: metrics}, nil
}

// Path returns the file the dataset was opened from.
func (d *Dataset) Path() string { return d.path }

// Variables lists the variable names in the file.
func (d *Dataset) Variables() []string { return d.nc.Header.Variables() }

// Has reports whether the file has a variable called name.
func (d *Dataset) Has(name string) bool { return slices.Contains(d.Variables(), name) }

// Dims returns the dimension names of a variable without reading it.
func (d *Dataset) Dims(name string) []string { return d.nc.Header.Dimensions(name) }

// Var returns the named variable, reading it on first access.
func (d *Dataset) Var(name string) (*Variable, error) {
	if v, ok := d.pinned[name]; ok {
		return v, nil
	}
	if v, ok := d.cache.Get(name); ok {
		d.observeCache("hit")
		return v, nil
	}
	d.observeCache("miss")

	if !d.Has(name) {
		return nil, fmt.Errorf("%s: no variable %q", d.path, name)
	}
	v, err := d.read(name)
	if err != nil {
		return nil, err
	}
	d.cache.Add(name, v)
	return v, nil
}

// Precompute reads every variable up front and keeps them all in memory.
// It must be called before the dataset is shared between goroutines.
func (d *Dataset) Precompute() error {
	pinned := make(map[string]*Variable)
	for _, name := range d.Variables() {
		v, err := d.read(name)
		if err != nil {
			return err
		}
		pinned[name] = v
	}
	d.pinned = pinned
	return nil
}

// Close releases the underlying file.
func (d *Dataset) Close() error {
	d.cache.Purge()
	return d.file.Close()
}

func (d *Dataset) observeCache(result string) {
	if d.metrics != nil {
		d.metrics.GridCache.WithLabelValues(result).Inc()
	}
}

func (d *Dataset) read(name string) (*Variable, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.nc.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", name, d.path, err)
	}
	data, err := toFloat64(buf)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}

	v := &Variable{
		Name:  name,
		Dims:  d.nc.Header.Dimensions(name),
		Shape: d.nc.Header.Lengths(name),
		Data:  data,
	}
	if n := product(v.Shape); n != len(data) {
		return nil, fmt.Errorf("variable %s: dims are %d but array length is %d", name, n, len(data))
	}
	if u, ok := d.nc.Header.GetAttribute(name, "units").(string); ok {
		v.Units = u
	}
	if fill, ok := fillValue(d.nc.Header.GetAttribute(name, "_FillValue")); ok {
		for i, x := range v.Data {
			if x == fill {
				v.Data[i] = math.NaN()
			}
		}
	}
	return v, nil
}

func fillValue(attr any) (float64, bool) {
	switch t := attr.(type) {
	case []float64:
		if len(t) > 0 {
			return t[0], true
		}
	case []float32:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	}
	return 0, false
}

func toFloat64(buf any) ([]float64, error) {
	switch t := buf.(type) {
	case []float64:
		return t, nil
	case []float32:
		return widen(t), nil
	case []int32:
		return widen(t), nil
	case []int16:
		return widen(t), nil
	case []int8:
		return widen(t), nil
	default:
		return nil, fmt.Errorf("unsupported element type %T", buf)
	}
}

func widen[T float32 | int32 | int16 | int8](xs []T) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// WriteFile writes vars as double-precision variables to a new NetCDF file.
// Each variable's Data must match the lengths of its dimensions.
func WriteFile(path string, dims []string, lengths []int, vars []*Variable, attrs map[string]string) (err error) {
	h := cdf.NewHeader(dims, lengths)
	for _, k := range sortedKeys(attrs) {
		h.AddAttribute("", k, attrs[k])
	}
	for _, v := range vars {
		h.AddVariable(v.Name, v.Dims, []float64{0})
		if v.Units != "" {
			h.AddAttribute(v.Name, "units", v.Units)
		}
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create netcdf: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close netcdf: %w", cerr)
		}
	}()

	nc, err := cdf.Create(f, h)
	if err != nil {
		return fmt.Errorf("write netcdf header %s: %w", path, err)
	}
	for _, v := range vars {
		end := nc.Header.Lengths(v.Name)
		if n := product(end); n != len(v.Data) {
			return fmt.Errorf("variable %s: dims are %d but array length is %d", v.Name, n, len(v.Data))
		}
		start := make([]int, len(end))
		if _, err := nc.Writer(v.Name, start, end).Write(v.Data); err != nil {
			return fmt.Errorf("write variable %s: %w", v.Name, err)
		}
	}
	return cdf.UpdateNumRecs(f)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
