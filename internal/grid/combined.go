package grid

import (
	"errors"
	"math"

	"github.com/couchcryptid/do3se-driver/internal/domain"
	"github.com/couchcryptid/do3se-driver/internal/driver"
)

// Combined collects the outputs of many cells for one NetCDF file with
// dimensions (row, cell). Cells with fewer rows are padded with NaN.
type Combined struct {
	Outputs []string
	Cells   []domain.Coordinate
	series  []map[string][]float64
}

// NewCombined returns an empty collection for the given outputs.
func NewCombined(outputs []string) *Combined {
	return &Combined{Outputs: outputs}
}

// Add appends the outputs of one cell.
func (c *Combined) Add(coord domain.Coordinate, rs *driver.Resultset) {
	s := make(map[string][]float64, len(c.Outputs))
	for _, name := range c.Outputs {
		col := make([]float64, len(rs.Rows))
		for i, row := range rs.Rows {
			v, ok := row[name]
			if !ok {
				v = math.NaN()
			}
			col[i] = v
		}
		s[name] = col
	}
	c.Cells = append(c.Cells, coord)
	c.series = append(c.series, s)
}

// Len returns the number of cells collected.
func (c *Combined) Len() int { return len(c.Cells) }

// Write stores the collection at path. Variables x and y hold the grid
// index of each cell. A NetCDF dimension of length zero is unlimited, so
// at least one cell is required and at least one row is written.
func (c *Combined) Write(path string) error {
	if len(c.Cells) == 0 {
		return errors.New("combined output has no cells")
	}
	rows := 1
	for _, s := range c.series {
		for _, col := range s {
			rows = max(rows, len(col))
		}
	}
	cells := len(c.Cells)

	xs := make([]float64, cells)
	ys := make([]float64, cells)
	for i, cell := range c.Cells {
		xs[i], ys[i] = float64(cell.X), float64(cell.Y)
	}
	vars := []*Variable{
		{Name: "x", Dims: []string{"cell"}, Data: xs},
		{Name: "y", Dims: []string{"cell"}, Data: ys},
	}

	for _, name := range c.Outputs {
		data := make([]float64, rows*cells)
		for i := range data {
			data[i] = math.NaN()
		}
		for j, s := range c.series {
			for r, v := range s[name] {
				data[r*cells+j] = v
			}
		}
		vars = append(vars, &Variable{Name: name, Dims: []string{"row", "cell"}, Data: data})
	}

	return WriteFile(path, []string{"row", "cell"}, []int{rows, cells}, vars,
		map[string]string{"title": "combined model output"})
}
