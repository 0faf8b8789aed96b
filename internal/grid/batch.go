// Package grid runs the model over every cell of gridded NetCDF input.
//
// Cells are split into equally sized batches padded with the sentinel
// coordinate. Each batch is run by a Runner, which reads the cell time
// series lazily, checks it against the static overrides grid and sends the
// cell through the pipeline.
package grid

import (
	"fmt"

	"github.com/couchcryptid/do3se-driver/internal/domain"
)

// MakeBatches splits coords into batch_count = ceil(n/target) batches of
// batch_size = ceil(n/batch_count) coordinates. The tail of the last batch
// is padded with the sentinel coordinate so every batch has the same length.
func MakeBatches(coords []domain.Coordinate, target int) ([][]domain.Coordinate, error) {
	if target <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", target)
	}
	n := len(coords)
	if n == 0 {
		return nil, nil
	}

	count := ceilDiv(n, target)
	size := ceilDiv(n, count)

	batches := make([][]domain.Coordinate, count)
	for b := range batches {
		batch := make([]domain.Coordinate, size)
		for i := range batch {
			j := b*size + i
			if j < n {
				batch[i] = coords[j]
			} else {
				batch[i] = domain.SentinelCoordinate
			}
		}
		batches[b] = batch
	}
	return batches, nil
}

// Flatten joins batches back into one list, padding included.
func Flatten(batches [][]domain.Coordinate) []domain.Coordinate {
	var out []domain.Coordinate
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

// Real returns the coordinates of batch that are not padding.
func Real(batch []domain.Coordinate) []domain.Coordinate {
	out := make([]domain.Coordinate, 0, len(batch))
	for _, c := range batch {
		if !c.IsSentinel() {
			out = append(out, c)
		}
	}
	return out
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }
