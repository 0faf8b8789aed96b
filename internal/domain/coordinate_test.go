package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinate_Key(t *testing.T) {
	assert.Equal(t, "12_40", Coordinate{X: 12, Y: 40}.Key())
	assert.True(t, SentinelCoordinate.IsSentinel())
	assert.False(t, Coordinate{}.IsSentinel())
}

func TestCoordinateFromName(t *testing.T) {
	tests := []struct {
		name string
		want Coordinate
		ok   bool
	}{
		{"met_12_40.csv", Coordinate{X: 12, Y: 40}, true},
		{"cell_3_7_v2.csv", Coordinate{X: 3, Y: 7}, true},
		{"/data/0_0/cell_5_6.csv", Coordinate{X: 5, Y: 6}, true},
		{"input.csv", Coordinate{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoordinateFromName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
