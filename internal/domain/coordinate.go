package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// coordKeyRe matches "<x>_<y>" anywhere in a string, e.g. "met_12_40.csv".
var coordKeyRe = regexp.MustCompile(`(\d+)_(\d+)`)

// Coordinate is an integer (x, y) grid index pair.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SentinelCoordinate marks a padding slot that holds no grid cell.
var SentinelCoordinate = Coordinate{X: -1, Y: -1}

// IsSentinel reports whether c is the padding sentinel.
func (c Coordinate) IsSentinel() bool { return c == SentinelCoordinate }

// Key renders c as "<x>_<y>".
func (c Coordinate) Key() string { return fmt.Sprintf("%d_%d", c.X, c.Y) }

// CoordinateFromName extracts the last "<x>_<y>" pair from a file name.
func CoordinateFromName(name string) (Coordinate, bool) {
	all := coordKeyRe.FindAllStringSubmatch(name, -1)
	if len(all) == 0 {
		return Coordinate{}, false
	}
	m := all[len(all)-1]
	x, errX := strconv.Atoi(m[1])
	y, errY := strconv.Atoi(m[2])
	if errX != nil || errY != nil {
		return Coordinate{}, false
	}
	return Coordinate{X: x, Y: y}, true
}

// Location is a cell's geographic position and elevation.
type Location struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Elevation float64 `json:"elevation"`
}
