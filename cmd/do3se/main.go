// Command do3se drives ozone deposition model runs: single CSV runs, gridded
// NetCDF runs and planned batches of independent runs.
//
// Usage:
//
//	do3se run params.json met.csv --output out.csv --fields +default
//	do3se validate met.csv --trim 1 --config params.json
//	do3se grid params.json input.nc e_state.nc --out results --mode reduce
//	do3se plan --config a.json --config b.json --out results --coords coords.json met/*.csv
//	do3se execute plan.json --workers 8 --resume
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
