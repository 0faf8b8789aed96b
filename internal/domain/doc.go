// Package domain models the inputs, parameters and results of point-wise
// ozone deposition model runs.
//
// # Input Rows
//
// Model input is hourly. Each row carries at least the day of year ("dd",
// 1..366) and the hour ("hr", 0..23) followed by meteorology and ozone
// concentration:
//
//	dd, hr, ts_c, vpd, uh_zr, precip, p, o3, r
//
// Units follow the kernel's conventions: temperature in degrees Celsius,
// vapour pressure deficit in kPa, wind speed in m/s, precipitation in mm,
// pressure in kPa, ozone in ppb and global radiation in W/m2.
//
// A missing value is stored as NaN. Rows containing NaN are skipped by the
// driver and counted, never passed to the kernel.
//
// # Parameters
//
// A [Params] map holds numbers, strings, booleans and [Value] pairs. A Value
// pair with Disabled set means "derive this from another parameter"; canopy
// measurement heights use it to fall back to the target canopy height "h".
//
// Selector keys (those ending in "_method", plus "soil_tex") choose a
// calculation variant. Resolution consumes them; the kernel never sees a
// selector key.
//
// # Grid Coordinates
//
// Grid cells are addressed by integer (x, y) indexes into the source arrays.
// The pair (-1, -1) is the sentinel meaning "no cell" and is used only to pad
// coordinate batches to a uniform shape. Files and coordinate maps encode a
// cell as "<x>_<y>", see [Coordinate.Key].
//
// # Growing Season
//
// SGS and EGS are the start and end day of the growing season; Astart and
// Aend bound the ozone accumulation window used for leaf-level flux. When the
// thermal-time method is selected these are derived from accumulated daily
// mean temperature; otherwise they are taken from the parameters unchanged.
package domain
