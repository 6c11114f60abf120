// Package raster owns the single-band grid type every pipeline stage reads
// and writes, together with the cell-wise arithmetic, resampling, tiling and
// ESRI ASCII I/O built on it.
//
// Grids are north-up: row 0 is the northern edge and OriginX/OriginY locate
// the upper-left corner of cell (0,0) in map units.
package raster
