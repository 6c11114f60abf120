// Package sqlite contains SQLite repository implementations for run
// records, classified objects and scratch rasters.
//
// Stores take a *sql.DB opened by internal/db; all SQL lives here so the
// pipeline packages stay storage-agnostic.
package sqlite
