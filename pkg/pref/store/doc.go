// Package store provides byte-level backends for preference persistence.
//
// Every backend implements pref.RawStorage and is wrapped with pref.JSON to
// obtain a typed pref.Storage:
//
//	raw := store.NewMemory()
//	visibility := pref.JSON[table.VisibilityState](raw)
//
// Backends:
//   - Memory: in-process map, readable synchronously (no first-render flicker)
//   - File: one JSON file per key, written atomically, readable synchronously
//   - Postgres: one row per key in a JSONB table
//   - S3: one object per key
//   - HTTP: a remote preference service (see package prefhttp)
//
// Open builds a backend from the engine configuration.
package store

import "github.com/vango-dev/datatable/internal/errors"

// errClosed is returned when operations are attempted on a closed store.
func errClosed(key string) error {
	return errors.New("DT014").WithSubject(key)
}
