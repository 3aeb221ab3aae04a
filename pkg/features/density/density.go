// Package density persists the row spacing of a table.
package density

import (
	"context"
	"log/slog"

	"github.com/vango-dev/datatable/pkg/pref"
	"github.com/vango-dev/datatable/pkg/table"
)

// RowHeight is the suggested row height in pixels for each density.
var RowHeight = map[table.Density]int{
	table.DensityCompact:     32,
	table.DensityStandard:    40,
	table.DensityComfortable: 52,
}

// Valid reports whether d is a known density.
func Valid(d table.Density) bool {
	_, ok := RowHeight[d]
	return ok
}

// Config configures a density Feature. An empty StorageKey disables it.
type Config struct {
	StorageKey    string
	Storage       pref.Storage[table.Density]
	SchemaVersion int
	Migrate       pref.Migration[table.Density]
	Default       table.Density // default DensityStandard

	OnChange func()
	Logger   *slog.Logger
}

// Feature is the density preference.
type Feature struct {
	ctl *pref.Controller[table.Density]
	def table.Density
}

// New creates the feature. With no StorageKey or Storage it returns a
// disabled feature.
func New(cfg Config) *Feature {
	def := cfg.Default
	if !Valid(def) {
		def = table.DensityStandard
	}
	f := &Feature{def: def}
	if cfg.StorageKey == "" || cfg.Storage == nil {
		return f
	}
	f.ctl = pref.NewController(pref.Config[table.Density]{
		Key:           cfg.StorageKey,
		Storage:       cfg.Storage,
		SchemaVersion: cfg.SchemaVersion,
		Migrate:       cfg.Migrate,
		Defaults:      func() table.Density { return def },
		Merge: func(defaults, stored table.Density) table.Density {
			if Valid(stored) {
				return stored
			}
			return defaults
		},
		Equal:    func(a, b table.Density) bool { return a == b },
		OnChange: cfg.OnChange,
		Logger:   cfg.Logger,
	})
	return f
}

// Enabled reports whether the feature persists anything.
func (f *Feature) Enabled() bool { return f.ctl != nil }

// Controller exposes the underlying preference.
func (f *Feature) Controller() *pref.Controller[table.Density] { return f.ctl }

// Density returns the current density; a disabled feature reports the default.
func (f *Feature) Density() table.Density {
	if f.ctl == nil {
		return f.def
	}
	return f.ctl.Value()
}

// SetDensity applies a user choice. Unknown densities are ignored.
func (f *Feature) SetDensity(d table.Density) {
	if f.ctl == nil || !Valid(d) {
		return
	}
	f.ctl.Set(d)
}

// Reset restores the default and clears the stored preference.
func (f *Feature) Reset() {
	if f.ctl != nil {
		f.ctl.Reset()
	}
}

// Load runs the asynchronous initial load.
func (f *Feature) Load(ctx context.Context) {
	if f.ctl != nil {
		f.ctl.Load(ctx)
	}
}

// Close discards loads still in flight.
func (f *Feature) Close() {
	if f.ctl != nil {
		f.ctl.Close()
	}
}

// Flush waits for queued writes.
func (f *Feature) Flush() {
	if f.ctl != nil {
		f.ctl.Flush()
	}
}

// Runtime returns the patch for the table.
func Runtime[T any](f *Feature) table.Runtime[T] {
	rt := table.Runtime[T]{Name: "density"}
	if f.ctl == nil {
		return rt
	}
	d := f.Density()
	rt.Options.Density = &d
	rt.Actions.ResetDensity = f.Reset
	rt.Actions.SetDensity = f.SetDensity
	rt.Activity.PreferencesReady = table.Bool(f.ctl.Ready())
	rt.Reset = f.Reset
	return rt
}
