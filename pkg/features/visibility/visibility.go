// Package visibility persists which columns are shown.
//
// Hideable columns default to visible unless marked DefaultHidden. Columns
// that cannot be hidden are always visible, whatever was stored.
package visibility

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vango-dev/datatable/pkg/pref"
	"github.com/vango-dev/datatable/pkg/table"
)

// Config configures a visibility Feature. An empty StorageKey disables it.
type Config struct {
	StorageKey    string
	Storage       pref.Storage[table.VisibilityState]
	SchemaVersion int
	Migrate       pref.Migration[table.VisibilityState]
	Columns       []table.ColumnDef

	OnChange func()
	Logger   *slog.Logger
}

// Feature is the column visibility preference.
type Feature struct {
	ctl *pref.Controller[table.VisibilityState]

	mu      sync.RWMutex
	columns []table.ColumnDef
}

// New creates the feature. With no StorageKey or Storage it returns a
// disabled feature that contributes nothing.
func New(cfg Config) *Feature {
	f := &Feature{columns: cfg.Columns}
	if cfg.StorageKey == "" || cfg.Storage == nil {
		return f
	}
	f.ctl = pref.NewController(pref.Config[table.VisibilityState]{
		Key:           cfg.StorageKey,
		Storage:       cfg.Storage,
		SchemaVersion: cfg.SchemaVersion,
		Migrate:       cfg.Migrate,
		Defaults:      f.defaults,
		Merge:         f.merge,
		Equal:         table.EqualMap[table.VisibilityState],
		OnChange:      cfg.OnChange,
		Logger:        cfg.Logger,
	})
	return f
}

// Enabled reports whether the feature persists anything.
func (f *Feature) Enabled() bool { return f.ctl != nil }

// Controller exposes the underlying preference, for remote sync.
func (f *Feature) Controller() *pref.Controller[table.VisibilityState] { return f.ctl }

func (f *Feature) defaults() table.VisibilityState {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(table.VisibilityState, len(f.columns))
	for _, c := range f.columns {
		out[c.ID] = !c.Hideable() || !c.DefaultHidden
	}
	return out
}

func (f *Feature) merge(defaults, stored table.VisibilityState) table.VisibilityState {
	f.mu.RLock()
	locked := make(map[string]bool, len(f.columns))
	for _, c := range f.columns {
		locked[c.ID] = !c.Hideable()
	}
	f.mu.RUnlock()

	return pref.MergeRecord(defaults, stored, func(id string, v bool) bool {
		return v || locked[id]
	})
}

// SetColumns replaces the column definitions and re-merges the preference.
func (f *Feature) SetColumns(cols []table.ColumnDef) {
	f.mu.Lock()
	f.columns = cols
	f.mu.Unlock()
	if f.ctl != nil {
		f.ctl.Refresh()
	}
}

// State returns the merged visibility.
func (f *Feature) State() table.VisibilityState {
	if f.ctl == nil {
		return nil
	}
	return table.CloneMap(f.ctl.Value())
}

// OnColumnVisibilityChange applies a user change.
func (f *Feature) OnColumnVisibilityChange(u table.Updater[table.VisibilityState]) {
	if f.ctl == nil {
		return
	}
	f.ctl.Update(func(prev table.VisibilityState) table.VisibilityState {
		return u.Apply(table.CloneMap(prev))
	})
}

// Reset restores defaults and clears the stored preference.
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
	rt := table.Runtime[T]{Name: "columnVisibility"}
	if f.ctl == nil {
		return rt
	}
	rt.Options.ColumnVisibility = f.State()
	rt.Options.OnColumnVisibilityChange = f.OnColumnVisibilityChange
	rt.Actions.ResetColumnVisibility = f.Reset
	rt.Activity.PreferencesReady = table.Bool(f.ctl.Ready())
	rt.Reset = f.Reset
	return rt
}
