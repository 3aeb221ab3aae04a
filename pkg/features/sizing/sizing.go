// Package sizing persists column widths.
//
// Stored widths are clamped to each column's [MinSize, MaxSize] on every
// merge, so narrowing a column's bounds takes effect on old preferences too.
// Columns that cannot be resized always use their default size.
package sizing

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vango-dev/datatable/pkg/pref"
	"github.com/vango-dev/datatable/pkg/table"
)

// Config configures a sizing Feature. An empty StorageKey disables it.
type Config struct {
	StorageKey    string
	Storage       pref.Storage[table.SizingState]
	SchemaVersion int
	Migrate       pref.Migration[table.SizingState]
	Columns       []table.ColumnDef

	OnChange func()
	Logger   *slog.Logger
}

// Feature is the column sizing preference.
type Feature struct {
	ctl *pref.Controller[table.SizingState]

	mu      sync.RWMutex
	columns map[string]table.ColumnDef
}

// New creates the feature. With no StorageKey or Storage it returns a
// disabled feature.
func New(cfg Config) *Feature {
	f := &Feature{}
	f.setColumns(cfg.Columns)
	if cfg.StorageKey == "" || cfg.Storage == nil {
		return f
	}
	f.ctl = pref.NewController(pref.Config[table.SizingState]{
		Key:           cfg.StorageKey,
		Storage:       cfg.Storage,
		SchemaVersion: cfg.SchemaVersion,
		Migrate:       cfg.Migrate,
		Defaults:      f.defaults,
		Merge:         f.merge,
		Equal:         table.EqualMap[table.SizingState],
		OnChange:      cfg.OnChange,
		Logger:        cfg.Logger,
	})
	return f
}

func (f *Feature) setColumns(cols []table.ColumnDef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columns = make(map[string]table.ColumnDef, len(cols))
	for _, c := range cols {
		f.columns[c.ID] = c
	}
}

// Enabled reports whether the feature persists anything.
func (f *Feature) Enabled() bool { return f.ctl != nil }

// Controller exposes the underlying preference.
func (f *Feature) Controller() *pref.Controller[table.SizingState] { return f.ctl }

func (f *Feature) defaults() table.SizingState {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(table.SizingState, len(f.columns))
	for id, c := range f.columns {
		size, _, _ := c.Bounds()
		out[id] = size
	}
	return out
}

func (f *Feature) merge(defaults, stored table.SizingState) table.SizingState {
	return pref.MergeRecord(defaults, stored, f.normalize)
}

// normalize clamps width to the column bounds.
func (f *Feature) normalize(id string, width int) int {
	f.mu.RLock()
	c, ok := f.columns[id]
	f.mu.RUnlock()
	if !ok {
		return width
	}
	size, lo, hi := c.Bounds()
	if !c.Resizable() {
		return size
	}
	return table.Clamp(width, lo, hi)
}

// SetColumns replaces the column definitions and re-merges the preference.
func (f *Feature) SetColumns(cols []table.ColumnDef) {
	f.setColumns(cols)
	if f.ctl != nil {
		f.ctl.Refresh()
	}
}

// State returns the merged widths.
func (f *Feature) State() table.SizingState {
	if f.ctl == nil {
		return nil
	}
	return table.CloneMap(f.ctl.Value())
}

// OnColumnSizingChange applies a user resize.
func (f *Feature) OnColumnSizingChange(u table.Updater[table.SizingState]) {
	if f.ctl == nil {
		return
	}
	f.ctl.Update(func(prev table.SizingState) table.SizingState {
		return u.Apply(table.CloneMap(prev))
	})
}

// Reset restores default widths and clears the stored preference.
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
	rt := table.Runtime[T]{Name: "columnSizing"}
	if f.ctl == nil {
		return rt
	}
	rt.Options.EnableColumnResizing = table.Bool(true)
	rt.Options.ColumnSizing = f.State()
	rt.Options.OnColumnSizingChange = f.OnColumnSizingChange
	rt.Actions.ResetColumnSizing = f.Reset
	rt.Activity.PreferencesReady = table.Bool(f.ctl.Ready())
	rt.Reset = f.Reset
	return rt
}
