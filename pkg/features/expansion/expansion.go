// Package expansion tracks which rows are expanded.
//
// Bulk operations act on the rows the feature has observed; they never ask
// for rows that are not loaded yet.
package expansion

import (
	"sync"

	"github.com/vango-dev/datatable/pkg/table"
)

// Config configures an expansion Feature.
type Config struct {
	Enabled bool
	Initial table.ExpandedState

	// OnExpanded receives the ids that became expanded in one change.
	OnExpanded func(ids []string)
	OnChange   func()
}

// Feature is the expansion state of one table. It is generic over the row
// type only to observe rows.
type Feature[T any] struct {
	cfg Config

	mu    sync.Mutex
	state table.ExpandedState
	rows  []*table.Row[T]
}

// New creates the feature.
func New[T any](cfg Config) *Feature[T] {
	return &Feature[T]{cfg: cfg, state: clean(cfg.Initial)}
}

// clean drops false entries so that state equality is set equality.
func clean(s table.ExpandedState) table.ExpandedState {
	out := make(table.ExpandedState, len(s))
	for id, on := range s {
		if on {
			out[id] = true
		}
	}
	return out
}

// Enabled reports whether the feature contributes a runtime.
func (f *Feature[T]) Enabled() bool { return f.cfg.Enabled }

// ObserveRows records the known row structure.
func (f *Feature[T]) ObserveRows(rows []*table.Row[T], _ int) {
	f.mu.Lock()
	f.rows = rows
	f.mu.Unlock()
}

// State returns the expanded set.
func (f *Feature[T]) State() table.ExpandedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return table.CloneMap(f.state)
}

// IsExpanded reports whether id is expanded.
func (f *Feature[T]) IsExpanded(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[id]
}

// OnExpandedChange replaces the expanded set.
func (f *Feature[T]) OnExpandedChange(u table.Updater[table.ExpandedState]) {
	f.mu.Lock()
	prev := f.state
	next := clean(u.Apply(table.CloneMap(prev)))
	var opened []string
	for id := range next {
		if !prev[id] {
			opened = append(opened, id)
		}
	}
	changed := len(opened) > 0 || len(next) != len(prev)
	f.state = next
	f.mu.Unlock()

	if !changed {
		return
	}
	if f.cfg.OnChange != nil {
		f.cfg.OnChange()
	}
	if len(opened) > 0 && f.cfg.OnExpanded != nil {
		f.cfg.OnExpanded(opened)
	}
}

func (f *Feature[T]) set(id string, fn func(bool) bool) {
	f.OnExpandedChange(table.Update(func(prev table.ExpandedState) table.ExpandedState {
		prev[id] = fn(prev[id])
		return prev
	}))
}

// ExpandRow expands one row.
func (f *Feature[T]) ExpandRow(id string) {
	f.set(id, func(bool) bool { return true })
}

// CollapseRow collapses one row.
func (f *Feature[T]) CollapseRow(id string) {
	f.set(id, func(bool) bool { return false })
}

// ToggleRowExpanded flips one row.
func (f *Feature[T]) ToggleRowExpanded(id string) {
	f.set(id, func(on bool) bool { return !on })
}

// ExpandAll expands every observed row that has children.
func (f *Feature[T]) ExpandAll() {
	f.ExpandToDepth(-1)
}

// CollapseAll collapses everything.
func (f *Feature[T]) CollapseAll() {
	f.OnExpandedChange(table.Set(table.ExpandedState{}))
}

// ExpandToDepth expands every observed row with children whose depth is at
// most depth, and collapses the rest. A negative depth means no limit.
func (f *Feature[T]) ExpandToDepth(depth int) {
	f.mu.Lock()
	next := make(table.ExpandedState)
	for _, row := range f.rows {
		if len(row.SubRows) == 0 {
			continue
		}
		if depth < 0 || row.Depth <= depth {
			next[row.ID] = true
		}
	}
	f.mu.Unlock()

	f.OnExpandedChange(table.Set(next))
}

// Reset restores the initial expanded set.
func (f *Feature[T]) Reset() {
	f.OnExpandedChange(table.Set(clean(f.cfg.Initial)))
}

// Runtime returns the patch for the table.
func (f *Feature[T]) Runtime() table.Runtime[T] {
	rt := table.Runtime[T]{Name: "expansion"}
	if !f.cfg.Enabled {
		return rt
	}
	rt.Options.Expanded = f.State()
	rt.Options.OnExpandedChange = f.OnExpandedChange
	rt.Actions.ExpandRow = f.ExpandRow
	rt.Actions.CollapseRow = f.CollapseRow
	rt.Actions.ToggleRowExpanded = f.ToggleRowExpanded
	rt.Actions.ExpandAll = f.ExpandAll
	rt.Actions.CollapseAll = f.CollapseAll
	rt.Actions.ExpandToDepth = f.ExpandToDepth
	rt.Reset = f.Reset
	return rt
}
