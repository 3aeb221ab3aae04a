// Package pinning keeps columns pinned to the left or right edge.
// Pinning is not persisted.
package pinning

import (
	"slices"
	"sync"

	"github.com/vango-dev/datatable/pkg/table"
)

// Config configures a pinning Feature.
type Config struct {
	Enabled bool
	// Initial overrides the pins declared on the columns.
	Initial *table.PinningState
	Columns []table.ColumnDef

	OnChange func()
}

// Feature tracks pinned columns.
type Feature struct {
	enabled  bool
	onChange func()

	mu       sync.Mutex
	initial  table.PinningState
	state    table.PinningState
	columnOK map[string]bool
}

// New creates the feature.
func New(cfg Config) *Feature {
	f := &Feature{enabled: cfg.Enabled, onChange: cfg.OnChange}
	f.columnOK = make(map[string]bool, len(cfg.Columns))
	for _, c := range cfg.Columns {
		f.columnOK[c.ID] = true
	}
	if cfg.Initial != nil {
		f.initial = f.normalize(*cfg.Initial)
	} else {
		f.initial = FromColumns(cfg.Columns)
	}
	f.state = clone(f.initial)
	return f
}

// FromColumns collects the pins declared on column definitions.
func FromColumns(cols []table.ColumnDef) table.PinningState {
	s := table.PinningState{Left: []string{}, Right: []string{}}
	for _, c := range cols {
		switch c.Pin {
		case table.PinLeft:
			s.Left = append(s.Left, c.ID)
		case table.PinRight:
			s.Right = append(s.Right, c.ID)
		}
	}
	return s
}

// normalize drops unknown and duplicate ids; left wins over right.
func (f *Feature) normalize(s table.PinningState) table.PinningState {
	seen := make(map[string]bool)
	keep := func(ids []string) []string {
		out := []string{}
		for _, id := range ids {
			if seen[id] || (len(f.columnOK) > 0 && !f.columnOK[id]) {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
		return out
	}
	return table.PinningState{Left: keep(s.Left), Right: keep(s.Right)}
}

func clone(s table.PinningState) table.PinningState {
	return table.PinningState{Left: slices.Clone(s.Left), Right: slices.Clone(s.Right)}
}

// State returns the current pins.
func (f *Feature) State() table.PinningState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.state)
}

// OnColumnPinningChange applies a change to the pins.
func (f *Feature) OnColumnPinningChange(u table.Updater[table.PinningState]) {
	f.mu.Lock()
	next := f.normalize(u.Apply(clone(f.state)))
	changed := !slices.Equal(next.Left, f.state.Left) || !slices.Equal(next.Right, f.state.Right)
	f.state = next
	f.mu.Unlock()

	if changed && f.onChange != nil {
		f.onChange()
	}
}

// Pin moves a column to side; PinNone unpins it.
func (f *Feature) Pin(id string, side table.PinSide) {
	f.OnColumnPinningChange(table.Update(func(prev table.PinningState) table.PinningState {
		prev.Left = slices.DeleteFunc(prev.Left, func(v string) bool { return v == id })
		prev.Right = slices.DeleteFunc(prev.Right, func(v string) bool { return v == id })
		switch side {
		case table.PinLeft:
			prev.Left = append(prev.Left, id)
		case table.PinRight:
			prev.Right = append(prev.Right, id)
		}
		return prev
	}))
}

// Reset restores the initial pins.
func (f *Feature) Reset() {
	f.mu.Lock()
	initial := clone(f.initial)
	f.mu.Unlock()
	f.OnColumnPinningChange(table.Set(initial))
}

// Runtime returns the patch for the table.
func Runtime[T any](f *Feature) table.Runtime[T] {
	rt := table.Runtime[T]{Name: "columnPinning"}
	if !f.enabled {
		return rt
	}
	state := f.State()
	rt.Options.ColumnPinning = &state
	rt.Options.OnColumnPinningChange = f.OnColumnPinningChange
	rt.Reset = f.Reset
	return rt
}
