// Package datatable is the host of the table feature engine.
//
// A Table owns one instance of every feature, subscribes to the StateAdapter,
// feeds rows and snapshots to the features and exposes the merged result:
//
//	t, err := datatable.New(features.Config[User, Filters]{
//	    Columns:  columns,
//	    GetRowID: func(u User, _ int, _ *table.Row[User]) string { return u.ID },
//	    Adapter:  tablestate.NewMemory(table.Snapshot[Filters]{Size: 25}),
//	    Storage:  store.NewMemory(),
//	    Selection: selection.Config[User, Filters]{
//	        Enabled: true,
//	        Mode:    selection.ModeCrossPage,
//	    },
//	    Density: features.DensityConfig{
//	        PrefConfig: features.PrefConfig[table.Density]{StorageKey: "users.density"},
//	    },
//	})
//	if err != nil {
//	    return err // setup error, see internal/errors
//	}
//	defer t.Close()
//	go t.Start(ctx)
//
//	t.SetResult(table.Result[User]{Rows: users, Total: 120})
//	t.Actions().SelectAllCurrentPage()
//	sel := t.Selection()
package datatable

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vango-dev/datatable/pkg/features"
	"github.com/vango-dev/datatable/pkg/features/selection"
	"github.com/vango-dev/datatable/pkg/table"
	"github.com/vango-dev/datatable/pkg/tablestate"
)

// Version is the engine version.
const Version = "0.4.0"

// Table hosts the features of one table instance.
type Table[T, F any] struct {
	comp     *features.Composition[T, F]
	adapter  table.StateAdapter[F]
	getRowID table.RowIDFunc[T]
	subRows  func(T) []T
	onChange func()
	logger   *slog.Logger

	unsubscribe func()

	// feedMu orders deliveries of visible rows.
	feedMu sync.Mutex

	mu      sync.RWMutex
	result  table.Result[T]
	rows    []*table.Row[T]
	total   int
	version uint64
	closed  bool
}

// New builds a table. Without an Adapter the table keeps its snapshot in
// memory. Rows are identified by GetRowID, falling back to Selection.GetRowID
// and then to positional ids. The only errors are setup errors from
// features.Compose.
func New[T, F any](cfg features.Config[T, F]) (*Table[T, F], error) {
	if cfg.GetRowID == nil {
		cfg.GetRowID = cfg.Selection.GetRowID
	}
	if cfg.Adapter == nil {
		cfg.Adapter = tablestate.NewMemory(table.Snapshot[F]{Size: 10})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	t := &Table[T, F]{
		adapter:  cfg.Adapter,
		getRowID: cfg.GetRowID,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
	}
	if t.getRowID == nil {
		t.getRowID = table.DefaultRowID[T]
	}
	if cfg.Tree.Enabled {
		t.subRows = cfg.Tree.GetSubRows
	}
	cfg.OnChange = t.changed

	comp, err := features.Compose(cfg)
	if err != nil {
		return nil, err
	}
	t.comp = comp

	t.observeSnapshot(cfg.Adapter.Snapshot(), table.ReasonInit)
	t.unsubscribe = cfg.Adapter.Subscribe(t.observeSnapshot)
	return t, nil
}

func (t *Table[T, F]) observeSnapshot(next table.Snapshot[F], reason table.ChangeReason) {
	for _, f := range t.comp.Features() {
		if o, ok := f.(table.SnapshotObserver[F]); ok {
			o.ObserveSnapshot(next, reason)
		}
	}
	t.changed()
}

// changed records a change, re-delivers the visible rows since expansion may
// have moved, and tells the owner.
func (t *Table[T, F]) changed() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.version++
	t.mu.Unlock()

	t.observeVisibleRows()
	if t.onChange != nil {
		t.onChange()
	}
}

// Start runs the asynchronous preference loads and returns when all of them
// have finished. Features with synchronous storage are ready already.
func (t *Table[T, F]) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, f := range t.comp.Features() {
		l, ok := f.(table.Loader)
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Load(ctx)
		}()
	}
	wg.Wait()
}

// SetResult hands the data source result for the current snapshot to the
// features. Rows are built with GetRowID and, when the tree is enabled,
// GetSubRows.
func (t *Table[T, F]) SetResult(res table.Result[T]) {
	rows := table.BuildRows(res.Rows, t.getRowID, t.subRows)
	flat := table.Flatten(rows)
	total := res.Total
	if res.Err != nil {
		t.logger.Debug("data source error", slog.Any("error", res.Err))
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.result = res
	t.rows = rows
	t.total = total
	t.mu.Unlock()

	for _, f := range t.comp.Features() {
		if o, ok := f.(table.RowObserver[T]); ok {
			o.ObserveRows(flat, total)
		}
	}
	t.changed()
}

// observeVisibleRows hands the shown rows to the features that select among
// them.
func (t *Table[T, F]) observeVisibleRows() {
	if t.comp == nil {
		// Still composing.
		return
	}
	t.feedMu.Lock()
	defer t.feedMu.Unlock()

	t.mu.RLock()
	rows, total := t.rows, t.total
	t.mu.RUnlock()

	var visible []*table.Row[T]
	computed := false
	for _, f := range t.comp.Features() {
		o, ok := f.(table.VisibleRowObserver[T])
		if !ok {
			continue
		}
		if !computed {
			visible = table.VisibleRows(rows, t.comp.Expansion.IsExpanded)
			computed = true
		}
		o.ObserveVisibleRows(visible, total)
	}
}

// Result returns the last result passed to SetResult.
func (t *Table[T, F]) Result() table.Result[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result
}

// Rows returns the row tree built from the last result.
func (t *Table[T, F]) Rows() []*table.Row[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rows
}

// Snapshot returns the adapter's snapshot.
func (t *Table[T, F]) Snapshot() table.Snapshot[F] {
	return t.adapter.Snapshot()
}

// SetFilters replaces the filters and returns to the first page.
func (t *Table[T, F]) SetFilters(filters F) {
	t.comp.Core.SetFilters(filters)
}

// Version increases on every change; hosts can compare it to skip renders.
func (t *Table[T, F]) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Composition exposes the individual features.
func (t *Table[T, F]) Composition() *features.Composition[T, F] {
	return t.comp
}

// Merged folds the runtimes of every feature in order and completes the
// actions with ResetAll.
func (t *Table[T, F]) Merged() table.Merged[T] {
	m := table.Merge(t.comp.Runtimes()...)
	resets := m.Resets
	m.Actions.ResetAll = func() {
		for _, reset := range resets {
			reset()
		}
	}
	if m.Activity.PreferencesReady == nil {
		m.Activity.PreferencesReady = table.Bool(true)
	}
	if m.Activity.LoadingRowIDs == nil {
		m.Activity.LoadingRowIDs = []string{}
	}
	return m
}

// Options returns the merged option patch for the primitive.
func (t *Table[T, F]) Options() table.Options[T] {
	return t.Merged().Options
}

// Actions returns the merged imperative surface.
func (t *Table[T, F]) Actions() table.Actions {
	return t.Merged().Actions
}

// Activity returns the merged transient state.
func (t *Table[T, F]) Activity() table.Activity {
	return t.Merged().Activity
}

// Selection reports the current selection.
func (t *Table[T, F]) Selection() selection.Surface[T] {
	return t.comp.Selection.Surface()
}

// ResetAll restores every feature that takes part in resets.
func (t *Table[T, F]) ResetAll() {
	t.Actions().ResetAll()
}

// Flush waits for queued preference writes.
func (t *Table[T, F]) Flush() {
	for _, f := range t.comp.Features() {
		if fl, ok := f.(interface{ Flush() }); ok {
			fl.Flush()
		}
	}
}

// Close unsubscribes from the adapter and discards asynchronous results that
// arrive later. Queued preference writes still complete.
func (t *Table[T, F]) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.unsubscribe()
	for _, f := range t.comp.Features() {
		if c, ok := f.(table.Closer); ok {
			c.Close()
		}
	}
}
