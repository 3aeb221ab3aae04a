package selection

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/datatable/internal/errors"
	"github.com/vango-dev/datatable/pkg/table"
)

const tracerName = "github.com/vango-dev/datatable/selection"

// Mode selects page-local or cross-page semantics.
type Mode string

const (
	ModePage      Mode = "page"
	ModeCrossPage Mode = "crosspage"
)

// Strategy decides how SelectAllMatching selects every matching row.
type Strategy string

const (
	// StrategyClient switches to exclude mode with no exclusions.
	StrategyClient Strategy = "client"
	// StrategyServer enumerates the ids with FetchAllIDs.
	StrategyServer Strategy = "server"
)

// SetMode is the form of a cross-page selection.
type SetMode string

const (
	Include SetMode = "include"
	Exclude SetMode = "exclude"
)

// Config configures a selection Feature.
type Config[T, F any] struct {
	Enabled bool
	Mode    Mode // default ModePage

	// MaxSelection caps include-mode selections. Zero means no cap.
	MaxSelection int

	// GetRowID is required in cross-page mode.
	GetRowID table.RowIDFunc[T]

	Strategy    Strategy // default StrategyClient
	FetchAllIDs func(ctx context.Context, filters F) ([]string, error)

	OnChange func()
	Logger   *slog.Logger
	Tracer   trace.Tracer
}

// Feature is the selection state machine.
type Feature[T, F any] struct {
	cfg Config[T, F]

	mu           sync.Mutex
	set          SetMode
	ids          map[string]struct{}
	rows         []*table.Row[T]
	total        int
	filters      F
	filtersKey   string
	epoch        uint64
	selectingAll bool
}

// New creates a selection feature. Cross-page mode without GetRowID is a
// setup error (DT001).
func New[T, F any](cfg Config[T, F]) (*Feature[T, F], error) {
	if cfg.Mode == "" {
		cfg.Mode = ModePage
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if err := validate(cfg.Enabled, cfg.Mode, cfg.GetRowID != nil); err != nil {
		return nil, err
	}
	return &Feature[T, F]{
		cfg:   cfg,
		set:   Include,
		ids:   make(map[string]struct{}),
		total: -1,
	}, nil
}

func validate(enabled bool, mode Mode, hasRowID bool) error {
	if enabled && mode == ModeCrossPage && !hasRowID {
		return errors.New("DT001").
			WithSuggestion("Set GetRowID to a function returning a stable id such as the primary key")
	}
	return nil
}

// Enabled reports whether selection is on.
func (f *Feature[T, F]) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Enabled
}

// Mode returns the current mode.
func (f *Feature[T, F]) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Mode
}

// SetEnabled turns selection on or off. Either way the selection is cleared.
func (f *Feature[T, F]) SetEnabled(enabled bool) error {
	f.mu.Lock()
	if err := validate(enabled, f.cfg.Mode, f.cfg.GetRowID != nil); err != nil {
		f.mu.Unlock()
		return err
	}
	changed := f.cfg.Enabled != enabled
	f.cfg.Enabled = enabled
	if changed {
		f.clearLocked()
	}
	f.mu.Unlock()

	if changed {
		f.notify()
	}
	return nil
}

// SetMode switches between page and cross-page mode, clearing the selection.
func (f *Feature[T, F]) SetMode(mode Mode) error {
	f.mu.Lock()
	if err := validate(f.cfg.Enabled, mode, f.cfg.GetRowID != nil); err != nil {
		f.mu.Unlock()
		return err
	}
	changed := f.cfg.Mode != mode
	f.cfg.Mode = mode
	if changed {
		f.clearLocked()
	}
	f.mu.Unlock()

	if changed {
		f.notify()
	}
	return nil
}

// ObserveVisibleRows records the rows on screen and the matching total.
// Sub-rows of collapsed rows are not on screen and cannot be selected by
// SelectAllCurrentPage.
func (f *Feature[T, F]) ObserveVisibleRows(rows []*table.Row[T], total int) {
	f.mu.Lock()
	f.rows = rows
	f.total = total
	f.mu.Unlock()
}

// ObserveSnapshot applies the reset rules: page mode clears on any query
// change, cross-page mode only when the filters change content.
func (f *Feature[T, F]) ObserveSnapshot(next table.Snapshot[F], reason table.ChangeReason) {
	key := StableKey(next.Filters)

	f.mu.Lock()
	f.filters = next.Filters
	prevKey := f.filtersKey
	f.filtersKey = key

	clear := false
	switch f.cfg.Mode {
	case ModeCrossPage:
		clear = reason == table.ReasonReset || (reason != table.ReasonInit && key != prevKey)
	default:
		switch reason {
		case table.ReasonPage, table.ReasonSize, table.ReasonSort, table.ReasonFilters, table.ReasonReset:
			clear = true
		}
	}
	changed := false
	if clear {
		changed = f.clearLocked()
	}
	f.mu.Unlock()

	if changed {
		f.notify()
	}
}

// OnRowSelectionChange translates a desired page-local selection into the
// authoritative id set.
func (f *Feature[T, F]) OnRowSelectionChange(u table.Updater[table.RowSelectionState]) {
	f.mu.Lock()
	if !f.cfg.Enabled {
		f.mu.Unlock()
		return
	}
	desired := u.Apply(f.projectionLocked())
	f.epoch++

	if f.set == Exclude {
		for _, row := range f.rows {
			if desired[row.ID] {
				delete(f.ids, row.ID)
			} else {
				f.ids[row.ID] = struct{}{}
			}
		}
	} else {
		// Deselections first, so they free capacity for this change.
		for _, row := range f.rows {
			if _, ok := f.ids[row.ID]; ok && !desired[row.ID] {
				delete(f.ids, row.ID)
			}
		}
		remaining := f.remainingLocked()
		for _, row := range f.rows {
			if _, ok := f.ids[row.ID]; ok || !desired[row.ID] {
				continue
			}
			if remaining == 0 {
				f.cfg.Logger.Debug("selection capacity reached",
					slog.String("row", row.ID),
					slog.Int("max", f.cfg.MaxSelection))
				continue
			}
			f.ids[row.ID] = struct{}{}
			if remaining > 0 {
				remaining--
			}
		}
	}
	f.mu.Unlock()

	f.notify()
}

// ClearSelection empties the selection.
func (f *Feature[T, F]) ClearSelection() {
	f.mu.Lock()
	changed := f.clearLocked()
	f.mu.Unlock()
	if changed {
		f.notify()
	}
}

// SelectAllCurrentPage selects the rows on screen. In include mode rows are
// admitted in display order up to the remaining capacity.
func (f *Feature[T, F]) SelectAllCurrentPage() {
	f.mu.Lock()
	if !f.cfg.Enabled {
		f.mu.Unlock()
		return
	}
	f.epoch++
	if f.set == Exclude {
		for _, row := range f.rows {
			delete(f.ids, row.ID)
		}
	} else {
		remaining := f.remainingLocked()
		for _, row := range f.rows {
			if remaining == 0 {
				break
			}
			if _, ok := f.ids[row.ID]; ok {
				continue
			}
			f.ids[row.ID] = struct{}{}
			if remaining > 0 {
				remaining--
			}
		}
	}
	f.mu.Unlock()

	f.notify()
}

// SelectAllMatching selects every row matching the current filters. It is a
// no-op when the known total exceeds MaxSelection. With the server strategy
// an oversized or stale result leaves the selection untouched, and a fetch
// failure is returned as DT020.
func (f *Feature[T, F]) SelectAllMatching(ctx context.Context) error {
	f.mu.Lock()
	if !f.cfg.Enabled || f.cfg.Mode != ModeCrossPage {
		f.mu.Unlock()
		return nil
	}
	limit := f.cfg.MaxSelection
	if limit > 0 && f.total >= 0 && f.total > limit {
		f.mu.Unlock()
		return nil
	}
	if f.cfg.Strategy != StrategyServer || f.cfg.FetchAllIDs == nil {
		f.set = Exclude
		f.ids = make(map[string]struct{})
		f.epoch++
		f.mu.Unlock()
		f.notify()
		return nil
	}

	epoch := f.epoch
	filters := f.filters
	f.selectingAll = true
	f.mu.Unlock()
	f.notify()

	ctx, span := f.cfg.Tracer.Start(ctx, "selection.fetchAllIDs")
	defer span.End()

	ids, err := f.cfg.FetchAllIDs(ctx, filters)
	span.SetAttributes(attribute.Int("datatable.ids", len(ids)))

	f.mu.Lock()
	f.selectingAll = false
	stale := epoch != f.epoch
	apply := err == nil && !stale && (limit <= 0 || len(ids) <= limit)
	if apply {
		f.set = Include
		f.ids = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			f.ids[id] = struct{}{}
		}
		f.epoch++
	}
	f.mu.Unlock()
	f.notify()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.New("DT020").Wrap(err)
	}
	if !apply {
		f.cfg.Logger.Debug("select all matching discarded",
			slog.Int("ids", len(ids)),
			slog.Int("max", limit),
			slog.Bool("stale", stale))
	}
	return nil
}

// Reset clears the selection; it is part of ResetAll.
func (f *Feature[T, F]) Reset() {
	f.ClearSelection()
}

// RowSelection returns the page-local projection: every row on screen mapped
// to whether the id set selects it.
func (f *Feature[T, F]) RowSelection() table.RowSelectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projectionLocked()
}

func (f *Feature[T, F]) projectionLocked() table.RowSelectionState {
	out := make(table.RowSelectionState, len(f.rows))
	for _, row := range f.rows {
		out[row.ID] = f.selectedLocked(row.ID)
	}
	return out
}

func (f *Feature[T, F]) selectedLocked(id string) bool {
	_, listed := f.ids[id]
	if f.set == Exclude {
		return !listed
	}
	return listed
}

// remainingLocked returns the include-mode capacity left, or -1 for no cap.
func (f *Feature[T, F]) remainingLocked() int {
	if f.cfg.MaxSelection <= 0 {
		return -1
	}
	return max(f.cfg.MaxSelection-len(f.ids), 0)
}

func (f *Feature[T, F]) clearLocked() bool {
	f.epoch++
	changed := f.set != Include || len(f.ids) > 0
	f.set = Include
	f.ids = make(map[string]struct{})
	return changed
}

func (f *Feature[T, F]) notify() {
	if f.cfg.OnChange != nil {
		f.cfg.OnChange()
	}
}

// sortedIDs returns the listed ids in order. Caller holds mu.
func (f *Feature[T, F]) sortedIDs() []string {
	ids := make([]string, 0, len(f.ids))
	for id := range f.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
