// Package tree adds hierarchy and lazy child loading on top of expansion.
//
// Children come from GetSubRows when the data already carries them. Rows
// that GetRowCanExpand admits but that have no children yet are loaded with
// LoadChildren the first time they are expanded. The feature never stores
// rows: loaded children are handed to OnChildrenLoaded and come back through
// ObserveRows once the owner has added them.
package tree

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/datatable/internal/errors"
	"github.com/vango-dev/datatable/pkg/features/expansion"
	"github.com/vango-dev/datatable/pkg/table"
)

const tracerName = "github.com/vango-dev/datatable/tree"

// Config configures a tree Feature.
type Config[T any] struct {
	Enabled bool

	GetSubRows func(T) []T
	// GetRowCanExpand marks rows that may have children not loaded yet.
	// Rows with children can always expand.
	GetRowCanExpand func(*table.Row[T]) bool

	LoadChildren     func(ctx context.Context, row *table.Row[T]) ([]T, error)
	OnChildrenLoaded func(row *table.Row[T], children []T)
	// OnLoadError is called when a load started by expanding a row fails.
	OnLoadError func(row *table.Row[T], err error)

	InitialExpanded table.ExpandedState

	OnChange func()
	Logger   *slog.Logger
	Tracer   trace.Tracer
}

// Feature is the tree state machine.
type Feature[T any] struct {
	cfg Config[T]
	exp *expansion.Feature[T]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	index   map[string]*table.Row[T]
	loading map[string]struct{}
	loaded  map[string]struct{}
}

// New creates the feature.
func New[T any](cfg Config[T]) *Feature[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	f := &Feature[T]{
		cfg:     cfg,
		index:   make(map[string]*table.Row[T]),
		loading: make(map[string]struct{}),
		loaded:  make(map[string]struct{}),
	}
	f.ctx, f.cancel = context.WithCancel(context.Background())
	f.exp = expansion.New[T](expansion.Config{
		Enabled:    cfg.Enabled,
		Initial:    cfg.InitialExpanded,
		OnExpanded: f.expanded,
		OnChange:   cfg.OnChange,
	})
	return f
}

// Expansion returns the expansion state the tree drives.
func (f *Feature[T]) Expansion() *expansion.Feature[T] { return f.exp }

// ObserveRows records the known rows, flattened.
func (f *Feature[T]) ObserveRows(rows []*table.Row[T], total int) {
	index := make(map[string]*table.Row[T], len(rows))
	for _, r := range rows {
		index[r.ID] = r
	}
	f.mu.Lock()
	f.index = index
	f.mu.Unlock()
	f.exp.ObserveRows(rows, total)
}

// CanExpand reports whether row has or may have children.
func (f *Feature[T]) CanExpand(row *table.Row[T]) bool {
	if len(row.SubRows) > 0 {
		return true
	}
	return f.cfg.GetRowCanExpand != nil && f.cfg.GetRowCanExpand(row)
}

// IsLoading reports whether children of id are being loaded.
func (f *Feature[T]) IsLoading(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.loading[id]
	return ok
}

// LoadingRowIDs returns the rows with a load in flight, sorted.
func (f *Feature[T]) LoadingRowIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.loading))
	for id := range f.loading {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// LoadChildren loads the children of rowID once. It does nothing for unknown
// rows, rows that cannot expand, rows that already have children, and rows
// loading or loaded already. A failure is returned as DT021 and leaves the
// row loadable again.
func (f *Feature[T]) LoadChildren(ctx context.Context, rowID string) error {
	f.mu.Lock()
	row, ok := f.index[rowID]
	_, busy := f.loading[rowID]
	_, done := f.loaded[rowID]
	if !ok || busy || done || f.cfg.LoadChildren == nil || len(row.SubRows) > 0 || !f.CanExpand(row) {
		f.mu.Unlock()
		return nil
	}
	f.loading[rowID] = struct{}{}
	f.mu.Unlock()
	f.notify()

	ctx, span := f.cfg.Tracer.Start(ctx, "tree.loadChildren",
		trace.WithAttributes(attribute.String("datatable.row", rowID)))
	defer span.End()

	children, err := f.cfg.LoadChildren(ctx, row)

	f.mu.Lock()
	delete(f.loading, rowID)
	if err == nil {
		f.loaded[rowID] = struct{}{}
	}
	f.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.notify()
		return errors.New("DT021").WithSubject(rowID).Wrap(err)
	}
	span.SetAttributes(attribute.Int("datatable.children", len(children)))
	if f.ctx.Err() == nil && f.cfg.OnChildrenLoaded != nil {
		f.cfg.OnChildrenLoaded(row, children)
	}
	f.notify()
	return nil
}

// expanded starts loads for newly expanded rows in the background.
func (f *Feature[T]) expanded(ids []string) {
	for _, id := range ids {
		id := id
		f.mu.Lock()
		row := f.index[id]
		f.mu.Unlock()
		if row == nil {
			continue
		}

		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			err := f.LoadChildren(f.ctx, id)
			if err == nil || f.ctx.Err() != nil {
				return
			}
			f.cfg.Logger.Warn("loading child rows failed",
				slog.String("row", id),
				slog.Any("error", err))
			if f.cfg.OnLoadError != nil {
				f.cfg.OnLoadError(row, err)
			}
		}()
	}
}

// Wait blocks until loads started by expansion have finished.
func (f *Feature[T]) Wait() {
	f.wg.Wait()
}

// Close cancels background loads and stops delivering their results.
func (f *Feature[T]) Close() {
	f.cancel()
}

func (f *Feature[T]) notify() {
	if f.cfg.OnChange != nil {
		f.cfg.OnChange()
	}
}

// Runtime returns the expansion patch plus hierarchy options and loading ids.
func (f *Feature[T]) Runtime() table.Runtime[T] {
	rt := f.exp.Runtime()
	rt.Name = "tree"
	if !f.cfg.Enabled {
		return rt
	}
	rt.Options.GetSubRows = f.cfg.GetSubRows
	rt.Options.GetRowCanExpand = f.CanExpand
	rt.Activity.LoadingRowIDs = f.LoadingRowIDs()
	return rt
}
