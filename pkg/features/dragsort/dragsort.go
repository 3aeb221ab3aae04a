// Package dragsort turns drag gestures into reorder requests.
//
// The feature proposes where a dragged row lands and validates the move. It
// never moves rows itself: OnReorder receives the request and owns the
// mutation, applying it optimistically or rejecting it. Invalid drops (onto
// the dragged row or one of its descendants, "inside" without nesting, or
// refused by CanDrop) are silently ignored and OnReorder is not called.
package dragsort

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/datatable/internal/errors"
	"github.com/vango-dev/datatable/pkg/table"
)

const tracerName = "github.com/vango-dev/datatable/dragsort"

// Config configures a drag sort Feature.
type Config[T any] struct {
	Enabled bool
	// EnableNesting allows dropping a row inside another.
	EnableNesting bool
	// CanDrop vetoes drops. Default: accept.
	CanDrop   func(active, over *table.Row[T], pos table.DropPosition) bool
	OnReorder func(ctx context.Context, req table.ReorderRequest) error

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Feature is the drag reorder protocol.
type Feature[T any] struct {
	cfg Config[T]

	mu    sync.Mutex
	rows  []*table.Row[T]
	index map[string]int
}

// New creates the feature.
func New[T any](cfg Config[T]) *Feature[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	return &Feature[T]{cfg: cfg, index: map[string]int{}}
}

// ObserveRows records the rows in display order, flattened.
func (f *Feature[T]) ObserveRows(rows []*table.Row[T], _ int) {
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		index[r.ID] = i
	}
	f.mu.Lock()
	f.rows = rows
	f.index = index
	f.mu.Unlock()
}

// ProposeDrop maps the pointer position over a row, as a ratio of the row
// height from its top edge, to a drop position. With nesting the top and
// bottom quarters mean above and below and the middle means inside;
// without it the row is split in half.
func (f *Feature[T]) ProposeDrop(offsetRatio float64) table.DropPosition {
	if f.cfg.EnableNesting {
		switch {
		case offsetRatio < 0.25:
			return table.DropAbove
		case offsetRatio > 0.75:
			return table.DropBelow
		default:
			return table.DropInside
		}
	}
	if offsetRatio < 0.5 {
		return table.DropAbove
	}
	return table.DropBelow
}

func (f *Feature[T]) lookup(id string) (*table.Row[T], int, bool) {
	i, ok := f.index[id]
	if !ok {
		return nil, -1, false
	}
	return f.rows[i], i, true
}

// IsDescendant reports whether id is inside the subtree of ancestor.
func IsDescendant[T any](ancestor *table.Row[T], id string) bool {
	found := false
	table.Walk(ancestor.SubRows, func(r *table.Row[T]) bool {
		if r.ID == id {
			found = true
		}
		return !found
	})
	return found
}

// Resolve validates a drop and completes the request with display indices
// and the target parent and index. The target index is the position in the
// target parent's children after the dragged row has been taken out. It
// reports false for drops that must be ignored.
func (f *Feature[T]) Resolve(activeID, overID string, pos table.DropPosition) (table.ReorderRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	active, activeIdx, ok := f.lookup(activeID)
	if !ok {
		return table.ReorderRequest{}, false
	}
	over, overIdx, ok := f.lookup(overID)
	if !ok {
		return table.ReorderRequest{}, false
	}
	if active.ID == over.ID || IsDescendant(active, over.ID) {
		return table.ReorderRequest{}, false
	}
	switch pos {
	case table.DropAbove, table.DropBelow:
	case table.DropInside:
		if !f.cfg.EnableNesting {
			return table.ReorderRequest{}, false
		}
	default:
		return table.ReorderRequest{}, false
	}
	if f.cfg.CanDrop != nil && !f.cfg.CanDrop(active, over, pos) {
		return table.ReorderRequest{}, false
	}

	req := table.ReorderRequest{
		ActiveID:     active.ID,
		OverID:       over.ID,
		ActiveIndex:  activeIdx,
		OverIndex:    overIdx,
		DropPosition: pos,
	}
	switch pos {
	case table.DropInside:
		req.TargetParentID = over.ID
		req.TargetIndex = len(over.SubRows)
	case table.DropAbove:
		req.TargetParentID = over.ParentID
		req.TargetIndex = over.Index
	case table.DropBelow:
		req.TargetParentID = over.ParentID
		req.TargetIndex = over.Index + 1
	}
	if active.ParentID == req.TargetParentID && active.Index < req.TargetIndex {
		req.TargetIndex--
	}
	return req, true
}

// MoveRow validates req and hands the completed request to OnReorder.
// Only ActiveID, OverID and DropPosition are read from req. Ignored drops
// return nil; an OnReorder failure is returned as DT022.
func (f *Feature[T]) MoveRow(ctx context.Context, req table.ReorderRequest) error {
	if !f.cfg.Enabled || f.cfg.OnReorder == nil {
		return nil
	}
	resolved, ok := f.Resolve(req.ActiveID, req.OverID, req.DropPosition)
	if !ok {
		f.cfg.Logger.Debug("drop ignored",
			slog.String("active", req.ActiveID),
			slog.String("over", req.OverID),
			slog.String("position", string(req.DropPosition)))
		return nil
	}

	ctx, span := f.cfg.Tracer.Start(ctx, "dragsort.reorder", trace.WithAttributes(
		attribute.String("datatable.active", resolved.ActiveID),
		attribute.String("datatable.over", resolved.OverID),
		attribute.String("datatable.position", string(resolved.DropPosition)),
	))
	defer span.End()

	if err := f.cfg.OnReorder(ctx, resolved); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.New("DT022").WithSubject(resolved.ActiveID).Wrap(err)
	}
	return nil
}

// Runtime returns the patch for the table.
func (f *Feature[T]) Runtime() table.Runtime[T] {
	rt := table.Runtime[T]{Name: "dragSort"}
	if f.cfg.Enabled {
		rt.Actions.MoveRow = f.MoveRow
	}
	return rt
}
