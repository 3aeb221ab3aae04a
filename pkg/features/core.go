package features

import (
	"slices"

	"github.com/vango-dev/datatable/pkg/table"
)

// Core is the runtime backed by the StateAdapter and the DataSource:
// pagination, sorting and refetching. It comes first in every composition.
type Core[T, F any] struct {
	adapter table.StateAdapter[F]
	source  table.DataSource
	initial table.Snapshot[F]
}

// NewCore creates the core feature. The adapter's snapshot at this point is
// what Reset returns to. Either collaborator may be nil.
func NewCore[T, F any](adapter table.StateAdapter[F], source table.DataSource) *Core[T, F] {
	c := &Core[T, F]{adapter: adapter, source: source}
	if adapter != nil {
		c.initial = adapter.Snapshot()
	}
	return c
}

func (c *Core[T, F]) update(reason table.ChangeReason, fn func(*table.Snapshot[F])) {
	next := c.adapter.Snapshot()
	fn(&next)
	c.adapter.SetSnapshot(next, reason)
}

// SetPage moves to a zero-based page.
func (c *Core[T, F]) SetPage(page int) {
	if page < 0 {
		page = 0
	}
	c.update(table.ReasonPage, func(s *table.Snapshot[F]) { s.Page = page })
}

// SetPageSize changes the page size and returns to the first page.
func (c *Core[T, F]) SetPageSize(size int) {
	if size <= 0 {
		return
	}
	c.update(table.ReasonSize, func(s *table.Snapshot[F]) {
		s.Size = size
		s.Page = 0
	})
}

// SetSort replaces the sort and returns to the first page.
func (c *Core[T, F]) SetSort(sort []table.SortSpec) {
	c.update(table.ReasonSort, func(s *table.Snapshot[F]) {
		s.Sort = slices.Clone(sort)
		s.Page = 0
	})
}

// ClearSort removes every sort entry.
func (c *Core[T, F]) ClearSort() {
	c.SetSort(nil)
}

// SetFilters replaces the filters and returns to the first page.
func (c *Core[T, F]) SetFilters(filters F) {
	c.update(table.ReasonFilters, func(s *table.Snapshot[F]) {
		s.Filters = filters
		s.Page = 0
	})
}

// Reset restores the snapshot the table started with.
func (c *Core[T, F]) Reset() {
	c.adapter.SetSnapshot(c.initial.Clone(), table.ReasonReset)
}

// Runtime returns the pagination, sorting and data source actions.
func (c *Core[T, F]) Runtime() table.Runtime[T] {
	rt := table.Runtime[T]{Name: "core"}
	if c.source != nil {
		rt.Actions.Refetch = c.source.Refetch
		rt.Actions.Retry = c.source.Retry
	}
	if c.adapter != nil {
		rt.Actions.SetPage = c.SetPage
		rt.Actions.SetPageSize = c.SetPageSize
		rt.Actions.SetSort = c.SetSort
		rt.Actions.ClearSort = c.ClearSort
		rt.Reset = c.Reset
	}
	return rt
}
