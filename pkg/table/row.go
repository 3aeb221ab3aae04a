package table

import "strconv"

// Row is one node of the row model handed to features by the host.
type Row[T any] struct {
	ID       string
	Index    int
	Depth    int
	ParentID string
	Original T
	SubRows  []*Row[T]
}

// RowIDFunc derives a stable identity for a row.
type RowIDFunc[T any] func(original T, index int, parent *Row[T]) string

// DefaultRowID mirrors the primitive's positional identity: "0", "0.1", ...
func DefaultRowID[T any](_ T, index int, parent *Row[T]) string {
	if parent == nil {
		return strconv.Itoa(index)
	}
	return parent.ID + "." + strconv.Itoa(index)
}

// BuildRows turns originals into a row tree. getSubRows may be nil.
func BuildRows[T any](data []T, getID RowIDFunc[T], getSubRows func(T) []T) []*Row[T] {
	if getID == nil {
		getID = DefaultRowID[T]
	}
	return buildLevel(data, getID, getSubRows, nil)
}

func buildLevel[T any](data []T, getID RowIDFunc[T], getSubRows func(T) []T, parent *Row[T]) []*Row[T] {
	rows := make([]*Row[T], 0, len(data))
	for i, original := range data {
		row := &Row[T]{
			ID:       getID(original, i, parent),
			Index:    i,
			Original: original,
		}
		if parent != nil {
			row.Depth = parent.Depth + 1
			row.ParentID = parent.ID
		}
		if getSubRows != nil {
			if children := getSubRows(original); len(children) > 0 {
				row.SubRows = buildLevel(children, getID, getSubRows, row)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Walk visits rows depth-first in display order. Returning false from fn
// skips the row's descendants.
func Walk[T any](rows []*Row[T], fn func(*Row[T]) bool) {
	for _, row := range rows {
		if fn(row) && len(row.SubRows) > 0 {
			Walk(row.SubRows, fn)
		}
	}
}

// Flatten returns every row of the tree in display order.
func Flatten[T any](rows []*Row[T]) []*Row[T] {
	var out []*Row[T]
	Walk(rows, func(r *Row[T]) bool {
		out = append(out, r)
		return true
	})
	return out
}

// VisibleRows returns the rows that are shown in display order: every
// top-level row plus the sub-rows of rows for which expanded reports true.
func VisibleRows[T any](rows []*Row[T], expanded func(id string) bool) []*Row[T] {
	var out []*Row[T]
	Walk(rows, func(r *Row[T]) bool {
		out = append(out, r)
		return expanded != nil && expanded(r.ID)
	})
	return out
}

// IndexRows maps row ids to rows across the whole tree.
func IndexRows[T any](rows []*Row[T]) map[string]*Row[T] {
	index := make(map[string]*Row[T])
	Walk(rows, func(r *Row[T]) bool {
		index[r.ID] = r
		return true
	})
	return index
}
