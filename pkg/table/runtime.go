package table

import (
	"context"
	"maps"
	"slices"
)

// RowSelectionState is the page-local selection projection.
type RowSelectionState map[string]bool

// VisibilityState maps column ids to their visibility.
type VisibilityState map[string]bool

// SizingState maps column ids to widths.
type SizingState map[string]int

// ExpandedState maps row ids to their expansion.
type ExpandedState map[string]bool

// PinningState lists pinned column ids per side.
type PinningState struct {
	Left  []string `json:"left"`
	Right []string `json:"right"`
}

// Density is the row spacing preference.
type Density string

const (
	DensityCompact     Density = "compact"
	DensityStandard    Density = "standard"
	DensityComfortable Density = "comfortable"
)

// DropPosition is where a dragged row lands relative to the row under it.
type DropPosition string

const (
	DropAbove  DropPosition = "above"
	DropBelow  DropPosition = "below"
	DropInside DropPosition = "inside"
)

// ReorderRequest is a proposed move handed to the owner of the rows.
// TargetParentID is empty for the root level.
type ReorderRequest struct {
	ActiveID       string       `json:"activeId"`
	OverID         string       `json:"overId"`
	ActiveIndex    int          `json:"activeIndex"`
	OverIndex      int          `json:"overIndex"`
	TargetParentID string       `json:"targetParentId,omitempty"`
	TargetIndex    int          `json:"targetIndex"`
	DropPosition   DropPosition `json:"dropPosition"`
}

// Options is a patch over the primitive's table options.
// Nil fields are left untouched by Merge.
type Options[T any] struct {
	GetRowID RowIDFunc[T]

	EnableRowSelection   *bool
	RowSelection         RowSelectionState
	OnRowSelectionChange func(Updater[RowSelectionState])

	ColumnVisibility         VisibilityState
	OnColumnVisibilityChange func(Updater[VisibilityState])

	EnableColumnResizing *bool
	ColumnSizing         SizingState
	OnColumnSizingChange func(Updater[SizingState])

	ColumnPinning         *PinningState
	OnColumnPinningChange func(Updater[PinningState])

	Expanded         ExpandedState
	OnExpandedChange func(Updater[ExpandedState])
	GetSubRows       func(T) []T
	GetRowCanExpand  func(*Row[T]) bool

	Density *Density
}

// Actions is a patch over the imperative table surface.
type Actions struct {
	Refetch  func()
	Retry    func()
	ResetAll func()

	SetPage     func(page int)
	SetPageSize func(size int)
	SetSort     func(sort []SortSpec)
	ClearSort   func()

	ClearSelection       func()
	SelectAllCurrentPage func()
	SelectAllMatching    func(ctx context.Context) error

	ResetColumnVisibility func()
	ResetColumnSizing     func()
	ResetDensity          func()
	SetDensity            func(Density)

	ExpandRow         func(id string)
	CollapseRow       func(id string)
	ToggleRowExpanded func(id string)
	ExpandAll         func()
	CollapseAll       func()
	ExpandToDepth     func(depth int)

	MoveRow func(ctx context.Context, req ReorderRequest) error
}

// Activity reports transient engine state.
type Activity struct {
	// PreferencesReady is false while any preference feature is still loading.
	PreferencesReady *bool
	LoadingRowIDs    []string
	SelectingAll     *bool
}

// Runtime is the patch one feature contributes.
type Runtime[T any] struct {
	Name     string
	Options  Options[T]
	Actions  Actions
	Activity Activity
	// Reset restores the feature's defaults during ResetAll. Nil excludes the
	// feature from ResetAll.
	Reset func()
}

// Merged is the result of folding runtimes in order.
type Merged[T any] struct {
	Options  Options[T]
	Actions  Actions
	Activity Activity
	Resets   []func()
}

// Merge folds runtimes in order. For options and actions a later runtime
// overrides an earlier one field by field. PreferencesReady is the conjunction
// of every runtime that reports it, loading ids are concatenated.
func Merge[T any](runtimes ...Runtime[T]) Merged[T] {
	var m Merged[T]
	for _, rt := range runtimes {
		mergeOptions(&m.Options, rt.Options)
		mergeActions(&m.Actions, rt.Actions)
		mergeActivity(&m.Activity, rt.Activity)
		if rt.Reset != nil {
			m.Resets = append(m.Resets, rt.Reset)
		}
	}
	if m.Activity.LoadingRowIDs != nil {
		slices.Sort(m.Activity.LoadingRowIDs)
		m.Activity.LoadingRowIDs = slices.Compact(m.Activity.LoadingRowIDs)
	}
	return m
}

func override[V any](dst *V, src V, set bool) {
	if set {
		*dst = src
	}
}

func mergeOptions[T any](dst *Options[T], src Options[T]) {
	override(&dst.GetRowID, src.GetRowID, src.GetRowID != nil)
	override(&dst.EnableRowSelection, src.EnableRowSelection, src.EnableRowSelection != nil)
	override(&dst.RowSelection, src.RowSelection, src.RowSelection != nil)
	override(&dst.OnRowSelectionChange, src.OnRowSelectionChange, src.OnRowSelectionChange != nil)
	override(&dst.ColumnVisibility, src.ColumnVisibility, src.ColumnVisibility != nil)
	override(&dst.OnColumnVisibilityChange, src.OnColumnVisibilityChange, src.OnColumnVisibilityChange != nil)
	override(&dst.EnableColumnResizing, src.EnableColumnResizing, src.EnableColumnResizing != nil)
	override(&dst.ColumnSizing, src.ColumnSizing, src.ColumnSizing != nil)
	override(&dst.OnColumnSizingChange, src.OnColumnSizingChange, src.OnColumnSizingChange != nil)
	override(&dst.ColumnPinning, src.ColumnPinning, src.ColumnPinning != nil)
	override(&dst.OnColumnPinningChange, src.OnColumnPinningChange, src.OnColumnPinningChange != nil)
	override(&dst.Expanded, src.Expanded, src.Expanded != nil)
	override(&dst.OnExpandedChange, src.OnExpandedChange, src.OnExpandedChange != nil)
	override(&dst.GetSubRows, src.GetSubRows, src.GetSubRows != nil)
	override(&dst.GetRowCanExpand, src.GetRowCanExpand, src.GetRowCanExpand != nil)
	override(&dst.Density, src.Density, src.Density != nil)
}

func mergeActions(dst *Actions, src Actions) {
	override(&dst.Refetch, src.Refetch, src.Refetch != nil)
	override(&dst.Retry, src.Retry, src.Retry != nil)
	override(&dst.ResetAll, src.ResetAll, src.ResetAll != nil)
	override(&dst.SetPage, src.SetPage, src.SetPage != nil)
	override(&dst.SetPageSize, src.SetPageSize, src.SetPageSize != nil)
	override(&dst.SetSort, src.SetSort, src.SetSort != nil)
	override(&dst.ClearSort, src.ClearSort, src.ClearSort != nil)
	override(&dst.ClearSelection, src.ClearSelection, src.ClearSelection != nil)
	override(&dst.SelectAllCurrentPage, src.SelectAllCurrentPage, src.SelectAllCurrentPage != nil)
	override(&dst.SelectAllMatching, src.SelectAllMatching, src.SelectAllMatching != nil)
	override(&dst.ResetColumnVisibility, src.ResetColumnVisibility, src.ResetColumnVisibility != nil)
	override(&dst.ResetColumnSizing, src.ResetColumnSizing, src.ResetColumnSizing != nil)
	override(&dst.ResetDensity, src.ResetDensity, src.ResetDensity != nil)
	override(&dst.SetDensity, src.SetDensity, src.SetDensity != nil)
	override(&dst.ExpandRow, src.ExpandRow, src.ExpandRow != nil)
	override(&dst.CollapseRow, src.CollapseRow, src.CollapseRow != nil)
	override(&dst.ToggleRowExpanded, src.ToggleRowExpanded, src.ToggleRowExpanded != nil)
	override(&dst.ExpandAll, src.ExpandAll, src.ExpandAll != nil)
	override(&dst.CollapseAll, src.CollapseAll, src.CollapseAll != nil)
	override(&dst.ExpandToDepth, src.ExpandToDepth, src.ExpandToDepth != nil)
	override(&dst.MoveRow, src.MoveRow, src.MoveRow != nil)
}

func mergeActivity(dst *Activity, src Activity) {
	if src.PreferencesReady != nil {
		ready := *src.PreferencesReady
		if dst.PreferencesReady != nil {
			ready = ready && *dst.PreferencesReady
		}
		dst.PreferencesReady = &ready
	}
	if src.LoadingRowIDs != nil {
		dst.LoadingRowIDs = append(slices.Clone(dst.LoadingRowIDs), src.LoadingRowIDs...)
		if dst.LoadingRowIDs == nil {
			dst.LoadingRowIDs = []string{}
		}
	}
	override(&dst.SelectingAll, src.SelectingAll, src.SelectingAll != nil)
}

// CloneMap copies a string-keyed map; a nil map yields an empty one.
func CloneMap[M ~map[string]V, V any](m M) M {
	out := make(M, len(m))
	maps.Copy(out, m)
	return out
}

// EqualMap is a shallow key/value comparison.
func EqualMap[M ~map[string]V, V comparable](a, b M) bool {
	return maps.Equal(a, b)
}
