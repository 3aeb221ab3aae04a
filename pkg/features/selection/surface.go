package selection

import (
	"strconv"

	"github.com/vango-dev/datatable/pkg/table"
)

// TotalSelected is a count, or "all" when exclude mode runs against an
// unknown total.
type TotalSelected struct {
	Count int
	All   bool
}

// MarshalJSON renders a number or the string "all".
func (t TotalSelected) MarshalJSON() ([]byte, error) {
	if t.All {
		return []byte(`"all"`), nil
	}
	return []byte(strconv.Itoa(t.Count)), nil
}

func (t TotalSelected) String() string {
	if t.All {
		return "all"
	}
	return strconv.Itoa(t.Count)
}

// CrossPage is the authoritative cross-page selection.
type CrossPage struct {
	Mode   SetMode  `json:"mode"`
	RowIDs []string `json:"rowIds"`
}

// CrossPageSurface reports the cross-page selection.
type CrossPageSurface struct {
	Selection     CrossPage     `json:"selection"`
	TotalSelected TotalSelected `json:"totalSelected"`
	IsAllSelected bool          `json:"isAllSelected"`
}

// Surface is what the host exposes about selection.
type Surface[T any] struct {
	Enabled bool `json:"enabled"`
	Mode    Mode `json:"mode"`
	// SelectedRowIDs lists every selected id in include mode. In exclude mode
	// the full set is not enumerable and only selected rows on screen are listed.
	SelectedRowIDs          []string          `json:"selectedRowIds"`
	SelectedRowsCurrentPage []T               `json:"-"`
	CrossPage               *CrossPageSurface `json:"crossPage,omitempty"`
}

// Surface reports the current selection.
func (f *Feature[T, F]) Surface() Surface[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Surface[T]{
		Enabled:                 f.cfg.Enabled,
		Mode:                    f.cfg.Mode,
		SelectedRowIDs:          []string{},
		SelectedRowsCurrentPage: []T{},
	}
	if !f.cfg.Enabled {
		return s
	}

	for _, row := range f.rows {
		if f.selectedLocked(row.ID) {
			s.SelectedRowsCurrentPage = append(s.SelectedRowsCurrentPage, row.Original)
			if f.set == Exclude {
				s.SelectedRowIDs = append(s.SelectedRowIDs, row.ID)
			}
		}
	}
	if f.set == Include {
		s.SelectedRowIDs = f.sortedIDs()
	}

	if f.cfg.Mode == ModeCrossPage {
		cp := &CrossPageSurface{
			Selection: CrossPage{Mode: f.set, RowIDs: f.sortedIDs()},
		}
		if f.set == Exclude {
			if f.total >= 0 {
				cp.TotalSelected = TotalSelected{Count: max(f.total-len(f.ids), 0)}
			} else {
				cp.TotalSelected = TotalSelected{All: true}
			}
			cp.IsAllSelected = len(f.ids) == 0
		} else {
			cp.TotalSelected = TotalSelected{Count: len(f.ids)}
			cp.IsAllSelected = f.total > 0 && len(f.ids) >= f.total
		}
		s.CrossPage = cp
	}
	return s
}

// Runtime returns the selection patch. A disabled feature only turns row
// selection off.
func (f *Feature[T, F]) Runtime() table.Runtime[T] {
	f.mu.Lock()
	enabled := f.cfg.Enabled
	mode := f.cfg.Mode
	getRowID := f.cfg.GetRowID
	selectingAll := f.selectingAll
	f.mu.Unlock()

	rt := table.Runtime[T]{
		Name: "selection",
		Options: table.Options[T]{
			EnableRowSelection: table.Bool(enabled),
		},
	}
	if !enabled {
		return rt
	}

	rt.Options.RowSelection = f.RowSelection()
	rt.Options.OnRowSelectionChange = f.OnRowSelectionChange
	rt.Actions.ClearSelection = f.ClearSelection
	rt.Actions.SelectAllCurrentPage = f.SelectAllCurrentPage
	rt.Reset = f.Reset
	if mode == ModeCrossPage {
		rt.Options.GetRowID = getRowID
		rt.Actions.SelectAllMatching = f.SelectAllMatching
		rt.Activity.SelectingAll = table.Bool(selectingAll)
	}
	return rt
}
