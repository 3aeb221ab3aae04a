package features

import (
	"github.com/vango-dev/datatable/internal/errors"
	"github.com/vango-dev/datatable/pkg/table"
)

// ColumnMeta is what the features need to know about the columns.
type ColumnMeta struct {
	IDs         []string
	Hideable    []string
	Resizable   []string
	PinnedLeft  []string
	PinnedRight []string
}

// DeriveColumnMeta checks column ids and collects per-column capabilities in
// column order. Empty and duplicate ids are setup errors (DT002, DT003).
func DeriveColumnMeta(cols []table.ColumnDef) (ColumnMeta, error) {
	meta := ColumnMeta{
		IDs:         make([]string, 0, len(cols)),
		Hideable:    []string{},
		Resizable:   []string{},
		PinnedLeft:  []string{},
		PinnedRight: []string{},
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c.ID == "" {
			return ColumnMeta{}, errors.New("DT002").
				WithDetail("column definition without an id").
				WithSubject(c.Header).
				WithSuggestion("Give every column a unique ID")
		}
		if seen[c.ID] {
			return ColumnMeta{}, errors.New("DT003").WithSubject(c.ID)
		}
		seen[c.ID] = true

		meta.IDs = append(meta.IDs, c.ID)
		if c.Hideable() {
			meta.Hideable = append(meta.Hideable, c.ID)
		}
		if c.Resizable() {
			meta.Resizable = append(meta.Resizable, c.ID)
		}
		switch c.Pin {
		case table.PinLeft:
			meta.PinnedLeft = append(meta.PinnedLeft, c.ID)
		case table.PinRight:
			meta.PinnedRight = append(meta.PinnedRight, c.ID)
		}
	}
	return meta, nil
}

// checkRefs reports the first id not declared by meta.
func (m ColumnMeta) checkRefs(ids ...[]string) error {
	known := make(map[string]bool, len(m.IDs))
	for _, id := range m.IDs {
		known[id] = true
	}
	for _, list := range ids {
		for _, id := range list {
			if !known[id] {
				return errors.New("DT002").WithSubject(id)
			}
		}
	}
	return nil
}
