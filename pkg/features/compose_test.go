package features

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	dterrors "github.com/vango-dev/datatable/internal/errors"
	"github.com/vango-dev/datatable/pkg/features/selection"
	"github.com/vango-dev/datatable/pkg/features/tree"
	"github.com/vango-dev/datatable/pkg/pref/store"
	"github.com/vango-dev/datatable/pkg/table"
	"github.com/vango-dev/datatable/pkg/tablestate"
)

type user struct {
	ID   string
	Name string
}

type userFilters struct {
	Query string
}

var userColumns = []table.ColumnDef{
	{ID: "select", EnableHiding: table.Bool(false), EnableResizing: table.Bool(false), Pin: table.PinLeft},
	{ID: "name"},
	{ID: "email", DefaultHidden: true},
	{ID: "actions", Pin: table.PinRight},
}

func userID(u user, _ int, _ *table.Row[user]) string { return u.ID }

func TestDeriveColumnMeta(t *testing.T) {
	meta, err := DeriveColumnMeta(userColumns)
	if err != nil {
		t.Fatal(err)
	}
	want := ColumnMeta{
		IDs:         []string{"select", "name", "email", "actions"},
		Hideable:    []string{"name", "email", "actions"},
		Resizable:   []string{"name", "email", "actions"},
		PinnedLeft:  []string{"select"},
		PinnedRight: []string{"actions"},
	}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Errorf("meta mismatch (-want +got):\n%s", diff)
	}
}

func TestComposeSetupErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config[user, userFilters]
		code string
	}{
		{
			name: "cross-page without row id",
			cfg: Config[user, userFilters]{
				Columns:   userColumns,
				Selection: selection.Config[user, userFilters]{Enabled: true, Mode: selection.ModeCrossPage},
			},
			code: "DT001",
		},
		{
			name: "column without id",
			cfg:  Config[user, userFilters]{Columns: []table.ColumnDef{{Header: "Name"}}},
			code: "DT002",
		},
		{
			name: "unknown pinned column",
			cfg: Config[user, userFilters]{
				Columns: userColumns,
				Pinning: PinningConfig{Enabled: true, Initial: &table.PinningState{Left: []string{"nope"}}},
			},
			code: "DT002",
		},
		{
			name: "duplicate id",
			cfg:  Config[user, userFilters]{Columns: []table.ColumnDef{{ID: "a"}, {ID: "a"}}},
			code: "DT003",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(tt.cfg)
			if !dterrors.HasCode(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestComposeOrderAndResets(t *testing.T) {
	adapter := tablestate.NewMemory(table.Snapshot[userFilters]{Size: 20})
	c, err := Compose(Config[user, userFilters]{
		Columns:   userColumns,
		GetRowID:  userID,
		Adapter:   adapter,
		Storage:   store.NewMemory(),
		Selection: selection.Config[user, userFilters]{Enabled: true, Mode: selection.ModeCrossPage},
		Density:   DensityConfig{PrefConfig: PrefConfig[table.Density]{StorageKey: "users.density"}},
		Pinning:   PinningConfig{Enabled: true},
		Tree:      tree.Config[user]{Enabled: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, rt := range c.Runtimes() {
		names = append(names, rt.Name)
	}
	want := []string{"core", "selection", "columnVisibility", "columnSizing", "density", "columnPinning", "tree", "dragSort"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	merged := table.Merge(c.Runtimes()...)
	if merged.Actions.ResetColumnVisibility != nil || merged.Actions.ResetColumnSizing != nil {
		t.Error("preferences without storage keys patched reset actions")
	}
	if merged.Actions.ResetDensity == nil {
		t.Error("density with a storage key has no reset action")
	}
	// core, selection, density, pinning, tree
	if len(merged.Resets) != 5 {
		t.Errorf("resets = %d, want 5", len(merged.Resets))
	}
	if merged.Options.GetRowID == nil {
		t.Error("cross-page selection did not patch GetRowID")
	}
	if c.Selection.Mode() != selection.ModeCrossPage {
		t.Errorf("selection mode = %v", c.Selection.Mode())
	}
	if c.Expansion != c.Tree.Expansion() {
		t.Error("tree does not drive the composed expansion")
	}
}

func TestCoreActions(t *testing.T) {
	adapter := tablestate.NewMemory(table.Snapshot[userFilters]{Size: 20})
	var reasons []table.ChangeReason
	adapter.Subscribe(func(_ table.Snapshot[userFilters], r table.ChangeReason) { reasons = append(reasons, r) })

	core := NewCore[user](adapter, nil)
	rt := core.Runtime()
	if rt.Actions.Refetch != nil {
		t.Error("Refetch patched without a data source")
	}

	rt.Actions.SetPage(3)
	rt.Actions.SetSort([]table.SortSpec{{Field: "name", Order: table.SortAsc}})
	core.SetPage(2)
	rt.Actions.SetPageSize(50)
	core.SetFilters(userFilters{Query: "ann"})
	rt.Reset()

	want := []table.ChangeReason{
		table.ReasonPage, table.ReasonSort, table.ReasonPage, table.ReasonSize, table.ReasonFilters, table.ReasonReset,
	}
	if diff := cmp.Diff(want, reasons); diff != "" {
		t.Errorf("reasons mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(table.Snapshot[userFilters]{Size: 20}, adapter.Snapshot()); diff != "" {
		t.Errorf("snapshot after reset mismatch (-want +got):\n%s", diff)
	}
}
