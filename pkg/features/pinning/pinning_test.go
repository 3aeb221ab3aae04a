package pinning

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/datatable/pkg/table"
)

func TestPinning(t *testing.T) {
	cols := []table.ColumnDef{
		{ID: "select", Pin: table.PinLeft},
		{ID: "name"},
		{ID: "actions", Pin: table.PinRight},
	}
	changes := 0
	f := New(Config{Enabled: true, Columns: cols, OnChange: func() { changes++ }})

	want := table.PinningState{Left: []string{"select"}, Right: []string{"actions"}}
	if diff := cmp.Diff(want, f.State()); diff != "" {
		t.Errorf("initial mismatch (-want +got):\n%s", diff)
	}

	f.Pin("name", table.PinLeft)
	f.Pin("actions", table.PinLeft)
	f.Pin("missing", table.PinRight)
	want = table.PinningState{Left: []string{"select", "name", "actions"}, Right: []string{}}
	if diff := cmp.Diff(want, f.State()); diff != "" {
		t.Errorf("after pin mismatch (-want +got):\n%s", diff)
	}
	if changes != 2 {
		t.Errorf("changes = %d, want 2", changes)
	}

	f.Reset()
	want = table.PinningState{Left: []string{"select"}, Right: []string{"actions"}}
	if diff := cmp.Diff(want, f.State()); diff != "" {
		t.Errorf("after reset mismatch (-want +got):\n%s", diff)
	}
}

func TestDisabledRuntime(t *testing.T) {
	f := New(Config{Columns: []table.ColumnDef{{ID: "a", Pin: table.PinLeft}}})
	if rt := Runtime[int](f); rt.Options.ColumnPinning != nil || rt.Reset != nil {
		t.Errorf("disabled runtime = %+v", rt)
	}
}
