package tablestate

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/datatable/pkg/table"
)

type userFilters struct {
	Status string `json:"status,omitempty"`
	MinAge int    `json:"minAge,omitempty"`
	Code   string `json:"code,omitempty"`
}

func TestMemoryNotifiesInOrder(t *testing.T) {
	m := NewMemory(table.Snapshot[userFilters]{Size: 10})

	var got []string
	unsubA := m.Subscribe(func(s table.Snapshot[userFilters], r table.ChangeReason) {
		got = append(got, "a:"+string(r))
	})
	m.Subscribe(func(s table.Snapshot[userFilters], r table.ChangeReason) {
		got = append(got, "b:"+string(r))
	})

	next := m.Snapshot()
	next.Page = 3
	m.SetSnapshot(next, table.ReasonPage)

	unsubA()
	unsubA()
	next.Sort = []table.SortSpec{{Field: "name", Order: table.SortAsc}}
	m.SetSnapshot(next, table.ReasonSort)

	want := []string{"a:page", "b:page", "b:sort"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	if m.Snapshot().Page != 3 {
		t.Errorf("Page = %d, want 3", m.Snapshot().Page)
	}
}

func TestMemorySnapshotIsCopy(t *testing.T) {
	m := NewMemory(table.Snapshot[userFilters]{Sort: []table.SortSpec{{Field: "a"}}})
	s := m.Snapshot()
	s.Sort[0].Field = "mutated"
	if got := m.Snapshot().Sort[0].Field; got != "a" {
		t.Errorf("Sort[0].Field = %q, want %q", got, "a")
	}
}

func TestSortFormat(t *testing.T) {
	specs := ParseSort("name:asc, created:DESC,:asc,age")
	want := []table.SortSpec{
		{Field: "name", Order: table.SortAsc},
		{Field: "created", Order: table.SortDesc},
		{Field: "age", Order: table.SortAsc},
	}
	if diff := cmp.Diff(want, specs); diff != "" {
		t.Errorf("ParseSort mismatch (-want +got):\n%s", diff)
	}
	if got := FormatSort(specs); got != "name:asc,created:desc,age:asc" {
		t.Errorf("FormatSort = %q", got)
	}
}

func TestURLAdapter(t *testing.T) {
	defaults := table.Snapshot[userFilters]{Size: 25}

	t.Run("decode", func(t *testing.T) {
		q, _ := url.ParseQuery("page=3&size=50&sort=name:desc&f.status=active&f.minAge=30&f.code=007")
		u := NewURL(q, defaults, nil)

		want := table.Snapshot[userFilters]{
			Page:    2,
			Size:    50,
			Sort:    []table.SortSpec{{Field: "name", Order: table.SortDesc}},
			Filters: userFilters{Status: "active", MinAge: 30, Code: "007"},
		}
		if diff := cmp.Diff(want, u.Snapshot()); diff != "" {
			t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("malformed values fall back", func(t *testing.T) {
		q, _ := url.ParseQuery("page=zero&size=-4")
		u := NewURL(q, defaults, nil)
		if got := u.Snapshot(); got.Page != 0 || got.Size != 25 {
			t.Errorf("got page=%d size=%d, want 0 and 25", got.Page, got.Size)
		}
	})

	t.Run("navigate", func(t *testing.T) {
		type nav struct {
			query string
			mode  NavigateMode
		}
		var navs []nav
		u := NewURL(url.Values{}, defaults, func(q url.Values, mode NavigateMode) {
			navs = append(navs, nav{q.Encode(), mode})
		})

		s := u.Snapshot()
		s.Filters.Status = "active"
		u.SetSnapshot(s, table.ReasonFilters)
		s.Page = 1
		u.SetSnapshot(s, table.ReasonPage)

		want := []nav{
			{"f.status=active", ModeReplace},
			{"f.status=active&page=2", ModePush},
		}
		if diff := cmp.Diff(want, navs, cmp.AllowUnexported(nav{})); diff != "" {
			t.Errorf("navigations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("sync reports reason", func(t *testing.T) {
		u := NewURL(url.Values{}, defaults, nil)
		var reasons []table.ChangeReason
		u.Subscribe(func(_ table.Snapshot[userFilters], r table.ChangeReason) {
			reasons = append(reasons, r)
		})

		u.Sync(url.Values{"page": {"2"}})
		u.Sync(url.Values{"page": {"2"}})
		u.Sync(url.Values{"page": {"2"}, "f.status": {"new"}})

		want := []table.ChangeReason{table.ReasonPage, table.ReasonFilters}
		if diff := cmp.Diff(want, reasons); diff != "" {
			t.Errorf("reasons mismatch (-want +got):\n%s", diff)
		}
	})
}
