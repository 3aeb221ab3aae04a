package tablestate

import (
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vango-dev/datatable/pkg/table"
)

// Query parameter names.
const (
	ParamPage    = "page"
	ParamSize    = "size"
	ParamSort    = "sort"
	FilterPrefix = "f."
)

// NavigateMode tells the navigator whether to add a history entry.
type NavigateMode int

const (
	ModePush NavigateMode = iota
	ModeReplace
)

// Navigator applies a query string to the location.
type Navigator func(query url.Values, mode NavigateMode)

// URLOption configures a URL adapter.
type URLOption[F any] func(*URL[F])

// WithFilterCodec overrides JSONFilters.
func WithFilterCodec[F any](c FilterCodec[F]) URLOption[F] {
	return func(u *URL[F]) {
		u.codec = c
	}
}

// WithDebounce delays navigation for filter changes, so that typing in a
// search box produces one history entry.
func WithDebounce[F any](d time.Duration) URLOption[F] {
	return func(u *URL[F]) {
		u.debounce = d
	}
}

// URL is a StateAdapter backed by query parameters. The snapshot is held in
// memory and every change is pushed to the Navigator; Sync applies queries
// that changed outside the adapter (back/forward navigation).
type URL[F any] struct {
	*Memory[F]

	defaults table.Snapshot[F]
	codec    FilterCodec[F]
	navigate Navigator
	debounce time.Duration

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewURL creates an adapter initialized from query over defaults.
func NewURL[F any](query url.Values, defaults table.Snapshot[F], navigate Navigator, opts ...URLOption[F]) *URL[F] {
	u := &URL[F]{
		defaults: defaults.Clone(),
		codec:    JSONFilters[F](),
		navigate: navigate,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.Memory = NewMemory(u.Decode(query))
	return u
}

// SetSnapshot replaces the snapshot and navigates. Filter changes replace the
// history entry; other changes push one.
func (u *URL[F]) SetSnapshot(next table.Snapshot[F], reason table.ChangeReason) {
	u.Memory.SetSnapshot(next, reason)

	query := u.Encode(next)
	mode := ModePush
	if reason == table.ReasonFilters || reason == table.ReasonInit {
		mode = ModeReplace
	}
	if reason == table.ReasonFilters && u.debounce > 0 {
		u.timerMu.Lock()
		defer u.timerMu.Unlock()
		if u.timer != nil {
			u.timer.Stop()
		}
		u.timer = time.AfterFunc(u.debounce, func() {
			u.performNavigation(query, mode)
		})
		return
	}
	u.performNavigation(query, mode)
}

// Sync applies a query that changed outside the adapter. Nothing happens when
// it decodes to the current snapshot.
func (u *URL[F]) Sync(query url.Values) {
	next := u.Decode(query)
	prev := u.Snapshot()
	reason, changed := Diff(prev, next)
	if !changed {
		return
	}
	u.Memory.SetSnapshot(next, reason)
}

// Encode renders snap as query parameters, omitting defaults.
func (u *URL[F]) Encode(snap table.Snapshot[F]) url.Values {
	q := url.Values{}
	if snap.Page != u.defaults.Page {
		q.Set(ParamPage, strconv.Itoa(snap.Page+1))
	}
	if snap.Size != u.defaults.Size {
		q.Set(ParamSize, strconv.Itoa(snap.Size))
	}
	if s := FormatSort(snap.Sort); s != FormatSort(u.defaults.Sort) {
		q.Set(ParamSort, s)
	}
	if u.codec.Encode != nil {
		params := u.codec.Encode(snap.Filters)
		for _, name := range sortedKeys(params) {
			q.Set(FilterPrefix+name, params[name])
		}
	}
	return q
}

// Decode parses query parameters over the defaults. Malformed numbers fall
// back to the default.
func (u *URL[F]) Decode(q url.Values) table.Snapshot[F] {
	snap := u.defaults.Clone()
	if v, err := strconv.Atoi(q.Get(ParamPage)); err == nil && v >= 1 {
		snap.Page = v - 1
	}
	if v, err := strconv.Atoi(q.Get(ParamSize)); err == nil && v > 0 {
		snap.Size = v
	}
	if q.Has(ParamSort) {
		snap.Sort = ParseSort(q.Get(ParamSort))
	}

	params := map[string]string{}
	for key, values := range q {
		if name, ok := strings.CutPrefix(key, FilterPrefix); ok && name != "" && len(values) > 0 {
			params[name] = values[0]
		}
	}
	if len(params) > 0 && u.codec.Decode != nil {
		snap.Filters = u.codec.Decode(params)
	}
	return snap
}

func (u *URL[F]) performNavigation(query url.Values, mode NavigateMode) {
	if u.navigate == nil {
		return
	}
	u.navigate(query, mode)
}

// Diff reports the most significant difference between two snapshots:
// filters, then sort, then size, then page.
func Diff[F any](prev, next table.Snapshot[F]) (table.ChangeReason, bool) {
	switch {
	case !reflect.DeepEqual(prev.Filters, next.Filters):
		return table.ReasonFilters, true
	case FormatSort(prev.Sort) != FormatSort(next.Sort):
		return table.ReasonSort, true
	case prev.Size != next.Size:
		return table.ReasonSize, true
	case prev.Page != next.Page:
		return table.ReasonPage, true
	}
	return "", false
}
