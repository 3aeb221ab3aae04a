package table

// ChangeReason describes why a snapshot was replaced.
type ChangeReason string

const (
	ReasonInit    ChangeReason = "init"
	ReasonPage    ChangeReason = "page"
	ReasonSize    ChangeReason = "size"
	ReasonSort    ChangeReason = "sort"
	ReasonFilters ChangeReason = "filters"
	ReasonReset   ChangeReason = "reset"
)

// SortOrder is the direction of a sort entry.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortSpec is a single sort entry.
type SortSpec struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// Snapshot is the query state of a table: pagination, sorting and filters.
// Page is zero-based.
type Snapshot[F any] struct {
	Page    int        `json:"page"`
	Size    int        `json:"size"`
	Sort    []SortSpec `json:"sort"`
	Filters F          `json:"filters"`
}

// Clone returns a copy whose Sort slice does not alias the receiver's.
func (s Snapshot[F]) Clone() Snapshot[F] {
	out := s
	if s.Sort != nil {
		out.Sort = append([]SortSpec(nil), s.Sort...)
	}
	return out
}

// Listener receives every snapshot accepted by a StateAdapter.
type Listener[F any] func(next Snapshot[F], reason ChangeReason)

// StateAdapter owns the query snapshot of one table instance.
// The snapshot is only mutated through SetSnapshot.
type StateAdapter[F any] interface {
	Snapshot() Snapshot[F]
	SetSnapshot(next Snapshot[F], reason ChangeReason)
	Subscribe(fn Listener[F]) (unsubscribe func())
}

// DataSource is the row/pagination collaborator. Only the retry surface is
// consumed by the engine; rows are fed to the host with Result.
type DataSource interface {
	Refetch()
	Retry()
}

// Result is what a DataSource produced for the current snapshot.
// Total is negative when the number of matching rows is unknown.
type Result[T any] struct {
	Rows             []T
	PageCount        int
	Total            int
	IsInitialLoading bool
	IsFetching       bool
	Err              error
}

// TotalKnown reports whether Total carries a real count.
func (r Result[T]) TotalKnown() bool {
	return r.Total >= 0
}
