package table

import "context"

// Feature is one state machine of the engine. The host reads its Runtime
// after every change notification.
type Feature[T any] interface {
	Runtime() Runtime[T]
}

// RowObserver features receive every row of the current result, flattened
// in display order, and the total number of matching rows (negative when
// unknown). Sub-rows of collapsed rows are included.
type RowObserver[T any] interface {
	ObserveRows(rows []*Row[T], total int)
}

// VisibleRowObserver features receive only the rows that are shown: the
// top-level rows plus the sub-rows of expanded rows. The host calls it again
// whenever expansion changes.
type VisibleRowObserver[T any] interface {
	ObserveVisibleRows(rows []*Row[T], total int)
}

// SnapshotObserver features receive every snapshot accepted by the adapter.
type SnapshotObserver[F any] interface {
	ObserveSnapshot(next Snapshot[F], reason ChangeReason)
}

// Loader features have a one-shot asynchronous initial load.
type Loader interface {
	Load(ctx context.Context)
}

// Closer features stop applying asynchronous results when closed.
type Closer interface {
	Close()
}
