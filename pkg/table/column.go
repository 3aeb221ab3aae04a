package table

// Column sizing defaults used when a ColumnDef leaves a bound unset.
const (
	DefaultColumnSize    = 150
	DefaultColumnMinSize = 20
	DefaultColumnMaxSize = int(^uint(0) >> 1)
)

// PinSide is the edge a column is pinned to.
type PinSide string

const (
	PinNone  PinSide = ""
	PinLeft  PinSide = "left"
	PinRight PinSide = "right"
)

// ColumnDef is the subset of a column definition the engine reads.
type ColumnDef struct {
	ID     string
	Header string

	// EnableHiding defaults to true.
	EnableHiding *bool
	// DefaultHidden starts a hideable column hidden.
	DefaultHidden bool

	// EnableResizing defaults to true.
	EnableResizing *bool
	Size           int
	MinSize        int
	MaxSize        int

	Pin PinSide
}

// Hideable reports whether the user may hide the column.
func (c ColumnDef) Hideable() bool {
	return c.EnableHiding == nil || *c.EnableHiding
}

// Resizable reports whether the user may resize the column.
func (c ColumnDef) Resizable() bool {
	return c.EnableResizing == nil || *c.EnableResizing
}

// Bounds returns the effective default size and clamp range.
func (c ColumnDef) Bounds() (size, minSize, maxSize int) {
	size, minSize, maxSize = c.Size, c.MinSize, c.MaxSize
	if minSize <= 0 {
		minSize = DefaultColumnMinSize
	}
	if maxSize <= 0 {
		maxSize = DefaultColumnMaxSize
	}
	if maxSize < minSize {
		maxSize = minSize
	}
	if size <= 0 {
		size = DefaultColumnSize
	}
	return Clamp(size, minSize, maxSize), minSize, maxSize
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Bool returns a pointer to b, for the optional flags of ColumnDef and Options.
func Bool(b bool) *bool {
	return &b
}
