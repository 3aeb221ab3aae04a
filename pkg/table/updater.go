package table

// Updater is either a literal next value or a function of the previous one.
// The zero Updater applies the zero value of T.
type Updater[T any] struct {
	value T
	fn    func(prev T) T
}

// Set returns an Updater carrying a literal value.
func Set[T any](value T) Updater[T] {
	return Updater[T]{value: value}
}

// Update returns an Updater that derives the next value from the previous one.
func Update[T any](fn func(prev T) T) Updater[T] {
	return Updater[T]{fn: fn}
}

// Apply resolves the updater against prev.
func (u Updater[T]) Apply(prev T) T {
	if u.fn != nil {
		return u.fn(prev)
	}
	return u.value
}
