package pref

// MergeRecord merges stored values over defaults. Only keys present in
// defaults survive; missing keys fall back to the default; every value passes
// through normalize when it is non-nil.
func MergeRecord[M ~map[string]V, V any](defaults, stored M, normalize func(key string, v V) V) M {
	out := make(M, len(defaults))
	for key, def := range defaults {
		v := def
		if sv, ok := stored[key]; ok {
			v = sv
		}
		if normalize != nil {
			v = normalize(key, v)
		}
		out[key] = v
	}
	return out
}

// RecordEqual is a shallow key/value comparison.
func RecordEqual[M ~map[string]V, V comparable](a, b M) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}
