package booking

// Strategy is one named step of a heuristic cascade.
type Strategy[T any] struct {
	Name string
	Try  func() (T, bool)
}

// FirstOf returns the result of the first strategy that succeeds together
// with its name.
func FirstOf[T any](strategies ...Strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		if v, ok := s.Try(); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}
