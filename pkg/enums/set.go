package enums

import (
	"fmt"
	"slices"
)

// set is the closed list of values behind one string enum.
type set[T ~string] struct {
	label  string
	values []T
}

func newSet[T ~string](label string, values ...T) set[T] {
	return set[T]{label: label, values: values}
}

func (s set[T]) has(v T) bool {
	return slices.Contains(s.values, v)
}

// parse matches raw exactly; callers normalize case before parsing if needed.
func (s set[T]) parse(raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", s.label, raw)
}

