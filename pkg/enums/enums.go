// Package enums holds the string-backed states persisted by the order workflow.
package enums

import (
	"fmt"
	"slices"
)

// Parse matches raw against the known values of an enum type.
func Parse[T ~string](raw string, known []T) (T, error) {
	if v := T(raw); slices.Contains(known, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %T %q", zero, raw)
}
