package litetable

import (
	"sort"
)

// Latest returns up to n most recent values for a qualifier.
// If n is 0, returns all values sorted by timestamp descending.
func (r *Row) Latest(family, qualifier string, n int) []TimestampedValue {
	vq, ok := r.Columns[family]
	if !ok {
		return nil
	}
	values, ok := vq[qualifier]
	if !ok {
		return nil
	}

	// Create a copy to avoid modifying the row
	valuesCopy := make([]TimestampedValue, len(values))
	copy(valuesCopy, values)

	// Sort by timestamp descending (newest first)
	sort.Slice(valuesCopy, func(i, j int) bool {
		return valuesCopy[i].Timestamp > valuesCopy[j].Timestamp
	})

	// If n is 0 or greater than the length, return all values
	if n <= 0 || n >= len(valuesCopy) {
		return valuesCopy
	}

	return valuesCopy[:n]
}

// Value returns the newest value for a qualifier, if the cell exists.
func (r *Row) Value(family, qualifier string) ([]byte, bool) {
	latest := r.Latest(family, qualifier, 1)
	if len(latest) == 0 {
		return nil, false
	}
	return latest[0].Value, true
}
