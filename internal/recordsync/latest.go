package recordsync

import "time"

// SelectLatest keeps, for every key, the record with the greatest time.
// Ties keep the record seen first. The result follows the order in which
// keys first appear.
func SelectLatest[T any, K comparable](records []T, key func(T) K, at func(T) time.Time) []T {
	idx := latestIndices(records, key, at)
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}

// Partition splits records into the latest per key and the superseded rest,
// both in input order of first appearance.
func Partition[T any, K comparable](records []T, key func(T) K, at func(T) time.Time) (latest, superseded []T) {
	idx := latestIndices(records, key, at)
	kept := make(map[int]bool, len(idx))
	for _, j := range idx {
		kept[j] = true
		latest = append(latest, records[j])
	}
	for i, r := range records {
		if !kept[i] {
			superseded = append(superseded, r)
		}
	}
	return latest, superseded
}

func latestIndices[T any, K comparable](records []T, key func(T) K, at func(T) time.Time) []int {
	slot := make(map[K]int, len(records))
	var idx []int
	for i, r := range records {
		k := key(r)
		s, ok := slot[k]
		if !ok {
			slot[k] = len(idx)
			idx = append(idx, i)
			continue
		}
		if at(r).After(at(records[idx[s]])) {
			idx[s] = i
		}
	}
	return idx
}
