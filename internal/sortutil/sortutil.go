package sortutil

import (
	"sort"
	"strings"
)

// StablePathSort returns a new slice containing the input paths sorted
// lexicographically. The original slice is not modified.
func StablePathSort(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Strings(out)
	return out
}

// DedupeFold removes case-insensitive duplicates while keeping the first
// spelling and the first-seen order.
func DedupeFold(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		k := strings.ToLower(p)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	return out
}
