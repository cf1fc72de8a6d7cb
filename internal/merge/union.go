package merge

import (
	"cmp"
	"slices"
)

// UnionMerge merges two edited copies of a collection against their common
// base. Additions from either side are kept and deletions from either side
// are applied; there is no conflicting outcome. The result is sorted and
// free of duplicates.
func UnionMerge[T cmp.Ordered](local, remote, base []T) []T {
	baseSet := toSet(base)
	localSet := toSet(local)
	remoteSet := toSet(remote)

	deleted := make(map[T]struct{})
	for v := range baseSet {
		_, inLocal := localSet[v]
		_, inRemote := remoteSet[v]
		if !inLocal || !inRemote {
			deleted[v] = struct{}{}
		}
	}

	result := make(map[T]struct{}, len(baseSet)+len(localSet)+len(remoteSet))
	for v := range baseSet {
		result[v] = struct{}{}
	}
	for v := range localSet {
		if _, ok := baseSet[v]; !ok {
			result[v] = struct{}{}
		}
	}
	for v := range remoteSet {
		if _, ok := baseSet[v]; !ok {
			result[v] = struct{}{}
		}
	}
	for v := range deleted {
		delete(result, v)
	}

	return sortedKeys(result)
}

// MergeLabels is UnionMerge over label names.
func MergeLabels(local, remote, base []string) []string {
	return UnionMerge(local, remote, base)
}

// MergeAssignees is UnionMerge over assignee logins.
func MergeAssignees(local, remote, base []string) []string {
	return UnionMerge(local, remote, base)
}

// Diverged reports whether both sides changed membership relative to base.
// It is informational; UnionMerge resolves diverged collections as well.
func Diverged[T cmp.Ordered](local, remote, base []T) bool {
	return !EqualSets(local, base) && !EqualSets(remote, base)
}

// EqualSets reports whether a and b hold the same members, ignoring order
// and duplicates.
func EqualSets[T cmp.Ordered](a, b []T) bool {
	as, bs := toSet(a), toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}

// Normalize returns the sorted, de-duplicated members of values. It never
// returns nil.
func Normalize[T cmp.Ordered](values []T) []T {
	return sortedKeys(toSet(values))
}

func toSet[T comparable](values []T) map[T]struct{} {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func sortedKeys[T cmp.Ordered](set map[T]struct{}) []T {
	out := make([]T, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
