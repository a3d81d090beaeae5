// Package sets provides small helpers for working with sets of mod names.
// Sets are represented as map[string]struct{} for efficient lookups.
package sets

import "sort"

// Set represents a collection of unique string values.
type Set map[string]struct{}

// Make converts a slice of strings into a Set. Duplicates collapse.
func Make(items []string) Set {
	set := make(Set, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// Add inserts an item into the set.
func (s Set) Add(item string) {
	s[item] = struct{}{}
}

// Has reports whether the item is present.
func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the set's elements as a new, sorted slice.
func Sorted(set Set) []string {
	slice := make([]string, 0, len(set))
	for k := range set {
		slice = append(slice, k)
	}
	sort.Strings(slice)
	return slice
}

// Union returns a new set containing all elements present in either a or b.
func Union(a, b Set) Set {
	result := make(Set, len(a)+len(b))
	for k := range a {
		result[k] = struct{}{}
	}
	for k := range b {
		result[k] = struct{}{}
	}
	return result
}

// Subtract returns a new set containing elements of a that are not in b.
func Subtract(a, b Set) Set {
	result := make(Set)
	for k := range a {
		if _, found := b[k]; !found {
			result[k] = struct{}{}
		}
	}
	return result
}

// Equal checks if two sets contain the exact same elements.
func Equal(a, b Set) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, found := b[k]; !found {
			return false
		}
	}
	return true
}

// Copy returns a new set containing all elements from the original set.
func Copy(original Set) Set {
	dup := make(Set, len(original))
	for k := range original {
		dup[k] = struct{}{}
	}
	return dup
}
