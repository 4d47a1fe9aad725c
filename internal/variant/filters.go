package variant

import (
	"slices"
	"strings"

	"github.com/inodb/vibe-vcf/internal/header"
)

// FilterSet is the immutable set of FILTER names of a record. A nil
// *FilterSet means filters were not evaluated ("."); an empty set means
// the record passed (PASS).
type FilterSet struct {
	names []string // sorted, unique
}

var passFilters = &FilterSet{}

// PassFilters returns the shared empty set of a record that passed.
func PassFilters() *FilterSet { return passFilters }

// NewFilterSet returns a set holding names. No names yields a passing
// set; PASS entries are dropped.
func NewFilterSet(names ...string) *FilterSet {
	s := make([]string, 0, len(names))
	for _, n := range names {
		if n != header.PassFilter {
			s = append(s, n)
		}
	}
	if len(s) == 0 {
		return passFilters
	}
	slices.Sort(s)
	return &FilterSet{names: slices.Compact(s)}
}

// IsEvaluated reports whether filters were applied.
func (f *FilterSet) IsEvaluated() bool { return f != nil }

// IsPass reports whether filters were applied and none failed.
func (f *FilterSet) IsPass() bool { return f != nil && len(f.names) == 0 }

// IsFiltered reports whether at least one filter failed.
func (f *FilterSet) IsFiltered() bool { return f.Len() > 0 }

// Len returns the number of failing filters.
func (f *FilterSet) Len() int {
	if f == nil {
		return 0
	}
	return len(f.names)
}

// Names returns the sorted filter names.
func (f *FilterSet) Names() []string {
	if f == nil {
		return nil
	}
	return slices.Clone(f.names)
}

// Contains reports whether name is in the set.
func (f *FilterSet) Contains(name string) bool {
	if f == nil {
		return false
	}
	_, ok := slices.BinarySearch(f.names, name)
	return ok
}

// IsSubsetOf reports whether every name of f is in o. Nil sets are empty.
func (f *FilterSet) IsSubsetOf(o *FilterSet) bool {
	for _, n := range f.Names() {
		if !o.Contains(n) {
			return false
		}
	}
	return true
}

// IsProperSubsetOf reports whether f is a subset of o and smaller.
func (f *FilterSet) IsProperSubsetOf(o *FilterSet) bool {
	return f.Len() < o.Len() && f.IsSubsetOf(o)
}

// Equal compares evaluation state and names.
func (f *FilterSet) Equal(o *FilterSet) bool {
	if f == nil || o == nil {
		return f == o
	}
	return slices.Equal(f.names, o.names)
}

// String renders the set as a FILTER column value.
func (f *FilterSet) String() string {
	switch {
	case f == nil:
		return MissingValue
	case len(f.names) == 0:
		return header.PassFilter
	}
	return strings.Join(f.names, ";")
}
