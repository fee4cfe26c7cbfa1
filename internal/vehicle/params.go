package vehicle

import (
	"maps"
	"slices"
	"strings"
)

// ParameterSet maps parameter names to values, as downloaded from the
// vehicle in one pass. Sets are compared for drift around fault
// injection under an ignore filter of volatile name prefixes.
type ParameterSet map[string]float64

// Change records a single parameter whose value differs between two
// downloads.
type Change struct {
	Name          string
	Before, After float64
}

// Clone returns an independent copy of the set.
func (p ParameterSet) Clone() ParameterSet {
	return maps.Clone(p)
}

// Diff returns the parameters whose values differ between p and
// after, excluding any name matching one of the ignore prefixes.
// Names present in only one of the two sets count as changed.
// Results are sorted by name.
func (p ParameterSet) Diff(after ParameterSet, ignorePrefixes []string) []Change {
	var changes []Change

	names := make(map[string]struct{}, len(p))
	for name := range p {
		names[name] = struct{}{}
	}
	for name := range after {
		names[name] = struct{}{}
	}

	for name := range names {
		if hasAnyPrefix(name, ignorePrefixes) {
			continue
		}
		before, inBefore := p[name]
		now, inAfter := after[name]
		if inBefore && inAfter && before == now {
			continue
		}
		changes = append(changes, Change{Name: name, Before: before, After: now})
	}

	slices.SortFunc(changes, func(a, b Change) int {
		return strings.Compare(a.Name, b.Name)
	})
	return changes
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
