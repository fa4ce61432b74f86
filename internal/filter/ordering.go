package filter

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/joeblew999/plat-layers/internal/style"
)

// FieldOrderingStrategy decides in which order the fields of a unique-value
// style become levels of the decision trie. Fields earlier in the order are
// tested first.
type FieldOrderingStrategy interface {
	Order(fields []string, tuples [][]style.FieldValue) []int
}

// DistinctValuesFirst is the default greedy ordering: fields with more
// distinct values among the rendered entries come first, ties go to the field
// with fewer occurrences, then to declaration order.
//
// It is a heuristic aimed at keeping the expression short and shallow, not an
// exact minimal cover.
type DistinctValuesFirst struct{}

func (DistinctValuesFirst) Order(fields []string, tuples [][]style.FieldValue) []int {
	type stat struct {
		index    int
		distinct int
		total    int
	}
	stats := make([]stat, len(fields))
	for i := range fields {
		seen := mapset.NewThreadUnsafeSet[string]()
		total := 0
		for _, t := range tuples {
			if i < len(t) {
				seen.Add(t[i].Key())
				total++
			}
		}
		stats[i] = stat{index: i, distinct: seen.Cardinality(), total: total}
	}

	slices.SortStableFunc(stats, func(a, b stat) int {
		if a.distinct != b.distinct {
			return b.distinct - a.distinct
		}
		return a.total - b.total
	})

	order := make([]int, len(stats))
	for i, s := range stats {
		order[i] = s.index
	}
	return order
}
