package course

import (
	"fmt"
	"math"

	"github.com/trezcool/alama/core"
)

// ComputeSnapshot derives a course's aggregate snapshot from its installed
// weightings and graded items. It is a pure function: same inputs, same
// snapshot.
//
//   - earned:  sum of obtained points over graded items
//   - lost:    sum of (possible - obtained) over graded items
//   - pending: sum of possible points over sized but ungraded items
//   - final grade: Σ category (obtained/possible) × category percentage,
//     over weighted categories holding at least one graded item
//
// Items without possible points are excluded from every total. An empty
// weighting set yields a zero snapshot; a non-empty set whose percentages no
// longer sum to 100 is a data anomaly and aborts with a ConsistencyError.
func ComputeSnapshot(weightings []Weighting, items []GradedItem) (AggregateSnapshot, error) {
	var snap AggregateSnapshot

	if len(weightings) > 0 {
		var sum float64
		for _, w := range weightings {
			sum += w.Percentage
		}
		if math.Abs(sum-100) > weightSumEpsilon {
			return snap, core.NewConsistencyError(
				fmt.Sprintf("installed weightings sum to %s instead of 100", fmtPoints(sum)))
		}
	}

	type bucket struct {
		obtained float64
		possible float64
	}
	buckets := make(map[string]*bucket)

	for _, it := range items {
		if !it.PossiblePoints.Valid {
			continue
		}
		possible := it.PossiblePoints.Float64
		if !it.ObtainedPoints.Valid {
			snap.Pending += possible
			continue
		}
		obtained := it.ObtainedPoints.Float64
		snap.Earned += obtained
		snap.Lost += possible - obtained

		b := buckets[it.CategoryID]
		if b == nil {
			b = &bucket{}
			buckets[it.CategoryID] = b
		}
		b.obtained += obtained
		b.possible += possible
	}

	// iterate weightings, not the bucket map, so the grade accumulates in a
	// deterministic order
	for _, w := range weightings {
		if b := buckets[w.CategoryID]; b != nil && b.possible > 0 {
			snap.FinalGrade += b.obtained / b.possible * w.Percentage
		}
	}
	return snap, nil
}
