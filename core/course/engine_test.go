package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
)

func TestComputeSnapshot(t *testing.T) {
	weightings := []Weighting{
		{CategoryID: "tasks", Percentage: 40},
		{CategoryID: "exams", Percentage: 60},
	}
	items := []GradedItem{
		{CategoryID: "tasks", Name: "Task A", PossiblePoints: null.Float64From(10), ObtainedPoints: null.Float64From(10)},
		{CategoryID: "tasks", Name: "Task B", PossiblePoints: null.Float64From(10), ObtainedPoints: null.Float64From(8)},
		{CategoryID: "exams", Name: "Exam A", PossiblePoints: null.Float64From(100), ObtainedPoints: null.Float64From(90)},
		{CategoryID: "exams", Name: "Exam B", PossiblePoints: null.Float64From(100)}, // pending
	}

	snap, err := ComputeSnapshot(weightings, items)
	require.NoError(t, err)

	assert.InDelta(t, 108, snap.Earned, weightSumEpsilon)
	assert.InDelta(t, 12, snap.Lost, weightSumEpsilon)
	assert.InDelta(t, 100, snap.Pending, weightSumEpsilon)
	// tasks: 18/20 × 40 = 36 ; exams: 90/100 × 60 = 54
	assert.InDelta(t, 90, snap.FinalGrade, weightSumEpsilon)
}

func TestComputeSnapshot_noWeightings(t *testing.T) {
	items := []GradedItem{
		{CategoryID: "tasks", Name: "Task A", PossiblePoints: null.Float64From(10), ObtainedPoints: null.Float64From(7)},
		{CategoryID: "tasks", Name: "Task B", PossiblePoints: null.Float64From(5)},
	}

	snap, err := ComputeSnapshot(nil, items)
	require.NoError(t, err)

	// points still tally; the final grade has nothing to weight against
	assert.InDelta(t, 7, snap.Earned, weightSumEpsilon)
	assert.InDelta(t, 3, snap.Lost, weightSumEpsilon)
	assert.InDelta(t, 5, snap.Pending, weightSumEpsilon)
	assert.Zero(t, snap.FinalGrade)
}

func TestComputeSnapshot_badSum(t *testing.T) {
	weightings := []Weighting{
		{CategoryID: "tasks", Percentage: 40},
		{CategoryID: "exams", Percentage: 50},
	}

	_, err := ComputeSnapshot(weightings, nil)
	require.Error(t, err)
	assert.True(t, core.IsConsistencyError(err))
	assert.EqualError(t, err, "installed weightings sum to 90 instead of 100")
}

func TestComputeSnapshot_unsizedItemsExcluded(t *testing.T) {
	weightings := []Weighting{{CategoryID: "tasks", Percentage: 100}}
	items := []GradedItem{
		{CategoryID: "tasks", Name: "Planned", Status: "draft"}, // not sized yet
		{CategoryID: "tasks", Name: "Task A", PossiblePoints: null.Float64From(50), ObtainedPoints: null.Float64From(25)},
	}

	snap, err := ComputeSnapshot(weightings, items)
	require.NoError(t, err)

	assert.InDelta(t, 25, snap.Earned, weightSumEpsilon)
	assert.InDelta(t, 25, snap.Lost, weightSumEpsilon)
	assert.Zero(t, snap.Pending)
	assert.InDelta(t, 50, snap.FinalGrade, weightSumEpsilon)
}

func TestComputeSnapshot_deterministicOrder(t *testing.T) {
	weightings := []Weighting{
		{CategoryID: "a", Percentage: 33.333},
		{CategoryID: "b", Percentage: 33.333},
		{CategoryID: "c", Percentage: 33.334},
	}
	items := []GradedItem{
		{CategoryID: "a", PossiblePoints: null.Float64From(3), ObtainedPoints: null.Float64From(1)},
		{CategoryID: "b", PossiblePoints: null.Float64From(3), ObtainedPoints: null.Float64From(2)},
		{CategoryID: "c", PossiblePoints: null.Float64From(3), ObtainedPoints: null.Float64From(3)},
	}

	first, err := ComputeSnapshot(weightings, items)
	require.NoError(t, err)

	// shuffling the item slice must not change a single bit of the result
	reordered := []GradedItem{items[2], items[0], items[1]}
	second, err := ComputeSnapshot(weightings, reordered)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
