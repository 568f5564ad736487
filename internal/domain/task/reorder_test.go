package task

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanColumnOrderEmptySequence(t *testing.T) {
	_, err := PlanColumnOrder(nil)
	require.ErrorIs(t, err, ErrEmptySequence)
}

func TestPlanColumnOrderDenseRanks(t *testing.T) {
	// Sparse stored orders compact to dense 1-based ranks.
	patches, err := PlanColumnOrder([]Task{
		{ID: "a", Order: 10},
		{ID: "b", Order: 2},
		{ID: "c", Order: 30},
	})
	require.NoError(t, err)
	require.Equal(t, []OrderPatch{
		{TaskID: "a", Order: 1},
		{TaskID: "c", Order: 3},
	}, patches)
}

func TestPlanColumnOrderNoChanges(t *testing.T) {
	patches, err := PlanColumnOrder([]Task{
		{ID: "a", Order: 1},
		{ID: "b", Order: 2},
	})
	require.NoError(t, err)
	require.Empty(t, patches)
}
