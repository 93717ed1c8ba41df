package quest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "heirloom/pkg/domain"
)

func batch(t *testing.T, n int) []Milestone {
	t.Helper()
	ms := make([]Milestone, n)
	for i := range ms {
		ms[i] = Milestone{
			ID:         id.NewMilestoneID(),
			OrderIndex: i,
			Title:      "milestone",
			Value:      1000,
			Mode:       VerificationModeManual,
			Status:     MilestoneStatusLocked,
		}
	}
	return ms
}

func TestValidateGraph(t *testing.T) {
	t.Run("accepts a linear chain", func(t *testing.T) {
		ms := batch(t, 3)
		ms[1].Prerequisites = []id.MilestoneID{ms[0].ID}
		ms[2].Prerequisites = []id.MilestoneID{ms[1].ID}
		assert.NoError(t, ValidateGraph(ms))
	})

	t.Run("accepts a diamond", func(t *testing.T) {
		ms := batch(t, 4)
		ms[1].Prerequisites = []id.MilestoneID{ms[0].ID}
		ms[2].Prerequisites = []id.MilestoneID{ms[0].ID}
		ms[3].Prerequisites = []id.MilestoneID{ms[1].ID, ms[2].ID}
		assert.NoError(t, ValidateGraph(ms))
	})

	t.Run("rejects an empty batch", func(t *testing.T) {
		assert.Error(t, ValidateGraph(nil))
	})

	t.Run("rejects duplicate order indices", func(t *testing.T) {
		ms := batch(t, 3)
		ms[2].OrderIndex = 1
		err := ValidateGraph(ms)
		var ge *GraphError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, []int{1}, ge.Offending)
	})

	t.Run("rejects gapped order indices", func(t *testing.T) {
		ms := batch(t, 3)
		ms[2].OrderIndex = 5
		err := ValidateGraph(ms)
		var ge *GraphError
		require.ErrorAs(t, err, &ge)
		assert.Contains(t, ge.Offending, 2)
	})

	t.Run("rejects prerequisites on the first milestone", func(t *testing.T) {
		ms := batch(t, 2)
		ms[0].Prerequisites = []id.MilestoneID{ms[1].ID}
		err := ValidateGraph(ms)
		var ge *GraphError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, []int{0}, ge.Offending)
	})

	t.Run("rejects dangling prerequisite references", func(t *testing.T) {
		ms := batch(t, 2)
		ms[1].Prerequisites = []id.MilestoneID{id.NewMilestoneID()}
		err := ValidateGraph(ms)
		var ge *GraphError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, []int{1}, ge.Offending)
	})

	t.Run("rejects forward references", func(t *testing.T) {
		ms := batch(t, 3)
		ms[1].Prerequisites = []id.MilestoneID{ms[2].ID}
		err := ValidateGraph(ms)
		var ge *GraphError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, []int{1}, ge.Offending)
	})

	t.Run("rejects two-node cycles", func(t *testing.T) {
		// A mutual dependency always trips the forward-reference rule first;
		// either rejection is correct, the batch must not persist.
		ms := batch(t, 3)
		ms[1].Prerequisites = []id.MilestoneID{ms[2].ID}
		ms[2].Prerequisites = []id.MilestoneID{ms[1].ID}
		assert.Error(t, ValidateGraph(ms))
	})

	t.Run("rejects negative unlock values", func(t *testing.T) {
		ms := batch(t, 2)
		ms[1].Value = -5
		assert.Error(t, ValidateGraph(ms))
	})
}

func TestFindCycleMembers(t *testing.T) {
	t.Run("flags every member of the cycle", func(t *testing.T) {
		ms := batch(t, 4)
		ms[1].Prerequisites = []id.MilestoneID{ms[3].ID}
		ms[2].Prerequisites = []id.MilestoneID{ms[1].ID}
		ms[3].Prerequisites = []id.MilestoneID{ms[2].ID}
		cyclic := findCycleMembers(ms, MilestonesByID(ms))
		assert.Equal(t, []int{1, 2, 3}, cyclic)
	})

	t.Run("returns nil for a DAG", func(t *testing.T) {
		ms := batch(t, 3)
		ms[2].Prerequisites = []id.MilestoneID{ms[0].ID, ms[1].ID}
		assert.Nil(t, findCycleMembers(ms, MilestonesByID(ms)))
	})
}

func TestRemoveMilestone(t *testing.T) {
	ms := batch(t, 4)
	ms[1].Prerequisites = []id.MilestoneID{ms[0].ID}
	ms[2].Prerequisites = []id.MilestoneID{ms[1].ID}
	ms[3].Prerequisites = []id.MilestoneID{ms[1].ID, ms[2].ID}

	out := RemoveMilestone(ms, ms[2].ID)

	require.Len(t, out, 3)
	for i := range out {
		assert.Equal(t, i, out[i].OrderIndex, "indices must be renumbered contiguously")
	}
	// The deleted milestone is gone from every sibling's prerequisite set.
	assert.Equal(t, []id.MilestoneID{ms[1].ID}, out[2].Prerequisites)
	assert.NoError(t, ValidateGraph(out))
}
