package launch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_ThreeRounds(t *testing.T) {
	plan, err := Parse(baseArgs("-I", "day=mon,tue,wed"), NewFixedGenerator("exec-1"))
	require.NoError(t, err)

	cursor := plan.Cursor()
	assert.Equal(t, CursorNotStarted, cursor.State())

	var days []string
	var indices []int
	for cursor.HasNext() {
		rc, err := cursor.Advance()
		require.NoError(t, err)
		days = append(days, rc.Bindings["day"])
		indices = append(indices, rc.Index)
		assert.Equal(t, 3, rc.Total)
		if rc.Index < 3 {
			assert.Equal(t, CursorInProgress, cursor.State())
		}
	}

	assert.Equal(t, []string{"mon", "tue", "wed"}, days)
	assert.Equal(t, []int{1, 2, 3}, indices)
	assert.Equal(t, CursorExhausted, cursor.State())
	assert.False(t, cursor.HasNext())
}

func TestCursor_AdvancePastEnd(t *testing.T) {
	plan, err := Parse(baseArgs(), NewFixedGenerator("exec-1"))
	require.NoError(t, err)

	cursor := plan.Cursor()
	require.True(t, cursor.HasNext())
	_, err = cursor.Advance()
	require.NoError(t, err)

	assert.False(t, cursor.HasNext())
	_, err = cursor.Advance()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalState))

	// Still exhausted after the failed call.
	assert.Equal(t, CursorExhausted, cursor.State())
}

func TestCursor_Independent(t *testing.T) {
	plan, err := Parse(baseArgs("--rounds", "2"), NewFixedGenerator("exec-1"))
	require.NoError(t, err)

	first := plan.Cursor()
	_, err = first.Advance()
	require.NoError(t, err)

	second := plan.Cursor()
	rc, err := second.Advance()
	require.NoError(t, err)
	assert.Equal(t, 1, rc.Index)
	assert.Equal(t, CursorInProgress, first.State())
}

func TestCursor_EmptyPlan(t *testing.T) {
	cursor := (&RoundPlan{}).Cursor()

	assert.Equal(t, CursorExhausted, cursor.State())
	assert.False(t, cursor.HasNext())

	_, err := cursor.Advance()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalState))
}

func TestCursorState_String(t *testing.T) {
	assert.Equal(t, "not_started", CursorNotStarted.String())
	assert.Equal(t, "in_progress", CursorInProgress.String())
	assert.Equal(t, "exhausted", CursorExhausted.String())
	assert.Equal(t, "CursorState(7)", CursorState(7).String())
}
