package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    ActivityStatus
		to      ActivityStatus
		allowed bool
	}{
		{"draft to scheduled", StatusDraft, StatusScheduled, true},
		{"scheduled to confirmed", StatusScheduled, StatusConfirmed, true},
		{"confirmed to in_progress", StatusConfirmed, StatusInProgress, true},
		{"scheduled cannot skip confirmation", StatusScheduled, StatusInProgress, false},
		{"in_progress to completed", StatusInProgress, StatusCompleted, true},
		{"scheduled to cancelled", StatusScheduled, StatusCancelled, true},
		{"in_progress to cancelled", StatusInProgress, StatusCancelled, true},
		{"scheduled to postponed", StatusScheduled, StatusPostponed, true},
		{"postponed back to scheduled", StatusPostponed, StatusScheduled, true},
		{"postponed back to confirmed", StatusPostponed, StatusConfirmed, true},
		{"no self transition", StatusScheduled, StatusScheduled, false},
		{"draft cannot skip to completed", StatusDraft, StatusCompleted, false},
		{"scheduled cannot skip to completed", StatusScheduled, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusScheduled, false},
		{"cancelled is terminal", StatusCancelled, StatusScheduled, false},
		{"cancelled cannot be postponed", StatusCancelled, StatusPostponed, false},
		{"no backwards to draft", StatusScheduled, StatusDraft, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusCancelled.Terminal())
	require.False(t, StatusDraft.Terminal())
	require.False(t, StatusScheduled.Terminal())
	require.False(t, StatusConfirmed.Terminal())
	require.False(t, StatusInProgress.Terminal())
	require.False(t, StatusPostponed.Terminal())
}

func TestStatusMessage(t *testing.T) {
	require.Equal(t, "activity cancelled", StatusMessage(StatusCancelled))
	require.Equal(t, "activity postponed", StatusMessage(StatusPostponed))
	require.Equal(t, "activity confirmed", StatusMessage(StatusConfirmed))
	require.Equal(t, "activity under way", StatusMessage(StatusInProgress))
	require.Equal(t, "activity completed", StatusMessage(StatusCompleted))
	require.Empty(t, StatusMessage(StatusScheduled))
	require.Empty(t, StatusMessage(StatusDraft))
}
