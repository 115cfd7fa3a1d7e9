package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/volunteer/internal/events"
)

func TestJobsFor(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	snapshot := events.ActivitySnapshot{
		ActivityID: "act-1",
		Title:      "Beach cleanup",
		StartsAt:   now.Add(48 * time.Hour),
		Location:   "1 Ocean Dr, Santa Cruz",
	}

	jobs := JobsFor(snapshot, "user-1", now)
	require.Len(t, jobs, 3)
	require.Equal(t, snapshot.StartsAt.Add(-24*time.Hour), jobs[0].SendAt)
	require.Equal(t, snapshot.StartsAt.Add(-2*time.Hour), jobs[1].SendAt)
	require.Equal(t, snapshot.StartsAt.Add(-30*time.Minute), jobs[2].SendAt)

	for _, job := range jobs {
		require.Equal(t, "user-1", job.UserID)
		require.Equal(t, "act-1", job.Activity.ActivityID)
		require.Equal(t, "Beach cleanup", job.Activity.Title)
		require.Equal(t, "1 Ocean Dr, Santa Cruz", job.Activity.Location)
	}
}

func TestJobsForSkipsElapsedOffsets(t *testing.T) {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	snapshot := events.ActivitySnapshot{ActivityID: "act-1", StartsAt: now.Add(90 * time.Minute)}
	jobs := JobsFor(snapshot, "user-1", now)
	require.Len(t, jobs, 1)
	require.Equal(t, now.Add(time.Hour), jobs[0].SendAt)

	// A send instant exactly at now is already due and gets skipped.
	snapshot = events.ActivitySnapshot{ActivityID: "act-2", StartsAt: now.Add(30 * time.Minute)}
	require.Empty(t, JobsFor(snapshot, "user-1", now))

	snapshot = events.ActivitySnapshot{ActivityID: "act-3", StartsAt: now.Add(-time.Hour)}
	require.Empty(t, JobsFor(snapshot, "user-1", now))
}
