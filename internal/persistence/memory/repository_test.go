package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/volunteer/internal/domain"
)

func seed(repo *Repository, max *int32) domain.Activity {
	activity := domain.Activity{
		ID:              uuid.NewString(),
		Title:           "Shelter shift",
		Type:            domain.ActivityTypeVolunteerWork,
		StartsAt:        time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC),
		EndsAt:          time.Date(2026, time.May, 1, 14, 0, 0, 0, time.UTC),
		Status:          domain.StatusScheduled,
		MaxParticipants: max,
		CreatedBy:       "owner-1",
	}
	repo.Seed(activity)
	return activity
}

func TestAddParticipantAtomicCounter(t *testing.T) {
	repo := NewRepository()
	max := int32(3)
	activity := seed(repo, &max)

	const attempts = 24
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.AddParticipant(context.Background(), domain.Participant{
				ActivityID: activity.ID,
				UserID:     uuid.NewString(),
				Role:       domain.RoleParticipant,
				JoinedAt:   time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			require.ErrorIs(t, err, domain.ErrCapacityExceeded)
		}
	}
	require.Equal(t, 3, admitted)

	stored, err := repo.Get(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Equal(t, int32(3), stored.CurrentParticipants)

	participants, err := repo.ListParticipants(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Len(t, participants, 3)
}

func TestRemoveParticipantCascadesConfirmation(t *testing.T) {
	repo := NewRepository()
	activity := seed(repo, nil)

	participant := domain.Participant{
		ActivityID: activity.ID,
		UserID:     "user-1",
		Role:       domain.RoleParticipant,
		JoinedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.AddParticipant(context.Background(), participant))
	require.NoError(t, repo.UpsertConfirmation(context.Background(), domain.Confirmation{
		ActivityID: activity.ID,
		UserID:     "user-1",
		Status:     domain.ConfirmationConfirmed,
	}))

	require.NoError(t, repo.RemoveParticipant(context.Background(), activity.ID, "user-1"))

	confirmation, err := repo.GetConfirmation(context.Background(), activity.ID, "user-1")
	require.NoError(t, err)
	require.Nil(t, confirmation)

	stored, err := repo.Get(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Zero(t, stored.CurrentParticipants)

	require.ErrorIs(t, repo.RemoveParticipant(context.Background(), activity.ID, "user-1"), domain.ErrNotRegistered)
}

func TestUpsertConfirmationRequiresParticipant(t *testing.T) {
	repo := NewRepository()
	activity := seed(repo, nil)

	err := repo.UpsertConfirmation(context.Background(), domain.Confirmation{
		ActivityID: activity.ID,
		UserID:     "ghost",
		Status:     domain.ConfirmationMaybe,
	})
	require.ErrorIs(t, err, domain.ErrNotRegistered)
}

func TestListUpcomingOrderingAndCursor(t *testing.T) {
	repo := NewRepository()
	start := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)

	// Two activities share a start instant; ID breaks the tie.
	ids := []string{"a-1", "a-2", "a-3"}
	for i, id := range ids {
		offset := time.Duration(i/2) * time.Hour
		repo.Seed(domain.Activity{
			ID:       id,
			StartsAt: start.Add(offset),
			EndsAt:   start.Add(offset + time.Hour),
			Status:   domain.StatusScheduled,
		})
	}

	page, cursor, err := repo.ListUpcoming(context.Background(), start, nil, 2, "")
	require.NoError(t, err)
	require.Equal(t, []string{"a-1", "a-2"}, []string{page[0].ID, page[1].ID})
	require.NotNil(t, cursor)

	page, _, err = repo.ListUpcoming(context.Background(), start, cursor, 2, "")
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "a-3", page[0].ID)
}

func TestUpdateStatusGuardsCurrentState(t *testing.T) {
	repo := NewRepository()
	activity := seed(repo, nil)
	ctx := context.Background()

	require.NoError(t, repo.UpdateStatus(ctx, activity.ID, domain.StatusScheduled, domain.StatusCancelled, nil))

	// A second caller that validated against the stale scheduled state loses.
	err := repo.UpdateStatus(ctx, activity.ID, domain.StatusScheduled, domain.StatusPostponed, nil)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, getErr := repo.Get(ctx, activity.ID)
	require.NoError(t, getErr)
	require.Equal(t, domain.StatusCancelled, stored.Status)

	err = repo.UpdateStatus(ctx, uuid.NewString(), domain.StatusScheduled, domain.StatusCancelled, nil)
	require.ErrorIs(t, err, domain.ErrActivityNotFound)
}
