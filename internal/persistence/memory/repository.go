// Package memory provides an in-memory ActivityRepository for unit tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/volunteer/internal/domain"
	"example.com/volunteer/internal/events"
)

type participantKey struct {
	activityID string
	userID     string
}

// Repository stores activities in process memory. All mutations run under one
// mutex, which gives the same atomicity the Postgres repository gets from
// row-conditional updates.
type Repository struct {
	mu            sync.RWMutex
	activities    map[string]domain.Activity
	participants  map[participantKey]domain.Participant
	confirmations map[participantKey]domain.Confirmation

	// Emitted events are retained so tests can assert on outbox contents.
	Reminders     []events.ActivityReminder
	Notifications []events.ActivityNotification
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		activities:    make(map[string]domain.Activity),
		participants:  make(map[participantKey]domain.Participant),
		confirmations: make(map[participantKey]domain.Confirmation),
	}
}

// Seed inserts an activity directly, bypassing workflow validation.
func (r *Repository) Seed(activity domain.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities[activity.ID] = activity
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(ctx context.Context, activity domain.Activity, reminders []events.ActivityReminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.activities[activity.ID] = activity
	r.Reminders = append(r.Reminders, reminders...)
	return nil
}

// Get returns the activity or nil when absent.
func (r *Repository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, ok := r.activities[activityID]
	if !ok {
		return nil, nil
	}
	return &activity, nil
}

// ListForUser returns activities the user participates in, filtered and paged.
func (r *Repository) ListForUser(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.Activity, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Activity, 0)
	for key, participant := range r.participants {
		if key.userID != userID {
			continue
		}
		if filter.Role != "" && participant.Role != filter.Role {
			continue
		}
		activity, ok := r.activities[key.activityID]
		if !ok || !matchesFilter(activity, filter) {
			continue
		}
		matched = append(matched, activity)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartsAt.After(matched[j].StartsAt)
	})

	total := len(matched)
	return pageSlice(matched, filter.Page, filter.Limit), total, nil
}

// ListUpcoming returns activities starting at or after the given instant.
func (r *Repository) ListUpcoming(ctx context.Context, after time.Time, cursor *domain.Cursor, limit int, activityType domain.ActivityType) ([]domain.Activity, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Activity, 0)
	for _, activity := range r.activities {
		if activity.StartsAt.Before(after) {
			continue
		}
		if activityType != "" && activity.Type != activityType {
			continue
		}
		matched = append(matched, activity)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].StartsAt.Equal(matched[j].StartsAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].StartsAt.Before(matched[j].StartsAt)
	})

	if cursor != nil {
		filtered := matched[:0]
		for _, activity := range matched {
			if activity.StartsAt.After(cursor.StartsAt) ||
				(activity.StartsAt.Equal(cursor.StartsAt) && activity.ID > cursor.ID) {
				filtered = append(filtered, activity)
			}
		}
		matched = filtered
	}

	if len(matched) > limit {
		matched = matched[:limit]
	}

	var next *domain.Cursor
	if len(matched) == limit && limit > 0 {
		last := matched[len(matched)-1]
		next = &domain.Cursor{StartsAt: last.StartsAt, ID: last.ID}
	}
	return matched, next, nil
}

// ListByOpportunity returns activities attached to the opportunity.
func (r *Repository) ListByOpportunity(ctx context.Context, opportunityID string, filter domain.ListFilter) ([]domain.Activity, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Activity, 0)
	for _, activity := range r.activities {
		if activity.OpportunityID != opportunityID || !matchesFilter(activity, filter) {
			continue
		}
		matched = append(matched, activity)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartsAt.After(matched[j].StartsAt)
	})

	total := len(matched)
	return pageSlice(matched, filter.Page, filter.Limit), total, nil
}

// AddParticipant inserts the participant and increments the counter as one
// locked step. The capacity check and the increment are never observable apart.
func (r *Repository) AddParticipant(ctx context.Context, participant domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[participant.ActivityID]
	if !ok {
		return domain.ErrActivityNotFound
	}

	key := participantKey{activityID: participant.ActivityID, userID: participant.UserID}
	if _, exists := r.participants[key]; exists {
		return domain.ErrAlreadyRegistered
	}
	if !activity.HasRoom() {
		return domain.ErrCapacityExceeded
	}

	r.participants[key] = participant
	activity.CurrentParticipants++
	activity.UpdatedAt = participant.JoinedAt
	r.activities[participant.ActivityID] = activity
	return nil
}

// RemoveParticipant deletes the participant and decrements the counter.
func (r *Repository) RemoveParticipant(ctx context.Context, activityID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := participantKey{activityID: activityID, userID: userID}
	if _, exists := r.participants[key]; !exists {
		return domain.ErrNotRegistered
	}

	delete(r.participants, key)
	delete(r.confirmations, key)

	activity, ok := r.activities[activityID]
	if ok && activity.CurrentParticipants > 0 {
		activity.CurrentParticipants--
		r.activities[activityID] = activity
	}
	return nil
}

// GetParticipant returns the participant or nil when absent.
func (r *Repository) GetParticipant(ctx context.Context, activityID, userID string) (*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participant, ok := r.participants[participantKey{activityID: activityID, userID: userID}]
	if !ok {
		return nil, nil
	}
	return &participant, nil
}

// ListParticipants returns all participants of the activity ordered by join time.
func (r *Repository) ListParticipants(ctx context.Context, activityID string) ([]domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participants := make([]domain.Participant, 0)
	for key, participant := range r.participants {
		if key.activityID == activityID {
			participants = append(participants, participant)
		}
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].UserID < participants[j].UserID
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants, nil
}

// UpsertConfirmation inserts or replaces the confirmation row for its identity.
func (r *Repository) UpsertConfirmation(ctx context.Context, confirmation domain.Confirmation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := participantKey{activityID: confirmation.ActivityID, userID: confirmation.UserID}
	if _, exists := r.participants[key]; !exists {
		return domain.ErrNotRegistered
	}
	r.confirmations[key] = confirmation
	return nil
}

// GetConfirmation returns the confirmation row or nil when absent.
func (r *Repository) GetConfirmation(ctx context.Context, activityID, userID string) (*domain.Confirmation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	confirmation, ok := r.confirmations[participantKey{activityID: activityID, userID: userID}]
	if !ok {
		return nil, nil
	}
	return &confirmation, nil
}

// UpdateStatus sets the lifecycle state and records the notification fan-out.
// The change applies only while the activity still holds the status the caller
// validated against.
func (r *Repository) UpdateStatus(ctx context.Context, activityID string, from, to domain.ActivityStatus, notifications []events.ActivityNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	activity, ok := r.activities[activityID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	if activity.Status != from {
		return domain.ErrInvalidTransition
	}
	activity.Status = to
	r.activities[activityID] = activity
	r.Notifications = append(r.Notifications, notifications...)
	return nil
}

// Stats recomputes derived counts over the stored activities.
func (r *Repository) Stats(ctx context.Context, userID string, now time.Time) (*domain.StatsSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := &domain.StatsSummary{
		ByStatus: make(map[domain.ActivityStatus]int),
		ByType:   make(map[domain.ActivityType]int),
	}

	for _, activity := range r.activities {
		if userID != "" && !r.involves(activity, userID) {
			continue
		}
		summary.Total++
		summary.ByStatus[activity.Status]++
		summary.ByType[activity.Type]++
		if !activity.StartsAt.Before(now) {
			summary.Upcoming++
		}
		if activity.Status == domain.StatusCompleted {
			summary.Completed++
		}
	}
	return summary, nil
}

func (r *Repository) involves(activity domain.Activity, userID string) bool {
	if activity.CreatedBy == userID {
		return true
	}
	_, ok := r.participants[participantKey{activityID: activity.ID, userID: userID}]
	return ok
}

func matchesFilter(activity domain.Activity, filter domain.ListFilter) bool {
	if filter.Type != "" && activity.Type != filter.Type {
		return false
	}
	if filter.Status != "" && activity.Status != filter.Status {
		return false
	}
	if !filter.From.IsZero() && activity.StartsAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && activity.StartsAt.After(filter.To) {
		return false
	}
	return true
}

func pageSlice(activities []domain.Activity, page, limit int) []domain.Activity {
	if limit <= 0 {
		return activities
	}
	start := (page - 1) * limit
	if start >= len(activities) {
		return []domain.Activity{}
	}
	end := start + limit
	if end > len(activities) {
		end = len(activities)
	}
	return activities[start:end]
}
