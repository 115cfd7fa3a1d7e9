// Package domain implements the activity lifecycle and participation engine.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"example.com/volunteer/internal/events"
	"example.com/volunteer/internal/reminder"
)

// ListFilter narrows activity listings. Zero values mean "no constraint".
type ListFilter struct {
	Page   int
	Limit  int
	Type   ActivityType
	Status ActivityStatus
	Role   ParticipantRole
	From   time.Time
	To     time.Time
}

// Normalize clamps pagination values to sane defaults.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

// Cursor models the keyset pagination token for upcoming listings.
type Cursor struct {
	StartsAt time.Time
	ID       string
}

// StatsSummary holds derived counts over the activity store.
type StatsSummary struct {
	Total     int
	ByStatus  map[ActivityStatus]int
	ByType    map[ActivityType]int
	Upcoming  int
	Completed int
}

// ActivityRepository captures persistence operations. Implementations must make
// AddParticipant and RemoveParticipant atomic with the participant counter so
// two registrations racing for the last seat cannot both succeed.
type ActivityRepository interface {
	Create(ctx context.Context, activity Activity, reminders []events.ActivityReminder) error
	Get(ctx context.Context, activityID string) (*Activity, error)
	ListForUser(ctx context.Context, userID string, filter ListFilter) ([]Activity, int, error)
	ListUpcoming(ctx context.Context, after time.Time, cursor *Cursor, limit int, activityType ActivityType) ([]Activity, *Cursor, error)
	ListByOpportunity(ctx context.Context, opportunityID string, filter ListFilter) ([]Activity, int, error)
	AddParticipant(ctx context.Context, participant Participant) error
	RemoveParticipant(ctx context.Context, activityID, userID string) error
	GetParticipant(ctx context.Context, activityID, userID string) (*Participant, error)
	ListParticipants(ctx context.Context, activityID string) ([]Participant, error)
	UpsertConfirmation(ctx context.Context, confirmation Confirmation) error
	UpdateStatus(ctx context.Context, activityID string, from, to ActivityStatus, notifications []events.ActivityNotification) error
	Stats(ctx context.Context, userID string, now time.Time) (*StatsSummary, error)
}

// Service orchestrates the activity workflows over an ActivityRepository.
type Service struct {
	repo ActivityRepository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo ActivityRepository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	Title           string
	Description     string
	Type            ActivityType
	StartsAt        time.Time
	EndsAt          time.Time
	Timezone        string
	Location        Location
	MaxParticipants *int32
	IsRecurring     bool
	RecurrenceRule  string
	OpportunityID   string
	CreatedBy       string
	Materials       []Material
	Requirements    []Requirement
	Draft           bool
}

// CreateActivity validates the schedule window, persists the activity together
// with its materials, requirements and reminder jobs in one transaction, and
// returns the stored aggregate. Reminder offsets already in the past at
// creation time are skipped.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (*Activity, error) {
	if !input.StartsAt.Before(input.EndsAt) {
		return nil, ErrInvalidSchedule
	}

	now := s.now()
	status := StatusScheduled
	if input.Draft {
		status = StatusDraft
	}

	activity := Activity{
		ID:              uuid.NewString(),
		Title:           input.Title,
		Description:     input.Description,
		Type:            input.Type,
		StartsAt:        input.StartsAt.UTC(),
		EndsAt:          input.EndsAt.UTC(),
		Timezone:        input.Timezone,
		Location:        input.Location,
		MaxParticipants: input.MaxParticipants,
		IsRecurring:     input.IsRecurring,
		RecurrenceRule:  input.RecurrenceRule,
		Status:          status,
		OpportunityID:   input.OpportunityID,
		CreatedBy:       input.CreatedBy,
		Materials:       input.Materials,
		Requirements:    input.Requirements,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	snapshot := events.ActivitySnapshot{
		ActivityID: activity.ID,
		Title:      activity.Title,
		StartsAt:   activity.StartsAt,
		Location:   activity.Location.Label(),
	}
	reminders := reminder.JobsFor(snapshot, activity.CreatedBy, now)
	if err := s.repo.Create(ctx, activity, reminders); err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, activityID string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ListForUser returns activities the user participates in, with the total
// matching count for pagination.
func (s *Service) ListForUser(ctx context.Context, userID string, filter ListFilter) ([]Activity, int, error) {
	return s.repo.ListForUser(ctx, userID, filter.Normalize())
}

// ListUpcoming returns activities starting at or after now, keyset-paginated.
func (s *Service) ListUpcoming(ctx context.Context, cursor *Cursor, limit int, activityType ActivityType) ([]Activity, *Cursor, error) {
	if limit < 1 {
		limit = 20
	}
	return s.repo.ListUpcoming(ctx, s.now(), cursor, limit, activityType)
}

// ListByOpportunity returns activities attached to an opportunity.
func (s *Service) ListByOpportunity(ctx context.Context, opportunityID string, filter ListFilter) ([]Activity, int, error) {
	return s.repo.ListByOpportunity(ctx, opportunityID, filter.Normalize())
}

// Register enrols the user into the activity. The capacity check and the
// participant counter increment happen as one atomic store operation; the
// repository reports ErrCapacityExceeded or ErrAlreadyRegistered when the
// conditional insert loses.
func (s *Service) Register(ctx context.Context, activityID, userID string, role ParticipantRole) (*Participant, error) {
	activity, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	if !activity.OpenForRegistration() {
		return nil, ErrNotOpenForRegistration
	}

	if role == "" {
		role = RoleParticipant
	}

	participant := Participant{
		ActivityID: activityID,
		UserID:     userID,
		Role:       role,
		JoinedAt:   s.now(),
	}
	if err := s.repo.AddParticipant(ctx, participant); err != nil {
		return nil, err
	}
	return &participant, nil
}

// Unregister removes the user's enrolment before the activity starts and
// decrements the participant counter atomically.
func (s *Service) Unregister(ctx context.Context, activityID, userID string) error {
	activity, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return err
	}
	if activity == nil {
		return ErrActivityNotFound
	}
	if !s.now().Before(activity.StartsAt) {
		return ErrActivityStarted
	}
	return s.repo.RemoveParticipant(ctx, activityID, userID)
}

// ConfirmAttendance records or overwrites the participant's attendance intent.
// The operation is an insert-or-replace keyed by (activity, user): repeated
// calls update the same row and may move between intents freely.
func (s *Service) ConfirmAttendance(ctx context.Context, activityID, userID string, status ConfirmationStatus, notes string) (*Confirmation, error) {
	participant, err := s.repo.GetParticipant(ctx, activityID, userID)
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, ErrNotRegistered
	}

	confirmation := Confirmation{
		ActivityID: activityID,
		UserID:     userID,
		Status:     status,
		Notes:      notes,
	}
	if status == ConfirmationConfirmed {
		confirmedAt := s.now()
		confirmation.ConfirmedAt = &confirmedAt
	}

	if err := s.repo.UpsertConfirmation(ctx, confirmation); err != nil {
		return nil, err
	}
	return &confirmation, nil
}

// UpdateStatus moves the activity through its lifecycle. Only the owner may
// transition; the allowed edges are enforced and the store applies the change
// only while the activity still holds the status the check saw, so two owners
// racing on the same transition cannot both win. Each current participant gets
// one notification event, recorded transactionally with the status change and
// delivered best-effort downstream.
func (s *Service) UpdateStatus(ctx context.Context, activityID string, status ActivityStatus, requesterID string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	if activity.CreatedBy != requesterID {
		return nil, ErrPermissionDenied
	}
	if !CanTransition(activity.Status, status) {
		return nil, ErrInvalidTransition
	}

	var notifications []events.ActivityNotification
	if message := StatusMessage(status); message != "" {
		participants, err := s.repo.ListParticipants(ctx, activityID)
		if err != nil {
			return nil, err
		}
		occurredAt := s.now()
		notifications = make([]events.ActivityNotification, 0, len(participants))
		for _, participant := range participants {
			notifications = append(notifications, events.ActivityNotification{
				ActivityID: activityID,
				UserID:     participant.UserID,
				Status:     string(status),
				Message:    message,
				OccurredAt: occurredAt,
			})
		}
	}

	if err := s.repo.UpdateStatus(ctx, activityID, activity.Status, status, notifications); err != nil {
		return nil, err
	}

	activity.Status = status
	activity.UpdatedAt = s.now()
	return activity, nil
}

// Stats recomputes derived counts on every call. An empty userID aggregates
// across all activities.
func (s *Service) Stats(ctx context.Context, userID string) (*StatsSummary, error) {
	return s.repo.Stats(ctx, userID, s.now())
}
