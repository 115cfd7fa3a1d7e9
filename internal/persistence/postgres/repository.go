// Package postgres provides pgx-backed persistence for activities, participants,
// confirmations and outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/volunteer/internal/domain"
	"example.com/volunteer/internal/events"
	"example.com/volunteer/internal/observability"
)

const uniqueViolation = "23505"

const activityColumns = `activity_id, title, description, activity_type, starts_at, ends_at, timezone,
        is_online, meeting_url, address, city, state, zip, country, latitude, longitude,
        max_participants, current_participants, is_recurring, recurrence_rule, status,
        opportunity_id, created_by, created_at, updated_at`

// Repository provides Postgres-backed persistence for the activity engine.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create persists the activity, its materials and requirements, and the reminder
// outbox events inside a single transaction. A failing reminder insert rolls the
// whole creation back; a failing dispatch later never touches the stored row.
func (r *Repository) Create(ctx context.Context, activity domain.Activity, reminders []events.ActivityReminder) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertActivity = `INSERT INTO activities (activity_id, title, description, activity_type, starts_at, ends_at, timezone,
            is_online, meeting_url, address, city, state, zip, country, latitude, longitude,
            max_participants, current_participants, is_recurring, recurrence_rule, status,
            opportunity_id, created_by, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`

	loc := activity.Location
	_, err = tx.Exec(ctx, insertActivity,
		activity.ID,
		activity.Title,
		activity.Description,
		activity.Type,
		activity.StartsAt,
		activity.EndsAt,
		activity.Timezone,
		loc.IsOnline,
		nullIfEmpty(loc.MeetingURL),
		nullIfEmpty(loc.Address),
		nullIfEmpty(loc.City),
		nullIfEmpty(loc.State),
		nullIfEmpty(loc.Zip),
		nullIfEmpty(loc.Country),
		loc.Latitude,
		loc.Longitude,
		activity.MaxParticipants,
		activity.CurrentParticipants,
		activity.IsRecurring,
		nullIfEmpty(activity.RecurrenceRule),
		activity.Status,
		nullIfEmpty(activity.OpportunityID),
		activity.CreatedBy,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for position, material := range activity.Materials {
		if _, err = tx.Exec(ctx,
			`INSERT INTO activity_materials (activity_id, position, name, quantity, unit, required, provider)
             VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			activity.ID, position, material.Name, material.Quantity, material.Unit, material.Required, nullIfEmpty(material.Provider),
		); err != nil {
			return err
		}
	}

	for position, requirement := range activity.Requirements {
		if _, err = tx.Exec(ctx,
			`INSERT INTO activity_requirements (activity_id, position, title, requirement_type, required, priority, min_value, max_value)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			activity.ID, position, requirement.Title, requirement.Type, requirement.Required, requirement.Priority, requirement.MinValue, requirement.MaxValue,
		); err != nil {
			return err
		}
	}

	for i, job := range reminders {
		dedupeKey := fmt.Sprintf("%s:%s:%d", activity.ID, events.TypeActivityReminder, i)
		if err = insertOutbox(ctx, tx, activity.ID, events.TypeActivityReminder, activity.ID, dedupeKey, job); err != nil {
			return err
		}
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.CreatedAt)
	return nil
}

// Get retrieves an activity and its child rows by ID. Returns nil when absent.
func (r *Repository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id=$1`, activityID)

	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadChildren(ctx, activity); err != nil {
		return nil, err
	}
	return activity, nil
}

func (r *Repository) loadChildren(ctx context.Context, activity *domain.Activity) error {
	rows, err := r.pool.Query(ctx,
		`SELECT name, quantity, unit, required, COALESCE(provider, '')
         FROM activity_materials WHERE activity_id=$1 ORDER BY position`, activity.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var material domain.Material
		if err := rows.Scan(&material.Name, &material.Quantity, &material.Unit, &material.Required, &material.Provider); err != nil {
			return err
		}
		activity.Materials = append(activity.Materials, material)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	rows, err = r.pool.Query(ctx,
		`SELECT title, requirement_type, required, priority, min_value, max_value
         FROM activity_requirements WHERE activity_id=$1 ORDER BY position`, activity.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var requirement domain.Requirement
		if err := rows.Scan(&requirement.Title, &requirement.Type, &requirement.Required, &requirement.Priority, &requirement.MinValue, &requirement.MaxValue); err != nil {
			return err
		}
		activity.Requirements = append(activity.Requirements, requirement)
	}
	return rows.Err()
}

// ListForUser returns activities the user participates in, newest first, with
// the total matching count for page/limit pagination.
func (r *Repository) ListForUser(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.Activity, int, error) {
	var (
		conditions = []string{"p.user_id = $1"}
		args       = []interface{}{userID}
	)
	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("p.role = $%d", len(args)))
	}
	conditions, args = appendActivityFilters(conditions, args, filter)

	query := `SELECT ` + prefixColumns("a") + `, COUNT(*) OVER() AS total
        FROM activities a
        JOIN activity_participants p ON p.activity_id = a.activity_id
        WHERE ` + strings.Join(conditions, " AND ") + `
        ORDER BY a.starts_at DESC, a.activity_id DESC`

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.queryActivitiesWithTotal(ctx, query, args)
}

// ListUpcoming returns activities starting at or after the given instant using
// keyset pagination.
func (r *Repository) ListUpcoming(ctx context.Context, after time.Time, cursor *domain.Cursor, limit int, activityType domain.ActivityType) ([]domain.Activity, *domain.Cursor, error) {
	args := []interface{}{after, limit}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE starts_at >= $1`

	if activityType != "" {
		args = append(args, activityType)
		query += fmt.Sprintf(" AND activity_type = $%d", len(args))
	}
	if cursor != nil {
		args = append(args, cursor.StartsAt, cursor.ID)
		query += fmt.Sprintf(" AND (starts_at, activity_id) > ($%d, $%d)", len(args)-1, len(args))
	}
	query += " ORDER BY starts_at ASC, activity_id ASC LIMIT $2"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{StartsAt: last.StartsAt, ID: last.ID}
	}
	return results, next, nil
}

// ListByOpportunity returns activities attached to the opportunity.
func (r *Repository) ListByOpportunity(ctx context.Context, opportunityID string, filter domain.ListFilter) ([]domain.Activity, int, error) {
	conditions := []string{"a.opportunity_id = $1"}
	args := []interface{}{opportunityID}
	conditions, args = appendActivityFilters(conditions, args, filter)

	query := `SELECT ` + prefixColumns("a") + `, COUNT(*) OVER() AS total
        FROM activities a
        WHERE ` + strings.Join(conditions, " AND ") + `
        ORDER BY a.starts_at DESC, a.activity_id DESC`

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.queryActivitiesWithTotal(ctx, query, args)
}

// AddParticipant admits the user under the capacity bound. The conditional
// UPDATE takes the activity row lock and performs the capacity check and the
// counter increment as one statement, so two registrations racing for the last
// seat serialize and exactly one wins.
func (r *Repository) AddParticipant(ctx context.Context, participant domain.Participant) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE activities
         SET current_participants = current_participants + 1, updated_at = $2
         WHERE activity_id = $1
           AND (max_participants IS NULL OR current_participants < max_participants)`,
		participant.ActivityID, participant.JoinedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM activities WHERE activity_id=$1)`, participant.ActivityID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			err = domain.ErrActivityNotFound
			return err
		}
		// A registered user retrying against a full activity gets the
		// duplicate error, not the capacity one.
		var registered bool
		if err = tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM activity_participants WHERE activity_id=$1 AND user_id=$2)`,
			participant.ActivityID, participant.UserID).Scan(&registered); err != nil {
			return err
		}
		if registered {
			err = domain.ErrAlreadyRegistered
			return err
		}
		err = domain.ErrCapacityExceeded
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO activity_participants (activity_id, user_id, role, joined_at) VALUES ($1,$2,$3,$4)`,
		participant.ActivityID, participant.UserID, participant.Role, participant.JoinedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = domain.ErrAlreadyRegistered
		}
		return err
	}

	err = tx.Commit(ctx)
	if err == nil {
		observability.RecordRegistration()
	}
	return err
}

// RemoveParticipant deletes the enrolment and decrements the counter in the
// same transaction. The participant's confirmation row goes with it.
func (r *Repository) RemoveParticipant(ctx context.Context, activityID, userID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`DELETE FROM activity_participants WHERE activity_id=$1 AND user_id=$2`, activityID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrNotRegistered
		return err
	}

	if _, err = tx.Exec(ctx,
		`DELETE FROM activity_confirmations WHERE activity_id=$1 AND user_id=$2`, activityID, userID); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx,
		`UPDATE activities
         SET current_participants = GREATEST(current_participants - 1, 0), updated_at = NOW()
         WHERE activity_id = $1`, activityID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetParticipant returns the enrolment row or nil when absent.
func (r *Repository) GetParticipant(ctx context.Context, activityID, userID string) (*domain.Participant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT activity_id, user_id, role, joined_at FROM activity_participants WHERE activity_id=$1 AND user_id=$2`,
		activityID, userID)

	var participant domain.Participant
	if err := row.Scan(&participant.ActivityID, &participant.UserID, &participant.Role, &participant.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}

// ListParticipants returns all enrolments for the activity ordered by join time.
func (r *Repository) ListParticipants(ctx context.Context, activityID string) ([]domain.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT activity_id, user_id, role, joined_at FROM activity_participants
         WHERE activity_id=$1 ORDER BY joined_at, user_id`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]domain.Participant, 0)
	for rows.Next() {
		var participant domain.Participant
		if err := rows.Scan(&participant.ActivityID, &participant.UserID, &participant.Role, &participant.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	return participants, rows.Err()
}

// UpsertConfirmation inserts or replaces the attendance intent keyed by
// (activity, user).
func (r *Repository) UpsertConfirmation(ctx context.Context, confirmation domain.Confirmation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_confirmations (activity_id, user_id, status, confirmed_at, notes)
         VALUES ($1,$2,$3,$4,$5)
         ON CONFLICT (activity_id, user_id)
         DO UPDATE SET status = EXCLUDED.status, confirmed_at = EXCLUDED.confirmed_at, notes = EXCLUDED.notes`,
		confirmation.ActivityID, confirmation.UserID, confirmation.Status, confirmation.ConfirmedAt, nullIfEmpty(confirmation.Notes))
	return err
}

// UpdateStatus sets the lifecycle state and records one notification outbox row
// per participant in the same transaction. The UPDATE is guarded by the status
// the caller validated against, so a concurrent transition that already moved
// the row makes this one fail with ErrInvalidTransition instead of clobbering
// it. Delivery happens downstream and is best-effort per recipient.
func (r *Repository) UpdateStatus(ctx context.Context, activityID string, from, to domain.ActivityStatus, notifications []events.ActivityNotification) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE activities SET status = $2, updated_at = NOW() WHERE activity_id = $1 AND status = $3`,
		activityID, to, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM activities WHERE activity_id=$1)`, activityID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			err = domain.ErrActivityNotFound
			return err
		}
		err = domain.ErrInvalidTransition
		return err
	}

	for _, notification := range notifications {
		dedupeKey := fmt.Sprintf("%s:%s:%s:%s", activityID, events.TypeActivityNotification, to, notification.UserID)
		if err = insertOutbox(ctx, tx, activityID, events.TypeActivityNotification, notification.UserID, dedupeKey, notification); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Stats recomputes derived counts. An empty userID aggregates over everything;
// otherwise only activities the user owns or participates in are counted.
func (r *Repository) Stats(ctx context.Context, userID string, now time.Time) (*domain.StatsSummary, error) {
	scope := ""
	args := []interface{}{}
	if userID != "" {
		// Parenthesized so the upcoming query can AND a time bound onto it.
		scope = ` WHERE (created_by = $1
            OR EXISTS (SELECT 1 FROM activity_participants p WHERE p.activity_id = activities.activity_id AND p.user_id = $1))`
		args = append(args, userID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT status, activity_type, COUNT(*) FROM activities`+scope+` GROUP BY status, activity_type`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &domain.StatsSummary{
		ByStatus: make(map[domain.ActivityStatus]int),
		ByType:   make(map[domain.ActivityType]int),
	}
	for rows.Next() {
		var (
			status       domain.ActivityStatus
			activityType domain.ActivityType
			count        int
		)
		if err := rows.Scan(&status, &activityType, &count); err != nil {
			return nil, err
		}
		summary.ByStatus[status] += count
		summary.ByType[activityType] += count
		summary.Total += count
		if status == domain.StatusCompleted {
			summary.Completed += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	upcomingArgs := append([]interface{}{}, args...)
	upcomingArgs = append(upcomingArgs, now)
	upcomingQuery := `SELECT COUNT(*) FROM activities`
	if scope == "" {
		upcomingQuery += fmt.Sprintf(" WHERE starts_at >= $%d", len(upcomingArgs))
	} else {
		upcomingQuery += scope + fmt.Sprintf(" AND starts_at >= $%d", len(upcomingArgs))
	}
	if err := r.pool.QueryRow(ctx, upcomingQuery, upcomingArgs...).Scan(&summary.Upcoming); err != nil {
		return nil, err
	}

	return summary, nil
}

func (r *Repository) queryActivitiesWithTotal(ctx context.Context, query string, args []interface{}) ([]domain.Activity, int, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var total int
	results := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivityWithTotal(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType, partitionKey, dedupeKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*domain.Activity, error) {
	return scanActivityInto(row, nil)
}

func scanActivityWithTotal(row rowScanner, total *int) (*domain.Activity, error) {
	return scanActivityInto(row, total)
}

func scanActivityInto(row rowScanner, total *int) (*domain.Activity, error) {
	var (
		activity       domain.Activity
		meetingURL     *string
		address        *string
		city           *string
		state          *string
		zip            *string
		country        *string
		recurrenceRule *string
		opportunityID  *string
	)

	dest := []any{
		&activity.ID, &activity.Title, &activity.Description, &activity.Type,
		&activity.StartsAt, &activity.EndsAt, &activity.Timezone,
		&activity.Location.IsOnline, &meetingURL, &address, &city, &state, &zip, &country,
		&activity.Location.Latitude, &activity.Location.Longitude,
		&activity.MaxParticipants, &activity.CurrentParticipants,
		&activity.IsRecurring, &recurrenceRule, &activity.Status,
		&opportunityID, &activity.CreatedBy, &activity.CreatedAt, &activity.UpdatedAt,
	}
	if total != nil {
		dest = append(dest, total)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	activity.Location.MeetingURL = deref(meetingURL)
	activity.Location.Address = deref(address)
	activity.Location.City = deref(city)
	activity.Location.State = deref(state)
	activity.Location.Zip = deref(zip)
	activity.Location.Country = deref(country)
	activity.RecurrenceRule = deref(recurrenceRule)
	activity.OpportunityID = deref(opportunityID)
	return &activity, nil
}

func appendActivityFilters(conditions []string, args []interface{}, filter domain.ListFilter) ([]string, []interface{}) {
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("a.activity_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("a.starts_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("a.starts_at <= $%d", len(args)))
	}
	return conditions, args
}

func prefixColumns(alias string) string {
	parts := strings.Split(activityColumns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityReminder: {
		Topic:         "activity_reminders",
		SchemaSubject: "activity_reminders-value",
	},
	events.TypeActivityNotification: {
		Topic:         "activity_notifications",
		SchemaSubject: "activity_notifications-value",
	},
}
