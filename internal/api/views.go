package api

import (
	"time"

	"example.com/volunteer/internal/domain"
)

// LocationView mirrors the activity location variant.
type LocationView struct {
	IsOnline   bool    `json:"is_online"`
	MeetingURL string  `json:"meeting_url,omitempty"`
	Address    string  `json:"address,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	Zip        string  `json:"zip,omitempty"`
	Country    string  `json:"country,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
}

// MaterialView mirrors a supply item.
type MaterialView struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
	Required bool   `json:"required"`
	Provider string `json:"provider,omitempty"`
}

// RequirementView mirrors a participant constraint.
type RequirementView struct {
	Title    string   `json:"title"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Priority int      `json:"priority"`
	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID          string            `json:"activity_id"`
	Title               string            `json:"title"`
	Description         string            `json:"description,omitempty"`
	Type                string            `json:"type"`
	StartsAt            time.Time         `json:"starts_at"`
	EndsAt              time.Time         `json:"ends_at"`
	Timezone            string            `json:"timezone"`
	Location            LocationView      `json:"location"`
	MaxParticipants     *int32            `json:"max_participants,omitempty"`
	CurrentParticipants int32             `json:"current_participants"`
	IsRecurring         bool              `json:"is_recurring"`
	RecurrenceRule      string            `json:"recurrence_rule,omitempty"`
	Status              string            `json:"status"`
	OpportunityID       string            `json:"opportunity_id,omitempty"`
	CreatedBy           string            `json:"created_by"`
	Materials           []MaterialView    `json:"materials,omitempty"`
	Requirements        []RequirementView `json:"requirements,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// ParticipantView exposes an enrolment.
type ParticipantView struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	JoinedAt   time.Time `json:"joined_at"`
}

// ConfirmationView exposes an attendance intent.
type ConfirmationView struct {
	ActivityID  string     `json:"activity_id"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// StatsView exposes derived counts.
type StatsView struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	ByType    map[string]int `json:"by_type"`
	Upcoming  int            `json:"upcoming"`
	Completed int            `json:"completed"`
}

// UpcomingView packages keyset-paginated upcoming listings.
type UpcomingView struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func toActivityView(activity domain.Activity) ActivityView {
	view := ActivityView{
		ActivityID:          activity.ID,
		Title:               activity.Title,
		Description:         activity.Description,
		Type:                string(activity.Type),
		StartsAt:            activity.StartsAt,
		EndsAt:              activity.EndsAt,
		Timezone:            activity.Timezone,
		Location:            LocationView(activity.Location),
		MaxParticipants:     activity.MaxParticipants,
		CurrentParticipants: activity.CurrentParticipants,
		IsRecurring:         activity.IsRecurring,
		RecurrenceRule:      activity.RecurrenceRule,
		Status:              string(activity.Status),
		OpportunityID:       activity.OpportunityID,
		CreatedBy:           activity.CreatedBy,
		CreatedAt:           activity.CreatedAt,
		UpdatedAt:           activity.UpdatedAt,
	}
	for _, material := range activity.Materials {
		view.Materials = append(view.Materials, MaterialView(material))
	}
	for _, requirement := range activity.Requirements {
		view.Requirements = append(view.Requirements, RequirementView(requirement))
	}
	return view
}

func toActivityViews(activities []domain.Activity) []ActivityView {
	views := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		views = append(views, toActivityView(activity))
	}
	return views
}

func toStatsView(summary domain.StatsSummary) StatsView {
	view := StatsView{
		Total:     summary.Total,
		ByStatus:  make(map[string]int, len(summary.ByStatus)),
		ByType:    make(map[string]int, len(summary.ByType)),
		Upcoming:  summary.Upcoming,
		Completed: summary.Completed,
	}
	for status, count := range summary.ByStatus {
		view.ByStatus[string(status)] = count
	}
	for activityType, count := range summary.ByType {
		view.ByType[string(activityType)] = count
	}
	return view
}
