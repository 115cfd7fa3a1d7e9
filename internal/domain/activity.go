package domain

import "time"

// ActivityType classifies the kind of volunteer activity.
type ActivityType string

const (
	ActivityTypeVolunteerWork ActivityType = "volunteer_work"
	ActivityTypeTraining      ActivityType = "training"
	ActivityTypeMeeting       ActivityType = "meeting"
	ActivityTypeEvent         ActivityType = "event"
	ActivityTypeWorkshop      ActivityType = "workshop"
	ActivityTypeOrientation   ActivityType = "orientation"
	ActivityTypeCleanup       ActivityType = "cleanup"
	ActivityTypeFundraising   ActivityType = "fundraising"
	ActivityTypeAwareness     ActivityType = "awareness"
	ActivityTypeOther         ActivityType = "other"
)

// KnownActivityType reports whether value is one of the recognised types.
func KnownActivityType(value ActivityType) bool {
	switch value {
	case ActivityTypeVolunteerWork, ActivityTypeTraining, ActivityTypeMeeting,
		ActivityTypeEvent, ActivityTypeWorkshop, ActivityTypeOrientation,
		ActivityTypeCleanup, ActivityTypeFundraising, ActivityTypeAwareness,
		ActivityTypeOther:
		return true
	}
	return false
}

// Location describes where an activity takes place. Physical activities carry
// address fields; online activities carry a meeting URL.
type Location struct {
	IsOnline   bool
	MeetingURL string
	Address    string
	City       string
	State      string
	Zip        string
	Country    string
	Latitude   float64
	Longitude  float64
}

// Label renders the single-line place description carried in reminder
// snapshots: the meeting URL for online activities, "Address, City" otherwise.
func (l Location) Label() string {
	if l.IsOnline {
		return l.MeetingURL
	}
	label := l.Address
	if l.City != "" {
		if label != "" {
			label += ", "
		}
		label += l.City
	}
	return label
}

// Material is a supply item the activity needs.
type Material struct {
	Name     string
	Quantity int
	Unit     string
	Required bool
	Provider string
}

// Requirement is a constraint participants must satisfy.
type Requirement struct {
	Title    string
	Type     string
	Required bool
	Priority int
	MinValue *float64
	MaxValue *float64
}

// Activity is the aggregate stored in Postgres and mutated by the registration,
// confirmation and status workflows.
type Activity struct {
	ID                  string
	Title               string
	Description         string
	Type                ActivityType
	StartsAt            time.Time
	EndsAt              time.Time
	Timezone            string
	Location            Location
	MaxParticipants     *int32
	CurrentParticipants int32
	IsRecurring         bool
	RecurrenceRule      string
	Status              ActivityStatus
	OpportunityID       string
	CreatedBy           string
	Materials           []Material
	Requirements        []Requirement
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasRoom reports whether one more participant fits under the capacity bound.
// Unlimited when MaxParticipants is nil. Callers admitting a participant must
// pair this check with the counter increment in a single atomic store operation.
func (a Activity) HasRoom() bool {
	if a.MaxParticipants == nil {
		return true
	}
	return a.CurrentParticipants < *a.MaxParticipants
}

// OpenForRegistration reports whether the activity currently accepts joins.
func (a Activity) OpenForRegistration() bool {
	return a.Status == StatusScheduled || a.Status == StatusConfirmed
}

// ParticipantRole describes what a participant does within an activity.
type ParticipantRole string

const (
	RoleOrganizer   ParticipantRole = "organizer"
	RoleCoordinator ParticipantRole = "coordinator"
	RoleFacilitator ParticipantRole = "facilitator"
	RoleParticipant ParticipantRole = "participant"
	RoleObserver    ParticipantRole = "observer"
)

// KnownParticipantRole reports whether value is one of the recognised roles.
func KnownParticipantRole(value ParticipantRole) bool {
	switch value {
	case RoleOrganizer, RoleCoordinator, RoleFacilitator, RoleParticipant, RoleObserver:
		return true
	}
	return false
}

// Participant is a user enrolled in an activity. Unique per (ActivityID, UserID).
type Participant struct {
	ActivityID string
	UserID     string
	Role       ParticipantRole
	JoinedAt   time.Time
}

// ConfirmationStatus is a participant's declared attendance intent.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationDeclined  ConfirmationStatus = "declined"
	ConfirmationMaybe     ConfirmationStatus = "maybe"
)

// KnownConfirmationStatus reports whether value is a recognised intent.
func KnownConfirmationStatus(value ConfirmationStatus) bool {
	switch value {
	case ConfirmationPending, ConfirmationConfirmed, ConfirmationDeclined, ConfirmationMaybe:
		return true
	}
	return false
}

// Confirmation records attendance intent for a registered participant.
// Unique per (ActivityID, UserID); ConfirmedAt is set only while confirmed.
type Confirmation struct {
	ActivityID  string
	UserID      string
	Status      ConfirmationStatus
	ConfirmedAt *time.Time
	Notes       string
}
