package domain

// ActivityStatus is the lifecycle state of an activity.
type ActivityStatus string

const (
	StatusDraft      ActivityStatus = "draft"
	StatusScheduled  ActivityStatus = "scheduled"
	StatusConfirmed  ActivityStatus = "confirmed"
	StatusInProgress ActivityStatus = "in_progress"
	StatusCompleted  ActivityStatus = "completed"
	StatusCancelled  ActivityStatus = "cancelled"
	StatusPostponed  ActivityStatus = "postponed"
)

// KnownActivityStatus reports whether value is a recognised lifecycle state.
func KnownActivityStatus(value ActivityStatus) bool {
	switch value {
	case StatusDraft, StatusScheduled, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusPostponed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s ActivityStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// transitions holds the allowed forward edges of the lifecycle graph. Cancelled
// and postponed are additionally reachable from every non-terminal state, and a
// postponed activity may resume to scheduled or confirmed.
var transitions = map[ActivityStatus][]ActivityStatus{
	StatusDraft:      {StatusScheduled},
	StatusScheduled:  {StatusConfirmed},
	StatusConfirmed:  {StatusInProgress},
	StatusInProgress: {StatusCompleted},
	StatusPostponed:  {StatusScheduled, StatusConfirmed},
}

// CanTransition reports whether moving from one lifecycle state to the next is
// permitted.
func CanTransition(from, to ActivityStatus) bool {
	if from.Terminal() || from == to {
		return false
	}
	if to == StatusCancelled || to == StatusPostponed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusMessage returns the participant-facing message for a transition into
// status, or "" when the transition carries no notification.
func StatusMessage(status ActivityStatus) string {
	switch status {
	case StatusCancelled:
		return "activity cancelled"
	case StatusPostponed:
		return "activity postponed"
	case StatusConfirmed:
		return "activity confirmed"
	case StatusInProgress:
		return "activity under way"
	case StatusCompleted:
		return "activity completed"
	}
	return ""
}
