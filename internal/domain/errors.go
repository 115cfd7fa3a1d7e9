package domain

import "errors"

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrNotOpenForRegistration indicates the activity status does not accept joins.
	ErrNotOpenForRegistration = errors.New("activity not open for registration")
	// ErrAlreadyRegistered indicates a duplicate (activity, user) registration.
	ErrAlreadyRegistered = errors.New("user already registered for activity")
	// ErrCapacityExceeded indicates the activity has no seats left.
	ErrCapacityExceeded = errors.New("activity capacity exceeded")
	// ErrNotRegistered indicates the user holds no participant row for the activity.
	ErrNotRegistered = errors.New("user not registered for activity")
	// ErrActivityStarted rejects unregistration at or after the start instant.
	ErrActivityStarted = errors.New("activity already started")
	// ErrPermissionDenied rejects status changes by anyone but the owner.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidTransition rejects lifecycle moves outside the transition graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidSchedule rejects activities whose start is not before their end.
	ErrInvalidSchedule = errors.New("activity start must be before end")
)
