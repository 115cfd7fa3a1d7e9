// Package reminder computes time-relative reminder jobs for new activities.
package reminder

import (
	"time"

	"example.com/volunteer/internal/events"
)

// Offsets are the fixed durations before an activity's start at which a
// reminder is delivered to the owner.
var Offsets = []time.Duration{24 * time.Hour, 2 * time.Hour, 30 * time.Minute}

// JobsFor returns one reminder per offset still in the future at now. Past-due
// offsets are skipped silently; an activity created 90 minutes before its start
// gets only the 30 minute reminder.
func JobsFor(snapshot events.ActivitySnapshot, ownerID string, now time.Time) []events.ActivityReminder {
	jobs := make([]events.ActivityReminder, 0, len(Offsets))
	for _, offset := range Offsets {
		sendAt := snapshot.StartsAt.Add(-offset)
		if !sendAt.After(now) {
			continue
		}
		jobs = append(jobs, events.ActivityReminder{
			UserID:   ownerID,
			Activity: snapshot,
			SendAt:   sendAt,
		})
	}
	return jobs
}
