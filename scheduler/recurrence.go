package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/callwave/callwave/domain"
)

// addInterval advances base by one recurrence unit. Monthly recurrence
// preserves day-of-month per spec.md §4.10, clamping into the last day of
// the target month when the source day doesn't exist there (e.g. Jan 31 ->
// Feb 28/29) rather than letting time.AddDate roll over into March.
func addInterval(base time.Time, unit domain.RecurrenceUnit) time.Time {
	switch unit {
	case domain.RecurrenceWeekly:
		return base.AddDate(0, 0, 7)
	case domain.RecurrenceMonthly:
		return addMonthPreservingDay(base)
	default: // domain.RecurrenceDaily and unset
		return base.AddDate(0, 0, 1)
	}
}

func addMonthPreservingDay(base time.Time) time.Time {
	y, m, d := base.Date()
	// The first of the target month, then walk to day d or the month's last
	// day, whichever is smaller.
	firstOfNext := time.Date(y, m+1, 1, base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), base.Location())
	lastDayOfNext := firstOfNext.AddDate(0, 1, -1).Day()
	if d > lastDayOfNext {
		d = lastDayOfNext
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d, base.Hour(), base.Minute(), base.Second(), base.Nanosecond(), base.Location())
}

// NextOccurrence computes sc's successor in a recurrence chain, per
// spec.md §4.10: "create a successor ... when both end_date not exceeded
// and max_occurrences not reached; otherwise terminate the chain." The
// successor's nominal fire time is computed from sc's own nominal instant,
// not from whenever it actually fired, so a chain never drifts from its
// original cadence.
func NextOccurrence(sc domain.ScheduledCall) (*domain.ScheduledCall, bool) {
	if sc.Recurrence == nil {
		return nil, false
	}

	nextOccurrence := sc.Occurrence + 1
	if sc.Recurrence.MaxOccurrences > 0 && nextOccurrence > sc.Recurrence.MaxOccurrences {
		return nil, false
	}

	next := addInterval(sc.ScheduledAtUTC, sc.Recurrence.Unit)
	if !sc.Recurrence.EndDate.IsZero() && next.After(sc.Recurrence.EndDate) {
		return nil, false
	}

	successor := sc
	successor.ID = uuid.New().String()
	successor.ParentID = sc.ID
	successor.Occurrence = nextOccurrence
	successor.ScheduledAtUTC = next
	successor.Status = domain.ScheduledPending
	successor.ProducedCallID = ""
	return &successor, true
}
