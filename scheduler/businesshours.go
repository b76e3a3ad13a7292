package scheduler

import (
	"time"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
)

const op = "scheduler"

// LoadTimezone validates an IANA timezone name, per spec.md §4.10 step 1.
func LoadTimezone(tz string) (*time.Location, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errs.New(op+".LoadTimezone", errs.Validation, "unknown IANA timezone: "+tz).WithCode(errs.CodeInvalidTimezone)
	}
	return loc, nil
}

// allowsWeekday reports whether day is one of window's allowed weekdays.
func allowsWeekday(window *domain.BusinessHoursWindow, day time.Weekday) bool {
	for _, d := range window.Days {
		if d == day {
			return true
		}
	}
	return false
}

// startOfNextDay returns 00:00:00 of the day after t, in t's own location.
func startOfNextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// windowBoundary combines window's "HH:MM" Start or End with t's calendar
// date, in t's location.
func windowBoundary(t time.Time, hhmm string) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, errs.New(op+".windowBoundary", errs.Validation, "malformed business hours boundary: "+hhmm).WithCode(errs.CodeInvalidScheduledTime)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, parsed.Hour(), parsed.Minute(), 0, 0, t.Location()), nil
}

// maxProjectionIterations bounds the advance-a-day loop below; eight days is
// more than enough to clear any single allowed-weekday gap.
const maxProjectionIterations = 8

// ProjectIntoBusinessHours implements spec.md §4.10 step 3: if nominal falls
// outside window (evaluated in loc), advance it forward to the next instant
// that falls within the window's allowed weekdays and time-of-day range.
// window == nil is a no-op (no business-hours restriction configured).
func ProjectIntoBusinessHours(nominal time.Time, loc *time.Location, window *domain.BusinessHoursWindow) (time.Time, error) {
	if window == nil {
		return nominal, nil
	}

	t := nominal.In(loc)
	for i := 0; i < maxProjectionIterations; i++ {
		if !allowsWeekday(window, t.Weekday()) {
			t = startOfNextDay(t)
			continue
		}

		start, err := windowBoundary(t, window.Start)
		if err != nil {
			return time.Time{}, err
		}
		end, err := windowBoundary(t, window.End)
		if err != nil {
			return time.Time{}, err
		}

		switch {
		case t.Before(start):
			return start, nil
		case !t.Before(end):
			t = startOfNextDay(t)
		default:
			return t, nil
		}
	}

	return time.Time{}, errs.New(op+".ProjectIntoBusinessHours", errs.Internal, "no allowed business-hours window found within a week of the nominal instant")
}

// ComputeFireTime runs the full spec.md §4.10 scheduling algorithm (steps
// 1-4; step 5, computing the enqueue delay, is the caller's job — in this
// package, workflow.Sleep's argument) and returns the UTC instant a
// ScheduledCall should actually fire at.
func ComputeFireTime(sc domain.ScheduledCall, now time.Time) (time.Time, error) {
	loc, err := LoadTimezone(sc.Timezone)
	if err != nil {
		return time.Time{}, err
	}

	nominal := sc.ScheduledAtUTC

	projected, err := ProjectIntoBusinessHours(nominal, loc, sc.BusinessHours)
	if err != nil {
		return time.Time{}, err
	}
	fireUTC := projected.UTC()

	if fireUTC.Before(now) {
		return time.Time{}, errs.New(op+".ComputeFireTime", errs.Validation, "scheduled time is in the past").WithCode(errs.CodeInvalidScheduledTime)
	}

	return fireUTC, nil
}
