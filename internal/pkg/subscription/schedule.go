package subscription

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	// periodDays is the length of one paid subscription period.
	periodDays = 30
	// graceDays extends access past the nominal period end.
	graceDays = 1
	// renewalHour is the local hour renewals are scheduled at. The minute
	// is randomized so renewal charges spread across the hour instead of
	// hitting the provider all at once.
	renewalHour = 10
)

// Schedule holds the period boundaries and the renewal slot derived from a
// confirmed payment.
type Schedule struct {
	StartAt        time.Time
	EndAt          time.Time
	EndGraceAt     time.Time
	NextScheduleAt time.Time
	NextScheduleID string
}

// ComputeSchedule derives the billing period for a payment confirmed at now:
// the period runs 30 days from now, access lasts through the end of the day
// after the period (23:59:59.999), and the renewal charge is slotted the day
// after the period end between 10:00 and 10:59. NextScheduleID is a fresh
// UUID used both as the provider-side payment id of the renewal and as the
// correlation key to find that schedule again on cancellation.
func ComputeSchedule(now time.Time) Schedule {
	return computeSchedule(now, rand.Intn(60))
}

func computeSchedule(now time.Time, renewalMinute int) Schedule {
	endAt := now.AddDate(0, 0, periodDays)

	graceDay := endAt.AddDate(0, 0, graceDays)
	endGraceAt := time.Date(
		graceDay.Year(), graceDay.Month(), graceDay.Day(),
		23, 59, 59, int(999*time.Millisecond),
		graceDay.Location(),
	)

	renewalDay := endAt.AddDate(0, 0, 1)
	nextScheduleAt := time.Date(
		renewalDay.Year(), renewalDay.Month(), renewalDay.Day(),
		renewalHour, renewalMinute, 0, 0,
		renewalDay.Location(),
	)

	return Schedule{
		StartAt:        now,
		EndAt:          endAt,
		EndGraceAt:     endGraceAt,
		NextScheduleAt: nextScheduleAt,
		NextScheduleID: uuid.NewString(),
	}
}
