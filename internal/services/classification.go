package services

import "time"

// Bucket is the time-relative display status of a daily instance. It is
// computed at read time from the caller's "now" and never persisted, so list
// views stay correct without a background reclassification job.
type Bucket string

const (
	BucketOverdue   Bucket = "overdue"
	BucketDue       Bucket = "due"
	BucketUpcoming  Bucket = "upcoming"
	BucketSnoozed   Bucket = "snoozed"
	BucketConfirmed Bucket = "confirmed"
)

func (b Bucket) Valid() bool {
	switch b {
	case BucketOverdue, BucketDue, BucketUpcoming, BucketSnoozed, BucketConfirmed:
		return true
	}
	return false
}

// Classify buckets a scheduled instant relative to now. Priority order:
// a confirmation wins over everything, an unexpired snooze wins over the
// clock, then overdue past the grace period, due inside the window,
// upcoming otherwise.
func Classify(scheduledAt time.Time, snoozedUntil, confirmedAt *time.Time, now time.Time, dueWindow, overdueGrace time.Duration) Bucket {
	if confirmedAt != nil {
		return BucketConfirmed
	}
	if snoozedUntil != nil && now.Before(*snoozedUntil) {
		return BucketSnoozed
	}
	if now.After(scheduledAt.Add(overdueGrace)) {
		return BucketOverdue
	}
	if !now.Before(scheduledAt.Add(-dueWindow)) {
		return BucketDue
	}
	return BucketUpcoming
}
