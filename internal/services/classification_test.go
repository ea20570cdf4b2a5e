package services

import (
	"testing"
	"time"
)

func TestClassify_PriorityOrder(t *testing.T) {
	scheduled := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	dueWindow := 60 * time.Minute
	grace := 30 * time.Minute

	confirmed := scheduled.Add(5 * time.Minute)
	snoozedFuture := scheduled.Add(2 * time.Hour)
	snoozedPast := scheduled.Add(-2 * time.Hour)

	tests := []struct {
		name         string
		snoozedUntil *time.Time
		confirmedAt  *time.Time
		now          time.Time
		expected     Bucket
	}{
		{
			name:        "confirmed wins over everything",
			confirmedAt: &confirmed,
			now:         scheduled.Add(5 * time.Hour),
			expected:    BucketConfirmed,
		},
		{
			name:         "confirmed wins even while snoozed",
			confirmedAt:  &confirmed,
			snoozedUntil: &snoozedFuture,
			now:          scheduled,
			expected:     BucketConfirmed,
		},
		{
			name:         "active snooze wins over overdue clock",
			snoozedUntil: &snoozedFuture,
			now:          scheduled.Add(90 * time.Minute),
			expected:     BucketSnoozed,
		},
		{
			name:         "elapsed snooze falls through to the clock",
			snoozedUntil: &snoozedPast,
			now:          scheduled.Add(31 * time.Minute),
			expected:     BucketOverdue,
		},
		{
			name:     "past grace period is overdue",
			now:      scheduled.Add(31 * time.Minute),
			expected: BucketOverdue,
		},
		{
			name:     "exactly at grace boundary is still due",
			now:      scheduled.Add(30 * time.Minute),
			expected: BucketDue,
		},
		{
			name:     "inside due window before scheduled time",
			now:      scheduled.Add(-45 * time.Minute),
			expected: BucketDue,
		},
		{
			name:     "exactly at window start is due",
			now:      scheduled.Add(-60 * time.Minute),
			expected: BucketDue,
		},
		{
			name:     "before due window is upcoming",
			now:      scheduled.Add(-61 * time.Minute),
			expected: BucketUpcoming,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Classify(scheduled, test.snoozedUntil, test.confirmedAt, test.now, dueWindow, grace)
			if got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}

func TestClassify_Total(t *testing.T) {
	scheduled := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	for offset := -48 * time.Hour; offset <= 48*time.Hour; offset += 17 * time.Minute {
		got := Classify(scheduled, nil, nil, scheduled.Add(offset), 60*time.Minute, 30*time.Minute)
		if !got.Valid() {
			t.Fatalf("classify produced unknown bucket %q at offset %v", got, offset)
		}
	}
}
