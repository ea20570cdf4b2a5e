package models

import "time"

type ItemType string

const (
	ItemTypeMedication ItemType = "medication"
	ItemTypeFood       ItemType = "food"
	ItemTypeSupplement ItemType = "supplement"
)

func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeMedication, ItemTypeFood, ItemTypeSupplement:
		return true
	}
	return false
}

type InstanceStatus string

const (
	InstanceStatusPending   InstanceStatus = "pending"
	InstanceStatusConfirmed InstanceStatus = "confirmed"
	InstanceStatusSnoozed   InstanceStatus = "snoozed"
	InstanceStatusExpired   InstanceStatus = "expired"
)

type OfflineActionType string

const (
	OfflineActionConfirm OfflineActionType = "confirm"
	OfflineActionSnooze  OfflineActionType = "snooze"
	OfflineActionEdit    OfflineActionType = "edit"
	OfflineActionCreate  OfflineActionType = "create"
)

type Pet struct {
	ID        string
	Name      string
	Species   string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Item struct {
	ID              string
	PetID           string
	Name            string
	Type            ItemType
	Category        string
	Frequency       string
	ConflictGroupID *string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ItemSchedule is a recurring daily time for an item. TimeOfDay is a
// wall-clock "HH:MM" value, not a timestamp.
type ItemSchedule struct {
	ID        string
	ItemID    string
	Label     string
	TimeOfDay string
	CreatedAt time.Time
}

type ConflictGroup struct {
	ID             string
	Name           string
	SpacingMinutes int
	CreatedAt      time.Time
}

// DailyInstance is one day's concrete occurrence of a schedule. Exactly one
// exists per (schedule, calendar date); instances are transitioned, never
// deleted.
type DailyInstance struct {
	ID           string
	ScheduleID   string
	ItemID       string
	ScheduledAt  time.Time
	Status       InstanceStatus
	SnoozedUntil *time.Time
	ConfirmedAt  *time.Time
	CreatedAt    time.Time
}

// ConfirmationHistory is the append-only audit ledger of confirmations.
// ConfirmedBy/ConfirmedAt may be corrected administratively; entries are
// never deleted.
type ConfirmationHistory struct {
	ID          string
	InstanceID  string
	ItemID      string
	ConfirmedBy string
	ConfirmedAt time.Time
	Notes       string
	CreatedAt   time.Time
}

// OfflineAction is a caregiver intent queued on a disconnected device. The ID
// is client-generated and doubles as the idempotency key during replay.
type OfflineAction struct {
	ID              string
	Type            OfflineActionType
	Payload         string
	ClientTimestamp time.Time
	Synced          bool
	CreatedAt       time.Time
}
