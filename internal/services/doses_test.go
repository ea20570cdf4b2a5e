package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mwhite/petdose/internal/models"
)

func TestConfirm_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pet := env.createPet(t, "Miso")
	item := env.createItem(t, pet.ID, "Eye Drop A", nil)
	schedule := env.createSchedule(t, item.ID, "08:00")
	scheduledAt := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	instance := env.createInstance(t, schedule.ID, item.ID, scheduledAt)

	now := scheduledAt.Add(2 * time.Minute)
	outcome, err := env.doses.Confirm(ctx, instance.ID, now, "alex", "gave with food", false)
	if err != nil {
		t.Fatalf("confirming: %v", err)
	}
	if outcome.AlreadyConfirmed {
		t.Error("fresh confirm reported as already confirmed")
	}
	if outcome.Instance.Status != models.InstanceStatusConfirmed {
		t.Errorf("expected confirmed status, got %s", outcome.Instance.Status)
	}
	if outcome.History.ConfirmedBy != "alex" {
		t.Errorf("expected history confirmed_by 'alex', got %q", outcome.History.ConfirmedBy)
	}
	if !outcome.History.ConfirmedAt.Equal(now) {
		t.Errorf("expected history confirmed_at %v, got %v", now, outcome.History.ConfirmedAt)
	}
	if count := env.historyCount(t, instance.ID); count != 1 {
		t.Errorf("expected 1 history row, got %d", count)
	}
}

func TestConfirm_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pet := env.createPet(t, "Miso")
	item := env.createItem(t, pet.ID, "Eye Drop A", nil)
	schedule := env.createSchedule(t, item.ID, "08:00")
	scheduledAt := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	instance := env.createInstance(t, schedule.ID, item.ID, scheduledAt)

	first, err := env.doses.Confirm(ctx, instance.ID, scheduledAt, "alex", "", false)
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	second, err := env.doses.Confirm(ctx, instance.ID, scheduledAt.Add(time.Minute), "sam", "", false)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if !second.AlreadyConfirmed {
		t.Fatal("second confirm did not report already confirmed")
	}
	if second.History.ID != first.History.ID {
		t.Errorf("second confirm returned a different history row: %s vs %s", second.History.ID, first.History.ID)
	}
	if count := env.historyCount(t, instance.ID); count != 1 {
		t.Errorf("expected exactly 1 history row, got %d", count)
	}
}

func TestConfirm_ConflictBlocksWithoutOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	group := env.createGroup(t, "eye meds", 30)
	pet := env.createPet(t, "Miso")
	itemA := env.createItem(t, pet.ID, "Eye Drop A", &group.ID)
	itemB := env.createItem(t, pet.ID, "Eye Drop B", &group.ID)
	scheduleA := env.createSchedule(t, itemA.ID, "08:00")
	scheduleB := env.createSchedule(t, itemB.ID, "08:00")

	base := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	instanceA := env.createInstance(t, scheduleA.ID, itemA.ID, base)
	instanceB := env.createInstance(t, scheduleB.ID, itemB.ID, base)

	if _, err := env.doses.Confirm(ctx, instanceA.ID, base, "alex", "", false); err != nil {
		t.Fatalf("confirming item A: %v", err)
	}

	blocked, err := env.doses.Confirm(ctx, instanceB.ID, base.Add(5*time.Minute), "alex", "", false)
	if err != nil {
		t.Fatalf("conflicted confirm returned error: %v", err)
	}
	if !blocked.Conflict.HasConflict {
		t.Fatal("expected conflict result")
	}
	if blocked.Conflict.RemainingMinutes != 25 {
		t.Errorf("expected 25 remaining minutes, got %d", blocked.Conflict.RemainingMinutes)
	}
	if blocked.Conflict.ConflictingItemName != "Eye Drop A" {
		t.Errorf("expected conflicting item 'Eye Drop A', got %q", blocked.Conflict.ConflictingItemName)
	}

	// Blocked confirm must not have mutated anything.
	current, err := env.instanceRepo.FindByID(ctx, instanceB.ID)
	if err != nil {
		t.Fatalf("reloading instance B: %v", err)
	}
	if current.Status != models.InstanceStatusPending {
		t.Errorf("blocked confirm changed status to %s", current.Status)
	}
	if count := env.historyCount(t, instanceB.ID); count != 0 {
		t.Errorf("blocked confirm wrote %d history rows", count)
	}

	// Force-confirm despite the conflict.
	forced, err := env.doses.Confirm(ctx, instanceB.ID, base.Add(5*time.Minute), "alex", "", true)
	if err != nil {
		t.Fatalf("forced confirm: %v", err)
	}
	if forced.Instance.Status != models.InstanceStatusConfirmed {
		t.Errorf("expected confirmed after override, got %s", forced.Instance.Status)
	}
	if count := env.historyCount(t, instanceB.ID); count != 1 {
		t.Errorf("expected 1 history row after override, got %d", count)
	}
}

func TestConfirm_ExpiredInstance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pet := env.createPet(t, "Miso")
	item := env.createItem(t, pet.ID, "Eye Drop A", nil)
	schedule := env.createSchedule(t, item.ID, "08:00")
	scheduledAt := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	instance := env.createInstance(t, schedule.ID, item.ID, scheduledAt)

	if _, err := env.doses.ExpireElapsed(ctx, scheduledAt.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("expiring: %v", err)
	}

	_, err := env.doses.Confirm(ctx, instance.ID, scheduledAt.AddDate(0, 0, 1), "alex", "", false)
	if !errors.Is(err, ErrInstanceExpired) {
		t.Errorf("expected ErrInstanceExpired, got %v", err)
	}
}

func TestConfirm_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.doses.Confirm(context.Background(), "missing", time.Now(), "alex", "", false)
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("expected ErrInstanceNotFound, got %v", err)
	}
}

func TestSnooze_OverwritesNotStacks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pet := env.createPet(t, "Miso")
	item := env.createItem(t, pet.ID, "Eye Drop A", nil)
	schedule := env.createSchedule(t, item.ID, "08:00")
	scheduledAt := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	instance := env.createInstance(t, schedule.ID, item.ID, scheduledAt)

	now := scheduledAt
	first, err := env.doses.Snooze(ctx, instance.ID, now, 15)
	if err != nil {
		t.Fatalf("first snooze: %v", err)
	}
	if first.SnoozedUntil == nil || !first.SnoozedUntil.Equal(now.Add(15*time.Minute)) {
		t.Errorf("expected snoozedUntil %v, got %v", now.Add(15*time.Minute), first.SnoozedUntil)
	}

	later := now.Add(5 * time.Minute)
	second, err := env.doses.Snooze(ctx, instance.ID, later, 30)
	if err != nil {
		t.Fatalf("second snooze: %v", err)
	}
	if second.SnoozedUntil == nil || !second.SnoozedUntil.Equal(later.Add(30*time.Minute)) {
		t.Errorf("expected snoozedUntil %v (now+30, not additive), got %v", later.Add(30*time.Minute), second.SnoozedUntil)
	}
}

func TestSnooze_ValidatesMinutes(t *testing.T) {
	env := newTestEnv(t)

	for _, minutes := range []int{0, -15, 10, 45, 120} {
		_, err := env.doses.Snooze(context.Background(), "whatever", time.Now(), minutes)
		if !errors.Is(err, ErrInvalidSnoozeMinutes) {
			t.Errorf("minutes=%d: expected ErrInvalidSnoozeMinutes, got %v", minutes, err)
		}
	}
}

func TestSnooze_TerminalStates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pet := env.createPet(t, "Miso")
	item := env.createItem(t, pet.ID, "Eye Drop A", nil)
	schedule := env.createSchedule(t, item.ID, "08:00")
	scheduledAt := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	instance := env.createInstance(t, schedule.ID, item.ID, scheduledAt)

	if _, err := env.doses.Confirm(ctx, instance.ID, scheduledAt, "alex", "", false); err != nil {
		t.Fatalf("confirming: %v", err)
	}

	_, err := env.doses.Snooze(ctx, instance.ID, scheduledAt.Add(time.Minute), 15)
	if !errors.Is(err, ErrAlreadyConfirmed) {
		t.Errorf("expected ErrAlreadyConfirmed, got %v", err)
	}
}

func TestExpireElapsed_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pet := env.createPet(t, "Miso")
	item := env.createItem(t, pet.ID, "Eye Drop A", nil)
	schedule := env.createSchedule(t, item.ID, "08:00")

	yesterday := time.Date(2025, 6, 14, 8, 0, 0, 0, time.UTC)
	today := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	old := env.createInstance(t, schedule.ID, item.ID, yesterday)

	scheduleB := env.createSchedule(t, item.ID, "20:00")
	current := env.createInstance(t, scheduleB.ID, item.ID, today.Add(12*time.Hour))

	expired, err := env.doses.ExpireElapsed(ctx, today)
	if err != nil {
		t.Fatalf("expiring: %v", err)
	}
	if expired != 1 {
		t.Errorf("expected 1 expired instance, got %d", expired)
	}

	oldReloaded, _ := env.instanceRepo.FindByID(ctx, old.ID)
	if oldReloaded.Status != models.InstanceStatusExpired {
		t.Errorf("yesterday's instance not expired: %s", oldReloaded.Status)
	}
	currentReloaded, _ := env.instanceRepo.FindByID(ctx, current.ID)
	if currentReloaded.Status != models.InstanceStatusPending {
		t.Errorf("today's instance should stay pending, got %s", currentReloaded.Status)
	}

	again, err := env.doses.ExpireElapsed(ctx, today)
	if err != nil {
		t.Fatalf("second expire run: %v", err)
	}
	if again != 0 {
		t.Errorf("expire sweep is not idempotent, second run expired %d", again)
	}
}

func TestCorrectHistory_PreservesInstance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pet := env.createPet(t, "Miso")
	item := env.createItem(t, pet.ID, "Eye Drop A", nil)
	schedule := env.createSchedule(t, item.ID, "08:00")
	scheduledAt := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	instance := env.createInstance(t, schedule.ID, item.ID, scheduledAt)

	outcome, err := env.doses.Confirm(ctx, instance.ID, scheduledAt, "alex", "", false)
	if err != nil {
		t.Fatalf("confirming: %v", err)
	}

	correctedAt := scheduledAt.Add(-10 * time.Minute)
	corrected, err := env.doses.CorrectHistory(ctx, outcome.History.ID, "sam", correctedAt)
	if err != nil {
		t.Fatalf("correcting history: %v", err)
	}
	if corrected.ID != outcome.History.ID {
		t.Errorf("correction changed entry identity: %s vs %s", corrected.ID, outcome.History.ID)
	}
	if corrected.InstanceID != instance.ID {
		t.Errorf("correction broke instance linkage: %s", corrected.InstanceID)
	}
	if corrected.ConfirmedBy != "sam" || !corrected.ConfirmedAt.Equal(correctedAt) {
		t.Errorf("correction not applied: %+v", corrected)
	}

	reloaded, err := env.instanceRepo.FindByID(ctx, instance.ID)
	if err != nil {
		t.Fatalf("reloading instance: %v", err)
	}
	if reloaded.Status != models.InstanceStatusConfirmed {
		t.Errorf("history correction changed instance status to %s", reloaded.Status)
	}
}

// The end-to-end scenario: two eye drops sharing a 30-minute spacing group,
// both scheduled for 08:00. A confirms clean, B conflicts at 08:05 and is
// then force-confirmed.
func TestEyeDropScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	group := env.createGroup(t, "eye meds", 30)
	pet := env.createPet(t, "Miso")
	itemA := env.createItem(t, pet.ID, "Eye Drop A", &group.ID)
	itemB := env.createItem(t, pet.ID, "Eye Drop B", &group.ID)
	env.createSchedule(t, itemA.ID, "08:00")
	env.createSchedule(t, itemB.ID, "08:00")

	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	instances, err := env.doses.EnsureInstancesForDate(ctx, date)
	if err != nil {
		t.Fatalf("generating instances: %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(instances))
	}

	var instanceA, instanceB models.DailyInstance
	for _, instance := range instances {
		switch instance.ItemID {
		case itemA.ID:
			instanceA = instance
		case itemB.ID:
			instanceB = instance
		}
	}

	eight := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	confirmA, err := env.doses.Confirm(ctx, instanceA.ID, eight, "alex", "", false)
	if err != nil {
		t.Fatalf("confirming A: %v", err)
	}
	if confirmA.Instance.Status != models.InstanceStatusConfirmed {
		t.Fatalf("A not confirmed: %s", confirmA.Instance.Status)
	}

	blocked, err := env.doses.Confirm(ctx, instanceB.ID, eight.Add(5*time.Minute), "alex", "", false)
	if err != nil {
		t.Fatalf("confirming B: %v", err)
	}
	if !blocked.Conflict.HasConflict ||
		blocked.Conflict.RemainingMinutes != 25 ||
		blocked.Conflict.ConflictingItemName != "Eye Drop A" {
		t.Fatalf("unexpected conflict result: %+v", blocked.Conflict)
	}

	forced, err := env.doses.Confirm(ctx, instanceB.ID, eight.Add(5*time.Minute), "alex", "vet said ok", true)
	if err != nil {
		t.Fatalf("force-confirming B: %v", err)
	}
	if forced.Instance.Status != models.InstanceStatusConfirmed {
		t.Errorf("B not confirmed after override: %s", forced.Instance.Status)
	}
	if env.historyCount(t, instanceA.ID)+env.historyCount(t, instanceB.ID) != 2 {
		t.Error("expected exactly two history rows for the scenario")
	}
}

func TestConfirm_RaceLoserSeesWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pet := env.createPet(t, "Miso")
	item := env.createItem(t, pet.ID, "Eye Drop A", nil)
	schedule := env.createSchedule(t, item.ID, "08:00")
	scheduledAt := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)
	instance := env.createInstance(t, schedule.ID, item.ID, scheduledAt)

	// Simulate losing the compare-and-set race: another writer confirms
	// between this caller's read and its update.
	transitioned, err := env.instanceRepo.ConfirmIfActionable(ctx, instance.ID, scheduledAt)
	if err != nil || !transitioned {
		t.Fatalf("first writer failed: transitioned=%v err=%v", transitioned, err)
	}
	winner, err := env.historyRepo.Create(ctx, models.ConfirmationHistory{
		InstanceID:  instance.ID,
		ItemID:      item.ID,
		ConfirmedBy: "alex",
		ConfirmedAt: scheduledAt,
	})
	if err != nil {
		t.Fatalf("writing winner history: %v", err)
	}

	outcome, err := env.doses.Confirm(ctx, instance.ID, scheduledAt.Add(time.Second), "sam", "", false)
	if err != nil {
		t.Fatalf("losing confirm: %v", err)
	}
	if !outcome.AlreadyConfirmed {
		t.Fatal("loser did not observe already-confirmed state")
	}
	if outcome.History.ID != winner.ID {
		t.Errorf("loser got history %s, expected winner's %s", outcome.History.ID, winner.ID)
	}
	if count := env.historyCount(t, instance.ID); count != 1 {
		t.Errorf("expected 1 history row, got %d", count)
	}
}
