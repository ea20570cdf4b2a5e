package services

import (
	"context"
	"testing"
	"time"

	"github.com/mwhite/petdose/internal/models"
	"github.com/mwhite/petdose/internal/repository"
	"github.com/mwhite/petdose/internal/testutil"
)

type testEnv struct {
	doses        *DoseService
	sync         *SyncService
	petRepo      repository.PetRepository
	itemRepo     repository.ItemRepository
	scheduleRepo repository.ItemScheduleRepository
	groupRepo    repository.ConflictGroupRepository
	instanceRepo repository.DailyInstanceRepository
	historyRepo  repository.ConfirmationHistoryRepository
	actionRepo   repository.OfflineActionRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDatabase(t)

	env := &testEnv{
		petRepo:      repository.NewPetRepository(db),
		itemRepo:     repository.NewItemRepository(db),
		scheduleRepo: repository.NewItemScheduleRepository(db),
		groupRepo:    repository.NewConflictGroupRepository(db),
		instanceRepo: repository.NewDailyInstanceRepository(db),
		historyRepo:  repository.NewConfirmationHistoryRepository(db),
		actionRepo:   repository.NewOfflineActionRepository(db),
	}
	env.doses = NewDoseService(
		env.instanceRepo, env.scheduleRepo, env.itemRepo, env.groupRepo, env.historyRepo,
		60*time.Minute, 30*time.Minute,
	)
	env.sync = NewSyncService(env.doses, env.itemRepo, env.scheduleRepo, env.actionRepo)
	return env
}

func (env *testEnv) createPet(t *testing.T, name string) models.Pet {
	t.Helper()
	pet, err := env.petRepo.Create(context.Background(), models.Pet{Name: name, Species: "cat"})
	if err != nil {
		t.Fatalf("creating test pet: %v", err)
	}
	return pet
}

func (env *testEnv) createItem(t *testing.T, petID, name string, groupID *string) models.Item {
	t.Helper()
	item, err := env.itemRepo.Create(context.Background(), models.Item{
		PetID:           petID,
		Name:            name,
		Type:            models.ItemTypeMedication,
		ConflictGroupID: groupID,
		Active:          true,
	})
	if err != nil {
		t.Fatalf("creating test item: %v", err)
	}
	return item
}

func (env *testEnv) createGroup(t *testing.T, name string, spacingMinutes int) models.ConflictGroup {
	t.Helper()
	group, err := env.groupRepo.Create(context.Background(), models.ConflictGroup{
		Name:           name,
		SpacingMinutes: spacingMinutes,
	})
	if err != nil {
		t.Fatalf("creating test conflict group: %v", err)
	}
	return group
}

func (env *testEnv) createSchedule(t *testing.T, itemID, timeOfDay string) models.ItemSchedule {
	t.Helper()
	schedule, err := env.scheduleRepo.Create(context.Background(), models.ItemSchedule{
		ItemID:    itemID,
		TimeOfDay: timeOfDay,
	})
	if err != nil {
		t.Fatalf("creating test schedule: %v", err)
	}
	return schedule
}

func (env *testEnv) createInstance(t *testing.T, scheduleID, itemID string, scheduledAt time.Time) models.DailyInstance {
	t.Helper()
	instance, err := env.instanceRepo.Create(context.Background(), models.DailyInstance{
		ScheduleID:  scheduleID,
		ItemID:      itemID,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		t.Fatalf("creating test instance: %v", err)
	}
	return instance
}

func (env *testEnv) historyCount(t *testing.T, instanceID string) int {
	t.Helper()
	count, err := env.historyRepo.CountByInstance(context.Background(), instanceID)
	if err != nil {
		t.Fatalf("counting history: %v", err)
	}
	return count
}
