package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mwhite/petdose/internal/config"
	"github.com/mwhite/petdose/internal/middleware"
	"github.com/mwhite/petdose/internal/models"
	"github.com/mwhite/petdose/internal/repository"
	"github.com/mwhite/petdose/internal/services"
	"github.com/mwhite/petdose/internal/testutil"
)

const (
	testPassword = "household-secret"
	testSecret   = "0123456789abcdef0123456789abcdef"
)

type handlerEnv struct {
	router       http.Handler
	doses        *services.DoseService
	petRepo      repository.PetRepository
	itemRepo     repository.ItemRepository
	scheduleRepo repository.ItemScheduleRepository
	groupRepo    repository.ConflictGroupRepository
	instanceRepo repository.DailyInstanceRepository
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	db := testutil.NewTestDatabase(t)

	petRepo := repository.NewPetRepository(db)
	itemRepo := repository.NewItemRepository(db)
	scheduleRepo := repository.NewItemScheduleRepository(db)
	groupRepo := repository.NewConflictGroupRepository(db)
	instanceRepo := repository.NewDailyInstanceRepository(db)
	historyRepo := repository.NewConfirmationHistoryRepository(db)
	actionRepo := repository.NewOfflineActionRepository(db)

	doseService := services.NewDoseService(
		instanceRepo, scheduleRepo, itemRepo, groupRepo, historyRepo,
		60*time.Minute, 30*time.Minute,
	)
	syncService := services.NewSyncService(doseService, itemRepo, scheduleRepo, actionRepo)

	authService, err := services.NewAuthService(config.Config{
		AppPassword:   testPassword,
		SessionSecret: testSecret,
	})
	if err != nil {
		t.Fatalf("creating auth service: %v", err)
	}

	authHandler := NewAuthHandler(authService)
	doseHandler := NewDoseHandler(doseService)
	syncHandler := NewSyncHandler(syncService)

	router := chi.NewRouter()
	router.Post("/login", authHandler.Login)
	router.Get("/logout", authHandler.Logout)
	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAuth(authService))
		r.Get("/doses", doseHandler.List)
		r.Post("/doses/{id}/confirm", doseHandler.Confirm)
		r.Post("/doses/{id}/snooze", doseHandler.Snooze)
		r.Get("/doses/{id}/history", doseHandler.History)
		r.Put("/history/{id}", doseHandler.CorrectHistory)
		r.Post("/sync", syncHandler.Sync)
	})

	return &handlerEnv{
		router:       router,
		doses:        doseService,
		petRepo:      petRepo,
		itemRepo:     itemRepo,
		scheduleRepo: scheduleRepo,
		groupRepo:    groupRepo,
		instanceRepo: instanceRepo,
	}
}

// login performs a real password login and returns the session cookie.
func (env *handlerEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	response := env.request(t, http.MethodPost, "/login",
		map[string]string{"name": "alex", "password": testPassword}, nil)
	if response.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", response.Code, response.Body.String())
	}
	for _, cookie := range response.Result().Cookies() {
		if cookie.Name == "session" {
			return cookie
		}
	}
	t.Fatal("login response did not set a session cookie")
	return nil
}

func (env *handlerEnv) request(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		request.AddCookie(cookie)
	}

	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("decoding response %q: %v", recorder.Body.String(), err)
	}
}

func (env *handlerEnv) seedDose(t *testing.T, itemName string, groupID *string, scheduledAt time.Time) models.DailyInstance {
	t.Helper()
	ctx := context.Background()

	pet, err := env.petRepo.Create(ctx, models.Pet{Name: "Miso", Species: "cat"})
	if err != nil {
		t.Fatalf("creating pet: %v", err)
	}
	item, err := env.itemRepo.Create(ctx, models.Item{
		PetID:           pet.ID,
		Name:            itemName,
		Type:            models.ItemTypeMedication,
		ConflictGroupID: groupID,
		Active:          true,
	})
	if err != nil {
		t.Fatalf("creating item: %v", err)
	}
	schedule, err := env.scheduleRepo.Create(ctx, models.ItemSchedule{
		ItemID:    item.ID,
		TimeOfDay: scheduledAt.Format("15:04"),
	})
	if err != nil {
		t.Fatalf("creating schedule: %v", err)
	}
	instance, err := env.instanceRepo.Create(ctx, models.DailyInstance{
		ScheduleID:  schedule.ID,
		ItemID:      item.ID,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		t.Fatalf("creating instance: %v", err)
	}
	return instance
}
