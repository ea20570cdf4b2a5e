package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mwhite/petdose/internal/config"
	"github.com/mwhite/petdose/internal/handlers"
	"github.com/mwhite/petdose/internal/middleware"
	"github.com/mwhite/petdose/internal/repository"
	"github.com/mwhite/petdose/internal/services"
)

type Server struct {
	router *chi.Mux
	config config.Config
}

func New(database *sql.DB, cfg config.Config, authService *services.AuthService) *Server {
	petRepo := repository.NewPetRepository(database)
	itemRepo := repository.NewItemRepository(database)
	scheduleRepo := repository.NewItemScheduleRepository(database)
	groupRepo := repository.NewConflictGroupRepository(database)
	instanceRepo := repository.NewDailyInstanceRepository(database)
	historyRepo := repository.NewConfirmationHistoryRepository(database)
	actionRepo := repository.NewOfflineActionRepository(database)

	doseService := services.NewDoseService(
		instanceRepo, scheduleRepo, itemRepo, groupRepo, historyRepo,
		time.Duration(cfg.DueWindowMinutes)*time.Minute,
		time.Duration(cfg.OverdueGraceMinutes)*time.Minute,
	)
	syncService := services.NewSyncService(doseService, itemRepo, scheduleRepo, actionRepo)

	authHandler := handlers.NewAuthHandler(authService)
	petHandler := handlers.NewPetHandler(petRepo)
	itemHandler := handlers.NewItemHandler(itemRepo, petRepo, scheduleRepo)
	groupHandler := handlers.NewConflictGroupHandler(groupRepo)
	doseHandler := handlers.NewDoseHandler(doseService)
	syncHandler := handlers.NewSyncHandler(syncService)
	icalHandler := handlers.NewICalHandler(doseService, cfg.ICalToken)

	router := chi.NewRouter()

	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Compress(5))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	router.Post("/login", authHandler.Login)
	router.Get("/logout", authHandler.Logout)
	router.Get("/ical", icalHandler.Feed)

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAuth(authService))

		r.Get("/pets", petHandler.List)
		r.Post("/pets", petHandler.Create)
		r.Get("/pets/{id}", petHandler.Get)
		r.Put("/pets/{id}", petHandler.Update)
		r.Delete("/pets/{id}", petHandler.Delete)

		r.Get("/items", itemHandler.List)
		r.Post("/items", itemHandler.Create)
		r.Get("/items/{id}", itemHandler.Get)
		r.Put("/items/{id}", itemHandler.Update)
		r.Delete("/items/{id}", itemHandler.Delete)
		r.Get("/items/{id}/schedules", itemHandler.ListSchedules)
		r.Post("/items/{id}/schedules", itemHandler.CreateSchedule)
		r.Delete("/schedules/{id}", itemHandler.DeleteSchedule)

		r.Get("/conflict-groups", groupHandler.List)
		r.Post("/conflict-groups", groupHandler.Create)
		r.Put("/conflict-groups/{id}", groupHandler.Update)
		r.Delete("/conflict-groups/{id}", groupHandler.Delete)

		r.Get("/doses", doseHandler.List)
		r.Post("/doses/{id}/confirm", doseHandler.Confirm)
		r.Post("/doses/{id}/snooze", doseHandler.Snooze)
		r.Get("/doses/{id}/history", doseHandler.History)
		r.Put("/history/{id}", doseHandler.CorrectHistory)

		r.Post("/sync", syncHandler.Sync)
	})

	return &Server{
		router: router,
		config: cfg,
	}
}

func (server *Server) Start() error {
	address := ":" + server.config.Port
	slog.Info("starting server", "address", address)
	return http.ListenAndServe(address, server.router)
}
