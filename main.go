package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/mwhite/petdose/internal/config"
	"github.com/mwhite/petdose/internal/database"
	"github.com/mwhite/petdose/internal/repository"
	"github.com/mwhite/petdose/internal/server"
	"github.com/mwhite/petdose/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	authService, err := services.NewAuthService(cfg)
	if err != nil {
		slog.Error("creating auth service", "error", err)
		os.Exit(1)
	}

	instanceRepo := repository.NewDailyInstanceRepository(db)
	scheduleRepo := repository.NewItemScheduleRepository(db)
	itemRepo := repository.NewItemRepository(db)
	groupRepo := repository.NewConflictGroupRepository(db)
	historyRepo := repository.NewConfirmationHistoryRepository(db)
	doseService := services.NewDoseService(
		instanceRepo, scheduleRepo, itemRepo, groupRepo, historyRepo,
		time.Duration(cfg.DueWindowMinutes)*time.Minute,
		time.Duration(cfg.OverdueGraceMinutes)*time.Minute,
	)

	go runExpireSweep(doseService)

	srv := server.New(db, cfg, authService)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runExpireSweep(doseService *services.DoseService) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		ctx := context.Background()
		expired, err := doseService.ExpireElapsed(ctx, time.Now())
		if err != nil {
			slog.Error("expiring elapsed instances", "error", err)
		} else if expired > 0 {
			slog.Info("expired elapsed instances", "count", expired)
		}
		<-ticker.C
	}
}
