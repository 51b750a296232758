package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicreport/internal/config"
	"civicreport/internal/notify"
	"civicreport/internal/route"
	"civicreport/internal/server"
	"civicreport/internal/storage/sqlite"
	"civicreport/internal/sweep"
	"civicreport/internal/vision"
)

func Main() {
	cfg := config.LoadConfig()
	log.Printf(
		"Config loaded. Listen=%s Provider=%s Model=%s AutoCommitThreshold=%.2f SweepSchedule=%q SweepMinAge=%dm",
		cfg.ListenAddr,
		cfg.VisionProvider,
		cfg.VisionModel,
		cfg.AutoCommitThreshold,
		cfg.SweepSchedule,
		cfg.SweepMinAgeMinutes,
	)

	if err := route.ValidateRules(); err != nil {
		log.Fatalf("Invalid routing rules: %v", err)
	}

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer, err := vision.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to init vision provider: %v", err)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.SlackConfigured() {
		notifier = notify.NewSlack(cfg.SlackBotToken, cfg.SlackChannelID)
		log.Printf("Slack notifications enabled channel=%s", cfg.SlackChannelID)
	} else {
		log.Println("Slack notifications disabled")
	}

	sweep.StartScheduler(
		cfg.SweepSchedule,
		time.Duration(cfg.SweepMinAgeMinutes)*time.Minute,
		db, notifier, cfg.AutoCommitThreshold,
	)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(db, analyzer, notifier, cfg).Routes(),
	}

	go func() {
		log.Printf("Starting civic report service on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
