package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"relayd/internal/engine/relay"
	"relayd/internal/platform/config"
	"relayd/internal/platform/database"
	"relayd/internal/platform/repositories"
	"relayd/internal/pkg/logger"
	"relayd/internal/workers"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	webhookRepo := repositories.NewWebhookRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	engine := relay.NewEngine(deliveryRepo, cfg.Relay.DeliveryTimeout)
	sweeper := workers.NewRetrySweeper(webhookRepo, deliveryRepo, engine, cfg.Worker.SweepBatchSize)

	sweepSchedule := cfg.Worker.SweepSchedule
	if sweepSchedule == "" {
		sweepSchedule = "@every 30s"
	}
	pruneSchedule := cfg.Worker.PruneSchedule
	if pruneSchedule == "" {
		pruneSchedule = "@daily"
	}

	c := cron.New()
	if _, err := c.AddFunc(sweepSchedule, func() {
		if err := sweeper.Sweep(context.Background()); err != nil {
			log.Printf("Retry sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Invalid sweep schedule: %v", err)
	}
	if _, err := c.AddFunc(pruneSchedule, func() {
		if err := sweeper.PruneHistory(cfg.Worker.RetentionDays); err != nil {
			log.Printf("History prune failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Invalid prune schedule: %v", err)
	}

	log.Printf("Starting relayd worker (sweep %s, prune %s)", sweepSchedule, pruneSchedule)
	c.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	<-c.Stop().Done()
}
