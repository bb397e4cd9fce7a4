package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/evently/booking-engine/internal/config"
	"github.com/evently/booking-engine/internal/database"
	"github.com/evently/booking-engine/internal/lock"
	"github.com/evently/booking-engine/internal/queue"
	"github.com/evently/booking-engine/internal/repository"
	"github.com/evently/booking-engine/internal/service"
	"github.com/evently/booking-engine/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := repository.NewSQLRunner(db)
	eventRepo := repository.NewEventRepo(db)
	seatRepo := repository.NewSeatRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	waitlistRepo := repository.NewWaitlistRepo(db)

	publisher := queue.NewPublisher(cfg.AMQPURL)
	bookings := service.NewBookingService(runner, eventRepo, seatRepo, bookingRepo)
	waitlist := service.NewWaitlistService(runner, eventRepo, waitlistRepo, publisher)
	bookings.SetPromoter(waitlist)

	// Without Redis the per-event lock is skipped; the store's atomic
	// updates keep results correct at the cost of more write conflicts.
	var locker queue.Locker
	if rdb := config.NewRedisClient(); rdb != nil {
		locker = lock.NewRedis(rdb, cfg.LockAttempts, cfg.LockRetryDelay)
	} else {
		log.Println("redis unavailable, running without per-event locks")
	}

	sweeper := worker.NewHoldSweeper(runner, seatRepo, cfg.HoldSweepInterval)
	go sweeper.Run(ctx)

	w := queue.NewWorker(queue.WorkerConfig{
		URL:         cfg.AMQPURL,
		Concurrency: cfg.WorkerConcurrency,
		LockTTL:     cfg.LockTTL,
		MaxAttempts: cfg.QueueMaxAttempts,
		BackoffBase: cfg.QueueBackoffBase,
	}, bookings, locker)

	log.Printf("booking worker starting (concurrency=%d)", cfg.WorkerConcurrency)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("worker: %v", err)
	}
	log.Println("booking worker stopped")
}
