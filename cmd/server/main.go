package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/evently/booking-engine/internal/config"
	"github.com/evently/booking-engine/internal/database"
	"github.com/evently/booking-engine/internal/handler"
	"github.com/evently/booking-engine/internal/middleware"
	"github.com/evently/booking-engine/internal/queue"
	"github.com/evently/booking-engine/internal/repository"
	"github.com/evently/booking-engine/internal/router"
	"github.com/evently/booking-engine/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Redis backs rate limiting and the catalog response cache. A nil
	// client disables both; the booking path does not depend on it.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and caching disabled")
	}

	runner := repository.NewSQLRunner(db)
	eventRepo := repository.NewEventRepo(db)
	seatRepo := repository.NewSeatRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	waitlistRepo := repository.NewWaitlistRepo(db)
	userRepo := repository.NewUserRepo(db)

	publisher := queue.NewPublisher(cfg.AMQPURL)

	bookings := service.NewBookingService(runner, eventRepo, seatRepo, bookingRepo)
	waitlist := service.NewWaitlistService(runner, eventRepo, waitlistRepo, publisher)
	bookings.SetPromoter(waitlist)
	events := service.NewEventService(runner, eventRepo)
	auth := service.NewAuthService(runner, userRepo, cfg.JWTSecret, cfg.AccessTTLMin, cfg.BcryptCost)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	var cacheMW echo.MiddlewareFunc
	if rdb != nil {
		cacheMW = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(auth),
		Events:   handler.NewEventHandler(events),
		Bookings: handler.NewBookingHandler(bookings, publisher),
		Seats:    handler.NewSeatHandler(bookings),
		Waitlist: handler.NewWaitlistHandler(waitlist),
	}, cfg.JWTSecret, cacheMW)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
