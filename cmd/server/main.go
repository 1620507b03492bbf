package main // Entry point package

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-reservation/internal/checkout"
	"github.com/iliyamo/trip-seat-reservation/internal/config"
	"github.com/iliyamo/trip-seat-reservation/internal/database"
	"github.com/iliyamo/trip-seat-reservation/internal/handler"
	"github.com/iliyamo/trip-seat-reservation/internal/lockstore"
	"github.com/iliyamo/trip-seat-reservation/internal/middleware"
	"github.com/iliyamo/trip-seat-reservation/internal/queue"
	"github.com/iliyamo/trip-seat-reservation/internal/repository"
	"github.com/iliyamo/trip-seat-reservation/internal/router"
	queue_publisher "github.com/iliyamo/trip-seat-reservation/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBMaxConns, cfg.DBConnLife)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	store := lockstore.New(rdb, cfg.LockRefSlack)

	trips := repository.NewTripRepo(db)
	locations := repository.NewLocationRepo(db)
	fares := repository.NewFareRepo(db)
	drafts := repository.NewDraftRepo(db)
	materializer := checkout.NewMaterializer(drafts, trips, fares, locations, cfg.Currency)

	// Background consumer writing seat events to logs/seat.log.
	go func() {
		if err := queue.StartSeatEventConsumer(); err != nil {
			log.Printf("seat-consumer stopped: %v", err)
		}
	}()

	// TTL-expiry listener: cleans the derived indexes when a lock lapses on
	// its own.  The unlocked event goes out for every expiry; attribution to
	// a session token is best-effort.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.ListenExpiry(ctx, func(ctx context.Context, tripID, seatID uint64, token string) {
		ev := queue.ExpiredUnlockEvent(tripID, seatID, token)
		if err := queue_publisher.PublishSeatEvent(ctx, ev); err != nil {
			log.Printf("expiry listener: publish unlocked event: %v", err)
		}
	})

	e := echo.New()
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	router.RegisterRoutes(e, router.Handlers{
		Lock:      handler.NewLockHandler(store, materializer, cfg.LockTTL),
		Session:   handler.NewSessionHandler(store, drafts),
		Booking:   handler.NewBookingHandler(store, drafts),
		TripSeats: handler.NewTripSeatsHandler(store, trips),
	}, cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
