package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"booking-service/internal/app"
	"booking-service/internal/cache"
	"booking-service/internal/config"
	"booking-service/internal/gcal"
	"booking-service/internal/scheduling"
	"booking-service/internal/server"
	"booking-service/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()

	db := store.New(pool)
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	appInstance := &app.App{StateSecret: []byte(cfg.JWTSecret)}
	if len(appInstance.StateSecret) == 0 {
		appInstance.StateSecret = []byte(cfg.GoogleClientSecret)
	}

	var locker gcal.Locker
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		locker = cache.NewLocker(rdb)
		appInstance.Replay = cache.NewIdempotency(rdb, cfg.IdempotencyTTL)
	}

	// Without an OAuth client every tenant is treated as disconnected and
	// scheduling runs on local appointments only.
	var calendarGateway scheduling.CalendarGateway
	if cfg.CalendarEnabled() {
		gw := gcal.NewGateway(
			gcal.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
			db,
			gcal.Options{
				RefreshAfter: cfg.TokenRefreshAfter,
				Endpoint:     cfg.CalendarEndpoint,
				Locker:       locker,
			},
		)
		calendarGateway = gw
		appInstance.Calendar = gw
	} else {
		log.Println("google calendar not configured, running local-only")
	}

	svc := scheduling.NewService(db, calendarGateway, scheduling.Options{
		MaxSlots:         cfg.MaxSlots,
		DefaultDaysAhead: cfg.DefaultDaysAhead,
		CalendarTimeout:  cfg.CalendarTimeout,
		StoreTimeout:     cfg.StoreTimeout,
	})
	appInstance.Scheduling = svc

	reconciler := scheduling.NewReconciler(db, calendarGateway, scheduling.ReconcilerOptions{
		MaxAttempts:     cfg.OutboxMaxAttempts,
		CalendarTimeout: cfg.CalendarTimeout,
	})
	jobs := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := jobs.AddFunc(cfg.OutboxSchedule, func() {
		n, err := reconciler.RunOnce(ctx)
		if err != nil {
			log.Printf("reconcile: %v", err)
		}
		if n > 0 {
			log.Printf("reconcile: %d calendar writes completed", n)
		}
	}); err != nil {
		log.Fatalf("failed to add cron job: %v", err)
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	router := appInstance.NewRouter(app.AuthMiddleware(cfg.JWTSecret, cfg.StaticTokens))
	if err := server.Run(ctx, router, cfg.Port, cfg.ShutdownTimeout); err != nil {
		log.Printf("server: %v", err)
	}
}
