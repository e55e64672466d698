package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // venue timezone on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/calendar"
	"github.com/iliyamo/venue-booking/internal/config"
	"github.com/iliyamo/venue-booking/internal/database"
	"github.com/iliyamo/venue-booking/internal/handler"
	"github.com/iliyamo/venue-booking/internal/logger"
	"github.com/iliyamo/venue-booking/internal/metrics"
	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/queue"
	"github.com/iliyamo/venue-booking/internal/router"
	"github.com/iliyamo/venue-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment wins anyway
	cfg := config.Load()
	lg := logger.New(cfg.Env, cfg.Log.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		lg.Info("migrations applied", slog.String("driver", cfg.DBDriver))
	}

	rdb := config.NewRedisClient() // nil when Redis is down; middlewares pass through
	if rdb != nil {
		defer rdb.Close()
	}

	rec := metrics.New()
	var notifier service.Notifier = service.NopNotifier{}
	if cfg.PublishEnabled {
		notifier = queue.NewPublisher(cfg.AMQPURL, cfg.QueueName, lg, cfg.Log.LogQueue)
	}
	svc := service.New(db, service.Options{
		Logger:      lg,
		Metrics:     rec,
		Notifier:    notifier,
		PhoneRegion: cfg.PhoneRegion,
		LogSQL:      cfg.Log.LogSQL,
	})

	if cfg.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.QueueName, cfg.ConsumerLogDir, lg)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("queue consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestID())

	router.RegisterRoutes(e, db)
	router.RegisterMetrics(e, rec.Handler())
	router.RegisterBooking(e, handler.NewBookingHandler(svc, lg), cfg.JWTSecret)
	feed := calendar.Feed{Name: cfg.CalendarName, Location: cfg.Timezone}
	router.RegisterPublic(e, handler.NewCalendarHandler(svc.Events, feed, lg),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb, lg),
	)

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", slog.String("addr", addr), slog.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", slog.String("error", err.Error()))
	}
}

func openDB(cfg config.Config) (*database.DB, error) {
	if cfg.DBDriver == "sqlite" {
		return database.OpenSQLite(cfg.SQLitePath)
	}
	return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}
