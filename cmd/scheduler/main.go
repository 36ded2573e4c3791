package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	availrepo "studiobook/internal/availability/repository"
	availservice "studiobook/internal/availability/service"
	availvalidator "studiobook/internal/availability/validator"
	bookingrepo "studiobook/internal/bookings/repository"
	bookingservice "studiobook/internal/bookings/service"
	bookingvalidator "studiobook/internal/bookings/validator"
	catalogrepo "studiobook/internal/catalog/repository"
	"studiobook/internal/events"
	"studiobook/internal/joblock"
	"studiobook/internal/jobs"
	orderrepo "studiobook/internal/orders/repository"
	"studiobook/pkg/client"
	"studiobook/pkg/config"
)

const ServiceName = "scheduler"

func main() {
	cfg := config.Load(ServiceName)

	mongoClient := client.NewClient()
	mongoClient.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
	defer mongoClient.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)

	sink := initSink(cfg)
	defer func() {
		if err := sink.Close(); err != nil {
			cfg.Log.Warn("Failed to close event sink", "error", err)
		}
	}()

	runner := initRunner(cfg, mongoClient, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx)

	cfg.Log.Info("Scheduler started")
	waitForShutdown(cfg)
	runner.Stop()
	cfg.Log.Info("Scheduler stopped")
}

func initSink(cfg *config.Config) events.Sink {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Event publishing disabled, using noop sink")
		return events.NewNoopSink()
	}
	sink, err := events.NewKafkaSink(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event sink", "error", err)
	}
	cfg.Log.Info("Event sink initialized", "topic", cfg.KafkaEventsTopic)
	return sink
}

func initRunner(cfg *config.Config, mongoClient *client.Client, sink events.Sink) *jobs.Runner {
	db := mongoClient.Mongo.Database(cfg.MongoDatabaseName)

	bookingRepo := bookingrepo.NewMongoBookingRepository(mongoClient.Mongo, cfg)
	catalogRepo := catalogrepo.NewMongoCatalogRepository(db, cfg)
	orderRepo := orderrepo.NewMongoOrderRepository(db, cfg)
	availRepo := availrepo.NewMongoAvailabilityRepository(db, cfg)
	locks := joblock.NewMongoStore(db, cfg)

	availability := availservice.NewAvailabilityService(
		availRepo,
		bookingRepo,
		availvalidator.NewAvailabilityValidator(cfg.Log),
		cfg,
	)
	bookings := bookingservice.NewBookingService(
		bookingRepo,
		catalogRepo,
		availability,
		bookingvalidator.NewBookingValidator(cfg.Log),
		sink,
		cfg,
	)

	owner := jobs.NewOwner()
	runner := jobs.NewRunner(cfg, cfg.Zone)
	runner.Register(
		jobs.NewReminderCoordinator(bookingRepo, locks, sink, cfg, cfg.Zone, owner),
		jobs.Schedule{Interval: cfg.ReminderInterval},
	)
	runner.Register(
		jobs.NewAutoCompleteCoordinator(bookingRepo, bookings, locks, cfg, cfg.Zone, owner),
		jobs.Schedule{Interval: cfg.AutoCompleteInterval},
	)
	runner.Register(
		jobs.NewStaleCleanupCoordinator(bookingRepo, bookings, locks, cfg, cfg.Zone, owner),
		jobs.Schedule{DailyAt: cfg.StaleCleanupAt},
	)
	runner.Register(
		jobs.NewOrderExpireCoordinator(orderRepo, locks, sink, cfg, cfg.Zone, owner),
		jobs.Schedule{Interval: cfg.OrderExpireInterval},
	)

	cfg.Log.Info("Scheduler initialized",
		"owner", owner,
		"database", cfg.MongoDatabaseName,
		"lock_ttl", cfg.JobLockTTL,
	)
	return runner
}

func waitForShutdown(cfg *config.Config) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	cfg.Log.Info("Shutdown signal received", "signal", sig.String())

	// Give in-flight sweeps a bounded window before the process exits.
	time.AfterFunc(cfg.ShutdownTimeout, func() {
		cfg.Log.Error("Shutdown timed out, exiting")
		os.Exit(1)
	})
}
