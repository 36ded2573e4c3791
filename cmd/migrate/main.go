package main

import (
	"context"
	"time"

	mongoMigration "studiobook/internal/migrations/mongo"
	"studiobook/pkg/client"
	"studiobook/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)

	mongoClient := client.NewClient()
	mongoClient.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
	defer mongoClient.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)

	cfg.Log.Info("Starting Mongo migration job")
	if err := mongoMigration.RunMigration(ctx, mongoClient.Mongo, cfg.MongoDatabaseName); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	cfg.Log.Info("Migration completed successfully")
}
