package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	availabilityerrors "studiobook/internal/availability/errors"
	"studiobook/pkg/config"
	"studiobook/pkg/model"
)

const (
	CollectionName = "availability"

	// The configuration is a singleton document.
	configDocumentID = "availability_config"
)

// AvailabilityRepository persists the singleton availability configuration.
// Writes replace the whole document; there is no field-level merge.
type AvailabilityRepository interface {
	Get(ctx context.Context) (*model.AvailabilityConfig, error)
	Replace(ctx context.Context, cfg *model.AvailabilityConfig) (*model.AvailabilityConfig, error)
}

type mongoAvailabilityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAvailabilityRepository(db *mongo.Database, cfg *config.Config) AvailabilityRepository {
	return &mongoAvailabilityRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoAvailabilityRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoAvailabilityRepository) Get(ctx context.Context) (*model.AvailabilityConfig, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var out model.AvailabilityConfig
	err := r.collection.FindOne(ctx, bson.M{"_id": configDocumentID}).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrNotConfigured
		}
		return nil, fmt.Errorf("failed to load availability config: %w", err)
	}
	return &out, nil
}

func (r *mongoAvailabilityRepository) Replace(ctx context.Context, cfg *model.AvailabilityConfig) (*model.AvailabilityConfig, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	cfg.ID = configDocumentID
	cfg.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": configDocumentID}, cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to replace availability config: %w", err)
	}
	return cfg, nil
}
