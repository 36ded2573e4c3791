package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"studiobook/pkg/config"
	"studiobook/pkg/model"
)

const CollectionName = "services"

var ErrNotFound = errors.New("service offering not found")

// CatalogRepository is the read-only view of the service catalog. The
// lifecycle engine copies each offering's policy onto bookings at creation;
// catalog writes live outside this core.
type CatalogRepository interface {
	FindByID(ctx context.Context, id string) (*model.ServiceOffering, error)
}

type mongoCatalogRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCatalogRepository(db *mongo.Database, cfg *config.Config) CatalogRepository {
	return &mongoCatalogRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoCatalogRepository) FindByID(ctx context.Context, id string) (*model.ServiceOffering, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ReadTimeout)
		defer cancel()
	}

	var offering model.ServiceOffering
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&offering)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find service offering: %w", err)
	}
	return &offering, nil
}

// PolicyFor resolves the snapshot and slot duration for an offering,
// falling back to configured defaults when the catalog entry leaves the
// policy unset.
func PolicyFor(offering *model.ServiceOffering, cfg *config.Config) (model.PolicySnapshot, time.Duration) {
	policy := offering.Policy
	if policy == (model.PolicySnapshot{}) {
		cancelHours, changeHours, noShowMin := cfg.DefaultPolicy()
		policy = model.PolicySnapshot{
			CancelBeforeHours: cancelHours,
			ChangeBeforeHours: changeHours,
			NoShowAfterMin:    noShowMin,
		}
	}
	durationMin := offering.DurationMin
	if durationMin <= 0 {
		durationMin = cfg.DefaultSlotMinutes
	}
	return policy, time.Duration(durationMin) * time.Minute
}
