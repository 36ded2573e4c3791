package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studiobook/pkg/config"
	"studiobook/pkg/model"
)

const CollectionName = "orders"

type OrderRepository interface {
	// FindReadyToExpire returns orders still awaiting a deposit whose
	// payment window closed at or before the given instant.
	FindReadyToExpire(ctx context.Context, now time.Time) ([]*model.Order, error)
	// Expire flips a single order to expired, conditional on it still
	// awaiting a deposit. It reports whether the update applied.
	Expire(ctx context.Context, id string, at time.Time) (bool, error)
}

type mongoOrderRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database, cfg *config.Config) OrderRepository {
	return &mongoOrderRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoOrderRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoOrderRepository) FindReadyToExpire(ctx context.Context, now time.Time) ([]*model.Order, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":     model.OrderAwaitingDeposit,
		"expires_at": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find expirable orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*model.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode expirable orders: %w", err)
	}
	return orders, nil
}

func (r *mongoOrderRepository) Expire(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    id,
		"status": model.OrderAwaitingDeposit,
	}
	update := bson.M{"$set": bson.M{
		"status":     model.OrderExpired,
		"expired_at": at,
	}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to expire order %s: %w", id, err)
	}
	return result.ModifiedCount > 0, nil
}
