package joblock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studiobook/pkg/config"
	"studiobook/pkg/model"
)

const CollectionName = "job_locks"

type mongoStore struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// NewMongoStore backs the lock on a collection keyed by job key. A TTL
// index on expires_at reaps abandoned locks; the conditional upsert below
// handles the window before the reaper runs.
func NewMongoStore(db *mongo.Database, cfg *config.Config) Store {
	return &mongoStore{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (s *mongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.WriteTimeout)
}

func (s *mongoStore) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	lock := model.JobLock{
		Key:       key,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	// Replace the document only when it is ours already or expired;
	// upsert otherwise. A concurrent winner makes the upsert collide on
	// _id, which is the busy signal, not an error.
	filter := bson.M{
		"_id": key,
		"$or": []bson.M{
			{"owner": owner},
			{"expires_at": bson.M{"$lte": now}},
		},
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, filter, lock, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire job lock %s: %w", key, err)
	}
	return true, nil
}

func (s *mongoStore) Renew(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{
		"_id":        key,
		"owner":      owner,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"expires_at": now.Add(ttl)}}
	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to renew job lock %s: %w", key, err)
	}
	return result.MatchedCount > 0, nil
}

func (s *mongoStore) Release(ctx context.Context, key, owner string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to release job lock %s: %w", key, err)
	}
	return nil
}

func (s *mongoStore) IsLocked(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var lock model.JobLock
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&lock)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect job lock %s: %w", key, err)
	}
	return !lock.Expired(time.Now().UTC()), nil
}
