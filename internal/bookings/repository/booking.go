package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingserrors "studiobook/internal/bookings/errors"
	"studiobook/pkg/config"
	mongotx "studiobook/pkg/db/mongo"
	"studiobook/pkg/model"
)

const (
	CollectionName = "bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// TransitionStatus performs the atomic conditional update: it matches
	// only when the stored status equals from, sets the new status and
	// appends the history entry, returning the post-update document.
	TransitionStatus(ctx context.Context, id string, from, to model.BookingStatus, entry model.HistoryEntry) (*model.Booking, error)
	MarkReminded(ctx context.Context, id string, at time.Time) (bool, error)

	BookedStarts(ctx context.Context, serviceID string, from, to time.Time) (map[int64]struct{}, error)
	HasActiveBooking(ctx context.Context, serviceID string, startAt time.Time) (bool, error)

	FindConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Booking, error)
	FindReadyToComplete(ctx context.Context, endedBefore time.Time) ([]*model.Booking, error)
	FindStaleRequested(ctx context.Context, createdBefore time.Time) ([]*model.Booking, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(client *mongo.Client, cfg *config.Config) BookingRepository {
	db := client.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(client),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction, where wrapping a SessionContext would break its semantics.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.ID == "" {
		booking.ID = primitive.NewObjectID().Hex()
	}
	booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bookingserrors.ErrDuplicateSlot
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if id == "" {
		return nil, bookingserrors.ErrInvalidID
	}

	var booking model.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) TransitionStatus(ctx context.Context, id string, from, to model.BookingStatus, entry model.HistoryEntry) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": from}
	update := bson.M{
		"$set":  bson.M{"status": to},
		"$push": bson.M{"history": entry},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated model.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrStatusMismatch
		}
		return nil, fmt.Errorf("failed to transition booking: %w", err)
	}
	return &updated, nil
}

func (r *mongoBookingRepository) MarkReminded(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":              id,
		"reminder.sent_at": bson.M{"$exists": false},
	}
	update := bson.M{
		"$set": bson.M{"reminder.sent_at": at.UTC().Truncate(time.Millisecond)},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark booking reminded: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

func (r *mongoBookingRepository) BookedStarts(ctx context.Context, serviceID string, from, to time.Time) (map[int64]struct{}, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"start_at": bson.M{"$gte": from, "$lt": to},
		"status":   bson.M{"$ne": model.BookingCanceled},
	}
	if serviceID != "" {
		filter["service_id"] = serviceID
	}

	opts := options.Find().SetProjection(bson.M{"start_at": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked starts: %w", err)
	}
	defer cursor.Close(ctx)

	starts := make(map[int64]struct{})
	for cursor.Next(ctx) {
		var doc struct {
			StartAt time.Time `bson:"start_at"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		starts[doc.StartAt.UnixMilli()] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booked starts: %w", err)
	}
	return starts, nil
}

func (r *mongoBookingRepository) HasActiveBooking(ctx context.Context, serviceID string, startAt time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"service_id": serviceID,
		"start_at":   startAt,
		"status":     bson.M{"$ne": model.BookingCanceled},
	}
	err := r.collection.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check active booking: %w", err)
	}
	return true, nil
}

func (r *mongoBookingRepository) FindConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
	filter := bson.M{
		"status":   model.BookingConfirmed,
		"start_at": bson.M{"$gte": from, "$lt": to},
	}
	return r.findSorted(ctx, filter)
}

func (r *mongoBookingRepository) FindReadyToComplete(ctx context.Context, endedBefore time.Time) ([]*model.Booking, error) {
	filter := bson.M{
		"status": model.BookingConfirmed,
		"end_at": bson.M{"$lte": endedBefore},
	}
	return r.findSorted(ctx, filter)
}

func (r *mongoBookingRepository) FindStaleRequested(ctx context.Context, createdBefore time.Time) ([]*model.Booking, error) {
	filter := bson.M{
		"status":     model.BookingRequested,
		"created_at": bson.M{"$lte": createdBefore},
	}
	return r.findSorted(ctx, filter)
}

func (r *mongoBookingRepository) findSorted(ctx context.Context, filter bson.M) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
