package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mtalha0777/arfurniture/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection("carts")}
}

// CreateIndexes must run before AddLine is used: the unique user_id index is what
// turns a duplicate product into ErrDuplicateLine instead of a second cart document.
func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoStore) AddLine(ctx context.Context, userID string, line domain.CartLine) error {
	now := time.Now().UTC()
	line.AddedAt = now

	// Matches only a cart that does not hold the product yet. If the cart exists and
	// already has it, the upsert tries to insert a second document for the user and
	// the unique index rejects it.
	filter := bson.M{
		"user_id":          userID,
		"lines.product_id": bson.M{"$ne": line.ProductID},
	}
	update := bson.M{
		"$push":        bson.M{"lines": line},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// The cart may have been created by a concurrent first add of another product.
		// A second attempt matches that cart unless it already holds this product.
		_, err = m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateLine
	}
	if err != nil {
		return fmt.Errorf("%w: add line: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (m *MongoStore) RemoveLine(ctx context.Context, userID, productID string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{"lines": bson.M{"product_id": productID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("%w: remove line: %v", ErrStorageUnavailable, err)
	}
	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}
	if result.ModifiedCount == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (m *MongoStore) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get cart: %v", ErrStorageUnavailable, err)
	}
	return &cart, nil
}

func (m *MongoStore) Snapshot(ctx context.Context, userID string) (*domain.CartSnapshot, error) {
	snapshot := &domain.CartSnapshot{
		UserID:     userID,
		Lines:      []domain.CartLine{},
		CapturedAt: time.Now().UTC(),
	}

	cart, err := m.GetCart(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return snapshot, nil
	}
	if err != nil {
		return nil, err
	}

	snapshot.CartID = cart.ID
	snapshot.Lines = append(snapshot.Lines, cart.Lines...)
	return snapshot, nil
}

// Clear deletes the cart document. The next AddLine creates a new document with a
// new id, so a fresh cart never shares a checkout key with a completed one.
func (m *MongoStore) Clear(ctx context.Context, userID string) (int, error) {
	var removed domain.Cart
	err := m.collection.FindOneAndDelete(ctx, bson.M{"user_id": userID}).Decode(&removed)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrCartNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: clear cart: %v", ErrStorageUnavailable, err)
	}
	return len(removed.Lines), nil
}
