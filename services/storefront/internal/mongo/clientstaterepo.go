package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/storefront/services/storefront/internal/clientstate"
)

type stateDoc struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ClientStateRepo implements clientstate.Store on the client_state collection.
type ClientStateRepo struct {
	collection *mongo.Collection
}

func NewClientStateRepo(db *mongo.Database) *ClientStateRepo {
	return &ClientStateRepo{
		collection: db.Collection("client_state"),
	}
}

func (r *ClientStateRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var doc stateDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, clientstate.ErrNotFound
		}
		return nil, fmt.Errorf("cannot get client state: %w", err)
	}
	return doc.Value, nil
}

func (r *ClientStateRepo) Put(ctx context.Context, key string, value []byte) error {
	doc := stateDoc{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return fmt.Errorf("cannot put client state: %w", err)
	}
	return nil
}

func (r *ClientStateRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("cannot delete client state: %w", err)
	}
	return nil
}
