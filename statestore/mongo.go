package statestore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var _ Store = (*MongoStore)(nil)

const mongoCollection = "state_documents"

// stateDocument is the persisted shape. The full prefixed key is the
// document id.
type stateDocument struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

// MongoStore persists documents in a MongoDB collection.
type MongoStore struct {
	coll   *mongo.Collection
	prefix string
}

// NewMongoStore creates the store over db's state collection.
func NewMongoStore(db *mongo.Database, prefix string) *MongoStore {
	return &MongoStore{coll: db.Collection(mongoCollection), prefix: prefix}
}

func (s *MongoStore) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	doc := stateDocument{Key: documentKey(s.prefix, key), Value: value}
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": doc.Key}, doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo put %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc stateDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": documentKey(s.prefix, key)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo get %s: %w", key, err)
	}
	if doc.Value == nil {
		doc.Value = []byte{}
	}
	return doc.Value, nil
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": documentKey(s.prefix, key)}); err != nil {
		return fmt.Errorf("mongo delete %s: %w", key, err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.coll.Database().Client().Disconnect(ctx)
}
