// Package mongo keeps each collection in its own MongoDB collection. Bodies are
// stored as native BSON so the data stays queryable from the mongo shell.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"salonpos/backend/internal/store"
)

const opTimeout = 10 * time.Second

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

type record struct {
	ID       string `bson:"_id"`
	Position int64  `bson:"position"`
	Body     bson.D `bson:"body"`
}

func New(ctx context.Context, uri string, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) LoadAll(ctx context.Context, collection string) ([]store.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	docs := make([]store.Document, 0, len(records))
	for _, r := range records {
		doc, err := toDocument(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) LoadOne(ctx context.Context, collection string, id string) (store.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var r record
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, err
	}
	return toDocument(r)
}

// ReplaceAll upserts every document and then removes the rest. Mongo has no
// cheap multi-document transaction on a standalone server, so a crash between
// the two steps leaves stale extras that the next save removes.
func (s *Store) ReplaceAll(ctx context.Context, collection string, docs []store.Document) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	coll := s.db.Collection(collection)
	ids := make([]string, 0, len(docs))
	if len(docs) > 0 {
		models := make([]mongo.WriteModel, 0, len(docs))
		for i, doc := range docs {
			r, err := toRecord(doc, int64(i))
			if err != nil {
				return err
			}
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": doc.ID}).
				SetReplacement(r).
				SetUpsert(true))
			ids = append(ids, doc.ID)
		}
		if _, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
			return err
		}
	}

	_, err := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$nin": ids}})
	return err
}

func (s *Store) Put(ctx context.Context, collection string, doc store.Document) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	coll := s.db.Collection(collection)
	var existing record
	position := int64(0)
	err := coll.FindOne(ctx, bson.M{"_id": doc.ID}).Decode(&existing)
	switch {
	case err == nil:
		position = existing.Position
	case errors.Is(err, mongo.ErrNoDocuments):
		var last record
		lastErr := coll.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "position", Value: -1}})).Decode(&last)
		if lastErr == nil {
			position = last.Position + 1
		} else if !errors.Is(lastErr, mongo.ErrNoDocuments) {
			return lastErr
		}
	default:
		return err
	}

	r, err := toRecord(doc, position)
	if err != nil {
		return err
	}
	_, err = coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, r, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) Delete(ctx context.Context, collection string, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func toRecord(doc store.Document, position int64) (record, error) {
	var body bson.D
	if err := bson.UnmarshalExtJSON(doc.Body, false, &body); err != nil {
		return record{}, fmt.Errorf("decode %s: %w", doc.ID, err)
	}
	return record{ID: doc.ID, Position: position, Body: body}, nil
}

func toDocument(r record) (store.Document, error) {
	body, err := bson.MarshalExtJSON(r.Body, false, false)
	if err != nil {
		return store.Document{}, fmt.Errorf("encode %s: %w", r.ID, err)
	}
	return store.Document{ID: r.ID, Body: body}, nil
}
