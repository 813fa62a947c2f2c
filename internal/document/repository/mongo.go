package repository

import (
	"context"
	"errors"
	"time"

	"github.com/docindex/docindex/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements a MongoDB-backed repository for documents.
// Ids are ObjectID hex strings stored in _id, so sorting on _id follows
// creation order. fileName is indexed but deliberately not unique: duplicates
// are tolerated and removed by the repair operation.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "fileName", Value: 1}}},
		{Keys: bson.D{{Key: "indexedAt", Value: 1}}},
	}
	if _, err := col.Indexes().CreateMany(ctx, models); err != nil {
		return nil, err
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) Create(ctx context.Context, doc *document.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = primitive.NewObjectID().Hex()
	}
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (m *MongoRepo) Update(ctx context.Context, doc *document.Document) error {
	set := bson.M{
		"title":     doc.Title,
		"fileName":  doc.FileName,
		"fileSize":  doc.FileSize,
		"mimeType":  doc.MIMEType,
		"content":   doc.Content,
		"indexedAt": doc.IndexedAt,
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoRepo) FindByFileName(ctx context.Context, name string) (*document.Document, error) {
	return m.findOne(ctx, bson.M{"fileName": name}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (m *MongoRepo) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*document.Document, error) {
	var d document.Document
	err := m.col.FindOne(ctx, filter, opts...).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) List(ctx context.Context) ([]*document.Document, error) {
	return m.find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (m *MongoRepo) ListIndexedBefore(ctx context.Context, cutoff time.Time, limit int, exclude []string) ([]*document.Document, error) {
	filter := bson.M{"indexedAt": bson.M{"$lt": cutoff}}
	if len(exclude) > 0 {
		filter["_id"] = bson.M{"$nin": exclude}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return m.find(ctx, filter, opts)
}

func (m *MongoRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*document.Document, error) {
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
