package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the production Store backed by go.mongodb.org/mongo-driver,
// grounded on the flowcatalyst stream-watcher's use of collection handles
// and upsert-style UpdateOne calls.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Dial connects to uri and selects database dbName. maxPoolSize/minPoolSize
// of 0 leave the driver defaults in place.
func Dial(ctx context.Context, uri, dbName string, maxPoolSize, minPoolSize uint64) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri)
	if maxPoolSize > 0 {
		opts.SetMaxPoolSize(maxPoolSize)
	}
	if minPoolSize > 0 {
		opts.SetMinPoolSize(minPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

func (s *MongoStore) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

type dupErr struct{ inner error }

func (e dupErr) Error() string        { return e.inner.Error() }
func (e dupErr) IsDuplicateKey() bool { return true }

func (s *MongoStore) InsertMany(ctx context.Context, collection string, docs []interface{}) (int, []error, error) {
	if len(docs) == 0 {
		return 0, nil, nil
	}
	opts := options.InsertMany().SetOrdered(false)
	res, err := s.col(collection).InsertMany(ctx, docs, opts)

	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}

	if err == nil {
		return inserted, nil, nil
	}

	var bulkErr mongo.BulkWriteException
	if ok := asBulkWriteException(err, &bulkErr); ok {
		var dupErrs []error
		var otherErr error
		for _, we := range bulkErr.WriteErrors {
			if mongo.IsDuplicateKeyError(we) {
				dupErrs = append(dupErrs, dupErr{inner: we})
				continue
			}
			if otherErr == nil {
				otherErr = we
			}
		}
		return inserted, dupErrs, otherErr
	}

	if mongo.IsDuplicateKeyError(err) {
		return inserted, []error{dupErr{inner: err}}, nil
	}
	return inserted, nil, err
}

// asBulkWriteException type-asserts err into a *mongo.BulkWriteException,
// handling the driver's habit of sometimes wrapping it.
func asBulkWriteException(err error, out *mongo.BulkWriteException) bool {
	if bwe, ok := err.(mongo.BulkWriteException); ok {
		*out = bwe
		return true
	}
	return false
}

func (s *MongoStore) UpdateOne(ctx context.Context, collection string, filter map[string]interface{}, update map[string]interface{}, upsert bool) error {
	opts := options.Update()
	if upsert {
		opts.SetUpsert(true)
	}
	_, err := s.col(collection).UpdateOne(ctx, bson.M(filter), bson.M(update), opts)
	return err
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, filter map[string]interface{}, out interface{}) error {
	err := s.col(collection).FindOne(ctx, bson.M(filter)).Decode(out)
	if err == mongo.ErrNoDocuments {
		return ErrNoDocuments
	}
	return err
}

func (s *MongoStore) Find(ctx context.Context, collection string, filter map[string]interface{}, fo FindOptions, out interface{}) error {
	opts := options.Find()
	if len(fo.Sort) > 0 {
		opts.SetSort(bson.M(toInterfaceMap(fo.Sort)))
	}
	if fo.Skip > 0 {
		opts.SetSkip(fo.Skip)
	}
	if fo.Limit > 0 {
		opts.SetLimit(fo.Limit)
	}
	cur, err := s.col(collection).Find(ctx, bson.M(filter), opts)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}

func (s *MongoStore) Count(ctx context.Context, collection string, filter map[string]interface{}) (int64, error) {
	return s.col(collection).CountDocuments(ctx, bson.M(filter))
}

func (s *MongoStore) Aggregate(ctx context.Context, collection string, pipeline []map[string]interface{}, out interface{}) error {
	stages := make(bson.A, 0, len(pipeline))
	for _, stage := range pipeline {
		stages = append(stages, bson.M(stage))
	}
	cur, err := s.col(collection).Aggregate(ctx, stages)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}

func (s *MongoStore) CreateIndex(ctx context.Context, collection string, spec IndexSpec) error {
	keys := bson.D{}
	for field, dir := range spec.Keys {
		keys = append(keys, bson.E{Key: field, Value: dir})
	}
	opts := options.Index().SetUnique(spec.Unique).SetSparse(spec.Sparse)
	if spec.Name != "" {
		opts.SetName(spec.Name)
	}
	_, err := s.col(collection).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys, Options: opts})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func toInterfaceMap(m map[string]int) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
