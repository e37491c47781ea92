package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type mongoDocument struct {
	Path       string    `bson:"_id"`
	Collection string    `bson:"collection"`
	DocID      string    `bson:"doc_id"`
	Data       bson.M    `bson:"data"`
	Seq        int64     `bson:"seq"`
	CreatedAt  time.Time `bson:"created_at"`
}

// Mongo keeps every document in one collection keyed by its full path. Live
// queries are served from change streams, so the server must run as a
// replica set.
type Mongo struct {
	docs     *mongo.Collection
	counters *mongo.Collection
	stamps   *stamper
	logger   *slog.Logger
}

func NewMongo(db *mongo.Database, c clock.Clock, log *slog.Logger) *Mongo {
	return &Mongo{
		docs:     db.Collection("documents"),
		counters: db.Collection("counters"),
		stamps:   newStamper(c),
		logger:   logger.OrDefault(log),
	}
}

func (g *Mongo) CreateIndexes(ctx context.Context) error {
	_, err := g.docs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "collection", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create documents index: %w", err)
	}
	return nil
}

func (g *Mongo) WriteOnce(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	seq, err := g.nextSeq(ctx)
	if err != nil {
		return "", err
	}
	ts, _ := g.stamps.next()

	doc := mongoDocument{
		Path:       Doc(collection, id),
		Collection: collection,
		DocID:      id,
		Data:       bson.M(resolve(data, ts)),
		Seq:        seq,
		CreatedAt:  ts,
	}
	if _, err := g.docs.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

func (g *Mongo) Put(ctx context.Context, docPath string, data map[string]any) error {
	collection, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	seq, err := g.nextSeq(ctx)
	if err != nil {
		return err
	}
	ts, _ := g.stamps.next()

	filter := bson.M{"_id": docPath}
	update := bson.M{
		"$set": bson.M{
			"collection": collection,
			"doc_id":     id,
			"data":       bson.M(resolve(data, ts)),
		},
		"$setOnInsert": bson.M{
			"seq":        seq,
			"created_at": ts,
		},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := g.docs.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (g *Mongo) ReadOnce(ctx context.Context, docPath string) (Document, error) {
	var doc mongoDocument
	err := g.docs.FindOne(ctx, bson.M{"_id": docPath}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	return doc.toDocument(), nil
}

func (g *Mongo) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if err := validCollection(q.Collection); err != nil {
		return nil, err
	}

	// Match on the document key so deletes and partial updates are seen too.
	match := bson.D{{Key: "$match", Value: bson.D{{
		Key:   "documentKey._id",
		Value: primitive.Regex{Pattern: "^" + regexp.QuoteMeta(q.Collection) + "/[^/]+$"},
	}}}}
	watchCtx, cancel := context.WithCancel(ctx)
	stream, err := g.docs.Watch(watchCtx, mongo.Pipeline{match})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer stream.Close(context.Background())
		for stream.Next(watchCtx) {
			signal(changes)
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			g.logger.Error("change stream stopped", "collection", q.Collection, "err", err)
		}
	}()

	fetch := func(ctx context.Context) (Snapshot, error) {
		return g.query(ctx, q)
	}
	return startSubscription(ctx, fetch, changes, cancel, g.logger), nil
}

func (g *Mongo) query(ctx context.Context, q Query) (Snapshot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cursor, err := g.docs.Find(ctx, bson.M{"collection": q.Collection}, opts)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to query documents: %w", err)
	}
	var rows []mongoDocument
	if err := cursor.All(ctx, &rows); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode documents: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.toDocument())
	}
	q.sort(docs)
	return Snapshot{Collection: q.Collection, Docs: docs}, nil
}

func (g *Mongo) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := g.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "documents"},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	return counter.Seq, nil
}

func (g *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.docs.Database().Client().Disconnect(ctx)
}

func (d mongoDocument) toDocument() Document {
	data, _ := normalize(d.Data).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	return Document{
		ID:         d.DocID,
		Path:       d.Path,
		Data:       data,
		Seq:        d.Seq,
		CreateTime: d.CreatedAt.UTC(),
	}
}

// normalize converts BSON container and date types into plain Go values.
func normalize(v any) any {
	switch val := v.(type) {
	case primitive.M:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalize(inner)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalize(inner)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalize(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalize(inner)
		}
		return out
	case primitive.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val.UTC()
	default:
		return v
	}
}
