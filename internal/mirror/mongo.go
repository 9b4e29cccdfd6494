// AngelaMos | 2026
// mongo.go

package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/carterperez-dev/roadwatch/internal/config"
	"github.com/carterperez-dev/roadwatch/internal/core"
)

// Mongo keeps one document per signalement, keyed by the shared string id
// in _id.
type Mongo struct {
	client       *mongo.Client
	db           *mongo.Database
	probeTimeout time.Duration
}

func NewMongo(ctx context.Context, cfg config.MirrorConfig) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ProbeTimeout).
		SetConnectTimeout(cfg.ProbeTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mirror: %w", err)
	}

	return &Mongo{
		client:       client,
		db:           client.Database(cfg.Database),
		probeTimeout: cfg.ProbeTimeout,
	}, nil
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (Fields, error) {
	var doc bson.M
	err := m.db.Collection(collection).FindOne(ctx, idFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mirror get %s/%s: %w", collection, id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mirror get %s/%s: %w", collection, id, classify(err))
	}

	_, fields := toRecordFields(doc)
	return fields, nil
}

func (m *Mongo) Set(
	ctx context.Context,
	collection, id string,
	fields Fields,
	merge bool,
) error {
	coll := m.db.Collection(collection)

	key, err := m.existingKey(ctx, coll, id)
	if err != nil {
		return fmt.Errorf("mirror set %s/%s: %w", collection, id, classify(err))
	}
	filter := bson.M{"_id": key}

	if merge {
		_, err = coll.UpdateOne(ctx, filter,
			bson.M{"$set": bson.M(fields)},
			options.Update().SetUpsert(true),
		)
	} else {
		_, err = coll.ReplaceOne(ctx, filter,
			bson.M(fields),
			options.Replace().SetUpsert(true),
		)
	}
	if err != nil {
		return fmt.Errorf("mirror set %s/%s: %w", collection, id, classify(err))
	}

	return nil
}

func (m *Mongo) Update(
	ctx context.Context,
	collection, id string,
	partial Fields,
) error {
	res, err := m.db.Collection(collection).UpdateOne(ctx,
		idFilter(id),
		bson.M{"$set": bson.M(partial)},
	)
	if err != nil {
		return fmt.Errorf("mirror update %s/%s: %w", collection, id, classify(err))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mirror update %s/%s: %w", collection, id, core.ErrNotFound)
	}

	return nil
}

func (m *Mongo) Query(
	ctx context.Context,
	collection string,
	p Predicate,
) ([]Record, error) {
	filter, err := toFilter(p)
	if err != nil {
		return nil, err
	}

	cur, err := m.db.Collection(collection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mirror query %s: %w", collection, classify(err))
	}
	defer cur.Close(ctx) //nolint:errcheck // cursor already drained

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mirror query %s: %w", collection, classify(err))
	}

	out := make([]Record, 0, len(docs))
	for _, doc := range docs {
		id, fields := toRecordFields(doc)
		out = append(out, Record{ID: id, Fields: fields})
	}
	return out, nil
}

// existingKey returns the _id already stored for id, which may be an
// ObjectID generated by a client, or id itself when no document exists yet.
// Upserts then never mint a second document for the same signalement.
func (m *Mongo) existingKey(ctx context.Context, coll *mongo.Collection, id string) (any, error) {
	var doc bson.M
	err := coll.FindOne(ctx, idFilter(id),
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return id, nil
	}
	if err != nil {
		return nil, err
	}
	return doc["_id"], nil
}

// IsReachable pings the primary within the probe timeout.
func (m *Mongo) IsReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	return m.client.Ping(ctx, readpref.Primary()) == nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mirror: %w", err)
	}
	return nil
}

func toFilter(p Predicate) (bson.M, error) {
	switch p.Op {
	case OpAll:
		return bson.M{}, nil
	case OpEquals:
		if b, ok := p.Value.(bool); ok {
			in := bson.A{b}
			for _, s := range boolSpellings(b) {
				in = append(in, s)
			}
			return bson.M{p.Field: bson.M{"$in": in}}, nil
		}
		return bson.M{p.Field: p.Value}, nil
	case OpMissing:
		return bson.M{p.Field: bson.M{"$exists": false}}, nil
	default:
		return nil, fmt.Errorf("mirror predicate op %d: %w", p.Op, core.ErrInvalidInput)
	}
}

// classify folds driver connectivity failures into core.ErrUnavailable.
func classify(err error) error {
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", core.ErrUnavailable, err)
	}

	if errors.Is(err, mongo.ErrClientDisconnected) ||
		strings.Contains(err.Error(), "server selection") {
		return fmt.Errorf("%w: %w", core.ErrUnavailable, err)
	}
	return err
}

// idFilter matches the document keyed by id. Documents created by mobile
// clients may carry a generated ObjectID, reported by toRecordFields as its
// hex form, so a hex id also matches that ObjectID.
func idFilter(id string) bson.M {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return bson.M{"_id": id}
	}
	return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
}

func recordID(raw any) string {
	switch v := raw.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func toRecordFields(doc bson.M) (string, Fields) {
	id := recordID(doc["_id"])
	fields := make(Fields, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		fields[k] = normalize(v)
	}
	return id, fields
}

// normalize turns driver-specific types into plain Go values so the
// document decoder sees the same shapes as with the in-memory mirror.
func normalize(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case primitive.Decimal128:
		return t.String()
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	default:
		return v
	}
}

var _ Mirror = (*Mongo)(nil)
