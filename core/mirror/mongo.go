package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	PatientCollection = "patients"
	ConsentCollection = "consents"
)

// Mongo mirrors envelopes into two collections keyed by record ID.
type Mongo struct {
	client   *mongo.Client
	patients *mongo.Collection
	consents *mongo.Collection
	log      zerolog.Logger
}

type MongoOptions struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	Timeout     time.Duration
}

func NewMongo(ctx context.Context, opts MongoOptions, log zerolog.Logger) (*Mongo, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	clientOpts := options.Client().ApplyURI(opts.URI).SetTimeout(opts.Timeout)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	db := client.Database(opts.Database)
	return &Mongo{
		client:   client,
		patients: db.Collection(PatientCollection),
		consents: db.Collection(ConsentCollection),
		log:      log.With().Str("component", "mirror").Logger(),
	}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping reports whether the cache is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) UpsertPatient(ctx context.Context, doc Document) error {
	return m.upsert(ctx, m.patients, doc)
}

func (m *Mongo) UpsertConsent(ctx context.Context, doc Document) error {
	return m.upsert(ctx, m.consents, doc)
}

func (m *Mongo) DeletePatient(ctx context.Context, id string) error {
	return m.delete(ctx, m.patients, id)
}

func (m *Mongo) DeleteConsent(ctx context.Context, id string) error {
	return m.delete(ctx, m.consents, id)
}

func (m *Mongo) upsert(ctx context.Context, coll *mongo.Collection, doc Document) error {
	ur, err := coll.ReplaceOne(ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mirror upsert %s/%s: %w", coll.Name(), doc.ID, err)
	}
	m.log.Debug().Str("collection", coll.Name()).Str("id", doc.ID).
		Int64("matched", ur.MatchedCount).Int64("upserted", ur.UpsertedCount).Msg("mirrored")
	return nil
}

func (m *Mongo) delete(ctx context.Context, coll *mongo.Collection, id string) error {
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mirror delete %s/%s: %w", coll.Name(), id, err)
	}
	return nil
}

// FindPatient reads a cached patient envelope, mainly for diagnostics.
func (m *Mongo) FindPatient(ctx context.Context, id string) (Document, bool, error) {
	return m.find(ctx, m.patients, id)
}

// FindConsent reads a cached consent envelope.
func (m *Mongo) FindConsent(ctx context.Context, id string) (Document, bool, error) {
	return m.find(ctx, m.consents, id)
}

func (m *Mongo) find(ctx context.Context, coll *mongo.Collection, id string) (Document, bool, error) {
	var doc Document
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

var _ Mirror = (*Mongo)(nil)
