package store

import (
	"context"
	"errors"
	"fmt"
	"stats-backend/internal/config"
	"stats-backend/internal/constants"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo is the production document store backend.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger zerolog.Logger
}

// NewMongo connects, pings and prepares the lookup indexes. Any failure
// here is fatal: the backend must not start serving requests without a
// working store connection.
func NewMongo(cfg *config.Config, logger zerolog.Logger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	logger.Info().Str("database", cfg.MongoDatabase).Msg("connecting to document store")

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	m := &Mongo{
		client: client,
		db:     client.Database(cfg.MongoDatabase),
		logger: logger,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare collections: %w", err)
	}

	logger.Info().Msg("document store connection established")
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	collections := map[string][]mongo.IndexModel{
		constants.PlayersCollection: {
			{Keys: bson.D{{Key: "uuid", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		constants.PlayerStatsCollection: {
			{
				Keys:    bson.D{{Key: "uuid", Value: 1}, {Key: "namespace", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		constants.GlobalStatsCollection: {
			{Keys: bson.D{{Key: "namespace", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		constants.CorruptStatsCollection: nil,
	}

	for name, indexes := range collections {
		// NamespaceExists on restart is fine.
		_ = m.db.CreateCollection(ctx, name)
		if len(indexes) == 0 {
			continue
		}
		if _, err := m.db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", name, err)
		}
		m.logger.Debug().Str("collection", name).Int("indexes", len(indexes)).Msg("indexes ensured")
	}
	return nil
}

func (m *Mongo) Collection(name string) Collection {
	return mongoCollection{coll: m.db.Collection(name)}
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter bson.M, out any) error {
	raw, err := c.coll.FindOne(ctx, filter).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNoDocuments
	}
	if err != nil {
		return err
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

func (c mongoCollection) FindAll(ctx context.Context, filter bson.M, out any) error {
	cur, err := c.coll.Find(ctx, filter)
	if err != nil {
		return err
	}
	var raws []bson.Raw
	if err := cur.All(ctx, &raws); err != nil {
		return err
	}
	return decodeAll(raws, out)
}

func (c mongoCollection) InsertOne(ctx context.Context, doc any) (string, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	switch id := res.InsertedID.(type) {
	case bson.ObjectID:
		return id.Hex(), nil
	case string:
		return id, nil
	default:
		return fmt.Sprintf("%v", id), nil
	}
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter, update bson.M) (UpdateResult, error) {
	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c mongoCollection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
