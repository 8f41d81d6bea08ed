package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/eloboost/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// DB wraps the driver client and the application database
type DB struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewDB connects to MongoDB and verifies the connection
func NewDB(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*DB, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("mongodb connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		client: client,
		db:     client.Database(cfg.Database),
		logger: logger,
	}, nil
}

// Collection returns a handle to the named collection
func (d *DB) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

// HealthCheck pings the primary
func (d *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client
func (d *DB) Close(ctx context.Context) error {
	d.logger.Info("closing mongodb connection")
	return d.client.Disconnect(ctx)
}

// EnsureUserIndexes creates the unique provider id indexes that keep
// concurrent first logins from producing duplicate users
func EnsureUserIndexes(ctx context.Context, coll *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		providerIndex("discord_id"),
		providerIndex("google_id"),
		{Keys: bson.D{{Key: "last_login", Value: -1}}},
	}

	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

func providerIndex(field string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
		Options: options.Index().
			SetName("uniq_" + field).
			SetUnique(true).
			SetPartialFilterExpression(bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: true}}}}),
	}
}
