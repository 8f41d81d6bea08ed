package mongo

import (
	"context"

	"github.com/upb/eloboost/config"
	"github.com/upb/eloboost/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages the document store repositories
type RepositoryFactory struct {
	db     *DB
	cfg    config.MongoConfig
	logger *zap.Logger
}

// NewRepositoryFactory connects to MongoDB
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(ctx, cfg.Mongo, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, cfg: cfg.Mongo, logger: logger}, nil
}

// InitSchema creates the users collection indexes
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	return EnsureUserIndexes(ctx, f.db.Collection(f.cfg.Collection))
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users: NewUserRepository(f.db.Collection(f.cfg.Collection), f.logger),
	}
}

// Close disconnects from MongoDB
func (f *RepositoryFactory) Close() error {
	return f.db.Close(context.Background())
}
