// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/docvault/docvault/internal/app/system/blob"
	"github.com/docvault/docvault/internal/app/system/indexes"
	"github.com/docvault/docvault/internal/app/system/validators"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB and initializes the blob storage backend.
//
// WAFFLE calls this after configuration is loaded but before EnsureSchema and
// Startup. Clients created here are bundled into DBDeps for use by the other
// lifecycle hooks and ultimately the HTTP handlers.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	// Configure MongoDB connection pool
	poolCfg := wafflemongo.DefaultPoolConfig()
	if appCfg.MongoMaxPoolSize > 0 {
		poolCfg.MaxPoolSize = appCfg.MongoMaxPoolSize
	}
	if appCfg.MongoMinPoolSize > 0 {
		poolCfg.MinPoolSize = appCfg.MongoMinPoolSize
	}

	client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, poolCfg)
	if err != nil {
		return DBDeps{}, err
	}

	db := client.Database(appCfg.MongoDatabase)

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
		zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
	)

	// Initialize blob storage
	var blobs blob.Store
	switch appCfg.StorageType {
	case "b2":
		blobs, err = blob.NewB2(ctx, appCfg.B2KeyID, appCfg.B2ApplicationKey, appCfg.B2Bucket)
		if err != nil {
			return DBDeps{}, fmt.Errorf("failed to initialize B2 storage: %w", err)
		}
		logger.Info("initialized Backblaze B2 blob storage",
			zap.String("bucket", appCfg.B2Bucket),
		)
	case "local", "":
		blobs, err = blob.NewLocal(appCfg.StorageLocalPath, appCfg.StorageLocalURL, []byte(appCfg.StorageSignKey))
		if err != nil {
			return DBDeps{}, fmt.Errorf("failed to initialize local blob storage: %w", err)
		}
		logger.Info("initialized local blob storage",
			zap.String("path", appCfg.StorageLocalPath),
			zap.String("url", appCfg.StorageLocalURL),
		)
	default:
		return DBDeps{}, fmt.Errorf("unknown storage type: %s", appCfg.StorageType)
	}

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		Blobs:         blobs,
	}, nil
}

// EnsureSchema sets up collections and indexes.
//
// This runs after ConnectDB succeeds but before Startup and before the HTTP
// handler is built. The context has a timeout based on coreCfg.IndexBootTimeout,
// so long-running work should respect context cancellation.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	// Ensure collections exist and attach JSON-Schema validators.
	// This runs first so indexes can be created on existing collections.
	logger.Info("ensuring collections and validators")
	if err := validators.EnsureAll(ctx, db); err != nil {
		logger.Error("failed to ensure validators", zap.Error(err))
		return err
	}

	// Ensure database indexes for query performance.
	logger.Info("ensuring database indexes")
	if err := indexes.EnsureAll(ctx, db); err != nil {
		logger.Error("failed to ensure indexes", zap.Error(err))
		return err
	}

	logger.Info("database schema ensured successfully")
	return nil
}
