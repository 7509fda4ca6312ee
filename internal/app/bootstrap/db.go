// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/stratacms/internal/app/system/indexes"
	"github.com/dalemusser/stratacms/internal/app/system/pagecache"
	"github.com/dalemusser/stratacms/internal/app/system/seeding"
	"github.com/dalemusser/stratacms/internal/app/system/translator"
	"github.com/dalemusser/stratacms/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB, the optional Redis view cache, section
// image storage and the machine translation provider.
//
// WAFFLE calls this after configuration is loaded but before EnsureSchema and
// Startup. Any error aborts startup; clients opened before the failure are
// closed here.
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

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}
	fail := func(err error) (DBDeps, error) {
		if deps.Redis != nil {
			_ = deps.Redis.Close()
		}
		_ = client.Disconnect(context.Background())
		return DBDeps{}, err
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
		zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
	)

	// Redis view cache (optional)
	rdb, err := pagecache.Connect(ctx, appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to Redis at %s: %w", appCfg.RedisAddr, err))
	}
	deps.Redis = rdb
	deps.Cache = pagecache.New(rdb, appCfg.ViewCacheTTL, logger)
	if rdb != nil {
		logger.Info("connected to Redis view cache",
			zap.String("addr", appCfg.RedisAddr),
			zap.Int("db", appCfg.RedisDB),
			zap.Duration("ttl", appCfg.ViewCacheTTL),
		)
	} else {
		logger.Info("view cache disabled (redis_addr is empty)")
	}

	// Section image storage
	store, err := newFileStorage(ctx, appCfg, logger)
	if err != nil {
		return fail(err)
	}
	deps.FileStorage = store

	// Machine translation
	tr, err := newTranslator(ctx, appCfg, logger)
	if err != nil {
		return fail(err)
	}
	deps.Translator = tr

	return deps, nil
}

func newFileStorage(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (storage.Store, error) {
	switch appCfg.StorageType {
	case "s3":
		store, err := storage.NewS3(ctx, storage.S3Config{
			Region:                   appCfg.StorageS3Region,
			Bucket:                   appCfg.StorageS3Bucket,
			Prefix:                   appCfg.StorageS3Prefix,
			CloudFrontURL:            appCfg.StorageCFURL,
			CloudFrontKeyPairID:      appCfg.StorageCFKeyPairID,
			CloudFrontPrivateKeyPath: appCfg.StorageCFKeyPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		logger.Info("initialized S3/CloudFront file storage",
			zap.String("bucket", appCfg.StorageS3Bucket),
			zap.String("prefix", appCfg.StorageS3Prefix),
		)
		return store, nil
	case "local", "":
		store, err := storage.NewLocal(storage.LocalConfig{
			BasePath: appCfg.StorageLocalPath,
			BaseURL:  appCfg.StorageLocalURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		logger.Info("initialized local file storage",
			zap.String("path", appCfg.StorageLocalPath),
			zap.String("url", appCfg.StorageLocalURL),
		)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", appCfg.StorageType)
	}
}

func newTranslator(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (translator.Translator, error) {
	switch appCfg.TranslateProvider {
	case translator.ProviderGoogle:
		g, err := translator.NewGoogle(ctx, translator.GoogleConfig{
			APIKey:   appCfg.GoogleTranslateAPIKey,
			Endpoint: appCfg.GoogleTranslateURL,
			RPS:      appCfg.TranslateRPS,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google translator: %w", err)
		}
		logger.Info("machine translation enabled",
			zap.String("provider", translator.ProviderGoogle),
			zap.Bool("api_key", appCfg.GoogleTranslateAPIKey != ""),
			zap.Int("rps", appCfg.TranslateRPS),
		)
		return g, nil
	default:
		logger.Info("machine translation disabled")
		return translator.Noop{}, nil
	}
}

// EnsureSchema attaches collection validators, builds indexes and seeds the
// default pages.
//
// This runs after ConnectDB succeeds but before Startup and before the HTTP
// handler is built. Index creation fails while legacy duplicate sections
// exist; run "contentctl dedupe-sections" first on such databases.
//
// The context has a timeout based on coreCfg.IndexBootTimeout.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	// Ensure collections exist and attach JSON-Schema validators.
	// This runs first so indexes can be created on existing collections.
	logger.Info("ensuring collections and validators")
	if err := validators.EnsureAll(ctx, db); err != nil {
		logger.Error("failed to ensure validators", zap.Error(err))
		return err
	}

	logger.Info("ensuring database indexes")
	if err := indexes.EnsureAll(ctx, db); err != nil {
		logger.Error("failed to ensure indexes", zap.Error(err))
		return err
	}

	if appCfg.SeedDefaultPages {
		logger.Info("seeding default pages")
		if err := seeding.SeedAll(ctx, db, logger); err != nil {
			logger.Error("failed to seed default pages", zap.Error(err))
			return err
		}
	}

	logger.Info("database schema ensured successfully")
	return nil
}
