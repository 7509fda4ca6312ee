// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/stratacms/internal/app/system/pagecache"
	"github.com/dalemusser/stratacms/internal/app/system/translator"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds the backends opened in ConnectDB and shared by every
// handler. It is passed to EnsureSchema, Startup, BuildHandler and Shutdown.
type DBDeps struct {
	// MongoDB client and database
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// FileStorage holds uploaded section images.
	FileStorage storage.Store

	// Redis is nil when redis_addr is empty; Cache is then nil (disabled).
	Redis *redis.Client
	Cache *pagecache.Cache

	// Translator is translator.Noop when no provider is configured.
	Translator translator.Translator
}
