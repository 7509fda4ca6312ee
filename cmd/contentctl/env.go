package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/app/system/indexes"
	"github.com/dalemusser/stratacms/internal/app/system/pagecache"
	"github.com/dalemusser/stratacms/internal/app/system/translator"
	"github.com/dalemusser/stratacms/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "STRATACMS_"

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(envOr(key, "")); err == nil {
		return n
	}
	return def
}

type globalOptions struct {
	mongoURI      string
	mongoDatabase string
	redisAddr     string
	redisPassword string
	redisDB       int
	provider      string
	googleKey     string
	googleURL     string
	translateRPS  int
	languages     string
	verbose       bool
}

func bindGlobalFlags(fs *flag.FlagSet) *globalOptions {
	o := &globalOptions{}
	fs.StringVar(&o.mongoURI, "mongo-uri", envOr("MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	fs.StringVar(&o.mongoDatabase, "mongo-database", envOr("MONGO_DATABASE", "stratacms"), "MongoDB database name")
	fs.StringVar(&o.redisAddr, "redis-addr", envOr("REDIS_ADDR", ""), "Redis view cache to invalidate after writes (empty skips)")
	fs.StringVar(&o.redisPassword, "redis-password", envOr("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&o.redisDB, "redis-db", envInt("REDIS_DB", 0), "Redis database number")
	fs.StringVar(&o.provider, "translate-provider", envOr("TRANSLATE_PROVIDER", translator.ProviderNone), "Machine translation provider: none or google")
	fs.StringVar(&o.googleKey, "google-translate-api-key", envOr("GOOGLE_TRANSLATE_API_KEY", ""), "Cloud Translation API key (empty uses Application Default Credentials)")
	fs.StringVar(&o.googleURL, "google-translate-endpoint", envOr("GOOGLE_TRANSLATE_ENDPOINT", translator.DefaultEndpoint), "Cloud Translation v2 endpoint")
	fs.IntVar(&o.translateRPS, "translate-rps", envInt("TRANSLATE_RPS", 5), "Maximum translation requests per second")
	fs.StringVar(&o.languages, "supported-languages", envOr("SUPPORTED_LANGUAGES", "en,es,pt-br"), "Default target languages for translate")
	fs.BoolVar(&o.verbose, "v", false, "Debug logging")
	return o
}

// env holds the connections shared by every command.
type env struct {
	log    *zap.Logger
	client *mongo.Client
	db     *mongo.Database
	rdb    *redis.Client
	cache  *pagecache.Cache
	store  *contentstore.Store
	opts   *globalOptions
	out    io.Writer
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// open connects to MongoDB (when needDB) and to the optional Redis cache.
func (o *globalOptions) open(ctx context.Context, needDB bool) (*env, error) {
	logger, err := newLogger(o.verbose)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	e := &env{log: logger, opts: o, out: os.Stdout}
	if !needDB {
		return e, nil
	}

	if err := wafflemongo.ValidateURI(o.mongoURI); err != nil {
		return nil, fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	client, err := wafflemongo.ConnectWithPool(ctx, o.mongoURI, o.mongoDatabase, wafflemongo.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("connect MongoDB: %w", err)
	}
	e.client = client
	e.db = client.Database(o.mongoDatabase)
	logger.Debug("connected to MongoDB", zap.String("database", o.mongoDatabase))

	rdb, err := pagecache.Connect(ctx, o.redisAddr, o.redisPassword, o.redisDB)
	if err != nil {
		// The cache is optional; a stale cache expires by TTL.
		logger.Warn("Redis unavailable, view cache will not be invalidated",
			zap.String("addr", o.redisAddr), zap.Error(err))
	}
	e.rdb = rdb
	e.cache = pagecache.New(rdb, 0, logger)

	e.store = contentstore.New(e.db, logger, contentstore.WithOnChange(e.cache.Invalidate))
	return e, nil
}

func (e *env) close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	if e.client != nil {
		_ = e.client.Disconnect(context.Background())
	}
	_ = e.log.Sync()
}

// invalidate drops cached views after writes made outside the store.
func (e *env) invalidate(ctx context.Context) {
	e.cache.Invalidate(ctx)
}

// ensureIndexes builds the indexes the store relies on for upserts.
func (e *env) ensureIndexes(ctx context.Context) error {
	if err := indexes.EnsureAll(ctx, e.db); err != nil {
		return fmt.Errorf("ensure indexes (run dedupe-sections first if duplicates exist): %w", err)
	}
	return nil
}

func (e *env) newTranslator(ctx context.Context) (translator.Translator, error) {
	switch strings.ToLower(e.opts.provider) {
	case translator.ProviderGoogle:
		return translator.NewGoogle(ctx, translator.GoogleConfig{
			APIKey:   e.opts.googleKey,
			Endpoint: e.opts.googleURL,
			RPS:      e.opts.translateRPS,
		}, e.log)
	case translator.ProviderNone, "":
		return translator.Noop{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown translate provider %q", errUsage, e.opts.provider)
	}
}

func (e *env) writeJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseLanguages normalizes a comma-separated language list.
func parseLanguages(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		l := models.NormalizeLanguage(part)
		if l == "" {
			continue
		}
		if !models.IsValidLanguage(l) {
			return nil, fmt.Errorf("%w: %q is not a language code", errUsage, part)
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no languages given", errUsage)
	}
	return out, nil
}
