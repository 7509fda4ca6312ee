// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/stratacms/internal/app/features/sections"
	"github.com/dalemusser/stratacms/internal/app/system/pagecache"
	"github.com/dalemusser/stratacms/internal/app/system/timeouts"
	"github.com/dalemusser/stratacms/internal/app/system/translator"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
// Environment variables are formed as: EnvVarPrefix + "_" + strings.ToUpper(key)
// For example, with prefix "STRATACMS", the key "mongo_uri" becomes "STRATACMS_MONGO_URI".
const EnvVarPrefix = "STRATACMS"

// appConfigKeys defines the app-specific configuration keys.
// These are loaded via WAFFLE's config system which supports:
//   - Config files: mongo_uri, redis_addr, etc.
//   - Environment variables: STRATACMS_MONGO_URI, STRATACMS_REDIS_ADDR, etc.
//   - Command-line flags: --mongo_uri, --redis_addr, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratacms", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "api_key", Default: "", Desc: "API key (or its bcrypt hash, see contentctl hash-key) required by write routes; empty rejects all writes"},
	{Name: "api_cors_origins", Default: "*", Desc: "Comma-separated origins allowed to call the API ('*' for any)"},

	// Section image storage
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded images"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix for serving local files"},

	// S3/CloudFront (only used if storage_type is 's3')
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "uploads/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},
	{Name: "upload_max_bytes", Default: int(sections.DefaultMaxUploadBytes), Desc: "Largest accepted image upload in bytes"},

	// View cache
	{Name: "redis_addr", Default: "", Desc: "Redis address for the page view cache (empty disables caching)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "view_cache_ttl", Default: "5m", Desc: "Lifetime of cached page views"},

	// Languages
	{Name: "default_language", Default: models.DefaultLanguage, Desc: "Language assumed when a section reference omits one"},
	{Name: "supported_languages", Default: "en,es,pt-br", Desc: "Comma-separated target languages for batch translation"},

	// Machine translation
	{Name: "translate_provider", Default: translator.ProviderNone, Desc: "Machine translation provider: 'none' or 'google'"},
	{Name: "google_translate_api_key", Default: "", Desc: "Cloud Translation API key (empty uses Application Default Credentials)"},
	{Name: "google_translate_endpoint", Default: translator.DefaultEndpoint, Desc: "Cloud Translation v2 endpoint"},
	{Name: "translate_rps", Default: 5, Desc: "Maximum translation requests per second"},

	{Name: "storage_timeout", Default: "10s", Desc: "Timeout applied to every content store call"},
	{Name: "report_jobs_enabled", Default: false, Desc: "Run periodic dangling-reference and orphan-section reports"},
	{Name: "seed_default_pages", Default: true, Desc: "Create home, about and contact pages when missing"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STRATACMS_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		APIKey:         appValues.String("api_key"),
		APICORSOrigins: splitList(appValues.String("api_cors_origins")),

		// File storage
		StorageType:      appValues.String("storage_type"),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),

		// S3/CloudFront
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),
		UploadMaxBytes:     int64(appValues.Int("upload_max_bytes")),

		// View cache
		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),
		ViewCacheTTL:  appValues.Duration("view_cache_ttl", pagecache.DefaultTTL),

		// Languages
		DefaultLanguage:    models.NormalizeLanguage(appValues.String("default_language")),
		SupportedLanguages: normalizeLanguages(splitList(appValues.String("supported_languages"))),

		// Machine translation
		TranslateProvider:     strings.ToLower(strings.TrimSpace(appValues.String("translate_provider"))),
		GoogleTranslateAPIKey: appValues.String("google_translate_api_key"),
		GoogleTranslateURL:    appValues.String("google_translate_endpoint"),
		TranslateRPS:          appValues.Int("translate_rps"),

		StorageTimeout:    appValues.Duration("storage_timeout", timeouts.DefaultStorage),
		ReportJobsEnabled: appValues.Bool("report_jobs_enabled"),
		SeedDefaultPages:  appValues.Bool("seed_default_pages"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if err := validateAppConfig(appCfg); err != nil {
		logger.Error("invalid app configuration", zap.Error(err))
		return err
	}

	if appCfg.APIKey == "" {
		logger.Warn("api_key is empty; every write request will be rejected")
	}
	return nil
}

// validateAppConfig checks the settings that do not need a live backend.
func validateAppConfig(appCfg AppConfig) error {
	var errs []error

	switch appCfg.StorageType {
	case "local", "":
	case "s3":
		if appCfg.StorageS3Bucket == "" {
			errs = append(errs, errors.New("storage_s3_bucket is required when storage_type is s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage_type %q: must be local or s3", appCfg.StorageType))
	}

	if appCfg.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("upload_max_bytes must be positive"))
	}

	if !translator.ValidProvider(appCfg.TranslateProvider) {
		errs = append(errs, fmt.Errorf("translate_provider %q: must be none or google", appCfg.TranslateProvider))
	}

	if !models.IsValidLanguage(appCfg.DefaultLanguage) {
		errs = append(errs, fmt.Errorf("default_language %q is not a language code", appCfg.DefaultLanguage))
	}
	for _, l := range appCfg.SupportedLanguages {
		if !models.IsValidLanguage(l) {
			errs = append(errs, fmt.Errorf("supported_languages: %q is not a language code", l))
		}
	}

	if appCfg.StorageTimeout <= 0 {
		errs = append(errs, errors.New("storage_timeout must be positive"))
	}

	return errors.Join(errs...)
}

// splitList splits a comma-separated setting, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeLanguages(langs []string) []string {
	out := make([]string, 0, len(langs))
	seen := make(map[string]bool, len(langs))
	for _, l := range langs {
		l = models.NormalizeLanguage(l)
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}
