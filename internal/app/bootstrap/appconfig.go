// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - Request body size limits
//   - Database connection timeouts
//
// AppConfig carries everything specific to the content service: the
// MongoDB connection, the write API key, section image storage, the Redis
// view cache, language defaults and the machine translation provider.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// APIKey guards every mutating route ("Authorization: Bearer <key>").
	// Leave empty to reject all writes.
	APIKey string

	// APICORSOrigins lists the origins allowed to call the API. Empty or
	// "*" allows any origin.
	APICORSOrigins []string

	// File storage configuration (section images)
	StorageType      string // Storage backend: "local" or "s3"
	StorageLocalPath string // Local storage path (e.g., "./uploads")
	StorageLocalURL  string // URL prefix for serving local files (e.g., "/files")

	// S3/CloudFront configuration (only used if StorageType is "s3")
	StorageS3Region    string // AWS region
	StorageS3Bucket    string // S3 bucket name
	StorageS3Prefix    string // Key prefix (e.g., "uploads/")
	StorageCFURL       string // CloudFront distribution URL
	StorageCFKeyPairID string // CloudFront key pair ID
	StorageCFKeyPath   string // Path to CloudFront private key file

	UploadMaxBytes int64 // Largest accepted section image upload

	// Redis view cache. An empty address disables caching.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ViewCacheTTL  time.Duration

	// Languages
	DefaultLanguage    string   // Language assumed for section references without one
	SupportedLanguages []string // Target languages for batch machine translation

	// Machine translation
	TranslateProvider     string // "none" or "google"
	GoogleTranslateAPIKey string // Empty uses Application Default Credentials
	GoogleTranslateURL    string // Cloud Translation v2 endpoint override
	TranslateRPS          int    // Client-side request rate limit

	// StorageTimeout bounds every content store call.
	StorageTimeout time.Duration

	// ReportJobsEnabled runs the periodic integrity reports.
	ReportJobsEnabled bool

	// SeedDefaultPages creates the home, about and contact pages when missing.
	SeedDefaultPages bool
}
