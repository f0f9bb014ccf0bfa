// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "DOCVAULT"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: DOCVAULT_MONGO_URI, DOCVAULT_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "docvault", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "docvault-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	// Rate limiting configuration
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable rate limiting for login attempts"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed login attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Blob storage configuration
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 'b2'"},
	{Name: "storage_local_path", Default: "./blobs", Desc: "Local storage path for uploaded blobs"},
	{Name: "storage_local_url", Default: "/dl", Desc: "Path the signed-download handler is mounted on"},
	{Name: "storage_sign_key", Default: "dev-only-blob-sign-key-change-0123456789", Desc: "HMAC key for signing local download tokens"},

	// Backblaze B2 configuration
	{Name: "b2_key_id", Default: "", Desc: "Backblaze B2 application key ID"},
	{Name: "b2_application_key", Default: "", Desc: "Backblaze B2 application key"},
	{Name: "b2_bucket", Default: "", Desc: "Backblaze B2 bucket name"},

	// Upload policy
	{Name: "upload_max_size", Default: 10 * 1024 * 1024, Desc: "Maximum accepted upload size in bytes (default: 10 MiB)"},

	// Trash retention policy
	{Name: "retention_days", Default: 30, Desc: "Days trashed items are kept before being purged"},
	{Name: "sweep_interval", Default: "1h", Desc: "How often the background retention sweep runs ('0' disables)"},

	// Base URL for share links
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Base URL used when building share links"},

	// Admin seeding configuration
	{Name: "seed_admin_email", Default: "", Desc: "Login email of admin user to create on startup"},
	{Name: "seed_admin_name", Default: "Admin", Desc: "Display name of admin user to create on startup"},
	{Name: "seed_admin_password", Default: "", Desc: "Initial password for the seeded admin user"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
// CoreConfig comes from the shared WAFFLE layer; AppConfig is specific
// to this app.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, DOCVAULT_* for app)
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

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 24*time.Hour),

		// Rate limiting
		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),

		CSRFKey: appValues.String("csrf_key"),

		// Blob storage
		StorageType:      appValues.String("storage_type"),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),
		StorageSignKey:   appValues.String("storage_sign_key"),

		// Backblaze B2
		B2KeyID:          appValues.String("b2_key_id"),
		B2ApplicationKey: appValues.String("b2_application_key"),
		B2Bucket:         appValues.String("b2_bucket"),

		// Upload policy
		UploadMaxSize: int64(appValues.Int("upload_max_size")),

		// Trash retention
		RetentionDays: appValues.Int("retention_days"),
		SweepInterval: appValues.Duration("sweep_interval", time.Hour),

		// Base URL
		BaseURL: appValues.String("base_url"),

		// Admin seeding
		SeedAdminEmail:    appValues.String("seed_admin_email"),
		SeedAdminName:     appValues.String("seed_admin_name"),
		SeedAdminPassword: appValues.String("seed_admin_password"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.StorageType {
	case "local", "":
		if appCfg.StorageLocalPath == "" {
			return fmt.Errorf("storage_local_path is required for local storage")
		}
		if appCfg.StorageSignKey == "" {
			return fmt.Errorf("storage_sign_key is required for local storage")
		}
	case "b2":
		if appCfg.B2KeyID == "" || appCfg.B2ApplicationKey == "" || appCfg.B2Bucket == "" {
			return fmt.Errorf("b2_key_id, b2_application_key, and b2_bucket are required for B2 storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", appCfg.StorageType)
	}

	if appCfg.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive, got %d", appCfg.RetentionDays)
	}
	if appCfg.UploadMaxSize <= 0 {
		return fmt.Errorf("upload_max_size must be positive, got %d", appCfg.UploadMaxSize)
	}

	return nil
}
