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
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
//
// AppConfig is where everything specific to this application lives:
// connection strings, storage backends, retention policy, and so on.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: docvault-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 24h)

	// Rate limiting configuration for login attempts
	RateLimitEnabled       bool          // Enable rate limiting for login attempts (default: true)
	RateLimitLoginAttempts int           // Max failed login attempts before lockout (default: 5)
	RateLimitLoginWindow   time.Duration // Time window for counting failed attempts (default: 15m)
	RateLimitLoginLockout  time.Duration // Lockout duration after exceeding limit (default: 15m)

	// CSRF protection configuration
	CSRFKey string // Secret key for CSRF token signing (32 bytes, must be strong in production)

	// Blob storage configuration
	StorageType      string // Storage backend: "local" or "b2"
	StorageLocalPath string // Local storage path (e.g., "./blobs")
	StorageLocalURL  string // Path the signed-download handler is mounted on (e.g., "/dl")
	StorageSignKey   string // HMAC key for signing local download tokens

	// Backblaze B2 configuration (only used if StorageType is "b2")
	B2KeyID          string // B2 application key ID
	B2ApplicationKey string // B2 application key
	B2Bucket         string // B2 bucket name

	// Upload policy
	UploadMaxSize int64 // Maximum accepted upload size in bytes

	// Trash retention policy
	RetentionDays int           // Days trashed items are kept before the reaper purges them
	SweepInterval time.Duration // How often the background retention sweep runs (0 disables)

	// Base URL for share links
	BaseURL string // e.g., "https://vault.example.com" or "http://localhost:8080"

	// Admin seeding configuration
	SeedAdminEmail    string // Login email of the admin user to create on startup (if set)
	SeedAdminName     string // Display name of the admin user to create on startup
	SeedAdminPassword string // Initial password for the seeded admin (required when seeding)
}
