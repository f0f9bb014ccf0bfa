// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	authnfeature "github.com/docvault/docvault/internal/app/features/authn"
	browsefeature "github.com/docvault/docvault/internal/app/features/browse"
	bulkopsfeature "github.com/docvault/docvault/internal/app/features/bulkops"
	healthfeature "github.com/docvault/docvault/internal/app/features/health"
	retentionfeature "github.com/docvault/docvault/internal/app/features/retention"
	sharesfeature "github.com/docvault/docvault/internal/app/features/shares"
	trashfeature "github.com/docvault/docvault/internal/app/features/trash"
	uploadsfeature "github.com/docvault/docvault/internal/app/features/uploads"
	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/store/ratelimit"
	"github.com/docvault/docvault/internal/app/store/share"
	userstore "github.com/docvault/docvault/internal/app/store/users"
	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/blob"
	"github.com/docvault/docvault/internal/app/system/bulk"
	"github.com/docvault/docvault/internal/app/system/filecheck"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/lifecycle"
	"github.com/docvault/docvault/internal/app/system/reaper"
	"github.com/docvault/docvault/internal/app/system/sharegate"
	"github.com/docvault/docvault/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: DB and blob storage clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// Route map:
//   - /auth            login, logout, current user
//   - /api             browsing, folders, files (session auth)
//   - /api/uploads     multipart file uploads
//   - /api/trash       soft-delete lifecycle
//   - /api/shares      share management (owner side)
//   - /api/bulk        bulk trash/restore/move/favorite
//   - /api/admin       admin-only operations (retention sweep)
//   - /s/{token}       public share resolution (no session required)
//   - /health          health checks for load balancers
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Create the session manager using app config.
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Set up the UserFetcher so LoadSessionUser fetches fresh user data on each
	// request. Role changes and deleted accounts take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase, logger))

	db := deps.MongoDatabase

	// Stores and domain services shared across features.
	folders := folder.New(db)
	files := file.New(db)
	shareStore := share.New(db)
	lc := lifecycle.NewManager(db, folders, files, shareStore, deps.Blobs, logger)
	gateway := sharegate.New(shareStore, files, folders, logger)
	coordinator := bulk.New(db, folders, files, logger)
	sweeper := reaper.New(db, folders, files, lc, logger)
	gate := filecheck.New(filecheck.WithMaxSize(appCfg.UploadMaxSize))

	// Rate limiting for login attempts (nil disables lockout)
	var rateLimitStore *ratelimit.Store
	if appCfg.RateLimitEnabled {
		rateLimitStore = ratelimit.New(
			db,
			appCfg.RateLimitLoginAttempts,
			appCfg.RateLimitLoginWindow,
			appCfg.RateLimitLoginLockout,
		)
	}

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// Request timeout middleware: prevents requests from hanging indefinitely.
	r.Use(chimw.Timeout(30 * time.Second))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Session middleware: loads SessionUser into context if logged in.
	// Public share routes simply have no session, which is fine.
	r.Use(sessionMgr.LoadSessionUser)

	// CSRF protection with a path-based exemption for public share routes.
	// Share recipients post passwords without ever holding a session, and the
	// share token itself gates access there. Cookie name is "docvault_csrf"
	// to avoid collisions with other services on the same domain.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("docvault_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			jsonutil.Forbidden(w, "CSRF token invalid or missing")
		})),
	}
	// In dev mode, trust localhost origins for CSRF validation.
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	csrfProtect := csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...)

	csrfMiddleware := func(next http.Handler) http.Handler {
		csrfHandler := csrfProtect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, "/s/") {
				next.ServeHTTP(w, req)
				return
			}
			csrfHandler.ServeHTTP(w, req)
		})
	}
	r.Use(csrfMiddleware)

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// Signed blob downloads (local storage only). B2 serves its own signed
	// URLs, so this handler is only mounted for the local backend.
	if local, ok := deps.Blobs.(*blob.LocalStore); ok {
		r.Get(appCfg.StorageLocalURL, signedDownloadHandler(local, files, logger))
	}

	// Authentication
	authnHandler := authnfeature.NewHandler(db, sessionMgr, rateLimitStore, logger)
	r.Mount("/auth", authnfeature.Routes(authnHandler, sessionMgr))

	// Shares: owner management under /api/shares, public resolution under /s
	sharesHandler := sharesfeature.NewHandler(gateway, shareStore, files, deps.Blobs, logger)
	r.Mount("/s", sharesfeature.PublicRoutes(sharesHandler, sessionMgr))

	// Authenticated API
	browseHandler := browsefeature.NewHandler(db, deps.Blobs, logger)
	uploadsHandler := uploadsfeature.NewHandler(db, deps.Blobs, gate, logger)
	trashHandler := trashfeature.NewHandler(folders, files, lc, logger)
	bulkHandler := bulkopsfeature.NewHandler(coordinator, logger)
	retentionHandler := retentionfeature.NewHandler(sweeper, appCfg.RetentionDays, logger)

	r.Route("/api", func(api chi.Router) {
		api.Mount("/uploads", uploadsfeature.Routes(uploadsHandler, sessionMgr))
		api.Mount("/trash", trashfeature.Routes(trashHandler, sessionMgr))
		api.Mount("/shares", sharesfeature.Routes(sharesHandler, sessionMgr))
		api.Mount("/bulk", bulkopsfeature.Routes(bulkHandler, sessionMgr))
		api.Mount("/admin/retention", retentionfeature.Routes(retentionHandler, sessionMgr))
		api.Mount("/", browsefeature.Routes(browseHandler, sessionMgr))
	})

	return r, nil
}

// signedDownloadHandler redeems HMAC download tokens minted by
// LocalStore.SignedURL and streams the blob they grant access to.
// Tokens carry their own expiry, so no session is required.
func signedDownloadHandler(store *blob.LocalStore, files *file.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token := req.URL.Query().Get("token")
		if token == "" {
			jsonutil.BadRequest(w, "token is required")
			return
		}

		key, err := store.VerifyToken(token)
		if err != nil {
			jsonutil.NotFound(w, "link is invalid or has expired")
			return
		}

		rc, err := store.Get(req.Context(), key)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				jsonutil.NotFound(w, "file not found")
				return
			}
			logger.Error("signed download read failed", zap.String("key", key), zap.Error(err))
			jsonutil.InternalError(w, "could not read file")
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := io.Copy(w, rc); err != nil {
			// Headers are already out; only log.
			logger.Debug("signed download interrupted", zap.String("key", key), zap.Error(err))
			return
		}

		recordBlobAccess(files, key, logger)
	}
}

// recordBlobAccess stamps last_accessed_at for the file behind a blob key
// without blocking the response. A failed update only loses a recency hint.
func recordBlobAccess(files *file.Store, key string, logger *zap.Logger) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
		defer cancel()

		f, err := files.GetByStoragePath(ctx, key)
		if err != nil {
			logger.Warn("failed to resolve file for blob access", zap.String("key", key), zap.Error(err))
			return
		}
		if err := files.MarkAccessed(ctx, f.ID, time.Now()); err != nil {
			logger.Warn("failed to record file access", zap.String("file_id", f.ID.Hex()), zap.Error(err))
		}
	}()
}
