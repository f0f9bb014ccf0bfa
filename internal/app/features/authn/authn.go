// Package authn serves sign-in and sign-out for the JSON API.
//
// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in
package authn

import (
	"errors"
	"net/http"

	"github.com/docvault/docvault/internal/app/store/ratelimit"
	users "github.com/docvault/docvault/internal/app/store/users"
	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/authutil"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/normalize"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the authentication endpoints.
type Handler struct {
	users      *users.Store
	rateLimits *ratelimit.Store // nil disables lockout
	sessionMgr *auth.SessionManager
	logger     *zap.Logger
}

// NewHandler creates an authn Handler. rateLimits may be nil to disable
// failed-login lockout.
func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, rateLimits *ratelimit.Store, logger *zap.Logger) *Handler {
	return &Handler{
		users:      users.New(db),
		rateLimits: rateLimits,
		sessionMgr: sessionMgr,
		logger:     logger,
	}
}

// Routes returns the authn router. Login is public; me and logout need a
// session.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.LoadSessionUser)

	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)

	return r
}

// Login verifies credentials and establishes a session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		LoginID  string `json:"login_id"`
		Password string `json:"password"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	loginID := normalize.Email(in.LoginID)
	if loginID == "" || in.Password == "" {
		jsonutil.BadRequest(w, "login_id and password are required")
		return
	}

	if h.rateLimits != nil {
		allowed, _, lockedUntil := h.rateLimits.CheckAllowed(r.Context(), loginID)
		if !allowed {
			h.logger.Warn("login locked out",
				zap.String("login_id", loginID),
				zap.Timep("locked_until", lockedUntil),
			)
			jsonutil.Error(w, http.StatusTooManyRequests, "too many failed attempts, try again later")
			return
		}
	}

	user, err := h.users.GetByLoginID(r.Context(), loginID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		h.logger.Error("failed to load user", zap.Error(err))
		jsonutil.InternalError(w, "login failed")
		return
	}
	// The password check runs even for unknown logins so both paths
	// take similar time.
	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	if user == nil || !authutil.CheckPassword(in.Password, hash) {
		if h.rateLimits != nil {
			h.rateLimits.RecordFailure(r.Context(), loginID)
		}
		jsonutil.Unauthorized(w, "invalid login or password")
		return
	}

	if h.rateLimits != nil {
		if err := h.rateLimits.ClearOnSuccess(r.Context(), loginID); err != nil {
			h.logger.Warn("failed to clear login attempts", zap.Error(err))
		}
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		h.logger.Error("failed to generate session token", zap.Error(err))
		jsonutil.InternalError(w, "login failed")
		return
	}
	if err := h.sessionMgr.CreateSession(w, r, user.ID, user.Role, token); err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		jsonutil.InternalError(w, "login failed")
		return
	}

	h.logger.Info("user signed in", zap.String("user_id", user.ID.Hex()))
	jsonutil.OK(w, map[string]string{
		"id":       user.ID.Hex(),
		"login_id": user.LoginID,
		"name":     user.DisplayName,
		"role":     user.Role,
	})
}

// Logout destroys the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessionMgr.DestroySession(w, r)
	jsonutil.NoContent(w)
}

// Me returns the signed-in user, or 401.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}
	jsonutil.OK(w, map[string]string{
		"id":       user.ID,
		"login_id": user.LoginID,
		"name":     user.Name,
		"role":     user.Role,
	})
}
