// Package shares serves share management for owners and the public
// share-link resolution flow.
//
// Owner endpoints live under the authenticated API. The public flow is
// mounted at /s/{token}: GET resolves the link, POST submits a password.
package shares

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/share"
	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/blob"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/normalize"
	"github.com/docvault/docvault/internal/app/system/sharegate"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// downloadTTL is how long an issued share download link stays valid.
const downloadTTL = 15 * time.Minute

// Handler serves both the owner and the public share endpoints.
type Handler struct {
	gateway *sharegate.Gateway
	shares  *share.Store
	files   *file.Store
	blobs   blob.Store
	logger  *zap.Logger
}

// NewHandler creates a shares Handler around the access-control gateway.
func NewHandler(gateway *sharegate.Gateway, shares *share.Store, files *file.Store, blobs blob.Store, logger *zap.Logger) *Handler {
	return &Handler{
		gateway: gateway,
		shares:  shares,
		files:   files,
		blobs:   blobs,
		logger:  logger,
	}
}

// Routes returns the owner-facing share management router. Requires a
// signed-in session.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/{id}/deactivate", h.Deactivate)
	r.Post("/{id}/activate", h.Activate)
	r.Put("/{id}/password", h.SetPassword)
	r.Put("/{id}/expiry", h.SetExpiry)
	r.Put("/{id}/recipients", h.SetRecipients)
	r.Delete("/{id}", h.Delete)

	return r
}

// PublicRoutes returns the public share resolution router, mounted at
// /s. Sessions are loaded but not required; anonymous visitors are
// legitimate here.
func PublicRoutes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.LoadSessionUser)
	r.Get("/{token}", h.Resolve(sessionMgr))
	r.Post("/{token}", h.Resolve(sessionMgr))
	return r
}

// shareView is the JSON shape for a share, owner-facing.
type shareView struct {
	ID          string     `json:"id"`
	Token       string     `json:"token"`
	FileID      string     `json:"file_id,omitempty"`
	FolderID    string     `json:"folder_id,omitempty"`
	HasPassword bool       `json:"has_password"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Recipients  []string   `json:"recipients,omitempty"`
	AccessCount int64      `json:"access_count"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// List returns all shares the user owns, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	shares, err := h.gateway.ListByOwner(r.Context(), user.UserID())
	if err != nil {
		h.logger.Error("failed to list shares", zap.Error(err))
		jsonutil.InternalError(w, "failed to list shares")
		return
	}

	out := make([]shareView, 0, len(shares))
	for i := range shares {
		s := &shares[i]
		v := shareView{
			ID:          s.ID.Hex(),
			Token:       s.Token,
			HasPassword: s.HasPassword(),
			ExpiresAt:   s.ExpiresAt,
			AccessCount: s.AccessCount,
			IsActive:    s.IsActive,
			CreatedAt:   s.CreatedAt,
		}
		if s.FileID != nil {
			v.FileID = s.FileID.Hex()
		}
		if s.FolderID != nil {
			v.FolderID = s.FolderID.Hex()
		}
		for _, id := range s.SharedWith {
			v.Recipients = append(v.Recipients, id.Hex())
		}
		out = append(out, v)
	}
	jsonutil.OK(w, map[string]any{"shares": out})
}

// Create makes a new share link for a file or folder the user owns.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	var in struct {
		FileID     string     `json:"file_id"`
		FolderID   string     `json:"folder_id"`
		Password   string     `json:"password"`
		ExpiresAt  *time.Time `json:"expires_at"`
		Recipients []string   `json:"recipients"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	input := sharegate.CreateInput{
		Password:  in.Password,
		ExpiresAt: in.ExpiresAt,
	}
	if in.FileID != "" {
		id, err := primitive.ObjectIDFromHex(in.FileID)
		if err != nil {
			jsonutil.BadRequest(w, "invalid file id")
			return
		}
		input.FileID = &id
	}
	if in.FolderID != "" {
		id, err := primitive.ObjectIDFromHex(in.FolderID)
		if err != nil {
			jsonutil.BadRequest(w, "invalid folder id")
			return
		}
		input.FolderID = &id
	}
	for _, raw := range in.Recipients {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			jsonutil.BadRequest(w, "invalid recipient id")
			return
		}
		input.SharedWith = append(input.SharedWith, id)
	}

	s, err := h.gateway.Create(r.Context(), user.UserID(), input)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	h.logger.Info("share created",
		zap.String("share_id", s.ID.Hex()),
		zap.String("owner_id", user.ID),
	)
	jsonutil.Created(w, map[string]string{
		"id":    s.ID.Hex(),
		"token": s.Token,
		"url":   "/s/" + s.Token,
	})
}

// Deactivate turns a share link off without deleting it.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, actorID, shareID primitive.ObjectID) error {
		return h.gateway.Deactivate(ctx, actorID, shareID)
	})
}

// Activate turns a previously deactivated share link back on.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, actorID, shareID primitive.ObjectID) error {
		return h.gateway.Activate(ctx, actorID, shareID)
	})
}

// SetPassword sets or clears the share password. An empty password clears.
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Password string `json:"password"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}
	h.mutate(w, r, func(ctx context.Context, actorID, shareID primitive.ObjectID) error {
		return h.gateway.SetPassword(ctx, actorID, shareID, in.Password)
	})
}

// SetExpiry sets or clears the share expiry.
func (h *Handler) SetExpiry(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}
	h.mutate(w, r, func(ctx context.Context, actorID, shareID primitive.ObjectID) error {
		return h.gateway.SetExpiry(ctx, actorID, shareID, in.ExpiresAt)
	})
}

// SetRecipients restricts the share to specific users, or opens it to
// anyone with the link when the list is empty.
func (h *Handler) SetRecipients(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Recipients []string `json:"recipients"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	ids := make([]primitive.ObjectID, 0, len(in.Recipients))
	for _, raw := range in.Recipients {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			jsonutil.BadRequest(w, "invalid recipient id")
			return
		}
		ids = append(ids, id)
	}
	h.mutate(w, r, func(ctx context.Context, actorID, shareID primitive.ObjectID) error {
		return h.gateway.SetSharedWith(ctx, actorID, shareID, ids)
	})
}

// Delete removes a share link permanently.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, actorID, shareID primitive.ObjectID) error {
		return h.gateway.Delete(ctx, actorID, shareID)
	})
}

// mutate runs one owner mutation against the {id} route parameter.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, shareID primitive.ObjectID) error) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid share id")
		return
	}

	if err := op(r.Context(), user.UserID(), id); err != nil {
		h.writeGatewayError(w, err)
		return
	}
	jsonutil.NoContent(w)
}

// writeGatewayError maps gateway errors to status codes. Ownership
// failures read as not found so share existence is not leaked.
func (h *Handler) writeGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sharegate.ErrTargetNotFound), errors.Is(err, sharegate.ErrNotOwner):
		jsonutil.NotFound(w, "not found")
	case errors.Is(err, sharegate.ErrBadTarget):
		jsonutil.BadRequest(w, "exactly one of file_id or folder_id is required")
	default:
		h.logger.Error("share operation failed", zap.Error(err))
		jsonutil.InternalError(w, "share operation failed")
	}
}

// Resolve handles the public share flow. GET resolves the token with
// whatever standing the session already has; POST supplies a password.
func (h *Handler) Resolve(sessionMgr *auth.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := normalize.Token(chi.URLParam(r, "token"))

		input := sharegate.VerifyInput{Token: token}
		if user, ok := auth.CurrentUser(r); ok {
			id := user.UserID()
			input.RequesterID = &id
		}
		if r.Method == http.MethodPost {
			var in struct {
				Password string `json:"password"`
			}
			if err := jsonutil.Decode(r, &in); err != nil {
				jsonutil.BadRequest(w, "invalid JSON payload")
				return
			}
			input.Password = in.Password
		}

		// A session that already passed this link's password check
		// skips the prompt. The peek deliberately ignores lookup
		// errors; Verify reports unknown tokens itself.
		if sh, err := h.shares.GetByToken(r.Context(), token); err == nil {
			input.SessionVerified = sessionMgr.IsShareVerified(r, sh.ID)
		}

		result, err := h.gateway.Verify(r.Context(), input)
		if err != nil {
			h.logger.Error("share verification failed", zap.Error(err))
			jsonutil.InternalError(w, "share verification failed")
			return
		}
		h.writeResolution(w, r, sessionMgr, result)
	}
}
