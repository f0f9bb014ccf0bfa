// Package retention serves the admin endpoint that runs a retention sweep
// on demand. The scheduled sweep runs from bootstrap; this endpoint exists
// for operators who want a sweep (or a dry-run preview) right now.
package retention

import (
	"errors"
	"net/http"

	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/reaper"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the retention endpoints.
type Handler struct {
	sweeper       *reaper.Sweeper
	retentionDays int
	logger        *zap.Logger
}

// NewHandler creates a retention Handler. retentionDays is the configured
// default; a request may override it downward or upward.
func NewHandler(sweeper *reaper.Sweeper, retentionDays int, logger *zap.Logger) *Handler {
	return &Handler{
		sweeper:       sweeper,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Routes returns the retention router. Admin only.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Use(sessionMgr.RequireRole("admin"))
	r.Post("/sweep", h.Sweep)
	return r
}

// Sweep runs one retention sweep:
//
//	{"days": 30, "dry_run": true}
//
// Both fields are optional; days defaults to the configured retention
// window. With dry_run the response reports what would be purged without
// touching anything.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Days   int  `json:"days"`
		DryRun bool `json:"dry_run"`
	}
	if r.ContentLength > 0 {
		if err := jsonutil.Decode(r, &in); err != nil {
			jsonutil.BadRequest(w, "invalid JSON payload")
			return
		}
	}

	days := in.Days
	if days <= 0 {
		days = h.retentionDays
	}

	summary, err := h.sweeper.Sweep(r.Context(), reaper.Options{
		RetentionDays: days,
		DryRun:        in.DryRun,
	})
	switch {
	case err == nil:
		jsonutil.OK(w, map[string]any{
			"dry_run": in.DryRun,
			"days":    days,
			"summary": summary,
		})
	case errors.Is(err, reaper.ErrSweepInProgress):
		jsonutil.Conflict(w, "a sweep is already running")
	default:
		h.logger.Error("retention sweep failed", zap.Error(err))
		jsonutil.InternalError(w, "retention sweep failed")
	}
}
