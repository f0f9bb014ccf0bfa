// Package bulkops serves the batch operation endpoint: one POST applies a
// single action to many files and folders at once.
package bulkops

import (
	"errors"
	"net/http"

	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/bulk"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the bulk endpoint.
type Handler struct {
	coordinator *bulk.Coordinator
	logger      *zap.Logger
}

// NewHandler creates a bulkops Handler around the coordinator.
func NewHandler(coordinator *bulk.Coordinator, logger *zap.Logger) *Handler {
	return &Handler{coordinator: coordinator, logger: logger}
}

// Routes returns the bulkops router. Requires a signed-in session.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Post("/", h.Apply)
	return r
}

// maxBatchSize caps one bulk request.
const maxBatchSize = 500

// Apply handles a bulk request:
//
//	{
//	    "action": "trash",
//	    "items": [{"id": "...", "folder": false}, ...],
//	    "target_folder_id": "..."  // move only
//	}
//
// The response lists which items were applied and which were skipped,
// with a reason per skipped item.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	var in struct {
		Action         string `json:"action"`
		Items          []struct {
			ID     string `json:"id"`
			Folder bool   `json:"folder"`
		} `json:"items"`
		TargetFolderID string `json:"target_folder_id"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}
	if len(in.Items) > maxBatchSize {
		jsonutil.BadRequest(w, "too many items in one batch")
		return
	}

	input := bulk.Input{Action: bulk.Action(in.Action)}
	for _, item := range in.Items {
		id, err := primitive.ObjectIDFromHex(item.ID)
		if err != nil {
			jsonutil.BadRequest(w, "invalid item id: "+item.ID)
			return
		}
		input.Items = append(input.Items, bulk.Item{ID: id, Folder: item.Folder})
	}
	if in.TargetFolderID != "" {
		id, err := primitive.ObjectIDFromHex(in.TargetFolderID)
		if err != nil {
			jsonutil.BadRequest(w, "invalid target folder id")
			return
		}
		input.TargetFolderID = &id
	}

	result, err := h.coordinator.Apply(r.Context(), user.UserID(), input)
	switch {
	case err == nil:
		h.logger.Info("bulk action applied",
			zap.String("action", in.Action),
			zap.String("owner_id", user.ID),
			zap.Int("succeeded", len(result.Succeeded)),
			zap.Int("failed", len(result.Failed)),
		)
		jsonutil.OK(w, result)
	case errors.Is(err, bulk.ErrUnknownAction):
		jsonutil.BadRequest(w, "unknown action: "+in.Action)
	case errors.Is(err, bulk.ErrEmptyBatch):
		jsonutil.BadRequest(w, "no items in batch")
	case errors.Is(err, bulk.ErrBadTarget):
		jsonutil.BadRequest(w, "target folder is missing, trashed, or not yours")
	default:
		h.logger.Error("bulk action failed",
			zap.String("action", in.Action),
			zap.Error(err),
		)
		jsonutil.InternalError(w, "bulk action failed")
	}
}
