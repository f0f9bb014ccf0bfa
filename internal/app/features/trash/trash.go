// Package trash serves the soft-delete surface: listing trashed items,
// trashing, restoring, purging, and emptying the trash.
package trash

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/lifecycle"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the trash endpoints.
type Handler struct {
	folders   *folder.Store
	files     *file.Store
	lifecycle *lifecycle.Manager
	logger    *zap.Logger
}

// NewHandler creates a trash Handler around the lifecycle manager.
func NewHandler(folders *folder.Store, files *file.Store, lc *lifecycle.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		folders:   folders,
		files:     files,
		lifecycle: lc,
		logger:    logger,
	}
}

// Routes returns the trash router. Requires a signed-in session.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)

	r.Get("/", h.List)
	r.Delete("/", h.Empty)

	r.Post("/files/{id}", h.TrashFile)
	r.Post("/files/{id}/restore", h.RestoreFile)
	r.Delete("/files/{id}", h.PurgeFile)

	r.Post("/folders/{id}", h.TrashFolder)
	r.Post("/folders/{id}/restore", h.RestoreFolder)
	r.Delete("/folders/{id}", h.PurgeFolder)

	return r
}

// trashedItem is the JSON shape for one trash entry.
type trashedItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Folder    bool   `json:"folder"`
	Size      int64  `json:"size,omitempty"`
	DeletedAt string `json:"deleted_at"`
}

// List shows the user's trash. Only the items they trashed directly appear;
// contents swept along with a folder are represented by that folder.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	folders, err := h.folders.ListTrashed(r.Context(), user.UserID(), true)
	if err != nil {
		h.logger.Error("failed to list trashed folders", zap.Error(err))
		jsonutil.InternalError(w, "failed to list trash")
		return
	}
	files, err := h.files.ListTrashed(r.Context(), user.UserID(), true)
	if err != nil {
		h.logger.Error("failed to list trashed files", zap.Error(err))
		jsonutil.InternalError(w, "failed to list trash")
		return
	}

	items := make([]trashedItem, 0, len(folders)+len(files))
	for i := range folders {
		f := &folders[i]
		items = append(items, trashedItem{
			ID:        f.ID.Hex(),
			Name:      f.Name,
			Folder:    true,
			DeletedAt: f.DeletedAt.UTC().Format(time.RFC3339),
		})
	}
	for i := range files {
		f := &files[i]
		items = append(items, trashedItem{
			ID:        f.ID.Hex(),
			Name:      f.Name,
			Size:      f.Size,
			DeletedAt: f.DeletedAt.UTC().Format(time.RFC3339),
		})
	}
	jsonutil.OK(w, map[string]any{"items": items})
}

// Empty purges everything in the user's trash.
func (h *Handler) Empty(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	summary, err := h.lifecycle.EmptyTrash(r.Context(), user.UserID())
	if err != nil {
		h.logger.Error("failed to empty trash",
			zap.String("owner_id", user.ID),
			zap.Error(err),
		)
		jsonutil.InternalError(w, "failed to empty trash")
		return
	}
	jsonutil.OK(w, summary)
}

// TrashFile moves one file to the trash.
func (h *Handler) TrashFile(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.lifecycle.TrashFile)
}

// RestoreFile restores one trashed file to its folder.
func (h *Handler) RestoreFile(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.lifecycle.RestoreFile)
}

// PurgeFile permanently deletes one trashed file.
func (h *Handler) PurgeFile(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.lifecycle.PurgeFile)
}

// TrashFolder moves a folder and everything under it to the trash.
func (h *Handler) TrashFolder(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.lifecycle.TrashFolder)
}

// RestoreFolder restores a trashed folder together with the items swept
// along with it.
func (h *Handler) RestoreFolder(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.lifecycle.RestoreFolder)
}

// PurgeFolder permanently deletes a trashed folder and its swept contents.
func (h *Handler) PurgeFolder(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.lifecycle.PurgeFolder)
}

// act runs one lifecycle operation against the {id} route parameter and
// maps its typed errors to status codes.
func (h *Handler) act(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actorID, id primitive.ObjectID) error) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid id")
		return
	}

	switch err := op(r.Context(), user.UserID(), id); {
	case err == nil:
		jsonutil.NoContent(w)
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, lifecycle.ErrNotOwner):
		// Foreign items read as missing so existence is not leaked.
		jsonutil.NotFound(w, "item not found")
	case errors.Is(err, lifecycle.ErrInvalidState):
		jsonutil.Conflict(w, err.Error())
	default:
		h.logger.Error("trash operation failed",
			zap.String("id", id.Hex()),
			zap.Error(err),
		)
		jsonutil.InternalError(w, "operation failed")
	}
}
