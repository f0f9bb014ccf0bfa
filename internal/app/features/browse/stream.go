package browse

import (
	"context"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/timeouts"
	"github.com/docvault/docvault/internal/domain/models"
	"go.uber.org/zap"
)

// Download streams the file body as an attachment and records the access.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, "attachment")
}

// Preview streams the file body inline, for in-browser viewing.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, "inline")
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, disposition string) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	f, ok := h.ownedFile(w, r, user.UserID())
	if !ok {
		return
	}

	body, err := h.blobs.Get(r.Context(), f.StoragePath)
	if err != nil {
		h.logger.Error("failed to open blob",
			zap.String("file_id", f.ID.Hex()),
			zap.String("key", f.StoragePath),
			zap.Error(err),
		)
		jsonutil.InternalError(w, "file storage is unavailable")
		return
	}
	defer body.Close()

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": f.Name}))

	if _, err := io.Copy(w, body); err != nil {
		// Headers are already out; only log.
		h.logger.Warn("stream interrupted",
			zap.String("file_id", f.ID.Hex()),
			zap.Error(err),
		)
		return
	}

	h.recordAccess(f)
}

// recordAccess updates last_accessed_at without blocking the response.
// A failed update only loses a recency hint.
func (h *Handler) recordAccess(f *models.File) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
		defer cancel()

		if err := h.files.MarkAccessed(ctx, f.ID, time.Now()); err != nil {
			h.logger.Warn("failed to record file access",
				zap.String("file_id", f.ID.Hex()),
				zap.Error(err),
			)
		}
	}()
}
