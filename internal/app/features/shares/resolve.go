package shares

import (
	"net/http"

	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/sharegate"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// resolution is the public response for an authorized share.
type resolution struct {
	Status string       `json:"status"`
	Name   string       `json:"name"`
	Folder bool         `json:"folder"`
	File   *sharedFile  `json:"file,omitempty"`
	Files  []sharedFile `json:"files,omitempty"`
}

// sharedFile describes one downloadable file behind a share.
type sharedFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	DownloadURL string `json:"download_url,omitempty"`
}

// writeResolution turns a verification result into an HTTP response.
func (h *Handler) writeResolution(w http.ResponseWriter, r *http.Request, sessionMgr *auth.SessionManager, result sharegate.Result) {
	status := string(result.Status)

	switch result.Status {
	case sharegate.StatusNotFound:
		jsonutil.JSON(w, http.StatusNotFound, map[string]string{"status": status})
		return
	case sharegate.StatusInactive, sharegate.StatusExpired:
		jsonutil.JSON(w, http.StatusGone, map[string]string{"status": status})
		return
	case sharegate.StatusForbidden:
		jsonutil.JSON(w, http.StatusForbidden, map[string]string{"status": status})
		return
	case sharegate.StatusPasswordRequired, sharegate.StatusInvalidPassword:
		jsonutil.JSON(w, http.StatusUnauthorized, map[string]string{"status": status})
		return
	case sharegate.StatusAuthorized:
		// fall through
	default:
		h.logger.Error("unexpected share status", zap.String("status", status))
		jsonutil.InternalError(w, "share verification failed")
		return
	}

	if result.MarkSessionVerified {
		if err := sessionMgr.MarkShareVerified(w, r, result.Share.ID); err != nil {
			// The visitor just re-enters the password next time.
			h.logger.Warn("failed to persist share verification", zap.Error(err))
		}
	}

	out := resolution{Status: status}
	switch {
	case result.File != nil:
		out.Name = result.File.Name
		sf := h.sharedFileView(r, result.File.ID.Hex(), result.File.Name, result.File.Size, result.File.ContentType, result.File.StoragePath)
		out.File = &sf
	case result.Folder != nil:
		out.Name = result.Folder.Name
		out.Folder = true

		files, err := h.files.ListActiveByFolders(r.Context(), []primitive.ObjectID{result.Folder.ID})
		if err != nil {
			h.logger.Error("failed to list shared folder", zap.Error(err))
			jsonutil.InternalError(w, "failed to load shared folder")
			return
		}
		out.Files = make([]sharedFile, 0, len(files))
		for i := range files {
			f := &files[i]
			out.Files = append(out.Files, h.sharedFileView(r, f.ID.Hex(), f.Name, f.Size, f.ContentType, f.StoragePath))
		}
	}
	jsonutil.OK(w, out)
}

// sharedFileView builds a file entry with a short-lived download link.
// A link that cannot be signed is omitted rather than failing the view.
func (h *Handler) sharedFileView(r *http.Request, id, name string, size int64, contentType, key string) sharedFile {
	sf := sharedFile{
		ID:          id,
		Name:        name,
		Size:        size,
		ContentType: contentType,
	}
	url, err := h.blobs.SignedURL(r.Context(), key, downloadTTL)
	if err != nil {
		h.logger.Warn("failed to sign download url",
			zap.String("key", key),
			zap.Error(err),
		)
		return sf
	}
	sf.DownloadURL = url
	return sf
}
