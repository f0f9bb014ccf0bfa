package browse

import (
	"errors"
	"net/http"
	"strings"

	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/filecheck"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/normalize"
	"github.com/docvault/docvault/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// GetFile returns one file's metadata.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	f, ok := h.ownedFile(w, r, user.UserID())
	if !ok {
		return
	}
	jsonutil.OK(w, newFileView(f))
}

// UpdateFile renames a file or changes its description. Renames go through
// the same name sanitization as uploads.
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	f, ok := h.ownedFile(w, r, user.UserID())
	if !ok {
		return
	}

	var in struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	input := file.UpdateInput{}
	if in.Description != nil {
		desc := normalize.Description(*in.Description)
		input.Description = &desc
	}
	if in.Name != nil {
		name, err := filecheck.SanitizeName(strings.TrimSpace(*in.Name))
		if err != nil {
			jsonutil.BadRequest(w, "invalid filename")
			return
		}
		exists, err := h.files.NameExistsInFolder(r.Context(), user.UserID(), name, f.FolderID, &f.ID)
		if err != nil {
			h.logger.Error("failed to check file name", zap.Error(err))
			jsonutil.InternalError(w, "failed to update file")
			return
		}
		if exists {
			jsonutil.Conflict(w, "a file with that name already exists here")
			return
		}
		input.Name = &name
	}

	if err := h.files.Update(r.Context(), f.ID, input); err != nil {
		h.logger.Error("failed to update file", zap.Error(err))
		jsonutil.InternalError(w, "failed to update file")
		return
	}

	updated, err := h.files.GetByID(r.Context(), f.ID)
	if err != nil {
		h.logger.Error("failed to reload file", zap.Error(err))
		jsonutil.InternalError(w, "failed to update file")
		return
	}
	jsonutil.OK(w, newFileView(updated))
}

// ownedFile loads the {id} file and checks it is active and owned by
// ownerID. Foreign and trashed files read as not found.
func (h *Handler) ownedFile(w http.ResponseWriter, r *http.Request, ownerID primitive.ObjectID) (*models.File, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid file id")
		return nil, false
	}

	f, err := h.files.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonutil.NotFound(w, "file not found")
		} else {
			h.logger.Error("failed to load file", zap.Error(err))
			jsonutil.InternalError(w, "failed to load file")
		}
		return nil, false
	}
	if f.OwnerID != ownerID || f.IsTrashed() {
		jsonutil.NotFound(w, "file not found")
		return nil, false
	}
	return f, true
}
