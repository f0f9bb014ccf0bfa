package browse

import (
	"errors"
	"net/http"

	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/inputval"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/normalize"
	"github.com/docvault/docvault/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// maxNameLength caps folder names.
const maxNameLength = 255

// CreateFolder makes a new folder, at the root or under an active parent
// the user owns. Sibling names must be unique, case-insensitively.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	var in struct {
		Name        string `json:"name" validate:"required,max=255" label:"Folder name"`
		ParentID    string `json:"parent_id"`
		Description string `json:"description"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	in.Name = normalize.Name(in.Name)
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.BadRequest(w, res.First())
		return
	}
	name := in.Name

	var parentID *primitive.ObjectID
	if in.ParentID != "" {
		id, err := primitive.ObjectIDFromHex(in.ParentID)
		if err != nil {
			jsonutil.BadRequest(w, "invalid parent folder id")
			return
		}
		parent, err := h.folders.GetByID(r.Context(), id)
		if err != nil || parent.OwnerID != user.UserID() || parent.IsTrashed() {
			if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
				h.logger.Error("failed to load parent folder", zap.Error(err))
				jsonutil.InternalError(w, "failed to create folder")
				return
			}
			jsonutil.NotFound(w, "parent folder not found")
			return
		}
		parentID = &id
	}

	exists, err := h.folders.NameExistsInParent(r.Context(), user.UserID(), name, parentID, nil)
	if err != nil {
		h.logger.Error("failed to check folder name", zap.Error(err))
		jsonutil.InternalError(w, "failed to create folder")
		return
	}
	if exists {
		jsonutil.Conflict(w, "a folder with that name already exists here")
		return
	}

	fo, err := h.folders.Create(r.Context(), folder.CreateInput{
		Name:        name,
		ParentID:    parentID,
		OwnerID:     user.UserID(),
		Description: normalize.Description(in.Description),
	})
	if err != nil {
		h.logger.Error("failed to create folder", zap.Error(err))
		jsonutil.InternalError(w, "failed to create folder")
		return
	}

	h.logger.Info("folder created",
		zap.String("folder_id", fo.ID.Hex()),
		zap.String("owner_id", user.ID),
	)
	jsonutil.Created(w, newFolderView(fo))
}

// UpdateFolder renames a folder or changes its description.
func (h *Handler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	fo, ok := h.ownedFolder(w, r, user.UserID())
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

	input := folder.UpdateInput{}
	if in.Description != nil {
		desc := normalize.Description(*in.Description)
		input.Description = &desc
	}
	if in.Name != nil {
		name := normalize.Name(*in.Name)
		if name == "" || len(name) > maxNameLength {
			jsonutil.BadRequest(w, "folder name must be 1-255 characters")
			return
		}
		exists, err := h.folders.NameExistsInParent(r.Context(), user.UserID(), name, fo.ParentID, &fo.ID)
		if err != nil {
			h.logger.Error("failed to check folder name", zap.Error(err))
			jsonutil.InternalError(w, "failed to update folder")
			return
		}
		if exists {
			jsonutil.Conflict(w, "a folder with that name already exists here")
			return
		}
		input.Name = &name
	}

	if err := h.folders.Update(r.Context(), fo.ID, input); err != nil {
		h.logger.Error("failed to update folder", zap.Error(err))
		jsonutil.InternalError(w, "failed to update folder")
		return
	}

	updated, err := h.folders.GetByID(r.Context(), fo.ID)
	if err != nil {
		h.logger.Error("failed to reload folder", zap.Error(err))
		jsonutil.InternalError(w, "failed to update folder")
		return
	}
	jsonutil.OK(w, newFolderView(updated))
}

// ownedFolder loads the {id} folder and checks it is active and owned by
// ownerID. Foreign and trashed folders read as not found.
func (h *Handler) ownedFolder(w http.ResponseWriter, r *http.Request, ownerID primitive.ObjectID) (*models.Folder, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid folder id")
		return nil, false
	}

	fo, err := h.folders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonutil.NotFound(w, "folder not found")
		} else {
			h.logger.Error("failed to load folder", zap.Error(err))
			jsonutil.InternalError(w, "failed to load folder")
		}
		return nil, false
	}
	if fo.OwnerID != ownerID || fo.IsTrashed() {
		jsonutil.NotFound(w, "folder not found")
		return nil, false
	}
	return fo, true
}
