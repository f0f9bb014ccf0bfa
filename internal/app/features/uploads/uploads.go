// Package uploads accepts multipart file uploads, runs them through the
// validation gate, writes the body to blob storage, and creates the file
// record.
package uploads

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/blob"
	"github.com/docvault/docvault/internal/app/system/filecheck"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/normalize"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the upload endpoint.
type Handler struct {
	folders *folder.Store
	files   *file.Store
	blobs   blob.Store
	gate    *filecheck.Gate
	logger  *zap.Logger
}

// NewHandler creates an upload Handler. The gate decides what is accepted.
func NewHandler(db *mongo.Database, blobs blob.Store, gate *filecheck.Gate, logger *zap.Logger) *Handler {
	return &Handler{
		folders: folder.New(db),
		files:   file.New(db),
		blobs:   blobs,
		gate:    gate,
		logger:  logger,
	}
}

// Routes returns the uploads router. Requires a signed-in session.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)
	r.Post("/", h.Upload)
	return r
}

// memoryBudget limits how much of the multipart body is buffered in memory
// before spilling to disk.
const memoryBudget = 4 << 20

// Upload handles a multipart POST with a "file" part and optional
// "folder_id" and "description" fields.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	// Cap the request body at the gate's limit plus multipart overhead.
	r.Body = http.MaxBytesReader(w, r.Body, h.gate.MaxSize()+memoryBudget)
	if err := r.ParseMultipartForm(memoryBudget); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonutil.PayloadTooLarge(w, "upload exceeds the maximum size")
			return
		}
		jsonutil.BadRequest(w, "invalid multipart payload")
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		jsonutil.BadRequest(w, "missing file part")
		return
	}
	defer part.Close()

	admitted, err := h.gate.Admit(filecheck.Candidate{
		Name:         header.Filename,
		Size:         header.Size,
		DeclaredType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		writeGateError(w, err)
		return
	}

	folderID, ok := h.resolveFolder(w, r, user.UserID())
	if !ok {
		return
	}

	exists, err := h.files.NameExistsInFolder(r.Context(), user.UserID(), admitted.Name, folderID, nil)
	if err != nil {
		h.logger.Error("failed to check file name", zap.Error(err))
		jsonutil.InternalError(w, "failed to store file")
		return
	}
	if exists {
		jsonutil.Conflict(w, "a file with that name already exists here")
		return
	}

	key := storageKey(user.UserID(), admitted.Name)
	if err := h.blobs.Put(r.Context(), key, part, admitted.ContentType); err != nil {
		h.logger.Error("failed to write blob",
			zap.String("key", key),
			zap.Error(err),
		)
		jsonutil.InternalError(w, "file storage is unavailable")
		return
	}

	f, err := h.files.Create(r.Context(), file.CreateInput{
		FolderID:    folderID,
		Name:        admitted.Name,
		StoragePath: key,
		Size:        admitted.Size,
		ContentType: admitted.ContentType,
		OwnerID:     user.UserID(),
		Description: normalize.Description(r.FormValue("description")),
	})
	if err != nil {
		// The blob is orphaned if this cleanup also fails; it only
		// costs storage, never correctness.
		if delErr := h.blobs.Delete(r.Context(), key); delErr != nil {
			h.logger.Warn("failed to clean up blob after create failure",
				zap.String("key", key),
				zap.Error(delErr),
			)
		}
		h.logger.Error("failed to create file record", zap.Error(err))
		jsonutil.InternalError(w, "failed to store file")
		return
	}

	h.logger.Info("file uploaded",
		zap.String("file_id", f.ID.Hex()),
		zap.String("owner_id", user.ID),
		zap.Int64("size", f.Size),
	)
	jsonutil.Created(w, map[string]any{
		"id":           f.ID.Hex(),
		"name":         f.Name,
		"size":         f.Size,
		"content_type": f.ContentType,
		"created_at":   f.CreatedAt,
	})
}

// resolveFolder validates the optional folder_id form field. The target
// must be an active folder owned by the uploader.
func (h *Handler) resolveFolder(w http.ResponseWriter, r *http.Request, ownerID primitive.ObjectID) (*primitive.ObjectID, bool) {
	raw := r.FormValue("folder_id")
	if raw == "" {
		return nil, true
	}

	id, err := primitive.ObjectIDFromHex(raw)
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
			jsonutil.InternalError(w, "failed to store file")
		}
		return nil, false
	}
	if fo.OwnerID != ownerID || fo.IsTrashed() {
		jsonutil.NotFound(w, "folder not found")
		return nil, false
	}
	return &id, true
}

// storageKey builds the blob key: owner, upload date, a uuid, and the
// sanitized name. The uuid keeps same-named uploads from colliding.
func storageKey(ownerID primitive.ObjectID, name string) string {
	return fmt.Sprintf("%s/%s/%s-%s",
		ownerID.Hex(),
		time.Now().UTC().Format("2006/01/02"),
		uuid.NewString(),
		name,
	)
}

// writeGateError maps gate rejections to status codes.
func writeGateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, filecheck.ErrTooLarge):
		jsonutil.PayloadTooLarge(w, err.Error())
	case errors.Is(err, filecheck.ErrForbiddenExtension), errors.Is(err, filecheck.ErrForbiddenType):
		jsonutil.UnsupportedMediaType(w, err.Error())
	default:
		jsonutil.BadRequest(w, err.Error())
	}
}
