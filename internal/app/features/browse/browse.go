// Package browse serves the authenticated document-browsing API: folder
// and file listings, search, favorites, recent files, storage usage, and
// metadata updates. Downloads and previews live in stream.go.
package browse

import (
	"net/http"
	"strconv"

	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/system/auth"
	"github.com/docvault/docvault/internal/app/system/blob"
	"github.com/docvault/docvault/internal/app/system/jsonutil"
	"github.com/docvault/docvault/internal/app/system/normalize"
	"github.com/docvault/docvault/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the browsing endpoints.
type Handler struct {
	folders *folder.Store
	files   *file.Store
	blobs   blob.Store
	logger  *zap.Logger
}

// NewHandler creates a browse Handler backed by the given database and
// blob store.
func NewHandler(db *mongo.Database, blobs blob.Store, logger *zap.Logger) *Handler {
	return &Handler{
		folders: folder.New(db),
		files:   file.New(db),
		blobs:   blobs,
		logger:  logger,
	}
}

// Routes returns the browse router. All endpoints require a signed-in
// session.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireAuth)

	r.Get("/", h.ListRoot)
	r.Get("/search", h.Search)
	r.Get("/favorites", h.Favorites)
	r.Get("/recent", h.Recent)
	r.Get("/usage", h.Usage)

	r.Route("/folders", func(fr chi.Router) {
		fr.Post("/", h.CreateFolder)
		fr.Get("/{id}", h.ListFolder)
		fr.Patch("/{id}", h.UpdateFolder)
	})

	r.Route("/files", func(fr chi.Router) {
		fr.Get("/{id}", h.GetFile)
		fr.Patch("/{id}", h.UpdateFile)
		fr.Get("/{id}/download", h.Download)
		fr.Get("/{id}/preview", h.Preview)
	})

	return r
}

// listing is the common response shape for root and folder views.
type listing struct {
	Folder      *folderView  `json:"folder,omitempty"`
	Breadcrumbs []folderView `json:"breadcrumbs,omitempty"`
	Folders     []folderView `json:"folders"`
	Files       []fileView   `json:"files"`
}

// ListRoot lists active folders and files at the top level.
func (h *Handler) ListRoot(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}
	h.list(w, r, user.UserID(), nil, nil)
}

// ListFolder lists the contents of one folder, with its breadcrumb trail.
func (h *Handler) ListFolder(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	fo, ok := h.ownedFolder(w, r, user.UserID())
	if !ok {
		return
	}
	h.list(w, r, user.UserID(), fo, &fo.ID)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, ownerID primitive.ObjectID, fo *models.Folder, parentID *primitive.ObjectID) {
	opts := listOptions(r)

	folders, err := h.folders.ListByParent(r.Context(), ownerID, parentID, folder.ListOptions{SortBy: opts.SortBy, SortOrder: opts.SortOrder})
	if err != nil {
		h.logger.Error("failed to list folders", zap.Error(err))
		jsonutil.InternalError(w, "failed to list folders")
		return
	}
	files, err := h.files.ListByFolder(r.Context(), ownerID, parentID, opts)
	if err != nil {
		h.logger.Error("failed to list files", zap.Error(err))
		jsonutil.InternalError(w, "failed to list files")
		return
	}

	out := listing{
		Folders: folderViews(folders),
		Files:   fileViews(files),
	}
	if fo != nil {
		v := newFolderView(fo)
		out.Folder = &v

		ancestors, err := h.folders.GetAncestors(r.Context(), fo.ID)
		if err != nil {
			h.logger.Error("failed to load ancestors", zap.Error(err))
			jsonutil.InternalError(w, "failed to load folder")
			return
		}
		out.Breadcrumbs = folderViews(ancestors)
	}
	jsonutil.OK(w, out)
}

// Search finds active files by name, case-insensitively.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	term := normalize.QueryParam(r.URL.Query().Get("q"))
	if term == "" {
		jsonutil.BadRequest(w, "missing search term")
		return
	}

	files, err := h.files.Search(r.Context(), user.UserID(), term, listOptions(r))
	if err != nil {
		h.logger.Error("search failed", zap.String("term", term), zap.Error(err))
		jsonutil.InternalError(w, "search failed")
		return
	}
	jsonutil.OK(w, listing{Folders: []folderView{}, Files: fileViews(files)})
}

// Favorites lists the user's favorited folders and files.
func (h *Handler) Favorites(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	folders, err := h.folders.ListFavorites(r.Context(), user.UserID())
	if err != nil {
		h.logger.Error("failed to list favorite folders", zap.Error(err))
		jsonutil.InternalError(w, "failed to list favorites")
		return
	}
	files, err := h.files.ListFavorites(r.Context(), user.UserID())
	if err != nil {
		h.logger.Error("failed to list favorite files", zap.Error(err))
		jsonutil.InternalError(w, "failed to list favorites")
		return
	}
	jsonutil.OK(w, listing{Folders: folderViews(folders), Files: fileViews(files)})
}

// recentLimit caps the recent-files listing.
const recentLimit = 20

// Recent lists the most recently accessed files.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	files, err := h.files.ListRecent(r.Context(), user.UserID(), recentLimit)
	if err != nil {
		h.logger.Error("failed to list recent files", zap.Error(err))
		jsonutil.InternalError(w, "failed to list recent files")
		return
	}
	jsonutil.OK(w, listing{Folders: []folderView{}, Files: fileViews(files)})
}

// Usage reports total bytes of active files the user owns.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "sign in required")
		return
	}

	bytes, err := h.files.StorageUsage(r.Context(), user.UserID())
	if err != nil {
		h.logger.Error("failed to compute storage usage", zap.Error(err))
		jsonutil.InternalError(w, "failed to compute storage usage")
		return
	}
	jsonutil.OK(w, map[string]int64{"bytes_used": bytes})
}

// maxPageSize caps the limit query parameter.
const maxPageSize = 200

// listOptions reads sort, order, limit, and page query parameters.
// Unset or out-of-range values fall back to the store defaults.
func listOptions(r *http.Request) file.ListOptions {
	q := r.URL.Query()

	opts := file.ListOptions{
		SortBy: normalize.QueryParam(q.Get("sort")),
	}
	if normalize.QueryParam(q.Get("order")) == "desc" {
		opts.SortOrder = -1
	}

	if n, err := strconv.ParseInt(normalize.QueryParam(q.Get("limit")), 10, 64); err == nil && n > 0 {
		if n > maxPageSize {
			n = maxPageSize
		}
		opts.Limit = n
	}
	if n, err := strconv.ParseInt(normalize.QueryParam(q.Get("page")), 10, 64); err == nil && n > 0 {
		opts.Page = n
	}

	return opts
}
