package browse

import (
	"time"

	"github.com/docvault/docvault/internal/domain/models"
)

// folderView is the JSON shape for a folder.
type folderView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ParentID    string    `json:"parent_id,omitempty"`
	Description string    `json:"description,omitempty"`
	IsFavorite  bool      `json:"is_favorite"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// fileView is the JSON shape for a file.
type fileView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	FolderID       string     `json:"folder_id,omitempty"`
	Size           int64      `json:"size"`
	ContentType    string     `json:"content_type"`
	Description    string     `json:"description,omitempty"`
	IsFavorite     bool       `json:"is_favorite"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func newFolderView(f *models.Folder) folderView {
	v := folderView{
		ID:          f.ID.Hex(),
		Name:        f.Name,
		Description: f.Description,
		IsFavorite:  f.IsFavorite,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	if f.ParentID != nil {
		v.ParentID = f.ParentID.Hex()
	}
	return v
}

func newFileView(f *models.File) fileView {
	v := fileView{
		ID:             f.ID.Hex(),
		Name:           f.Name,
		Size:           f.Size,
		ContentType:    f.ContentType,
		Description:    f.Description,
		IsFavorite:     f.IsFavorite,
		LastAccessedAt: f.LastAccessedAt,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
	if f.FolderID != nil {
		v.FolderID = f.FolderID.Hex()
	}
	return v
}

func folderViews(folders []models.Folder) []folderView {
	out := make([]folderView, 0, len(folders))
	for i := range folders {
		out = append(out, newFolderView(&folders[i]))
	}
	return out
}

func fileViews(files []models.File) []fileView {
	out := make([]fileView, 0, len(files))
	for i := range files {
		out = append(out, newFileView(&files[i]))
	}
	return out
}
