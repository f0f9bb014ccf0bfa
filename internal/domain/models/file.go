package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// File represents a stored document.
type File struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty"`
	FolderID       *primitive.ObjectID `bson:"folder_id,omitempty"` // nil = root level
	Name           string              `bson:"name"`                // Sanitized filename
	NameCI         string              `bson:"name_ci"`             // Case-insensitive for sorting/search
	StoragePath    string              `bson:"storage_path"`        // Key in the blob backend
	Size           int64               `bson:"size"`                // Bytes
	ContentType    string              `bson:"content_type"`
	OwnerID        primitive.ObjectID  `bson:"owner_id"`
	Description    string              `bson:"description,omitempty"`
	IsFavorite     bool                `bson:"is_favorite"`
	DeletedAt      *time.Time          `bson:"deleted_at,omitempty"`       // nil = active, set = trashed
	TrashCascadeID *primitive.ObjectID `bson:"trash_cascade_id,omitempty"` // id of the folder whose trashing swept this file
	LastAccessedAt *time.Time          `bson:"last_accessed_at,omitempty"`
	CreatedAt      time.Time           `bson:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at"`
}

// IsTrashed returns true if the file is in the trash.
func (f *File) IsTrashed() bool {
	return f.DeletedAt != nil
}
