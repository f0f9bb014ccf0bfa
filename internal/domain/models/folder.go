package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Folder represents a folder in the document hierarchy.
type Folder struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty"`
	Name           string              `bson:"name"`
	NameCI         string              `bson:"name_ci"`             // Case-insensitive for sorting/search
	ParentID       *primitive.ObjectID `bson:"parent_id,omitempty"` // nil = root folder
	OwnerID        primitive.ObjectID  `bson:"owner_id"`
	Description    string              `bson:"description,omitempty"`
	IsFavorite     bool                `bson:"is_favorite"`
	DeletedAt      *time.Time          `bson:"deleted_at,omitempty"`       // nil = active, set = trashed
	TrashCascadeID *primitive.ObjectID `bson:"trash_cascade_id,omitempty"` // id of the folder whose trashing swept this one
	CreatedAt      time.Time           `bson:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at"`
}

// IsRoot returns true if the folder is at the root level.
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}

// IsTrashed returns true if the folder is in the trash.
func (f *Folder) IsTrashed() bool {
	return f.DeletedAt != nil
}
