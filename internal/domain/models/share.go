package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Share is a link that grants access to a single file or folder.
// Exactly one of FileID or FolderID is set.
type Share struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Token        string               `bson:"token"` // unique, URL-safe
	FileID       *primitive.ObjectID  `bson:"file_id,omitempty"`
	FolderID     *primitive.ObjectID  `bson:"folder_id,omitempty"`
	OwnerID      primitive.ObjectID   `bson:"owner_id"`
	PasswordHash *string              `bson:"password_hash,omitempty"` // nil = no password
	ExpiresAt    *time.Time           `bson:"expires_at,omitempty"`    // nil = never expires
	SharedWith   []primitive.ObjectID `bson:"shared_with,omitempty"`   // empty = anyone with the link
	AccessCount  int64                `bson:"access_count"`
	IsActive     bool                 `bson:"is_active"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

// IsExpired reports whether the share's expiry has passed as of now.
func (s *Share) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// HasPassword reports whether the share requires a password.
func (s *Share) HasPassword() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}

// IsRestricted reports whether the share is limited to specific users.
func (s *Share) IsRestricted() bool {
	return len(s.SharedWith) > 0
}
