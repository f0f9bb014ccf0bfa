// Package share provides storage for share links.
package share

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/docvault/docvault/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the shares collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new share store.
func New(db *mongo.Database) *Store {
	return &Store{
		c: db.Collection("shares"),
	}
}

// GenerateToken returns a new URL-safe share token.
func GenerateToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateInput contains the input for creating a share. Exactly one of
// FileID or FolderID must be set.
type CreateInput struct {
	FileID       *primitive.ObjectID
	FolderID     *primitive.ObjectID
	OwnerID      primitive.ObjectID
	PasswordHash *string
	ExpiresAt    *time.Time
	SharedWith   []primitive.ObjectID
}

// Create creates a new share with a freshly generated token.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.Share, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	share := models.Share{
		ID:           primitive.NewObjectID(),
		Token:        token,
		FileID:       input.FileID,
		FolderID:     input.FolderID,
		OwnerID:      input.OwnerID,
		PasswordHash: input.PasswordHash,
		ExpiresAt:    input.ExpiresAt,
		SharedWith:   input.SharedWith,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.c.InsertOne(ctx, share); err != nil {
		return nil, err
	}

	return &share, nil
}

// GetByID retrieves a share by ID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Share, error) {
	var share models.Share
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&share); err != nil {
		return nil, err
	}
	return &share, nil
}

// GetByToken retrieves a share by its token.
func (s *Store) GetByToken(ctx context.Context, token string) (*models.Share, error) {
	var share models.Share
	if err := s.c.FindOne(ctx, bson.M{"token": token}).Decode(&share); err != nil {
		return nil, err
	}
	return &share, nil
}

// ListByOwner returns the shares a user has created, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Share, error) {
	cursor, err := s.c.Find(ctx,
		bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var shares []models.Share
	if err := cursor.All(ctx, &shares); err != nil {
		return nil, err
	}

	return shares, nil
}

// ListByTarget returns the shares pointing at a file or folder.
func (s *Store) ListByTarget(ctx context.Context, fileID, folderID *primitive.ObjectID) ([]models.Share, error) {
	filter := bson.M{}
	if fileID != nil {
		filter["file_id"] = *fileID
	}
	if folderID != nil {
		filter["folder_id"] = *folderID
	}

	cursor, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var shares []models.Share
	if err := cursor.All(ctx, &shares); err != nil {
		return nil, err
	}

	return shares, nil
}

// Deactivate turns off a share without deleting it.
func (s *Store) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_active":  false,
		"updated_at": time.Now(),
	}})
	return err
}

// Activate turns a share back on.
func (s *Store) Activate(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_active":  true,
		"updated_at": time.Now(),
	}})
	return err
}

// SetPassword sets or clears the password hash on a share.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, hash *string) error {
	update := bson.M{"$set": bson.M{"updated_at": time.Now()}}
	if hash != nil {
		update["$set"].(bson.M)["password_hash"] = *hash
	} else {
		update["$unset"] = bson.M{"password_hash": ""}
	}

	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// SetExpiry sets or clears the expiration time on a share.
func (s *Store) SetExpiry(ctx context.Context, id primitive.ObjectID, expiresAt *time.Time) error {
	update := bson.M{"$set": bson.M{"updated_at": time.Now()}}
	if expiresAt != nil {
		update["$set"].(bson.M)["expires_at"] = *expiresAt
	} else {
		update["$unset"] = bson.M{"expires_at": ""}
	}

	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// SetSharedWith replaces the recipient restriction list. Pass nil to make
// the share open to anyone holding the link.
func (s *Store) SetSharedWith(ctx context.Context, id primitive.ObjectID, userIDs []primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"shared_with": userIDs,
		"updated_at":  time.Now(),
	}})
	return err
}

// IncrementAccess bumps the access counter on a share.
func (s *Store) IncrementAccess(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"access_count": 1},
	})
	return err
}

// DeactivateExpired turns off every active share whose expiry has passed.
func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.c.UpdateMany(ctx,
		bson.M{
			"is_active":  true,
			"expires_at": bson.M{"$ne": nil, "$lt": now},
		},
		bson.M{"$set": bson.M{
			"is_active":  false,
			"updated_at": now,
		}})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// Delete removes a share record.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteByTargets removes every share pointing at any of the given files
// or folders. Used when targets are purged.
func (s *Store) DeleteByTargets(ctx context.Context, fileIDs, folderIDs []primitive.ObjectID) (int64, error) {
	var or []bson.M
	if len(fileIDs) > 0 {
		or = append(or, bson.M{"file_id": bson.M{"$in": fileIDs}})
	}
	if len(folderIDs) > 0 {
		or = append(or, bson.M{"folder_id": bson.M{"$in": folderIDs}})
	}
	if len(or) == 0 {
		return 0, nil
	}

	result, err := s.c.DeleteMany(ctx, bson.M{"$or": or})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
