// Package folder provides storage for folders.
package folder

import (
	"context"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/docvault/docvault/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the folders collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new folder store.
func New(db *mongo.Database) *Store {
	return &Store{
		c: db.Collection("folders"),
	}
}

// Collection exposes the underlying collection for cross-store transactions.
func (s *Store) Collection() *mongo.Collection {
	return s.c
}

// CreateInput contains the input for creating a folder.
type CreateInput struct {
	Name        string
	ParentID    *primitive.ObjectID
	OwnerID     primitive.ObjectID
	Description string
}

// Create creates a new folder.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.Folder, error) {
	now := time.Now()
	folder := models.Folder{
		ID:          primitive.NewObjectID(),
		Name:        input.Name,
		NameCI:      text.Fold(input.Name),
		ParentID:    input.ParentID,
		OwnerID:     input.OwnerID,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.c.InsertOne(ctx, folder); err != nil {
		return nil, err
	}

	return &folder, nil
}

// GetByID retrieves a folder by ID, trashed or not.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error) {
	var folder models.Folder
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// GetByIDs retrieves folders by their IDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Folder, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var folders []models.Folder
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, err
	}

	return folders, nil
}

// UpdateInput contains the input for updating a folder.
type UpdateInput struct {
	Name        *string
	Description *string
}

// Update updates a folder.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, input UpdateInput) error {
	set := bson.M{"updated_at": time.Now()}

	if input.Name != nil {
		set["name"] = *input.Name
		set["name_ci"] = text.Fold(*input.Name)
	}
	if input.Description != nil {
		set["description"] = *input.Description
	}

	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// SetFavorite toggles the favorite flag on a folder.
func (s *Store) SetFavorite(ctx context.Context, id primitive.ObjectID, favorite bool) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_favorite": favorite,
		"updated_at":  time.Now(),
	}})
	return err
}

// ListOptions contains options for listing folders.
type ListOptions struct {
	SortBy    string // "name", "created_at", "updated_at"
	SortOrder int    // 1 = asc, -1 = desc
}

// ListByParent returns the active folders a user owns within a parent folder.
// Pass nil for parentID to list root folders.
func (s *Store) ListByParent(ctx context.Context, ownerID primitive.ObjectID, parentID *primitive.ObjectID, opts ListOptions) ([]models.Folder, error) {
	filter := bson.M{
		"owner_id":   ownerID,
		"parent_id":  parentID,
		"deleted_at": nil,
	}

	sortField := "name_ci"
	switch opts.SortBy {
	case "created_at", "date":
		sortField = "created_at"
	case "updated_at":
		sortField = "updated_at"
	}

	sortOrder := 1
	if opts.SortOrder != 0 {
		sortOrder = opts.SortOrder
	}

	findOpts := options.Find().SetSort(bson.D{{Key: sortField, Value: sortOrder}})

	cursor, err := s.c.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var folders []models.Folder
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, err
	}

	return folders, nil
}

// ListFavorites returns the active folders a user has marked favorite.
func (s *Store) ListFavorites(ctx context.Context, ownerID primitive.ObjectID) ([]models.Folder, error) {
	filter := bson.M{
		"owner_id":    ownerID,
		"is_favorite": true,
		"deleted_at":  nil,
	}

	cursor, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var folders []models.Folder
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, err
	}

	return folders, nil
}

// ListTrashed returns the trashed folders a user owns, most recently trashed
// first. When rootsOnly is set only cascade roots are returned, so the trash
// listing does not repeat every descendant of a trashed folder.
func (s *Store) ListTrashed(ctx context.Context, ownerID primitive.ObjectID, rootsOnly bool) ([]models.Folder, error) {
	filter := bson.M{
		"owner_id":   ownerID,
		"deleted_at": bson.M{"$ne": nil},
	}
	if rootsOnly {
		filter["$expr"] = bson.M{"$eq": bson.A{"$trash_cascade_id", "$_id"}}
	}

	cursor, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "deleted_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var folders []models.Folder
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, err
	}

	return folders, nil
}

// DescendantIDs returns the IDs of every folder below the given folder,
// breadth first. The starting folder itself is not included.
func (s *Store) DescendantIDs(ctx context.Context, id primitive.ObjectID) ([]primitive.ObjectID, error) {
	var all []primitive.ObjectID
	frontier := []primitive.ObjectID{id}

	for len(frontier) > 0 {
		cursor, err := s.c.Find(ctx,
			bson.M{"parent_id": bson.M{"$in": frontier}},
			options.Find().SetProjection(bson.M{"_id": 1}))
		if err != nil {
			return nil, err
		}

		var rows []struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, row := range rows {
			all = append(all, row.ID)
			frontier = append(frontier, row.ID)
		}
	}

	return all, nil
}

// MarkTrashed soft deletes the given folders, stamping each with the
// cascade ID of the folder that initiated the trash operation.
func (s *Store) MarkTrashed(ctx context.Context, ids []primitive.ObjectID, cascadeID primitive.ObjectID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "deleted_at": nil},
		bson.M{"$set": bson.M{
			"deleted_at":       at,
			"trash_cascade_id": cascadeID,
			"updated_at":       at,
		}})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// RestoreByCascade restores every trashed folder carrying the given cascade ID.
func (s *Store) RestoreByCascade(ctx context.Context, cascadeID primitive.ObjectID) (int64, error) {
	result, err := s.c.UpdateMany(ctx,
		bson.M{"trash_cascade_id": cascadeID, "deleted_at": bson.M{"$ne": nil}},
		bson.M{
			"$set":   bson.M{"updated_at": time.Now()},
			"$unset": bson.M{"deleted_at": "", "trash_cascade_id": ""},
		})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// IDsByCascade returns the IDs of every trashed folder carrying the given cascade ID.
func (s *Store) IDsByCascade(ctx context.Context, cascadeID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cursor, err := s.c.Find(ctx,
		bson.M{"trash_cascade_id": cascadeID, "deleted_at": bson.M{"$ne": nil}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// TrashedBefore returns the trashed folders whose deletion time is older
// than the cutoff.
func (s *Store) TrashedBefore(ctx context.Context, cutoff time.Time) ([]models.Folder, error) {
	cursor, err := s.c.Find(ctx, bson.M{
		"deleted_at": bson.M{"$ne": nil, "$lt": cutoff},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var folders []models.Folder
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, err
	}

	return folders, nil
}

// DeleteByIDs permanently removes folder records.
func (s *Store) DeleteByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.c.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// MoveToParent reparents an active folder.
func (s *Store) MoveToParent(ctx context.Context, id primitive.ObjectID, parentID *primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": nil},
		bson.M{"$set": bson.M{
			"parent_id":  parentID,
			"updated_at": time.Now(),
		}})
	return err
}

// GetAncestors returns all ancestors of a folder, ordered from root to
// immediate parent.
func (s *Store) GetAncestors(ctx context.Context, id primitive.ObjectID) ([]models.Folder, error) {
	folder, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var ancestors []models.Folder

	currentParentID := folder.ParentID
	for currentParentID != nil {
		parent, err := s.GetByID(ctx, *currentParentID)
		if err != nil {
			return nil, err
		}
		// Prepend to get root-first order
		ancestors = append([]models.Folder{*parent}, ancestors...)
		currentParentID = parent.ParentID
	}

	return ancestors, nil
}

// NameExistsInParent checks if an active folder with the given name exists
// in the parent. Pass excludeID to exclude a specific folder (useful for updates).
func (s *Store) NameExistsInParent(ctx context.Context, ownerID primitive.ObjectID, name string, parentID *primitive.ObjectID, excludeID *primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"owner_id":   ownerID,
		"parent_id":  parentID,
		"name_ci":    text.Fold(name),
		"deleted_at": nil,
	}

	if excludeID != nil {
		filter["_id"] = bson.M{"$ne": *excludeID}
	}

	count, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// HasActiveChildren checks if a folder contains any active subfolders.
func (s *Store) HasActiveChildren(ctx context.Context, id primitive.ObjectID) (bool, error) {
	count, err := s.c.CountDocuments(ctx, bson.M{"parent_id": id, "deleted_at": nil})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
