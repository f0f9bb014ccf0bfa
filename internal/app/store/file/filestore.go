// Package file provides storage for file metadata.
package file

import (
	"context"
	"regexp"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/docvault/docvault/internal/app/store/storeutil"
	"github.com/docvault/docvault/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the files collection.
type Store struct {
	c *mongo.Collection
}

// New creates a new file store.
func New(db *mongo.Database) *Store {
	return &Store{
		c: db.Collection("files"),
	}
}

// Collection exposes the underlying collection for cross-store transactions.
func (s *Store) Collection() *mongo.Collection {
	return s.c
}

// CreateInput contains the input for creating a file record.
type CreateInput struct {
	FolderID    *primitive.ObjectID
	Name        string
	StoragePath string
	Size        int64
	ContentType string
	OwnerID     primitive.ObjectID
	Description string
}

// Create creates a new file record.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.File, error) {
	now := time.Now()
	file := models.File{
		ID:          primitive.NewObjectID(),
		FolderID:    input.FolderID,
		Name:        input.Name,
		NameCI:      text.Fold(input.Name),
		StoragePath: input.StoragePath,
		Size:        input.Size,
		ContentType: input.ContentType,
		OwnerID:     input.OwnerID,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.c.InsertOne(ctx, file); err != nil {
		return nil, err
	}

	return &file, nil
}

// GetByID retrieves a file by ID, trashed or not.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.File, error) {
	var file models.File
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

// GetByStoragePath retrieves a file by its blob storage key.
func (s *Store) GetByStoragePath(ctx context.Context, path string) (*models.File, error) {
	var file models.File
	if err := s.c.FindOne(ctx, bson.M{"storage_path": path}).Decode(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

// GetByIDs retrieves files by their IDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []models.File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}

	return files, nil
}

// UpdateInput contains the input for updating a file.
type UpdateInput struct {
	Name        *string
	Description *string
}

// Update updates a file.
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

// SetFavorite toggles the favorite flag on a file.
func (s *Store) SetFavorite(ctx context.Context, id primitive.ObjectID, favorite bool) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"is_favorite": favorite,
		"updated_at":  time.Now(),
	}})
	return err
}

// MarkAccessed stamps the last access time on a file.
func (s *Store) MarkAccessed(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"last_accessed_at": at,
	}})
	return err
}

// ListOptions contains options for listing files.
type ListOptions struct {
	SortBy    string // "name", "created_at", "size", "content_type"
	SortOrder int    // 1 = asc, -1 = desc
	Limit     int64  // page size; 0 returns everything
	Page      int64  // 1-based page number, used with Limit
}

// findOptions builds Find options from ListOptions. Pagination only applies
// when a limit is set, so callers that want the full listing still get it.
func findOptions(opts ListOptions) *options.FindOptions {
	if opts.Limit > 0 {
		return storeutil.Paginate(opts.Limit, opts.Page).SetSort(sortStage(opts))
	}
	return options.Find().SetSort(sortStage(opts))
}

// ListByFolder returns the active files a user owns within a folder.
// Pass nil for folderID to list root-level files.
func (s *Store) ListByFolder(ctx context.Context, ownerID primitive.ObjectID, folderID *primitive.ObjectID, opts ListOptions) ([]models.File, error) {
	filter := bson.M{
		"owner_id":   ownerID,
		"folder_id":  folderID,
		"deleted_at": nil,
	}
	return s.find(ctx, filter, findOptions(opts))
}

// Search returns the active files a user owns whose name contains the given
// term, case and diacritic insensitive.
func (s *Store) Search(ctx context.Context, ownerID primitive.ObjectID, term string, opts ListOptions) ([]models.File, error) {
	filter := bson.M{
		"owner_id":   ownerID,
		"deleted_at": nil,
		"name_ci":    bson.M{"$regex": regexp.QuoteMeta(text.Fold(term))},
	}
	return s.find(ctx, filter, findOptions(opts))
}

// ListFavorites returns the active files a user has marked favorite.
func (s *Store) ListFavorites(ctx context.Context, ownerID primitive.ObjectID) ([]models.File, error) {
	filter := bson.M{
		"owner_id":    ownerID,
		"is_favorite": true,
		"deleted_at":  nil,
	}
	return s.list(ctx, filter, bson.D{{Key: "name_ci", Value: 1}})
}

// ListRecent returns the most recently accessed active files a user owns.
func (s *Store) ListRecent(ctx context.Context, ownerID primitive.ObjectID, limit int64) ([]models.File, error) {
	filter := bson.M{
		"owner_id":         ownerID,
		"deleted_at":       nil,
		"last_accessed_at": bson.M{"$ne": nil},
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "last_accessed_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.c.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []models.File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}

	return files, nil
}

// ListTrashed returns the trashed files a user owns, most recently trashed
// first. When rootsOnly is set, files trashed as part of a folder cascade
// are omitted so the trash listing shows only directly trashed files.
func (s *Store) ListTrashed(ctx context.Context, ownerID primitive.ObjectID, rootsOnly bool) ([]models.File, error) {
	filter := bson.M{
		"owner_id":   ownerID,
		"deleted_at": bson.M{"$ne": nil},
	}
	if rootsOnly {
		filter["$expr"] = bson.M{"$eq": bson.A{"$trash_cascade_id", "$_id"}}
	}
	return s.list(ctx, filter, bson.D{{Key: "deleted_at", Value: -1}})
}

// ListActiveByFolders returns the active files contained in any of the
// given folders.
func (s *Store) ListActiveByFolders(ctx context.Context, folderIDs []primitive.ObjectID) ([]models.File, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"folder_id":  bson.M{"$in": folderIDs},
		"deleted_at": nil,
	}
	return s.list(ctx, filter, bson.D{{Key: "name_ci", Value: 1}})
}

// MarkTrashed soft deletes the given files, stamping each with the cascade
// ID of the item that initiated the trash operation.
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

// MarkTrashedEach soft deletes the given files, each as its own cascade
// root, so every file can be restored independently later.
func (s *Store) MarkTrashedEach(ctx context.Context, ids []primitive.ObjectID, at time.Time) (int64, error) {
	var total int64
	for _, id := range ids {
		n, err := s.MarkTrashed(ctx, []primitive.ObjectID{id}, id, at)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// TrashByFolders soft deletes every active file in the given folders.
func (s *Store) TrashByFolders(ctx context.Context, folderIDs []primitive.ObjectID, cascadeID primitive.ObjectID, at time.Time) (int64, error) {
	if len(folderIDs) == 0 {
		return 0, nil
	}

	result, err := s.c.UpdateMany(ctx,
		bson.M{"folder_id": bson.M{"$in": folderIDs}, "deleted_at": nil},
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

// RestoreByIDs restores directly trashed files.
func (s *Store) RestoreByIDs(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "deleted_at": bson.M{"$ne": nil}},
		restoreUpdate())
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// RestoreByCascade restores every trashed file carrying the given cascade ID.
func (s *Store) RestoreByCascade(ctx context.Context, cascadeID primitive.ObjectID) (int64, error) {
	result, err := s.c.UpdateMany(ctx,
		bson.M{"trash_cascade_id": cascadeID, "deleted_at": bson.M{"$ne": nil}},
		restoreUpdate())
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// ListByCascade returns every trashed file carrying the given cascade ID.
func (s *Store) ListByCascade(ctx context.Context, cascadeID primitive.ObjectID) ([]models.File, error) {
	filter := bson.M{
		"trash_cascade_id": cascadeID,
		"deleted_at":       bson.M{"$ne": nil},
	}
	return s.list(ctx, filter, bson.D{{Key: "name_ci", Value: 1}})
}

// TrashedBefore returns the trashed files whose deletion time is older than
// the cutoff.
func (s *Store) TrashedBefore(ctx context.Context, cutoff time.Time) ([]models.File, error) {
	filter := bson.M{
		"deleted_at": bson.M{"$ne": nil, "$lt": cutoff},
	}
	return s.list(ctx, filter, bson.D{{Key: "deleted_at", Value: 1}})
}

// MoveToFolder moves active files into a folder. Pass nil to move to root.
func (s *Store) MoveToFolder(ctx context.Context, ids []primitive.ObjectID, folderID *primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "deleted_at": nil},
		bson.M{"$set": bson.M{
			"folder_id":  folderID,
			"updated_at": time.Now(),
		}})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// DeleteByIDs permanently removes file records.
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

// NameExistsInFolder checks if an active file with the given name exists in
// the folder. Pass excludeID to exclude a specific file (useful for updates).
func (s *Store) NameExistsInFolder(ctx context.Context, ownerID primitive.ObjectID, name string, folderID *primitive.ObjectID, excludeID *primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"owner_id":   ownerID,
		"folder_id":  folderID,
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

// StorageUsage sums the size of every active file a user owns.
func (s *Store) StorageUsage(ctx context.Context, ownerID primitive.ObjectID) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": ownerID, "deleted_at": nil}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$size"}}}},
	}

	cursor, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (s *Store) list(ctx context.Context, filter bson.M, sort bson.D) ([]models.File, error) {
	return s.find(ctx, filter, options.Find().SetSort(sort))
}

func (s *Store) find(ctx context.Context, filter bson.M, findOpts *options.FindOptions) ([]models.File, error) {
	cursor, err := s.c.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []models.File
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}

	return files, nil
}

func sortStage(opts ListOptions) bson.D {
	sortField := "name_ci"
	switch opts.SortBy {
	case "created_at", "date":
		sortField = "created_at"
	case "size":
		sortField = "size"
	case "content_type", "type":
		sortField = "content_type"
	}

	sortOrder := 1
	if opts.SortOrder != 0 {
		sortOrder = opts.SortOrder
	}

	return bson.D{{Key: sortField, Value: sortOrder}}
}

func restoreUpdate() bson.M {
	return bson.M{
		"$set":   bson.M{"updated_at": time.Now()},
		"$unset": bson.M{"deleted_at": "", "trash_cascade_id": ""},
	}
}
