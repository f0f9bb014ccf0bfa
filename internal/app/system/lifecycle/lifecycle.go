// Package lifecycle manages the active/trashed/purged state of folders
// and files.
//
// Trashing a folder cascades to every active descendant as one atomic
// unit. Each cascaded record is stamped with the ID of the item that
// initiated the trash, so a later restore brings back exactly the records
// that left together. A file trashed on its own inside a folder that is
// later trashed keeps its own cascade marker and stays in the trash when
// the folder is restored.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/store/share"
	"github.com/docvault/docvault/internal/app/system/blob"
	"github.com/docvault/docvault/internal/app/system/txn"
	"github.com/docvault/docvault/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Typed failures callers are expected to branch on.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrNotOwner     = errors.New("actor does not own this resource")
	ErrInvalidState = errors.New("operation not valid in the resource's current state")
)

// Manager coordinates soft-delete transitions across the folder, file,
// and share stores plus the blob backend.
type Manager struct {
	db      *mongo.Database
	folders *folder.Store
	files   *file.Store
	shares  *share.Store
	blobs   blob.Store
	log     *zap.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(db *mongo.Database, folders *folder.Store, files *file.Store, shares *share.Store, blobs blob.Store, log *zap.Logger) *Manager {
	return &Manager{
		db:      db,
		folders: folders,
		files:   files,
		shares:  shares,
		blobs:   blobs,
		log:     log,
	}
}

// TrashFile moves a single active file to the trash.
func (m *Manager) TrashFile(ctx context.Context, actorID, fileID primitive.ObjectID) error {
	f, err := m.files.GetByID(ctx, fileID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}
	if f.OwnerID != actorID {
		return ErrNotOwner
	}
	if f.IsTrashed() {
		return fmt.Errorf("%w: file is already trashed", ErrInvalidState)
	}

	_, err = m.files.MarkTrashed(ctx, []primitive.ObjectID{fileID}, fileID, time.Now())
	return err
}

// TrashFolder moves a folder and every active descendant folder and file
// to the trash. The whole subtree transitions atomically; each record is
// stamped with the folder's ID as the cascade marker.
func (m *Manager) TrashFolder(ctx context.Context, actorID, folderID primitive.ObjectID) error {
	fo, err := m.folders.GetByID(ctx, folderID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}
	if fo.OwnerID != actorID {
		return ErrNotOwner
	}
	if fo.IsTrashed() {
		return fmt.Errorf("%w: folder is already trashed", ErrInvalidState)
	}

	descendants, err := m.folders.DescendantIDs(ctx, folderID)
	if err != nil {
		return err
	}

	folderIDs := append([]primitive.ObjectID{folderID}, descendants...)
	now := time.Now()

	return txn.Run(ctx, m.db, m.log, func(tc context.Context) error {
		if _, err := m.folders.MarkTrashed(tc, folderIDs, folderID, now); err != nil {
			return err
		}
		if _, err := m.files.TrashByFolders(tc, folderIDs, folderID, now); err != nil {
			return err
		}
		return nil
	})
}

// RestoreFile brings a trashed file back to the active state. The file's
// containing folder must itself be active; a file cannot be restored into
// a trashed context.
func (m *Manager) RestoreFile(ctx context.Context, actorID, fileID primitive.ObjectID) error {
	f, err := m.files.GetByID(ctx, fileID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}
	if f.OwnerID != actorID {
		return ErrNotOwner
	}
	if !f.IsTrashed() {
		return fmt.Errorf("%w: file is not trashed", ErrInvalidState)
	}

	if err := m.requireActiveFolder(ctx, f.FolderID); err != nil {
		return err
	}

	_, err = m.files.RestoreByIDs(ctx, []primitive.ObjectID{fileID})
	return err
}

// RestoreFolder brings a trashed folder back, together with every
// descendant that was trashed in the same cascade. Descendants trashed
// separately before the cascade keep their own marker and stay trashed.
func (m *Manager) RestoreFolder(ctx context.Context, actorID, folderID primitive.ObjectID) error {
	fo, err := m.folders.GetByID(ctx, folderID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}
	if fo.OwnerID != actorID {
		return ErrNotOwner
	}
	if !fo.IsTrashed() {
		return fmt.Errorf("%w: folder is not trashed", ErrInvalidState)
	}

	if err := m.requireActiveFolder(ctx, fo.ParentID); err != nil {
		return err
	}

	// A folder that was swept up in an ancestor's cascade cannot be
	// restored on its own; the cascade root is the restorable unit.
	if fo.TrashCascadeID == nil || *fo.TrashCascadeID != fo.ID {
		return fmt.Errorf("%w: folder was trashed as part of a parent folder; restore that folder instead", ErrInvalidState)
	}

	cascadeID := fo.ID
	return txn.Run(ctx, m.db, m.log, func(tc context.Context) error {
		if _, err := m.folders.RestoreByCascade(tc, cascadeID); err != nil {
			return err
		}
		if _, err := m.files.RestoreByCascade(tc, cascadeID); err != nil {
			return err
		}
		return nil
	})
}

// PurgeFile permanently removes a trashed file: its record, any shares
// pointing at it, and its blob content.
func (m *Manager) PurgeFile(ctx context.Context, actorID, fileID primitive.ObjectID) error {
	f, err := m.files.GetByID(ctx, fileID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}
	if f.OwnerID != actorID {
		return ErrNotOwner
	}
	if !f.IsTrashed() {
		return fmt.Errorf("%w: only trashed files can be purged", ErrInvalidState)
	}

	// A file swept up in a folder's cascade purges with that folder;
	// removing it alone would leave the cascade group partially purged.
	if f.TrashCascadeID == nil || *f.TrashCascadeID != f.ID {
		return fmt.Errorf("%w: file was trashed as part of a folder; purge that folder instead", ErrInvalidState)
	}

	_, _, err = m.PurgeFileRecords(ctx, []models.File{*f})
	return err
}

// PurgeFolder permanently removes a trashed folder and every trashed
// record in its cascade group.
func (m *Manager) PurgeFolder(ctx context.Context, actorID, folderID primitive.ObjectID) error {
	fo, err := m.folders.GetByID(ctx, folderID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}
	if fo.OwnerID != actorID {
		return ErrNotOwner
	}
	if !fo.IsTrashed() {
		return fmt.Errorf("%w: only trashed folders can be purged", ErrInvalidState)
	}
	if fo.TrashCascadeID == nil || *fo.TrashCascadeID != fo.ID {
		return fmt.Errorf("%w: folder was trashed as part of a parent folder; purge that folder instead", ErrInvalidState)
	}

	_, _, _, err = m.PurgeCascade(ctx, fo.ID)
	return err
}

// Summary reports what a purge pass removed.
type Summary struct {
	FilesPurged   int64 `json:"files_purged"`
	FoldersPurged int64 `json:"folders_purged"`
	BytesFreed    int64 `json:"bytes_freed"`
}

// EmptyTrash purges everything in a user's trash.
func (m *Manager) EmptyTrash(ctx context.Context, ownerID primitive.ObjectID) (Summary, error) {
	var sum Summary

	trashedFolders, err := m.folders.ListTrashed(ctx, ownerID, false)
	if err != nil {
		return sum, err
	}
	trashedFiles, err := m.files.ListTrashed(ctx, ownerID, false)
	if err != nil {
		return sum, err
	}

	files, bytes, err := m.PurgeFileRecords(ctx, trashedFiles)
	sum.FilesPurged = files
	sum.BytesFreed = bytes
	if err != nil {
		return sum, err
	}

	folderIDs := make([]primitive.ObjectID, 0, len(trashedFolders))
	for _, fo := range trashedFolders {
		folderIDs = append(folderIDs, fo.ID)
	}

	folders, err := m.purgeFolderRecords(ctx, folderIDs)
	sum.FoldersPurged = folders
	return sum, err
}

// PurgeCascade permanently removes every trashed record carrying the given
// cascade marker: the folders, the files (records and blobs), and any
// shares pointing at them. It returns the counts and bytes freed.
func (m *Manager) PurgeCascade(ctx context.Context, cascadeID primitive.ObjectID) (foldersPurged, filesPurged, bytesFreed int64, err error) {
	folderIDs, err := m.folders.IDsByCascade(ctx, cascadeID)
	if err != nil {
		return 0, 0, 0, err
	}
	files, err := m.files.ListByCascade(ctx, cascadeID)
	if err != nil {
		return 0, 0, 0, err
	}

	filesPurged, bytesFreed, err = m.PurgeFileRecords(ctx, files)
	if err != nil {
		return 0, filesPurged, bytesFreed, err
	}

	foldersPurged, err = m.purgeFolderRecords(ctx, folderIDs)
	return foldersPurged, filesPurged, bytesFreed, err
}

// PurgeFileRecords removes the given file records, their shares, and their
// blob content. No ownership or state checks are applied; callers are
// expected to have selected the files deliberately. Blob deletion failures
// are logged and do not abort the purge, since the records are already
// gone and the reaper's next pass cannot retry them anyway.
func (m *Manager) PurgeFileRecords(ctx context.Context, files []models.File) (purged int64, bytesFreed int64, err error) {
	if len(files) == 0 {
		return 0, 0, nil
	}

	ids := make([]primitive.ObjectID, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}

	err = txn.Run(ctx, m.db, m.log, func(tc context.Context) error {
		n, err := m.files.DeleteByIDs(tc, ids)
		if err != nil {
			return err
		}
		purged = n
		if _, err := m.shares.DeleteByTargets(tc, ids, nil); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	for _, f := range files {
		bytesFreed += f.Size
		if f.StoragePath == "" {
			continue
		}
		if derr := m.blobs.Delete(ctx, f.StoragePath); derr != nil {
			m.log.Warn("failed to delete blob for purged file",
				zap.String("file_id", f.ID.Hex()),
				zap.String("storage_path", f.StoragePath),
				zap.Error(derr))
		}
	}

	return purged, bytesFreed, nil
}

func (m *Manager) purgeFolderRecords(ctx context.Context, folderIDs []primitive.ObjectID) (int64, error) {
	if len(folderIDs) == 0 {
		return 0, nil
	}

	var purged int64
	err := txn.Run(ctx, m.db, m.log, func(tc context.Context) error {
		n, err := m.folders.DeleteByIDs(tc, folderIDs)
		if err != nil {
			return err
		}
		purged = n
		if _, err := m.shares.DeleteByTargets(tc, nil, folderIDs); err != nil {
			return err
		}
		return nil
	})
	return purged, err
}

// requireActiveFolder fails with ErrInvalidState when the given parent
// folder is trashed or no longer exists. A nil parent means root, which
// is always a valid restore target.
func (m *Manager) requireActiveFolder(ctx context.Context, parentID *primitive.ObjectID) error {
	if parentID == nil {
		return nil
	}
	parent, err := m.folders.GetByID(ctx, *parentID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return fmt.Errorf("%w: containing folder no longer exists", ErrInvalidState)
		}
		return err
	}
	if parent.IsTrashed() {
		return fmt.Errorf("%w: containing folder is in the trash", ErrInvalidState)
	}
	return nil
}
