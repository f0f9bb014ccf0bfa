// Package reaper permanently purges resources that have sat in the trash
// longer than the retention window.
//
// A sweep walks the trash in two passes: files that were trashed on their
// own, then folder cascades, each purged as the same unit it was trashed
// as. Sweeps take a short-lived lease in the locks collection so two
// schedulers cannot sweep the same trash at once; double-purging would be
// harmless, but the bytes-freed accounting would double too.
package reaper

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/system/lifecycle"
	"github.com/docvault/docvault/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ErrSweepInProgress is returned when another sweep holds the lease.
var ErrSweepInProgress = errors.New("a retention sweep is already running")

const (
	lockName  = "retention_sweep"
	lockTTL   = 15 * time.Minute
	dayLength = 24 * time.Hour
)

// Options configures a sweep.
type Options struct {
	// RetentionDays is how long a resource may sit in the trash before
	// it qualifies for purging.
	RetentionDays int

	// DryRun computes the summary without purging anything.
	DryRun bool
}

// Sweeper purges expired trash.
type Sweeper struct {
	locks     *mongo.Collection
	folders   *folder.Store
	files     *file.Store
	lifecycle *lifecycle.Manager
	log       *zap.Logger
}

// New creates a sweeper.
func New(db *mongo.Database, folders *folder.Store, files *file.Store, lc *lifecycle.Manager, log *zap.Logger) *Sweeper {
	return &Sweeper{
		locks:     db.Collection("locks"),
		folders:   folders,
		files:     files,
		lifecycle: lc,
		log:       log,
	}
}

// Sweep purges every resource trashed longer ago than the retention
// window. Folder cascades are purged as whole groups; a cascade qualifies
// when its root does, which by construction means every member shares the
// same deletion time. Re-running immediately after a successful sweep
// finds nothing further to purge.
func (s *Sweeper) Sweep(ctx context.Context, opts Options) (lifecycle.Summary, error) {
	var sum lifecycle.Summary

	release, err := s.acquireLease(ctx)
	if err != nil {
		return sum, err
	}
	defer release()

	cutoff := time.Now().Add(-time.Duration(opts.RetentionDays) * dayLength)

	expiredFiles, err := s.files.TrashedBefore(ctx, cutoff)
	if err != nil {
		return sum, err
	}
	expiredFolders, err := s.folders.TrashedBefore(ctx, cutoff)
	if err != nil {
		return sum, err
	}

	// Files trashed on their own are their own purge unit. Cascade
	// members are handled through their root folder below.
	var looseFiles []models.File
	for _, f := range expiredFiles {
		if f.TrashCascadeID != nil && *f.TrashCascadeID == f.ID {
			looseFiles = append(looseFiles, f)
		}
	}

	var cascadeRoots []primitive.ObjectID
	for _, fo := range expiredFolders {
		if fo.TrashCascadeID != nil && *fo.TrashCascadeID == fo.ID {
			cascadeRoots = append(cascadeRoots, fo.ID)
		}
	}

	if opts.DryRun {
		return s.preview(ctx, looseFiles, cascadeRoots)
	}

	filesPurged, bytesFreed, err := s.lifecycle.PurgeFileRecords(ctx, looseFiles)
	sum.FilesPurged += filesPurged
	sum.BytesFreed += bytesFreed
	if err != nil {
		return sum, err
	}

	for _, rootID := range cascadeRoots {
		foldersPurged, filesPurged, bytesFreed, err := s.lifecycle.PurgeCascade(ctx, rootID)
		sum.FoldersPurged += foldersPurged
		sum.FilesPurged += filesPurged
		sum.BytesFreed += bytesFreed
		if err != nil {
			return sum, err
		}
	}

	s.log.Info("retention sweep complete",
		zap.Int64("files_purged", sum.FilesPurged),
		zap.Int64("folders_purged", sum.FoldersPurged),
		zap.Int64("bytes_freed", sum.BytesFreed),
		zap.Int("retention_days", opts.RetentionDays))

	return sum, nil
}

// preview computes the summary a real sweep would produce.
func (s *Sweeper) preview(ctx context.Context, looseFiles []models.File, cascadeRoots []primitive.ObjectID) (lifecycle.Summary, error) {
	var sum lifecycle.Summary

	for _, f := range looseFiles {
		sum.FilesPurged++
		sum.BytesFreed += f.Size
	}

	for _, rootID := range cascadeRoots {
		folderIDs, err := s.folders.IDsByCascade(ctx, rootID)
		if err != nil {
			return sum, err
		}
		sum.FoldersPurged += int64(len(folderIDs))

		files, err := s.files.ListByCascade(ctx, rootID)
		if err != nil {
			return sum, err
		}
		for _, f := range files {
			sum.FilesPurged++
			sum.BytesFreed += f.Size
		}
	}

	return sum, nil
}

// acquireLease claims the sweep lock or fails with ErrSweepInProgress.
// The lease document carries an expiry so a crashed sweeper cannot wedge
// the schedule; a TTL index plus a cleanup job clear stale leases.
func (s *Sweeper) acquireLease(ctx context.Context) (func(), error) {
	holder := primitive.NewObjectID().Hex()
	now := time.Now()

	_, err := s.locks.UpdateOne(ctx,
		bson.M{"_id": lockName, "expires_at": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{
			"holder":      holder,
			"acquired_at": now,
			"expires_at":  now.Add(lockTTL),
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrSweepInProgress
		}
		return nil, err
	}

	release := func() {
		// Release against a background context so a canceled sweep still
		// frees the lease.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.locks.DeleteOne(rctx, bson.M{"_id": lockName, "holder": holder}); err != nil {
			s.log.Warn("failed to release sweep lease", zap.Error(err))
		}
	}
	return release, nil
}
