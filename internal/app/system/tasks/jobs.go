// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/docvault/docvault/internal/app/system/reaper"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// RetentionSweepJob creates a job that purges trash older than the retention
// window. The sweeper takes a lease in the locks collection, so overlapping
// runs across instances are skipped rather than doubled.
func RetentionSweepJob(sweeper *reaper.Sweeper, retentionDays int, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "retention-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			summary, err := sweeper.Sweep(ctx, reaper.Options{RetentionDays: retentionDays})
			if errors.Is(err, reaper.ErrSweepInProgress) {
				logger.Debug("retention sweep skipped, another instance holds the lease")
				return nil
			}
			if err != nil {
				return err
			}
			if summary.FilesPurged > 0 || summary.FoldersPurged > 0 {
				logger.Info("retention sweep purged expired trash",
					zap.Int64("files_purged", summary.FilesPurged),
					zap.Int64("folders_purged", summary.FoldersPurged),
					zap.Int64("bytes_freed", summary.BytesFreed))
			}
			return nil
		},
	}
}

// ExpiredShareDeactivateJob creates a job that deactivates shares whose expiry
// has passed. Expired shares already fail verification; deactivating them keeps
// owner listings honest and lets the token index stay small.
func ExpiredShareDeactivateJob(db *mongo.Database, logger *zap.Logger) Job {
	return Job{
		Name:     "expired-share-deactivate",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			coll := db.Collection("shares")
			now := time.Now()
			result, err := coll.UpdateMany(ctx,
				bson.M{
					"is_active":  true,
					"expires_at": bson.M{"$ne": nil, "$lt": now},
				},
				bson.M{
					"$set": bson.M{
						"is_active":  false,
						"updated_at": now,
					},
				},
			)
			if err != nil {
				return err
			}
			if result.ModifiedCount > 0 {
				logger.Info("deactivated expired shares",
					zap.Int64("count", result.ModifiedCount))
			}
			return nil
		},
	}
}

// StaleLockCleanupJob creates a job that removes expired lease documents.
// The TTL index on locks.expires_at does this too, but Mongo's TTL monitor
// only runs once a minute and DocumentDB variants can lag further.
func StaleLockCleanupJob(db *mongo.Database, logger *zap.Logger) Job {
	return Job{
		Name:     "stale-lock-cleanup",
		Interval: 10 * time.Minute,
		Run: func(ctx context.Context) error {
			coll := db.Collection("locks")
			result, err := coll.DeleteMany(ctx, bson.M{
				"expires_at": bson.M{"$lt": time.Now()},
			})
			if err != nil {
				return err
			}
			if result.DeletedCount > 0 {
				logger.Info("cleaned up stale locks",
					zap.Int64("deleted", result.DeletedCount))
			}
			return nil
		},
	}
}
