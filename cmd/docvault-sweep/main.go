// Command docvault-sweep runs a single retention sweep and exits.
//
// It shares configuration with the server (DOCVAULT_* environment variables,
// config files, flags), so it can run from cron or a one-off container against
// the same database and blob storage. The server's own periodic sweep and this
// command coordinate through the same lease, so overlapping runs are safe.
//
// Exit codes: 0 on success, 1 on error, 2 when another sweep holds the lease.
// A one-line summary goes to stdout so callers can tell an idle run
// ("nothing to purge") from one that removed records.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/docvault/docvault/internal/app/bootstrap"
	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/store/share"
	"github.com/docvault/docvault/internal/app/system/lifecycle"
	"github.com/docvault/docvault/internal/app/system/reaper"
)

func main() {
	days := flag.Int("days", 0, "retention window in days (0 uses the configured retention_days)")
	dryRun := flag.Bool("dry-run", false, "report what would be purged without purging")
	timeout := flag.Duration("timeout", 10*time.Minute, "abort the sweep after this long")
	flag.Parse()

	os.Exit(run(*days, *dryRun, *timeout))
}

func run(days int, dryRun bool, timeout time.Duration) int {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		return 1
	}
	defer logger.Sync()

	coreCfg, appCfg, err := bootstrap.LoadConfig(logger)
	if err != nil {
		logger.Error("config load failed", zap.Error(err))
		return 1
	}
	if err := bootstrap.ValidateConfig(coreCfg, appCfg, logger); err != nil {
		logger.Error("config validation failed", zap.Error(err))
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	deps, err := bootstrap.ConnectDB(ctx, coreCfg, appCfg, logger)
	if err != nil {
		logger.Error("backend connect failed", zap.Error(err))
		return 1
	}
	defer func() {
		if err := deps.MongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}()

	if days <= 0 {
		days = appCfg.RetentionDays
	}

	db := deps.MongoDatabase
	folders := folder.New(db)
	files := file.New(db)
	shares := share.New(db)
	lc := lifecycle.NewManager(db, folders, files, shares, deps.Blobs, logger)
	sweeper := reaper.New(db, folders, files, lc, logger)

	summary, err := sweeper.Sweep(ctx, reaper.Options{
		RetentionDays: days,
		DryRun:        dryRun,
	})
	if errors.Is(err, reaper.ErrSweepInProgress) {
		logger.Warn("another sweep holds the lease; nothing done")
		return 2
	}
	if err != nil {
		logger.Error("sweep failed", zap.Error(err))
		return 1
	}

	logger.Info("sweep complete",
		zap.Bool("dry_run", dryRun),
		zap.Int("days", days),
		zap.Int64("files_purged", summary.FilesPurged),
		zap.Int64("folders_purged", summary.FoldersPurged),
		zap.Int64("bytes_freed", summary.BytesFreed))
	fmt.Println(summaryLine(dryRun, summary))
	return 0
}

// summaryLine renders the stdout result line. An idle sweep reads
// differently from one that purged records.
func summaryLine(dryRun bool, s lifecycle.Summary) string {
	if s.FilesPurged == 0 && s.FoldersPurged == 0 {
		if dryRun {
			return "dry run: nothing to purge"
		}
		return "nothing to purge"
	}
	verb := "purged"
	if dryRun {
		verb = "dry run: would purge"
	}
	return fmt.Sprintf("%s %d files and %d folders, freeing %d bytes",
		verb, s.FilesPurged, s.FoldersPurged, s.BytesFreed)
}
