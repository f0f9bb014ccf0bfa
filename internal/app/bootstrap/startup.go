// internal/app/bootstrap/startup.go
package bootstrap

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The email address users type to log in

import (
	"context"
	"errors"

	"github.com/dalemusser/waffle/config"
	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/store/share"
	userstore "github.com/docvault/docvault/internal/app/store/users"
	"github.com/docvault/docvault/internal/app/system/authutil"
	"github.com/docvault/docvault/internal/app/system/lifecycle"
	"github.com/docvault/docvault/internal/app/system/reaper"
	"github.com/docvault/docvault/internal/app/system/tasks"
	"github.com/docvault/docvault/internal/app/system/timeouts"
	"github.com/docvault/docvault/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// This is the place for one-time initialization that depends on having live
// database connections and fully loaded configuration. Unlike ConnectDB and
// EnsureSchema which focus on infrastructure, Startup is for application-level
// initialization.
//
// Returning a non-nil error will abort startup and prevent the server from
// starting. The context will be cancelled if the process is asked to shut
// down while Startup is running; honor it in any long-running work.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	// TIMEOUT_* environment variables override the default operation timeouts.
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("operation timeouts configured from environment", zap.Int("overrides", n))
	}

	// Seed admin user if configured
	if appCfg.SeedAdminEmail != "" {
		if err := ensureAdminUser(ctx, deps, appCfg, logger); err != nil {
			logger.Error("failed to seed admin user", zap.Error(err))
			return err
		}
	}

	startTaskRunner(appCfg, deps, logger)

	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner initializes and starts the background task runner.
func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	db := deps.MongoDatabase
	taskRunner = tasks.New(logger)

	taskRunner.Register(tasks.ExpiredShareDeactivateJob(db, logger))
	taskRunner.Register(tasks.StaleLockCleanupJob(db, logger))

	// Periodic retention sweep over expired trash. An interval of zero
	// disables it; operators can still sweep via the admin endpoint or
	// the docvault-sweep command.
	if appCfg.SweepInterval > 0 {
		folders := folder.New(db)
		files := file.New(db)
		shares := share.New(db)
		lc := lifecycle.NewManager(db, folders, files, shares, deps.Blobs, logger)
		sweeper := reaper.New(db, folders, files, lc, logger)
		taskRunner.Register(tasks.RetentionSweepJob(sweeper, appCfg.RetentionDays, appCfg.SweepInterval, logger))
	}

	taskRunner.Start()
}

// ensureAdminUser ensures an admin user exists with the given login_id.
// If a user exists with this login_id, ensure they have the admin role.
// If no user exists, create a new admin user with the configured password.
func ensureAdminUser(ctx context.Context, deps DBDeps, appCfg AppConfig, logger *zap.Logger) error {
	users := userstore.New(deps.MongoDatabase)
	loginID := appCfg.SeedAdminEmail

	existing, err := users.GetByLoginID(ctx, loginID)
	if err == nil {
		if existing.Role == models.RoleAdmin {
			logger.Debug("admin user already configured", zap.String("login_id", loginID))
			return nil
		}

		role := models.RoleAdmin
		if err := users.Update(ctx, existing.ID, userstore.UpdateInput{Role: &role}); err != nil {
			return err
		}
		logger.Info("promoted existing user to admin",
			zap.String("login_id", loginID),
			zap.String("user_id", existing.ID.Hex()),
			zap.String("previous_role", existing.Role))
		return nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}

	if appCfg.SeedAdminPassword == "" {
		return errors.New("seed_admin_password is required to create the seeded admin user")
	}
	hash, err := authutil.HashPassword(appCfg.SeedAdminPassword)
	if err != nil {
		return err
	}

	name := appCfg.SeedAdminName
	if name == "" {
		name = "Admin"
	}

	created, err := users.Create(ctx, userstore.CreateInput{
		LoginID:      loginID,
		DisplayName:  name,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return err
	}

	logger.Info("created admin user",
		zap.String("login_id", created.LoginID),
		zap.String("user_id", created.ID.Hex()))
	return nil
}
