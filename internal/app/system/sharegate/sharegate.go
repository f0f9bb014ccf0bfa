// Package sharegate authorizes access to shared folders and files.
//
// A share is a token-addressed grant created by a resource's owner. The
// gateway decides whether a requester holding a token may read the target,
// working through a fixed sequence of checks so that a failing share never
// reveals more than it must: an unknown token and a trashed target are
// indistinguishable from the outside.
package sharegate

import (
	"context"
	"errors"
	"time"

	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/store/share"
	"github.com/docvault/docvault/internal/app/system/authutil"
	"github.com/docvault/docvault/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Typed failures for share creation and mutation.
var (
	ErrTargetNotFound = errors.New("share target not found")
	ErrNotOwner       = errors.New("actor does not own the share target")
	ErrBadTarget      = errors.New("share must point at exactly one file or folder")
)

// Status is the outcome of verifying a share token.
type Status string

const (
	StatusAuthorized       Status = "authorized"
	StatusNotFound         Status = "not_found"
	StatusInactive         Status = "inactive"
	StatusExpired          Status = "expired"
	StatusForbidden        Status = "forbidden"
	StatusPasswordRequired Status = "password_required"
	StatusInvalidPassword  Status = "invalid_password"
)

// Gateway evaluates share access and manages share records.
type Gateway struct {
	shares  *share.Store
	files   *file.Store
	folders *folder.Store
	log     *zap.Logger
}

// New creates a share gateway.
func New(shares *share.Store, files *file.Store, folders *folder.Store, log *zap.Logger) *Gateway {
	return &Gateway{
		shares:  shares,
		files:   files,
		folders: folders,
		log:     log,
	}
}

// CreateInput describes a new share. Exactly one of FileID or FolderID
// must be set. Password, if given, is stored only as a bcrypt hash.
type CreateInput struct {
	FileID     *primitive.ObjectID
	FolderID   *primitive.ObjectID
	Password   string
	ExpiresAt  *time.Time
	SharedWith []primitive.ObjectID
}

// Create makes a new share for a resource the actor owns. The target must
// still exist; a purged resource cannot be shared.
func (g *Gateway) Create(ctx context.Context, actorID primitive.ObjectID, input CreateInput) (*models.Share, error) {
	if (input.FileID == nil) == (input.FolderID == nil) {
		return nil, ErrBadTarget
	}

	ownerID, err := g.targetOwner(ctx, input.FileID, input.FolderID)
	if err != nil {
		return nil, err
	}
	if ownerID != actorID {
		return nil, ErrNotOwner
	}

	var passwordHash *string
	if input.Password != "" {
		hash, err := authutil.HashPassword(input.Password)
		if err != nil {
			return nil, err
		}
		passwordHash = &hash
	}

	return g.shares.Create(ctx, share.CreateInput{
		FileID:       input.FileID,
		FolderID:     input.FolderID,
		OwnerID:      actorID,
		PasswordHash: passwordHash,
		ExpiresAt:    input.ExpiresAt,
		SharedWith:   input.SharedWith,
	})
}

// VerifyInput carries everything known about the requester.
type VerifyInput struct {
	Token string

	// Password is the supplied share password, if any.
	Password string

	// RequesterID identifies an authenticated requester. Nil for
	// anonymous visitors.
	RequesterID *primitive.ObjectID

	// SessionVerified is true when the requester's session has already
	// passed this share's password check.
	SessionVerified bool
}

// Result is the outcome of a verification.
type Result struct {
	Status Status
	Share  *models.Share

	// File or Folder is the authorized target. Set only when Status is
	// StatusAuthorized.
	File   *models.File
	Folder *models.Folder

	// MarkSessionVerified is true when the supplied password matched and
	// the caller should record the verification in the session.
	MarkSessionVerified bool
}

// Verify runs the access checks for a share token, in order, stopping at
// the first failure. On success the share's access counter is bumped
// atomically and the target resource is returned.
func (g *Gateway) Verify(ctx context.Context, input VerifyInput) (Result, error) {
	sh, err := g.shares.GetByToken(ctx, input.Token)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return Result{Status: StatusNotFound}, nil
		}
		return Result{}, err
	}

	if !sh.IsActive {
		return Result{Status: StatusInactive, Share: sh}, nil
	}

	if sh.IsExpired(time.Now()) {
		return Result{Status: StatusExpired, Share: sh}, nil
	}

	// A trashed or purged target reads as if the share never existed, so
	// the trash state of a resource does not leak through its shares.
	targetFile, targetFolder, ok, err := g.activeTarget(ctx, sh)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Status: StatusNotFound, Share: sh}, nil
	}

	if sh.IsRestricted() {
		if input.RequesterID == nil || !contains(sh.SharedWith, *input.RequesterID) {
			return Result{Status: StatusForbidden, Share: sh}, nil
		}
	}

	markVerified := false
	if sh.HasPassword() && !input.SessionVerified {
		if input.Password == "" {
			return Result{Status: StatusPasswordRequired, Share: sh}, nil
		}
		if !authutil.CheckPassword(input.Password, *sh.PasswordHash) {
			return Result{Status: StatusInvalidPassword, Share: sh}, nil
		}
		markVerified = true
	}

	if err := g.shares.IncrementAccess(ctx, sh.ID); err != nil {
		// Access counting must not block an otherwise valid request.
		g.log.Warn("failed to increment share access count",
			zap.String("share_id", sh.ID.Hex()),
			zap.Error(err))
	}

	return Result{
		Status:              StatusAuthorized,
		Share:               sh,
		File:                targetFile,
		Folder:              targetFolder,
		MarkSessionVerified: markVerified,
	}, nil
}

// Deactivate turns off a share the actor owns.
func (g *Gateway) Deactivate(ctx context.Context, actorID, shareID primitive.ObjectID) error {
	if err := g.requireShareOwner(ctx, actorID, shareID); err != nil {
		return err
	}
	return g.shares.Deactivate(ctx, shareID)
}

// Activate turns a share the actor owns back on.
func (g *Gateway) Activate(ctx context.Context, actorID, shareID primitive.ObjectID) error {
	if err := g.requireShareOwner(ctx, actorID, shareID); err != nil {
		return err
	}
	return g.shares.Activate(ctx, shareID)
}

// SetPassword sets or clears (empty password) the password on a share the
// actor owns.
func (g *Gateway) SetPassword(ctx context.Context, actorID, shareID primitive.ObjectID, password string) error {
	if err := g.requireShareOwner(ctx, actorID, shareID); err != nil {
		return err
	}

	if password == "" {
		return g.shares.SetPassword(ctx, shareID, nil)
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		return err
	}
	return g.shares.SetPassword(ctx, shareID, &hash)
}

// SetExpiry sets or clears the expiry on a share the actor owns.
func (g *Gateway) SetExpiry(ctx context.Context, actorID, shareID primitive.ObjectID, expiresAt *time.Time) error {
	if err := g.requireShareOwner(ctx, actorID, shareID); err != nil {
		return err
	}
	return g.shares.SetExpiry(ctx, shareID, expiresAt)
}

// SetSharedWith replaces the recipient restriction on a share the actor
// owns. Nil opens the share to anyone holding the link.
func (g *Gateway) SetSharedWith(ctx context.Context, actorID, shareID primitive.ObjectID, userIDs []primitive.ObjectID) error {
	if err := g.requireShareOwner(ctx, actorID, shareID); err != nil {
		return err
	}
	return g.shares.SetSharedWith(ctx, shareID, userIDs)
}

// Delete removes a share the actor owns.
func (g *Gateway) Delete(ctx context.Context, actorID, shareID primitive.ObjectID) error {
	if err := g.requireShareOwner(ctx, actorID, shareID); err != nil {
		return err
	}
	return g.shares.Delete(ctx, shareID)
}

// ListByOwner returns the actor's shares, newest first.
func (g *Gateway) ListByOwner(ctx context.Context, actorID primitive.ObjectID) ([]models.Share, error) {
	return g.shares.ListByOwner(ctx, actorID)
}

func (g *Gateway) requireShareOwner(ctx context.Context, actorID, shareID primitive.ObjectID) error {
	sh, err := g.shares.GetByID(ctx, shareID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrTargetNotFound
		}
		return err
	}
	if sh.OwnerID != actorID {
		return ErrNotOwner
	}
	return nil
}

// targetOwner resolves the owner of a share target. A missing target maps
// to ErrTargetNotFound; a trashed target can still be shared, since the
// share only becomes usable once the target is restored.
func (g *Gateway) targetOwner(ctx context.Context, fileID, folderID *primitive.ObjectID) (primitive.ObjectID, error) {
	if fileID != nil {
		f, err := g.files.GetByID(ctx, *fileID)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return primitive.NilObjectID, ErrTargetNotFound
			}
			return primitive.NilObjectID, err
		}
		return f.OwnerID, nil
	}

	fo, err := g.folders.GetByID(ctx, *folderID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return primitive.NilObjectID, ErrTargetNotFound
		}
		return primitive.NilObjectID, err
	}
	return fo.OwnerID, nil
}

// activeTarget loads the share's target and reports whether it is active.
func (g *Gateway) activeTarget(ctx context.Context, sh *models.Share) (*models.File, *models.Folder, bool, error) {
	if sh.FileID != nil {
		f, err := g.files.GetByID(ctx, *sh.FileID)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, nil, false, nil
			}
			return nil, nil, false, err
		}
		if f.IsTrashed() {
			return nil, nil, false, nil
		}
		return f, nil, true, nil
	}

	if sh.FolderID != nil {
		fo, err := g.folders.GetByID(ctx, *sh.FolderID)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, nil, false, nil
			}
			return nil, nil, false, err
		}
		if fo.IsTrashed() {
			return nil, nil, false, nil
		}
		return nil, fo, true, nil
	}

	return nil, nil, false, nil
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
