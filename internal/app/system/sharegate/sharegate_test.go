package sharegate

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/store/share"
	"github.com/docvault/docvault/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	gateway *Gateway
	shares  *share.Store
	files   *file.Store
	folders *folder.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	files := file.New(db)
	folders := folder.New(db)
	shares := share.New(db)
	return &fixture{
		gateway: New(shares, files, folders, zap.NewNop()),
		shares:  shares,
		files:   files,
		folders: folders,
	}
}

func (fx *fixture) createFile(t *testing.T, ownerID primitive.ObjectID) primitive.ObjectID {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f, err := fx.files.Create(ctx, file.CreateInput{
		Name:    "shared.txt",
		Size:    42,
		OwnerID: ownerID,
	})
	if err != nil {
		t.Fatalf("Create() file error = %v", err)
	}
	return f.ID
}

func TestGateway_Create(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)

	sh, err := fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &fileID})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sh.Token == "" {
		t.Error("share should have a token")
	}
	if !sh.IsActive {
		t.Error("new share should be active")
	}
}

func TestGateway_Create_Rejections(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)
	folderID := primitive.NewObjectID()

	// Stranger cannot share someone else's file.
	_, err := fx.gateway.Create(ctx, primitive.NewObjectID(), CreateInput{FileID: &fileID})
	if !errors.Is(err, ErrNotOwner) {
		t.Errorf("Create() by stranger error = %v, want ErrNotOwner", err)
	}

	// Missing target.
	missing := primitive.NewObjectID()
	_, err = fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &missing})
	if !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Create() for missing target error = %v, want ErrTargetNotFound", err)
	}

	// Exactly one target must be set.
	_, err = fx.gateway.Create(ctx, ownerID, CreateInput{})
	if !errors.Is(err, ErrBadTarget) {
		t.Errorf("Create() without target error = %v, want ErrBadTarget", err)
	}
	_, err = fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &fileID, FolderID: &folderID})
	if !errors.Is(err, ErrBadTarget) {
		t.Errorf("Create() with two targets error = %v, want ErrBadTarget", err)
	}
}

func TestGateway_Create_HashesPassword(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)

	sh, err := fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &fileID, Password: "SuperSecret9!"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !sh.HasPassword() {
		t.Fatal("share should carry a password hash")
	}
	if *sh.PasswordHash == "SuperSecret9!" {
		t.Error("password must not be stored in clear text")
	}
}

func TestGateway_Verify_UnknownToken(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	res, err := fx.gateway.Verify(ctx, VerifyInput{Token: "no-such-token"})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if res.Status != StatusNotFound {
		t.Errorf("Status = %v, want %v", res.Status, StatusNotFound)
	}
}

func TestGateway_Verify_Inactive(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)
	sh, _ := fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &fileID})
	fx.shares.Deactivate(ctx, sh.ID)

	res, _ := fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token})
	if res.Status != StatusInactive {
		t.Errorf("Status = %v, want %v", res.Status, StatusInactive)
	}
}

func TestGateway_Verify_Expired(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)
	past := time.Now().Add(-time.Hour)
	sh, _ := fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &fileID, ExpiresAt: &past})

	res, _ := fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token})
	if res.Status != StatusExpired {
		t.Errorf("Status = %v, want %v", res.Status, StatusExpired)
	}
}

func TestGateway_Verify_TrashedTargetReadsAsNotFound(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)
	sh, _ := fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &fileID})

	fx.files.MarkTrashed(ctx, []primitive.ObjectID{fileID}, fileID, time.Now())

	res, _ := fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token})
	if res.Status != StatusNotFound {
		t.Errorf("Status = %v, want %v (trash state must not leak)", res.Status, StatusNotFound)
	}
}

func TestGateway_Verify_Restricted(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	friendID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)
	sh, _ := fx.gateway.Create(ctx, ownerID, CreateInput{
		FileID:     &fileID,
		SharedWith: []primitive.ObjectID{friendID},
	})

	// Anonymous requester gets Forbidden, not a password prompt.
	res, _ := fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token})
	if res.Status != StatusForbidden {
		t.Errorf("anonymous Status = %v, want %v", res.Status, StatusForbidden)
	}

	// Authenticated but not on the list.
	strangerID := primitive.NewObjectID()
	res, _ = fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token, RequesterID: &strangerID})
	if res.Status != StatusForbidden {
		t.Errorf("stranger Status = %v, want %v", res.Status, StatusForbidden)
	}

	// Listed requester passes.
	res, _ = fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token, RequesterID: &friendID})
	if res.Status != StatusAuthorized {
		t.Errorf("friend Status = %v, want %v", res.Status, StatusAuthorized)
	}
}

func TestGateway_Verify_Password(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)
	sh, _ := fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &fileID, Password: "SuperSecret9!"})

	// No password supplied.
	res, _ := fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token})
	if res.Status != StatusPasswordRequired {
		t.Errorf("Status = %v, want %v", res.Status, StatusPasswordRequired)
	}

	// Wrong password.
	res, _ = fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token, Password: "nope"})
	if res.Status != StatusInvalidPassword {
		t.Errorf("Status = %v, want %v", res.Status, StatusInvalidPassword)
	}

	// Correct password authorizes and asks the caller to mark the session.
	res, _ = fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token, Password: "SuperSecret9!"})
	if res.Status != StatusAuthorized {
		t.Fatalf("Status = %v, want %v", res.Status, StatusAuthorized)
	}
	if !res.MarkSessionVerified {
		t.Error("MarkSessionVerified should be true after a password match")
	}

	// A session already marked verified skips the password check.
	res, _ = fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token, SessionVerified: true})
	if res.Status != StatusAuthorized {
		t.Errorf("verified session Status = %v, want %v", res.Status, StatusAuthorized)
	}
	if res.MarkSessionVerified {
		t.Error("MarkSessionVerified should be false when the session was already verified")
	}
}

func TestGateway_Verify_CountsAccess(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)
	sh, _ := fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &fileID})

	for i := 0; i < 2; i++ {
		res, err := fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token})
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if res.Status != StatusAuthorized {
			t.Fatalf("Status = %v, want %v", res.Status, StatusAuthorized)
		}
		if res.File == nil || res.File.ID != fileID {
			t.Error("authorized result should carry the target file")
		}
	}

	got, _ := fx.shares.GetByID(ctx, sh.ID)
	if got.AccessCount != 2 {
		t.Errorf("AccessCount = %d, want 2", got.AccessCount)
	}

	// Failed verifications do not count.
	fx.shares.Deactivate(ctx, sh.ID)
	fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token})
	got, _ = fx.shares.GetByID(ctx, sh.ID)
	if got.AccessCount != 2 {
		t.Errorf("AccessCount after failed verify = %d, want 2", got.AccessCount)
	}
}

func TestGateway_Verify_ConcurrentAccessCount(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)
	sh, err := fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &fileID})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Simultaneous verifications must each land one increment; a lost
	// update here would undercount.
	const visitors = 16
	errs := make(chan error, visitors)
	var wg sync.WaitGroup
	for i := 0; i < visitors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token})
			if err != nil {
				errs <- err
				return
			}
			if res.Status != StatusAuthorized {
				errs <- errors.New("status " + string(res.Status))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Verify() failed: %v", err)
	}

	got, err := fx.shares.GetByID(ctx, sh.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.AccessCount != visitors {
		t.Errorf("AccessCount = %d, want %d", got.AccessCount, visitors)
	}
}

func TestGateway_Verify_FolderTarget(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	fo, err := fx.folders.Create(ctx, folder.CreateInput{Name: "Shared Folder", OwnerID: ownerID})
	if err != nil {
		t.Fatalf("Create() folder error = %v", err)
	}

	sh, err := fx.gateway.Create(ctx, ownerID, CreateInput{FolderID: &fo.ID})
	if err != nil {
		t.Fatalf("Create() share error = %v", err)
	}

	res, err := fx.gateway.Verify(ctx, VerifyInput{Token: sh.Token})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if res.Status != StatusAuthorized {
		t.Fatalf("Status = %v, want %v", res.Status, StatusAuthorized)
	}
	if res.Folder == nil || res.Folder.ID != fo.ID {
		t.Error("authorized result should carry the target folder")
	}
}

func TestGateway_OwnerMutations(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	strangerID := primitive.NewObjectID()
	fileID := fx.createFile(t, ownerID)
	sh, _ := fx.gateway.Create(ctx, ownerID, CreateInput{FileID: &fileID})

	if err := fx.gateway.Deactivate(ctx, strangerID, sh.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Deactivate() by stranger error = %v, want ErrNotOwner", err)
	}

	if err := fx.gateway.Deactivate(ctx, ownerID, sh.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	got, _ := fx.shares.GetByID(ctx, sh.ID)
	if got.IsActive {
		t.Error("share should be inactive")
	}

	if err := fx.gateway.Activate(ctx, ownerID, sh.ID); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if err := fx.gateway.SetPassword(ctx, ownerID, sh.ID, "NewSecret42!"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	got, _ = fx.shares.GetByID(ctx, sh.ID)
	if !got.HasPassword() {
		t.Error("share should carry a password")
	}

	if err := fx.gateway.SetPassword(ctx, ownerID, sh.ID, ""); err != nil {
		t.Fatalf("SetPassword(clear) error = %v", err)
	}
	got, _ = fx.shares.GetByID(ctx, sh.ID)
	if got.HasPassword() {
		t.Error("share password should be cleared")
	}

	future := time.Now().Add(24 * time.Hour)
	if err := fx.gateway.SetExpiry(ctx, ownerID, sh.ID, &future); err != nil {
		t.Fatalf("SetExpiry() error = %v", err)
	}

	if err := fx.gateway.Delete(ctx, ownerID, sh.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := fx.gateway.Delete(ctx, ownerID, sh.ID); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Delete() of missing share error = %v, want ErrTargetNotFound", err)
	}
}
