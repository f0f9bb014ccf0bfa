package bulk

import (
	"errors"
	"testing"
	"time"

	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	coord   *Coordinator
	folders *folder.Store
	files   *file.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	folders := folder.New(db)
	files := file.New(db)
	return &fixture{
		coord:   New(db, folders, files, zap.NewNop()),
		folders: folders,
		files:   files,
	}
}

func (fx *fixture) createFile(t *testing.T, ownerID primitive.ObjectID, name string) primitive.ObjectID {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	f, err := fx.files.Create(ctx, file.CreateInput{Name: name, OwnerID: ownerID})
	if err != nil {
		t.Fatalf("Create() file error = %v", err)
	}
	return f.ID
}

func fileItem(id primitive.ObjectID) Item   { return Item{ID: id} }
func folderItem(id primitive.ObjectID) Item { return Item{ID: id, Folder: true} }

func TestCoordinator_Validation(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()

	_, err := fx.coord.Apply(ctx, actorID, Input{Action: "shred", Items: []Item{fileItem(primitive.NewObjectID())}})
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Apply() with unknown action error = %v, want ErrUnknownAction", err)
	}

	_, err = fx.coord.Apply(ctx, actorID, Input{Action: ActionTrash})
	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Apply() with no items error = %v, want ErrEmptyBatch", err)
	}
}

func TestCoordinator_Trash_MixedOwnership(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()

	a := fx.createFile(t, actorID, "a.txt")
	b := fx.createFile(t, primitive.NewObjectID(), "b.txt") // someone else's
	c := fx.createFile(t, actorID, "c.txt")

	result, err := fx.coord.Apply(ctx, actorID, Input{
		Action: ActionTrash,
		Items:  []Item{fileItem(a), fileItem(b), fileItem(c)},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(result.Succeeded) != 2 {
		t.Errorf("Succeeded count = %d, want 2", len(result.Succeeded))
	}
	if len(result.Failed) != 1 {
		t.Fatalf("Failed count = %d, want 1", len(result.Failed))
	}
	if result.Failed[0].Item.ID != b || result.Failed[0].Reason != ReasonNotOwner {
		t.Errorf("Failed[0] = %+v, want item %v with reason %q", result.Failed[0], b, ReasonNotOwner)
	}

	// The valid items were mutated despite the per-item failure.
	for _, id := range []primitive.ObjectID{a, c} {
		got, _ := fx.files.GetByID(ctx, id)
		if !got.IsTrashed() {
			t.Errorf("file %v should be trashed", id)
		}
		if got.TrashCascadeID == nil || *got.TrashCascadeID != id {
			t.Errorf("bulk-trashed file %v should be its own cascade root", id)
		}
	}
	got, _ := fx.files.GetByID(ctx, b)
	if got.IsTrashed() {
		t.Error("foreign file must not be touched")
	}
}

func TestCoordinator_Trash_MissingAndTrashed(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()
	already := fx.createFile(t, actorID, "already.txt")
	fx.files.MarkTrashed(ctx, []primitive.ObjectID{already}, already, time.Now())

	result, err := fx.coord.Apply(ctx, actorID, Input{
		Action: ActionTrash,
		Items:  []Item{fileItem(primitive.NewObjectID()), fileItem(already)},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(result.Succeeded) != 0 {
		t.Errorf("Succeeded count = %d, want 0", len(result.Succeeded))
	}
	if len(result.Failed) != 2 {
		t.Fatalf("Failed count = %d, want 2", len(result.Failed))
	}
	if result.Failed[0].Reason != ReasonNotFound {
		t.Errorf("Failed[0].Reason = %q, want %q", result.Failed[0].Reason, ReasonNotFound)
	}
	if result.Failed[1].Reason != ReasonInvalidState {
		t.Errorf("Failed[1].Reason = %q, want %q", result.Failed[1].Reason, ReasonInvalidState)
	}
}

func TestCoordinator_Trash_FolderCascades(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()

	root, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "Root", OwnerID: actorID})
	child, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "Child", ParentID: &root.ID, OwnerID: actorID})
	inner, _ := fx.files.Create(ctx, file.CreateInput{Name: "inner.txt", FolderID: &child.ID, OwnerID: actorID})

	result, err := fx.coord.Apply(ctx, actorID, Input{
		Action: ActionTrash,
		Items:  []Item{folderItem(root.ID)},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Fatalf("Succeeded count = %d, want 1", len(result.Succeeded))
	}

	gotChild, _ := fx.folders.GetByID(ctx, child.ID)
	if !gotChild.IsTrashed() {
		t.Error("descendant folder should be trashed")
	}
	gotInner, _ := fx.files.GetByID(ctx, inner.ID)
	if !gotInner.IsTrashed() {
		t.Error("descendant file should be trashed")
	}
	if gotInner.TrashCascadeID == nil || *gotInner.TrashCascadeID != root.ID {
		t.Errorf("cascade marker = %v, want %v", gotInner.TrashCascadeID, root.ID)
	}
}

func TestCoordinator_Favorite(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()
	a := fx.createFile(t, actorID, "a.txt")
	fo, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "F", OwnerID: actorID})

	result, err := fx.coord.Apply(ctx, actorID, Input{
		Action: ActionFavorite,
		Items:  []Item{fileItem(a), folderItem(fo.ID)},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Succeeded) != 2 {
		t.Errorf("Succeeded count = %d, want 2", len(result.Succeeded))
	}

	gotFile, _ := fx.files.GetByID(ctx, a)
	if !gotFile.IsFavorite {
		t.Error("file should be favorite")
	}
	gotFolder, _ := fx.folders.GetByID(ctx, fo.ID)
	if !gotFolder.IsFavorite {
		t.Error("folder should be favorite")
	}

	if _, err := fx.coord.Apply(ctx, actorID, Input{
		Action: ActionUnfavorite,
		Items:  []Item{fileItem(a), folderItem(fo.ID)},
	}); err != nil {
		t.Fatalf("Apply() unfavorite error = %v", err)
	}

	gotFile, _ = fx.files.GetByID(ctx, a)
	if gotFile.IsFavorite {
		t.Error("file should no longer be favorite")
	}
}

func TestCoordinator_Move(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()
	target, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "Target", OwnerID: actorID})
	a := fx.createFile(t, actorID, "a.txt")
	sub, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "Sub", OwnerID: actorID})

	result, err := fx.coord.Apply(ctx, actorID, Input{
		Action:         ActionMove,
		Items:          []Item{fileItem(a), folderItem(sub.ID)},
		TargetFolderID: &target.ID,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Succeeded) != 2 {
		t.Errorf("Succeeded count = %d, want 2", len(result.Succeeded))
	}

	gotFile, _ := fx.files.GetByID(ctx, a)
	if gotFile.FolderID == nil || *gotFile.FolderID != target.ID {
		t.Errorf("file FolderID = %v, want %v", gotFile.FolderID, target.ID)
	}
	gotSub, _ := fx.folders.GetByID(ctx, sub.ID)
	if gotSub.ParentID == nil || *gotSub.ParentID != target.ID {
		t.Errorf("folder ParentID = %v, want %v", gotSub.ParentID, target.ID)
	}

	// Move to root.
	if _, err := fx.coord.Apply(ctx, actorID, Input{
		Action: ActionMove,
		Items:  []Item{fileItem(a)},
	}); err != nil {
		t.Fatalf("Apply() move-to-root error = %v", err)
	}
	gotFile, _ = fx.files.GetByID(ctx, a)
	if gotFile.FolderID != nil {
		t.Errorf("file FolderID = %v, want nil", gotFile.FolderID)
	}
}

func TestCoordinator_Move_RejectsOwnSubtree(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()
	parent, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "Parent", OwnerID: actorID})
	child, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "Child", ParentID: &parent.ID, OwnerID: actorID})
	grandchild, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "Grandchild", ParentID: &child.ID, OwnerID: actorID})

	// A folder cannot become its own parent.
	result, err := fx.coord.Apply(ctx, actorID, Input{
		Action:         ActionMove,
		Items:          []Item{folderItem(parent.ID)},
		TargetFolderID: &parent.ID,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0].Reason != ReasonInvalidState {
		t.Fatalf("Failed = %+v, want one failure with reason %q", result.Failed, ReasonInvalidState)
	}

	// Nor move under any of its descendants.
	for _, target := range []primitive.ObjectID{child.ID, grandchild.ID} {
		result, err = fx.coord.Apply(ctx, actorID, Input{
			Action:         ActionMove,
			Items:          []Item{folderItem(parent.ID)},
			TargetFolderID: &target,
		})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if len(result.Succeeded) != 0 {
			t.Errorf("move into %v succeeded, want per-item failure", target)
		}
		if len(result.Failed) != 1 || result.Failed[0].Reason != ReasonInvalidState {
			t.Errorf("Failed = %+v, want one failure with reason %q", result.Failed, ReasonInvalidState)
		}
	}

	// The hierarchy is untouched, so a subtree walk still terminates.
	got, _ := fx.folders.GetByID(ctx, parent.ID)
	if got.ParentID != nil {
		t.Errorf("parent ParentID = %v, want nil", got.ParentID)
	}
	desc, err := fx.folders.DescendantIDs(ctx, parent.ID)
	if err != nil {
		t.Fatalf("DescendantIDs() error = %v", err)
	}
	if len(desc) != 2 {
		t.Errorf("descendant count = %d, want 2", len(desc))
	}

	// A sibling destination is still fine.
	sibling, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "Sibling", OwnerID: actorID})
	result, err = fx.coord.Apply(ctx, actorID, Input{
		Action:         ActionMove,
		Items:          []Item{folderItem(child.ID)},
		TargetFolderID: &sibling.ID,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(result.Succeeded) != 1 {
		t.Fatalf("Succeeded count = %d, want 1", len(result.Succeeded))
	}
	gotChild, _ := fx.folders.GetByID(ctx, child.ID)
	if gotChild.ParentID == nil || *gotChild.ParentID != sibling.ID {
		t.Errorf("child ParentID = %v, want %v", gotChild.ParentID, sibling.ID)
	}
}

func TestCoordinator_Move_BadTargetFailsBatch(t *testing.T) {
	fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	actorID := primitive.NewObjectID()
	a := fx.createFile(t, actorID, "a.txt")

	// Missing target.
	missing := primitive.NewObjectID()
	_, err := fx.coord.Apply(ctx, actorID, Input{
		Action:         ActionMove,
		Items:          []Item{fileItem(a)},
		TargetFolderID: &missing,
	})
	if !errors.Is(err, ErrBadTarget) {
		t.Errorf("Apply() with missing target error = %v, want ErrBadTarget", err)
	}

	// Foreign target.
	foreign, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "Foreign", OwnerID: primitive.NewObjectID()})
	_, err = fx.coord.Apply(ctx, actorID, Input{
		Action:         ActionMove,
		Items:          []Item{fileItem(a)},
		TargetFolderID: &foreign.ID,
	})
	if !errors.Is(err, ErrBadTarget) {
		t.Errorf("Apply() with foreign target error = %v, want ErrBadTarget", err)
	}

	// Trashed target.
	trashed, _ := fx.folders.Create(ctx, folder.CreateInput{Name: "Trashed", OwnerID: actorID})
	fx.folders.MarkTrashed(ctx, []primitive.ObjectID{trashed.ID}, trashed.ID, time.Now())
	_, err = fx.coord.Apply(ctx, actorID, Input{
		Action:         ActionMove,
		Items:          []Item{fileItem(a)},
		TargetFolderID: &trashed.ID,
	})
	if !errors.Is(err, ErrBadTarget) {
		t.Errorf("Apply() with trashed target error = %v, want ErrBadTarget", err)
	}

	// Nothing moved.
	got, _ := fx.files.GetByID(ctx, a)
	if got.FolderID != nil {
		t.Error("file must not move when the batch fails")
	}
}
