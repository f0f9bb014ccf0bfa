package folder

import (
	"testing"
	"time"

	"github.com/docvault/docvault/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	if store == nil {
		t.Fatal("New() returned nil")
	}
}

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	input := CreateInput{
		Name:        "Test Folder",
		OwnerID:     primitive.NewObjectID(),
		Description: "Test description",
	}

	folder, err := store.Create(ctx, input)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if folder.ID.IsZero() {
		t.Error("ID should not be zero")
	}
	if folder.Name != input.Name {
		t.Errorf("Name = %v, want %v", folder.Name, input.Name)
	}
	if folder.OwnerID != input.OwnerID {
		t.Errorf("OwnerID = %v, want %v", folder.OwnerID, input.OwnerID)
	}
	if folder.ParentID != nil {
		t.Error("ParentID should be nil for root folder")
	}
	if folder.IsTrashed() {
		t.Error("new folder should not be trashed")
	}
}

func TestStore_Create_Nested(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()

	parent, _ := store.Create(ctx, CreateInput{Name: "Parent", OwnerID: ownerID})

	child, err := store.Create(ctx, CreateInput{
		Name:     "Child",
		ParentID: &parent.ID,
		OwnerID:  ownerID,
	})
	if err != nil {
		t.Fatalf("Create() child error = %v", err)
	}

	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Errorf("ParentID = %v, want %v", child.ParentID, parent.ID)
	}
}

func TestStore_GetByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, _ := store.Create(ctx, CreateInput{
		Name:    "GetByID Test",
		OwnerID: primitive.NewObjectID(),
	})

	// Valid ID
	folder, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if folder.ID != created.ID {
		t.Errorf("ID = %v, want %v", folder.ID, created.ID)
	}

	// Invalid ID
	_, err = store.GetByID(ctx, primitive.NewObjectID())
	if err != mongo.ErrNoDocuments {
		t.Errorf("GetByID() for nonexistent ID error = %v, want %v", err, mongo.ErrNoDocuments)
	}
}

func TestStore_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, _ := store.Create(ctx, CreateInput{
		Name:        "Original",
		OwnerID:     primitive.NewObjectID(),
		Description: "Original description",
	})

	newName := "Updated"
	newDesc := "Updated description"
	if err := store.Update(ctx, created.ID, UpdateInput{Name: &newName, Description: &newDesc}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	folder, _ := store.GetByID(ctx, created.ID)
	if folder.Name != newName {
		t.Errorf("Name = %v, want %v", folder.Name, newName)
	}
	if folder.Description != newDesc {
		t.Errorf("Description = %v, want %v", folder.Description, newDesc)
	}
}

func TestStore_ListByParent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()

	for i := 0; i < 3; i++ {
		store.Create(ctx, CreateInput{
			Name:    "Root " + string(rune('A'+i)),
			OwnerID: ownerID,
		})
	}

	parent, _ := store.Create(ctx, CreateInput{Name: "Parent", OwnerID: ownerID})
	for i := 0; i < 2; i++ {
		store.Create(ctx, CreateInput{
			Name:     "Child " + string(rune('A'+i)),
			ParentID: &parent.ID,
			OwnerID:  ownerID,
		})
	}

	// Another user's folder should not appear.
	store.Create(ctx, CreateInput{Name: "Other", OwnerID: primitive.NewObjectID()})

	rootFolders, err := store.ListByParent(ctx, ownerID, nil, ListOptions{})
	if err != nil {
		t.Fatalf("ListByParent(nil) error = %v", err)
	}
	if len(rootFolders) != 4 { // 3 root + 1 parent
		t.Errorf("ListByParent(nil) count = %d, want 4", len(rootFolders))
	}

	childFolders, err := store.ListByParent(ctx, ownerID, &parent.ID, ListOptions{})
	if err != nil {
		t.Fatalf("ListByParent(parent.ID) error = %v", err)
	}
	if len(childFolders) != 2 {
		t.Errorf("ListByParent(parent.ID) count = %d, want 2", len(childFolders))
	}
}

func TestStore_ListByParent_Sorted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	names := []string{"Charlie", "Alpha", "Bravo"}

	for _, name := range names {
		store.Create(ctx, CreateInput{Name: name, OwnerID: ownerID})
	}

	folders, _ := store.ListByParent(ctx, ownerID, nil, ListOptions{SortBy: "name", SortOrder: 1})
	if folders[0].Name != "Alpha" || folders[1].Name != "Bravo" || folders[2].Name != "Charlie" {
		t.Error("Folders not sorted ascending by name")
	}

	folders, _ = store.ListByParent(ctx, ownerID, nil, ListOptions{SortBy: "name", SortOrder: -1})
	if folders[0].Name != "Charlie" || folders[1].Name != "Bravo" || folders[2].Name != "Alpha" {
		t.Error("Folders not sorted descending by name")
	}
}

func TestStore_ListByParent_ExcludesTrashed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()

	keep, _ := store.Create(ctx, CreateInput{Name: "Keep", OwnerID: ownerID})
	gone, _ := store.Create(ctx, CreateInput{Name: "Gone", OwnerID: ownerID})

	if _, err := store.MarkTrashed(ctx, []primitive.ObjectID{gone.ID}, gone.ID, time.Now()); err != nil {
		t.Fatalf("MarkTrashed() error = %v", err)
	}

	folders, err := store.ListByParent(ctx, ownerID, nil, ListOptions{})
	if err != nil {
		t.Fatalf("ListByParent() error = %v", err)
	}
	if len(folders) != 1 || folders[0].ID != keep.ID {
		t.Errorf("ListByParent() = %v, want only %v", folders, keep.ID)
	}
}

func TestStore_MarkTrashed_AndRestore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	root, _ := store.Create(ctx, CreateInput{Name: "Root", OwnerID: ownerID})
	child, _ := store.Create(ctx, CreateInput{Name: "Child", ParentID: &root.ID, OwnerID: ownerID})

	now := time.Now()
	n, err := store.MarkTrashed(ctx, []primitive.ObjectID{root.ID, child.ID}, root.ID, now)
	if err != nil {
		t.Fatalf("MarkTrashed() error = %v", err)
	}
	if n != 2 {
		t.Errorf("MarkTrashed() modified = %d, want 2", n)
	}

	got, _ := store.GetByID(ctx, child.ID)
	if !got.IsTrashed() {
		t.Error("child should be trashed")
	}
	if got.TrashCascadeID == nil || *got.TrashCascadeID != root.ID {
		t.Errorf("TrashCascadeID = %v, want %v", got.TrashCascadeID, root.ID)
	}

	// Trashing again is a no-op.
	n, _ = store.MarkTrashed(ctx, []primitive.ObjectID{root.ID}, root.ID, now)
	if n != 0 {
		t.Errorf("MarkTrashed() on trashed folder modified = %d, want 0", n)
	}

	n, err = store.RestoreByCascade(ctx, root.ID)
	if err != nil {
		t.Fatalf("RestoreByCascade() error = %v", err)
	}
	if n != 2 {
		t.Errorf("RestoreByCascade() modified = %d, want 2", n)
	}

	got, _ = store.GetByID(ctx, child.ID)
	if got.IsTrashed() {
		t.Error("child should be active after restore")
	}
	if got.TrashCascadeID != nil {
		t.Error("TrashCascadeID should be cleared after restore")
	}
}

func TestStore_ListTrashed_RootsOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	root, _ := store.Create(ctx, CreateInput{Name: "Root", OwnerID: ownerID})
	child, _ := store.Create(ctx, CreateInput{Name: "Child", ParentID: &root.ID, OwnerID: ownerID})

	store.MarkTrashed(ctx, []primitive.ObjectID{root.ID, child.ID}, root.ID, time.Now())

	all, err := store.ListTrashed(ctx, ownerID, false)
	if err != nil {
		t.Fatalf("ListTrashed() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListTrashed(all) count = %d, want 2", len(all))
	}

	roots, err := store.ListTrashed(ctx, ownerID, true)
	if err != nil {
		t.Fatalf("ListTrashed(rootsOnly) error = %v", err)
	}
	if len(roots) != 1 || roots[0].ID != root.ID {
		t.Errorf("ListTrashed(rootsOnly) = %v, want only the cascade root", roots)
	}
}

func TestStore_DescendantIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()

	// root > a > b, root > c
	root, _ := store.Create(ctx, CreateInput{Name: "Root", OwnerID: ownerID})
	a, _ := store.Create(ctx, CreateInput{Name: "A", ParentID: &root.ID, OwnerID: ownerID})
	b, _ := store.Create(ctx, CreateInput{Name: "B", ParentID: &a.ID, OwnerID: ownerID})
	c, _ := store.Create(ctx, CreateInput{Name: "C", ParentID: &root.ID, OwnerID: ownerID})

	// Unrelated tree should not leak in.
	store.Create(ctx, CreateInput{Name: "Elsewhere", OwnerID: ownerID})

	ids, err := store.DescendantIDs(ctx, root.ID)
	if err != nil {
		t.Fatalf("DescendantIDs() error = %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("DescendantIDs() count = %d, want 3", len(ids))
	}

	want := map[primitive.ObjectID]bool{a.ID: true, b.ID: true, c.ID: true}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("DescendantIDs() returned unexpected ID %v", id)
		}
	}

	// Leaf has no descendants.
	ids, _ = store.DescendantIDs(ctx, b.ID)
	if len(ids) != 0 {
		t.Errorf("DescendantIDs(leaf) count = %d, want 0", len(ids))
	}
}

func TestStore_TrashedBefore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()

	old, _ := store.Create(ctx, CreateInput{Name: "Old", OwnerID: ownerID})
	recent, _ := store.Create(ctx, CreateInput{Name: "Recent", OwnerID: ownerID})

	store.MarkTrashed(ctx, []primitive.ObjectID{old.ID}, old.ID, time.Now().Add(-48*time.Hour))
	store.MarkTrashed(ctx, []primitive.ObjectID{recent.ID}, recent.ID, time.Now())

	expired, err := store.TrashedBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("TrashedBefore() error = %v", err)
	}
	if len(expired) != 1 || expired[0].ID != old.ID {
		t.Errorf("TrashedBefore() = %v, want only the old folder", expired)
	}
}

func TestStore_DeleteByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	a, _ := store.Create(ctx, CreateInput{Name: "A", OwnerID: ownerID})
	b, _ := store.Create(ctx, CreateInput{Name: "B", OwnerID: ownerID})

	n, err := store.DeleteByIDs(ctx, []primitive.ObjectID{a.ID, b.ID})
	if err != nil {
		t.Fatalf("DeleteByIDs() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteByIDs() deleted = %d, want 2", n)
	}

	if _, err := store.GetByID(ctx, a.ID); err != mongo.ErrNoDocuments {
		t.Errorf("GetByID() after delete error = %v, want %v", err, mongo.ErrNoDocuments)
	}

	n, _ = store.DeleteByIDs(ctx, nil)
	if n != 0 {
		t.Errorf("DeleteByIDs(nil) deleted = %d, want 0", n)
	}
}

func TestStore_SetFavorite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	created, _ := store.Create(ctx, CreateInput{Name: "Fav", OwnerID: ownerID})

	if err := store.SetFavorite(ctx, created.ID, true); err != nil {
		t.Fatalf("SetFavorite() error = %v", err)
	}

	favs, err := store.ListFavorites(ctx, ownerID)
	if err != nil {
		t.Fatalf("ListFavorites() error = %v", err)
	}
	if len(favs) != 1 || favs[0].ID != created.ID {
		t.Errorf("ListFavorites() = %v, want the favorited folder", favs)
	}

	store.SetFavorite(ctx, created.ID, false)
	favs, _ = store.ListFavorites(ctx, ownerID)
	if len(favs) != 0 {
		t.Errorf("ListFavorites() after unfavorite count = %d, want 0", len(favs))
	}
}

func TestStore_GetAncestors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()

	root, _ := store.Create(ctx, CreateInput{Name: "Root", OwnerID: ownerID})
	level1, _ := store.Create(ctx, CreateInput{Name: "Level1", ParentID: &root.ID, OwnerID: ownerID})
	level2, _ := store.Create(ctx, CreateInput{Name: "Level2", ParentID: &level1.ID, OwnerID: ownerID})
	level3, _ := store.Create(ctx, CreateInput{Name: "Level3", ParentID: &level2.ID, OwnerID: ownerID})

	ancestors, err := store.GetAncestors(ctx, level3.ID)
	if err != nil {
		t.Fatalf("GetAncestors() error = %v", err)
	}
	if len(ancestors) != 3 {
		t.Fatalf("GetAncestors() count = %d, want 3", len(ancestors))
	}

	if ancestors[0].ID != root.ID {
		t.Error("First ancestor should be root")
	}
	if ancestors[1].ID != level1.ID {
		t.Error("Second ancestor should be level1")
	}
	if ancestors[2].ID != level2.ID {
		t.Error("Third ancestor should be level2")
	}
}

func TestStore_NameExistsInParent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()

	created, _ := store.Create(ctx, CreateInput{Name: "Existing", OwnerID: ownerID})

	exists, err := store.NameExistsInParent(ctx, ownerID, "Existing", nil, nil)
	if err != nil {
		t.Fatalf("NameExistsInParent() error = %v", err)
	}
	if !exists {
		t.Error("NameExistsInParent() should return true for existing name")
	}

	// Case insensitive
	exists, _ = store.NameExistsInParent(ctx, ownerID, "EXISTING", nil, nil)
	if !exists {
		t.Error("NameExistsInParent() should be case-insensitive")
	}

	// Different name
	exists, _ = store.NameExistsInParent(ctx, ownerID, "Different", nil, nil)
	if exists {
		t.Error("NameExistsInParent() should return false for different name")
	}

	// Exclude self
	exists, _ = store.NameExistsInParent(ctx, ownerID, "Existing", nil, &created.ID)
	if exists {
		t.Error("NameExistsInParent() should return false when excluding self")
	}

	// Trashed folders do not block reuse of a name.
	store.MarkTrashed(ctx, []primitive.ObjectID{created.ID}, created.ID, time.Now())
	exists, _ = store.NameExistsInParent(ctx, ownerID, "Existing", nil, nil)
	if exists {
		t.Error("NameExistsInParent() should ignore trashed folders")
	}
}

func TestStore_HasActiveChildren(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()

	parent, _ := store.Create(ctx, CreateInput{Name: "Parent", OwnerID: ownerID})
	empty, _ := store.Create(ctx, CreateInput{Name: "Empty", OwnerID: ownerID})
	child, _ := store.Create(ctx, CreateInput{Name: "Child", ParentID: &parent.ID, OwnerID: ownerID})

	has, err := store.HasActiveChildren(ctx, parent.ID)
	if err != nil {
		t.Fatalf("HasActiveChildren() error = %v", err)
	}
	if !has {
		t.Error("HasActiveChildren() should return true for parent with children")
	}

	has, _ = store.HasActiveChildren(ctx, empty.ID)
	if has {
		t.Error("HasActiveChildren() should return false for empty folder")
	}

	// Trashed children do not count.
	store.MarkTrashed(ctx, []primitive.ObjectID{child.ID}, child.ID, time.Now())
	has, _ = store.HasActiveChildren(ctx, parent.ID)
	if has {
		t.Error("HasActiveChildren() should ignore trashed children")
	}
}
