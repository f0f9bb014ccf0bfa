// Package bulk applies one action to many folders and files at once.
//
// A bulk request runs in two phases. The pre-check phase resolves every
// ID and records missing or foreign items as per-item failures; those are
// data in the result, not errors. The mutation phase then applies the
// action to the surviving items inside one transaction, so a crash or
// conflict never leaves a batch half-applied.
package bulk

import (
	"context"
	"errors"
	"time"

	"github.com/docvault/docvault/internal/app/store/file"
	"github.com/docvault/docvault/internal/app/store/folder"
	"github.com/docvault/docvault/internal/app/system/txn"
	"github.com/docvault/docvault/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Action is a bulk operation identifier.
type Action string

const (
	ActionTrash      Action = "trash"
	ActionFavorite   Action = "favorite"
	ActionUnfavorite Action = "unfavorite"
	ActionMove       Action = "move"
)

// Per-item failure reasons.
const (
	ReasonNotFound     = "not_found"
	ReasonNotOwner     = "not_owner"
	ReasonInvalidState = "invalid_state"
)

// Batch-level failures.
var (
	ErrUnknownAction = errors.New("unknown bulk action")
	ErrBadTarget     = errors.New("move target folder is missing, foreign, or trashed")
	ErrEmptyBatch    = errors.New("bulk request contains no items")
)

// Item identifies one resource in a batch.
type Item struct {
	ID     primitive.ObjectID `json:"id"`
	Folder bool               `json:"folder"`
}

// Input describes a bulk request.
type Input struct {
	Action Action
	Items  []Item

	// TargetFolderID is the destination for ActionMove. Nil moves items
	// to the root level.
	TargetFolderID *primitive.ObjectID
}

// ItemFailure records why one item was excluded from the batch.
type ItemFailure struct {
	Item   Item   `json:"item"`
	Reason string `json:"reason"`
}

// Result is the per-item breakdown of a bulk request.
type Result struct {
	Succeeded []Item        `json:"succeeded"`
	Failed    []ItemFailure `json:"failed"`
}

// Coordinator validates and applies bulk requests.
type Coordinator struct {
	db      *mongo.Database
	folders *folder.Store
	files   *file.Store
	log     *zap.Logger
}

// New creates a bulk coordinator.
func New(db *mongo.Database, folders *folder.Store, files *file.Store, log *zap.Logger) *Coordinator {
	return &Coordinator{
		db:      db,
		folders: folders,
		files:   files,
		log:     log,
	}
}

// Apply runs a bulk request for the given actor. Per-item problems are
// reported in the result; a returned error means the whole batch failed
// and nothing was applied.
func (c *Coordinator) Apply(ctx context.Context, actorID primitive.ObjectID, input Input) (Result, error) {
	var result Result

	switch input.Action {
	case ActionTrash, ActionFavorite, ActionUnfavorite, ActionMove:
	default:
		return result, ErrUnknownAction
	}
	if len(input.Items) == 0 {
		return result, ErrEmptyBatch
	}

	// The move destination is a single shared precondition; violating it
	// fails the entire batch rather than any one item.
	if input.Action == ActionMove && input.TargetFolderID != nil {
		target, err := c.folders.GetByID(ctx, *input.TargetFolderID)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return result, ErrBadTarget
			}
			return result, err
		}
		if target.OwnerID != actorID || target.IsTrashed() {
			return result, ErrBadTarget
		}
	}

	plan, failures := c.precheck(ctx, actorID, input)
	result.Failed = failures

	if len(plan.fileIDs) == 0 && len(plan.folders) == 0 {
		return result, nil
	}

	if err := c.mutate(ctx, input, plan); err != nil {
		return result, err
	}

	result.Succeeded = plan.items
	return result, nil
}

// checkedPlan is the set of items that survived the pre-check.
type checkedPlan struct {
	items   []Item
	fileIDs []primitive.ObjectID
	folders []models.Folder

	// descendants maps a folder in the plan to its full subtree, resolved
	// before the transaction opens.
	descendants map[primitive.ObjectID][]primitive.ObjectID
}

func (c *Coordinator) precheck(ctx context.Context, actorID primitive.ObjectID, input Input) (checkedPlan, []ItemFailure) {
	plan := checkedPlan{descendants: make(map[primitive.ObjectID][]primitive.ObjectID)}
	var failures []ItemFailure

	fail := func(item Item, reason string) {
		failures = append(failures, ItemFailure{Item: item, Reason: reason})
	}

	for _, item := range input.Items {
		if item.Folder {
			fo, err := c.folders.GetByID(ctx, item.ID)
			if err != nil {
				fail(item, ReasonNotFound)
				continue
			}
			if fo.OwnerID != actorID {
				fail(item, ReasonNotOwner)
				continue
			}
			if fo.IsTrashed() {
				fail(item, ReasonInvalidState)
				continue
			}
			if input.Action == ActionTrash {
				desc, err := c.folders.DescendantIDs(ctx, fo.ID)
				if err != nil {
					fail(item, ReasonNotFound)
					continue
				}
				plan.descendants[fo.ID] = desc
			}
			if input.Action == ActionMove && input.TargetFolderID != nil {
				// Reparenting a folder into its own subtree would turn the
				// parent chain into a cycle.
				inside, err := c.subtreeContains(ctx, fo.ID, *input.TargetFolderID)
				if err != nil {
					fail(item, ReasonNotFound)
					continue
				}
				if inside {
					fail(item, ReasonInvalidState)
					continue
				}
			}
			plan.folders = append(plan.folders, *fo)
			plan.items = append(plan.items, item)
			continue
		}

		f, err := c.files.GetByID(ctx, item.ID)
		if err != nil {
			fail(item, ReasonNotFound)
			continue
		}
		if f.OwnerID != actorID {
			fail(item, ReasonNotOwner)
			continue
		}
		if f.IsTrashed() {
			fail(item, ReasonInvalidState)
			continue
		}
		plan.fileIDs = append(plan.fileIDs, f.ID)
		plan.items = append(plan.items, item)
	}

	return plan, failures
}

// subtreeContains reports whether target is the folder itself or one of
// its descendants.
func (c *Coordinator) subtreeContains(ctx context.Context, folderID, target primitive.ObjectID) (bool, error) {
	if target == folderID {
		return true, nil
	}
	desc, err := c.folders.DescendantIDs(ctx, folderID)
	if err != nil {
		return false, err
	}
	for _, id := range desc {
		if id == target {
			return true, nil
		}
	}
	return false, nil
}

// mutate applies the action to the checked plan atomically.
func (c *Coordinator) mutate(ctx context.Context, input Input, plan checkedPlan) error {
	now := time.Now()

	return txn.Run(ctx, c.db, c.log, func(tc context.Context) error {
		switch input.Action {
		case ActionTrash:
			if _, err := c.files.MarkTrashedEach(tc, plan.fileIDs, now); err != nil {
				return err
			}
			for _, fo := range plan.folders {
				subtree := append([]primitive.ObjectID{fo.ID}, plan.descendants[fo.ID]...)
				if _, err := c.folders.MarkTrashed(tc, subtree, fo.ID, now); err != nil {
					return err
				}
				if _, err := c.files.TrashByFolders(tc, subtree, fo.ID, now); err != nil {
					return err
				}
			}

		case ActionFavorite, ActionUnfavorite:
			fav := input.Action == ActionFavorite
			for _, id := range plan.fileIDs {
				if err := c.files.SetFavorite(tc, id, fav); err != nil {
					return err
				}
			}
			for _, fo := range plan.folders {
				if err := c.folders.SetFavorite(tc, fo.ID, fav); err != nil {
					return err
				}
			}

		case ActionMove:
			if _, err := c.files.MoveToFolder(tc, plan.fileIDs, input.TargetFolderID); err != nil {
				return err
			}
			for _, fo := range plan.folders {
				if err := c.folders.MoveToParent(tc, fo.ID, input.TargetFolderID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
