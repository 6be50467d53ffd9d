package datastore

import (
	"context"

	"github.com/koroglumert/oneuptimelocal-sub000/repositories"
	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
)

// Hooks are per-entity extension points the pipeline invokes around
// operations. All hooks are optional; a nil hook is skipped.
//
// Before-hooks run ahead of the remaining pipeline stages and may mutate
// their arguments in place; returning an error aborts the operation.
// After-hooks run once the operation has succeeded; their errors are
// logged, never returned. Error hooks observe a failed operation; the
// original error reaches the caller regardless of what the hook does.
type Hooks struct {
	BeforeCreate  func(ctx context.Context, row repositories.Row) error
	AfterCreate   func(ctx context.Context, row repositories.Row) error
	OnCreateError func(ctx context.Context, err error)

	BeforeUpdate  func(ctx context.Context, ids []string, data repositories.Row) error
	AfterUpdate   func(ctx context.Context, ids []string, data repositories.Row) error
	OnUpdateError func(ctx context.Context, err error)

	BeforeDelete  func(ctx context.Context, ids []string) error
	AfterDelete   func(ctx context.Context, ids []string) error
	OnDeleteError func(ctx context.Context, err error)

	BeforeFind  func(ctx context.Context, query accesscontrol.RawQuery) error
	AfterFind   func(ctx context.Context, rows []repositories.Row) error
	OnFindError func(ctx context.Context, err error)
}

// WorkflowNotifier receives change events after successful mutations.
// Implementations must not block; the pipeline calls them synchronously
// after commit and ignores their errors beyond logging.
type WorkflowNotifier interface {
	OnCreated(ctx context.Context, table string, row repositories.Row)
	OnUpdated(ctx context.Context, table string, ids []string)
	OnDeleted(ctx context.Context, table string, ids []string)
}
