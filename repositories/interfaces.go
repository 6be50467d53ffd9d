package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
)

// Row is one stored entity as a column-to-value map. The dynamic shape
// matches the descriptor-driven engine: the set of columns a caller sees
// depends on their permissions, not on a fixed struct.
type Row map[string]interface{}

// ID returns the row's id column parsed as a UUID, if present.
func (r Row) ID() (uuid.UUID, bool) {
	switch v := r["id"].(type) {
	case uuid.UUID:
		return v, true
	case string:
		id, err := uuid.Parse(v)
		return id, err == nil
	case []byte:
		id, err := uuid.ParseBytes(v)
		return id, err == nil
	default:
		return uuid.Nil, false
	}
}

// Sort orders results by one column.
type Sort struct {
	Column     string
	Descending bool
}

// FindOptions carries pagination and ordering for reads.
type FindOptions struct {
	Sort  []Sort
	Skip  int
	Limit int

	// IncludeSoftDeleted disables the implicit deleted_at IS NULL filter.
	// Only trusted internal callers set it.
	IncludeSoftDeleted bool
}

// EntityStore is the storage driver the data service runs on. Queries
// arrive already sanitized and scoped; the store only translates typed
// predicates, it never applies policy.
type EntityStore interface {
	// Find returns the rows matching the query disjunction, projected to
	// columns, with one-level relation fetches attached under the relation
	// column names.
	Find(ctx context.Context, d *accesscontrol.EntityDescriptor, where accesscontrol.SafeQuery, columns []string, relations accesscontrol.RelationSelect, opts FindOptions) ([]Row, error)

	// Count returns the number of matching rows.
	Count(ctx context.Context, d *accesscontrol.EntityDescriptor, where accesscontrol.SafeQuery, opts FindOptions) (int64, error)

	// Save upserts one row keyed by id. Present columns are written;
	// absent columns keep their stored values.
	Save(ctx context.Context, d *accesscontrol.EntityDescriptor, row Row) error

	// SoftDelete stamps deleted_at and deleted_by_user_id on matching rows
	// and returns how many were stamped.
	SoftDelete(ctx context.Context, d *accesscontrol.EntityDescriptor, where accesscontrol.SafeQuery, deletedBy *uuid.UUID) (int64, error)

	// Delete physically removes matching rows. Reserved for retention
	// sweeps of rows already soft-deleted.
	Delete(ctx context.Context, d *accesscontrol.EntityDescriptor, where accesscontrol.SafeQuery) (int64, error)
}

// TransactionManager manages database transactions.
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Automatically commits if the function succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction.
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}
