package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/repositories"
	"github.com/koroglumert/oneuptimelocal-sub000/services"
	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
)

// Service is the descriptor-driven data access pipeline. Every operation
// runs the same way: sanitize, authorize, scope, then a fixed sequence of
// per-entity stages (defaults, required fields, limits, uniqueness, slug,
// crypto) before the storage driver is touched.
type Service struct {
	registry  *accesscontrol.Registry
	evaluator *accesscontrol.Evaluator
	store     repositories.EntityStore
	txMgr     repositories.TransactionManager
	cipher    *ColumnCipher
	notifier  WorkflowNotifier
	hooks     map[string]Hooks
	logger    *zap.Logger
}

// NewService creates the data service. The cipher may be nil when no
// descriptor declares encrypted columns.
func NewService(registry *accesscontrol.Registry, evaluator *accesscontrol.Evaluator, store repositories.EntityStore, txMgr repositories.TransactionManager, cipher *ColumnCipher, logger *zap.Logger) *Service {
	return &Service{
		registry:  registry,
		evaluator: evaluator,
		store:     store,
		txMgr:     txMgr,
		cipher:    cipher,
		hooks:     make(map[string]Hooks),
		logger:    logger,
	}
}

// RegisterHooks attaches per-entity hooks. Registering twice replaces.
func (s *Service) RegisterHooks(table string, h Hooks) {
	s.hooks[table] = h
}

// SetNotifier attaches the workflow notifier invoked after mutations.
func (s *Service) SetNotifier(n WorkflowNotifier) {
	s.notifier = n
}

func (s *Service) descriptor(table string) (*accesscontrol.EntityDescriptor, error) {
	d, ok := s.registry.Get(table)
	if !ok {
		return nil, services.NewBadDataError(fmt.Sprintf("unknown table %q", table))
	}
	return d, nil
}

// Create runs the create pipeline and returns the stored row.
func (s *Service) Create(ctx context.Context, table string, data map[string]interface{}, caller *accesscontrol.CallerContext) (row repositories.Row, err error) {
	defer func() {
		if err != nil {
			if h := s.hooks[table]; h.OnCreateError != nil {
				h.OnCreateError(ctx, err)
			}
		}
	}()

	d, err := s.descriptor(table)
	if err != nil {
		return nil, err
	}

	row = make(repositories.Row, len(data)+6)
	for k, v := range data {
		row[k] = v
	}

	// The before-create hook runs first: its mutations go through every
	// validation, permission and crypto stage like client input.
	if h := s.hooks[table]; h.BeforeCreate != nil {
		if err := h.BeforeCreate(ctx, row); err != nil {
			return nil, err
		}
	}

	s.applyDefaults(d, row)

	// The caller's tenant always wins over a client-supplied value.
	if d.TenantColumn != "" && caller.ProjectID != nil {
		row[d.TenantColumn] = *caller.ProjectID
	}

	if err := s.evaluator.CheckCreatePermissions(d, row, caller); err != nil {
		return nil, err
	}

	if err := checkRequiredColumns(d, row); err != nil {
		return nil, err
	}
	if err := s.checkItemLimit(ctx, d, row); err != nil {
		return nil, err
	}
	if err := s.checkUniqueness(ctx, d, row, nil); err != nil {
		return nil, err
	}

	s.applySlug(d, row)
	if err := s.applyCrypto(d, row); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, ok := row.ID(); !ok {
		row["id"] = uuid.New()
	}
	row["created_at"] = now
	row["updated_at"] = now
	if caller.UserID != nil && d.HasColumn("created_by_user_id") {
		if _, present := row["created_by_user_id"]; !present {
			row["created_by_user_id"] = *caller.UserID
		}
	}

	if err := s.store.Save(ctx, d, row); err != nil {
		return nil, err
	}

	// The row is already stored; a failed after-hook is logged, not returned.
	if h := s.hooks[table]; h.AfterCreate != nil {
		if err := h.AfterCreate(ctx, row); err != nil {
			s.logger.Warn("after-create hook failed",
				zap.String("table", table), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.OnCreated(ctx, table, row)
	}

	s.logger.Info("row created", zap.String("table", table))
	return row, nil
}

// Find runs the read pipeline: sanitize, authorize, scope, fetch, decrypt.
func (s *Service) Find(ctx context.Context, table string, rawQuery accesscontrol.RawQuery, rawSelect accesscontrol.RawSelect, opts repositories.FindOptions, caller *accesscontrol.CallerContext) (rows []repositories.Row, err error) {
	defer func() {
		if err != nil {
			if h := s.hooks[table]; h.OnFindError != nil {
				h.OnFindError(ctx, err)
			}
		}
	}()

	d, err := s.descriptor(table)
	if err != nil {
		return nil, err
	}

	if h := s.hooks[table]; h.BeforeFind != nil {
		if rawQuery == nil {
			rawQuery = accesscontrol.RawQuery{}
		}
		if err := h.BeforeFind(ctx, rawQuery); err != nil {
			return nil, err
		}
	}

	safe, sel, rel, err := s.evaluator.CheckReadPermission(d, rawQuery, rawSelect, caller)
	if err != nil {
		return nil, err
	}

	rows, err = s.store.Find(ctx, d, safe, sel.Columns(), rel, opts)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if err := s.decryptRow(d, row); err != nil {
			return nil, err
		}
	}

	// The rows are already fetched; a failed after-hook is logged, not returned.
	if h := s.hooks[table]; h.AfterFind != nil {
		if err := h.AfterFind(ctx, rows); err != nil {
			s.logger.Warn("after-find hook failed",
				zap.String("table", table), zap.Error(err))
		}
	}
	return rows, nil
}

// FindOne returns the first matching row, or NotFound.
func (s *Service) FindOne(ctx context.Context, table string, rawQuery accesscontrol.RawQuery, rawSelect accesscontrol.RawSelect, caller *accesscontrol.CallerContext) (repositories.Row, error) {
	rows, err := s.Find(ctx, table, rawQuery, rawSelect, repositories.FindOptions{Limit: 1}, caller)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, services.ErrEntityNotFound
	}
	return rows[0], nil
}

// Count returns the number of rows visible to the caller.
func (s *Service) Count(ctx context.Context, table string, rawQuery accesscontrol.RawQuery, caller *accesscontrol.CallerContext) (int64, error) {
	d, err := s.descriptor(table)
	if err != nil {
		return 0, err
	}

	safe, _, _, err := s.evaluator.CheckReadPermission(d, rawQuery, nil, caller)
	if err != nil {
		return 0, err
	}

	return s.store.Count(ctx, d, safe, repositories.FindOptions{})
}

// Update runs the update pipeline against every row the scoped query
// matches and returns how many rows changed.
func (s *Service) Update(ctx context.Context, table string, rawQuery accesscontrol.RawQuery, data map[string]interface{}, caller *accesscontrol.CallerContext) (count int64, err error) {
	defer func() {
		if err != nil {
			if h := s.hooks[table]; h.OnUpdateError != nil {
				h.OnUpdateError(ctx, err)
			}
		}
	}()

	d, err := s.descriptor(table)
	if err != nil {
		return 0, err
	}

	patch := make(repositories.Row, len(data))
	for k, v := range data {
		if accesscontrol.IsSystemColumn(k) || k == d.TenantColumn {
			continue
		}
		patch[k] = v
	}
	if len(patch) == 0 {
		return 0, services.NewBadDataError("no updatable columns in payload")
	}

	safe, err := s.evaluator.CheckUpdatePermissions(d, rawQuery, patch, caller)
	if err != nil {
		return 0, err
	}

	targets, err := s.store.Find(ctx, d, safe, []string{"id"}, nil, repositories.FindOptions{})
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(targets))
	idSet := make(map[string]bool, len(targets))
	for _, row := range targets {
		if id, ok := row["id"].(string); ok {
			ids = append(ids, id)
			idSet[id] = true
		}
	}

	// The before-update hook sees the patch ahead of the uniqueness and
	// crypto stages, so its mutations pass through both.
	if h := s.hooks[table]; h.BeforeUpdate != nil {
		if err := h.BeforeUpdate(ctx, ids, patch); err != nil {
			return 0, err
		}
	}

	tenantScope := tenantValue(safe, d.TenantColumn)
	if tenantScope != nil {
		patch[d.TenantColumn] = tenantScope
	}
	if err := s.checkUniqueness(ctx, d, patch, idSet); err != nil {
		return 0, err
	}
	delete(patch, d.TenantColumn)

	if err := s.applyCrypto(d, patch); err != nil {
		return 0, err
	}
	patch["updated_at"] = time.Now().UTC()

	err = s.txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		for _, id := range ids {
			row := make(repositories.Row, len(patch)+1)
			for k, v := range patch {
				row[k] = v
			}
			row["id"] = id
			if err := s.store.Save(txCtx, d, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// The rows are already written; a failed after-hook is logged, not returned.
	if h := s.hooks[table]; h.AfterUpdate != nil {
		if err := h.AfterUpdate(ctx, ids, patch); err != nil {
			s.logger.Warn("after-update hook failed",
				zap.String("table", table), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.OnUpdated(ctx, table, ids)
	}

	s.logger.Info("rows updated", zap.String("table", table), zap.Int("count", len(ids)))
	return int64(len(ids)), nil
}

// Delete soft-deletes every row the scoped query matches, stamping who
// deleted them, and returns how many rows were stamped.
func (s *Service) Delete(ctx context.Context, table string, rawQuery accesscontrol.RawQuery, caller *accesscontrol.CallerContext) (count int64, err error) {
	defer func() {
		if err != nil {
			if h := s.hooks[table]; h.OnDeleteError != nil {
				h.OnDeleteError(ctx, err)
			}
		}
	}()

	d, err := s.descriptor(table)
	if err != nil {
		return 0, err
	}

	safe, err := s.evaluator.CheckDeletePermission(d, rawQuery, caller)
	if err != nil {
		return 0, err
	}

	targets, err := s.store.Find(ctx, d, safe, []string{"id"}, nil, repositories.FindOptions{})
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(targets))
	for _, row := range targets {
		if id, ok := row["id"].(string); ok {
			ids = append(ids, id)
		}
	}

	if h := s.hooks[table]; h.BeforeDelete != nil {
		if err := h.BeforeDelete(ctx, ids); err != nil {
			return 0, err
		}
	}

	idVals := make([]interface{}, len(ids))
	for i, id := range ids {
		idVals[i] = id
	}
	affected, err := s.store.SoftDelete(ctx, d,
		accesscontrol.SafeQuery{{"id": accesscontrol.In(idVals)}}, caller.UserID)
	if err != nil {
		return 0, err
	}

	// The rows are already stamped; a failed after-hook is logged, not returned.
	if h := s.hooks[table]; h.AfterDelete != nil {
		if err := h.AfterDelete(ctx, ids); err != nil {
			s.logger.Warn("after-delete hook failed",
				zap.String("table", table), zap.Error(err))
		}
	}
	if s.notifier != nil {
		s.notifier.OnDeleted(ctx, table, ids)
	}

	s.logger.Info("rows soft deleted", zap.String("table", table), zap.Int64("count", affected))
	return affected, nil
}

// HardDeleteBy physically removes rows matching the query, soft-deleted
// included. Trusted internal callers only; the retention sweep is the one
// user.
func (s *Service) HardDeleteBy(ctx context.Context, table string, rawQuery accesscontrol.RawQuery) (int64, error) {
	d, err := s.descriptor(table)
	if err != nil {
		return 0, err
	}
	q, err := s.evaluator.Sanitizer().SanitizeQuery(d, rawQuery)
	if err != nil {
		return 0, err
	}
	return s.store.Delete(ctx, d, accesscontrol.SafeQuery{q})
}

// applyDefaults fills generated defaults. Force-default columns always take
// the generated value, even when the client supplied one.
func (s *Service) applyDefaults(d *accesscontrol.EntityDescriptor, row repositories.Row) {
	for col, gen := range d.Defaults {
		if d.ForceDefaultOnCreate[col] {
			row[col] = gen()
			continue
		}
		if v, ok := row[col]; !ok || v == nil {
			row[col] = gen()
		}
	}
}

func checkRequiredColumns(d *accesscontrol.EntityDescriptor, row repositories.Row) error {
	for _, col := range d.RequiredColumns {
		v, ok := row[col]
		if !ok || v == nil || v == "" {
			return services.NewBadDataError(
				fmt.Sprintf("column %q of %s is required", col, d.Table)).
				WithDetail("column", col)
		}
	}
	return nil
}

// checkItemLimit enforces the per-group row cap declared on the descriptor.
func (s *Service) checkItemLimit(ctx context.Context, d *accesscontrol.EntityDescriptor, row repositories.Row) error {
	limit := d.ItemLimit
	if limit == nil {
		return nil
	}
	group, ok := row[limit.GroupColumn]
	if !ok || group == nil {
		return nil
	}
	count, err := s.store.Count(ctx, d,
		accesscontrol.SafeQuery{{limit.GroupColumn: accesscontrol.Equal(group)}},
		repositories.FindOptions{})
	if err != nil {
		return err
	}
	if count >= limit.Max {
		return services.NewBadDataError(
			fmt.Sprintf("limit of %d %s reached", limit.Max, d.Table))
	}
	return nil
}

// checkUniqueness pre-checks unique columns and column groups before a
// write, so a duplicate fails with a named column instead of a raw
// constraint violation. excludeIDs holds rows being updated, which may keep
// their own values.
func (s *Service) checkUniqueness(ctx context.Context, d *accesscontrol.EntityDescriptor, row repositories.Row, excludeIDs map[string]bool) error {
	for _, col := range d.UniqueColumns {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		if err := s.checkUniqueGroup(ctx, d, accesscontrol.Query{col: accesscontrol.Equal(v)},
			col, v, excludeIDs); err != nil {
			return err
		}
	}

	for _, group := range d.UniqueColumnGroups {
		q := make(accesscontrol.Query, len(group))
		complete := true
		for _, col := range group {
			v, ok := row[col]
			if !ok || v == nil {
				complete = false
				break
			}
			q[col] = accesscontrol.Equal(v)
		}
		if !complete {
			continue
		}
		last := group[len(group)-1]
		if err := s.checkUniqueGroup(ctx, d, q, last, row[last], excludeIDs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkUniqueGroup(ctx context.Context, d *accesscontrol.EntityDescriptor, q accesscontrol.Query, col string, v interface{}, excludeIDs map[string]bool) error {
	existing, err := s.store.Find(ctx, d, accesscontrol.SafeQuery{q}, []string{"id"}, nil,
		repositories.FindOptions{})
	if err != nil {
		return err
	}
	for _, row := range existing {
		id, _ := row["id"].(string)
		if excludeIDs != nil && excludeIDs[id] {
			continue
		}
		return services.NewBadDataError(
			fmt.Sprintf("a %s with %s %q already exists", d.Table, col, fmt.Sprintf("%v", v))).
			WithDetail("column", col)
	}
	return nil
}

// applySlug generates the slug from its source column when absent.
func (s *Service) applySlug(d *accesscontrol.EntityDescriptor, row repositories.Row) {
	if d.SlugColumn == "" {
		return
	}
	if v, ok := row[d.SlugColumn].(string); ok && v != "" {
		return
	}
	src, _ := row[d.SlugSourceColumn].(string)
	row[d.SlugColumn] = Slugify(src)
}

// applyCrypto encrypts and hashes declared columns in place. Both
// transforms are idempotent on already-processed values.
func (s *Service) applyCrypto(d *accesscontrol.EntityDescriptor, row repositories.Row) error {
	for _, col := range d.EncryptedColumns {
		v, ok := row[col].(string)
		if !ok || v == "" {
			continue
		}
		if s.cipher == nil {
			return services.WrapInternal(
				fmt.Sprintf("column %q of %s requires encryption but no cipher is configured", col, d.Table), nil)
		}
		enc, err := s.cipher.Encrypt(v)
		if err != nil {
			return services.WrapInternal("column encryption failed", err)
		}
		row[col] = enc
	}

	for _, col := range d.HashedColumns {
		v, ok := row[col].(string)
		if !ok || v == "" {
			continue
		}
		hashed, err := HashValue(v)
		if err != nil {
			return services.WrapInternal("column hashing failed", err)
		}
		row[col] = hashed
	}
	return nil
}

// decryptRow reverses column encryption on fetched rows.
func (s *Service) decryptRow(d *accesscontrol.EntityDescriptor, row repositories.Row) error {
	if s.cipher == nil {
		return nil
	}
	for _, col := range d.EncryptedColumns {
		v, ok := row[col].(string)
		if !ok || !IsEncryptedValue(v) {
			continue
		}
		plain, err := s.cipher.Decrypt(v)
		if err != nil {
			return services.WrapInternal("column decryption failed", err)
		}
		row[col] = plain
	}
	return nil
}

// tenantValue extracts the injected tenant equality from a scoped query, if
// the scope pinned one.
func tenantValue(safe accesscontrol.SafeQuery, tenantColumn string) interface{} {
	if tenantColumn == "" || len(safe) != 1 {
		return nil
	}
	pred, ok := safe[0][tenantColumn]
	if !ok || pred.Op != accesscontrol.OpEqual {
		return nil
	}
	return pred.Value
}
