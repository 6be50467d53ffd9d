package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/repositories"
	"github.com/koroglumert/oneuptimelocal-sub000/services"
	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// EntityStore implements repositories.EntityStore on PostgreSQL. It only
// translates typed predicates into SQL; all policy decisions happened
// upstream in the access-control engine.
type EntityStore struct {
	db       *DB
	registry *accesscontrol.Registry
	logger   *zap.Logger
}

// NewEntityStore creates a new PostgreSQL entity store
func NewEntityStore(db *DB, registry *accesscontrol.Registry, logger *zap.Logger) repositories.EntityStore {
	return &EntityStore{
		db:       db,
		registry: registry,
		logger:   logger,
	}
}

// IsUniqueViolation reports whether the error is a unique constraint violation
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if ok := asPQError(err, &pqErr); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}

func asPQError(err error, target **pq.Error) bool {
	for err != nil {
		if pe, ok := err.(*pq.Error); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Find returns the rows matching the query disjunction
func (s *EntityStore) Find(ctx context.Context, d *accesscontrol.EntityDescriptor, where accesscontrol.SafeQuery, columns []string, relations accesscontrol.RelationSelect, opts repositories.FindOptions) ([]repositories.Row, error) {
	cols := s.projectedColumns(d, columns, relations)

	var args []interface{}
	whereSQL, err := s.buildWhere(d, where, !opts.IncludeSoftDeleted, &args)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s%s%s",
		strings.Join(cols, ", "), d.Table, whereSQL,
		s.orderBy(d, opts.Sort), s.limitOffset(opts))

	executor := GetExecutor(ctx, s.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", d.Table, err)
	}
	defer rows.Close()

	results, err := s.scanRows(d, rows, cols)
	if err != nil {
		return nil, err
	}

	if len(relations) > 0 && len(results) > 0 {
		if err := s.attachRelations(ctx, d, results, relations); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// Count returns the number of matching rows
func (s *EntityStore) Count(ctx context.Context, d *accesscontrol.EntityDescriptor, where accesscontrol.SafeQuery, opts repositories.FindOptions) (int64, error) {
	var args []interface{}
	whereSQL, err := s.buildWhere(d, where, !opts.IncludeSoftDeleted, &args)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", d.Table, whereSQL)

	executor := GetExecutor(ctx, s.db)
	var count int64
	if err := executor.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", d.Table, err)
	}
	return count, nil
}

// Save upserts one row keyed by id. Present columns are written; absent
// columns keep their stored values. The row version is bumped on update.
func (s *EntityStore) Save(ctx context.Context, d *accesscontrol.EntityDescriptor, row repositories.Row) error {
	if _, ok := row.ID(); !ok {
		return services.NewBadDataError(fmt.Sprintf("cannot save a %s row without an id", d.Table))
	}

	cols := make([]string, 0, len(row))
	for col := range row {
		if col == "version" {
			continue
		}
		if !s.isStoredColumn(d, col) {
			return services.NewInvalidColumnError(d.Table, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	var updates []string
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = storeValue(row[col])
		if col != "id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	updates = append(updates, fmt.Sprintf("version = %s.version + 1", d.Table))

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		d.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
		strings.Join(updates, ", "))

	executor := GetExecutor(ctx, s.db)
	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		if IsUniqueViolation(err) {
			return services.NewBadDataError(
				fmt.Sprintf("a %s with the same unique value already exists", d.Table))
		}
		return fmt.Errorf("failed to save %s: %w", d.Table, err)
	}

	s.logger.Debug("row saved", zap.String("table", d.Table))
	return nil
}

// SoftDelete stamps deleted_at and deleted_by_user_id on matching rows
func (s *EntityStore) SoftDelete(ctx context.Context, d *accesscontrol.EntityDescriptor, where accesscontrol.SafeQuery, deletedBy *uuid.UUID) (int64, error) {
	args := []interface{}{deletedBy}
	whereSQL, err := s.buildWhere(d, where, true, &args)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(
		"UPDATE %s SET deleted_at = CURRENT_TIMESTAMP, deleted_by_user_id = $1, version = version + 1 WHERE %s",
		d.Table, whereSQL)

	executor := GetExecutor(ctx, s.db)
	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to soft delete from %s: %w", d.Table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Debug("rows soft deleted", zap.String("table", d.Table), zap.Int64("count", affected))
	return affected, nil
}

// Delete physically removes matching rows, including soft-deleted ones
func (s *EntityStore) Delete(ctx context.Context, d *accesscontrol.EntityDescriptor, where accesscontrol.SafeQuery) (int64, error) {
	var args []interface{}
	whereSQL, err := s.buildWhere(d, where, false, &args)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s", d.Table, whereSQL)

	executor := GetExecutor(ctx, s.db)
	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", d.Table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Debug("rows deleted", zap.String("table", d.Table), zap.Int64("count", affected))
	return affected, nil
}

// isStoredColumn reports whether the column physically exists on the table.
// Relation query aliases are virtual and never stored.
func (s *EntityStore) isStoredColumn(d *accesscontrol.EntityDescriptor, name string) bool {
	col, ok := d.Column(name)
	return ok && col.Alias == ""
}

// projectedColumns resolves the SELECT list: the requested projection plus
// the id and any columns needed to attach relation fetches. An empty
// projection selects every stored column.
func (s *EntityStore) projectedColumns(d *accesscontrol.EntityDescriptor, columns []string, relations accesscontrol.RelationSelect) []string {
	set := make(map[string]bool)

	if len(columns) == 0 {
		for name, col := range d.Columns {
			if col.Alias == "" {
				set[name] = true
			}
		}
		set["id"] = true
		set["created_at"] = true
		set["updated_at"] = true
		set["version"] = true
	} else {
		for _, name := range columns {
			if col, ok := d.Column(name); ok && col.Alias != "" {
				name = col.Alias
			}
			if s.isStoredColumn(d, name) {
				set[name] = true
			}
		}
		set["id"] = true
	}

	for relCol := range relations {
		if col, ok := d.Column(relCol); ok && col.Alias != "" {
			set[col.Alias] = true
		} else if s.isStoredColumn(d, relCol) {
			set[relCol] = true
		}
	}

	cols := make([]string, 0, len(set))
	for c := range set {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// buildWhere renders the disjunction of scoped queries. Predicates within a
// query are ANDed, queries are ORed. Column iteration is sorted so the SQL
// is deterministic.
func (s *EntityStore) buildWhere(d *accesscontrol.EntityDescriptor, where accesscontrol.SafeQuery, excludeSoftDeleted bool, args *[]interface{}) (string, error) {
	var disjuncts []string
	for _, q := range where {
		if len(q) == 0 {
			continue
		}
		conj, err := s.buildConjunction(d, q, args)
		if err != nil {
			return "", err
		}
		disjuncts = append(disjuncts, conj)
	}

	var clause string
	switch len(disjuncts) {
	case 0:
		clause = "TRUE"
	case 1:
		clause = disjuncts[0]
	default:
		clause = "(" + strings.Join(disjuncts, " OR ") + ")"
	}

	if excludeSoftDeleted {
		clause += " AND deleted_at IS NULL"
	}
	return clause, nil
}

func (s *EntityStore) buildConjunction(d *accesscontrol.EntityDescriptor, q accesscontrol.Query, args *[]interface{}) (string, error) {
	cols := make([]string, 0, len(q))
	for col := range q {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	conds := make([]string, 0, len(cols))
	for _, col := range cols {
		cond, err := s.predicateSQL(col, q[col], args)
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
	}
	return "(" + strings.Join(conds, " AND ") + ")", nil
}

func (s *EntityStore) predicateSQL(col string, p accesscontrol.Predicate, args *[]interface{}) (string, error) {
	next := func(v interface{}) string {
		*args = append(*args, v)
		return fmt.Sprintf("$%d", len(*args))
	}

	switch p.Op {
	case accesscontrol.OpEqual:
		return fmt.Sprintf("%s = %s", col, next(scalarValue(p.Value))), nil
	case accesscontrol.OpNotEqual:
		return fmt.Sprintf("%s != %s", col, next(scalarValue(p.Value))), nil
	case accesscontrol.OpIn:
		return fmt.Sprintf("%s = ANY(%s)", col, next(arrayValue(p.Value))), nil
	case accesscontrol.OpIsNull:
		return fmt.Sprintf("%s IS NULL", col), nil
	case accesscontrol.OpNotNull:
		return fmt.Sprintf("%s IS NOT NULL", col), nil
	case accesscontrol.OpGreaterThan:
		return fmt.Sprintf("%s > %s", col, next(scalarValue(p.Value))), nil
	case accesscontrol.OpLessThan:
		return fmt.Sprintf("%s < %s", col, next(scalarValue(p.Value))), nil
	case accesscontrol.OpInBetween:
		lo := next(scalarValue(p.Value))
		hi := next(scalarValue(p.Upper))
		return fmt.Sprintf("%s BETWEEN %s AND %s", col, lo, hi), nil
	case accesscontrol.OpSearch:
		return fmt.Sprintf("%s ILIKE %s", col, next(fmt.Sprintf("%%%v%%", p.Value))), nil
	case accesscontrol.OpJSONContains:
		data, err := json.Marshal(p.Value)
		if err != nil {
			return "", services.NewBadDataError(
				fmt.Sprintf("value for column %q is not valid JSON", col))
		}
		return fmt.Sprintf("%s @> %s", col, next(string(data))), nil
	case accesscontrol.OpContainsAny:
		return fmt.Sprintf("%s && %s", col, next(arrayValue(p.Value))), nil
	case accesscontrol.OpSubQuery:
		return s.subQuerySQL(col, p.Sub, args)
	default:
		return "", services.NewBadDataError(
			fmt.Sprintf("unsupported query operator %q on column %q", p.Op, col))
	}
}

func (s *EntityStore) subQuerySQL(col string, sub *accesscontrol.SubQuery, args *[]interface{}) (string, error) {
	if sub == nil {
		return "", services.NewBadDataError(fmt.Sprintf("subquery on column %q has no body", col))
	}
	related, ok := s.registry.Get(sub.Table)
	if !ok {
		return "", services.NewBadDataError(fmt.Sprintf("subquery targets unregistered table %q", sub.Table))
	}
	inner, err := s.buildWhere(related, accesscontrol.SafeQuery{sub.Where}, true, args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s IN (SELECT id FROM %s WHERE %s)", col, sub.Table, inner), nil
}

func (s *EntityStore) orderBy(d *accesscontrol.EntityDescriptor, sorts []repositories.Sort) string {
	var parts []string
	for _, srt := range sorts {
		if !d.HasColumn(srt.Column) {
			continue
		}
		dir := "ASC"
		if srt.Descending {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", srt.Column, dir))
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func (s *EntityStore) limitOffset(opts repositories.FindOptions) string {
	var b strings.Builder
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	if opts.Skip > 0 {
		fmt.Fprintf(&b, " OFFSET %d", opts.Skip)
	}
	return b.String()
}

// scanRows scans the result set into dynamic rows. Entity-array columns
// scan through pq.StringArray; everything else through interface{} with
// byte slices normalized to strings.
func (s *EntityStore) scanRows(d *accesscontrol.EntityDescriptor, rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}, cols []string) ([]repositories.Row, error) {
	var results []repositories.Row
	for rows.Next() {
		dests := make([]interface{}, len(cols))
		arrays := make(map[int]*pq.StringArray)
		for i, col := range cols {
			if c, ok := d.Column(col); ok && c.Kind == accesscontrol.ColumnEntityArray {
				arr := &pq.StringArray{}
				arrays[i] = arr
				dests[i] = arr
			} else {
				dests[i] = new(interface{})
			}
		}

		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", d.Table, err)
		}

		row := make(repositories.Row, len(cols))
		for i, col := range cols {
			if arr, ok := arrays[i]; ok {
				row[col] = []string(*arr)
				continue
			}
			v := *(dests[i].(*interface{}))
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", d.Table, err)
	}
	return results, nil
}

// attachRelations runs one extra query per relation column and nests the
// related rows under the relation name.
func (s *EntityStore) attachRelations(ctx context.Context, d *accesscontrol.EntityDescriptor, results []repositories.Row, relations accesscontrol.RelationSelect) error {
	for relCol, sel := range relations {
		col, ok := d.Column(relCol)
		if !ok {
			continue
		}
		related, ok := s.registry.Get(col.RelatedTable)
		if !ok {
			return services.NewBadDataError(
				fmt.Sprintf("relation column %q targets unregistered table %q", relCol, col.RelatedTable))
		}

		storedCol := relCol
		if col.Alias != "" {
			storedCol = col.Alias
		}

		ids := collectRelationIDs(results, storedCol, col.Kind)
		if len(ids) == 0 {
			continue
		}

		byID, err := s.fetchRelated(ctx, related, sel, ids)
		if err != nil {
			return err
		}

		for _, row := range results {
			switch col.Kind {
			case accesscontrol.ColumnEntityArray:
				refs, _ := row[storedCol].([]string)
				nested := make([]repositories.Row, 0, len(refs))
				for _, id := range refs {
					if r, ok := byID[id]; ok {
						nested = append(nested, r)
					}
				}
				row[relCol] = nested
			default:
				if id, ok := row[storedCol].(string); ok {
					if r, ok := byID[id]; ok {
						row[relCol] = r
					}
				}
			}
		}
	}
	return nil
}

func collectRelationIDs(results []repositories.Row, storedCol string, kind accesscontrol.ColumnKind) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, row := range results {
		switch kind {
		case accesscontrol.ColumnEntityArray:
			refs, _ := row[storedCol].([]string)
			for _, id := range refs {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		default:
			if id, ok := row[storedCol].(string); ok && id != "" {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *EntityStore) fetchRelated(ctx context.Context, related *accesscontrol.EntityDescriptor, sel accesscontrol.Select, ids []string) (map[string]repositories.Row, error) {
	cols := sel.Columns()
	sort.Strings(cols)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ANY($1) AND deleted_at IS NULL",
		strings.Join(cols, ", "), related.Table)

	executor := GetExecutor(ctx, s.db)
	rows, err := executor.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch related %s: %w", related.Table, err)
	}
	defer rows.Close()

	fetched, err := s.scanRows(related, rows, cols)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]repositories.Row, len(fetched))
	for _, row := range fetched {
		if id, ok := row["id"].(string); ok {
			byID[id] = row
		}
	}
	return byID, nil
}

// scalarValue normalizes Go values to driver-friendly forms
func scalarValue(v interface{}) interface{} {
	if id, ok := v.(uuid.UUID); ok {
		return id.String()
	}
	return v
}

// arrayValue normalizes slices into pq array arguments
func arrayValue(v interface{}) interface{} {
	switch vals := v.(type) {
	case []uuid.UUID:
		out := make([]string, len(vals))
		for i, id := range vals {
			out[i] = id.String()
		}
		return pq.Array(out)
	case []string:
		return pq.Array(vals)
	case []interface{}:
		normalized := make([]interface{}, len(vals))
		for i, val := range vals {
			normalized[i] = scalarValue(val)
		}
		return pq.Array(normalized)
	default:
		return pq.Array(v)
	}
}

// storeValue converts a row value into a driver-storable form
func storeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []uuid.UUID, []string, []interface{}:
		return arrayValue(val)
	case map[string]interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(data)
	case uuid.UUID:
		return val.String()
	default:
		return v
	}
}
