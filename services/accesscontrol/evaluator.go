package accesscontrol

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/models"
	"github.com/koroglumert/oneuptimelocal-sub000/services"
)

// Evaluator decides, per operation, whether model-level and column-level
// access is allowed, injects tenant scoping into queries, applies row-level
// label scoping, and enforces billing-plan gates. It is stateless beyond its
// configuration and safe for concurrent use.
type Evaluator struct {
	registry       *Registry
	sanitizer      *Sanitizer
	billingEnabled bool
	logger         *zap.Logger
}

// NewEvaluator creates an evaluator. Billing gates only apply when
// billingEnabled is set and the caller context carries a current plan;
// the flag is threaded in from configuration, never read from the
// environment here.
func NewEvaluator(registry *Registry, billingEnabled bool, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		registry:       registry,
		sanitizer:      NewSanitizer(registry),
		billingEnabled: billingEnabled,
		logger:         logger,
	}
}

// Registry returns the descriptor registry the evaluator consults.
func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// Sanitizer returns the query/select sanitizer.
func (e *Evaluator) Sanitizer() *Sanitizer {
	return e.sanitizer
}

// CheckModelLevelPermission verifies the caller may perform op on the model
// at all: login requirement, permission-set intersection, then billing.
func (e *Evaluator) CheckModelLevelPermission(d *EntityDescriptor, caller *CallerContext, op Operation) error {
	if caller.IsRoot {
		return nil
	}

	if err := e.checkLogin(d, caller, op); err != nil {
		return err
	}

	need := d.PermissionsFor(op)
	have := caller.Permissions(caller.ProjectID)
	if !models.PermissionsIntersect(need, have) {
		return services.NewNotAuthorizedError(
			fmt.Sprintf("you do not have permission to %s %s; requires one of %v",
				op, d.Table, models.PermissionNames(need)))
	}

	return e.checkModelBilling(d, caller, op)
}

// checkLogin enforces the authentication requirement. API and system callers
// bypass the login check but still face the permission-set check; anonymous
// callers pass only when the model admits the Public token for op.
func (e *Evaluator) checkLogin(d *EntityDescriptor, caller *CallerContext, op Operation) error {
	if caller.IsLoggedIn() {
		return nil
	}
	if caller.Kind == CallerSystem || caller.Kind == CallerAPI {
		return nil
	}
	if caller.Kind == CallerAnonymous && d.PermitsPublic(op) {
		return nil
	}
	return services.NewNotAuthenticatedError(
		fmt.Sprintf("you must be logged in to %s %s", op, d.Table))
}

func (e *Evaluator) checkModelBilling(d *EntityDescriptor, caller *CallerContext, op Operation) error {
	if !e.billingEnabled || caller.Plan == nil {
		return nil
	}
	if required := d.ModelBilling[op]; required != "" {
		if !models.IsFeatureAccessibleOnPlan(required, *caller.Plan) {
			return services.NewPaymentRequiredError(
				fmt.Sprintf("%s on %s requires the %s plan or above", op, d.Table, required))
		}
	}
	if caller.SubscriptionUnpaid && !d.AllowUnpaidAccess {
		return services.ErrSubscriptionUnpaid
	}
	return nil
}

func (e *Evaluator) checkColumnBilling(d *EntityDescriptor, column string, caller *CallerContext, op Operation) error {
	if !e.billingEnabled || caller.Plan == nil {
		return nil
	}
	required := d.ColumnBillingFor(column, op)
	if required == "" {
		return nil
	}
	if !models.IsFeatureAccessibleOnPlan(required, *caller.Plan) {
		return services.NewPaymentRequiredError(
			fmt.Sprintf("column %q of %s requires the %s plan or above", column, d.Table, required))
	}
	return nil
}

// CheckDataColumnPermissions verifies, for create and update payloads, that
// every supplied column is writable by the caller. System columns, the
// generated slug column, and force-default create columns are always
// permitted.
func (e *Evaluator) CheckDataColumnPermissions(d *EntityDescriptor, data map[string]interface{}, caller *CallerContext, op Operation) error {
	if caller.IsRoot {
		return nil
	}

	have := caller.Permissions(caller.ProjectID)
	for column, value := range data {
		if value == nil || IsSystemColumn(column) {
			continue
		}
		if !d.HasColumn(column) {
			return services.NewInvalidColumnError(d.Table, column)
		}
		if column == d.SlugColumn {
			continue
		}
		if op == OperationCreate && d.ForceDefaultOnCreate[column] {
			continue
		}

		need, gated := d.ColumnPermissionsFor(column, op)
		if gated && !models.PermissionsIntersect(need, have) {
			return services.NewNotAuthorizedError(
				fmt.Sprintf("you do not have permission to %s column %q of %s; requires one of %v",
					op, column, d.Table, models.PermissionNames(need)))
		}
		if err := e.checkColumnBilling(d, column, caller, op); err != nil {
			return err
		}
	}
	return nil
}

// CheckReadPermission sanitizes and scopes a read. It returns the safe query
// disjunction, the sanitized projection, and the relation projection.
//
// A caller with no tenant selected but a global grant over several projects
// is resolved per-tenant (see ResolveAcrossTenants); the result is then the
// union of the per-tenant scoped queries.
func (e *Evaluator) CheckReadPermission(d *EntityDescriptor, rawQuery RawQuery, rawSelect RawSelect, caller *CallerContext) (SafeQuery, Select, RelationSelect, error) {
	// Structural validation runs first so a nonexistent column is always
	// reported as InvalidColumn, never as an authorization failure.
	q, err := e.sanitizer.SanitizeQuery(d, rawQuery)
	if err != nil {
		return nil, nil, nil, err
	}
	sel, rel, err := e.sanitizer.SanitizeSelect(d, rawSelect)
	if err != nil {
		return nil, nil, nil, err
	}

	q = q.Clone()

	// Root and system contexts skip authorization, but an explicitly
	// supplied tenant id is still injected to guard against accidental
	// cross-tenant root queries.
	if caller.IsRoot {
		e.injectTenantScope(d, q, caller)
		return SafeQuery{q}, sel, rel, nil
	}

	if err := e.checkLogin(d, caller, OperationRead); err != nil {
		return nil, nil, nil, err
	}

	switch {
	case d.TenantColumn != "" && caller.ProjectID != nil && !caller.IsMultiTenantRequest:
		q[d.TenantColumn] = Equal(*caller.ProjectID)

	case d.AllowUserQueryWithoutTenant && d.UserColumn != "" && caller.UserID != nil:
		q[d.UserColumn] = Equal(*caller.UserID)

	case d.TenantColumn != "" && caller.ProjectID == nil && caller.GlobalGrant != nil && len(caller.GlobalGrant.ProjectIDs) > 0:
		// Tenant-less request against a tenant-scoped model: answer it as
		// the union of every project the caller can actually read.
		safe, err := e.ResolveAcrossTenants(d, rawQuery, rawSelect, caller)
		if err != nil {
			return nil, nil, nil, err
		}
		return safe, sel, rel, nil
	}

	if !caller.IsMultiTenantRequest {
		if err := e.CheckModelLevelPermission(d, caller, OperationRead); err != nil {
			return nil, nil, nil, err
		}
		if err := e.CheckQueryPermission(d, q, caller); err != nil {
			return nil, nil, nil, err
		}
		e.applyLabelScope(d, q, caller)
		e.applyReadDelegation(d, q, caller)
		if len(sel) > 0 || len(rel) > 0 {
			if err := e.CheckSelectPermission(d, sel, rel, caller); err != nil {
				return nil, nil, nil, err
			}
		}
	}

	return SafeQuery{q}, sel, rel, nil
}

// injectTenantScope force-equals the tenant column when a tenant id is
// present and the request is not multi-tenant. The injected value wins over
// any caller-supplied predicate.
func (e *Evaluator) injectTenantScope(d *EntityDescriptor, q Query, caller *CallerContext) {
	if d.TenantColumn == "" || caller.ProjectID == nil || caller.IsMultiTenantRequest {
		return
	}
	q[d.TenantColumn] = Equal(*caller.ProjectID)
}

// CheckQueryPermission verifies every query key is a column the caller's
// permission set can read. Unknown columns are InvalidColumn; known but
// unreadable columns are NotAuthorized.
func (e *Evaluator) CheckQueryPermission(d *EntityDescriptor, q Query, caller *CallerContext) error {
	if caller.IsRoot {
		return nil
	}
	have := caller.Permissions(caller.ProjectID)
	for column := range q {
		if IsSystemColumn(column) {
			continue
		}
		if !d.HasColumn(column) {
			return services.NewInvalidColumnError(d.Table, column)
		}
		need, gated := d.ColumnPermissionsFor(column, OperationRead)
		if gated && !models.PermissionsIntersect(need, have) {
			return services.NewNotAuthorizedError(
				fmt.Sprintf("you do not have permission to query on column %q of %s; requires one of %v",
					column, d.Table, models.PermissionNames(need)))
		}
		if err := e.checkColumnBilling(d, column, caller, OperationRead); err != nil {
			return err
		}
	}
	return nil
}

// CheckSelectPermission verifies every selected column is caller-readable.
// For nested relation selects, each inner field must either be globally
// relation-readable on the related entity or readable by the caller there.
func (e *Evaluator) CheckSelectPermission(d *EntityDescriptor, sel Select, rel RelationSelect, caller *CallerContext) error {
	if caller.IsRoot {
		return nil
	}
	have := caller.Permissions(caller.ProjectID)

	for column := range sel {
		if IsSystemColumn(column) {
			continue
		}
		need, gated := d.ColumnPermissionsFor(column, OperationRead)
		if gated && !models.PermissionsIntersect(need, have) {
			return services.NewNotAuthorizedError(
				fmt.Sprintf("you do not have permission to select column %q of %s; requires one of %v",
					column, d.Table, models.PermissionNames(need)))
		}
		if err := e.checkColumnBilling(d, column, caller, OperationRead); err != nil {
			return err
		}
	}

	for relationColumn, inner := range rel {
		col, ok := d.Column(relationColumn)
		if !ok {
			return services.NewInvalidColumnError(d.Table, relationColumn)
		}
		related, ok := e.registry.Get(col.RelatedTable)
		if !ok {
			return services.NewBadDataError(
				fmt.Sprintf("relation column %q of %s targets unregistered table %q",
					relationColumn, d.Table, col.RelatedTable))
		}
		for field := range inner {
			if IsSystemColumn(field) || related.IsRelationReadableColumn(field) {
				continue
			}
			need, gated := related.ColumnPermissionsFor(field, OperationRead)
			if gated && !models.PermissionsIntersect(need, have) {
				return services.NewNotAuthorizedError(
					fmt.Sprintf("you do not have permission to select column %q of %s via %s; requires one of %v",
						field, related.Table, d.Table, models.PermissionNames(need)))
			}
		}
	}
	return nil
}

// allowedAccessControlIDs computes the label ids the caller's scoped grants
// permit for op. restricted is false when at least one matching grant is
// unscoped, meaning the caller may see every row the tenant scope admits.
func (e *Evaluator) allowedAccessControlIDs(d *EntityDescriptor, caller *CallerContext, op Operation) ([]uuid.UUID, bool) {
	grant := caller.GrantFor(caller.ProjectID)
	if grant == nil {
		return nil, false
	}

	need := d.PermissionsFor(op)
	var ids []uuid.UUID
	matched := false
	seen := make(map[uuid.UUID]bool)

	for _, gp := range grant.Permissions {
		if !models.PermissionsIntersect(need, []models.Permission{gp.Permission}) {
			continue
		}
		matched = true
		if len(gp.LabelIDs) == 0 {
			return nil, false
		}
		for _, id := range gp.LabelIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	if !matched {
		return nil, false
	}
	return ids, true
}

// applyLabelScope ANDs the caller's permitted label ids into the query when
// the model carries a row-level access-control column and every matching
// grant is label-scoped.
func (e *Evaluator) applyLabelScope(d *EntityDescriptor, q Query, caller *CallerContext) {
	if d.AccessControlColumn == "" {
		return
	}
	ids, restricted := e.allowedAccessControlIDs(d, caller, OperationRead)
	if !restricted {
		return
	}
	q[d.AccessControlColumn] = ContainsAny(ids)
}

// applyReadDelegation folds the related entity's permitted label ids into
// the query as a nested condition when the model declares cross-entity
// delegated read access.
func (e *Evaluator) applyReadDelegation(d *EntityDescriptor, q Query, caller *CallerContext) {
	deleg := d.CanAccessIfCanReadOn
	if deleg == nil {
		return
	}
	related, ok := e.registry.Get(deleg.Table)
	if !ok || related.AccessControlColumn == "" {
		return
	}
	ids, restricted := e.allowedAccessControlIDs(related, caller, OperationRead)
	if !restricted {
		return
	}
	q[deleg.RelationColumn] = Predicate{
		Op: OpSubQuery,
		Sub: &SubQuery{
			Table: related.Table,
			Where: Query{related.AccessControlColumn: ContainsAny(ids)},
		},
	}
}

// CheckCreatePermissions composes the create check: model-level plus data
// columns. Creates carry no query.
func (e *Evaluator) CheckCreatePermissions(d *EntityDescriptor, data map[string]interface{}, caller *CallerContext) error {
	if err := e.CheckModelLevelPermission(d, caller, OperationCreate); err != nil {
		return err
	}
	return e.CheckDataColumnPermissions(d, data, caller, OperationCreate)
}

// CheckUpdatePermissions composes the update check: model-level check,
// read-equivalent query scoping, and the data-column check. The returned
// safe query selects exactly the rows the caller may touch.
func (e *Evaluator) CheckUpdatePermissions(d *EntityDescriptor, rawQuery RawQuery, data map[string]interface{}, caller *CallerContext) (SafeQuery, error) {
	q, err := e.sanitizer.SanitizeQuery(d, rawQuery)
	if err != nil {
		return nil, err
	}
	q = q.Clone()

	if caller.IsRoot {
		e.injectTenantScope(d, q, caller)
		return SafeQuery{q}, nil
	}

	if err := e.CheckModelLevelPermission(d, caller, OperationUpdate); err != nil {
		return nil, err
	}
	if err := e.CheckDataColumnPermissions(d, data, caller, OperationUpdate); err != nil {
		return nil, err
	}

	switch {
	case d.TenantColumn != "" && caller.ProjectID != nil:
		q[d.TenantColumn] = Equal(*caller.ProjectID)
	case d.AllowUserQueryWithoutTenant && d.UserColumn != "" && caller.UserID != nil:
		q[d.UserColumn] = Equal(*caller.UserID)
	}

	if err := e.CheckQueryPermission(d, q, caller); err != nil {
		return nil, err
	}
	e.applyLabelScope(d, q, caller)

	return SafeQuery{q}, nil
}

// CheckDeletePermission composes the delete check: model-level check plus
// tenant-scope injection.
func (e *Evaluator) CheckDeletePermission(d *EntityDescriptor, rawQuery RawQuery, caller *CallerContext) (SafeQuery, error) {
	q, err := e.sanitizer.SanitizeQuery(d, rawQuery)
	if err != nil {
		return nil, err
	}
	q = q.Clone()

	if caller.IsRoot {
		e.injectTenantScope(d, q, caller)
		return SafeQuery{q}, nil
	}

	if err := e.CheckModelLevelPermission(d, caller, OperationDelete); err != nil {
		return nil, err
	}

	if d.TenantColumn != "" && caller.ProjectID != nil {
		q[d.TenantColumn] = Equal(*caller.ProjectID)
	}

	return SafeQuery{q}, nil
}
