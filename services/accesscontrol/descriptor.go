package accesscontrol

import (
	"fmt"
	"sort"

	"github.com/koroglumert/oneuptimelocal-sub000/models"
)

// Operation is one of the four CRUD operations the engine mediates.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ColumnKind distinguishes scalar columns from relation columns.
type ColumnKind string

const (
	ColumnScalar      ColumnKind = "scalar"
	ColumnEntity      ColumnKind = "entity"
	ColumnEntityArray ColumnKind = "entity_array"
)

// Column describes one column of an entity.
type Column struct {
	Kind ColumnKind

	// RelatedTable names the target entity for relation columns.
	RelatedTable string

	// Alias rewrites a many-to-one relation query key to its id column,
	// e.g. querying "monitor" on incidents becomes "monitor_id".
	Alias string
}

// systemColumns are always present on every entity and always permitted in
// data payloads and projections.
var systemColumns = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"updated_at":         true,
	"version":            true,
	"deleted_at":         true,
	"deleted_by_user_id": true,
}

// IsSystemColumn reports whether the column is an engine-managed column.
func IsSystemColumn(name string) bool {
	return systemColumns[name]
}

// AccessControl holds per-column required-permission sets.
type AccessControl struct {
	Read   []models.Permission
	Create []models.Permission
	Update []models.Permission
}

// BillingAccessControl holds per-column minimum billing plans.
type BillingAccessControl struct {
	Read   models.PlanType
	Create models.PlanType
	Update models.PlanType
}

// ItemLimit caps how many rows may share a grouping column value.
type ItemLimit struct {
	GroupColumn string
	Max         int64
}

// ReadDelegation grants read access to this entity when the caller can read
// the named related entity ("canAccessIfCanReadOn").
type ReadDelegation struct {
	Table          string
	RelationColumn string
}

// EntityDescriptor is the static per-entity policy and schema metadata the
// engine evaluates against. Descriptors are registered once at startup; the
// engine never reflects on live objects.
type EntityDescriptor struct {
	Table string

	// TenantColumn partitions rows by project. Empty for global entities.
	TenantColumn string

	// AccessControlColumn is the label (entity-array) column used for
	// row-level scoping. Empty when the entity has no label scoping.
	AccessControlColumn string

	// UserColumn, with AllowUserQueryWithoutTenant, lets a logged-in caller
	// query their own rows without selecting a tenant.
	UserColumn                  string
	AllowUserQueryWithoutTenant bool

	// AllowUnpaidAccess exempts the entity from the unpaid-subscription gate.
	AllowUnpaidAccess bool

	Columns map[string]Column

	ModelPermissions map[Operation][]models.Permission

	ColumnPermissions map[string]AccessControl

	ModelBilling map[Operation]models.PlanType

	ColumnBilling map[string]BillingAccessControl

	RequiredColumns []string

	UniqueColumns      []string
	UniqueColumnGroups [][]string

	// Defaults generate values for absent columns on create.
	Defaults map[string]func() interface{}

	// ForceDefaultOnCreate columns always take the generated default on
	// create, even when the client supplied a value.
	ForceDefaultOnCreate map[string]bool

	EncryptedColumns []string
	HashedColumns    []string

	// SlugSourceColumn/SlugColumn drive system slug generation.
	SlugSourceColumn string
	SlugColumn       string

	ItemLimit *ItemLimit

	CanAccessIfCanReadOn *ReadDelegation

	// RelationReadableColumns are always readable when this entity is
	// fetched through a relation select on another entity.
	RelationReadableColumns []string
}

// Column looks up a column by name. System columns resolve on every entity.
func (d *EntityDescriptor) Column(name string) (Column, bool) {
	if col, ok := d.Columns[name]; ok {
		return col, true
	}
	if IsSystemColumn(name) {
		return Column{Kind: ColumnScalar}, true
	}
	return Column{}, false
}

// HasColumn reports whether the entity has the named column.
func (d *EntityDescriptor) HasColumn(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// PermissionsFor returns the model-level required permissions for op.
func (d *EntityDescriptor) PermissionsFor(op Operation) []models.Permission {
	return d.ModelPermissions[op]
}

// ColumnPermissionsFor returns the required permissions for a column and
// operation. The second result is false when the column carries no explicit
// access control, meaning the model-level check governs.
func (d *EntityDescriptor) ColumnPermissionsFor(column string, op Operation) ([]models.Permission, bool) {
	ac, ok := d.ColumnPermissions[column]
	if !ok {
		return nil, false
	}
	switch op {
	case OperationRead:
		return ac.Read, ac.Read != nil
	case OperationCreate:
		return ac.Create, ac.Create != nil
	case OperationUpdate:
		return ac.Update, ac.Update != nil
	default:
		return nil, false
	}
}

// ColumnBillingFor returns the minimum plan for a column and operation, or
// empty when the column is not billing-gated for that operation.
func (d *EntityDescriptor) ColumnBillingFor(column string, op Operation) models.PlanType {
	bc, ok := d.ColumnBilling[column]
	if !ok {
		return ""
	}
	switch op {
	case OperationRead:
		return bc.Read
	case OperationCreate:
		return bc.Create
	case OperationUpdate:
		return bc.Update
	default:
		return ""
	}
}

// IsRelationReadableColumn reports whether the column is globally readable
// when this entity appears in a relation select.
func (d *EntityDescriptor) IsRelationReadableColumn(column string) bool {
	for _, c := range d.RelationReadableColumns {
		if c == column {
			return true
		}
	}
	return false
}

// PermitsPublic reports whether anonymous callers may perform op.
func (d *EntityDescriptor) PermitsPublic(op Operation) bool {
	for _, p := range d.PermissionsFor(op) {
		if p == models.PermissionPublic {
			return true
		}
	}
	return false
}

// Registry is the static descriptor catalog, built once at startup.
type Registry struct {
	descriptors map[string]*EntityDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]*EntityDescriptor)}
}

// Register adds a descriptor. Registering twice for the same table is a
// programming error.
func (r *Registry) Register(d *EntityDescriptor) error {
	if d == nil || d.Table == "" {
		return fmt.Errorf("descriptor must name a table")
	}
	if _, exists := r.descriptors[d.Table]; exists {
		return fmt.Errorf("descriptor for table %q already registered", d.Table)
	}
	r.descriptors[d.Table] = d
	return nil
}

// MustRegister registers a descriptor and panics on error. Intended for the
// startup catalog where a failure is a programming bug.
func (r *Registry) MustRegister(d *EntityDescriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get looks up the descriptor for a table.
func (r *Registry) Get(table string) (*EntityDescriptor, bool) {
	d, ok := r.descriptors[table]
	return d, ok
}

// Tables returns the registered table names in sorted order.
func (r *Registry) Tables() []string {
	tables := make([]string, 0, len(r.descriptors))
	for t := range r.descriptors {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}
