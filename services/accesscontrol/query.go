package accesscontrol

// PredicateOp tags a typed query predicate. Predicates are storage-driver
// agnostic; translation to SQL happens in the repository layer.
type PredicateOp string

const (
	OpEqual        PredicateOp = "EqualTo"
	OpNotEqual     PredicateOp = "NotEqualTo"
	OpIn           PredicateOp = "In"
	OpIsNull       PredicateOp = "IsNull"
	OpNotNull      PredicateOp = "NotNull"
	OpGreaterThan  PredicateOp = "GreaterThan"
	OpLessThan     PredicateOp = "LessThan"
	OpInBetween    PredicateOp = "InBetween"
	OpSearch       PredicateOp = "Search"
	OpJSONContains PredicateOp = "JSONContains"

	// OpContainsAny matches array columns overlapping the given id set.
	OpContainsAny PredicateOp = "ContainsAny"

	// OpSubQuery matches rows whose column value appears in a nested query
	// on a related table. Used for cross-entity delegated read access.
	OpSubQuery PredicateOp = "SubQuery"
)

// SubQuery is a nested condition on a related table.
type SubQuery struct {
	Table string
	Where Query
}

// Predicate is one typed condition on a column.
type Predicate struct {
	Op    PredicateOp
	Value interface{}
	Upper interface{} // upper bound for InBetween
	Sub   *SubQuery
}

// Predicate constructors used by the engine and by in-process callers.

func Equal(v interface{}) Predicate       { return Predicate{Op: OpEqual, Value: v} }
func NotEqual(v interface{}) Predicate    { return Predicate{Op: OpNotEqual, Value: v} }
func In(vals interface{}) Predicate       { return Predicate{Op: OpIn, Value: vals} }
func IsNull() Predicate                   { return Predicate{Op: OpIsNull} }
func NotNull() Predicate                  { return Predicate{Op: OpNotNull} }
func GreaterThan(v interface{}) Predicate { return Predicate{Op: OpGreaterThan, Value: v} }
func LessThan(v interface{}) Predicate    { return Predicate{Op: OpLessThan, Value: v} }
func Search(s string) Predicate           { return Predicate{Op: OpSearch, Value: s} }

func InBetween(lo, hi interface{}) Predicate {
	return Predicate{Op: OpInBetween, Value: lo, Upper: hi}
}

func ContainsAny(ids interface{}) Predicate {
	return Predicate{Op: OpContainsAny, Value: ids}
}

// Query is a conjunction of per-column predicates.
type Query map[string]Predicate

// Clone returns a shallow copy so scope injection never mutates the input.
func (q Query) Clone() Query {
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// SafeQuery is a disjunction of sanitized, scoped queries. Single-tenant
// operations produce one element; multi-tenant resolution produces one per
// permitted tenant.
type SafeQuery []Query

// RawQuery is the untyped, client-supplied query tree before sanitization.
type RawQuery map[string]interface{}

// RawSelect is the untyped, client-supplied projection before sanitization.
// Values are booleans, or one-level nested maps for relation projections.
type RawSelect map[string]interface{}

// Select is a sanitized flat projection.
type Select map[string]bool

// Columns returns the selected column names. Order is unspecified.
func (s Select) Columns() []string {
	cols := make([]string, 0, len(s))
	for c, on := range s {
		if on {
			cols = append(cols, c)
		}
	}
	return cols
}

// RelationSelect maps relation columns to the projection requested on the
// related entity. Exactly one level deep.
type RelationSelect map[string]Select
