package accesscontrol

import (
	"fmt"

	"github.com/koroglumert/oneuptimelocal-sub000/services"
)

// Sanitizer normalizes client-supplied query and select trees into safe,
// typed forms. Its output never references a column absent from the
// descriptor, and every predicate is a storage-agnostic tagged value.
type Sanitizer struct {
	registry *Registry
}

// NewSanitizer creates a sanitizer backed by the descriptor registry. The
// registry is consulted only for nested relation selects.
func NewSanitizer(registry *Registry) *Sanitizer {
	return &Sanitizer{registry: registry}
}

// SanitizeQuery converts a raw query into typed predicates. Unknown columns
// fail with InvalidColumn; this is a data error, never an authorization one.
func (s *Sanitizer) SanitizeQuery(d *EntityDescriptor, raw RawQuery) (Query, error) {
	q := make(Query, len(raw))
	for key, value := range raw {
		col, ok := d.Column(key)
		if !ok {
			return nil, services.NewInvalidColumnError(d.Table, key)
		}

		// Many-to-one relation columns are queried under the relation name
		// but stored under the id column.
		if col.Alias != "" {
			key = col.Alias
		}

		pred, err := s.sanitizeValue(d, key, col, value)
		if err != nil {
			return nil, err
		}
		q[key] = pred
	}
	return q, nil
}

func (s *Sanitizer) sanitizeValue(d *EntityDescriptor, key string, col Column, value interface{}) (Predicate, error) {
	if value == nil {
		return IsNull(), nil
	}

	switch v := value.(type) {
	case Predicate:
		return v, nil

	case map[string]interface{}:
		// Tagged operator construct.
		if tag, ok := v["_type"].(string); ok {
			return s.sanitizeTagged(d, key, tag, v)
		}
		// Equality-by-object shorthand for relation columns: {"id": "..."}.
		if id, ok := v["id"]; ok {
			return s.relationMatch(col, id), nil
		}
		if col.Kind == ColumnScalar {
			// JSON column containment.
			return Predicate{Op: OpJSONContains, Value: v}, nil
		}
		return Predicate{}, services.NewBadDataError(
			fmt.Sprintf("cannot match relation column %q without an id", key))

	case []interface{}:
		if col.Kind == ColumnEntityArray {
			return ContainsAny(v), nil
		}
		return In(v), nil

	default:
		return s.relationMatch(col, value), nil
	}
}

// relationMatch rewrites equality on relation columns into identifier
// matches; scalar columns keep plain equality.
func (s *Sanitizer) relationMatch(col Column, id interface{}) Predicate {
	if col.Kind == ColumnEntityArray {
		return ContainsAny([]interface{}{id})
	}
	return Equal(id)
}

func (s *Sanitizer) sanitizeTagged(d *EntityDescriptor, key, tag string, v map[string]interface{}) (Predicate, error) {
	value := v["value"]
	switch tag {
	case "EqualTo":
		return Equal(value), nil
	case "NotEqualTo":
		return NotEqual(value), nil
	case "GreaterThan":
		return GreaterThan(value), nil
	case "LessThan":
		return LessThan(value), nil
	case "InBetween":
		return InBetween(value, v["to"]), nil
	case "Search":
		text, ok := value.(string)
		if !ok {
			return Predicate{}, services.NewBadDataError(
				fmt.Sprintf("search on column %q requires a string value", key))
		}
		return Search(text), nil
	case "IsNull":
		return IsNull(), nil
	case "NotNull":
		return NotNull(), nil
	case "Includes":
		return In(value), nil
	case "JSONContains":
		return Predicate{Op: OpJSONContains, Value: value}, nil
	default:
		return Predicate{}, services.NewBadDataError(
			fmt.Sprintf("unknown query operator %q on column %q of %s", tag, key, d.Table))
	}
}

// ErrDeepRelationNotSupported is returned for selects nesting relations more
// than one level deep.
var ErrDeepRelationNotSupported = services.NewBadDataError(
	"relation selects deeper than one level are not supported")

// SanitizeSelect converts a raw select into a flat projection plus relation
// projections. Nested relation fetches always include the related entity's
// id; a full related-object fetch without explicit projection is rejected.
func (s *Sanitizer) SanitizeSelect(d *EntityDescriptor, raw RawSelect) (Select, RelationSelect, error) {
	sel := make(Select, len(raw))
	rel := make(RelationSelect)

	for key, value := range raw {
		col, ok := d.Column(key)
		if !ok {
			return nil, nil, services.NewInvalidColumnError(d.Table, key)
		}

		switch v := value.(type) {
		case bool:
			if v {
				sel[key] = true
			}

		case map[string]interface{}:
			if col.Kind == ColumnScalar {
				return nil, nil, services.NewBadDataError(
					fmt.Sprintf("column %q of %s is not a relation and cannot take a nested select", key, d.Table))
			}
			inner, err := s.sanitizeRelationSelect(col, key, v)
			if err != nil {
				return nil, nil, err
			}
			rel[key] = inner
			sel[key] = true

		case Select:
			if col.Kind == ColumnScalar {
				return nil, nil, services.NewBadDataError(
					fmt.Sprintf("column %q of %s is not a relation and cannot take a nested select", key, d.Table))
			}
			inner := make(Select, len(v)+1)
			for k, on := range v {
				if on {
					inner[k] = true
				}
			}
			inner["id"] = true
			rel[key] = inner
			sel[key] = true

		default:
			return nil, nil, services.NewBadDataError(
				fmt.Sprintf("select value for column %q of %s must be a boolean or nested map", key, d.Table))
		}
	}

	return sel, rel, nil
}

func (s *Sanitizer) sanitizeRelationSelect(col Column, key string, raw map[string]interface{}) (Select, error) {
	related, hasRelated := s.registry.Get(col.RelatedTable)

	inner := make(Select, len(raw)+1)
	for field, value := range raw {
		switch v := value.(type) {
		case bool:
			if !v {
				continue
			}
		case map[string]interface{}, Select, RawSelect:
			return nil, ErrDeepRelationNotSupported
		default:
			return nil, services.NewBadDataError(
				fmt.Sprintf("select value for %q on relation %q must be a boolean", field, key))
		}
		if hasRelated && !related.HasColumn(field) {
			return nil, services.NewInvalidColumnError(col.RelatedTable, field)
		}
		inner[field] = true
	}

	// The related identifier is always fetched so results stay addressable.
	inner["id"] = true
	return inner, nil
}
