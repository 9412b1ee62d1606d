// query.go: builder for the repository's text search language (AFTS dialect)
package repository

import (
	"fmt"
	"strings"
)

// reservedChars are the query-language characters that must be escaped inside
// quoted terms. The backslash is listed first so escaping is not applied twice.
const reservedChars = `\"+-&|!(){}[]^~*?:`

// Escape backslash-escapes every reserved query-language character in s.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(reservedChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Query accumulates AND-joined clauses of a text search query.
type Query struct {
	clauses []string
}

// NewQuery returns an empty query builder.
func NewQuery() *Query {
	return &Query{}
}

// Type restricts results to the given node type, e.g. "cm:content".
func (q *Query) Type(nodeType string) *Query {
	q.clauses = append(q.clauses, fmt.Sprintf(`TYPE:"%s"`, nodeType))
	return q
}

// Ancestor restricts results to descendants of the given node.
func (q *Query) Ancestor(nodeID string) *Query {
	q.clauses = append(q.clauses, fmt.Sprintf(`ANCESTOR:"workspace://SpacesStore/%s"`, Escape(nodeID)))
	return q
}

// Parent restricts results to direct children of the given node.
func (q *Query) Parent(nodeID string) *Query {
	q.clauses = append(q.clauses, fmt.Sprintf(`PARENT:"workspace://SpacesStore/%s"`, Escape(nodeID)))
	return q
}

// Field adds an exact-match clause on a property; the value is escaped.
func (q *Query) Field(name, value string) *Query {
	q.clauses = append(q.clauses, fmt.Sprintf(`=%s:"%s"`, name, Escape(value)))
	return q
}

// FieldAny adds an OR group matching any of the given values on one property.
func (q *Query) FieldAny(name string, values []string) *Query {
	if len(values) == 0 {
		return q
	}
	if len(values) == 1 {
		return q.Field(name, values[0])
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf(`=%s:"%s"`, name, Escape(v)))
	}
	q.clauses = append(q.clauses, "("+strings.Join(parts, " OR ")+")")
	return q
}

// NameContains adds a wildcard contains-match on cm:name. The term itself is
// escaped; the surrounding wildcards are intentional.
func (q *Query) NameContains(term string) *Query {
	q.clauses = append(q.clauses, fmt.Sprintf(`cm:name:"*%s*"`, Escape(term)))
	return q
}

// CreatedBetween adds an inclusive creation-date range clause. Bounds are
// yyyy-MM-dd strings; either may be empty, replaced by MIN/MAX.
func (q *Query) CreatedBetween(from, to string) *Query {
	if from == "" && to == "" {
		return q
	}
	lower := "MIN"
	if from != "" {
		lower = fmt.Sprintf(`"%s"`, Escape(from))
	}
	upper := "MAX"
	if to != "" {
		upper = fmt.Sprintf(`"%s"`, Escape(to))
	}
	q.clauses = append(q.clauses, fmt.Sprintf(`cm:created:[%s TO %s]`, lower, upper))
	return q
}

// IsFolder restricts results to folder nodes.
func (q *Query) IsFolder() *Query {
	q.clauses = append(q.clauses, `TYPE:"cm:folder"`)
	return q
}

// String renders the query with clauses joined by AND.
func (q *Query) String() string {
	return strings.Join(q.clauses, " AND ")
}
