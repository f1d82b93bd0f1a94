// Package querysql compiles queryir predicates to parameterized SQLite
// fragments over JSON documents.
//
// CRITICAL: values and JSON paths are always bound as parameters, never
// interpolated into the SQL text.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/objgate/internal/queryir"
)

// DefaultColumn is the column holding the JSON document.
const DefaultColumn = "doc"

// Compiler compiles queryir predicates against a JSON document column.
type Compiler struct {
	// Column names the TEXT column holding the canonical JSON document.
	Column string
}

// NewCompiler creates a Compiler over DefaultColumn.
func NewCompiler() *Compiler {
	return &Compiler{Column: DefaultColumn}
}

func (c *Compiler) column() string {
	if c.Column == "" {
		return DefaultColumn
	}
	return c.Column
}

// Where compiles p to a boolean SQL expression and its parameters.
// A nil predicate compiles to an always-true expression.
func (c *Compiler) Where(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}
	if err := queryir.Validate(p); err != nil {
		return "", nil, err
	}
	return c.compilePredicate(p)
}

func (c *Compiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.Compare:
		return c.compileCompare(pred)
	case *queryir.Compare:
		return c.compileCompare(*pred)
	case queryir.Exists:
		return fmt.Sprintf("json_type(%s, ?) IS NOT NULL", c.column()), []any{JSONPath(pred.Field)}, nil
	case *queryir.Exists:
		return c.compilePredicate(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles to "json_extract(doc, ?) = ?". A null literal
// matches a missing or null field.
func (c *Compiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	path := JSONPath(eq.Field)
	if eq.Value == nil {
		return fmt.Sprintf("json_extract(%s, ?) IS NULL", c.column()), []any{path}, nil
	}
	return fmt.Sprintf("json_extract(%s, ?) = ?", c.column()), []any{path, param(eq.Value)}, nil
}

func (c *Compiler) compileCompare(cmp queryir.Compare) (string, []any, error) {
	sql := fmt.Sprintf("json_extract(%s, ?) %s ?", c.column(), cmp.Op)
	return sql, []any{JSONPath(cmp.Field), param(cmp.Value)}, nil
}

func (c *Compiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return "(" + strings.Join(sqlParts, " AND ") + ")", allParams, nil
}

// OrderBy compiles sort keys to an ORDER BY list. The id column is always
// appended as a tiebreaker so results are deterministic.
func (c *Compiler) OrderBy(keys []queryir.SortKey) (string, []any) {
	var parts []string
	var params []any
	for _, k := range keys {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("json_extract(%s, ?) %s", c.column(), dir))
		params = append(params, JSONPath(k.Field))
	}
	parts = append(parts, "id ASC COLLATE BINARY")
	return strings.Join(parts, ", "), params
}

// JSONPath converts a dotted field name to an SQLite JSON path. Numeric
// segments become array subscripts; other segments are quoted labels.
func JSONPath(field string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(field, ".") {
		if isIndex(seg) {
			b.WriteString("[" + seg + "]")
			continue
		}
		b.WriteString(`."`)
		b.WriteString(seg)
		b.WriteString(`"`)
	}
	return b.String()
}

func isIndex(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// param converts a literal to an SQLite parameter. json_extract returns
// JSON booleans as integers, so booleans bind as 0/1.
func param(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}
