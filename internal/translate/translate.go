package translate

import (
	"fmt"
	"strings"

	"github.com/wouteroostervld/graphdb/internal/ast"
)

// WhereClause renders a clause's WHERE expression together with every
// pattern-derived filter (labels, edge types, inline properties,
// endpoint joins) accumulated on ctx, ANDed together. Returns "" if
// there is nothing to filter on.
func WhereClause(ctx *Context, args *[]any, resolve Resolver, where ast.Expression) (string, error) {
	parts := append([]string{}, ctx.Filters()...)
	if where != nil {
		sql, err := CompileExpr(ctx, args, resolve, where)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// BuildSelect assembles a full SELECT statement from already-compiled
// pieces: the FROM/JOIN/CTE fragment on ctx, the projected columns, the
// combined WHERE text, and an optional GROUP BY / ORDER BY / LIMIT
// suffix.
func BuildSelect(ctx *Context, cols []Column, distinct bool, whereSQL string, groupBy []string, tailSQL string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if distinct {
		b.WriteString("DISTINCT ")
	}
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("%s AS %s", c.SQL, quoteIdent(c.Name)))
	}
	b.WriteString("\n")
	b.WriteString(ctx.FromClause())
	b.WriteString(whereSQL)
	if len(groupBy) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(groupBy, ", "))
	}
	b.WriteString(tailSQL)
	return b.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CompileCallProcedure renders one of the built-in introspection
// procedures as a self-contained SQL query. These never take a FROM
// clause from the surrounding query: CALL is always its own scope.
func CompileCallProcedure(call *ast.CallClause) (string, []any, error) {
	switch call.Procedure {
	case "db.labels":
		return `SELECT DISTINCT value AS label FROM nodes, json_each(nodes.label)`, nil, nil
	case "db.relationshipTypes":
		return `SELECT DISTINCT type AS relationshipType FROM edges`, nil, nil
	case "db.propertyKeys":
		return `
			SELECT DISTINCT key AS propertyKey FROM (
				SELECT key FROM nodes, json_each(nodes.properties)
				UNION
				SELECT key FROM edges, json_each(edges.properties)
			)`, nil, nil
	case "db.indexes":
		return `SELECT name, tbl_name AS "table" FROM sqlite_master WHERE type = 'index' AND name NOT LIKE 'sqlite_%'`, nil, nil
	default:
		return "", nil, fmt.Errorf("translate: unknown procedure %q", call.Procedure)
	}
}
