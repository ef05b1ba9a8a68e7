package translate

import (
	"fmt"
	"strings"

	"github.com/wouteroostervld/graphdb/internal/ast"
)

// aggregateNames is consulted by return.go to decide whether a RETURN/
// WITH item needs a GROUP BY over the remaining non-aggregate items.
var aggregateNames = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true, "collect": true,
}

// IsAggregate reports whether name is one of Cypher's aggregating
// functions.
func IsAggregate(name string) bool {
	return aggregateNames[strings.ToLower(name)]
}

// compileFuncCall renders a scalar function call as SQL, routing
// through SQLite's JSON1 functions for the graph-shaped builtins
// (labels, properties, keys, ...). Aggregate calls are rejected with an
// error; aggregation runs in the executor.
func compileFuncCall(ctx *Context, args *[]any, resolve Resolver, call *ast.FuncCall) (string, error) {
	name := strings.ToLower(call.Name)

	argSQL := make([]string, 0, len(call.Args))
	for _, a := range call.Args {
		if vr, ok := a.(*ast.VarRef); ok && vr.Name == "*" {
			argSQL = append(argSQL, "*")
			continue
		}
		s, err := CompileExpr(ctx, args, resolve, a)
		if err != nil {
			return "", err
		}
		argSQL = append(argSQL, s)
	}

	if IsAggregate(name) {
		return "", fmt.Errorf("translate: aggregate function %q is only valid in a RETURN/WITH item", call.Name)
	}

	switch name {
	// ---- entity accessors ----
	case "id":
		return argSQL[0], nil
	case "labels":
		propsCol, idCol, _, err := resolve(varRefName(call.Args[0]))
		_ = idCol
		if err != nil {
			return "", err
		}
		return labelColumnFor(ctx, propsCol), nil
	case "type":
		return edgeTypeColumnFor(ctx, call.Args[0], resolve)
	case "properties":
		propsCol, _, _, err := resolve(varRefName(call.Args[0]))
		if err != nil {
			return "", err
		}
		return propsCol, nil
	case "keys":
		return fmt.Sprintf("(SELECT json_group_array(key) FROM json_each(%s))", argSQL[0]), nil

	// ---- collection helpers ----
	case "size":
		return fmt.Sprintf("(SELECT COUNT(*) FROM json_each(%s))", argSQL[0]), nil
	case "head":
		return fmt.Sprintf("json_extract(%s, '$[0]')", argSQL[0]), nil
	case "last":
		return fmt.Sprintf("json_extract(%s, '$[' || ((SELECT COUNT(*) FROM json_each(%s)) - 1) || ']')", argSQL[0], argSQL[0]), nil
	case "tail":
		return fmt.Sprintf("(SELECT json_group_array(value) FROM json_each(%s) WHERE key > 0)", argSQL[0]), nil
	case "range":
		if len(argSQL) == 2 {
			return fmt.Sprintf("(WITH RECURSIVE seq(v) AS (SELECT %s UNION ALL SELECT v+1 FROM seq WHERE v < %s) SELECT json_group_array(v) FROM seq)", argSQL[0], argSQL[1]), nil
		}
		return fmt.Sprintf("(WITH RECURSIVE seq(v) AS (SELECT %s UNION ALL SELECT v+%s FROM seq WHERE v < %s) SELECT json_group_array(v) FROM seq)", argSQL[0], argSQL[2], argSQL[1]), nil

	// ---- coalesce / string / numeric scalars ----
	case "coalesce":
		return fmt.Sprintf("COALESCE(%s)", strings.Join(argSQL, ", ")), nil
	case "toupper":
		return fmt.Sprintf("UPPER(%s)", argSQL[0]), nil
	case "tolower":
		return fmt.Sprintf("LOWER(%s)", argSQL[0]), nil
	case "trim":
		return fmt.Sprintf("TRIM(%s)", argSQL[0]), nil
	case "substring":
		if len(argSQL) == 2 {
			return fmt.Sprintf("SUBSTR(%s, %s + 1)", argSQL[0], argSQL[1]), nil
		}
		return fmt.Sprintf("SUBSTR(%s, %s + 1, %s)", argSQL[0], argSQL[1], argSQL[2]), nil
	case "replace":
		return fmt.Sprintf("REPLACE(%s, %s, %s)", argSQL[0], argSQL[1], argSQL[2]), nil
	case "tostring":
		return fmt.Sprintf("CAST(%s AS TEXT)", argSQL[0]), nil
	case "split":
		return fmt.Sprintf("(SELECT json_group_array(value) FROM json_each('[\"' || REPLACE(%s, %s, '\",\"') || '\"]'))", argSQL[0], argSQL[1]), nil
	case "abs":
		return fmt.Sprintf("ABS(%s)", argSQL[0]), nil
	case "ceil":
		return fmt.Sprintf("(CASE WHEN %s = CAST(%s AS INTEGER) THEN %s ELSE CAST(%s AS INTEGER) + 1 END)", argSQL[0], argSQL[0], argSQL[0], argSQL[0]), nil
	case "floor":
		return fmt.Sprintf("CAST(%s AS INTEGER)", argSQL[0]), nil
	case "round":
		return fmt.Sprintf("ROUND(%s)", argSQL[0]), nil
	case "sqrt":
		return fmt.Sprintf("SQRT(%s)", argSQL[0]), nil
	case "rand":
		return "(ABS(RANDOM()) / 9223372036854775807.0)", nil

	// ---- temporal scalars ----
	case "date":
		return "date('now')", nil
	case "datetime":
		return "datetime('now')", nil
	case "timestamp":
		return "CAST(strftime('%s','now') AS INTEGER) * 1000", nil

	default:
		return "", fmt.Errorf("translate: unsupported function %q", call.Name)
	}
}

func varRefName(e ast.Expression) string {
	if vr, ok := e.(*ast.VarRef); ok {
		return vr.Name
	}
	return ""
}

// labelColumnFor renders the `labels(n)` builtin. propsCol is actually
// the properties column fragment from resolve; labels live in a
// sibling column on the same aliased table, so this derives the label
// column by swapping the trailing ".properties" suffix.
func labelColumnFor(ctx *Context, propsCol string) string {
	alias := strings.TrimSuffix(propsCol, ".properties")
	return fmt.Sprintf("%s.label", alias)
}

func edgeTypeColumnFor(ctx *Context, arg ast.Expression, resolve Resolver) (string, error) {
	propsCol, _, _, err := resolve(varRefName(arg))
	if err != nil {
		return "", err
	}
	alias := strings.TrimSuffix(propsCol, ".properties")
	return fmt.Sprintf("%s.type", alias), nil
}
