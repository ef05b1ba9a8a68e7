package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wouteroostervld/graphdb/internal/ast"
)

// Resolver maps a bound variable name to the SQL column references the
// expression compiler needs: the entity's properties JSON column and
// its id column. Two resolvers are used throughout the translator:
// MatchResolver (qualified by table alias, for WHERE/RETURN over a
// MATCH) and SelfResolver (unqualified, for a SET assignment's own
// single-row UPDATE statement).
type Resolver func(variable string) (propsCol, idCol string, kind VarKind, err error)

// MatchResolver resolves variables against the context's MATCH/CREATE
// variable registry, qualifying every column by the variable's SQL
// table alias.
func MatchResolver(ctx *Context) Resolver {
	return func(variable string) (string, string, VarKind, error) {
		v, ok := ctx.Lookup(variable)
		if !ok {
			return "", "", 0, &UnresolvedVariableError{Variable: variable}
		}
		return v.Alias + ".properties", v.Alias + ".id", v.Kind, nil
	}
}

// SelfResolver resolves only the single named variable (the row SET is
// updating), to the unqualified column names of an UPDATE statement's
// own table.
func SelfResolver(self string, kind VarKind) Resolver {
	return func(variable string) (string, string, VarKind, error) {
		if variable != self {
			return "", "", 0, fmt.Errorf("translate: SET cannot reference %q, only %q", variable, self)
		}
		return "properties", "id", kind, nil
	}
}

// UnresolvedVariableError is spec.md §7's UnresolvedVariable error kind.
type UnresolvedVariableError struct {
	Variable string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("variable %q is not bound", e.Variable)
}

// CompileExpr renders e as a SQL boolean/scalar expression, appending
// any literal/parameter values it consumes to args in placeholder
// order.
func CompileExpr(ctx *Context, args *[]any, resolve Resolver, e ast.Expression) (string, error) {
	switch v := e.(type) {
	case *ast.Literal:
		*args = append(*args, v.Value)
		return "?", nil

	case *ast.ParamRef:
		val, ok := ctx.params[v.Name]
		if !ok {
			val = nil
		}
		*args = append(*args, val)
		return "?", nil

	case *ast.VarRef:
		_, idCol, _, err := resolve(v.Name)
		if err != nil {
			return "", err
		}
		return idCol, nil

	case *ast.PropertyAccess:
		propsCol, _, _, err := resolve(v.Variable)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("json_extract(%s, %s)", propsCol, jsonPathLiteral(v.Property)), nil

	case *ast.BinaryOp:
		l, err := CompileExpr(ctx, args, resolve, v.Left)
		if err != nil {
			return "", err
		}
		r, err := CompileExpr(ctx, args, resolve, v.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", l, v.Op, r), nil

	case *ast.ObjectLiteral:
		return compileObjectLiteral(ctx, args, resolve, v)

	case *ast.ArrayLiteral:
		return compileArrayLiteral(ctx, args, resolve, v)

	case *ast.CaseExpression:
		return compileCase(ctx, args, resolve, v)

	case *ast.FuncCall:
		return compileFuncCall(ctx, args, resolve, v)

	case *ast.Comparison:
		l, err := CompileExpr(ctx, args, resolve, v.Left)
		if err != nil {
			return "", err
		}
		r, err := CompileExpr(ctx, args, resolve, v.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", l, v.Op, r), nil

	case *ast.LogicalOp:
		l, err := CompileExpr(ctx, args, resolve, v.Left)
		if err != nil {
			return "", err
		}
		r, err := CompileExpr(ctx, args, resolve, v.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", l, v.Op, r), nil

	case *ast.NotCondition:
		inner, err := CompileExpr(ctx, args, resolve, v.Inner)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(NOT %s)", inner), nil

	case *ast.StringPredicate:
		l, err := CompileExpr(ctx, args, resolve, v.Left)
		if err != nil {
			return "", err
		}
		r, err := CompileExpr(ctx, args, resolve, v.Right)
		if err != nil {
			return "", err
		}
		switch v.Op {
		case "CONTAINS":
			return fmt.Sprintf("(%s LIKE '%%' || %s || '%%')", l, r), nil
		case "STARTS WITH":
			return fmt.Sprintf("(%s LIKE %s || '%%')", l, r), nil
		case "ENDS WITH":
			return fmt.Sprintf("(%s LIKE '%%' || %s)", l, r), nil
		}
		return "", fmt.Errorf("translate: unknown string predicate %q", v.Op)

	case *ast.NullCheck:
		inner, err := CompileExpr(ctx, args, resolve, v.Expr)
		if err != nil {
			return "", err
		}
		if v.IsNot {
			return fmt.Sprintf("(%s IS NOT NULL)", inner), nil
		}
		return fmt.Sprintf("(%s IS NULL)", inner), nil

	case *ast.InCondition:
		return compileIn(ctx, args, resolve, v)

	case *ast.ExistsCondition:
		return compileExists(ctx, args, resolve, v)

	case *ast.ExprCondition:
		return CompileExpr(ctx, args, resolve, v.Inner)

	default:
		return "", fmt.Errorf("translate: unsupported expression %T", e)
	}
}

// jsonPathLiteral builds a SQLite JSON path literal for a property key,
// quoting the key so keys containing spaces or dots are addressed
// correctly.
func jsonPathLiteral(key string) string {
	safe := strings.ReplaceAll(key, `"`, "")
	return fmt.Sprintf(`'$."%s"'`, safe)
}

func compileObjectLiteral(ctx *Context, args *[]any, resolve Resolver, v *ast.ObjectLiteral) (string, error) {
	var b strings.Builder
	b.WriteString("json_object(")
	for i, k := range v.Keys {
		if i > 0 {
			b.WriteString(", ")
		}
		*args = append(*args, k)
		b.WriteString("?, ")
		val, err := CompileExpr(ctx, args, resolve, v.Values[i])
		if err != nil {
			return "", err
		}
		b.WriteString(val)
	}
	b.WriteString(")")
	return b.String(), nil
}

func compileArrayLiteral(ctx *Context, args *[]any, resolve Resolver, v *ast.ArrayLiteral) (string, error) {
	var b strings.Builder
	b.WriteString("json_array(")
	for i, item := range v.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		val, err := CompileExpr(ctx, args, resolve, item)
		if err != nil {
			return "", err
		}
		b.WriteString(val)
	}
	b.WriteString(")")
	return b.String(), nil
}

func compileCase(ctx *Context, args *[]any, resolve Resolver, v *ast.CaseExpression) (string, error) {
	var b strings.Builder
	b.WriteString("(CASE")
	var testSQL string
	if v.Test != nil {
		s, err := CompileExpr(ctx, args, resolve, v.Test)
		if err != nil {
			return "", err
		}
		testSQL = s
	}
	for _, when := range v.Whens {
		condSQL, err := CompileExpr(ctx, args, resolve, when.Cond)
		if err != nil {
			return "", err
		}
		resultSQL, err := CompileExpr(ctx, args, resolve, when.Result)
		if err != nil {
			return "", err
		}
		if v.Test != nil {
			b.WriteString(fmt.Sprintf(" WHEN %s = %s THEN %s", testSQL, condSQL, resultSQL))
		} else {
			b.WriteString(fmt.Sprintf(" WHEN %s THEN %s", condSQL, resultSQL))
		}
	}
	if v.Else != nil {
		elseSQL, err := CompileExpr(ctx, args, resolve, v.Else)
		if err != nil {
			return "", err
		}
		b.WriteString(" ELSE " + elseSQL)
	}
	b.WriteString(" END)")
	return b.String(), nil
}

// compileIn implements the two IN semantics noted in spec.md §9: a
// literal list is expanded into one placeholder per element; a
// parameter-bound array is matched via json_each over a single JSON
// argument. Both forms compare with SQL's ordinary IN equality.
func compileIn(ctx *Context, args *[]any, resolve Resolver, v *ast.InCondition) (string, error) {
	left, err := CompileExpr(ctx, args, resolve, v.Expr)
	if err != nil {
		return "", err
	}
	if lit, ok := v.List.(*ast.ArrayLiteral); ok {
		if len(lit.Items) == 0 {
			return "0", nil
		}
		var placeholders []string
		for _, item := range lit.Items {
			s, err := CompileExpr(ctx, args, resolve, item)
			if err != nil {
				return "", err
			}
			placeholders = append(placeholders, s)
		}
		return fmt.Sprintf("(%s IN (%s))", left, strings.Join(placeholders, ", ")), nil
	}
	// Parameter: bind as one JSON array argument and test membership via
	// json_each.
	if pr, ok := v.List.(*ast.ParamRef); ok {
		encoded, err := json.Marshal(ctx.params[pr.Name])
		if err != nil {
			return "", fmt.Errorf("translate: encode IN parameter %q: %w", pr.Name, err)
		}
		*args = append(*args, string(encoded))
		return fmt.Sprintf("(%s IN (SELECT value FROM json_each(?)))", left), nil
	}
	// Computed expression: its SQL yields JSON array text for json_each.
	listSQL, err := CompileExpr(ctx, args, resolve, v.List)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s IN (SELECT value FROM json_each(%s)))", left, listSQL), nil
}

// compileExists renders a correlated EXISTS subquery over the inner
// pattern, reusing the same MATCH compiler used for top-level clauses.
// The subquery gets its own variable registry, with aliases numbered
// after the outer query's so none shadows an outer one; every pattern
// variable the outer resolver also binds is tied to the outer row by id.
// Its argument placeholders are spliced into the caller's args in
// emission order.
func compileExists(ctx *Context, args *[]any, resolve Resolver, v *ast.ExistsCondition) (string, error) {
	sub := NewContext(ctx.params)
	sub.nodeSeq, sub.edgeSeq = ctx.nodeSeq, ctx.edgeSeq
	var subArgs []any
	if err := CompileMatchPatterns(sub, &subArgs, []ast.Pattern{v.Pattern}); err != nil {
		return "", err
	}
	for _, name := range sub.NamedVars() {
		if _, outerID, _, err := resolve(name); err == nil {
			inner, _ := sub.Lookup(name)
			sub.AddFilter(fmt.Sprintf("%s.id = %s", inner.Alias, outerID))
		}
	}
	body := sub.FromClause()
	whereSQL, err := WhereClause(sub, &subArgs, MatchResolver(sub), nil)
	if err != nil {
		return "", err
	}
	*args = append(*args, subArgs...)
	return fmt.Sprintf("EXISTS (SELECT 1 %s%s)", body, whereSQL), nil
}
