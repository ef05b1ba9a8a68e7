package translate

import (
	"strings"
	"testing"

	"github.com/wouteroostervld/graphdb/internal/ast"
)

func TestCompileExprLiteralAndParam(t *testing.T) {
	ctx := NewContext(map[string]any{"minAge": float64(21)})
	var args []any
	resolve := MatchResolver(ctx)

	sql, err := CompileExpr(ctx, &args, resolve, &ast.Literal{Value: "hello"})
	if err != nil {
		t.Fatalf("CompileExpr literal: %v", err)
	}
	if sql != "?" || args[0] != "hello" {
		t.Errorf("unexpected literal compile: sql=%q args=%v", sql, args)
	}

	args = nil
	sql, err = CompileExpr(ctx, &args, resolve, &ast.ParamRef{Name: "minAge"})
	if err != nil {
		t.Fatalf("CompileExpr param: %v", err)
	}
	if sql != "?" || args[0] != float64(21) {
		t.Errorf("unexpected param compile: sql=%q args=%v", sql, args)
	}

	args = nil
	_, err = CompileExpr(ctx, &args, resolve, &ast.ParamRef{Name: "missing"})
	if err != nil {
		t.Fatalf("unbound param should resolve to nil, not error: %v", err)
	}
	if args[0] != nil {
		t.Errorf("expected nil for an unbound parameter, got %v", args[0])
	}
}

func TestCompileExprPropertyAccessUsesJSONExtract(t *testing.T) {
	ctx := NewContext(nil)
	ctx.RegisterNode("n")
	var args []any
	sql, err := CompileExpr(ctx, &args, MatchResolver(ctx), &ast.PropertyAccess{Variable: "n", Property: "name"})
	if err != nil {
		t.Fatalf("CompileExpr: %v", err)
	}
	if !strings.Contains(sql, "json_extract(n0.properties") {
		t.Errorf("expected json_extract over n0.properties, got %q", sql)
	}
}

func TestCompileExprUnresolvedVariable(t *testing.T) {
	ctx := NewContext(nil)
	var args []any
	_, err := CompileExpr(ctx, &args, MatchResolver(ctx), &ast.VarRef{Name: "ghost"})
	if err == nil {
		t.Fatal("expected an UnresolvedVariableError")
	}
	if _, ok := err.(*UnresolvedVariableError); !ok {
		t.Fatalf("expected *UnresolvedVariableError, got %T", err)
	}
}

func TestCompileExprComparisonAndLogical(t *testing.T) {
	ctx := NewContext(nil)
	ctx.RegisterNode("n")
	var args []any
	cmp := &ast.Comparison{
		Op:    ">",
		Left:  &ast.PropertyAccess{Variable: "n", Property: "age"},
		Right: &ast.Literal{Value: float64(18)},
	}
	and := &ast.LogicalOp{
		Op:    "AND",
		Left:  cmp,
		Right: &ast.NullCheck{Expr: &ast.PropertyAccess{Variable: "n", Property: "name"}, IsNot: true},
	}
	sql, err := CompileExpr(ctx, &args, MatchResolver(ctx), and)
	if err != nil {
		t.Fatalf("CompileExpr: %v", err)
	}
	if !strings.Contains(sql, " AND ") || !strings.Contains(sql, "IS NOT NULL") {
		t.Errorf("unexpected compiled SQL: %q", sql)
	}
}

func TestCompileExprInConditionLiteralList(t *testing.T) {
	ctx := NewContext(nil)
	ctx.RegisterNode("n")
	var args []any
	in := &ast.InCondition{
		Expr: &ast.PropertyAccess{Variable: "n", Property: "age"},
		List: &ast.ArrayLiteral{Items: []ast.Expression{
			&ast.Literal{Value: float64(1)},
			&ast.Literal{Value: "two"},
		}},
	}
	sql, err := CompileExpr(ctx, &args, MatchResolver(ctx), in)
	if err != nil {
		t.Fatalf("CompileExpr: %v", err)
	}
	if !strings.Contains(sql, "IN (?, ?)") {
		t.Errorf("expected heterogeneous literal IN list to expand to placeholders, got %q", sql)
	}
	if len(args) != 2 || args[0] != float64(1) || args[1] != "two" {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestCompileExprInConditionEmptyList(t *testing.T) {
	ctx := NewContext(nil)
	ctx.RegisterNode("n")
	var args []any
	in := &ast.InCondition{
		Expr: &ast.PropertyAccess{Variable: "n", Property: "age"},
		List: &ast.ArrayLiteral{},
	}
	sql, err := CompileExpr(ctx, &args, MatchResolver(ctx), in)
	if err != nil {
		t.Fatalf("CompileExpr: %v", err)
	}
	if sql != "0" {
		t.Errorf("expected empty IN list to compile to an always-false 0, got %q", sql)
	}
}

func TestCompileExprInConditionParamList(t *testing.T) {
	ctx := NewContext(map[string]any{"ages": []any{float64(1), float64(2)}})
	ctx.RegisterNode("n")
	var args []any
	in := &ast.InCondition{
		Expr: &ast.PropertyAccess{Variable: "n", Property: "age"},
		List: &ast.ParamRef{Name: "ages"},
	}
	sql, err := CompileExpr(ctx, &args, MatchResolver(ctx), in)
	if err != nil {
		t.Fatalf("CompileExpr: %v", err)
	}
	if !strings.Contains(sql, "json_each") {
		t.Errorf("expected a parameter-bound IN list to use json_each, got %q", sql)
	}
}

func TestCompileExprStringPredicates(t *testing.T) {
	ctx := NewContext(nil)
	ctx.RegisterNode("n")
	var args []any
	pred := &ast.StringPredicate{
		Op:    "STARTS WITH",
		Left:  &ast.PropertyAccess{Variable: "n", Property: "name"},
		Right: &ast.Literal{Value: "Al"},
	}
	sql, err := CompileExpr(ctx, &args, MatchResolver(ctx), pred)
	if err != nil {
		t.Fatalf("CompileExpr: %v", err)
	}
	if !strings.Contains(sql, "LIKE") || !strings.HasSuffix(sql, "|| '%')") {
		t.Errorf("unexpected STARTS WITH compile: %q", sql)
	}
}

func TestCompileExprCaseSimpleAndSearched(t *testing.T) {
	ctx := NewContext(nil)
	ctx.RegisterNode("n")
	var args []any
	searched := &ast.CaseExpression{
		Whens: []ast.CaseWhen{
			{Cond: &ast.Comparison{Op: ">", Left: &ast.PropertyAccess{Variable: "n", Property: "age"}, Right: &ast.Literal{Value: float64(18)}}, Result: &ast.Literal{Value: "adult"}},
		},
		Else: &ast.Literal{Value: "minor"},
	}
	sql, err := CompileExpr(ctx, &args, MatchResolver(ctx), searched)
	if err != nil {
		t.Fatalf("CompileExpr: %v", err)
	}
	if !strings.Contains(sql, "CASE") || !strings.Contains(sql, "ELSE") {
		t.Errorf("unexpected CASE compile: %q", sql)
	}
}

func TestCompileMatchPatternsSingleNode(t *testing.T) {
	ctx := NewContext(nil)
	var args []any
	patterns := []ast.Pattern{
		&ast.SingleNodePattern{Node: &ast.NodePattern{Variable: "n", Labels: []string{"Person"}}},
	}
	if err := CompileMatchPatterns(ctx, &args, patterns); err != nil {
		t.Fatalf("CompileMatchPatterns: %v", err)
	}
	v, ok := ctx.Lookup("n")
	if !ok || v.Kind != KindNode {
		t.Fatalf("expected n to be registered as a node, got %+v ok=%v", v, ok)
	}
	if len(ctx.Filters()) != 1 {
		t.Fatalf("expected one label filter, got %v", ctx.Filters())
	}
	from := ctx.FromClause()
	if !strings.Contains(from, "nodes AS n0") {
		t.Errorf("expected FROM to join nodes AS n0, got %q", from)
	}
}

func TestCompileMatchPatternsRelationshipDirections(t *testing.T) {
	for _, tc := range []struct {
		name string
		dir  ast.Direction
		want string
	}{
		{"right", ast.DirRight, "e0.source_id = n0.id"},
		{"left", ast.DirLeft, "e0.source_id = n1.id"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := NewContext(nil)
			var args []any
			rel := &ast.RelationshipPattern{
				Source: &ast.NodePattern{Variable: "a"},
				Edge:   &ast.EdgePattern{Type: "KNOWS", Direction: tc.dir},
				Target: &ast.NodePattern{Variable: "b"},
			}
			if err := CompileMatchPatterns(ctx, &args, []ast.Pattern{rel}); err != nil {
				t.Fatalf("CompileMatchPatterns: %v", err)
			}
			joined := strings.Join(ctx.Filters(), " | ")
			if !strings.Contains(joined, tc.want) {
				t.Errorf("expected filter containing %q, got %q", tc.want, joined)
			}
		})
	}
}

func TestCompileMatchPatternsUndirectedEdgeFilter(t *testing.T) {
	ctx := NewContext(nil)
	var args []any
	rel := &ast.RelationshipPattern{
		Source: &ast.NodePattern{Variable: "a"},
		Edge:   &ast.EdgePattern{Type: "KNOWS", Direction: ast.DirNone},
		Target: &ast.NodePattern{Variable: "b"},
	}
	if err := CompileMatchPatterns(ctx, &args, []ast.Pattern{rel}); err != nil {
		t.Fatalf("CompileMatchPatterns: %v", err)
	}
	joined := strings.Join(ctx.Filters(), " | ")
	if !strings.Contains(joined, " OR ") {
		t.Errorf("expected an undirected edge filter to check both endpoint assignments, got %q", joined)
	}
}

func TestCompileMatchPatternsVarLengthRejectsUndirected(t *testing.T) {
	ctx := NewContext(nil)
	var args []any
	rel := &ast.RelationshipPattern{
		Source: &ast.NodePattern{Variable: "a"},
		Edge:   &ast.EdgePattern{Type: "KNOWS", Direction: ast.DirNone, VarLength: &ast.HopRange{Min: 1}},
		Target: &ast.NodePattern{Variable: "b"},
	}
	err := CompileMatchPatterns(ctx, &args, []ast.Pattern{rel})
	if err == nil {
		t.Fatal("expected undirected variable-length relationships to be rejected")
	}
}

func TestCompileMatchPatternsVarLengthBuildsRecursiveCTE(t *testing.T) {
	ctx := NewContext(nil)
	var args []any
	rel := &ast.RelationshipPattern{
		Source: &ast.NodePattern{Variable: "a"},
		Edge:   &ast.EdgePattern{Type: "KNOWS", Direction: ast.DirRight, VarLength: &ast.HopRange{Min: 1, Max: 3, HasMax: true}},
		Target: &ast.NodePattern{Variable: "b"},
	}
	if err := CompileMatchPatterns(ctx, &args, []ast.Pattern{rel}); err != nil {
		t.Fatalf("CompileMatchPatterns: %v", err)
	}
	from := ctx.FromClause()
	if !strings.Contains(from, "WITH RECURSIVE") {
		t.Errorf("expected a recursive CTE in the FROM clause, got %q", from)
	}
	if !strings.Contains(from, "UNION") {
		t.Errorf("expected the CTE to union its seed and step legs, got %q", from)
	}
}

func TestWhereClauseCombinesPatternFiltersAndExplicitWhere(t *testing.T) {
	ctx := NewContext(nil)
	var args []any
	patterns := []ast.Pattern{
		&ast.SingleNodePattern{Node: &ast.NodePattern{Variable: "n", Labels: []string{"Person"}}},
	}
	if err := CompileMatchPatterns(ctx, &args, patterns); err != nil {
		t.Fatalf("CompileMatchPatterns: %v", err)
	}
	where := &ast.Comparison{Op: ">", Left: &ast.PropertyAccess{Variable: "n", Property: "age"}, Right: &ast.Literal{Value: float64(18)}}
	sql, err := WhereClause(ctx, &args, MatchResolver(ctx), where)
	if err != nil {
		t.Fatalf("WhereClause: %v", err)
	}
	if !strings.HasPrefix(sql, " WHERE ") || !strings.Contains(sql, " AND ") {
		t.Errorf("expected pattern filter ANDed with explicit WHERE, got %q", sql)
	}
}

func TestWhereClauseEmptyWhenNothingToFilter(t *testing.T) {
	ctx := NewContext(nil)
	var args []any
	sql, err := WhereClause(ctx, &args, MatchResolver(ctx), nil)
	if err != nil {
		t.Fatalf("WhereClause: %v", err)
	}
	if sql != "" {
		t.Errorf("expected empty WHERE clause, got %q", sql)
	}
}

func TestBuildSelectRendersColumnsAndFrom(t *testing.T) {
	ctx := NewContext(nil)
	var args []any
	patterns := []ast.Pattern{
		&ast.SingleNodePattern{Node: &ast.NodePattern{Variable: "n"}},
	}
	if err := CompileMatchPatterns(ctx, &args, patterns); err != nil {
		t.Fatalf("CompileMatchPatterns: %v", err)
	}
	cols := []Column{{Name: "id", SQL: "n0.id"}}
	sql := BuildSelect(ctx, cols, false, "", nil, "")
	if !strings.Contains(sql, `n0.id AS "id"`) {
		t.Errorf("expected the column to be rendered with a quoted alias, got %q", sql)
	}
	if !strings.Contains(sql, "FROM nodes AS n0") {
		t.Errorf("expected FROM nodes AS n0, got %q", sql)
	}
}


func TestCompileCallProcedureKnownAndUnknown(t *testing.T) {
	sql, args, err := CompileCallProcedure(&ast.CallClause{Procedure: "db.labels"})
	if err != nil {
		t.Fatalf("CompileCallProcedure: %v", err)
	}
	if args != nil {
		t.Errorf("expected no args for db.labels, got %v", args)
	}
	if !strings.Contains(sql, "json_each(nodes.label)") {
		t.Errorf("unexpected db.labels SQL: %q", sql)
	}

	_, _, err = CompileCallProcedure(&ast.CallClause{Procedure: "db.bogus"})
	if err == nil {
		t.Fatal("expected an error for an unknown procedure")
	}
}

func TestIsAggregateCaseInsensitive(t *testing.T) {
	if !IsAggregate("COLLECT") {
		t.Error("expected IsAggregate to be case-insensitive")
	}
	if IsAggregate("toUpper") {
		t.Error("toUpper is not an aggregate function")
	}
}

func TestSelfResolverRejectsOtherVariables(t *testing.T) {
	resolve := SelfResolver("n", KindNode)
	if _, _, _, err := resolve("n"); err != nil {
		t.Fatalf("expected self variable to resolve, got %v", err)
	}
	if _, _, _, err := resolve("m"); err == nil {
		t.Fatal("expected an error resolving a variable other than self")
	}
}

func TestCompileExprNumericAndTemporalScalarFunctions(t *testing.T) {
	ctx := NewContext(nil)
	resolve := MatchResolver(ctx)

	cases := []struct {
		name     string
		call     *ast.FuncCall
		contains string
	}{
		{"abs", &ast.FuncCall{Name: "abs", Args: []ast.Expression{&ast.Literal{Value: float64(-5)}}}, "ABS("},
		{"ceil", &ast.FuncCall{Name: "ceil", Args: []ast.Expression{&ast.Literal{Value: float64(1.2)}}}, "CASE WHEN"},
		{"floor", &ast.FuncCall{Name: "floor", Args: []ast.Expression{&ast.Literal{Value: float64(1.8)}}}, "CAST("},
		{"round", &ast.FuncCall{Name: "round", Args: []ast.Expression{&ast.Literal{Value: float64(1.6)}}}, "ROUND("},
		{"sqrt", &ast.FuncCall{Name: "sqrt", Args: []ast.Expression{&ast.Literal{Value: float64(9)}}}, "SQRT("},
		{"rand", &ast.FuncCall{Name: "rand", Args: nil}, "RANDOM()"},
		{"date", &ast.FuncCall{Name: "date", Args: nil}, "date('now')"},
		{"datetime", &ast.FuncCall{Name: "datetime", Args: nil}, "datetime('now')"},
		{"timestamp", &ast.FuncCall{Name: "timestamp", Args: nil}, "strftime("},
	}
	for _, tc := range cases {
		var args []any
		sql, err := CompileExpr(ctx, &args, resolve, tc.call)
		if err != nil {
			t.Fatalf("%s: CompileExpr: %v", tc.name, err)
		}
		if !strings.Contains(sql, tc.contains) {
			t.Errorf("%s: expected SQL to contain %q, got %q", tc.name, tc.contains, sql)
		}
	}
}
