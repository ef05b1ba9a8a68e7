package translate

import (
	"fmt"

	"github.com/wouteroostervld/graphdb/internal/ast"
)

// CreateNode describes one node to insert for a CREATE clause; property
// expressions are evaluated with EvalValue once the executor has the
// query's parameter set in hand.
type CreateNode struct {
	Variable   string
	Labels     []string
	Properties map[string]ast.Expression
}

// CreateEdge describes one edge to insert. SourceVar/TargetVar name
// either a variable bound by an earlier pattern (MATCH, or an earlier
// CreateNode in the same CREATE) or, when the executor resolves them,
// an already-existing node.
type CreateEdge struct {
	Variable   string
	Type       string
	SourceVar  string
	TargetVar  string
	Properties map[string]ast.Expression
}

// CreatePlan is the ordered list of inserts a CREATE clause requires.
// Nodes and edges preserve pattern order so an edge's endpoints are
// always planned before the edge that references them.
type CreatePlan struct {
	Nodes []CreateNode
	Edges []CreateEdge
}

// PlanCreate walks CREATE patterns into an insertion plan. Unlike
// CompileMatchPatterns, every node mentioned is a fresh row: CREATE
// never reuses a variable bound by a preceding MATCH/MERGE for a
// second node position, except as an edge endpoint.
func PlanCreate(patterns []ast.Pattern) (*CreatePlan, error) {
	plan := &CreatePlan{}
	seen := map[string]bool{}
	planNode := func(n *ast.NodePattern) error {
		if n.Variable != "" && seen[n.Variable] {
			return nil
		}
		props, err := exprMap(n.Properties)
		if err != nil {
			return err
		}
		plan.Nodes = append(plan.Nodes, CreateNode{Variable: n.Variable, Labels: n.Labels, Properties: props})
		if n.Variable != "" {
			seen[n.Variable] = true
		}
		return nil
	}
	for _, p := range patterns {
		switch pat := p.(type) {
		case *ast.SingleNodePattern:
			if err := planNode(pat.Node); err != nil {
				return nil, err
			}
		case *ast.RelationshipPattern:
			if err := planNode(pat.Source); err != nil {
				return nil, err
			}
			if err := planNode(pat.Target); err != nil {
				return nil, err
			}
			if pat.Edge.Direction == ast.DirNone {
				return nil, fmt.Errorf("translate: CREATE requires a directed relationship")
			}
			props, err := exprMap(pat.Edge.Properties)
			if err != nil {
				return nil, err
			}
			source, target := pat.Source.Variable, pat.Target.Variable
			if pat.Edge.Direction == ast.DirLeft {
				source, target = target, source
			}
			plan.Edges = append(plan.Edges, CreateEdge{
				Variable: pat.Edge.Variable, Type: pat.Edge.Type,
				SourceVar: source, TargetVar: target, Properties: props,
			})
		default:
			return nil, fmt.Errorf("translate: unsupported CREATE pattern %T", p)
		}
	}
	return plan, nil
}

func exprMap(obj *ast.ObjectLiteral) (map[string]ast.Expression, error) {
	out := map[string]ast.Expression{}
	if obj == nil {
		return out, nil
	}
	for i, k := range obj.Keys {
		out[k] = obj.Values[i]
	}
	return out, nil
}

// EvalValue evaluates a property-map value expression with no row
// context: literals, parameters, arithmetic, and nested array/object
// literals. It is used for CREATE's property maps, which can only
// reference the query's parameters, never another entity's columns.
func EvalValue(params map[string]any, e ast.Expression) (any, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return v.Value, nil
	case *ast.ParamRef:
		val, ok := params[v.Name]
		if !ok {
			return nil, nil
		}
		return val, nil
	case *ast.BinaryOp:
		l, err := EvalValue(params, v.Left)
		if err != nil {
			return nil, err
		}
		r, err := EvalValue(params, v.Right)
		if err != nil {
			return nil, err
		}
		return EvalArith(v.Op, l, r)
	case *ast.ArrayLiteral:
		out := make([]any, 0, len(v.Items))
		for _, item := range v.Items {
			val, err := EvalValue(params, item)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case *ast.ObjectLiteral:
		out := map[string]any{}
		for i, k := range v.Keys {
			val, err := EvalValue(params, v.Values[i])
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("translate: %T is not a constant expression valid in CREATE property maps", e)
	}
}

// EvalArith applies a Cypher arithmetic or string-concatenation operator
// to two already-evaluated Go values.
func EvalArith(op string, l, r any) (any, error) {
	lf, lok := l.(float64)
	rf, rok := r.(float64)
	if op == "+" {
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
	}
	if !lok || !rok {
		return nil, fmt.Errorf("translate: arithmetic requires numeric operands")
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		return lf / rf, nil
	case "%":
		return float64(int64(lf) % int64(rf)), nil
	}
	return nil, fmt.Errorf("translate: unknown arithmetic operator %q", op)
}

// CompileSetAssignmentSQL renders one SET assignment as an UPDATE
// statement scoped to a single already-resolved row id. selfVar is the
// only variable name the assignment's value expression may reference
// (spec's accepted simplification: SET right-hand sides may not join
// across entities).
func CompileSetAssignmentSQL(params map[string]any, selfVar string, kind VarKind, id int64, a ast.Assignment) (string, []any, error) {
	table := "nodes"
	if kind == KindEdge {
		table = "edges"
	}
	ctx := NewContext(params)
	resolve := SelfResolver(selfVar, kind)
	var args []any
	valSQL, err := CompileExpr(ctx, &args, resolve, a.Value)
	if err != nil {
		return "", nil, err
	}

	var stmt string
	switch {
	case a.Merge:
		stmt = fmt.Sprintf("UPDATE %s SET properties = json_patch(properties, %s) WHERE id = ?", table, valSQL)
	case a.Property == "":
		stmt = fmt.Sprintf("UPDATE %s SET properties = %s WHERE id = ?", table, valSQL)
	default:
		stmt = fmt.Sprintf("UPDATE %s SET properties = json_set(properties, %s, %s) WHERE id = ?", table, jsonPathLiteral(a.Property), valSQL)
	}
	args = append(args, id)
	return stmt, args, nil
}

// CompileDeleteSQL renders the DELETE statement for one bound variable.
// Node deletes with detach=false rely on the foreign-key constraint to
// reject a node with live incident edges; detach=true deletes those
// edges first.
func CompileDeleteSQL(kind VarKind, id int64, detach bool) []struct {
	SQL  string
	Args []any
} {
	if kind == KindEdge {
		return []struct {
			SQL  string
			Args []any
		}{{SQL: "DELETE FROM edges WHERE id = ?", Args: []any{id}}}
	}
	stmts := []struct {
		SQL  string
		Args []any
	}{}
	if detach {
		stmts = append(stmts, struct {
			SQL  string
			Args []any
		}{SQL: "DELETE FROM edges WHERE source_id = ? OR target_id = ?", Args: []any{id, id}})
	}
	stmts = append(stmts, struct {
		SQL  string
		Args []any
	}{SQL: "DELETE FROM nodes WHERE id = ?", Args: []any{id}})
	return stmts
}
