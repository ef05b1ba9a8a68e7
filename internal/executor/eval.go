package executor

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/wouteroostervld/graphdb/internal/ast"
	"github.com/wouteroostervld/graphdb/internal/store"
	"github.com/wouteroostervld/graphdb/internal/translate"
)

// eval evaluates an expression against one frame, fetching entity
// properties from the store on demand. Aggregate function calls
// (count, sum, avg, min, max, collect) are rejected here: callers that
// project a RETURN/WITH item list containing an aggregate go through
// projectItems, which groups the frames and reduces each aggregate with
// reduceAggregate.
func eval(ctx context.Context, q store.Querier, params map[string]any, f frame, e ast.Expression) (any, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return v.Value, nil
	case *ast.ParamRef:
		val, ok := params[v.Name]
		if !ok {
			return nil, nil
		}
		return val, nil
	case *ast.VarRef:
		val, ok := f.vars[v.Name]
		if !ok {
			return nil, unresolvedVar(v.Name)
		}
		return val, nil
	case *ast.PropertyAccess:
		props, err := entityProps(ctx, q, f, v.Variable)
		if err != nil {
			return nil, err
		}
		return props[v.Property], nil
	case *ast.BinaryOp:
		l, err := eval(ctx, q, params, f, v.Left)
		if err != nil {
			return nil, err
		}
		r, err := eval(ctx, q, params, f, v.Right)
		if err != nil {
			return nil, err
		}
		out, err := translate.EvalArith(v.Op, l, r)
		if err != nil {
			return nil, typeError("%v", err)
		}
		return out, nil
	case *ast.ObjectLiteral:
		out := map[string]any{}
		for i, k := range v.Keys {
			val, err := eval(ctx, q, params, f, v.Values[i])
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil
	case *ast.ArrayLiteral:
		out := make([]any, 0, len(v.Items))
		for _, item := range v.Items {
			val, err := eval(ctx, q, params, f, item)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case *ast.CaseExpression:
		return evalCase(ctx, q, params, f, v)
	case *ast.FuncCall:
		return evalFuncCall(ctx, q, params, f, v)
	case *ast.Comparison:
		return evalComparison(ctx, q, params, f, v)
	case *ast.LogicalOp:
		l, err := eval(ctx, q, params, f, v.Left)
		if err != nil {
			return nil, err
		}
		r, err := eval(ctx, q, params, f, v.Right)
		if err != nil {
			return nil, err
		}
		if v.Op == "AND" {
			return truthy(l) && truthy(r), nil
		}
		return truthy(l) || truthy(r), nil
	case *ast.NotCondition:
		inner, err := eval(ctx, q, params, f, v.Inner)
		if err != nil {
			return nil, err
		}
		return !truthy(inner), nil
	case *ast.StringPredicate:
		l, err := eval(ctx, q, params, f, v.Left)
		if err != nil {
			return nil, err
		}
		r, err := eval(ctx, q, params, f, v.Right)
		if err != nil {
			return nil, err
		}
		ls, lok := l.(string)
		rs, rok := r.(string)
		if !lok || !rok {
			return false, nil
		}
		switch v.Op {
		case "CONTAINS":
			return strings.Contains(ls, rs), nil
		case "STARTS WITH":
			return strings.HasPrefix(ls, rs), nil
		case "ENDS WITH":
			return strings.HasSuffix(ls, rs), nil
		}
		return false, nil
	case *ast.NullCheck:
		val, err := eval(ctx, q, params, f, v.Expr)
		if err != nil {
			return nil, err
		}
		if v.IsNot {
			return val != nil, nil
		}
		return val == nil, nil
	case *ast.InCondition:
		return evalIn(ctx, q, params, f, v)
	case *ast.ExistsCondition:
		return evalExists(ctx, q, params, f, v)
	case *ast.ExprCondition:
		val, err := eval(ctx, q, params, f, v.Inner)
		if err != nil {
			return nil, err
		}
		return truthy(val), nil
	default:
		return nil, unsupported("expression type %T", e)
	}
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func evalComparison(ctx context.Context, q store.Querier, params map[string]any, f frame, c *ast.Comparison) (any, error) {
	l, err := eval(ctx, q, params, f, c.Left)
	if err != nil {
		return nil, err
	}
	r, err := eval(ctx, q, params, f, c.Right)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return false, nil
	}
	cmp, ok := compareValues(l, r)
	if !ok {
		return false, nil
	}
	switch c.Op {
	case "=":
		return cmp == 0, nil
	case "<>":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case ">":
		return cmp > 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">=":
		return cmp >= 0, nil
	}
	return nil, unsupported("comparison operator %q", c.Op)
}

func compareValues(l, r any) (int, bool) {
	if lf, ok := asFloat(l); ok {
		if rf, ok := asFloat(r); ok {
			switch {
			case lf < rf:
				return -1, true
			case lf > rf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		return strings.Compare(ls, rs), true
	}
	lb, lbok := l.(bool)
	rb, rbok := r.(bool)
	if lbok && rbok {
		if lb == rb {
			return 0, true
		}
		return -1, true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func evalIn(ctx context.Context, q store.Querier, params map[string]any, f frame, in *ast.InCondition) (any, error) {
	left, err := eval(ctx, q, params, f, in.Expr)
	if err != nil {
		return nil, err
	}
	listVal, err := eval(ctx, q, params, f, in.List)
	if err != nil {
		return nil, err
	}
	list, ok := listVal.([]any)
	if !ok {
		return false, nil
	}
	for _, item := range list {
		if cmp, ok := compareValues(left, item); ok && cmp == 0 {
			return true, nil
		}
	}
	return false, nil
}

// evalExists checks whether the given pattern has at least one match
// when its endpoints already bound in f are held fixed.
func evalExists(ctx context.Context, q store.Querier, params map[string]any, f frame, e *ast.ExistsCondition) (any, error) {
	frames, err := matchPattern(ctx, q, params, []frame{f}, []ast.Pattern{e.Pattern}, nil, false)
	if err != nil {
		return nil, err
	}
	return len(frames) > 0, nil
}

func evalCase(ctx context.Context, q store.Querier, params map[string]any, f frame, c *ast.CaseExpression) (any, error) {
	var testVal any
	var hasTest bool
	if c.Test != nil {
		v, err := eval(ctx, q, params, f, c.Test)
		if err != nil {
			return nil, err
		}
		testVal, hasTest = v, true
	}
	for _, when := range c.Whens {
		if hasTest {
			condVal, err := eval(ctx, q, params, f, when.Cond)
			if err != nil {
				return nil, err
			}
			if cmp, ok := compareValues(testVal, condVal); ok && cmp == 0 {
				return eval(ctx, q, params, f, when.Result)
			}
			continue
		}
		condVal, err := eval(ctx, q, params, f, when.Cond)
		if err != nil {
			return nil, err
		}
		if truthy(condVal) {
			return eval(ctx, q, params, f, when.Result)
		}
	}
	if c.Else != nil {
		return eval(ctx, q, params, f, c.Else)
	}
	return nil, nil
}

func evalFuncCall(ctx context.Context, q store.Querier, params map[string]any, f frame, call *ast.FuncCall) (any, error) {
	name := strings.ToLower(call.Name)
	if translate.IsAggregate(name) {
		return nil, unsupported("aggregate function %q used outside RETURN/WITH projection", call.Name)
	}

	arg := func(i int) (any, error) { return eval(ctx, q, params, f, call.Args[i]) }

	switch name {
	case "id":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		return v, nil
	case "labels":
		vr, ok := call.Args[0].(*ast.VarRef)
		if !ok {
			return nil, typeError("labels() requires a node variable")
		}
		return entityLabelOrType(ctx, q, f, vr.Name)
	case "type":
		vr, ok := call.Args[0].(*ast.VarRef)
		if !ok {
			return nil, typeError("type() requires a relationship variable")
		}
		return entityLabelOrType(ctx, q, f, vr.Name)
	case "properties":
		vr, ok := call.Args[0].(*ast.VarRef)
		if !ok {
			return nil, typeError("properties() requires a node or relationship variable")
		}
		return entityProps(ctx, q, f, vr.Name)
	case "keys":
		props, err := arg(0)
		if err != nil {
			return nil, err
		}
		m, ok := props.(map[string]any)
		if !ok {
			return []any{}, nil
		}
		out := make([]any, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		return out, nil
	case "coalesce":
		for _, a := range call.Args {
			v, err := eval(ctx, q, params, f, a)
			if err != nil {
				return nil, err
			}
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	case "size":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		switch s := v.(type) {
		case []any:
			return float64(len(s)), nil
		case string:
			return float64(len(s)), nil
		}
		return float64(0), nil
	case "head":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		if s, ok := v.([]any); ok && len(s) > 0 {
			return s[0], nil
		}
		return nil, nil
	case "last":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		if s, ok := v.([]any); ok && len(s) > 0 {
			return s[len(s)-1], nil
		}
		return nil, nil
	case "tail":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		if s, ok := v.([]any); ok && len(s) > 0 {
			return append([]any{}, s[1:]...), nil
		}
		return []any{}, nil
	case "range":
		return evalRange(call, func(i int) (any, error) { return arg(i) })
	case "toupper":
		s, err := argString(arg, 0)
		if err != nil {
			return nil, err
		}
		return strings.ToUpper(s), nil
	case "tolower":
		s, err := argString(arg, 0)
		if err != nil {
			return nil, err
		}
		return strings.ToLower(s), nil
	case "trim":
		s, err := argString(arg, 0)
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(s), nil
	case "tostring":
		v, err := arg(0)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("%v", v), nil
	case "replace":
		s, err := argString(arg, 0)
		if err != nil {
			return nil, err
		}
		old, err := argString(arg, 1)
		if err != nil {
			return nil, err
		}
		nw, err := argString(arg, 2)
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(s, old, nw), nil
	case "split":
		s, err := argString(arg, 0)
		if err != nil {
			return nil, err
		}
		sep, err := argString(arg, 1)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, sep)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out, nil
	case "substring":
		s, err := argString(arg, 0)
		if err != nil {
			return nil, err
		}
		start, err := argInt(arg, 1)
		if err != nil {
			return nil, err
		}
		if start > len(s) {
			start = len(s)
		}
		if len(call.Args) == 2 {
			return s[start:], nil
		}
		length, err := argInt(arg, 2)
		if err != nil {
			return nil, err
		}
		end := start + length
		if end > len(s) {
			end = len(s)
		}
		return s[start:end], nil
	case "abs":
		n, err := argFloat(arg, 0)
		if err != nil {
			return nil, err
		}
		return math.Abs(n), nil
	case "ceil":
		n, err := argFloat(arg, 0)
		if err != nil {
			return nil, err
		}
		return math.Ceil(n), nil
	case "floor":
		n, err := argFloat(arg, 0)
		if err != nil {
			return nil, err
		}
		return math.Floor(n), nil
	case "round":
		n, err := argFloat(arg, 0)
		if err != nil {
			return nil, err
		}
		return math.Round(n), nil
	case "sqrt":
		n, err := argFloat(arg, 0)
		if err != nil {
			return nil, err
		}
		return math.Sqrt(n), nil
	case "rand":
		return rand.Float64(), nil
	case "date":
		return time.Now().UTC().Format("2006-01-02"), nil
	case "datetime":
		return time.Now().UTC().Format("2006-01-02 15:04:05"), nil
	case "timestamp":
		return float64(time.Now().UnixMilli()), nil
	default:
		return nil, unsupported("function %q", call.Name)
	}
}

func argFloat(arg func(int) (any, error), i int) (float64, error) {
	v, err := arg(i)
	if err != nil {
		return 0, err
	}
	if n, ok := asFloat(v); ok {
		return n, nil
	}
	return 0, typeError("argument %d must be numeric", i)
}

func argString(arg func(int) (any, error), i int) (string, error) {
	v, err := arg(i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError("argument %d must be a string", i)
	}
	return s, nil
}

func argInt(arg func(int) (any, error), i int) (int, error) {
	v, err := arg(i)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int64:
		return int(n), nil
	case string:
		parsed, convErr := strconv.Atoi(n)
		if convErr != nil {
			return 0, typeError("argument %d must be numeric", i)
		}
		return parsed, nil
	}
	return 0, typeError("argument %d must be numeric", i)
}

func evalRange(call *ast.FuncCall, arg func(int) (any, error)) (any, error) {
	lo, err := argInt(arg, 0)
	if err != nil {
		return nil, err
	}
	hi, err := argInt(arg, 1)
	if err != nil {
		return nil, err
	}
	step := 1
	if len(call.Args) > 2 {
		step, err = argInt(arg, 2)
		if err != nil {
			return nil, err
		}
	}
	if step == 0 {
		return nil, typeError("range() step cannot be zero")
	}
	var out []any
	if step > 0 {
		for v := lo; v <= hi; v += step {
			out = append(out, float64(v))
		}
	} else {
		for v := lo; v >= hi; v += step {
			out = append(out, float64(v))
		}
	}
	return out, nil
}
