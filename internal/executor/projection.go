package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wouteroostervld/graphdb/internal/ast"
	"github.com/wouteroostervld/graphdb/internal/store"
	"github.com/wouteroostervld/graphdb/internal/translate"
)

// projected is one computed RETURN/WITH column for one output row (or
// one aggregate group): its derived name and value, plus whether the
// value is a pass-through node/edge binding (so WITH can keep carrying
// its id/kind instead of collapsing it to a formatted map).
type projected struct {
	name      string
	value     any
	passKind  translate.VarKind
	isPass    bool
	passID    int64
	isNullVar bool
}

// projectItems groups frames by their non-aggregate item values (when
// any item is an aggregate) and evaluates every item once per group,
// or once per frame when there is no aggregate. It backs both WITH
// (rebind=true keeps entity bindings alive for further MATCHing) and
// RETURN (rebind=false formats entities into their final map shape).
func projectItems(ctx context.Context, q store.Querier, params map[string]any, frames []frame, items []ast.ReturnItem, distinct bool, rebind bool) ([][]projected, error) {
	if !translate.NeedsGroupBy(items) {
		out := make([][]projected, 0, len(frames))
		for _, f := range frames {
			row, err := projectOneFrame(ctx, q, params, f, items, rebind)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
		return dedupeRows(out, distinct), nil
	}
	return projectAggregated(ctx, q, params, frames, items, distinct, rebind)
}

func projectOneFrame(ctx context.Context, q store.Querier, params map[string]any, f frame, items []ast.ReturnItem, rebind bool) ([]projected, error) {
	row := make([]projected, 0, len(items))
	for _, item := range items {
		name := item.Alias
		if name == "" {
			name = deriveName(item.Expr)
		}
		if vr, ok := item.Expr.(*ast.VarRef); ok && rebind {
			kind, isNull, id, ok2 := passThrough(f, vr.Name)
			if ok2 {
				row = append(row, projected{name: name, isPass: true, passKind: kind, passID: id, isNullVar: isNull})
				continue
			}
		}
		val, err := formatValue(ctx, q, params, f, item.Expr)
		if err != nil {
			return nil, err
		}
		row = append(row, projected{name: name, value: val})
	}
	return row, nil
}

func passThrough(f frame, name string) (kind translate.VarKind, isNull bool, id int64, ok bool) {
	kind, kindOK := f.kinds[name]
	if !kindOK {
		return 0, false, 0, false
	}
	raw, varOK := f.vars[name]
	if !varOK {
		return 0, false, 0, false
	}
	if raw == nil {
		return kind, true, 0, true
	}
	idv, idOK := raw.(int64)
	if !idOK {
		return 0, false, 0, false
	}
	return kind, false, idv, true
}

// formatValue evaluates expr, additionally shaping a bare node/edge
// VarRef into its full entity representation (id, labels/type,
// properties) instead of a bare internal row id.
func formatValue(ctx context.Context, q store.Querier, params map[string]any, f frame, expr ast.Expression) (any, error) {
	if vr, ok := expr.(*ast.VarRef); ok {
		if kind, isNull, id, ok2 := passThrough(f, vr.Name); ok2 {
			if isNull {
				return nil, nil
			}
			return formatEntity(ctx, q, kind, id)
		}
	}
	return eval(ctx, q, params, f, expr)
}

func formatEntity(ctx context.Context, q store.Querier, kind translate.VarKind, id int64) (any, error) {
	if kind == translate.KindNode {
		n, err := store.GetNode(ctx, q, id)
		if err != nil {
			return nil, storageError(err)
		}
		if n == nil {
			return nil, nil
		}
		return map[string]any{"id": fmt.Sprintf("%d", n.ID), "labels": n.Label, "properties": n.Properties}, nil
	}
	e, err := store.GetEdge(ctx, q, id)
	if err != nil {
		return nil, storageError(err)
	}
	if e == nil {
		return nil, nil
	}
	return map[string]any{
		"id": fmt.Sprintf("%d", e.ID), "type": e.Type,
		"source": fmt.Sprintf("%d", e.SourceID), "target": fmt.Sprintf("%d", e.TargetID),
		"properties": e.Properties,
	}, nil
}

func deriveName(e ast.Expression) string {
	switch v := e.(type) {
	case *ast.VarRef:
		return v.Name
	case *ast.PropertyAccess:
		return v.Variable + "." + v.Property
	case *ast.FuncCall:
		return v.Name
	default:
		return "expr"
	}
}

func dedupeRows(rows [][]projected, distinct bool) [][]projected {
	if !distinct {
		return rows
	}
	seen := map[string]bool{}
	var out [][]projected
	for _, row := range rows {
		key := rowKey(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func rowKey(row []projected) string {
	parts := make([]string, len(row))
	for i, p := range row {
		if p.isPass {
			parts[i] = fmt.Sprintf("E%d:%d:%v", p.passKind, p.passID, p.isNullVar)
		} else {
			parts[i] = fmt.Sprintf("%v", p.value)
		}
	}
	return strings.Join(parts, "\x1f")
}

// projectAggregated groups frames by their non-aggregate item values
// and reduces every aggregate item across each group.
func projectAggregated(ctx context.Context, q store.Querier, params map[string]any, frames []frame, items []ast.ReturnItem, distinct bool, rebind bool) ([][]projected, error) {
	type group struct {
		key    string
		frames []frame
		keyRow []projected
	}
	order := []string{}
	groups := map[string]*group{}

	for _, f := range frames {
		keyRow, err := projectKeyOnly(ctx, q, params, f, items, rebind)
		if err != nil {
			return nil, err
		}
		key := rowKey(keyRow)
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, keyRow: keyRow}
			groups[key] = g
			order = append(order, key)
		}
		g.frames = append(g.frames, f)
	}
	bare := true
	for _, item := range items {
		if call, ok := item.Expr.(*ast.FuncCall); !ok || !translate.IsAggregate(call.Name) {
			bare = false
		}
	}
	if len(frames) == 0 && bare {
		// A bare aggregate over zero rows still yields one row (e.g.
		// count(*) = 0), matching Cypher's RETURN count(*) semantics.
		groups[""] = &group{frames: nil}
		order = append(order, "")
	}

	sort.Strings(order)
	out := make([][]projected, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make([]projected, 0, len(items))
		ki := 0
		for _, item := range items {
			name := item.Alias
			if name == "" {
				name = deriveName(item.Expr)
			}
			if call, ok := item.Expr.(*ast.FuncCall); ok && translate.IsAggregate(call.Name) {
				val, err := reduceAggregate(ctx, q, params, g.frames, call)
				if err != nil {
					return nil, err
				}
				row = append(row, projected{name: name, value: val})
				continue
			}
			row = append(row, g.keyRow[ki])
			ki++
		}
		out = append(out, row)
	}
	return out, nil
}

// projectKeyOnly evaluates only the non-aggregate items of a RETURN/
// WITH list, used to compute a frame's group key.
func projectKeyOnly(ctx context.Context, q store.Querier, params map[string]any, f frame, items []ast.ReturnItem, rebind bool) ([]projected, error) {
	var keyItems []ast.ReturnItem
	for _, item := range items {
		if call, ok := item.Expr.(*ast.FuncCall); ok && translate.IsAggregate(call.Name) {
			continue
		}
		keyItems = append(keyItems, item)
	}
	return projectOneFrame(ctx, q, params, f, keyItems, rebind)
}

func reduceAggregate(ctx context.Context, q store.Querier, params map[string]any, frames []frame, call *ast.FuncCall) (any, error) {
	name := strings.ToLower(call.Name)
	if name == "count" {
		if vr, ok := call.Args[0].(*ast.VarRef); ok && vr.Name == "*" {
			return float64(len(frames)), nil
		}
		if call.Distinct {
			seen := map[string]bool{}
			for _, f := range frames {
				v, err := eval(ctx, q, params, f, call.Args[0])
				if err != nil {
					return nil, err
				}
				if v != nil {
					seen[fmt.Sprintf("%v", v)] = true
				}
			}
			return float64(len(seen)), nil
		}
		n := 0
		for _, f := range frames {
			v, err := eval(ctx, q, params, f, call.Args[0])
			if err != nil {
				return nil, err
			}
			if v != nil {
				n++
			}
		}
		return float64(n), nil
	}

	var values []any
	for _, f := range frames {
		v, err := formatValue(ctx, q, params, f, call.Args[0])
		if err != nil {
			return nil, err
		}
		if v != nil {
			values = append(values, v)
		}
	}

	switch name {
	case "collect":
		if values == nil {
			return []any{}, nil
		}
		return values, nil
	case "sum", "avg", "min", "max":
		return reduceNumeric(name, values)
	default:
		return nil, unsupported("aggregate function %q", call.Name)
	}
}

func reduceNumeric(name string, values []any) (any, error) {
	if len(values) == 0 {
		if name == "sum" {
			return float64(0), nil
		}
		return nil, nil
	}
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		f, ok := asFloat(v)
		if !ok {
			return nil, typeError("%s() requires numeric values", name)
		}
		nums = append(nums, f)
	}
	switch name {
	case "sum":
		var s float64
		for _, n := range nums {
			s += n
		}
		return s, nil
	case "avg":
		var s float64
		for _, n := range nums {
			s += n
		}
		return s / float64(len(nums)), nil
	case "min":
		m := nums[0]
		for _, n := range nums[1:] {
			if n < m {
				m = n
			}
		}
		return m, nil
	case "max":
		m := nums[0]
		for _, n := range nums[1:] {
			if n > m {
				m = n
			}
		}
		return m, nil
	}
	return nil, unsupported("aggregate function %q", name)
}
