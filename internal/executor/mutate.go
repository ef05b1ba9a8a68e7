package executor

import (
	"context"

	"github.com/wouteroostervld/graphdb/internal/ast"
	"github.com/wouteroostervld/graphdb/internal/store"
	"github.com/wouteroostervld/graphdb/internal/translate"
)

func applyUnwind(ctx context.Context, q store.Querier, params map[string]any, frames []frame, c *ast.UnwindClause) ([]frame, error) {
	var out []frame
	for _, f := range frames {
		val, err := eval(ctx, q, params, f, c.Expr)
		if err != nil {
			return nil, err
		}
		if val == nil {
			continue
		}
		list, ok := val.([]any)
		if !ok {
			return nil, typeError("UNWIND requires a list expression")
		}
		for _, item := range list {
			nf := f.clone()
			nf.vars[c.Alias] = item
			delete(nf.kinds, c.Alias)
			out = append(out, nf)
		}
	}
	return out, nil
}

func resolveVarID(f frame, name string) (int64, error) {
	raw, ok := f.vars[name]
	if !ok {
		return 0, unresolvedVar(name)
	}
	id, ok := raw.(int64)
	if !ok {
		return 0, typeError("%q does not name a node", name)
	}
	return id, nil
}

// createFromPlan materializes one CreatePlan's nodes and edges into
// the store, binding fresh ids into f (mutated in place).
func createFromPlan(ctx context.Context, q store.Querier, params map[string]any, f *frame, plan *translate.CreatePlan) error {
	for _, cn := range plan.Nodes {
		if _, bound := f.vars[cn.Variable]; cn.Variable != "" && bound {
			// Bound by an earlier clause: reused as an edge endpoint.
			continue
		}
		props := map[string]any{}
		for k, expr := range cn.Properties {
			v, err := translate.EvalValue(params, expr)
			if err != nil {
				return typeError("%v", err)
			}
			props[k] = v
		}
		id, err := store.InsertNode(ctx, q, cn.Labels, props)
		if err != nil {
			return storageError(err)
		}
		if cn.Variable != "" {
			f.vars[cn.Variable] = id
			f.kinds[cn.Variable] = translate.KindNode
		}
	}
	for _, ce := range plan.Edges {
		srcID, err := resolveVarID(*f, ce.SourceVar)
		if err != nil {
			return err
		}
		tgtID, err := resolveVarID(*f, ce.TargetVar)
		if err != nil {
			return err
		}
		props := map[string]any{}
		for k, expr := range ce.Properties {
			v, err := translate.EvalValue(params, expr)
			if err != nil {
				return typeError("%v", err)
			}
			props[k] = v
		}
		id, err := store.InsertEdge(ctx, q, ce.Type, srcID, tgtID, props)
		if err != nil {
			return storageError(err)
		}
		if ce.Variable != "" {
			f.vars[ce.Variable] = id
			f.kinds[ce.Variable] = translate.KindEdge
		}
	}
	return nil
}

func applyCreate(ctx context.Context, q store.Querier, params map[string]any, frames []frame, patterns []ast.Pattern) ([]frame, error) {
	plan, err := translate.PlanCreate(patterns)
	if err != nil {
		return nil, unsupported("%v", err)
	}
	out := make([]frame, 0, len(frames))
	for _, f := range frames {
		nf := f.clone()
		if err := createFromPlan(ctx, q, params, &nf, plan); err != nil {
			return nil, err
		}
		out = append(out, nf)
	}
	return out, nil
}

func applySet(ctx context.Context, q store.Querier, params map[string]any, frames []frame, assignments []ast.Assignment) error {
	for _, f := range frames {
		for _, a := range assignments {
			id, kind, isNull, err := boundEntity(f, a.Variable)
			if err != nil {
				return err
			}
			if isNull {
				continue
			}
			sqlText, args, err := translate.CompileSetAssignmentSQL(params, a.Variable, kind, id, a)
			if err != nil {
				return typeError("%v", err)
			}
			if _, err := store.Execute(ctx, q, sqlText, args...); err != nil {
				return storageError(err)
			}
		}
	}
	return nil
}

func applyDelete(ctx context.Context, q store.Querier, frames []frame, vars []string, detach bool) ([]frame, error) {
	for _, f := range frames {
		for _, name := range vars {
			id, kind, isNull, err := boundEntity(f, name)
			if err != nil {
				return nil, err
			}
			if isNull {
				continue
			}
			for _, stmt := range translate.CompileDeleteSQL(kind, id, detach) {
				if _, err := store.Execute(ctx, q, stmt.SQL, stmt.Args...); err != nil {
					return nil, storageError(err)
				}
			}
		}
	}
	return frames, nil
}

// applyMerge resolves its single pattern per frame: every existing
// match has ON MATCH SET applied; a frame with no match gets the
// pattern created once, with ON CREATE SET applied to the new row(s).
func applyMerge(ctx context.Context, q store.Querier, params map[string]any, frames []frame, c *ast.MergeClause) ([]frame, error) {
	var out []frame
	for _, f := range frames {
		matched, err := matchPattern(ctx, q, params, []frame{f}, []ast.Pattern{c.Pattern}, nil, false)
		if err != nil {
			return nil, err
		}
		if len(matched) > 0 {
			for _, mf := range matched {
				if err := applySet(ctx, q, params, []frame{mf}, c.OnMatchSet); err != nil {
					return nil, err
				}
			}
			out = append(out, matched...)
			continue
		}

		plan, err := translate.PlanCreate([]ast.Pattern{c.Pattern})
		if err != nil {
			return nil, unsupported("%v", err)
		}
		nf := f.clone()
		if err := createFromPlan(ctx, q, params, &nf, plan); err != nil {
			return nil, err
		}
		if err := applySet(ctx, q, params, []frame{nf}, c.OnCreateSet); err != nil {
			return nil, err
		}
		out = append(out, nf)
	}
	return out, nil
}

func applyCall(ctx context.Context, q store.Querier, c *ast.CallClause) ([]string, []map[string]any, error) {
	sqlText, args, err := translate.CompileCallProcedure(c)
	if err != nil {
		return nil, nil, unsupported("%v", err)
	}
	storeRows, err := store.QueryRowsOpt(ctx, q, sqlText, args, true)
	if err != nil {
		return nil, nil, storageError(err)
	}
	var columns []string
	if len(storeRows) > 0 {
		columns = storeRows[0].Columns
	}
	rows := make([]map[string]any, len(storeRows))
	for i, r := range storeRows {
		rows[i] = r.Values
	}
	if c.Where != nil {
		var kept []map[string]any
		for _, row := range rows {
			f := newFrame()
			for k, v := range row {
				f.vars[k] = v
			}
			v, err := eval(ctx, q, nil, f, c.Where)
			if err != nil {
				return nil, nil, err
			}
			if truthy(v) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	return columns, rows, nil
}
