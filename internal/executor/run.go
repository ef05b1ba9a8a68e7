package executor

import (
	"context"

	"github.com/wouteroostervld/graphdb/internal/ast"
	"github.com/wouteroostervld/graphdb/internal/store"
)

// runClauses interprets one linear clause sequence (no UNION) against
// q, threading a growing/shrinking list of variable-binding frames
// clause by clause. Mutating clauses (CREATE/SET/DELETE/MERGE) run
// directly against q, so callers that need transactional scope open
// one before calling runClauses and commit/rollback around it.
func runClauses(ctx context.Context, q store.Querier, clauses []ast.Clause, params map[string]any) (columns []string, rows []map[string]any, err error) {
	frames := []frame{newFrame()}
	returned := false

	for _, clause := range clauses {
		switch c := clause.(type) {
		case *ast.MatchClause:
			frames, err = matchPattern(ctx, q, params, frames, c.Patterns, c.Where, c.Optional)
			if err != nil {
				return nil, nil, err
			}

		case *ast.UnwindClause:
			frames, err = applyUnwind(ctx, q, params, frames, c)
			if err != nil {
				return nil, nil, err
			}

		case *ast.WithClause:
			projRows, perr := projectItems(ctx, q, params, frames, c.Items, c.Distinct, true)
			if perr != nil {
				return nil, nil, perr
			}
			frames = framesFromProjected(projRows)
			if c.Where != nil {
				var kept []frame
				for _, f := range frames {
					v, everr := eval(ctx, q, params, f, c.Where)
					if everr != nil {
						return nil, nil, everr
					}
					if truthy(v) {
						kept = append(kept, f)
					}
				}
				frames = kept
			}
			if len(c.OrderBy) > 0 || c.Skip != nil || c.Limit != nil {
				// Re-derive projected rows post-filter to sort/slice, then
				// rebuild frames once more.
				projRows, perr = projectItems(ctx, q, params, frames, c.Items, false, true)
				if perr != nil {
					return nil, nil, perr
				}
				projRows = applyOrderSkipLimit(projRows, c.OrderBy, c.Skip, c.Limit)
				frames = framesFromProjected(projRows)
			}

		case *ast.ReturnClause:
			projRows, perr := projectItems(ctx, q, params, frames, c.Items, c.Distinct, false)
			if perr != nil {
				return nil, nil, perr
			}
			projRows = applyOrderSkipLimit(projRows, c.OrderBy, c.Skip, c.Limit)
			columns = columnNamesFor(c.Items)
			rows = rowsFromProjected(projRows)
			returned = true

		case *ast.CreateClause:
			frames, err = applyCreate(ctx, q, params, frames, c.Patterns)
			if err != nil {
				return nil, nil, err
			}

		case *ast.SetClause:
			if err = applySet(ctx, q, params, frames, c.Assignments); err != nil {
				return nil, nil, err
			}

		case *ast.DeleteClause:
			frames, err = applyDelete(ctx, q, frames, c.Variables, c.Detach)
			if err != nil {
				return nil, nil, err
			}

		case *ast.MergeClause:
			frames, err = applyMerge(ctx, q, params, frames, c)
			if err != nil {
				return nil, nil, err
			}

		case *ast.CallClause:
			var callRows []map[string]any
			columns, callRows, err = applyCall(ctx, q, c)
			if err != nil {
				return nil, nil, err
			}
			rows = callRows
			returned = true
			// Each yielded row also becomes a frame, so a following
			// WITH/RETURN can reference the yielded columns.
			frames = make([]frame, len(callRows))
			for i, r := range callRows {
				frames[i] = newFrame()
				for k, v := range r {
					frames[i].vars[k] = v
				}
			}

		default:
			return nil, nil, unsupported("clause type %T", clause)
		}
	}

	if !returned {
		return nil, nil, nil
	}
	return columns, rows, nil
}

func columnNamesFor(items []ast.ReturnItem) []string {
	names := make([]string, len(items))
	for i, it := range items {
		name := it.Alias
		if name == "" {
			name = deriveName(it.Expr)
		}
		names[i] = name
	}
	return names
}

func framesFromProjected(rows [][]projected) []frame {
	out := make([]frame, len(rows))
	for i, row := range rows {
		f := newFrame()
		for _, p := range row {
			if p.isPass {
				if p.isNullVar {
					f.vars[p.name] = nil
				} else {
					f.vars[p.name] = p.passID
				}
				f.kinds[p.name] = p.passKind
				continue
			}
			f.vars[p.name] = p.value
		}
		out[i] = f
	}
	return out
}

func rowsFromProjected(rows [][]projected) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := map[string]any{}
		for _, p := range row {
			m[p.name] = p.value
		}
		out[i] = m
	}
	return out
}
