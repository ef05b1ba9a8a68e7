package executor

import (
	"context"
	"fmt"

	"github.com/wouteroostervld/graphdb/internal/ast"
	"github.com/wouteroostervld/graphdb/internal/store"
	"github.com/wouteroostervld/graphdb/internal/translate"
)

// matchPattern runs one MATCH/OPTIONAL MATCH/EXISTS pattern list against
// each input frame, joining node/edge variables already bound in that
// frame as equality constraints so a later pattern correctly threads
// continuity with an earlier one (spec.md's variable registry, reused
// here across clause boundaries rather than only within one clause).
//
// Every input frame expands independently into zero or more output
// frames (a nested-loop join against the pattern's own SQL match), so
// `frames` can grow multiplicatively across a chain of MATCH clauses;
// this trades some performance for a uniform, storage-agnostic
// implementation that never re-derives SQL join planning by hand.
func matchPattern(ctx context.Context, q store.Querier, params map[string]any, frames []frame, patterns []ast.Pattern, where ast.Expression, optional bool) ([]frame, error) {
	var out []frame
	for _, f := range frames {
		tctx := translate.NewContext(params)
		var args []any
		if err := translate.CompileMatchPatterns(tctx, &args, patterns); err != nil {
			return nil, unsupported("%v", err)
		}

		named := tctx.NamedVars()
		for _, name := range named {
			existing, bound := f.vars[name]
			if !bound {
				continue
			}
			vi, _ := tctx.Lookup(name)
			if id, ok := existing.(int64); ok {
				tctx.AddFilter(fmt.Sprintf("%s.id = ?", vi.Alias))
				args = append(args, id)
			} else if existing == nil {
				// A variable nulled out by an earlier OPTIONAL MATCH can
				// never satisfy a later pattern that requires it bound.
				tctx.AddFilter("0")
			}
		}

		cols := make([]translate.Column, 0, len(named))
		for _, name := range named {
			vi, _ := tctx.Lookup(name)
			cols = append(cols, translate.Column{SQL: vi.Alias + ".id", Name: name})
		}
		if len(cols) == 0 {
			cols = append(cols, translate.Column{SQL: "1", Name: "_exists"})
		}

		resolve := translate.MatchResolver(tctx)
		whereSQL, err := translate.WhereClause(tctx, &args, resolve, where)
		if err != nil {
			if uv, ok := err.(*translate.UnresolvedVariableError); ok {
				return nil, unresolvedVar(uv.Variable)
			}
			return nil, unsupported("%v", err)
		}
		sqlText := translate.BuildSelect(tctx, cols, false, whereSQL, nil, "")

		rows, err := store.QueryRows(ctx, q, sqlText, args)
		if err != nil {
			return nil, storageError(err)
		}

		if len(rows) == 0 && optional {
			nf := f.clone()
			for _, name := range named {
				vi, _ := tctx.Lookup(name)
				nf.vars[name] = nil
				nf.kinds[name] = vi.Kind
			}
			out = append(out, nf)
			continue
		}

		for _, row := range rows {
			nf := f.clone()
			for _, name := range named {
				vi, _ := tctx.Lookup(name)
				nf.vars[name] = row.Values[name]
				nf.kinds[name] = vi.Kind
			}
			out = append(out, nf)
		}
	}
	return out, nil
}
