package executor

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wouteroostervld/graphdb/internal/ast"
	"github.com/wouteroostervld/graphdb/internal/parser"
	"github.com/wouteroostervld/graphdb/internal/store"
)

// Result is the shape every Execute call returns: a column manifest,
// the projected rows (nil for a query with no RETURN/CALL...YIELD),
// and the query metadata spec.md §6 calls `meta.count` / `meta.time_ms`.
type Result struct {
	Columns []string
	Rows    []map[string]any
	Meta    Meta
}

// Meta carries per-query diagnostics: row count, wall-clock duration
// rounded to 0.01ms, and (only for an EXPLAIN-prefixed query) the
// chosen strategy name instead of any rows.
type Meta struct {
	Count    int
	TimeMS   float64
	Strategy string
	Explain  bool
}

// Execute parses, plans, and runs a single Cypher query string. An
// "EXPLAIN " prefix (case-insensitive) short-circuits execution and
// instead reports the plan strategy the cascade in strategy.go would
// choose for the query's top-level clause sequence.
func Execute(ctx context.Context, st *store.Store, query string, params map[string]any) (*Result, error) {
	start := time.Now()

	trimmed := strings.TrimSpace(query)
	explain := false
	if len(trimmed) >= 7 && strings.EqualFold(trimmed[:7], "EXPLAIN") {
		explain = true
		trimmed = strings.TrimSpace(trimmed[7:])
	}

	q, err := parser.Parse(trimmed)
	if err != nil {
		if perr, ok := err.(*parser.Error); ok {
			return nil, &Error{Kind: KindParseError, Message: perr.Message, Cause: perr}
		}
		return nil, &Error{Kind: KindParseError, Message: err.Error(), Cause: err}
	}

	if explain {
		return &Result{Meta: Meta{Explain: true, Strategy: selectStrategy(q.Clauses).String()}}, nil
	}

	var columns []string
	var rows []map[string]any

	if queryIsMutating(q) {
		err = st.Transaction(ctx, func(tx *sql.Tx) error {
			columns, rows, err = runUnion(ctx, tx, q, params)
			return err
		})
	} else {
		columns, rows, err = runUnion(ctx, st.DB(), q, params)
	}
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	return &Result{
		Columns: columns,
		Rows:    rows,
		Meta: Meta{
			Count:    len(rows),
			TimeMS:   math.Round(float64(elapsed.Nanoseconds())/10000.0) / 100.0,
			Strategy: selectStrategy(q.Clauses).String(),
		},
	}, nil
}

func runUnion(ctx context.Context, q store.Querier, query *ast.Query, params map[string]any) ([]string, []map[string]any, error) {
	cols, rows, err := runClauses(ctx, q, query.Clauses, params)
	if err != nil {
		return nil, nil, err
	}
	if query.Union == nil {
		return cols, rows, nil
	}
	rightCols, rightRows, err := runUnion(ctx, q, query.Union.Query, params)
	if err != nil {
		return nil, nil, err
	}
	if !sameColumns(cols, rightCols) {
		return nil, nil, typeError("UNION branches must return the same columns, got %v and %v", cols, rightCols)
	}
	combined := append(append([]map[string]any{}, rows...), rightRows...)
	if !query.Union.All {
		combined = dedupeMapRows(combined)
	}
	return cols, combined, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dedupeMapRows(rows []map[string]any) []map[string]any {
	seen := map[string]bool{}
	var out []map[string]any
	for _, row := range rows {
		key := fmt.Sprintf("%v", row)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func queryIsMutating(q *ast.Query) bool {
	for _, c := range q.Clauses {
		switch c.(type) {
		case *ast.CreateClause, *ast.SetClause, *ast.DeleteClause, *ast.MergeClause:
			return true
		}
	}
	if q.Union != nil {
		return queryIsMutating(q.Union.Query)
	}
	return false
}
