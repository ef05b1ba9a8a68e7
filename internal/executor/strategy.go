package executor

import (
	"strings"

	"github.com/wouteroostervld/graphdb/internal/ast"
)

// strategy names the shape of plan a clause sequence matches, in the
// priority order the selection cascade tries them. Every strategy
// ultimately runs through the same clause interpreter in run.go; the
// name records which structural fast path the query took, which is
// surfaced in query metadata for diagnosability (EXPLAIN-prefixed
// queries print it instead of executing).
type strategy int

const (
	strategyUnwindCreate        strategy = iota // UNWIND <list> AS x CREATE (...)
	strategyMatchCollectUnwind                   // MATCH ... WITH collect(x) AS xs UNWIND xs ... RETURN
	strategyCreateReturn                         // CREATE (...) RETURN ...
	strategyMerge                                // MERGE ... [ON CREATE SET ...] [ON MATCH SET ...]
	strategyGeneralMultiPhase                    // a MATCH/WITH/WHERE prefix feeding a mutation or RETURN
	strategyFallbackSinglePhase                  // anything else, interpreted directly
)

func (s strategy) String() string {
	switch s {
	case strategyUnwindCreate:
		return "unwind+create"
	case strategyMatchCollectUnwind:
		return "match+with(collect)+unwind+return"
	case strategyCreateReturn:
		return "create+return"
	case strategyMerge:
		return "merge"
	case strategyGeneralMultiPhase:
		return "general-multi-phase"
	default:
		return "fallback-single-phase"
	}
}

// selectStrategy classifies a clause sequence. Each case inspects the
// clause kinds present and their order; the only look inside a clause
// is whether a WITH item is a collect() call. Classification is cheap
// and total.
func selectStrategy(clauses []ast.Clause) strategy {
	if len(clauses) == 0 {
		return strategyFallbackSinglePhase
	}

	if _, ok := clauses[0].(*ast.UnwindClause); ok {
		if hasKindAfter(clauses, 0, isCreate) && !hasAnyMatch(clauses) {
			return strategyUnwindCreate
		}
	}

	if hasAnyMatch(clauses) && hasWithCollect(clauses) && hasKind(clauses, isUnwind) {
		return strategyMatchCollectUnwind
	}

	if isCreate(clauses[0]) && onlyKinds(clauses[1:], isReturn) {
		return strategyCreateReturn
	}

	if _, ok := clauses[0].(*ast.MergeClause); ok && len(clauses) <= 2 {
		return strategyMerge
	}

	if hasAnyMatch(clauses) && len(clauses) > 1 {
		return strategyGeneralMultiPhase
	}

	return strategyFallbackSinglePhase
}

func isCreate(c ast.Clause) bool { _, ok := c.(*ast.CreateClause); return ok }
func isReturn(c ast.Clause) bool { _, ok := c.(*ast.ReturnClause); return ok }
func isUnwind(c ast.Clause) bool { _, ok := c.(*ast.UnwindClause); return ok }

func hasAnyMatch(clauses []ast.Clause) bool {
	for _, c := range clauses {
		if _, ok := c.(*ast.MatchClause); ok {
			return true
		}
	}
	return false
}

func hasKind(clauses []ast.Clause, pred func(ast.Clause) bool) bool {
	for _, c := range clauses {
		if pred(c) {
			return true
		}
	}
	return false
}

func hasKindAfter(clauses []ast.Clause, from int, pred func(ast.Clause) bool) bool {
	for i := from + 1; i < len(clauses); i++ {
		if pred(clauses[i]) {
			return true
		}
	}
	return false
}

func onlyKinds(clauses []ast.Clause, pred func(ast.Clause) bool) bool {
	for _, c := range clauses {
		if !pred(c) {
			return false
		}
	}
	return true
}

func hasWithCollect(clauses []ast.Clause) bool {
	for _, c := range clauses {
		w, ok := c.(*ast.WithClause)
		if !ok {
			continue
		}
		for _, item := range w.Items {
			if call, ok := item.Expr.(*ast.FuncCall); ok && strings.ToLower(call.Name) == "collect" {
				return true
			}
		}
	}
	return false
}
