package translate

import "github.com/wouteroostervld/graphdb/internal/ast"

// Column is one projected SELECT item: its SQL expression and the name
// the executor should expose it under in a result row.
type Column struct {
	SQL  string
	Name string
}

// NeedsGroupBy reports whether any of items is an aggregate function
// call, which means every non-aggregate item must be grouped on before
// reducing the rest.
func NeedsGroupBy(items []ast.ReturnItem) bool {
	for _, item := range items {
		if call, ok := item.Expr.(*ast.FuncCall); ok && IsAggregate(call.Name) {
			return true
		}
	}
	return false
}
