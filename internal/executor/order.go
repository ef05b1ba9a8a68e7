package executor

import (
	"sort"

	"github.com/wouteroostervld/graphdb/internal/ast"
)

// applyOrderSkipLimit sorts and slices a projected row set. Sorting
// happens in Go (not SQL) since projection may already have collapsed
// entities or aggregated across frames by the time ORDER BY runs.
func applyOrderSkipLimit(rows [][]projected, order []ast.OrderItem, skip, limit *int) [][]projected {
	if len(order) > 0 {
		keys := make([]string, len(order))
		for i, o := range order {
			keys[i] = deriveName(o.Expr)
		}
		sort.SliceStable(rows, func(i, j int) bool {
			for k, name := range keys {
				vi := findProjected(rows[i], name)
				vj := findProjected(rows[j], name)
				cmp, ok := compareProjected(vi, vj)
				if !ok || cmp == 0 {
					continue
				}
				if order[k].Descending {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	start := 0
	if skip != nil && *skip > 0 {
		start = *skip
	}
	if start > len(rows) {
		start = len(rows)
	}
	rows = rows[start:]
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}

func findProjected(row []projected, name string) projected {
	for _, p := range row {
		if p.name == name {
			return p
		}
	}
	return projected{}
}

func compareProjected(a, b projected) (int, bool) {
	if a.isPass || b.isPass {
		return 0, false
	}
	return compareValues(a.value, b.value)
}
