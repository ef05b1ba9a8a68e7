package translate

import (
	"fmt"

	"github.com/wouteroostervld/graphdb/internal/ast"
)

// CompileMatchPatterns walks a MATCH/CREATE-shaped pattern list, binding
// each node/edge variable in ctx and recording the FROM/JOIN fragments
// and pattern-derived filters (labels, edge types, inline property
// equality) needed to match it. Placeholders consumed by inline
// property literals are appended to args in emission order.
func CompileMatchPatterns(ctx *Context, args *[]any, patterns []ast.Pattern) error {
	for _, p := range patterns {
		switch pat := p.(type) {
		case *ast.SingleNodePattern:
			if _, err := bindNode(ctx, args, pat.Node); err != nil {
				return err
			}
		case *ast.RelationshipPattern:
			if err := bindRelationship(ctx, args, pat); err != nil {
				return err
			}
		default:
			return fmt.Errorf("translate: unsupported pattern %T", p)
		}
	}
	return nil
}

// bindNode registers (or re-resolves) a node variable and, the first
// time it is bound, joins the nodes table and records its label /
// inline-property filters.
func bindNode(ctx *Context, args *[]any, n *ast.NodePattern) (*VarInfo, error) {
	v, isNew := ctx.RegisterNode(n.Variable)
	if !isNew {
		return v, nil
	}
	if !ctx.AddTable(v.Alias, fmt.Sprintf("nodes AS %s", v.Alias)) {
		return v, nil
	}
	for _, label := range n.Labels {
		ctx.AddFilter(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM json_each(%s.label) WHERE json_each.value = ?)", v.Alias))
		*args = append(*args, label)
	}
	if n.Properties != nil {
		if err := addInlineProps(ctx, args, v.Alias, n.Properties); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func addInlineProps(ctx *Context, args *[]any, alias string, obj *ast.ObjectLiteral) error {
	resolve := MatchResolver(ctx)
	for i, key := range obj.Keys {
		valSQL, err := CompileExpr(ctx, args, resolve, obj.Values[i])
		if err != nil {
			return err
		}
		ctx.AddFilter(fmt.Sprintf("json_extract(%s.properties, %s) = %s", alias, jsonPathLiteral(key), valSQL))
	}
	return nil
}

// bindRelationship joins the source node, the edge, and the target
// node, threading the shared variable if source/target was already
// bound earlier in the pattern chain (e.g. the "b" in
// `(a)-[:R1]->(b)-[:R2]->(c)`).
func bindRelationship(ctx *Context, args *[]any, rel *ast.RelationshipPattern) error {
	src, err := bindNode(ctx, args, rel.Source)
	if err != nil {
		return err
	}
	tgt, err := bindNode(ctx, args, rel.Target)
	if err != nil {
		return err
	}
	edge := rel.Edge
	if edge.VarLength != nil {
		return bindVarLengthEdge(ctx, args, src, tgt, edge)
	}

	ev, isNew := ctx.RegisterEdge(edge.Variable)
	if !isNew {
		return nil
	}
	if !ctx.AddTable(ev.Alias, fmt.Sprintf("edges AS %s", ev.Alias)) {
		return nil
	}
	if edge.Type != "" {
		ctx.AddFilter(fmt.Sprintf("%s.type = ?", ev.Alias))
		*args = append(*args, edge.Type)
	}
	if edge.Properties != nil {
		if err := addInlineProps(ctx, args, ev.Alias, edge.Properties); err != nil {
			return err
		}
	}

	switch edge.Direction {
	case ast.DirRight:
		ctx.AddFilter(fmt.Sprintf("%s.source_id = %s.id", ev.Alias, src.Alias))
		ctx.AddFilter(fmt.Sprintf("%s.target_id = %s.id", ev.Alias, tgt.Alias))
	case ast.DirLeft:
		ctx.AddFilter(fmt.Sprintf("%s.source_id = %s.id", ev.Alias, tgt.Alias))
		ctx.AddFilter(fmt.Sprintf("%s.target_id = %s.id", ev.Alias, src.Alias))
	case ast.DirNone:
		// Undirected read: either endpoint assignment satisfies the pattern.
		ctx.AddFilter(fmt.Sprintf(
			"((%s.source_id = %s.id AND %s.target_id = %s.id) OR (%s.source_id = %s.id AND %s.target_id = %s.id))",
			ev.Alias, src.Alias, ev.Alias, tgt.Alias,
			ev.Alias, tgt.Alias, ev.Alias, src.Alias))
	}
	return nil
}

// bindVarLengthEdge compiles `-[:TYPE*min..max]->` into a `WITH
// RECURSIVE` CTE over the edges table, seeded from the source node and
// widened one hop per recursive step, then joins the target node to
// the CTE's reached-node column.
func bindVarLengthEdge(ctx *Context, args *[]any, src, tgt *VarInfo, edge *ast.EdgePattern) error {
	if edge.Direction == ast.DirNone {
		return fmt.Errorf("translate: undirected variable-length relationships are not supported")
	}
	hop := edge.VarLength
	min := hop.Min
	if min < 1 {
		min = 1
	}

	typeFilter := ""
	if edge.Type != "" {
		typeFilter = " AND e.type = ?"
	}

	var fromCol, toCol string
	if edge.Direction == ast.DirRight {
		fromCol, toCol = "source_id", "target_id"
	} else {
		fromCol, toCol = "target_id", "source_id"
	}

	name := ctx.NextCTEName("path")

	seed := fmt.Sprintf(
		"SELECT e.%s AS start_id, e.%s AS end_id, 1 AS depth FROM edges e WHERE e.%s = %s.id%s",
		fromCol, toCol, fromCol, src.Alias, typeFilter)
	if edge.Type != "" {
		*args = append(*args, edge.Type)
	}

	var maxClause string
	if hop.HasMax {
		maxClause = fmt.Sprintf(" WHERE r.depth < %d", hop.Max)
	}
	step := fmt.Sprintf(
		"SELECT r.start_id, e.%s AS end_id, r.depth + 1 FROM %s r JOIN edges e ON e.%s = r.end_id%s%s",
		toCol, name, fromCol, typeFilter, maxClause)
	if edge.Type != "" {
		// The recursive leg needs its own placeholder copy of the type filter.
		*args = append(*args, edge.Type)
	}

	body := seed + "\nUNION\n" + step
	ctx.AddCTEBody(name, body)

	alias := fmt.Sprintf("p%d", ctx.nodeSeq)
	ctx.nodeSeq++
	ctx.AddTable(alias, fmt.Sprintf("%s AS %s", name, alias))
	ctx.AddFilter(fmt.Sprintf("%s.start_id = %s.id", alias, src.Alias))
	ctx.AddFilter(fmt.Sprintf("%s.end_id = %s.id", alias, tgt.Alias))
	if hop.HasMax {
		ctx.AddFilter(fmt.Sprintf("%s.depth <= %d", alias, hop.Max))
	}
	ctx.AddFilter(fmt.Sprintf("%s.depth >= %d", alias, min))
	return nil
}
