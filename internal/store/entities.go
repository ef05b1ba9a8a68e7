package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Node is the stored shape of a graph node: an opaque id, a JSON-array
// label (even when a single label is present), and a JSON properties
// object.
type Node struct {
	ID         int64
	Label      []string
	Properties map[string]any
}

// Edge is the stored shape of a directed relationship between two nodes.
type Edge struct {
	ID         int64
	Type       string
	SourceID   int64
	TargetID   int64
	Properties map[string]any
}

// InsertNode inserts a new node and returns its generated id.
func InsertNode(ctx context.Context, q Querier, labels []string, props map[string]any) (int64, error) {
	if labels == nil {
		labels = []string{}
	}
	if props == nil {
		props = map[string]any{}
	}
	labelJSON, err := json.Marshal(labels)
	if err != nil {
		return 0, fmt.Errorf("store: marshal labels: %w", err)
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return 0, fmt.Errorf("store: marshal properties: %w", err)
	}
	res, err := Execute(ctx, q, `INSERT INTO nodes (label, properties) VALUES (?, ?)`, string(labelJSON), string(propsJSON))
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

// InsertEdge inserts a new edge between two existing nodes.
func InsertEdge(ctx context.Context, q Querier, edgeType string, sourceID, targetID int64, props map[string]any) (int64, error) {
	if props == nil {
		props = map[string]any{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return 0, fmt.Errorf("store: marshal properties: %w", err)
	}
	res, err := Execute(ctx, q, `
		INSERT INTO edges (type, source_id, target_id, properties) VALUES (?, ?, ?, ?)`,
		edgeType, sourceID, targetID, string(propsJSON))
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

// GetNode fetches a single node by id, or (nil, nil) if it does not exist.
func GetNode(ctx context.Context, q Querier, id int64) (*Node, error) {
	rows, err := QueryRowsOpt(ctx, q, `SELECT id, label, properties FROM nodes WHERE id = ?`, []any{id}, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToNode(ctx, rows[0])
}

// GetEdge fetches a single edge by id, or (nil, nil) if it does not exist.
func GetEdge(ctx context.Context, q Querier, id int64) (*Edge, error) {
	rows, err := QueryRowsOpt(ctx, q, `SELECT id, type, source_id, target_id, properties FROM edges WHERE id = ?`, []any{id}, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToEdge(ctx, rows[0])
}

// GetNodesByLabel fetches every node whose label array contains label.
func GetNodesByLabel(ctx context.Context, q Querier, label string) ([]*Node, error) {
	rows, err := QueryRowsOpt(ctx, q, `
		SELECT id, label, properties FROM nodes
		WHERE EXISTS (SELECT 1 FROM json_each(nodes.label) WHERE json_each.value = ?)`, []any{label}, true)
	if err != nil {
		return nil, err
	}
	out := make([]*Node, 0, len(rows))
	for _, r := range rows {
		n, err := rowToNode(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// GetEdgesByType fetches every edge of the given relationship type.
func GetEdgesByType(ctx context.Context, q Querier, edgeType string) ([]*Edge, error) {
	rows, err := QueryRowsOpt(ctx, q, `SELECT id, type, source_id, target_id, properties FROM edges WHERE type = ?`, []any{edgeType}, true)
	if err != nil {
		return nil, err
	}
	out := make([]*Edge, 0, len(rows))
	for _, r := range rows {
		e, err := rowToEdge(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// DeleteNode removes a node by id. Callers must delete incident edges
// first (DETACH DELETE semantics, spec.md §3 invariant 1).
func DeleteNode(ctx context.Context, q Querier, id int64) (ExecResult, error) {
	return Execute(ctx, q, `DELETE FROM nodes WHERE id = ?`, id)
}

// DeleteEdge removes an edge by id.
func DeleteEdge(ctx context.Context, q Querier, id int64) (ExecResult, error) {
	return Execute(ctx, q, `DELETE FROM edges WHERE id = ?`, id)
}

// DeleteEdgesByNode removes every edge touching id, either as source or
// target.
func DeleteEdgesByNode(ctx context.Context, q Querier, id int64) (ExecResult, error) {
	return Execute(ctx, q, `DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id, id)
}

// UpdateNodeProperties applies a single `json_set` patch to one node's
// properties, returning the number of rows changed (0 if id does not
// name a node).
func UpdateNodeProperties(ctx context.Context, q Querier, id int64, jsonPath string, value any) (ExecResult, error) {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return ExecResult{}, fmt.Errorf("store: marshal value: %w", err)
	}
	return Execute(ctx, q, `
		UPDATE nodes SET properties = json_set(properties, ?, json(?)) WHERE id = ?`,
		jsonPath, string(valueJSON), id)
}

// UpdateEdgeProperties is UpdateNodeProperties for the edges table.
func UpdateEdgeProperties(ctx context.Context, q Querier, id int64, jsonPath string, value any) (ExecResult, error) {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return ExecResult{}, fmt.Errorf("store: marshal value: %w", err)
	}
	return Execute(ctx, q, `
		UPDATE edges SET properties = json_set(properties, ?, json(?)) WHERE id = ?`,
		jsonPath, string(valueJSON), id)
}

// ReplaceNodeProperties overwrites a node's entire properties object
// with props.
func ReplaceNodeProperties(ctx context.Context, q Querier, id int64, props map[string]any) (ExecResult, error) {
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return ExecResult{}, fmt.Errorf("store: marshal properties: %w", err)
	}
	return Execute(ctx, q, `UPDATE nodes SET properties = ? WHERE id = ?`, string(propsJSON), id)
}

// CountNodes returns the total number of stored nodes.
func CountNodes(ctx context.Context, q Querier) (int64, error) {
	return countOne(ctx, q, `SELECT COUNT(*) FROM nodes`)
}

// CountEdges returns the total number of stored edges.
func CountEdges(ctx context.Context, q Querier) (int64, error) {
	return countOne(ctx, q, `SELECT COUNT(*) FROM edges`)
}

func countOne(ctx context.Context, q Querier, sqlText string) (int64, error) {
	rows, err := q.QueryContext(ctx, sqlText)
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("store: scan count: %w", err)
		}
	}
	return n, rows.Err()
}

func rowToNode(ctx context.Context, r Row) (*Node, error) {
	n := &Node{}
	if id, ok := r.Values["id"].(int64); ok {
		n.ID = id
	}
	var labels []string
	if lbl, ok := r.Values["label"].(string); ok && lbl != "" {
		if err := json.Unmarshal([]byte(lbl), &labels); err != nil {
			return nil, fmt.Errorf("store: decode label: %w", err)
		}
	}
	n.Label = labels
	props := map[string]any{}
	if p, ok := r.Values["properties"].(string); ok && p != "" {
		if err := json.Unmarshal([]byte(p), &props); err != nil {
			return nil, fmt.Errorf("store: decode properties: %w", err)
		}
	}
	n.Properties = expandPropertyStrings(ctx, props)
	return n, nil
}

func rowToEdge(ctx context.Context, r Row) (*Edge, error) {
	e := &Edge{}
	if id, ok := r.Values["id"].(int64); ok {
		e.ID = id
	}
	if t, ok := r.Values["type"].(string); ok {
		e.Type = t
	}
	if s, ok := r.Values["source_id"].(int64); ok {
		e.SourceID = s
	}
	if t, ok := r.Values["target_id"].(int64); ok {
		e.TargetID = t
	}
	props := map[string]any{}
	if p, ok := r.Values["properties"].(string); ok && p != "" {
		if err := json.Unmarshal([]byte(p), &props); err != nil {
			return nil, fmt.Errorf("store: decode properties: %w", err)
		}
	}
	e.Properties = expandPropertyStrings(ctx, props)
	return e, nil
}

// expandPropertyStrings applies spec.md §9's JSON-string auto-parse to
// every property value, unless the caller opted out via WithRawStrings.
func expandPropertyStrings(ctx context.Context, props map[string]any) map[string]any {
	if rawStringsFromContext(ctx) {
		return props
	}
	for k, v := range props {
		props[k] = recursivelyParseStrings(v)
	}
	return props
}
