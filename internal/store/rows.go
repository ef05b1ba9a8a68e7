package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type rawStringsKey struct{}

// WithRawStrings returns a context in which entity property values that
// are themselves JSON-encoded strings are NOT auto-expanded into nested
// values — they round-trip as the literal string that was stored. The
// default (no WithRawStrings call, or raw=false) auto-expands them, per
// spec.md §9's "practical convenience" resolution.
func WithRawStrings(ctx context.Context, raw bool) context.Context {
	return context.WithValue(ctx, rawStringsKey{}, raw)
}

func rawStringsFromContext(ctx context.Context) bool {
	raw, _ := ctx.Value(rawStringsKey{}).(bool)
	return raw
}

// Row is a single result row keyed by column name, in column order.
type Row struct {
	Columns []string
	Values  map[string]any
}

// QueryRows runs a SELECT and maps every row to a Row, applying the
// recursive JSON-string auto-parse described in spec.md §3 invariant 3
// and §9 ("JSON string auto-parsing on read"): a TEXT column value that
// itself parses as JSON is replaced by its parsed form.
func QueryRows(ctx context.Context, q Querier, sqlText string, args []any) ([]Row, error) {
	return QueryRowsOpt(ctx, q, sqlText, args, false)
}

// QueryRowsOpt is QueryRows with control over the JSON-string
// auto-parse ambiguity noted in spec.md §9: rawStrings=true returns
// TEXT columns verbatim instead of speculatively parsing them as JSON.
func QueryRowsOpt(ctx context.Context, q Querier, sqlText string, args []any, rawStrings bool) ([]Row, error) {
	rows, err := q.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		values := make(map[string]any, len(cols))
		for i, col := range cols {
			if rawStrings {
				values[col] = toPlainString(raw[i])
			} else {
				values[col] = NormalizeValue(raw[i])
			}
		}
		out = append(out, Row{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate rows: %w", err)
	}
	return out, nil
}

func toPlainString(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// NormalizeValue converts a raw driver value (as returned by
// database/sql for SQLite) into the tagged-value union described in
// spec.md §9: []byte becomes string, and any string that itself parses
// as JSON is replaced by the parsed value, recursively.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return parseJSONStringRecursive(string(val))
	case string:
		return parseJSONStringRecursive(val)
	default:
		return v
	}
}

func parseJSONStringRecursive(s string) any {
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return s
	}
	return recursivelyParseStrings(parsed)
}

// recursivelyParseStrings re-applies parseJSONStringRecursive to every
// string found inside a decoded JSON value, so a property whose stored
// value is the JSON-encoded string `"{\"a\":1}"` round-trips as a
// nested object rather than staying a string of JSON text.
func recursivelyParseStrings(v any) any {
	switch val := v.(type) {
	case string:
		var nested any
		if err := json.Unmarshal([]byte(val), &nested); err == nil {
			switch nested.(type) {
			case map[string]any, []any:
				return recursivelyParseStrings(nested)
			}
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = recursivelyParseStrings(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = recursivelyParseStrings(item)
		}
		return val
	default:
		return v
	}
}
