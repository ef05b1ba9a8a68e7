// Package graphdb is the embeddable entry point: it wires the storage
// adapter, parser, translator, and executor behind a single Open/Query
// surface, the way cmd/chainsaw's main() wires pkg/db + pkg/cypher
// together but exposed as a library instead of a CLI-only dependency.
package graphdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wouteroostervld/graphdb/internal/executor"
	"github.com/wouteroostervld/graphdb/internal/store"
)

// DB is an open graph database: one SQLite-backed store plus the
// parser/translator/executor pipeline that runs Cypher against it.
type DB struct {
	store      *store.Store
	logger     *slog.Logger
	rawStrings bool
}

// Option configures a DB at Open time.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	busy       time.Duration
	rawStrings bool
}

// WithLogger sets the slog.Logger used for query lifecycle logging.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBusyTimeout sets SQLite's busy timeout. Defaults to 5s.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busy = d }
}

// WithRawStrings disables the default JSON-string auto-parse on read
// (spec.md §9): property values that are themselves JSON-encoded
// strings are returned as-is instead of being expanded into nested
// values.
func WithRawStrings(raw bool) Option {
	return func(o *options) { o.rawStrings = raw }
}

// Open opens (creating if necessary) the graph database at path.
// Passing ":memory:" opens a private in-process database.
func Open(path string, opts ...Option) (*DB, error) {
	o := &options{logger: slog.Default(), busy: 5 * time.Second}
	for _, fn := range opts {
		fn(o)
	}

	st, err := store.Open(store.Config{Path: path, Logger: o.logger, Busy: o.busy})
	if err != nil {
		return nil, fmt.Errorf("graphdb: open %s: %w", path, err)
	}
	return &DB{store: st, logger: o.logger, rawStrings: o.rawStrings}, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.store.Close()
}

// Response is the shape of a single Query call's outcome, matching
// spec.md §6's external request/response surface.
type Response struct {
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`
	Meta    ResponseMeta     `json:"meta"`
}

// ResponseMeta carries row count, timing, and (for EXPLAIN) the chosen
// plan strategy instead of rows.
type ResponseMeta struct {
	Count    int     `json:"count"`
	TimeMS   float64 `json:"time_ms"`
	Strategy string  `json:"strategy,omitempty"`
	Explain  bool    `json:"explain,omitempty"`
}

// Query runs a single Cypher statement (optionally "EXPLAIN"-prefixed)
// with the given parameters and returns its result.
func (db *DB) Query(ctx context.Context, cypher string, params map[string]any) (Response, error) {
	db.logger.Debug("query", "cypher", cypher)

	ctx = store.WithRawStrings(ctx, db.rawStrings)
	res, err := executor.Execute(ctx, db.store, cypher, params)
	if err != nil {
		db.logger.Warn("query failed", "cypher", cypher, "error", err)
		return Response{}, err
	}

	db.logger.Debug("query complete", "rows", len(res.Rows), "time_ms", res.Meta.TimeMS)
	return Response{
		Columns: res.Columns,
		Rows:    res.Rows,
		Meta: ResponseMeta{
			Count:    res.Meta.Count,
			TimeMS:   res.Meta.TimeMS,
			Strategy: res.Meta.Strategy,
			Explain:  res.Meta.Explain,
		},
	}, nil
}
