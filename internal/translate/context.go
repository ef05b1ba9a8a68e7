// Package translate walks a parsed Cypher AST once and emits one or
// more parameterized SQL statements plus a returnColumns manifest, per
// spec.md §4.2. The translator is pure with respect to storage: it only
// produces SQL text and argument vectors, never touches the database.
package translate

import "fmt"

// VarKind distinguishes a node-bound variable from an edge-bound one,
// since the two resolve to different tables and different projected
// columns at RETURN time.
type VarKind int

const (
	KindNode VarKind = iota
	KindEdge
)

// VarInfo is a registry entry: the stable SQL alias assigned to a
// match/create variable, and whether it names a node or an edge.
type VarInfo struct {
	Kind  VarKind
	Alias string
}

// Context is the per-query variable registry, alias counter, and
// parameter/argument accumulator described in spec.md §9
// ("Variable registry") and §5 ("Shared mutable state" — strictly
// query-local, never shared across queries).
type Context struct {
	vars     map[string]*VarInfo
	order    []string
	nodeSeq  int
	edgeSeq  int
	anonSeq  int
	params   map[string]any
	tables   []string // FROM/JOIN fragments, in emission order
	joined   map[string]bool
	ctes     []string // WITH RECURSIVE ... fragments, one per variable-length pattern
	cteSeq   int
	filters  []string // pattern-derived WHERE conditions (labels, types, inline properties)
}

// NewContext creates a fresh, query-local translation context.
func NewContext(params map[string]any) *Context {
	if params == nil {
		params = map[string]any{}
	}
	return &Context{
		vars:   map[string]*VarInfo{},
		params: params,
		joined: map[string]bool{},
	}
}

// Lookup returns the registry entry for a variable name, if bound.
func (c *Context) Lookup(name string) (*VarInfo, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// anonName synthesizes a unique internal name for an unnamed (`()`)
// node or edge, so it still has a registry slot without ever being
// eligible for RETURN (user identifiers cannot contain '$').
func (c *Context) anonName() string {
	name := fmt.Sprintf("$anon%d", c.anonSeq)
	c.anonSeq++
	return name
}

// RegisterNode returns the existing alias for name if this MATCH/CREATE
// clause already bound it, otherwise allocates a fresh "nN" alias. An
// empty name always allocates a fresh anonymous slot.
func (c *Context) RegisterNode(name string) (*VarInfo, bool) {
	if name == "" {
		name = c.anonName()
	}
	if v, ok := c.vars[name]; ok {
		return v, false
	}
	alias := fmt.Sprintf("n%d", c.nodeSeq)
	c.nodeSeq++
	v := &VarInfo{Kind: KindNode, Alias: alias}
	c.vars[name] = v
	c.order = append(c.order, name)
	return v, true
}

// RegisterEdge is RegisterNode for edge variables, using the "eN" alias
// family.
func (c *Context) RegisterEdge(name string) (*VarInfo, bool) {
	if name == "" {
		name = c.anonName()
	}
	if v, ok := c.vars[name]; ok {
		return v, false
	}
	alias := fmt.Sprintf("e%d", c.edgeSeq)
	c.edgeSeq++
	v := &VarInfo{Kind: KindEdge, Alias: alias}
	c.vars[name] = v
	c.order = append(c.order, name)
	return v, true
}

// NamedVars returns the registry entries for variables visible to
// RETURN — i.e. every bound name that is not a synthesized anonymous
// slot.
func (c *Context) NamedVars() []string {
	out := make([]string, 0, len(c.order))
	for _, name := range c.order {
		if len(name) > 0 && name[0] == '$' {
			continue
		}
		out = append(out, name)
	}
	return out
}

// AddTable records a FROM/JOIN fragment for alias if it has not already
// been joined in this query, returning whether it was newly added.
func (c *Context) AddTable(alias, fragment string) bool {
	if c.joined[alias] {
		return false
	}
	c.joined[alias] = true
	c.tables = append(c.tables, fragment)
	return true
}

// NextCTEName reserves a fresh `WITH RECURSIVE` CTE name without
// recording its body yet, so the body itself can reference the CTE's
// own name for the recursive self-join.
func (c *Context) NextCTEName(nameHint string) string {
	name := fmt.Sprintf("%s%d", nameHint, c.cteSeq)
	c.cteSeq++
	return name
}

// AddCTEBody records the body for a name previously reserved with
// NextCTEName.
func (c *Context) AddCTEBody(name, body string) {
	c.ctes = append(c.ctes, fmt.Sprintf("%s AS (\n%s\n)", name, body))
}

// FromClause renders the accumulated FROM/JOIN fragments and any
// `WITH RECURSIVE` CTEs as a single SQL fragment, starting with `FROM`.
func (c *Context) FromClause() string {
	var sql string
	if len(c.ctes) > 0 {
		sql += "WITH RECURSIVE "
		for i, cte := range c.ctes {
			if i > 0 {
				sql += ",\n"
			}
			sql += cte
		}
		sql += "\n"
	}
	sql += "FROM " + c.tables[0]
	for _, t := range c.tables[1:] {
		sql += ",\n" + t
	}
	return sql
}

// Params returns the query parameter bindings this context resolves
// `$name` references against.
func (c *Context) Params() map[string]any {
	return c.params
}

// AddFilter records a pattern-derived WHERE condition (label containment,
// edge type equality, inline `{prop: val}` equality). These are ANDed
// together with the clause's explicit WHERE expression at render time.
func (c *Context) AddFilter(sql string) {
	c.filters = append(c.filters, sql)
}

// Filters returns the accumulated pattern-derived conditions.
func (c *Context) Filters() []string {
	return c.filters
}
