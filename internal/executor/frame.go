package executor

import (
	"context"

	"github.com/wouteroostervld/graphdb/internal/store"
	"github.com/wouteroostervld/graphdb/internal/translate"
)

// frame is one row of variable bindings as execution flows clause by
// clause: node/edge variables bind to their int64 row id, WITH/UNWIND
// introduce plain scalar (or []any/map[string]any) bindings alongside
// them. Entity properties are never copied into a frame; they are
// fetched from the store on demand, so a frame stays cheap to carry
// and copy across MATCH/WITH/WHERE boundaries.
type frame struct {
	vars  map[string]any
	kinds map[string]translate.VarKind
}

func newFrame() frame {
	return frame{vars: map[string]any{}, kinds: map[string]translate.VarKind{}}
}

func (f frame) clone() frame {
	nf := newFrame()
	for k, v := range f.vars {
		nf.vars[k] = v
	}
	for k, v := range f.kinds {
		nf.kinds[k] = v
	}
	return nf
}

// entityProps fetches the current properties object for a bound
// node/edge variable, used by property access and the labels/type/
// properties/keys builtins. A variable left unbound by an OPTIONAL
// MATCH that found no row (isNull) yields nil properties rather than
// an error, matching Cypher's null-propagation for missing optional
// matches.
func entityProps(ctx context.Context, q store.Querier, f frame, variable string) (map[string]any, error) {
	id, kind, isNull, err := boundEntity(f, variable)
	if err != nil {
		return nil, err
	}
	if isNull {
		return nil, nil
	}
	if kind == translate.KindNode {
		n, err := store.GetNode(ctx, q, id)
		if err != nil {
			return nil, storageError(err)
		}
		if n == nil {
			return nil, typeError("node %q (id=%d) no longer exists", variable, id)
		}
		return n.Properties, nil
	}
	e, err := store.GetEdge(ctx, q, id)
	if err != nil {
		return nil, storageError(err)
	}
	if e == nil {
		return nil, typeError("relationship %q (id=%d) no longer exists", variable, id)
	}
	return e.Properties, nil
}

func entityLabelOrType(ctx context.Context, q store.Querier, f frame, variable string) (any, error) {
	id, kind, isNull, err := boundEntity(f, variable)
	if err != nil {
		return nil, err
	}
	if isNull {
		return nil, nil
	}
	if kind == translate.KindNode {
		n, err := store.GetNode(ctx, q, id)
		if err != nil {
			return nil, storageError(err)
		}
		if n == nil {
			return nil, typeError("node %q (id=%d) no longer exists", variable, id)
		}
		labels := make([]any, len(n.Label))
		for i, l := range n.Label {
			labels[i] = l
		}
		return labels, nil
	}
	e, err := store.GetEdge(ctx, q, id)
	if err != nil {
		return nil, storageError(err)
	}
	if e == nil {
		return nil, typeError("relationship %q (id=%d) no longer exists", variable, id)
	}
	return e.Type, nil
}

// boundEntity resolves variable to its bound row id and kind. isNull is
// true when the variable was registered by an OPTIONAL MATCH that
// found no match for this frame, in which case id and kind are zero
// and the caller should propagate null rather than fetch anything.
func boundEntity(f frame, variable string) (id int64, kind translate.VarKind, isNull bool, err error) {
	raw, ok := f.vars[variable]
	if !ok {
		return 0, 0, false, unresolvedVar(variable)
	}
	if raw == nil {
		return 0, 0, true, nil
	}
	id, ok = raw.(int64)
	if !ok {
		return 0, 0, false, typeError("%q is not a node or relationship", variable)
	}
	k, ok := f.kinds[variable]
	if !ok {
		return 0, 0, false, typeError("%q is not a node or relationship", variable)
	}
	return id, k, false, nil
}
