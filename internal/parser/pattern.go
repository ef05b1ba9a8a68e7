package parser

import (
	"strings"

	"github.com/wouteroostervld/graphdb/internal/ast"
	"github.com/wouteroostervld/graphdb/internal/token"
)

// parsePatternChain parses `(a)`, `(a)-[:R]->(b)`, or a multi-hop chain
// `(a)-[:R1]->(b)-[:R2]->(c)`. A chain is flattened into one
// RelationshipPattern per hop; each hop after the first reuses the
// previous target's variable (label stripped) as its own source, so the
// translator can join them back to back without re-filtering the label.
func (p *Parser) parsePatternChain() ([]ast.Pattern, error) {
	first, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	if !p.atEdgeStart() {
		return []ast.Pattern{&ast.SingleNodePattern{Node: first}}, nil
	}

	var out []ast.Pattern
	source := first
	for p.atEdgeStart() {
		edge, target, err := p.parseEdgeAndTarget()
		if err != nil {
			return nil, err
		}
		out = append(out, &ast.RelationshipPattern{Source: source, Edge: edge, Target: target})
		// chain: the next source is the just-matched target, minus its
		// label filter (which has already been applied once).
		source = &ast.NodePattern{Variable: target.Variable}
	}
	return out, nil
}

func (p *Parser) atEdgeStart() bool {
	return p.at(token.DASH) || p.at(token.ARROW_L)
}

// parseNodePattern parses `(var:Label1:Label2 {props})`. Any component
// may be omitted: `()`, `(n)`, `(:Label)`, `({k:v})` are all valid.
func (p *Parser) parseNodePattern() (*ast.NodePattern, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	n := &ast.NodePattern{}
	if p.at(token.IDENT) {
		n.Variable = p.advance().Lit
	}
	for p.at(token.COLON) {
		p.advance()
		label, err := p.parseLabelToken()
		if err != nil {
			return nil, err
		}
		n.Labels = append(n.Labels, label)
	}
	if p.at(token.LBRACE) {
		obj, err := p.parseObjectLiteral()
		if err != nil {
			return nil, err
		}
		n.Properties = obj
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return n, nil
}

// parseLabelToken accepts an identifier, or a keyword re-cased with a
// leading capital when used as a label (e.g. `:Set`, `:Return`).
func (p *Parser) parseLabelToken() (string, error) {
	t := p.cur()
	if t.Kind == token.IDENT {
		p.advance()
		return t.Lit, nil
	}
	if name := keywordAsLabel(t); name != "" {
		p.advance()
		return name, nil
	}
	return "", p.errorf("expected a label, got %s %q", t.Kind, t.Lit)
}

func keywordAsLabel(t token.Token) string {
	if t.Kind == token.IDENT || t.Lit == "" {
		return ""
	}
	// Keywords are normalized to upper-case by the lexer; re-cased as
	// `Title` when used where a label/type is expected.
	lower := t.Lit
	if len(lower) == 0 {
		return ""
	}
	return string(lower[0]) + toLowerRest(lower)
}

func toLowerRest(s string) string {
	b := []byte(s)
	for i := 1; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] = b[i] - 'A' + 'a'
		}
	}
	return string(b[1:])
}

// parseEdgeAndTarget parses `-[var:TYPE*min..max {props}]->` (or `<-...-`,
// or `-...-`) followed by the target node pattern.
func (p *Parser) parseEdgeAndTarget() (*ast.EdgePattern, *ast.NodePattern, error) {
	edge := &ast.EdgePattern{}
	leftArrow := false
	if p.at(token.ARROW_L) {
		p.advance()
		leftArrow = true
	} else if _, err := p.expect(token.DASH); err != nil {
		return nil, nil, err
	}

	hasBracket := p.at(token.LBRACKET)
	if hasBracket {
		p.advance()
		if p.at(token.IDENT) {
			edge.Variable = p.advance().Lit
		}
		if p.at(token.COLON) {
			p.advance()
			typ, err := p.parseLabelToken()
			if err != nil {
				return nil, nil, err
			}
			edge.Type = typ
			for p.at(token.PIPE) {
				// Additional alternative relationship types are accepted
				// syntactically but only the first is used for matching,
				// matching the spec's single `type` filter per edge.
				p.advance()
				if _, err := p.parseLabelToken(); err != nil {
					return nil, nil, err
				}
			}
		}
		if p.at(token.STAR) {
			p.advance()
			hops, err := p.parseHopRange()
			if err != nil {
				return nil, nil, err
			}
			edge.VarLength = hops
		}
		if p.at(token.LBRACE) {
			obj, err := p.parseObjectLiteral()
			if err != nil {
				return nil, nil, err
			}
			edge.Properties = obj
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return nil, nil, err
		}
	}

	rightArrow := false
	if p.at(token.ARROW_R) {
		p.advance()
		rightArrow = true
	} else if _, err := p.expect(token.DASH); err != nil {
		return nil, nil, err
	}

	switch {
	case leftArrow && !rightArrow:
		edge.Direction = ast.DirLeft
	case rightArrow && !leftArrow:
		edge.Direction = ast.DirRight
	case !leftArrow && !rightArrow:
		edge.Direction = ast.DirNone
	default:
		return nil, nil, p.errorf("a relationship cannot point both directions")
	}

	target, err := p.parseNodePattern()
	if err != nil {
		return nil, nil, err
	}
	return edge, target, nil
}

// parseHopRange parses the suffix after `*`: bare `*` (1..unbounded),
// `*n` (n..n), `*m..n`, `*m..`, `*..n`.
func (p *Parser) parseHopRange() (*ast.HopRange, error) {
	hr := &ast.HopRange{Min: 1}
	if !p.at(token.NUMBER) && !p.at(token.DOTDOT) {
		return hr, nil // bare `*`
	}
	if p.at(token.NUMBER) {
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		hr.Min = n
		hr.Max = n
		hr.HasMax = true
	}
	if p.at(token.DOTDOT) {
		p.advance()
		hr.HasMax = false
		hr.Max = 0
		if p.at(token.NUMBER) {
			n, err := p.parseIntLiteral()
			if err != nil {
				return nil, err
			}
			hr.Max = n
			hr.HasMax = true
		}
	}
	return hr, nil
}

// parseObjectLiteral parses `{k: v, "k2": v2}`. Keyword-valued keys
// (e.g. `id:`, `order:`) are accepted so common property names are not
// reserved.
func (p *Parser) parseObjectLiteral() (*ast.ObjectLiteral, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	obj := &ast.ObjectLiteral{}
	if p.at(token.RBRACE) {
		p.advance()
		return obj, nil
	}
	for {
		key, err := p.parsePropertyKey()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		obj.Keys = append(obj.Keys, key)
		obj.Values = append(obj.Values, val)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return obj, nil
}

func (p *Parser) parsePropertyKey() (string, error) {
	t := p.cur()
	if t.Kind == token.IDENT || t.Kind == token.STRING {
		p.advance()
		return t.Lit, nil
	}
	if t.Kind != token.ILLEGAL && t.Kind != token.EOF && t.Lit != "" {
		// A keyword used as a property key (e.g. `id:`, `order:`) keeps
		// its lower-case spelling rather than the label re-casing rule.
		p.advance()
		return strings.ToLower(t.Lit), nil
	}
	return "", p.errorf("expected a property key, got %s %q", t.Kind, t.Lit)
}
