package parser

import (
	"strconv"
	"strings"

	"github.com/wouteroostervld/graphdb/internal/ast"
	"github.com/wouteroostervld/graphdb/internal/token"
)

// parseExpr is the entry point for any expression position: RETURN/WITH
// items, SET right-hand sides, WHERE conditions, function arguments,
// property map values. Precedence (lowest to highest):
// OR, AND, NOT, comparison, additive, multiplicative, primary.
func (p *Parser) parseExpr() (ast.Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.OR) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalOp{Op: "OR", Left: toCondition(left), Right: toCondition(right)}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.at(token.AND) {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.LogicalOp{Op: "AND", Left: toCondition(left), Right: toCondition(right)}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expression, error) {
	if p.at(token.NOT) {
		p.advance()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.NotCondition{Inner: toCondition(inner)}, nil
	}
	return p.parseComparison()
}

// toCondition wraps a plain Expression as a Condition; boolean-valued
// function calls, variables, and literals are passed through their
// Comparison-shaped neighbors already, so this only needs to satisfy
// the Condition interface for the AND/OR/NOT tree builders.
func toCondition(e ast.Expression) ast.Condition {
	if c, ok := e.(ast.Condition); ok {
		return c
	}
	return &ast.ExprCondition{Inner: e}
}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	switch p.cur().Kind {
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE:
		opTok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.Comparison{Op: opTok.Lit, Left: left, Right: right}, nil
	case token.IS:
		p.advance()
		isNot := false
		if p.at(token.NOT) {
			p.advance()
			isNot = true
		}
		if _, err := p.expect(token.NULL); err != nil {
			return nil, err
		}
		return &ast.NullCheck{Expr: left, IsNot: isNot}, nil
	case token.IN:
		p.advance()
		list, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.InCondition{Expr: left, List: list}, nil
	case token.CONTAINS:
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.StringPredicate{Op: "CONTAINS", Left: left, Right: right}, nil
	case token.STARTS:
		p.advance()
		if _, err := p.expect(token.WITH); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.StringPredicate{Op: "STARTS WITH", Left: left, Right: right}, nil
	case token.ENDS:
		p.advance()
		if _, err := p.expect(token.WITH); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.StringPredicate{Op: "ENDS WITH", Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(token.PLUS) || p.at(token.DASH) {
		opTok := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: opTok.Lit, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(token.STAR) || p.at(token.SLASH) || p.at(token.PERCENT) {
		opTok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: opTok.Lit, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	if p.at(token.DASH) {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOp{Op: "-", Left: &ast.Literal{Value: float64(0)}, Right: inner}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	t := p.cur()
	switch t.Kind {
	case token.NUMBER:
		p.advance()
		f, err := strconv.ParseFloat(t.Lit, 64)
		if err != nil {
			return nil, p.errorf("invalid number literal %q", t.Lit)
		}
		return &ast.Literal{Value: f}, nil
	case token.STRING:
		p.advance()
		return &ast.Literal{Value: t.Lit}, nil
	case token.TRUE:
		p.advance()
		return &ast.Literal{Value: true}, nil
	case token.FALSE:
		p.advance()
		return &ast.Literal{Value: false}, nil
	case token.NULL:
		p.advance()
		return &ast.Literal{Value: nil}, nil
	case token.PARAM:
		p.advance()
		return &ast.ParamRef{Name: t.Lit}, nil
	case token.LPAREN:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case token.LBRACKET:
		return p.parseArrayLiteral()
	case token.LBRACE:
		return p.parseObjectLiteral()
	case token.CASE:
		p.advance()
		return p.parseCaseExpr()
	case token.EXISTS:
		p.advance()
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		patterns, err := p.parsePatternChain()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		if len(patterns) != 1 {
			return nil, p.errorf("EXISTS supports a single pattern")
		}
		return &ast.ExistsCondition{Pattern: patterns[0]}, nil
	case token.IDENT:
		return p.parseIdentExpr()
	default:
		return nil, p.errorf("unexpected token %s %q in expression", t.Kind, t.Lit)
	}
}

// parseIdentExpr disambiguates a bare variable, `var.prop`, and a
// function call `name(args)` (with an optional leading DISTINCT).
func (p *Parser) parseIdentExpr() (ast.Expression, error) {
	nameTok := p.advance()
	name := nameTok.Lit

	if p.at(token.LPAREN) {
		p.advance()
		call := &ast.FuncCall{Name: name}
		if p.at(token.DISTINCT) {
			p.advance()
			call.Distinct = true
		}
		if !p.at(token.RPAREN) {
			for {
				// `count(*)` — STAR with no variable means "all rows".
				if p.at(token.STAR) {
					p.advance()
					call.Args = append(call.Args, &ast.VarRef{Name: "*"})
				} else {
					arg, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					call.Args = append(call.Args, arg)
				}
				if p.at(token.COMMA) {
					p.advance()
					continue
				}
				break
			}
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return call, nil
	}

	for p.at(token.DOT) {
		p.advance()
		propTok, err := p.expectPropertyName()
		if err != nil {
			return nil, err
		}
		return &ast.PropertyAccess{Variable: name, Property: propTok}, nil
	}
	return &ast.VarRef{Name: name}, nil
}

// expectPropertyName accepts an identifier, or a keyword re-cased to
// lower-case (so `n.order`, `n.set` keep working without reserving the
// word).
func (p *Parser) expectPropertyName() (string, error) {
	t := p.cur()
	if t.Kind == token.IDENT {
		p.advance()
		return t.Lit, nil
	}
	if t.Lit != "" {
		p.advance()
		return strings.ToLower(t.Lit), nil
	}
	return "", p.errorf("expected a property name, got %s %q", t.Kind, t.Lit)
}

func (p *Parser) parseArrayLiteral() (ast.Expression, error) {
	if _, err := p.expect(token.LBRACKET); err != nil {
		return nil, err
	}
	lit := &ast.ArrayLiteral{}
	if p.at(token.RBRACKET) {
		p.advance()
		return lit, nil
	}
	for {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		lit.Items = append(lit.Items, item)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return lit, nil
}

// parseCaseExpr parses both CASE forms. `CASE expr WHEN v THEN r ... END`
// is the simple form; `CASE WHEN cond THEN r ... END` is the searched
// form, distinguished by whether the first token after CASE is WHEN.
func (p *Parser) parseCaseExpr() (ast.Expression, error) {
	ce := &ast.CaseExpression{}
	if !p.at(token.WHEN) {
		test, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Test = test
	}
	for p.at(token.WHEN) {
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.THEN); err != nil {
			return nil, err
		}
		result, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Whens = append(ce.Whens, ast.CaseWhen{Cond: cond, Result: result})
	}
	if len(ce.Whens) == 0 {
		return nil, p.errorf("CASE requires at least one WHEN clause")
	}
	if p.at(token.ELSE) {
		p.advance()
		elseExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Else = elseExpr
	}
	if _, err := p.expect(token.END); err != nil {
		return nil, err
	}
	return ce, nil
}
