// Package parser implements a hand-written recursive-descent parser for
// the openCypher subset described in the engine's specification. It
// never panics: every failure surfaces as a *Error carrying the
// offending token's source position.
package parser

import (
	"fmt"

	"github.com/wouteroostervld/graphdb/internal/ast"
	"github.com/wouteroostervld/graphdb/internal/lexer"
	"github.com/wouteroostervld/graphdb/internal/token"
)

// Error is a syntax error with token-accurate source coordinates.
type Error struct {
	Message string
	Pos     token.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (line %d, column %d)", e.Message, e.Pos.Line, e.Pos.Column)
}

// Parser holds the token stream and current read position.
type Parser struct {
	tokens []token.Token
	pos    int
}

// Parse tokenizes and parses a complete Cypher query.
func Parse(src string) (*ast.Query, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		if lexErr, ok := err.(*lexer.Error); ok {
			return nil, &Error{Message: lexErr.Message, Pos: lexErr.Pos}
		}
		return nil, &Error{Message: err.Error()}
	}
	p := &Parser{tokens: toks}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if !p.at(token.EOF) {
		return nil, p.errorf("expected end of input, got %s %q", p.cur().Kind, p.cur().Lit)
	}
	return q, nil
}

func (p *Parser) cur() token.Token {
	return p.tokens[p.pos]
}

func (p *Parser) at(k token.Kind) bool {
	return p.cur().Kind == k
}

func (p *Parser) advance() token.Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, p.errorf("expected %s, got %s %q", k, p.cur().Kind, p.cur().Lit)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Pos: p.cur().Pos}
}

// parseQuery parses a sequence of clauses followed by an optional chain
// of UNION / UNION ALL combined queries.
func (p *Parser) parseQuery() (*ast.Query, error) {
	q := &ast.Query{}
	for {
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		q.Clauses = append(q.Clauses, clause)
		if _, ok := clause.(*ast.ReturnClause); ok {
			break
		}
		if p.at(token.UNION) {
			break
		}
		if p.at(token.EOF) {
			break
		}
	}
	if len(q.Clauses) == 0 {
		return nil, p.errorf("empty query")
	}
	if p.at(token.UNION) {
		p.advance()
		all := false
		if p.at(token.ALL) {
			p.advance()
			all = true
		}
		right, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		q.Union = &ast.UnionQuery{All: all, Query: right}
	}
	return q, nil
}

func (p *Parser) parseClause() (ast.Clause, error) {
	switch p.cur().Kind {
	case token.OPTIONAL:
		p.advance()
		if _, err := p.expect(token.MATCH); err != nil {
			return nil, err
		}
		return p.parseMatchBody(true)
	case token.MATCH:
		p.advance()
		return p.parseMatchBody(false)
	case token.CREATE:
		p.advance()
		return p.parseCreate()
	case token.MERGE:
		p.advance()
		return p.parseMerge()
	case token.SET:
		p.advance()
		return p.parseSet()
	case token.DETACH:
		p.advance()
		if _, err := p.expect(token.DELETE); err != nil {
			return nil, err
		}
		return p.parseDelete(true)
	case token.DELETE:
		p.advance()
		return p.parseDelete(false)
	case token.RETURN:
		p.advance()
		return p.parseReturn()
	case token.WITH:
		p.advance()
		return p.parseWith()
	case token.UNWIND:
		p.advance()
		return p.parseUnwind()
	case token.CALL:
		p.advance()
		return p.parseCall()
	default:
		return nil, p.errorf("expected a clause keyword, got %s %q", p.cur().Kind, p.cur().Lit)
	}
}

func (p *Parser) parseMatchBody(optional bool) (ast.Clause, error) {
	patterns, err := p.parsePatternChain()
	if err != nil {
		return nil, err
	}
	clause := &ast.MatchClause{Patterns: patterns, Optional: optional}
	for p.at(token.COMMA) {
		p.advance()
		more, err := p.parsePatternChain()
		if err != nil {
			return nil, err
		}
		clause.Patterns = append(clause.Patterns, more...)
	}
	if p.at(token.WHERE) {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		clause.Where = where
	}
	return clause, nil
}

func (p *Parser) parseCreate() (ast.Clause, error) {
	patterns, err := p.parsePatternChain()
	if err != nil {
		return nil, err
	}
	clause := &ast.CreateClause{Patterns: patterns}
	for p.at(token.COMMA) {
		p.advance()
		more, err := p.parsePatternChain()
		if err != nil {
			return nil, err
		}
		clause.Patterns = append(clause.Patterns, more...)
	}
	return clause, nil
}

func (p *Parser) parseMerge() (ast.Clause, error) {
	patterns, err := p.parsePatternChain()
	if err != nil {
		return nil, err
	}
	if len(patterns) != 1 {
		return nil, p.errorf("MERGE supports a single pattern, got a chain of %d", len(patterns))
	}
	clause := &ast.MergeClause{Pattern: patterns[0]}
	for p.at(token.ON) {
		p.advance()
		switch p.cur().Kind {
		case token.CREATE:
			p.advance()
			if _, err := p.expect(token.SET); err != nil {
				return nil, err
			}
			assigns, err := p.parseAssignments()
			if err != nil {
				return nil, err
			}
			clause.OnCreateSet = assigns
		case token.MATCH:
			p.advance()
			if _, err := p.expect(token.SET); err != nil {
				return nil, err
			}
			assigns, err := p.parseAssignments()
			if err != nil {
				return nil, err
			}
			clause.OnMatchSet = assigns
		default:
			return nil, p.errorf("expected CREATE or MATCH after ON, got %s", p.cur().Kind)
		}
	}
	return clause, nil
}

func (p *Parser) parseSet() (ast.Clause, error) {
	assigns, err := p.parseAssignments()
	if err != nil {
		return nil, err
	}
	return &ast.SetClause{Assignments: assigns}, nil
}

func (p *Parser) parseAssignments() ([]ast.Assignment, error) {
	var out []ast.Assignment
	for {
		a, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *Parser) parseAssignment() (ast.Assignment, error) {
	varTok, err := p.expect(token.IDENT)
	if err != nil {
		return ast.Assignment{}, err
	}
	a := ast.Assignment{Variable: varTok.Lit}
	if p.at(token.DOT) {
		p.advance()
		propTok, err := p.expect(token.IDENT)
		if err != nil {
			return ast.Assignment{}, err
		}
		a.Property = propTok.Lit
	}
	if p.at(token.PLUS) {
		p.advance()
		if _, err := p.expect(token.EQ); err != nil {
			return ast.Assignment{}, err
		}
		a.Merge = true
	} else if _, err := p.expect(token.EQ); err != nil {
		return ast.Assignment{}, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return ast.Assignment{}, err
	}
	a.Value = value
	return a, nil
}

func (p *Parser) parseDelete(detach bool) (ast.Clause, error) {
	var vars []string
	for {
		t, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		vars = append(vars, t.Lit)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return &ast.DeleteClause{Variables: vars, Detach: detach}, nil
}

func (p *Parser) parseReturn() (ast.Clause, error) {
	clause := &ast.ReturnClause{}
	if p.at(token.DISTINCT) {
		p.advance()
		clause.Distinct = true
	}
	items, err := p.parseReturnItems()
	if err != nil {
		return nil, err
	}
	clause.Items = items
	if err := p.parseOrderSkipLimit(&clause.OrderBy, &clause.Skip, &clause.Limit); err != nil {
		return nil, err
	}
	return clause, nil
}

func (p *Parser) parseWith() (ast.Clause, error) {
	clause := &ast.WithClause{}
	if p.at(token.DISTINCT) {
		p.advance()
		clause.Distinct = true
	}
	items, err := p.parseReturnItems()
	if err != nil {
		return nil, err
	}
	clause.Items = items
	if err := p.parseOrderSkipLimit(&clause.OrderBy, &clause.Skip, &clause.Limit); err != nil {
		return nil, err
	}
	if p.at(token.WHERE) {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		clause.Where = where
	}
	return clause, nil
}

func (p *Parser) parseReturnItems() ([]ast.ReturnItem, error) {
	var items []ast.ReturnItem
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := ast.ReturnItem{Expr: expr}
		if p.at(token.AS) {
			p.advance()
			aliasTok, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			item.Alias = aliasTok.Lit
		}
		items = append(items, item)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseOrderSkipLimit(orderBy *[]ast.OrderItem, skip **int, limit **int) error {
	if p.at(token.ORDER) {
		p.advance()
		if _, err := p.expect(token.BY); err != nil {
			return err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return err
			}
			item := ast.OrderItem{Expr: expr}
			if p.at(token.DESC) {
				p.advance()
				item.Descending = true
			} else if p.at(token.ASC) {
				p.advance()
			}
			*orderBy = append(*orderBy, item)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if p.at(token.SKIP) {
		p.advance()
		n, err := p.parseIntLiteral()
		if err != nil {
			return err
		}
		*skip = &n
	}
	if p.at(token.LIMIT) {
		p.advance()
		n, err := p.parseIntLiteral()
		if err != nil {
			return err
		}
		*limit = &n
	}
	return nil
}

func (p *Parser) parseIntLiteral() (int, error) {
	t, err := p.expect(token.NUMBER)
	if err != nil {
		return 0, err
	}
	n, convErr := parseIntStrict(t.Lit)
	if convErr != nil {
		return 0, p.errorf("expected an integer literal, got %q", t.Lit)
	}
	return n, nil
}

func (p *Parser) parseUnwind() (ast.Clause, error) {
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.AS); err != nil {
		return nil, err
	}
	aliasTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.UnwindClause{Expr: expr, Alias: aliasTok.Lit}, nil
}

func (p *Parser) parseCall() (ast.Clause, error) {
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	name := nameTok.Lit
	for p.at(token.DOT) {
		p.advance()
		part, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		name += "." + part.Lit
	}
	clause := &ast.CallClause{Procedure: name}
	if p.at(token.LPAREN) {
		p.advance()
		if !p.at(token.RPAREN) {
			for {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				clause.Args = append(clause.Args, arg)
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
	}
	if p.at(token.YIELD) {
		p.advance()
		for {
			t, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			clause.Yields = append(clause.Yields, t.Lit)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if p.at(token.WHERE) {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		clause.Where = where
	}
	return clause, nil
}

func parseIntStrict(lit string) (int, error) {
	neg := false
	i := 0
	if len(lit) > 0 && lit[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(lit) {
		return 0, fmt.Errorf("not an integer: %q", lit)
	}
	n := 0
	for ; i < len(lit); i++ {
		c := lit[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not an integer: %q", lit)
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}
