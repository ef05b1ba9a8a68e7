package lexer

import (
	"testing"

	"github.com/wouteroostervld/graphdb/internal/token"
)

func kinds(t *testing.T, src string) []token.Kind {
	t.Helper()
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestTokenizeBasicMatch(t *testing.T) {
	got := kinds(t, "MATCH (n:Person) RETURN n.name")
	want := []token.Kind{
		token.MATCH, token.LPAREN, token.IDENT, token.COLON, token.IDENT, token.RPAREN,
		token.RETURN, token.IDENT, token.DOT, token.IDENT, token.EOF,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTokenizePunctuationAndOperators(t *testing.T) {
	cases := map[string]token.Kind{
		"->": token.ARROW_R,
		"<-": token.ARROW_L,
		"<=": token.LE,
		">=": token.GE,
		"<>": token.NE,
		"..": token.DOTDOT,
		"=":  token.EQ,
		"<":  token.LT,
		">":  token.GT,
	}
	for src, want := range cases {
		toks, err := Tokenize(src)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", src, err)
		}
		if len(toks) != 2 || toks[0].Kind != want {
			t.Errorf("Tokenize(%q) = %v, want single %s token", src, toks, want)
		}
	}
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks, err := Tokenize(`'it\'s a \ttest'`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if toks[0].Kind != token.STRING {
		t.Fatalf("expected STRING, got %s", toks[0].Kind)
	}
	want := "it's a \ttest"
	if toks[0].Lit != want {
		t.Errorf("got %q, want %q", toks[0].Lit, want)
	}
}

func TestTokenizeNumbers(t *testing.T) {
	toks, err := Tokenize("42 3.14 -7")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []string{"42", "3.14", "-7"}
	for i, w := range want {
		if toks[i].Kind != token.NUMBER || toks[i].Lit != w {
			t.Errorf("token %d: got %s %q, want NUMBER %q", i, toks[i].Kind, toks[i].Lit, w)
		}
	}
}

func TestTokenizeParamAndKeywordCaseInsensitivity(t *testing.T) {
	toks, err := Tokenize("match (n) where n.age > $minAge")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if toks[0].Kind != token.MATCH {
		t.Errorf("lowercase 'match' should still lex as MATCH keyword, got %s", toks[0].Kind)
	}
	var paramTok *token.Token
	for i := range toks {
		if toks[i].Kind == token.PARAM {
			paramTok = &toks[i]
		}
	}
	if paramTok == nil || paramTok.Lit != "minAge" {
		t.Fatalf("expected PARAM token 'minAge', got %v", paramTok)
	}
}

func TestTokenizeCommentSkipped(t *testing.T) {
	toks, err := Tokenize("MATCH (n) # a comment\nRETURN n")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	for _, tok := range toks {
		if tok.Kind == token.ILLEGAL {
			t.Fatalf("comment text leaked into tokens: %v", toks)
		}
	}
}

func TestTokenizeUnterminatedStringError(t *testing.T) {
	_, err := Tokenize(`'unterminated`)
	if err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
}

func TestTokenizeUnexpectedCharacterError(t *testing.T) {
	_, err := Tokenize("MATCH (n) RETURN n ~ 1")
	if err == nil {
		t.Fatal("expected an error for an unsupported character")
	}
	lerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *lexer.Error, got %T", err)
	}
	if lerr.Pos.Line != 1 {
		t.Errorf("expected error on line 1, got %d", lerr.Pos.Line)
	}
}
