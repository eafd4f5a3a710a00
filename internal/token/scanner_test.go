package token

import "testing"

func scanTok(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := Scan(src)
	if err != nil {
		t.Fatalf("Scan(%q) error: %v", src, err)
	}
	return toks
}

func types(toks []Token) []Type {
	out := make([]Type, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func wantTypes(t *testing.T, src string, want []Type) []Token {
	t.Helper()
	toks := scanTok(t, src)
	got := types(toks)
	if len(got) != len(want) {
		t.Fatalf("source %q: got %d tokens %v, want %d %v", src, len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("source %q: token %d = %v, want %v", src, i, got[i], want[i])
		}
	}
	return toks
}

func TestScanAtoms(t *testing.T) {
	wantTypes(t, "42", []Type{Number, EOF})
	wantTypes(t, "-42", []Type{Number, EOF})
	wantTypes(t, "+42", []Type{Number, EOF})
	wantTypes(t, "3.14", []Type{Number, EOF})
	wantTypes(t, "#t", []Type{BooleanTrue, EOF})
	wantTypes(t, "#f", []Type{BooleanFalse, EOF})
	wantTypes(t, `#\a`, []Type{Character, EOF})
	wantTypes(t, `"hi"`, []Type{String, EOF})
	wantTypes(t, "foo", []Type{Identifier, EOF})
	wantTypes(t, "+", []Type{Identifier, EOF})
	wantTypes(t, "-", []Type{Identifier, EOF})
	wantTypes(t, "list->vector", []Type{Identifier, EOF})
}

func TestScanList(t *testing.T) {
	toks := wantTypes(t, "(+ 1 2)", []Type{
		LeftParen, Identifier, Number, Number, RightParen, EOF,
	})
	if toks[1].Value != "+" || toks[2].Value != "1" || toks[3].Value != "2" {
		t.Fatalf("unexpected token values: %+v", toks[:4])
	}
}

func TestScanQuoteIsSingleExpression(t *testing.T) {
	// 'x should register as one expression anchored on the quote, not two.
	toks := wantTypes(t, "('x)", []Type{LeftParen, SingleQuote, Identifier, RightParen, EOF})
	if !toks[0].IsFinal {
		t.Fatalf("expected left paren '(' to be marked final as the sole top-level expr: %+v", toks)
	}
}

func TestScanIsFinalMarksLastExpressionPerSequence(t *testing.T) {
	toks := scanTok(t, "(define x 1) (+ x 2)")
	// two top level expressions; only the second's opening paren is final.
	if toks[0].IsFinal {
		t.Fatalf("first top-level expression should not be final: %+v", toks[0])
	}
	var secondOpenIdx int
	depth := 0
	for i, tok := range toks {
		if tok.Type == LeftParen {
			depth++
			if depth == 1 && i != 0 {
				secondOpenIdx = i
				break
			}
		}
		if tok.Type == RightParen {
			depth--
		}
	}
	if !toks[secondOpenIdx].IsFinal {
		t.Fatalf("second top-level expression's open paren should be final: %+v", toks)
	}
}

func TestScanNestedIsFinal(t *testing.T) {
	// inside (a (b c) d), the last expression of the outer sequence is `d`,
	// and inside (b c) the last expression is `c`.
	toks := scanTok(t, "(a (b c) d)")
	var dTok, cTok Token
	for _, tok := range toks {
		if tok.Type == Identifier && tok.Value == "d" {
			dTok = tok
		}
		if tok.Type == Identifier && tok.Value == "c" {
			cTok = tok
		}
	}
	if !dTok.IsFinal {
		t.Fatalf("d should be final in outer sequence: %+v", toks)
	}
	if !cTok.IsFinal {
		t.Fatalf("c should be final in inner sequence: %+v", toks)
	}
}

func TestScanComment(t *testing.T) {
	wantTypes(t, "; comment\n42", []Type{Number, EOF})
}

func TestScanErrors(t *testing.T) {
	cases := []string{
		`"unterminated`,
		"#z",
		"#",
		"-x",
		")",
	}
	for _, src := range cases {
		if _, err := Scan(src); err == nil {
			t.Errorf("Scan(%q): expected error, got none", src)
		}
	}
}

func TestScanDot(t *testing.T) {
	wantTypes(t, "(a . b)", []Type{LeftParen, Identifier, Dot, Identifier, RightParen, EOF})
}
