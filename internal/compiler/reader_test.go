package compiler

import (
	"testing"

	"github.com/kboyd-dev/ployvm/internal/token"
)

func readAll(t *testing.T, src string) []Expr {
	t.Helper()
	toks, err := token.Scan(src)
	if err != nil {
		t.Fatalf("Scan(%q) error: %v", src, err)
	}
	exprs, err := NewReader(toks).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll(%q) error: %v", src, err)
	}
	return exprs
}

func TestReadAtom(t *testing.T) {
	exprs := readAll(t, "42")
	if len(exprs) != 1 || exprs[0].Kind != ExprAtom || exprs[0].Tok.Value != "42" {
		t.Fatalf("got %+v", exprs)
	}
	if !exprs[0].IsFinal {
		t.Fatalf("single top-level expression should be final")
	}
}

func TestReadList(t *testing.T) {
	exprs := readAll(t, "(+ 1 2)")
	if len(exprs) != 1 || exprs[0].Kind != ExprList || len(exprs[0].Items) != 3 {
		t.Fatalf("got %+v", exprs)
	}
}

func TestReadDottedPair(t *testing.T) {
	exprs := readAll(t, "'(1 . 2)")
	if len(exprs) != 1 || exprs[0].Kind != ExprQuote {
		t.Fatalf("got %+v", exprs)
	}
	list := *exprs[0].Quoted
	if list.Kind != ExprList || len(list.Items) != 1 || list.DotTail == nil {
		t.Fatalf("expected a dotted pair, got %+v", list)
	}
}

func TestReadFinalMarksLastTopLevelExpression(t *testing.T) {
	exprs := readAll(t, "1 2 3")
	if len(exprs) != 3 {
		t.Fatalf("got %d exprs", len(exprs))
	}
	if exprs[0].IsFinal || exprs[1].IsFinal {
		t.Fatalf("only the last top-level expression should be final")
	}
	if !exprs[2].IsFinal {
		t.Fatalf("last top-level expression should be final")
	}
}

func TestReadNestedBodyFinal(t *testing.T) {
	exprs := readAll(t, "(lambda (x) 1 2 x)")
	body := exprs[0].Items[2:]
	if len(body) != 3 {
		t.Fatalf("got %+v", body)
	}
	if body[0].IsFinal || body[1].IsFinal {
		t.Fatalf("only the last body expression should be final")
	}
	if !body[2].IsFinal {
		t.Fatalf("last body expression should be final")
	}
}
