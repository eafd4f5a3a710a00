package compiler

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/kboyd-dev/ployvm/internal/token"
)

// listSentinels are the token types that stop the plain item-reading loop
// inside a list: a close paren ends it normally, a dot switches to reading
// a dotted tail, and eof is always an error. Checking membership this way
// keeps the loop condition and the sentinel set in one place instead of
// duplicating the three types across an inline boolean expression.
var listSentinels = []token.Type{token.RightParen, token.Dot, token.EOF}

// ExprKind discriminates the shapes read can produce.
type ExprKind int

const (
	ExprAtom ExprKind = iota
	ExprList
	ExprQuote
)

// Expr is a lightweight parse of one token.IsFinal-delimited expression.
// It exists only to drive the single-pass compiler below; nothing is
// optimized or macro-expanded between reading and compiling.
type Expr struct {
	Kind ExprKind

	Tok     token.Token // ExprAtom
	Items   []Expr      // ExprList
	DotTail *Expr       // ExprList, nil for a proper list
	Quoted  *Expr       // ExprQuote

	// IsFinal mirrors the head token's IsFinal flag: whether this
	// expression is the last one in its enclosing sequence.
	IsFinal bool
}

// Reader walks a token stream produced by token.Scan, reading one
// expression at a time.
type Reader struct {
	toks []token.Token
	pos  int
}

func NewReader(toks []token.Token) *Reader { return &Reader{toks: toks} }

func (r *Reader) peek() token.Token { return r.toks[r.pos] }

func (r *Reader) next() token.Token {
	t := r.toks[r.pos]
	r.pos++
	return t
}

// AtEOF reports whether the reader has nothing left but the EOF token.
func (r *Reader) AtEOF() bool { return r.peek().Type == token.EOF }

// ReadExpr reads and returns the next expression.
func (r *Reader) ReadExpr() (Expr, error) {
	head := r.peek()

	switch head.Type {
	case token.SingleQuote:
		r.next()
		inner, err := r.ReadExpr()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprQuote, Quoted: &inner, IsFinal: head.IsFinal}, nil

	case token.LeftParen:
		r.next()
		var items []Expr
		var dotTail *Expr
		for !slices.Contains(listSentinels, r.peek().Type) {
			item, err := r.ReadExpr()
			if err != nil {
				return Expr{}, err
			}
			items = append(items, item)
		}
		switch r.peek().Type {
		case token.EOF:
			return Expr{}, errors.New("unexpected eof inside list")
		case token.Dot:
			r.next()
			tail, err := r.ReadExpr()
			if err != nil {
				return Expr{}, err
			}
			dotTail = &tail
		}
		if r.peek().Type != token.RightParen {
			return Expr{}, errors.New("expected ) to close list")
		}
		r.next()
		return Expr{Kind: ExprList, Items: items, DotTail: dotTail, IsFinal: head.IsFinal}, nil

	case token.RightParen:
		return Expr{}, errors.New("unexpected )")

	case token.Dot:
		return Expr{}, errors.New("unexpected . outside a list")

	case token.EOF:
		return Expr{}, errors.New("unexpected eof")

	default:
		r.next()
		return Expr{Kind: ExprAtom, Tok: head, IsFinal: head.IsFinal}, nil
	}
}

// ReadAll reads every top-level expression up to EOF.
func (r *Reader) ReadAll() ([]Expr, error) {
	var exprs []Expr
	for !r.AtEOF() {
		e, err := r.ReadExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// IsIdentifier reports whether e is a bare identifier atom equal to name.
func (e Expr) IsIdentifier(name string) bool {
	return e.Kind == ExprAtom && e.Tok.Type == token.Identifier && e.Tok.Value == name
}
