package ployerr

import (
	"testing"

	"github.com/pkg/errors"
)

func TestWrapPreservesInnerKind(t *testing.T) {
	inner := New(LexError, "unexpected character")
	outer := Wrap(CompileError, inner, "scanning")
	if outer.Kind != LexError {
		t.Fatalf("got %v, want LexError preserved from inner", outer.Kind)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if Wrap(CompileError, nil, "scanning") != nil {
		t.Fatalf("expected Wrap(nil) to return nil")
	}
}

func TestKindOfUnwindsPlainErrorsWrap(t *testing.T) {
	inner := New(RuntimeTypeError, "car of a non-pair")
	outer := errors.Wrap(inner, "calling car")
	if got := KindOf(outer); got != RuntimeTypeError {
		t.Fatalf("got %v, want RuntimeTypeError", got)
	}
}

func TestKindOfUnknownForPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != Unknown {
		t.Fatalf("got %v, want Unknown", got)
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	e := Newf(RuntimeArityError, "expected %d arguments, got %d", 2, 1)
	if e.Error() != "expected 2 arguments, got 1" {
		t.Fatalf("got %q", e.Error())
	}
	if e.Unwrap() == nil {
		t.Fatalf("expected Unwrap to return the underlying cause")
	}
}
