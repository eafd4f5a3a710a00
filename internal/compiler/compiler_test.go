package compiler

import (
	"testing"

	"github.com/kboyd-dev/ployvm/internal/bytecode"
)

// opcodeCounts walks buf.Code decoding one instruction at a time (safe
// here because none of these programs contain raw data bytes that could
// be mistaken for opcodes — every byte in Code is either an opcode or a
// declared-width immediate operand of the preceding one).
func opcodeCounts(t *testing.T, code []byte) map[bytecode.Op]int {
	t.Helper()
	counts := map[bytecode.Op]int{}
	for i := 0; i < len(code); {
		op := bytecode.Op(code[i])
		counts[op]++
		i += bytecode.Size(op)
	}
	return counts
}

func mustCompile(t *testing.T, src string) *bytecode.Buffer {
	t.Helper()
	buf, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", src, err)
	}
	return buf
}

func TestCompileArithmeticCall(t *testing.T) {
	buf := mustCompile(t, "(+ 1 2)")
	counts := opcodeCounts(t, buf.Code)
	if counts[bytecode.OpCall] == 0 {
		t.Fatalf("expected at least one call, got %v", counts)
	}
	if counts[bytecode.OpHalt] != 1 {
		t.Fatalf("expected exactly one halt, got %v", counts)
	}
}

func TestCompileDefineThenReference(t *testing.T) {
	buf := mustCompile(t, "(define x 41) (+ x 1)")
	counts := opcodeCounts(t, buf.Code)
	if counts[bytecode.OpAddStackVar] != 1 {
		t.Fatalf("expected one add_stack_var for the define, got %v", counts)
	}
	if counts[bytecode.OpPushStackVar] == 0 {
		t.Fatalf("expected the reference to x to push a stack var, got %v", counts)
	}
}

func TestCompileIfEmitsBothJumps(t *testing.T) {
	buf := mustCompile(t, "(if (< 1 2) 1 2)")
	counts := opcodeCounts(t, buf.Code)
	if counts[bytecode.OpJumpForwardIfNot] != 1 || counts[bytecode.OpJumpForward] != 1 {
		t.Fatalf("expected exactly one of each jump, got %v", counts)
	}
}

func TestCompileSelfRecursiveDefine(t *testing.T) {
	buf := mustCompile(t, `
    (define (fact n)
      (if (= n 0) 1 (* n (fact (- n 1)))))
    (fact 5)
`)
	counts := opcodeCounts(t, buf.Code)
	if counts[bytecode.OpCaptureStackVar] == 0 {
		t.Fatalf("fact referencing itself should capture its own root slot, got %v", counts)
	}
}

func TestCompileLambdaCapturesOuterStackVar(t *testing.T) {
	buf := mustCompile(t, `
    (define n 10)
    (lambda (x) (+ x n))
`)
	counts := opcodeCounts(t, buf.Code)
	if counts[bytecode.OpCaptureStackVar] != 1 {
		t.Fatalf("expected exactly one capture of n, got %v", counts)
	}
}

func TestCompileQuotedListBuildsConsChain(t *testing.T) {
	buf := mustCompile(t, "'(1 2 3)")
	counts := opcodeCounts(t, buf.Code)
	if counts[bytecode.OpCons] != 3 {
		t.Fatalf("expected 3 cons instructions for a 3-element list, got %v", counts)
	}
}

func TestCompileUnboundVariableIsError(t *testing.T) {
	if _, err := Compile("undefined-name"); err == nil {
		t.Fatalf("expected an error for an unbound variable")
	}
}

func TestCompileDiscardsNonFinalPureExpressions(t *testing.T) {
	// 1 and 2 are non-final, side-effect-free statements and should not
	// emit any push_constant in the root body; only the final 3 does.
	bodyOnly := mustCompile(t, "3")
	withDiscards := mustCompile(t, "1 2 3")
	wantCount := opcodeCounts(t, bodyOnly.Code)[bytecode.OpPushConstant]
	gotCount := opcodeCounts(t, withDiscards.Code)[bytecode.OpPushConstant]
	if gotCount != wantCount {
		t.Fatalf("discarded non-final literals should add no push_constant, got %d want %d", gotCount, wantCount)
	}
}
