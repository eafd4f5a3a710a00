package compiler

import (
	"testing"

	"github.com/kboyd-dev/ployvm/internal/bytecode"
	"github.com/kboyd-dev/ployvm/internal/value"
)

// TestCaptureEmittedRightAfterPushConstant resolves the open question of
// where capture_stack_var/capture_shared_var land: immediately after the
// push_constant that introduces the capturing lambda, in the *enclosing*
// scope's code, forming one contiguous run the VM can walk to attach
// captures to the new closure.
func TestCaptureEmittedRightAfterPushConstant(t *testing.T) {
	buf := mustCompile(t, `
    (define n 10)
    (lambda (x) (+ x n))
`)

	constants := buf.Constants()
	var lambdaIdx = -1
	for i, c := range constants {
		if c.Kind == value.Lambda && !c.IsHandRolled() {
			lambdaIdx = i
		}
	}
	if lambdaIdx < 0 {
		t.Fatalf("expected a lambda constant in the pool")
	}

	code := buf.Code
	found := false
	for i := 0; i+1 < len(code); i++ {
		if bytecode.Op(code[i]) == bytecode.OpPushConstant && int(code[i+1]) == lambdaIdx {
			if i+2 < len(code) && bytecode.Op(code[i+2]) == bytecode.OpCaptureStackVar {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected capture_stack_var immediately after push_constant of the lambda, code=%v", code)
	}
}
