package vm

import "testing"

// TestCallCCEscapesEarly exercises the hand-rolled call/cc procedure: the
// continuation, invoked from inside a nested computation, discards the
// rest of that computation and resumes at call/cc's own call site with
// the value it was invoked with.
func TestCallCCEscapesEarly(t *testing.T) {
	got := mustRun(t, `
    (+ 1 (call/cc (lambda (k) (+ 10 (k 41)))))
`)
	if got.Int() != 42 {
		t.Fatalf("got %v, want 42 (the (+ 10 ...) should never run)", got)
	}
}

// TestCallCCReturnsNormallyWhenUnused confirms call/cc behaves like an
// ordinary procedure call when its continuation is never invoked.
func TestCallCCReturnsNormallyWhenUnused(t *testing.T) {
	got := mustRun(t, `
    (+ 1 (call/cc (lambda (k) 9)))
`)
	if got.Int() != 10 {
		t.Fatalf("got %v, want 10", got)
	}
}
