package disasm

import (
	"strings"
	"testing"

	"github.com/kboyd-dev/ployvm/internal/compiler"
)

func TestDisassembleListsBuiltinConstant(t *testing.T) {
	buf, err := compiler.Compile("(+ 1 2)")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	out := Disassemble(buf)
	if !strings.Contains(out, "bp: +") {
		t.Fatalf("expected a bp: + constant entry, got:\n%s", out)
	}
	if !strings.Contains(out, "constants:") {
		t.Fatalf("expected a constants: section, got:\n%s", out)
	}
}

func TestDisassembleResolvesJumpToLabel(t *testing.T) {
	buf, err := compiler.Compile("(if (< 1 2) 1 2)")
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	out := Disassemble(buf)
	if !strings.Contains(out, "j") {
		t.Fatalf("expected a resolved jump label, got:\n%s", out)
	}
	found := false
	for _, line := range strings.Split(out, "\n") {
		// "<offset>  jump_forward[_if_not] jN", with "jN:" printed as a label line.
		fields := strings.Fields(line)
		if len(fields) == 3 && strings.HasPrefix(fields[1], "jump_forward") &&
			strings.HasPrefix(fields[2], "j") && strings.Contains(out, "\n"+fields[2]+":\n") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a jump_forward instruction operand to resolve to a jN label, got:\n%s", out)
	}
}

func TestDisassembleLambdaBodyGetsLabel(t *testing.T) {
	buf, err := compiler.Compile(`
    (define (identity x) x)
    (identity 1)
`)
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	out := Disassemble(buf)
	// One "lambdaN:" label line for the root body and one for identity's.
	labelLines := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "lambda") && strings.HasSuffix(line, ":") {
			labelLines++
		}
	}
	if labelLines < 2 {
		t.Fatalf("expected a lambda label in the disassembly, got:\n%s", out)
	}
}
