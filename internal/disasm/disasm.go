// Package disasm renders a compiled bytecode.Buffer as human-readable
// assembly, for the -d/--disassemble CLI flag. Grounded on
// original_source/src/ploylib/bytecode.cpp's disassemble(): one line per
// instruction, jump and lambda targets resolved to labels up front so the
// output reads as assembly rather than a raw byte dump.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/kboyd-dev/ployvm/internal/bytecode"
	"github.com/kboyd-dev/ployvm/internal/value"
)

// Disassemble renders buf's concatenated program as one line of assembly
// per instruction, plus a "constants:" section listing the constant pool.
func Disassemble(buf *bytecode.Buffer) string {
	code := buf.Code
	constants := buf.Constants()

	labels := collectLabels(code, constants)

	var b strings.Builder
	for offset := 0; offset < len(code); {
		if label, ok := labels[offset]; ok {
			b.WriteString(label)
			b.WriteString(":\n")
		}
		op := bytecode.Op(code[offset])
		size := bytecode.Size(op)
		b.WriteString(fmt.Sprintf("%5d  %s", offset, op))
		if bytecode.ArgWidth(op) == 4 {
			dest := offset + 1 + int(binary.LittleEndian.Uint32(code[offset+1:offset+5]))
			if label, ok := labels[dest]; ok {
				b.WriteString(fmt.Sprintf(" %s", label))
			} else {
				b.WriteString(fmt.Sprintf(" %d", dest))
			}
		} else if bytecode.ArgWidth(op) == 1 {
			idx := code[offset+1]
			b.WriteString(fmt.Sprintf(" %d", idx))
			if op == bytecode.OpPushConstant {
				b.WriteString(fmt.Sprintf("  ; %s", describeConstant(constants, idx, labels)))
			}
		}
		b.WriteString("\n")
		offset += size
	}

	b.WriteString("constants:\n")
	for i := range constants {
		b.WriteString(fmt.Sprintf("%5d  %s\n", i, describeConstant(constants, byte(i), labels)))
	}

	return b.String()
}

// Print writes the disassembly of buf to stdout, styled with pterm the way
// the CLI styles every other diagnostic section.
func Print(buf *bytecode.Buffer) {
	pterm.DefaultSection.Println("disassembly")
	pterm.DefaultBasicText.Println(Disassemble(buf))
}

func collectLabels(code []byte, constants []value.Value) map[int]string {
	labels := make(map[int]string)
	for offset := 0; offset < len(code); {
		op := bytecode.Op(code[offset])
		size := bytecode.Size(op)
		if op == bytecode.OpJumpForward || op == bytecode.OpJumpForwardIfNot {
			dest := offset + 1 + int(binary.LittleEndian.Uint32(code[offset+1:offset+5]))
			if _, ok := labels[dest]; !ok {
				labels[dest] = fmt.Sprintf("j%d", dest)
			}
		}
		offset += size
	}
	for _, c := range constants {
		if c.Kind != value.Lambda || c.IsHandRolled() {
			continue
		}
		dest := c.BytecodeOffset()
		labels[dest] = fmt.Sprintf("lambda%d", dest)
	}
	return labels
}

func describeConstant(constants []value.Value, idx byte, labels map[int]string) string {
	if int(idx) >= len(constants) {
		return "<out of range>"
	}
	c := constants[idx]
	switch c.Kind {
	case value.Builtin:
		return "bp: " + c.BuiltinName()
	case value.Lambda:
		if c.IsHandRolled() {
			return "lambda: " + c.HandRolledName()
		}
		if label, ok := labels[c.BytecodeOffset()]; ok {
			return label
		}
		return fmt.Sprintf("lambda%d", c.BytecodeOffset())
	case value.EmptyList:
		return "()"
	case value.Symbol:
		return "symbol: " + c.SymbolVal()
	default:
		return value.Print(c)
	}
}
