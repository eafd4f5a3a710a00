package bytecode

import (
	"encoding/binary"

	"github.com/cnf/structhash"
	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/pkg/errors"

	"github.com/kboyd-dev/ployvm/internal/value"
)

const defaultMaxConstants = 256

// handRolledProc is a canned instruction sequence for a primitive whose
// implementation is authored directly in bytecode rather than compiled from
// source (spec section 4.2/4.4 hand-rolled procedure).
type handRolledProc struct {
	name string
	code []byte
}

// HandRolled holds every hand-rolled procedure known to the compiler and VM,
// keyed by name. call/cc is the archetype (spec section 6): it captures a
// continuation, then tail-calls its single argument with that continuation,
// discarding the extra stack slot the continuation left behind.
var HandRolled = map[string]handRolledProc{
	"call/cc": {
		name: "call/cc",
		code: []byte{
			byte(OpExpectArgc), 1,
			byte(OpPushContinuation),
			byte(OpSetCoarityOne),
			byte(OpPushFrameIndex),
			byte(OpPushStackVar), 0,
			byte(OpPushStackVar), 1,
			byte(OpCall),
			byte(OpRet),
		},
	},
}

type lambdaBlock struct {
	code          []byte
	lambdaConstID byte
}

// Buffer owns the final linear code array, the append-only deduplicated
// constant pool, and the per-lambda code blocks being compiled — see
// spec section 4.3. Grounded on original_source/src/ploylib/bytecode.cpp.
type Buffer struct {
	Code []byte

	constants        []value.Value
	constantIndex    map[string]byte
	maxConstants     int
	lambdaOrdinal    int
	handRolledPushed map[string]bool

	compilingBlocks *arraystack.Stack // of *lambdaBlock
	compiledBlocks  []*lambdaBlock
}

// New creates an empty Buffer ready for a compiler to push lambda scopes
// into, with the default 256-entry constant pool cap (the pool index is a
// single byte, so this can never be raised).
func New() *Buffer {
	return NewWithMaxConstants(defaultMaxConstants)
}

// NewWithMaxConstants is New with an explicit constant pool cap, as loaded
// from a -config file. A cap above defaultMaxConstants is clamped down to
// it.
func NewWithMaxConstants(maxConstants int) *Buffer {
	if maxConstants <= 0 || maxConstants > defaultMaxConstants {
		maxConstants = defaultMaxConstants
	}
	return &Buffer{
		constantIndex:    make(map[string]byte),
		maxConstants:     maxConstants,
		compilingBlocks:  arraystack.New(),
		handRolledPushed: make(map[string]bool),
	}
}

// AddConstant dedup-inserts v into the constant pool by structural equality
// and returns its index. The pool is bounded to 256 entries (spec section
// 3's "index fits in one byte" invariant).
func (b *Buffer) AddConstant(v value.Value) (byte, error) {
	if v.Kind == value.Lambda {
		// Every lambda placeholder gets a fresh ordinal so that two
		// different lambda bodies are never accidentally deduped by their
		// (initially identical) placeholder offset of 0; hand-rolled
		// procedures dedup by name only, matching
		// original_source/scheme_value.hpp's hand_rolled_lambda_constant
		// equality operator.
		if !v.IsHandRolled() {
			b.lambdaOrdinal++
		}
	}

	key, err := structhash.Hash(v.Key(b.lambdaOrdinal), 1)
	if err != nil {
		return 0, errors.Wrap(err, "hashing constant for dedup")
	}

	if idx, ok := b.constantIndex[key]; ok {
		return idx, nil
	}

	if len(b.constants) >= b.maxConstants {
		return 0, errors.New("exceeded max number of constants allowed")
	}

	idx := byte(len(b.constants))
	b.constants = append(b.constants, v)
	b.constantIndex[key] = idx
	return idx, nil
}

// GetConstant returns the constant-pool entry at idx.
func (b *Buffer) GetConstant(idx byte) (value.Value, error) {
	if int(idx) >= len(b.constants) {
		return value.Value{}, errors.New("constant index out of bounds")
	}
	return b.constants[idx], nil
}

// Constants exposes the frozen constant pool for the VM and disassembler.
func (b *Buffer) Constants() []value.Value { return b.constants }

func (b *Buffer) currentBlock() (*lambdaBlock, error) {
	top, ok := b.compilingBlocks.Peek()
	if !ok {
		return nil, errors.New("no blocks to write to")
	}
	return top.(*lambdaBlock), nil
}

// blockAtDepth returns the compiling block at the given enclosing-scope
// depth, counting 0 as the innermost (currently compiling) scope and
// increasing depth walking outward, matching the compiler's lambda_stack
// indexing. This lets the variable resolver emit capture_* instructions
// into a scope other than the one currently compiling.
func (b *Buffer) blockAtDepth(depth int) (*lambdaBlock, error) {
	blocks := b.compilingBlocks.Values() // insertion order: oldest (outermost) first
	idx := len(blocks) - 1 - depth
	if idx < 0 || idx >= len(blocks) {
		return nil, errors.New("scope depth out of range")
	}
	return blocks[idx].(*lambdaBlock), nil
}

// AppendByte appends a raw byte to the currently compiling block.
func (b *Buffer) AppendByte(v byte) error {
	blk, err := b.currentBlock()
	if err != nil {
		return err
	}
	blk.code = append(blk.code, v)
	return nil
}

// AppendByteAtDepth appends a raw byte to the compiling block at the given
// enclosing scope depth (used to emit capture_* into an outer scope).
func (b *Buffer) AppendByteAtDepth(v byte, depth int) error {
	blk, err := b.blockAtDepth(depth)
	if err != nil {
		return err
	}
	blk.code = append(blk.code, v)
	return nil
}

// AppendOpcode appends op to the currently compiling block.
func (b *Buffer) AppendOpcode(op Op) error {
	return b.AppendByte(byte(op))
}

// AppendOpcodeAtDepth appends op to the compiling block at the given
// enclosing scope depth.
func (b *Buffer) AppendOpcodeAtDepth(op Op, depth int) error {
	return b.AppendByteAtDepth(byte(op), depth)
}

// PrepareBackpatchJump emits jumpOp followed by a 4-byte zero placeholder
// and returns the offset of that placeholder within the current block, to
// be filled in later by BackpatchJump.
func (b *Buffer) PrepareBackpatchJump(jumpOp Op) (int, error) {
	if err := b.AppendOpcode(jumpOp); err != nil {
		return 0, err
	}
	blk, err := b.currentBlock()
	if err != nil {
		return 0, err
	}
	idx := len(blk.code)
	blk.code = append(blk.code, 0, 0, 0, 0)
	return idx, nil
}

// BackpatchJump writes the distance from idx to the current end of the
// block as the jump's 4-byte little-endian offset.
func (b *Buffer) BackpatchJump(idx int) error {
	blk, err := b.currentBlock()
	if err != nil {
		return err
	}
	jumpSize := uint64(len(blk.code) - idx)
	if jumpSize > 0xFFFFFFFF {
		return errors.New("jump size is too large for its type")
	}
	binary.LittleEndian.PutUint32(blk.code[idx:idx+4], uint32(jumpSize))
	return nil
}

// PushLambda starts a new code block for the lambda whose constant-pool
// placeholder is lambdaConstID.
func (b *Buffer) PushLambda(lambdaConstID byte) {
	b.compilingBlocks.Push(&lambdaBlock{lambdaConstID: lambdaConstID})
}

// PopLambda finishes the currently compiling block, moving it to the
// compiled-blocks queue awaiting ConcatBlocks.
func (b *Buffer) PopLambda() error {
	top, ok := b.compilingBlocks.Pop()
	if !ok {
		return errors.New("no compiling block to pop")
	}
	b.compiledBlocks = append(b.compiledBlocks, top.(*lambdaBlock))
	return nil
}

// PushHandRolledProcedure installs a fresh hand-rolled-lambda constant for
// name and enqueues its canned bytecode as a completed block bound to that
// constant, returning the constant's pool index.
func (b *Buffer) PushHandRolledProcedure(name string) (byte, error) {
	proc, ok := HandRolled[name]
	if !ok {
		return 0, errors.Errorf("unknown hand-rolled procedure: %s", name)
	}

	idx, err := b.AddConstant(value.HandRolledLambdaConstant(name))
	if err != nil {
		return 0, err
	}

	if b.handRolledPushed[name] {
		return idx, nil
	}
	b.handRolledPushed[name] = true

	code := make([]byte, len(proc.code))
	copy(code, proc.code)
	b.compiledBlocks = append(b.compiledBlocks, &lambdaBlock{code: code, lambdaConstID: idx})

	return idx, nil
}

// ConcatBlocks emits the top-level invocation prologue
// (push_frame_index; push_constant <root>; push_constant <rootArg>...;
// call; halt — rootArgs is the root lambda's own primitive table, passed
// as its argument list so its first root.ExpectArgc instruction and the
// compiler's pre-seeded root scope agree on slot numbering), then appends
// every completed lambda block in reverse order (so nested lambdas
// compiled last end up laid out first — matching the LIFO order lambdas
// finish compiling in), patching each block's associated constant's
// bytecode_offset to its final position.
func (b *Buffer) ConcatBlocks(rootArgs []byte) error {
	if len(b.compiledBlocks) == 0 {
		return errors.New("no compiled blocks to concatenate")
	}

	root := b.compiledBlocks[len(b.compiledBlocks)-1]

	b.Code = append(b.Code, byte(OpPushFrameIndex), byte(OpPushConstant), root.lambdaConstID)
	for _, argIdx := range rootArgs {
		b.Code = append(b.Code, byte(OpPushConstant), argIdx)
	}
	b.Code = append(b.Code, byte(OpCall), byte(OpHalt))

	for i := len(b.compiledBlocks) - 1; i >= 0; i-- {
		blk := b.compiledBlocks[i]
		b.constants[blk.lambdaConstID].SetBytecodeOffset(len(b.Code))
		b.Code = append(b.Code, blk.code...)
	}

	b.compiledBlocks = nil
	return nil
}
