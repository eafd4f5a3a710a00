package compiler

import (
	"github.com/pkg/errors"

	"github.com/kboyd-dev/ployvm/internal/bytecode"
)

// scopeAtDepth returns the lambda scope at the given nesting depth, 0
// meaning the innermost (currently compiling) scope, increasing depth
// walking outward toward the root.
func (c *Compiler) scopeAtDepth(depth int) (*LambdaScope, error) {
	scopes := c.scopes.Values() // insertion order: root first, innermost last
	idx := len(scopes) - 1 - depth
	if idx < 0 || idx >= len(scopes) {
		return nil, errors.New("scope depth out of range")
	}
	return scopes[idx].(*LambdaScope), nil
}

// resolveVar finds name starting at the given depth and walks outward,
// turning every enclosing stack/shared var it crosses into a shared var by
// emitting a capture_stack_var / capture_shared_var instruction into the
// scope that owns it and registering a new shared-var slot at every
// intervening depth. This is the spec's get_var_type_and_id algorithm
// (original_source/src/ploylib/compiler.cpp), generalized to Go recursion.
func (c *Compiler) resolveVar(name string, depth int) (varKind, byte, error) {
	scope, err := c.scopeAtDepth(depth)
	if err != nil {
		return 0, 0, errors.Errorf("unbound variable: %s", name)
	}

	if idx, ok := scope.findStackVar(name); ok {
		return varStack, idx, nil
	}
	if idx, ok := scope.findSharedVar(name); ok {
		return varShared, idx, nil
	}

	outerKind, outerIdx, err := c.resolveVar(name, depth+1)
	if err != nil {
		return 0, 0, err
	}

	var captureOp bytecode.Op
	if outerKind == varStack {
		captureOp = bytecode.OpCaptureStackVar
	} else {
		captureOp = bytecode.OpCaptureSharedVar
	}
	if err := c.buf.AppendOpcodeAtDepth(captureOp, depth+1); err != nil {
		return 0, 0, err
	}
	if err := c.buf.AppendByteAtDepth(outerIdx, depth+1); err != nil {
		return 0, 0, err
	}

	newIdx, err := scope.addSharedVar(name)
	if err != nil {
		return 0, 0, err
	}
	return varShared, newIdx, nil
}
