// Package compiler implements the compiler from token stream to bytecode:
// Reader first parses the tokens into an Expr tree, then a single walk of
// that tree emits code, with lexical scope resolution (stack vars vs.
// captured/shared vars) and coarity (continuation-arity) tracking inline
// with code generation and no optimization pass.
package compiler

import (
	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/pkg/errors"

	"github.com/kboyd-dev/ployvm/internal/builtins"
	"github.com/kboyd-dev/ployvm/internal/bytecode"
	"github.com/kboyd-dev/ployvm/internal/config"
	"github.com/kboyd-dev/ployvm/internal/ployerr"
	"github.com/kboyd-dev/ployvm/internal/token"
	"github.com/kboyd-dev/ployvm/internal/value"
)

// coarityReq is the compile-time-known requirement placed on the value an
// expression produces. coarityTail means "whatever the runtime caller of
// the enclosing lambda asked for" and is left for the VM's coarity
// register to resolve at ret time; it is the only one of the three that a
// call site does not pin with an explicit set_coarity_* instruction.
type coarityReq int

const (
	coarityAny coarityReq = iota
	coarityOne
	coarityTail
)

// Compiler turns a fully-scanned token stream into a bytecode.Buffer.
type Compiler struct {
	buf    *bytecode.Buffer
	scopes *arraystack.Stack // of *LambdaScope, root first
}

// Compile is the package's entry point: scan and compile src, returning a
// finished, concatenated bytecode.Buffer ready for the VM. Any failure is
// reported as a *ployerr.Error; a lex failure keeps its ployerr.LexError
// kind, everything else is tagged ployerr.CompileError.
func Compile(src string) (*bytecode.Buffer, error) {
	return CompileWithLimits(src, config.Default())
}

// CompileWithLimits is Compile with an explicit constant pool cap, as
// loaded from a -config file.
func CompileWithLimits(src string, limits config.Limits) (*bytecode.Buffer, error) {
	buf, err := compile(src, limits)
	if err != nil {
		return nil, ployerr.Wrap(ployerr.CompileError, err, "compiling")
	}
	return buf, nil
}

func compile(src string, limits config.Limits) (*bytecode.Buffer, error) {
	toks, err := token.Scan(src)
	if err != nil {
		return nil, err
	}

	c := &Compiler{buf: bytecode.NewWithMaxConstants(limits.MaxConstants), scopes: arraystack.New()}

	// The root lambda is called like any other lambda, with the primitive
	// table as its own argument list, so its expect_argc and the compiler's
	// pre-seeded root scope agree on slot numbering without any special
	// bootstrap path in the VM.
	rootArgIdxs := make([]byte, 0, len(builtins.Specs))
	for _, spec := range builtins.Specs {
		var idx byte
		var err error
		if spec.HandRolled != "" {
			idx, err = c.buf.PushHandRolledProcedure(spec.HandRolled)
			if err != nil {
				return nil, errors.Wrapf(err, "installing hand-rolled procedure %s", spec.HandRolled)
			}
		} else {
			idx, err = c.buf.AddConstant(value.BuiltinProc(spec.Fn, spec.Name))
			if err != nil {
				return nil, errors.Wrapf(err, "installing builtin %s", spec.Name)
			}
		}
		rootArgIdxs = append(rootArgIdxs, idx)
	}

	rootIdx, err := c.buf.AddConstant(value.LambdaConstant())
	if err != nil {
		return nil, err
	}

	c.buf.PushLambda(rootIdx)
	c.pushScope()
	for _, name := range builtins.Names() {
		if _, err := c.currentScope().addStackVar(name); err != nil {
			return nil, err
		}
	}
	if err := c.buf.AppendOpcode(bytecode.OpExpectArgc); err != nil {
		return nil, err
	}
	if err := c.buf.AppendByte(byte(len(builtins.Specs))); err != nil {
		return nil, err
	}

	rdr := NewReader(toks)
	exprs, err := rdr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading")
	}

	if err := c.compileBody(exprs); err != nil {
		return nil, err
	}
	if err := c.buf.AppendOpcode(bytecode.OpRet); err != nil {
		return nil, err
	}

	c.popScope()
	if err := c.buf.PopLambda(); err != nil {
		return nil, err
	}

	if err := c.buf.ConcatBlocks(rootArgIdxs); err != nil {
		return nil, err
	}
	return c.buf, nil
}

func (c *Compiler) pushScope() { c.scopes.Push(newLambdaScope()) }

func (c *Compiler) popScope() { c.scopes.Pop() }

func (c *Compiler) currentScope() *LambdaScope {
	top, _ := c.scopes.Peek()
	return top.(*LambdaScope)
}

// compileBody compiles a lambda or root body: every statement but the last
// is compiled for its side effects only (coarityAny); the last is compiled
// in tail position, passing the ambient coarity through unchanged. Which
// statement is last is read off Expr.IsFinal rather than recomputed from
// position, so the scanner's is_final marking (token/scanner.go) is the one
// mechanism driving tail position, matching compile_expression_sequence.
func (c *Compiler) compileBody(exprs []Expr) error {
	if len(exprs) == 0 {
		return errors.New("empty body")
	}
	for _, e := range exprs {
		req := coarityAny
		if e.IsFinal {
			req = coarityTail
		}
		if err := c.compileExpr(e, req); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileExpr(e Expr, req coarityReq) error {
	switch e.Kind {
	case ExprQuote:
		return c.compileLiteral(*e.Quoted, req)
	case ExprAtom:
		return c.compileAtom(e, req)
	case ExprList:
		return c.compileList(e, req)
	}
	return errors.New("unreachable expression kind")
}

func (c *Compiler) compileAtom(e Expr, req coarityReq) error {
	if e.Tok.Type == token.Identifier {
		return c.compileIdentifier(e.Tok.Value, req)
	}
	return c.compileLiteral(e, req)
}

// compileLiteral handles every expression whose value is knowable purely
// from its own syntax (numbers, booleans, characters, strings, quoted
// data): it always pushes exactly one value, so under coarityAny — whose
// whole point is that nothing downstream looks at the result — compiling
// it is a pure no-op and can be skipped outright.
func (c *Compiler) compileLiteral(e Expr, req coarityReq) error {
	if req == coarityAny {
		return nil
	}
	return c.pushQuotedValue(e)
}

func (c *Compiler) pushAtomConstant(v value.Value) error {
	idx, err := c.buf.AddConstant(v)
	if err != nil {
		return err
	}
	if err := c.buf.AppendOpcode(bytecode.OpPushConstant); err != nil {
		return err
	}
	return c.buf.AppendByte(idx)
}

// pushQuotedValue emits code that leaves exactly one value on the stack: a
// single push_constant for an atom, or — since the constant pool's
// structural-equality dedup only covers atoms — a cons chain for a list.
// Every item is pushed car-first in source order, then the tail, then one
// cons per item: the opcode table's cons instruction pops cdr first (the
// top of stack) and car second, so the tail must be on top of the stack
// going into the first cons and each cons folds the rightmost remaining
// item in as the new car.
func (c *Compiler) pushQuotedValue(e Expr) error {
	switch e.Kind {
	case ExprQuote:
		return c.pushQuotedValue(*e.Quoted)

	case ExprAtom:
		v, err := atomToValue(e.Tok)
		if err != nil {
			return err
		}
		return c.pushAtomConstant(v)

	case ExprList:
		if len(e.Items) == 0 {
			return c.pushAtomConstant(value.Empty())
		}
		for _, item := range e.Items {
			if err := c.pushQuotedValue(item); err != nil {
				return err
			}
		}
		if e.DotTail != nil {
			if err := c.pushQuotedValue(*e.DotTail); err != nil {
				return err
			}
		} else {
			if err := c.pushAtomConstant(value.Empty()); err != nil {
				return err
			}
		}
		for range e.Items {
			if err := c.buf.AppendOpcode(bytecode.OpCons); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.New("unreachable expression kind")
}

func (c *Compiler) compileIdentifier(name string, req coarityReq) error {
	if req == coarityAny {
		// A bare variable reference has no side effect; discarding it is
		// always safe to skip, same reasoning as compileLiteral.
		return nil
	}
	kind, idx, err := c.resolveVar(name, 0)
	if err != nil {
		return err
	}
	op := bytecode.OpPushStackVar
	if kind == varShared {
		op = bytecode.OpPushSharedVar
	}
	if err := c.buf.AppendOpcode(op); err != nil {
		return err
	}
	return c.buf.AppendByte(idx)
}

func (c *Compiler) compileList(e Expr, req coarityReq) error {
	if len(e.Items) == 0 {
		return c.compileLiteral(e, req)
	}

	head := e.Items[0]
	if head.Kind == ExprAtom && head.Tok.Type == token.Identifier {
		switch head.Tok.Value {
		case "quote":
			return c.compileQuoteForm(e, req)
		case "if":
			return c.compileIf(e, req)
		case "lambda":
			return c.compileLambda(e, req)
		case "define":
			return c.compileDefine(e, req)
		case "set!":
			return c.compileSet(e, req)
		}
	}

	return c.compileCall(e, req)
}

func (c *Compiler) compileQuoteForm(e Expr, req coarityReq) error {
	if len(e.Items) != 2 {
		return errors.New("quote expects exactly one operand")
	}
	return c.compileLiteral(e.Items[1], req)
}

// compileIf propagates req into both branches: the condition always needs
// exactly one value, and whichever branch executes is in precisely the
// position the if expression itself occupies.
func (c *Compiler) compileIf(e Expr, req coarityReq) error {
	if len(e.Items) != 3 && len(e.Items) != 4 {
		return errors.New("if expects (if cond then [else])")
	}
	if err := c.compileExpr(e.Items[1], coarityOne); err != nil {
		return err
	}

	jumpToElse, err := c.buf.PrepareBackpatchJump(bytecode.OpJumpForwardIfNot)
	if err != nil {
		return err
	}

	if err := c.compileExpr(e.Items[2], req); err != nil {
		return err
	}

	jumpToEnd, err := c.buf.PrepareBackpatchJump(bytecode.OpJumpForward)
	if err != nil {
		return err
	}
	if err := c.buf.BackpatchJump(jumpToElse); err != nil {
		return err
	}

	if len(e.Items) == 4 {
		if err := c.compileExpr(e.Items[3], req); err != nil {
			return err
		}
	} else if req != coarityAny {
		// No else clause and the result is observable: the empty list
		// stands in for Scheme's "unspecified" value here.
		if err := c.compileLiteral(Expr{Kind: ExprList}, req); err != nil {
			return err
		}
	}

	return c.buf.BackpatchJump(jumpToEnd)
}

// compileLambda compiles a (lambda (params...) body...) form. Like other
// pure-value forms it is skippable under coarityAny; otherwise it emits
// push_constant for its placeholder into the *enclosing* block immediately,
// before compiling the body, so that any capture_stack_var/
// capture_shared_var the body's free variables need land right after it in
// program order — exactly the contiguous run the VM needs to materialize a
// closure with its captures attached.
func (c *Compiler) compileLambda(e Expr, req coarityReq) error {
	if req == coarityAny {
		return nil
	}
	if len(e.Items) < 2 {
		return errors.New("lambda expects (lambda (params...) body...)")
	}
	params, err := identifierList(e.Items[1])
	if err != nil {
		return err
	}
	body := e.Items[2:]
	if len(body) == 0 {
		return errors.New("lambda body must have at least one expression")
	}

	return c.compileLambdaBody(params, body)
}

func (c *Compiler) compileLambdaBody(params []string, body []Expr) error {
	idx, err := c.buf.AddConstant(value.LambdaConstant())
	if err != nil {
		return err
	}
	if err := c.buf.AppendOpcode(bytecode.OpPushConstant); err != nil {
		return err
	}
	if err := c.buf.AppendByte(idx); err != nil {
		return err
	}

	c.buf.PushLambda(idx)
	c.pushScope()

	for _, p := range params {
		if _, err := c.currentScope().addStackVar(p); err != nil {
			return err
		}
	}

	if err := c.buf.AppendOpcode(bytecode.OpExpectArgc); err != nil {
		return err
	}
	if err := c.buf.AppendByte(byte(len(params))); err != nil {
		return err
	}

	if err := c.compileBody(body); err != nil {
		return err
	}
	if err := c.buf.AppendOpcode(bytecode.OpRet); err != nil {
		return err
	}

	c.popScope()
	return c.buf.PopLambda()
}

func isLambdaForm(e Expr) bool {
	return e.Kind == ExprList && len(e.Items) > 0 && e.Items[0].IsIdentifier("lambda")
}

// compileDefine introduces a new stack variable in the current scope,
// initialized to its expression's value. (define (name params...) body...)
// is sugar for (define name (lambda (params...) body...)). Either form
// reserves the variable's slot *before* compiling a lambda-valued
// initializer, the way letrec hoists its bindings: without that, a
// directly self-recursive definition like (define (fact n) ... (fact ...))
// would try to resolve its own name before it exists.
func (c *Compiler) compileDefine(e Expr, req coarityReq) error {
	if len(e.Items) < 3 {
		return errors.New("define expects (define name expr) or (define (name params...) body...)")
	}

	target := e.Items[1]
	if target.Kind == ExprList {
		if len(target.Items) == 0 || target.Items[0].Kind != ExprAtom || target.Items[0].Tok.Type != token.Identifier {
			return errors.New("define with a list target expects a procedure name first")
		}
		name := target.Items[0].Tok.Value
		params, err := identifierListFrom(target.Items[1:])
		if err != nil {
			return err
		}
		if _, err := c.currentScope().addStackVar(name); err != nil {
			return err
		}
		if err := c.compileLambdaBody(params, e.Items[2:]); err != nil {
			return err
		}
		return c.buf.AppendOpcode(bytecode.OpAddStackVar)
	}

	if target.Kind != ExprAtom || target.Tok.Type != token.Identifier {
		return errors.New("define's first operand must be an identifier")
	}
	if len(e.Items) != 3 {
		return errors.New("define expects exactly one value expression")
	}

	valueExpr := e.Items[2]
	if isLambdaForm(valueExpr) {
		if len(valueExpr.Items) < 2 {
			return errors.New("lambda expects (lambda (params...) body...)")
		}
		params, err := identifierList(valueExpr.Items[1])
		if err != nil {
			return err
		}
		body := valueExpr.Items[2:]
		if len(body) == 0 {
			return errors.New("lambda body must have at least one expression")
		}
		if _, err := c.currentScope().addStackVar(target.Tok.Value); err != nil {
			return err
		}
		if err := c.compileLambdaBody(params, body); err != nil {
			return err
		}
		return c.buf.AppendOpcode(bytecode.OpAddStackVar)
	}

	if err := c.compileExpr(valueExpr, coarityOne); err != nil {
		return err
	}
	if err := c.buf.AppendOpcode(bytecode.OpAddStackVar); err != nil {
		return err
	}
	_, err := c.currentScope().addStackVar(target.Tok.Value)
	return err
}

func (c *Compiler) compileSet(e Expr, req coarityReq) error {
	if len(e.Items) != 3 {
		return errors.New("set! expects (set! name expr)")
	}
	target := e.Items[1]
	if target.Kind != ExprAtom || target.Tok.Type != token.Identifier {
		return errors.New("set!'s first operand must be an identifier")
	}

	if err := c.compileExpr(e.Items[2], coarityOne); err != nil {
		return err
	}

	kind, idx, err := c.resolveVar(target.Tok.Value, 0)
	if err != nil {
		return err
	}
	op := bytecode.OpSetStackVar
	if kind == varShared {
		op = bytecode.OpSetSharedVar
	}
	if err := c.buf.AppendOpcode(op); err != nil {
		return err
	}
	return c.buf.AppendByte(idx)
}

// compileCall compiles (operator args...): push_frame_index marks where
// the argument run starts on the value stack, the operator and then each
// argument are pushed left to right (each needing exactly one value), and
// unless this call is in tail position the caller pins the coarity it
// wants from the callee immediately before the call instruction.
func (c *Compiler) compileCall(e Expr, req coarityReq) error {
	if err := c.buf.AppendOpcode(bytecode.OpPushFrameIndex); err != nil {
		return err
	}
	if err := c.compileExpr(e.Items[0], coarityOne); err != nil {
		return err
	}
	for _, arg := range e.Items[1:] {
		if err := c.compileExpr(arg, coarityOne); err != nil {
			return err
		}
	}

	if req != coarityTail {
		op := bytecode.OpSetCoarityAny
		if req == coarityOne {
			op = bytecode.OpSetCoarityOne
		}
		if err := c.buf.AppendOpcode(op); err != nil {
			return err
		}
	}

	return c.buf.AppendOpcode(bytecode.OpCall)
}

func identifierList(e Expr) ([]string, error) {
	if e.Kind != ExprList {
		return nil, errors.New("expected a parameter list")
	}
	return identifierListFrom(e.Items)
}

func identifierListFrom(items []Expr) ([]string, error) {
	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.Kind != ExprAtom || item.Tok.Type != token.Identifier {
			return nil, errors.New("parameter list must contain only identifiers")
		}
		names = append(names, item.Tok.Value)
	}
	return names, nil
}
