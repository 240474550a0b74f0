// internal/compiler/compiler.go
package compiler

import (
	"fmt"

	"wisp/internal/bytecode"
	"wisp/internal/errors"
	"wisp/internal/parser"
)

const (
	maxLocals      = 200
	maxStackDepth  = 250
	maxJump        = 0xffff
	fieldsPerFlush = 50
)

type local struct {
	name string
	slot int
}

// Compiler turns a parsed chunk into bytecode. One Compiler exists per
// function being compiled; nested functions get a child with parent set.
//
// The compiler tracks the exact stack depth of the frame at every
// instruction, so locals, call slots and assignment targets are addressed
// by absolute slot numbers relative to the frame base.
type Compiler struct {
	Chunk       *bytecode.Chunk
	parent      *Compiler
	source      string
	currentLine int
	locals      []local
	depth       int
}

func newCompiler(parent *Compiler, name, source string) *Compiler {
	return &Compiler{
		Chunk:  bytecode.NewChunk(name, source),
		parent: parent,
		source: source,
	}
}

// Compile compiles a main chunk. Compile errors are returned as
// *errors.ScriptError values of type SyntaxError.
func Compile(stmts []parser.Stmt, source string) (chunk *bytecode.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*errors.ScriptError)
			if !ok {
				panic(r)
			}
			chunk, err = nil, se
		}
	}()

	c := newCompiler(nil, "", source)
	c.currentLine = 1
	for _, s := range stmts {
		s.Accept(c)
	}
	c.emitOp(bytecode.OpReturn)
	c.emitByte(byte(c.depth))
	return c.Chunk, nil
}

// CompileSource parses and compiles src in one step.
func CompileSource(src, source string) (*bytecode.Chunk, error) {
	stmts, err := parser.ParseSource(src, source)
	if err != nil {
		return nil, err
	}
	return Compile(stmts, source)
}

func (c *Compiler) error(format string, args ...interface{}) {
	panic(errors.NewSyntaxError(fmt.Sprintf(format, args...), c.source, c.currentLine))
}

func (c *Compiler) setLine(line int) {
	if line > 0 {
		c.currentLine = line
	}
}

// Helper methods for emitting bytecode with line info
func (c *Compiler) emitOp(op bytecode.OpCode) {
	c.Chunk.WriteOp(op, c.currentLine)
}

func (c *Compiler) emitByte(b byte) {
	c.Chunk.WriteByte(b, c.currentLine)
}

func (c *Compiler) emitShort(v int) {
	c.Chunk.WriteShort(v, c.currentLine)
}

func (c *Compiler) emitConstant(op bytecode.OpCode, val interface{}) {
	idx := c.Chunk.AddConstant(val)
	if idx > maxJump {
		c.error("too many constants")
	}
	c.emitOp(op)
	c.emitShort(idx)
}

func (c *Compiler) push(n int) {
	c.depth += n
	if c.depth > maxStackDepth {
		c.error("expression too complex")
	}
}

func (c *Compiler) pop(n int) {
	c.depth -= n
}

// emitPop emits pops without touching the tracked depth.
func (c *Compiler) emitPop(n int) {
	for n > 0 {
		step := n
		if step > 255 {
			step = 255
		}
		c.emitOp(bytecode.OpPop)
		c.emitByte(byte(step))
		n -= step
	}
}

func (c *Compiler) emitNil(n int) {
	for n > 0 {
		step := n
		if step > 255 {
			step = 255
		}
		c.emitOp(bytecode.OpNil)
		c.emitByte(byte(step))
		n -= step
	}
}

func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.emitOp(op)
	pos := len(c.Chunk.Code)
	c.emitShort(0)
	return pos
}

func (c *Compiler) patchJump(pos int) {
	offset := len(c.Chunk.Code) - pos - 2
	if offset > maxJump {
		c.error("control structure too long")
	}
	c.Chunk.PatchShort(pos, offset)
}

func (c *Compiler) emitLoop(start int) {
	c.emitOp(bytecode.OpLoop)
	offset := len(c.Chunk.Code) - start + 2
	if offset > maxJump {
		c.error("control structure too long")
	}
	c.emitShort(offset)
}

// Scopes

func (c *Compiler) declareLocal(name string, slot int) {
	if len(c.locals) >= maxLocals {
		c.error("too many local variables")
	}
	c.locals = append(c.locals, local{name: name, slot: slot})
}

func (c *Compiler) resolveLocal(name string) (int, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return c.locals[i].slot, true
		}
	}
	return 0, false
}

// checkOuter rejects references to locals of an enclosing function.
func (c *Compiler) checkOuter(name string) {
	for p := c.parent; p != nil; p = p.parent {
		if _, ok := p.resolveLocal(name); ok {
			c.error("cannot access a variable in outer scope: %s", name)
		}
	}
}

func (c *Compiler) block(stmts []parser.Stmt) {
	active := len(c.locals)
	for _, s := range stmts {
		s.Accept(c)
	}
	c.closeScope(active)
}

func (c *Compiler) closeScope(active int) {
	extra := len(c.locals) - active
	if extra > 0 {
		c.emitPop(extra)
		c.pop(extra)
		c.locals = c.locals[:active]
	}
}

// Expression lists

// expr compiles e leaving exactly want values on the stack, or every value
// it produces when want is MultRet.
func (c *Compiler) expr(e parser.Expr, want int) {
	switch ex := e.(type) {
	case *parser.CallExpr:
		c.call(ex.Callee, "", ex.Args, want, ex.Line)
		return
	case *parser.MethodCallExpr:
		c.call(ex.Object, ex.Method, ex.Args, want, ex.Line)
		return
	}
	e.Accept(c)
	c.adjust(1, want)
}

func (c *Compiler) adjust(have, want int) {
	if want == bytecode.MultRet {
		return
	}
	if want > have {
		c.emitNil(want - have)
		c.push(want - have)
	} else if want < have {
		c.emitPop(have - want)
		c.pop(have - want)
	}
}

// exprList evaluates exprs adjusted to want values. Only the last expression
// may contribute more or fewer than one value.
func (c *Compiler) exprList(exprs []parser.Expr, want int) {
	if len(exprs) == 0 {
		c.adjust(0, want)
		return
	}
	n := len(exprs) - 1
	for _, e := range exprs[:n] {
		c.expr(e, 1)
	}
	last := exprs[n]
	switch {
	case want == bytecode.MultRet:
		c.expr(last, bytecode.MultRet)
	case parser.IsMultiValue(last):
		rest := want - n
		if rest < 0 {
			rest = 0
		}
		c.expr(last, rest)
		if n > want {
			c.emitPop(n - want)
			c.pop(n - want)
		}
	default:
		c.expr(last, 1)
		c.adjust(len(exprs), want)
	}
}

// call compiles a call. A non-empty method name makes it a method call on
// callee. After a MultRet call the tracked depth is the function slot; the
// consumer resets it.
func (c *Compiler) call(callee parser.Expr, method string, args []parser.Expr, want int, line int) {
	funcSlot := c.depth
	c.expr(callee, 1)
	if method != "" {
		c.emitConstant(bytecode.OpSelf, method)
		c.push(1)
	}
	c.exprList(args, bytecode.MultRet)
	c.setLine(line)
	c.emitOp(bytecode.OpCall)
	c.emitByte(byte(funcSlot))
	c.emitByte(byte(want))
	if want == bytecode.MultRet {
		c.depth = funcSlot
	} else {
		c.depth = funcSlot
		c.push(want)
	}
}

// Statements

func (c *Compiler) VisitLocalStmt(stmt *parser.LocalStmt) interface{} {
	c.setLine(stmt.Line)
	c.exprList(stmt.Exprs, len(stmt.Names))
	first := c.depth - len(stmt.Names)
	for i, name := range stmt.Names {
		c.declareLocal(name, first+i)
	}
	return nil
}

type targetKind int

const (
	localTarget targetKind = iota
	globalTarget
	indexTarget
)

type target struct {
	kind targetKind
	slot int
	name string
}

func (c *Compiler) VisitAssignmentStmt(stmt *parser.AssignmentStmt) interface{} {
	c.setLine(stmt.Line)
	targets := make([]target, len(stmt.Targets))
	pairs := 0
	for i, t := range stmt.Targets {
		switch tv := t.(type) {
		case *parser.Variable:
			if slot, ok := c.resolveLocal(tv.Name); ok {
				targets[i] = target{kind: localTarget, slot: slot}
			} else {
				c.checkOuter(tv.Name)
				targets[i] = target{kind: globalTarget, name: tv.Name}
			}
		case *parser.IndexExpr:
			slot := c.depth
			c.expr(tv.Object, 1)
			c.expr(tv.Index, 1)
			targets[i] = target{kind: indexTarget, slot: slot}
			pairs++
		default:
			c.error("syntax error")
		}
	}

	c.exprList(stmt.Exprs, len(targets))

	for i := len(targets) - 1; i >= 0; i-- {
		t := targets[i]
		switch t.kind {
		case localTarget:
			c.emitOp(bytecode.OpSetLocal)
			c.emitByte(byte(t.slot))
		case globalTarget:
			c.emitConstant(bytecode.OpSetGlobal, t.name)
		case indexTarget:
			c.emitOp(bytecode.OpSetTableAt)
			c.emitByte(byte(t.slot))
		}
		c.pop(1)
	}
	if pairs > 0 {
		c.emitPop(2 * pairs)
		c.pop(2 * pairs)
	}
	return nil
}

func (c *Compiler) VisitExpressionStmt(stmt *parser.ExpressionStmt) interface{} {
	c.expr(stmt.Expr, 0)
	return nil
}

func (c *Compiler) VisitFunctionStmt(stmt *parser.FunctionStmt) interface{} {
	c.setLine(stmt.Func.Line)
	return c.VisitAssignmentStmt(&parser.AssignmentStmt{
		Targets: []parser.Expr{stmt.Target},
		Exprs:   []parser.Expr{stmt.Func},
		Line:    stmt.Func.Line,
	})
}

func (c *Compiler) VisitIfStmt(stmt *parser.IfStmt) interface{} {
	c.expr(stmt.Condition, 1)
	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.pop(1)
	c.block(stmt.Then)
	if len(stmt.Else) == 0 {
		c.patchJump(thenJump)
		return nil
	}
	elseJump := c.emitJump(bytecode.OpJump)
	c.patchJump(thenJump)
	c.block(stmt.Else)
	c.patchJump(elseJump)
	return nil
}

func (c *Compiler) VisitWhileStmt(stmt *parser.WhileStmt) interface{} {
	loopStart := len(c.Chunk.Code)
	c.expr(stmt.Condition, 1)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.pop(1)
	c.block(stmt.Body)
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	return nil
}

// Locals declared in a repeat body stay visible in its condition.
func (c *Compiler) VisitRepeatStmt(stmt *parser.RepeatStmt) interface{} {
	loopStart := len(c.Chunk.Code)
	active := len(c.locals)
	for _, s := range stmt.Body {
		s.Accept(c)
	}
	c.expr(stmt.Condition, 1)
	exitJump := c.emitJump(bytecode.OpJumpIfTrue)
	c.pop(1)
	c.emitPop(len(c.locals) - active)
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.closeScope(active)
	return nil
}

func (c *Compiler) VisitDoStmt(stmt *parser.DoStmt) interface{} {
	c.block(stmt.Body)
	return nil
}

func (c *Compiler) VisitReturnStmt(stmt *parser.ReturnStmt) interface{} {
	c.setLine(stmt.Line)
	first := c.depth
	c.exprList(stmt.Values, bytecode.MultRet)
	c.emitOp(bytecode.OpReturn)
	c.emitByte(byte(first))
	c.depth = first
	return nil
}

// Expressions. Each visitor pushes exactly one value.

func (c *Compiler) VisitLiteralExpr(expr *parser.Literal) interface{} {
	if expr.Value == nil {
		c.emitNil(1)
	} else {
		c.emitConstant(bytecode.OpConstant, expr.Value)
	}
	c.push(1)
	return nil
}

func (c *Compiler) VisitVariableExpr(expr *parser.Variable) interface{} {
	c.setLine(expr.Line)
	if slot, ok := c.resolveLocal(expr.Name); ok {
		c.emitOp(bytecode.OpGetLocal)
		c.emitByte(byte(slot))
	} else {
		c.checkOuter(expr.Name)
		c.emitConstant(bytecode.OpGetGlobal, expr.Name)
	}
	c.push(1)
	return nil
}

func (c *Compiler) VisitIndexExpr(expr *parser.IndexExpr) interface{} {
	c.expr(expr.Object, 1)
	c.expr(expr.Index, 1)
	c.setLine(expr.Line)
	c.emitOp(bytecode.OpGetTable)
	c.pop(1)
	return nil
}

func (c *Compiler) VisitCallExpr(expr *parser.CallExpr) interface{} {
	c.call(expr.Callee, "", expr.Args, 1, expr.Line)
	return nil
}

func (c *Compiler) VisitMethodCallExpr(expr *parser.MethodCallExpr) interface{} {
	c.call(expr.Object, expr.Method, expr.Args, 1, expr.Line)
	return nil
}

func (c *Compiler) VisitFunctionExpr(expr *parser.FunctionExpr) interface{} {
	sub := newCompiler(c, expr.Name, c.source)
	sub.currentLine = expr.Line
	sub.Chunk.Line = expr.Line
	sub.Chunk.NumParams = len(expr.Params)
	sub.Chunk.IsVararg = expr.IsVararg

	for i, param := range expr.Params {
		sub.declareLocal(param, i)
	}
	sub.depth = len(expr.Params)
	if expr.IsVararg {
		sub.declareLocal("arg", sub.depth)
		sub.push(1)
	}

	for _, s := range expr.Body {
		s.Accept(sub)
	}
	sub.setLine(expr.EndLine)
	sub.emitOp(bytecode.OpReturn)
	sub.emitByte(byte(sub.depth))

	c.setLine(expr.Line)
	c.emitConstant(bytecode.OpClosure, sub.Chunk)
	c.push(1)
	return nil
}

func (c *Compiler) VisitTableExpr(expr *parser.TableExpr) interface{} {
	c.setLine(expr.Line)
	tableSlot := c.depth
	c.emitOp(bytecode.OpNewTable)
	c.push(1)

	pending := 0
	next := 1
	flush := func() {
		if pending == 0 {
			return
		}
		c.emitOp(bytecode.OpSetList)
		c.emitByte(byte(tableSlot))
		c.emitShort(next)
		next += pending
		pending = 0
		c.depth = tableSlot + 1
	}

	for i, entry := range expr.Entries {
		if entry.Key != nil {
			c.expr(entry.Key, 1)
			c.expr(entry.Value, 1)
			c.emitOp(bytecode.OpSetField)
			c.emitByte(byte(tableSlot))
			c.pop(2)
			continue
		}
		if i == len(expr.Entries)-1 && parser.IsMultiValue(entry.Value) {
			c.expr(entry.Value, bytecode.MultRet)
			pending++
			flush()
			continue
		}
		c.expr(entry.Value, 1)
		pending++
		if pending == fieldsPerFlush {
			flush()
		}
	}
	flush()
	return nil
}

var binaryOps = map[string]bytecode.OpCode{
	"+":  bytecode.OpAdd,
	"-":  bytecode.OpSub,
	"*":  bytecode.OpMul,
	"/":  bytecode.OpDiv,
	"^":  bytecode.OpPow,
	"..": bytecode.OpConcat,
	"==": bytecode.OpEqual,
	"~=": bytecode.OpNotEqual,
	"<":  bytecode.OpLess,
	"<=": bytecode.OpLessEqual,
	">":  bytecode.OpGreater,
	">=": bytecode.OpGreaterEqual,
}

func (c *Compiler) VisitBinaryExpr(expr *parser.Binary) interface{} {
	c.expr(expr.Left, 1)
	c.expr(expr.Right, 1)
	op, ok := binaryOps[expr.Operator]
	if !ok {
		c.error("unknown operator '%s'", expr.Operator)
	}
	c.setLine(expr.Line)
	c.emitOp(op)
	c.pop(1)
	return nil
}

func (c *Compiler) VisitLogicalExpr(expr *parser.LogicalExpr) interface{} {
	c.expr(expr.Left, 1)
	op := bytecode.OpAndJump
	if expr.Operator == "or" {
		op = bytecode.OpOrJump
	}
	jump := c.emitJump(op)
	c.pop(1)
	c.expr(expr.Right, 1)
	c.patchJump(jump)
	return nil
}

func (c *Compiler) VisitUnaryExpr(expr *parser.UnaryExpr) interface{} {
	c.expr(expr.Operand, 1)
	c.setLine(expr.Line)
	switch expr.Operator {
	case "-":
		c.emitOp(bytecode.OpNegate)
	case "not":
		c.emitOp(bytecode.OpNot)
	default:
		c.error("unknown operator '%s'", expr.Operator)
	}
	return nil
}

func (c *Compiler) VisitParenExpr(expr *parser.ParenExpr) interface{} {
	c.expr(expr.Inner, 1)
	return nil
}
