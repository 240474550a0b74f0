package parser

type Expr interface {
	Accept(visitor ExprVisitor) interface{}
}

// Literal expression: nil, number or string
type Literal struct {
	Value interface{}
}

func (l *Literal) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitLiteralExpr(l)
}

// Variable expression: x
type Variable struct {
	Name string
	Line int
}

func (v *Variable) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitVariableExpr(v)
}

// Index expression: t[k], or t.name with a string literal key
type IndexExpr struct {
	Object Expr
	Index  Expr
	Line   int
}

func (i *IndexExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitIndexExpr(i)
}

// Call expression: callee(args...)
type CallExpr struct {
	Callee Expr
	Args   []Expr
	Line   int
}

func (c *CallExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitCallExpr(c)
}

// Method call: object:method(args...), object passed as the first argument
type MethodCallExpr struct {
	Object Expr
	Method string
	Args   []Expr
	Line   int
}

func (m *MethodCallExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitMethodCallExpr(m)
}

// Function literal: function (params) body end
type FunctionExpr struct {
	Name     string
	Params   []string
	IsVararg bool
	Body     []Stmt
	Line     int
	EndLine  int
}

func (f *FunctionExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitFunctionExpr(f)
}

// TableEntry is one constructor field. Key is nil for positional items.
type TableEntry struct {
	Key   Expr
	Value Expr
}

// Table constructor: {1, 2; x = 3, [k] = v}
type TableExpr struct {
	Entries []TableEntry
	Line    int
}

func (t *TableExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitTableExpr(t)
}

// Binary expression: a + b, a .. b, a < b
type Binary struct {
	Left     Expr
	Operator string
	Right    Expr
	Line     int
}

func (b *Binary) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitBinaryExpr(b)
}

// Logical expression: a and b, a or b
type LogicalExpr struct {
	Left     Expr
	Operator string
	Right    Expr
}

func (l *LogicalExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitLogicalExpr(l)
}

// Unary expression: not x, -x
type UnaryExpr struct {
	Operator string
	Operand  Expr
	Line     int
}

func (u *UnaryExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitUnaryExpr(u)
}

// Parenthesized expression; truncates a multi-value call to one value
type ParenExpr struct {
	Inner Expr
}

func (p *ParenExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitParenExpr(p)
}

type ExprVisitor interface {
	VisitLiteralExpr(expr *Literal) interface{}
	VisitVariableExpr(expr *Variable) interface{}
	VisitIndexExpr(expr *IndexExpr) interface{}
	VisitCallExpr(expr *CallExpr) interface{}
	VisitMethodCallExpr(expr *MethodCallExpr) interface{}
	VisitFunctionExpr(expr *FunctionExpr) interface{}
	VisitTableExpr(expr *TableExpr) interface{}
	VisitBinaryExpr(expr *Binary) interface{}
	VisitLogicalExpr(expr *LogicalExpr) interface{}
	VisitUnaryExpr(expr *UnaryExpr) interface{}
	VisitParenExpr(expr *ParenExpr) interface{}
}

// IsMultiValue reports whether e may produce a variable number of values.
func IsMultiValue(e Expr) bool {
	switch e.(type) {
	case *CallExpr, *MethodCallExpr:
		return true
	}
	return false
}
