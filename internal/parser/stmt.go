// internal/parser/stmt.go
package parser

// Stmt represents a statement.
type Stmt interface {
	Accept(visitor StmtVisitor) interface{}
}

// LocalStmt declares locals: local a, b = e1, e2
type LocalStmt struct {
	Names []string
	Exprs []Expr
	Line  int
}

func (l *LocalStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitLocalStmt(l)
}

// AssignmentStmt is a multiple assignment: a, t[k] = e1, e2.
// Targets are *Variable or *IndexExpr.
type AssignmentStmt struct {
	Targets []Expr
	Exprs   []Expr
	Line    int
}

func (a *AssignmentStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitAssignmentStmt(a)
}

// ExpressionStmt wraps a call used as a statement.
type ExpressionStmt struct {
	Expr Expr
}

func (e *ExpressionStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitExpressionStmt(e)
}

// FunctionStmt is `function a.b:c(...) end`, an assignment of Func to Target.
type FunctionStmt struct {
	Target Expr
	Func   *FunctionExpr
}

func (f *FunctionStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitFunctionStmt(f)
}

// IfStmt; an elseif chain is a nested IfStmt as the only Else statement.
type IfStmt struct {
	Condition Expr
	Then      []Stmt
	Else      []Stmt
}

func (i *IfStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitIfStmt(i)
}

type WhileStmt struct {
	Condition Expr
	Body      []Stmt
}

func (w *WhileStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitWhileStmt(w)
}

type RepeatStmt struct {
	Body      []Stmt
	Condition Expr
}

func (r *RepeatStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitRepeatStmt(r)
}

type DoStmt struct {
	Body []Stmt
}

func (d *DoStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitDoStmt(d)
}

// ReturnStmt represents a return statement.
type ReturnStmt struct {
	Values []Expr
	Line   int
}

func (r *ReturnStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitReturnStmt(r)
}

// StmtVisitor handles all statement types.
type StmtVisitor interface {
	VisitLocalStmt(stmt *LocalStmt) interface{}
	VisitAssignmentStmt(stmt *AssignmentStmt) interface{}
	VisitExpressionStmt(stmt *ExpressionStmt) interface{}
	VisitFunctionStmt(stmt *FunctionStmt) interface{}
	VisitIfStmt(stmt *IfStmt) interface{}
	VisitWhileStmt(stmt *WhileStmt) interface{}
	VisitRepeatStmt(stmt *RepeatStmt) interface{}
	VisitDoStmt(stmt *DoStmt) interface{}
	VisitReturnStmt(stmt *ReturnStmt) interface{}
}
