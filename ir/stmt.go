package ir

import (
	"github.com/pattyshack/gt/parseutil"
)

type Stmt interface {
	Node
	isStmtNode()
}

type isStmt struct{}

func (isStmt) isStmtNode() {}

type AssignStmt struct {
	isStmt
	parseutil.StartEndPos

	LHS Expr
	RHS Expr
}

var _ Stmt = &AssignStmt{}

func NewAssign(pos parseutil.StartEndPos, lhs Expr, rhs Expr) *AssignStmt {
	return &AssignStmt{StartEndPos: pos, LHS: lhs, RHS: rhs}
}

func (stmt *AssignStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	stmt.LHS.Walk(visitor)
	stmt.RHS.Walk(visitor)
	visitor.Exit(stmt)
}

// CallStmt calls a named function, assigning the result to Result when the
// callee returns a value.  Fn is populated for calls to outlined child
// functions; runtime library and intrinsic calls are identified by Name
// alone.
type CallStmt struct {
	isStmt
	parseutil.StartEndPos

	Result *Var
	Name   string
	Fn     *FuncDecl
	Args   []Expr
}

var _ Stmt = &CallStmt{}

func NewCall(
	pos parseutil.StartEndPos,
	result *Var,
	name string,
	args ...Expr,
) *CallStmt {
	return &CallStmt{StartEndPos: pos, Result: result, Name: name, Args: args}
}

func (stmt *CallStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	for _, arg := range stmt.Args {
		arg.Walk(visitor)
	}
	visitor.Exit(stmt)
}

type LabelStmt struct {
	isStmt
	parseutil.StartEndPos

	Name string
}

var _ Stmt = &LabelStmt{}

func NewLabel(pos parseutil.StartEndPos, name string) *LabelStmt {
	return &LabelStmt{StartEndPos: pos, Name: name}
}

func (stmt *LabelStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	visitor.Exit(stmt)
}

type GotoStmt struct {
	isStmt
	parseutil.StartEndPos

	Label string
}

var _ Stmt = &GotoStmt{}

func NewGoto(pos parseutil.StartEndPos, label string) *GotoStmt {
	return &GotoStmt{StartEndPos: pos, Label: label}
}

func (stmt *GotoStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	visitor.Exit(stmt)
}

// CondStmt branches to Label when Cond is true and falls through otherwise.
type CondStmt struct {
	isStmt
	parseutil.StartEndPos

	Cond  Expr
	Label string
}

var _ Stmt = &CondStmt{}

func NewCond(pos parseutil.StartEndPos, cond Expr, label string) *CondStmt {
	return &CondStmt{StartEndPos: pos, Cond: cond, Label: label}
}

func (stmt *CondStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	stmt.Cond.Walk(visitor)
	visitor.Exit(stmt)
}

type SwitchCase struct {
	Value int64
	Label string
}

type SwitchStmt struct {
	isStmt
	parseutil.StartEndPos

	Index        Expr
	Cases        []SwitchCase
	DefaultLabel string
}

var _ Stmt = &SwitchStmt{}

func (stmt *SwitchStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	stmt.Index.Walk(visitor)
	visitor.Exit(stmt)
}

type ReturnStmt struct {
	isStmt
	parseutil.StartEndPos

	Value Expr // nil for void returns
}

var _ Stmt = &ReturnStmt{}

func (stmt *ReturnStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	if stmt.Value != nil {
		stmt.Value.Walk(visitor)
	}
	visitor.Exit(stmt)
}

// NopStmt replaces statements the diagnostic passes reject, keeping the
// surrounding IR well formed.
type NopStmt struct {
	isStmt
	parseutil.StartEndPos
}

var _ Stmt = &NopStmt{}

func (stmt *NopStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	visitor.Exit(stmt)
}

// TrapStmt aborts the program.  Emitted for unreachable dispatch arms and by
// the fault wrapper when an exception tries to escape a structured block.
type TrapStmt struct {
	isStmt
	parseutil.StartEndPos
}

var _ Stmt = &TrapStmt{}

func (stmt *TrapStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	visitor.Exit(stmt)
}

// BlockStmt is a scope: variable declarations plus a statement list.  The
// lowerer wraps every construct body in one holding the privatized clones.
type BlockStmt struct {
	isStmt
	parseutil.StartEndPos

	Vars []*Var
	Body []Stmt
}

var _ Stmt = &BlockStmt{}

func (stmt *BlockStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	for _, inner := range stmt.Body {
		inner.Walk(visitor)
	}
	visitor.Exit(stmt)
}

// CatchTrapStmt is the fault wrapper: any exception unwinding out of Body is
// converted into a trap instead of escaping the structured block.
type CatchTrapStmt struct {
	isStmt
	parseutil.StartEndPos

	Body []Stmt
}

var _ Stmt = &CatchTrapStmt{}

func (stmt *CatchTrapStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	for _, inner := range stmt.Body {
		inner.Walk(visitor)
	}
	visitor.Exit(stmt)
}
