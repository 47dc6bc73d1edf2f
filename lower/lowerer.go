package lower

import (
	"fmt"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
	"github.com/pattyshack/towhee/platform"
)

// NewLowerer returns the scan/lower pass for one function.  Scanning and
// lowering share the context chain, so both halves run in a single Process
// call.  Child functions created for parallel constructs are registered
// with the unit; their bodies are populated during expansion.
func NewLowerer(
	emitter *parseutil.Emitter,
	target platform.Platform,
	mutexes *gomp.MutexTable,
	unit *ir.Unit,
) Pass[*ir.FuncDecl] {
	return &lowerer{
		Emitter: emitter,
		target:  target,
		mutexes: mutexes,
		unit:    unit,
	}
}

type lowerer struct {
	*parseutil.Emitter

	target  platform.Platform
	mutexes *gomp.MutexTable
	unit    *ir.Unit

	fn       *ir.FuncDecl
	contexts map[ir.Construct]*context

	labelId int
}

func (l *lowerer) Process(fn *ir.FuncDecl) {
	scanner := newScanner(l.Emitter, l.target, fn, l.unit.AddFunc)
	root, contexts := scanner.scan()
	if l.HasErrors() {
		return
	}

	l.fn = fn
	l.contexts = contexts
	fn.Body = l.lowerStmts(fn.Body, root)
}

// catchTrap wraps a region body so that a fault unwinding out of it traps
// instead of escaping the structured block.
func catchTrap(pos parseutil.StartEndPos, body []ir.Stmt) []ir.Stmt {
	if len(body) == 0 {
		return nil
	}
	return []ir.Stmt{&ir.CatchTrapStmt{StartEndPos: pos, Body: body}}
}

func (l *lowerer) newLabel(prefix string) string {
	label := fmt.Sprintf(".L%s%d", prefix, l.labelId)
	l.labelId++
	return label
}

func (l *lowerer) lowerStmts(stmts []ir.Stmt, ctx *context) []ir.Stmt {
	var result []ir.Stmt
	for _, stmt := range stmts {
		result = append(result, l.lowerStmt(stmt, ctx)...)
	}
	return result
}

func (l *lowerer) lowerStmt(stmt ir.Stmt, ctx *context) []ir.Stmt {
	switch concrete := stmt.(type) {
	case *ir.BlockStmt:
		concrete.Body = l.lowerStmts(concrete.Body, ctx)
		return []ir.Stmt{concrete}
	case *ir.CatchTrapStmt:
		concrete.Body = l.lowerStmts(concrete.Body, ctx)
		return []ir.Stmt{concrete}
	case *ir.ParallelConstruct:
		return []ir.Stmt{l.lowerParallel(concrete, ctx)}
	case *ir.ForConstruct:
		return []ir.Stmt{l.lowerFor(concrete, ctx)}
	case *ir.SectionsConstruct:
		return []ir.Stmt{l.lowerSections(concrete, ctx)}
	case *ir.SingleConstruct:
		return []ir.Stmt{l.lowerSingle(concrete, ctx)}
	case *ir.MasterConstruct:
		return l.lowerMaster(concrete, ctx)
	case *ir.OrderedConstruct:
		return l.lowerOrdered(concrete, ctx)
	case *ir.CriticalConstruct:
		return l.lowerCritical(concrete, ctx)
	case *ir.AtomicConstruct:
		return l.lowerAtomic(concrete, ctx)
	default:
		l.rewriteStmt(stmt, ctx)
		if call, ok := stmt.(*ir.CallStmt); ok && call.Result != nil {
			return l.rewriteCallResult(call, ctx)
		}
		return []ir.Stmt{stmt}
	}
}

// rewriteCallResult redirects a call's result destination to its in-context
// form.  Clone destinations swap in place; record-field destinations go
// through a temporary since the result can only name a variable.
func (l *lowerer) rewriteCallResult(
	call *ir.CallStmt,
	ctx *context,
) []ir.Stmt {
	pos := call.StartEnd()
	mapped := ctx.remapExpr(pos, call.Result)
	if mapped == nil {
		return []ir.Stmt{call}
	}
	if ref, ok := mapped.(*ir.VarRef); ok {
		call.Result = ref.Var
		return []ir.Stmt{call}
	}
	tmp := l.fn.NewTemp("ret", call.Result.Type)
	call.Result = tmp
	return []ir.Stmt{
		call,
		ir.NewAssign(pos, mapped, ir.NewVarRef(pos, tmp)),
	}
}

// rewriteStmt rewrites every variable reference in a non-construct
// statement to its in-context form (private clone, communication record
// access path, or untouched).
func (l *lowerer) rewriteStmt(stmt ir.Stmt, ctx *context) {
	switch concrete := stmt.(type) {
	case *ir.AssignStmt:
		concrete.LHS = l.rewriteExpr(concrete.LHS, ctx)
		concrete.RHS = l.rewriteExpr(concrete.RHS, ctx)
	case *ir.CallStmt:
		for i, arg := range concrete.Args {
			concrete.Args[i] = l.rewriteExpr(arg, ctx)
		}
	case *ir.CondStmt:
		concrete.Cond = l.rewriteExpr(concrete.Cond, ctx)
	case *ir.SwitchStmt:
		concrete.Index = l.rewriteExpr(concrete.Index, ctx)
	case *ir.ReturnStmt:
		if concrete.Value != nil {
			concrete.Value = l.rewriteExpr(concrete.Value, ctx)
		}
	}
}

func (l *lowerer) rewriteExpr(expr ir.Expr, ctx *context) ir.Expr {
	switch concrete := expr.(type) {
	case *ir.VarRef:
		mapped := ctx.remapExpr(concrete.StartEnd(), concrete.Var)
		if mapped != nil {
			return mapped
		}
		if concrete.Var.ValueExpr != nil {
			return l.rewriteExpr(concrete.Var.ValueExpr, ctx)
		}
		return concrete
	case *ir.Unary:
		concrete.X = l.rewriteExpr(concrete.X, ctx)
	case *ir.Binary:
		concrete.X = l.rewriteExpr(concrete.X, ctx)
		concrete.Y = l.rewriteExpr(concrete.Y, ctx)
	case *ir.AddrOf:
		concrete.X = l.rewriteExpr(concrete.X, ctx)
	case *ir.Deref:
		concrete.X = l.rewriteExpr(concrete.X, ctx)
	case *ir.FieldRef:
		concrete.Base = l.rewriteExpr(concrete.Base, ctx)
	case *ir.Index:
		concrete.Base = l.rewriteExpr(concrete.Base, ctx)
		concrete.Idx = l.rewriteExpr(concrete.Idx, ctx)
	case *ir.Cast:
		concrete.X = l.rewriteExpr(concrete.X, ctx)
	}
	return expr
}

// rewriteClauseExprs rewrites the evaluated clause expressions (if,
// num_threads, schedule chunk) in the construct's enclosing context.
func (l *lowerer) rewriteClauseExprs(clauses ir.ClauseList, outer *context) {
	for _, clause := range clauses {
		switch concrete := clause.(type) {
		case *ir.IfClause:
			concrete.Cond = l.rewriteExpr(concrete.Cond, outer)
		case *ir.NumThreadsClause:
			concrete.Count = l.rewriteExpr(concrete.Count, outer)
		case *ir.ScheduleClause:
			if concrete.Chunk != nil {
				concrete.Chunk = l.rewriteExpr(concrete.Chunk, outer)
			}
		}
	}
}
