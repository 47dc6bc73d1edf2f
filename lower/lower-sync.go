package lower

import (
	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
)

// lowerMaster guards the body so only the master thread runs it.  No
// barrier at region exit.
func (l *lowerer) lowerMaster(
	construct *ir.MasterConstruct,
	outer *context,
) []ir.Stmt {
	ctx := l.contexts[construct]
	pos := construct.StartEnd()

	tid := l.fn.NewTemp("tid", ir.I32)
	skip := l.newLabel("master")

	stmts := []ir.Stmt{
		&ir.MasterDirective{StartEndPos: pos},
		ir.NewCall(pos, tid, gomp.GetThreadNum),
		ir.NewCond(
			pos,
			ir.NewBinary(
				pos,
				ir.Ne,
				ir.NewVarRef(pos, tid),
				ir.NewIntLit(pos, 0, ir.I32)),
			skip),
	}
	stmts = append(stmts, catchTrap(pos, l.lowerStmts(construct.Body, ctx))...)
	stmts = append(stmts, ir.NewLabel(pos, skip))
	stmts = append(stmts, &ir.OMPReturnStmt{
		StartEndPos: pos,
		Kind:        ir.KindMaster,
		Nowait:      true,
	})
	return stmts
}

func (l *lowerer) lowerOrdered(
	construct *ir.OrderedConstruct,
	outer *context,
) []ir.Stmt {
	ctx := l.contexts[construct]
	pos := construct.StartEnd()

	stmts := []ir.Stmt{
		&ir.OrderedDirective{StartEndPos: pos},
		ir.NewCall(pos, nil, gomp.OrderedStart),
	}
	stmts = append(stmts, catchTrap(pos, l.lowerStmts(construct.Body, ctx))...)
	stmts = append(stmts, ir.NewCall(pos, nil, gomp.OrderedEnd))
	stmts = append(stmts, &ir.OMPReturnStmt{
		StartEndPos: pos,
		Kind:        ir.KindOrdered,
		Nowait:      true,
	})
	return stmts
}

// lowerCritical brackets the body with runtime lock calls.  Named critical
// regions intern a lock variable per name, shared across the whole unit;
// unnamed regions use the runtime's default lock.
func (l *lowerer) lowerCritical(
	construct *ir.CriticalConstruct,
	outer *context,
) []ir.Stmt {
	ctx := l.contexts[construct]
	pos := construct.StartEnd()

	var start, end ir.Stmt
	if construct.Name == "" {
		start = ir.NewCall(pos, nil, gomp.CriticalStart)
		end = ir.NewCall(pos, nil, gomp.CriticalEnd)
	} else {
		mutex := l.mutexes.Get(construct.Name)
		start = ir.NewCall(
			pos,
			nil,
			gomp.CriticalNameStart,
			ir.NewAddrOf(pos, ir.NewVarRef(pos, mutex)))
		end = ir.NewCall(
			pos,
			nil,
			gomp.CriticalNameEnd,
			ir.NewAddrOf(pos, ir.NewVarRef(pos, mutex)))
	}

	stmts := []ir.Stmt{
		&ir.CriticalDirective{StartEndPos: pos, Name: construct.Name},
		start,
	}
	stmts = append(stmts, catchTrap(pos, l.lowerStmts(construct.Body, ctx))...)
	stmts = append(stmts, end)
	stmts = append(stmts, &ir.OMPReturnStmt{
		StartEndPos: pos,
		Kind:        ir.KindCritical,
		Nowait:      true,
	})
	return stmts
}

// lowerAtomic splits an atomic update into a load/store pair around the
// pure computation.  The expander picks the cheapest implementation the
// operation and target allow.
func (l *lowerer) lowerAtomic(
	construct *ir.AtomicConstruct,
	ctx *context,
) []ir.Stmt {
	pos := construct.StartEnd()

	x := l.rewriteExpr(construct.X, ctx)
	rhs := l.rewriteExpr(construct.RHS, ctx)

	tmp := l.fn.NewTemp("atomic", x.Type())
	return []ir.Stmt{
		&ir.AtomicLoadStmt{
			StartEndPos: pos,
			Tmp:         tmp,
			Addr:        ir.NewAddrOf(pos, x),
		},
		&ir.AtomicStoreStmt{
			StartEndPos: pos,
			Value:       substituteExpr(rhs, x, ir.NewVarRef(pos, tmp)),
		},
	}
}

// substituteExpr replaces every occurrence of the updated location inside
// the right-hand side with the loaded temporary, so the stored value is
// computed from one consistent snapshot.
func substituteExpr(expr ir.Expr, target ir.Expr, repl ir.Expr) ir.Expr {
	if lvalueEquals(expr, target) {
		return repl
	}
	switch concrete := expr.(type) {
	case *ir.Unary:
		concrete.X = substituteExpr(concrete.X, target, repl)
	case *ir.Binary:
		concrete.X = substituteExpr(concrete.X, target, repl)
		concrete.Y = substituteExpr(concrete.Y, target, repl)
	case *ir.Cast:
		concrete.X = substituteExpr(concrete.X, target, repl)
	}
	return expr
}

// lvalueEquals compares the lvalue shapes an atomic update may name.
func lvalueEquals(a ir.Expr, b ir.Expr) bool {
	if a == b {
		return true
	}
	switch ca := a.(type) {
	case *ir.VarRef:
		cb, ok := b.(*ir.VarRef)
		return ok && ca.Var == cb.Var
	case *ir.Deref:
		cb, ok := b.(*ir.Deref)
		return ok && lvalueEquals(ca.X, cb.X)
	case *ir.FieldRef:
		cb, ok := b.(*ir.FieldRef)
		return ok && ca.Field == cb.Field && lvalueEquals(ca.Base, cb.Base)
	case *ir.Index:
		cb, ok := b.(*ir.Index)
		return ok &&
			lvalueEquals(ca.Base, cb.Base) &&
			lvalueEquals(ca.Idx, cb.Idx)
	case *ir.IntLit:
		cb, ok := b.(*ir.IntLit)
		return ok && ca.Value == cb.Value && ca.IntType == cb.IntType
	default:
		return false
	}
}
