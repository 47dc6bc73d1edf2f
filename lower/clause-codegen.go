package lower

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
)

const (
	allocaBuiltin = "__builtin_alloca"
	memcpyBuiltin = "__builtin_memcpy"
)

// lowerRecInputClauses builds the statements that run at region entry,
// before the construct body: private storage allocation, firstprivate
// copy-in, reduction initialization and copyin propagation.
func (l *lowerer) lowerRecInputClauses(
	pos parseutil.StartEndPos,
	clauses ir.ClauseList,
	ctx *context,
) []ir.Stmt {
	var ilist []ir.Stmt
	copyinDone := false

	// Variably sized variables go last so their size scalars are already
	// initialized.
	for _, variablySized := range []bool{false, true} {
		for _, clause := range clauses {
			switch concrete := clause.(type) {
			case *ir.PrivateClause:
				if concrete.Var.IsVariablySized() != variablySized {
					continue
				}
				ilist = append(
					ilist,
					l.privateStorage(pos, concrete.Var, ctx)...)
			case *ir.FirstprivateClause:
				if concrete.Var.IsVariablySized() != variablySized {
					continue
				}
				ilist = append(
					ilist,
					l.firstprivateInit(pos, concrete.Var, ctx)...)
			case *ir.LastprivateClause:
				if concrete.Var.IsVariablySized() != variablySized {
					continue
				}
				if namesFirstprivate(clauses, concrete.Var) {
					// The copy-in allocates the shared clone's storage.
					continue
				}
				ilist = append(
					ilist,
					l.privateStorage(pos, concrete.Var, ctx)...)
			case *ir.ReductionClause:
				if variablySized {
					continue
				}
				clone := ctx.varMap[concrete.Var]
				ilist = append(
					ilist,
					ir.NewAssign(
						pos,
						ir.NewVarRef(pos, clone),
						neutralElement(pos, concrete.Op, clone.Type)))
			case *ir.CopyinClause:
				if variablySized || copyinDone {
					continue
				}
				ilist = append(ilist, l.copyinProlog(pos, clauses, ctx)...)
				copyinDone = true
			}
		}
	}

	// When a variable is both firstprivate and lastprivate, the copy-in
	// reads the original while another thread may be about to commit into
	// it.  Fence the copies off from the commits.
	if !copyinDone && firstLastOverlap(clauses) {
		ilist = append(ilist, ir.NewCall(pos, nil, gomp.Barrier))
	}

	return ilist
}

func firstLastOverlap(clauses ir.ClauseList) bool {
	for _, clause := range clauses {
		concrete, ok := clause.(*ir.FirstprivateClause)
		if ok && namesLastprivate(clauses, concrete.Var) {
			return true
		}
	}
	return false
}

// privateStorage allocates backing storage for a privatized clone when the
// clone is a pointer (reference variables and variably sized arrays).
// Fixed-size value clones need no setup.
func (l *lowerer) privateStorage(
	pos parseutil.StartEndPos,
	v *ir.Var,
	ctx *context,
) []ir.Stmt {
	clone := ctx.varMap[v]
	switch {
	case v.IsVariablySized():
		alloc := ir.NewCall(pos, clone, allocaBuiltin, l.byteSize(pos, clone))
		return []ir.Stmt{alloc}
	case v.IsReference:
		backing := l.fn.NewTemp("priv", v.Type)
		return []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, clone),
				ir.NewAddrOf(pos, ir.NewVarRef(pos, backing))),
		}
	default:
		return nil
	}
}

func (l *lowerer) firstprivateInit(
	pos parseutil.StartEndPos,
	v *ir.Var,
	ctx *context,
) []ir.Stmt {
	stmts := l.privateStorage(pos, v, ctx)
	src := ctx.outerRef(pos, v)

	if v.IsVariablySized() {
		clone := ctx.varMap[v]
		stmts = append(stmts, ir.NewCall(
			pos,
			nil,
			memcpyBuiltin,
			ir.NewVarRef(pos, clone),
			ir.NewAddrOf(pos, src),
			l.byteSize(pos, clone)))
		return stmts
	}

	dst := ctx.remapExpr(pos, v)
	stmts = append(stmts, ir.NewAssign(pos, dst, src))
	return stmts
}

// byteSize computes the allocation size of a pointer-to-array clone.  The
// element count expression was remapped to its in-construct form during
// scanning.
func (l *lowerer) byteSize(
	pos parseutil.StartEndPos,
	clone *ir.Var,
) ir.Expr {
	ptr, ok := clone.Type.(ir.PointerType)
	if !ok {
		panic("should never happen")
	}
	arr, ok := ptr.Elem.(ir.ArrayType)
	if !ok {
		panic("should never happen")
	}

	elemSize := l.target.SizeOf(arr.Elem)
	if elemSize <= 0 {
		panic("should never happen")
	}
	return ir.NewBinary(
		pos,
		ir.Mul,
		ir.NewCast(pos, ir.U64, arr.Count),
		ir.NewIntLit(pos, int64(elemSize), ir.U64))
}

// copyinProlog propagates the master thread's threadprivate values to the
// other threads of the team.  The master's values arrive through the
// communication record; non-master threads copy them into their own
// threadprivate instances, and everyone synchronizes before first use.
func (l *lowerer) copyinProlog(
	pos parseutil.StartEndPos,
	clauses ir.ClauseList,
	ctx *context,
) []ir.Stmt {
	tid := l.fn.NewTemp("tid", ir.I32)
	call := ir.NewCall(pos, tid, gomp.GetThreadNum)
	skip := l.newLabel("copyin")

	stmts := []ir.Stmt{
		call,
		ir.NewCond(
			pos,
			ir.NewBinary(
				pos,
				ir.Eq,
				ir.NewVarRef(pos, tid),
				ir.NewIntLit(pos, 0, ir.I32)),
			skip),
	}
	for _, clause := range clauses {
		copyin, ok := clause.(*ir.CopyinClause)
		if !ok {
			continue
		}
		field, ok := ctx.fieldMap[copyin.Var]
		if !ok {
			continue
		}
		stmts = append(stmts, ir.NewAssign(
			pos,
			ir.NewVarRef(pos, copyin.Var),
			ctx.receiverRef(pos, field)))
	}
	stmts = append(
		stmts,
		ir.NewLabel(pos, skip),
		ir.NewCall(pos, nil, gomp.Barrier))
	return stmts
}

// lowerReductionClauses builds the per-thread merge code that runs once
// after the region body.  A single reduction uses an atomic
// load/modify/store pair; multiple reductions share one
// GOMP_atomic_start/end bracket.
func (l *lowerer) lowerReductionClauses(
	pos parseutil.StartEndPos,
	clauses ir.ClauseList,
	ctx *context,
) []ir.Stmt {
	reductions := clauses.Reductions()
	if len(reductions) == 0 {
		return nil
	}

	if len(reductions) == 1 {
		red := reductions[0]
		clone := ctx.varMap[red.Var]
		target := ctx.outerRef(pos, red.Var)
		tmp := l.fn.NewTemp("red", clone.Type)
		return []ir.Stmt{
			&ir.AtomicLoadStmt{
				StartEndPos: pos,
				Tmp:         tmp,
				Addr:        ir.NewAddrOf(pos, target),
			},
			&ir.AtomicStoreStmt{
				StartEndPos: pos,
				Value: ir.NewBinary(
					pos,
					mergeOp(red.Op),
					ir.NewVarRef(pos, tmp),
					ir.NewVarRef(pos, clone)),
			},
		}
	}

	stmts := []ir.Stmt{ir.NewCall(pos, nil, gomp.AtomicStart)}
	for _, red := range reductions {
		clone := ctx.varMap[red.Var]
		stmts = append(stmts, ir.NewAssign(
			pos,
			ctx.outerRef(pos, red.Var),
			ir.NewBinary(
				pos,
				mergeOp(red.Op),
				ctx.outerRef(pos, red.Var),
				ir.NewVarRef(pos, clone))))
	}
	stmts = append(stmts, ir.NewCall(pos, nil, gomp.AtomicEnd))
	return stmts
}

// mergeOp maps a reduction operator to the operator combining a thread's
// partial result into the shared variable.  Subtraction reductions
// accumulate partial sums, so the merge is an addition.
func mergeOp(op ir.BinaryOp) ir.BinaryOp {
	if op == ir.Sub {
		return ir.Add
	}
	return op
}

// lowerLastprivateClauses commits the clones of the thread that executed
// the sequentially last iteration (or section) back to the outer
// variables.  predicate is nil when the caller already placed the commits
// on the sequentially-last path.
func (l *lowerer) lowerLastprivateClauses(
	pos parseutil.StartEndPos,
	clauses ir.ClauseList,
	ctx *context,
	predicate ir.Expr,
) []ir.Stmt {
	var commits []ir.Stmt
	for _, clause := range clauses {
		last, ok := clause.(*ir.LastprivateClause)
		if !ok {
			continue
		}
		commits = append(commits, ir.NewAssign(
			pos,
			ctx.outerRef(pos, last.Var),
			ctx.remapExpr(pos, last.Var)))
	}
	if len(commits) == 0 || predicate == nil {
		return commits
	}

	skip := l.newLabel("lastpriv")
	stmts := []ir.Stmt{
		ir.NewCond(pos, ir.NewUnary(pos, ir.Not, predicate), skip),
	}
	stmts = append(stmts, commits...)
	stmts = append(stmts, ir.NewLabel(pos, skip))
	return stmts
}

func neutralElement(
	pos parseutil.StartEndPos,
	op ir.BinaryOp,
	t ir.Type,
) ir.Expr {
	switch concrete := t.(type) {
	case ir.IntType:
		switch op {
		case ir.Add, ir.Sub, ir.BitOr, ir.BitXor:
			return ir.NewIntLit(pos, 0, concrete)
		case ir.Mul:
			return ir.NewIntLit(pos, 1, concrete)
		case ir.BitAnd:
			return ir.NewIntLit(pos, -1, concrete)
		case ir.LogAnd:
			return ir.NewIntLit(pos, 1, concrete)
		case ir.LogOr:
			return ir.NewIntLit(pos, 0, concrete)
		case ir.Min:
			return ir.NewIntLit(pos, intMax(concrete), concrete)
		case ir.Max:
			return ir.NewIntLit(pos, intMin(concrete), concrete)
		}
	case ir.FloatType:
		switch op {
		case ir.Add, ir.Sub:
			return &ir.FloatLit{
				StartEndPos: pos,
				FloatType:   concrete,
			}
		case ir.Mul:
			return &ir.FloatLit{
				StartEndPos: pos,
				Value:       1,
				FloatType:   concrete,
			}
		case ir.Min:
			return &ir.FloatLit{
				StartEndPos: pos,
				FloatType:   concrete,
				Inf:         true,
			}
		case ir.Max:
			return &ir.FloatLit{
				StartEndPos: pos,
				FloatType:   concrete,
				Inf:         true,
				Neg:         true,
			}
		}
	case ir.BoolType:
		switch op {
		case ir.LogAnd:
			return &ir.BoolLit{StartEndPos: pos, Value: true}
		case ir.LogOr, ir.BitOr, ir.BitXor:
			return &ir.BoolLit{StartEndPos: pos}
		case ir.BitAnd:
			return &ir.BoolLit{StartEndPos: pos, Value: true}
		}
	}
	panic("should never happen")
}

func intMax(t ir.IntType) int64 {
	if t.Signed {
		return 1<<(t.Bits-1) - 1
	}
	// The all-ones bit pattern; reinterpreted at the literal's type.
	return -1
}

func intMin(t ir.IntType) int64 {
	if t.Signed {
		return -1 << (t.Bits - 1)
	}
	return 0
}
