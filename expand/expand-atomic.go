package expand

import (
	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
)

// expandAtomic picks the cheapest implementation the update and the target
// support: a fetch-and-op intrinsic for simple integer updates, a
// compare-and-swap retry loop when the operand size allows it, and the
// global runtime mutex otherwise.
func (e *expander) expandAtomic(r *region) {
	load, ok := r.entry.LastStmt().(*ir.AtomicLoadStmt)
	if !ok {
		panic("should never happen")
	}
	store, ok := r.exit.LastStmt().(*ir.AtomicStoreStmt)
	if !ok {
		panic("should never happen")
	}

	size := e.target.SizeOf(load.Tmp.Type)
	aligned := size > 0 && e.target.AlignOf(load.Tmp.Type) >= size

	if aligned && e.tryFetchOp(r, load, store, size) {
		return
	}
	// The retry loop swaps through a same-size machine integer, both for
	// the intrinsic's operands and for reinterpreting non-integer values.
	if aligned && size*8 <= 64 && e.target.SupportsCompareAndSwap(size) {
		e.expandAtomicCAS(r, load, store, size)
		return
	}
	e.expandAtomicMutex(r, load, store)
}

// tryFetchOp matches the single-statement form `*addr = tmp op operand`
// (or its commuted variant) against the fetch-and-op intrinsics.  The old
// value must be dead outside the update for the intrinsic's ignored result
// to be equivalent.
func (e *expander) tryFetchOp(
	r *region,
	load *ir.AtomicLoadStmt,
	store *ir.AtomicStoreStmt,
	size int,
) bool {
	if _, ok := load.Tmp.Type.(ir.IntType); !ok {
		return false
	}
	if !e.target.SupportsFetchOp(size) {
		return false
	}
	if r.entry.SingleChild() != r.exit || len(r.exit.Stmts) != 1 {
		return false
	}

	bin, ok := store.Value.(*ir.Binary)
	if !ok {
		return false
	}
	name, ok := gomp.FetchOpName(bin.Op, size)
	if !ok {
		return false
	}

	var operand ir.Expr
	if isVarRef(bin.X, load.Tmp) && !referencesVar(bin.Y, load.Tmp) {
		operand = bin.Y
	} else if bin.Op.IsCommutative() &&
		isVarRef(bin.Y, load.Tmp) &&
		!referencesVar(bin.X, load.Tmp) {
		operand = bin.X
	} else {
		return false
	}

	pos := store.StartEnd()
	r.entry.RemoveLastStmt()
	r.exit.RemoveLastStmt()
	r.exit.Append(ir.NewCall(pos, nil, name, load.Addr, operand))
	return true
}

// expandAtomicCAS retries the computation until the location still holds
// the snapshot the computation started from:
//
//	tmp = *addr;
//	L0: desired = <update>;
//	got = __sync_val_compare_and_swap (addr, tmp, desired);
//	if (got != tmp) { tmp = got; goto L0; }
//
// Float updates funnel through the same-size integer intrinsic with bit
// reinterpreting casts.
func (e *expander) expandAtomicCAS(
	r *region,
	load *ir.AtomicLoadStmt,
	store *ir.AtomicStoreStmt,
	size int,
) {
	pos := store.StartEnd()
	elemType := load.Tmp.Type
	_, isInt := elemType.(ir.IntType)

	bodyHead := r.entry.SingleChild()
	exitSucc := r.exit.SingleChild()

	r.entry.RemoveLastStmt()
	r.entry.Append(ir.NewAssign(
		load.StartEnd(),
		ir.NewVarRef(load.StartEnd(), load.Tmp),
		ir.NewDeref(load.StartEnd(), load.Addr)))

	retry := e.newBlock(pos)
	r.exit.RemoveLastStmt()

	if isInt {
		got := e.fn.NewTemp("got", elemType)
		r.exit.Append(
			ir.NewCall(
				pos,
				got,
				gomp.CompareAndSwapName(size),
				load.Addr,
				ir.NewVarRef(pos, load.Tmp),
				store.Value),
			ir.NewCond(
				pos,
				ir.NewBinary(
					pos,
					ir.Ne,
					ir.NewVarRef(pos, got),
					ir.NewVarRef(pos, load.Tmp)),
				retry.Label))
		retry.Append(
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, load.Tmp),
				ir.NewVarRef(pos, got)),
			ir.NewGoto(pos, bodyHead.Label))
	} else {
		itype := ir.IntType{Bits: size * 8}
		expected := e.fn.NewTemp("expected", itype)
		desired := e.fn.NewTemp("desired", itype)
		got := e.fn.NewTemp("got", itype)
		r.exit.Append(
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, expected),
				ir.NewBitCast(pos, itype, ir.NewVarRef(pos, load.Tmp))),
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, desired),
				ir.NewBitCast(pos, itype, store.Value)),
			ir.NewCall(
				pos,
				got,
				gomp.CompareAndSwapName(size),
				ir.NewCast(pos, ir.NewPointerType(itype), load.Addr),
				ir.NewVarRef(pos, expected),
				ir.NewVarRef(pos, desired)),
			ir.NewCond(
				pos,
				ir.NewBinary(
					pos,
					ir.Ne,
					ir.NewVarRef(pos, got),
					ir.NewVarRef(pos, expected)),
				retry.Label))
		retry.Append(
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, load.Tmp),
				ir.NewBitCast(pos, elemType, ir.NewVarRef(pos, got))),
			ir.NewGoto(pos, bodyHead.Label))
	}

	setChildren(r.exit, retry, exitSucc)
	setChildren(retry, bodyHead)
}

// expandAtomicMutex serializes the update through the runtime's global
// atomic lock.
func (e *expander) expandAtomicMutex(
	r *region,
	load *ir.AtomicLoadStmt,
	store *ir.AtomicStoreStmt,
) {
	loadPos := load.StartEnd()
	storePos := store.StartEnd()

	r.entry.RemoveLastStmt()
	r.entry.Append(
		ir.NewCall(loadPos, nil, gomp.AtomicStart),
		ir.NewAssign(
			loadPos,
			ir.NewVarRef(loadPos, load.Tmp),
			ir.NewDeref(loadPos, load.Addr)))

	r.exit.RemoveLastStmt()
	r.exit.Append(
		ir.NewAssign(
			storePos,
			ir.NewDeref(storePos, load.Addr),
			store.Value),
		ir.NewCall(storePos, nil, gomp.AtomicEnd))
}

func isVarRef(expr ir.Expr, v *ir.Var) bool {
	ref, ok := expr.(*ir.VarRef)
	return ok && ref.Var == v
}

func referencesVar(expr ir.Expr, v *ir.Var) bool {
	collector := &varRefCollector{refs: map[*ir.Var]struct{}{}}
	expr.Walk(collector)
	_, ok := collector.refs[v]
	return ok
}
