package expand

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
)

// expandFor rebuilds a worksharing loop around the schedule's dispatch
// protocol.  Static schedules compute their iteration ranges locally;
// dynamic, guided and runtime schedules (and every ordered loop) negotiate
// ranges through the runtime.
func (e *expander) expandFor(r *region) {
	directive, ok := r.entry.LastStmt().(*ir.ForDirective)
	if !ok {
		panic("should never happen")
	}

	if directive.Sched == ir.ScheduleStatic && !directive.Ordered {
		if directive.Chunk == nil {
			e.expandForStaticNochunk(r, directive)
		} else {
			e.expandForStaticChunk(r, directive)
		}
	} else {
		e.expandForGeneric(r, directive)
	}
}

// loopShape gathers the CFG pieces every strategy rewires.
type loopShape struct {
	entry    *ir.Block
	bodyHead *ir.Block
	cont     *ir.Block
	exitPath *ir.Block
	exit     *ir.Block
}

func (e *expander) loopShape(r *region) loopShape {
	shape := loopShape{
		entry: r.entry,
		cont:  r.cont,
		exit:  r.exit,
	}
	if shape.cont == nil || shape.exit == nil {
		panic("should never happen")
	}
	shape.bodyHead = shape.entry.SingleChild()

	for _, child := range shape.cont.Children {
		if child != shape.bodyHead {
			shape.exitPath = child
		}
	}
	if shape.exitPath == nil {
		panic("should never happen")
	}

	shape.entry.RemoveLastStmt()
	shape.cont.RemoveLastStmt()
	return shape
}

// replaceLoopReturn swaps the region return for the loop's ending runtime
// call, or for the implicit barrier with static schedules.
func replaceLoopReturn(exit *ir.Block, endName string) {
	ret, ok := exit.LastStmt().(*ir.OMPReturnStmt)
	if !ok {
		panic("should never happen")
	}
	pos := ret.StartEnd()
	exit.RemoveLastStmt()

	if endName != "" {
		exit.Append(ir.NewCall(pos, nil, endName))
	} else if !ret.Nowait {
		exit.Append(ir.NewCall(pos, nil, gomp.Barrier))
	}
}

// expandForStaticNochunk deals iterations in one contiguous range per
// thread:
//
//	n = (n2 - n1 + step - 1) / step;
//	q = n / nthreads;
//	q += (q * nthreads != n);
//	s0 = q * tid;
//	e0 = min (s0 + q, n);
//	if (s0 >= e0) goto exit;
//	v = s0 * step + n1;  e = e0 * step + n1;
//	body; v += step; if (v != e) goto body;
//	exit: barrier unless nowait
func (e *expander) expandForStaticNochunk(
	r *region,
	directive *ir.ForDirective,
) {
	shape := e.loopShape(r)
	pos := directive.StartEnd()
	itype := iterType(directive)

	nthreads := e.teamCount(pos, shape.entry, itype)
	tid := e.threadId(pos, shape.entry, itype)

	n := e.fn.NewTemp("n", itype)
	q := e.fn.NewTemp("q", itype)
	s0 := e.fn.NewTemp("s0", itype)
	e0 := e.fn.NewTemp("e0", itype)

	shape.entry.Append(
		ir.NewAssign(pos, ir.NewVarRef(pos, n), tripCount(pos, directive, itype)),
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, q),
			ir.NewBinary(
				pos,
				ir.Div,
				ir.NewVarRef(pos, n),
				ir.NewVarRef(pos, nthreads))),
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, q),
			ir.NewBinary(
				pos,
				ir.Add,
				ir.NewVarRef(pos, q),
				ir.NewCast(
					pos,
					itype,
					ir.NewBinary(
						pos,
						ir.Ne,
						ir.NewBinary(
							pos,
							ir.Mul,
							ir.NewVarRef(pos, q),
							ir.NewVarRef(pos, nthreads)),
						ir.NewVarRef(pos, n))))),
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, s0),
			ir.NewBinary(
				pos,
				ir.Mul,
				ir.NewVarRef(pos, q),
				ir.NewVarRef(pos, tid))),
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, e0),
			ir.NewBinary(
				pos,
				ir.Min,
				ir.NewBinary(
					pos,
					ir.Add,
					ir.NewVarRef(pos, s0),
					ir.NewVarRef(pos, q)),
				ir.NewVarRef(pos, n))),
		ir.NewCond(
			pos,
			ir.NewBinary(
				pos,
				ir.Ge,
				ir.NewVarRef(pos, s0),
				ir.NewVarRef(pos, e0)),
			shape.exit.Label))

	seq := e.newBlock(pos)
	end := e.fn.NewTemp("e", itype)
	seq.Append(
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, directive.Iter),
			rangeBound(pos, directive, ir.NewVarRef(pos, s0))),
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, end),
			rangeBound(pos, directive, ir.NewVarRef(pos, e0))))

	setChildren(shape.entry, shape.exit, seq)
	setChildren(seq, shape.bodyHead)

	shape.cont.Append(
		incrementIter(pos, directive),
		ir.NewCond(
			pos,
			ir.NewBinary(
				pos,
				ir.Ne,
				ir.NewVarRef(pos, directive.Iter),
				ir.NewVarRef(pos, end)),
			shape.bodyHead.Label))
	setChildren(shape.cont, shape.bodyHead, shape.exitPath)

	replaceLoopReturn(shape.exit, "")
}

// expandForStaticChunk deals fixed-size chunks round-robin:
//
//	n = (n2 - n1 + step - 1) / step;
//	trip = 0;
//	L0: s0 = (trip * nthreads + tid) * chunk;
//	    e0 = min (s0 + chunk, n);
//	    if (s0 >= e0) goto exit;
//	    v = s0 * step + n1;  e = e0 * step + n1;
//	    body; v += step; if (v != e) goto body;
//	    trip += 1; goto L0;
//	exit: barrier unless nowait
func (e *expander) expandForStaticChunk(
	r *region,
	directive *ir.ForDirective,
) {
	shape := e.loopShape(r)
	pos := directive.StartEnd()
	itype := iterType(directive)

	nthreads := e.teamCount(pos, shape.entry, itype)
	tid := e.threadId(pos, shape.entry, itype)

	n := e.fn.NewTemp("n", itype)
	trip := e.fn.NewTemp("trip", itype)
	chunk := e.fn.NewTemp("chunk", itype)
	s0 := e.fn.NewTemp("s0", itype)
	e0 := e.fn.NewTemp("e0", itype)

	shape.entry.Append(
		ir.NewAssign(pos, ir.NewVarRef(pos, n), tripCount(pos, directive, itype)),
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, chunk),
			ir.NewCast(pos, itype, directive.Chunk)),
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, trip),
			ir.NewIntLit(pos, 0, itype)))

	dispatch := e.newBlock(pos)
	dispatch.Append(
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, s0),
			ir.NewBinary(
				pos,
				ir.Mul,
				ir.NewBinary(
					pos,
					ir.Add,
					ir.NewBinary(
						pos,
						ir.Mul,
						ir.NewVarRef(pos, trip),
						ir.NewVarRef(pos, nthreads)),
					ir.NewVarRef(pos, tid)),
				ir.NewVarRef(pos, chunk))),
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, e0),
			ir.NewBinary(
				pos,
				ir.Min,
				ir.NewBinary(
					pos,
					ir.Add,
					ir.NewVarRef(pos, s0),
					ir.NewVarRef(pos, chunk)),
				ir.NewVarRef(pos, n))),
		ir.NewCond(
			pos,
			ir.NewBinary(
				pos,
				ir.Ge,
				ir.NewVarRef(pos, s0),
				ir.NewVarRef(pos, e0)),
			shape.exit.Label))

	seq := e.newBlock(pos)
	end := e.fn.NewTemp("e", itype)
	seq.Append(
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, directive.Iter),
			rangeBound(pos, directive, ir.NewVarRef(pos, s0))),
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, end),
			rangeBound(pos, directive, ir.NewVarRef(pos, e0))))

	tripUpdate := e.newBlock(pos)
	tripUpdate.Append(
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, trip),
			ir.NewBinary(
				pos,
				ir.Add,
				ir.NewVarRef(pos, trip),
				ir.NewIntLit(pos, 1, itype))),
		ir.NewGoto(pos, dispatch.Label))

	setChildren(shape.entry, dispatch)
	setChildren(dispatch, shape.exit, seq)
	setChildren(seq, shape.bodyHead)

	shape.cont.Append(
		incrementIter(pos, directive),
		ir.NewCond(
			pos,
			ir.NewBinary(
				pos,
				ir.Ne,
				ir.NewVarRef(pos, directive.Iter),
				ir.NewVarRef(pos, end)),
			shape.bodyHead.Label))
	setChildren(shape.cont, shape.bodyHead, tripUpdate)
	setChildren(tripUpdate, dispatch)

	replaceLoopReturn(shape.exit, "")
}

// expandForGeneric negotiates iteration ranges through the runtime:
//
//	if (GOMP_loop_foo_start (n1, n2, step, chunk, &istart0, &iend0)) {
//	  do {
//	    v = istart0;  iend = iend0;
//	    body; v += step; if (v cond iend) goto body;
//	  } while (GOMP_loop_foo_next (&istart0, &iend0));
//	}
//	GOMP_loop_end ();  // or _end_nowait
//
// Inside a combined parallel the team start already performed the initial
// dispatch, so the entry calls _next instead of _start.
func (e *expander) expandForGeneric(
	r *region,
	directive *ir.ForDirective,
) {
	shape := e.loopShape(r)
	pos := directive.StartEnd()
	itype := iterType(directive)

	istart0 := e.fn.NewTemp("istart0", ir.I64)
	iend0 := e.fn.NewTemp("iend0", ir.I64)
	istart0.AddrTaken = true
	iend0.AddrTaken = true

	outAddrs := []ir.Expr{
		ir.NewAddrOf(pos, ir.NewVarRef(pos, istart0)),
		ir.NewAddrOf(pos, ir.NewVarRef(pos, iend0)),
	}

	more := e.fn.NewTemp("more", ir.BoolType{})
	var startCall *ir.CallStmt
	if r.combined {
		startCall = ir.NewCall(
			pos,
			more,
			gomp.LoopNextName(directive.Sched, directive.Ordered),
			outAddrs...)
	} else {
		args := []ir.Expr{
			ir.NewCast(pos, ir.I64, directive.N1),
			ir.NewCast(pos, ir.I64, directive.N2),
			ir.NewCast(pos, ir.I64, directive.Step),
		}
		if directive.Sched != ir.ScheduleRuntime {
			args = append(args, combinedChunk(directive))
		}
		args = append(args, outAddrs...)
		startCall = ir.NewCall(
			pos,
			more,
			gomp.LoopStartName(directive.Sched, directive.Ordered),
			args...)
	}

	rangeInit := e.newBlock(pos)
	iend := e.fn.NewTemp("iend", itype)
	rangeInit.Append(
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, directive.Iter),
			ir.NewCast(pos, itype, ir.NewVarRef(pos, istart0))),
		ir.NewAssign(
			pos,
			ir.NewVarRef(pos, iend),
			ir.NewCast(pos, itype, ir.NewVarRef(pos, iend0))))

	shape.entry.Append(
		startCall,
		ir.NewCond(pos, ir.NewVarRef(pos, more), rangeInit.Label))
	setChildren(shape.entry, rangeInit, shape.exit)
	setChildren(rangeInit, shape.bodyHead)

	next := e.newBlock(pos)
	next.Append(
		ir.NewCall(
			pos,
			more,
			gomp.LoopNextName(directive.Sched, directive.Ordered),
			outAddrs...),
		ir.NewCond(pos, ir.NewVarRef(pos, more), rangeInit.Label))
	setChildren(next, rangeInit, shape.exitPath)

	shape.cont.Append(
		incrementIter(pos, directive),
		ir.NewCond(
			pos,
			ir.NewBinary(
				pos,
				directive.Cond,
				ir.NewVarRef(pos, directive.Iter),
				ir.NewVarRef(pos, iend)),
			shape.bodyHead.Label))
	setChildren(shape.cont, shape.bodyHead, next)

	endName := gomp.LoopEnd
	if r.returnStmt().Nowait {
		endName = gomp.LoopEndNowait
	}
	replaceLoopReturn(shape.exit, endName)
}

func iterType(directive *ir.ForDirective) ir.IntType {
	itype, ok := directive.Iter.Type.(ir.IntType)
	if !ok {
		panic("should never happen")
	}
	return itype
}

// tripCount builds (n2 - n1 + step -+ 1) / step, the number of iterations
// rounded up.
func tripCount(
	pos parseutil.StartEndPos,
	directive *ir.ForDirective,
	itype ir.IntType,
) ir.Expr {
	adjust := int64(-1)
	if directive.Cond == ir.Lt {
		adjust = 1
	}
	return ir.NewBinary(
		pos,
		ir.Div,
		ir.NewBinary(
			pos,
			ir.Sub,
			ir.NewBinary(
				pos,
				ir.Add,
				ir.NewBinary(pos, ir.Sub, directive.N2, directive.N1),
				directive.Step),
			ir.NewIntLit(pos, adjust, itype)),
		directive.Step)
}

// rangeBound converts a logical iteration index back to an iterator value.
func rangeBound(
	pos parseutil.StartEndPos,
	directive *ir.ForDirective,
	index ir.Expr,
) ir.Expr {
	return ir.NewBinary(
		pos,
		ir.Add,
		ir.NewBinary(pos, ir.Mul, index, directive.Step),
		directive.N1)
}

func incrementIter(
	pos parseutil.StartEndPos,
	directive *ir.ForDirective,
) ir.Stmt {
	return ir.NewAssign(
		pos,
		ir.NewVarRef(pos, directive.Iter),
		ir.NewBinary(
			pos,
			ir.Add,
			ir.NewVarRef(pos, directive.Iter),
			directive.Step))
}

// teamCount loads omp_get_num_threads into a fresh temp of the iterator
// type.
func (e *expander) teamCount(
	pos parseutil.StartEndPos,
	block *ir.Block,
	itype ir.IntType,
) *ir.Var {
	raw := e.fn.NewTemp("nthreadsraw", ir.I32)
	block.Append(ir.NewCall(pos, raw, gomp.GetNumThreads))
	nthreads := e.fn.NewTemp("nthreads", itype)
	block.Append(ir.NewAssign(
		pos,
		ir.NewVarRef(pos, nthreads),
		ir.NewCast(pos, itype, ir.NewVarRef(pos, raw))))
	return nthreads
}

func (e *expander) threadId(
	pos parseutil.StartEndPos,
	block *ir.Block,
	itype ir.IntType,
) *ir.Var {
	raw := e.fn.NewTemp("tidraw", ir.I32)
	block.Append(ir.NewCall(pos, raw, gomp.GetThreadNum))
	tid := e.fn.NewTemp("tid", itype)
	block.Append(ir.NewAssign(
		pos,
		ir.NewVarRef(pos, tid),
		ir.NewCast(pos, itype, ir.NewVarRef(pos, raw))))
	return tid
}
