package expand

import (
	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
)

// determineParallelType decides whether a parallel region fuses with the
// single worksharing region it wraps.  When it does, the expander calls the
// combined runtime entry point (which both starts the team and performs the
// initial dispatch) instead of GOMP_parallel_start, and the inner region
// skips its own start call.
func determineParallelType(r *region) {
	if len(r.inner) != 1 {
		return
	}
	inner := r.inner[0]
	if inner.kind != ir.KindFor && inner.kind != ir.KindSections {
		return
	}

	// The worksharing directive must immediately follow the parallel entry
	// and its exit must immediately precede the parallel return, with no
	// intervening computation.
	if r.entry.SingleChild() != inner.entry {
		return
	}
	if len(inner.exit.Children) != 1 ||
		inner.exit.Children[0] != r.exit {
		return
	}
	if !onlyDirective(inner.entry) {
		return
	}
	if len(r.exit.Stmts) != 1 {
		return
	}

	switch directive := inner.directive().(type) {
	case *ir.ForDirective:
		if directive.Sched == ir.ScheduleStatic || directive.Ordered {
			// The static and ordered dispatch protocols need per-thread setup
			// the combined entry points do not provide.
			return
		}
		if !invariantExpr(directive.N1) ||
			!invariantExpr(directive.N2) ||
			!invariantExpr(directive.Step) {
			return
		}
		if directive.Chunk != nil && !invariantExpr(directive.Chunk) {
			return
		}

		pos := directive.StartEnd()
		args := []ir.Expr{
			ir.NewCast(pos, ir.I64, directive.N1),
			ir.NewCast(pos, ir.I64, directive.N2),
			ir.NewCast(pos, ir.I64, directive.Step),
		}
		if directive.Sched != ir.ScheduleRuntime {
			// The runtime entry point reads the chunk size from the
			// environment instead of an argument.
			args = append(args, combinedChunk(directive))
		}
		r.combinedArgs = args
		r.combinedName = gomp.ParallelLoopStartName(directive.Sched)
	case *ir.SectionsDirective:
		r.combinedArgs = []ir.Expr{
			ir.NewIntLit(directive.StartEnd(), int64(directive.Count), ir.U32),
		}
		r.combinedName = gomp.ParallelSectionsStart
	default:
		panic("should never happen")
	}

	inner.combined = true
}

// onlyDirective reports whether the block carries nothing besides its
// directive marker.  Privatization setup in the entry block reads variables
// the team does not exist to compute yet, so it blocks combining.
func onlyDirective(block *ir.Block) bool {
	return len(block.Stmts) == 1
}

// invariantExpr reports whether an expression can be safely evaluated
// before the team starts.
func invariantExpr(expr ir.Expr) bool {
	switch concrete := expr.(type) {
	case *ir.IntLit:
		return true
	case *ir.Cast:
		return invariantExpr(concrete.X)
	default:
		return false
	}
}

// combinedChunk is the chunk argument for a dispatch start call: the
// explicit chunk when given, otherwise 0 for static (one contiguous range
// per thread) and 1 for dynamic and guided.
func combinedChunk(directive *ir.ForDirective) ir.Expr {
	pos := directive.StartEnd()
	if directive.Chunk != nil {
		return ir.NewCast(pos, ir.I64, directive.Chunk)
	}
	if directive.Sched == ir.ScheduleStatic {
		return ir.NewIntLit(pos, 0, ir.I64)
	}
	return ir.NewIntLit(pos, 1, ir.I64)
}
