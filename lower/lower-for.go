package lower

import (
	"github.com/pattyshack/towhee/ir"
)

// lowerFor flattens a worksharing loop.  The loop header is canonicalized
// (strict comparison, signed step), the bound expressions are rewritten in
// the enclosing context, and the iteration variable is replaced by its
// private clone.  The marker / body / continue / return skeleton carries
// enough structure for the expander to rebuild the loop around the chosen
// schedule.
func (l *lowerer) lowerFor(
	construct *ir.ForConstruct,
	outer *context,
) ir.Stmt {
	ctx := l.contexts[construct]
	pos := construct.StartEnd()

	l.rewriteClauseExprs(construct.Clauses, outer)

	data := extractForData(construct)
	data.n1 = l.rewriteExpr(data.n1, outer)
	data.n2 = l.rewriteExpr(data.n2, outer)
	data.step = l.rewriteExpr(data.step, outer)

	iterClone := ctx.varMap[data.iter]
	if iterClone == nil {
		panic("should never happen")
	}
	// Dispatch arithmetic runs in the signed flavor of the iterator type;
	// decrementing loops need a representable negative step.
	if it, ok := iterClone.Type.(ir.IntType); ok {
		iterClone.Type = ir.Signed(it)
	}

	ilist := l.lowerRecInputClauses(pos, construct.Clauses, ctx)
	body := catchTrap(pos, l.lowerStmts(construct.Body, ctx))
	merges := l.lowerReductionClauses(pos, construct.Clauses, ctx)

	// The thread holding the sequentially last iteration is the one whose
	// current iteration has no successor.
	lastIterCond := ir.Ge
	if data.cond == ir.Gt {
		lastIterCond = ir.Le
	}
	predicate := ir.NewBinary(
		pos,
		lastIterCond,
		ir.NewBinary(
			pos,
			ir.Add,
			ir.NewVarRef(pos, iterClone),
			data.step),
		data.n2)
	commits := l.lowerLastprivateClauses(pos, construct.Clauses, ctx, predicate)

	stmts := append([]ir.Stmt{}, ilist...)
	stmts = append(stmts, &ir.ForDirective{
		StartEndPos: pos,
		Clauses:     construct.Clauses,
		Iter:        iterClone,
		N1:          data.n1,
		N2:          data.n2,
		Step:        data.step,
		Cond:        data.cond,
		Sched:       data.sched,
		Chunk:       data.chunk,
		Ordered:     data.ordered,
	})
	stmts = append(stmts, body...)
	stmts = append(stmts, commits...)
	stmts = append(stmts, &ir.OMPContinueStmt{StartEndPos: pos})
	stmts = append(stmts, merges...)
	stmts = append(stmts, &ir.OMPReturnStmt{
		StartEndPos: pos,
		Kind:        ir.KindFor,
		Nowait:      construct.Clauses.HasNowait(),
	})

	return &ir.BlockStmt{
		StartEndPos: pos,
		Vars:        ctx.blockVars,
		Body:        stmts,
	}
}
