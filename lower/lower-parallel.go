package lower

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/ir"
)

// lowerParallel flattens a parallel construct into a directive marker
// followed by the region body inline.  Expansion later outlines everything
// between the marker and its region return into the child function; until
// then the receiver aliases the sender so that the flattened form stays
// executable in place.
func (l *lowerer) lowerParallel(
	construct *ir.ParallelConstruct,
	outer *context,
) ir.Stmt {
	ctx := l.contexts[construct]
	pos := construct.StartEnd()

	l.rewriteClauseExprs(construct.Clauses, outer)

	ilist := l.lowerRecInputClauses(pos, construct.Clauses, ctx)
	body := catchTrap(pos, l.lowerStmts(construct.Body, ctx))
	merges := l.lowerReductionClauses(pos, construct.Clauses, ctx)

	var stmts []ir.Stmt
	if ctx.record != nil {
		for _, field := range ctx.record.Fields {
			stmts = append(stmts, ir.NewAssign(
				pos,
				ctx.senderRef(pos, field),
				l.senderFieldInit(pos, field, outer)))
		}
	}

	stmts = append(stmts, &ir.ParallelDirective{
		StartEndPos: pos,
		Clauses:     construct.Clauses,
		ChildFn:     ctx.childFn,
		Sender:      ctx.sender,
	})

	if ctx.receiver != nil {
		stmts = append(stmts, ir.NewAssign(
			pos,
			ir.NewVarRef(pos, ctx.receiver),
			ir.NewCast(
				pos,
				ctx.receiver.Type,
				ir.NewAddrOf(pos, ir.NewVarRef(pos, ctx.sender)))))
	}

	stmts = append(stmts, ilist...)
	stmts = append(stmts, body...)
	stmts = append(stmts, merges...)
	stmts = append(stmts, &ir.OMPReturnStmt{
		StartEndPos: pos,
		Kind:        ir.KindParallel,
	})

	// Variables communicated by value use copy-in/copy-out semantics;
	// restore their final values once all threads have joined.  Firstprivate
	// and copyin fields only seed private copies and have nothing to copy
	// back.
	inOnly := map[*ir.Var]struct{}{}
	for _, clause := range construct.Clauses {
		switch concrete := clause.(type) {
		case *ir.FirstprivateClause:
			inOnly[concrete.Var] = struct{}{}
		case *ir.CopyinClause:
			inOnly[concrete.Var] = struct{}{}
		}
	}
	if ctx.record != nil {
		for _, field := range ctx.record.Fields {
			if field.ByPointer {
				continue
			}
			if _, ok := inOnly[field.Origin]; ok {
				continue
			}
			stmts = append(stmts, ir.NewAssign(
				pos,
				outerView(pos, field.Origin, outer),
				ctx.senderRef(pos, field)))
		}
	}

	vars := ctx.blockVars
	if ctx.sender != nil {
		vars = append([]*ir.Var{ctx.sender, ctx.receiver}, vars...)
	}
	return &ir.BlockStmt{
		StartEndPos: pos,
		Vars:        vars,
		Body:        stmts,
	}
}

// senderFieldInit builds the parent-side value stored into a communication
// record field: the address of the shared variable for by-pointer fields,
// the current value for by-value fields.
func (l *lowerer) senderFieldInit(
	pos parseutil.StartEndPos,
	field *ir.Field,
	outer *context,
) ir.Expr {
	view := outerView(pos, field.Origin, outer)
	if field.ByPointer {
		return ir.NewAddrOf(pos, view)
	}
	return view
}

// outerView is the reference to v as seen at the construct's point of use
// in the enclosing context.
func outerView(
	pos parseutil.StartEndPos,
	v *ir.Var,
	outer *context,
) ir.Expr {
	if outer != nil {
		mapped := outer.remapExpr(pos, v)
		if mapped != nil {
			return mapped
		}
	}
	return rawVarRef(pos, v)
}
