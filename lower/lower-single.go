package lower

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
)

func (l *lowerer) lowerSingle(
	construct *ir.SingleConstruct,
	outer *context,
) ir.Stmt {
	ctx := l.contexts[construct]
	pos := construct.StartEnd()

	ilist := l.lowerRecInputClauses(pos, construct.Clauses, ctx)
	body := catchTrap(pos, l.lowerStmts(construct.Body, ctx))
	copyprivates := construct.Clauses.Copyprivates()

	stmts := []ir.Stmt{
		&ir.SingleDirective{
			StartEndPos: pos,
			Clauses:     construct.Clauses,
		},
	}
	var vars []*ir.Var
	if len(copyprivates) == 0 {
		stmts = append(stmts, l.lowerSingleSimple(pos, ilist, body)...)
	} else {
		var copyStmts []ir.Stmt
		copyStmts, vars = l.lowerSingleCopy(pos, ilist, body, copyprivates, ctx)
		stmts = append(stmts, copyStmts...)
	}

	stmts = append(stmts, &ir.OMPReturnStmt{
		StartEndPos: pos,
		Kind:        ir.KindSingle,
		Nowait: construct.Clauses.HasNowait() &&
			len(copyprivates) == 0,
	})

	return &ir.BlockStmt{
		StartEndPos: pos,
		Vars:        append(vars, ctx.blockVars...),
		Body:        stmts,
	}
}

// lowerSingleSimple guards the body with GOMP_single_start: the call
// returns true for exactly one thread of the team.
func (l *lowerer) lowerSingleSimple(
	pos parseutil.StartEndPos,
	ilist []ir.Stmt,
	body []ir.Stmt,
) []ir.Stmt {
	chosen := l.fn.NewTemp("single", ir.BoolType{})
	skip := l.newLabel("single")

	stmts := []ir.Stmt{
		ir.NewCall(pos, chosen, gomp.SingleStart),
		ir.NewCond(
			pos,
			ir.NewUnary(pos, ir.Not, ir.NewVarRef(pos, chosen)),
			skip),
	}
	stmts = append(stmts, ilist...)
	stmts = append(stmts, body...)
	stmts = append(stmts, ir.NewLabel(pos, skip))
	return stmts
}

// lowerSingleCopy implements copyprivate broadcast.  GOMP_single_copy_start
// returns null for the chosen thread, which runs the body, publishes the
// addresses of its copies through a record, and hands the record to
// GOMP_single_copy_end; every other thread receives that record and copies
// the values out.
func (l *lowerer) lowerSingleCopy(
	pos parseutil.StartEndPos,
	ilist []ir.Stmt,
	body []ir.Stmt,
	copyprivates []*ir.CopyprivateClause,
	ctx *context,
) ([]ir.Stmt, []*ir.Var) {
	record := ir.NewRecordType(".omp_copy_s")
	fields := make([]*ir.Field, len(copyprivates))
	for idx, clause := range copyprivates {
		fields[idx] = &ir.Field{
			Name:      clause.Var.Name,
			Type:      ir.NewPointerType(clause.Var.Type),
			ByPointer: true,
			Origin:    clause.Var,
		}
	}
	record.Fields = fields
	l.target.Layout(record)

	sender := &ir.Var{Name: ".omp_copy_o", Type: record}
	raw := l.fn.NewTemp("cpy", ir.NewPointerType(ir.VoidType{}))
	received := l.fn.NewTemp("cpyrec", ir.NewPointerType(record))

	chosenLabel := l.newLabel("copystart")
	doneLabel := l.newLabel("copydone")

	localRef := func(v *ir.Var) ir.Expr {
		mapped := ctx.remapExpr(pos, v)
		if mapped != nil {
			return mapped
		}
		return ctx.outerRef(pos, v)
	}

	stmts := []ir.Stmt{
		ir.NewCall(pos, raw, gomp.SingleCopyStart),
		ir.NewCond(
			pos,
			ir.NewBinary(
				pos,
				ir.Eq,
				ir.NewVarRef(pos, raw),
				&ir.NullLit{StartEndPos: pos}),
			chosenLabel),
	}

	// Receiving threads.
	stmts = append(stmts, ir.NewAssign(
		pos,
		ir.NewVarRef(pos, received),
		ir.NewCast(pos, received.Type, ir.NewVarRef(pos, raw))))
	for _, field := range fields {
		stmts = append(stmts, ir.NewAssign(
			pos,
			localRef(field.Origin),
			ir.NewDeref(
				pos,
				ir.NewFieldRef(pos, ir.NewVarRef(pos, received), field))))
	}
	stmts = append(stmts, ir.NewGoto(pos, doneLabel))

	// Chosen thread.
	stmts = append(stmts, ir.NewLabel(pos, chosenLabel))
	stmts = append(stmts, ilist...)
	stmts = append(stmts, body...)
	for _, field := range fields {
		stmts = append(stmts, ir.NewAssign(
			pos,
			ir.NewFieldRef(pos, ir.NewVarRef(pos, sender), field),
			ir.NewAddrOf(pos, localRef(field.Origin))))
	}
	stmts = append(stmts, ir.NewCall(
		pos,
		nil,
		gomp.SingleCopyEnd,
		ir.NewAddrOf(pos, ir.NewVarRef(pos, sender))))
	stmts = append(stmts, ir.NewLabel(pos, doneLabel))

	return stmts, []*ir.Var{sender}
}
