package lower

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/ir"
)

// forData is the canonical worksharing loop descriptor: condition direction
// normalized to strict < or >, bound adjusted by +-1 for the non-strict
// forms, and step negated for decrementing loops.
type forData struct {
	iter *ir.Var

	n1   ir.Expr
	n2   ir.Expr
	step ir.Expr
	cond ir.BinaryOp // ir.Lt or ir.Gt

	sched   ir.ScheduleKind
	chunk   ir.Expr
	ordered bool
}

// extractForData canonicalizes a for construct's loop header.  The front
// end guarantees the shape (scalar integer iterator, v = n1, v {<,>,<=,>=}
// n2, v += step / v -= step); anything else is an internal error.
func extractForData(construct *ir.ForConstruct) forData {
	iterType, ok := construct.Iter.Type.(ir.IntType)
	if !ok {
		panic("should never happen")
	}
	signedType := ir.Signed(iterType)

	pos := construct.StartEnd()
	data := forData{
		iter:  construct.Iter,
		n1:    construct.Init,
		n2:    construct.Bound,
		step:  construct.Step,
		sched: ir.ScheduleStatic,
	}

	switch construct.CondOp {
	case ir.Lt:
		data.cond = ir.Lt
	case ir.Gt:
		data.cond = ir.Gt
	case ir.Le:
		data.cond = ir.Lt
		data.n2 = addConst(pos, construct.Bound, 1, signedType)
	case ir.Ge:
		data.cond = ir.Gt
		data.n2 = addConst(pos, construct.Bound, -1, signedType)
	default:
		panic("should never happen")
	}

	if construct.Decrement {
		data.step = negate(pos, construct.Step)
	}

	sched := construct.Clauses.Schedule()
	if sched != nil {
		data.sched = sched.Kind
		data.chunk = sched.Chunk
		if data.sched == ir.ScheduleRuntime && data.chunk != nil {
			panic("should never happen")
		}
	}
	data.ordered = construct.Clauses.HasOrdered()

	return data
}

func addConst(
	pos parseutil.StartEndPos,
	expr ir.Expr,
	delta int64,
	t ir.IntType,
) ir.Expr {
	if lit, ok := expr.(*ir.IntLit); ok {
		return ir.NewIntLit(pos, lit.Value+delta, lit.IntType)
	}
	op := ir.Add
	if delta < 0 {
		op = ir.Sub
		delta = -delta
	}
	return ir.NewBinary(pos, op, expr, ir.NewIntLit(pos, delta, t))
}

func negate(
	pos parseutil.StartEndPos,
	expr ir.Expr,
) ir.Expr {
	if lit, ok := expr.(*ir.IntLit); ok {
		return ir.NewIntLit(pos, -lit.Value, lit.IntType)
	}
	return ir.NewUnary(pos, ir.Neg, expr)
}
