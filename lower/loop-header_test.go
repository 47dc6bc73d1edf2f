package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pattyshack/towhee/ir"
)

func TestExtractForDataStrictLess(t *testing.T) {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.I32}
	n := &ir.Var{Name: "n", Type: ir.I32}

	data := extractForData(&ir.ForConstruct{
		StartEndPos: pos,
		Iter:        i,
		Init:        ir.NewIntLit(pos, 0, ir.I32),
		CondOp:      ir.Lt,
		Bound:       ir.NewVarRef(pos, n),
		Step:        ir.NewIntLit(pos, 1, ir.I32),
	})

	require.Same(t, i, data.iter)
	require.Equal(t, ir.Lt, data.cond)
	require.Equal(t, ir.ScheduleStatic, data.sched)
	require.Nil(t, data.chunk)
	require.False(t, data.ordered)

	bound, ok := data.n2.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, n, bound.Var)
}

func TestExtractForDataNonStrictBoundAdjustment(t *testing.T) {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.I32}

	// i <= 9 becomes i < 10.
	data := extractForData(&ir.ForConstruct{
		StartEndPos: pos,
		Iter:        i,
		Init:        ir.NewIntLit(pos, 0, ir.I32),
		CondOp:      ir.Le,
		Bound:       ir.NewIntLit(pos, 9, ir.I32),
		Step:        ir.NewIntLit(pos, 1, ir.I32),
	})
	require.Equal(t, ir.Lt, data.cond)
	bound, ok := data.n2.(*ir.IntLit)
	require.True(t, ok)
	require.Equal(t, int64(10), bound.Value)

	// i >= 0 becomes i > -1.
	data = extractForData(&ir.ForConstruct{
		StartEndPos: pos,
		Iter:        i,
		Init:        ir.NewIntLit(pos, 9, ir.I32),
		CondOp:      ir.Ge,
		Bound:       ir.NewIntLit(pos, 0, ir.I32),
		Step:        ir.NewIntLit(pos, 1, ir.I32),
		Decrement:   true,
	})
	require.Equal(t, ir.Gt, data.cond)
	bound, ok = data.n2.(*ir.IntLit)
	require.True(t, ok)
	require.Equal(t, int64(-1), bound.Value)
}

func TestExtractForDataNonLiteralBoundAdjustment(t *testing.T) {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.I32}
	n := &ir.Var{Name: "n", Type: ir.I32}

	data := extractForData(&ir.ForConstruct{
		StartEndPos: pos,
		Iter:        i,
		Init:        ir.NewIntLit(pos, 0, ir.I32),
		CondOp:      ir.Le,
		Bound:       ir.NewVarRef(pos, n),
		Step:        ir.NewIntLit(pos, 1, ir.I32),
	})

	bound, ok := data.n2.(*ir.Binary)
	require.True(t, ok)
	require.Equal(t, ir.Add, bound.Op)
}

func TestExtractForDataDecrementNegatesStep(t *testing.T) {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.I32}

	data := extractForData(&ir.ForConstruct{
		StartEndPos: pos,
		Iter:        i,
		Init:        ir.NewIntLit(pos, 9, ir.I32),
		CondOp:      ir.Gt,
		Bound:       ir.NewIntLit(pos, -1, ir.I32),
		Step:        ir.NewIntLit(pos, 2, ir.I32),
		Decrement:   true,
	})

	step, ok := data.step.(*ir.IntLit)
	require.True(t, ok)
	require.Equal(t, int64(-2), step.Value)
}

func TestExtractForDataSchedule(t *testing.T) {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.I32}
	chunk := ir.NewIntLit(pos, 4, ir.I32)

	data := extractForData(&ir.ForConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.ScheduleClause{
				StartEndPos: pos,
				Kind:        ir.ScheduleDynamic,
				Chunk:       chunk,
			},
			&ir.OrderedClause{StartEndPos: pos},
		},
		Iter:   i,
		Init:   ir.NewIntLit(pos, 0, ir.I32),
		CondOp: ir.Lt,
		Bound:  ir.NewIntLit(pos, 10, ir.I32),
		Step:   ir.NewIntLit(pos, 1, ir.I32),
	})

	require.Equal(t, ir.ScheduleDynamic, data.sched)
	require.Same(t, chunk, data.chunk.(*ir.IntLit))
	require.True(t, data.ordered)
}
