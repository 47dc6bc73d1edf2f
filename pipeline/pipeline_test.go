package pipeline

import (
	"strings"
	"testing"

	"github.com/pattyshack/gt/parseutil"
	"github.com/stretchr/testify/require"

	"github.com/pattyshack/towhee/ir"
	"github.com/pattyshack/towhee/platform"
)

func unitCallNames(unit *ir.Unit) []string {
	var names []string
	for _, fn := range unit.Funcs {
		for _, block := range fn.Blocks {
			for _, stmt := range block.Stmts {
				if call, ok := stmt.(*ir.CallStmt); ok {
					names = append(names, call.Name)
				}
			}
		}
	}
	return names
}

func plainFunc(name string) *ir.FuncDecl {
	pos := ir.NewPos("test", 1)
	x := &ir.Var{Name: "x", Type: ir.I32}
	return &ir.FuncDecl{
		StartEndPos: pos,
		Name:        name,
		ReturnType:  ir.I32,
		Locals:      []*ir.Var{x},
		Body: []ir.Stmt{
			ir.NewAssign(pos, ir.NewVarRef(pos, x), ir.NewIntLit(pos, 41, ir.I32)),
			&ir.ReturnStmt{
				StartEndPos: pos,
				Value: ir.NewBinary(
					pos,
					ir.Add,
					ir.NewVarRef(pos, x),
					ir.NewIntLit(pos, 1, ir.I32)),
			},
		},
	}
}

func parallelSumFunc(name string) *ir.FuncDecl {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.I32}
	n := &ir.Var{Name: "n", Type: ir.I32}
	sum := &ir.Var{Name: "sum", Type: ir.I64}

	loop := &ir.ForConstruct{
		StartEndPos: pos,
		Iter:        i,
		Init:        ir.NewIntLit(pos, 0, ir.I32),
		CondOp:      ir.Lt,
		Bound:       ir.NewVarRef(pos, n),
		Step:        ir.NewIntLit(pos, 1, ir.I32),
		Body: []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, sum),
				ir.NewBinary(
					pos,
					ir.Add,
					ir.NewVarRef(pos, sum),
					ir.NewCast(pos, ir.I64, ir.NewVarRef(pos, i)))),
		},
	}
	parallel := &ir.ParallelConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.ReductionClause{StartEndPos: pos, Op: ir.Add, Var: sum},
			&ir.SharedClause{StartEndPos: pos, Var: n},
		},
		Body: []ir.Stmt{loop},
	}
	return &ir.FuncDecl{
		StartEndPos: pos,
		Name:        name,
		Params:      []*ir.Var{n},
		ReturnType:  ir.I64,
		Locals:      []*ir.Var{i, sum},
		Body: []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, sum),
				ir.NewIntLit(pos, 0, ir.I64)),
			parallel,
			&ir.ReturnStmt{StartEndPos: pos, Value: ir.NewVarRef(pos, sum)},
		},
	}
}

func TestLowerUnit(t *testing.T) {
	annotated := parallelSumFunc("sum_to")
	plain := plainFunc("plain")
	unit := &ir.Unit{Funcs: []*ir.FuncDecl{annotated, plain}}

	emitter := &parseutil.Emitter{}
	Lower(unit, platform.Amd64(), emitter)
	require.False(t, emitter.HasErrors())

	// The outlined parallel body joined the unit.
	require.Len(t, unit.Funcs, 3)
	child := unit.Funcs[2]
	require.Equal(t, "sum_to_omp_fn.0", child.Name)
	require.True(t, child.Internal)
	require.NotEmpty(t, child.Blocks)

	names := unitCallNames(unit)
	require.Contains(t, names, "GOMP_parallel_start")
	require.Contains(t, names, "GOMP_parallel_end")

	// A directive-free function passes through untouched apart from CFG
	// construction.
	require.NotEmpty(t, plain.Blocks)
	for _, name := range unitCallNames(&ir.Unit{Funcs: []*ir.FuncDecl{plain}}) {
		require.False(t, strings.HasPrefix(name, "GOMP_"))
	}
}

func TestLowerUnitRegistersCriticalMutexes(t *testing.T) {
	pos := ir.NewPos("test", 1)
	x := &ir.Var{Name: "x", Type: ir.I32}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{x},
		Body: []ir.Stmt{
			&ir.CriticalConstruct{
				StartEndPos: pos,
				Name:        "update",
				Body: []ir.Stmt{
					ir.NewAssign(
						pos,
						ir.NewVarRef(pos, x),
						ir.NewIntLit(pos, 1, ir.I32)),
				},
			},
			&ir.ReturnStmt{StartEndPos: pos},
		},
	}
	unit := &ir.Unit{Funcs: []*ir.FuncDecl{fn}}

	emitter := &parseutil.Emitter{}
	Lower(unit, platform.Amd64(), emitter)
	require.False(t, emitter.HasErrors())

	require.Len(t, unit.Globals, 1)
	require.Equal(t, ".gomp_critical_user_update", unit.Globals[0].Name)
	require.Equal(t, ir.LinkageStatic, unit.Globals[0].Linkage)
}

func TestLowerUnitAggregatesDiagnostics(t *testing.T) {
	pos := ir.NewPos("test", 1)

	// A worksharing loop nested in another worksharing loop, plus a branch
	// out of a structured block in a second function.
	makeLoop := func(iter *ir.Var, body []ir.Stmt) *ir.ForConstruct {
		return &ir.ForConstruct{
			StartEndPos: pos,
			Iter:        iter,
			Init:        ir.NewIntLit(pos, 0, ir.I32),
			CondOp:      ir.Lt,
			Bound:       ir.NewIntLit(pos, 10, ir.I32),
			Step:        ir.NewIntLit(pos, 1, ir.I32),
			Body:        body,
		}
	}
	i := &ir.Var{Name: "i", Type: ir.I32}
	j := &ir.Var{Name: "j", Type: ir.I32}
	badNesting := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "bad_nesting",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{i, j},
		Body: []ir.Stmt{
			makeLoop(i, []ir.Stmt{makeLoop(j, nil)}),
			&ir.ReturnStmt{StartEndPos: pos},
		},
	}

	badBranch := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "bad_branch",
		ReturnType:  ir.VoidType{},
		Body: []ir.Stmt{
			&ir.ParallelConstruct{
				StartEndPos: pos,
				Body: []ir.Stmt{
					ir.NewGoto(pos, "out"),
				},
			},
			ir.NewLabel(pos, "out"),
			&ir.ReturnStmt{StartEndPos: pos},
		},
	}

	unit := &ir.Unit{Funcs: []*ir.FuncDecl{badNesting, badBranch}}
	emitter := &parseutil.Emitter{}
	Lower(unit, platform.Amd64(), emitter)

	require.True(t, emitter.HasErrors())
	combined := ""
	for _, err := range emitter.Errors() {
		combined += err.Error() + "\n"
	}
	require.Contains(t, combined, "may not be closely nested")
	require.Contains(t, combined, "invalid exit from structured block")

	// Functions with errors are not transformed.
	require.Len(t, unit.Funcs, 2)
	require.Empty(t, badBranch.Blocks)
}
