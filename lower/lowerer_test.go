package lower

import (
	"testing"

	"github.com/pattyshack/gt/parseutil"
	"github.com/stretchr/testify/require"

	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
	"github.com/pattyshack/towhee/platform"
)

type lowerResult struct {
	emitter *parseutil.Emitter
	mutexes *gomp.MutexTable
	unit    *ir.Unit
}

func lowerFunc(fn *ir.FuncDecl) *lowerResult {
	result := &lowerResult{
		emitter: &parseutil.Emitter{},
		mutexes: gomp.NewMutexTable(),
		unit:    &ir.Unit{Funcs: []*ir.FuncDecl{fn}},
	}
	NewLowerer(
		result.emitter,
		platform.Amd64(),
		result.mutexes,
		result.unit).Process(fn)
	return result
}

func TestLowerParallelSharedByValue(t *testing.T) {
	pos := ir.NewPos("test", 1)
	total := &ir.Var{Name: "total", Type: ir.I32}

	parallel := &ir.ParallelConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.SharedClause{StartEndPos: pos, Var: total},
		},
		Body: []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, total),
				ir.NewBinary(
					pos,
					ir.Add,
					ir.NewVarRef(pos, total),
					ir.NewIntLit(pos, 1, ir.I32))),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{total},
		Body:        []ir.Stmt{parallel, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	require.Len(t, result.unit.Funcs, 2)
	child := result.unit.Funcs[1]
	require.Equal(t, "f_omp_fn.0", child.Name)
	require.Same(t, fn, child.Parent)

	require.Len(t, fn.Body, 2)
	block, ok := fn.Body[0].(*ir.BlockStmt)
	require.True(t, ok)

	require.GreaterOrEqual(t, len(block.Vars), 2)
	sender := block.Vars[0]
	receiver := block.Vars[1]
	require.Equal(t, ".omp_data_o", sender.Name)
	require.Equal(t, ".omp_data_i", receiver.Name)

	require.Len(t, block.Body, 6)

	// Copy-in of the by-value shared variable.
	copyIn, ok := block.Body[0].(*ir.AssignStmt)
	require.True(t, ok)
	senderField, ok := copyIn.LHS.(*ir.FieldRef)
	require.True(t, ok)
	require.Equal(t, "total", senderField.Field.Name)
	src, ok := copyIn.RHS.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, total, src.Var)

	directive, ok := block.Body[1].(*ir.ParallelDirective)
	require.True(t, ok)
	require.Same(t, child, directive.ChildFn)
	require.Same(t, sender, directive.Sender)

	// Receiver aliases the sender until outlining moves the body.
	alias, ok := block.Body[2].(*ir.AssignStmt)
	require.True(t, ok)
	aliasLHS, ok := alias.LHS.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, receiver, aliasLHS.Var)
	_, ok = alias.RHS.(*ir.Cast)
	require.True(t, ok)

	// The body is fenced by the fault wrapper, with its references
	// rewritten through the receiver.
	wrapper, ok := block.Body[3].(*ir.CatchTrapStmt)
	require.True(t, ok)
	require.Len(t, wrapper.Body, 1)
	update, ok := wrapper.Body[0].(*ir.AssignStmt)
	require.True(t, ok)
	lhs, ok := update.LHS.(*ir.FieldRef)
	require.True(t, ok)
	lhsBase, ok := lhs.Base.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, receiver, lhsBase.Var)

	exit, ok := block.Body[4].(*ir.OMPReturnStmt)
	require.True(t, ok)
	require.Equal(t, ir.KindParallel, exit.Kind)
	require.False(t, exit.Nowait)

	// Copy-out restores the final value after the join.
	copyOut, ok := block.Body[5].(*ir.AssignStmt)
	require.True(t, ok)
	dst, ok := copyOut.LHS.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, total, dst.Var)
	outSrc, ok := copyOut.RHS.(*ir.FieldRef)
	require.True(t, ok)
	require.Equal(t, "total", outSrc.Field.Name)
}

func TestLowerParallelFirstprivateHasNoCopyOut(t *testing.T) {
	pos := ir.NewPos("test", 1)
	seed := &ir.Var{Name: "seed", Type: ir.I64}

	parallel := &ir.ParallelConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.FirstprivateClause{StartEndPos: pos, Var: seed},
		},
		Body: []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, seed),
				ir.NewIntLit(pos, 7, ir.I64)),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{seed},
		Body:        []ir.Stmt{parallel, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block := fn.Body[0].(*ir.BlockStmt)
	exitIdx := -1
	for idx, stmt := range block.Body {
		if _, ok := stmt.(*ir.OMPReturnStmt); ok {
			exitIdx = idx
		}
	}
	require.NotEqual(t, -1, exitIdx)
	require.Equal(t, exitIdx, len(block.Body)-1)
}

func TestLowerParallelReduction(t *testing.T) {
	pos := ir.NewPos("test", 1)
	sum := &ir.Var{Name: "sum", Type: ir.F64}

	parallel := &ir.ParallelConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.ReductionClause{StartEndPos: pos, Op: ir.Add, Var: sum},
		},
		Body: []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, sum),
				ir.NewBinary(
					pos,
					ir.Add,
					ir.NewVarRef(pos, sum),
					&ir.FloatLit{StartEndPos: pos, Value: 1, FloatType: ir.F64})),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{sum},
		Body:        []ir.Stmt{parallel, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block := fn.Body[0].(*ir.BlockStmt)

	var clone *ir.Var
	var init *ir.AssignStmt
	var load *ir.AtomicLoadStmt
	var store *ir.AtomicStoreStmt
	loadIdx := -1
	exitIdx := -1
	for idx, stmt := range block.Body {
		switch concrete := stmt.(type) {
		case *ir.AssignStmt:
			lhs, ok := concrete.LHS.(*ir.VarRef)
			if ok && lhs.Var.Name == "sum" && lhs.Var != sum && init == nil {
				init = concrete
				clone = lhs.Var
			}
		case *ir.AtomicLoadStmt:
			load = concrete
			loadIdx = idx
		case *ir.AtomicStoreStmt:
			store = concrete
		case *ir.OMPReturnStmt:
			exitIdx = idx
		}
	}

	// The private copy starts at the neutral element.
	require.NotNil(t, init)
	zero, ok := init.RHS.(*ir.FloatLit)
	require.True(t, ok)
	require.Equal(t, float64(0), zero.Value)

	// A single reduction merges with an atomic load / store pair, placed
	// before the region exit.
	require.NotNil(t, load)
	require.NotNil(t, store)
	require.Less(t, loadIdx, exitIdx)

	merge, ok := store.Value.(*ir.Binary)
	require.True(t, ok)
	require.Equal(t, ir.Add, merge.Op)
	mergeLHS, ok := merge.X.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, load.Tmp, mergeLHS.Var)
	mergeRHS, ok := merge.Y.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, clone, mergeRHS.Var)
}

func TestLowerParallelMultipleReductionsShareBracket(t *testing.T) {
	pos := ir.NewPos("test", 1)
	sum := &ir.Var{Name: "sum", Type: ir.I64}
	product := &ir.Var{Name: "product", Type: ir.I64}

	parallel := &ir.ParallelConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.ReductionClause{StartEndPos: pos, Op: ir.Add, Var: sum},
			&ir.ReductionClause{StartEndPos: pos, Op: ir.Mul, Var: product},
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{sum, product},
		Body:        []ir.Stmt{parallel, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block := fn.Body[0].(*ir.BlockStmt)
	var callNames []string
	merges := 0
	bracketed := false
	for _, stmt := range block.Body {
		switch concrete := stmt.(type) {
		case *ir.CallStmt:
			callNames = append(callNames, concrete.Name)
		case *ir.AssignStmt:
			rhs, ok := concrete.RHS.(*ir.Binary)
			if ok && (rhs.Op == ir.Add || rhs.Op == ir.Mul) {
				merges++
				// Merges run between the bracket calls.
				require.Equal(t, gomp.AtomicStart, callNames[len(callNames)-1])
				bracketed = true
			}
		case *ir.AtomicLoadStmt:
			t.Fatal("multiple reductions must not use atomic statements")
		}
	}
	require.True(t, bracketed)
	require.Equal(t, 2, merges)
	require.Contains(t, callNames, gomp.AtomicStart)
	require.Contains(t, callNames, gomp.AtomicEnd)
}

func TestLowerWorksharingLoop(t *testing.T) {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.I32}
	n := &ir.Var{Name: "n", Type: ir.I32}
	chunk := ir.NewIntLit(pos, 4, ir.I32)

	loop := &ir.ForConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.ScheduleClause{
				StartEndPos: pos,
				Kind:        ir.ScheduleDynamic,
				Chunk:       chunk,
			},
			&ir.NowaitClause{StartEndPos: pos},
		},
		Iter:   i,
		Init:   ir.NewIntLit(pos, 0, ir.I32),
		CondOp: ir.Lt,
		Bound:  ir.NewVarRef(pos, n),
		Step:   ir.NewIntLit(pos, 1, ir.I32),
	}
	parallel := &ir.ParallelConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.SharedClause{StartEndPos: pos, Var: n},
		},
		Body: []ir.Stmt{loop},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{i, n},
		Body:        []ir.Stmt{parallel, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	outerBlock := fn.Body[0].(*ir.BlockStmt)
	var wrapper *ir.CatchTrapStmt
	for _, stmt := range outerBlock.Body {
		if concrete, ok := stmt.(*ir.CatchTrapStmt); ok {
			wrapper = concrete
		}
	}
	require.NotNil(t, wrapper)

	var loopBlock *ir.BlockStmt
	for _, stmt := range wrapper.Body {
		if block, ok := stmt.(*ir.BlockStmt); ok {
			loopBlock = block
		}
	}
	require.NotNil(t, loopBlock)

	directive, ok := loopBlock.Body[0].(*ir.ForDirective)
	require.True(t, ok)
	require.NotSame(t, i, directive.Iter)
	require.Equal(t, "i", directive.Iter.Name)
	require.Equal(t, ir.Lt, directive.Cond)
	require.Equal(t, ir.ScheduleDynamic, directive.Sched)
	require.Same(t, chunk, directive.Chunk)
	require.False(t, directive.Ordered)

	// The bound was rewritten through the enclosing parallel's record.
	_, ok = directive.N2.(*ir.FieldRef)
	require.True(t, ok)

	cont := -1
	exitIdx := -1
	for idx, stmt := range loopBlock.Body {
		switch concrete := stmt.(type) {
		case *ir.OMPContinueStmt:
			cont = idx
		case *ir.OMPReturnStmt:
			exitIdx = idx
			require.Equal(t, ir.KindFor, concrete.Kind)
			require.True(t, concrete.Nowait)
		}
	}
	require.NotEqual(t, -1, cont)
	require.Equal(t, len(loopBlock.Body)-1, exitIdx)
	require.Less(t, cont, exitIdx)
}

func TestLowerLoopLastprivatePredicate(t *testing.T) {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.I32}
	last := &ir.Var{Name: "last", Type: ir.I32}

	loop := &ir.ForConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.LastprivateClause{StartEndPos: pos, Var: last},
		},
		Iter:   i,
		Init:   ir.NewIntLit(pos, 0, ir.I32),
		CondOp: ir.Lt,
		Bound:  ir.NewIntLit(pos, 10, ir.I32),
		Step:   ir.NewIntLit(pos, 1, ir.I32),
		Body: []ir.Stmt{
			ir.NewAssign(pos, ir.NewVarRef(pos, last), ir.NewVarRef(pos, i)),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{i, last},
		Body:        []ir.Stmt{loop, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block := fn.Body[0].(*ir.BlockStmt)

	// The commit is guarded by the inverted last-iteration test: skip
	// unless iter + step reaches the bound.
	var guard *ir.CondStmt
	commitIdx := -1
	guardIdx := -1
	for idx, stmt := range block.Body {
		switch concrete := stmt.(type) {
		case *ir.CondStmt:
			guard = concrete
			guardIdx = idx
		case *ir.AssignStmt:
			lhs, ok := concrete.LHS.(*ir.VarRef)
			if ok && lhs.Var == last {
				commitIdx = idx
			}
		}
	}
	require.NotNil(t, guard)
	require.NotEqual(t, -1, commitIdx)
	require.Less(t, guardIdx, commitIdx)

	not, ok := guard.Cond.(*ir.Unary)
	require.True(t, ok)
	require.Equal(t, ir.Not, not.Op)
	test, ok := not.X.(*ir.Binary)
	require.True(t, ok)
	require.Equal(t, ir.Ge, test.Op)
	next, ok := test.X.(*ir.Binary)
	require.True(t, ok)
	require.Equal(t, ir.Add, next.Op)
}

func TestLowerMaster(t *testing.T) {
	pos := ir.NewPos("test", 1)
	x := &ir.Var{Name: "x", Type: ir.I32}

	master := &ir.MasterConstruct{
		StartEndPos: pos,
		Body: []ir.Stmt{
			ir.NewAssign(pos, ir.NewVarRef(pos, x), ir.NewIntLit(pos, 1, ir.I32)),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{x},
		Body:        []ir.Stmt{master, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	_, ok := fn.Body[0].(*ir.MasterDirective)
	require.True(t, ok)

	tidCall, ok := fn.Body[1].(*ir.CallStmt)
	require.True(t, ok)
	require.Equal(t, gomp.GetThreadNum, tidCall.Name)
	require.NotNil(t, tidCall.Result)

	guard, ok := fn.Body[2].(*ir.CondStmt)
	require.True(t, ok)
	test, ok := guard.Cond.(*ir.Binary)
	require.True(t, ok)
	require.Equal(t, ir.Ne, test.Op)

	skip, ok := fn.Body[4].(*ir.LabelStmt)
	require.True(t, ok)
	require.Equal(t, guard.Label, skip.Name)

	exit, ok := fn.Body[5].(*ir.OMPReturnStmt)
	require.True(t, ok)
	require.Equal(t, ir.KindMaster, exit.Kind)
	require.True(t, exit.Nowait)
}

func TestLowerCriticalNamed(t *testing.T) {
	pos := ir.NewPos("test", 1)
	x := &ir.Var{Name: "x", Type: ir.I32}

	critical := &ir.CriticalConstruct{
		StartEndPos: pos,
		Name:        "update",
		Body: []ir.Stmt{
			ir.NewAssign(pos, ir.NewVarRef(pos, x), ir.NewIntLit(pos, 1, ir.I32)),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{x},
		Body:        []ir.Stmt{critical, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())
	require.Equal(t, 1, result.mutexes.Len())
	mutex := result.mutexes.Get("update")

	directive, ok := fn.Body[0].(*ir.CriticalDirective)
	require.True(t, ok)
	require.Equal(t, "update", directive.Name)

	start, ok := fn.Body[1].(*ir.CallStmt)
	require.True(t, ok)
	require.Equal(t, gomp.CriticalNameStart, start.Name)
	require.Len(t, start.Args, 1)
	addr, ok := start.Args[0].(*ir.AddrOf)
	require.True(t, ok)
	ref, ok := addr.X.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, mutex, ref.Var)

	end, ok := fn.Body[3].(*ir.CallStmt)
	require.True(t, ok)
	require.Equal(t, gomp.CriticalNameEnd, end.Name)

	exit, ok := fn.Body[4].(*ir.OMPReturnStmt)
	require.True(t, ok)
	require.Equal(t, ir.KindCritical, exit.Kind)
	require.True(t, exit.Nowait)
}

func TestLowerCriticalUnnamed(t *testing.T) {
	pos := ir.NewPos("test", 1)

	critical := &ir.CriticalConstruct{StartEndPos: pos}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Body:        []ir.Stmt{critical, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())
	require.Equal(t, 0, result.mutexes.Len())

	start, ok := fn.Body[1].(*ir.CallStmt)
	require.True(t, ok)
	require.Equal(t, gomp.CriticalStart, start.Name)
	require.Empty(t, start.Args)
}

func TestLowerSingleSimple(t *testing.T) {
	pos := ir.NewPos("test", 1)
	x := &ir.Var{Name: "x", Type: ir.I32}

	single := &ir.SingleConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.NowaitClause{StartEndPos: pos},
		},
		Body: []ir.Stmt{
			ir.NewAssign(pos, ir.NewVarRef(pos, x), ir.NewIntLit(pos, 1, ir.I32)),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{x},
		Body:        []ir.Stmt{single, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block, ok := fn.Body[0].(*ir.BlockStmt)
	require.True(t, ok)

	_, ok = block.Body[0].(*ir.SingleDirective)
	require.True(t, ok)

	call, ok := block.Body[1].(*ir.CallStmt)
	require.True(t, ok)
	require.Equal(t, gomp.SingleStart, call.Name)
	require.NotNil(t, call.Result)

	guard, ok := block.Body[2].(*ir.CondStmt)
	require.True(t, ok)
	not, ok := guard.Cond.(*ir.Unary)
	require.True(t, ok)
	require.Equal(t, ir.Not, not.Op)

	exit, ok := block.Body[len(block.Body)-1].(*ir.OMPReturnStmt)
	require.True(t, ok)
	require.Equal(t, ir.KindSingle, exit.Kind)
	require.True(t, exit.Nowait)
}

func TestLowerSingleCopyprivate(t *testing.T) {
	pos := ir.NewPos("test", 1)
	x := &ir.Var{Name: "x", Type: ir.I32}

	single := &ir.SingleConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.CopyprivateClause{StartEndPos: pos, Var: x},
			&ir.NowaitClause{StartEndPos: pos},
		},
		Body: []ir.Stmt{
			ir.NewAssign(pos, ir.NewVarRef(pos, x), ir.NewIntLit(pos, 1, ir.I32)),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{x},
		Body:        []ir.Stmt{single, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block, ok := fn.Body[0].(*ir.BlockStmt)
	require.True(t, ok)

	var callNames []string
	var copyEnd *ir.CallStmt
	for _, stmt := range block.Body {
		if call, ok := stmt.(*ir.CallStmt); ok {
			callNames = append(callNames, call.Name)
			if call.Name == gomp.SingleCopyEnd {
				copyEnd = call
			}
		}
	}
	require.Contains(t, callNames, gomp.SingleCopyStart)
	require.NotNil(t, copyEnd)
	require.Len(t, copyEnd.Args, 1)

	// Receiving threads copy out of the broadcast record.
	foundReceive := false
	for _, stmt := range block.Body {
		assign, ok := stmt.(*ir.AssignStmt)
		if !ok {
			continue
		}
		lhs, ok := assign.LHS.(*ir.VarRef)
		if !ok || lhs.Var != x {
			continue
		}
		if _, ok := assign.RHS.(*ir.Deref); ok {
			foundReceive = true
		}
	}
	require.True(t, foundReceive)

	// copyprivate forces the barrier even with nowait.
	exit, ok := block.Body[len(block.Body)-1].(*ir.OMPReturnStmt)
	require.True(t, ok)
	require.False(t, exit.Nowait)
}

func TestLowerOrdered(t *testing.T) {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.I32}

	loop := &ir.ForConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.OrderedClause{StartEndPos: pos},
		},
		Iter:   i,
		Init:   ir.NewIntLit(pos, 0, ir.I32),
		CondOp: ir.Lt,
		Bound:  ir.NewIntLit(pos, 10, ir.I32),
		Step:   ir.NewIntLit(pos, 1, ir.I32),
		Body: []ir.Stmt{
			&ir.OrderedConstruct{StartEndPos: pos},
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{i},
		Body:        []ir.Stmt{loop, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block := fn.Body[0].(*ir.BlockStmt)
	directive, ok := block.Body[0].(*ir.ForDirective)
	require.True(t, ok)
	require.True(t, directive.Ordered)

	var wrapper *ir.CatchTrapStmt
	for _, stmt := range block.Body {
		if concrete, ok := stmt.(*ir.CatchTrapStmt); ok {
			wrapper = concrete
		}
	}
	require.NotNil(t, wrapper)

	var callNames []string
	for _, stmt := range wrapper.Body {
		if call, ok := stmt.(*ir.CallStmt); ok {
			callNames = append(callNames, call.Name)
		}
	}
	require.Equal(
		t,
		[]string{gomp.OrderedStart, gomp.OrderedEnd},
		callNames)
}

func TestLowerAtomicSubstitutesLoadedValue(t *testing.T) {
	pos := ir.NewPos("test", 1)
	c := &ir.Var{Name: "c", Type: ir.I32}

	atomic := &ir.AtomicConstruct{
		StartEndPos: pos,
		X:           ir.NewVarRef(pos, c),
		RHS: ir.NewBinary(
			pos,
			ir.Add,
			ir.NewVarRef(pos, c),
			ir.NewIntLit(pos, 1, ir.I32)),
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{c},
		Body:        []ir.Stmt{atomic, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	load, ok := fn.Body[0].(*ir.AtomicLoadStmt)
	require.True(t, ok)
	require.Equal(t, ir.I32, load.Tmp.Type)
	addr, ok := load.Addr.(*ir.AddrOf)
	require.True(t, ok)
	target, ok := addr.X.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, c, target.Var)

	store, ok := fn.Body[1].(*ir.AtomicStoreStmt)
	require.True(t, ok)
	value, ok := store.Value.(*ir.Binary)
	require.True(t, ok)
	loaded, ok := value.X.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, load.Tmp, loaded.Var)
}

func TestLowerCopyinBarrier(t *testing.T) {
	pos := ir.NewPos("test", 1)
	tp := &ir.Var{Name: "state", Type: ir.I64, ThreadPrivate: true}

	parallel := &ir.ParallelConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.CopyinClause{StartEndPos: pos, Var: tp},
		},
		Body: []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, tp),
				ir.NewBinary(
					pos,
					ir.Add,
					ir.NewVarRef(pos, tp),
					ir.NewIntLit(pos, 1, ir.I64))),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Body:        []ir.Stmt{parallel, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block := fn.Body[0].(*ir.BlockStmt)

	var callNames []string
	for _, stmt := range block.Body {
		if call, ok := stmt.(*ir.CallStmt); ok {
			callNames = append(callNames, call.Name)
		}
	}
	require.Equal(t, []string{gomp.GetThreadNum, gomp.Barrier}, callNames)

	// The non-master path copies the master's value into the threadprivate
	// instance.
	foundCopy := false
	for _, stmt := range block.Body {
		assign, ok := stmt.(*ir.AssignStmt)
		if !ok {
			continue
		}
		lhs, ok := assign.LHS.(*ir.VarRef)
		if !ok || lhs.Var != tp {
			continue
		}
		if _, ok := assign.RHS.(*ir.FieldRef); ok {
			foundCopy = true
		}
	}
	require.True(t, foundCopy)

	// Copyin is in-only; nothing is copied back after the join.
	_, ok := block.Body[len(block.Body)-1].(*ir.OMPReturnStmt)
	require.True(t, ok)
}

func TestLowerLoopFirstprivateLastprivatePair(t *testing.T) {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.I32}
	x := &ir.Var{Name: "x", Type: ir.I32}

	loop := &ir.ForConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.FirstprivateClause{StartEndPos: pos, Var: x},
			&ir.LastprivateClause{StartEndPos: pos, Var: x},
		},
		Iter:   i,
		Init:   ir.NewIntLit(pos, 0, ir.I32),
		CondOp: ir.Lt,
		Bound:  ir.NewIntLit(pos, 10, ir.I32),
		Step:   ir.NewIntLit(pos, 1, ir.I32),
		Body: []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, x),
				ir.NewBinary(
					pos,
					ir.Add,
					ir.NewVarRef(pos, x),
					ir.NewVarRef(pos, i))),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{i, x},
		Body:        []ir.Stmt{loop, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block := fn.Body[0].(*ir.BlockStmt)

	// Both clauses share one clone: initialized by the copy-in, committed
	// by the sequentially-last thread.
	copyIn, ok := block.Body[0].(*ir.AssignStmt)
	require.True(t, ok)
	cloneRef, ok := copyIn.LHS.(*ir.VarRef)
	require.True(t, ok)
	clone := cloneRef.Var
	require.Equal(t, "x", clone.Name)
	require.NotSame(t, x, clone)
	src, ok := copyIn.RHS.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, x, src.Var)

	// The copy-in must complete on every thread before any thread can
	// commit the final value into the original.
	fence, ok := block.Body[1].(*ir.CallStmt)
	require.True(t, ok)
	require.Equal(t, gomp.Barrier, fence.Name)

	_, ok = block.Body[2].(*ir.ForDirective)
	require.True(t, ok)

	var commit *ir.AssignStmt
	for _, stmt := range block.Body {
		assign, ok := stmt.(*ir.AssignStmt)
		if !ok || assign == copyIn {
			continue
		}
		lhs, ok := assign.LHS.(*ir.VarRef)
		if ok && lhs.Var == x {
			commit = assign
		}
	}
	require.NotNil(t, commit)
	commitSrc, ok := commit.RHS.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, clone, commitSrc.Var)
}

func TestLowerCallResultRedirected(t *testing.T) {
	pos := ir.NewPos("test", 1)
	x := &ir.Var{Name: "x", Type: ir.I32}
	y := &ir.Var{Name: "y", Type: ir.I32}

	parallel := &ir.ParallelConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.PrivateClause{StartEndPos: pos, Var: x},
		},
		Body: []ir.Stmt{
			ir.NewCall(pos, x, "compute"),
			ir.NewCall(pos, y, "observe"),
		},
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{x, y},
		Body:        []ir.Stmt{parallel, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block := fn.Body[0].(*ir.BlockStmt)
	var wrapper *ir.CatchTrapStmt
	for _, stmt := range block.Body {
		if concrete, ok := stmt.(*ir.CatchTrapStmt); ok {
			wrapper = concrete
		}
	}
	require.NotNil(t, wrapper)
	require.Len(t, wrapper.Body, 3)

	// A private destination swaps in the clone.
	compute, ok := wrapper.Body[0].(*ir.CallStmt)
	require.True(t, ok)
	require.Equal(t, "x", compute.Result.Name)
	require.NotSame(t, x, compute.Result)

	// An implicitly shared destination lives in the communication record;
	// the result goes through a temporary and an assignment.
	observe, ok := wrapper.Body[1].(*ir.CallStmt)
	require.True(t, ok)
	require.NotSame(t, y, observe.Result)

	spill, ok := wrapper.Body[2].(*ir.AssignStmt)
	require.True(t, ok)
	field, ok := spill.LHS.(*ir.FieldRef)
	require.True(t, ok)
	require.Equal(t, "y", field.Field.Name)
	spillSrc, ok := spill.RHS.(*ir.VarRef)
	require.True(t, ok)
	require.Same(t, observe.Result, spillSrc.Var)
}

func TestLowerDecrementingUnsignedLoop(t *testing.T) {
	pos := ir.NewPos("test", 1)
	i := &ir.Var{Name: "i", Type: ir.U32}

	loop := &ir.ForConstruct{
		StartEndPos: pos,
		Iter:        i,
		Init:        ir.NewIntLit(pos, 100, ir.U32),
		CondOp:      ir.Gt,
		Bound:       ir.NewIntLit(pos, 0, ir.U32),
		Step:        ir.NewIntLit(pos, 1, ir.U32),
		Decrement:   true,
	}
	fn := &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "f",
		ReturnType:  ir.VoidType{},
		Locals:      []*ir.Var{i},
		Body:        []ir.Stmt{loop, &ir.ReturnStmt{StartEndPos: pos}},
	}

	result := lowerFunc(fn)
	require.False(t, result.emitter.HasErrors())

	block := fn.Body[0].(*ir.BlockStmt)
	directive, ok := block.Body[0].(*ir.ForDirective)
	require.True(t, ok)

	// Dispatch arithmetic runs in the signed flavor of the iterator type;
	// the negated step must be representable.
	require.Equal(t, ir.I32, directive.Iter.Type)
	step, ok := directive.Step.(*ir.IntLit)
	require.True(t, ok)
	require.Equal(t, int64(-1), step.Value)
}
