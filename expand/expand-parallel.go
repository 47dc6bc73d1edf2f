package expand

import (
	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
)

// expandParallel outlines a parallel region into its child function and
// replaces it in the parent with the runtime team calls:
//
//	GOMP_parallel_start (child_fn, data, num_threads);
//	child_fn (data);
//	GOMP_parallel_end ();
//
// The master thread takes part in the team by calling the child directly.
// Combined regions call the fused entry point with the worksharing
// arguments appended.
func (e *expander) expandParallel(r *region) {
	entry := r.entry
	exit := r.exit
	directive, ok := entry.LastStmt().(*ir.ParallelDirective)
	if !ok {
		panic("should never happen")
	}
	entry.RemoveLastStmt()

	pos := directive.StartEnd()
	child := directive.ChildFn

	bodyHead := entry.SingleChild()
	exitSucc := exit.SingleChild()
	ir.RemoveEdge(entry, bodyHead)
	ir.RemoveEdge(exit, exitSucc)

	var dataArg ir.Expr
	if directive.Sender != nil {
		dataArg = ir.NewAddrOf(pos, ir.NewVarRef(pos, directive.Sender))
	} else {
		dataArg = &ir.NullLit{StartEndPos: pos}
	}

	// An if clause turns the region serial by requesting a team of one.
	numThreads := ir.Expr(ir.NewIntLit(pos, 0, ir.U32))
	if clause := directive.Clauses.NumThreads(); clause != nil {
		numThreads = ir.NewCast(pos, ir.U32, clause.Count)
	}
	callBlock := entry
	if clause := directive.Clauses.If(); clause != nil {
		nthreads := e.fn.NewTemp("nthreads", ir.U32)
		entry.Append(
			ir.NewAssign(pos, ir.NewVarRef(pos, nthreads), numThreads))

		serialBlock := e.newBlock(pos)
		serialBlock.Append(ir.NewAssign(
			pos,
			ir.NewVarRef(pos, nthreads),
			ir.NewIntLit(pos, 1, ir.U32)))

		callBlock = e.newBlock(pos)
		entry.Append(ir.NewCond(pos, clause.Cond, callBlock.Label))
		setChildren(entry, callBlock, serialBlock)
		setChildren(serialBlock, callBlock)

		numThreads = ir.NewVarRef(pos, nthreads)
	}

	startName := gomp.ParallelStart
	startArgs := []ir.Expr{
		&ir.FuncRef{StartEndPos: pos, Fn: child},
		dataArg,
		numThreads,
	}
	if r.combinedName != "" {
		startName = r.combinedName
		startArgs = append(startArgs, r.combinedArgs...)
	}

	childCall := ir.NewCall(pos, nil, child.Name, dataArg)
	childCall.Fn = child
	callBlock.Append(
		ir.NewCall(pos, nil, startName, startArgs...),
		childCall,
		ir.NewCall(pos, nil, gomp.ParallelEnd))
	ir.AddEdge(callBlock, exitSucc)

	// Child side: the receiver aliased the sender while the region was
	// inline; it now receives the communication record through the
	// parameter.
	if directive.Sender != nil {
		assign, ok := bodyHead.Stmts[0].(*ir.AssignStmt)
		if !ok {
			panic("should never happen")
		}
		assign.RHS = ir.NewVarRef(pos, child.Params[0])
	}

	exit.RemoveLastStmt()
	exit.Append(&ir.ReturnStmt{StartEndPos: pos})

	e.outline(child, bodyHead)
}

// outline moves every block reachable from the region body head out of the
// current function and into the child, along with the locals only the
// moved blocks reference.
func (e *expander) outline(child *ir.FuncDecl, bodyHead *ir.Block) {
	moved := map[*ir.Block]struct{}{}
	pending := []*ir.Block{bodyHead}
	for len(pending) > 0 {
		block := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if _, ok := moved[block]; ok {
			continue
		}
		moved[block] = struct{}{}
		pending = append(pending, block.Children...)
	}

	var parentBlocks []*ir.Block
	var childBlocks []*ir.Block
	for _, block := range e.fn.Blocks {
		if _, ok := moved[block]; ok {
			childBlocks = append(childBlocks, block)
		} else {
			parentBlocks = append(parentBlocks, block)
		}
	}
	if len(childBlocks) == 0 || childBlocks[0] != bodyHead {
		panic("should never happen")
	}
	e.fn.Blocks = parentBlocks
	child.Blocks = childBlocks

	childRefs := map[*ir.Var]struct{}{}
	for _, block := range childBlocks {
		collectVarRefs(block, childRefs)
	}
	parentRefs := map[*ir.Var]struct{}{}
	for _, block := range parentBlocks {
		collectVarRefs(block, parentRefs)
	}

	var kept []*ir.Var
	for _, local := range e.fn.Locals {
		_, inChild := childRefs[local]
		_, inParent := parentRefs[local]
		if inChild && !inParent {
			child.Locals = append(child.Locals, local)
		} else {
			kept = append(kept, local)
		}
	}
	e.fn.Locals = kept
}

func collectVarRefs(block *ir.Block, refs map[*ir.Var]struct{}) {
	for _, stmt := range block.Stmts {
		// Result and load temporaries are plain struct fields, invisible to
		// the expression walk.
		switch concrete := stmt.(type) {
		case *ir.CallStmt:
			if concrete.Result != nil {
				refs[concrete.Result] = struct{}{}
			}
		case *ir.AtomicLoadStmt:
			refs[concrete.Tmp] = struct{}{}
		}
	}
	block.Walk(&varRefCollector{refs: refs})
}

type varRefCollector struct {
	refs map[*ir.Var]struct{}
}

func (collector *varRefCollector) Enter(node ir.Node) {
	if ref, ok := node.(*ir.VarRef); ok {
		collector.refs[ref.Var] = struct{}{}
	}
}

func (collector *varRefCollector) Exit(ir.Node) {}
