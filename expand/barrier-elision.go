package expand

import (
	"github.com/pattyshack/towhee/ir"
)

// removeExitBarriers marks worksharing returns as nowait when only empty
// blocks separate them from the enclosing parallel's return.  The team
// barrier implied by the parallel end already provides the
// synchronization, so the worksharing barrier would only stall the team
// twice.
func removeExitBarriers(r *region) {
	if r.kind != ir.KindParallel || r.exit == nil {
		return
	}
	// Reduction merges and copy-out assignments sit in front of the
	// parallel return; they still need the worksharing results, so the
	// inner barriers must stand.
	if !holdsOnlyReturn(r.exit) {
		return
	}
	for _, inner := range r.inner {
		elideInnerBarriers(inner, r.exit)
	}
}

func elideInnerBarriers(r *region, parallelExit *ir.Block) {
	switch r.kind {
	case ir.KindParallel:
		// A nested parallel has its own team; its inner barriers stand.
		return
	case ir.KindFor, ir.KindSections, ir.KindSingle:
		if r.exit != nil && reachesThroughEmptyBlocks(r.exit, parallelExit) {
			r.returnStmt().Nowait = true
		}
	}
	for _, inner := range r.inner {
		elideInnerBarriers(inner, parallelExit)
	}
}

// holdsOnlyReturn reports whether the block carries nothing but its
// terminating return.
func holdsOnlyReturn(block *ir.Block) bool {
	return len(block.Stmts) == 1
}

// reachesThroughEmptyBlocks reports whether every path from the block's
// successor to the target passes only statement-free blocks.
func reachesThroughEmptyBlocks(from *ir.Block, target *ir.Block) bool {
	visited := map[*ir.Block]struct{}{}
	pending := append([]*ir.Block{}, from.Children...)
	for len(pending) > 0 {
		block := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if block == target {
			continue
		}
		if _, ok := visited[block]; ok {
			continue
		}
		visited[block] = struct{}{}

		if len(block.Stmts) != 0 {
			return false
		}
		pending = append(pending, block.Children...)
	}
	return true
}
