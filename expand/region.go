// Package expand implements the post-CFG phase: it rebuilds the region
// tree from directive markers, decides which worksharing regions combine
// with their enclosing parallel, elides redundant exit barriers, outlines
// parallel regions into their child functions and replaces every marker
// with runtime dispatch code.
package expand

import (
	"github.com/pattyshack/towhee/ir"
)

type Pass[T any] interface {
	Process(T)
}

// region is one directive's extent in the CFG: the block ending with the
// directive marker, the block ending with the matching region return, and
// for loops and sections the continue block.
type region struct {
	kind ir.ConstructKind

	entry *ir.Block
	exit  *ir.Block
	cont  *ir.Block

	outer *region
	inner []*region

	// Worksharing region fused into its enclosing parallel; the parallel
	// start call performs the initial work dispatch.
	combined bool

	// Captured from the inner worksharing directive when this parallel
	// region combines with it.
	combinedArgs []ir.Expr
	combinedName string
}

func (r *region) directive() ir.Directive {
	directive, ok := r.entry.LastStmt().(ir.Directive)
	if !ok {
		panic("should never happen")
	}
	return directive
}

func (r *region) returnStmt() *ir.OMPReturnStmt {
	ret, ok := r.exit.LastStmt().(*ir.OMPReturnStmt)
	if !ok {
		panic("should never happen")
	}
	return ret
}
