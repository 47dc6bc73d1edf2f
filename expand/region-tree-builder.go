package expand

import (
	"github.com/pattyshack/towhee/ir"
)

// buildRegionTree recovers the nesting structure of directive markers from
// the CFG.  The walk follows the dominator tree: a directive opens a region
// covering every block it dominates up to the matching region return,
// which closes the region for the sibling blocks that follow.
func buildRegionTree(fn *ir.FuncDecl) []*region {
	if len(fn.Blocks) == 0 {
		return nil
	}

	builder := &regionTreeBuilder{
		domTree: ir.DominatorTree(fn),
	}
	builder.walk(fn.Blocks[0], nil)
	return builder.roots
}

type regionTreeBuilder struct {
	domTree map[*ir.Block][]*ir.Block
	roots   []*region
}

func (builder *regionTreeBuilder) walk(block *ir.Block, parent *region) {
	switch last := block.LastStmt().(type) {
	case *ir.AtomicLoadStmt:
		parent = builder.open(block, ir.KindAtomic, parent)
	case *ir.AtomicStoreStmt:
		if parent == nil || parent.kind != ir.KindAtomic {
			panic("should never happen")
		}
		parent.exit = block
		parent = parent.outer
	case ir.Directive:
		parent = builder.open(block, last.DirectiveKind(), parent)
	case *ir.OMPContinueStmt:
		if parent == nil {
			panic("should never happen")
		}
		parent.cont = block
	case *ir.OMPReturnStmt:
		if parent == nil || parent.kind != last.Kind {
			panic("should never happen")
		}
		parent.exit = block
		parent = parent.outer
	}

	for _, child := range builder.domTree[block] {
		builder.walk(child, parent)
	}
}

func (builder *regionTreeBuilder) open(
	block *ir.Block,
	kind ir.ConstructKind,
	parent *region,
) *region {
	r := &region{
		kind:  kind,
		entry: block,
		outer: parent,
	}
	if parent == nil {
		builder.roots = append(builder.roots, r)
	} else {
		parent.inner = append(parent.inner, r)
	}
	return r
}
