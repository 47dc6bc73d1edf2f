package expand

import (
	"strconv"
	"strings"

	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/ir"
	"github.com/pattyshack/towhee/platform"
)

// NewExpander returns the post-CFG expansion pass.  It must run on the
// functions the front end provided; outlined child functions receive their
// blocks here and need no further expansion.
func NewExpander(
	emitter *parseutil.Emitter,
	target platform.Platform,
) Pass[*ir.FuncDecl] {
	return &expander{
		Emitter: emitter,
		target:  target,
	}
}

type expander struct {
	*parseutil.Emitter

	target platform.Platform

	fn      *ir.FuncDecl
	labelId int
}

func (e *expander) Process(fn *ir.FuncDecl) {
	roots := buildRegionTree(fn)
	if len(roots) == 0 {
		return
	}

	e.fn = fn
	e.labelId = nextBlockId(fn)
	e.expandRegions(roots)
}

// expandRegions expands a sibling list inner-first, matching the order the
// markers impose: a region's body must be final before the region itself is
// rewritten, and a parallel must decide on combining and barrier elision
// before its inner regions dissolve their markers.
func (e *expander) expandRegions(siblings []*region) {
	for _, r := range siblings {
		if r.kind == ir.KindParallel {
			determineParallelType(r)
			removeExitBarriers(r)
		}
		e.expandRegions(r.inner)
		e.expandRegion(r)
	}
}

func (e *expander) expandRegion(r *region) {
	switch r.kind {
	case ir.KindParallel:
		e.expandParallel(r)
	case ir.KindFor:
		e.expandFor(r)
	case ir.KindSections:
		e.expandSections(r)
	case ir.KindSection:
		// Dissolved by the enclosing sections region.
	case ir.KindSingle:
		e.expandSingle(r)
	case ir.KindMaster, ir.KindOrdered, ir.KindCritical:
		e.expandSync(r)
	case ir.KindAtomic:
		e.expandAtomic(r)
	default:
		panic("should never happen")
	}
}

// newBlock appends a fresh labeled block to the current function.
func (e *expander) newBlock(pos parseutil.StartEndPos) *ir.Block {
	block := &ir.Block{
		StartEndPos: pos,
		Label:       ":" + strconv.Itoa(e.labelId),
	}
	e.labelId++
	e.fn.Blocks = append(e.fn.Blocks, block)
	return block
}

// setChildren rewires a block's outgoing edges in one step.  The branch
// target, when any, must come first.
func setChildren(block *ir.Block, children ...*ir.Block) {
	for _, child := range block.Children {
		child.Parents = removeParent(child.Parents, block)
	}
	block.Children = nil
	for _, child := range children {
		ir.AddEdge(block, child)
	}
}

func removeParent(parents []*ir.Block, target *ir.Block) []*ir.Block {
	for idx, parent := range parents {
		if parent == target {
			return append(parents[:idx:idx], parents[idx+1:]...)
		}
	}
	panic("should never happen")
}

// nextBlockId returns the first numeric block label not yet taken.
func nextBlockId(fn *ir.FuncDecl) int {
	next := 0
	for _, block := range fn.Blocks {
		suffix, ok := strings.CutPrefix(block.Label, ":")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if id >= next {
			next = id + 1
		}
	}
	return next
}
