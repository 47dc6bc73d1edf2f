package ir

import (
	"strconv"

	"github.com/pattyshack/gt/parseutil"
)

// BuildCFG converts a function's statement-tree body into basic blocks.
// Block scopes and fault wrappers are flattened, their declarations hoisted
// into fn.Locals.  Directive markers end the block they appear in; the
// builder additionally wires the special edges the region-tree builder and
// the expander expect:
//
//   - a loop continue marker branches back to the loop body head as well as
//     falling through toward the return marker,
//   - a sections entry branches to every section entry,
//   - a section's return marker branches to the sections continue marker.
func BuildCFG(fn *FuncDecl, emitter *parseutil.Emitter) {
	builder := &cfgBuilder{
		fn:      fn,
		emitter: emitter,
	}
	builder.build()
}

type cfgBuilder struct {
	fn      *FuncDecl
	emitter *parseutil.Emitter

	blocks   []*Block
	current  *Block
	labelled map[string]*Block
}

func (builder *cfgBuilder) build() {
	builder.labelled = map[string]*Block{}
	builder.flatten(builder.fn.Body)
	builder.finishBlock()

	if len(builder.blocks) == 0 {
		builder.emitter.Emit(builder.fn.Loc(), "function body is empty")
		return
	}

	builder.connect()
	builder.nameBlocks()

	builder.fn.Blocks = builder.blocks
	builder.fn.Body = nil
}

func (builder *cfgBuilder) startBlock(pos parseutil.StartEndPos) *Block {
	builder.current = &Block{StartEndPos: pos}
	builder.blocks = append(builder.blocks, builder.current)
	return builder.current
}

func (builder *cfgBuilder) finishBlock() {
	builder.current = nil
}

func (builder *cfgBuilder) emit(stmt Stmt) {
	if builder.current == nil {
		builder.startBlock(stmt.StartEnd())
	}
	builder.current.Append(stmt)
}

func (builder *cfgBuilder) flatten(stmts []Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *BlockStmt:
			builder.fn.Locals = append(builder.fn.Locals, s.Vars...)
			builder.flatten(s.Body)
		case *CatchTrapStmt:
			builder.flatten(s.Body)
		case *LabelStmt:
			block := builder.startBlock(s.StartEnd())
			block.Label = s.Name
			prev, ok := builder.labelled[s.Name]
			if ok && prev != block {
				builder.emitter.Emit(s.Loc(), "duplicate label (%s)", s.Name)
			}
			builder.labelled[s.Name] = block
		case Construct:
			// Constructs are consumed by lowering; only directive markers may
			// reach CFG construction.
			panic("should never happen")
		case *GotoStmt, *CondStmt, *SwitchStmt, *ReturnStmt, *TrapStmt:
			builder.emit(stmt)
			builder.finishBlock()
		case Directive:
			builder.emit(stmt)
			builder.finishBlock()
		case *OMPReturnStmt, *OMPContinueStmt:
			builder.emit(stmt)
			builder.finishBlock()
		default:
			builder.emit(stmt)
		}
	}
}

// openDirective tracks one unclosed directive during the structure scan.
type openDirective struct {
	kind  ConstructKind
	entry *Block

	cont           *Block
	sectionEntries []*Block
	sectionReturns []*Block
}

func (builder *cfgBuilder) connect() {
	// Structure scan: match directive markers with their continue and return
	// markers.  Lowered output is linear and properly nested, so a stack
	// suffices.
	stack := []*openDirective{}
	top := func() *openDirective {
		if len(stack) == 0 {
			panic("should never happen")
		}
		return stack[len(stack)-1]
	}

	type pendingEdge struct {
		from *Block
		to   *Block
	}
	deferred := []pendingEdge{}

	for _, block := range builder.blocks {
		switch last := block.LastStmt().(type) {
		case Directive:
			switch last.DirectiveKind() {
			case KindSection:
				sections := top()
				if sections.kind != KindSections {
					panic("should never happen")
				}
				sections.sectionEntries = append(sections.sectionEntries, block)
				stack = append(stack, &openDirective{
					kind:  KindSection,
					entry: block,
				})
			case KindAtomic:
				if _, ok := last.(*AtomicLoadStmt); ok {
					stack = append(stack, &openDirective{
						kind:  KindAtomic,
						entry: block,
					})
				} else {
					// The store closes the atomic region opened by the load.
					if top().kind != KindAtomic {
						panic("should never happen")
					}
					stack = stack[:len(stack)-1]
				}
			default:
				stack = append(stack, &openDirective{
					kind:  last.DirectiveKind(),
					entry: block,
				})
			}
		case *OMPContinueStmt:
			open := top()
			if open.kind != KindFor && open.kind != KindSections {
				panic("should never happen")
			}
			open.cont = block
		case *OMPReturnStmt:
			open := top()
			if open.kind != last.Kind {
				panic("should never happen")
			}
			stack = stack[:len(stack)-1]
			switch last.Kind {
			case KindSection:
				sections := top()
				sections.sectionReturns = append(sections.sectionReturns, block)
			case KindFor:
				if open.cont != nil {
					bodyHead := builder.blockAfter(open.entry)
					deferred = append(
						deferred,
						pendingEdge{from: open.cont, to: bodyHead})
				}
			case KindSections:
				for _, entry := range open.sectionEntries {
					deferred = append(
						deferred,
						pendingEdge{from: open.entry, to: entry})
				}
				for _, ret := range open.sectionReturns {
					if open.cont == nil {
						panic("should never happen")
					}
					deferred = append(
						deferred,
						pendingEdge{from: ret, to: open.cont})
				}
			}
		}
	}

	if len(stack) != 0 {
		panic("should never happen")
	}

	for idx, block := range builder.blocks {
		canFallthrough := true
		switch last := block.LastStmt().(type) {
		case *GotoStmt:
			canFallthrough = false
			builder.jump(block, last.Loc(), last.Label)
		case *CondStmt:
			builder.jump(block, last.Loc(), last.Label)
		case *SwitchStmt:
			canFallthrough = false
			targets := map[string]struct{}{}
			for _, switchCase := range last.Cases {
				if _, ok := targets[switchCase.Label]; ok {
					continue
				}
				targets[switchCase.Label] = struct{}{}
				builder.jump(block, last.Loc(), switchCase.Label)
			}
			if _, ok := targets[last.DefaultLabel]; !ok {
				builder.jump(block, last.Loc(), last.DefaultLabel)
			}
		case *ReturnStmt, *TrapStmt:
			canFallthrough = false
		case *SectionsDirective:
			// Successors are the section entries; wired below.
			canFallthrough = false
		case *OMPReturnStmt:
			if last.Kind == KindSection {
				// Successor is the sections continue block; wired below.
				canFallthrough = false
			}
		}

		if !canFallthrough {
			continue
		}

		if idx == len(builder.blocks)-1 {
			builder.emitter.Emit(
				block.Loc(),
				"last statement in function must either exit the function or "+
					"unconditionally jump to another block")
			continue
		}

		AddEdge(block, builder.blocks[idx+1])
	}

	for _, edge := range deferred {
		AddEdge(edge.from, edge.to)
	}
}

func (builder *cfgBuilder) blockAfter(block *Block) *Block {
	for idx, candidate := range builder.blocks {
		if candidate == block {
			if idx == len(builder.blocks)-1 {
				panic("should never happen")
			}
			return builder.blocks[idx+1]
		}
	}
	panic("should never happen")
}

func (builder *cfgBuilder) jump(
	block *Block,
	loc parseutil.Location,
	label string,
) {
	child, ok := builder.labelled[label]
	if !ok {
		builder.emitter.Emit(loc, "undefined block label (%s)", label)
		return
	}
	AddEdge(block, child)
}

// Add labels for debugging purpose
func (builder *cfgBuilder) nameBlocks() {
	names := map[string]struct{}{}
	for _, block := range builder.blocks {
		if block.Label != "" {
			names[block.Label] = struct{}{}
		}
	}

	idx := 0
	for _, block := range builder.blocks {
		if block.Label != "" {
			continue
		}

		for {
			label := ":" + strconv.Itoa(idx)
			idx++

			_, ok := names[label]
			if !ok {
				block.Label = label
				break
			}
		}
	}
}
