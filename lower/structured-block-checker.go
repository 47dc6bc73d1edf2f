package lower

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/ir"
)

// NewStructuredBlockChecker returns the pre-lowering diagnostic pass that
// rejects branches crossing a structured block boundary.  Every offending
// branch is replaced by a nop so downstream phases see well formed bodies
// even when the function has errors.
func NewStructuredBlockChecker(
	emitter *parseutil.Emitter,
) Pass[*ir.FuncDecl] {
	return &structuredBlockChecker{Emitter: emitter}
}

type structuredBlockChecker struct {
	*parseutil.Emitter

	labels   map[string]*sbChain
	branches []sbBranch
}

// sbChain identifies the stack of structured blocks enclosing a statement.
// Two statements are mutually reachable only when they share the same
// chain node.
type sbChain struct {
	construct ir.Construct
	outer     *sbChain
}

func (chain *sbChain) contains(other *sbChain) bool {
	for cur := other; cur != nil; cur = cur.outer {
		if cur == chain {
			return true
		}
	}
	return chain == nil
}

type sbBranch struct {
	container []ir.Stmt
	idx       int
	chain     *sbChain
	targets   []string
	isReturn  bool
}

func (checker *structuredBlockChecker) Process(fn *ir.FuncDecl) {
	checker.labels = map[string]*sbChain{}
	checker.branches = nil

	checker.collect(fn.Body, nil)

	for _, branch := range checker.branches {
		stmt := branch.container[branch.idx]

		if branch.isReturn {
			if branch.chain != nil {
				checker.Emit(
					stmt.Loc(),
					"invalid exit from structured block")
				branch.container[branch.idx] = &ir.NopStmt{
					StartEndPos: stmt.StartEnd(),
				}
			}
			continue
		}

		for _, target := range branch.targets {
			targetChain, ok := checker.labels[target]
			if !ok {
				// Unknown labels are reported by the CFG builder.
				continue
			}
			if targetChain == branch.chain {
				continue
			}

			if targetChain.contains(branch.chain) {
				checker.Emit(
					stmt.Loc(),
					"invalid exit from structured block")
			} else {
				checker.Emit(
					stmt.Loc(),
					"invalid entry to structured block")
			}
			branch.container[branch.idx] = &ir.NopStmt{
				StartEndPos: stmt.StartEnd(),
			}
			break
		}
	}
}

func (checker *structuredBlockChecker) collect(
	stmts []ir.Stmt,
	chain *sbChain,
) {
	for idx, stmt := range stmts {
		switch concrete := stmt.(type) {
		case *ir.LabelStmt:
			checker.labels[concrete.Name] = chain
		case *ir.GotoStmt:
			checker.branches = append(checker.branches, sbBranch{
				container: stmts,
				idx:       idx,
				chain:     chain,
				targets:   []string{concrete.Label},
			})
		case *ir.CondStmt:
			checker.branches = append(checker.branches, sbBranch{
				container: stmts,
				idx:       idx,
				chain:     chain,
				targets:   []string{concrete.Label},
			})
		case *ir.SwitchStmt:
			targets := make([]string, 0, len(concrete.Cases)+1)
			for _, switchCase := range concrete.Cases {
				targets = append(targets, switchCase.Label)
			}
			if concrete.DefaultLabel != "" {
				targets = append(targets, concrete.DefaultLabel)
			}
			checker.branches = append(checker.branches, sbBranch{
				container: stmts,
				idx:       idx,
				chain:     chain,
				targets:   targets,
			})
		case *ir.ReturnStmt:
			checker.branches = append(checker.branches, sbBranch{
				container: stmts,
				idx:       idx,
				chain:     chain,
				isReturn:  true,
			})
		case *ir.BlockStmt:
			checker.collect(concrete.Body, chain)
		case *ir.CatchTrapStmt:
			checker.collect(concrete.Body, chain)
		case *ir.ParallelConstruct:
			checker.collect(
				concrete.Body,
				&sbChain{construct: concrete, outer: chain})
		case *ir.ForConstruct:
			checker.collect(
				concrete.Body,
				&sbChain{construct: concrete, outer: chain})
		case *ir.SectionsConstruct:
			sectionsChain := &sbChain{construct: concrete, outer: chain}
			for _, section := range concrete.Sections {
				checker.collect(
					section.Body,
					&sbChain{construct: section, outer: sectionsChain})
			}
		case *ir.SingleConstruct:
			checker.collect(
				concrete.Body,
				&sbChain{construct: concrete, outer: chain})
		case *ir.MasterConstruct:
			checker.collect(
				concrete.Body,
				&sbChain{construct: concrete, outer: chain})
		case *ir.OrderedConstruct:
			checker.collect(
				concrete.Body,
				&sbChain{construct: concrete, outer: chain})
		case *ir.CriticalConstruct:
			checker.collect(
				concrete.Body,
				&sbChain{construct: concrete, outer: chain})
		}
	}
}
