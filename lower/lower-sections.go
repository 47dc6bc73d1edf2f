package lower

import (
	"github.com/pattyshack/towhee/ir"
)

// lowerSections flattens a sections construct.  Each section becomes a
// dispatch token marker plus its body, closed by a nowait section return;
// the expander rebuilds the dispatch switch around the tokens.
// Lastprivate commits run at the end of the sequentially last section.
func (l *lowerer) lowerSections(
	construct *ir.SectionsConstruct,
	outer *context,
) ir.Stmt {
	ctx := l.contexts[construct]
	pos := construct.StartEnd()

	ilist := l.lowerRecInputClauses(pos, construct.Clauses, ctx)
	merges := l.lowerReductionClauses(pos, construct.Clauses, ctx)

	stmts := append([]ir.Stmt{}, ilist...)
	stmts = append(stmts, &ir.SectionsDirective{
		StartEndPos: pos,
		Clauses:     construct.Clauses,
		Count:       len(construct.Sections),
	})

	for idx, section := range construct.Sections {
		sectionCtx := l.contexts[section]
		sectionPos := section.StartEnd()

		stmts = append(stmts, &ir.SectionDirective{
			StartEndPos: sectionPos,
			Index:       idx + 1,
		})
		stmts = append(
			stmts,
			catchTrap(sectionPos, l.lowerStmts(section.Body, sectionCtx))...)
		if idx == len(construct.Sections)-1 {
			stmts = append(
				stmts,
				l.lowerLastprivateClauses(pos, construct.Clauses, ctx, nil)...)
		}
		stmts = append(stmts, &ir.OMPReturnStmt{
			StartEndPos: sectionPos,
			Kind:        ir.KindSection,
			Nowait:      true,
		})
	}

	stmts = append(stmts, &ir.OMPContinueStmt{StartEndPos: pos})
	stmts = append(stmts, merges...)
	stmts = append(stmts, &ir.OMPReturnStmt{
		StartEndPos: pos,
		Kind:        ir.KindSections,
		Nowait:      construct.Clauses.HasNowait(),
	})

	return &ir.BlockStmt{
		StartEndPos: pos,
		Vars:        ctx.blockVars,
		Body:        stmts,
	}
}
