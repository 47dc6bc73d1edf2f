package expand

import (
	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
)

// expandSections rebuilds the section bodies around the runtime dispatch
// loop:
//
//	t = GOMP_sections_start (count);   // _next () inside a combined parallel
//	L0: switch (t) {
//	  case 0: goto exit;
//	  case i: goto section_i;
//	  default: trap;
//	}
//	section_i: ...; t = GOMP_sections_next (); goto L0;
//	exit: GOMP_sections_end ();  // or _end_nowait
func (e *expander) expandSections(r *region) {
	directive, ok := r.entry.LastStmt().(*ir.SectionsDirective)
	if !ok {
		panic("should never happen")
	}
	r.entry.RemoveLastStmt()

	pos := directive.StartEnd()
	entry := r.entry
	cont := r.cont
	exit := r.exit
	if cont == nil || exit == nil {
		panic("should never happen")
	}

	token := e.fn.NewTemp("section", ir.U32)
	dispatch := e.newBlock(pos)
	trap := e.newBlock(pos)
	trap.Append(&ir.TrapStmt{StartEndPos: pos})

	startName := gomp.SectionsStart
	var startArgs []ir.Expr
	if r.combined {
		startName = gomp.SectionsNext
	} else {
		startArgs = []ir.Expr{
			ir.NewIntLit(pos, int64(directive.Count), ir.U32),
		}
	}
	entry.Append(ir.NewCall(pos, token, startName, startArgs...))
	setChildren(entry, dispatch)

	cases := []ir.SwitchCase{{Value: 0, Label: exit.Label}}
	dispatchTargets := []*ir.Block{exit}
	for _, section := range r.inner {
		if section.kind != ir.KindSection {
			panic("should never happen")
		}
		sectionDirective, ok := section.entry.LastStmt().(*ir.SectionDirective)
		if !ok {
			panic("should never happen")
		}
		section.entry.RemoveLastStmt()
		section.exit.RemoveLastStmt()
		section.exit.Append(ir.NewGoto(pos, cont.Label))
		setChildren(section.exit, cont)

		cases = append(cases, ir.SwitchCase{
			Value: int64(sectionDirective.Index),
			Label: section.entry.Label,
		})
		dispatchTargets = append(dispatchTargets, section.entry)
	}
	dispatchTargets = append(dispatchTargets, trap)

	dispatch.Append(&ir.SwitchStmt{
		StartEndPos:  pos,
		Index:        ir.NewVarRef(pos, token),
		Cases:        cases,
		DefaultLabel: trap.Label,
	})
	setChildren(dispatch, dispatchTargets...)

	cont.RemoveLastStmt()
	cont.Append(
		ir.NewCall(pos, token, gomp.SectionsNext),
		ir.NewGoto(pos, dispatch.Label))
	setChildren(cont, dispatch)

	ret := r.returnStmt()
	endName := gomp.SectionsEnd
	if ret.Nowait {
		endName = gomp.SectionsEndNowait
	}
	exit.RemoveLastStmt()
	exit.Append(ir.NewCall(ret.StartEnd(), nil, endName))
}
