package expand

import (
	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
)

// expandSingle dissolves a single region.  The lowering already emitted the
// GOMP_single_start guard (or the copyprivate broadcast protocol); all that
// remains is the marker and the implicit exit barrier.
func (e *expander) expandSingle(r *region) {
	dir, ok := r.entry.LastStmt().(*ir.SingleDirective)
	if !ok {
		panic("should never happen")
	}
	r.entry.RemoveLastStmt()

	// The copyprivate protocol publishes addresses of the chosen thread's
	// locals; it must not leave the region before the receivers copied them
	// out, no matter what the return says.
	copyprivate := len(dir.Clauses.Copyprivates()) > 0

	ret := r.returnStmt()
	r.exit.RemoveLastStmt()
	if !ret.Nowait || copyprivate {
		r.exit.Append(ir.NewCall(ret.StartEnd(), nil, gomp.Barrier))
	}
}

// expandSync dissolves master, ordered and critical regions.  Their
// runtime bracketing calls were emitted during lowering; only the markers
// remain, and none of them has an exit barrier.
func (e *expander) expandSync(r *region) {
	switch r.entry.LastStmt().(type) {
	case *ir.MasterDirective, *ir.OrderedDirective, *ir.CriticalDirective:
	default:
		panic("should never happen")
	}
	r.entry.RemoveLastStmt()

	ret := r.returnStmt()
	r.exit.RemoveLastStmt()
	if !ret.Nowait {
		r.exit.Append(ir.NewCall(ret.StartEnd(), nil, gomp.Barrier))
	}
}
