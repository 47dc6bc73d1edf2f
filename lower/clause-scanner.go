package lower

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/ir"
	"github.com/pattyshack/towhee/platform"
)

// scanner is the first half of the phase: it walks the construct tree
// outer-to-inner, creates a context per construct, decides for every
// variable named in a clause (or referenced implicitly) whether it needs a
// local clone, a field in the communication record, pass-by-pointer, or
// neither, and checks the construct nesting restrictions.
type scanner struct {
	*parseutil.Emitter

	target platform.Platform
	fn     *ir.FuncDecl

	contexts  map[ir.Construct]*context
	parallels []*context

	addFunc func(*ir.FuncDecl)
}

func newScanner(
	emitter *parseutil.Emitter,
	target platform.Platform,
	fn *ir.FuncDecl,
	addFunc func(*ir.FuncDecl),
) *scanner {
	return &scanner{
		Emitter:  emitter,
		target:   target,
		fn:       fn,
		contexts: map[ir.Construct]*context{},
		addFunc:  addFunc,
	}
}

func (s *scanner) scan() (*context, map[ir.Construct]*context) {
	root := newContext(nil, nil)
	root.fn = s.fn
	for _, param := range s.fn.Params {
		root.localDecls[param] = struct{}{}
	}
	for _, local := range s.fn.Locals {
		root.localDecls[local] = struct{}{}
	}

	s.scanStmts(s.fn.Body, root)

	// Layout is deferred until every construct has been scanned so that
	// nested shared clauses can still upgrade an outer field to
	// pass-by-pointer.
	for _, ctx := range s.parallels {
		s.finalizeParallel(ctx)
	}

	// With every communication record finalized, variably sized clone types
	// can be rewritten to compute their extents from in-construct values.
	for _, ctx := range s.contexts {
		for v, clone := range ctx.varMap {
			if !v.IsVariablySized() {
				continue
			}
			ptr := clone.Type.(ir.PointerType)
			clone.Type = ir.NewPointerType(s.remapCloneType(ptr.Elem, ctx))
		}
	}
	return root, s.contexts
}

func (s *scanner) scanStmts(stmts []ir.Stmt, ctx *context) {
	for _, stmt := range stmts {
		s.scanStmt(stmt, ctx)
	}
}

func (s *scanner) scanStmt(stmt ir.Stmt, ctx *context) {
	switch concrete := stmt.(type) {
	case *ir.BlockStmt:
		for _, v := range concrete.Vars {
			ctx.localDecls[v] = struct{}{}
		}
		s.scanStmts(concrete.Body, ctx)
	case *ir.CatchTrapStmt:
		s.scanStmts(concrete.Body, ctx)
	case ir.Construct:
		s.scanConstruct(concrete, ctx)
	default:
		s.scanExpr(stmt, ctx)
	}
}

func (s *scanner) scanConstruct(construct ir.Construct, ctx *context) {
	s.checkNesting(construct, ctx)

	switch concrete := construct.(type) {
	case *ir.ParallelConstruct:
		s.scanParallel(concrete, ctx)
	case *ir.ForConstruct:
		inner := s.newScanContext(concrete, ctx)
		// Loop bounds are evaluated in the enclosing context.
		s.scanExpr(concrete.Init, ctx)
		s.scanExpr(concrete.Bound, ctx)
		s.scanExpr(concrete.Step, ctx)
		s.scanClauses(concrete.Clauses, inner, ctx)
		// The iteration variable is predetermined private unless a
		// lastprivate clause already claimed it.
		if _, ok := inner.varMap[concrete.Iter]; !ok {
			s.installClone(concrete.Iter, inner)
		}
		s.scanStmts(concrete.Body, inner)
	case *ir.SectionsConstruct:
		inner := s.newScanContext(concrete, ctx)
		s.scanClauses(concrete.Clauses, inner, ctx)
		for _, section := range concrete.Sections {
			sectionCtx := s.newScanContext(section, inner)
			s.scanStmts(section.Body, sectionCtx)
		}
	case *ir.SingleConstruct:
		inner := s.newScanContext(concrete, ctx)
		s.scanClauses(concrete.Clauses, inner, ctx)
		s.scanStmts(concrete.Body, inner)
	case *ir.MasterConstruct:
		inner := s.newScanContext(concrete, ctx)
		s.scanStmts(concrete.Body, inner)
	case *ir.OrderedConstruct:
		inner := s.newScanContext(concrete, ctx)
		s.scanStmts(concrete.Body, inner)
	case *ir.CriticalConstruct:
		inner := s.newScanContext(concrete, ctx)
		s.scanStmts(concrete.Body, inner)
	case *ir.AtomicConstruct:
		s.scanExpr(concrete, ctx)
	default:
		panic("should never happen")
	}
}

func (s *scanner) newScanContext(
	construct ir.Construct,
	outer *context,
) *context {
	ctx := newContext(outer, construct)
	s.contexts[construct] = ctx
	return ctx
}

func (s *scanner) scanParallel(
	construct *ir.ParallelConstruct,
	outer *context,
) {
	ctx := s.newScanContext(construct, outer)
	s.parallels = append(s.parallels, ctx)

	pos := construct.StartEnd()
	ctx.record = ir.NewRecordType(".omp_data_s")
	ctx.sender = &ir.Var{Name: ".omp_data_o", Type: ctx.record}
	ctx.receiver = &ir.Var{Name: ".omp_data_i"}

	parentFn := s.fn
	if enclosing := outer.enclosingParallel(); enclosing != nil {
		parentFn = enclosing.childFn
	}
	ctx.childFn = &ir.FuncDecl{
		StartEndPos: pos,
		Name:        s.fn.ChildFnName(),
		ReturnType:  ir.VoidType{},
		Internal:    true,
		Parent:      parentFn,
	}
	param := &ir.Var{Name: ".omp_data_p"}
	ctx.childFn.Params = []*ir.Var{param}
	s.addFunc(ctx.childFn)

	s.scanClauses(construct.Clauses, ctx, outer)
	s.scanStmts(construct.Body, ctx)
}

// finalizeParallel runs once all nested constructs have been scanned: it
// builds the child-side record clone with field-origin links, lays both
// out, and types the receiver and parameter.
func (s *scanner) finalizeParallel(ctx *context) {
	if len(ctx.record.Fields) == 0 {
		ctx.record = nil
		ctx.sender = nil
		ctx.receiver = nil
		ctx.childFn.Params[0].Type = ir.NewPointerType(ir.VoidType{})
		return
	}

	child := ir.NewRecordType(".omp_data_t")
	for _, field := range ctx.record.Fields {
		child.Fields = append(child.Fields, &ir.Field{
			Name:        field.Name,
			Type:        field.Type,
			ByPointer:   field.ByPointer,
			Origin:      field.Origin,
			OriginField: field,
		})
	}
	ctx.childRecord = child
	ctx.receiver.Type = ir.NewPointerType(child)
	ctx.childFn.Params[0].Type = ir.NewPointerType(child)

	// Remap sizes embedded in variably sized field types to their
	// child-side expressions.
	for _, field := range child.Fields {
		field.Type = s.remapChildType(field.Type, ctx)
	}

	s.target.Layout(ctx.record)
	s.target.Layout(child)
}

func (s *scanner) remapChildType(t ir.Type, ctx *context) ir.Type {
	switch concrete := t.(type) {
	case ir.PointerType:
		return ir.NewPointerType(s.remapChildType(concrete.Elem, ctx))
	case ir.ArrayType:
		count := concrete.Count
		if ref, ok := count.(*ir.VarRef); ok {
			mapped := ctx.remapExpr(ref.StartEnd(), ref.Var)
			if mapped != nil {
				count = mapped
			}
		}
		return ir.ArrayType{Elem: concrete.Elem, Count: count}
	default:
		return t
	}
}

// scanClauses processes a construct's clause list.  Variably sized
// variables are handled in a second pass so that their size-determining
// scalars are already mapped.
func (s *scanner) scanClauses(
	clauses ir.ClauseList,
	ctx *context,
	outer *context,
) {
	s.scanClausePass(clauses, ctx, outer, false)
	s.scanClausePass(clauses, ctx, outer, true)
}

func (s *scanner) scanClausePass(
	clauses ir.ClauseList,
	ctx *context,
	outer *context,
	variablySized bool,
) {
	for idx, clause := range clauses {
		switch concrete := clause.(type) {
		case *ir.PrivateClause:
			if concrete.Var.IsVariablySized() != variablySized {
				continue
			}
			s.installClone(concrete.Var, ctx)
		case *ir.FirstprivateClause:
			if concrete.Var.IsVariablySized() != variablySized {
				continue
			}
			s.scanFirstprivate(concrete.Var, clauses, ctx, outer)
		case *ir.LastprivateClause:
			if concrete.Var.IsVariablySized() != variablySized {
				continue
			}
			// firstprivate(x) lastprivate(x) is a legal pair; whichever
			// clause scans first seeds the clone.
			if _, ok := ctx.varMap[concrete.Var]; !ok ||
				!namesFirstprivate(clauses, concrete.Var) {

				s.installClone(concrete.Var, ctx)
			}
			// The commit target must be reachable from the construct; force
			// sharing across any enclosing parallel.
			s.scanVarUse(concrete.Var, concrete.StartEnd(), outer)
		case *ir.SharedClause:
			if variablySized {
				continue
			}
			s.scanShared(concrete, clauses, idx, ctx, outer)
		case *ir.ReductionClause:
			if variablySized {
				continue
			}
			s.installClone(concrete.Var, ctx)
			if ctx.isParallel() {
				if !concrete.Var.HasLinkage() {
					s.installField(
						concrete.Var,
						s.passByPointer(concrete.Var),
						ctx)
				}
			} else {
				s.scanVarUse(concrete.Var, concrete.StartEnd(), outer)
			}
		case *ir.CopyinClause:
			if variablySized {
				continue
			}
			if !concrete.Var.ThreadPrivate {
				s.Emit(
					concrete.Loc(),
					"copyin variable (%s) is not threadprivate",
					concrete.Var.Name)
				continue
			}
			s.installField(concrete.Var, s.passByPointer(concrete.Var), ctx)
		case *ir.CopyprivateClause:
			// The copy record is built during lowering; nothing to map.
		case *ir.IfClause:
			if variablySized {
				continue
			}
			s.scanExpr(concrete.Cond, outer)
		case *ir.NumThreadsClause:
			if variablySized {
				continue
			}
			s.scanExpr(concrete.Count, outer)
		case *ir.ScheduleClause:
			if variablySized {
				continue
			}
			if concrete.Chunk != nil {
				s.scanExpr(concrete.Chunk, outer)
			}
		}
	}
}

func namesFirstprivate(clauses ir.ClauseList, v *ir.Var) bool {
	for _, clause := range clauses {
		concrete, ok := clause.(*ir.FirstprivateClause)
		if ok && concrete.Var == v {
			return true
		}
	}
	return false
}

func namesLastprivate(clauses ir.ClauseList, v *ir.Var) bool {
	for _, clause := range clauses {
		concrete, ok := clause.(*ir.LastprivateClause)
		if ok && concrete.Var == v {
			return true
		}
	}
	return false
}

func (s *scanner) scanFirstprivate(
	v *ir.Var,
	clauses ir.ClauseList,
	ctx *context,
	outer *context,
) {
	if _, ok := ctx.varMap[v]; !ok || !namesLastprivate(clauses, v) {
		s.installClone(v, ctx)
	}
	if ctx.isParallel() && !v.HasLinkage() {
		byRef := ir.IsAggregate(v.Type) || v.IsReference || v.IsVariablySized()
		s.installField(v, byRef, ctx)
	} else if !ctx.isParallel() {
		// The copy-in source is the outer variable; force sharing across
		// any enclosing parallel.
		s.scanVarUse(v, v0Pos(ctx), outer)
	}
}

func (s *scanner) scanShared(
	clause *ir.SharedClause,
	clauses ir.ClauseList,
	idx int,
	ctx *context,
	outer *context,
) {
	v := clause.Var
	if !ctx.isParallel() {
		s.Emit(
			clause.Loc(),
			"shared clause on a non-parallel construct")
		return
	}
	if v.HasLinkage() {
		// Globals are visible in the child directly.
		return
	}

	byRef := s.passByPointer(v)
	if !byRef && v.Const {
		// Read-only non-addressable scalar: no thread can observe another
		// thread's writes, so copy it in by value instead.
		clauses[idx] = &ir.FirstprivateClause{
			StartEndPos: clause.StartEndPos,
			Var:         v,
		}
		s.scanFirstprivate(v, clauses, ctx, outer)
		return
	}

	s.installField(v, byRef, ctx)

	if byRef {
		// A by-pointer share requires the variable's true storage; upgrade
		// any enclosing by-value field so all teams alias one location.
		for cur := ctx.outer; cur != nil; cur = cur.outer {
			if !cur.isParallel() {
				continue
			}
			field, ok := cur.fieldMap[v]
			if ok && !field.ByPointer {
				field.ByPointer = true
				field.Type = ir.NewPointerType(v.Type)
			}
		}
	}
}

func (s *scanner) passByPointer(v *ir.Var) bool {
	return ir.IsAggregate(v.Type) ||
		v.AddrTaken ||
		v.HasLinkage() ||
		v.ValueExpr != nil ||
		v.IsReference ||
		v.IsVariablySized()
}

func (s *scanner) installClone(v *ir.Var, ctx *context) *ir.Var {
	// The clone's extent is computed inside the construct; its size scalars
	// must be resolvable there.
	if arr, ok := v.Type.(ir.ArrayType); ok && arr.IsVariablySized() {
		s.scanExpr(arr.Count, ctx)
	}

	if _, ok := ctx.varMap[v]; ok {
		s.Emit(
			v0Pos(ctx).StartPos,
			"variable (%s) named in multiple data sharing clauses",
			v.Name)
		return ctx.varMap[v]
	}

	clone := &ir.Var{Name: v.Name}
	switch {
	case v.IsVariablySized():
		// The extent is remapped to its in-construct form once every
		// parallel record has been finalized.
		clone.Type = ir.NewPointerType(v.Type)
	case v.IsReference:
		clone.Type = ir.NewPointerType(v.Type)
	default:
		clone.Type = v.Type
	}

	ctx.varMap[v] = clone
	ctx.blockVars = append(ctx.blockVars, clone)
	return clone
}

// remapCloneType rewrites sizes embedded in a variably sized type so that
// the clone's extent is computed from the sizes visible inside the
// construct.
func (s *scanner) remapCloneType(t ir.Type, ctx *context) ir.Type {
	arr, ok := t.(ir.ArrayType)
	if !ok {
		return t
	}
	count := arr.Count
	if ref, ok := count.(*ir.VarRef); ok {
		mapped := ctx.remapExpr(ref.StartEnd(), ref.Var)
		if mapped != nil {
			count = mapped
		}
	}
	return ir.ArrayType{Elem: arr.Elem, Count: count}
}

func (s *scanner) installField(v *ir.Var, byRef bool, ctx *context) {
	if !ctx.isParallel() {
		panic("should never happen")
	}
	if _, ok := ctx.fieldMap[v]; ok {
		// A variable is inserted into the field map at most once.
		return
	}

	if arr, ok := v.Type.(ir.ArrayType); ok && arr.IsVariablySized() {
		s.scanExpr(arr.Count, ctx)
	}

	fieldType := v.Type
	if byRef {
		fieldType = ir.NewPointerType(v.Type)
	}
	field := &ir.Field{
		Name:      v.Name,
		Type:      fieldType,
		ByPointer: byRef,
		Origin:    v,
	}
	ctx.record.Fields = append(ctx.record.Fields, field)
	ctx.fieldMap[v] = field
}

// scanExpr walks any node, resolving each variable reference it contains.
func (s *scanner) scanExpr(node ir.Node, ctx *context) {
	visitor := &varUseVisitor{scanner: s, ctx: ctx}
	node.Walk(visitor)
}

type varUseVisitor struct {
	*scanner
	ctx *context
}

func (visitor *varUseVisitor) Enter(node ir.Node) {
	switch concrete := node.(type) {
	case *ir.VarRef:
		visitor.scanVarUse(concrete.Var, concrete.StartEnd(), visitor.ctx)
	case *ir.CallStmt:
		// The result destination is a bare variable, not a reference node.
		if concrete.Result != nil {
			visitor.scanVarUse(concrete.Result, concrete.StartEnd(), visitor.ctx)
		}
	}
}

func (visitor *varUseVisitor) Exit(ir.Node) {}

// scanVarUse resolves one variable use: walking outward, the use either hits
// an existing mapping, stays within its declaring construct, or crosses a
// parallel boundary, in which case the parallel gets a communication field
// (implicit sharing) or a diagnostic under default(none).
func (s *scanner) scanVarUse(
	v *ir.Var,
	pos parseutil.StartEndPos,
	ctx *context,
) {
	if v.HasLinkage() || v.ThreadPrivate {
		return
	}

	for cur := ctx; cur != nil; cur = cur.outer {
		if _, ok := cur.localDecls[v]; ok {
			return
		}
		if _, ok := cur.varMap[v]; ok {
			return
		}

		if !cur.isParallel() {
			continue
		}

		if _, ok := cur.fieldMap[v]; !ok {
			if cur.defaultPolicy == ir.DefaultNone && !v.Const {
				s.Emit(
					pos.StartPos,
					"(%s) not specified in enclosing parallel",
					v.Name)
				return
			}
			s.installField(v, s.passByPointer(v), cur)
		}

		// The sender-side assignment references the variable in the
		// parallel's enclosing context; propagate outward.
		if cur.outer != nil {
			s.scanVarUse(v, pos, cur.outer)
		}
		return
	}
}

func v0Pos(ctx *context) parseutil.StartEndPos {
	if ctx.construct != nil {
		return ctx.construct.StartEnd()
	}
	return ctx.fn.StartEnd()
}
