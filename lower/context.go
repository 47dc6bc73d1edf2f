// Package lower implements the scanning/lowering phase: it traverses the
// statement-tree IR, builds a context per directive construct, resolves each
// variable's data-sharing attribute, builds communication records, clones
// variables for privatization, rewrites body references, and flattens every
// construct into directive markers plus sequential glue code.
package lower

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/ir"
)

type Pass[T any] interface {
	Process(T)
}

// context is the per-construct scan/lower state.  Contexts form an explicit
// chain mirroring construct nesting; variable lookup walks outward until a
// mapping is found or a parallel boundary is crossed.
type context struct {
	outer     *context
	construct ir.Construct
	fn        *ir.FuncDecl

	depth int

	// True for a parallel construct nested (at any depth) inside another
	// parallel.
	isNestedParallel bool

	defaultPolicy ir.DefaultPolicy

	// original variable -> local clone (private-ish clauses)
	varMap map[*ir.Var]*ir.Var

	// original variable -> field in the sender-side communication record
	fieldMap map[*ir.Var]*ir.Field

	// Parallel constructs and copyprivate singles only.
	record      *ir.RecordType
	childRecord *ir.RecordType
	sender      *ir.Var
	receiver    *ir.Var

	// Parallel constructs only.
	childFn *ir.FuncDecl

	// Clones and backing storage to declare in the construct's block scope.
	blockVars []*ir.Var

	// Variables declared inside this construct's body; they never cross the
	// construct boundary and are exempt from default(none).
	localDecls map[*ir.Var]struct{}
}

func newContext(outer *context, construct ir.Construct) *context {
	ctx := &context{
		outer:      outer,
		construct:  construct,
		varMap:     map[*ir.Var]*ir.Var{},
		fieldMap:   map[*ir.Var]*ir.Field{},
		localDecls: map[*ir.Var]struct{}{},
	}
	if outer != nil {
		ctx.fn = outer.fn
		ctx.depth = outer.depth + 1
		ctx.isNestedParallel = outer.isNestedParallel || outer.isParallel()
		ctx.defaultPolicy = outer.defaultPolicy
	}
	if construct != nil {
		if policy := construct.ConstructClauses().Default(); policy != ir.DefaultUnspecified {
			ctx.defaultPolicy = policy
		}
	}
	return ctx
}

func (ctx *context) isParallel() bool {
	return ctx.construct != nil &&
		ctx.construct.ConstructKind() == ir.KindParallel
}

func (ctx *context) kind() ir.ConstructKind {
	if ctx.construct == nil {
		panic("should never happen")
	}
	return ctx.construct.ConstructKind()
}

// enclosingParallel returns the nearest parallel context at or outside ctx,
// or nil when ctx is in the sequential part of the function.
func (ctx *context) enclosingParallel() *context {
	for cur := ctx; cur != nil; cur = cur.outer {
		if cur.isParallel() {
			return cur
		}
	}
	return nil
}

func (ctx *context) isLocalDecl(v *ir.Var) bool {
	for cur := ctx; cur != nil; cur = cur.outer {
		if _, ok := cur.localDecls[v]; ok {
			return true
		}
		if cur.isParallel() {
			break
		}
	}
	return false
}

// remapExpr returns the expression a reference to v inside ctx's body must
// be rewritten to, or nil when the reference is left alone.
func (ctx *context) remapExpr(
	pos parseutil.StartEndPos,
	v *ir.Var,
) ir.Expr {
	for cur := ctx; cur != nil; cur = cur.outer {
		clone, ok := cur.varMap[v]
		if ok {
			if v.IsReference || v.IsVariablySized() {
				// The clone is a pointer to freshly initialized storage.
				return ir.NewDeref(pos, ir.NewVarRef(pos, clone))
			}
			return ir.NewVarRef(pos, clone)
		}

		if cur.isParallel() {
			field, ok := cur.fieldMap[v]
			if ok && !v.ThreadPrivate {
				// Threadprivate variables are referenced directly; their
				// record field only feeds the copyin prolog.
				return cur.receiverRef(pos, field)
			}
			// References that cross a parallel boundary are resolved by that
			// parallel's context or not at all.
			return nil
		}
	}
	return nil
}

// receiverRef builds the child-side access path for a communication record
// field: receiver->field, with an extra indirection for by-pointer fields.
func (ctx *context) receiverRef(
	pos parseutil.StartEndPos,
	field *ir.Field,
) ir.Expr {
	childField := ctx.childFieldFor(field)
	var ref ir.Expr = ir.NewFieldRef(
		pos,
		ir.NewVarRef(pos, ctx.receiver),
		childField)
	if field.ByPointer {
		ref = ir.NewDeref(pos, ref)
	}
	return ref
}

// senderRef builds the parent-side access path for a field of the sender
// record.
func (ctx *context) senderRef(
	pos parseutil.StartEndPos,
	field *ir.Field,
) ir.Expr {
	return ir.NewFieldRef(pos, ir.NewVarRef(pos, ctx.sender), field)
}

func (ctx *context) childFieldFor(field *ir.Field) *ir.Field {
	if ctx.childRecord == nil {
		panic("should never happen")
	}
	for _, candidate := range ctx.childRecord.Fields {
		if candidate.OriginField == field {
			return candidate
		}
	}
	panic("should never happen")
}

// outerRef builds a reference to v as seen from the context enclosing ctx.
// Setup and finalization glue (firstprivate copies, lastprivate commits,
// reduction merges) reads and writes the outer variable through this path.
func (ctx *context) outerRef(
	pos parseutil.StartEndPos,
	v *ir.Var,
) ir.Expr {
	if ctx.isParallel() {
		field, ok := ctx.fieldMap[v]
		if ok {
			return ctx.receiverRef(pos, field)
		}
		// Globals and threadprivates are referenced directly.
		return rawVarRef(pos, v)
	}

	if ctx.outer != nil {
		mapped := ctx.outer.remapExpr(pos, v)
		if mapped != nil {
			return mapped
		}
	}
	return rawVarRef(pos, v)
}

func rawVarRef(pos parseutil.StartEndPos, v *ir.Var) ir.Expr {
	if v.ValueExpr != nil {
		return v.ValueExpr
	}
	return ir.NewVarRef(pos, v)
}
