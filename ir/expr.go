package ir

import (
	"github.com/pattyshack/gt/parseutil"
)

type Expr interface {
	Node
	isExprNode()

	Type() Type
}

type isExpr struct{}

func (isExpr) isExprNode() {}

type UnaryOp string

const (
	Neg    = UnaryOp("-")
	Not    = UnaryOp("!")
	BitNot = UnaryOp("~")
)

type BinaryOp string

const (
	Add = BinaryOp("+")
	Sub = BinaryOp("-")
	Mul = BinaryOp("*")
	Div = BinaryOp("/")
	Rem = BinaryOp("%")

	BitAnd = BinaryOp("&")
	BitOr  = BinaryOp("|")
	BitXor = BinaryOp("^")

	LogAnd = BinaryOp("&&")
	LogOr  = BinaryOp("||")

	Min = BinaryOp("min")
	Max = BinaryOp("max")

	Eq = BinaryOp("==")
	Ne = BinaryOp("!=")
	Lt = BinaryOp("<")
	Le = BinaryOp("<=")
	Gt = BinaryOp(">")
	Ge = BinaryOp(">=")
)

func (op BinaryOp) IsComparison() bool {
	switch op {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return true
	default:
		return false
	}
}

func (op BinaryOp) IsCommutative() bool {
	switch op {
	case Add, Mul, BitAnd, BitOr, BitXor, Min, Max, Eq, Ne:
		return true
	default:
		return false
	}
}

type VarRef struct {
	isExpr
	parseutil.StartEndPos

	Var *Var
}

var _ Expr = &VarRef{}

func NewVarRef(pos parseutil.StartEndPos, v *Var) *VarRef {
	return &VarRef{StartEndPos: pos, Var: v}
}

func (ref *VarRef) Walk(visitor Visitor) {
	visitor.Enter(ref)
	visitor.Exit(ref)
}

func (ref *VarRef) Type() Type {
	return ref.Var.Type
}

type IntLit struct {
	isExpr
	parseutil.StartEndPos

	Value   int64
	IntType IntType
}

var _ Expr = &IntLit{}

func NewIntLit(pos parseutil.StartEndPos, value int64, t IntType) *IntLit {
	return &IntLit{StartEndPos: pos, Value: value, IntType: t}
}

func (lit *IntLit) Walk(visitor Visitor) {
	visitor.Enter(lit)
	visitor.Exit(lit)
}

func (lit *IntLit) Type() Type {
	return lit.IntType
}

type FloatLit struct {
	isExpr
	parseutil.StartEndPos

	Value     float64
	FloatType FloatType

	// +inf / -inf neutral elements print symbolically.
	Inf bool
	Neg bool
}

var _ Expr = &FloatLit{}

func (lit *FloatLit) Walk(visitor Visitor) {
	visitor.Enter(lit)
	visitor.Exit(lit)
}

func (lit *FloatLit) Type() Type {
	return lit.FloatType
}

type BoolLit struct {
	isExpr
	parseutil.StartEndPos

	Value bool
}

var _ Expr = &BoolLit{}

func (lit *BoolLit) Walk(visitor Visitor) {
	visitor.Enter(lit)
	visitor.Exit(lit)
}

func (lit *BoolLit) Type() Type {
	return BoolType{}
}

type NullLit struct {
	isExpr
	parseutil.StartEndPos
}

var _ Expr = &NullLit{}

func (lit *NullLit) Walk(visitor Visitor) {
	visitor.Enter(lit)
	visitor.Exit(lit)
}

func (lit *NullLit) Type() Type {
	return PointerType{Elem: VoidType{}}
}

type Unary struct {
	isExpr
	parseutil.StartEndPos

	Op UnaryOp
	X  Expr
}

var _ Expr = &Unary{}

func NewUnary(pos parseutil.StartEndPos, op UnaryOp, x Expr) *Unary {
	return &Unary{StartEndPos: pos, Op: op, X: x}
}

func (expr *Unary) Walk(visitor Visitor) {
	visitor.Enter(expr)
	expr.X.Walk(visitor)
	visitor.Exit(expr)
}

func (expr *Unary) Type() Type {
	if expr.Op == Not {
		return BoolType{}
	}
	return expr.X.Type()
}

type Binary struct {
	isExpr
	parseutil.StartEndPos

	Op BinaryOp
	X  Expr
	Y  Expr
}

var _ Expr = &Binary{}

func NewBinary(pos parseutil.StartEndPos, op BinaryOp, x Expr, y Expr) *Binary {
	return &Binary{StartEndPos: pos, Op: op, X: x, Y: y}
}

func (expr *Binary) Walk(visitor Visitor) {
	visitor.Enter(expr)
	expr.X.Walk(visitor)
	expr.Y.Walk(visitor)
	visitor.Exit(expr)
}

func (expr *Binary) Type() Type {
	if expr.Op.IsComparison() {
		return BoolType{}
	}
	return expr.X.Type()
}

type AddrOf struct {
	isExpr
	parseutil.StartEndPos

	X Expr
}

var _ Expr = &AddrOf{}

func NewAddrOf(pos parseutil.StartEndPos, x Expr) *AddrOf {
	return &AddrOf{StartEndPos: pos, X: x}
}

func (expr *AddrOf) Walk(visitor Visitor) {
	visitor.Enter(expr)
	expr.X.Walk(visitor)
	visitor.Exit(expr)
}

func (expr *AddrOf) Type() Type {
	return PointerType{Elem: expr.X.Type()}
}

type Deref struct {
	isExpr
	parseutil.StartEndPos

	X Expr
}

var _ Expr = &Deref{}

func NewDeref(pos parseutil.StartEndPos, x Expr) *Deref {
	return &Deref{StartEndPos: pos, X: x}
}

func (expr *Deref) Walk(visitor Visitor) {
	visitor.Enter(expr)
	expr.X.Walk(visitor)
	visitor.Exit(expr)
}

func (expr *Deref) Type() Type {
	ptr, ok := expr.X.Type().(PointerType)
	if !ok {
		panic("should never happen")
	}
	return ptr.Elem
}

// FieldRef selects a field from a record-typed base.  Base is either a
// record-valued expression or a pointer to record (implicit indirection,
// matching the sender/receiver access patterns the lowerer emits).
type FieldRef struct {
	isExpr
	parseutil.StartEndPos

	Base  Expr
	Field *Field
}

var _ Expr = &FieldRef{}

func NewFieldRef(pos parseutil.StartEndPos, base Expr, field *Field) *FieldRef {
	return &FieldRef{StartEndPos: pos, Base: base, Field: field}
}

func (expr *FieldRef) Walk(visitor Visitor) {
	visitor.Enter(expr)
	expr.Base.Walk(visitor)
	visitor.Exit(expr)
}

func (expr *FieldRef) Type() Type {
	return expr.Field.Type
}

type Index struct {
	isExpr
	parseutil.StartEndPos

	Base Expr
	Idx  Expr
}

var _ Expr = &Index{}

func NewIndex(pos parseutil.StartEndPos, base Expr, idx Expr) *Index {
	return &Index{StartEndPos: pos, Base: base, Idx: idx}
}

func (expr *Index) Walk(visitor Visitor) {
	visitor.Enter(expr)
	expr.Base.Walk(visitor)
	expr.Idx.Walk(visitor)
	visitor.Exit(expr)
}

func (expr *Index) Type() Type {
	switch base := expr.Base.Type().(type) {
	case ArrayType:
		return base.Elem
	case PointerType:
		return base.Elem
	default:
		panic("should never happen")
	}
}

// Cast converts between scalar types.  Bits casts reinterpret the
// representation without conversion (same size source and destination);
// the atomic expander uses them to funnel float updates through the
// integer compare-and-swap intrinsics.
type Cast struct {
	isExpr
	parseutil.StartEndPos

	To   Type
	X    Expr
	Bits bool
}

var _ Expr = &Cast{}

func NewCast(pos parseutil.StartEndPos, to Type, x Expr) *Cast {
	return &Cast{StartEndPos: pos, To: to, X: x}
}

func NewBitCast(pos parseutil.StartEndPos, to Type, x Expr) *Cast {
	return &Cast{StartEndPos: pos, To: to, X: x, Bits: true}
}

func (expr *Cast) Walk(visitor Visitor) {
	visitor.Enter(expr)
	expr.X.Walk(visitor)
	visitor.Exit(expr)
}

func (expr *Cast) Type() Type {
	return expr.To
}

// FuncRef takes the address of a function; the only producer is parallel
// region expansion passing the outlined child to the runtime.
type FuncRef struct {
	isExpr
	parseutil.StartEndPos

	Fn *FuncDecl
}

var _ Expr = &FuncRef{}

func (ref *FuncRef) Walk(visitor Visitor) {
	visitor.Enter(ref)
	visitor.Exit(ref)
}

func (ref *FuncRef) Type() Type {
	return PointerType{Elem: VoidType{}}
}
