package ir

import (
	"github.com/pattyshack/gt/parseutil"
)

type ConstructKind int

const (
	KindParallel ConstructKind = iota
	KindFor
	KindSections
	KindSection
	KindSingle
	KindMaster
	KindOrdered
	KindCritical
	KindAtomic
)

func (kind ConstructKind) String() string {
	switch kind {
	case KindParallel:
		return "parallel"
	case KindFor:
		return "for"
	case KindSections:
		return "sections"
	case KindSection:
		return "section"
	case KindSingle:
		return "single"
	case KindMaster:
		return "master"
	case KindOrdered:
		return "ordered"
	case KindCritical:
		return "critical"
	case KindAtomic:
		return "atomic"
	default:
		panic("should never happen")
	}
}

// Construct is a structured directive as produced by the front end: a kind,
// a clause list, and a body the lowerer consumes.  After lowering, none
// remain; the statement stream instead carries flat directive markers
// (ParallelDirective etc.) paired with OMPReturnStmt.
type Construct interface {
	Stmt
	isConstructNode()

	ConstructKind() ConstructKind
	ConstructClauses() ClauseList
}

type isConstruct struct {
	isStmt
}

func (isConstruct) isConstructNode() {}

type ParallelConstruct struct {
	isConstruct
	parseutil.StartEndPos

	Clauses ClauseList
	Body    []Stmt
}

var _ Construct = &ParallelConstruct{}

func (p *ParallelConstruct) ConstructKind() ConstructKind {
	return KindParallel
}

func (p *ParallelConstruct) ConstructClauses() ClauseList {
	return p.Clauses
}

func (p *ParallelConstruct) Walk(visitor Visitor) {
	visitor.Enter(p)
	p.Clauses.Walk(visitor)
	for _, stmt := range p.Body {
		stmt.Walk(visitor)
	}
	visitor.Exit(p)
}

// ForConstruct carries the canonical loop triple alongside its body.  The
// front end guarantees: Iter is a scalar integer variable; Init assigns it;
// the condition is Iter {<,>,<=,>=} Bound; the increment is Iter += Step or
// Iter -= Step (Decrement true).
type ForConstruct struct {
	isConstruct
	parseutil.StartEndPos

	Clauses ClauseList

	Iter      *Var
	Init      Expr
	CondOp    BinaryOp
	Bound     Expr
	Step      Expr
	Decrement bool

	Body []Stmt
}

var _ Construct = &ForConstruct{}

func (f *ForConstruct) ConstructKind() ConstructKind {
	return KindFor
}

func (f *ForConstruct) ConstructClauses() ClauseList {
	return f.Clauses
}

func (f *ForConstruct) Walk(visitor Visitor) {
	visitor.Enter(f)
	f.Clauses.Walk(visitor)
	f.Init.Walk(visitor)
	f.Bound.Walk(visitor)
	f.Step.Walk(visitor)
	for _, stmt := range f.Body {
		stmt.Walk(visitor)
	}
	visitor.Exit(f)
}

type SectionsConstruct struct {
	isConstruct
	parseutil.StartEndPos

	Clauses  ClauseList
	Sections []*SectionConstruct
}

var _ Construct = &SectionsConstruct{}

func (s *SectionsConstruct) ConstructKind() ConstructKind {
	return KindSections
}

func (s *SectionsConstruct) ConstructClauses() ClauseList {
	return s.Clauses
}

func (s *SectionsConstruct) Walk(visitor Visitor) {
	visitor.Enter(s)
	s.Clauses.Walk(visitor)
	for _, section := range s.Sections {
		section.Walk(visitor)
	}
	visitor.Exit(s)
}

type SectionConstruct struct {
	isConstruct
	parseutil.StartEndPos

	Body []Stmt
}

var _ Construct = &SectionConstruct{}

func (s *SectionConstruct) ConstructKind() ConstructKind {
	return KindSection
}

func (s *SectionConstruct) ConstructClauses() ClauseList {
	return nil
}

func (s *SectionConstruct) Walk(visitor Visitor) {
	visitor.Enter(s)
	for _, stmt := range s.Body {
		stmt.Walk(visitor)
	}
	visitor.Exit(s)
}

type SingleConstruct struct {
	isConstruct
	parseutil.StartEndPos

	Clauses ClauseList
	Body    []Stmt
}

var _ Construct = &SingleConstruct{}

func (s *SingleConstruct) ConstructKind() ConstructKind {
	return KindSingle
}

func (s *SingleConstruct) ConstructClauses() ClauseList {
	return s.Clauses
}

func (s *SingleConstruct) Walk(visitor Visitor) {
	visitor.Enter(s)
	s.Clauses.Walk(visitor)
	for _, stmt := range s.Body {
		stmt.Walk(visitor)
	}
	visitor.Exit(s)
}

type MasterConstruct struct {
	isConstruct
	parseutil.StartEndPos

	Body []Stmt
}

var _ Construct = &MasterConstruct{}

func (m *MasterConstruct) ConstructKind() ConstructKind {
	return KindMaster
}

func (m *MasterConstruct) ConstructClauses() ClauseList {
	return nil
}

func (m *MasterConstruct) Walk(visitor Visitor) {
	visitor.Enter(m)
	for _, stmt := range m.Body {
		stmt.Walk(visitor)
	}
	visitor.Exit(m)
}

type OrderedConstruct struct {
	isConstruct
	parseutil.StartEndPos

	Body []Stmt
}

var _ Construct = &OrderedConstruct{}

func (o *OrderedConstruct) ConstructKind() ConstructKind {
	return KindOrdered
}

func (o *OrderedConstruct) ConstructClauses() ClauseList {
	return nil
}

func (o *OrderedConstruct) Walk(visitor Visitor) {
	visitor.Enter(o)
	for _, stmt := range o.Body {
		stmt.Walk(visitor)
	}
	visitor.Exit(o)
}

type CriticalConstruct struct {
	isConstruct
	parseutil.StartEndPos

	Name string // "" for the unnamed critical
	Body []Stmt
}

var _ Construct = &CriticalConstruct{}

func (c *CriticalConstruct) ConstructKind() ConstructKind {
	return KindCritical
}

func (c *CriticalConstruct) ConstructClauses() ClauseList {
	return nil
}

func (c *CriticalConstruct) Walk(visitor Visitor) {
	visitor.Enter(c)
	for _, stmt := range c.Body {
		stmt.Walk(visitor)
	}
	visitor.Exit(c)
}

// AtomicConstruct is an atomic update X = X OP ... in its front-end form.
// The lowerer splits it into an AtomicLoadStmt / AtomicStoreStmt pair.
type AtomicConstruct struct {
	isConstruct
	parseutil.StartEndPos

	X   Expr // updated lvalue
	RHS Expr // full right-hand side, referencing X
}

var _ Construct = &AtomicConstruct{}

func (a *AtomicConstruct) ConstructKind() ConstructKind {
	return KindAtomic
}

func (a *AtomicConstruct) ConstructClauses() ClauseList {
	return nil
}

func (a *AtomicConstruct) Walk(visitor Visitor) {
	visitor.Enter(a)
	a.X.Walk(visitor)
	a.RHS.Walk(visitor)
	visitor.Exit(a)
}

// Directive markers.  Lowering flattens every construct into a marker
// statement followed by the lowered body inline, terminated by an
// OMPReturnStmt.  The CFG builder ends a basic block after each marker and
// the region-tree builder matches markers with their returns.

type Directive interface {
	Stmt
	isDirectiveNode()

	DirectiveKind() ConstructKind
}

type isDirective struct {
	isStmt
}

func (isDirective) isDirectiveNode() {}

type ParallelDirective struct {
	isDirective
	parseutil.StartEndPos

	Clauses ClauseList

	// Populated during scanning.
	ChildFn *FuncDecl
	Sender  *Var // nil when no variable crosses the boundary
}

var _ Directive = &ParallelDirective{}

func (d *ParallelDirective) DirectiveKind() ConstructKind {
	return KindParallel
}

func (d *ParallelDirective) Walk(visitor Visitor) {
	visitor.Enter(d)
	d.Clauses.Walk(visitor)
	visitor.Exit(d)
}

// ForDirective carries the canonicalized loop descriptor: the condition has
// been normalized to strict < or >, the bound adjusted accordingly, and the
// step negated for decrementing loops.
type ForDirective struct {
	isDirective
	parseutil.StartEndPos

	Clauses ClauseList

	Iter  *Var
	N1    Expr
	N2    Expr
	Step  Expr
	Cond  BinaryOp // Lt or Gt
	Sched ScheduleKind
	Chunk Expr // nil when unspecified

	Ordered bool
}

var _ Directive = &ForDirective{}

func (d *ForDirective) DirectiveKind() ConstructKind {
	return KindFor
}

func (d *ForDirective) Walk(visitor Visitor) {
	visitor.Enter(d)
	d.Clauses.Walk(visitor)
	d.N1.Walk(visitor)
	d.N2.Walk(visitor)
	d.Step.Walk(visitor)
	if d.Chunk != nil {
		d.Chunk.Walk(visitor)
	}
	visitor.Exit(d)
}

type SectionsDirective struct {
	isDirective
	parseutil.StartEndPos

	Clauses ClauseList
	Count   int
}

var _ Directive = &SectionsDirective{}

func (d *SectionsDirective) DirectiveKind() ConstructKind {
	return KindSections
}

func (d *SectionsDirective) Walk(visitor Visitor) {
	visitor.Enter(d)
	d.Clauses.Walk(visitor)
	visitor.Exit(d)
}

type SectionDirective struct {
	isDirective
	parseutil.StartEndPos

	Index int // 1-based; the dispatch token for this section
}

var _ Directive = &SectionDirective{}

func (d *SectionDirective) DirectiveKind() ConstructKind {
	return KindSection
}

func (d *SectionDirective) Walk(visitor Visitor) {
	visitor.Enter(d)
	visitor.Exit(d)
}

type SingleDirective struct {
	isDirective
	parseutil.StartEndPos

	Clauses ClauseList
}

var _ Directive = &SingleDirective{}

func (d *SingleDirective) DirectiveKind() ConstructKind {
	return KindSingle
}

func (d *SingleDirective) Walk(visitor Visitor) {
	visitor.Enter(d)
	d.Clauses.Walk(visitor)
	visitor.Exit(d)
}

type MasterDirective struct {
	isDirective
	parseutil.StartEndPos
}

var _ Directive = &MasterDirective{}

func (d *MasterDirective) DirectiveKind() ConstructKind {
	return KindMaster
}

func (d *MasterDirective) Walk(visitor Visitor) {
	visitor.Enter(d)
	visitor.Exit(d)
}

type OrderedDirective struct {
	isDirective
	parseutil.StartEndPos
}

var _ Directive = &OrderedDirective{}

func (d *OrderedDirective) DirectiveKind() ConstructKind {
	return KindOrdered
}

func (d *OrderedDirective) Walk(visitor Visitor) {
	visitor.Enter(d)
	visitor.Exit(d)
}

type CriticalDirective struct {
	isDirective
	parseutil.StartEndPos

	Name string
}

var _ Directive = &CriticalDirective{}

func (d *CriticalDirective) DirectiveKind() ConstructKind {
	return KindCritical
}

func (d *CriticalDirective) Walk(visitor Visitor) {
	visitor.Enter(d)
	visitor.Exit(d)
}

// AtomicLoadStmt opens an atomic region: Tmp receives the current value at
// Addr.  The matching AtomicStoreStmt closes it.
type AtomicLoadStmt struct {
	isDirective
	parseutil.StartEndPos

	Tmp  *Var
	Addr Expr // pointer to the updated location
}

var _ Directive = &AtomicLoadStmt{}

func (d *AtomicLoadStmt) DirectiveKind() ConstructKind {
	return KindAtomic
}

func (d *AtomicLoadStmt) Walk(visitor Visitor) {
	visitor.Enter(d)
	d.Addr.Walk(visitor)
	visitor.Exit(d)
}

type AtomicStoreStmt struct {
	isDirective
	parseutil.StartEndPos

	Value Expr
}

var _ Directive = &AtomicStoreStmt{}

func (d *AtomicStoreStmt) DirectiveKind() ConstructKind {
	return KindAtomic
}

func (d *AtomicStoreStmt) Walk(visitor Visitor) {
	visitor.Enter(d)
	d.Value.Walk(visitor)
	visitor.Exit(d)
}

// OMPReturnStmt marks the end of a lowered construct.  For worksharing
// constructs the expander turns it into the implicit barrier unless Nowait
// is set; for a parallel it becomes the child function's return.
type OMPReturnStmt struct {
	isStmt
	parseutil.StartEndPos

	Kind   ConstructKind
	Nowait bool
}

var _ Stmt = &OMPReturnStmt{}

func (stmt *OMPReturnStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	visitor.Exit(stmt)
}

// OMPContinueStmt marks the loop-back point of a lowered loop or the
// dispatch point of lowered sections.
type OMPContinueStmt struct {
	isStmt
	parseutil.StartEndPos
}

var _ Stmt = &OMPContinueStmt{}

func (stmt *OMPContinueStmt) Walk(visitor Visitor) {
	visitor.Enter(stmt)
	visitor.Exit(stmt)
}
