package ir

import (
	"github.com/pattyshack/gt/parseutil"
)

type ScheduleKind int

const (
	ScheduleStatic ScheduleKind = iota
	ScheduleDynamic
	ScheduleGuided
	ScheduleRuntime
)

func (kind ScheduleKind) String() string {
	switch kind {
	case ScheduleStatic:
		return "static"
	case ScheduleDynamic:
		return "dynamic"
	case ScheduleGuided:
		return "guided"
	case ScheduleRuntime:
		return "runtime"
	default:
		panic("should never happen")
	}
}

type DefaultPolicy int

const (
	DefaultUnspecified DefaultPolicy = iota
	DefaultShared
	DefaultNone
)

type Clause interface {
	Node
	isClauseNode()
}

type isClause struct{}

func (isClause) isClauseNode() {}

type SharedClause struct {
	isClause
	parseutil.StartEndPos

	Var *Var
}

var _ Clause = &SharedClause{}

func (clause *SharedClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	visitor.Exit(clause)
}

type PrivateClause struct {
	isClause
	parseutil.StartEndPos

	Var *Var
}

var _ Clause = &PrivateClause{}

func (clause *PrivateClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	visitor.Exit(clause)
}

type FirstprivateClause struct {
	isClause
	parseutil.StartEndPos

	Var *Var
}

var _ Clause = &FirstprivateClause{}

func (clause *FirstprivateClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	visitor.Exit(clause)
}

type LastprivateClause struct {
	isClause
	parseutil.StartEndPos

	Var *Var
}

var _ Clause = &LastprivateClause{}

func (clause *LastprivateClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	visitor.Exit(clause)
}

type ReductionClause struct {
	isClause
	parseutil.StartEndPos

	Op  BinaryOp
	Var *Var
}

var _ Clause = &ReductionClause{}

func (clause *ReductionClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	visitor.Exit(clause)
}

type CopyinClause struct {
	isClause
	parseutil.StartEndPos

	Var *Var
}

var _ Clause = &CopyinClause{}

func (clause *CopyinClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	visitor.Exit(clause)
}

type CopyprivateClause struct {
	isClause
	parseutil.StartEndPos

	Var *Var
}

var _ Clause = &CopyprivateClause{}

func (clause *CopyprivateClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	visitor.Exit(clause)
}

type IfClause struct {
	isClause
	parseutil.StartEndPos

	Cond Expr
}

var _ Clause = &IfClause{}

func (clause *IfClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	clause.Cond.Walk(visitor)
	visitor.Exit(clause)
}

type NumThreadsClause struct {
	isClause
	parseutil.StartEndPos

	Count Expr
}

var _ Clause = &NumThreadsClause{}

func (clause *NumThreadsClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	clause.Count.Walk(visitor)
	visitor.Exit(clause)
}

type ScheduleClause struct {
	isClause
	parseutil.StartEndPos

	Kind  ScheduleKind
	Chunk Expr // nil when unspecified; must be nil for runtime
}

var _ Clause = &ScheduleClause{}

func (clause *ScheduleClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	if clause.Chunk != nil {
		clause.Chunk.Walk(visitor)
	}
	visitor.Exit(clause)
}

type NowaitClause struct {
	isClause
	parseutil.StartEndPos
}

var _ Clause = &NowaitClause{}

func (clause *NowaitClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	visitor.Exit(clause)
}

type OrderedClause struct {
	isClause
	parseutil.StartEndPos
}

var _ Clause = &OrderedClause{}

func (clause *OrderedClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	visitor.Exit(clause)
}

type DefaultClause struct {
	isClause
	parseutil.StartEndPos

	Policy DefaultPolicy
}

var _ Clause = &DefaultClause{}

func (clause *DefaultClause) Walk(visitor Visitor) {
	visitor.Enter(clause)
	visitor.Exit(clause)
}

type ClauseList []Clause

func (list ClauseList) Walk(visitor Visitor) {
	for _, clause := range list {
		clause.Walk(visitor)
	}
}

func (list ClauseList) HasNowait() bool {
	for _, clause := range list {
		if _, ok := clause.(*NowaitClause); ok {
			return true
		}
	}
	return false
}

func (list ClauseList) HasOrdered() bool {
	for _, clause := range list {
		if _, ok := clause.(*OrderedClause); ok {
			return true
		}
	}
	return false
}

func (list ClauseList) Schedule() *ScheduleClause {
	for _, clause := range list {
		if sched, ok := clause.(*ScheduleClause); ok {
			return sched
		}
	}
	return nil
}

func (list ClauseList) If() *IfClause {
	for _, clause := range list {
		if cond, ok := clause.(*IfClause); ok {
			return cond
		}
	}
	return nil
}

func (list ClauseList) NumThreads() *NumThreadsClause {
	for _, clause := range list {
		if count, ok := clause.(*NumThreadsClause); ok {
			return count
		}
	}
	return nil
}

func (list ClauseList) Default() DefaultPolicy {
	for _, clause := range list {
		if def, ok := clause.(*DefaultClause); ok {
			return def.Policy
		}
	}
	return DefaultUnspecified
}

func (list ClauseList) Copyprivates() []*CopyprivateClause {
	var result []*CopyprivateClause
	for _, clause := range list {
		if cp, ok := clause.(*CopyprivateClause); ok {
			result = append(result, cp)
		}
	}
	return result
}

func (list ClauseList) Reductions() []*ReductionClause {
	var result []*ReductionClause
	for _, clause := range list {
		if red, ok := clause.(*ReductionClause); ok {
			result = append(result, red)
		}
	}
	return result
}

// NamesVar reports whether any data-sharing clause in the list names v.
func (list ClauseList) NamesVar(v *Var) bool {
	for _, clause := range list {
		switch c := clause.(type) {
		case *SharedClause:
			if c.Var == v {
				return true
			}
		case *PrivateClause:
			if c.Var == v {
				return true
			}
		case *FirstprivateClause:
			if c.Var == v {
				return true
			}
		case *LastprivateClause:
			if c.Var == v {
				return true
			}
		case *ReductionClause:
			if c.Var == v {
				return true
			}
		case *CopyinClause:
			if c.Var == v {
				return true
			}
		case *CopyprivateClause:
			if c.Var == v {
				return true
			}
		}
	}
	return false
}
