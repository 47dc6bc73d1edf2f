package ir

type Linkage int

const (
	LinkageLocal Linkage = iota
	LinkageStatic
	LinkageExtern
)

// Var is a named storage location.  Vars have identity; every VarRef in the
// IR points at the one Var it names, so rewriting a reference never requires
// name lookup.
type Var struct {
	Name string
	Type Type

	AddrTaken   bool
	IsReference bool
	Volatile    bool
	Const       bool

	Linkage Linkage

	// The variable is an alias for another expression.  Used for variably
	// sized arrays whose backing storage is allocated separately.
	ValueExpr Expr

	// Static/extern variable with one copy per thread.  Only such variables
	// may appear in copyin clauses.
	ThreadPrivate bool
}

func (v *Var) HasLinkage() bool {
	return v.Linkage != LinkageLocal
}

func (v *Var) IsVariablySized() bool {
	arr, ok := v.Type.(ArrayType)
	return ok && arr.IsVariablySized()
}
