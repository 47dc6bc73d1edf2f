package ir

import (
	"fmt"
	"sync"

	"github.com/pattyshack/gt/parseutil"
)

type FuncDecl struct {
	parseutil.StartEndPos

	Name       string
	Params     []*Var
	ReturnType Type

	// Statement-tree form; consumed by BuildCFG.
	Body []Stmt

	// Local declarations hoisted out of block scopes by BuildCFG, plus
	// temporaries introduced afterwards.
	Locals []*Var

	// Basic-block form; populated by BuildCFG.
	Blocks []*Block

	// Outlined child functions have internal linkage and a back link to the
	// function they were extracted from.
	Internal bool
	Parent   *FuncDecl

	nextChildId int
	nextTempId  int
}

var _ Node = &FuncDecl{}
var _ Validator = &FuncDecl{}

func (def *FuncDecl) Walk(visitor Visitor) {
	visitor.Enter(def)
	for _, stmt := range def.Body {
		stmt.Walk(visitor)
	}
	for _, block := range def.Blocks {
		block.Walk(visitor)
	}
	visitor.Exit(def)
}

func (def *FuncDecl) Validate(emitter *parseutil.Emitter) {
	if def.Name == "" {
		emitter.Emit(def.Loc(), "empty function name")
	}
	if def.ReturnType == nil {
		emitter.Emit(def.Loc(), "function (%s) has no return type", def.Name)
	}
}

// ChildFnName returns the next outlined child function name.  The suffix
// numbering is per parent function.
func (def *FuncDecl) ChildFnName() string {
	name := fmt.Sprintf("%s_omp_fn.%d", def.Name, def.nextChildId)
	def.nextChildId++
	return name
}

// NewTemp creates a fresh function-local temporary.
func (def *FuncDecl) NewTemp(prefix string, t Type) *Var {
	v := &Var{
		Name: fmt.Sprintf(".%s%d", prefix, def.nextTempId),
		Type: t,
	}
	def.nextTempId++
	def.Locals = append(def.Locals, v)
	return v
}

type Unit struct {
	FileName string

	Funcs   []*FuncDecl
	Globals []*Var

	mutex sync.Mutex
}

func NewUnit(fileName string) *Unit {
	return &Unit{FileName: fileName}
}

// AddFunc registers an outlined child function.  Safe for concurrent use;
// functions of a unit may be processed in parallel.
func (unit *Unit) AddFunc(fn *FuncDecl) {
	unit.mutex.Lock()
	defer unit.mutex.Unlock()
	unit.Funcs = append(unit.Funcs, fn)
}

func (unit *Unit) FuncByName(name string) *FuncDecl {
	unit.mutex.Lock()
	defer unit.mutex.Unlock()
	for _, fn := range unit.Funcs {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}
