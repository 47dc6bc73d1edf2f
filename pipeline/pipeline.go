package pipeline

import (
	"github.com/pattyshack/gt/parseutil"

	"github.com/pattyshack/towhee/expand"
	"github.com/pattyshack/towhee/gomp"
	"github.com/pattyshack/towhee/ir"
	"github.com/pattyshack/towhee/lower"
	"github.com/pattyshack/towhee/platform"
)

// Lower rewrites every function in the unit from directive-annotated form
// into plain sequential code plus libgomp calls.  Functions are processed
// independently and in parallel; named critical sections share mutexes
// through a unit-wide table.
//
// The unit grows new internal functions (outlined parallel bodies) and new
// globals (critical section mutexes) as a side effect.
func Lower(
	unit *ir.Unit,
	targetPlatform platform.Platform,
	emitter *parseutil.Emitter,
) {
	// Outlined children are appended to unit.Funcs during lowering; only
	// the functions present at entry carry directives.
	funcs := make([]*ir.FuncDecl, len(unit.Funcs))
	copy(funcs, unit.Funcs)

	fnEmitters := map[*ir.FuncDecl]*parseutil.Emitter{}
	for _, fn := range funcs {
		fnEmitters[fn] = &parseutil.Emitter{}
	}

	mutexes := gomp.NewMutexTable()

	ParallelProcess(
		funcs,
		func(fn *ir.FuncDecl) {
			fnEmitter := fnEmitters[fn]

			passes := [][]Pass[*ir.FuncDecl]{
				{lower.NewStructuredBlockChecker(fnEmitter)},
				{lower.NewLowerer(fnEmitter, targetPlatform, mutexes, unit)},
			}

			Process(fn, passes, fnEmitter.HasErrors)
		})

	unit.Globals = append(unit.Globals, mutexes.Vars()...)

	ParallelProcess(
		funcs,
		func(fn *ir.FuncDecl) {
			fnEmitter := fnEmitters[fn]
			if fnEmitter.HasErrors() {
				return
			}

			ir.BuildCFG(fn, fnEmitter)
			if fnEmitter.HasErrors() {
				return
			}

			expander := expand.NewExpander(fnEmitter, targetPlatform)
			expander.Process(fn)
		})

	for _, fn := range funcs {
		emitter.EmitErrors(fnEmitters[fn].Errors()...)
	}
}
