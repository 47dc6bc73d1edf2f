package main

import (
	"fmt"
	"os"

	"github.com/pattyshack/gt/parseutil"
	"github.com/spf13/pflag"

	"github.com/pattyshack/towhee/ir"
	"github.com/pattyshack/towhee/pipeline"
	"github.com/pattyshack/towhee/platform"
)

var (
	platformConfig = pflag.String(
		"platform-config",
		"",
		"yaml target description; defaults to the built-in amd64 target")
	showAnnotated = pflag.Bool(
		"show-annotated",
		true,
		"print functions before lowering")
)

func main() {
	pflag.Parse()

	var targetPlatform platform.Platform = platform.Amd64()
	if *platformConfig != "" {
		spec, err := platform.LoadConfig(*platformConfig)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		targetPlatform = spec
	}

	unit := sampleUnit()

	fmt.Println("Target:", targetPlatform.Name())

	if *showAnnotated {
		for _, fn := range unit.Funcs {
			fmt.Println("=====================")
			fmt.Println("Annotated:", fn.Name)
			fmt.Println("---------------------")
			fmt.Println(ir.TreeString(fn, "  "))
		}
	}

	emitter := &parseutil.Emitter{}
	pipeline.Lower(unit, targetPlatform, emitter)

	for _, fn := range unit.Funcs {
		fmt.Println("=====================")
		fmt.Println("Lowered:", fn.Name)
		fmt.Println("---------------------")
		fmt.Println(ir.TreeString(fn, "  "))
	}

	errs := emitter.Errors()
	if len(errs) > 0 {
		fmt.Println("---------------------------")
		fmt.Println("Found", len(errs), "errors:")
		fmt.Println("---------------------------")
		for idx, err := range errs {
			fmt.Printf("error %d: %s\n", idx, err)
		}
		os.Exit(1)
	}
}

func sampleUnit() *ir.Unit {
	unit := ir.NewUnit("demo")
	unit.Funcs = append(unit.Funcs, dotFunc(), tallyFunc())
	return unit
}

// dotFunc is the annotated form of:
//
//	double dot(int n, double *a, double *b) {
//	  double sum = 0;
//	  #pragma omp parallel for reduction(+:sum) schedule(static)
//	  for (int i = 0; i < n; i += 1)
//	    sum = sum + a[i] * b[i];
//	  return sum;
//	}
func dotFunc() *ir.FuncDecl {
	pos := ir.NewPos("demo", 1)

	n := &ir.Var{Name: "n", Type: ir.I32}
	a := &ir.Var{Name: "a", Type: ir.NewPointerType(ir.F64)}
	b := &ir.Var{Name: "b", Type: ir.NewPointerType(ir.F64)}
	sum := &ir.Var{Name: "sum", Type: ir.F64}
	i := &ir.Var{Name: "i", Type: ir.I32}

	elem := func(base *ir.Var) ir.Expr {
		return ir.NewIndex(
			pos,
			ir.NewVarRef(pos, base),
			ir.NewVarRef(pos, i))
	}

	loop := &ir.ForConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.ScheduleClause{StartEndPos: pos, Kind: ir.ScheduleStatic},
		},
		Iter:   i,
		Init:   ir.NewIntLit(pos, 0, ir.I32),
		CondOp: ir.Lt,
		Bound:  ir.NewVarRef(pos, n),
		Step:   ir.NewIntLit(pos, 1, ir.I32),
		Body: []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, sum),
				ir.NewBinary(
					pos,
					ir.Add,
					ir.NewVarRef(pos, sum),
					ir.NewBinary(pos, ir.Mul, elem(a), elem(b)))),
		},
	}

	parallel := &ir.ParallelConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.ReductionClause{StartEndPos: pos, Op: ir.Add, Var: sum},
			&ir.SharedClause{StartEndPos: pos, Var: a},
			&ir.SharedClause{StartEndPos: pos, Var: b},
			&ir.SharedClause{StartEndPos: pos, Var: n},
		},
		Body: []ir.Stmt{loop},
	}

	return &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "dot",
		Params:      []*ir.Var{n, a, b},
		ReturnType:  ir.F64,
		Locals:      []*ir.Var{sum, i},
		Body: []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, sum),
				&ir.FloatLit{StartEndPos: pos, FloatType: ir.F64}),
			parallel,
			&ir.ReturnStmt{
				StartEndPos: pos,
				Value:       ir.NewVarRef(pos, sum),
			},
		},
	}
}

// tallyFunc accumulates into a shared counter with an atomic update:
//
//	int tally(int n, int *data) {
//	  int total = 0;
//	  #pragma omp parallel for
//	  for (int i = 0; i < n; i += 1) {
//	    #pragma omp atomic
//	    total += data[i];
//	  }
//	  return total;
//	}
func tallyFunc() *ir.FuncDecl {
	pos := ir.NewPos("demo", 20)

	n := &ir.Var{Name: "n", Type: ir.I32}
	data := &ir.Var{Name: "data", Type: ir.NewPointerType(ir.I32)}
	total := &ir.Var{Name: "total", Type: ir.I32}
	i := &ir.Var{Name: "i", Type: ir.I32}

	atomic := &ir.AtomicConstruct{
		StartEndPos: pos,
		X:           ir.NewVarRef(pos, total),
		RHS: ir.NewBinary(
			pos,
			ir.Add,
			ir.NewVarRef(pos, total),
			ir.NewIndex(
				pos,
				ir.NewVarRef(pos, data),
				ir.NewVarRef(pos, i))),
	}

	loop := &ir.ForConstruct{
		StartEndPos: pos,
		Iter:        i,
		Init:        ir.NewIntLit(pos, 0, ir.I32),
		CondOp:      ir.Lt,
		Bound:       ir.NewVarRef(pos, n),
		Step:        ir.NewIntLit(pos, 1, ir.I32),
		Body:        []ir.Stmt{atomic},
	}

	parallel := &ir.ParallelConstruct{
		StartEndPos: pos,
		Clauses: ir.ClauseList{
			&ir.SharedClause{StartEndPos: pos, Var: total},
			&ir.SharedClause{StartEndPos: pos, Var: data},
			&ir.SharedClause{StartEndPos: pos, Var: n},
		},
		Body: []ir.Stmt{loop},
	}

	return &ir.FuncDecl{
		StartEndPos: pos,
		Name:        "tally",
		Params:      []*ir.Var{n, data},
		ReturnType:  ir.I32,
		Locals:      []*ir.Var{total, i},
		Body: []ir.Stmt{
			ir.NewAssign(
				pos,
				ir.NewVarRef(pos, total),
				ir.NewIntLit(pos, 0, ir.I32)),
			parallel,
			&ir.ReturnStmt{
				StartEndPos: pos,
				Value:       ir.NewVarRef(pos, total),
			},
		},
	}
}
