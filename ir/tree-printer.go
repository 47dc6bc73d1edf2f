package ir

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

const (
	indent = "  "
)

func TreeString(node Node, indent string) string {
	buffer := &bytes.Buffer{}
	_ = PrintTree(buffer, node, indent)
	return buffer.String()
}

func PrintTree(output io.Writer, node Node, indent string) error {
	printer := &treePrinter{
		indent:     indent,
		labelStack: []string{},
		writer:     output,
	}
	node.Walk(printer)
	return printer.err
}

type treePrinter struct {
	indent     string
	labelStack []string
	writer     io.Writer
	err        error
}

func (printer *treePrinter) write(format string, args ...interface{}) {
	if printer.err != nil {
		return
	}

	if len(args) == 0 {
		_, printer.err = printer.writer.Write([]byte(format))
	} else {
		_, printer.err = fmt.Fprintf(printer.writer, format, args...)
	}
}

func (printer *treePrinter) writeLabel() {
	label := ""
	if len(printer.labelStack) > 0 {
		label = printer.labelStack[len(printer.labelStack)-1]
		printer.labelStack = printer.labelStack[:len(printer.labelStack)-1]
	}

	if len(label) > 0 {
		printer.write("\n")
		printer.write(printer.indent)
		printer.write(label)
	} else {
		printer.write(printer.indent)
	}
}

func (printer *treePrinter) endNode() {
	printer.indent = printer.indent[:len(printer.indent)-len(indent)]
	printer.write("\n")
	printer.write(printer.indent)
	printer.write("]")
}

func (printer *treePrinter) push(labels ...string) {
	printer.indent += indent

	for len(labels) > 0 {
		last := labels[len(labels)-1]
		labels = labels[:len(labels)-1]

		printer.labelStack = append(printer.labelStack, last)
	}
}

func elementLabels(elementType string, size int) []string {
	labels := make([]string, 0, size)
	for i := 0; i < size; i++ {
		labels = append(labels, fmt.Sprintf("%s%d=", elementType, i))
	}
	return labels
}

func varString(v *Var) string {
	if v == nil {
		return "(nil)"
	}
	return v.Name + ":" + v.Type.String()
}

func (printer *treePrinter) Enter(n Node) {
	printer.writeLabel()

	switch node := n.(type) {
	case *FuncDecl:
		params := make([]string, 0, len(node.Params))
		for _, param := range node.Params {
			params = append(params, varString(param))
		}
		printer.write(
			"[FuncDecl: Name=%s Params=(%s) ReturnType=%s",
			node.Name,
			strings.Join(params, ", "),
			node.ReturnType)
		labels := elementLabels("Stmt", len(node.Body))
		labels = append(labels, elementLabels("Block", len(node.Blocks))...)
		printer.push(labels...)

	case *Block:
		children := make([]string, 0, len(node.Children))
		for _, child := range node.Children {
			children = append(children, child.Label)
		}
		printer.write(
			"[Block: Label=%s Children=(%s)",
			node.Label,
			strings.Join(children, ", "))
		printer.push(elementLabels("Stmt", len(node.Stmts))...)

	case *AssignStmt:
		printer.write("[AssignStmt:")
		printer.push("LHS=", "RHS=")
	case *CallStmt:
		result := ""
		if node.Result != nil {
			result = " Result=" + varString(node.Result)
		}
		printer.write("[CallStmt: Name=%s%s", node.Name, result)
		if len(node.Args) == 0 {
			printer.write("]")
		} else {
			printer.push(elementLabels("Argument", len(node.Args))...)
		}
	case *LabelStmt:
		printer.write("[LabelStmt: Name=%s]", node.Name)
	case *GotoStmt:
		printer.write("[GotoStmt: Label=%s]", node.Label)
	case *CondStmt:
		printer.write("[CondStmt: Label=%s", node.Label)
		printer.push("Cond=")
	case *SwitchStmt:
		cases := make([]string, 0, len(node.Cases))
		for _, switchCase := range node.Cases {
			cases = append(
				cases,
				fmt.Sprintf("%d:%s", switchCase.Value, switchCase.Label))
		}
		printer.write(
			"[SwitchStmt: Cases=(%s) Default=%s",
			strings.Join(cases, ", "),
			node.DefaultLabel)
		printer.push("Index=")
	case *ReturnStmt:
		if node.Value == nil {
			printer.write("[ReturnStmt]")
		} else {
			printer.write("[ReturnStmt:")
			printer.push("Value=")
		}
	case *NopStmt:
		printer.write("[NopStmt]")
	case *TrapStmt:
		printer.write("[TrapStmt]")
	case *BlockStmt:
		vars := make([]string, 0, len(node.Vars))
		for _, v := range node.Vars {
			vars = append(vars, varString(v))
		}
		printer.write("[BlockStmt: Vars=(%s)", strings.Join(vars, ", "))
		printer.push(elementLabels("Stmt", len(node.Body))...)
	case *CatchTrapStmt:
		printer.write("[CatchTrapStmt:")
		printer.push(elementLabels("Stmt", len(node.Body))...)

	case *ParallelConstruct:
		printer.write("[ParallelConstruct:")
		labels := elementLabels("Clause", len(node.Clauses))
		labels = append(labels, elementLabels("Stmt", len(node.Body))...)
		printer.push(labels...)
	case *ForConstruct:
		incr := "+="
		if node.Decrement {
			incr = "-="
		}
		printer.write(
			"[ForConstruct: Iter=%s Cond=%s Incr=%s",
			varString(node.Iter),
			node.CondOp,
			incr)
		labels := elementLabels("Clause", len(node.Clauses))
		labels = append(labels, "Init=", "Bound=", "Step=")
		labels = append(labels, elementLabels("Stmt", len(node.Body))...)
		printer.push(labels...)
	case *SectionsConstruct:
		printer.write("[SectionsConstruct:")
		labels := elementLabels("Clause", len(node.Clauses))
		labels = append(labels, elementLabels("Section", len(node.Sections))...)
		printer.push(labels...)
	case *SectionConstruct:
		printer.write("[SectionConstruct:")
		printer.push(elementLabels("Stmt", len(node.Body))...)
	case *SingleConstruct:
		printer.write("[SingleConstruct:")
		labels := elementLabels("Clause", len(node.Clauses))
		labels = append(labels, elementLabels("Stmt", len(node.Body))...)
		printer.push(labels...)
	case *MasterConstruct:
		printer.write("[MasterConstruct:")
		printer.push(elementLabels("Stmt", len(node.Body))...)
	case *OrderedConstruct:
		printer.write("[OrderedConstruct:")
		printer.push(elementLabels("Stmt", len(node.Body))...)
	case *CriticalConstruct:
		printer.write("[CriticalConstruct: Name=%s", node.Name)
		printer.push(elementLabels("Stmt", len(node.Body))...)
	case *AtomicConstruct:
		printer.write("[AtomicConstruct:")
		printer.push("X=", "RHS=")

	case *ParallelDirective:
		child := "(nil)"
		if node.ChildFn != nil {
			child = node.ChildFn.Name
		}
		printer.write(
			"[ParallelDirective: ChildFn=%s Sender=%s",
			child,
			varString(node.Sender))
		if len(node.Clauses) == 0 {
			printer.write("]")
		} else {
			printer.push(elementLabels("Clause", len(node.Clauses))...)
		}
	case *ForDirective:
		printer.write(
			"[ForDirective: Iter=%s Cond=%s Sched=%s Ordered=%v",
			varString(node.Iter),
			node.Cond,
			node.Sched,
			node.Ordered)
		labels := elementLabels("Clause", len(node.Clauses))
		labels = append(labels, "N1=", "N2=", "Step=")
		if node.Chunk != nil {
			labels = append(labels, "Chunk=")
		}
		printer.push(labels...)
	case *SectionsDirective:
		printer.write("[SectionsDirective: Count=%d", node.Count)
		if len(node.Clauses) == 0 {
			printer.write("]")
		} else {
			printer.push(elementLabels("Clause", len(node.Clauses))...)
		}
	case *SectionDirective:
		printer.write("[SectionDirective: Index=%d]", node.Index)
	case *SingleDirective:
		printer.write("[SingleDirective:")
		if len(node.Clauses) == 0 {
			printer.write("]")
		} else {
			printer.push(elementLabels("Clause", len(node.Clauses))...)
		}
	case *MasterDirective:
		printer.write("[MasterDirective]")
	case *OrderedDirective:
		printer.write("[OrderedDirective]")
	case *CriticalDirective:
		printer.write("[CriticalDirective: Name=%s]", node.Name)
	case *AtomicLoadStmt:
		printer.write("[AtomicLoadStmt: Tmp=%s", varString(node.Tmp))
		printer.push("Addr=")
	case *AtomicStoreStmt:
		printer.write("[AtomicStoreStmt:")
		printer.push("Value=")
	case *OMPReturnStmt:
		printer.write("[OMPReturnStmt: Kind=%s Nowait=%v]", node.Kind, node.Nowait)
	case *OMPContinueStmt:
		printer.write("[OMPContinueStmt]")

	case *VarRef:
		printer.write("[VarRef: Name=%s Type=%s]", node.Var.Name, node.Var.Type)
	case *IntLit:
		printer.write("[IntLit: Value=%d Type=%s]", node.Value, node.IntType)
	case *FloatLit:
		if node.Inf {
			sign := "+"
			if node.Neg {
				sign = "-"
			}
			printer.write("[FloatLit: Value=%sinf Type=%s]", sign, node.FloatType)
		} else {
			printer.write("[FloatLit: Value=%e Type=%s]", node.Value, node.FloatType)
		}
	case *BoolLit:
		printer.write("[BoolLit: Value=%v]", node.Value)
	case *NullLit:
		printer.write("[NullLit]")
	case *Unary:
		printer.write("[Unary: Op=%s", node.Op)
		printer.push("X=")
	case *Binary:
		printer.write("[Binary: Op=%s", node.Op)
		printer.push("X=", "Y=")
	case *AddrOf:
		printer.write("[AddrOf:")
		printer.push("X=")
	case *Deref:
		printer.write("[Deref:")
		printer.push("X=")
	case *FieldRef:
		printer.write(
			"[FieldRef: Field=%s Offset=%d",
			node.Field.Name,
			node.Field.Offset)
		printer.push("Base=")
	case *Index:
		printer.write("[Index:")
		printer.push("Base=", "Idx=")
	case *Cast:
		printer.write("[Cast: To=%s Bits=%v", node.To, node.Bits)
		printer.push("X=")
	case *FuncRef:
		printer.write("[FuncRef: Fn=%s]", node.Fn.Name)

	case *SharedClause:
		printer.write("[SharedClause: Var=%s]", varString(node.Var))
	case *PrivateClause:
		printer.write("[PrivateClause: Var=%s]", varString(node.Var))
	case *FirstprivateClause:
		printer.write("[FirstprivateClause: Var=%s]", varString(node.Var))
	case *LastprivateClause:
		printer.write("[LastprivateClause: Var=%s]", varString(node.Var))
	case *ReductionClause:
		printer.write(
			"[ReductionClause: Op=%s Var=%s]",
			node.Op,
			varString(node.Var))
	case *CopyinClause:
		printer.write("[CopyinClause: Var=%s]", varString(node.Var))
	case *CopyprivateClause:
		printer.write("[CopyprivateClause: Var=%s]", varString(node.Var))
	case *IfClause:
		printer.write("[IfClause:")
		printer.push("Cond=")
	case *NumThreadsClause:
		printer.write("[NumThreadsClause:")
		printer.push("Count=")
	case *ScheduleClause:
		printer.write("[ScheduleClause: Kind=%s", node.Kind)
		if node.Chunk == nil {
			printer.write("]")
		} else {
			printer.push("Chunk=")
		}
	case *NowaitClause:
		printer.write("[NowaitClause]")
	case *OrderedClause:
		printer.write("[OrderedClause]")
	case *DefaultClause:
		policy := "shared"
		if node.Policy == DefaultNone {
			policy = "none"
		}
		printer.write("[DefaultClause: Policy=%s]", policy)

	default:
		printer.write("unhandled node: %v", n)
	}
}

func (printer *treePrinter) Exit(n Node) {
	switch node := n.(type) {
	case *FuncDecl:
		printer.endNode()
	case *Block:
		printer.endNode()

	case *AssignStmt:
		printer.endNode()
	case *CallStmt:
		if len(node.Args) > 0 {
			printer.endNode()
		}
	case *CondStmt:
		printer.endNode()
	case *SwitchStmt:
		printer.endNode()
	case *ReturnStmt:
		if node.Value != nil {
			printer.endNode()
		}
	case *BlockStmt:
		printer.endNode()
	case *CatchTrapStmt:
		printer.endNode()

	case *ParallelConstruct:
		printer.endNode()
	case *ForConstruct:
		printer.endNode()
	case *SectionsConstruct:
		printer.endNode()
	case *SectionConstruct:
		printer.endNode()
	case *SingleConstruct:
		printer.endNode()
	case *MasterConstruct:
		printer.endNode()
	case *OrderedConstruct:
		printer.endNode()
	case *CriticalConstruct:
		printer.endNode()
	case *AtomicConstruct:
		printer.endNode()

	case *ParallelDirective:
		if len(node.Clauses) > 0 {
			printer.endNode()
		}
	case *ForDirective:
		printer.endNode()
	case *SectionsDirective:
		if len(node.Clauses) > 0 {
			printer.endNode()
		}
	case *SingleDirective:
		if len(node.Clauses) > 0 {
			printer.endNode()
		}
	case *AtomicLoadStmt:
		printer.endNode()
	case *AtomicStoreStmt:
		printer.endNode()

	case *Unary:
		printer.endNode()
	case *Binary:
		printer.endNode()
	case *AddrOf:
		printer.endNode()
	case *Deref:
		printer.endNode()
	case *FieldRef:
		printer.endNode()
	case *Index:
		printer.endNode()
	case *Cast:
		printer.endNode()

	case *IfClause:
		printer.endNode()
	case *NumThreadsClause:
		printer.endNode()
	case *ScheduleClause:
		if node.Chunk != nil {
			printer.endNode()
		}
	}
}
