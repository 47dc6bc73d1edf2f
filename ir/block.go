package ir

import (
	"github.com/pattyshack/gt/parseutil"
)

// A straight-line / basic block.
//
// NOTE: only the last statement can be a control transfer (goto, cond,
// switch, return, trap) or a directive marker.  A block without one
// implicitly falls through to Children[0].  For conditional branches the
// branch target precedes the fallthrough child in Children.
type Block struct {
	parseutil.StartEndPos

	Label string

	Stmts []Stmt

	// Populated by BuildCFG.
	Parents  []*Block
	Children []*Block
}

var _ Node = &Block{}

func (block *Block) Walk(visitor Visitor) {
	visitor.Enter(block)
	for _, stmt := range block.Stmts {
		stmt.Walk(visitor)
	}
	visitor.Exit(block)
}

func (block *Block) LastStmt() Stmt {
	if len(block.Stmts) == 0 {
		return nil
	}
	return block.Stmts[len(block.Stmts)-1]
}

func (block *Block) RemoveLastStmt() {
	if len(block.Stmts) == 0 {
		panic("should never happen")
	}
	block.Stmts = block.Stmts[:len(block.Stmts)-1]
}

func (block *Block) Append(stmts ...Stmt) {
	block.Stmts = append(block.Stmts, stmts...)
}

// SingleChild returns the block's only successor.
func (block *Block) SingleChild() *Block {
	if len(block.Children) != 1 {
		panic("should never happen")
	}
	return block.Children[0]
}

func AddEdge(from *Block, to *Block) {
	from.Children = append(from.Children, to)
	to.Parents = append(to.Parents, from)
}

func RemoveEdge(from *Block, to *Block) {
	from.Children = removeBlock(from.Children, to)
	to.Parents = removeBlock(to.Parents, from)
}

// RedirectEdge repoints the from -> oldTo edge at newTo, preserving the
// child ordering (branch targets keep their slot).
func RedirectEdge(from *Block, oldTo *Block, newTo *Block) {
	found := false
	for idx, child := range from.Children {
		if child == oldTo {
			from.Children[idx] = newTo
			found = true
			break
		}
	}
	if !found {
		panic("should never happen")
	}
	oldTo.Parents = removeBlock(oldTo.Parents, from)
	newTo.Parents = append(newTo.Parents, from)
}

func removeBlock(list []*Block, target *Block) []*Block {
	for idx, block := range list {
		if block == target {
			return append(list[:idx:idx], list[idx+1:]...)
		}
	}
	panic("should never happen")
}
