package ir

// Iterative dominator computation (Cooper, Harvey, Kennedy).  Unreachable
// blocks are left out of the result.
func ComputeDominators(fn *FuncDecl) map[*Block]*Block {
	if len(fn.Blocks) == 0 {
		return nil
	}
	entry := fn.Blocks[0]

	postorder := []*Block{}
	visited := map[*Block]struct{}{}

	var visit func(*Block)
	visit = func(block *Block) {
		if _, ok := visited[block]; ok {
			return
		}
		visited[block] = struct{}{}
		for _, child := range block.Children {
			visit(child)
		}
		postorder = append(postorder, block)
	}
	visit(entry)

	index := map[*Block]int{}
	for idx, block := range postorder {
		index[block] = idx
	}

	idom := map[*Block]*Block{entry: entry}

	intersect := func(b1 *Block, b2 *Block) *Block {
		for b1 != b2 {
			for index[b1] < index[b2] {
				b1 = idom[b1]
			}
			for index[b2] < index[b1] {
				b2 = idom[b2]
			}
		}
		return b1
	}

	changed := true
	for changed {
		changed = false
		// reverse postorder, skipping the entry
		for idx := len(postorder) - 2; idx >= 0; idx-- {
			block := postorder[idx]

			var newIdom *Block
			for _, parent := range block.Parents {
				if _, ok := index[parent]; !ok {
					continue // unreachable
				}
				if _, ok := idom[parent]; !ok {
					continue
				}
				if newIdom == nil {
					newIdom = parent
				} else {
					newIdom = intersect(parent, newIdom)
				}
			}

			if newIdom == nil {
				panic("should never happen")
			}
			if idom[block] != newIdom {
				idom[block] = newIdom
				changed = true
			}
		}
	}

	idom[entry] = nil
	return idom
}

// DominatorTree returns each reachable block's dominator-tree children,
// ordered by their position in fn.Blocks for determinism.
func DominatorTree(fn *FuncDecl) map[*Block][]*Block {
	idom := ComputeDominators(fn)

	tree := map[*Block][]*Block{}
	for _, block := range fn.Blocks {
		parent, ok := idom[block]
		if !ok || parent == nil {
			continue
		}
		tree[parent] = append(tree[parent], block)
	}
	return tree
}
