package rewrite

// ChildWalker: pure functions deriving children, length, parent, siblings,
// slice and total_len from the postorder index encoding.
//
// A composite node at array position p stores `last`, the distance back
// to the first element of its leftmost child's subtree (so p-last is the
// start of the node's own contiguous slab), and `arity`, its number of
// direct children. A leaf occupies exactly one slot. The canonical child
// iteration order is postorder-reverse: rightmost child first. Every
// consumer (matcher, rewriter, display) must agree on this order.

// nodeInfo is implemented by every postorder-encoded node type (ExprNode,
// PatternNode, ActionNode) so the walking arithmetic below is written once
// and reused across all three tables.
type nodeInfo interface {
	nodeArity() int
	nodeLast() (last int, isComposite bool)
}

func (n ExprNode) nodeArity() int { return n.Arity }
func (n ExprNode) nodeLast() (int, bool) {
	return n.Last, n.Kind == ExprCall || n.Kind == ExprStruct
}

func (n PatternNode) nodeArity() int { return n.Arity }
func (n PatternNode) nodeLast() (int, bool) {
	switch n.Kind {
	case PatternCall, PatternStruct, PatternVarCallName, PatternVarStructName:
		return n.Last, true
	default:
		return 0, false
	}
}

func (n ActionNode) nodeArity() int { return n.Arity }
func (n ActionNode) nodeLast() (int, bool) {
	switch n.Kind {
	case ActionCall, ActionStruct, ActionVarCallName, ActionVarStructName, ActionCompute:
		return n.Last, true
	default:
		return 0, false
	}
}

// nodeLength returns length(p): 1 for a leaf, last+1 for a composite.
func nodeLength[T nodeInfo](nodes []T, p int) int {
	n := nodes[p]
	if last, composite := n.nodeLast(); composite && n.nodeArity() > 0 {
		return last + 1
	}
	return 1
}

// nodeTotalLen returns the size of the full contiguous slab occupied by
// the subtree rooted at p: for a composite this is last+1 (the span back
// to the start of its leftmost child's subtree), which is already the
// complete self-contained size; for a leaf it is 1.
func nodeTotalLen[T nodeInfo](nodes []T, p int) int {
	return nodeLength(nodes, p)
}

// nodeChildren returns the direct children of p in canonical
// postorder-reverse order (rightmost child first).
func nodeChildren[T nodeInfo](nodes []T, p int) []int {
	n := nodes[p]
	arity := n.nodeArity()
	if arity == 0 {
		return nil
	}
	out := make([]int, 0, arity)
	cur := p - 1
	for i := 0; i < arity; i++ {
		out = append(out, cur)
		l := nodeLength(nodes, cur)
		if cur < l {
			break
		}
		cur -= l
	}
	return out
}

// nodeFullSliceBounds returns the half-open [start, end) bounds of the
// contiguous slab occupied by the subtree rooted at p.
func nodeFullSliceBounds[T nodeInfo](nodes []T, p int) (start, end int) {
	l := nodeLength(nodes, p)
	end = p + 1
	start = end - l
	if start < 0 {
		start = 0
	}
	return start, end
}

// Expression-table ChildWalker surface.

// Children returns the direct children of id in canonical
// postorder-reverse order (rightmost first).
func (p *Pool) Children(id ExprId) []ExprId {
	raw := nodeChildren(p.exprs, int(id))
	out := make([]ExprId, len(raw))
	for i, v := range raw {
		out[i] = ExprId(v)
	}
	return out
}

// Length returns length(id): the number of array slots directly spanned
// by id's own composite field (1 for a leaf, last+1 for a composite).
func (p *Pool) Length(id ExprId) int { return nodeLength(p.exprs, int(id)) }

// TotalLen returns the size of the contiguous subtree slab rooted at id.
func (p *Pool) TotalLen(id ExprId) int { return nodeTotalLen(p.exprs, int(id)) }

// FullSlice returns the contiguous subtree slice rooted at id: a
// zero-copy view into the arena; the slab is self-contained.
func (p *Pool) FullSlice(id ExprId) []ExprNode {
	start, end := nodeFullSliceBounds(p.exprs, int(id))
	return p.exprs[start:end]
}

// Parent recovers the parent of id by scanning forward for the first
// composite whose subtree interval contains id. Parents are not stored;
// this is O(n) in the worst case.
func (p *Pool) Parent(id ExprId) (ExprId, bool) {
	nodeIdx := int(id)
	for i := nodeIdx + 1; i < len(p.exprs); i++ {
		n := p.exprs[i]
		if n.Kind != ExprCall && n.Kind != ExprStruct {
			continue
		}
		if n.Arity == 0 {
			continue
		}
		firstChildPos := i - n.Last
		if firstChildPos <= nodeIdx && nodeIdx <= i {
			return ExprId(i), true
		}
	}
	return 0, false
}

// Ancestors returns id and every ancestor above it, nearest first.
func (p *Pool) Ancestors(id ExprId) []ExprId {
	out := []ExprId{id}
	cur := id
	for {
		parent, ok := p.Parent(cur)
		if !ok {
			return out
		}
		out = append(out, parent)
		cur = parent
	}
}

// Siblings returns id's siblings (the other children of its parent), in
// canonical order, excluding id itself. Returns nil if id is a root.
func (p *Pool) Siblings(id ExprId) []ExprId {
	parent, ok := p.Parent(id)
	if !ok {
		return nil
	}
	out := make([]ExprId, 0, 4)
	for _, c := range p.Children(parent) {
		if c != id {
			out = append(out, c)
		}
	}
	return out
}

// Pattern-table ChildWalker surface (used by the matcher and by action
// materialisation when an action shares structure with a pattern).

func (p *Pool) PatternChildren(id PatternId) []PatternId {
	raw := nodeChildren(p.patterns, int(id))
	out := make([]PatternId, len(raw))
	for i, v := range raw {
		out[i] = PatternId(v)
	}
	return out
}

func (p *Pool) PatternLength(id PatternId) int { return nodeLength(p.patterns, int(id)) }

// Action-table ChildWalker surface (used by the rewriter's materialisation
// pass).

func (p *Pool) ActionChildren(id ActionId) []ActionId {
	raw := nodeChildren(p.actions, int(id))
	out := make([]ActionId, len(raw))
	for i, v := range raw {
		out[i] = ActionId(v)
	}
	return out
}

func (p *Pool) ActionLength(id ActionId) int { return nodeLength(p.actions, int(id)) }
