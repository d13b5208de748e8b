package rewrite

// Rewriter: materialises an action tree into a scratch buffer (substituting
// captures bound by a Match), evaluates Compute nodes numerically, and
// splices the result into a fresh copy of the matched root, repairing
// `last` offsets that spanned the splice boundary.

// RewriteOptions controls materialisation choices the rule language
// leaves to the caller.
type RewriteOptions struct {
	// AllowUnboundActionVariables controls materialisation of an
	// Action::Variable whose name was never bound by the pattern match.
	// When true (the documented existing behaviour) the variable is
	// emitted verbatim as a fresh expression variable node — free
	// variables on a rule's right-hand side. When false, materialisation
	// fails and bubbles up instead.
	AllowUnboundActionVariables bool
}

// DefaultRewriteOptions matches the documented existing behaviour: an
// unbound Action::Variable is emitted verbatim rather than failing the
// rewrite.
func DefaultRewriteOptions() RewriteOptions {
	return RewriteOptions{AllowUnboundActionVariables: true}
}

// ApplyRule materialises m's rule and splices the result into a fresh
// copy of the matched root, returning the id of the new root. Returns
// false if materialisation failed (a Compute with non-numeric operands or
// a bad arity/divisor, a VarCallName/VarStructName action with no
// corresponding capture, or — if opts disallows it — an unbound Variable)
// — no new nodes are retained in that case beyond whatever scratch space
// was allocated and discarded.
func (p *Pool) ApplyRule(m Match, opts RewriteOptions) (ExprId, bool) {
	rule := p.RuleAt(m.RuleID)

	var scratch []ExprNode
	if !p.buildAction(rule.Action, m.Captures, &scratch, opts) {
		return 0, false
	}

	prov := Provenance{Kind: ProvenanceRule, RuleID: m.RuleID, SourceNode: m.Offset}
	if src, ok := p.GetProvenance(m.Offset); ok && src.Kind == ProvenanceParsed {
		prov.SourceLocation = src.ParsedLocation
	}

	if m.Offset == m.Root {
		newRoot := p.appendSlice(scratch, prov)
		p.MarkRoot(newRoot)
		p.RecordTransformation(m.Root, newRoot, m.RuleID)
		return newRoot, true
	}

	rootSlice := p.FullSlice(m.Root)
	rootCopy := make([]ExprNode, len(rootSlice))
	copy(rootCopy, rootSlice)

	relativePos := int(m.Root) - int(m.Offset)
	rootSliceLen := len(rootCopy)
	targetSliceLen := p.Length(m.Offset)
	targetEnd := rootSliceLen - relativePos
	targetStart := targetEnd - targetSliceLen
	if targetStart < 0 || targetEnd > rootSliceLen {
		return 0, false
	}

	sizeDelta := len(scratch) - targetSliceLen

	newRootCopy := make([]ExprNode, 0, len(rootCopy)+sizeDelta)
	newRootCopy = append(newRootCopy, rootCopy[:targetStart]...)
	newRootCopy = append(newRootCopy, scratch...)
	newRootCopy = append(newRootCopy, rootCopy[targetEnd:]...)

	if sizeDelta != 0 {
		fixIndicesAfterSplice(newRootCopy, targetStart, len(scratch), sizeDelta)
	}

	newRoot := p.appendSlice(newRootCopy, prov)
	p.MarkRoot(newRoot)
	p.RecordTransformation(m.Root, newRoot, m.RuleID)
	return newRoot, true
}

// fixIndicesAfterSplice adjusts the Last field of every composite node
// whose subtree spans the replaced region, by the signed sizeDelta.
// Positions at or after spliceStart+newLen are shifted by sizeDelta
// relative to the old layout, so a node there has its first-child
// position computed in the pre-splice indexing (i - sizeDelta - Last).
// That position falls at or before spliceStart exactly for the splice
// point's ancestors; composites wholly inside the replacement or wholly
// after it keep their relative offsets. Every ancestor is repaired, not
// only the nearest one, so nested rewrites of already-rewritten trees
// stay self-contained.
func fixIndicesAfterSplice(nodes []ExprNode, spliceStart, newLen, sizeDelta int) {
	for i := spliceStart + newLen; i < len(nodes); i++ {
		n := nodes[i]
		if n.Kind != ExprCall && n.Kind != ExprStruct {
			continue
		}
		if n.Arity == 0 {
			continue
		}
		firstChildPos := i - sizeDelta - n.Last
		if firstChildPos <= spliceStart {
			n.Last += sizeDelta
			nodes[i] = n
		}
	}
}

// appendSlice appends nodes to the expression table in order, recording
// prov for every appended slot, and returns the id of the last one (the
// new root).
func (p *Pool) appendSlice(nodes []ExprNode, prov Provenance) ExprId {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	base := len(p.exprs)
	p.exprs = append(p.exprs, nodes...)
	for i := range nodes {
		p.provenance[ExprId(base+i)] = prov
	}
	return ExprId(len(p.exprs) - 1)
}

// buildAction materialises actionID into scratch, substituting captures.
// Returns false if materialisation fails at any point; the failure
// bubbles up through every ancestor call.
func (p *Pool) buildAction(actionID ActionId, captures map[NameId]CapturedValue, scratch *[]ExprNode, opts RewriteOptions) bool {
	act := p.ActionAt(actionID)

	switch act.Kind {
	case ActionNumber:
		*scratch = append(*scratch, NewNumberExpr(act.Number))
		return true

	case ActionVariable:
		if cv, ok := captures[act.Name]; ok && cv.Kind == CapturedExpression {
			return p.copyExpressionToScratch(cv.Expression, scratch)
		}
		if opts.AllowUnboundActionVariables {
			*scratch = append(*scratch, NewVariableExpr(act.Name))
			return true
		}
		return false

	case ActionCall:
		last, ok := p.buildActionChildren(actionID, captures, scratch, opts)
		if !ok {
			return false
		}
		*scratch = append(*scratch, NewCallExpr(act.Fun, last, act.Arity))
		return true

	case ActionStruct:
		last, ok := p.buildActionChildren(actionID, captures, scratch, opts)
		if !ok {
			return false
		}
		*scratch = append(*scratch, NewStructExpr(act.Name, last, act.Arity))
		return true

	case ActionVarCallName:
		cv, ok := captures[act.Var]
		if !ok || cv.Kind != CapturedFunction {
			return false
		}
		last, ok := p.buildActionChildren(actionID, captures, scratch, opts)
		if !ok {
			return false
		}
		*scratch = append(*scratch, NewCallExpr(cv.Function, last, act.Arity))
		return true

	case ActionVarStructName:
		cv, ok := captures[act.Var]
		if !ok || cv.Kind != CapturedStructName {
			return false
		}
		last, ok := p.buildActionChildren(actionID, captures, scratch, opts)
		if !ok {
			return false
		}
		*scratch = append(*scratch, NewStructExpr(cv.StructName, last, act.Arity))
		return true

	case ActionCompute:
		result, ok := p.evaluateCompute(actionID, captures)
		if !ok {
			return false
		}
		*scratch = append(*scratch, NewNumberExpr(result))
		return true

	default:
		return false
	}
}

// buildActionChildren materialises actionID's children into scratch in
// array (leftmost-first) order and returns the Last offset the parent
// composite should record.
func (p *Pool) buildActionChildren(actionID ActionId, captures map[NameId]CapturedValue, scratch *[]ExprNode, opts RewriteOptions) (int, bool) {
	startLen := len(*scratch)
	children := p.ActionChildren(actionID) // rightmost-first
	for i := len(children) - 1; i >= 0; i-- {
		if !p.buildAction(children[i], captures, scratch, opts) {
			return 0, false
		}
	}
	pPos := len(*scratch)
	return pPos - startLen, true
}

// copyExpressionToScratch appends a verbatim copy of id's full subtree
// slice. Relative `last` offsets inside the copied slice remain valid at
// any array position since the slab is self-contained.
func (p *Pool) copyExpressionToScratch(id ExprId, scratch *[]ExprNode) bool {
	slice := p.FullSlice(id)
	*scratch = append(*scratch, slice...)
	return true
}

// evaluateCompute numerically evaluates a Compute action node and its
// operand subtree, without emitting any composite structure: a Compute
// node always folds to a single number.
func (p *Pool) evaluateCompute(actionID ActionId, captures map[NameId]CapturedValue) (int32, bool) {
	act := p.ActionAt(actionID)
	children := p.ActionChildren(actionID) // rightmost-first
	arity := len(children)
	vals := make([]int32, arity)
	for i, childID := range children {
		// children[0] is the rightmost operand, so it fills the last slot
		// of vals (left-to-right operand order).
		v, ok := p.evaluateActionNumeric(childID, captures)
		if !ok {
			return 0, false
		}
		vals[arity-1-i] = v
	}
	return computeOperation(act.Op, vals)
}

// evaluateActionNumeric evaluates actionID to a number, recursing through
// Number literals, captured numeric expressions, and nested Compute nodes.
func (p *Pool) evaluateActionNumeric(actionID ActionId, captures map[NameId]CapturedValue) (int32, bool) {
	act := p.ActionAt(actionID)
	switch act.Kind {
	case ActionNumber:
		return act.Number, true
	case ActionVariable:
		cv, ok := captures[act.Name]
		if !ok || cv.Kind != CapturedExpression {
			return 0, false
		}
		return p.evaluateExprNumeric(cv.Expression, captures)
	case ActionCompute:
		return p.evaluateCompute(actionID, captures)
	default:
		return 0, false
	}
}

// evaluateExprNumeric evaluates an already-materialised expression to a
// number: direct for Number, chasing the capture table for a Variable
// bound to another expression, failing for anything else.
func (p *Pool) evaluateExprNumeric(id ExprId, captures map[NameId]CapturedValue) (int32, bool) {
	n := p.ExprAt(id)
	switch n.Kind {
	case ExprNumber:
		return n.Number, true
	case ExprVariable:
		cv, ok := captures[n.Name]
		if !ok || cv.Kind != CapturedExpression || cv.Expression == id {
			return 0, false
		}
		return p.evaluateExprNumeric(cv.Expression, captures)
	default:
		return 0, false
	}
}

// computeOperation applies op to vals (in left-to-right operand order).
func computeOperation(op ComputeOp, vals []int32) (int32, bool) {
	switch op {
	case ComputeAdd:
		if len(vals) == 0 {
			return 0, false
		}
		sum := int32(0)
		for _, v := range vals {
			sum += v
		}
		return sum, true
	case ComputeSub:
		if len(vals) != 2 {
			return 0, false
		}
		return vals[0] - vals[1], true
	case ComputeMul:
		if len(vals) == 0 {
			return 0, false
		}
		product := int32(1)
		for _, v := range vals {
			product *= v
		}
		return product, true
	case ComputeDiv:
		if len(vals) != 2 || vals[1] == 0 {
			return 0, false
		}
		return vals[0] / vals[1], true
	case ComputePow:
		if len(vals) != 2 || vals[1] < 0 {
			return 0, false
		}
		result := int32(1)
		for i := int32(0); i < vals[1]; i++ {
			result *= vals[0]
		}
		return result, true
	case ComputeNeg:
		if len(vals) != 1 {
			return 0, false
		}
		return -vals[0], true
	default:
		return 0, false
	}
}
