package rewrite

// Matcher: structural equality and pattern matching over the expression
// pool. Patterns carry four capture classes beyond plain
// structural matching: AnyNumber (numeric-only capture), Wildcard
// (capture of any subterm), and VarCallName/VarStructName (capture of a
// call's function identity or a struct's name identity). A bare Variable
// pattern matches only an equal literal variable and captures nothing.

// CapturedValueKind tags the variant of a CapturedValue.
type CapturedValueKind uint8

const (
	CapturedExpression CapturedValueKind = iota
	CapturedFunction
	CapturedStructName
)

// CapturedValue is whatever a pattern capture bound during a successful
// match: a subterm, a function identity, or a struct name identity.
type CapturedValue struct {
	Kind       CapturedValueKind
	Expression ExprId
	Function   FunctionId
	StructName NameId
}

// Match records one successful rule application site: rule RuleID matched
// the subtree at Offset within the tree rooted at Root, with the pattern's
// captures bound in Captures.
type Match struct {
	Root     ExprId
	Offset   ExprId
	RuleID   RuleId
	Captures map[NameId]CapturedValue
}

// ExprEq reports whether the subtrees rooted at a and b are structurally
// identical. Purely syntactic: no canonicalization, no normalization of
// commutative operators.
func (p *Pool) ExprEq(a, b ExprId) bool {
	return exprEq(p.exprs, int(a), int(b))
}

// exprEq is the lock-free core of ExprEq, usable while RWMu is already
// held. Implemented iteratively with an explicit stack to avoid recursion
// depth limits on deep expressions.
func exprEq(nodes []ExprNode, a, b int) bool {
	type pair struct{ a, b int }
	stack := []pair{{a, b}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		na := nodes[top.a]
		nb := nodes[top.b]
		if na.Kind != nb.Kind {
			return false
		}
		switch na.Kind {
		case ExprNumber:
			if na.Number != nb.Number {
				return false
			}
		case ExprVariable:
			if na.Name != nb.Name {
				return false
			}
		case ExprCall:
			if na.Fun != nb.Fun || na.Arity != nb.Arity {
				return false
			}
			ca := nodeChildren(nodes, top.a)
			cb := nodeChildren(nodes, top.b)
			for i := range ca {
				stack = append(stack, pair{ca[i], cb[i]})
			}
		case ExprStruct:
			if na.Name != nb.Name || na.Arity != nb.Arity {
				return false
			}
			ca := nodeChildren(nodes, top.a)
			cb := nodeChildren(nodes, top.b)
			for i := range ca {
				stack = append(stack, pair{ca[i], cb[i]})
			}
		}
	}
	return true
}

// PatternMatches attempts to match pattern against the subtree rooted at
// expr, mutating captures in place as names are bound. Returns false (with
// captures left partially populated) on failure; callers that need a clean
// slate per attempt should pass a fresh map.
func (p *Pool) PatternMatches(pattern PatternId, expr ExprId, captures map[NameId]CapturedValue) bool {
	pat := p.PatternAt(pattern)
	ex := p.ExprAt(expr)

	switch pat.Kind {
	case PatternNumber:
		return ex.Kind == ExprNumber && ex.Number == pat.Number

	case PatternVariable:
		// A bare Variable pattern matches only a literal expression
		// variable of the same identity; it does not capture. AnyNumber
		// and Wildcard (below) are the capturing classes.
		return ex.Kind == ExprVariable && ex.Name == pat.Name

	case PatternAnyNumber:
		if ex.Kind != ExprNumber {
			return false
		}
		if existing, ok := captures[pat.Name]; ok {
			return existing.Kind == CapturedExpression && p.ExprEq(existing.Expression, expr)
		}
		captures[pat.Name] = CapturedValue{Kind: CapturedExpression, Expression: expr}
		return true

	case PatternWildcard:
		if existing, ok := captures[pat.Name]; ok {
			return existing.Kind == CapturedExpression && p.ExprEq(existing.Expression, expr)
		}
		captures[pat.Name] = CapturedValue{Kind: CapturedExpression, Expression: expr}
		return true

	case PatternVarCallName:
		if ex.Kind != ExprCall || ex.Arity != pat.Arity {
			return false
		}
		if existing, ok := captures[pat.Var]; ok {
			if existing.Kind != CapturedFunction || existing.Function != ex.Fun {
				return false
			}
		} else {
			captures[pat.Var] = CapturedValue{Kind: CapturedFunction, Function: ex.Fun}
		}
		patChildren := p.PatternChildren(pattern)
		exprChildren := p.Children(expr)
		for i := range patChildren {
			if !p.PatternMatches(patChildren[i], exprChildren[i], captures) {
				return false
			}
		}
		return true

	case PatternVarStructName:
		if ex.Kind != ExprStruct || ex.Arity != pat.Arity {
			return false
		}
		if existing, ok := captures[pat.Var]; ok {
			if existing.Kind != CapturedStructName || existing.StructName != ex.Name {
				return false
			}
		} else {
			captures[pat.Var] = CapturedValue{Kind: CapturedStructName, StructName: ex.Name}
		}
		patChildren := p.PatternChildren(pattern)
		exprChildren := p.Children(expr)
		for i := range patChildren {
			if !p.PatternMatches(patChildren[i], exprChildren[i], captures) {
				return false
			}
		}
		return true

	case PatternCall:
		if ex.Kind != ExprCall || ex.Fun != pat.Fun || ex.Arity != pat.Arity {
			return false
		}
		patChildren := p.PatternChildren(pattern)
		exprChildren := p.Children(expr)
		for i := range patChildren {
			if !p.PatternMatches(patChildren[i], exprChildren[i], captures) {
				return false
			}
		}
		return true

	case PatternStruct:
		if ex.Kind != ExprStruct || ex.Name != pat.Name || ex.Arity != pat.Arity {
			return false
		}
		patChildren := p.PatternChildren(pattern)
		exprChildren := p.Children(expr)
		for i := range patChildren {
			if !p.PatternMatches(patChildren[i], exprChildren[i], captures) {
				return false
			}
		}
		return true

	default:
		return false
	}
}

// FindMatches walks the subtree rooted at root in an iterative
// root-first DFS, trying every rule in rules against every node, and
// returns every successful Match found, in scan order.
func (p *Pool) FindMatches(root ExprId, rules []RuleId) []Match {
	var out []Match
	stack := []ExprId{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, ruleID := range rules {
			rule := p.RuleAt(ruleID)
			captures := make(map[NameId]CapturedValue)
			if p.PatternMatches(rule.Pattern, node, captures) {
				out = append(out, Match{Root: root, Offset: node, RuleID: ruleID, Captures: captures})
			}
		}

		children := p.Children(node)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}
