package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Test-only builders for expression/pattern/action trees. The surface-
// syntax parser lives outside this package; these helpers play its role
// for tests by appending nodes in postorder (children before parent,
// leftmost child first), the order the arena requires of callers.

type exprBuilder func(p *Pool) ExprId

func xnum(n int32) exprBuilder {
	return func(p *Pool) ExprId { return p.AddExpr(NewNumberExpr(n)) }
}

func xvar(name string) exprBuilder {
	return func(p *Pool) ExprId { return p.AddExpr(NewVariableExpr(p.InternName(name))) }
}

func xcall(fn FunctionId, children ...exprBuilder) exprBuilder {
	return func(p *Pool) ExprId {
		start := p.NumExprs()
		for _, c := range children {
			c(p)
		}
		last := p.NumExprs() - start
		return p.AddExpr(NewCallExpr(fn, last, len(children)))
	}
}

func xstruct(name NameId, children ...exprBuilder) exprBuilder {
	return func(p *Pool) ExprId {
		start := p.NumExprs()
		for _, c := range children {
			c(p)
		}
		last := p.NumExprs() - start
		return p.AddExpr(NewStructExpr(name, last, len(children)))
	}
}

func buildExpr(p *Pool, b exprBuilder) ExprId {
	id := b(p)
	p.MarkRoot(id)
	return id
}

// builtin returns the FunctionId of one of the seven pre-interned
// operators, by the same fixed ordering NewPool establishes.
func builtin(p *Pool, kind FunctionKind) FunctionId {
	return p.InternFunction(Function{Kind: kind})
}

func add(p *Pool) FunctionId { return builtin(p, FnAdd) }
func sub(p *Pool) FunctionId { return builtin(p, FnSub) }
func mul(p *Pool) FunctionId { return builtin(p, FnMul) }
func div(p *Pool) FunctionId { return builtin(p, FnDiv) }
func neg(p *Pool) FunctionId { return builtin(p, FnNeg) }

// checkPostorderInvariants asserts the arena layout invariants over the
// subtree slab rooted at root: for every composite, last >= arity >= 1 and
// p - last >= 0, and no node inside the slab references an index outside
// it.
func checkPostorderInvariants(t *testing.T, p *Pool, root ExprId) {
	t.Helper()
	total := p.TotalLen(root)
	start := int(root) - total + 1
	require.GreaterOrEqual(t, start, 0)
	for i := start; i <= int(root); i++ {
		n := p.exprs[i]
		if n.Kind != ExprCall && n.Kind != ExprStruct {
			continue
		}
		require.GreaterOrEqual(t, n.Arity, 1, "composite at %d must have children", i)
		require.GreaterOrEqual(t, n.Last, n.Arity, "last at %d must cover every child", i)
		require.GreaterOrEqual(t, i-n.Last, start, "subtree at %d escapes the slab", i)
		for _, c := range p.Children(ExprId(i)) {
			require.GreaterOrEqual(t, int(c), i-n.Last)
			require.Less(t, int(c), i)
		}
	}
}

type patBuilder func(p *Pool) PatternId

func pnum(n int32) patBuilder {
	return func(p *Pool) PatternId { return p.AddPattern(PatternNode{Kind: PatternNumber, Number: n}) }
}

func pvar(name string) patBuilder {
	return func(p *Pool) PatternId {
		return p.AddPattern(PatternNode{Kind: PatternVariable, Name: p.InternName(name)})
	}
}

func pwild(name string) patBuilder {
	return func(p *Pool) PatternId {
		return p.AddPattern(PatternNode{Kind: PatternWildcard, Name: p.InternName(name)})
	}
}

func pany(name string) patBuilder {
	return func(p *Pool) PatternId {
		return p.AddPattern(PatternNode{Kind: PatternAnyNumber, Name: p.InternName(name)})
	}
}

func pcall(fn FunctionId, children ...patBuilder) patBuilder {
	return func(p *Pool) PatternId {
		start := p.NumPatterns()
		for _, c := range children {
			c(p)
		}
		last := p.NumPatterns() - start
		return p.AddPattern(PatternNode{Kind: PatternCall, Fun: fn, Last: last, Arity: len(children)})
	}
}

type actBuilder func(p *Pool) ActionId

func anum(n int32) actBuilder {
	return func(p *Pool) ActionId { return p.AddAction(ActionNode{Kind: ActionNumber, Number: n}) }
}

func avar(name string) actBuilder {
	return func(p *Pool) ActionId {
		return p.AddAction(ActionNode{Kind: ActionVariable, Name: p.InternName(name)})
	}
}

func acall(fn FunctionId, children ...actBuilder) actBuilder {
	return func(p *Pool) ActionId {
		start := p.NumActions()
		for _, c := range children {
			c(p)
		}
		last := p.NumActions() - start
		return p.AddAction(ActionNode{Kind: ActionCall, Fun: fn, Last: last, Arity: len(children)})
	}
}

func acompute(op ComputeOp, children ...actBuilder) actBuilder {
	return func(p *Pool) ActionId {
		start := p.NumActions()
		for _, c := range children {
			c(p)
		}
		last := p.NumActions() - start
		return p.AddAction(ActionNode{Kind: ActionCompute, Op: op, Last: last, Arity: len(children)})
	}
}

// defineRule builds pattern and action bottom-up and registers a named
// rule, returning its RuleId.
func defineRule(p *Pool, name string, pat patBuilder, act actBuilder) RuleId {
	return p.AddRule(p.InternName(name), pat(p), act(p))
}
