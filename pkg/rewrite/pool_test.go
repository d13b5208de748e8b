package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPool_InternsBuiltinsAtFixedPositions(t *testing.T) {
	p := NewPool()
	require.Equal(t, FunctionId(0), p.InternFunction(Function{Kind: FnAdd}))
	require.Equal(t, FunctionId(1), p.InternFunction(Function{Kind: FnSub}))
	require.Equal(t, FunctionId(2), p.InternFunction(Function{Kind: FnMul}))
	require.Equal(t, FunctionId(3), p.InternFunction(Function{Kind: FnDiv}))
	require.Equal(t, FunctionId(4), p.InternFunction(Function{Kind: FnPow}))
	require.Equal(t, FunctionId(5), p.InternFunction(Function{Kind: FnNeg}))
	require.Equal(t, FunctionId(6), p.InternFunction(Function{Kind: FnPlus}))
}

// Interning the same identifier k times creates exactly one entry.
func TestInternName_Idempotent(t *testing.T) {
	p := NewPool()
	a := p.InternName("x")
	b := p.InternName("x")
	c := p.InternName("y")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Equal(t, "x", p.Name(a))
}

func TestInternFunction_CustomIdempotentByValue(t *testing.T) {
	p := NewPool()
	name := p.InternName("myFn")
	a := p.InternFunction(Function{Kind: FnCustom, Custom: name})
	b := p.InternFunction(Function{Kind: FnCustom, Custom: name})
	require.Equal(t, a, b)
}

func TestReset_ReinternsBuiltinsAtSamePositions(t *testing.T) {
	p := NewPool()
	p.InternName("x")
	buildExpr(p, xnum(1))
	p.Reset()

	require.Equal(t, 0, p.NumExprs())
	require.Equal(t, FunctionId(0), p.InternFunction(Function{Kind: FnAdd}))
	require.Equal(t, FunctionId(6), p.InternFunction(Function{Kind: FnPlus}))
}

// Every id returned by a top-level build is a recorded root; no child id
// is ever a root.
func TestMarkRoot_RootUniqueness(t *testing.T) {
	p := NewPool()
	fAdd := add(p)
	x := xvar("x")
	y := xvar("y")
	root := buildExpr(p, xcall(fAdd, x, y))

	require.True(t, p.IsRoot(root))
	children := p.Children(root)
	for _, c := range children {
		require.False(t, p.IsRoot(c), "child %v must never be a root", c)
	}
}

func TestFindRoot_SmallestRootAtOrAfter(t *testing.T) {
	p := NewPool()
	fAdd := add(p)
	root1 := buildExpr(p, xcall(fAdd, xvar("a"), xvar("b")))
	root2 := buildExpr(p, xcall(fAdd, xvar("c"), xvar("d")))

	// A child of root1 should resolve to root1, not root2.
	child := p.Children(root1)[0]
	found, ok := p.FindRoot(child)
	require.True(t, ok)
	require.Equal(t, root1, found)

	found2, ok := p.FindRoot(root2)
	require.True(t, ok)
	require.Equal(t, root2, found2)
}

func TestFindRoot_NoRootFails(t *testing.T) {
	p := NewPool()
	_, ok := p.FindRoot(ExprId(100))
	require.False(t, ok)
}

func TestAddExprWithProvenance_RecordsParsedSpan(t *testing.T) {
	p := NewPool()
	id := p.AddExprWithProvenance(NewNumberExpr(5), Provenance{
		Kind:           ProvenanceParsed,
		ParsedLocation: Location{Start: 0, End: 1},
	})
	prov, ok := p.GetProvenance(id)
	require.True(t, ok)
	require.Equal(t, ProvenanceParsed, prov.Kind)
	require.Equal(t, 1, prov.ParsedLocation.Span())
}

func TestRuleset_HalfOpenRange(t *testing.T) {
	p := NewPool()
	r1 := defineRule(p, "commute", pcall(add(p), pwild("a"), pwild("b")), acall(add(p), avar("b"), avar("a")))
	r2 := defineRule(p, "identity", pcall(add(p), pwild("x"), pnum(0)), avar("x"))
	rs := p.AddRuleset(p.InternName("arith"), int(r1), int(r2)+1)

	rules := p.RulesetRules(rs)
	require.Equal(t, []RuleId{r1, r2}, rules)
	require.Equal(t, 2, p.RulesetRuleCount(rs))
}
