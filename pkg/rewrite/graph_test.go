package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Two structurally-equal expressions land in the same equivalence group;
// two distinct ones do not.
func TestEquivalenceGroupFor_GroupsStructurallyEqual(t *testing.T) {
	p := NewPool()
	fAdd := add(p)
	a := buildExpr(p, xcall(fAdd, xvar("x"), xnum(1)))
	b := buildExpr(p, xcall(fAdd, xvar("x"), xnum(1)))
	c := buildExpr(p, xcall(fAdd, xvar("x"), xnum(2)))

	ga := p.equivalenceGroupFor(a)
	gb := p.equivalenceGroupFor(b)
	gc := p.equivalenceGroupFor(c)

	require.Equal(t, ga, gb)
	require.NotEqual(t, ga, gc)
	require.ElementsMatch(t, []ExprId{a, b}, p.GroupExpressions(ga))
}

// ApplyRule records the derivation edge itself, term-level and class-level.
func TestApplyRule_PopulatesAdjacency(t *testing.T) {
	p := NewPool()
	fAdd := add(p)
	rule := defineRule(p, "identity", pcall(fAdd, pwild("x"), pnum(0)), avar("x"))
	from := buildExpr(p, xcall(fAdd, xvar("y"), xnum(0)))
	m := matchAt(t, p, from, rule)
	to, ok := p.ApplyRule(m, DefaultRewriteOptions())
	require.True(t, ok)

	out := p.OutgoingTransformations(from)
	require.Len(t, out, 1)
	require.Equal(t, to, out[0].To)

	in := p.IncomingTransformations(to)
	require.Len(t, in, 1)
	require.Equal(t, from, in[0].From)

	require.Len(t, p.RuleApplications(rule), 1)
}

func TestFindTransformationPath_DirectEdge(t *testing.T) {
	p := NewPool()
	fAdd := add(p)
	rule := defineRule(p, "identity", pcall(fAdd, pwild("x"), pnum(0)), avar("x"))
	from := buildExpr(p, xcall(fAdd, xvar("y"), xnum(0)))
	m := matchAt(t, p, from, rule)
	to, ok := p.ApplyRule(m, DefaultRewriteOptions())
	require.True(t, ok)

	path, ok := p.FindTransformationPath(from, to)
	require.True(t, ok)
	require.Len(t, path, 1)
	require.Equal(t, rule, path[0].Rule)
}

func TestFindTransformationPath_Unreachable(t *testing.T) {
	p := NewPool()
	a := buildExpr(p, xnum(1))
	b := buildExpr(p, xnum(2))
	_, ok := p.FindTransformationPath(a, b)
	require.False(t, ok)
}

func TestDetectCycles_NoCycleInDag(t *testing.T) {
	p := NewPool()
	fAdd := add(p)
	rule := defineRule(p, "identity", pcall(fAdd, pwild("x"), pnum(0)), avar("x"))
	from := buildExpr(p, xcall(fAdd, xvar("y"), xnum(0)))
	m := matchAt(t, p, from, rule)
	_, ok := p.ApplyRule(m, DefaultRewriteOptions())
	require.True(t, ok)

	require.False(t, p.DetectCycles(from))
}

func TestDetectCycles_DirectCycle(t *testing.T) {
	p := NewPool()
	a := buildExpr(p, xnum(1))
	b := buildExpr(p, xnum(2))
	r := RuleId(0)
	p.RecordTransformation(a, b, r)
	p.RecordTransformation(b, a, r)
	require.True(t, p.DetectCycles(a))
}

func TestShouldApplyRule_RejectsRevisitedGroup(t *testing.T) {
	p := NewPool()
	p.StartApplicationChain()
	require.True(t, p.ShouldApplyRule(0, 1, 2))
	p.ExtendApplicationChain(0, 1, 2)
	// Stepping back to group 0 (already visited as the chain's origin via
	// a later step landing on it) must be rejected once it appears as a
	// visited `To`.
	p.ExtendApplicationChain(2, 3, 0)
	require.False(t, p.ShouldApplyRule(0, 4, 0))
}

func TestShouldApplyRule_RejectsAtMaxLength(t *testing.T) {
	p := NewPool()
	p.StartApplicationChain()
	for i := 0; i < 1024; i++ {
		p.ExtendApplicationChain(EquivalenceGroupId(i), RuleId(i), EquivalenceGroupId(i+1))
	}
	require.False(t, p.ShouldApplyRule(1024, 1, 1025))
}

func TestShouldApplyRule_RejectsRepeatedExactStep(t *testing.T) {
	p := NewPool()
	p.StartApplicationChain()
	p.ExtendApplicationChain(0, 5, 1)
	require.False(t, p.ShouldApplyRule(0, 5, 99))
}

func TestDetectAndBlacklistCycles_BlacklistsFutureReentry(t *testing.T) {
	p := NewPool()
	// Build two expressions whose equivalence classes form a 2-cycle.
	a := buildExpr(p, xnum(1))
	b := buildExpr(p, xnum(2))
	r1, r2 := RuleId(1), RuleId(2)
	p.RecordTransformation(a, b, r1)
	p.RecordTransformation(b, a, r2)

	ga, _ := p.EquivalenceGroupOf(a)
	n := p.DetectAndBlacklistCycles(ga)
	require.Greater(t, n, 0)
}
