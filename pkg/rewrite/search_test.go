package rewrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// smallRuleset builds a pool with two rules ((x+0)=>x and (x+y)=>(y+x)) and
// a starting expression deep enough to give every search engine something
// to explore via ExpandNeighbors' find_matches/apply_rule path.
func smallRuleset(t *testing.T) (*Pool, ExprId, []RuleId) {
	t.Helper()
	p := NewPool()
	fAdd := add(p)
	identity := defineRule(p, "identity", pcall(fAdd, pwild("x"), pnum(0)), avar("x"))
	commute := defineRule(p, "commute", pcall(fAdd, pwild("a"), pwild("b")), acall(fAdd, avar("b"), avar("a")))
	start := buildExpr(p, xcall(fAdd, xvar("y"), xnum(0)))
	return p, start, []RuleId{identity, commute}
}

func TestExpandNeighbors_DerivesNewTransformationsOnce(t *testing.T) {
	p, start, rules := smallRuleset(t)
	first := p.ExpandNeighbors(start, rules, DefaultRewriteOptions())
	require.NotEmpty(t, first)

	second := p.ExpandNeighbors(start, rules, DefaultRewriteOptions())
	require.Equal(t, len(first), len(second), "re-expansion must not mint duplicate transformations")
}

func TestBoundedBFS_FindsReachableClasses(t *testing.T) {
	p, start, rules := smallRuleset(t)
	cfg := DefaultSearchConfig()
	cfg.MaxDepth = 5
	cfg.MaxNodesExplored = 50

	paths, err := p.BoundedBFS(context.Background(), start, rules, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
}

func TestBoundedBFS_RespectsCancellation(t *testing.T) {
	p, start, rules := smallRuleset(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.BoundedBFS(ctx, start, rules, DefaultSearchConfig())
	require.ErrorIs(t, err, ErrSearchCancelled)
}

func TestBoundedDijkstra_UnitCostFindsPaths(t *testing.T) {
	p, start, rules := smallRuleset(t)
	cfg := DefaultSearchConfig()
	cfg.MaxDepth = 5
	cfg.MaxNodesExplored = 50

	paths, err := p.BoundedDijkstra(context.Background(), start, rules, func(Transformation) float64 { return 1 }, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
}

func TestHeuristicSearch_FindsTarget(t *testing.T) {
	p, start, rules := smallRuleset(t)
	fAdd := add(p)
	target := buildExpr(p, xcall(fAdd, xnum(0), xvar("y")))

	cfg := DefaultSearchConfig()
	cfg.MaxDepth = 5
	path, found, err := p.HeuristicSearch(context.Background(), start, target, rules, p.ComplexityDistance, cfg)
	require.NoError(t, err)
	require.True(t, found)
	require.NotEmpty(t, path.Steps)
}

func TestBeamSearch_PrunesToWidth(t *testing.T) {
	p, start, rules := smallRuleset(t)
	fAdd := add(p)
	target := buildExpr(p, xcall(fAdd, xnum(0), xvar("y")))
	cfg := DefaultSearchConfig()
	cfg.MaxDepth = 4
	cfg.BeamWidth = 1

	paths, err := p.BeamSearch(context.Background(), start, target, rules, p.ComplexityDistance, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
}

func TestRandomSearch_ProducesWalks(t *testing.T) {
	p, start, rules := smallRuleset(t)
	cfg := DefaultSearchConfig()
	cfg.MaxDepth = 4
	cfg.RandomWalkProbability = 0

	paths, err := p.RandomSearch(context.Background(), start, rules, 5, cfg)
	require.NoError(t, err)
	require.LessOrEqual(t, len(paths), 5)
}

func TestCombinedSearch_DeduplicatesByEquivalenceClass(t *testing.T) {
	p, start, rules := smallRuleset(t)
	fAdd := add(p)
	target := buildExpr(p, xcall(fAdd, xnum(0), xvar("y")))
	cfg := DefaultSearchConfig()
	cfg.MaxDepth = 4
	cfg.MaxNodesExplored = 50
	cfg.TargetDiversity = 10

	paths, err := p.CombinedSearch(context.Background(), start, target, rules, cfg)
	require.NoError(t, err)

	seen := map[EquivalenceGroupId]bool{}
	for _, path := range paths {
		g := p.equivalenceGroupFor(path.End(start))
		require.False(t, seen[g], "each equivalence class must appear at most once")
		seen[g] = true
	}
}

func TestChainRejects_BlocksMaxLengthAndRepeats(t *testing.T) {
	var chain []chainStep
	blacklist := map[string]struct{}{}

	require.False(t, chainRejects(chain, chainStep{From: 0, Rule: 1, To: 2}, 10, blacklist))

	chain = append(chain, chainStep{From: 0, Rule: 1, To: 2})
	require.True(t, chainRejects(chain, chainStep{From: 2, Rule: 9, To: 2}, 10, blacklist), "revisiting To must be rejected")
	require.True(t, chainRejects(chain, chainStep{From: 0, Rule: 1, To: 5}, 10, blacklist), "repeating (From, Rule) must be rejected")
}
