package rewrite

import (
	"container/heap"
	"context"
	"errors"
	"math/rand/v2"
	"slices"
)

// Search engines: bounded traversals of the derivation graph recorded by
// RecordTransformation, each returning a diverse set of SearchPaths
// rather than a single best path.

// ErrSearchCancelled is returned when ctx is cancelled mid-search.
var ErrSearchCancelled = errors.New("rewrite: search cancelled")

// SearchPath is one discovered sequence of rule applications from a start
// expression to some terminal expression.
type SearchPath struct {
	Steps []Transformation
	Cost  float64
}

// Length returns the number of steps in the path.
func (sp SearchPath) Length() int { return len(sp.Steps) }

// End returns the path's terminal expression, or the start expression if
// the path has no steps.
func (sp SearchPath) End(start ExprId) ExprId {
	if len(sp.Steps) == 0 {
		return start
	}
	return sp.Steps[len(sp.Steps)-1].To
}

// SearchConfig bounds every search engine's exploration.
type SearchConfig struct {
	MaxDepth              int
	MaxNodesExplored      int
	BeamWidth             int
	RandomWalkProbability float64
	DiversificationFactor float64
	TargetDiversity       int
}

// DefaultSearchConfig returns the engine's default exploration bounds.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MaxDepth:              50,
		MaxNodesExplored:      10000,
		BeamWidth:             10,
		RandomWalkProbability: 0.1,
		DiversificationFactor: 0.3,
		TargetDiversity:       100,
	}
}

type searchNode struct {
	expr      ExprId
	group     EquivalenceGroupId
	path      SearchPath
	chain     []chainStep
	depth     int
	heuristic float64
}

// ExpandNeighbors returns every outgoing transformation from expr: the
// transformations already recorded against it, plus — the first time expr
// is expanded — every transformation newly minted by matching rules
// against expr and applying them. ApplyRule records each new edge itself;
// later calls for the same expr see only the now-recorded set, so
// repeated visits during exploration never re-derive the same rule/offset
// into a fresh duplicate expression.
func (p *Pool) ExpandNeighbors(expr ExprId, rules []RuleId, opts RewriteOptions) []Transformation {
	p.RWMu.Lock()
	already := p.expandedFrom[expr]
	p.expandedFrom[expr] = true
	p.RWMu.Unlock()

	if !already {
		for _, m := range p.FindMatches(expr, rules) {
			p.ApplyRule(m, opts)
		}
	}
	return p.OutgoingTransformations(expr)
}

// BoundedBFS explores the derivation graph breadth-first from start,
// returning one path per newly-discovered equivalence class, up to
// cfg.MaxNodesExplored nodes and cfg.MaxDepth steps. Candidates that the
// class-chain control rejects are skipped.
func (p *Pool) BoundedBFS(ctx context.Context, start ExprId, rules []RuleId, cfg SearchConfig) ([]SearchPath, error) {
	startGroup := p.equivalenceGroupFor(start)
	seenGroups := map[EquivalenceGroupId]bool{startGroup: true}
	queue := []searchNode{{expr: start, group: startGroup}}
	var paths []SearchPath
	explored := 0
	opts := DefaultRewriteOptions()

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return paths, ErrSearchCancelled
		}
		cur := queue[0]
		queue = queue[1:]
		explored++
		if explored > cfg.MaxNodesExplored {
			break
		}
		if cur.depth >= cfg.MaxDepth {
			continue
		}
		for _, t := range p.ExpandNeighbors(cur.expr, rules, opts) {
			g := p.equivalenceGroupFor(t.To)
			if seenGroups[g] {
				continue
			}
			candidate := chainStep{From: cur.group, Rule: t.Rule, To: g}
			if chainRejects(cur.chain, candidate, p.maxChainLength, p.blacklistedChains) {
				continue
			}
			seenGroups[g] = true
			newChain := append(append([]chainStep(nil), cur.chain...), candidate)
			newPath := SearchPath{Steps: append(append([]Transformation(nil), cur.path.Steps...), t), Cost: cur.path.Cost + 1}
			paths = append(paths, newPath)
			queue = append(queue, searchNode{expr: t.To, group: g, path: newPath, chain: newChain, depth: cur.depth + 1})
		}
	}
	return paths, nil
}

type costFunc func(Transformation) float64

type pqItem struct {
	node  searchNode
	index int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].node.path.Cost < pq[j].node.path.Cost }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// BoundedDijkstra explores the derivation graph in order of cumulative
// edge cost (via cost), returning a path each time a cheaper route to an
// equivalence class other than start's is found, so one class can appear
// in several paths. Pass a constant cost function for unit-cost search.
func (p *Pool) BoundedDijkstra(ctx context.Context, start ExprId, rules []RuleId, cost costFunc, cfg SearchConfig) ([]SearchPath, error) {
	startGroup := p.equivalenceGroupFor(start)
	best := map[EquivalenceGroupId]float64{startGroup: 0}
	pq := &priorityQueue{{node: searchNode{expr: start, group: startGroup}}}
	heap.Init(pq)
	opts := DefaultRewriteOptions()

	var paths []SearchPath
	explored := 0
	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return paths, ErrSearchCancelled
		}
		item := heap.Pop(pq).(*pqItem)
		cur := item.node
		explored++
		if explored > cfg.MaxNodesExplored {
			break
		}
		if cur.depth >= cfg.MaxDepth {
			continue
		}
		for _, t := range p.ExpandNeighbors(cur.expr, rules, opts) {
			g := p.equivalenceGroupFor(t.To)
			candidate := chainStep{From: cur.group, Rule: t.Rule, To: g}
			if chainRejects(cur.chain, candidate, p.maxChainLength, p.blacklistedChains) {
				continue
			}
			newCost := cur.path.Cost + cost(t)
			if b, ok := best[g]; ok && b <= newCost {
				continue
			}
			best[g] = newCost
			newChain := append(append([]chainStep(nil), cur.chain...), candidate)
			newPath := SearchPath{Steps: append(append([]Transformation(nil), cur.path.Steps...), t), Cost: newCost}
			if g != startGroup {
				paths = append(paths, newPath)
			}
			heap.Push(pq, &pqItem{node: searchNode{expr: t.To, group: g, path: newPath, chain: newChain, depth: cur.depth + 1}})
		}
	}
	return paths, nil
}

// HeuristicSearch is an A* search toward target, guided by heuristic
// (typically ComplexityDistance, DepthDistance, or EditDistance against
// the expression represented by target). Returns the best-cost path found
// to target's equivalence class, if any.
func (p *Pool) HeuristicSearch(ctx context.Context, start, target ExprId, rules []RuleId, heuristic func(ExprId, ExprId) float64, cfg SearchConfig) (SearchPath, bool, error) {
	targetGroup := p.equivalenceGroupFor(target)
	startGroup := p.equivalenceGroupFor(start)
	gScore := map[EquivalenceGroupId]float64{startGroup: 0}
	opts := DefaultRewriteOptions()

	pq := &priorityQueue{{node: searchNode{expr: start, group: startGroup, heuristic: heuristic(start, target)}}}
	heap.Init(pq)
	explored := 0

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return SearchPath{}, false, ErrSearchCancelled
		}
		item := heap.Pop(pq).(*pqItem)
		cur := item.node
		explored++
		if explored > cfg.MaxNodesExplored {
			break
		}
		if cur.group == targetGroup {
			return cur.path, true, nil
		}
		if cur.depth >= cfg.MaxDepth {
			continue
		}
		for _, t := range p.ExpandNeighbors(cur.expr, rules, opts) {
			g := p.equivalenceGroupFor(t.To)
			candidate := chainStep{From: cur.group, Rule: t.Rule, To: g}
			if chainRejects(cur.chain, candidate, p.maxChainLength, p.blacklistedChains) {
				continue
			}
			tentative := gScore[cur.group] + 1
			if b, ok := gScore[g]; ok && b <= tentative {
				continue
			}
			gScore[g] = tentative
			newChain := append(append([]chainStep(nil), cur.chain...), candidate)
			newPath := SearchPath{Steps: append(append([]Transformation(nil), cur.path.Steps...), t), Cost: tentative + heuristic(t.To, target)}
			heap.Push(pq, &pqItem{node: searchNode{expr: t.To, group: g, path: newPath, chain: newChain, depth: cur.depth + 1, heuristic: heuristic(t.To, target)}})
		}
	}
	return SearchPath{}, false, nil
}

// BeamSearch keeps only the top BeamWidth candidates (by heuristic score
// against target) at each depth, but collects every path generated along
// the way, not just the surviving beam.
func (p *Pool) BeamSearch(ctx context.Context, start, target ExprId, rules []RuleId, heuristic func(ExprId, ExprId) float64, cfg SearchConfig) ([]SearchPath, error) {
	startGroup := p.equivalenceGroupFor(start)
	frontier := []searchNode{{expr: start, group: startGroup, heuristic: heuristic(start, target)}}
	var allPaths []SearchPath
	explored := 0
	opts := DefaultRewriteOptions()

	for depth := 0; depth < cfg.MaxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return allPaths, ErrSearchCancelled
		}
		var next []searchNode
		for _, cur := range frontier {
			explored++
			if explored > cfg.MaxNodesExplored {
				break
			}
			for _, t := range p.ExpandNeighbors(cur.expr, rules, opts) {
				g := p.equivalenceGroupFor(t.To)
				candidate := chainStep{From: cur.group, Rule: t.Rule, To: g}
				if chainRejects(cur.chain, candidate, p.maxChainLength, p.blacklistedChains) {
					continue
				}
				newChain := append(append([]chainStep(nil), cur.chain...), candidate)
				newPath := SearchPath{Steps: append(append([]Transformation(nil), cur.path.Steps...), t), Cost: cur.path.Cost + 1}
				allPaths = append(allPaths, newPath)
				next = append(next, searchNode{expr: t.To, group: g, path: newPath, chain: newChain, depth: depth + 1, heuristic: heuristic(t.To, target)})
			}
		}
		slices.SortFunc(next, func(a, b searchNode) int {
			if a.heuristic < b.heuristic {
				return -1
			}
			if a.heuristic > b.heuristic {
				return 1
			}
			return 0
		})
		if len(next) > cfg.BeamWidth {
			next = next[:cfg.BeamWidth]
		}
		frontier = next
	}
	return allPaths, nil
}

// RandomSearch performs numWalks independent random walks over the
// derivation graph, each stopping early with probability
// cfg.RandomWalkProbability per step (or at MaxDepth), returning every
// walk's path.
func (p *Pool) RandomSearch(ctx context.Context, start ExprId, rules []RuleId, numWalks int, cfg SearchConfig) ([]SearchPath, error) {
	var paths []SearchPath
	opts := DefaultRewriteOptions()
	for w := 0; w < numWalks; w++ {
		if err := ctx.Err(); err != nil {
			return paths, ErrSearchCancelled
		}
		cur := start
		curGroup := p.equivalenceGroupFor(start)
		var chain []chainStep
		var steps []Transformation
		cost := 0.0
		for depth := 0; depth < cfg.MaxDepth; depth++ {
			out := p.ExpandNeighbors(cur, rules, opts)
			candidates := make([]Transformation, 0, len(out))
			for _, t := range out {
				g := p.equivalenceGroupFor(t.To)
				if chainRejects(chain, chainStep{From: curGroup, Rule: t.Rule, To: g}, p.maxChainLength, p.blacklistedChains) {
					continue
				}
				candidates = append(candidates, t)
			}
			if len(candidates) == 0 {
				break
			}
			t := candidates[rand.IntN(len(candidates))]
			g := p.equivalenceGroupFor(t.To)
			chain = append(chain, chainStep{From: curGroup, Rule: t.Rule, To: g})
			steps = append(steps, t)
			cost++
			cur = t.To
			curGroup = g
			if rand.Float64() < cfg.RandomWalkProbability {
				break
			}
		}
		if len(steps) > 0 {
			paths = append(paths, SearchPath{Steps: steps, Cost: cost})
		}
	}
	return paths, nil
}

// CombinedSearch runs BFS, unit-cost Dijkstra, 20 random walks, and a
// complexity-guided beam search toward target, then deduplicates and
// ranks the union of all discovered paths.
func (p *Pool) CombinedSearch(ctx context.Context, start, target ExprId, rules []RuleId, cfg SearchConfig) ([]SearchPath, error) {
	var all []SearchPath

	bfsPaths, err := p.BoundedBFS(ctx, start, rules, cfg)
	if err != nil {
		return nil, err
	}
	all = append(all, bfsPaths...)

	dijkstraPaths, err := p.BoundedDijkstra(ctx, start, rules, func(Transformation) float64 { return 1 }, cfg)
	if err != nil {
		return nil, err
	}
	all = append(all, dijkstraPaths...)

	randomPaths, err := p.RandomSearch(ctx, start, rules, 20, cfg)
	if err != nil {
		return nil, err
	}
	all = append(all, randomPaths...)

	beamPaths, err := p.BeamSearch(ctx, start, target, rules, p.ComplexityDistance, cfg)
	if err != nil {
		return nil, err
	}
	all = append(all, beamPaths...)

	return p.deduplicateAndRankPaths(start, all, cfg), nil
}

// deduplicateAndRankPaths retains one path per terminal equivalence class
// (the cheapest, shortest one seen), sorts by (length, cost) ascending,
// and truncates to cfg.TargetDiversity.
func (p *Pool) deduplicateAndRankPaths(start ExprId, paths []SearchPath, cfg SearchConfig) []SearchPath {
	best := make(map[EquivalenceGroupId]SearchPath)
	for _, path := range paths {
		g := p.equivalenceGroupFor(path.End(start))
		existing, ok := best[g]
		if !ok || path.Length() < existing.Length() || (path.Length() == existing.Length() && path.Cost < existing.Cost) {
			best[g] = path
		}
	}
	out := make([]SearchPath, 0, len(best))
	for _, path := range best {
		out = append(out, path)
	}
	slices.SortFunc(out, func(a, b SearchPath) int {
		if a.Length() != b.Length() {
			return a.Length() - b.Length()
		}
		if a.Cost < b.Cost {
			return -1
		}
		if a.Cost > b.Cost {
			return 1
		}
		return 0
	})
	if len(out) > cfg.TargetDiversity {
		out = out[:cfg.TargetDiversity]
	}
	return out
}
