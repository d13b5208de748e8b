package rewrite

import (
	"fmt"
	"strings"

	"github.com/dchest/siphash"
)

// Graph: the derivation graph recorded as rule applications accumulate,
// plus the structural-equivalence class manager layered on top of it.
// Classification uses a SipHash structural-hash bucket index so the
// common case is O(1) rather than a linear scan over every group.

// Transformation is one recorded rule application: expression From was
// rewritten to expression To via Rule.
type Transformation struct {
	From ExprId
	To   ExprId
	Rule RuleId
}

const siphashK0, siphashK1 = 0x646f6e7427746965, 0x77656c6c626f7265

// structuralHash hashes id's full subtree slice into a bucket key. Ties
// inside a bucket are broken with ExprEq, so a hash collision never causes
// two structurally distinct expressions to be merged into one group.
func (p *Pool) structuralHash(id ExprId) uint64 {
	slice := p.FullSlice(id)
	buf := make([]byte, 0, len(slice)*10)
	for _, n := range slice {
		buf = append(buf, byte(n.Kind))
		buf = append(buf, byte(n.Number), byte(n.Number>>8), byte(n.Number>>16), byte(n.Number>>24))
		buf = append(buf, byte(n.Name), byte(n.Name>>8))
		buf = append(buf, byte(n.Fun))
		buf = append(buf, byte(n.Arity))
	}
	return siphash.Hash(siphashK0, siphashK1, buf)
}

// RecordTransformation stores a derivation edge from -> to via rule, and
// folds `to` into the equivalence-class index.
func (p *Pool) RecordTransformation(from, to ExprId, rule RuleId) {
	p.RWMu.Lock()
	t := Transformation{From: from, To: to, Rule: rule}
	p.outgoing[from] = append(p.outgoing[from], t)
	p.incoming[to] = append(p.incoming[to], t)
	p.byRule[rule] = append(p.byRule[rule], t)
	p.RWMu.Unlock()

	fromGroup := p.equivalenceGroupFor(from)
	toGroup := p.equivalenceGroupFor(to)

	// Duplicate class-level edges are suppressed: the same (from, rule, to)
	// step recorded twice at the term level maps to one class-level edge.
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	if p.equivOutgoing[fromGroup] == nil {
		p.equivOutgoing[fromGroup] = make(map[RuleId][]EquivalenceGroupId)
	}
	if !containsGroup(p.equivOutgoing[fromGroup][rule], toGroup) {
		p.equivOutgoing[fromGroup][rule] = append(p.equivOutgoing[fromGroup][rule], toGroup)
	}
	if p.equivIncoming[toGroup] == nil {
		p.equivIncoming[toGroup] = make(map[RuleId][]EquivalenceGroupId)
	}
	if !containsGroup(p.equivIncoming[toGroup][rule], fromGroup) {
		p.equivIncoming[toGroup][rule] = append(p.equivIncoming[toGroup][rule], fromGroup)
	}
}

func containsGroup(groups []EquivalenceGroupId, g EquivalenceGroupId) bool {
	for _, have := range groups {
		if have == g {
			return true
		}
	}
	return false
}

// equivalenceGroupFor returns id's equivalence class, creating one (via
// the structural-hash bucket index, falling back to ExprEq on collision)
// if id has not been classified yet.
func (p *Pool) equivalenceGroupFor(id ExprId) EquivalenceGroupId {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	if g, ok := p.exprToGroup[id]; ok {
		return g
	}
	h := p.structuralHash(id)
	for _, candidate := range p.groupBuckets[h] {
		for _, member := range p.equivalenceGroups[candidate] {
			if exprEq(p.exprs, int(member), int(id)) {
				p.equivalenceGroups[candidate] = append(p.equivalenceGroups[candidate], id)
				p.exprToGroup[id] = candidate
				return candidate
			}
		}
	}
	g := EquivalenceGroupId(len(p.equivalenceGroups))
	p.equivalenceGroups = append(p.equivalenceGroups, []ExprId{id})
	p.groupBuckets[h] = append(p.groupBuckets[h], g)
	p.exprToGroup[id] = g
	return g
}

// EquivalenceGroupOf returns id's equivalence class, if classified.
func (p *Pool) EquivalenceGroupOf(id ExprId) (EquivalenceGroupId, bool) {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	g, ok := p.exprToGroup[id]
	return g, ok
}

// GroupExpressions returns every expression classified into group g.
func (p *Pool) GroupExpressions(g EquivalenceGroupId) []ExprId {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	out := make([]ExprId, len(p.equivalenceGroups[int(g)]))
	copy(out, p.equivalenceGroups[int(g)])
	return out
}

// AllEquivalenceGroups returns every classified group.
func (p *Pool) AllEquivalenceGroups() [][]ExprId {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	out := make([][]ExprId, len(p.equivalenceGroups))
	for i, g := range p.equivalenceGroups {
		out[i] = append([]ExprId(nil), g...)
	}
	return out
}

// OutgoingTransformations returns every rule application whose source was
// id.
func (p *Pool) OutgoingTransformations(id ExprId) []Transformation {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return append([]Transformation(nil), p.outgoing[id]...)
}

// IncomingTransformations returns every rule application whose result was
// id.
func (p *Pool) IncomingTransformations(id ExprId) []Transformation {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return append([]Transformation(nil), p.incoming[id]...)
}

// RuleApplications returns every recorded application of rule.
func (p *Pool) RuleApplications(rule RuleId) []Transformation {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return append([]Transformation(nil), p.byRule[rule]...)
}

// FindTransformationPath finds a shortest sequence of transformations from
// `from` to `to` via BFS over the outgoing adjacency.
func (p *Pool) FindTransformationPath(from, to ExprId) ([]Transformation, bool) {
	if from == to {
		return nil, true
	}
	type parentEdge struct {
		prev ExprId
		t    Transformation
	}
	visited := map[ExprId]bool{from: true}
	parent := make(map[ExprId]parentEdge)
	queue := []ExprId{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range p.OutgoingTransformations(cur) {
			if visited[t.To] {
				continue
			}
			visited[t.To] = true
			parent[t.To] = parentEdge{prev: cur, t: t}
			if t.To == to {
				var path []Transformation
				n := to
				for n != from {
					pe := parent[n]
					path = append([]Transformation{pe.t}, path...)
					n = pe.prev
				}
				return path, true
			}
			queue = append(queue, t.To)
		}
	}
	return nil, false
}

// GetDerivationHistory walks id's incoming edges back to a root,
// returning the chain of transformations in application order.
func (p *Pool) GetDerivationHistory(id ExprId) []Transformation {
	var history []Transformation
	cur := id
	for {
		incoming := p.IncomingTransformations(cur)
		if len(incoming) == 0 {
			break
		}
		t := incoming[0]
		history = append([]Transformation{t}, history...)
		cur = t.From
	}
	return history
}

// bfs runs a breadth-first traversal over the outgoing adjacency starting
// at start, returning every reachable node in discovery order.
func (p *Pool) bfs(start ExprId) []ExprId {
	visited := map[ExprId]bool{start: true}
	order := []ExprId{start}
	queue := []ExprId{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range p.OutgoingTransformations(cur) {
			if !visited[t.To] {
				visited[t.To] = true
				order = append(order, t.To)
				queue = append(queue, t.To)
			}
		}
	}
	return order
}

// dfs runs a depth-first traversal over the outgoing adjacency starting at
// start, returning every reachable node in visit order.
func (p *Pool) dfs(start ExprId) []ExprId {
	visited := map[ExprId]bool{}
	var order []ExprId
	var visit func(ExprId)
	visit = func(n ExprId) {
		if visited[n] {
			return
		}
		visited[n] = true
		order = append(order, n)
		for _, t := range p.OutgoingTransformations(n) {
			visit(t.To)
		}
	}
	visit(start)
	return order
}

// FindAllReachable returns every expression reachable from `from` via any
// sequence of recorded rule applications.
func (p *Pool) FindAllReachable(from ExprId) []ExprId { return p.bfs(from) }

// DetectCycles reports whether the term-level derivation graph contains a
// cycle reachable from start.
func (p *Pool) DetectCycles(start ExprId) bool {
	visiting := map[ExprId]bool{}
	visited := map[ExprId]bool{}
	var visit func(ExprId) bool
	visit = func(n ExprId) bool {
		visiting[n] = true
		for _, t := range p.OutgoingTransformations(n) {
			if visiting[t.To] {
				return true
			}
			if !visited[t.To] && visit(t.To) {
				return true
			}
		}
		visiting[n] = false
		visited[n] = true
		return false
	}
	return visit(start)
}

// HasInfiniteDerivationPotential reports whether any cycle is reachable
// from `from`: a heuristic for unbounded rewrite loops.
func (p *Pool) HasInfiniteDerivationPotential(from ExprId) bool {
	return p.DetectCycles(from)
}

// FindStronglyConnectedComponents computes the term-level derivation
// graph's SCCs restricted to the nodes reachable from roots, using
// Kosaraju's two-pass algorithm (DFS fill order, then DFS over the
// transpose in reverse fill order).
func (p *Pool) FindStronglyConnectedComponents(roots []ExprId) [][]ExprId {
	visited := map[ExprId]bool{}
	var order []ExprId
	var fill func(ExprId)
	fill = func(n ExprId) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, t := range p.OutgoingTransformations(n) {
			fill(t.To)
		}
		order = append(order, n)
	}
	for _, r := range roots {
		fill(r)
	}

	assigned := map[ExprId]bool{}
	var sccs [][]ExprId
	var collect func(ExprId, *[]ExprId)
	collect = func(n ExprId, comp *[]ExprId) {
		if assigned[n] || !visited[n] {
			return
		}
		assigned[n] = true
		*comp = append(*comp, n)
		for _, t := range p.IncomingTransformations(n) {
			collect(t.From, comp)
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		if assigned[n] {
			continue
		}
		var comp []ExprId
		collect(n, &comp)
		sccs = append(sccs, comp)
	}
	return sccs
}

// --- Chain blacklisting ---

func chainKey(steps []chainStep) string {
	var b strings.Builder
	for i, s := range steps {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprintf(&b, "%d:%d:%d", s.From, s.Rule, s.To)
	}
	return b.String()
}

// StartApplicationChain resets the current application chain to empty.
func (p *Pool) StartApplicationChain() {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	p.currentChain = nil
}

// ClearApplicationChain is an alias of StartApplicationChain for symmetry
// with the original API surface.
func (p *Pool) ClearApplicationChain() { p.StartApplicationChain() }

// GetCurrentApplicationChain returns a copy of the current chain.
func (p *Pool) GetCurrentApplicationChain() []EquivalenceGroupId {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	out := make([]EquivalenceGroupId, len(p.currentChain))
	for i, s := range p.currentChain {
		out[i] = s.To
	}
	return out
}

// ShouldApplyRule decides whether stepping from fromGroup to toGroup via
// rule should be permitted given the current application chain. Rejection
// order: chain at max length; toGroup already visited; exact step
// repeated; extended chain blacklisted; any suffix of the extended chain
// blacklisted.
func (p *Pool) ShouldApplyRule(fromGroup EquivalenceGroupId, rule RuleId, toGroup EquivalenceGroupId) bool {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	candidate := chainStep{From: fromGroup, Rule: rule, To: toGroup}
	return !chainRejects(p.currentChain, candidate, p.maxChainLength, p.blacklistedChains)
}

// chainRejects applies the rejection order above to an arbitrary chain
// value: chain at max length; candidate.To already visited; the exact
// (From, Rule) step already appears; the extended chain blacklisted; any
// suffix of the extended chain blacklisted. Pure function of its
// arguments so both the pool-level current chain (ShouldApplyRule) and a
// search engine's own per-path chain (search.go) can share one rule.
func chainRejects(chain []chainStep, candidate chainStep, maxChainLength int, blacklisted map[string]struct{}) bool {
	if len(chain) >= maxChainLength {
		return true
	}
	for _, s := range chain {
		if s.To == candidate.To {
			return true
		}
		if s.From == candidate.From && s.Rule == candidate.Rule {
			return true
		}
	}
	extended := append(append([]chainStep(nil), chain...), candidate)
	if _, ok := blacklisted[chainKey(extended)]; ok {
		return true
	}
	for i := range extended {
		if _, ok := blacklisted[chainKey(extended[i:])]; ok {
			return true
		}
	}
	return false
}

// ExtendApplicationChain records that fromGroup stepped to toGroup via
// rule, assuming ShouldApplyRule already approved the step.
func (p *Pool) ExtendApplicationChain(fromGroup EquivalenceGroupId, rule RuleId, toGroup EquivalenceGroupId) {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	p.currentChain = append(p.currentChain, chainStep{From: fromGroup, Rule: rule, To: toGroup})
}

// DetectEquivalenceCycles reports whether the class-level adjacency
// contains a cycle reachable from start.
func (p *Pool) DetectEquivalenceCycles(start EquivalenceGroupId) bool {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()

	visiting := map[EquivalenceGroupId]bool{}
	visited := map[EquivalenceGroupId]bool{}
	var visit func(EquivalenceGroupId) bool
	visit = func(n EquivalenceGroupId) bool {
		visiting[n] = true
		for _, targets := range p.equivOutgoing[n] {
			for _, to := range targets {
				if visiting[to] {
					return true
				}
				if !visited[to] && visit(to) {
					return true
				}
			}
		}
		visiting[n] = false
		visited[n] = true
		return false
	}
	return visit(start)
}

// DetectAndBlacklistCycles walks the class-level adjacency from start and
// blacklists every closed chain of length greater than one it finds, so
// future ShouldApplyRule calls reject re-entering them.
func (p *Pool) DetectAndBlacklistCycles(start EquivalenceGroupId) int {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()

	blacklisted := 0
	var path []chainStep
	onPath := map[EquivalenceGroupId]int{start: 0}

	var visit func(EquivalenceGroupId)
	visit = func(n EquivalenceGroupId) {
		for rule, targets := range p.equivOutgoing[n] {
			for _, to := range targets {
				path = append(path, chainStep{From: n, Rule: rule, To: to})
				if startIdx, onChain := onPath[to]; onChain {
					cycle := append([]chainStep(nil), path[startIdx:]...)
					if len(cycle) > 1 {
						p.blacklistedChains[chainKey(cycle)] = struct{}{}
						blacklisted++
					}
				} else {
					onPath[to] = len(path)
					visit(to)
					delete(onPath, to)
				}
				path = path[:len(path)-1]
			}
		}
	}
	visit(start)
	return blacklisted
}
