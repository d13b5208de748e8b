package rewrite

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Location is a byte-offset span into a parsed source text, attached to an
// expression node as provenance.
type Location struct {
	Start int
	End   int
}

// Span returns the width of the location in bytes. Nothing in this package
// chooses between provenance entries by span.
func (l Location) Span() int { return l.End - l.Start }

// ProvenanceKind tags the variant of a Provenance value.
type ProvenanceKind uint8

const (
	ProvenanceParsed ProvenanceKind = iota
	ProvenanceRule
)

// Provenance records where an expression node came from: either a location
// in originally parsed source text, or a rule application that produced it
// from some source node.
type Provenance struct {
	Kind           ProvenanceKind
	ParsedLocation Location
	RuleID         RuleId
	SourceNode     ExprId
	SourceLocation Location
}

// Pool is the arena backing every table in the engine: expressions,
// patterns, actions, rules, rulesets, interned names and functions, and the
// derivation graph's bookkeeping. All ids are indices into these tables.
// Pool is safe for concurrent readers; mutation is serialized by RWMu and
// must not be interleaved with reads that assume a stable snapshot
// mid-call; concurrent mutation is not supported.
type Pool struct {
	RWMu sync.RWMutex

	// SessionID correlates diagnostic output (snapshots, search run logs)
	// across multiple exploration sessions against the same pool.
	SessionID uuid.UUID

	exprs    []ExprNode
	exprEnds []int // sorted, ascending; holds root markers for find_root

	names   []string
	nameMap map[string]NameId

	functions   []Function
	functionMap map[Function]FunctionId

	patterns []PatternNode
	actions  []ActionNode

	rules    []Rule
	rulesets []Ruleset

	provenance      map[ExprId]Provenance
	ruleLocations   map[RuleId]Location
	actionLocations map[ActionId]Location

	// Derivation graph bookkeeping (see graph.go for the operations that
	// populate and consume these tables).
	outgoing map[ExprId][]Transformation
	incoming map[ExprId][]Transformation
	byRule   map[RuleId][]Transformation

	equivalenceGroups [][]ExprId
	exprToGroup       map[ExprId]EquivalenceGroupId
	groupBuckets      map[uint64][]EquivalenceGroupId
	equivOutgoing     map[EquivalenceGroupId]map[RuleId][]EquivalenceGroupId
	equivIncoming     map[EquivalenceGroupId]map[RuleId][]EquivalenceGroupId
	blacklistedChains map[string]struct{}
	maxChainLength    int
	currentChain      []chainStep

	// expandedFrom marks expression ids that have already had
	// find_matches/apply_rule run against them during search expansion
	// (see search.go ExpandNeighbors), so repeated visits during
	// exploration reuse the recorded transformations instead of minting
	// fresh duplicate expressions for the same rule/offset every time.
	expandedFrom map[ExprId]bool
}

type chainStep struct {
	From EquivalenceGroupId
	Rule RuleId
	To   EquivalenceGroupId
}

// NewPool constructs an empty pool with the seven built-in operators
// pre-interned at fixed positions 0-6. That fixed layout is relied on by
// ast.go's FnAdd..FnPlus constants and survives Reset.
func NewPool() *Pool {
	p := &Pool{
		SessionID:         uuid.New(),
		nameMap:           make(map[string]NameId),
		functionMap:       make(map[Function]FunctionId),
		provenance:        make(map[ExprId]Provenance),
		ruleLocations:     make(map[RuleId]Location),
		actionLocations:   make(map[ActionId]Location),
		outgoing:          make(map[ExprId][]Transformation),
		incoming:          make(map[ExprId][]Transformation),
		byRule:            make(map[RuleId][]Transformation),
		exprToGroup:       make(map[ExprId]EquivalenceGroupId),
		groupBuckets:      make(map[uint64][]EquivalenceGroupId),
		equivOutgoing:     make(map[EquivalenceGroupId]map[RuleId][]EquivalenceGroupId),
		equivIncoming:     make(map[EquivalenceGroupId]map[RuleId][]EquivalenceGroupId),
		blacklistedChains: make(map[string]struct{}),
		maxChainLength:    1024,
		expandedFrom:      make(map[ExprId]bool),
	}
	p.internBuiltins()
	return p
}

func (p *Pool) internBuiltins() {
	builtins := []FunctionKind{FnAdd, FnSub, FnMul, FnDiv, FnPow, FnNeg, FnPlus}
	for _, k := range builtins {
		f := Function{Kind: k}
		id := FunctionId(len(p.functions))
		p.functions = append(p.functions, f)
		p.functionMap[f] = id
	}
}

// Reset clears every table back to a fresh pool, re-interning the seven
// built-ins at their fixed positions.
func (p *Pool) Reset() {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()

	p.exprs = nil
	p.exprEnds = nil
	p.names = nil
	p.nameMap = make(map[string]NameId)
	p.functions = nil
	p.functionMap = make(map[Function]FunctionId)
	p.patterns = nil
	p.actions = nil
	p.rules = nil
	p.rulesets = nil
	p.provenance = make(map[ExprId]Provenance)
	p.ruleLocations = make(map[RuleId]Location)
	p.actionLocations = make(map[ActionId]Location)
	p.outgoing = make(map[ExprId][]Transformation)
	p.incoming = make(map[ExprId][]Transformation)
	p.byRule = make(map[RuleId][]Transformation)
	p.equivalenceGroups = nil
	p.exprToGroup = make(map[ExprId]EquivalenceGroupId)
	p.groupBuckets = make(map[uint64][]EquivalenceGroupId)
	p.equivOutgoing = make(map[EquivalenceGroupId]map[RuleId][]EquivalenceGroupId)
	p.equivIncoming = make(map[EquivalenceGroupId]map[RuleId][]EquivalenceGroupId)
	p.blacklistedChains = make(map[string]struct{})
	p.currentChain = nil
	p.expandedFrom = make(map[ExprId]bool)

	p.internBuiltins()
}

// InternName returns the NameId for name, interning it if not already
// present.
func (p *Pool) InternName(name string) NameId {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	if id, ok := p.nameMap[name]; ok {
		return id
	}
	id := NameId(len(p.names))
	p.names = append(p.names, name)
	p.nameMap[name] = id
	return id
}

// Name returns the interned string for id.
func (p *Pool) Name(id NameId) string {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return p.names[int(id)]
}

// InternFunction returns the FunctionId for fn, interning it if not already
// present. Custom functions are keyed by their NameId.
func (p *Pool) InternFunction(fn Function) FunctionId {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	if id, ok := p.functionMap[fn]; ok {
		return id
	}
	id := FunctionId(len(p.functions))
	p.functions = append(p.functions, fn)
	p.functionMap[fn] = id
	return id
}

// FunctionAt returns the Function value interned at id.
func (p *Pool) FunctionAt(id FunctionId) Function {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return p.functions[int(id)]
}

// AddExpr appends node to the expression table and returns its id. The
// caller is responsible for writing node's children first (postorder) and
// for calling MarkRoot if node is a derivation root.
func (p *Pool) AddExpr(node ExprNode) ExprId {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	id := ExprId(len(p.exprs))
	p.exprs = append(p.exprs, node)
	return id
}

// AddExprWithProvenance is AddExpr plus recording prov for the new node.
func (p *Pool) AddExprWithProvenance(node ExprNode, prov Provenance) ExprId {
	id := p.AddExpr(node)
	p.RWMu.Lock()
	p.provenance[id] = prov
	p.RWMu.Unlock()
	return id
}

// MarkRoot records id as a derivation root. Every id handed out as a
// user-level root is recorded here; a child id never is.
func (p *Pool) MarkRoot(id ExprId) {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	i := sort.SearchInts(p.exprEnds, int(id))
	if i < len(p.exprEnds) && p.exprEnds[i] == int(id) {
		return
	}
	p.exprEnds = append(p.exprEnds, 0)
	copy(p.exprEnds[i+1:], p.exprEnds[i:])
	p.exprEnds[i] = int(id)
}

// IsRoot reports whether id was marked as a root.
func (p *Pool) IsRoot(id ExprId) bool {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	i := sort.SearchInts(p.exprEnds, int(id))
	return i < len(p.exprEnds) && p.exprEnds[i] == int(id)
}

// FindRoot returns the smallest recorded root id at or after pos: the
// root whose subtree pos falls within.
func (p *Pool) FindRoot(pos ExprId) (ExprId, bool) {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	i := sort.SearchInts(p.exprEnds, int(pos))
	if i == len(p.exprEnds) {
		return 0, false
	}
	return ExprId(p.exprEnds[i]), true
}

// AllRoots returns every recorded root id in ascending order.
func (p *Pool) AllRoots() []ExprId {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	out := make([]ExprId, len(p.exprEnds))
	for i, v := range p.exprEnds {
		out[i] = ExprId(v)
	}
	return out
}

// GetProvenance returns the recorded provenance for id, if any.
func (p *Pool) GetProvenance(id ExprId) (Provenance, bool) {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	prov, ok := p.provenance[id]
	return prov, ok
}

// ExprAt returns the raw node at id. Callers needing a subtree should use
// FullSlice instead.
func (p *Pool) ExprAt(id ExprId) ExprNode {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return p.exprs[int(id)]
}

// NumExprs returns the number of entries in the expression table.
func (p *Pool) NumExprs() int {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return len(p.exprs)
}

// NumPatterns returns the number of entries in the pattern table.
func (p *Pool) NumPatterns() int {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return len(p.patterns)
}

// NumActions returns the number of entries in the action table.
func (p *Pool) NumActions() int {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return len(p.actions)
}

// AddPattern appends node to the pattern table and returns its id.
func (p *Pool) AddPattern(node PatternNode) PatternId {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	id := PatternId(len(p.patterns))
	p.patterns = append(p.patterns, node)
	return id
}

// PatternAt returns the raw pattern node at id.
func (p *Pool) PatternAt(id PatternId) PatternNode {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return p.patterns[int(id)]
}

// AddAction appends node to the action table and returns its id.
func (p *Pool) AddAction(node ActionNode) ActionId {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	id := ActionId(len(p.actions))
	p.actions = append(p.actions, node)
	return id
}

// AddActionWithLocation is AddAction plus recording loc as the action's
// own definition-site provenance.
func (p *Pool) AddActionWithLocation(node ActionNode, loc Location) ActionId {
	id := p.AddAction(node)
	p.RWMu.Lock()
	p.actionLocations[id] = loc
	p.RWMu.Unlock()
	return id
}

// ActionLocation returns the recorded definition-site location for id.
func (p *Pool) ActionLocation(id ActionId) (Location, bool) {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	loc, ok := p.actionLocations[id]
	return loc, ok
}

// ActionAt returns the raw action node at id.
func (p *Pool) ActionAt(id ActionId) ActionNode {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return p.actions[int(id)]
}

// AddRule appends a named (pattern, action) rule and returns its id.
func (p *Pool) AddRule(name NameId, pattern PatternId, action ActionId) RuleId {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	id := RuleId(len(p.rules))
	p.rules = append(p.rules, Rule{Name: name, Pattern: pattern, Action: action})
	return id
}

// AddRuleWithLocation is AddRule plus recording loc as the rule's own
// definition-site provenance.
func (p *Pool) AddRuleWithLocation(name NameId, pattern PatternId, action ActionId, loc Location) RuleId {
	id := p.AddRule(name, pattern, action)
	p.RWMu.Lock()
	p.ruleLocations[id] = loc
	p.RWMu.Unlock()
	return id
}

// RuleLocation returns the recorded definition-site location for id.
func (p *Pool) RuleLocation(id RuleId) (Location, bool) {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	loc, ok := p.ruleLocations[id]
	return loc, ok
}

// RuleAt returns the raw rule at id.
func (p *Pool) RuleAt(id RuleId) Rule {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return p.rules[int(id)]
}

// NumRules returns the number of entries in the rule table.
func (p *Pool) NumRules() int {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	return len(p.rules)
}

// AddRuleset appends a named ruleset spanning the half-open rule range
// [start, end) and returns its id.
func (p *Pool) AddRuleset(name NameId, start, end int) RulesetId {
	p.RWMu.Lock()
	defer p.RWMu.Unlock()
	id := RulesetId(len(p.rulesets))
	p.rulesets = append(p.rulesets, Ruleset{Name: name, RulesStart: start, RulesEnd: end})
	return id
}

// RulesetRules returns the rule ids spanned by ruleset id.
func (p *Pool) RulesetRules(id RulesetId) []RuleId {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	rs := p.rulesets[int(id)]
	out := make([]RuleId, 0, rs.RulesEnd-rs.RulesStart)
	for i := rs.RulesStart; i < rs.RulesEnd; i++ {
		out = append(out, RuleId(i))
	}
	return out
}

// RulesetRuleCount returns the number of rules spanned by ruleset id.
func (p *Pool) RulesetRuleCount(id RulesetId) int {
	p.RWMu.RLock()
	defer p.RWMu.RUnlock()
	rs := p.rulesets[int(id)]
	return rs.RulesEnd - rs.RulesStart
}
