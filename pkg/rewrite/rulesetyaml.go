package rewrite

import (
	_ "embed"
	"fmt"

	"sigs.k8s.io/yaml"
)

//go:embed rulesets.yaml
var builtinBundle []byte

// LoadBuiltinRulesets loads the bundled rulesets (commutativity, identity
// laws, distributivity, numeric folding) shipped with the package.
func (p *Pool) LoadBuiltinRulesets() ([]RulesetId, error) {
	return p.LoadRulesetBundle(builtinBundle)
}

// Built-in ruleset bundles (distributivity, identity laws, commutativity,
// numeric folding) ship as structured YAML rather than the external
// surface-syntax parser's textual rule form, decoded with sigs.k8s.io/yaml
// (YAML -> JSON -> struct, the same struct-tag convention Kubernetes
// manifests use) into direct Pool.Add* calls.

type yamlPatternNode struct {
	Kind     string            `json:"kind"`
	Number   *int32            `json:"number,omitempty"`
	Name     string            `json:"name,omitempty"`
	Var      string            `json:"var,omitempty"`
	Fun      string            `json:"fun,omitempty"`
	Children []yamlPatternNode `json:"children,omitempty"`
}

type yamlActionNode struct {
	Kind     string           `json:"kind"`
	Number   *int32           `json:"number,omitempty"`
	Name     string           `json:"name,omitempty"`
	Var      string           `json:"var,omitempty"`
	Fun      string           `json:"fun,omitempty"`
	Op       string           `json:"op,omitempty"`
	Children []yamlActionNode `json:"children,omitempty"`
}

type yamlRule struct {
	Name    string          `json:"name"`
	Pattern yamlPatternNode `json:"pattern"`
	Action  yamlActionNode  `json:"action"`
}

type yamlRuleset struct {
	Name  string     `json:"name"`
	Rules []yamlRule `json:"rules"`
}

type yamlBundle struct {
	Rulesets []yamlRuleset `json:"rulesets"`
}

func builtinFunctionKind(name string) (FunctionKind, bool) {
	switch name {
	case "add":
		return FnAdd, true
	case "sub":
		return FnSub, true
	case "mul":
		return FnMul, true
	case "div":
		return FnDiv, true
	case "pow":
		return FnPow, true
	case "neg":
		return FnNeg, true
	case "plus":
		return FnPlus, true
	default:
		return 0, false
	}
}

func (p *Pool) resolveFunction(name string) FunctionId {
	if kind, ok := builtinFunctionKind(name); ok {
		return p.InternFunction(Function{Kind: kind})
	}
	return p.InternFunction(Function{Kind: FnCustom, Custom: p.InternName(name)})
}

func computeOpFromString(name string) (ComputeOp, error) {
	switch name {
	case "add":
		return ComputeAdd, nil
	case "sub":
		return ComputeSub, nil
	case "mul":
		return ComputeMul, nil
	case "div":
		return ComputeDiv, nil
	case "pow":
		return ComputePow, nil
	case "neg":
		return ComputeNeg, nil
	default:
		return 0, fmt.Errorf("rewrite: unknown compute op %q", name)
	}
}

// LoadRulesetBundle decodes a YAML document containing one or more named
// rulesets and their rules into pool, returning the ids of the rulesets
// defined. Rule patterns and actions are built bottom-up (children first)
// to satisfy the arena's postorder layout.
func (p *Pool) LoadRulesetBundle(data []byte) ([]RulesetId, error) {
	var bundle yamlBundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("rewrite: decoding ruleset bundle: %w", err)
	}

	var out []RulesetId
	for _, rs := range bundle.Rulesets {
		start := p.NumRules()
		for _, r := range rs.Rules {
			patID, err := p.buildPatternFromYAML(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("rewrite: ruleset %q rule %q pattern: %w", rs.Name, r.Name, err)
			}
			actID, err := p.buildActionFromYAML(r.Action)
			if err != nil {
				return nil, fmt.Errorf("rewrite: ruleset %q rule %q action: %w", rs.Name, r.Name, err)
			}
			p.AddRule(p.InternName(r.Name), patID, actID)
		}
		end := p.NumRules()
		out = append(out, p.AddRuleset(p.InternName(rs.Name), start, end))
	}
	return out, nil
}

func (p *Pool) buildPatternFromYAML(n yamlPatternNode) (PatternId, error) {
	switch n.Kind {
	case "number":
		if n.Number == nil {
			return 0, fmt.Errorf("rewrite: pattern node kind \"number\" missing number field")
		}
		return p.AddPattern(PatternNode{Kind: PatternNumber, Number: *n.Number}), nil
	case "variable":
		return p.AddPattern(PatternNode{Kind: PatternVariable, Name: p.InternName(n.Name)}), nil
	case "any_number":
		return p.AddPattern(PatternNode{Kind: PatternAnyNumber, Name: p.InternName(n.Name)}), nil
	case "wildcard":
		return p.AddPattern(PatternNode{Kind: PatternWildcard, Name: p.InternName(n.Name)}), nil
	case "var_call_name":
		last, arity, err := p.buildPatternChildren(n.Children)
		if err != nil {
			return 0, err
		}
		return p.AddPattern(PatternNode{Kind: PatternVarCallName, Var: p.InternName(n.Var), Last: last, Arity: arity}), nil
	case "var_struct_name":
		last, arity, err := p.buildPatternChildren(n.Children)
		if err != nil {
			return 0, err
		}
		return p.AddPattern(PatternNode{Kind: PatternVarStructName, Var: p.InternName(n.Var), Last: last, Arity: arity}), nil
	case "call":
		last, arity, err := p.buildPatternChildren(n.Children)
		if err != nil {
			return 0, err
		}
		return p.AddPattern(PatternNode{Kind: PatternCall, Fun: p.resolveFunction(n.Fun), Last: last, Arity: arity}), nil
	case "struct":
		last, arity, err := p.buildPatternChildren(n.Children)
		if err != nil {
			return 0, err
		}
		return p.AddPattern(PatternNode{Kind: PatternStruct, Name: p.InternName(n.Name), Last: last, Arity: arity}), nil
	default:
		return 0, fmt.Errorf("rewrite: unknown pattern node kind %q", n.Kind)
	}
}

// buildPatternChildren builds children in declared (left-to-right) order —
// leftmost first, so the leftmost child's own subtree lands at the lowest
// array position and the rightmost child ends up adjacent to the parent,
// matching the postorder convention nodeChildren relies on — and returns
// the Last offset their parent should record.
func (p *Pool) buildPatternChildren(children []yamlPatternNode) (last, arity int, err error) {
	startLen := p.NumPatterns()
	for i := 0; i < len(children); i++ {
		if _, err := p.buildPatternFromYAML(children[i]); err != nil {
			return 0, 0, err
		}
	}
	return p.NumPatterns() - startLen, len(children), nil
}

func (p *Pool) buildActionFromYAML(n yamlActionNode) (ActionId, error) {
	switch n.Kind {
	case "number":
		if n.Number == nil {
			return 0, fmt.Errorf("rewrite: action node kind \"number\" missing number field")
		}
		return p.AddAction(ActionNode{Kind: ActionNumber, Number: *n.Number}), nil
	case "variable":
		return p.AddAction(ActionNode{Kind: ActionVariable, Name: p.InternName(n.Name)}), nil
	case "var_call_name":
		last, arity, err := p.buildActionChildrenYAML(n.Children)
		if err != nil {
			return 0, err
		}
		return p.AddAction(ActionNode{Kind: ActionVarCallName, Var: p.InternName(n.Var), Last: last, Arity: arity}), nil
	case "var_struct_name":
		last, arity, err := p.buildActionChildrenYAML(n.Children)
		if err != nil {
			return 0, err
		}
		return p.AddAction(ActionNode{Kind: ActionVarStructName, Var: p.InternName(n.Var), Last: last, Arity: arity}), nil
	case "call":
		last, arity, err := p.buildActionChildrenYAML(n.Children)
		if err != nil {
			return 0, err
		}
		return p.AddAction(ActionNode{Kind: ActionCall, Fun: p.resolveFunction(n.Fun), Last: last, Arity: arity}), nil
	case "struct":
		last, arity, err := p.buildActionChildrenYAML(n.Children)
		if err != nil {
			return 0, err
		}
		return p.AddAction(ActionNode{Kind: ActionStruct, Name: p.InternName(n.Name), Last: last, Arity: arity}), nil
	case "compute":
		op, err := computeOpFromString(n.Op)
		if err != nil {
			return 0, err
		}
		last, arity, err := p.buildActionChildrenYAML(n.Children)
		if err != nil {
			return 0, err
		}
		return p.AddAction(ActionNode{Kind: ActionCompute, Op: op, Last: last, Arity: arity}), nil
	default:
		return 0, fmt.Errorf("rewrite: unknown action node kind %q", n.Kind)
	}
}

// buildActionChildrenYAML builds children in declared (left-to-right)
// order, same reasoning as buildPatternChildren above.
func (p *Pool) buildActionChildrenYAML(children []yamlActionNode) (last, arity int, err error) {
	startLen := p.NumActions()
	for i := 0; i < len(children); i++ {
		if _, err := p.buildActionFromYAML(children[i]); err != nil {
			return 0, 0, err
		}
	}
	return p.NumActions() - startLen, len(children), nil
}
