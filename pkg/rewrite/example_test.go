package rewrite

import "fmt"

// Building a rule by hand means appending its pattern and action trees in
// postorder (children before parent) and tying them together with AddRule.
func ExamplePool_ApplyRule() {
	p := NewPool()
	fAdd := p.InternFunction(Function{Kind: FnAdd})

	// Pattern ?a + ?b: any two subterms under a built-in addition.
	a := p.InternName("a")
	b := p.InternName("b")
	p.AddPattern(PatternNode{Kind: PatternWildcard, Name: a})
	p.AddPattern(PatternNode{Kind: PatternWildcard, Name: b})
	pat := p.AddPattern(PatternNode{Kind: PatternCall, Fun: fAdd, Last: 2, Arity: 2})

	// Action b + a: the captures swapped.
	p.AddAction(ActionNode{Kind: ActionVariable, Name: b})
	p.AddAction(ActionNode{Kind: ActionVariable, Name: a})
	act := p.AddAction(ActionNode{Kind: ActionCall, Fun: fAdd, Last: 2, Arity: 2})

	rule := p.AddRule(p.InternName("commute"), pat, act)

	// Expression x + y, appended the same bottom-up way.
	p.AddExpr(NewVariableExpr(p.InternName("x")))
	p.AddExpr(NewVariableExpr(p.InternName("y")))
	expr := p.AddExpr(NewCallExpr(fAdd, 2, 2))
	p.MarkRoot(expr)

	matches := p.FindMatches(expr, []RuleId{rule})
	result, ok := p.ApplyRule(matches[0], DefaultRewriteOptions())
	if ok {
		fmt.Println(p.DisplayExpr(result))
	}
	// Output: (y + x)
}

// The bundled numeric-folding ruleset collapses literal arithmetic into a
// single number via Compute actions.
func ExamplePool_LoadBuiltinRulesets() {
	p := NewPool()
	rulesets, err := p.LoadBuiltinRulesets()
	if err != nil {
		fmt.Println(err)
		return
	}
	folding := rulesets[3]

	fAdd := p.InternFunction(Function{Kind: FnAdd})
	p.AddExpr(NewNumberExpr(2))
	p.AddExpr(NewNumberExpr(3))
	expr := p.AddExpr(NewCallExpr(fAdd, 2, 2))
	p.MarkRoot(expr)

	matches := p.FindMatches(expr, p.RulesetRules(folding))
	result, ok := p.ApplyRule(matches[0], DefaultRewriteOptions())
	if ok {
		fmt.Println(p.DisplayExpr(result))
	}
	// Output: 5
}

func ExamplePool_DisplayExpr() {
	p := NewPool()
	fAdd := p.InternFunction(Function{Kind: FnAdd})
	fMul := p.InternFunction(Function{Kind: FnMul})

	p.AddExpr(NewNumberExpr(2))
	p.AddExpr(NewVariableExpr(p.InternName("x")))
	p.AddExpr(NewNumberExpr(1))
	p.AddExpr(NewCallExpr(fAdd, 2, 2))
	expr := p.AddExpr(NewCallExpr(fMul, 4, 2))
	p.MarkRoot(expr)

	fmt.Println(p.DisplayExpr(expr))
	// Output: (2 * (x + 1))
}
