package rewrite

import "fmt"

// Display: renders expression, pattern, and action subtrees as algebraic
// surface syntax, with special-cased binary/unary operator forms.
// Consumers (error messages, diagnostic snapshots, the ruleset loader's
// tests) all go through this file so there is exactly one
// rendering convention in the repo.

// DisplayExpr renders the subtree rooted at id as surface syntax.
func (p *Pool) DisplayExpr(id ExprId) string {
	n := p.ExprAt(id)
	switch n.Kind {
	case ExprNumber:
		return fmt.Sprintf("%d", n.Number)
	case ExprVariable:
		return p.Name(n.Name)
	case ExprCall:
		return p.displayCall(n.Fun, p.leftToRightChildren(id))
	case ExprStruct:
		return p.displayStruct(p.Name(n.Name), p.leftToRightChildren(id))
	default:
		return "?"
	}
}

func (p *Pool) leftToRightChildren(id ExprId) []string {
	children := p.Children(id) // rightmost-first
	out := make([]string, len(children))
	for i, c := range children {
		out[len(children)-1-i] = p.DisplayExpr(c)
	}
	return out
}

func (p *Pool) displayCall(fun FunctionId, args []string) string {
	f := p.FunctionAt(fun)
	switch {
	case f.Kind == FnAdd && len(args) == 2:
		return fmt.Sprintf("(%s + %s)", args[0], args[1])
	case f.Kind == FnSub && len(args) == 2:
		return fmt.Sprintf("(%s - %s)", args[0], args[1])
	case f.Kind == FnMul && len(args) == 2:
		return fmt.Sprintf("(%s * %s)", args[0], args[1])
	case f.Kind == FnDiv && len(args) == 2:
		return fmt.Sprintf("(%s / %s)", args[0], args[1])
	case f.Kind == FnPow && len(args) == 2:
		return fmt.Sprintf("(%s ^ %s)", args[0], args[1])
	case f.Kind == FnNeg && len(args) == 1:
		return fmt.Sprintf("(-%s)", args[0])
	case f.Kind == FnPlus && len(args) == 1:
		return fmt.Sprintf("(+%s)", args[0])
	}
	name := f.String()
	if f.Kind == FnCustom {
		name = p.Name(f.Custom)
	}
	if len(args) == 0 {
		return fmt.Sprintf("%s()", name)
	}
	return fmt.Sprintf("%s(%s)", name, joinComma(args))
}

func (p *Pool) displayStruct(name string, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("%s{ }", name)
	}
	return fmt.Sprintf("%s{ %s }", name, joinComma(args))
}

func joinComma(ss []string) string {
	out := ss[0]
	for _, s := range ss[1:] {
		out += ", " + s
	}
	return out
}

// DisplayPattern renders a pattern subtree: a literal variable renders as
// its bare name, `?name` is a wildcard (any-subterm) capture, `#name` a
// numeric-only capture, and `?name(...)`/`?name{ ... }` the composites
// capturing a call's function or a struct's name.
func (p *Pool) DisplayPattern(id PatternId) string {
	n := p.PatternAt(id)
	switch n.Kind {
	case PatternNumber:
		return fmt.Sprintf("%d", n.Number)
	case PatternVariable:
		return p.Name(n.Name)
	case PatternAnyNumber:
		return "#" + p.Name(n.Name)
	case PatternWildcard:
		return "?" + p.Name(n.Name)
	case PatternCall:
		return p.displayPatternCall(n.Fun, p.leftToRightPatternChildren(id))
	case PatternStruct:
		return p.displayStruct(p.Name(n.Name), p.leftToRightPatternChildren(id))
	case PatternVarCallName:
		args := p.leftToRightPatternChildren(id)
		return fmt.Sprintf("?%s(%s)", p.Name(n.Var), joinComma(args))
	case PatternVarStructName:
		args := p.leftToRightPatternChildren(id)
		return fmt.Sprintf("?%s{ %s }", p.Name(n.Var), joinComma(args))
	default:
		return "?"
	}
}

func (p *Pool) leftToRightPatternChildren(id PatternId) []string {
	children := p.PatternChildren(id)
	out := make([]string, len(children))
	for i, c := range children {
		out[len(children)-1-i] = p.DisplayPattern(c)
	}
	return out
}

func (p *Pool) displayPatternCall(fun FunctionId, args []string) string {
	f := p.FunctionAt(fun)
	switch {
	case f.Kind == FnAdd && len(args) == 2:
		return fmt.Sprintf("(%s + %s)", args[0], args[1])
	case f.Kind == FnSub && len(args) == 2:
		return fmt.Sprintf("(%s - %s)", args[0], args[1])
	case f.Kind == FnMul && len(args) == 2:
		return fmt.Sprintf("(%s * %s)", args[0], args[1])
	case f.Kind == FnDiv && len(args) == 2:
		return fmt.Sprintf("(%s / %s)", args[0], args[1])
	case f.Kind == FnPow && len(args) == 2:
		return fmt.Sprintf("(%s ^ %s)", args[0], args[1])
	case f.Kind == FnNeg && len(args) == 1:
		return fmt.Sprintf("(-%s)", args[0])
	case f.Kind == FnPlus && len(args) == 1:
		return fmt.Sprintf("(+%s)", args[0])
	}
	name := f.String()
	if f.Kind == FnCustom {
		name = p.Name(f.Custom)
	}
	if len(args) == 0 {
		return fmt.Sprintf("%s()", name)
	}
	return fmt.Sprintf("%s(%s)", name, joinComma(args))
}

// DisplayAction renders an action template subtree. Compute nodes render
// bracketed, e.g. `[a + b]`, to set folded arithmetic visually apart from
// constructed structure.
func (p *Pool) DisplayAction(id ActionId) string {
	n := p.ActionAt(id)
	switch n.Kind {
	case ActionNumber:
		return fmt.Sprintf("%d", n.Number)
	case ActionVariable:
		return p.Name(n.Name)
	case ActionCall:
		return p.displayActionCall(n.Fun, p.leftToRightActionChildren(id))
	case ActionStruct:
		return p.displayStruct(p.Name(n.Name), p.leftToRightActionChildren(id))
	case ActionVarCallName:
		args := p.leftToRightActionChildren(id)
		return fmt.Sprintf("?%s(%s)", p.Name(n.Var), joinComma(args))
	case ActionVarStructName:
		args := p.leftToRightActionChildren(id)
		return fmt.Sprintf("?%s{ %s }", p.Name(n.Var), joinComma(args))
	case ActionCompute:
		return p.displayCompute(n.Op, p.leftToRightActionChildren(id))
	default:
		return "?"
	}
}

func (p *Pool) leftToRightActionChildren(id ActionId) []string {
	children := p.ActionChildren(id)
	out := make([]string, len(children))
	for i, c := range children {
		out[len(children)-1-i] = p.DisplayAction(c)
	}
	return out
}

func (p *Pool) displayActionCall(fun FunctionId, args []string) string {
	return p.displayCall(fun, args)
}

func (p *Pool) displayCompute(op ComputeOp, args []string) string {
	sym := "?"
	switch op {
	case ComputeAdd:
		sym = "+"
	case ComputeSub:
		sym = "-"
	case ComputeMul:
		sym = "*"
	case ComputeDiv:
		sym = "/"
	case ComputePow:
		sym = "^"
	case ComputeNeg:
		sym = "-"
	}
	if op == ComputeNeg && len(args) == 1 {
		return fmt.Sprintf("[-%s]", args[0])
	}
	out := "["
	for i, a := range args {
		if i > 0 {
			out += " " + sym + " "
		}
		out += a
	}
	return out + "]"
}
