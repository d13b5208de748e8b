// Package rewrite implements a term-rewriting engine for symbolic algebraic
// expressions: an arena-backed expression/pattern/action pool, a pattern
// matcher with repeated-variable and name-capture classes, a rewriter that
// materialises and splices action trees into fresh expression roots, and a
// derivation graph with bounded search strategies (BFS, Dijkstra, A*, beam,
// random walk) for exploring the reachable rewrite space.
//
// All entities are identified by newtype indices into append-only tables
// inside a Pool. Ids are only ever compared for equality or used to index
// into the table they came from; they carry no other behavior.
package rewrite

import "fmt"

// ExprId identifies a node in the expression table.
type ExprId int

// NameId identifies an interned identifier string (variable or struct name).
type NameId int

// FunctionId identifies an interned Function value. The seven built-in
// operators are pre-interned at fixed positions by NewPool.
type FunctionId int

// PatternId identifies a node in the pattern table.
type PatternId int

// ActionId identifies a node in the action table.
type ActionId int

// RuleId identifies an entry in the rule table.
type RuleId int

// RulesetId identifies an entry in the ruleset table.
type RulesetId int

// EquivalenceGroupId identifies a dense structural-equality class.
type EquivalenceGroupId int

func (id ExprId) String() string { return fmt.Sprintf("e%d", int(id)) }
func (id NameId) String() string { return fmt.Sprintf("n%d", int(id)) }
func (id FunctionId) String() string { return fmt.Sprintf("f%d", int(id)) }
func (id PatternId) String() string { return fmt.Sprintf("p%d", int(id)) }
func (id ActionId) String() string { return fmt.Sprintf("a%d", int(id)) }
func (id RuleId) String() string { return fmt.Sprintf("r%d", int(id)) }
func (id RulesetId) String() string { return fmt.Sprintf("rs%d", int(id)) }
func (id EquivalenceGroupId) String() string { return fmt.Sprintf("g%d", int(id)) }
