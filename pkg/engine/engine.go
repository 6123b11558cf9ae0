// Package engine adapts github.com/google/mangle into the rules
// driver contract: an embedded, transactional Datalog-style database
// that asserts/retracts fact tuples, loads a replaceable rule set, and
// answers pattern-match queries in terms of pkg/facts tuples.
package engine

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	_ "github.com/google/mangle/packages"
	"github.com/google/mangle/parse"

	"github.com/cuemby/fleet/pkg/facts"
)

// Engine owns one logic database for the lifetime of the process.
// Writers (Assert/Retract/LoadRules) are expected to be serialized by
// the caller (pkg/factstore's actor loop); Query is safe to call
// concurrently with itself.
type Engine struct {
	mu sync.RWMutex

	// base holds only base facts: the ones pkg/factstore asserts and
	// retracts directly. Derived facts are never stored here.
	base factstore.FactStoreWithRemove

	programInfo *analysis.ProgramInfo
	queryCtx    *mengine.QueryContext

	// evalStore is a from-scratch snapshot rebuilt on every Evaluate
	// call: a copy of base plus every fact the current rule set can
	// derive from it. Rebuilding from scratch (rather than mutating a
	// long-lived store) is what makes rule-set replacement behave
	// correctly — a predicate no longer derivable under the new rules
	// simply isn't copied forward.
	evalStore factstore.FactStoreWithRemove
}

// New constructs an empty engine with no rules loaded. Callers must
// call LoadRules before Assert/Query will do anything useful.
func New() *Engine {
	return &Engine{
		base:      factstore.NewSimpleInMemoryStore(),
		evalStore: factstore.NewSimpleInMemoryStore(),
	}
}

// LoadRules replaces the current rule set with the concatenation of
// sources (in the order given) and re-evaluates against the facts
// already asserted. Callers are responsible for ordering sources as
// shipped_rules ++ user_rules_by_priority.
func (e *Engine) LoadRules(sources []string) error {
	var clauses []ast.Clause
	var decls []ast.Decl

	for i, src := range sources {
		unit, err := parse.Unit(bytes.NewReader([]byte(src)))
		if err != nil {
			return &RuleSyntaxError{Source: fmt.Sprintf("source[%d]", i), Err: err}
		}
		clauses = append(clauses, unit.Clauses...)
		decls = append(decls, unit.Decls...)
	}

	unit := parse.SourceUnit{Clauses: clauses, Decls: decls}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return &RuleSyntaxError{Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	predToDecl := make(map[ast.PredicateSym]*ast.Decl, len(programInfo.Decls))
	for sym, decl := range programInfo.Decls {
		predToDecl[sym] = decl
	}
	predToRules := make(map[ast.PredicateSym][]ast.Clause)
	for _, clause := range programInfo.Rules {
		predToRules[clause.Head.Predicate] = append(predToRules[clause.Head.Predicate], clause)
	}

	e.programInfo = programInfo
	e.queryCtx = &mengine.QueryContext{PredToRules: predToRules, PredToDecl: predToDecl}

	return e.evaluateLocked()
}

// ValidateRuleText parses text (optionally alongside the currently
// loaded rule set, for predicates it references but doesn't declare
// itself) without mutating engine state. It is the parse(text) →
// (facts, rules) contract's syntax/safety check half, used by
// create_rule/update_rule before a user rule is persisted.
func (e *Engine) ValidateRuleText(text string, context ...string) error {
	var clauses []ast.Clause
	var decls []ast.Decl

	all := append(append([]string{}, context...), text)
	for i, src := range all {
		unit, err := parse.Unit(bytes.NewReader([]byte(src)))
		if err != nil {
			label := "rule"
			if i < len(context) {
				label = fmt.Sprintf("context[%d]", i)
			}
			return &RuleSyntaxError{Source: label, Err: err}
		}
		clauses = append(clauses, unit.Clauses...)
		decls = append(decls, unit.Decls...)
	}

	unit := parse.SourceUnit{Clauses: clauses, Decls: decls}
	if _, err := analysis.AnalyzeOneUnit(unit, nil); err != nil {
		return &RuleSyntaxError{Err: err}
	}
	return nil
}

// Assert inserts f into the base fact set and re-evaluates. Duplicate
// assertions are idempotent: the underlying store is set-shaped.
func (e *Engine) Assert(f facts.Fact) error {
	return e.AssertAll([]facts.Fact{f})
}

// AssertAll inserts fs into the base fact set as one batch and
// re-evaluates once.
func (e *Engine) AssertAll(fs []facts.Fact) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, f := range fs {
		atom, err := e.toAtomLocked(f)
		if err != nil {
			return err
		}
		e.base.Add(atom)
	}
	return e.evaluateLocked()
}

// Retract removes f from the base fact set and re-evaluates.
func (e *Engine) Retract(f facts.Fact) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	atom, err := e.toAtomLocked(f)
	if err != nil {
		return err
	}
	e.base.Remove(atom)
	return e.evaluateLocked()
}

// Query returns every fact matching pattern, deduplicated, reflecting
// all assertions/retractions accepted before the call returned.
func (e *Engine) Query(p facts.Pattern) ([]facts.Fact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.queryCtx == nil {
		return nil, fmt.Errorf("engine: no rules loaded")
	}
	sym, ok := e.predicateSymLocked(p.Predicate, len(p.Args))
	if !ok {
		return nil, fmt.Errorf("%w: %s/%d", ErrUndeclaredPredicate, p.Predicate, len(p.Args))
	}

	seen := facts.NewSet(nil)
	err := e.evalStore.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		f, convErr := atomToFact(atom)
		if convErr != nil {
			return convErr
		}
		if p.Matches(f) {
			seen[f.Key()] = f
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seen.Slice(), nil
}

// evaluateLocked rebuilds evalStore from base and the current rule
// set. Callers must hold e.mu for writing.
func (e *Engine) evaluateLocked() error {
	if e.programInfo == nil {
		return nil
	}

	fresh := factstore.NewSimpleInMemoryStore()
	for sym := range e.programInfo.Decls {
		_ = e.base.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
			fresh.Add(atom)
			return nil
		})
	}

	e.queryCtx.Store = fresh
	if _, err := mengine.EvalProgramWithStats(e.programInfo, fresh); err != nil {
		return fmt.Errorf("engine: evaluate: %w", err)
	}
	e.evalStore = fresh
	return nil
}

func (e *Engine) predicateSymLocked(predicate string, arity int) (ast.PredicateSym, bool) {
	for sym := range e.programInfo.Decls {
		if sym.Symbol == predicate && sym.Arity == arity {
			return sym, true
		}
	}
	return ast.PredicateSym{}, false
}

func (e *Engine) toAtomLocked(f facts.Fact) (ast.Atom, error) {
	sym, ok := e.predicateSymLocked(f.Predicate, len(f.Args))
	if !ok {
		return ast.Atom{}, fmt.Errorf("%w: %s/%d", ErrUndeclaredPredicate, f.Predicate, len(f.Args))
	}
	args := make([]ast.BaseTerm, len(f.Args))
	for i, v := range f.Args {
		term, err := valueToTerm(v)
		if err != nil {
			return ast.Atom{}, fmt.Errorf("%s arg %d: %w", f.Predicate, i, err)
		}
		args[i] = term
	}
	return ast.Atom{Predicate: sym, Args: args}, nil
}

func valueToTerm(v facts.Value) (ast.BaseTerm, error) {
	switch v.Kind() {
	case facts.KindSymbol:
		return ast.Name("/" + v.SymbolValue())
	case facts.KindString:
		return ast.String(v.Str()), nil
	case facts.KindInt:
		return ast.Number(v.Num()), nil
	default:
		return nil, fmt.Errorf("unknown value kind")
	}
}

func atomToFact(atom ast.Atom) (facts.Fact, error) {
	args := make([]facts.Value, len(atom.Args))
	for i, term := range atom.Args {
		c, ok := term.(ast.Constant)
		if !ok {
			return facts.Fact{}, fmt.Errorf("non-constant term in fact %s arg %d", atom.Predicate.Symbol, i)
		}
		switch c.Type {
		case ast.NameType:
			args[i] = facts.Symbol(strings.TrimPrefix(c.Symbol, "/"))
		case ast.StringType:
			args[i] = facts.String(c.Symbol)
		case ast.NumberType:
			args[i] = facts.Int(c.NumValue)
		default:
			return facts.Fact{}, fmt.Errorf("unsupported constant type in fact %s arg %d", atom.Predicate.Symbol, i)
		}
	}
	return facts.Fact{Predicate: atom.Predicate.Symbol, Args: args}, nil
}
