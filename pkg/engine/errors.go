package engine

import "fmt"

// ErrRuleSyntax is the sentinel matched via errors.Is for any rule
// text that fails to parse or fails the safety check (unbound head
// variables, in particular).
var ErrRuleSyntax = fmt.Errorf("rule syntax error")

// RuleSyntaxError wraps the underlying parser/analysis failure while
// still matching errors.Is(err, ErrRuleSyntax).
type RuleSyntaxError struct {
	Source string
	Err    error
}

func (e *RuleSyntaxError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("rule syntax error in %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("rule syntax error: %v", e.Err)
}

func (e *RuleSyntaxError) Unwrap() error { return e.Err }

func (e *RuleSyntaxError) Is(target error) bool { return target == ErrRuleSyntax }

// ErrUndeclaredPredicate is returned by Assert/Retract/Query when the
// predicate has no Decl in the currently loaded rule set.
var ErrUndeclaredPredicate = fmt.Errorf("predicate not declared")
