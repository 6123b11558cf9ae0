package facts

// Arg is one argument position in a Pattern: either a wildcard or a
// bound Value to match exactly.
type Arg struct {
	wildcard bool
	value    Value
}

// Any is a wildcard argument, matching any value.
func Any() Arg { return Arg{wildcard: true} }

// Bound is an argument that must equal v.
func Bound(v Value) Arg { return Arg{value: v} }

// IsWildcard reports whether a is a wildcard.
func (a Arg) IsWildcard() bool { return a.wildcard }

// Value returns the bound value; only meaningful if !IsWildcard().
func (a Arg) Value() Value { return a.value }

// Pattern is a predicate plus an argument list whose entries are
// either a concrete value or a wildcard, used to query the fact base.
type Pattern struct {
	Predicate string
	Args      []Arg
}

// NewPattern builds a Pattern over the given predicate.
func NewPattern(predicate string, args ...Arg) Pattern {
	return Pattern{Predicate: predicate, Args: args}
}

// Matches reports whether f satisfies the pattern.
func (p Pattern) Matches(f Fact) bool {
	if p.Predicate != f.Predicate || len(p.Args) != len(f.Args) {
		return false
	}
	for i, a := range p.Args {
		if a.wildcard {
			continue
		}
		if !a.value.Equal(f.Args[i]) {
			return false
		}
	}
	return true
}
