package facts

import "strings"

// Fact is a ground tuple (predicate, args) with a fixed arity per
// predicate. Facts form a set: duplicates carry no extra meaning.
type Fact struct {
	Predicate string
	Args      []Value
}

// New builds a Fact, panicking if the predicate's declared arity
// (per the Arities table) doesn't match len(args). Arity mismatches
// are a programming error in the projection layer, never a runtime
// condition callers should recover from.
func New(predicate string, args ...Value) Fact {
	if want, ok := Arities[predicate]; ok && want != len(args) {
		panic("facts: predicate " + predicate + " expects arity " + itoa(want) + ", got " + itoa(len(args)))
	}
	return Fact{Predicate: predicate, Args: args}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

// Equal reports whether f and other are the same ground tuple.
func (f Fact) Equal(other Fact) bool {
	if f.Predicate != other.Predicate || len(f.Args) != len(other.Args) {
		return false
	}
	for i := range f.Args {
		if !f.Args[i].Equal(other.Args[i]) {
			return false
		}
	}
	return true
}

// Key returns a canonical string representation suitable for use as a
// map key when deduplicating fact sets.
func (f Fact) Key() string {
	var b strings.Builder
	b.WriteString(f.Predicate)
	for _, a := range f.Args {
		b.WriteByte('\x1f')
		b.WriteString(a.String())
	}
	return b.String()
}

// Set is a deduplicated collection of facts keyed by Key().
type Set map[string]Fact

// NewSet builds a Set from a slice, deduplicating as it goes.
func NewSet(fs []Fact) Set {
	s := make(Set, len(fs))
	for _, f := range fs {
		s[f.Key()] = f
	}
	return s
}

// Slice returns the facts in s as a slice, in no particular order.
func (s Set) Slice() []Fact {
	out := make([]Fact, 0, len(s))
	for _, f := range s {
		out = append(out, f)
	}
	return out
}

// Has reports whether f is a member of s.
func (s Set) Has(f Fact) bool {
	_, ok := s[f.Key()]
	return ok
}
