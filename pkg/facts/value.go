package facts

import "fmt"

// ValueKind tags the dynamic type of a Value.
type ValueKind int

const (
	// KindSymbol is an interned name, equivalent to a Mangle Name
	// constant (e.g. `/available`). Used for closed-alphabet fields
	// like status and type.
	KindSymbol ValueKind = iota
	// KindString is an arbitrary string, equivalent to a Mangle
	// String constant.
	KindString
	// KindInt is a signed integer, equivalent to a Mangle Number
	// constant.
	KindInt
)

func (k ValueKind) String() string {
	switch k {
	case KindSymbol:
		return "symbol"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	default:
		return "unknown"
	}
}

// Value is a tagged union of the three scalar kinds the rule language
// supports: Symbol | String | Integer.
type Value struct {
	kind ValueKind
	sym  string
	str  string
	num  int64
}

// Symbol builds an interned-symbol value. The argument must not
// include the language's own `/` prefix; that is an engine-level
// concern.
func Symbol(name string) Value { return Value{kind: KindSymbol, sym: name} }

// String builds a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int builds an integer value.
func Int(n int64) Value { return Value{kind: KindInt, num: n} }

// Kind reports the dynamic type of v.
func (v Value) Kind() ValueKind { return v.kind }

// Symbol returns the symbol payload; only meaningful if Kind() == KindSymbol.
func (v Value) SymbolValue() string { return v.sym }

// Str returns the string payload; only meaningful if Kind() == KindString.
func (v Value) Str() string { return v.str }

// Num returns the integer payload; only meaningful if Kind() == KindInt.
func (v Value) Num() int64 { return v.num }

// Equal reports whether v and other have the same kind and payload,
// using the same equality semantics as the rule language's own
// constants.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindSymbol:
		return v.sym == other.sym
	case KindString:
		return v.str == other.str
	case KindInt:
		return v.num == other.num
	default:
		return false
	}
}

// String renders v for logging and fact-set keys, not for display to
// end users.
func (v Value) String() string {
	switch v.kind {
	case KindSymbol:
		return "/" + v.sym
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindInt:
		return fmt.Sprintf("%d", v.num)
	default:
		return "<invalid>"
	}
}
