// signature.go: ordered field signatures extracted from constructor bodies
//
// What this file does
// -------------------
// A field signature is the ordered list of (name, optional bound) pairs that
// a constructor's terminal call builds an instance from. It is the identity
// used to memoize synthesized struct types: two declarations with equal
// signatures share one concrete type, regardless of the public names they
// were declared under.
//
// Order matters: (x, y) and (y, x) are different signatures. Bounds compare
// structurally on their expression trees, so `x :: Num` and `x :: Num` match
// while `x :: Num` and `x` do not.
package shapelang

import "strings"

// Field is one slot of a field signature. Bound is the bound expression from
// `name :: bound`, or nil when the field is unconstrained.
type Field struct {
	Name  string
	Bound S
}

// Bounded reports whether the field carries a bound.
func (f Field) Bounded() bool { return f.Bound != nil }

// FieldSignature is the ordered field list of one synthesized type.
type FieldSignature []Field

// Names returns the field names in declaration order.
func (sig FieldSignature) Names() []string {
	names := make([]string, len(sig))
	for i, f := range sig {
		names[i] = f.Name
	}
	return names
}

// Equal reports structural equality: same length, same names in the same
// order, and structurally equal bounds.
func (sig FieldSignature) Equal(other FieldSignature) bool {
	if len(sig) != len(other) {
		return false
	}
	for i := range sig {
		if sig[i].Name != other[i].Name {
			return false
		}
		a, b := sig[i].Bound, other[i].Bound
		switch {
		case a == nil && b == nil:
		case a == nil || b == nil:
			return false
		case !equalS(a, b):
			return false
		}
	}
	return true
}

// Key returns a deterministic string form usable as a map key. Fields are
// rendered "name" or "name :: bound" and joined with newlines; rendered
// expressions never contain a raw newline (string literals escape them), so
// the key is injective over signatures.
func (sig FieldSignature) Key() string {
	parts := make([]string, len(sig))
	for i, f := range sig {
		if f.Bound != nil {
			parts[i] = f.Name + " :: " + FormatExpr(f.Bound)
		} else {
			parts[i] = f.Name
		}
	}
	return strings.Join(parts, "\n")
}

// String renders the signature the way it reads in source: "(x, y :: Num)".
func (sig FieldSignature) String() string {
	parts := make([]string, len(sig))
	for i, f := range sig {
		if f.Bound != nil {
			parts[i] = f.Name + " :: " + FormatExpr(f.Bound)
		} else {
			parts[i] = f.Name
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
