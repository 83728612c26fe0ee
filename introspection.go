// introspection.go: static expansion of shape declarations
//
// Shape synthesis is a pure AST transformation, so declarations can be
// expanded without running the surrounding program. ExpandSource drives the
// synthesizer over every `shape` in a source text and hands back the units;
// FormatUnit renders one unit as the Shapelang code it stands for. The
// `shape expand` subcommand is a thin wrapper over these two.
package shapelang

import "strings"

// ExpandSource parses src and synthesizes every shape declaration in it, in
// source order, against reg. Nothing is evaluated: bindings, display names,
// and instances are untouched; only the registry's memo fills in.
//
// On a validation error the units synthesized so far are returned along with
// the error, so callers can report how far expansion got.
func ExpandSource(reg *Registry, src string) ([]*Unit, error) {
	ast, spans, err := ParseSExprWithSpans(src)
	if err != nil {
		return nil, err
	}
	var units []*Unit
	var firstErr error
	walkShapes(ast, nil, func(n S, path NodePath) bool {
		u, err := SynthesizeWithSource(reg, n, path, spans, src)
		if err != nil {
			firstErr = err
			return false
		}
		units = append(units, u)
		return true
	})
	return units, firstErr
}

// walkShapes visits every "shape" node in n depth-first, including
// declarations nested in function or shape bodies. The visitor returns false
// to stop the walk.
func walkShapes(n S, path NodePath, visit func(S, NodePath) bool) bool {
	if len(n) > 0 {
		if t, ok := n[0].(string); ok && t == "shape" {
			if !visit(n, path) {
				return false
			}
		}
	}
	for i := 1; i < len(n); i++ {
		c, ok := n[i].(S)
		if !ok {
			continue
		}
		if !walkShapes(c, path.Child(i-1), visit) {
			return false
		}
	}
	return true
}

// FormatUnit renders a unit's artifacts as Shapelang source in evaluation
// order, one artifact per block. The output parses and evaluates back to the
// same declaration.
func FormatUnit(u *Unit) string {
	arts := u.Artifacts()
	parts := make([]string, 0, len(arts))
	for _, a := range arts {
		parts = append(parts, FormatStmt(a))
	}
	return strings.Join(parts, "\n")
}
