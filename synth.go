// synth.go: turning constructor declarations into struct types
//
// What this file does
// -------------------
// Synthesize takes a parsed `shape` declaration (or a named `fun` handed in
// programmatically), validates that it is a constructor form, extracts its
// field signature from the terminal call, interns the signature in a
// Registry, and produces the declaration's expansion: up to four artifact
// statements in fixed order.
//
//  1. struct N$K[T1, T2 :: Num](x: T1, y: T2)   (only when the signature is new)
//  2. show N$K as "N"
//  3. let N = N$K
//  4. fun N(params) -> N$K do ... return(N$K(x, y :: Num)) end
//
// The artifacts are ordinary AST statements: evaluating them through the
// normal evaluator applies the declaration, and rendering them with
// FormatStmt prints the exact code a user could paste back in.
//
// Validation is all-or-nothing. Every check runs before the registry is
// touched, so a rejected declaration mints no type, binds no name, and leaves
// the memo byte-identical. Errors are *ShapeError carrying the offending
// expression and, when the caller supplies the span sidecar from parsing, its
// exact source position.
package shapelang

import "fmt"

/* ===========================
   PUBLIC API
   =========================== */

// Unit is the result of synthesizing one shape declaration.
//
// Decl is nil when the field signature was already interned: the concrete
// type is reused and only the display, binding, and constructor artifacts are
// (re-)applied. Created mirrors that, and Desc always points at the interned
// descriptor.
type Unit struct {
	Desc    *ShapeDescriptor
	Created bool

	Decl S // struct declaration; nil on a memo hit
	Show S
	Bind S
	Ctor S
}

// Artifacts returns the unit's statements in evaluation order, omitting the
// nil Decl on a memo hit.
func (u *Unit) Artifacts() []S {
	out := make([]S, 0, 4)
	if u.Decl != nil {
		out = append(out, u.Decl)
	}
	return append(out, u.Show, u.Bind, u.Ctor)
}

// Synthesize validates node as a constructor form against reg and returns its
// expansion. node must be a "shape" or named "fun" declaration. Errors carry
// no source position; parse-side callers use SynthesizeWithSource instead.
func Synthesize(reg *Registry, node S) (*Unit, error) {
	return SynthesizeWithSource(reg, node, nil, nil, "")
}

// SynthesizeWithSource is Synthesize with position recovery: path addresses
// node inside the AST that spans was built for, and src is that AST's source
// text. Validation errors then point at the offending expression.
func SynthesizeWithSource(reg *Registry, node S, path NodePath, spans *SpanIndex, src string) (*Unit, error) {
	site := synthSite{spans: spans, src: src}

	name, params, body, bodyPath, err := constructorForm(node, path, site)
	if err != nil {
		return nil, err
	}

	term, termPath, wrapped, err := terminalCall(name, body, bodyPath, site)
	if err != nil {
		return nil, err
	}

	if err := checkTarget(name, term, termPath, site); err != nil {
		return nil, err
	}

	sig, err := extractSignature(name, term, termPath, site)
	if err != nil {
		return nil, err
	}

	desc, created := reg.Intern(name, sig)
	u := &Unit{Desc: desc, Created: created}
	if created {
		u.Decl = desc.Decl()
	}
	u.Show = L("show", L("id", desc.TypeName), L("str", name))
	u.Bind = L("assign", L("decl", name), L("id", desc.TypeName))
	u.Ctor = ctorDecl(name, desc, params, body, wrapped)
	return u, nil
}

//// END_OF_PUBLIC

/* ===========================
   PRIVATE: validation
   =========================== */

// synthSite resolves node paths to source positions, tolerating a missing
// sidecar (programmatic synthesis) and synthetic nodes with empty spans.
type synthSite struct {
	spans *SpanIndex
	src   string
}

// at returns the position of the first path with a usable span; fallbacks
// follow in order. (0, 0) means no position is known.
func (s synthSite) at(paths ...NodePath) (int, int) {
	for _, p := range paths {
		if sp, ok := s.spans.Get(p); ok && sp.EndByte > sp.StartByte {
			return LineColAtByte(s.src, sp.StartByte)
		}
	}
	return 0, 0
}

func shapeErr(kind ShapeErrorKind, shape, expr string, line, col int, format string, args ...any) error {
	return &ShapeError{
		Kind:  kind,
		Shape: shape,
		Expr:  expr,
		Line:  line,
		Col:   col,
		Msg:   fmt.Sprintf(format, args...),
	}
}

// constructorForm accepts ("shape", name, params, body) and
// ("fundef", name, ("fun", params, ret, body)) nodes and pulls out the parts
// synthesis works on. Anything else is not a constructor form.
func constructorForm(node S, path NodePath, site synthSite) (name string, params, body S, bodyPath NodePath, err error) {
	if len(node) == 0 {
		return "", nil, nil, nil, shapeErr(ErrNotAConstructorForm, "", "", 0, 0,
			"expected a shape declaration")
	}
	t, ok := node[0].(string)
	if !ok {
		return "", nil, nil, nil, shapeErr(ErrNotAConstructorForm, "", "", 0, 0,
			"expected a shape declaration")
	}
	switch t {
	case "shape":
		name = getId(child(node, 0))
		return name, child(node, 1), child(node, 2), path.Child(2), nil
	case "fundef":
		name = getId(child(node, 0))
		fn := child(node, 1)
		return name, child(fn, 0), child(fn, 2), path.Child(1).Child(2), nil
	default:
		line, col := site.at(path)
		return "", nil, nil, nil, shapeErr(ErrNotAConstructorForm, "", "", line, col,
			"'%s' is not a shape or named fun declaration", FormatExpr(node))
	}
}

// terminalCall locates the body's final statement, unwraps an enclosing
// return, and demands a call. wrapped reports whether the terminal sat inside
// return(...), so the constructor artifact can preserve the spelling.
func terminalCall(name string, body S, bodyPath NodePath, site synthSite) (term S, termPath NodePath, wrapped bool, err error) {
	switch {
	case len(body) == 0, tag(body) == "block" && len(body) == 1:
		line, col := site.at(bodyPath)
		return nil, nil, false, shapeErr(ErrNotAConstructorForm, name, "", line, col,
			"shape '%s' has an empty body; the last statement must construct the instance", name)
	case tag(body) != "block": // programmatic callers may pass a bare statement
		term, termPath = body, bodyPath
	default:
		last := len(body) - 2 // child index of the final statement
		term = child(body, last)
		termPath = bodyPath.Child(last)
	}
	stmtPath := termPath
	if tag(term) == "return" {
		wrapped = true
		term, termPath = child(term, 0), termPath.Child(0)
	}
	if tag(term) != "call" {
		line, col := site.at(termPath, stmtPath)
		return nil, nil, false, shapeErr(ErrTerminalNotACall, name, FormatExpr(term), line, col,
			"the last statement of shape '%s' must be a call, got '%s'", name, FormatExpr(term))
	}
	return term, termPath, wrapped, nil
}

// checkTarget demands that the terminal call constructs the declared name.
func checkTarget(name string, term S, termPath NodePath, site synthSite) error {
	callee := child(term, 0)
	if tag(callee) != "id" {
		line, col := site.at(termPath.Child(0), termPath)
		return shapeErr(ErrNameMismatch, name, FormatExpr(callee), line, col,
			"the terminal call of shape '%s' must call '%s' itself, got '%s'", name, name, FormatExpr(callee))
	}
	if got := getId(callee); got != name {
		line, col := site.at(termPath.Child(0), termPath)
		return shapeErr(ErrNameMismatch, name, got, line, col,
			"the terminal call of shape '%s' constructs '%s'; the names must match", name, got)
	}
	return nil
}

// extractSignature reads the terminal call's arguments as field expressions:
// a bare identifier, or `identifier :: bound`. Field order is kept; repeats
// are rejected.
func extractSignature(name string, term S, termPath NodePath, site synthSite) (FieldSignature, error) {
	sig := make(FieldSignature, 0, len(term)-2)
	seen := make(map[string]bool, len(term)-2)
	for i := 2; i < len(term); i++ {
		arg := term[i].(S)
		argPath := termPath.Child(i - 1)
		var f Field
		switch tag(arg) {
		case "id":
			f = Field{Name: getId(arg)}
		case "bound":
			lhs := child(arg, 0)
			if tag(lhs) != "id" {
				line, col := site.at(argPath, termPath)
				return nil, shapeErr(ErrBadFieldExpression, name, FormatExpr(arg), line, col,
					"field expression '%s' must be a bare identifier or 'name :: bound'", FormatExpr(arg))
			}
			f = Field{Name: getId(lhs), Bound: child(arg, 1)}
		default:
			line, col := site.at(argPath, termPath)
			return nil, shapeErr(ErrBadFieldExpression, name, FormatExpr(arg), line, col,
				"field expression '%s' must be a bare identifier or 'name :: bound'", FormatExpr(arg))
		}
		if seen[f.Name] {
			line, col := site.at(argPath, termPath)
			return nil, shapeErr(ErrDuplicateField, name, f.Name, line, col,
				"field '%s' appears more than once in the terminal call of shape '%s'", f.Name, name)
		}
		seen[f.Name] = true
		sig = append(sig, f)
	}
	return sig, nil
}

/* ===========================
   PRIVATE: artifact construction
   =========================== */

// ctorDecl builds the constructor artifact: the original parameters and body,
// with the terminal call retargeted at the concrete type and the return type
// pinned to it.
func ctorDecl(name string, desc *ShapeDescriptor, params, body S, wrapped bool) S {
	fn := L("fun", params, L("id", desc.TypeName), retargetBody(body, desc.TypeName, wrapped))
	return L("fundef", L("id", name), fn)
}

// retargetBody copies the body with its final statement's call pointed at
// typeName. Only the nodes along that path are copied; everything else is
// shared with the original AST, which is never mutated.
func retargetBody(body S, typeName string, wrapped bool) S {
	if tag(body) != "block" {
		return L("block", retargetStmt(body, typeName, wrapped))
	}
	out := append(S{}, body...)
	last := len(out) - 1
	out[last] = retargetStmt(out[last].(S), typeName, wrapped)
	return out
}

func retargetStmt(stmt S, typeName string, wrapped bool) S {
	if wrapped {
		return L("return", retargetCall(child(stmt, 0), typeName))
	}
	return retargetCall(stmt, typeName)
}

func retargetCall(call S, typeName string) S {
	out := append(S{}, call...)
	out[1] = L("id", typeName)
	return out
}
