// errors.go: per-stage error types, user-facing wrapping, caret snippets
//
// What this file does
// -------------------
// This module defines the error structs raised by the parser, the shape
// synthesizer, and the evaluator, and turns any of them (plus *LexError from
// lexer.go) into readable, Python-style snippets with a caret pointing at the
// offending column:
//
//	SHAPE ERROR at 3:12: field expression 'b + 1' must be a bare identifier or 'name :: bound'
//
//	   2 |   let s = a + b
//	   3 |   return(Point(a, b + 1))
//	       |            ^
//	   4 | end
//
// The snippet includes up to one line of context before and after the error,
// numbers the lines, and places a caret under the 1-based column.
//
// Coordinates
// -----------
// All error structs carry a 1-based Line and a 0-based byte Col (the same
// convention as Token); the renderer adds 1 to Col for display.
//
// Scope of the public API
// -----------------------
// Public:   ParseError, RuntimeError, ShapeError (+ Kind constants),
//           IsIncomplete, WrapErrorWithSource, WrapErrorWithName.
// Private:  caret-snippet renderer.
package shapelang

import (
	"errors"
	"fmt"
	"strings"
)

/* ===========================
   PUBLIC API
   =========================== */

// ParseError is a syntax diagnostic. Incomplete marks errors raised in
// interactive mode when the source ended inside an open construct; REPLs use
// IsIncomplete to keep reading instead of reporting.
type ParseError struct {
	Line       int
	Col        int
	Msg        string
	Incomplete bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// IsIncomplete reports whether err is a ParseError caused by input that ended
// mid-construct (interactive parsing only).
func IsIncomplete(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Incomplete
}

// RuntimeError is an evaluation-time failure (bad operand types, unknown
// name, arity mismatch, failed bound check, ...).
type RuntimeError struct {
	Line int
	Col  int
	Msg  string
}

func (e *RuntimeError) Error() string {
	if e.Line < 1 {
		return fmt.Sprintf("RUNTIME ERROR: %s", e.Msg)
	}
	return fmt.Sprintf("RUNTIME ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// ShapeErrorKind enumerates the validation failures a shape declaration can
// produce. Shape validation is all-or-nothing: any of these aborts synthesis
// before it touches the registry or any binding.
type ShapeErrorKind int

const (
	// ErrNotAConstructorForm: the input is not a named constructor function.
	ErrNotAConstructorForm ShapeErrorKind = iota
	// ErrTerminalNotACall: the final body expression is not a call.
	ErrTerminalNotACall
	// ErrNameMismatch: the terminal call targets a different name than the
	// one being declared.
	ErrNameMismatch
	// ErrBadFieldExpression: a terminal-call argument is neither a bare
	// identifier nor `identifier :: bound`.
	ErrBadFieldExpression
	// ErrDuplicateField: the same field name appears twice in the terminal
	// call.
	ErrDuplicateField
)

func (k ShapeErrorKind) String() string {
	switch k {
	case ErrNotAConstructorForm:
		return "NotAConstructorForm"
	case ErrTerminalNotACall:
		return "TerminalNotACall"
	case ErrNameMismatch:
		return "NameMismatch"
	case ErrBadFieldExpression:
		return "BadFieldExpression"
	case ErrDuplicateField:
		return "DuplicateField"
	}
	return fmt.Sprintf("ShapeErrorKind(%d)", int(k))
}

// ShapeError reports a rejected shape declaration. Shape is the declared
// constructor name; Expr is the offending expression rendered back to source
// ("" when the whole declaration is at fault).
type ShapeError struct {
	Kind  ShapeErrorKind
	Shape string
	Expr  string
	Line  int
	Col   int
	Msg   string
}

func (e *ShapeError) Error() string {
	if e.Line < 1 {
		return fmt.Sprintf("SHAPE ERROR [%s]: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("SHAPE ERROR [%s] at %d:%d: %s", e.Kind, e.Line, e.Col, e.Msg)
}

// WrapErrorWithSource returns an error augmented with a caret-annotated
// snippet of the provided source. It recognizes the per-stage error types and
// leaves other errors untouched.
func WrapErrorWithSource(err error, src string) error {
	// Fall back to a name-less header (won't show "in <src>").
	return WrapErrorWithName(err, "", src)
}

func WrapErrorWithName(err error, srcName string, src string) error {
	switch e := err.(type) {
	case *LexError:
		// Col is 0-based; render as 1-based.
		return fmt.Errorf("%s", prettyErrorStringLabeled(src, "LEXICAL ERROR", srcName, e.Line, e.Col+1, e.Msg))
	case *ParseError:
		return fmt.Errorf("%s", prettyErrorStringLabeled(src, "PARSE ERROR", srcName, e.Line, e.Col+1, e.Msg))
	case *ShapeError:
		return fmt.Errorf("%s", prettyErrorStringLabeled(src, "SHAPE ERROR", srcName, e.Line, e.Col+1, e.Msg))
	case *RuntimeError:
		return fmt.Errorf("%s", prettyErrorStringLabeled(src, "RUNTIME ERROR", srcName, e.Line, e.Col+1, e.Msg))
	default:
		return err
	}
}

//// END_OF_PUBLIC

/* ===========================
   PRIVATE: rendering
   =========================== */

// prettyErrorStringLabeled builds a Python-like snippet with a header and a
// caret. It shows at most one previous and one next line when available.
// Coordinates are treated as 1-based and clamped to the source bounds.
func prettyErrorStringLabeled(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	caretPad := col - 1
	if caretPad < 0 {
		caretPad = 0
	}
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", caretPad))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
