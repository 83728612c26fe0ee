// spans_debug.go — Debugging helpers for the span sidecar
//
// WHAT THIS MODULE DOES
// =====================
// Debugging-only helpers for inspecting and validating the NodePath → Span
// mapping produced by the parser:
//
//   • A single public toggle, `DebuggingMode`, picked up at process start
//     from the `SHAPEDEBUG` environment variable. Hosts may also set it
//     programmatically (tests, REPLs).
//
//   • A public verifier, `VerifySpanIndexPostOrder`, that checks the critical
//     invariant used by caret positioning: the parser must record **exactly
//     one span per AST node in post-order**. The function walks the AST in
//     post-order, ensures each node path exists in the SpanIndex, and can
//     print a compact preview of the first N bindings for inspection.
//
// DEPENDENCIES / INTEGRATION POINTS
// =================================
//   • parser.go — constructs ASTs and emits one span per node (empty Span{}
//     for synthetic nodes), so a complete parse always verifies clean.
//   • spans.go — defines Span, NodePath, SpanIndex. This module only reads
//     the index.
//   • runtime.go — EvalSource runs the verifier on every parse when
//     `DebuggingMode` is set, keeping the hot path clean otherwise.
//
// PUBLIC VS PRIVATE
// =================
// PUBLIC  : `DebuggingMode` and `VerifySpanIndexPostOrder`
// PRIVATE : dbgPath and safeSlice (stringifiers for the preview output).
//
// Concurrency: all helpers are read-only over their inputs and print to an
// `io.Writer`. No global mutable state aside from the `DebuggingMode` flag,
// which callers set early during process init.

package shapelang

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// DebuggingMode controls whether span diagnostics are emitted by the runtime.
// It is initialized from the environment variable `SHAPEDEBUG` at process
// start. Hosts and tests may override it programmatically.
//
// Production code should not branch on environment variables directly; use
// this flag as the single source of truth.
var DebuggingMode = os.Getenv("SHAPEDEBUG") != ""

// VerifySpanIndexPostOrder walks `ast` in post-order and checks that `si`
// binds one span per AST node in that same order.
//
// Behavior:
//   - Returns nil when every node resolves to a span (empty placeholder
//     spans count; they keep the post-order cardinality intact).
//   - Returns an error of the form "span index missing X/Y nodes" when any
//     post-order node path is absent from the index.
//   - If previewN > 0, prints a short report header and up to previewN
//     (path, span, excerpt) lines to `w` (os.Stderr when w is nil).
//
// Printing is intended for debugging sessions and tests; production callers
// pass previewN=0 or gate the call on DebuggingMode.
func VerifySpanIndexPostOrder(ast S, si *SpanIndex, src string, previewN int, w io.Writer) error {
	if si == nil {
		return fmt.Errorf("no span index")
	}
	if w == nil {
		w = os.Stderr
	}

	// Collect the expected post-order paths from the AST.
	var want []NodePath
	var walk func(n S, path NodePath)
	walk = func(n S, path NodePath) {
		for ci := 1; ci < len(n); ci++ {
			if c, ok := n[ci].(S); ok {
				walk(c, append(path, ci-1))
			}
		}
		want = append(want, append(NodePath(nil), path...))
	}
	walk(ast, nil)

	got, missing := 0, 0
	for _, p := range want {
		if _, ok := si.Get(p); ok {
			got++
		} else {
			missing++
		}
	}

	if previewN > 0 {
		if previewN > len(want) {
			previewN = len(want)
		}
		fmt.Fprintln(w, "[spans] =====================")
		fmt.Fprintf(w, "[spans] nodes=%d spans=%d missing=%d\n", len(want), got, missing)
		for i := 0; i < previewN; i++ {
			p := want[i]
			if sp, ok := si.Get(p); ok {
				fmt.Fprintf(w, "[spans]   %s  [%d,%d)  %q\n",
					dbgPath(p), sp.StartByte, sp.EndByte, safeSlice(src, sp))
			} else {
				fmt.Fprintf(w, "[spans]   %s  <missing>\n", dbgPath(p))
			}
		}
	}

	if missing > 0 {
		return fmt.Errorf("span index missing %d/%d nodes", missing, len(want))
	}
	return nil
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
//                               PRIVATE
////////////////////////////////////////////////////////////////////////////////

func dbgPath(p NodePath) string {
	if len(p) == 0 {
		return "<root>"
	}
	out := make([]byte, 0, 32)
	for i, x := range p {
		if i > 0 {
			out = append(out, '.')
		}
		out = append(out, []byte(fmt.Sprintf("%d", x))...)
	}
	return string(out)
}

// safeSlice shows a compact, printable view of the span slice. It clamps to
// valid byte bounds and replaces newlines/tabs with symbols for readability.
func safeSlice(src string, sp Span) string {
	sb, eb := sp.StartByte, sp.EndByte
	if sb < 0 {
		sb = 0
	}
	if eb < sb {
		eb = sb
	}
	if eb > len(src) {
		eb = len(src)
	}
	s := src[sb:eb]
	for !utf8.ValidString(s) && eb > sb {
		eb--
		s = src[sb:eb]
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '\n':
			out = append(out, '↵')
		case '\t':
			out = append(out, '⇥')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
