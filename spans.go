// spans.go — Sidecar spans for Shapelang ASTs (S-expressions)
//
// WHAT THIS MODULE DOES
// =====================
// This module provides a tiny, non-invasive mechanism to associate source-code
// byte spans with nodes of a Shapelang AST (encoded as the S-expression type
// `S` from parser.go) without modifying the AST itself.
//
// Spans are half-open byte intervals `[StartByte, EndByte)` relative to the
// original UTF-8 source. Line/column coordinates are not stored; callers
// derive them on demand with LineColAtByte.
//
// HOW SPANS ARE ASSOCIATED TO NODES
// =================================
// A sidecar structure (`SpanIndex`) is keyed by a stable, structural address
// called a NodePath: a slice of child indexes into the AST tree. Paths are
// defined against the S-expression shape where a node is
// `[]any{tagString, child0, child1, ...}` — child index 0 refers to the
// element at S[1], child index 1 to S[2], and so on.
//
// This file does not compute spans itself. The parser records one `Span` per
// AST node in post-order (children before parent) while constructing the
// tree, then calls `BuildSpanIndexPostOrder(ast, spans)` to bind those spans
// to concrete paths via a deterministic walk in the same order.
//
// The shape synthesizer (synth.go) uses the index to pin validation errors to
// the exact byte range of the offending expression inside a `shape` body.
//
// PERFORMANCE & CONCURRENCY
// =========================
// Building an index is O(n) in the number of AST nodes. `SpanIndex` is
// read-only after construction and safe to share for concurrent reads.
package shapelang

import (
	"strconv"
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// Span represents a half-open byte interval [StartByte, EndByte) in the
// original source text. Offsets are counted in bytes from the start of the
// UTF-8 source. EndByte is exclusive.
type Span struct {
	StartByte int // inclusive
	EndByte   int // exclusive
}

// NodePath is a stable structural address into an S-expression AST.
// Each integer selects a child in the node's children array:
//
//	path element k  → child at S[k+1] (since S[0] is the string tag).
//
// Example:
//
//	// ("call", callee, arg0, arg1)
//	path []int{0}   → callee
//	path []int{2}   → arg1
type NodePath []int

// Child returns a new path extended by one child index. The receiver is not
// modified, so paths can be extended along several branches safely.
func (p NodePath) Child(i int) NodePath {
	out := make(NodePath, len(p), len(p)+1)
	copy(out, p)
	return append(out, i)
}

// SpanIndex stores a sidecar mapping from NodePath → Span for an AST.
// It is read-only after construction. Use Get to retrieve spans by path.
type SpanIndex struct {
	byPath map[string]Span
}

// Get returns the span associated with the given path, if present.
// The boolean is false if the path is unknown or the index is nil.
//
// A SpanIndex may be partial (e.g. the producer skipped some nodes). In that
// case only the recorded nodes resolve to spans.
func (si *SpanIndex) Get(p NodePath) (Span, bool) {
	if si == nil {
		return Span{}, false
	}
	sp, ok := si.byPath[pathKey(p)]
	return sp, ok
}

// BuildSpanIndexPostOrder constructs a SpanIndex by walking the AST in
// post-order (children before parent) and binding each visited node to the
// next span from the provided `postorder` slice.
//
// Contract:
//   - The `postorder` slice must list exactly one Span for each node in
//     `root` in post-order. If it is longer, extras are ignored; if shorter,
//     remaining nodes are left unindexed.
//   - The resulting index is read-only and safe for concurrent reads.
func BuildSpanIndexPostOrder(root S, postorder []Span) *SpanIndex {
	si := &SpanIndex{byPath: make(map[string]Span, len(postorder))}
	bindPostOrder(si, root, postorder)
	return si
}

// LineColAtByte maps a byte offset into (line, col) against src.
// Line is 1-based; col is a 0-based byte column, matching the coordinates
// carried by tokens and the per-stage error structs (errors.go renders them
// 1-based). Offsets outside the source are clamped.
func LineColAtByte(src string, off int) (int, int) {
	if off < 0 {
		off = 0
	}
	if off > len(src) {
		off = len(src)
	}
	line := 1 + strings.Count(src[:off], "\n")
	lastNL := strings.LastIndex(src[:off], "\n")
	if lastNL < 0 {
		return line, off
	}
	return line, off - lastNL - 1
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
//                                 PRIVATE
////////////////////////////////////////////////////////////////////////////////

// pathKey serializes a NodePath to a compact "a.b.c" string used as the map key.
func pathKey(p NodePath) string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, x := range p {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(x))
	}
	return sb.String()
}

// bindPostOrder walks `root` in post-order, assigning spans from `postorder`
// to each visited node, in order.
func bindPostOrder(si *SpanIndex, root S, postorder []Span) {
	i := 0
	var walk func(n S, path NodePath)
	walk = func(n S, path NodePath) {
		// Visit children
		for ci := 1; ci < len(n); ci++ {
			if child, ok := n[ci].(S); ok {
				walk(child, append(path, ci-1))
			}
		}
		// Bind this node
		if i < len(postorder) {
			si.byPath[pathKey(path)] = postorder[i]
			i++
		}
	}
	walk(root, nil)
}
