// parser.go — Pratt parser for Shapelang that produces compact S-expressions.
//
// OVERVIEW
// --------
// This module implements the Pratt parser for the Shapelang language. It
// consumes the token stream produced by the *whitespace-sensitive* lexer
// (see lexer.go) and builds a compact, Lisp-style S-expression (AST).
//
// Design goals:
//   - Keep the grammar readable via precedence rules (Pratt parser).
//   - Encode the AST in a tiny, serialisable structure (S-expressions).
//   - Respect whitespace-sensitive signals emitted by the lexer:
//   - '(' can be LROUND or CLROUND; only CLROUND participates in calls.
//   - '[' can be LSQUARE or CLSQUARE; only CLSQUARE participates in
//     indexing and struct type-parameter lists.
//   - Support an "interactive" mode that surfaces ParseError{Incomplete}
//     at EOF instead of hard parse errors, suitable for REPLs.
//
// Nodes & Spans
// -------------
// The AST is a tree of S-expressions: []any whose first element is a string
// tag. **This list is the most important reference.**
//
//	("block", n1, n2, ...)
//
// Literals & identifiers:
//
//	("id",   string)              // identifier (includes property names coerced to ID by lexer rules)
//	("int",  int64)               // from INTEGER
//	("num",  float64)             // from NUMBER
//	("str",  string)              // decoded literal
//	("bool", bool)                // from BOOLEAN
//	("null")                      // from NULL
//
// Operators / expressions:
//
//	("unop",  op,  rhs)           // prefix "-" or "not" (op is string)
//	("binop", op,  lhs, rhs)      // "+", "-", "*", "/", "%", comparisons, "==", "!=", "and", "or"
//	("assign", target, value)     // "=" (right-assoc); target is decl/id/idx
//	("bound", expr, typeExpr)     // "expr :: T" — runtime type assertion; in a
//	                              // shape's terminal call it marks a field bound
//
// Property / call / index:
//
//	("call", callee, arg1, arg2, ...)
//	("get",  obj, ("str", name))             // obj.name or obj."name"
//	("idx",  obj, indexExpr)                 // obj[expr] or obj.12
//
// Collections:
//
//	("array", e1, e2, ...)
//
// Declarations, functions, control:
//
//	("decl",    name)                              // let pattern
//	("fun",     paramsArray, retTypeExprOrAny, bodyBlock)
//	("fundef",  ("id", name), funNode)             // named function statement
//	("shape",   ("id", name), paramsArray, bodyBlock)
//	("struct",  ("id", name), tparamsArray, fieldsArray)
//	("show",    ("id", name), displayExpr)
//	("if", ("pair", cond1, thenBlk1), ..., elseBlk?)
//	("return", value)  // value may be "null" per newline semantics
//
// Parameter-ish pair lists (fun/shape params, struct tparams and fields):
//
//	("array", ("pair", ("id", name), valueExpr), ...)
//	// fun/shape params and struct fields: value is the type (implicit Any)
//	// struct tparams: value is the bound expr, or ("null") when unbounded
//
// ─────────────────────────────────────────────────────────────────────────────
// SPAN EMISSION INVARIANT (CRITICAL)
// ----------------------------------
// **This file centralizes AST construction and span emission.**
//
//   - Every AST node is constructed through `mk*` helpers that *atomically*
//     append exactly one span for that node.
//   - Spans are appended in strict **post-order** of the final AST (children
//     first, then parent), left-to-right among siblings.
//   - Nodes synthesized with no concrete tokens (e.g. default type `Any`)
//     still receive a placeholder `Span{}` via `mk*` (using tok=-1).
//   - The root block's span is appended last.
//
// The helpers in this file enforce the invariant mechanically at every
// construct.
//
// Dependencies
// ------------
//   - lexer.go
//   - errors.go (ParseError, IsIncomplete)
//   - spans.go (Span, SpanIndex, BuildSpanIndexPostOrder, LineColAtByte)
package shapelang

import (
	"fmt"
)

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

type S = []any

func L(tag string, parts ...any) S { return append([]any{tag}, parts...) }

// ParseSExpr parses a complete Shapelang source string and returns its AST.
func ParseSExpr(src string) (S, error) {
	lex := NewLexer(src)
	toks, err := lex.Scan()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: src, lastSpanStartTok: -1, lastSpanEndTok: -1}
	return p.program()
}

// ParseSExprWithSpans parses like ParseSExpr and also returns a *SpanIndex,
// with spans recorded in strict post-order per the invariant.
func ParseSExprWithSpans(src string) (S, *SpanIndex, error) {
	lex := NewLexer(src)
	toks, err := lex.Scan()
	if err != nil {
		return nil, nil, err
	}
	p := &parser{toks: toks, src: src, lastSpanStartTok: -1, lastSpanEndTok: -1}
	ast, perr := p.program()
	if perr != nil {
		return nil, nil, perr
	}
	idx := BuildSpanIndexPostOrder(ast, p.post)
	return ast, idx, nil
}

// ParseSExprInteractive parses in REPL-friendly mode.
// Unterminated constructs at EOF produce ParseError{Incomplete: true}.
func ParseSExprInteractive(src string) (S, error) {
	lex := NewLexer(src)
	toks, err := lex.Scan()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: src, interactive: true, lastSpanStartTok: -1, lastSpanEndTok: -1}
	return p.program()
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
///////////////////////////// PRIVATE IMPLEMENTATION ///////////////////////////
////////////////////////////////////////////////////////////////////////////////

type parser struct {
	toks        []Token
	i           int
	interactive bool

	post             []Span // strictly post-order: one span per node, appended after children
	lastSpanStartTok int
	lastSpanEndTok   int
	src              string
}

// ─────────────────────────── token basics & helpers ─────────────────────────

func (p *parser) atEnd() bool { return p.peek().Type == EOF }
func (p *parser) peek() Token {
	if p.i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i]
}
func (p *parser) prev() Token { return p.toks[p.i-1] }

func (p *parser) match(tt ...TokenType) bool {
	if p.atEnd() {
		return false
	}
	for _, t := range tt {
		if p.peek().Type == t {
			p.i++
			return true
		}
	}
	return false
}

func (p *parser) need(t TokenType, msg string) (Token, error) {
	if p.match(t) {
		return p.prev(), nil
	}
	g := p.peek()
	if g.Type == EOF {
		line, col := p.posAfterLastSpan()
		return Token{}, &ParseError{Msg: msg, Line: line, Col: col, Incomplete: p.interactive}
	}
	line, col := p.posAtByte(g.StartByte)
	return Token{}, &ParseError{Msg: msg, Line: line, Col: col}
}

func (p *parser) posAtByte(b int) (int, int) {
	if b < 0 {
		g := p.peek()
		return g.Line, g.Col
	}
	return LineColAtByte(p.src, b)
}

func (p *parser) posAfterLastSpan() (int, int) {
	if p.lastSpanEndTok >= 0 && p.lastSpanEndTok < len(p.toks) {
		return p.posAtByte(p.toks[p.lastSpanEndTok].EndByte)
	}
	g := p.peek()
	return g.Line, g.Col
}

func tokText(t Token) string {
	if s, ok := t.Literal.(string); ok {
		return s
	}
	return t.Lexeme
}

// ───────────────────────── precedence / associativity ──────────────────────

func lbp(t TokenType) (int, bool) {
	switch t {
	case DCOLON:
		return 75, true
	case MULT, DIV, MOD:
		return 70, true
	case PLUS, MINUS:
		return 60, true
	case LESS, LESS_EQ, GREATER, GREATER_EQ:
		return 50, true
	case EQ, NEQ:
		return 40, true
	case AND:
		return 30, true
	case OR:
		return 20, true
	case ASSIGN:
		return 10, true
	}
	return 0, false
}
func isRightAssoc(tt TokenType) bool { return tt == ASSIGN }

// ───────────────────────────── span emission (core) ─────────────────────────
//
// Centralized helpers. **All** node construction goes through these, which
// also append exactly one span for the node (post-order).
//
// Rules:
//   - For leaves tied to a concrete token, pass tok≥0 (start=end=tok).
//   - For synthetic leaves (e.g. default "Any"), pass tok=-1 to emit Span{}.
//   - For parents, pass the token range [startTok, endTok] that covers the node.
//   - Helpers also update (lastSpanStartTok,lastSpanEndTok) to the node's range,
//     so callers can compose larger parent ranges deterministically.

func (p *parser) appendNodeSpanByTok(startTok, endTok int) {
	if startTok >= 0 && endTok >= startTok &&
		startTok < len(p.toks) && endTok < len(p.toks) {
		p.post = append(p.post, Span{
			StartByte: p.toks[startTok].StartByte,
			EndByte:   p.toks[endTok].EndByte,
		})
	} else {
		p.post = append(p.post, Span{})
	}
	p.lastSpanStartTok = startTok
	p.lastSpanEndTok = endTok
}

// mkLeaf builds a leaf node whose span is a single token (tok). If tok<0,
// a placeholder empty span is appended (keeps post-order cardinality intact).
func (p *parser) mkLeaf(tag string, tok int, parts ...any) S {
	n := L(tag, parts...)
	p.appendNodeSpanByTok(tok, tok)
	return n
}

// mk builds a parent node after its children were already constructed.
// It appends exactly one span for the parent covering [startTok,endTok].
func (p *parser) mk(tag string, startTok, endTok int, parts ...any) S {
	n := L(tag, parts...)
	p.appendNodeSpanByTok(startTok, endTok)
	return n
}

// ───────────────────────── program / blocks ────────────────────────────

func (p *parser) program() (S, error) {
	var items []any
	for !p.atEnd() {
		e, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	rootStart := 0
	rootEnd := len(p.toks) - 2 // last non-EOF
	if rootEnd < rootStart || len(p.toks) == 0 {
		return p.mk("block", -1, -1 /*empty*/), nil
	}
	return p.mk("block", rootStart, rootEnd, items...), nil
}

// blockUntil parses statements until a stop token is seen.
// Span append happens once for the "block" node, after its children.
func (p *parser) blockUntil(stops ...TokenType) (S, error) {
	stop := map[TokenType]bool{}
	for _, s := range stops {
		stop[s] = true
	}
	var items []any
	startTok := p.i
	consumedAny := false

	for !p.atEnd() && !stop[p.peek().Type] {
		e, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
		consumedAny = true
	}
	if consumedAny {
		return p.mk("block", startTok, p.i-1, items...), nil
	}
	return p.mk("block", -1, -1 /*empty*/), nil
}

func (p *parser) parseBlock(requireDo bool) (S, error) {
	if requireDo {
		if _, err := p.need(DO, "expected 'do'"); err != nil {
			return nil, err
		}
	}
	b, err := p.blockUntil(END)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(END, "expected 'end'"); err != nil {
		return nil, err
	}
	return b, nil
}

// ───────────────────────────── tiny node helpers ───────────────────────────

func (p *parser) tryLiteralOrId(t Token, start int) (S, bool) {
	switch t.Type {
	case ID, TYPE:
		return p.mkLeaf("id", start, tokText(t)), true
	case INTEGER:
		return p.mkLeaf("int", start, t.Literal), true
	case NUMBER:
		return p.mkLeaf("num", start, t.Literal), true
	case STRING:
		return p.mkLeaf("str", start, t.Literal), true
	case BOOLEAN:
		return p.mkLeaf("bool", start, t.Literal), true
	case NULL:
		return p.mkLeaf("null", start), true
	}
	return nil, false
}

// ───────────────────────────── prefix / postfix / infix ────────────────────

func (p *parser) expr(minBP int) (S, error) {
	tokIndexOfThis := p.i
	t := p.peek()
	p.i++

	var left S
	leftStartTok := tokIndexOfThis

	// ---- prefix ----
	if n, ok := p.tryLiteralOrId(t, tokIndexOfThis); ok {
		left = n
	} else {
		switch t.Type {
		case MINUS, NOT:
			if err := p.needExprAfter(t, "expected expression after unary operator"); err != nil {
				return nil, err
			}
			r, err := p.expr(80)
			if err != nil {
				return nil, err
			}
			endTok := p.lastSpanEndTok
			if endTok < 0 {
				endTok = tokIndexOfThis
			}
			left = p.mk("unop", tokIndexOfThis, endTok, t.Lexeme, r)

		case LROUND, CLROUND:
			inner, err := p.parseGrouping()
			if err != nil {
				return nil, err
			}
			left = inner
			leftStartTok = tokIndexOfThis

		case LSQUARE, CLSQUARE:
			a, err := p.arrayLiteralAfterOpen()
			if err != nil {
				return nil, err
			}
			left = a
			leftStartTok = tokIndexOfThis

		case FUNCTION:
			if p.peek().Type == ID {
				// Named form: a statement that (re)binds the name.
				nameTok := p.i
				p.i++
				nameLeaf := p.mkLeaf("id", nameTok, tokText(p.toks[nameTok]))
				fn, _, err := p.funExpr(tokIndexOfThis)
				if err != nil {
					return nil, err
				}
				left = p.mk("fundef", tokIndexOfThis, p.i-1, nameLeaf, fn)
			} else {
				fn, _, err := p.funExpr(tokIndexOfThis)
				if err != nil {
					return nil, err
				}
				left = fn
			}
			leftStartTok = tokIndexOfThis

		case SHAPE:
			n, err := p.shapeExpr(tokIndexOfThis)
			if err != nil {
				return nil, err
			}
			left = n
			leftStartTok = tokIndexOfThis

		case STRUCT:
			n, err := p.structExpr(tokIndexOfThis)
			if err != nil {
				return nil, err
			}
			left = n
			leftStartTok = tokIndexOfThis

		case SHOW:
			n, err := p.showExpr(tokIndexOfThis)
			if err != nil {
				return nil, err
			}
			left = n
			leftStartTok = tokIndexOfThis

		case RETURN:
			n, err := p.parseReturn(t, tokIndexOfThis)
			if err != nil {
				return nil, err
			}
			left = n
			leftStartTok = tokIndexOfThis

		case IF:
			thenIf, err := p.ifExpr()
			if err != nil {
				return nil, err
			}
			left = p.mk("if", tokIndexOfThis, p.i-1, thenIf[1:]...)
			leftStartTok = tokIndexOfThis

		case DO:
			body, err := p.parseBlock(false)
			if err != nil {
				return nil, err
			}
			left = body
			leftStartTok = tokIndexOfThis

		case LET:
			pat, err := p.declPattern()
			if err != nil {
				return nil, err
			}
			left = pat
			leftStartTok = tokIndexOfThis

		default:
			if t.Type == EOF && p.interactive {
				line, col := p.posAfterLastSpan()
				return nil, &ParseError{Msg: "unexpected end of input", Line: line, Col: col, Incomplete: true}
			}
			line, col := p.posAtByte(t.StartByte)
			return nil, &ParseError{Msg: fmt.Sprintf("unexpected token '%s'", t.Lexeme), Line: line, Col: col}
		}
	}

	// ---- postfix chain ----
	for {
		n, ok, err := p.parseOnePostfix(left, leftStartTok)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		left = n
	}

	// ---- infix ops ----
	for {
		op := p.peek()
		bp, ok := lbp(op.Type)
		if !ok || bp < minBP {
			break
		}
		p.i++

		nextBP := bp + 1
		if isRightAssoc(op.Type) {
			nextBP = bp
		}

		if op.Type == ASSIGN && !assignable(left) {
			line, col := p.posAtByte(op.StartByte)
			return nil, &ParseError{Msg: "invalid assignment target", Line: line, Col: col}
		}

		if err := p.needExprAfter(op, "expected expression after operator"); err != nil {
			return nil, err
		}
		rightParsed, err := p.expr(nextBP)
		if err != nil {
			return nil, err
		}

		endTok := p.lastSpanEndTok
		switch op.Type {
		case ASSIGN:
			left = p.mk("assign", leftStartTok, endTok, left, rightParsed)
		case DCOLON:
			left = p.mk("bound", leftStartTok, endTok, left, rightParsed)
		default:
			left = p.mk("binop", leftStartTok, endTok, op.Lexeme, left, rightParsed)
		}
	}
	return left, nil
}

func (p *parser) needExprAfter(tok Token, msg string) error {
	if p.atEnd() && p.interactive {
		line, col := p.posAtByte(tok.StartByte)
		return &ParseError{Msg: msg, Line: line, Col: col, Incomplete: true}
	}
	return nil
}

// assignable reports whether a node may sit left of '='.
// Instance fields are immutable, so "get" is deliberately absent.
func assignable(n S) bool {
	if len(n) == 0 {
		return false
	}
	switch n[0] {
	case "decl", "id", "idx":
		return true
	}
	return false
}

// parseGrouping reads '(' expr ')' for either LROUND or CLROUND in prefix position.
func (p *parser) parseGrouping() (S, error) {
	inner, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(RROUND, "expected ')'"); err != nil {
		return nil, err
	}
	return inner, nil
}

// ───────────────────────── unified postfix dispatcher ──────────────────────
//
// Handles: CLROUND (call), CLSQUARE (index), PERIOD (dot).
// **Span order** is enforced: children were already appended during their
// parse. We append exactly one span for the new wrapper node (call, idx, get).

func (p *parser) parseOnePostfix(left S, leftStartTok int) (S, bool, error) {
	switch p.peek().Type {
	case CLROUND:
		p.i++
		if p.match(RROUND) {
			n := p.mk("call", leftStartTok, p.i-1, left)
			return n, true, nil
		}
		args, err := p.commaList(RROUND, func() (S, error) { return p.expr(0) })
		if err != nil {
			return nil, false, err
		}
		if _, err := p.need(RROUND, "expected ')'"); err != nil {
			return nil, false, err
		}
		n := p.mk("call", leftStartTok, p.i-1, append([]any{left}, args...)...)
		return n, true, nil

	case CLSQUARE:
		p.i++
		idx, err := p.expr(0)
		if err != nil {
			return nil, false, err
		}
		if _, err := p.need(RSQUARE, "expected ']'"); err != nil {
			return nil, false, err
		}
		n := p.mk("idx", leftStartTok, p.i-1, left, idx)
		return n, true, nil

	case PERIOD:
		p.i++ // consume '.'
		// .<int> -> idx
		if p.match(INTEGER) {
			intTok := p.i - 1
			intNode := p.mkLeaf("int", intTok, p.prev().Literal)
			n := p.mk("idx", leftStartTok, intTok, left, intNode)
			return n, true, nil
		}
		// .id / ."str" -> get
		if p.match(ID) || p.match(STRING) {
			propTok := p.i - 1
			prop := p.mkLeaf("str", propTok, tokText(p.prev()))
			n := p.mk("get", leftStartTok, propTok, left, prop)
			return n, true, nil
		}
		g := p.peek()
		line, col := p.posAtByte(g.StartByte)
		return nil, false, &ParseError{Msg: "expected property name or integer after '.'", Line: line, Col: col}
	}
	return nil, false, nil
}

// ───────────────────────── collections / lists ─────────────────────────────

// commaList parses elements until the closer is seen; a trailing comma is
// allowed. The closer itself is left for the caller to consume.
func (p *parser) commaList(closeTT TokenType, parseElem func() (S, error)) ([]any, error) {
	var out []any
	for {
		if p.peek().Type == closeTT {
			break
		}
		e, err := parseElem()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if !p.match(COMMA) {
			break
		}
	}
	return out, nil
}

func (p *parser) arrayLiteralAfterOpen() (S, error) {
	openTok := p.i - 1
	if p.match(RSQUARE) {
		return p.mk("array", openTok, p.i-1), nil
	}
	elems, err := p.commaList(RSQUARE, func() (S, error) { return p.expr(0) })
	if err != nil {
		return nil, err
	}
	if _, perr := p.need(RSQUARE, "expected ']'"); perr != nil {
		return nil, perr
	}
	return p.mk("array", openTok, p.i-1, elems...), nil
}

// params parses (CLROUND ... RROUND) parameter pairs: `name` or `name: Type`.
// A missing type defaults to Any. Also used for struct field lists.
func (p *parser) params() (S, error) {
	if _, perr := p.need(CLROUND, "expected '(' to start parameters"); perr != nil {
		return nil, perr
	}
	openTok := p.i - 1

	// Immediate close → empty params array
	if p.match(RROUND) {
		return p.mk("array", openTok, p.i-1), nil
	}

	var entries []any
	for {
		if p.peek().Type == RROUND {
			break
		}
		elemStartTok := p.i

		idTok, err := p.need(ID, "expected parameter name")
		if err != nil {
			return nil, err
		}
		nameLeaf := p.mkLeaf("id", p.i-1, tokText(idTok))

		var val S
		if p.match(COLON) {
			if err := p.needExprAfter(p.prev(), "expected type after ':'"); err != nil {
				return nil, err
			}
			tExpr, terr := p.expr(0)
			if terr != nil {
				return nil, terr
			}
			val = tExpr
		} else {
			val = p.mkLeaf("id", -1, "Any")
		}

		entries = append(entries, p.mk("pair", elemStartTok, p.i-1, nameLeaf, val))

		if !p.match(COMMA) {
			break
		}
	}

	if _, perr := p.need(RROUND, "expected ')' after parameters"); perr != nil {
		return nil, perr
	}
	return p.mk("array", openTok, p.i-1, entries...), nil
}

// structTypeParams parses `[T1, T2 :: BoundExpr, ...]` after the opening
// CLSQUARE was consumed. Unbounded parameters get a ("null") placeholder.
func (p *parser) structTypeParams() (S, error) {
	openTok := p.i - 1
	if p.match(RSQUARE) {
		return p.mk("array", openTok, p.i-1), nil
	}

	var entries []any
	for {
		if p.peek().Type == RSQUARE {
			break
		}
		elemStartTok := p.i

		idTok, err := p.need(ID, "expected type parameter name")
		if err != nil {
			return nil, err
		}
		nameLeaf := p.mkLeaf("id", p.i-1, tokText(idTok))

		var bound S
		if p.match(DCOLON) {
			if err := p.needExprAfter(p.prev(), "expected bound after '::'"); err != nil {
				return nil, err
			}
			bExpr, berr := p.expr(0)
			if berr != nil {
				return nil, berr
			}
			bound = bExpr
		} else {
			bound = p.mkLeaf("null", -1)
		}

		entries = append(entries, p.mk("pair", elemStartTok, p.i-1, nameLeaf, bound))

		if !p.match(COMMA) {
			break
		}
	}

	if _, perr := p.need(RSQUARE, "expected ']' after type parameters"); perr != nil {
		return nil, perr
	}
	return p.mk("array", openTok, p.i-1, entries...), nil
}

// ───────────────────────── control / if ────────────────────────────────────

func (p *parser) nextTokenIsOnSameLine(as Token) bool {
	if p.atEnd() {
		return false
	}
	return p.peek().Line == as.Line
}

func (p *parser) parseReturn(t Token, startTok int) (S, error) {
	// Newline after 'return' → no value (Null).
	if !p.nextTokenIsOnSameLine(t) {
		return p.mk("return", startTok, startTok, p.mkLeaf("null", -1)), nil
	}

	// Same line but next token can't start a value → also Null.
	switch p.peek().Type {
	case END, ELSE, ELIF, THEN, RROUND, RSQUARE:
		return p.mk("return", startTok, startTok, p.mkLeaf("null", -1)), nil
	}

	x, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	return p.mk("return", startTok, p.lastSpanEndTok, x), nil
}

func (p *parser) ifExpr() (S, error) {
	condStartTok := p.i
	cond, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(THEN, "expected 'then'"); err != nil {
		return nil, err
	}
	thenBlk, err := p.blockUntil(END, ELIF, ELSE)
	if err != nil {
		return nil, err
	}
	arm := p.mk("pair", condStartTok, p.lastSpanEndTok, cond, thenBlk)
	arms := []any{arm}

	for p.match(ELIF) {
		condStartTok = p.i
		c, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(THEN, "expected 'then'"); err != nil {
			return nil, err
		}
		b, err := p.blockUntil(END, ELIF, ELSE)
		if err != nil {
			return nil, err
		}
		arm := p.mk("pair", condStartTok, p.lastSpanEndTok, c, b)
		arms = append(arms, arm)
	}

	var elseTail []any
	if p.match(ELSE) {
		b, err := p.blockUntil(END)
		if err != nil {
			return nil, err
		}
		elseTail = []any{b}
	}
	if _, err := p.need(END, "expected 'end'"); err != nil {
		return nil, err
	}
	return L("if", append(arms, elseTail...)...), nil
}

// ───────────────────────── functions / declarations ────────────────────────

func (p *parser) optionalArrowType(incMsg string) (S, error) {
	if p.match(ARROW) {
		arrowTok := p.prev()
		if err := p.needExprAfter(arrowTok, incMsg); err != nil {
			return nil, err
		}
		r, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		return r, nil // parsed type (one node)
	}
	return p.mkLeaf("id", -1, "Any"), nil // single synthetic node
}

func (p *parser) funExpr(openTok int) (S, int, error) {
	params, err := p.params()
	if err != nil {
		return nil, 0, err
	}
	ret, err := p.optionalArrowType("expected return type after '->'")
	if err != nil {
		return nil, 0, err
	}
	body, perr := p.parseBlock(true)
	if perr != nil {
		return nil, 0, perr
	}
	node := p.mk("fun", openTok, p.i-1, params, ret, body)
	return node, p.i - 1, nil
}

func (p *parser) shapeExpr(openTok int) (S, error) {
	nameTok, err := p.need(ID, "expected shape name after 'shape'")
	if err != nil {
		return nil, err
	}
	nameLeaf := p.mkLeaf("id", p.i-1, tokText(nameTok))
	params, err := p.params()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock(true)
	if err != nil {
		return nil, err
	}
	return p.mk("shape", openTok, p.i-1, nameLeaf, params, body), nil
}

func (p *parser) structExpr(openTok int) (S, error) {
	nameTok, err := p.need(ID, "expected struct name after 'struct'")
	if err != nil {
		return nil, err
	}
	nameLeaf := p.mkLeaf("id", p.i-1, tokText(nameTok))

	var tparams S
	if p.match(CLSQUARE) {
		tp, terr := p.structTypeParams()
		if terr != nil {
			return nil, terr
		}
		tparams = tp
	} else {
		tparams = p.mk("array", -1, -1)
	}

	fields, err := p.params()
	if err != nil {
		return nil, err
	}
	return p.mk("struct", openTok, p.i-1, nameLeaf, tparams, fields), nil
}

func (p *parser) showExpr(openTok int) (S, error) {
	nameTok, err := p.need(ID, "expected type name after 'show'")
	if err != nil {
		return nil, err
	}
	nameLeaf := p.mkLeaf("id", p.i-1, tokText(nameTok))
	if _, err := p.need(AS, "expected 'as' in show declaration"); err != nil {
		return nil, err
	}
	if err := p.needExprAfter(p.prev(), "expected display name after 'as'"); err != nil {
		return nil, err
	}
	disp, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	return p.mk("show", openTok, p.lastSpanEndTok, nameLeaf, disp), nil
}

// ─────────────────────── declaration patterns (let) ────────────────────────

func (p *parser) declPattern() (S, error) {
	idTok, err := p.need(ID, "expected name after 'let'")
	if err != nil {
		return nil, err
	}
	return p.mkLeaf("decl", p.i-1, tokText(idTok)), nil
}
