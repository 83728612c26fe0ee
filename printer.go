package shapelang

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

/* ---------- globals & tiny helpers ---------- */

var EnableColor = false // REPL-only; tests can leave this false
var MaxInlineWidth = 80 // width threshold for single-line arrays/instances

const (
	colorReset = "\033[0m"
	colorBlue  = "\033[34m"
)

func colorize(s, c string) string {
	if !EnableColor {
		return s
	}
	return c + s + colorReset
}
func blue(s string) string { return colorize(s, colorBlue) }

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	rs := []rune(s)
	if !(unicode.IsLetter(rs[0]) || rs[0] == '_') {
		return false
	}
	for _, r := range rs[1:] {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$') {
			return false
		}
	}
	return true
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

/* ---------- small writer with indentation ---------- */

type out struct {
	b     *strings.Builder
	depth int
}

func (o *out) write(s string) { o.b.WriteString(s) }
func (o *out) nl()            { o.b.WriteByte('\n') }
func (o *out) pad() {
	for i := 0; i < o.depth; i++ {
		o.b.WriteString("  ")
	}
}
func (o *out) blue(s string)        { o.b.WriteString(blue(s)) }
func (o *out) withIndent(fn func()) { o.depth++; fn(); o.depth-- }

/* ---------- s-expr accessors ---------- */

func tag(n S) string     { return n[0].(string) }
func children(n S) []any { return n[1:] }
func child(n S, i int) S { return n[i+1].(S) }
func getId(n S) string   { return n[1].(string) }
func getStr(n S) string  { return n[1].(string) }

/* ---------- source -> pretty (AST printer) ---------- */

// Pretty parses Shapelang source and returns a formatted version (no colors).
func Pretty(src string) (string, error) {
	ast, err := ParseSExpr(src)
	if err != nil {
		return "", WrapErrorWithSource(err, src)
	}
	return FormatSExpr(ast), nil
}

// FormatSExpr pretty-prints a parsed s-expr AST.
func FormatSExpr(n S) string {
	var b strings.Builder
	p := pp{out: out{b: &b}}
	p.printProgram(n)
	return strings.TrimRight(b.String(), "\n")
}

// FormatExpr renders a single expression on one line. Synthesis uses it for
// signature keys and error excerpts, so the output must be deterministic.
func FormatExpr(n S) string {
	var b strings.Builder
	p := pp{out: out{b: &b}}
	p.printExpr(n, 0)
	return b.String()
}

// FormatStmt renders one statement (possibly multi-line, no trailing newline).
func FormatStmt(n S) string {
	var b strings.Builder
	p := pp{out: out{b: &b}}
	p.printStmt(n)
	return strings.TrimRight(b.String(), "\n")
}

type pp struct {
	out out
}

func (p *pp) write(s string) { p.out.write(s) }
func (p *pp) nl()            { p.out.nl() }
func (p *pp) sp()            { p.out.write(" ") }
func (p *pp) pad()           { p.out.pad() }

func (p *pp) printProgram(n S) {
	if tag(n) != "block" {
		p.printStmt(n)
		return
	}
	kids := children(n)
	for i, k := range kids {
		p.printStmt(k.(S))
		if i < len(kids)-1 {
			p.nl()
		}
	}
}

func (p *pp) printStmt(n S) {
	switch tag(n) {
	case "fun":
		p.pad()
		p.write("fun(")
		p.printParams(child(n, 0))
		p.write(")")
		p.printReturnType(child(n, 1))
		p.sp()
		p.write("do")
		p.nl()
		p.out.withIndent(func() { p.printBlock(child(n, 2)) })
		if len(child(n, 2)) > 1 {
			p.nl()
		}
		p.pad()
		p.write("end")

	case "fundef":
		fn := child(n, 1)
		p.pad()
		p.write("fun " + getId(child(n, 0)) + "(")
		p.printParams(child(fn, 0))
		p.write(")")
		p.printReturnType(child(fn, 1))
		p.sp()
		p.write("do")
		p.nl()
		p.out.withIndent(func() { p.printBlock(child(fn, 2)) })
		if len(child(fn, 2)) > 1 {
			p.nl()
		}
		p.pad()
		p.write("end")

	case "shape":
		p.pad()
		p.write("shape " + getId(child(n, 0)) + "(")
		p.printParams(child(n, 1))
		p.write(")")
		p.sp()
		p.write("do")
		p.nl()
		p.out.withIndent(func() { p.printBlock(child(n, 2)) })
		if len(child(n, 2)) > 1 {
			p.nl()
		}
		p.pad()
		p.write("end")

	case "struct":
		p.pad()
		p.write("struct " + getId(child(n, 0)))
		tps := child(n, 1)
		if len(tps) > 1 {
			p.write("[")
			p.printTypeParams(tps)
			p.write("]")
		}
		p.write("(")
		p.printParams(child(n, 2))
		p.write(")")

	case "show":
		p.pad()
		p.write("show " + getId(child(n, 0)) + " as ")
		p.printExpr(child(n, 1), 0)

	case "if":
		arms := children(n)
		first := arms[0].(S)
		p.pad()
		p.write("if ")
		p.printExpr(child(first, 0), 0)
		p.sp()
		p.write("then")
		p.nl()
		p.out.withIndent(func() { p.printBlock(child(first, 1)) })
		if len(child(first, 1)) > 1 {
			p.nl()
		}
		i := 1
		for i < len(arms) && tag(arms[i].(S)) == "pair" {
			arm := arms[i].(S)
			p.pad()
			p.write("elif ")
			p.printExpr(child(arm, 0), 0)
			p.sp()
			p.write("then")
			p.nl()
			p.out.withIndent(func() { p.printBlock(child(arm, 1)) })
			if len(child(arm, 1)) > 1 {
				p.nl()
			}
			i++
		}
		if i < len(arms) {
			elseBlk := arms[i].(S)
			p.pad()
			p.write("else")
			p.nl()
			p.out.withIndent(func() { p.printBlock(elseBlk) })
			if len(elseBlk) > 1 {
				p.nl()
			}
		}
		p.pad()
		p.write("end")

	case "return":
		p.pad()
		p.write("return(")
		p.printExpr(child(n, 0), 0)
		p.write(")")

	case "assign":
		lhs, rhs := child(n, 0), child(n, 1)
		p.pad()
		if tag(lhs) == "decl" {
			p.write("let " + getId(lhs))
		} else {
			p.printExpr(lhs, 0)
		}
		p.sp()
		p.write("=")
		p.sp()
		p.printExpr(rhs, 0)

	case "block":
		p.pad()
		p.write("do")
		p.nl()
		p.out.withIndent(func() { p.printBlock(n) })
		if len(n) > 1 {
			p.nl()
		}
		p.pad()
		p.write("end")

	default:
		p.pad()
		p.printExpr(n, 0)
	}
}

func (p *pp) printBlock(n S) {
	if tag(n) != "block" {
		p.printStmt(n)
		return
	}
	kids := children(n)
	for i, k := range kids {
		p.printStmt(k.(S))
		if i < len(kids)-1 {
			p.nl()
		}
	}
}

func (p *pp) printReturnType(ret S) {
	if tag(ret) == "id" && getId(ret) == "Any" {
		return
	}
	p.sp()
	p.write("->")
	p.sp()
	p.printExpr(ret, 0)
}

// printParams renders "name: Type" pairs for fun parameters and struct
// fields, hiding the implicit Any.
func (p *pp) printParams(arr S) {
	if tag(arr) != "array" || len(arr) == 1 {
		return
	}
	items := children(arr)
	for i, it := range items {
		pi := it.(S)
		name := getId(child(pi, 0))
		p.write(name)
		ty := child(pi, 1)
		if !(tag(ty) == "id" && getId(ty) == "Any") {
			p.write(": ")
			p.printExpr(ty, 0)
		}
		if i < len(items)-1 {
			p.write(", ")
		}
	}
}

// printTypeParams renders "T" or "T :: Bound" pairs for struct headers.
func (p *pp) printTypeParams(arr S) {
	items := children(arr)
	for i, it := range items {
		pi := it.(S)
		p.write(getId(child(pi, 0)))
		bound := child(pi, 1)
		if tag(bound) != "null" {
			p.write(" :: ")
			p.printExpr(bound, 0)
		}
		if i < len(items)-1 {
			p.write(", ")
		}
	}
}

func (p *pp) printExpr(n S, _ctx int) {
	switch tag(n) {
	case "id":
		p.write(getId(n))
	case "int":
		p.write(fmt.Sprint(n[1]))
	case "num":
		f := n[1].(float64)
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		p.write(s)
	case "str":
		p.write(quoteString(getStr(n)))
	case "bool":
		if n[1].(bool) {
			p.write("true")
		} else {
			p.write("false")
		}
	case "null":
		p.write("null")
	case "unop":
		op := n[1].(string)
		if op == "not" {
			p.write("not ")
		} else {
			p.write(op)
		}
		operand := n[2].(S)
		if prec(operand) < 80 {
			p.write("(")
			p.printExpr(operand, 0)
			p.write(")")
		} else {
			p.printExpr(operand, 80)
		}
	case "binop":
		op := n[1].(string)
		my := binopPrec(op)
		l, r := n[2].(S), n[3].(S)
		if prec(l) < my {
			p.write("(")
			p.printExpr(l, 0)
			p.write(")")
		} else {
			p.printExpr(l, my)
		}
		p.write(" " + op + " ")
		// Binops parse left-associative, so an equal-precedence RIGHT operand
		// needs parens to survive a round trip: a - (b - c) is not a - b - c.
		if prec(r) <= my {
			p.write("(")
			p.printExpr(r, 0)
			p.write(")")
		} else {
			p.printExpr(r, my)
		}
	case "bound":
		l, r := child(n, 0), child(n, 1)
		if prec(l) < 75 {
			p.write("(")
			p.printExpr(l, 0)
			p.write(")")
		} else {
			p.printExpr(l, 75)
		}
		p.write(" :: ")
		if prec(r) <= 75 {
			p.write("(")
			p.printExpr(r, 0)
			p.write(")")
		} else {
			p.printExpr(r, 75)
		}
	case "assign":
		l, r := child(n, 0), child(n, 1)
		if tag(l) == "decl" {
			p.write("let " + getId(l))
		} else if prec(l) < 10 {
			p.write("(")
			p.printExpr(l, 0)
			p.write(")")
		} else {
			p.printExpr(l, 10)
		}
		p.write(" = ")
		if prec(r) < 10 {
			p.write("(")
			p.printExpr(r, 0)
			p.write(")")
		} else {
			p.printExpr(r, 10)
		}
	case "call":
		recv := child(n, 0)
		if prec(recv) < 90 {
			p.write("(")
			p.printExpr(recv, 0)
			p.write(")")
		} else {
			p.printExpr(recv, 90)
		}
		p.write("(")
		for i := 2; i < len(n); i++ {
			if i > 2 {
				p.write(", ")
			}
			p.printExpr(n[i].(S), 0)
		}
		p.write(")")
	case "idx":
		recv := child(n, 0)
		if prec(recv) < 90 {
			p.write("(")
			p.printExpr(recv, 0)
			p.write(")")
		} else {
			p.printExpr(recv, 90)
		}
		p.write("[")
		p.printExpr(child(n, 1), 0)
		p.write("]")
	case "get":
		recv := child(n, 0)
		if prec(recv) < 90 {
			p.write("(")
			p.printExpr(recv, 0)
			p.write(")")
		} else {
			p.printExpr(recv, 90)
		}
		name := getStr(child(n, 1))
		if isIdent(name) {
			p.write("." + name)
		} else {
			p.write("." + quoteString(name))
		}
	case "array":
		p.write("[")
		for i, it := range children(n) {
			if i > 0 {
				p.write(", ")
			}
			p.printExpr(it.(S), 0)
		}
		p.write("]")
	case "decl":
		p.write("let " + getId(n))
	case "return", "fun", "fundef", "shape", "struct", "show", "if", "block":
		p.printStmt(n)
	default:
		p.write("<" + tag(n) + ">")
	}
}

func prec(n S) int {
	switch tag(n) {
	case "assign":
		return 10
	case "binop":
		return binopPrec(n[1].(string))
	case "bound":
		return 75
	case "unop":
		return 80
	case "call", "idx", "get":
		return 90
	default:
		return 100
	}
}

func binopPrec(op string) int {
	switch op {
	case "*", "/", "%":
		return 70
	case "+", "-":
		return 60
	case "<", "<=", ">", ">=":
		return 50
	case "==", "!=":
		return 40
	case "and":
		return 30
	case "or":
		return 20
	default:
		return 60
	}
}

/* ---------- runtime value pretty-printer ---------- */

// FormatValue returns a string for a runtime Value with width awareness and
// colors (optional). Instances render under their display name, which tracks
// the most recent shape declaration for their type.
func FormatValue(v Value) string {
	var b strings.Builder
	o := out{b: &b}
	writeValue(&o, v)
	return b.String()
}

func writeValue(o *out, v Value) {
	switch v.Tag {

	case VTNull:
		o.blue("null")

	case VTBool:
		if v.Data.(bool) {
			o.blue("true")
		} else {
			o.blue("false")
		}

	case VTInt:
		o.blue(strconv.FormatInt(v.Data.(int64), 10))

	case VTNum:
		s := strconv.FormatFloat(v.Data.(float64), 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		o.blue(s)

	case VTStr:
		o.blue(quoteString(v.Data.(string)))

	case VTArray:
		xs := v.Data.([]Value)
		if oneline := arrayOneLine(xs); oneline != "" && len(oneline) <= MaxInlineWidth {
			o.blue(oneline)
			return
		}
		o.blue("[")
		o.nl()
		o.withIndent(func() {
			for i, it := range xs {
				o.pad()
				writeValue(o, it)
				if i < len(xs)-1 {
					o.blue(",")
				}
				o.nl()
			}
		})
		o.pad()
		o.blue("]")

	case VTFun:
		if f, ok := v.Data.(*Fun); ok && f != nil {
			var sb strings.Builder
			sb.WriteString("<fun(")
			for i, name := range f.Params {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(name)
				if i < len(f.ParamTypes) && f.ParamTypes[i] != nil {
					ty := f.ParamTypes[i]
					if !(tag(ty) == "id" && getId(ty) == "Any") {
						sb.WriteString(": ")
						sb.WriteString(FormatExpr(ty))
					}
				}
			}
			sb.WriteString(")")
			if f.ReturnType != nil && !(tag(f.ReturnType) == "id" && getId(f.ReturnType) == "Any") {
				sb.WriteString(" -> ")
				sb.WriteString(FormatExpr(f.ReturnType))
			}
			sb.WriteString(">")
			o.blue(sb.String())
		} else {
			o.blue("<fun>")
		}

	case VTType:
		t := v.Data.(*TypeValue)
		if t.Desc != nil {
			o.blue(t.Desc.TypeName)
			return
		}
		o.blue(FormatExpr(t.Ast))

	case VTInstance:
		inst := v.Data.(*Instance)
		name := inst.Desc.DisplayName()
		if oneline := instanceOneLine(name, inst); oneline != "" && len(oneline) <= MaxInlineWidth {
			o.blue(oneline)
			return
		}
		o.blue(name + "(")
		o.nl()
		o.withIndent(func() {
			for i, f := range inst.Desc.Signature {
				o.pad()
				o.blue(f.Name + " = ")
				writeValue(o, inst.Fields[i])
				if i < len(inst.Fields)-1 {
					o.blue(",")
				}
				o.nl()
			}
		})
		o.pad()
		o.blue(")")

	default:
		o.blue("<value>")
	}
}

/* ---------- single-line candidates ---------- */

func arrayOneLine(xs []Value) string {
	if len(xs) == 0 {
		return "[]"
	}
	parts := make([]string, 0, len(xs))
	for _, it := range xs {
		if isValueMultiline(it) {
			return ""
		}
		var b strings.Builder
		o := out{b: &b}
		writeValue(&o, it)
		parts = append(parts, b.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func instanceOneLine(name string, inst *Instance) string {
	parts := make([]string, 0, len(inst.Fields))
	for i, f := range inst.Desc.Signature {
		if isValueMultiline(inst.Fields[i]) {
			return ""
		}
		var b strings.Builder
		o := out{b: &b}
		writeValue(&o, inst.Fields[i])
		parts = append(parts, f.Name+" = "+b.String())
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

func isValueMultiline(v Value) bool {
	switch v.Tag {
	case VTArray:
		xs := v.Data.([]Value)
		if len(xs) == 0 {
			return false
		}
		if oneline := arrayOneLine(xs); oneline != "" && len(oneline) <= MaxInlineWidth {
			return false
		}
		return true
	case VTInstance:
		inst := v.Data.(*Instance)
		name := inst.Desc.DisplayName()
		if oneline := instanceOneLine(name, inst); oneline != "" && len(oneline) <= MaxInlineWidth {
			return false
		}
		return true
	default:
		return false
	}
}
