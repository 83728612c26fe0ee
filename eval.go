// eval.go: tree-walking evaluator
//
// What this file does
// -------------------
// Evaluates parsed S-expression ASTs directly. Every node kind (statement or
// expression) flows through one switch; evaluation returns a triple
// (value, returned, error) where `returned` unwinds a `return(...)` to the
// nearest function boundary. Shapelang is an expression language, so blocks
// yield the value of their last statement and `return` may appear anywhere a
// value may.
//
// Shape declarations are where evaluation meets synthesis: a `shape`
// statement is validated and expanded by synth.go, then its artifact
// statements run through this same evaluator, in order. The emitted code is
// ordinary Shapelang, so nothing here special-cases "synthesized" structs
// versus hand-written ones.
//
// Error positions
// ---------------
// Node-level evaluation raises RuntimeError/ShapeError values without
// positions; the runtime loop (runtime.go) stamps the enclosing statement's
// position before errors surface. Shape validation errors are the exception:
// when the declaration still sits in the AST the runtime parsed, its exact
// sub-expression is located through the span sidecar.
package shapelang

import (
	"fmt"
	"strings"
)

type evalCtx struct {
	rt    *Runtime
	root  S          // AST currently being run; nil for programmatic eval
	spans *SpanIndex // sidecar for root; may be nil
	src   string     // source text behind root
}

func rtErrf(format string, args ...any) error {
	return &RuntimeError{Msg: fmt.Sprintf(format, args...)}
}

// valueTypeName names a value's type for error messages, without colors.
func valueTypeName(v Value) string {
	t := typeOfValue(v).Data.(*TypeValue)
	if t.Desc != nil {
		return t.Desc.TypeName
	}
	return getId(t.Ast)
}

/* ===========================
   core dispatch
   =========================== */

func (ec *evalCtx) eval(env *Env, n S) (Value, bool, error) {
	switch tag(n) {

	// ----- literals -----
	case "null":
		return Null, false, nil
	case "bool":
		return Bool(n[1].(bool)), false, nil
	case "int":
		return Int(n[1].(int64)), false, nil
	case "num":
		return Num(n[1].(float64)), false, nil
	case "str":
		return Str(n[1].(string)), false, nil

	case "id":
		v, err := env.Get(getId(n))
		if err != nil {
			return Value{}, false, rtErrf("%s", err)
		}
		return v, false, nil

	case "decl":
		env.Define(getId(n), Null)
		return Null, false, nil

	case "array":
		xs := make([]Value, 0, len(n)-1)
		for i := 1; i < len(n); i++ {
			v, ret, err := ec.eval(env, n[i].(S))
			if err != nil || ret {
				return v, ret, err
			}
			xs = append(xs, v)
		}
		return Arr(xs), false, nil

	// ----- operators -----
	case "unop":
		return ec.evalUnop(env, n)
	case "binop":
		return ec.evalBinop(env, n)
	case "bound":
		return ec.evalBound(env, n)

	case "assign":
		return ec.evalAssign(env, n)

	case "get":
		recv, ret, err := ec.eval(env, child(n, 0))
		if err != nil || ret {
			return recv, ret, err
		}
		name := getStr(child(n, 1))
		if recv.Tag != VTInstance {
			return Value{}, false, rtErrf("property access requires an instance, got %s", valueTypeName(recv))
		}
		v, ok := recv.Data.(*Instance).Field(name)
		if !ok {
			return Value{}, false, rtErrf("%s has no field '%s'", valueTypeName(recv), name)
		}
		return v, false, nil

	case "idx":
		recv, ret, err := ec.eval(env, child(n, 0))
		if err != nil || ret {
			return recv, ret, err
		}
		iv, ret, err := ec.eval(env, child(n, 1))
		if err != nil || ret {
			return iv, ret, err
		}
		if recv.Tag != VTArray || iv.Tag != VTInt {
			return Value{}, false, rtErrf("index requires array[int]")
		}
		xs := recv.Data.([]Value)
		i := iv.Data.(int64)
		if i < 0 || i >= int64(len(xs)) {
			return Value{}, false, rtErrf("array index out of range")
		}
		return xs[i], false, nil

	case "call":
		return ec.evalCall(env, n)

	// ----- control -----
	case "if":
		return ec.evalIf(env, n)

	case "return":
		v, ret, err := ec.eval(env, child(n, 0))
		if err != nil || ret {
			return v, ret, err
		}
		return v, true, nil

	case "block":
		return ec.evalBlock(NewEnv(env), n)

	// ----- definitions -----
	case "fun":
		return FunVal(closure(env, "", n)), false, nil

	case "fundef":
		name := getId(child(n, 0))
		v := FunVal(closure(env, name, child(n, 1)))
		env.Define(name, v)
		return v, false, nil

	case "shape":
		return ec.evalShape(env, n)

	case "struct":
		return ec.evalStruct(env, n)

	case "show":
		return ec.evalShow(env, n)

	default:
		return Value{}, false, rtErrf("cannot evaluate '%s' node", tag(n))
	}
}

// evalBlock runs statements in env without opening a new scope; callers that
// want one pass a fresh child Env.
func (ec *evalCtx) evalBlock(env *Env, n S) (Value, bool, error) {
	if tag(n) != "block" {
		return ec.eval(env, n)
	}
	last := Null
	for i := 1; i < len(n); i++ {
		v, ret, err := ec.eval(env, n[i].(S))
		if err != nil || ret {
			return v, ret, err
		}
		last = v
	}
	return last, false, nil
}

/* ===========================
   operators
   =========================== */

func (ec *evalCtx) evalUnop(env *Env, n S) (Value, bool, error) {
	op := n[1].(string)
	v, ret, err := ec.eval(env, n[2].(S))
	if err != nil || ret {
		return v, ret, err
	}
	switch op {
	case "-":
		switch v.Tag {
		case VTInt:
			return Int(-v.Data.(int64)), false, nil
		case VTNum:
			return Num(-v.Data.(float64)), false, nil
		}
		return Value{}, false, rtErrf("unary - expects a number, got %s", valueTypeName(v))
	case "not":
		if v.Tag != VTBool {
			return Value{}, false, rtErrf("not expects a boolean, got %s", valueTypeName(v))
		}
		return Bool(!v.Data.(bool)), false, nil
	}
	return Value{}, false, rtErrf("unknown unary operator '%s'", op)
}

func (ec *evalCtx) evalBinop(env *Env, n S) (Value, bool, error) {
	op := n[1].(string)

	l, ret, err := ec.eval(env, n[2].(S))
	if err != nil || ret {
		return l, ret, err
	}

	// and/or short-circuit before the right operand runs.
	if op == "and" || op == "or" {
		if l.Tag != VTBool {
			return Value{}, false, rtErrf("'%s' expects booleans, got %s", op, valueTypeName(l))
		}
		b := l.Data.(bool)
		if (op == "and" && !b) || (op == "or" && b) {
			return Bool(b), false, nil
		}
		r, ret, err := ec.eval(env, n[3].(S))
		if err != nil || ret {
			return r, ret, err
		}
		if r.Tag != VTBool {
			return Value{}, false, rtErrf("'%s' expects booleans, got %s", op, valueTypeName(r))
		}
		return r, false, nil
	}

	r, ret, err := ec.eval(env, n[3].(S))
	if err != nil || ret {
		return r, ret, err
	}

	switch op {
	case "==":
		return Bool(valueEquals(l, r)), false, nil
	case "!=":
		return Bool(!valueEquals(l, r)), false, nil

	case "+":
		if l.Tag == VTStr && r.Tag == VTStr {
			return Str(l.Data.(string) + r.Data.(string)), false, nil
		}
		if l.Tag == VTArray && r.Tag == VTArray {
			lx, rx := l.Data.([]Value), r.Data.([]Value)
			out := make([]Value, 0, len(lx)+len(rx))
			out = append(out, lx...)
			out = append(out, rx...)
			return Arr(out), false, nil
		}
		return arith(op, l, r)

	case "-", "*", "/", "%":
		return arith(op, l, r)

	case "<", "<=", ">", ">=":
		if l.Tag == VTStr && r.Tag == VTStr {
			return Bool(strCompare(op, l.Data.(string), r.Data.(string))), false, nil
		}
		lf, lok := numericOf(l)
		rf, rok := numericOf(r)
		if !lok || !rok {
			return Value{}, false, rtErrf("'%s' expects two numbers or two strings", op)
		}
		return Bool(numCompare(op, lf, rf)), false, nil
	}
	return Value{}, false, rtErrf("unknown operator '%s'", op)
}

func arith(op string, l, r Value) (Value, bool, error) {
	if l.Tag == VTInt && r.Tag == VTInt {
		a, b := l.Data.(int64), r.Data.(int64)
		switch op {
		case "+":
			return Int(a + b), false, nil
		case "-":
			return Int(a - b), false, nil
		case "*":
			return Int(a * b), false, nil
		case "/":
			if b == 0 {
				return Value{}, false, rtErrf("division by zero")
			}
			return Int(a / b), false, nil
		case "%":
			if b == 0 {
				return Value{}, false, rtErrf("division by zero")
			}
			return Int(a % b), false, nil
		}
	}
	lf, lok := numericOf(l)
	rf, rok := numericOf(r)
	if !lok || !rok {
		return Value{}, false, rtErrf("'%s' expects numbers, got %s and %s", op, valueTypeName(l), valueTypeName(r))
	}
	switch op {
	case "+":
		return Num(lf + rf), false, nil
	case "-":
		return Num(lf - rf), false, nil
	case "*":
		return Num(lf * rf), false, nil
	case "/":
		if rf == 0 {
			return Value{}, false, rtErrf("division by zero")
		}
		return Num(lf / rf), false, nil
	}
	return Value{}, false, rtErrf("'%s' expects integers", op)
}

func strCompare(op, a, b string) bool {
	c := strings.Compare(a, b)
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	default:
		return c >= 0
	}
}

func numCompare(op string, a, b float64) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default:
		return a >= b
	}
}

// evalBound applies `expr :: Type`: evaluate, assert, pass through.
func (ec *evalCtx) evalBound(env *Env, n S) (Value, bool, error) {
	v, ret, err := ec.eval(env, child(n, 0))
	if err != nil || ret {
		return v, ret, err
	}
	tv, err := ec.resolveType(env, child(n, 1))
	if err != nil {
		return Value{}, false, err
	}
	if !conforms(v, tv) {
		return Value{}, false, rtErrf("bound '%s' rejects %s", FormatExpr(child(n, 1)), valueTypeName(v))
	}
	return v, false, nil
}

// resolveType evaluates a type expression to its *TypeValue. A nil result
// means "no constraint" (the expression was Any).
func (ec *evalCtx) resolveType(env *Env, texpr S) (*TypeValue, error) {
	if texpr == nil || (tag(texpr) == "id" && getId(texpr) == "Any") {
		return nil, nil
	}
	v, ret, err := ec.eval(env, texpr)
	if err != nil {
		return nil, err
	}
	if ret || v.Tag != VTType {
		return nil, rtErrf("'%s' does not name a type", FormatExpr(texpr))
	}
	return v.Data.(*TypeValue), nil
}

/* ===========================
   assignment
   =========================== */

func (ec *evalCtx) evalAssign(env *Env, n S) (Value, bool, error) {
	lhs, rhs := child(n, 0), child(n, 1)
	v, ret, err := ec.eval(env, rhs)
	if err != nil || ret {
		return v, ret, err
	}
	switch tag(lhs) {
	case "decl":
		env.Define(getId(lhs), v)
		return v, false, nil
	case "id":
		if err := env.Set(getId(lhs), v); err != nil {
			return Value{}, false, rtErrf("%s", err)
		}
		return v, false, nil
	case "idx":
		recv, ret, err := ec.eval(env, child(lhs, 0))
		if err != nil || ret {
			return recv, ret, err
		}
		iv, ret, err := ec.eval(env, child(lhs, 1))
		if err != nil || ret {
			return iv, ret, err
		}
		if recv.Tag != VTArray || iv.Tag != VTInt {
			return Value{}, false, rtErrf("index assignment requires array[int]")
		}
		xs := recv.Data.([]Value)
		i := iv.Data.(int64)
		if i < 0 || i >= int64(len(xs)) {
			return Value{}, false, rtErrf("array index out of range")
		}
		xs[i] = v
		return v, false, nil
	}
	return Value{}, false, rtErrf("cannot assign to '%s'", FormatExpr(lhs))
}

/* ===========================
   calls & construction
   =========================== */

func (ec *evalCtx) evalCall(env *Env, n S) (Value, bool, error) {
	callee, ret, err := ec.eval(env, child(n, 0))
	if err != nil || ret {
		return callee, ret, err
	}
	args := make([]Value, 0, len(n)-2)
	for i := 2; i < len(n); i++ {
		v, ret, err := ec.eval(env, n[i].(S))
		if err != nil || ret {
			return v, ret, err
		}
		args = append(args, v)
	}

	switch callee.Tag {
	case VTFun:
		v, err := ec.apply(callee.Data.(*Fun), args)
		return v, false, err
	case VTType:
		tv := callee.Data.(*TypeValue)
		if tv.Desc == nil {
			return Value{}, false, rtErrf("type %s is not constructible", FormatExpr(tv.Ast))
		}
		v, err := ec.construct(env, tv.Desc, args)
		return v, false, err
	}
	return Value{}, false, rtErrf("%s is not callable", valueTypeName(callee))
}

// apply invokes a function value with already-evaluated arguments. Natives
// check their own arity; user functions check arity, parameter types, and
// the declared return type. Types resolve in the closure environment, not the
// caller's.
func (ec *evalCtx) apply(f *Fun, args []Value) (Value, error) {
	if f.Native != nil {
		v, err := f.Native(args)
		if err != nil {
			if _, ok := err.(*RuntimeError); ok {
				return Value{}, err
			}
			return Value{}, rtErrf("%s: %s", funLabel(f), err)
		}
		return v, nil
	}

	if len(args) != len(f.Params) {
		return Value{}, rtErrf("%s expects %d arguments, got %d", funLabel(f), len(f.Params), len(args))
	}
	fenv := NewEnv(f.Env)
	for i, name := range f.Params {
		var ty S
		if i < len(f.ParamTypes) {
			ty = f.ParamTypes[i]
		}
		tv, err := ec.resolveType(f.Env, ty)
		if err != nil {
			return Value{}, err
		}
		if !conforms(args[i], tv) {
			return Value{}, rtErrf("argument '%s' of %s: expected %s, got %s",
				name, funLabel(f), FormatExpr(ty), valueTypeName(args[i]))
		}
		fenv.Define(name, args[i])
	}

	v, _, err := ec.evalBlock(NewEnv(fenv), f.Body)
	if err != nil {
		return Value{}, err
	}

	rtv, err := ec.resolveType(f.Env, f.ReturnType)
	if err != nil {
		return Value{}, err
	}
	if !conforms(v, rtv) {
		return Value{}, rtErrf("%s returned %s, want %s", funLabel(f), valueTypeName(v), FormatExpr(f.ReturnType))
	}
	return v, nil
}

func funLabel(f *Fun) string {
	if f.Name != "" {
		return "'" + f.Name + "'"
	}
	return "this fun"
}

// construct builds an instance of desc from positional field values, checking
// each declared bound in the constructing environment.
func (ec *evalCtx) construct(env *Env, desc *ShapeDescriptor, args []Value) (Value, error) {
	if len(args) != len(desc.Signature) {
		return Value{}, rtErrf("%s expects %d fields, got %d", desc.TypeName, len(desc.Signature), len(args))
	}
	for i, f := range desc.Signature {
		if f.Bound == nil {
			continue
		}
		tv, err := ec.resolveType(env, f.Bound)
		if err != nil {
			return Value{}, err
		}
		if !conforms(args[i], tv) {
			return Value{}, rtErrf("field '%s' of %s: bound '%s' rejects %s",
				f.Name, desc.TypeName, FormatExpr(f.Bound), valueTypeName(args[i]))
		}
	}
	return InstVal(&Instance{Desc: desc, Fields: append([]Value(nil), args...)}), nil
}

/* ===========================
   control
   =========================== */

func (ec *evalCtx) evalIf(env *Env, n S) (Value, bool, error) {
	i := 1
	for ; i < len(n); i++ {
		arm, ok := n[i].(S)
		if !ok || tag(arm) != "pair" {
			break
		}
		cond, ret, err := ec.eval(env, child(arm, 0))
		if err != nil || ret {
			return cond, ret, err
		}
		if cond.Tag != VTBool {
			return Value{}, false, rtErrf("condition must be boolean, got %s", valueTypeName(cond))
		}
		if cond.Data.(bool) {
			return ec.evalBlock(NewEnv(env), child(arm, 1))
		}
	}
	if i < len(n) { // trailing else block
		return ec.evalBlock(NewEnv(env), n[i].(S))
	}
	return Null, false, nil
}

/* ===========================
   definitions
   =========================== */

// closure captures a "fun" node against env. Parameter names and types come
// from the params array; the body is shared, never copied.
func closure(env *Env, name string, fn S) *Fun {
	params := child(fn, 0)
	names := make([]string, 0, len(params)-1)
	types := make([]S, 0, len(params)-1)
	for i := 1; i < len(params); i++ {
		pair := params[i].(S)
		names = append(names, getId(child(pair, 0)))
		types = append(types, child(pair, 1))
	}
	return &Fun{
		Params:     names,
		ParamTypes: types,
		ReturnType: child(fn, 1),
		Body:       child(fn, 2),
		Env:        env,
		Name:       name,
	}
}

// evalShape synthesizes a shape declaration and applies its artifacts.
func (ec *evalCtx) evalShape(env *Env, n S) (Value, bool, error) {
	var unit *Unit
	var err error
	if path := findNodePath(ec.root, n); path != nil {
		unit, err = SynthesizeWithSource(ec.rt.Reg, n, path, ec.spans, ec.src)
	} else {
		unit, err = Synthesize(ec.rt.Reg, n)
	}
	if err != nil {
		return Value{}, false, err
	}

	// On a memo hit the struct artifact is absent; bind the concrete type
	// name here so the constructor's references resolve in this scope too.
	if !unit.Created {
		env.Define(unit.Desc.TypeName, StructType(unit.Desc))
	}

	last := Null
	for _, art := range unit.Artifacts() {
		v, _, err := ec.eval(env, art)
		if err != nil {
			return Value{}, false, err
		}
		last = v
	}
	ec.rt.Log.Debug("synthesized shape",
		"name", getId(child(n, 0)),
		"type", unit.Desc.TypeName,
		"created", unit.Created,
		"signature", unit.Desc.Signature.String(),
	)
	return last, false, nil
}

// evalStruct interns a struct declaration's signature and binds the declared
// name to the concrete type. Re-evaluating emitted code lands here.
func (ec *evalCtx) evalStruct(env *Env, n S) (Value, bool, error) {
	name := getId(child(n, 0))
	sig, err := structSignature(n)
	if err != nil {
		return Value{}, false, err
	}
	desc, _ := ec.rt.Reg.InternDeclared(name, sig)
	v := StructType(desc)
	env.Define(name, v)
	return v, false, nil
}

// structSignature reads a struct node's fields, resolving type-parameter
// references through the bracket list: a field typed by a bounded parameter
// inherits its bound, a plain parameter or Any means unbounded, and any other
// type expression is itself the bound.
func structSignature(n S) (FieldSignature, error) {
	tbounds := map[string]S{}
	tparams := child(n, 1)
	for i := 1; i < len(tparams); i++ {
		pair := tparams[i].(S)
		bound := child(pair, 1)
		if tag(bound) == "null" {
			tbounds[getId(child(pair, 0))] = nil
		} else {
			tbounds[getId(child(pair, 0))] = bound
		}
	}

	fields := child(n, 2)
	sig := make(FieldSignature, 0, len(fields)-1)
	seen := make(map[string]bool, len(fields)-1)
	for i := 1; i < len(fields); i++ {
		pair := fields[i].(S)
		fname := getId(child(pair, 0))
		if seen[fname] {
			return nil, rtErrf("struct declares field '%s' twice", fname)
		}
		seen[fname] = true

		ty := child(pair, 1)
		var bound S
		if tag(ty) == "id" {
			if b, isParam := tbounds[getId(ty)]; isParam {
				bound = b
			} else if getId(ty) != "Any" {
				bound = ty
			}
		} else {
			bound = ty
		}
		sig = append(sig, Field{Name: fname, Bound: bound})
	}
	return sig, nil
}

// evalShow repoints the display name of a struct type.
func (ec *evalCtx) evalShow(env *Env, n S) (Value, bool, error) {
	target := getId(child(n, 0))
	v, err := env.Get(target)
	if err != nil {
		return Value{}, false, rtErrf("%s", err)
	}
	tv, ok := v.Data.(*TypeValue)
	if v.Tag != VTType || !ok || tv.Desc == nil {
		return Value{}, false, rtErrf("show expects a struct type, got %s", valueTypeName(v))
	}
	dv, ret, err := ec.eval(env, child(n, 1))
	if err != nil || ret {
		return dv, ret, err
	}
	if dv.Tag != VTStr {
		return Value{}, false, rtErrf("show display name must be Str, got %s", valueTypeName(dv))
	}
	tv.Desc.SetDisplay(dv.Data.(string))
	return v, false, nil
}

/* ===========================
   node identity search
   =========================== */

// findNodePath locates target inside root by node identity (shared backing
// array) and returns its path. nil means not found; the empty path is root
// itself.
func findNodePath(root S, target S) NodePath {
	if root == nil {
		return nil
	}
	if sameNode(root, target) {
		return NodePath{}
	}
	for i := 1; i < len(root); i++ {
		c, ok := root[i].(S)
		if !ok {
			continue
		}
		if p := findNodePath(c, target); p != nil {
			return append(NodePath{i - 1}, p...)
		}
	}
	return nil
}

func sameNode(a, b S) bool {
	return len(a) > 0 && len(a) == len(b) && &a[0] == &b[0]
}
