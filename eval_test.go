package shapelang

import (
	"bytes"
	"testing"
)

// --- helpers ---------------------------------------------------------------

// Every evaluation runs against a fresh runtime with its own registry so type
// universes never leak between tests.
func evalSrc(t *testing.T, src string) Value {
	t.Helper()
	rt := NewRuntime(WithRegistry(NewRegistry()))
	v, err := rt.EvalSource(src)
	if err != nil {
		t.Fatalf("EvalSource error: %v\nsource:\n%s", err, src)
	}
	return v
}

func evalErr(t *testing.T, src string) error {
	t.Helper()
	rt := NewRuntime(WithRegistry(NewRegistry()))
	_, err := rt.EvalSource(src)
	if err == nil {
		t.Fatalf("expected an error\nsource:\n%s", src)
	}
	return err
}

func wantInt(t *testing.T, v Value, n int64) {
	t.Helper()
	if v.Tag != VTInt || v.Data.(int64) != n {
		t.Fatalf("want int %d, got %#v", n, v)
	}
}

func wantNum(t *testing.T, v Value, f float64) {
	t.Helper()
	if v.Tag != VTNum || v.Data.(float64) != f {
		t.Fatalf("want num %g, got %#v", f, v)
	}
}

func wantStr(t *testing.T, v Value, s string) {
	t.Helper()
	if v.Tag != VTStr || v.Data.(string) != s {
		t.Fatalf("want str %q, got %#v", s, v)
	}
}

func wantBool(t *testing.T, v Value, b bool) {
	t.Helper()
	if v.Tag != VTBool || v.Data.(bool) != b {
		t.Fatalf("want bool %v, got %#v", b, v)
	}
}

func wantNull(t *testing.T, v Value) {
	t.Helper()
	if v.Tag != VTNull {
		t.Fatalf("want null, got %#v", v)
	}
}

// --- tests -----------------------------------------------------------------

func Test_Eval_Literals(t *testing.T) {
	wantInt(t, evalSrc(t, "42"), 42)
	wantNum(t, evalSrc(t, "3.5"), 3.5)
	wantNum(t, evalSrc(t, ".5"), 0.5)
	wantStr(t, evalSrc(t, `"hi"`), "hi")
	wantBool(t, evalSrc(t, "true"), true)
	wantBool(t, evalSrc(t, "false"), false)
	wantNull(t, evalSrc(t, "null"))
	wantNull(t, evalSrc(t, "")) // empty program
}

func Test_Eval_Arithmetic_Precedence_And_Numbers(t *testing.T) {
	wantInt(t, evalSrc(t, "1 + 2 * 3"), 7)
	wantInt(t, evalSrc(t, "(1 + 2) * 3"), 9)
	wantInt(t, evalSrc(t, "7 / 2"), 3) // integer division truncates
	wantInt(t, evalSrc(t, "-7 / 2"), -3)
	wantInt(t, evalSrc(t, "7 % 4"), 3)
	wantNum(t, evalSrc(t, "1 + 2.0"), 3.0) // mixed arithmetic widens
	wantNum(t, evalSrc(t, "5 / 2.0"), 2.5)
	wantNum(t, evalSrc(t, "2 * 3.5"), 7.0)
	wantNum(t, evalSrc(t, "-(2.5)"), -2.5)
	wantInt(t, evalSrc(t, "-(2 + 3)"), -5)
}

func Test_Eval_Numeric_Errors(t *testing.T) {
	mustContain(t, evalErr(t, "1 / 0").Error(), "division by zero")
	mustContain(t, evalErr(t, "1 % 0").Error(), "division by zero")
	mustContain(t, evalErr(t, "1.0 / 0").Error(), "division by zero")
	mustContain(t, evalErr(t, "5.0 % 2").Error(), "'%' expects integers")
	mustContain(t, evalErr(t, `"a" - 1`).Error(), "'-' expects numbers, got Str and Int")
	mustContain(t, evalErr(t, "-true").Error(), "unary - expects a number, got Bool")
}

func Test_Eval_Strings_And_Arrays(t *testing.T) {
	wantStr(t, evalSrc(t, `"a" + "b"`), "ab")

	v := evalSrc(t, "[1] + [2, 3]")
	if v.Tag != VTArray || len(v.Data.([]Value)) != 3 {
		t.Fatalf("want array len 3, got %#v", v)
	}
	wantInt(t, v.Data.([]Value)[0], 1)
	wantInt(t, v.Data.([]Value)[2], 3)

	wantInt(t, evalSrc(t, "[1, [2, 3]][1][0]"), 2)
	mustContain(t, evalErr(t, `"a" + 1`).Error(), "'+' expects numbers, got Str and Int")
}

func Test_Eval_Comparisons_And_Equality(t *testing.T) {
	wantBool(t, evalSrc(t, "3 < 4"), true)
	wantBool(t, evalSrc(t, "3.0 >= 3"), true)
	wantBool(t, evalSrc(t, "2 >= 3"), false)
	wantBool(t, evalSrc(t, `"a" < "b"`), true)
	wantBool(t, evalSrc(t, `"b" <= "a"`), false)

	wantBool(t, evalSrc(t, "1 == 1.0"), true) // numeric equality crosses Int/Num
	wantBool(t, evalSrc(t, "1 != 2"), true)
	wantBool(t, evalSrc(t, `"a" == "a"`), true)
	wantBool(t, evalSrc(t, "null == null"), true)
	wantBool(t, evalSrc(t, `1 == "1"`), false)

	mustContain(t, evalErr(t, `1 < "a"`).Error(), "'<' expects two numbers or two strings")
}

func Test_Eval_Logic_Short_Circuit(t *testing.T) {
	wantBool(t, evalSrc(t, "true and false"), false)
	wantBool(t, evalSrc(t, "false or true"), true)

	// The right operand must not run when the left decides the answer.
	wantBool(t, evalSrc(t, "false and (1 / 0 == 0)"), false)
	wantBool(t, evalSrc(t, "true or (1 / 0 == 0)"), true)

	wantBool(t, evalSrc(t, "not true"), false)
	wantBool(t, evalSrc(t, "not (1 == 2)"), true)

	mustContain(t, evalErr(t, "1 and true").Error(), "'and' expects booleans, got Int")
	mustContain(t, evalErr(t, "true and 1").Error(), "'and' expects booleans, got Int")
	mustContain(t, evalErr(t, "not 1").Error(), "not expects a boolean, got Int")
}

func Test_Eval_If_Elif_Else(t *testing.T) {
	src := `
if false then
  1
elif true then
  2
else
  3
end
`
	wantInt(t, evalSrc(t, src), 2)
	wantNull(t, evalSrc(t, "if false then\n  1\nend"))
	mustContain(t, evalErr(t, "if 1 then\n  2\nend").Error(), "condition must be boolean, got Int")

	// Each arm runs in its own scope.
	src = `
let x = 1
if true then
  let x = 5
end
x
`
	wantInt(t, evalSrc(t, src), 1)
}

func Test_Eval_Blocks_And_Scoping(t *testing.T) {
	wantInt(t, evalSrc(t, "do\n  let x = 1\n  x + 1\nend"), 2)

	// let inside a block shadows; assignment reaches through.
	src := `
let x = 1
do
  let x = 2
end
x
`
	wantInt(t, evalSrc(t, src), 1)

	src = `
let x = 1
do
  x = 2
end
x
`
	wantInt(t, evalSrc(t, src), 2)

	// A bare let binds null.
	wantNull(t, evalSrc(t, "let x\nx"))
}

func Test_Eval_Assignment(t *testing.T) {
	wantInt(t, evalSrc(t, "let x = 3\nx = x + 1\nx"), 4)
	wantInt(t, evalSrc(t, "let a = 0\nlet b = 0\na = b = 5\na + b"), 10)

	mustContain(t, evalErr(t, "nope").Error(), "undefined variable: nope")
	mustContain(t, evalErr(t, "nope = 1").Error(), "undefined variable: nope")
	mustContain(t, evalErr(t, "print = 1").Error(), "cannot assign to builtin: print")

	// let shadows a builtin without touching the sealed frame.
	wantInt(t, evalSrc(t, "let print = 2\nprint"), 2)
}

func Test_Eval_Index_Read_Write(t *testing.T) {
	wantInt(t, evalSrc(t, "[10, 20, 30][1]"), 20)
	wantInt(t, evalSrc(t, "let xs = [10, 20, 30]\nxs[1] = 9\nxs[1]"), 9)

	mustContain(t, evalErr(t, "[1][5]").Error(), "array index out of range")
	mustContain(t, evalErr(t, "[1][-1]").Error(), "array index out of range")
	mustContain(t, evalErr(t, "let xs = [1]\nxs[5] = 0").Error(), "array index out of range")
	mustContain(t, evalErr(t, `"s"[0]`).Error(), "index requires array[int]")
	mustContain(t, evalErr(t, `[1]["a"]`).Error(), "index requires array[int]")
	mustContain(t, evalErr(t, "let s = \"x\"\ns[0] = 1").Error(), "index assignment requires array[int]")
}

func Test_Eval_Functions_And_Closures(t *testing.T) {
	src := `
fun inc(x: Int) -> Int do
  return(x + 1)
end
inc(4)
`
	wantInt(t, evalSrc(t, src), 5)

	src = `
fun make(a: Int) do
  return( fun(b: Int) -> Int do
    return(a + b)
  end )
end
let add2 = make(2)
add2(5)
`
	wantInt(t, evalSrc(t, src), 7)

	// The body's last value is the result when no return fires.
	wantInt(t, evalSrc(t, "let f = fun(x: Int) do\n  x * 2\nend\nf(3)"), 6)

	// return stops the body early.
	wantInt(t, evalSrc(t, "fun f() do\n  return(1)\n  2\nend\nf()"), 1)
}

func Test_Eval_Function_Type_Checks(t *testing.T) {
	src := `
fun inc(x: Int) -> Int do
  return(x + 1)
end
`
	mustContain(t, evalErr(t, src+"inc(1, 2)").Error(), "'inc' expects 1 arguments, got 2")
	mustContain(t, evalErr(t, src+`inc("a")`).Error(), "argument 'x' of 'inc': expected Int, got Str")

	mustContain(t, evalErr(t, "(fun(x: Int) do\n  return(x)\nend)(\"a\")").Error(),
		"argument 'x' of this fun: expected Int, got Str")

	src = `
fun bad() -> Int do
  return("s")
end
bad()
`
	mustContain(t, evalErr(t, src).Error(), "'bad' returned Str, want Int")

	// An untyped parameter accepts anything.
	wantStr(t, evalSrc(t, "fun same(x) do\n  x\nend\nsame(\"a\")"), "a")

	// Parameter and return types resolve in the closure environment.
	src = `
let T = Int
fun f(x: T) -> T do
  return(x)
end
`
	wantInt(t, evalSrc(t, src+"f(3)"), 3)
	mustContain(t, evalErr(t, src+`f("a")`).Error(), "argument 'x' of 'f': expected T, got Str")
}

func Test_Eval_Bound_Expressions(t *testing.T) {
	wantInt(t, evalSrc(t, "3 :: Int"), 3)
	wantInt(t, evalSrc(t, "3 :: Num"), 3) // Int conforms to Num
	wantInt(t, evalSrc(t, "3 :: Any"), 3)
	wantNum(t, evalSrc(t, "3.5 :: Num"), 3.5)
	wantNull(t, evalSrc(t, "null :: Null"))
	wantBool(t, evalSrc(t, "true :: Bool"), true)

	mustContain(t, evalErr(t, "3.5 :: Int").Error(), "bound 'Int' rejects Num")
	mustContain(t, evalErr(t, `"s" :: Num`).Error(), "bound 'Num' rejects Str")
	mustContain(t, evalErr(t, "1 :: Array").Error(), "bound 'Array' rejects Int")
	mustContain(t, evalErr(t, "1 :: Missing").Error(), "undefined variable: Missing")
	mustContain(t, evalErr(t, "1 :: print").Error(), "'print' does not name a type")
}

func Test_Eval_Struct_Construction(t *testing.T) {
	src := `
struct P(a, b)
let p = P(1, 2)
p.a + p.b
`
	wantInt(t, evalSrc(t, src), 3)

	mustContain(t, evalErr(t, "struct P(a, b)\nP(1)").Error(), "P expects 2 fields, got 1")
	mustContain(t, evalErr(t, "struct P(a, b)\nP(1, 2).c").Error(), "P has no field 'c'")
	mustContain(t, evalErr(t, "struct R(a, a)").Error(), "struct declares field 'a' twice")

	// Field types are construction bounds.
	src = `
struct Q(a: Int, b)
Q(1, "anything").b
`
	wantStr(t, evalSrc(t, src), "anything")
	mustContain(t, evalErr(t, "struct Q(a: Int, b)\nQ(\"x\", 2)").Error(),
		"field 'a' of Q: bound 'Int' rejects Str")

	// Bounded type parameters carry their bound to the fields they type.
	src = `
struct V[T :: Num](x: T, y: T)
V(1, 2.5).y
`
	wantNum(t, evalSrc(t, src), 2.5)
	mustContain(t, evalErr(t, "struct V[T :: Num](x: T, y: T)\nV(\"a\", 1)").Error(),
		"field 'x' of V: bound 'Num' rejects Str")
}

func Test_Eval_Show_Display(t *testing.T) {
	src := `
struct P(a, b)
show P as "Point"
str(P(1, 2))
`
	wantStr(t, evalSrc(t, src), "Point(a = 1, b = 2)")

	mustContain(t, evalErr(t, `show Missing as "X"`).Error(), "undefined variable: Missing")
	mustContain(t, evalErr(t, "let f = 1\nshow f as \"X\"").Error(), "show expects a struct type, got Int")
	mustContain(t, evalErr(t, `show Int as "I"`).Error(), "show expects a struct type, got Type")
	mustContain(t, evalErr(t, "struct P(a, b)\nshow P as 42").Error(), "show display name must be Str, got Int")
}

func Test_Eval_Property_And_Call_Errors(t *testing.T) {
	mustContain(t, evalErr(t, `"s".x`).Error(), "property access requires an instance, got Str")
	mustContain(t, evalErr(t, "Int(1)").Error(), "type Int is not constructible")
	mustContain(t, evalErr(t, "3(1)").Error(), "Int is not callable")
}

func Test_Eval_Builtin_Print(t *testing.T) {
	var buf bytes.Buffer
	rt := NewRuntime(WithRegistry(NewRegistry()), WithOutput(&buf))

	v, err := rt.EvalSource(`print(1, "a", true)`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	wantNull(t, v)
	if got := buf.String(); got != "1 \"a\" true\n" {
		t.Fatalf("print output %q", got)
	}

	buf.Reset()
	if _, err := rt.EvalSource("print([1, 2], 0.5)"); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got := buf.String(); got != "[1, 2] 0.5\n" {
		t.Fatalf("print output %q", got)
	}
}

func Test_Eval_Builtin_TypeOf(t *testing.T) {
	wantBool(t, evalSrc(t, "typeOf(3) == Int"), true)
	wantBool(t, evalSrc(t, "typeOf(3.5) == Num"), true)
	wantBool(t, evalSrc(t, `typeOf("s") == Str`), true)
	wantBool(t, evalSrc(t, "typeOf(null) == Null"), true)
	wantBool(t, evalSrc(t, "typeOf([1]) == Array"), true)
	wantBool(t, evalSrc(t, "typeOf(print) == Fun"), true)
	wantBool(t, evalSrc(t, "typeOf(Int) == Type"), true)
	wantBool(t, evalSrc(t, "struct P(a, b)\ntypeOf(P(1, 2)) == P"), true)

	mustContain(t, evalErr(t, "typeOf()").Error(), "'typeOf': expects 1 argument, got 0")
}

func Test_Eval_Builtin_Len_And_Str(t *testing.T) {
	wantInt(t, evalSrc(t, `len("héllo")`), 5) // runes, not bytes
	wantInt(t, evalSrc(t, `len("")`), 0)
	wantInt(t, evalSrc(t, "len([1, 2])"), 2)
	wantInt(t, evalSrc(t, "struct P(a, b)\nlen(P(1, 2))"), 2)
	mustContain(t, evalErr(t, "len(3)").Error(), "'len': expects a string, array, or instance")

	wantStr(t, evalSrc(t, "str(42)"), "42")
	wantStr(t, evalSrc(t, "str(4 / 2.0)"), "2.0")
	wantStr(t, evalSrc(t, "str(true)"), "true")
	wantStr(t, evalSrc(t, "str(null)"), "null")
	wantStr(t, evalSrc(t, `str("hi")`), `"hi"`)
}

func Test_Eval_Builtin_Fields_And_Shapes(t *testing.T) {
	check := func(v Value) {
		t.Helper()
		if v.Tag != VTArray || len(v.Data.([]Value)) != 2 {
			t.Fatalf("want 2-element array, got %#v", v)
		}
		wantStr(t, v.Data.([]Value)[0], "a")
		wantStr(t, v.Data.([]Value)[1], "b")
	}
	check(evalSrc(t, "struct P(a, b)\nfields(P(1, 2))"))
	check(evalSrc(t, "struct P(a, b)\nfields(P)"))
	mustContain(t, evalErr(t, "fields(3)").Error(), "'fields': expects an instance or struct type")

	v := evalSrc(t, "struct B(x)\nstruct A(y)\nshapes()")
	if v.Tag != VTArray || len(v.Data.([]Value)) != 2 {
		t.Fatalf("want 2-element array, got %#v", v)
	}
	wantStr(t, v.Data.([]Value)[0], "A") // sorted by type name
	wantStr(t, v.Data.([]Value)[1], "B")
	mustContain(t, evalErr(t, "shapes(1)").Error(), "'shapes': expects no arguments")
}

func Test_Eval_TopLevel_Return(t *testing.T) {
	wantInt(t, evalSrc(t, "let x = 1\nreturn(x + 1)\n99"), 2)
	wantNull(t, evalSrc(t, "return(null)\n1"))
}
