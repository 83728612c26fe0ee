// parser_test.go
package shapelang

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// --- helpers ---------------------------------------------------------------

func mustParse(t *testing.T, src string) S {
	t.Helper()
	sexpr, err := ParseSExpr(src)
	if err != nil {
		t.Fatalf("Parse error: %v\nsource:\n%s", err, src)
	}
	return sexpr
}

func mustParseInteractive(t *testing.T, src string) S {
	t.Helper()
	sexpr, err := ParseSExprInteractive(src)
	if err != nil {
		t.Fatalf("Parse (interactive) error: %v\nsource:\n%s", err, src)
	}
	return sexpr
}

func mustIncomplete(t *testing.T, src string) {
	t.Helper()
	_, err := ParseSExprInteractive(src)
	if err == nil || !IsIncomplete(err) {
		t.Fatalf("expected incomplete-input error, got %v\nsource:\n%s", err, src)
	}
}

func wantTag(t *testing.T, n S, tag string) {
	t.Helper()
	if len(n) == 0 {
		t.Fatalf("empty node, want tag %q", tag)
	}
	if got := n[0].(string); got != tag {
		t.Fatalf("want tag %q, got %q\nnode:\n%s", tag, got, dump(n))
	}
}

// kids usually start at index 1, e.g. ["block", child1, child2, ...],
// but NOT for nodes with an operator payload:
//
//	["binop", OP, LHS, RHS] and ["unop", OP, EXPR]
//
// For those, index into the slice directly.
func kid(n S, i int) S { return n[i+1].(S) }

func head(n S) string { return n[0].(string) }

// pretty for failures
func dump(n S) string {
	b, _ := json.MarshalIndent(n, "", "  ")
	return string(b)
}

func wantAST(t *testing.T, src string, want S) {
	t.Helper()
	root := mustParse(t, src)
	wantTag(t, root, "block")
	if len(root) != 2 {
		t.Fatalf("want a single statement, got %d\n%s", len(root)-1, dump(root))
	}
	got := kid(root, 0)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("AST mismatch for %q\nwant:\n%s\ngot:\n%s", src, dump(want), dump(got))
	}
}

func mustFailParseContains(t *testing.T, src string, substr string) {
	t.Helper()
	_, err := ParseSExpr(src)
	if err == nil {
		t.Fatalf("expected parse error containing %q, got nil\nsource:\n%s", substr, src)
	}
	if substr != "" && !strings.Contains(err.Error(), substr) {
		t.Fatalf("expected error containing %q, got %v\nsource:\n%s", substr, err, src)
	}
}

// --- tests -----------------------------------------------------------------

func Test_Parser_Literals_And_Id(t *testing.T) {
	src := `42 0.5 "hi" true false null x`
	root := mustParse(t, src)
	wantTag(t, root, "block")
	children := root[1:]
	tags := []string{"int", "num", "str", "bool", "bool", "null", "id"}
	if len(children) != len(tags) {
		t.Fatalf("want %d children, got %d\n%s", len(tags), len(children), dump(root))
	}
	for i, tag := range tags {
		wantTag(t, children[i].(S), tag)
	}
	if children[0].(S)[1].(int64) != 42 {
		t.Fatalf("int literal mismatch: %v", children[0])
	}
	if children[1].(S)[1].(float64) != 0.5 {
		t.Fatalf("num literal mismatch: %v", children[1])
	}
	if children[2].(S)[1].(string) != "hi" {
		t.Fatalf("str literal mismatch: %v", children[2])
	}
}

func Test_Parser_Precedence(t *testing.T) {
	wantAST(t, `1 + 2 * 3`,
		L("binop", "+", L("int", int64(1)), L("binop", "*", L("int", int64(2)), L("int", int64(3)))))
	wantAST(t, `(1 + 2) * 3`,
		L("binop", "*", L("binop", "+", L("int", int64(1)), L("int", int64(2))), L("int", int64(3))))
	wantAST(t, `1 < 2 == true`,
		L("binop", "==", L("binop", "<", L("int", int64(1)), L("int", int64(2))), L("bool", true)))
	wantAST(t, `not a and b`,
		L("binop", "and", L("unop", "not", L("id", "a")), L("id", "b")))
	wantAST(t, `-2 + 3`,
		L("binop", "+", L("unop", "-", L("int", int64(2))), L("int", int64(3))))
}

func Test_Parser_Bound_Binds_Tighter_Than_Arithmetic(t *testing.T) {
	wantAST(t, `x :: Num + 1`,
		L("binop", "+", L("bound", L("id", "x"), L("id", "Num")), L("int", int64(1))))
	wantAST(t, `a + b :: Num`,
		L("binop", "+", L("id", "a"), L("bound", L("id", "b"), L("id", "Num"))))
}

func Test_Parser_Assignment(t *testing.T) {
	wantAST(t, `let x = 1`,
		L("assign", L("decl", "x"), L("int", int64(1))))
	// right-associative chain
	wantAST(t, `a = b = 3`,
		L("assign", L("id", "a"), L("assign", L("id", "b"), L("int", int64(3)))))
	wantAST(t, `xs[0] = 9`,
		L("assign", L("idx", L("id", "xs"), L("int", int64(0))), L("int", int64(9))))

	mustFailParseContains(t, `1 = 2`, "invalid assignment target")
	// instance fields are immutable; get is not assignable
	mustFailParseContains(t, `p.x = 1`, "invalid assignment target")
}

func Test_Parser_Calls_Gets_Indexes(t *testing.T) {
	wantAST(t, `f(x)`, L("call", L("id", "f"), L("id", "x")))
	wantAST(t, `f()`, L("call", L("id", "f")))
	wantAST(t, `f(x)(y)`,
		L("call", L("call", L("id", "f"), L("id", "x")), L("id", "y")))
	wantAST(t, `p.x.0`,
		L("idx", L("get", L("id", "p"), L("str", "x")), L("int", int64(0))))
	wantAST(t, `p."two words"`,
		L("get", L("id", "p"), L("str", "two words")))
	wantAST(t, `xs[i + 1]`,
		L("idx", L("id", "xs"), L("binop", "+", L("id", "i"), L("int", int64(1)))))

	// whitespace before '(' means grouping, not a call
	root := mustParse(t, `f (x)`)
	if len(root) != 3 {
		t.Fatalf("expected two statements (id, grouped id), got:\n%s", dump(root))
	}
	wantTag(t, kid(root, 0), "id")
	wantTag(t, kid(root, 1), "id")
}

func Test_Parser_Array_Literals(t *testing.T) {
	wantAST(t, `[1, 2,]`,
		L("array", L("int", int64(1)), L("int", int64(2))))
	wantAST(t, `let xs = []`,
		L("assign", L("decl", "xs"), L("array")))
}

func Test_Parser_If_Elif_Else(t *testing.T) {
	wantAST(t, `if a then 1 elif b then 2 else 3 end`,
		L("if",
			L("pair", L("id", "a"), L("block", L("int", int64(1)))),
			L("pair", L("id", "b"), L("block", L("int", int64(2)))),
			L("block", L("int", int64(3)))))
	// no else tail
	wantAST(t, `if a then 1 end`,
		L("if", L("pair", L("id", "a"), L("block", L("int", int64(1))))))
}

func Test_Parser_Return_Newline_Rules(t *testing.T) {
	// value on the same line
	wantAST(t, "fun() do return 5 end",
		L("fun", L("array"), L("id", "Any"),
			L("block", L("return", L("int", int64(5))))))
	// newline after return means no value
	wantAST(t, "fun() do\n  return\n  5\nend",
		L("fun", L("array"), L("id", "Any"),
			L("block", L("return", L("null")), L("int", int64(5)))))
	// return directly before end also means no value
	wantAST(t, "fun() do return end",
		L("fun", L("array"), L("id", "Any"),
			L("block", L("return", L("null")))))
	// return(expr) carries the grouped value
	wantAST(t, "fun() do return(5) end",
		L("fun", L("array"), L("id", "Any"),
			L("block", L("return", L("int", int64(5))))))
}

func Test_Parser_Fun_Forms(t *testing.T) {
	// anonymous with typed params and return type
	wantAST(t, `fun(a: Int, b) -> Num do a end`,
		L("fun",
			L("array",
				L("pair", L("id", "a"), L("id", "Int")),
				L("pair", L("id", "b"), L("id", "Any"))),
			L("id", "Num"),
			L("block", L("id", "a"))))
	// named form becomes a defining statement
	wantAST(t, `fun inc(x: Int) -> Int do x + 1 end`,
		L("fundef", L("id", "inc"),
			L("fun",
				L("array", L("pair", L("id", "x"), L("id", "Int"))),
				L("id", "Int"),
				L("block", L("binop", "+", L("id", "x"), L("int", int64(1)))))))
}

func Test_Parser_Shape_Canonical(t *testing.T) {
	src := `shape Point(a: Int, b: Int) do
  let x = a + b
  let y = a - b
  return(Point(x, y :: Num))
end`
	wantAST(t, src,
		L("shape", L("id", "Point"),
			L("array",
				L("pair", L("id", "a"), L("id", "Int")),
				L("pair", L("id", "b"), L("id", "Int"))),
			L("block",
				L("assign", L("decl", "x"), L("binop", "+", L("id", "a"), L("id", "b"))),
				L("assign", L("decl", "y"), L("binop", "-", L("id", "a"), L("id", "b"))),
				L("return",
					L("call", L("id", "Point"),
						L("id", "x"),
						L("bound", L("id", "y"), L("id", "Num")))))))
}

func Test_Parser_Struct_Forms(t *testing.T) {
	wantAST(t, `struct Point$1[T1, T2 :: Num](x: T1, y: T2)`,
		L("struct", L("id", "Point$1"),
			L("array",
				L("pair", L("id", "T1"), L("null")),
				L("pair", L("id", "T2"), L("id", "Num"))),
			L("array",
				L("pair", L("id", "x"), L("id", "T1")),
				L("pair", L("id", "y"), L("id", "T2")))))
	// no type parameters
	wantAST(t, `struct Pair(a, b)`,
		L("struct", L("id", "Pair"),
			L("array"),
			L("array",
				L("pair", L("id", "a"), L("id", "Any")),
				L("pair", L("id", "b"), L("id", "Any")))))
}

func Test_Parser_Show(t *testing.T) {
	wantAST(t, `show Point$1 as "Point"`,
		L("show", L("id", "Point$1"), L("str", "Point")))
}

func Test_Parser_Do_Block_Expression(t *testing.T) {
	wantAST(t, `do 1 2 end`,
		L("block", L("int", int64(1)), L("int", int64(2))))
}

func Test_Parser_Interactive_Incomplete(t *testing.T) {
	mustIncomplete(t, `shape P(a) do`)
	mustIncomplete(t, `fun(`)
	mustIncomplete(t, `let x =`)
	mustIncomplete(t, `[1, 2`)
	mustIncomplete(t, `(1 + 2`)
	mustIncomplete(t, `if x then`)
	mustIncomplete(t, `struct P[`)

	// complete sources parse identically in interactive mode
	root := mustParseInteractive(t, `shape P(a) do return(P(a)) end`)
	wantTag(t, kid(root, 0), "shape")
}

func Test_Parser_Hard_Errors(t *testing.T) {
	mustFailParseContains(t, `)`, "unexpected token")
	mustFailParseContains(t, `let 1 = 2`, "expected name after 'let'")
	mustFailParseContains(t, `shape do end`, "expected shape name after 'shape'")
	mustFailParseContains(t, `show 1 as "x"`, "expected type name after 'show'")
	mustFailParseContains(t, `p.`, "expected property name or integer after '.'")

	// incomplete flag stays off outside interactive mode
	_, err := ParseSExpr(`fun(`)
	if err == nil || IsIncomplete(err) {
		t.Fatalf("non-interactive parse should fail hard, got %v", err)
	}
}
