// bounds.go — structural S-expression equality and bound conformance.
//
// Field bounds are ordinary type expressions carried around as ASTs
// (signature.go stores them uninterpreted). Nothing here evaluates a bound;
// the evaluator resolves the AST to a *TypeValue first and then asks
// `conforms` whether a constructed field value is admissible. Int is a
// subtype of Num; there is no other subtyping.
package shapelang

// Structural equality for S-exprs (no fmt, no allocs).
func equalS(a, b S) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}

	ta, ok := a[0].(string)
	if !ok {
		return false
	}
	tb, ok := b[0].(string)
	if !ok || ta != tb {
		return false
	}

	for i := 1; i < len(a); i++ {
		if !equalNode(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Compares two S nodes or scalars used inside S.
func equalNode(x, y any) bool {
	switch xv := x.(type) {
	case []any: // covers S too
		yv, ok := y.([]any)
		if !ok {
			return false
		}
		return equalS(xv, yv)
	case string:
		ys, ok := y.(string)
		return ok && xv == ys
	case int64:
		yi, ok := y.(int64)
		return ok && xv == yi
	case float64:
		yf, ok := y.(float64)
		return ok && xv == yf
	case bool:
		yb, ok := y.(bool)
		return ok && xv == yb
	default:
		return x == y
	}
}

// conforms reports whether v is admissible under the resolved type t.
func conforms(v Value, t *TypeValue) bool {
	if t == nil {
		return true
	}
	if t.Desc != nil {
		return v.Tag == VTInstance && v.Data.(*Instance).Desc == t.Desc
	}
	if len(t.Ast) < 2 || t.Ast[0] != "id" {
		return false
	}
	name, _ := t.Ast[1].(string)
	switch name {
	case "Any":
		return true
	case "Null":
		return v.Tag == VTNull
	case "Bool":
		return v.Tag == VTBool
	case "Int":
		return v.Tag == VTInt
	case "Num":
		return v.Tag == VTInt || v.Tag == VTNum // Int <: Num
	case "Str":
		return v.Tag == VTStr
	}
	return false
}

// typeOfValue maps a runtime value to its type value. Instances resolve to
// the struct type of the descriptor that built them.
func typeOfValue(v Value) Value {
	switch v.Tag {
	case VTNull:
		return TypeVal(L("id", "Null"))
	case VTBool:
		return TypeVal(L("id", "Bool"))
	case VTInt:
		return TypeVal(L("id", "Int"))
	case VTNum:
		return TypeVal(L("id", "Num"))
	case VTStr:
		return TypeVal(L("id", "Str"))
	case VTArray:
		return TypeVal(L("id", "Array"))
	case VTFun:
		return TypeVal(L("id", "Fun"))
	case VTType:
		return TypeVal(L("id", "Type"))
	case VTInstance:
		return StructType(v.Data.(*Instance).Desc)
	}
	return TypeVal(L("id", "Any"))
}
