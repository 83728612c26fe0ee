// value.go — runtime values for the Shapelang evaluator.
//
// Values are a small tagged union. The two tags that set this language apart
// are VTType and VTInstance: a synthesized struct type is itself a first-class
// value (calling it constructs), and an instance permanently remembers the
// descriptor of the type that built it. Re-declaring a shape under the same
// public name never migrates instances made by earlier declarations; they keep
// pointing at their original descriptor.
package shapelang

import (
	"fmt"
	"strconv"
)

// ValueTag enumerates all runtime kinds a Value may hold.
// The tag determines which Go type Value.Data holds.
type ValueTag int

const (
	VTNull     ValueTag = iota // null (no payload)
	VTBool                     // bool
	VTInt                      // int64
	VTNum                      // float64
	VTStr                      // string
	VTArray                    // []Value
	VTFun                      // *Fun (closure; native or user-defined)
	VTType                     // *TypeValue (builtin type or synthesized struct type)
	VTInstance                 // *Instance (a struct type applied to field values)
)

// Value is the universal runtime carrier used by the evaluator.
type Value struct {
	Tag  ValueTag
	Data interface{}
}

// String renders a terse debug representation; printer.go owns the
// user-facing rendering.
func (v Value) String() string {
	switch v.Tag {
	case VTNull:
		return "null"
	case VTBool:
		return fmt.Sprintf("%v", v.Data.(bool))
	case VTInt:
		return strconv.FormatInt(v.Data.(int64), 10)
	case VTNum:
		return strconv.FormatFloat(v.Data.(float64), 'g', -1, 64)
	case VTStr:
		return fmt.Sprintf("%q", v.Data.(string))
	case VTArray:
		return fmt.Sprintf("<array len=%d>", len(v.Data.([]Value)))
	case VTFun:
		return "<fun>"
	case VTType:
		return "<type>"
	case VTInstance:
		return "<instance>"
	default:
		return "<unknown>"
	}
}

// Null is the singleton null Value (no payload).
var Null = Value{Tag: VTNull}

// Primitive constructors for convenience.
func Bool(b bool) Value    { return Value{Tag: VTBool, Data: b} }
func Int(n int64) Value    { return Value{Tag: VTInt, Data: n} }
func Num(f float64) Value  { return Value{Tag: VTNum, Data: f} }
func Str(s string) Value   { return Value{Tag: VTStr, Data: s} }
func Arr(xs []Value) Value { return Value{Tag: VTArray, Data: xs} }

// TypeValue is the payload of a VTType value. For builtin types (Int, Num,
// Str, Bool, Null, Any) only Ast is set. For synthesized struct types Desc is
// non-nil and Ast is the bare identifier of the internal type name; calling
// such a type value constructs an instance.
type TypeValue struct {
	Ast  S
	Desc *ShapeDescriptor
}

// TypeVal builds a VTType from a type expression AST.
func TypeVal(expr S) Value { return Value{Tag: VTType, Data: &TypeValue{Ast: expr}} }

// StructType wraps a shape descriptor into its callable type value.
func StructType(desc *ShapeDescriptor) Value {
	return Value{Tag: VTType, Data: &TypeValue{Ast: L("id", desc.TypeName), Desc: desc}}
}

// Instance is one constructed record. Fields are positional; names and bounds
// come from the descriptor's signature. Instances are immutable after
// construction.
type Instance struct {
	Desc   *ShapeDescriptor
	Fields []Value
}

// Field returns the value stored under the named field.
func (in *Instance) Field(name string) (Value, bool) {
	for i, f := range in.Desc.Signature {
		if f.Name == name && i < len(in.Fields) {
			return in.Fields[i], true
		}
	}
	return Value{}, false
}

// InstVal wraps *Instance into a Value (Tag=VTInstance).
func InstVal(in *Instance) Value { return Value{Tag: VTInstance, Data: in} }

// Fun represents a function/closure. Functions are first-class Values (VTFun).
//
// Fields:
//   - Params      — parameter names in order.
//   - ParamTypes  — declared parameter types (S-expression per param).
//   - ReturnType  — declared return type (S).
//   - Body        — function body as an S-expression.
//   - Env         — closure environment captured at definition time.
//   - Native      — non-nil iff implemented by a registered host function.
//   - Name        — definition name when known ("" for anonymous closures).
type Fun struct {
	Params     []string
	ParamTypes []S
	ReturnType S
	Body       S
	Env        *Env
	Native     NativeImpl
	Name       string
}

// NativeImpl is the Go implementation of a registered native function.
// Arguments arrive in call order with no arity check applied, so natives can
// be variadic; each implementation validates its own argument count.
type NativeImpl func(args []Value) (Value, error)

// FunVal wraps *Fun into a Value (Tag=VTFun).
func FunVal(f *Fun) Value { return Value{Tag: VTFun, Data: f} }

// valueEquals is deep structural equality as used by '==' and '!='.
// Int and Num compare numerically across tags; everything else requires
// matching tags. Functions compare by identity.
func valueEquals(a, b Value) bool {
	if a.Tag != b.Tag {
		if an, aok := numericOf(a); aok {
			if bn, bok := numericOf(b); bok {
				return an == bn
			}
		}
		return false
	}
	switch a.Tag {
	case VTNull:
		return true
	case VTBool:
		return a.Data.(bool) == b.Data.(bool)
	case VTInt:
		return a.Data.(int64) == b.Data.(int64)
	case VTNum:
		return a.Data.(float64) == b.Data.(float64)
	case VTStr:
		return a.Data.(string) == b.Data.(string)
	case VTArray:
		ax := a.Data.([]Value)
		bx := b.Data.([]Value)
		if len(ax) != len(bx) {
			return false
		}
		for i := range ax {
			if !valueEquals(ax[i], bx[i]) {
				return false
			}
		}
		return true
	case VTFun:
		return a.Data.(*Fun) == b.Data.(*Fun)
	case VTType:
		at := a.Data.(*TypeValue)
		bt := b.Data.(*TypeValue)
		if at.Desc != nil || bt.Desc != nil {
			return at.Desc == bt.Desc
		}
		return equalS(at.Ast, bt.Ast)
	case VTInstance:
		ai := a.Data.(*Instance)
		bi := b.Data.(*Instance)
		if ai.Desc != bi.Desc || len(ai.Fields) != len(bi.Fields) {
			return false
		}
		for i := range ai.Fields {
			if !valueEquals(ai.Fields[i], bi.Fields[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// numericOf widens VTInt/VTNum to float64 for cross-tag comparison.
func numericOf(v Value) (float64, bool) {
	switch v.Tag {
	case VTInt:
		return float64(v.Data.(int64)), true
	case VTNum:
		return v.Data.(float64), true
	}
	return 0, false
}
