// runtime.go
//
// The Runtime is the embedding surface: it owns the environment chain (a
// sealed builtin frame under a mutable global frame), the shape registry, a
// logger, and the sink `print` writes to. cmd/shape drives everything through
// it, and tests construct hermetic runtimes with their own registries.
//
// Evaluation entry points parse with the span sidecar and stamp statement
// positions onto errors that bubbled up without one, so the CLI's caret
// renderer always has a line to point at.
package shapelang

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// Runtime hosts evaluation state. Fields are set once by NewRuntime; the
// environments mutate as code runs.
type Runtime struct {
	Core   *Env // builtin frame: type names and native functions, sealed
	Global *Env // user bindings; survives across EvalSource calls
	Reg    *Registry
	Log    Logger
	Out    io.Writer
}

// Option configures a Runtime under construction.
type Option func(*Runtime)

// WithRegistry backs the runtime with reg instead of the process-wide
// registry. Tests use this to keep type universes isolated.
func WithRegistry(reg *Registry) Option { return func(rt *Runtime) { rt.Reg = reg } }

// WithLogger routes runtime logging to l.
func WithLogger(l Logger) Option { return func(rt *Runtime) { rt.Log = l } }

// WithOutput redirects `print` and friends to w.
func WithOutput(w io.Writer) Option { return func(rt *Runtime) { rt.Out = w } }

// NewRuntime returns a runtime with the builtin types and native functions
// installed. By default it shares the process-wide registry, logs nothing,
// and prints to stdout.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		Reg: DefaultRegistry(),
		Log: NopLogger(),
		Out: os.Stdout,
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.Core = NewEnv(nil)
	rt.Global = NewEnv(rt.Core)
	rt.Global.SealParentWrites()
	registerTypes(rt)
	registerCoreBuiltins(rt)
	return rt
}

// EvalSource parses and evaluates src against the global environment and
// returns the value of the last statement (Null for empty input). A top-level
// return stops evaluation early with its value.
//
// Errors come back as their structured types (*LexError, *ParseError,
// *ShapeError, *RuntimeError); WrapErrorWithSource turns them into caret
// snippets for display.
func (rt *Runtime) EvalSource(src string) (Value, error) {
	ast, spans, err := ParseSExprWithSpans(src)
	if err != nil {
		return Value{}, err
	}
	if DebuggingMode {
		if verr := VerifySpanIndexPostOrder(ast, spans, src, 0, nil); verr != nil {
			rt.Log.Warn("span index incomplete", "err", verr)
		}
	}
	ec := &evalCtx{rt: rt, root: ast, spans: spans, src: src}

	last := Null
	for i := 1; i < len(ast); i++ {
		v, ret, err := ec.eval(rt.Global, ast[i].(S))
		if err != nil {
			return Value{}, stampStmtPos(err, spans, src, i-1)
		}
		last = v
		if ret {
			break
		}
	}
	return last, nil
}

// Eval evaluates an already-built AST (a single statement or a block).
// Positions are unavailable on this path; errors carry messages only.
func (rt *Runtime) Eval(ast S) (Value, error) {
	ec := &evalCtx{rt: rt}
	v, _, err := ec.eval(rt.Global, ast)
	return v, err
}

// stampStmtPos fills in the enclosing statement's position on errors that
// reached the top without one.
func stampStmtPos(err error, spans *SpanIndex, src string, stmtIdx int) error {
	sp, ok := spans.Get(NodePath{stmtIdx})
	if !ok || sp.EndByte <= sp.StartByte {
		return err
	}
	line, col := LineColAtByte(src, sp.StartByte)

	var re *RuntimeError
	if errors.As(err, &re) && re.Line < 1 {
		re.Line, re.Col = line, col
	}
	var se *ShapeError
	if errors.As(err, &se) && se.Line < 1 {
		se.Line, se.Col = line, col
	}
	return err
}

/* ===========================
   builtins
   =========================== */

// registerTypes binds the builtin type names. Array, Fun, and Type are
// opaque: they name what typeOf reports for those values but cannot be used
// as bounds.
func registerTypes(rt *Runtime) {
	for _, name := range []string{"Any", "Null", "Bool", "Int", "Num", "Str", "Array", "Fun", "Type"} {
		rt.Core.Define(name, TypeVal(L("id", name)))
	}
}

func registerCoreBuiltins(rt *Runtime) {
	native := func(name string, params []string, impl NativeImpl) {
		rt.Core.Define(name, FunVal(&Fun{Params: params, Native: impl, Name: name}))
	}

	native("print", []string{"values"}, func(args []Value) (Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = FormatValue(a)
		}
		fmt.Fprintln(rt.Out, strings.Join(parts, " "))
		return Null, nil
	})

	native("typeOf", []string{"value"}, func(args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, fmt.Errorf("expects 1 argument, got %d", len(args))
		}
		return typeOfValue(args[0]), nil
	})

	native("fields", []string{"instance"}, func(args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, fmt.Errorf("expects 1 argument, got %d", len(args))
		}
		switch args[0].Tag {
		case VTInstance:
			names := args[0].Data.(*Instance).Desc.Signature.Names()
			xs := make([]Value, len(names))
			for i, n := range names {
				xs[i] = Str(n)
			}
			return Arr(xs), nil
		case VTType:
			if tv := args[0].Data.(*TypeValue); tv.Desc != nil {
				names := tv.Desc.Signature.Names()
				xs := make([]Value, len(names))
				for i, n := range names {
					xs[i] = Str(n)
				}
				return Arr(xs), nil
			}
		}
		return Value{}, fmt.Errorf("expects an instance or struct type")
	})

	native("shapes", nil, func(args []Value) (Value, error) {
		if len(args) != 0 {
			return Value{}, fmt.Errorf("expects no arguments")
		}
		descs := rt.Reg.Descriptors()
		xs := make([]Value, len(descs))
		for i, d := range descs {
			xs[i] = Str(d.TypeName)
		}
		return Arr(xs), nil
	})

	native("len", []string{"value"}, func(args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, fmt.Errorf("expects 1 argument, got %d", len(args))
		}
		switch args[0].Tag {
		case VTStr:
			return Int(int64(utf8.RuneCountInString(args[0].Data.(string)))), nil
		case VTArray:
			return Int(int64(len(args[0].Data.([]Value)))), nil
		case VTInstance:
			return Int(int64(len(args[0].Data.(*Instance).Fields))), nil
		}
		return Value{}, fmt.Errorf("expects a string, array, or instance")
	})

	native("str", []string{"value"}, func(args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, fmt.Errorf("expects 1 argument, got %d", len(args))
		}
		return Str(FormatValue(args[0])), nil
	})
}
