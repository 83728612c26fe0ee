package shapelang

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func Test_Signature_Key_And_String(t *testing.T) {
	sig := FieldSignature{
		{Name: "x"},
		{Name: "y", Bound: L("id", "Num")},
	}
	require.Equal(t, "x\ny :: Num", sig.Key())
	require.Equal(t, "(x, y :: Num)", sig.String())
	require.Equal(t, []string{"x", "y"}, sig.Names())

	require.NotEqual(t, sig.Key(), FieldSignature{{Name: "x"}, {Name: "y"}}.Key())
	require.NotEqual(t, sig.Key(), FieldSignature{{Name: "y", Bound: L("id", "Num")}, {Name: "x"}}.Key())

	require.True(t, sig.Equal(FieldSignature{{Name: "x"}, {Name: "y", Bound: L("id", "Num")}}))
	require.False(t, sig.Equal(FieldSignature{{Name: "x"}, {Name: "y"}}))
	require.False(t, sig.Equal(FieldSignature{{Name: "x"}, {Name: "y", Bound: L("id", "Int")}}))
	require.False(t, sig.Equal(sig[:1]))
}

func Test_Registry_Intern_Memoizes_By_Signature(t *testing.T) {
	reg := NewRegistry()
	d1, created := reg.Intern("Point", FieldSignature{{Name: "x"}, {Name: "y", Bound: L("id", "Num")}})
	require.True(t, created)
	require.Equal(t, "Point$1", d1.TypeName)

	// An equal signature built independently lands on the same descriptor.
	d2, created := reg.Intern("Point", FieldSignature{{Name: "x"}, {Name: "y", Bound: L("id", "Num")}})
	require.False(t, created)
	require.Same(t, d1, d2)
	require.Equal(t, 1, reg.Size())
}

func Test_Registry_Distinct_Signatures_Distinct_Types(t *testing.T) {
	reg := NewRegistry()
	d1, _ := reg.Intern("Point", FieldSignature{{Name: "x"}, {Name: "y"}})
	d2, _ := reg.Intern("Point", FieldSignature{{Name: "x"}, {Name: "y", Bound: L("id", "Num")}})
	d3, _ := reg.Intern("Vec", FieldSignature{{Name: "x"}, {Name: "y"}, {Name: "z"}})

	// The counter is registry-wide, so colliding public names still mint
	// unique type names.
	require.Equal(t, "Point$1", d1.TypeName)
	require.Equal(t, "Point$2", d2.TypeName)
	require.Equal(t, "Vec$3", d3.TypeName)
	require.NotSame(t, d1, d2)
	require.Equal(t, 3, reg.Size())
}

func Test_Registry_InternDeclared(t *testing.T) {
	reg := NewRegistry()
	sig := FieldSignature{{Name: "x"}, {Name: "y"}}

	// A declared struct keeps its concrete name exactly as written.
	d1, created := reg.InternDeclared("Point$7", sig)
	require.True(t, created)
	require.Equal(t, "Point$7", d1.TypeName)

	// Re-declaring the signature under any name reuses the descriptor.
	d2, created := reg.InternDeclared("Other$9", sig)
	require.False(t, created)
	require.Same(t, d1, d2)

	d3, created := reg.Intern("Fresh", sig)
	require.False(t, created)
	require.Same(t, d1, d3)
	require.Equal(t, 1, reg.Size())
}

func Test_Registry_Binding_Follows_Last_Declaration(t *testing.T) {
	reg := NewRegistry()
	d1, _ := reg.Intern("A", FieldSignature{{Name: "x"}})
	d2, _ := reg.Intern("A", FieldSignature{{Name: "x"}, {Name: "y"}})

	got, ok := reg.Binding("A")
	require.True(t, ok)
	require.Same(t, d2, got)

	// A second name resolving to the first signature repoints only itself.
	d3, _ := reg.Intern("B", FieldSignature{{Name: "x"}})
	require.Same(t, d1, d3)
	got, ok = reg.Binding("B")
	require.True(t, ok)
	require.Same(t, d1, got)
	got, _ = reg.Binding("A")
	require.Same(t, d2, got)

	_, ok = reg.Binding("missing")
	require.False(t, ok)
}

func Test_Registry_Lookup_Does_Not_Intern(t *testing.T) {
	reg := NewRegistry()
	sig := FieldSignature{{Name: "x"}}

	_, ok := reg.Lookup(sig)
	require.False(t, ok)
	require.Equal(t, 0, reg.Size())

	d, _ := reg.Intern("P", sig)
	got, ok := reg.Lookup(sig)
	require.True(t, ok)
	require.Same(t, d, got)
}

func Test_Registry_Descriptors_Sorted_By_TypeName(t *testing.T) {
	reg := NewRegistry()
	reg.Intern("B", FieldSignature{{Name: "x"}})
	reg.Intern("A", FieldSignature{{Name: "y"}})
	reg.Intern("C", FieldSignature{{Name: "z"}})

	var names []string
	for _, d := range reg.Descriptors() {
		names = append(names, d.TypeName)
	}
	require.Equal(t, []string{"A$2", "B$1", "C$3"}, names)
}

func Test_Registry_Display_Name(t *testing.T) {
	reg := NewRegistry()
	d, _ := reg.Intern("Point", FieldSignature{{Name: "x"}})
	require.Equal(t, "Point$1", d.DisplayName()) // falls back to the type name

	d.SetDisplay("Point")
	require.Equal(t, "Point", d.DisplayName())
	d.SetDisplay("Vec")
	require.Equal(t, "Vec", d.DisplayName())

	require.Equal(t, "Point$1(x)", d.String())
}

func Test_Registry_UIDs_Are_Unique(t *testing.T) {
	reg := NewRegistry()
	d1, _ := reg.Intern("A", FieldSignature{{Name: "x"}})
	d2, _ := reg.Intern("B", FieldSignature{{Name: "y"}})
	require.NotEqual(t, uuid.Nil, d1.UID)
	require.NotEqual(t, uuid.Nil, d2.UID)
	require.NotEqual(t, d1.UID, d2.UID)
}

func Test_Registry_Decl_Fragment(t *testing.T) {
	reg := NewRegistry()
	d, _ := reg.Intern("Point", FieldSignature{{Name: "x"}, {Name: "y", Bound: L("id", "Num")}})
	wantNode(t, L("struct", L("id", "Point$1"),
		L("array",
			L("pair", L("id", "T1"), L("null")),
			L("pair", L("id", "T2"), L("id", "Num"))),
		L("array",
			L("pair", L("id", "x"), L("id", "T1")),
			L("pair", L("id", "y"), L("id", "T2")))),
		d.Decl())
}

func Test_Registry_Concurrent_Intern_One_Winner(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := NewRegistry()
	sig := FieldSignature{{Name: "x"}, {Name: "y", Bound: L("id", "Num")}}

	const n = 32
	descs := make([]*ShapeDescriptor, n)
	created := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			descs[i], created[i] = reg.Intern("Point", sig)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, reg.Size())
	wins := 0
	for i := 0; i < n; i++ {
		require.Same(t, descs[0], descs[i])
		if created[i] {
			wins++
		}
	}
	require.Equal(t, 1, wins)
}
