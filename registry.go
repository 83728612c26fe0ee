// registry.go: the memo of synthesized struct types
//
// What this file does
// -------------------
// The Registry owns every ShapeDescriptor synthesized in this process. It is
// keyed by field signature: interning the same signature twice returns the
// same descriptor, so repeated declarations of an identical shape cost one
// lookup and allocate nothing. Descriptors are never evicted; a type, once
// minted, stays valid for the life of the process because live instances
// point at it.
//
// A process-wide default registry backs normal use. Runtimes can be handed
// their own Registry instead, which keeps tests hermetic and lets embedders
// isolate type universes.
//
// Concurrency
// -----------
// All Registry methods are safe for concurrent use; a single mutex serializes
// interning, so two goroutines racing to declare the same signature agree on
// one winner. Display-name updates ride on a per-descriptor mutex because
// they happen after interning, on whatever descriptor won.
package shapelang

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ShapeDescriptor identifies one synthesized concrete type. TypeName is the
// globally unique internal name instances are constructed under (for example
// "Point$1"); UID is a process-unique identity tag carried for logging and
// introspection. Two values belong to the same type exactly when their
// descriptors are the same pointer.
type ShapeDescriptor struct {
	TypeName  string
	UID       uuid.UUID
	Signature FieldSignature

	mu      sync.Mutex
	display string
}

// DisplayName returns the name instances of this type render under. It
// follows the most recent declaration: re-declaring an equal signature under
// a new public name repoints the display without minting a new type.
func (d *ShapeDescriptor) DisplayName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.display == "" {
		return d.TypeName
	}
	return d.display
}

// SetDisplay repoints the display name. Last write wins.
func (d *ShapeDescriptor) SetDisplay(name string) {
	d.mu.Lock()
	d.display = name
	d.mu.Unlock()
}

func (d *ShapeDescriptor) String() string {
	return d.TypeName + d.Signature.String()
}

// Decl returns the descriptor's declaration fragment: a struct node with one
// type parameter per field, bounded where the field is bounded.
//
//	struct Point$1[T1, T2 :: Num](x: T1, y: T2)
func (d *ShapeDescriptor) Decl() S {
	tparams := S{"array"}
	fields := S{"array"}
	for i, f := range d.Signature {
		tname := fmt.Sprintf("T%d", i+1)
		bound := L("null")
		if f.Bound != nil {
			bound = f.Bound
		}
		tparams = append(tparams, L("pair", L("id", tname), bound))
		fields = append(fields, L("pair", L("id", f.Name), L("id", tname)))
	}
	return L("struct", L("id", d.TypeName), tparams, fields)
}

// Registry memoizes field signatures to descriptors and tracks, per declared
// name, the descriptor it most recently resolved to.
type Registry struct {
	mu   sync.Mutex
	memo map[string]*ShapeDescriptor // signature key -> descriptor
	bind map[string]*ShapeDescriptor // declared name -> latest descriptor
	seq  int                         // counter behind $N type names
}

// NewRegistry returns an empty registry with its own name counter.
func NewRegistry() *Registry {
	return &Registry{
		memo: map[string]*ShapeDescriptor{},
		bind: map[string]*ShapeDescriptor{},
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used when a Runtime is
// not given one explicitly.
func DefaultRegistry() *Registry { return defaultRegistry }

// Intern returns the descriptor for sig, minting one when the signature is
// new. The bool reports whether this call created it. Minted descriptors are
// named name$N with a registry-wide counter, so every synthesized type name
// is unique even when public names collide. Hit or miss, name is rebound to
// the returned descriptor, last write wins.
func (r *Registry) Intern(name string, sig FieldSignature) (*ShapeDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sig.Key()
	if d, ok := r.memo[key]; ok {
		r.bind[name] = d
		return d, false
	}
	r.seq++
	d := &ShapeDescriptor{
		TypeName:  fmt.Sprintf("%s$%d", name, r.seq),
		UID:       uuid.New(),
		Signature: sig,
	}
	r.memo[key] = d
	r.bind[name] = d
	return d, true
}

// InternDeclared is Intern for struct declarations that already carry their
// concrete type name (re-evaluating emitted code, or hand-written structs).
// On a miss the descriptor is registered under typeName exactly as given.
func (r *Registry) InternDeclared(typeName string, sig FieldSignature) (*ShapeDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sig.Key()
	if d, ok := r.memo[key]; ok {
		r.bind[typeName] = d
		return d, false
	}
	d := &ShapeDescriptor{
		TypeName:  typeName,
		UID:       uuid.New(),
		Signature: sig,
	}
	r.memo[key] = d
	r.bind[typeName] = d
	return d, true
}

// Binding returns the descriptor name most recently resolved to through
// Intern or InternDeclared. It is the registry-level view of the public
// binding; the evaluation environment holds the language-level one.
func (r *Registry) Binding(name string) (*ShapeDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.bind[name]
	return d, ok
}

// Lookup returns the descriptor for sig without interning.
func (r *Registry) Lookup(sig FieldSignature) (*ShapeDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.memo[sig.Key()]
	return d, ok
}

// Size reports how many distinct types have been synthesized.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.memo)
}

// Descriptors returns all interned descriptors sorted by type name.
func (r *Registry) Descriptors() []*ShapeDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ShapeDescriptor, 0, len(r.memo))
	for _, d := range r.memo {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeName < out[j].TypeName })
	return out
}
