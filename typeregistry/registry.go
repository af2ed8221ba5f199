// Package typeregistry implements the process-wide TypeHandler registry
// (§4.2): a capability record per wire type (encode, decode,
// default-predicate, stable hash) looked up either by Go runtime type or
// by the type's 32-bit hash code.
//
// This replaces the source repository's void*-typed registry (§9):
// TypeHandler is a small interface (a "tagged capability" in the
// spec's words) rather than an untyped pointer with casts, and Registry
// is a one-shot-initialized, append-only map rather than a process
// singleton guarded by ad hoc locking.
package typeregistry

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/vgp7758/bitrpc/wire"
)

// TypeHandler is the codec capability for one wire type: write/read the
// value, test it for the wire default, and report a stable hash code
// (§3 "TypeHandler"). Write/Read always operate on the handler's body
// only (§4.3.5) - the hash_code tag belongs to WriteObject/ReadObject,
// not to the handler itself, so the same method serves both top-level
// tagged encoding and untagged nested struct-ref encoding.
type TypeHandler interface {
	HashCode() int32
	GoType() reflect.Type
	Write(w *wire.Writer, v any) error
	Read(r *wire.Reader) (any, error)
	IsDefault(v any) bool
}

// Registry is a process-wide, additive-only TypeHandler table keyed
// both by Go runtime type and by 32-bit hash code (§4.2). Register takes
// the write lock and every lookup takes the read lock, so tests that
// build isolated registries don't need to reason about a global
// happens-before.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]TypeHandler
	byHash map[int32]TypeHandler
}

// NewRegistry returns an empty registry. Most callers should use
// Default(), which additionally has the built-in primitive handlers
// registered; NewRegistry is for tests that want full isolation.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]TypeHandler),
		byHash: make(map[int32]TypeHandler),
	}
}

// Register adds handler to both maps. Duplicate registration of the
// same Go type or the same hash code fails - "last-writer-wins" is
// explicitly disallowed (§4.2).
func (r *Registry) Register(handler TypeHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byType[handler.GoType()]; exists {
		return &RegistryError{Reason: fmt.Sprintf("type %v is already registered", handler.GoType())}
	}
	if _, exists := r.byHash[handler.HashCode()]; exists {
		return &RegistryError{Reason: fmt.Sprintf("hash_code %d is already registered", handler.HashCode())}
	}
	r.byType[handler.GoType()] = handler
	r.byHash[handler.HashCode()] = handler
	return nil
}

// MustRegister panics on a registration error. Intended for generated
// code's init() functions, where a duplicate registration is a build-
// time wiring bug, not a runtime condition to recover from.
func (r *Registry) MustRegister(handler TypeHandler) {
	if err := r.Register(handler); err != nil {
		panic(err)
	}
}

// LookupByType returns the handler registered for t, if any.
func (r *Registry) LookupByType(t reflect.Type) (TypeHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byType[t]
	return h, ok
}

// LookupByHash returns the handler registered for hash, if any.
func (r *Registry) LookupByHash(hash int32) (TypeHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byHash[hash]
	return h, ok
}

// NewRegistryWithBuiltins returns a fresh, isolated registry with the
// nine built-in primitive handlers already registered - for tests and
// other packages (rpcserver, rpcclient, codegen) that want a registry
// separate from the process-wide Default() one.
func NewRegistryWithBuiltins() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry, registering the nine
// built-in primitive handlers exactly once on first call (§4.2
// "initialize(): idempotent"). Registrations performed by generated
// RegisterTypes calls on this registry must happen before the first
// encode/decode in the process, per §5's concurrency model.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		registerBuiltins(defaultReg)
	})
	return defaultReg
}
