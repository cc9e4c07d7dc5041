package store

import (
	"fmt"
	"reflect"
	"sync"
)

// Registry maps product type names to Go types. Stored products carry the
// name; only registered names can be decoded.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
}

// Register binds name to the type of sample, dereferencing a pointer sample.
// Registering a name or a type twice panics.
func (r *Registry) Register(name string, sample any) {
	typ := reflect.TypeOf(sample)
	if typ == nil {
		panic(fmt.Errorf("%s: nil sample", name))
	}
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	r.add(name, typ)
}

// RegisterType is the generic form of Registry.Register.
func RegisterType[T any](r *Registry, name string) {
	r.add(name, reflect.TypeFor[T]())
}

func (r *Registry) add(name string, typ reflect.Type) {
	if name == "" {
		panic(fmt.Errorf("%v: empty type name", typ))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, found := r.byName[name]; found {
		panic(fmt.Errorf("%s: already registered as %v", name, prev))
	}
	if prev, found := r.byType[typ]; found {
		panic(fmt.Errorf("%v: already registered as %s", typ, prev))
	}
	r.byName[name] = typ
	r.byType[typ] = name
}

func (r *Registry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.byName[name]
	return typ, ok
}

func (r *Registry) NameOf(typ reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byType[typ]
	return name, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedNames(r.byName)
}
