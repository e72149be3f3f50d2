package vm

import (
	"fmt"
	"sort"
)

// BuiltinFunc is a native function callable through OpCall. args holds the
// arguments in stack order (most recently pushed first). A builtin must not
// retain args past the call; it may Detach a Value it needs to keep.
type BuiltinFunc func(args []Value) (Value, error)

// Builtin is a named native function.
type Builtin struct {
	Name string
	Fn   BuiltinFunc
}

// Registry maps builtin names to functions. It is immutable once built, so
// one Registry can be shared by any number of Machines and goroutines.
type Registry struct {
	builtins map[string]*Builtin
}

// NewRegistry builds a registry from builtins. Names must be non-empty,
// NUL-free and unique.
func NewRegistry(builtins ...Builtin) (*Registry, error) {
	r := &Registry{builtins: make(map[string]*Builtin, len(builtins))}
	for _, b := range builtins {
		if err := r.add(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error. Intended for static
// builtin tables.
func MustRegistry(builtins ...Builtin) *Registry {
	r, err := NewRegistry(builtins...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(b Builtin) error {
	if b.Name == "" {
		return fmt.Errorf("builtin with empty name")
	}
	for i := 0; i < len(b.Name); i++ {
		if b.Name[i] == 0 {
			return fmt.Errorf("builtin name %q contains NUL", b.Name)
		}
	}
	if b.Fn == nil {
		return fmt.Errorf("builtin %q has no function", b.Name)
	}
	if _, dup := r.builtins[b.Name]; dup {
		return fmt.Errorf("builtin %q registered twice", b.Name)
	}
	entry := b
	r.builtins[b.Name] = &entry
	return nil
}

// With returns a new registry holding r's builtins plus extra. r is unchanged.
func (r *Registry) With(extra ...Builtin) (*Registry, error) {
	n := &Registry{builtins: make(map[string]*Builtin, r.Len()+len(extra))}
	if r != nil {
		for name, b := range r.builtins {
			n.builtins[name] = b
		}
	}
	for _, b := range extra {
		if err := n.add(b); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Lookup returns the builtin registered under name.
func (r *Registry) Lookup(name string) (*Builtin, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.builtins[name]
	return b, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered builtins.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.builtins)
}
