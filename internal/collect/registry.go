package collect

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Registry maps collector names to their implementations.
type Registry struct {
	collectors map[string]Collector
	order      []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		collectors: make(map[string]Collector),
	}
}

// Register adds a collector to the registry, replacing any collector with
// the same name.
func (r *Registry) Register(c Collector) {
	name := c.Name()
	if _, ok := r.collectors[name]; !ok {
		r.order = append(r.order, name)
	}
	r.collectors[name] = c
}

// Get returns a collector by name.
func (r *Registry) Get(name string) (Collector, error) {
	c, ok := r.collectors[name]
	if !ok {
		known := r.Names()
		sort.Strings(known)
		return nil, eris.Errorf("collect: unknown collector %q (known: %v)", name, known)
	}
	return c, nil
}

// Names returns all registered collector names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
