package tool

import (
	"fmt"
	"sort"
)

// Registry holds a named set of tool definitions. Names are unique within a
// registry.
type Registry struct {
	tools map[string]*Definition
}

func NewRegistry(tools ...*Definition) (*Registry, error) {
	registry := &Registry{
		tools: map[string]*Definition{},
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) Register(t *Definition) error {
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q is already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

func (r *Registry) Get(name string) (*Definition, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns the registered tools sorted by name, so tool order presented
// to the model is stable across runs.
func (r *Registry) List() []*Definition {
	tools := make([]*Definition, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name() < tools[j].Name()
	})
	return tools
}
