package tools

import (
	"sync"

	"trinity/pkg/errors"
)

// FunctionDefinition describes a callable function for LLM tool calling.
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Registry stores tools by name for discovery and lookup.
// Registration happens during agent construction; afterwards the registry
// is only read, so dispatches never contend on the write lock.
type Registry struct {
	tools map[string]Tool
	order []string
	mu    sync.RWMutex
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool under its name. Registering a duplicate name is
// rejected and the original registration stays in place.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.Wrap(errors.ErrInvalidInput, "tool is nil")
	}

	name := t.Name()
	if name == "" {
		return errors.Wrap(errors.ErrInvalidInput, "tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "tool %s", name)
	}

	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a tool by name if registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns the names of all registered tools in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// List returns descriptors for all registered tools in registration order.
// Handler internals are never exposed.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		descriptors = append(descriptors, Describe(r.tools[name]))
	}

	return descriptors
}

// FunctionDefinitions renders all registered tools as LLM function
// calling definitions, in registration order.
func (r *Registry) FunctionDefinitions() []FunctionDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]FunctionDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema().JSONSchema(),
		})
	}

	return defs
}
