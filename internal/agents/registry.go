package agents

import (
	"sync"

	"trinity/pkg/errors"
)

// Registry stores all active agents by name.
type Registry struct {
	agents map[string]Agent
	order  []string
	mu     sync.RWMutex
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds an agent. Duplicate names are rejected.
func (r *Registry) Register(agent Agent) error {
	if agent == nil {
		return errors.Wrap(errors.ErrInvalidInput, "agent is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := agent.Name()
	if _, exists := r.agents[name]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "agent %s already registered", name)
	}

	r.agents[name] = agent
	r.order = append(r.order, name)
	return nil
}

// Get returns the agent by name.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrAgentNotFound, "agent %s not registered", name)
	}
	return agent, nil
}

// List returns all agents in registration order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Agent, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

// Names returns agent names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
