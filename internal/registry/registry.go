// Package registry owns the set of running MCP servers, keyed by unique name.
package registry

import (
	"errors"
	"sync"

	"github.com/imyashkale/mcpbridge/internal/models"
	"github.com/imyashkale/mcpbridge/internal/process"
)

var (
	// ErrDuplicateServer is returned when a name is already registered.
	ErrDuplicateServer = errors.New("server name already in use")
	// ErrServerNotFound is returned when a name is not registered.
	ErrServerNotFound = errors.New("server not found")
)

// Registry is a concurrent map from server name to its process manager.
// It is the only holder of a reference capable of stopping a server.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*process.Manager
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		servers: make(map[string]*process.Manager),
	}
}

// Add registers a manager under its name. Names are unique: adding an
// existing name fails and leaves the current entry untouched.
func (r *Registry) Add(m *process.Manager) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.servers[m.Name()]; exists {
		return ErrDuplicateServer
	}
	r.servers[m.Name()] = m
	return nil
}

// Get returns the manager registered under name.
func (r *Registry) Get(name string) (*process.Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.servers[name]
	return m, ok
}

// Remove stops the named server and deletes its entry. A second Remove for
// the same name fails with ErrServerNotFound.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	m, ok := r.servers[name]
	if ok {
		delete(r.servers, name)
	}
	r.mu.Unlock()

	if !ok {
		return ErrServerNotFound
	}
	m.Stop()
	return nil
}

// Delete drops the entry for name without stopping the process. Used when
// the child has already exited on its own.
func (r *Registry) Delete(name string) {
	r.mu.Lock()
	delete(r.servers, name)
	r.mu.Unlock()
}

// List returns a snapshot of every registered server.
func (r *Registry) List() []models.ServerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]models.ServerInfo, 0, len(r.servers))
	for _, m := range r.servers {
		args := m.Args()
		if args == nil {
			args = []string{}
		}
		infos = append(infos, models.ServerInfo{
			Name:      m.Name(),
			Command:   m.Command(),
			Args:      args,
			Connected: m.Connected(),
		})
	}
	return infos
}

// Count returns the number of registered servers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.servers)
}

// StopAll stops every registered server and clears the registry.
func (r *Registry) StopAll() {
	r.mu.Lock()
	managers := make([]*process.Manager, 0, len(r.servers))
	for name, m := range r.servers {
		managers = append(managers, m)
		delete(r.servers, name)
	}
	r.mu.Unlock()

	for _, m := range managers {
		m.Stop()
	}
}
