package daemon

import (
	"sort"
	"sync"

	"github.com/marcin-skalski/seatwatch/internal/worker"
)

// Registry maps item IDs to their running Poller. At most one Poller exists
// per ID. Only the reconciler mutates it; the lock serves status readers.
type Registry struct {
	mu      sync.Mutex
	pollers map[string]*worker.Poller
}

func NewRegistry() *Registry {
	return &Registry{pollers: make(map[string]*worker.Poller)}
}

func (r *Registry) Get(id string) (*worker.Poller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pollers[id]
	return p, ok
}

// Insert adds p unless a Poller with the same ID is already registered.
func (r *Registry) Insert(p *worker.Poller) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pollers[p.ID()]; exists {
		return false
	}
	r.pollers[p.ID()] = p
	return true
}

func (r *Registry) Remove(id string) (*worker.Poller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pollers[id]
	if ok {
		delete(r.pollers, id)
	}
	return p, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pollers)
}

// List returns the registered pollers ordered by ID.
func (r *Registry) List() []*worker.Poller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedPollers(r.pollers)
}

// Drain empties the registry and returns what it held.
func (r *Registry) Drain() []*worker.Poller {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := sortedPollers(r.pollers)
	r.pollers = make(map[string]*worker.Poller)
	return out
}

func sortedPollers(m map[string]*worker.Poller) []*worker.Poller {
	out := make([]*worker.Poller, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
