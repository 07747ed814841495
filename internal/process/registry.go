package process

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/desertthunder/spotx/internal/shared"
)

// Handle is a live process as seen by the [Registry].
type Handle interface {
	Kill() error
	Alive() bool
}

// Registry maps process ids to live handles. Safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	procs map[string]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]Handle)}
}

// Register adds h under id. An id that is already present is rejected with [shared.ErrDuplicateProcess].
func (r *Registry) Register(id string, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.procs[id]; ok {
		return fmt.Errorf("%w: %s", shared.ErrDuplicateProcess, id)
	}
	r.procs[id] = h
	return nil
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.procs[id]
	return ok
}

// IsAlive reports whether id is registered and its process has not exited.
func (r *Registry) IsAlive(id string) bool {
	r.mu.Lock()
	h, ok := r.procs[id]
	r.mu.Unlock()
	return ok && h.Alive()
}

// Destroy kills the process registered under id and removes it.
//
// Returns true only when a live process was found; unknown ids and exited processes return false.
func (r *Registry) Destroy(id string) bool {
	r.mu.Lock()
	h, ok := r.procs[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.procs, id)
	r.mu.Unlock()

	if !h.Alive() {
		return false
	}
	if err := h.Kill(); err != nil && err != os.ErrProcessDone {
		return false
	}
	return true
}

// Remove deletes id only while it still maps to h, so a late cleanup cannot drop a newer registration.
func (r *Registry) Remove(id string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.procs[id]; ok && cur == h {
		delete(r.procs, id)
	}
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.procs))
	for id := range r.procs {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// DestroyAll kills every registered process and returns how many were alive.
func (r *Registry) DestroyAll() int {
	n := 0
	for _, id := range r.IDs() {
		if r.Destroy(id) {
			n++
		}
	}
	return n
}

// procHandle tracks an exec'd process from registration until exit.
//
// It is registered before the process starts; a Kill that arrives before
// attach is applied as soon as the process exists.
type procHandle struct {
	mu     sync.Mutex
	proc   *os.Process
	killed bool
	done   chan struct{}
}

func newProcHandle() *procHandle {
	return &procHandle{done: make(chan struct{})}
}

func (h *procHandle) attach(p *os.Process) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.proc = p
	if h.killed {
		_ = p.Kill()
	}
}

func (h *procHandle) exited() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *procHandle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *procHandle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return os.ErrProcessDone
	default:
	}
	h.killed = true
	if h.proc == nil {
		return nil
	}
	return h.proc.Kill()
}

// Killed reports whether Kill was requested.
func (h *procHandle) Killed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killed
}
