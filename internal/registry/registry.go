// Package registry tracks in-process availability of the three catalog
// nodes.
//
// The registry is a boolean gate in front of every connection attempt:
// cheaper and more deterministic than catching connect errors on the hot
// path, and it lets a crashed node be simulated without touching the
// network. The broker revalidates with a ping, so stale reads are
// acceptable; writers are last-write-wins.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gamevault/gamevault/internal/types"
)

// ErrInvalidNode is returned for node names outside master/slave_a/slave_b.
var ErrInvalidNode = errors.New("invalid node")

type nodeState struct {
	available    bool
	failureCount int
	lastError    string
	lastChecked  time.Time
}

// Registry is the shared availability map. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*nodeState
}

// New returns a registry with all three nodes marked up.
func New() *Registry {
	r := &Registry{nodes: make(map[string]*nodeState, len(types.Nodes))}
	for _, name := range types.Nodes {
		r.nodes[name] = &nodeState{available: true, lastChecked: time.Now().UTC()}
	}
	return r
}

// IsUp reports whether the node is marked available. Unknown names are down.
func (r *Registry) IsUp(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.nodes[name]
	return ok && st.available
}

// MarkDown flips the node to unavailable, increments its failure count and
// records the error.
func (r *Registry) MarkDown(name string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.nodes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidNode, name)
	}
	st.available = false
	st.failureCount++
	st.lastChecked = time.Now().UTC()
	if cause != nil {
		st.lastError = cause.Error()
	}
	return nil
}

// MarkUp flips the node to available, resets its failure count and clears
// the recorded error.
func (r *Registry) MarkUp(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.nodes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidNode, name)
	}
	st.available = true
	st.failureCount = 0
	st.lastError = ""
	st.lastChecked = time.Now().UTC()
	return nil
}

// FailureCount returns the consecutive failure count for the node.
func (r *Registry) FailureCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if st, ok := r.nodes[name]; ok {
		return st.failureCount
	}
	return 0
}

// LastError returns the most recent recorded error text, if any.
func (r *Registry) LastError(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if st, ok := r.nodes[name]; ok {
		return st.lastError
	}
	return ""
}

// Snapshot returns a point-in-time view of every node's state.
func (r *Registry) Snapshot() map[string]types.NodeStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]types.NodeStatus, len(r.nodes))
	for name, st := range r.nodes {
		out[name] = types.NodeStatus{
			NodeName:     name,
			IsAvailable:  st.available,
			LastChecked:  st.lastChecked,
			FailureCount: st.failureCount,
			LastError:    st.lastError,
		}
	}
	return out
}
