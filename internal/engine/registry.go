package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActiveExecution describes one in-flight campaign execution
type ActiveExecution struct {
	ExecutionID string    `json:"execution_id"`
	CampaignID  uuid.UUID `json:"campaign_id"`
	StartedAt   time.Time `json:"started_at"`
	TestMode    bool      `json:"test_mode"`
}

// Registry tracks in-flight executions so they can be listed and cancelled
type Registry struct {
	mu      sync.Mutex
	entries map[string]registryEntry
}

type registryEntry struct {
	info   ActiveExecution
	cancel context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

func (r *Registry) Add(info ActiveExecution, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[info.ExecutionID] = registryEntry{info: info, cancel: cancel}
}

func (r *Registry) Remove(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, executionID)
}

// Cancel stops a running execution. Returns false when the execution is not
// tracked, which usually means it already finished.
func (r *Registry) Cancel(executionID string) bool {
	r.mu.Lock()
	entry, ok := r.entries[executionID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	entry.cancel()
	return true
}

func (r *Registry) List() []ActiveExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActiveExecution, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.info)
	}
	return out
}
