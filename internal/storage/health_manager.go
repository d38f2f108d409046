package storage

import (
	"sort"
	"sync"
	"time"
)

// SinkHealth is the outcome of the most recent write to a sink.
type SinkHealth struct {
	Sink      string    `json:"sink"`
	Status    string    `json:"status"`
	LastWrite time.Time `json:"last_write"`
	RunID     string    `json:"run_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthManager keeps sink health in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]SinkHealth
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]SinkHealth),
	}
}

// Record stores the result of a write
func (hm *HealthManager) Record(sink, runID string, err error) {
	h := SinkHealth{
		Sink:      sink,
		Status:    "healthy",
		LastWrite: time.Now(),
		RunID:     runID,
	}
	if err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
	}

	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[sink] = h
}

// GetHealth retrieves the health status for a specific sink
func (hm *HealthManager) GetHealth(sink string) (SinkHealth, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	h, ok := hm.health[sink]
	return h, ok
}

// Snapshot returns the health of every sink, ordered by name
func (hm *HealthManager) Snapshot() []SinkHealth {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	out := make([]SinkHealth, 0, len(hm.health))
	for _, h := range hm.health {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sink < out[j].Sink })
	return out
}

// Healthy reports whether no sink failed its last write
func (hm *HealthManager) Healthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	for _, h := range hm.health {
		if h.Status != "healthy" {
			return false
		}
	}
	return true
}
