package analysis

import (
	"context"
	"sync"
)

// History is the append-only record of completed analyses. Append must be
// atomic: a concurrent List never observes a partially written record.
type History interface {
	Append(ctx context.Context, a *RiskAnalysis) error
	List(ctx context.Context) ([]*RiskAnalysis, error)
	Get(ctx context.Context, id string) (*RiskAnalysis, error)
}

// MemoryHistory is an in-process History. Records are copied on the way in
// and out.
type MemoryHistory struct {
	mu      sync.RWMutex
	records []*RiskAnalysis
	byID    map[string]int
}

// NewMemoryHistory returns an empty MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{byID: make(map[string]int)}
}

// Append implements History.
func (h *MemoryHistory) Append(_ context.Context, a *RiskAnalysis) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byID[a.ID] = len(h.records)
	h.records = append(h.records, a.Clone())
	return nil
}

// List implements History. Records are returned in append order.
func (h *MemoryHistory) List(_ context.Context) ([]*RiskAnalysis, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*RiskAnalysis, len(h.records))
	for i, r := range h.records {
		out[i] = r.Clone()
	}
	return out, nil
}

// Get implements History.
func (h *MemoryHistory) Get(_ context.Context, id string) (*RiskAnalysis, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	i, ok := h.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return h.records[i].Clone(), nil
}
