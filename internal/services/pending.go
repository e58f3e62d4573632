package services

import "sync"

// pendingCounts tracks in-flight page counts per project so the status
// tracker can report work that has no persisted record yet.
type pendingCounts struct {
	mu     sync.Mutex
	counts map[string]int
}

func newPendingCounts() *pendingCounts {
	return &pendingCounts{counts: make(map[string]int)}
}

func (p *pendingCounts) add(projectID string, delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[projectID] += delta
	if p.counts[projectID] <= 0 {
		delete(p.counts, projectID)
	}
}

func (p *pendingCounts) get(projectID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[projectID]
}
