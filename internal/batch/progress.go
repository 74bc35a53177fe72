package batch

import "sync"

// Snapshot is the pull-based progress view consumable by any external UI.
type Snapshot struct {
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	CurrentKey string `json:"current_key,omitempty"`
}

// Progress tracks batch progress behind a mutex so the HTTP API can read it
// while the coordinator advances.
type Progress struct {
	mu       sync.Mutex
	snapshot Snapshot
}

func (p *Progress) begin(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = Snapshot{Total: total}
}

func (p *Progress) setCurrent(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.CurrentKey = key
}

func (p *Progress) complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot.Completed++
	p.snapshot.CurrentKey = ""
}

// Snapshot returns the current (completed, total, current_key) view.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}
