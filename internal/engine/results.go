package engine

import "sync"

// results accumulates findings and counters for one run.
type results struct {
	mu       sync.Mutex
	findings []Finding
	keys     map[string]struct{}
	points   map[string]struct{}
	tested   int
}

func newResults() *results {
	return &results{
		keys:   make(map[string]struct{}),
		points: make(map[string]struct{}),
	}
}

// record appends f unless a finding with the same key exists.
func (r *results) record(f Finding) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := f.Key()
	if _, dup := r.keys[k]; dup {
		return false
	}
	r.keys[k] = struct{}{}
	r.findings = append(r.findings, f)
	return true
}

// claimPoint reports whether the caller is the first to test key.
func (r *results) claimPoint(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.points[key]; ok {
		return false
	}
	r.points[key] = struct{}{}
	return true
}

func (r *results) pointTested() {
	r.mu.Lock()
	r.tested++
	r.mu.Unlock()
}

func (r *results) all() []Finding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Finding, len(r.findings))
	copy(out, r.findings)
	return out
}

func (r *results) counts() (findings, tested int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.findings), r.tested
}
