package runs

import "sync"

// ProgressUpdate is one progress event for a run. Delivery is fire-and-forget
// and at-least-once; consumers must tolerate duplicates.
type ProgressUpdate struct {
	RunID    string `json:"runId"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Phase    Phase  `json:"phase"`
	Message  string `json:"message,omitempty"`
}

// ProgressSink receives progress updates. Emit must not block the run loop
// for long; slow consumers should buffer or drop.
type ProgressSink interface {
	Emit(update ProgressUpdate)
}

// NopSink discards updates.
type NopSink struct{}

func (NopSink) Emit(ProgressUpdate) {}

// MemorySink records updates per run. Useful for polling transports and tests.
type MemorySink struct {
	mu      sync.Mutex
	updates map[string][]ProgressUpdate
}

// NewMemorySink constructs a MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{updates: make(map[string][]ProgressUpdate)}
}

// Emit appends the update to the run's history.
func (s *MemorySink) Emit(update ProgressUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[update.RunID] = append(s.updates[update.RunID], update)
}

// Updates returns a copy of the update history for a run, in emission order.
func (s *MemorySink) Updates(runID string) []ProgressUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.updates[runID]
	out := make([]ProgressUpdate, len(src))
	copy(out, src)
	return out
}

// Latest returns the most recent update for a run.
func (s *MemorySink) Latest(runID string) (ProgressUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.updates[runID]
	if len(src) == 0 {
		return ProgressUpdate{}, false
	}
	return src[len(src)-1], true
}
