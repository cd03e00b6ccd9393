package engine

import "sync"

// Session holds the current run so the loop and HTTP handlers share it
// across resets.
type Session struct {
	mu  sync.RWMutex
	run *Run
}

func NewSession(r *Run) *Session {
	return &Session{run: r}
}

// Run returns the current run.
func (s *Session) Run() *Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.run
}

// Reset replaces the current run with a fresh one.
func (s *Session) Reset() (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.run.Reset()
	if err != nil {
		return nil, err
	}
	s.run = next
	return next, nil
}

// Tick advances the current run.
func (s *Session) Tick(dt float64) {
	s.Run().Tick(dt)
}
