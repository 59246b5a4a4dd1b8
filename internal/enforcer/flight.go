package enforcer

import (
	"sync"

	"github.com/operandhq/lpr/internal/core"
)

var _ core.FlightLock = (*SingleFlight)(nil)

// SingleFlight rejects overlapping in-flight verifications for the same jti.
// It is only consulted for tokens whose policy sets allow_concurrent=false.
type SingleFlight struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewSingleFlight() *SingleFlight {
	return &SingleFlight{inFlight: make(map[string]struct{})}
}

// TryAcquire claims the jti. It never blocks: a second caller while the
// first holds the claim gets ok=false and maps to CONCURRENT_USE_DENIED.
func (s *SingleFlight) TryAcquire(jti string) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.inFlight[jti]; held {
		return nil, false
	}
	s.inFlight[jti] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.inFlight, jti)
			s.mu.Unlock()
		})
	}
	return release, true
}
