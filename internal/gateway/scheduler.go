package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"kenivoire-client/internal/session"
)

// Scheduler proactively renews the access credential on a fixed interval
// chosen to be comfortably shorter than its lifetime. Renewals go through
// the gateway's single-flight guard.
type Scheduler struct {
	gw       *Gateway
	tokens   *session.Store
	interval time.Duration
	log      zerolog.Logger

	mu   sync.Mutex
	stop chan struct{}
}

func NewScheduler(gw *Gateway, tokens *session.Store, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{gw: gw, tokens: tokens, interval: interval, log: log}
}

// Start arms the timer. Calling Start while armed is a no-op, so at most
// one timer runs per session.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	stop := make(chan struct{})
	s.stop = stop
	go s.run(stop)
}

// Stop disarms the timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}

func (s *Scheduler) run(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, ok := s.tokens.Current(); !ok {
				continue
			}
			if err := s.gw.Refresh(context.Background()); err != nil {
				s.log.Warn().Err(err).Msg("scheduled credential renewal failed")
			}
		}
	}
}
