package session

import (
	"context"
	"log"
	"time"
)

// Tick advances the countdown by one second. It reports whether this tick
// crossed zero, which happens at most once per session: the expired flag
// latches so a stale extra tick can never re-trigger submission. Untimed
// sessions ignore ticks entirely.
func (s *Session) Tick() (expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.timed || s.expired || s.closed || s.state != StateInProgress {
		return false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		s.expired = true
		s.stopTimerLocked()
		s.broadcastLocked()
		return true
	}
	s.broadcastLocked()
	return false
}

// RunTimer drives the countdown at 1 Hz until the session expires, submits,
// closes, or ctx is cancelled. When the countdown first reaches zero it
// forces submission exactly once. No goroutine is started for untimed
// sessions.
func (s *Session) RunTimer(ctx context.Context) {
	s.mu.Lock()
	if !s.timed || s.closed {
		s.mu.Unlock()
		return
	}
	timerCtx, cancel := context.WithCancel(ctx)
	s.cancelTimer = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-timerCtx.Done():
				return
			case <-ticker.C:
				if s.Tick() {
					if _, err := s.Submit(context.Background()); err != nil {
						log.Printf("timed submission for quiz %s failed: %v", s.quizID, err)
					}
					return
				}
			}
		}
	}()
}

func (s *Session) stopTimerLocked() {
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
}
