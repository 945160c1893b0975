/*
scheduler.go - Periodic due-payout sweeper

PURPOSE:
  Runs the payout engine's due-item sweep on a fixed interval so locks past
  their unlock date and auto-payout schedules past their scheduled date get
  settled without user interaction.

DESIGN:
  - One background goroutine on a time.Ticker
  - Sweeps once immediately on Start, then every interval
  - Every completion is an exactly-once transition in the engine, so an
    overlapping manual completion (or a second process) is harmless: the
    loser is counted as skipped

USAGE:
  scheduler := NewPayoutScheduler(engine, log, time.Hour)
  scheduler.Start()
  defer scheduler.Stop()

SEE ALSO:
  - vault/payout.go: ScanAndCompleteDue
  - handlers.go: TriggerScan (manual sweep endpoint)
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pocketvault/ledger-engine/vault"
)

// PayoutScheduler drives the periodic due-payout sweep.
type PayoutScheduler struct {
	Engine   *vault.PayoutEngine
	Interval time.Duration

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayoutScheduler creates a scheduler. A non-positive interval defaults
// to one hour.
func NewPayoutScheduler(engine *vault.PayoutEngine, log *zap.Logger, interval time.Duration) *PayoutScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PayoutScheduler{
		Engine:   engine,
		Interval: interval,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start begins the background sweep loop. Safe to call once.
func (s *PayoutScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)
	go s.run()

	s.log.Info("payout scheduler started", zap.Duration("interval", s.Interval))
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *PayoutScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil

	s.log.Info("payout scheduler stopped")
}

// RunNow performs one sweep synchronously.
func (s *PayoutScheduler) RunNow(ctx context.Context) (vault.ScanResult, error) {
	return s.Engine.ScanAndCompleteDue(ctx)
}

func (s *PayoutScheduler) run() {
	defer s.wg.Done()

	s.sweep()
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *PayoutScheduler) sweep() {
	res, err := s.Engine.ScanAndCompleteDue(context.Background())
	if err != nil {
		s.log.Error("due payout sweep failed", zap.Error(err))
		return
	}
	if res.Failed > 0 {
		s.log.Warn("due payout sweep had failures",
			zap.Int("failed", res.Failed),
			zap.Int("locks", res.LocksCompleted),
			zap.Int("schedules", res.SchedulesCompleted))
	}
}
