package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tenantcore/backend/internal/application/billing"
	"go.uber.org/zap"
)

// Sweep scheduler errors
var (
	ErrSweepNotRunning = errors.New("ledger sweep scheduler is not running")
	ErrInvalidConfig   = errors.New("invalid ledger sweep configuration")
)

// PendingSweeper reprocesses billing events stuck in received
type PendingSweeper interface {
	SweepPending(ctx context.Context, minAge time.Duration, limit int) (*billing.SweepResult, error)
}

// LedgerSweepScheduler periodically retries received billing events whose redelivery never arrived
type LedgerSweepScheduler struct {
	sweeper   PendingSweeper
	logger    *zap.Logger
	config    LedgerSweepSchedulerConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// LedgerSweepSchedulerConfig holds configuration for the ledger sweep scheduler
type LedgerSweepSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// Interval between two sweeps
	Interval time.Duration

	// MinAge is how long a record must sit in received before it is swept
	MinAge time.Duration

	// BatchSize caps the records reprocessed per sweep
	BatchSize int

	// SweepTimeout is the maximum time for one sweep
	SweepTimeout time.Duration
}

// DefaultLedgerSweepSchedulerConfig returns default configuration
func DefaultLedgerSweepSchedulerConfig() LedgerSweepSchedulerConfig {
	return LedgerSweepSchedulerConfig{
		Enabled:      false,
		Interval:     5 * time.Minute,
		MinAge:       15 * time.Minute,
		BatchSize:    50,
		SweepTimeout: 2 * time.Minute,
	}
}

// Validate checks the configuration
func (c LedgerSweepSchedulerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.MinAge < 0 {
		return fmt.Errorf("%w: min age cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// NewLedgerSweepScheduler creates a new ledger sweep scheduler
func NewLedgerSweepScheduler(
	sweeper PendingSweeper,
	logger *zap.Logger,
	config LedgerSweepSchedulerConfig,
) *LedgerSweepScheduler {
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = DefaultLedgerSweepSchedulerConfig().SweepTimeout
	}
	return &LedgerSweepScheduler{
		sweeper: sweeper,
		logger:  logger,
		config:  config,
	}
}

// Start starts the sweep loop
func (s *LedgerSweepScheduler) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Ledger sweep scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Ledger sweep scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("min_age", s.config.MinAge),
		zap.Int("batch_size", s.config.BatchSize),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *LedgerSweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Ledger sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Ledger sweep scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *LedgerSweepScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Ledger sweep loop stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *LedgerSweepScheduler) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	startTime := time.Now()
	result, err := s.sweeper.SweepPending(sweepCtx, s.config.MinAge, s.config.BatchSize)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Ledger sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	if result.Scanned == 0 {
		s.logger.Debug("Ledger sweep found nothing to retry")
		return
	}

	s.logger.Info("Ledger sweep completed",
		zap.Duration("duration", duration),
		zap.Int("scanned", result.Scanned),
		zap.Int("applied", result.Applied),
		zap.Int("already_seen", result.AlreadySeen),
		zap.Int("rejected", result.Rejected),
		zap.Int("failed", result.Failed),
	)
}

// TriggerImmediateSweep runs one sweep now
func (s *LedgerSweepScheduler) TriggerImmediateSweep(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSweepNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Triggering immediate ledger sweep")

	go func() {
		defer s.wg.Done()
		s.sweep(ctx)
	}()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *LedgerSweepScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
