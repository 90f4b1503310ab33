package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"studyhub-contest-service/internal/domain"
)

// SweepExpired force-completes every in-progress attempt whose contest
// window has closed, scoring whatever answers accumulated. Per-attempt
// failures are logged and skipped. Returns the number of attempts submitted.
func (s *ContestService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.attempts.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	submitted := 0
	for i := range expired {
		attempt := expired[i]
		if _, err := s.finalizeAttempt(ctx, &attempt, nil, true); err != nil {
			if errors.Is(err, domain.ErrAttemptCompleted) {
				// Lost the race to an explicit submit; nothing to do.
				continue
			}
			slog.Error("expiry sweep: force submit failed",
				"attempt", attempt.ID,
				"contest", attempt.ContestID,
				"error", err,
			)
			continue
		}
		submitted++
	}
	if submitted > 0 {
		slog.Info("expiry sweep completed", "submitted", submitted, "candidates", len(expired))
	}
	return submitted, nil
}

// Sweeper runs SweepExpired on a fixed interval.
type Sweeper struct {
	service  *ContestService
	interval time.Duration
}

func NewSweeper(service *ContestService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{service: service, interval: interval}
}

// Start begins the sweep loop in a goroutine; it stops when ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	slog.Info("expiry sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start so a restart never leaves stale attempts.
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.service.SweepExpired(ctx); err != nil {
		slog.Error("expiry sweep failed", "error", err)
	}
}
