package application

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CompletionScanner exposes the reservation queries and bulk transition
// used by the completion loop.
type CompletionScanner interface {
	ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time) ([]Reservation, error)
	CompleteAllIf(ctx context.Context, ids []string, from, to ReservationStatus, updatedAt time.Time) ([]string, error)
}

// CompletionLoop is the timer-driven reconciliation process that moves
// confirmed reservations to completed once their end time has elapsed.
// The bulk status update commits before any notification is emitted, and
// the transition is conditional on status=confirmed so a concurrent cancel
// wins harmlessly.
type CompletionLoop struct {
	reservations CompletionScanner
	notifier     Notifier
	interval     time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// DefaultCompletionInterval is the tick cadence when none is configured.
const DefaultCompletionInterval = time.Minute

// NewCompletionLoop constructs the loop; it does not start ticking until Start.
func NewCompletionLoop(reservations CompletionScanner, notifier Notifier, interval time.Duration, now func() time.Time, logger *slog.Logger) *CompletionLoop {
	if interval <= 0 {
		interval = DefaultCompletionInterval
	}
	if now == nil {
		now = time.Now
	}
	return &CompletionLoop{
		reservations: reservations,
		notifier:     notifier,
		interval:     interval,
		now:          now,
		logger:       defaultLogger(logger).With("service", "CompletionLoop"),
	}
}

// Start launches the background ticker. Starting a running loop is a no-op.
func (l *CompletionLoop) Start(ctx context.Context) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.logger.InfoContext(ctx, "completion loop already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(runCtx, l.done)
	l.logger.InfoContext(ctx, "completion loop started", "interval", l.interval)
}

// Stop halts the ticker and waits for any in-flight tick to finish.
// Stopping a stopped loop is a no-op.
func (l *CompletionLoop) Stop() {
	if l == nil {
		return
	}
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	if cancel == nil {
		l.logger.Info("completion loop already stopped")
		return
	}

	cancel()
	<-done
	l.logger.Info("completion loop stopped")
}

func (l *CompletionLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.RunOnce(ctx); err != nil {
				l.logger.ErrorContext(ctx, "completion tick failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single reconciliation tick: every confirmed
// reservation whose end time is behind now is transitioned to completed,
// then a completion event is emitted per reservation that actually
// changed. Notification failures never roll back the transition.
func (l *CompletionLoop) RunOnce(ctx context.Context) error {
	if l == nil || l.reservations == nil {
		return nil
	}

	now := l.now()
	elapsed, err := l.reservations.ListConfirmedEndedBefore(ctx, now)
	if err != nil {
		return err
	}
	if len(elapsed) == 0 {
		return nil
	}

	ids := make([]string, 0, len(elapsed))
	byID := make(map[string]Reservation, len(elapsed))
	for _, reservation := range elapsed {
		ids = append(ids, reservation.ID)
		byID[reservation.ID] = reservation
	}

	completed, err := l.reservations.CompleteAllIf(ctx, ids, StatusConfirmed, StatusCompleted, now)
	if err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "reservations completed", "count", len(completed))

	if l.notifier == nil {
		return nil
	}

	for _, id := range completed {
		reservation, ok := byID[id]
		if !ok {
			continue
		}
		reservation.Status = StatusCompleted
		reservation.UpdatedAt = now
		l.notifier.Notify(ctx, Event{
			Kind:           EventReservationCompleted,
			OrganizationID: reservation.OrganizationID,
			Reservation:    &reservation,
			Message:        "Reservation was completed",
		})
	}

	return nil
}
