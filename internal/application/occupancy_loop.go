package application

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// OccupancyLoop recomputes the full room occupancy state on every tick and
// diffs it against the previous tick's snapshot, emitting a status event
// only for rooms whose occupancy changed. Recomputing the whole state
// rather than watching tick-window boundary crossings means a missed tick
// or a process restart cannot lose a transition; at worst the first tick
// after a restart re-announces rooms that are currently occupied.
type OccupancyLoop struct {
	reservations OccupancyScanner
	notifier     Notifier
	interval     time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	snapshot map[string]string // roomID -> organizationID while occupied
}

// DefaultOccupancyInterval is the tick cadence when none is configured.
const DefaultOccupancyInterval = time.Minute

// NewOccupancyLoop constructs the loop; it does not start ticking until Start.
func NewOccupancyLoop(reservations OccupancyScanner, notifier Notifier, interval time.Duration, now func() time.Time, logger *slog.Logger) *OccupancyLoop {
	if interval <= 0 {
		interval = DefaultOccupancyInterval
	}
	if now == nil {
		now = time.Now
	}
	return &OccupancyLoop{
		reservations: reservations,
		notifier:     notifier,
		interval:     interval,
		now:          now,
		logger:       defaultLogger(logger).With("service", "OccupancyLoop"),
		snapshot:     make(map[string]string),
	}
}

// Start launches the background ticker. Starting a running loop is a no-op.
func (l *OccupancyLoop) Start(ctx context.Context) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.logger.InfoContext(ctx, "occupancy loop already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(runCtx, l.done)
	l.logger.InfoContext(ctx, "occupancy loop started", "interval", l.interval)
}

// Stop halts the ticker and waits for any in-flight tick to finish.
// Stopping a stopped loop is a no-op.
func (l *OccupancyLoop) Stop() {
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
		l.logger.Info("occupancy loop already stopped")
		return
	}

	cancel()
	<-done
	l.logger.Info("occupancy loop stopped")
}

func (l *OccupancyLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.RunOnce(ctx); err != nil {
				l.logger.ErrorContext(ctx, "occupancy tick failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single occupancy reconciliation tick.
func (l *OccupancyLoop) RunOnce(ctx context.Context) error {
	if l == nil || l.reservations == nil {
		return nil
	}

	now := l.now()
	active, err := l.reservations.ListConfirmedActiveAt(ctx, now)
	if err != nil {
		return err
	}

	current := make(map[string]string, len(active))
	for _, reservation := range active {
		current[reservation.RoomID] = reservation.OrganizationID
	}

	l.mu.Lock()
	previous := l.snapshot
	l.snapshot = current
	l.mu.Unlock()

	for roomID, organizationID := range current {
		if _, wasOccupied := previous[roomID]; wasOccupied {
			continue
		}
		l.emit(ctx, roomID, organizationID, true)
	}

	for roomID, organizationID := range previous {
		if _, stillOccupied := current[roomID]; stillOccupied {
			continue
		}
		l.emit(ctx, roomID, organizationID, false)
	}

	return nil
}

func (l *OccupancyLoop) emit(ctx context.Context, roomID, organizationID string, occupied bool) {
	if l.notifier == nil {
		return
	}

	status := "free"
	if occupied {
		status = "occupied"
	}
	l.logger.InfoContext(ctx, "room occupancy changed", "room_id", roomID, "status", status)

	l.notifier.Notify(ctx, Event{
		Kind:           EventRoomStatusUpdate,
		OrganizationID: organizationID,
		RoomStatus:     &RoomStatus{RoomID: roomID, Occupied: occupied},
	})
}
