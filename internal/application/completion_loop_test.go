package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

type completionScannerStub struct {
	elapsed   []Reservation
	changed   []string
	listErr   error
	bulkErr   error
	bulkCalls [][]string
}

func (s *completionScannerStub) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time) ([]Reservation, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Reservation, len(s.elapsed))
	copy(out, s.elapsed)
	return out, nil
}

func (s *completionScannerStub) CompleteAllIf(ctx context.Context, ids []string, from, to ReservationStatus, updatedAt time.Time) ([]string, error) {
	if s.bulkErr != nil {
		return nil, s.bulkErr
	}
	s.bulkCalls = append(s.bulkCalls, append([]string(nil), ids...))
	return s.changed, nil
}

func TestCompletionLoop_RunOnce(t *testing.T) {
	t.Parallel()

	first := existingReservation(StatusConfirmed)
	second := existingReservation(StatusConfirmed)
	second.ID = "res-2"
	second.UserID = "user-2"

	// res-2 was cancelled between the scan and the bulk update, so the
	// conditional transition only changes res-1.
	scanner := &completionScannerStub{
		elapsed: []Reservation{first, second},
		changed: []string{"res-1"},
	}
	notifier := &notifierStub{}
	loop := NewCompletionLoop(scanner, notifier, time.Minute, fixedNow, nil)

	if err := loop.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if len(scanner.bulkCalls) != 1 || len(scanner.bulkCalls[0]) != 2 {
		t.Fatalf("expected one bulk call with both ids, got %+v", scanner.bulkCalls)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("only actually-changed reservations may be announced, got %d events", len(notifier.events))
	}
	event := notifier.events[0]
	if event.Kind != EventReservationCompleted {
		t.Errorf("unexpected event kind %s", event.Kind)
	}
	if event.Reservation == nil || event.Reservation.ID != "res-1" {
		t.Errorf("unexpected event payload %+v", event.Reservation)
	}
	if event.Reservation.Status != StatusCompleted {
		t.Errorf("announced reservation must carry the new status, got %s", event.Reservation.Status)
	}
}

func TestCompletionLoop_RunOnce_NothingElapsed(t *testing.T) {
	t.Parallel()

	scanner := &completionScannerStub{}
	notifier := &notifierStub{}
	loop := NewCompletionLoop(scanner, notifier, time.Minute, fixedNow, nil)

	if err := loop.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if len(scanner.bulkCalls) != 0 {
		t.Error("no bulk update expected when nothing elapsed")
	}
	if len(notifier.events) != 0 {
		t.Error("no events expected on an idle tick")
	}
}

func TestCompletionLoop_RunOnce_ScanFailure(t *testing.T) {
	t.Parallel()

	scanErr := errors.New("database gone")
	loop := NewCompletionLoop(&completionScannerStub{listErr: scanErr}, &notifierStub{}, time.Minute, fixedNow, nil)

	if err := loop.RunOnce(context.Background()); !errors.Is(err, scanErr) {
		t.Fatalf("expected scan error to surface, got %v", err)
	}
}

func TestCompletionLoop_StartStop(t *testing.T) {
	t.Parallel()

	loop := NewCompletionLoop(&completionScannerStub{}, &notifierStub{}, time.Hour, fixedNow, nil)

	ctx := context.Background()
	loop.Start(ctx)
	loop.Start(ctx) // second start is a no-op
	loop.Stop()
	loop.Stop() // second stop is a no-op
}
