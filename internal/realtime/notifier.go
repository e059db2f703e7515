package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/example/roombook/internal/application"
)

// envelope is the outer frame of every pushed notification.
type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type reservationPayload struct {
	ReservationView
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

type roomPayload struct {
	RoomView
	Timestamp string `json:"timestamp"`
}

type roomStatusPayload struct {
	RoomID    string `json:"roomId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Notifier fans committed domain events out to connected websocket
// clients. Delivery is best-effort by contract: marshal failures are
// logged and dropped, slow clients lose frames instead of blocking the
// caller, and nothing here ever returns an error to the service layer.
type Notifier struct {
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewNotifier builds a fan-out over the given registry.
func NewNotifier(registry *Registry, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Notify implements application.Notifier.
func (n *Notifier) Notify(ctx context.Context, event application.Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("notification fan-out panicked", "event", string(event.Kind), "panic", r)
		}
	}()

	frame, err := n.encode(event)
	if err != nil {
		n.logger.Error("failed to encode notification",
			"event", string(event.Kind), "error", err)
		return
	}

	clients := n.registry.Resolve(event.OrganizationID, event.TargetUserID, event.AdminOnly)
	dropped := 0
	for _, client := range clients {
		if !client.Enqueue(frame) {
			dropped++
		}
	}
	if dropped > 0 {
		n.logger.Warn("dropped notification for slow clients",
			"event", string(event.Kind), "dropped", dropped, "recipients", len(clients))
	}
}

func (n *Notifier) encode(event application.Event) ([]byte, error) {
	stamp := formatTime(n.now())

	var payload any
	switch {
	case event.Reservation != nil:
		payload = reservationPayload{
			ReservationView: NewReservationView(*event.Reservation),
			Message:         event.Message,
			Timestamp:       stamp,
		}
	case event.Room != nil:
		payload = roomPayload{
			RoomView:  NewRoomView(*event.Room),
			Timestamp: stamp,
		}
	case event.RoomStatus != nil:
		payload = roomStatusPayload{
			RoomID:    event.RoomStatus.RoomID,
			Status:    RoomStatusLabel(event.RoomStatus.Occupied),
			Timestamp: stamp,
		}
	default:
		payload = map[string]string{"timestamp": stamp}
	}

	return json.Marshal(envelope{Event: string(event.Kind), Payload: payload})
}
