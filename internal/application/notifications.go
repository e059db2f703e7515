package application

import "context"

// EventKind names a realtime notification pushed to connected clients.
type EventKind string

const (
	EventNewReservationRequest   EventKind = "newReservationRequest"
	EventReservationStatusUpdate EventKind = "reservationStatusUpdate"
	EventReservationUpdated      EventKind = "reservationUpdated"
	EventReservationCancelled    EventKind = "reservationCancelled"
	EventReservationCompleted    EventKind = "reservationCompleted"
	EventRoomUpdated             EventKind = "roomUpdated"
	EventRoomStatusUpdate        EventKind = "roomStatusUpdate"
)

// Event is a domain notification handed to the fan-out after a state
// change has committed. Routing: TargetUserID narrows delivery to a single
// user's session, AdminOnly narrows to administrators, otherwise every
// connected client of the organization receives it.
type Event struct {
	Kind           EventKind
	OrganizationID string
	TargetUserID   string
	AdminOnly      bool
	Reservation    *Reservation
	Room           *Room
	RoomStatus     *RoomStatus
	Message        string
}

// Notifier pushes events to connected clients. Delivery is best-effort:
// implementations must swallow transport failures so a failed notification
// never unwinds the committed operation that produced it.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

func (s *ReservationService) notify(ctx context.Context, event Event) {
	if s == nil || s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event)
}
