package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, organizationID string) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context, organizationID string) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// ReservationFilter narrows reservation queries.
type ReservationFilter struct {
	OrganizationID string
	RoomID         string
	UserID         string
	Statuses       []string
	StartsAfter    *time.Time
	EndsBefore     *time.Time
}

// ReservationRepository stores reservations and the temporal queries the
// availability checker and the reconciliation loops depend on.
//
// CreateConflictFree and UpdateConflictFree run the half-open overlap
// check against non-cancelled rows and the write inside a single
// transaction; they return ErrSlotTaken when the slot is already claimed.
// UpdateConflictFree never writes the status column and is conditional on
// reservation.Status matching the stored row, returning ErrNotFound when a
// concurrent transition moved the reservation on. A plain availability
// probe goes through ListOverlapping.
type ReservationRepository interface {
	CreateConflictFree(ctx context.Context, reservation Reservation) error
	UpdateConflictFree(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)

	// ListOverlapping returns non-cancelled reservations for the room whose
	// [start, end) interval intersects the supplied one, excluding the
	// reservation with excludeID when non-empty.
	ListOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]Reservation, error)

	// ListConfirmedEndedBefore returns confirmed reservations whose end time
	// is strictly before the cutoff. Used by the completion loop.
	ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time) ([]Reservation, error)

	// ListConfirmedActiveAt returns confirmed reservations covering the
	// instant (start <= at <= end). Used for derived room occupancy.
	ListConfirmedActiveAt(ctx context.Context, at time.Time) ([]Reservation, error)

	// UpdateStatusIf transitions a single reservation from one status to
	// another, failing with ErrNotFound when the row is absent or no longer
	// in the expected status. Stale reads lose the race harmlessly.
	UpdateStatusIf(ctx context.Context, id, fromStatus, toStatus string, updatedAt time.Time) error

	// CompleteAllIf bulk-transitions the identified reservations from
	// fromStatus to toStatus and reports which ids actually changed.
	CompleteAllIf(ctx context.Context, ids []string, fromStatus, toStatus string, updatedAt time.Time) ([]string, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
