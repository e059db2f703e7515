package application

import "time"

// Role values carried by a Principal.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID         string
	OrganizationID string
	Role           string
}

// IsAdmin reports whether the principal carries the administrator role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// ReservationStatus enumerates the lifecycle states of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
)

// KnownStatus reports whether the value is one of the reservation statuses.
func KnownStatus(value ReservationStatus) bool {
	switch value {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// CanTransition enforces the reservation status table: pending may become
// confirmed or cancelled, confirmed may become completed or cancelled,
// completed and cancelled are terminal.
func CanTransition(from, to ReservationStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// Room represents a bookable meeting room.
type Room struct {
	ID                       string
	OrganizationID           string
	Name                     string
	Capacity                 int
	DisplayProjector         bool
	DisplayWhiteboard        bool
	CateringAvailable        bool
	VideoConferenceAvailable bool
	Active                   bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Name                     string
	Capacity                 int
	DisplayProjector         bool
	DisplayWhiteboard        bool
	CateringAvailable        bool
	VideoConferenceAvailable bool
	Active                   bool
}

// CreateRoomParams bundles the acting principal with room input.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// UpdateRoomParams identifies the room to update along with new fields.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Input     RoomInput
}

// Reservation represents a persisted booking on a room.
type Reservation struct {
	ID                string
	RoomID            string
	UserID            string
	OrganizationID    string
	Agenda            string
	Start             time.Time
	End               time.Time
	Status            ReservationStatus
	InternalAttendees []string
	RequiredAmenities []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReservationInput captures caller provided reservation fields.
type ReservationInput struct {
	RoomID            string
	Agenda            string
	Start             time.Time
	End               time.Time
	InternalAttendees []string
	RequiredAmenities []string
}

// CreateReservationParams bundles the acting principal with booking input.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// UpdateReservationParams identifies the reservation to update.
type UpdateReservationParams struct {
	Principal     Principal
	ReservationID string
	Input         ReservationInput
}

// UpdateReservationStatusParams carries an admin status transition.
type UpdateReservationStatusParams struct {
	Principal     Principal
	ReservationID string
	Status        ReservationStatus
}

// ListReservationsParams narrows reservation listings.
type ListReservationsParams struct {
	Principal   Principal
	RoomID      string
	UserID      string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// RoomStatus is the derived occupancy view of a single room.
type RoomStatus struct {
	RoomID   string
	Occupied bool
}

// User represents an organization member.
type User struct {
	ID             string
	OrganizationID string
	Email          string
	DisplayName    string
	Role           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserInput captures caller provided user fields.
type UserInput struct {
	Email       string
	DisplayName string
	Role        string
	Password    string
}

// CreateUserParams bundles the acting principal with user input.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// Session represents an authentication session issued at login.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}
