package persistence

import "time"

// User represents an account belonging to an organization.
type User struct {
	ID             string
	OrganizationID string
	Email          string
	DisplayName    string
	Role           string
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
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

// Reservation represents a booked time slot on a room, including the
// attendee and required-amenity link rows.
type Reservation struct {
	ID                string
	RoomID            string
	UserID            string
	OrganizationID    string
	Agenda            string
	Start             time.Time
	End               time.Time
	Status            string
	InternalAttendees []string
	RequiredAmenities []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
