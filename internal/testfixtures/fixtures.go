package testfixtures

import (
	"time"

	"github.com/example/roombook/internal/application"
)

// RoomFixture builds application rooms with sensible defaults.
type RoomFixture struct {
	Room application.Room
}

// RoomOption mutates a room fixture before it is finalised.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a fixture for a projector-equipped active room.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	f := RoomFixture{Room: application.Room{
		ID:               "room-1",
		OrganizationID:   "org-1",
		Name:             "Boardroom",
		Capacity:         8,
		DisplayProjector: true,
		Active:           true,
		CreatedAt:        ReferenceTime(),
		UpdatedAt:        ReferenceTime(),
	}}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithRoomID overrides the room identifier.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.Room.ID = id }
}

// WithRoomOrganization overrides the owning organization.
func WithRoomOrganization(orgID string) RoomOption {
	return func(f *RoomFixture) { f.Room.OrganizationID = orgID }
}

// WithRoomAmenities sets the four amenity flags at once.
func WithRoomAmenities(projector, whiteboard, catering, videoConference bool) RoomOption {
	return func(f *RoomFixture) {
		f.Room.DisplayProjector = projector
		f.Room.DisplayWhiteboard = whiteboard
		f.Room.CateringAvailable = catering
		f.Room.VideoConferenceAvailable = videoConference
	}
}

// WithRoomInactive marks the room unbookable.
func WithRoomInactive() RoomOption {
	return func(f *RoomFixture) { f.Room.Active = false }
}

// ReservationFixture builds application reservations with sensible defaults.
type ReservationFixture struct {
	Reservation application.Reservation
}

// ReservationOption mutates a reservation fixture before it is finalised.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a pending one hour reservation starting one
// hour after ReferenceTime.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	start := ReferenceTime().Add(time.Hour)
	f := ReservationFixture{Reservation: application.Reservation{
		ID:             "res-1",
		RoomID:         "room-1",
		UserID:         "user-1",
		OrganizationID: "org-1",
		Agenda:         "weekly sync",
		Start:          start,
		End:            start.Add(time.Hour),
		Status:         application.StatusPending,
		CreatedAt:      ReferenceTime(),
		UpdatedAt:      ReferenceTime(),
	}}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithReservationID overrides the reservation identifier.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) { f.Reservation.ID = id }
}

// WithReservationRoom overrides the booked room.
func WithReservationRoom(roomID string) ReservationOption {
	return func(f *ReservationFixture) { f.Reservation.RoomID = roomID }
}

// WithReservationOwner overrides the booking user.
func WithReservationOwner(userID string) ReservationOption {
	return func(f *ReservationFixture) { f.Reservation.UserID = userID }
}

// WithReservationSlot overrides the half-open booking interval.
func WithReservationSlot(start, end time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.Reservation.Start = start
		f.Reservation.End = end
	}
}

// WithReservationStatus overrides the lifecycle status.
func WithReservationStatus(status application.ReservationStatus) ReservationOption {
	return func(f *ReservationFixture) { f.Reservation.Status = status }
}

// WithReservationAmenities sets the required amenity list.
func WithReservationAmenities(amenities ...string) ReservationOption {
	return func(f *ReservationFixture) { f.Reservation.RequiredAmenities = amenities }
}

// WithReservationAttendees sets the internal attendee list.
func WithReservationAttendees(userIDs ...string) ReservationOption {
	return func(f *ReservationFixture) { f.Reservation.InternalAttendees = userIDs }
}

// AdminPrincipal returns an administrator principal in org-1.
func AdminPrincipal() application.Principal {
	return application.Principal{UserID: "admin-1", OrganizationID: "org-1", Role: application.RoleAdmin}
}

// MemberPrincipal returns a regular member principal in org-1.
func MemberPrincipal() application.Principal {
	return application.Principal{UserID: "user-1", OrganizationID: "org-1", Role: application.RoleMember}
}
