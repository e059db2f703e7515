package realtime

import (
	"time"

	"github.com/example/roombook/internal/application"
)

// ReservationView is the single, always fully populated JSON shape a
// reservation takes whenever it crosses the process boundary. Every
// consumer (REST handlers and the notification fan-out) renders through
// this type so payloads are never accidentally partial.
type ReservationView struct {
	ID                string   `json:"id"`
	RoomID            string   `json:"roomId"`
	UserID            string   `json:"userId"`
	OrganizationID    string   `json:"organizationId"`
	Agenda            string   `json:"agenda"`
	StartTime         string   `json:"startTime"`
	EndTime           string   `json:"endTime"`
	Status            string   `json:"status"`
	InternalAttendees []string `json:"internalAttendees"`
	RequiredAmenities []string `json:"requiredAmenities"`
	CreatedAt         string   `json:"createdAt"`
	UpdatedAt         string   `json:"updatedAt"`
}

// RoomView is the JSON shape of a room record.
type RoomView struct {
	ID                       string `json:"id"`
	OrganizationID           string `json:"organizationId"`
	Name                     string `json:"name"`
	Capacity                 int    `json:"capacity"`
	DisplayProjector         bool   `json:"displayProjector"`
	DisplayWhiteboard        bool   `json:"displayWhiteboard"`
	CateringAvailable        bool   `json:"cateringAvailable"`
	VideoConferenceAvailable bool   `json:"videoConferenceAvailable"`
	Active                   bool   `json:"active"`
	CreatedAt                string `json:"createdAt"`
	UpdatedAt                string `json:"updatedAt"`
}

// NewReservationView converts a domain reservation to its wire shape.
func NewReservationView(reservation application.Reservation) ReservationView {
	attendees := reservation.InternalAttendees
	if attendees == nil {
		attendees = []string{}
	}
	amenities := reservation.RequiredAmenities
	if amenities == nil {
		amenities = []string{}
	}
	return ReservationView{
		ID:                reservation.ID,
		RoomID:            reservation.RoomID,
		UserID:            reservation.UserID,
		OrganizationID:    reservation.OrganizationID,
		Agenda:            reservation.Agenda,
		StartTime:         formatTime(reservation.Start),
		EndTime:           formatTime(reservation.End),
		Status:            string(reservation.Status),
		InternalAttendees: attendees,
		RequiredAmenities: amenities,
		CreatedAt:         formatTime(reservation.CreatedAt),
		UpdatedAt:         formatTime(reservation.UpdatedAt),
	}
}

// NewRoomView converts a domain room to its wire shape.
func NewRoomView(room application.Room) RoomView {
	return RoomView{
		ID:                       room.ID,
		OrganizationID:           room.OrganizationID,
		Name:                     room.Name,
		Capacity:                 room.Capacity,
		DisplayProjector:         room.DisplayProjector,
		DisplayWhiteboard:        room.DisplayWhiteboard,
		CateringAvailable:        room.CateringAvailable,
		VideoConferenceAvailable: room.VideoConferenceAvailable,
		Active:                   room.Active,
		CreatedAt:                formatTime(room.CreatedAt),
		UpdatedAt:                formatTime(room.UpdatedAt),
	}
}

// RoomStatusLabel renders derived occupancy as its wire value.
func RoomStatusLabel(occupied bool) string {
	if occupied {
		return "occupied"
	}
	return "free"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
