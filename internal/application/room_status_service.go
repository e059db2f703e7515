package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/roombook/internal/booking"
)

// OccupancyScanner exposes the reservation query derived occupancy is
// computed from.
type OccupancyScanner interface {
	ListConfirmedActiveAt(ctx context.Context, at time.Time) ([]Reservation, error)
}

// RoomStatusService answers on-demand occupancy queries. Occupancy is a
// derived view, never persisted: a room is occupied at T iff a confirmed
// reservation covers T.
type RoomStatusService struct {
	rooms        RoomRepository
	reservations OccupancyScanner
	now          func() time.Time
	logger       *slog.Logger
}

// NewRoomStatusService wires dependencies for occupancy queries.
func NewRoomStatusService(rooms RoomRepository, reservations OccupancyScanner, now func() time.Time, logger *slog.Logger) *RoomStatusService {
	if now == nil {
		now = time.Now
	}
	return &RoomStatusService{rooms: rooms, reservations: reservations, now: now, logger: defaultLogger(logger)}
}

// GetRoomStatus reports whether a single room is occupied at the current instant.
func (s *RoomStatusService) GetRoomStatus(ctx context.Context, principal Principal, roomID string) (RoomStatus, error) {
	if s == nil {
		return RoomStatus{}, fmt.Errorf("RoomStatusService is nil")
	}
	if s.rooms == nil || s.reservations == nil {
		return RoomStatus{}, fmt.Errorf("room status dependencies not configured")
	}

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return RoomStatus{}, mapRoomRepoError(err)
	}
	if room.OrganizationID != principal.OrganizationID {
		return RoomStatus{}, ErrNotFound
	}

	now := s.now()
	active, err := s.reservations.ListConfirmedActiveAt(ctx, now)
	if err != nil {
		return RoomStatus{}, mapReservationRepoError(err)
	}

	return RoomStatus{
		RoomID:   roomID,
		Occupied: booking.OccupiedAt(intervalsForRoom(active, roomID), now),
	}, nil
}

// ListRoomStatuses derives the occupancy of every room in the principal's
// organization at the current instant.
func (s *RoomStatusService) ListRoomStatuses(ctx context.Context, principal Principal) ([]RoomStatus, error) {
	if s == nil {
		return nil, fmt.Errorf("RoomStatusService is nil")
	}
	if s.rooms == nil || s.reservations == nil {
		return nil, fmt.Errorf("room status dependencies not configured")
	}

	rooms, err := s.rooms.ListRooms(ctx, principal.OrganizationID)
	if err != nil {
		return nil, mapRoomRepoError(err)
	}
	if len(rooms) == 0 {
		return nil, nil
	}

	now := s.now()
	active, err := s.reservations.ListConfirmedActiveAt(ctx, now)
	if err != nil {
		return nil, mapReservationRepoError(err)
	}

	statuses := make([]RoomStatus, 0, len(rooms))
	for _, room := range rooms {
		statuses = append(statuses, RoomStatus{
			RoomID:   room.ID,
			Occupied: booking.OccupiedAt(intervalsForRoom(active, room.ID), now),
		})
	}

	return statuses, nil
}

func intervalsForRoom(reservations []Reservation, roomID string) []booking.Interval {
	var intervals []booking.Interval
	for _, reservation := range reservations {
		if reservation.RoomID != roomID {
			continue
		}
		intervals = append(intervals, booking.Interval{
			ReservationID: reservation.ID,
			RoomID:        reservation.RoomID,
			Start:         reservation.Start,
			End:           reservation.End,
		})
	}
	return intervals
}
