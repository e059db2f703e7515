package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newRoomStatusService(rooms *roomRepoStub, scanner *occupancyScannerStub) *RoomStatusService {
	return NewRoomStatusService(rooms, scanner, fixedNow, nil)
}

func TestRoomStatusService_GetRoomStatus(t *testing.T) {
	t.Parallel()

	t.Run("occupied", func(t *testing.T) {
		t.Parallel()

		active := existingReservation(StatusConfirmed)
		active.Start = testNow.Add(-30 * time.Minute)
		active.End = testNow.Add(30 * time.Minute)

		svc := newRoomStatusService(&roomRepoStub{room: activeRoom()}, &occupancyScannerStub{active: []Reservation{active}})

		status, err := svc.GetRoomStatus(context.Background(), memberPrincipal(), "room-1")
		if err != nil {
			t.Fatalf("GetRoomStatus failed: %v", err)
		}
		if !status.Occupied {
			t.Error("expected room to be occupied")
		}
	})

	t.Run("free when only other rooms are busy", func(t *testing.T) {
		t.Parallel()

		active := existingReservation(StatusConfirmed)
		active.RoomID = "room-9"
		active.Start = testNow.Add(-30 * time.Minute)
		active.End = testNow.Add(30 * time.Minute)

		svc := newRoomStatusService(&roomRepoStub{room: activeRoom()}, &occupancyScannerStub{active: []Reservation{active}})

		status, err := svc.GetRoomStatus(context.Background(), memberPrincipal(), "room-1")
		if err != nil {
			t.Fatalf("GetRoomStatus failed: %v", err)
		}
		if status.Occupied {
			t.Error("expected room to be free")
		}
	})

	t.Run("unknown room", func(t *testing.T) {
		t.Parallel()

		svc := newRoomStatusService(&roomRepoStub{}, &occupancyScannerStub{})

		_, err := svc.GetRoomStatus(context.Background(), memberPrincipal(), "room-1")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("foreign organization", func(t *testing.T) {
		t.Parallel()

		room := activeRoom()
		room.OrganizationID = "org-2"
		svc := newRoomStatusService(&roomRepoStub{room: room}, &occupancyScannerStub{})

		_, err := svc.GetRoomStatus(context.Background(), memberPrincipal(), "room-1")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRoomStatusService_ListRoomStatuses(t *testing.T) {
	t.Parallel()

	busyRoom := activeRoom()
	freeRoom := activeRoom()
	freeRoom.ID = "room-2"
	freeRoom.Name = "Huddle"

	active := existingReservation(StatusConfirmed)
	active.Start = testNow.Add(-30 * time.Minute)
	active.End = testNow.Add(30 * time.Minute)

	svc := newRoomStatusService(
		&roomRepoStub{list: []Room{busyRoom, freeRoom}},
		&occupancyScannerStub{active: []Reservation{active}},
	)

	statuses, err := svc.ListRoomStatuses(context.Background(), memberPrincipal())
	if err != nil {
		t.Fatalf("ListRoomStatuses failed: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}

	byRoom := make(map[string]bool, len(statuses))
	for _, status := range statuses {
		byRoom[status.RoomID] = status.Occupied
	}
	if !byRoom["room-1"] {
		t.Error("expected room-1 occupied")
	}
	if byRoom["room-2"] {
		t.Error("expected room-2 free")
	}
}
