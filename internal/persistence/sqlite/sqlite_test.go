package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/roombook/internal/persistence"
)

func setupPool(t *testing.T) *ConnectionPool {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "roombook_test.db")
	pool, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})

	if err := Migrate(context.Background(), pool); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return pool
}

var testBase = time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

func seedRoom(t *testing.T, pool *ConnectionPool, id, orgID string) {
	t.Helper()
	repo := NewRoomRepository(pool)
	err := repo.CreateRoom(context.Background(), persistence.Room{
		ID:               id,
		OrganizationID:   orgID,
		Name:             "Room " + id,
		Capacity:         6,
		DisplayProjector: true,
		Active:           true,
		CreatedAt:        testBase,
		UpdatedAt:        testBase,
	})
	if err != nil {
		t.Fatalf("seed room %s: %v", id, err)
	}
}

func seedUser(t *testing.T, pool *ConnectionPool, id, orgID string) {
	t.Helper()
	repo := NewUserRepository(pool)
	err := repo.CreateUser(context.Background(), persistence.User{
		ID:             id,
		OrganizationID: orgID,
		Email:          id + "@example.com",
		DisplayName:    "User " + id,
		Role:           "member",
		PasswordHash:   "$argon2id$fake",
		CreatedAt:      testBase,
		UpdatedAt:      testBase,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func makeReservation(id string, start, end time.Time, status string) persistence.Reservation {
	return persistence.Reservation{
		ID:             id,
		RoomID:         "room1",
		UserID:         "user1",
		OrganizationID: "org1",
		Agenda:         "meeting " + id,
		Start:          start,
		End:            end,
		Status:         status,
		CreatedAt:      testBase,
		UpdatedAt:      testBase,
	}
}

func TestRoomRepository_CreateAndGet(t *testing.T) {
	pool := setupPool(t)
	repo := NewRoomRepository(pool)
	ctx := context.Background()

	room := persistence.Room{
		ID:                       "room1",
		OrganizationID:           "org1",
		Name:                     "Boardroom",
		Capacity:                 10,
		DisplayProjector:         true,
		VideoConferenceAvailable: true,
		Active:                   true,
		CreatedAt:                testBase,
		UpdatedAt:                testBase,
	}
	if err := repo.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	retrieved, err := repo.GetRoom(ctx, "room1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if retrieved.Name != "Boardroom" || retrieved.Capacity != 10 {
		t.Errorf("unexpected room %+v", retrieved)
	}
	if !retrieved.DisplayProjector || !retrieved.VideoConferenceAvailable {
		t.Errorf("amenity flags lost: %+v", retrieved)
	}
	if retrieved.DisplayWhiteboard || retrieved.CateringAvailable {
		t.Errorf("unset amenity flags set: %+v", retrieved)
	}
}

func TestRoomRepository_RejectsZeroCapacity(t *testing.T) {
	pool := setupPool(t)
	repo := NewRoomRepository(pool)

	err := repo.CreateRoom(context.Background(), persistence.Room{
		ID: "room1", OrganizationID: "org1", Name: "Tiny", Capacity: 0,
	})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestRoomRepository_ListIsOrganizationScoped(t *testing.T) {
	pool := setupPool(t)
	repo := NewRoomRepository(pool)
	ctx := context.Background()

	seedRoom(t, pool, "room1", "org1")
	seedRoom(t, pool, "room2", "org1")
	seedRoom(t, pool, "room3", "org2")

	rooms, err := repo.ListRooms(ctx, "org1")
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	for _, room := range rooms {
		if room.OrganizationID != "org1" {
			t.Errorf("foreign room leaked: %+v", room)
		}
	}
}

func TestRoomRepository_DuplicateNameInOrganization(t *testing.T) {
	pool := setupPool(t)
	repo := NewRoomRepository(pool)
	ctx := context.Background()

	first := persistence.Room{ID: "room1", OrganizationID: "org1", Name: "Boardroom", Capacity: 4, CreatedAt: testBase, UpdatedAt: testBase}
	if err := repo.CreateRoom(ctx, first); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	second := persistence.Room{ID: "room2", OrganizationID: "org1", Name: "Boardroom", Capacity: 4, CreatedAt: testBase, UpdatedAt: testBase}
	if err := repo.CreateRoom(ctx, second); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same name is fine in another organization.
	third := persistence.Room{ID: "room3", OrganizationID: "org2", Name: "Boardroom", Capacity: 4, CreatedAt: testBase, UpdatedAt: testBase}
	if err := repo.CreateRoom(ctx, third); err != nil {
		t.Fatalf("CreateRoom in other org failed: %v", err)
	}
}

func TestReservationRepository_CreateConflictFree(t *testing.T) {
	pool := setupPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedRoom(t, pool, "room1", "org1")
	seedUser(t, pool, "user1", "org1")

	first := makeReservation("res1", testBase, testBase.Add(time.Hour), "confirmed")
	first.InternalAttendees = []string{"user2", "user3"}
	first.RequiredAmenities = []string{"displayProjector"}
	if err := repo.CreateConflictFree(ctx, first); err != nil {
		t.Fatalf("CreateConflictFree failed: %v", err)
	}

	stored, err := repo.GetReservation(ctx, "res1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if len(stored.InternalAttendees) != 2 || stored.InternalAttendees[0] != "user2" {
		t.Errorf("attendees lost: %+v", stored.InternalAttendees)
	}
	if len(stored.RequiredAmenities) != 1 || stored.RequiredAmenities[0] != "displayProjector" {
		t.Errorf("amenities lost: %+v", stored.RequiredAmenities)
	}

	// An overlapping slot on the same room is rejected inside the transaction.
	overlapping := makeReservation("res2", testBase.Add(30*time.Minute), testBase.Add(90*time.Minute), "pending")
	if err := repo.CreateConflictFree(ctx, overlapping); !errors.Is(err, persistence.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// Back-to-back slots share a boundary and do not conflict.
	adjacent := makeReservation("res3", testBase.Add(time.Hour), testBase.Add(2*time.Hour), "pending")
	if err := repo.CreateConflictFree(ctx, adjacent); err != nil {
		t.Fatalf("adjacent CreateConflictFree failed: %v", err)
	}

	// A cancelled reservation frees its slot.
	if err := repo.UpdateStatusIf(ctx, "res1", "confirmed", "cancelled", testBase.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateStatusIf failed: %v", err)
	}
	reclaim := makeReservation("res4", testBase, testBase.Add(time.Hour), "pending")
	if err := repo.CreateConflictFree(ctx, reclaim); err != nil {
		t.Fatalf("expected cancelled slot to be reusable, got %v", err)
	}
}

func TestReservationRepository_UpdateConflictFree(t *testing.T) {
	pool := setupPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedRoom(t, pool, "room1", "org1")
	seedUser(t, pool, "user1", "org1")

	if err := repo.CreateConflictFree(ctx, makeReservation("res1", testBase, testBase.Add(time.Hour), "confirmed")); err != nil {
		t.Fatalf("CreateConflictFree failed: %v", err)
	}
	if err := repo.CreateConflictFree(ctx, makeReservation("res2", testBase.Add(2*time.Hour), testBase.Add(3*time.Hour), "confirmed")); err != nil {
		t.Fatalf("CreateConflictFree failed: %v", err)
	}

	// Rescheduling over the neighbour is rejected.
	moved := makeReservation("res1", testBase.Add(2*time.Hour), testBase.Add(4*time.Hour), "confirmed")
	if err := repo.UpdateConflictFree(ctx, moved); !errors.Is(err, persistence.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// Shrinking within its own slot is fine; its own row is excluded.
	shrunk := makeReservation("res1", testBase, testBase.Add(30*time.Minute), "confirmed")
	shrunk.RequiredAmenities = []string{"displayWhiteboard"}
	if err := repo.UpdateConflictFree(ctx, shrunk); err != nil {
		t.Fatalf("UpdateConflictFree failed: %v", err)
	}

	stored, err := repo.GetReservation(ctx, "res1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if !stored.End.Equal(testBase.Add(30 * time.Minute)) {
		t.Errorf("end not updated: %v", stored.End)
	}
	if len(stored.RequiredAmenities) != 1 || stored.RequiredAmenities[0] != "displayWhiteboard" {
		t.Errorf("amenity rows not replaced: %+v", stored.RequiredAmenities)
	}
}

func TestReservationRepository_UpdateConflictFreeStaleStatus(t *testing.T) {
	pool := setupPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedRoom(t, pool, "room1", "org1")
	seedUser(t, pool, "user1", "org1")

	if err := repo.CreateConflictFree(ctx, makeReservation("res1", testBase, testBase.Add(time.Hour), "pending")); err != nil {
		t.Fatalf("CreateConflictFree failed: %v", err)
	}

	// A copy read before the cancellation committed.
	stale := makeReservation("res1", testBase, testBase.Add(time.Hour), "pending")
	stale.Agenda = "rewritten after cancel"

	if err := repo.UpdateStatusIf(ctx, "res1", "pending", "cancelled", testBase); err != nil {
		t.Fatalf("UpdateStatusIf failed: %v", err)
	}

	if err := repo.UpdateConflictFree(ctx, stale); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stale status, got %v", err)
	}

	stored, err := repo.GetReservation(ctx, "res1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if stored.Status != "cancelled" {
		t.Errorf("cancelled reservation was resurrected: status = %q", stored.Status)
	}
	if stored.Agenda == stale.Agenda {
		t.Errorf("stale field update was applied: agenda = %q", stored.Agenda)
	}
}

func TestReservationRepository_TemporalQueries(t *testing.T) {
	pool := setupPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedRoom(t, pool, "room1", "org1")
	seedRoom(t, pool, "room2", "org1")
	seedUser(t, pool, "user1", "org1")

	past := makeReservation("resPast", testBase.Add(-2*time.Hour), testBase.Add(-time.Hour), "confirmed")
	active := makeReservation("resActive", testBase.Add(-30*time.Minute), testBase.Add(30*time.Minute), "confirmed")
	pending := makeReservation("resPending", testBase.Add(-time.Hour), testBase.Add(time.Hour), "pending")
	pending.RoomID = "room2"
	for _, reservation := range []persistence.Reservation{past, active, pending} {
		if err := repo.CreateConflictFree(ctx, reservation); err != nil {
			t.Fatalf("seed %s: %v", reservation.ID, err)
		}
	}

	ended, err := repo.ListConfirmedEndedBefore(ctx, testBase)
	if err != nil {
		t.Fatalf("ListConfirmedEndedBefore failed: %v", err)
	}
	if len(ended) != 1 || ended[0].ID != "resPast" {
		t.Fatalf("expected only resPast, got %+v", ended)
	}

	occupied, err := repo.ListConfirmedActiveAt(ctx, testBase)
	if err != nil {
		t.Fatalf("ListConfirmedActiveAt failed: %v", err)
	}
	if len(occupied) != 1 || occupied[0].ID != "resActive" {
		t.Fatalf("expected only resActive, got %+v", occupied)
	}

	overlapping, err := repo.ListOverlapping(ctx, "room1", testBase.Add(-90*time.Minute), testBase, "")
	if err != nil {
		t.Fatalf("ListOverlapping failed: %v", err)
	}
	if len(overlapping) != 2 {
		t.Fatalf("expected 2 overlapping, got %d", len(overlapping))
	}

	excluded, err := repo.ListOverlapping(ctx, "room1", testBase.Add(-90*time.Minute), testBase, "resPast")
	if err != nil {
		t.Fatalf("ListOverlapping with exclusion failed: %v", err)
	}
	if len(excluded) != 1 || excluded[0].ID != "resActive" {
		t.Fatalf("expected only resActive, got %+v", excluded)
	}
}

func TestReservationRepository_ConditionalUpdates(t *testing.T) {
	pool := setupPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedRoom(t, pool, "room1", "org1")
	seedUser(t, pool, "user1", "org1")

	if err := repo.CreateConflictFree(ctx, makeReservation("res1", testBase, testBase.Add(time.Hour), "pending")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Wrong expected status leaves the row untouched.
	if err := repo.UpdateStatusIf(ctx, "res1", "confirmed", "completed", testBase); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stale transition, got %v", err)
	}

	if err := repo.UpdateStatusIf(ctx, "res1", "pending", "confirmed", testBase); err != nil {
		t.Fatalf("UpdateStatusIf failed: %v", err)
	}

	stored, err := repo.GetReservation(ctx, "res1")
	if err != nil {
		t.Fatalf("GetReservation failed: %v", err)
	}
	if stored.Status != "confirmed" {
		t.Fatalf("expected confirmed, got %s", stored.Status)
	}
}

func TestReservationRepository_CompleteAllIf(t *testing.T) {
	pool := setupPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedRoom(t, pool, "room1", "org1")
	seedUser(t, pool, "user1", "org1")

	if err := repo.CreateConflictFree(ctx, makeReservation("res1", testBase, testBase.Add(time.Hour), "confirmed")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.CreateConflictFree(ctx, makeReservation("res2", testBase.Add(time.Hour), testBase.Add(2*time.Hour), "confirmed")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// res2 is completed manually before the sweep runs.
	if err := repo.UpdateStatusIf(ctx, "res2", "confirmed", "completed", testBase); err != nil {
		t.Fatalf("manual completion: %v", err)
	}

	changed, err := repo.CompleteAllIf(ctx, []string{"res1", "res2"}, "confirmed", "completed", testBase.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("CompleteAllIf failed: %v", err)
	}
	if len(changed) != 1 || changed[0] != "res1" {
		t.Fatalf("expected only res1 to change, got %+v", changed)
	}
}

func TestReservationRepository_ListFilter(t *testing.T) {
	pool := setupPool(t)
	repo := NewReservationRepository(pool)
	ctx := context.Background()

	seedRoom(t, pool, "room1", "org1")
	seedRoom(t, pool, "room2", "org1")
	seedUser(t, pool, "user1", "org1")

	early := makeReservation("resEarly", testBase, testBase.Add(time.Hour), "confirmed")
	late := makeReservation("resLate", testBase.Add(2*time.Hour), testBase.Add(3*time.Hour), "pending")
	late.RoomID = "room2"
	for _, reservation := range []persistence.Reservation{late, early} {
		if err := repo.CreateConflictFree(ctx, reservation); err != nil {
			t.Fatalf("seed %s: %v", reservation.ID, err)
		}
	}

	all, err := repo.ListReservations(ctx, persistence.ReservationFilter{OrganizationID: "org1"})
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "resEarly" {
		t.Fatalf("expected start-time ordering, got %+v", all)
	}

	byRoom, err := repo.ListReservations(ctx, persistence.ReservationFilter{OrganizationID: "org1", RoomID: "room2"})
	if err != nil {
		t.Fatalf("ListReservations by room failed: %v", err)
	}
	if len(byRoom) != 1 || byRoom[0].ID != "resLate" {
		t.Fatalf("expected only resLate, got %+v", byRoom)
	}

	byStatus, err := repo.ListReservations(ctx, persistence.ReservationFilter{OrganizationID: "org1", Statuses: []string{"confirmed"}})
	if err != nil {
		t.Fatalf("ListReservations by status failed: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != "resEarly" {
		t.Fatalf("expected only resEarly, got %+v", byStatus)
	}
}

func TestUserRepository_EmailLookupIsCaseInsensitive(t *testing.T) {
	pool := setupPool(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	seedUser(t, pool, "user1", "org1")

	user, err := repo.GetUserByEmail(ctx, "USER1@Example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if user.ID != "user1" {
		t.Fatalf("unexpected user %+v", user)
	}

	if _, err := repo.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	pool := setupPool(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	seedUser(t, pool, "user1", "org1")

	err := repo.CreateUser(ctx, persistence.User{
		ID:             "user2",
		OrganizationID: "org1",
		Email:          "user1@example.com",
		DisplayName:    "Duplicate",
		Role:           "member",
		PasswordHash:   "hash",
		CreatedAt:      testBase,
		UpdatedAt:      testBase,
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUserRepository_Update(t *testing.T) {
	pool := setupPool(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()

	seedUser(t, pool, "user1", "org1")

	stored, err := repo.GetUser(ctx, "user1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}

	stored.Email = "Renamed@Example.com"
	stored.DisplayName = "Renamed"
	stored.Role = "admin"
	stored.UpdatedAt = testBase.Add(time.Hour)
	if err := repo.UpdateUser(ctx, stored); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	updated, err := repo.GetUser(ctx, "user1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if updated.Email != "renamed@example.com" {
		t.Errorf("email not lowercased on update: %q", updated.Email)
	}
	if updated.DisplayName != "Renamed" || updated.Role != "admin" {
		t.Errorf("fields not updated: %+v", updated)
	}

	ghost := updated
	ghost.ID = "ghost"
	if err := repo.UpdateUser(ctx, ghost); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	pool := setupPool(t)
	repo := NewSessionRepository(pool)
	ctx := context.Background()

	seedUser(t, pool, "user1", "org1")

	session := persistence.Session{
		ID:        "sess1",
		UserID:    "user1",
		Token:     "token-abc",
		ExpiresAt: testBase.Add(24 * time.Hour),
		CreatedAt: testBase,
		UpdatedAt: testBase,
	}
	if _, err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	stored, err := repo.GetSession(ctx, "token-abc")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if stored.RevokedAt != nil {
		t.Fatalf("fresh session must not be revoked")
	}

	revoked, err := repo.RevokeSession(ctx, "token-abc", testBase.Add(time.Hour))
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil {
		t.Fatal("expected revoked_at to be set")
	}

	// Revoking twice is a no-op returning the already revoked session.
	again, err := repo.RevokeSession(ctx, "token-abc", testBase.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second RevokeSession failed: %v", err)
	}
	if again.RevokedAt == nil || !again.RevokedAt.Equal(testBase.Add(time.Hour)) {
		t.Fatalf("expected original revocation stamp, got %v", again.RevokedAt)
	}

	if err := repo.DeleteExpiredSessions(ctx, testBase.Add(48*time.Hour)); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if _, err := repo.GetSession(ctx, "token-abc"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected session to be purged, got %v", err)
	}
}
