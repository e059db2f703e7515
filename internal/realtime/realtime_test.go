package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/testfixtures"
)

func newTestClient(buf int) *Client {
	return NewClient(nil, buf, nil)
}

func drain(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case frame := <-c.send:
		return frame
	default:
		t.Fatal("expected a queued frame")
		return nil
	}
}

func TestRegistryResolveOrganizationWide(t *testing.T) {
	registry := NewRegistry(nil)

	admin := newTestClient(4)
	member := newTestClient(4)
	outsider := newTestClient(4)
	registry.Register(admin, "u-admin", application.RoleAdmin, "org-1")
	registry.Register(member, "u-member", application.RoleMember, "org-1")
	registry.Register(outsider, "u-out", application.RoleMember, "org-2")

	clients := registry.Resolve("org-1", "", false)
	assert.Len(t, clients, 2)
	assert.NotContains(t, clients, outsider)
}

func TestRegistryResolveAdminOnly(t *testing.T) {
	registry := NewRegistry(nil)

	admin := newTestClient(4)
	member := newTestClient(4)
	registry.Register(admin, "u-admin", application.RoleAdmin, "org-1")
	registry.Register(member, "u-member", application.RoleMember, "org-1")

	clients := registry.Resolve("org-1", "", true)
	require.Len(t, clients, 1)
	assert.Same(t, admin, clients[0])
}

func TestRegistryResolveTargetUser(t *testing.T) {
	registry := NewRegistry(nil)

	owner := newTestClient(4)
	other := newTestClient(4)
	registry.Register(owner, "u-owner", application.RoleMember, "org-1")
	registry.Register(other, "u-other", application.RoleMember, "org-1")

	clients := registry.Resolve("org-1", "u-owner", false)
	require.Len(t, clients, 1)
	assert.Same(t, owner, clients[0])

	assert.Empty(t, registry.Resolve("org-2", "u-owner", false),
		"target outside the organization must not resolve")
	assert.Empty(t, registry.Resolve("org-1", "u-absent", false))
}

func TestRegistryRegisterReplacesExistingSession(t *testing.T) {
	registry := NewRegistry(nil)

	first := newTestClient(4)
	second := newTestClient(4)
	registry.Register(first, "u-1", application.RoleMember, "org-1")
	registry.Register(second, "u-1", application.RoleMember, "org-1")

	assert.Equal(t, 1, registry.Len())
	clients := registry.Resolve("org-1", "u-1", false)
	require.Len(t, clients, 1)
	assert.Same(t, second, clients[0])

	// the replaced client's queue is closed, so enqueueing fails
	assert.False(t, first.Enqueue([]byte("x")))
}

func TestRegistryUnregisterIgnoresStaleClient(t *testing.T) {
	registry := NewRegistry(nil)

	first := newTestClient(4)
	second := newTestClient(4)
	registry.Register(first, "u-1", application.RoleMember, "org-1")
	registry.Register(second, "u-1", application.RoleMember, "org-1")

	// the old connection closing late must not evict the new session
	registry.Unregister(first)
	assert.Equal(t, 1, registry.Len())

	registry.Unregister(second)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryRefreshOnlyConfirmsBoundIdentity(t *testing.T) {
	registry := NewRegistry(nil)

	client := newTestClient(4)
	registry.Register(client, "u-1", application.RoleMember, "org-1")

	assert.True(t, registry.Refresh(client, "u-1"))
	assert.False(t, registry.Refresh(client, "u-2"), "a client must not claim another user")
	assert.False(t, registry.Refresh(newTestClient(4), "u-1"))
}

func TestClientEnqueueDropsWhenFull(t *testing.T) {
	client := newTestClient(1)

	assert.True(t, client.Enqueue([]byte("first")))
	assert.False(t, client.Enqueue([]byte("second")), "full buffer must drop, not block")

	client.Close()
	client.Close() // idempotent
	assert.False(t, client.Enqueue([]byte("after close")))
}

func TestNotifierRoutesReservationEventToTarget(t *testing.T) {
	registry := NewRegistry(nil)
	owner := newTestClient(4)
	bystander := newTestClient(4)
	registry.Register(owner, "u-owner", application.RoleMember, "org-1")
	registry.Register(bystander, "u-by", application.RoleMember, "org-1")

	notifier := NewNotifier(registry, nil)
	clock := testfixtures.NewClock(time.Time{})
	notifier.now = clock.NowFunc()

	start := testfixtures.ReferenceTime().Add(4 * time.Hour)
	notifier.Notify(context.Background(), application.Event{
		Kind:           application.EventReservationStatusUpdate,
		OrganizationID: "org-1",
		TargetUserID:   "u-owner",
		Message:        "Reservation confirmed",
		Reservation: &application.Reservation{
			ID:             "res-1",
			RoomID:         "room-1",
			UserID:         "u-owner",
			OrganizationID: "org-1",
			Agenda:         "quarterly review",
			Start:          start,
			End:            start.Add(time.Hour),
			Status:         application.StatusConfirmed,
		},
	})

	frame := drain(t, owner)
	var decoded struct {
		Event   string `json:"event"`
		Payload struct {
			ID                string   `json:"id"`
			RoomID            string   `json:"roomId"`
			Status            string   `json:"status"`
			Message           string   `json:"message"`
			InternalAttendees []string `json:"internalAttendees"`
			Timestamp         string   `json:"timestamp"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, "reservationStatusUpdate", decoded.Event)
	assert.Equal(t, "res-1", decoded.Payload.ID)
	assert.Equal(t, "room-1", decoded.Payload.RoomID)
	assert.Equal(t, "confirmed", decoded.Payload.Status)
	assert.Equal(t, "Reservation confirmed", decoded.Payload.Message)
	assert.NotNil(t, decoded.Payload.InternalAttendees, "attendee list must serialize as [], never null")
	assert.Equal(t, "2025-06-02T08:00:00Z", decoded.Payload.Timestamp)

	select {
	case <-bystander.send:
		t.Fatal("targeted event leaked to another user")
	default:
	}
}

func TestNotifierAdminOnlyEvent(t *testing.T) {
	registry := NewRegistry(nil)
	admin := newTestClient(4)
	member := newTestClient(4)
	registry.Register(admin, "u-admin", application.RoleAdmin, "org-1")
	registry.Register(member, "u-member", application.RoleMember, "org-1")

	notifier := NewNotifier(registry, nil)
	ids := testfixtures.NewIDGenerator("res")
	start := time.Now().Add(time.Hour)
	notifier.Notify(context.Background(), application.Event{
		Kind:           application.EventNewReservationRequest,
		OrganizationID: "org-1",
		AdminOnly:      true,
		Reservation: &application.Reservation{
			ID: ids.Next(), Status: application.StatusPending,
			Start: start, End: start.Add(time.Hour),
		},
	})

	frame := drain(t, admin)
	var decoded struct {
		Event string `json:"event"`
	}
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, "newReservationRequest", decoded.Event)

	select {
	case <-member.send:
		t.Fatal("admin-only event leaked to a member")
	default:
	}
}

func TestNotifierRoomStatusEvent(t *testing.T) {
	registry := NewRegistry(nil)
	member := newTestClient(4)
	registry.Register(member, "u-member", application.RoleMember, "org-1")

	notifier := NewNotifier(registry, nil)
	notifier.Notify(context.Background(), application.Event{
		Kind:           application.EventRoomStatusUpdate,
		OrganizationID: "org-1",
		RoomStatus:     &application.RoomStatus{RoomID: "room-1", Occupied: true},
	})

	frame := drain(t, member)
	var decoded struct {
		Event   string `json:"event"`
		Payload struct {
			RoomID string `json:"roomId"`
			Status string `json:"status"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, "roomStatusUpdate", decoded.Event)
	assert.Equal(t, "room-1", decoded.Payload.RoomID)
	assert.Equal(t, "occupied", decoded.Payload.Status)
}

func TestNotifierSurvivesSlowClient(t *testing.T) {
	registry := NewRegistry(nil)
	slow := newTestClient(1)
	registry.Register(slow, "u-slow", application.RoleMember, "org-1")
	require.True(t, slow.Enqueue([]byte("backlog")))

	notifier := NewNotifier(registry, nil)
	// must not block or panic even though the buffer is full
	notifier.Notify(context.Background(), application.Event{
		Kind:           application.EventRoomStatusUpdate,
		OrganizationID: "org-1",
		RoomStatus:     &application.RoomStatus{RoomID: "room-1", Occupied: false},
	})
	assert.Equal(t, []byte("backlog"), drain(t, slow))
}
