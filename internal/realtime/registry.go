package realtime

import (
	"log/slog"
	"sync"

	"github.com/example/roombook/internal/application"
)

// session pairs a connected client with the identity it registered.
type session struct {
	client         *Client
	userID         string
	role           string
	organizationID string
}

// Registry is the process-local mapping from user to connected session
// used to route notifications. It carries no durable state: it is rebuilt
// from scratch on restart, so clients must re-register after reconnecting.
// The registry is owned by the transport layer and injected into the
// notifier rather than accessed as ambient state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	logger   *slog.Logger
}

// NewRegistry constructs an empty client registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*session),
		logger:   logger,
	}
}

// Register associates a connected client with a user identity. A second
// registration for the same user replaces the previous session.
func (r *Registry) Register(client *Client, userID, role, organizationID string) {
	if r == nil || client == nil || userID == "" {
		return
	}

	r.mu.Lock()
	if existing, ok := r.sessions[userID]; ok && existing.client != client {
		existing.client.Close()
	}
	r.sessions[userID] = &session{
		client:         client,
		userID:         userID,
		role:           role,
		organizationID: organizationID,
	}
	r.mu.Unlock()

	r.logger.Info("client registered",
		"user_id", userID,
		"role", role,
		"organization_id", organizationID,
	)
}

// Refresh reports whether the claimed user identity matches the session
// already bound to the client. It never changes the binding.
func (r *Registry) Refresh(client *Client, userID string) bool {
	if r == nil || client == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[userID]
	return ok && entry.client == client
}

// Unregister removes the client's session if it is still the registered one.
func (r *Registry) Unregister(client *Client) {
	if r == nil || client == nil {
		return
	}

	r.mu.Lock()
	for userID, entry := range r.sessions {
		if entry.client == client {
			delete(r.sessions, userID)
			r.logger.Info("client unregistered", "user_id", userID)
			break
		}
	}
	r.mu.Unlock()
}

// Resolve returns the clients an event should be delivered to. A target
// user narrows delivery to that user's session; otherwise every session
// in the organization matches, optionally restricted to administrators.
func (r *Registry) Resolve(organizationID, targetUserID string, adminOnly bool) []*Client {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if targetUserID != "" {
		entry, ok := r.sessions[targetUserID]
		if !ok || entry.organizationID != organizationID {
			return nil
		}
		return []*Client{entry.client}
	}

	var clients []*Client
	for _, entry := range r.sessions {
		if entry.organizationID != organizationID {
			continue
		}
		if adminOnly && entry.role != application.RoleAdmin {
			continue
		}
		clients = append(clients, entry.client)
	}
	return clients
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
