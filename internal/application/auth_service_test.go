package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/roombook/internal/persistence"
)

type credentialStoreStub struct {
	creds UserCredentials
	user  User
}

func (c *credentialStoreStub) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	if c.creds.User.Email == "" || c.creds.User.Email != email {
		return UserCredentials{}, persistence.ErrNotFound
	}
	return c.creds, nil
}

func (c *credentialStoreStub) GetUser(ctx context.Context, id string) (User, error) {
	if c.user.ID == "" || c.user.ID != id {
		return User{}, persistence.ErrNotFound
	}
	return c.user, nil
}

type sessionRepoStub struct {
	session    Session
	createErr  error
	revoked    []string
	pruneCalls int
}

func (s *sessionRepoStub) CreateSession(ctx context.Context, session Session) (Session, error) {
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.session = session
	return session, nil
}

func (s *sessionRepoStub) GetSession(ctx context.Context, token string) (Session, error) {
	if s.session.Token == "" || s.session.Token != token {
		return Session{}, persistence.ErrNotFound
	}
	return s.session, nil
}

func (s *sessionRepoStub) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error) {
	if s.session.Token == "" || s.session.Token != token {
		return Session{}, persistence.ErrNotFound
	}
	s.revoked = append(s.revoked, token)
	revoked := s.session
	revoked.RevokedAt = &revokedAt
	s.session = revoked
	return revoked, nil
}

func (s *sessionRepoStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.pruneCalls++
	return nil
}

func knownUser() User {
	return User{ID: "user-1", OrganizationID: "org-1", Email: "member@example.com", DisplayName: "Member", Role: RoleMember}
}

func alwaysMatch(hashedPassword, password string) error { return nil }

func neverMatch(hashedPassword, password string) error { return ErrInvalidCredentials }

func newAuthService(creds *credentialStoreStub, sessions *sessionRepoStub, verify PasswordVerifier) *AuthService {
	tokens := []string{"session-1", "token-1"}
	tokenGenerator := func() string {
		next := tokens[0]
		if len(tokens) > 1 {
			tokens = tokens[1:]
		}
		return next
	}
	return NewAuthService(creds, sessions, verify, tokenGenerator, fixedNow, time.Hour)
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	creds := &credentialStoreStub{creds: UserCredentials{User: knownUser(), PasswordHash: "hash"}}
	sessions := &sessionRepoStub{}
	svc := newAuthService(creds, sessions, alwaysMatch)

	result, err := svc.Authenticate(context.Background(), AuthenticateParams{
		Email:    " Member@Example.COM ",
		Password: "correct",
	})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if result.User.ID != "user-1" {
		t.Errorf("unexpected user %+v", result.User)
	}
	if result.Session.Token == "" {
		t.Error("expected a session token")
	}
	if !result.Session.ExpiresAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("expected TTL-based expiry, got %v", result.Session.ExpiresAt)
	}
	if sessions.pruneCalls == 0 {
		t.Error("login must prune expired sessions")
	}
}

func TestAuthService_Authenticate_Failures(t *testing.T) {
	t.Parallel()

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()

		svc := newAuthService(&credentialStoreStub{}, &sessionRepoStub{}, alwaysMatch)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "nobody@example.com", Password: "x"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()

		creds := &credentialStoreStub{creds: UserCredentials{User: knownUser(), PasswordHash: "hash"}}
		svc := newAuthService(creds, &sessionRepoStub{}, neverMatch)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{Email: "member@example.com", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("empty credentials", func(t *testing.T) {
		t.Parallel()

		svc := newAuthService(&credentialStoreStub{}, &sessionRepoStub{}, alwaysMatch)

		_, err := svc.Authenticate(context.Background(), AuthenticateParams{})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestAuthService_ValidateSession(t *testing.T) {
	t.Parallel()

	t.Run("valid token resolves principal", func(t *testing.T) {
		t.Parallel()

		creds := &credentialStoreStub{user: knownUser()}
		sessions := &sessionRepoStub{session: Session{
			ID:        "session-1",
			UserID:    "user-1",
			Token:     "token-1",
			CreatedAt: testNow,
			ExpiresAt: testNow.Add(time.Hour),
		}}
		svc := newAuthService(creds, sessions, alwaysMatch)

		principal, err := svc.ValidateSession(context.Background(), "token-1")
		if err != nil {
			t.Fatalf("ValidateSession failed: %v", err)
		}
		if principal.UserID != "user-1" || principal.OrganizationID != "org-1" || principal.Role != RoleMember {
			t.Errorf("unexpected principal %+v", principal)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()

		svc := newAuthService(&credentialStoreStub{user: knownUser()}, &sessionRepoStub{}, alwaysMatch)

		_, err := svc.ValidateSession(context.Background(), "missing")
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()

		sessions := &sessionRepoStub{session: Session{
			ID:        "session-1",
			UserID:    "user-1",
			Token:     "token-1",
			CreatedAt: testNow.Add(-2 * time.Hour),
			ExpiresAt: testNow.Add(-time.Hour),
		}}
		svc := newAuthService(&credentialStoreStub{user: knownUser()}, sessions, alwaysMatch)

		_, err := svc.ValidateSession(context.Background(), "token-1")
		if !errors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
	})

	t.Run("revoked token", func(t *testing.T) {
		t.Parallel()

		revokedAt := testNow.Add(-time.Minute)
		sessions := &sessionRepoStub{session: Session{
			ID:        "session-1",
			UserID:    "user-1",
			Token:     "token-1",
			CreatedAt: testNow.Add(-time.Hour),
			ExpiresAt: testNow.Add(time.Hour),
			RevokedAt: &revokedAt,
		}}
		svc := newAuthService(&credentialStoreStub{user: knownUser()}, sessions, alwaysMatch)

		_, err := svc.ValidateSession(context.Background(), "token-1")
		if !errors.Is(err, ErrSessionRevoked) {
			t.Fatalf("expected ErrSessionRevoked, got %v", err)
		}
	})
}

func TestAuthService_RevokeSession(t *testing.T) {
	t.Parallel()

	sessions := &sessionRepoStub{session: Session{
		ID:        "session-1",
		UserID:    "user-1",
		Token:     "token-1",
		CreatedAt: testNow,
		ExpiresAt: testNow.Add(time.Hour),
	}}
	svc := newAuthService(&credentialStoreStub{user: knownUser()}, sessions, alwaysMatch)

	if err := svc.RevokeSession(context.Background(), "token-1"); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if len(sessions.revoked) != 1 {
		t.Fatalf("expected one revocation, got %+v", sessions.revoked)
	}

	if err := svc.RevokeSession(context.Background(), "unknown"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown token, got %v", err)
	}
}
