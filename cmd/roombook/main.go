package main

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/roombook/internal/application"
	"github.com/example/roombook/internal/config"
	httptransport "github.com/example/roombook/internal/http"
	"github.com/example/roombook/internal/persistence"
	"github.com/example/roombook/internal/persistence/sqlite"
	"github.com/example/roombook/internal/realtime"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	reservationRepo := newReservationRepositoryAdapter(sqlite.NewReservationRepository(pool))
	roomRepo := newRoomRepositoryAdapter(sqlite.NewRoomRepository(pool))
	userRepo := newUserRepositoryAdapter(sqlite.NewUserRepository(pool))
	sessionRepo := newSessionRepositoryAdapter(sqlite.NewSessionRepository(pool), cfg.SessionSecret)

	registry := realtime.NewRegistry(logger)
	notifier := realtime.NewNotifier(registry, logger)

	reservationService := application.NewReservationServiceWithLogger(reservationRepo, roomRepo, userRepo, notifier, idGenerator, now, logger)
	roomService := application.NewRoomServiceWithLogger(roomRepo, notifier, idGenerator, now, logger)
	roomStatusService := application.NewRoomStatusService(roomRepo, reservationRepo, now, logger)
	userService := application.NewUserServiceWithLogger(userRepo, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(userRepo, sessionRepo, application.VerifyPassword, tokenGenerator, now, cfg.SessionTTL, logger)

	completionLoop := application.NewCompletionLoop(reservationRepo, notifier, cfg.CompletionInterval, now, logger)
	occupancyLoop := application.NewOccupancyLoop(reservationRepo, notifier, cfg.OccupancyInterval, now, logger)
	completionLoop.Start(ctx)
	occupancyLoop.Start(ctx)
	defer completionLoop.Stop()
	defer occupancyLoop.Stop()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Users:        httptransport.NewUserHandler(userService, logger),
		Rooms:        httptransport.NewRoomHandler(roomService, roomStatusService, reservationService, logger),
		Reservations: httptransport.NewReservationHandler(reservationService, logger),
		WS:           httptransport.NewWSHandlerWithBuffer(registry, logger, cfg.WSSendBuffer),
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Login is the only route reachable without a session.
		if r.URL.Path == "/sessions" && r.Method == http.MethodPost {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("roombook API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

type reservationRepositoryAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationRepositoryAdapter(repo persistence.ReservationRepository) *reservationRepositoryAdapter {
	return &reservationRepositoryAdapter{repo: repo}
}

func (a *reservationRepositoryAdapter) CreateConflictFree(ctx context.Context, reservation application.Reservation) (application.Reservation, error) {
	if err := a.repo.CreateConflictFree(ctx, toPersistenceReservation(reservation)); err != nil {
		return application.Reservation{}, err
	}
	return a.GetReservation(ctx, reservation.ID)
}

func (a *reservationRepositoryAdapter) UpdateConflictFree(ctx context.Context, reservation application.Reservation) (application.Reservation, error) {
	if err := a.repo.UpdateConflictFree(ctx, toPersistenceReservation(reservation)); err != nil {
		return application.Reservation{}, err
	}
	return a.GetReservation(ctx, reservation.ID)
}

func (a *reservationRepositoryAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) ListReservations(ctx context.Context, filter application.ReservationRepositoryFilter) ([]application.Reservation, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	models, err := a.repo.ListReservations(ctx, persistence.ReservationFilter{
		OrganizationID: filter.OrganizationID,
		RoomID:         filter.RoomID,
		UserID:         filter.UserID,
		Statuses:       statuses,
		StartsAfter:    filter.StartsAfter,
		EndsBefore:     filter.EndsBefore,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationReservations(models), nil
}

func (a *reservationRepositoryAdapter) ListOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]application.Reservation, error) {
	models, err := a.repo.ListOverlapping(ctx, roomID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	return toApplicationReservations(models), nil
}

func (a *reservationRepositoryAdapter) UpdateStatusIf(ctx context.Context, id string, from, to application.ReservationStatus, updatedAt time.Time) (application.Reservation, error) {
	if err := a.repo.UpdateStatusIf(ctx, id, string(from), string(to), updatedAt); err != nil {
		return application.Reservation{}, err
	}
	return a.GetReservation(ctx, id)
}

func (a *reservationRepositoryAdapter) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time) ([]application.Reservation, error) {
	models, err := a.repo.ListConfirmedEndedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return toApplicationReservations(models), nil
}

func (a *reservationRepositoryAdapter) ListConfirmedActiveAt(ctx context.Context, at time.Time) ([]application.Reservation, error) {
	models, err := a.repo.ListConfirmedActiveAt(ctx, at)
	if err != nil {
		return nil, err
	}
	return toApplicationReservations(models), nil
}

func (a *reservationRepositoryAdapter) CompleteAllIf(ctx context.Context, ids []string, from, to application.ReservationStatus, updatedAt time.Time) ([]string, error) {
	return a.repo.CompleteAllIf(ctx, ids, string(from), string(to), updatedAt)
}

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) UpdateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.UpdateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	return a.GetRoom(ctx, room.ID)
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) DeleteRoom(ctx context.Context, id string) error {
	return a.repo.DeleteRoom(ctx, id)
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context, organizationID string) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context, organizationID string) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

// MissingUserIDs reports which of the given ids do not resolve to a user in
// the organization. A user from another organization counts as missing so
// attendee lists cannot reference foreign accounts.
func (a *userRepositoryAdapter) MissingUserIDs(ctx context.Context, organizationID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	missing := make([]string, 0)
	for _, id := range ids {
		stored, err := a.repo.GetUser(ctx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				missing = append(missing, id)
				continue
			}
			return nil, err
		}
		if stored.OrganizationID != organizationID {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	return missing, nil
}

func (a *userRepositoryAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

// sessionRepositoryAdapter stores only an HMAC digest of each session token,
// keyed by the configured session secret, so a database leak does not yield
// usable bearer tokens. The plaintext token exists client-side only.
type sessionRepositoryAdapter struct {
	repo   persistence.SessionRepository
	secret []byte
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository, secret string) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo, secret: []byte(secret)}
}

func (a *sessionRepositoryAdapter) digest(token string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	model := toPersistenceSession(session)
	model.Token = a.digest(session.Token)
	stored, err := a.repo.CreateSession(ctx, model)
	if err != nil {
		return application.Session{}, err
	}
	created := toApplicationSession(stored)
	created.Token = session.Token
	return created, nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, a.digest(token))
	if err != nil {
		return application.Session{}, err
	}
	session := toApplicationSession(stored)
	session.Token = token
	return session, nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, a.digest(token), revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	session := toApplicationSession(stored)
	session.Token = token
	return session, nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

func toApplicationReservation(model persistence.Reservation) application.Reservation {
	return application.Reservation{
		ID:                model.ID,
		RoomID:            model.RoomID,
		UserID:            model.UserID,
		OrganizationID:    model.OrganizationID,
		Agenda:            model.Agenda,
		Start:             model.Start,
		End:               model.End,
		Status:            application.ReservationStatus(model.Status),
		InternalAttendees: append([]string(nil), model.InternalAttendees...),
		RequiredAmenities: append([]string(nil), model.RequiredAmenities...),
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

func toApplicationReservations(models []persistence.Reservation) []application.Reservation {
	if len(models) == 0 {
		return nil
	}
	reservations := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		reservations = append(reservations, toApplicationReservation(model))
	}
	return reservations
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:                reservation.ID,
		RoomID:            reservation.RoomID,
		UserID:            reservation.UserID,
		OrganizationID:    reservation.OrganizationID,
		Agenda:            reservation.Agenda,
		Start:             reservation.Start,
		End:               reservation.End,
		Status:            string(reservation.Status),
		InternalAttendees: append([]string(nil), reservation.InternalAttendees...),
		RequiredAmenities: append([]string(nil), reservation.RequiredAmenities...),
		CreatedAt:         reservation.CreatedAt,
		UpdatedAt:         reservation.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:                       model.ID,
		OrganizationID:           model.OrganizationID,
		Name:                     model.Name,
		Capacity:                 model.Capacity,
		DisplayProjector:         model.DisplayProjector,
		DisplayWhiteboard:        model.DisplayWhiteboard,
		CateringAvailable:        model.CateringAvailable,
		VideoConferenceAvailable: model.VideoConferenceAvailable,
		Active:                   model.Active,
		CreatedAt:                model.CreatedAt,
		UpdatedAt:                model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:                       room.ID,
		OrganizationID:           room.OrganizationID,
		Name:                     room.Name,
		Capacity:                 room.Capacity,
		DisplayProjector:         room.DisplayProjector,
		DisplayWhiteboard:        room.DisplayWhiteboard,
		CateringAvailable:        room.CateringAvailable,
		VideoConferenceAvailable: room.VideoConferenceAvailable,
		Active:                   room.Active,
		CreatedAt:                room.CreatedAt,
		UpdatedAt:                room.UpdatedAt,
	}
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:             model.ID,
		OrganizationID: model.OrganizationID,
		Email:          model.Email,
		DisplayName:    model.DisplayName,
		Role:           model.Role,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:             user.ID,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
		DisplayName:    user.DisplayName,
		Role:           user.Role,
		PasswordHash:   passwordHash,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.CreatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
