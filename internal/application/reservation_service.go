package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/roombook/internal/booking"
	"github.com/example/roombook/internal/persistence"
)

// ReservationRepository captures the persistence interactions needed by the service.
type ReservationRepository interface {
	CreateConflictFree(ctx context.Context, reservation Reservation) (Reservation, error)
	UpdateConflictFree(ctx context.Context, reservation Reservation) (Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationRepositoryFilter) ([]Reservation, error)
	ListOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]Reservation, error)
	UpdateStatusIf(ctx context.Context, id string, from, to ReservationStatus, updatedAt time.Time) (Reservation, error)
}

// ReservationRepositoryFilter narrows queries issued to the reservation repository.
type ReservationRepositoryFilter struct {
	OrganizationID string
	RoomID         string
	UserID         string
	Statuses       []ReservationStatus
	StartsAfter    *time.Time
	EndsBefore     *time.Time
}

// RoomCatalog exposes room lookup operations.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (Room, error)
}

// UserDirectory exposes user lookup operations scoped to an organization.
type UserDirectory interface {
	MissingUserIDs(ctx context.Context, organizationID string, ids []string) ([]string, error)
}

// ReservationService orchestrates validation, conflict checking, and
// persistence for reservation lifecycle operations, and hands committed
// changes to the notification fan-out.
type ReservationService struct {
	reservations ReservationRepository
	rooms        RoomCatalog
	users        UserDirectory
	notifier     Notifier
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(reservations ReservationRepository, rooms RoomCatalog, users UserDirectory, notifier Notifier, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(reservations, rooms, users, notifier, idGenerator, now, nil)
}

// NewReservationServiceWithLogger constructs a reservation service with a specified logger.
func NewReservationServiceWithLogger(reservations ReservationRepository, rooms RoomCatalog, users UserDirectory, notifier Notifier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		reservations: reservations,
		rooms:        rooms,
		users:        users,
		notifier:     notifier,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateReservation validates the booking request, verifies the slot and
// the room's amenities, and persists the reservation with status pending.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	principal := params.Principal
	input := params.Input

	logger := s.loggerWith(ctx, "CreateReservation",
		"principal_id", principal.UserID,
		"room_id", input.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("reservation_id", reservation.ID).InfoContext(ctx, "reservation created")
	}()

	now := s.now()

	vErr := &ValidationError{}
	validateReservationCore(input, vErr)
	if input.RoomID == "" {
		vErr.add("room_id", "room is required")
	}
	if !input.Start.IsZero() && !input.Start.After(now) {
		vErr.add("start", "start must be in the future")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.loadRoomForBooking(ctx, principal, input.RoomID)
	if err != nil {
		return
	}

	if err = s.ensureAttendeesExist(ctx, principal.OrganizationID, input.InternalAttendees); err != nil {
		return
	}

	if err = ensureAmenities(room, input.RequiredAmenities); err != nil {
		return
	}

	reservation = Reservation{
		ID:                s.idGenerator(),
		RoomID:            room.ID,
		UserID:            principal.UserID,
		OrganizationID:    principal.OrganizationID,
		Agenda:            strings.TrimSpace(input.Agenda),
		Start:             input.Start,
		End:               input.End,
		Status:            StatusPending,
		InternalAttendees: sortStrings(uniqueStrings(input.InternalAttendees)),
		RequiredAmenities: uniqueStrings(input.RequiredAmenities),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	persisted, err := s.reservations.CreateConflictFree(ctx, reservation)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}
	reservation = persisted

	s.notify(ctx, Event{
		Kind:           EventNewReservationRequest,
		OrganizationID: reservation.OrganizationID,
		AdminOnly:      true,
		Reservation:    &reservation,
		Message:        fmt.Sprintf("New reservation request for room %s", room.Name),
	})

	return
}

// UpdateReservation applies validation, authorization, and conflict
// re-checking before updating the reservation's fields.
func (s *ReservationService) UpdateReservation(ctx context.Context, params UpdateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	principal := params.Principal

	logger := s.loggerWith(ctx, "UpdateReservation",
		"principal_id", principal.UserID,
		"reservation_id", params.ReservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation updated")
	}()

	var existing Reservation
	existing, err = s.authorizeOwnerOrAdmin(ctx, principal, params.ReservationID)
	if err != nil {
		return
	}

	if existing.Status == StatusCancelled || existing.Status == StatusCompleted {
		vErr := &ValidationError{}
		vErr.add("status", "reservation is no longer editable")
		err = vErr
		return
	}

	input := params.Input
	vErr := &ValidationError{}
	validateReservationCore(input, vErr)
	if input.RoomID != "" && input.RoomID != existing.RoomID {
		vErr.add("room_id", "room cannot be changed")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var room Room
	room, err = s.loadRoomForBooking(ctx, principal, existing.RoomID)
	if err != nil {
		return
	}

	if err = s.ensureAttendeesExist(ctx, principal.OrganizationID, input.InternalAttendees); err != nil {
		return
	}

	if err = ensureAmenities(room, input.RequiredAmenities); err != nil {
		return
	}

	updated := existing
	updated.Agenda = strings.TrimSpace(input.Agenda)
	updated.Start = input.Start
	updated.End = input.End
	updated.InternalAttendees = sortStrings(uniqueStrings(input.InternalAttendees))
	updated.RequiredAmenities = uniqueStrings(input.RequiredAmenities)
	updated.UpdatedAt = s.now()

	persisted, err := s.reservations.UpdateConflictFree(ctx, updated)
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}
	reservation = persisted

	s.notify(ctx, Event{
		Kind:           EventReservationUpdated,
		OrganizationID: reservation.OrganizationID,
		Reservation:    &reservation,
		Message:        fmt.Sprintf("Reservation for room %s was updated", room.Name),
	})

	return
}

// CancelReservation marks a pending or confirmed reservation cancelled,
// freeing its slot. Cancellation is a soft status change so the record
// stays available for auditing.
func (s *ReservationService) CancelReservation(ctx context.Context, principal Principal, reservationID string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CancelReservation",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation cancelled")
	}()

	var existing Reservation
	existing, err = s.authorizeOwnerOrAdmin(ctx, principal, reservationID)
	if err != nil {
		return
	}

	if !CanTransition(existing.Status, StatusCancelled) {
		vErr := &ValidationError{}
		vErr.add("status", fmt.Sprintf("a %s reservation cannot be cancelled", existing.Status))
		err = vErr
		return
	}

	reservation, err = s.reservations.UpdateStatusIf(ctx, reservationID, existing.Status, StatusCancelled, s.now())
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	s.notify(ctx, Event{
		Kind:           EventReservationCancelled,
		OrganizationID: reservation.OrganizationID,
		Reservation:    &reservation,
		Message:        "Reservation was cancelled",
	})

	return
}

// UpdateReservationStatus lets an administrator confirm or reject a
// reservation. The result is pushed to the reservation's owner only.
func (s *ReservationService) UpdateReservationStatus(ctx context.Context, params UpdateReservationStatusParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	principal := params.Principal

	logger := s.loggerWith(ctx, "UpdateReservationStatus",
		"principal_id", principal.UserID,
		"reservation_id", params.ReservationID,
		"status", string(params.Status),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update reservation status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation status updated")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	if !KnownStatus(params.Status) {
		vErr := &ValidationError{}
		vErr.add("status", "unknown reservation status")
		err = vErr
		return
	}

	var existing Reservation
	existing, err = s.getInOrganization(ctx, principal, params.ReservationID)
	if err != nil {
		return
	}

	if !CanTransition(existing.Status, params.Status) {
		vErr := &ValidationError{}
		vErr.add("status", fmt.Sprintf("cannot transition from %s to %s", existing.Status, params.Status))
		err = vErr
		return
	}

	reservation, err = s.reservations.UpdateStatusIf(ctx, params.ReservationID, existing.Status, params.Status, s.now())
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	s.notify(ctx, Event{
		Kind:           EventReservationStatusUpdate,
		OrganizationID: reservation.OrganizationID,
		TargetUserID:   reservation.UserID,
		Reservation:    &reservation,
		Message:        fmt.Sprintf("Your reservation is now %s", reservation.Status),
	})

	return
}

// CompleteReservation is the administrator override for the completion
// loop: it transitions a confirmed reservation to completed immediately.
func (s *ReservationService) CompleteReservation(ctx context.Context, principal Principal, reservationID string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CompleteReservation",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete reservation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reservation completed")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	var existing Reservation
	existing, err = s.getInOrganization(ctx, principal, reservationID)
	if err != nil {
		return
	}

	if !CanTransition(existing.Status, StatusCompleted) {
		vErr := &ValidationError{}
		vErr.add("status", fmt.Sprintf("a %s reservation cannot be completed", existing.Status))
		err = vErr
		return
	}

	reservation, err = s.reservations.UpdateStatusIf(ctx, reservationID, existing.Status, StatusCompleted, s.now())
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}

	s.notify(ctx, Event{
		Kind:           EventReservationCompleted,
		OrganizationID: reservation.OrganizationID,
		Reservation:    &reservation,
		Message:        "Reservation was completed",
	})

	return
}

// GetReservation returns a reservation visible to the principal's organization.
func (s *ReservationService) GetReservation(ctx context.Context, principal Principal, reservationID string) (Reservation, error) {
	if s == nil {
		return Reservation{}, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return Reservation{}, fmt.Errorf("reservation repository not configured")
	}
	return s.getInOrganization(ctx, principal, reservationID)
}

// ListReservations enumerates the organization's reservations ordered by start time.
func (s *ReservationService) ListReservations(ctx context.Context, params ListReservationsParams) ([]Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return nil, fmt.Errorf("reservation repository not configured")
	}

	filter := ReservationRepositoryFilter{
		OrganizationID: params.Principal.OrganizationID,
		RoomID:         params.RoomID,
		UserID:         params.UserID,
		StartsAfter:    params.StartsAfter,
		EndsBefore:     params.EndsBefore,
	}

	reservations, err := s.reservations.ListReservations(ctx, filter)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}

	ordered := make([]Reservation, len(reservations))
	copy(ordered, reservations)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})

	return ordered, nil
}

// IsRoomAvailable reports whether the room is free over [start, end).
// It is side-effect free; the authoritative check still happens inside the
// conflict-checked write when a reservation is committed.
func (s *ReservationService) IsRoomAvailable(ctx context.Context, principal Principal, roomID string, start, end time.Time, excludeReservationID string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return false, fmt.Errorf("reservation repository not configured")
	}

	if !start.Before(end) {
		vErr := &ValidationError{}
		vErr.add("time", "start must be before end")
		return false, vErr
	}

	if _, err := s.loadRoomInOrganization(ctx, principal, roomID); err != nil {
		return false, err
	}

	overlapping, err := s.reservations.ListOverlapping(ctx, roomID, start, end, excludeReservationID)
	if err != nil {
		return false, mapReservationRepoError(err)
	}

	return len(overlapping) == 0, nil
}

func (s *ReservationService) authorizeOwnerOrAdmin(ctx context.Context, principal Principal, reservationID string) (Reservation, error) {
	existing, err := s.getInOrganization(ctx, principal, reservationID)
	if err != nil {
		return Reservation{}, err
	}
	if existing.UserID != principal.UserID && !principal.IsAdmin() {
		return Reservation{}, ErrUnauthorized
	}
	return existing, nil
}

func (s *ReservationService) getInOrganization(ctx context.Context, principal Principal, reservationID string) (Reservation, error) {
	existing, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, mapReservationRepoError(err)
	}
	if existing.OrganizationID != principal.OrganizationID {
		return Reservation{}, ErrNotFound
	}
	return existing, nil
}

func (s *ReservationService) loadRoomInOrganization(ctx context.Context, principal Principal, roomID string) (Room, error) {
	if s.rooms == nil {
		return Room{}, fmt.Errorf("room catalog not configured")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapReservationRepoError(err)
	}
	if room.OrganizationID != principal.OrganizationID {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (s *ReservationService) loadRoomForBooking(ctx context.Context, principal Principal, roomID string) (Room, error) {
	room, err := s.loadRoomInOrganization(ctx, principal, roomID)
	if err != nil {
		return Room{}, err
	}
	if !room.Active {
		vErr := &ValidationError{}
		vErr.add("room_id", "room is not active")
		return Room{}, vErr
	}
	return room, nil
}

func (s *ReservationService) ensureAttendeesExist(ctx context.Context, organizationID string, attendeeIDs []string) error {
	if s.users == nil || len(attendeeIDs) == 0 {
		return nil
	}
	missing, err := s.users.MissingUserIDs(ctx, organizationID, uniqueStrings(attendeeIDs))
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	vErr := &ValidationError{}
	vErr.add("internal_attendees", fmt.Sprintf("unknown user ids: %s", strings.Join(missing, ", ")))
	return vErr
}

func ensureAmenities(room Room, required []string) error {
	if len(required) == 0 {
		return nil
	}

	vErr := &ValidationError{}
	for _, name := range uniqueStrings(required) {
		if !booking.KnownAmenity(name) {
			vErr.add("required_amenities", fmt.Sprintf("unknown amenity: %s", name))
			return vErr
		}
	}

	missing := booking.MissingAmenities(booking.Amenities{
		DisplayProjector:         room.DisplayProjector,
		DisplayWhiteboard:        room.DisplayWhiteboard,
		CateringAvailable:        room.CateringAvailable,
		VideoConferenceAvailable: room.VideoConferenceAvailable,
	}, uniqueStrings(required))
	if len(missing) == 0 {
		return nil
	}

	vErr.add("required_amenities", fmt.Sprintf("room lacks required amenities: %s", strings.Join(missing, ", ")))
	return vErr
}

func validateReservationCore(input ReservationInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Agenda) == "" {
		vErr.add("agenda", "agenda is required")
	}

	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.Start.Before(input.End) {
		vErr.add("time", "start must be before end")
	}
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func sortStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

func mapReservationRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrSlotTaken) {
		return ErrConflict
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("time", "start must be before end")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("internal_attendees", "related records are missing")
		return vErr
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
