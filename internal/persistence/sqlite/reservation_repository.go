package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/roombook/internal/persistence"
)

const reservationColumns = `id, room_id, user_id, organization_id, agenda,
	start_time, end_time, status, created_at, updated_at`

// ReservationRepository implements persistence.ReservationRepository using
// SQLite. Conflict-checked writes run the overlap probe and the insert or
// update inside one transaction so concurrent requests for the same slot
// serialize on the database instead of racing in the service layer.
type ReservationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewReservationRepository creates a new SQLite reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateConflictFree inserts the reservation unless a non-cancelled
// reservation already overlaps its [start, end) slot on the same room.
func (r *ReservationRepository) CreateConflictFree(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || reservation.RoomID == "" || reservation.UserID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		taken, err := r.slotTakenTx(tx, reservation.RoomID, reservation.Start, reservation.End, "")
		if err != nil {
			return err
		}
		if taken {
			return persistence.ErrSlotTaken
		}

		_, err = r.helper.ExecTx(tx, `
			INSERT INTO reservations (`+reservationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			reservation.ID,
			reservation.RoomID,
			reservation.UserID,
			reservation.OrganizationID,
			reservation.Agenda,
			formatTime(reservation.Start),
			formatTime(reservation.End),
			reservation.Status,
			formatTime(reservation.CreatedAt),
			formatTime(reservation.UpdatedAt),
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		return r.replaceLinkRowsTx(tx, reservation)
	})
}

// UpdateConflictFree rewrites the reservation unless the new slot overlaps
// another non-cancelled reservation on the room. The write is conditional on
// reservation.Status still being the stored status, so a transition that
// committed after the caller's read surfaces as ErrNotFound instead of being
// clobbered back to the stale status.
func (r *ReservationRepository) UpdateConflictFree(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		taken, err := r.slotTakenTx(tx, reservation.RoomID, reservation.Start, reservation.End, reservation.ID)
		if err != nil {
			return err
		}
		if taken {
			return persistence.ErrSlotTaken
		}

		result, err := r.helper.ExecTx(tx, `
			UPDATE reservations
			SET agenda = ?, start_time = ?, end_time = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`,
			reservation.Agenda,
			formatTime(reservation.Start),
			formatTime(reservation.End),
			formatTime(reservation.UpdatedAt),
			reservation.ID,
			reservation.Status,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}

		return r.replaceLinkRowsTx(tx, reservation)
	})
}

// GetReservation retrieves a reservation with its attendee and amenity rows.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	reservation, err := scanReservation(row)
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}

	if err := r.loadLinkRows(ctx, &reservation); err != nil {
		return persistence.Reservation{}, err
	}
	return reservation, nil
}

// ListReservations returns reservations matching the filter ordered by
// start time then ID.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if filter.OrganizationID != "" {
		conditions = append(conditions, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StartsAfter != nil {
		conditions = append(conditions, "end_time > ?")
		args = append(args, formatTime(*filter.StartsAfter))
	}
	if filter.EndsBefore != nil {
		conditions = append(conditions, "start_time < ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"

	return r.queryReservations(ctx, query, args...)
}

// ListOverlapping returns non-cancelled reservations on the room whose
// [start, end) interval intersects the supplied one.
func (r *ReservationRepository) ListOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeID string) ([]persistence.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE room_id = ?
		  AND status != 'cancelled'
		  AND start_time < ?
		  AND end_time > ?
	`
	args := []any{roomID, formatTime(end), formatTime(start)}
	if excludeID != "" {
		query += " AND id != ?"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_time ASC, id ASC"

	return r.queryReservations(ctx, query, args...)
}

// ListConfirmedEndedBefore returns confirmed reservations whose slot ended
// strictly before the cutoff.
func (r *ReservationRepository) ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time) ([]persistence.Reservation, error) {
	return r.queryReservations(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status = 'confirmed' AND end_time < ?
		ORDER BY end_time ASC, id ASC
	`, formatTime(cutoff))
}

// ListConfirmedActiveAt returns confirmed reservations whose closed
// [start, end] range covers the instant.
func (r *ReservationRepository) ListConfirmedActiveAt(ctx context.Context, at time.Time) ([]persistence.Reservation, error) {
	stamp := formatTime(at)
	return r.queryReservations(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE status = 'confirmed' AND start_time <= ? AND end_time >= ?
		ORDER BY room_id ASC, start_time ASC
	`, stamp, stamp)
}

// UpdateStatusIf transitions the reservation only when it is still in the
// expected status. A stale caller gets ErrNotFound instead of clobbering a
// newer transition.
func (r *ReservationRepository) UpdateStatusIf(ctx context.Context, id, fromStatus, toStatus string, updatedAt time.Time) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE reservations
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, toStatus, formatTime(updatedAt), id, fromStatus)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// CompleteAllIf bulk-transitions the identified reservations and reports
// which rows actually changed, so a concurrent manual completion is not
// reported twice.
func (r *ReservationRepository) CompleteAllIf(ctx context.Context, ids []string, fromStatus, toStatus string, updatedAt time.Time) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var changed []string
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			result, err := r.helper.ExecTx(tx, `
				UPDATE reservations
				SET status = ?, updated_at = ?
				WHERE id = ? AND status = ?
			`, toStatus, formatTime(updatedAt), id, fromStatus)
			if err != nil {
				return r.mapper.MapError(err)
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
			}
			if rowsAffected > 0 {
				changed = append(changed, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (r *ReservationRepository) slotTakenTx(tx *sql.Tx, roomID string, start, end time.Time, excludeID string) (bool, error) {
	query := `
		SELECT COUNT(1)
		FROM reservations
		WHERE room_id = ?
		  AND status != 'cancelled'
		  AND start_time < ?
		  AND end_time > ?
	`
	args := []any{roomID, formatTime(end), formatTime(start)}
	if excludeID != "" {
		query += " AND id != ?"
		args = append(args, excludeID)
	}

	var count int
	if err := r.helper.QueryRowTx(tx, query, args...).Scan(&count); err != nil {
		return false, r.mapper.MapError(err)
	}
	return count > 0, nil
}

func (r *ReservationRepository) replaceLinkRowsTx(tx *sql.Tx, reservation persistence.Reservation) error {
	if _, err := r.helper.ExecTx(tx, "DELETE FROM reservation_attendees WHERE reservation_id = ?", reservation.ID); err != nil {
		return r.mapper.MapError(err)
	}
	if _, err := r.helper.ExecTx(tx, "DELETE FROM reservation_amenities WHERE reservation_id = ?", reservation.ID); err != nil {
		return r.mapper.MapError(err)
	}

	for i, userID := range reservation.InternalAttendees {
		if _, err := r.helper.ExecTx(tx,
			"INSERT INTO reservation_attendees (reservation_id, user_id, position) VALUES (?, ?, ?)",
			reservation.ID, userID, i,
		); err != nil {
			return r.mapper.MapError(err)
		}
	}
	for i, amenity := range reservation.RequiredAmenities {
		if _, err := r.helper.ExecTx(tx,
			"INSERT INTO reservation_amenities (reservation_id, amenity, position) VALUES (?, ?, ?)",
			reservation.ID, amenity, i,
		); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *ReservationRepository) loadLinkRows(ctx context.Context, reservation *persistence.Reservation) error {
	attendees, err := r.queryStrings(ctx,
		"SELECT user_id FROM reservation_attendees WHERE reservation_id = ? ORDER BY position ASC",
		reservation.ID,
	)
	if err != nil {
		return err
	}
	amenities, err := r.queryStrings(ctx,
		"SELECT amenity FROM reservation_amenities WHERE reservation_id = ? ORDER BY position ASC",
		reservation.ID,
	)
	if err != nil {
		return err
	}

	reservation.InternalAttendees = attendees
	reservation.RequiredAmenities = amenities
	return nil
}

func (r *ReservationRepository) queryReservations(ctx context.Context, query string, args ...any) ([]persistence.Reservation, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	for i := range reservations {
		if err := r.loadLinkRows(ctx, &reservations[i]); err != nil {
			return nil, err
		}
	}
	return reservations, nil
}

func (r *ReservationRepository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, r.mapper.MapError(err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return values, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	var startStr, endStr, createdAtStr, updatedAtStr string

	err := row.Scan(
		&reservation.ID,
		&reservation.RoomID,
		&reservation.UserID,
		&reservation.OrganizationID,
		&reservation.Agenda,
		&startStr,
		&endStr,
		&reservation.Status,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}

	if reservation.Start, err = parseTime(startStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: failed to parse start_time: %w", err)
	}
	if reservation.End, err = parseTime(endStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: failed to parse end_time: %w", err)
	}
	if reservation.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: failed to parse created_at: %w", err)
	}
	if reservation.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("sqlite: failed to parse updated_at: %w", err)
	}
	return reservation, nil
}
