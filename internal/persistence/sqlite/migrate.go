package sqlite

import (
	"context"
	"fmt"
)

// schema holds the statements applied at startup. Every statement is
// idempotent so Migrate can run on every boot.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('admin', 'member')),
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_organization ON users (organization_id)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		display_projector INTEGER NOT NULL DEFAULT 0,
		display_whiteboard INTEGER NOT NULL DEFAULT 0,
		catering_available INTEGER NOT NULL DEFAULT 0,
		video_conference_available INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (organization_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms (id),
		user_id TEXT NOT NULL REFERENCES users (id),
		organization_id TEXT NOT NULL,
		agenda TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (end_time > start_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_room_time ON reservations (room_id, start_time, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_status_end ON reservations (status, end_time)`,
	`CREATE TABLE IF NOT EXISTS reservation_attendees (
		reservation_id TEXT NOT NULL REFERENCES reservations (id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (reservation_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_amenities (
		reservation_id TEXT NOT NULL REFERENCES reservations (id) ON DELETE CASCADE,
		amenity TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (reservation_id, amenity)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		revoked_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions (expires_at)`,
}

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, pool *ConnectionPool) error {
	for _, statement := range schema {
		if _, err := pool.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("sqlite: migration failed: %w", err)
		}
	}
	return nil
}
