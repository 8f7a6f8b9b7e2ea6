package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema DDL mirrors the authoritative relational schema. The unique
// constraints here are the ground truth for idempotency and waitlist
// dedup; application-level checks are best-effort fast paths.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id   SERIAL PRIMARY KEY,
		name TEXT UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS courses (
		id          SERIAL PRIMARY KEY,
		name        TEXT UNIQUE,
		capacity    INTEGER NOT NULL CHECK (capacity >= 0),
		seats_taken INTEGER NOT NULL DEFAULT 0 CHECK (seats_taken >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		id              SERIAL PRIMARY KEY,
		student_id      INTEGER REFERENCES students (id),
		course_id       INTEGER REFERENCES courses (id),
		idempotency_key VARCHAR(64) UNIQUE NOT NULL,
		booked_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_enrollments_course_id ON enrollments (course_id)`,
	`CREATE TABLE IF NOT EXISTS waitlist (
		student_id INTEGER REFERENCES students (id),
		course_id  INTEGER REFERENCES courses (id),
		PRIMARY KEY (student_id, course_id)
	)`,
}

// EnsureSchema creates the CourseFlow tables when missing. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
