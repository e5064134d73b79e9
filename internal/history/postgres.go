package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the utterances table. Execute it via
// [PostgresRecorder.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS utterances (
    id         BIGSERIAL PRIMARY KEY,
    session_id TEXT NOT NULL DEFAULT '',
    role       TEXT NOT NULL,
    text       TEXT NOT NULL,
    spoken_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_utterances_session ON utterances(session_id, spoken_at);
`

// DB is the database interface used by [PostgresRecorder]. Both
// *pgxpool.Pool and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRecorder is a [Recorder] backed by PostgreSQL. Records are
// appended in arrival order; the serial primary key preserves
// turn-completion order even when timestamps collide.
type PostgresRecorder struct {
	db        DB
	sessionID string
}

// Compile-time interface assertion.
var _ Recorder = (*PostgresRecorder)(nil)

// NewPostgresRecorder creates a recorder writing to db. sessionID tags every
// record so multiple sessions can share one table; it may be empty.
func NewPostgresRecorder(db DB, sessionID string) *PostgresRecorder {
	return &PostgresRecorder{db: db, sessionID: sessionID}
}

// WithSession returns a copy of the recorder tagged with sessionID.
func (r *PostgresRecorder) WithSession(sessionID string) *PostgresRecorder {
	return &PostgresRecorder{db: r.db, sessionID: sessionID}
}

// Migrate executes the [Schema] DDL, creating the utterances table and index
// if they do not already exist.
func (r *PostgresRecorder) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Record inserts the utterance.
func (r *PostgresRecorder) Record(ctx context.Context, u Utterance) error {
	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO utterances (session_id, role, text, spoken_at) VALUES ($1, $2, $3, $4)`,
		r.sessionID, string(u.Role), u.Text, ts,
	)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns up to n of the session's most recent utterances in
// chronological order.
func (r *PostgresRecorder) Recent(ctx context.Context, n int) ([]Utterance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT role, text, spoken_at FROM (
		    SELECT role, text, spoken_at, id FROM utterances
		    WHERE session_id = $1 ORDER BY id DESC LIMIT $2
		 ) recent ORDER BY id ASC`,
		r.sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []Utterance
	for rows.Next() {
		var u Utterance
		var role string
		if err := rows.Scan(&role, &u.Text, &u.Timestamp); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		u.Role = Role(role)
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return out, nil
}
