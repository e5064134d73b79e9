package voices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/natea/conversational-reflection/pkg/synth"
)

// Schema is the SQL DDL for the voice_profiles table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS voice_profiles (
    participant_id    TEXT PRIMARY KEY,
    display_name      TEXT NOT NULL,
    voice_description TEXT NOT NULL DEFAULT '',
    voice_id          TEXT NOT NULL DEFAULT '',
    gender            TEXT NOT NULL DEFAULT '',
    age_range         TEXT NOT NULL DEFAULT '',
    accent            TEXT NOT NULL DEFAULT '',
    typical_emotions  JSONB NOT NULL DEFAULT '[]',
    speaking_style    TEXT NOT NULL DEFAULT '',
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_voice_profiles_name ON voice_profiles(display_name);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists voice profiles. The configuration path writes
// through it; at startup its contents seed the in-memory [Registry] that
// live sessions read. The self profile lives only in configuration and is
// never stored here.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store using the given connection or pool. Call
// [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the voice_profiles table and
// index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("voices: migrate: %w", err)
	}
	return nil
}

// Upsert creates or replaces the profile keyed by its ParticipantID.
func (s *PostgresStore) Upsert(ctx context.Context, p synth.Profile) error {
	if p.ParticipantID == "" {
		return fmt.Errorf("voices: profile requires a participant_id")
	}
	emotions, err := json.Marshal(emptySlice(p.TypicalEmotions))
	if err != nil {
		return fmt.Errorf("voices: marshal typical_emotions: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO voice_profiles
		    (participant_id, display_name, voice_description, voice_id,
		     gender, age_range, accent, typical_emotions, speaking_style, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (participant_id) DO UPDATE SET
		    display_name = EXCLUDED.display_name,
		    voice_description = EXCLUDED.voice_description,
		    voice_id = EXCLUDED.voice_id,
		    gender = EXCLUDED.gender,
		    age_range = EXCLUDED.age_range,
		    accent = EXCLUDED.accent,
		    typical_emotions = EXCLUDED.typical_emotions,
		    speaking_style = EXCLUDED.speaking_style,
		    updated_at = now()`,
		p.ParticipantID, p.DisplayName, p.VoiceDescription, p.VoiceID,
		p.Gender, p.AgeRange, p.Accent, emotions, p.SpeakingStyle,
	)
	if err != nil {
		return fmt.Errorf("voices: upsert %q: %w", p.ParticipantID, err)
	}
	return nil
}

// Get returns the profile for id, or [ErrNotFound].
func (s *PostgresStore) Get(ctx context.Context, id string) (synth.Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT participant_id, display_name, voice_description, voice_id,
		       gender, age_range, accent, typical_emotions, speaking_style
		FROM voice_profiles WHERE participant_id = $1`, id)

	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return synth.Profile{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return synth.Profile{}, fmt.Errorf("voices: get %q: %w", id, err)
	}
	return p, nil
}

// Delete removes the profile for id. Deleting an unknown id returns
// [ErrNotFound].
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM voice_profiles WHERE participant_id = $1`, id)
	if err != nil {
		return fmt.Errorf("voices: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}

// List returns all stored profiles, ordered by participant ID.
func (s *PostgresStore) List(ctx context.Context) ([]synth.Profile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT participant_id, display_name, voice_description, voice_id,
		       gender, age_range, accent, typical_emotions, speaking_style
		FROM voice_profiles ORDER BY participant_id`)
	if err != nil {
		return nil, fmt.Errorf("voices: list: %w", err)
	}
	defer rows.Close()

	var out []synth.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("voices: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("voices: rows: %w", err)
	}
	return out, nil
}

// SeedRegistry loads every stored profile into reg. Profiles colliding with
// the self ID are skipped — the configured self persona always wins.
func (s *PostgresStore) SeedRegistry(ctx context.Context, reg *Registry) error {
	profiles, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := reg.Set(p.ParticipantID, p); err != nil {
			if errors.Is(err, ErrSelfProfileImmutable) {
				continue
			}
			return err
		}
	}
	return nil
}

// scanProfile reads one profile row. Works for both pgx.Row and pgx.Rows.
func scanProfile(row pgx.Row) (synth.Profile, error) {
	var p synth.Profile
	var emotions []byte
	err := row.Scan(&p.ParticipantID, &p.DisplayName, &p.VoiceDescription,
		&p.VoiceID, &p.Gender, &p.AgeRange, &p.Accent, &emotions, &p.SpeakingStyle)
	if err != nil {
		return synth.Profile{}, err
	}
	if len(emotions) > 0 {
		if err := json.Unmarshal(emotions, &p.TypicalEmotions); err != nil {
			return synth.Profile{}, fmt.Errorf("unmarshal typical_emotions: %w", err)
		}
	}
	return p, nil
}

// emptySlice normalises a nil slice to an empty one so JSONB columns store
// [] rather than null.
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
