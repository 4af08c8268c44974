// Package postgres provides a PostgreSQL-backed implementation of
// [persist.Sink].
//
// All writes go through a single [pgxpool.Pool]. [Migrate] creates the schema
// idempotently, so a fresh database needs no manual setup:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.WriteEntry(ctx, sessionID, entry)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscriptEntries = `
CREATE TABLE IF NOT EXISTS transcript_entries (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    seq         BIGINT       NOT NULL,
    text        TEXT         NOT NULL,
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    status      TEXT         NOT NULL,
    started_at  TIMESTAMPTZ  NOT NULL,
    ended_at    TIMESTAMPTZ  NOT NULL,
    UNIQUE (session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_session
    ON transcript_entries (session_id, seq);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_fts
    ON transcript_entries USING GIN (to_tsvector('english', text));
`

const ddlSummaries = `
CREATE TABLE IF NOT EXISTS session_summaries (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    summary     TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_session_summaries_session
    ON session_summaries (session_id);
`

const ddlRecordings = `
CREATE TABLE IF NOT EXISTS recordings (
    id           BIGSERIAL    PRIMARY KEY,
    session_id   TEXT         NOT NULL,
    sample_rate  INT          NOT NULL DEFAULT 0,
    channels     INT          NOT NULL DEFAULT 0,
    started_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    ended_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_recordings_session
    ON recordings (session_id);

CREATE TABLE IF NOT EXISTS recording_chunks (
    recording_id BIGINT       NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
    idx          BIGINT       NOT NULL,
    pcm          BYTEA        NOT NULL,
    captured_at  TIMESTAMPTZ  NOT NULL,
    PRIMARY KEY (recording_id, idx)
);
`

// Migrate creates all required tables and indexes. It is idempotent and safe
// to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlTranscriptEntries, ddlSummaries, ddlRecordings} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
