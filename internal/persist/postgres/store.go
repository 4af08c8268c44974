package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jperram92/JamesConvoBot/internal/persist"
	"github.com/jperram92/JamesConvoBot/internal/transcript"
	"github.com/jperram92/JamesConvoBot/pkg/audio"
)

var _ persist.Sink = (*Store)(nil)

// Store is the PostgreSQL-backed [persist.Sink]. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn, verifies
// connectivity, and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// WriteEntry implements [persist.Sink]. The (session_id, seq) unique
// constraint makes retried writes after a worker restart idempotent.
func (s *Store) WriteEntry(ctx context.Context, sessionID string, e transcript.Entry) error {
	const q = `
		INSERT INTO transcript_entries
		    (session_id, seq, text, confidence, status, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, seq) DO NOTHING`

	_, err := s.pool.Exec(ctx, q,
		sessionID,
		int64(e.Seq),
		e.Text,
		e.Confidence,
		string(e.Status),
		e.Start,
		e.End,
	)
	if err != nil {
		return fmt.Errorf("postgres store: write entry: %w", err)
	}
	return nil
}

// WriteSummary implements [persist.Sink].
func (s *Store) WriteSummary(ctx context.Context, sessionID string, text string) error {
	const q = `INSERT INTO session_summaries (session_id, summary) VALUES ($1, $2)`
	if _, err := s.pool.Exec(ctx, q, sessionID, text); err != nil {
		return fmt.Errorf("postgres store: write summary: %w", err)
	}
	return nil
}

// OpenRecording implements [persist.Sink]. It inserts a recordings row and
// returns a handle that streams frames into recording_chunks.
func (s *Store) OpenRecording(ctx context.Context, sessionID string) (persist.Recording, error) {
	const q = `INSERT INTO recordings (session_id) VALUES ($1) RETURNING id`

	var id int64
	if err := s.pool.QueryRow(ctx, q, sessionID).Scan(&id); err != nil {
		return nil, fmt.Errorf("postgres store: open recording: %w", err)
	}
	return &recording{pool: s.pool, id: id}, nil
}

// Transcript returns the stored durable entries for a session in sequence
// order.
func (s *Store) Transcript(ctx context.Context, sessionID string) ([]transcript.Entry, error) {
	const q = `
		SELECT seq, text, confidence, status, started_at, ended_at
		FROM   transcript_entries
		WHERE  session_id = $1
		ORDER  BY seq`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: transcript: %w", err)
	}
	return collectEntries(rows)
}

// SearchTranscript performs a full-text search over a session's entries,
// ordered by sequence. limit caps the result count; 0 means no limit.
func (s *Store) SearchTranscript(ctx context.Context, sessionID, query string, limit int) ([]transcript.Entry, error) {
	args := []any{sessionID, query}
	q := strings.Join([]string{
		"SELECT seq, text, confidence, status, started_at, ended_at",
		"FROM   transcript_entries",
		"WHERE  session_id = $1",
		"  AND  to_tsvector('english', text) @@ plainto_tsquery('english', $2)",
		"ORDER  BY seq",
	}, "\n")
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search transcript: %w", err)
	}
	return collectEntries(rows)
}

// Close implements [persist.Sink]. It releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// collectEntries scans pgx rows into transcript entries.
func collectEntries(rows pgx.Rows) ([]transcript.Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transcript.Entry, error) {
		var (
			e      transcript.Entry
			seq    int64
			status string
		)
		if err := row.Scan(&seq, &e.Text, &e.Confidence, &status, &e.Start, &e.End); err != nil {
			return transcript.Entry{}, err
		}
		e.Seq = uint64(seq)
		e.Status = transcript.Status(status)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if entries == nil {
		entries = []transcript.Entry{}
	}
	return entries, nil
}

// recording streams frames of one open recording into recording_chunks.
type recording struct {
	pool *pgxpool.Pool
	id   int64
	idx  int64

	formatKnown bool
}

var _ persist.Recording = (*recording)(nil)

// WriteFrame implements [persist.Recording]. The first frame fixes the
// recording's sample format.
func (r *recording) WriteFrame(ctx context.Context, frame audio.AudioFrame) error {
	if !r.formatKnown {
		const q = `UPDATE recordings SET sample_rate = $2, channels = $3 WHERE id = $1`
		if _, err := r.pool.Exec(ctx, q, r.id, frame.SampleRate, frame.Channels); err != nil {
			return fmt.Errorf("postgres store: recording format: %w", err)
		}
		r.formatKnown = true
	}

	const q = `
		INSERT INTO recording_chunks (recording_id, idx, pcm, captured_at)
		VALUES ($1, $2, $3, $4)`

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := r.pool.Exec(ctx, q, r.id, r.idx, frame.Data, ts); err != nil {
		return fmt.Errorf("postgres store: write recording frame: %w", err)
	}
	r.idx++
	return nil
}

// Close implements [persist.Recording]. It stamps the recording's end time.
func (r *recording) Close(ctx context.Context) error {
	const q = `UPDATE recordings SET ended_at = now() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, r.id); err != nil {
		return fmt.Errorf("postgres store: close recording: %w", err)
	}
	return nil
}
