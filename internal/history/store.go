// Package history persists tutoring sessions and their chat records in a
// local SQLite database so transcripts survive restarts.
//
// The store runs in WAL mode for concurrent reads during writes. All writes
// from the session controller are best-effort: the controller logs failures
// and keeps running, so the store never blocks the audio pipeline.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tutorvox/tutorvox/internal/tutor"
)

// Compile-time interface assertion.
var _ tutor.HistoryStore = (*Store)(nil)

// Store is a SQLite-backed transcript store.
type Store struct {
	db *sql.DB
}

// SessionRecord is one persisted tutoring session.
type SessionRecord struct {
	ID        uuid.UUID
	Level     string
	StartedAt time.Time
	// EndedAt is zero while the session is still open.
	EndedAt time.Time
}

// Open opens (creating if necessary) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// modernc.org/sqlite serializes through a single connection; more just
	// contend on the file lock.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	level      TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	ended_at   INTEGER
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	sender     TEXT NOT NULL,
	text       TEXT NOT NULL,
	correction INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("history: apply schema: %w", err)
	}
	return nil
}

// Ping verifies the database connection. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginSession records the start of a session.
func (s *Store) BeginSession(ctx context.Context, id uuid.UUID, level string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, level, started_at) VALUES (?, ?, ?)`,
		id.String(), level, startedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("history: begin session: %w", err)
	}
	return nil
}

// EndSession records the end of a session. Ending an unknown session is not
// an error; it is simply a no-op.
func (s *Store) EndSession(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`,
		endedAt.UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("history: end session: %w", err)
	}
	return nil
}

// AppendMessage persists one committed chat record.
func (s *Store) AppendMessage(ctx context.Context, sessionID uuid.UUID, msg tutor.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, sender, text, correction, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), sessionID.String(), string(msg.Sender), msg.Text,
		boolToInt(msg.Correction), msg.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("history: append message: %w", err)
	}
	return nil
}

// Messages returns all records of a session in commit order.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID) ([]tutor.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, text, correction, created_at
		 FROM messages WHERE session_id = ? ORDER BY created_at, id`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("history: list messages: %w", err)
	}
	defer rows.Close()

	var out []tutor.ChatMessage
	for rows.Next() {
		var (
			idStr, sender, text string
			correction          int
			createdAt           int64
		)
		if err := rows.Scan(&idStr, &sender, &text, &correction, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan message: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("history: corrupt message id %q: %w", idStr, err)
		}
		out = append(out, tutor.ChatMessage{
			ID:         id,
			Sender:     tutor.Sender(sender),
			Text:       text,
			Correction: correction != 0,
			Timestamp:  time.UnixMilli(createdAt),
		})
	}
	return out, rows.Err()
}

// Sessions returns all persisted sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, level, started_at, ended_at FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("history: list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			idStr, level string
			startedAt    int64
			endedAt      sql.NullInt64
		)
		if err := rows.Scan(&idStr, &level, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("history: scan session: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("history: corrupt session id %q: %w", idStr, err)
		}
		rec := SessionRecord{
			ID:        id,
			Level:     level,
			StartedAt: time.UnixMilli(startedAt),
		}
		if endedAt.Valid {
			rec.EndedAt = time.UnixMilli(endedAt.Int64)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes sessions that ended before the cutoff, along with their
// messages. Open sessions are never pruned. Returns the number of sessions
// removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?`,
		before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: prune row count: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
