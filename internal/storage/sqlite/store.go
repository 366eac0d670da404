// Package sqlite is a SQLite-backed TranscriptStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tailorblend/consultant-api/internal/storage"
)

// Store is a SQLite implementation of TranscriptStore.
type Store struct {
	db *sql.DB
}

var _ storage.TranscriptStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transcripts (
			session_id TEXT PRIMARY KEY,
			model TEXT NOT NULL DEFAULT '',
			total_input_tokens INTEGER NOT NULL DEFAULT 0,
			total_output_tokens INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (session_id) REFERENCES transcripts(session_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_updated ON transcripts(updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *storage.StoredMessage) error {
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transcripts (session_id, model, total_input_tokens, total_output_tokens, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			model = CASE WHEN excluded.model != '' THEN excluded.model ELSE transcripts.model END,
			total_input_tokens = transcripts.total_input_tokens + excluded.total_input_tokens,
			total_output_tokens = transcripts.total_output_tokens + excluded.total_output_tokens,
			updated_at = excluded.updated_at`,
		msg.SessionID, msg.Model, msg.InputTokens, msg.OutputTokens, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert transcript: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, model, input_tokens, output_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Model, msg.InputTokens, msg.OutputTokens, now)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetTranscript(ctx context.Context, sessionID string) (*storage.Transcript, error) {
	var t storage.Transcript
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, model, total_input_tokens, total_output_tokens, created_at, updated_at
		 FROM transcripts WHERE session_id = ?`, sessionID).Scan(
		&t.SessionID, &t.Model, &t.TotalInputTokens, &t.TotalOutputTokens, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, model, input_tokens, output_tokens, created_at
		 FROM messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m storage.StoredMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Model,
			&m.InputTokens, &m.OutputTokens, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		t.Messages = append(t.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return &t, nil
}

func (s *Store) ListTranscripts(ctx context.Context, opts storage.ListOptions) ([]*storage.Transcript, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, model, total_input_tokens, total_output_tokens, created_at, updated_at
		 FROM transcripts ORDER BY updated_at DESC LIMIT ? OFFSET ?`, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	result := []*storage.Transcript{}
	for rows.Next() {
		var t storage.Transcript
		if err := rows.Scan(&t.SessionID, &t.Model, &t.TotalInputTokens,
			&t.TotalOutputTokens, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		result = append(result, &t)
	}
	return result, rows.Err()
}

func (s *Store) DeleteTranscript(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM transcripts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
