package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jaaabir/tim-ai/pkg/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	thread_id TEXT NOT NULL,
	role      TEXT NOT NULL,
	content   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id);
`

// SQLiteStore persists histories in a SQLite database so conversations
// survive restarts. Message order is insertion order (rowid).
type SQLiteStore struct {
	db       *sql.DB
	turnLock *keyedMutex
}

// NewSQLiteStore opens (or creates) the database at path.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and
	// serializes writes, which SQLite wants anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, turnLock: newKeyedMutex()}, nil
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, threadID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE thread_id = ? ORDER BY id ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, chat.Message{Role: chat.Role(role), Content: content})
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, threadID string, msgs ...chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (thread_id, role, content) VALUES (?, ?, ?)`,
			threadID, string(m.Role), m.Content); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Replace(ctx context.Context, threadID string, msgs []chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE thread_id = ?`, threadID); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear history: %w", err)
	}
	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (thread_id, role, content) VALUES (?, ?, ?)`,
			threadID, string(m.Role), m.Content); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Lock(threadID string) func() {
	return s.turnLock.lock(threadID)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
