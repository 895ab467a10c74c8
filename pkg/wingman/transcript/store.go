// Package transcript keeps the recent-message window the reply loop
// reads its history from. The original host client held messages in its
// own UI; running as a gateway bot we mirror them into a small SQLite
// table, bounded per conversation. Only raw host messages are stored —
// gate state and provider session state are never persisted.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// Message is one stored host message.
type Message struct {
	// ID is the platform message identifier.
	ID string

	// ChatID is the conversation the message belongs to.
	ChatID string

	// Author is the sender's platform identifier.
	Author string

	// AuthorName is the sender's display name.
	AuthorName string

	// FromBot marks messages the bot itself sent.
	FromBot bool

	// Text is the message content.
	Text string

	// Timestamp is when the message was sent.
	Timestamp time.Time
}

// Store is the transcript surface the reply loop depends on.
type Store interface {
	// Append records a message, pruning the conversation window.
	Append(ctx context.Context, msg Message) error

	// Recent returns up to limit messages of a conversation, oldest first.
	Recent(ctx context.Context, chatID string, limit int) ([]Message, error)

	// Close releases the underlying storage.
	Close() error
}

// SQLiteStore persists the transcript window in a SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	maxPerChat int
	logger     *slog.Logger
}

// NewSQLiteStore opens or creates the transcript database. maxPerChat
// bounds how many messages are kept per conversation.
func NewSQLiteStore(dbPath string, maxPerChat int, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPerChat <= 0 {
		maxPerChat = 200
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	store := &SQLiteStore{
		db:         db,
		maxPerChat: maxPerChat,
		logger:     logger.With("component", "transcript"),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// initSchema creates the messages table and its index.
func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			chat_id     TEXT NOT NULL,
			author      TEXT NOT NULL,
			author_name TEXT,
			from_bot    INTEGER NOT NULL DEFAULT 0,
			text        TEXT NOT NULL,
			ts          DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_id, ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records a message and prunes the conversation beyond the
// configured window.
func (s *SQLiteStore) Append(ctx context.Context, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages (id, chat_id, author, author_name, from_bot, text, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Author, msg.AuthorName, msg.FromBot, msg.Text, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	// Drop everything older than the newest maxPerChat rows.
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE chat_id = ? AND id NOT IN (
			SELECT id FROM messages WHERE chat_id = ? ORDER BY ts DESC LIMIT ?
		)`,
		msg.ChatID, msg.ChatID, s.maxPerChat,
	)
	if err != nil {
		return fmt.Errorf("prune messages: %w", err)
	}

	return nil
}

// Recent returns up to limit messages of a conversation, oldest first.
func (s *SQLiteStore) Recent(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, author, author_name, from_bot, text, ts
		FROM messages WHERE chat_id = ?
		ORDER BY ts DESC LIMIT ?`,
		chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var newestFirst []Message
	for rows.Next() {
		var m Message
		var name sql.NullString
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Author, &name, &m.FromBot, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.AuthorName = name.String
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to oldest-first for history assembly.
	out := make([]Message, len(newestFirst))
	for i, m := range newestFirst {
		out[len(newestFirst)-1-i] = m
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
