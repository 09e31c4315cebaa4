// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/util"
)

// Schema creates the transcript tables.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	model      TEXT NOT NULL DEFAULT '{}',
	rag        TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	id              TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	timestamp       INTEGER NOT NULL,
	status          TEXT NOT NULL DEFAULT '',
	agent_name      TEXT NOT NULL DEFAULT '',
	agent_action    TEXT NOT NULL DEFAULT '',
	metadata        TEXT,
	PRIMARY KEY (conversation_id, id)
);

CREATE INDEX IF NOT EXISTS idx_messages_seq ON messages(conversation_id, seq);
CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
`

// untitled marks a conversation whose title is still open.
const untitled = "Untitled"

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrAmbiguousID is returned when an id prefix matches several conversations.
var ErrAmbiguousID = &ConversationError{Message: "conversation id is ambiguous"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// HISTORY
// =============================================================================

// History persists transcripts in SQLite.
type History struct {
	db *sql.DB

	// MaxConversations limits stored conversations (0 = unlimited)
	MaxConversations int

	mu  sync.Mutex
	now func() time.Time
}

// Open opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func Open(path string, maxConversations int) (*History, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &History{db: db, MaxConversations: maxConversations, now: time.Now}, nil
}

// Close releases the database.
func (h *History) Close() error {
	return h.db.Close()
}

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// Begin creates an empty conversation and returns its id. Conversations
// beyond MaxConversations are pruned oldest first.
func (h *History) Begin(ctx context.Context, mc model.ModelConfig, rc model.RAGConfig) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	mcJSON, err := json.Marshal(mc)
	if err != nil {
		return "", err
	}
	rcJSON, err := json.Marshal(rc)
	if err != nil {
		return "", err
	}

	id := model.NewID()
	now := h.now().UnixNano()
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at, model, rag) VALUES (?, ?, ?, ?, ?, ?)`,
		id, untitled, now, now, string(mcJSON), string(rcJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}

	if err := h.pruneLocked(ctx, id); err != nil {
		return id, err
	}
	return id, nil
}

// Append stores msg at the end of conversation id. A message already stored
// under the same id keeps its role, content and position; only its status
// and metadata are updated.
func (h *History) Append(ctx context.Context, id string, msg model.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var metadata sql.NullString
	if msg.Metadata != nil {
		b, err := json.Marshal(msg.Metadata)
		if err != nil {
			return err
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, h.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, id, seq, role, content, timestamp, status, agent_name, agent_action, metadata)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (conversation_id, id) DO UPDATE SET
			status = excluded.status,
			metadata = COALESCE(excluded.metadata, messages.metadata)`,
		id, msg.ID, id, string(msg.Role), msg.Content, msg.Timestamp.UnixNano(),
		string(msg.Status), msg.AgentName, msg.AgentAction, metadata)
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}

	if msg.Role == model.RoleUser {
		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET title = ? WHERE id = ? AND title = ?`,
			msg.Preview(50), id, untitled)
		if err != nil {
			return fmt.Errorf("failed to set title: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateConfig records the configuration a conversation now runs with.
func (h *History) UpdateConfig(ctx context.Context, id string, mc model.ModelConfig, rc model.RAGConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	mcJSON, err := json.Marshal(mc)
	if err != nil {
		return err
	}
	rcJSON, err := json.Marshal(rc)
	if err != nil {
		return err
	}
	res, err := h.db.ExecContext(ctx,
		`UPDATE conversations SET model = ?, rag = ?, updated_at = ? WHERE id = ?`,
		string(mcJSON), string(rcJSON), h.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Delete removes a conversation and its messages.
func (h *History) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// pruneLocked deletes the oldest conversations beyond the limit, never
// touching keep.
func (h *History) pruneLocked(ctx context.Context, keep string) error {
	if h.MaxConversations <= 0 {
		return nil
	}
	_, err := h.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE id != ? AND id NOT IN (
			SELECT id FROM conversations ORDER BY updated_at DESC, created_at DESC LIMIT ?
		)`, keep, h.MaxConversations)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	return nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// List returns every conversation, most recently updated first.
func (h *History) List(ctx context.Context) ([]model.TranscriptMeta, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC, c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var metas []model.TranscriptMeta
	for rows.Next() {
		var m model.TranscriptMeta
		var created, updated int64
		if err := rows.Scan(&m.ID, &m.Title, &created, &updated, &m.MessageCount); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(0, created)
		m.UpdatedAt = time.Unix(0, updated)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Resolve expands a unique id prefix to the full conversation id.
func (h *History) Resolve(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrConversationNotFound
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := h.db.QueryContext(ctx,
		`SELECT id FROM conversations WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escaped+"%")
	if err != nil {
		return "", fmt.Errorf("failed to resolve id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", ErrConversationNotFound
	case 1:
		return ids[0], nil
	}
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
	}
	return "", ErrAmbiguousID
}

// Load returns the conversation with the given id or unique id prefix.
func (h *History) Load(ctx context.Context, idOrPrefix string) (*model.Transcript, error) {
	id, err := h.Resolve(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	tr := &model.Transcript{ID: id}
	var created, updated int64
	var mcJSON, rcJSON string
	err = h.db.QueryRowContext(ctx,
		`SELECT title, created_at, updated_at, model, rag FROM conversations WHERE id = ?`, id).
		Scan(&tr.Title, &created, &updated, &mcJSON, &rcJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	tr.CreatedAt = time.Unix(0, created)
	tr.UpdatedAt = time.Unix(0, updated)
	if err := json.Unmarshal([]byte(mcJSON), &tr.Model); err != nil {
		return nil, fmt.Errorf("corrupt model config: %w", err)
	}
	if err := json.Unmarshal([]byte(rcJSON), &tr.RAG); err != nil {
		return nil, fmt.Errorf("corrupt rag config: %w", err)
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, role, content, timestamp, status, agent_name, agent_action, metadata
		FROM messages WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.Message
		var role, status string
		var ts int64
		var metadata sql.NullString
		if err := rows.Scan(&m.ID, &role, &m.Content, &ts, &status, &m.AgentName, &m.AgentAction, &metadata); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		m.Status = model.Status(status)
		m.Timestamp = time.Unix(0, ts)
		if metadata.Valid {
			m.Metadata = &model.Metadata{}
			if err := json.Unmarshal([]byte(metadata.String), m.Metadata); err != nil {
				return nil, fmt.Errorf("corrupt metadata on %s: %w", m.ID, err)
			}
		}
		tr.Messages = append(tr.Messages, m)
	}
	return tr, rows.Err()
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders conversations as a table for the terminal.
func FormatList(metas []model.TranscriptMeta) string {
	if len(metas) == 0 {
		return "No conversations found."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("ID", 10) + " " + util.PadRight("Updated", 17) + " " +
		util.PadRight("Msgs", 5) + " Title\n")
	sb.WriteString(strings.Repeat("-", 70) + "\n")
	for _, m := range metas {
		id := m.ID
		if len(id) > 8 {
			id = id[:8]
		}
		sb.WriteString(util.PadRight(id, 10) + " " +
			util.PadRight(m.UpdatedAt.Format("2006-01-02 15:04"), 17) + " " +
			util.PadRight(strconv.Itoa(m.MessageCount), 5) + " " +
			util.TruncateWidth(m.Title, 36) + "\n")
	}
	return sb.String()
}
