package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/AshuferMorningstar/Mafia/internal/engine"
)

// MaxHistoryLimit caps a single history query; DefaultHistoryLimit is
// used when the caller asks for no particular count.
const (
	MaxHistoryLimit     = 500
	DefaultHistoryLimit = 50
)

// MessageRepository persists chat messages in SQLite. It satisfies
// engine.MessageStore.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Save inserts one chat message row.
func (r *MessageRepository) Save(ctx context.Context, rec engine.ChatRecord) error {
	query := `
		INSERT INTO messages (id, room, sender_id, sender_name, text, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Room, rec.SenderID, rec.SenderName, rec.Text, rec.TS,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// Purge deletes all history for the given room values. Called on room
// reset with the room code and both team sub-room names.
func (r *MessageRepository) Purge(ctx context.Context, rooms ...string) error {
	if len(rooms) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(rooms)), ", ")
	args := make([]any, len(rooms))
	for i, room := range rooms {
		args[i] = room
	}
	query := fmt.Sprintf(`DELETE FROM messages WHERE room IN (%s)`, placeholders)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to purge messages: %w", err)
	}
	return nil
}

// Recent returns up to limit messages for a room value, newest last.
// A non-positive limit means DefaultHistoryLimit; larger requests are
// clamped to MaxHistoryLimit.
func (r *MessageRepository) Recent(ctx context.Context, room string, limit int) ([]engine.ChatRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	query := `
		SELECT id, room, sender_id, sender_name, text, ts
		FROM messages
		WHERE room = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var recs []engine.ChatRecord
	for rows.Next() {
		var rec engine.ChatRecord
		if err := rows.Scan(&rec.ID, &rec.Room, &rec.SenderID, &rec.SenderName, &rec.Text, &rec.TS); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query walks newest first for the LIMIT; flip to newest last.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	return recs, nil
}
