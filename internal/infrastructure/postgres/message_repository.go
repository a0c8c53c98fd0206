package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/message"
)

const messageColumns = `id, conversation_id, sender_id, content, is_read, created_at`

// MessageRepository implements message.Repository.
type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create appends a message and bumps the conversation's updated_at.
func (r *MessageRepository) Create(ctx context.Context, m *message.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `UPDATE conversations SET updated_at=$1 WHERE id=$2`, m.CreatedAt, m.ConversationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return conversation.ErrNotFound
	}
	if err := insertMessage(ctx, tx, m); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int, before *time.Time) ([]*message.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id=$1`
	args := []interface{}{conversationID}
	idx := 2
	if before != nil {
		query += " AND created_at < $" + itoa(idx)
		args = append(args, *before)
		idx++
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT $" + itoa(idx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, viewerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE messages SET is_read=TRUE
		WHERE conversation_id=$1 AND sender_id<>$2 AND NOT is_read
		RETURNING id
	`, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *MessageRepository) CountUnread(ctx context.Context, conversationID, viewerID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id=$1 AND sender_id<>$2 AND NOT is_read
	`, conversationID, viewerID).Scan(&n)
	return n, err
}

func insertMessage(ctx context.Context, tx pgx.Tx, m *message.Message) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, m.ID, m.ConversationID, m.SenderID, m.Content, m.IsRead, m.CreatedAt)
	return err
}

func scanMessage(row pgx.Row) (*message.Message, error) {
	var m message.Message
	if err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
