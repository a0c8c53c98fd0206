package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/checkerhub/checkerhub/internal/domain/conversation"
	"github.com/checkerhub/checkerhub/internal/domain/message"
)

const conversationColumns = `c.id, c.client_id, c.checker_id, c.status, c.price, c.receipt_url, c.payment_ref,
	c.client_hidden, c.checker_hidden, c.created_at, c.updated_at`

const detailQuery = `SELECT ` + conversationColumns + `,
	COALESCE(NULLIF(u.display_name, ''), u.username, ''), COALESCE(k.display_name, ''), k.user_id
	FROM conversations c
	LEFT JOIN users u ON u.user_id = c.client_id
	LEFT JOIN checkers k ON k.id = c.checker_id`

const openPairIndex = "conversations_open_pair_idx"

// ConversationRepository implements conversation.Repository.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func (r *ConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertConversation(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ConversationRepository) CreateSupport(ctx context.Context, c *conversation.Conversation, first *message.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertConversation(ctx, tx, c); err != nil {
		return err
	}
	if first != nil {
		if err := insertMessage(ctx, tx, first); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*conversation.Conversation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id=$1`, id)
	return scanConversation(row)
}

func (r *ConversationRepository) GetDetail(ctx context.Context, id uuid.UUID) (*conversation.Detail, error) {
	row := r.pool.QueryRow(ctx, detailQuery+` WHERE c.id=$1`, id)
	return scanDetail(row)
}

func (r *ConversationRepository) FindOpen(ctx context.Context, clientID, checkerID uuid.UUID) (*conversation.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations c
		WHERE c.client_id=$1 AND c.checker_id=$2 AND c.status = ANY($3)
		LIMIT 1
	`, clientID, checkerID, conversation.StatusStrings(conversation.OpenStatuses()))
	return scanConversation(row)
}

func (r *ConversationRepository) FindLatest(ctx context.Context, clientID, checkerID uuid.UUID) (*conversation.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations c
		WHERE c.client_id=$1 AND c.checker_id=$2
		ORDER BY c.created_at DESC
		LIMIT 1
	`, clientID, checkerID)
	return scanConversation(row)
}

func (r *ConversationRepository) List(ctx context.Context, filter conversation.Filter, limit, offset int) ([]*conversation.Detail, error) {
	query := detailQuery
	args := []interface{}{}
	idx := 1
	if filter.ClientID != nil {
		query += addWhere(query) + " c.client_id=$" + itoa(idx)
		args = append(args, *filter.ClientID)
		idx++
		if !filter.IncludeHidden {
			query += " AND NOT c.client_hidden"
		}
	}
	if filter.CheckerID != nil {
		query += addWhere(query) + " c.checker_id=$" + itoa(idx)
		args = append(args, *filter.CheckerID)
		idx++
		if !filter.IncludeHidden {
			query += " AND NOT c.checker_hidden"
		}
	}
	if filter.Status != nil {
		query += addWhere(query) + " c.status=$" + itoa(idx)
		args = append(args, string(*filter.Status))
		idx++
	}
	query += " ORDER BY c.updated_at DESC LIMIT $" + itoa(idx) + " OFFSET $" + itoa(idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*conversation.Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Apply locks the row, checks the change against the stored status and writes
// the update together with its transition. The UPDATE repeats the status guard
// so a change never lands on a row that moved since it was read.
func (r *ConversationRepository) Apply(ctx context.Context, ch conversation.Change) (*conversation.Conversation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	c, err := scanConversation(tx.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations c WHERE c.id=$1 FOR UPDATE
	`, ch.ConversationID))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, conversation.ErrNotFound
	}
	tr, err := c.Apply(ch)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE conversations
		SET status=$1, receipt_url=$2, payment_ref=$3, updated_at=$4
		WHERE id=$5 AND status = ANY($6)
	`, string(c.Status), c.ReceiptURL, c.PaymentRef, c.UpdatedAt, c.ID, conversation.StatusStrings(ch.From))
	if err != nil {
		if isUniqueViolation(err, "conversations_payment_ref_key") {
			return nil, conversation.ErrDuplicatePayment
		}
		if isUniqueViolation(err, openPairIndex) {
			return nil, conversation.ErrDuplicateOpen
		}
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, &conversation.ConflictError{ConversationID: ch.ConversationID, Event: ch.Event, Current: *tr.From}
	}
	if err := insertTransition(ctx, tx, tr); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepository) ListTransitions(ctx context.Context, id uuid.UUID) ([]*conversation.Transition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, event, from_status, to_status, actor, reason, created_at
		FROM conversation_transitions
		WHERE conversation_id=$1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*conversation.Transition
	for rows.Next() {
		var tr conversation.Transition
		var event, to string
		var from *string
		if err := rows.Scan(&tr.ID, &tr.ConversationID, &event, &from, &to, &tr.Actor, &tr.Reason, &tr.CreatedAt); err != nil {
			return nil, err
		}
		tr.Event = conversation.Event(event)
		tr.To = conversation.Status(to)
		if from != nil {
			st := conversation.Status(*from)
			tr.From = &st
		}
		out = append(out, &tr)
	}
	return out, rows.Err()
}

func (r *ConversationRepository) Hide(ctx context.Context, id uuid.UUID, side conversation.Side) (bool, error) {
	column := "client_hidden"
	if side == conversation.SideChecker {
		column = "checker_hidden"
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var clientHidden, checkerHidden bool
	err = tx.QueryRow(ctx, `
		UPDATE conversations SET `+column+`=TRUE WHERE id=$1
		RETURNING client_hidden, checker_hidden
	`, id).Scan(&clientHidden, &checkerHidden)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, conversation.ErrNotFound
		}
		return false, err
	}
	deleted := false
	if clientHidden && checkerHidden {
		if _, err := tx.Exec(ctx, `DELETE FROM conversations WHERE id=$1`, id); err != nil {
			return false, err
		}
		deleted = true
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return deleted, nil
}

func insertConversation(ctx context.Context, tx pgx.Tx, c *conversation.Conversation) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO conversations
		(id, client_id, checker_id, status, price, receipt_url, payment_ref, client_hidden, checker_hidden, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, c.ID, c.ClientID, c.CheckerID, string(c.Status), c.Price, c.ReceiptURL, c.PaymentRef,
		c.ClientHidden, c.CheckerHidden, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, openPairIndex) {
			return conversation.ErrDuplicateOpen
		}
		return err
	}
	event := conversation.EventRequestTest
	if c.Status == conversation.StatusPaymentNegotiation {
		event = conversation.EventOpenSupport
	}
	return insertTransition(ctx, tx, &conversation.Transition{
		ID:             uuid.New(),
		ConversationID: c.ID,
		Event:          event,
		To:             c.Status,
		Actor:          "user:" + c.ClientID.String(),
		CreatedAt:      c.CreatedAt,
	})
}

func insertTransition(ctx context.Context, tx pgx.Tx, tr *conversation.Transition) error {
	var from *string
	if tr.From != nil {
		s := string(*tr.From)
		from = &s
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO conversation_transitions
		(id, conversation_id, event, from_status, to_status, actor, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, tr.ID, tr.ConversationID, string(tr.Event), from, string(tr.To), tr.Actor, tr.Reason, tr.CreatedAt)
	return err
}

func scanConversation(row pgx.Row) (*conversation.Conversation, error) {
	var c conversation.Conversation
	var status string
	if err := row.Scan(&c.ID, &c.ClientID, &c.CheckerID, &status, &c.Price, &c.ReceiptURL, &c.PaymentRef,
		&c.ClientHidden, &c.CheckerHidden, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Status = conversation.Status(status)
	return &c, nil
}

func scanDetail(row pgx.Row) (*conversation.Detail, error) {
	var d conversation.Detail
	var status string
	var checkerUserID *uuid.UUID
	if err := row.Scan(&d.ID, &d.ClientID, &d.CheckerID, &status, &d.Price, &d.ReceiptURL, &d.PaymentRef,
		&d.ClientHidden, &d.CheckerHidden, &d.CreatedAt, &d.UpdatedAt,
		&d.ClientName, &d.CheckerName, &checkerUserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	d.Status = conversation.Status(status)
	if checkerUserID != nil {
		d.CheckerUserID = *checkerUserID
	}
	return &d, nil
}
