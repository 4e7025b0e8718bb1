package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries holds the typed statements used by the stores.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type MessageRow struct {
	ID             int64
	ConversationID string
	Role           string
	Channel        string
	ParticipantID  string
	MessageType    string
	Text           string
	Metadata       []byte
	CreatedAt      time.Time
}

type ScoredMessageRow struct {
	MessageRow
	Score float64
}

type InsertMessageParams struct {
	ID             int64
	ConversationID string
	Role           string
	Channel        string
	ParticipantID  string
	MessageType    string
	Text           string
	Metadata       []byte
	// Embedding is nil when no vector could be computed; the column stays NULL.
	Embedding *pgvector.Vector
}

const messageColumns = `id, conversation_id, role, channel, participant_id, message_type, text, metadata, created_at`

const insertMessage = `
INSERT INTO messages (id, conversation_id, role, channel, participant_id, message_type, text, metadata, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8::jsonb, '{}'::jsonb), $9)
RETURNING ` + messageColumns

func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) (MessageRow, error) {
	row := q.db.QueryRow(ctx, insertMessage,
		arg.ID,
		arg.ConversationID,
		arg.Role,
		arg.Channel,
		arg.ParticipantID,
		arg.MessageType,
		arg.Text,
		arg.Metadata,
		arg.Embedding,
	)
	return scanMessage(row)
}

// listConversationMessages takes the newest N and returns them oldest first.
const listConversationMessages = `
SELECT ` + messageColumns + ` FROM (
    SELECT ` + messageColumns + ` FROM messages
    WHERE conversation_id = $1
    ORDER BY created_at DESC, id DESC
    LIMIT $2
) recent
ORDER BY created_at ASC, id ASC`

func (q *Queries) ListConversationMessages(ctx context.Context, conversationID string, limit int32) ([]MessageRow, error) {
	rows, err := q.db.Query(ctx, listConversationMessages, conversationID, limit)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

const listRecentMessagesByType = `
SELECT ` + messageColumns + ` FROM messages
WHERE message_type = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

func (q *Queries) ListRecentMessagesByType(ctx context.Context, messageType string, limit int32) ([]MessageRow, error) {
	rows, err := q.db.Query(ctx, listRecentMessagesByType, messageType, limit)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

const searchMessagesByEmbedding = `
SELECT ` + messageColumns + `, 1 - (embedding <=> $1) AS score FROM messages
WHERE embedding IS NOT NULL
ORDER BY embedding <=> $1
LIMIT $2`

func (q *Queries) SearchMessagesByEmbedding(ctx context.Context, embedding pgvector.Vector, limit int32) ([]ScoredMessageRow, error) {
	rows, err := q.db.Query(ctx, searchMessagesByEmbedding, embedding, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoredMessageRow
	for rows.Next() {
		var r ScoredMessageRow
		if err := rows.Scan(
			&r.ID, &r.ConversationID, &r.Role, &r.Channel, &r.ParticipantID,
			&r.MessageType, &r.Text, &r.Metadata, &r.CreatedAt, &r.Score,
		); err != nil {
			return nil, fmt.Errorf("scanning scored message: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// searchMessagesByText matches a literal substring; % and _ in the query are
// not wildcards.
const searchMessagesByText = `
SELECT ` + messageColumns + ` FROM messages
WHERE position(lower($1) in lower(text)) > 0
ORDER BY created_at DESC, id DESC
LIMIT $2`

func (q *Queries) SearchMessagesByText(ctx context.Context, query string, limit int32) ([]MessageRow, error) {
	rows, err := q.db.Query(ctx, searchMessagesByText, query, limit)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

const claimCommandDelivery = `
INSERT INTO command_deliveries (command_id) VALUES ($1)
ON CONFLICT (command_id) DO NOTHING`

// ClaimCommandDelivery records a command as delivered. It reports false when
// the command had already been claimed.
func (q *Queries) ClaimCommandDelivery(ctx context.Context, commandID int64) (bool, error) {
	tag, err := q.db.Exec(ctx, claimCommandDelivery, commandID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanMessage(row pgx.Row) (MessageRow, error) {
	var r MessageRow
	err := row.Scan(
		&r.ID, &r.ConversationID, &r.Role, &r.Channel, &r.ParticipantID,
		&r.MessageType, &r.Text, &r.Metadata, &r.CreatedAt,
	)
	return r, err
}

func collectMessages(rows pgx.Rows) ([]MessageRow, error) {
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		r, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
