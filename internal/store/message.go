package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"wayfindr.app/relay/common/id"
	"wayfindr.app/relay/core/db"
	"wayfindr.app/relay/internal/model"
)

type messageStore struct {
	queries *db.Queries
}

func newMessageStore(queries *db.Queries) MessageStore {
	return &messageStore{queries: queries}
}

func (s *messageStore) Append(ctx context.Context, msg *model.Message, embedding []float32) error {
	if msg.ID == 0 {
		msg.ID = id.New()
	}

	var vec *pgvector.Vector
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		vec = &v
	}

	var metadata []byte
	if len(msg.Metadata) > 0 {
		if !json.Valid(msg.Metadata) {
			return fmt.Errorf("message metadata is not valid JSON")
		}
		metadata = msg.Metadata
	}

	row, err := s.queries.InsertMessage(ctx, db.InsertMessageParams{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		Channel:        string(msg.Channel),
		ParticipantID:  msg.ParticipantID,
		MessageType:    string(msg.Type),
		Text:           msg.Text,
		Metadata:       metadata,
		Embedding:      vec,
	})
	if err != nil {
		return err
	}

	*msg = toMessageModel(row)
	return nil
}

func (s *messageStore) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	rows, err := s.queries.ListConversationMessages(ctx, conversationID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return toMessageModels(rows), nil
}

func (s *messageStore) ListRecent(ctx context.Context, msgType model.MessageType, limit int) ([]model.Message, error) {
	rows, err := s.queries.ListRecentMessagesByType(ctx, string(msgType), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return toMessageModels(rows), nil
}

func (s *messageStore) SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]model.Message, error) {
	if len(embedding) == 0 {
		return []model.Message{}, nil
	}
	rows, err := s.queries.SearchMessagesByEmbedding(ctx, pgvector.NewVector(embedding), clampLimit(k))
	if err != nil {
		return nil, err
	}

	out := make([]model.Message, len(rows))
	for i, r := range rows {
		out[i] = toMessageModel(r.MessageRow)
	}
	return out, nil
}

func (s *messageStore) SearchText(ctx context.Context, query string, k int) ([]model.Message, error) {
	if query == "" {
		return []model.Message{}, nil
	}
	rows, err := s.queries.SearchMessagesByText(ctx, query, clampLimit(k))
	if err != nil {
		return nil, err
	}
	return toMessageModels(rows), nil
}

type deliveryStore struct {
	queries *db.Queries
}

func newDeliveryStore(queries *db.Queries) DeliveryStore {
	return &deliveryStore{queries: queries}
}

func (s *deliveryStore) Claim(ctx context.Context, commandID int64) (bool, error) {
	return s.queries.ClaimCommandDelivery(ctx, commandID)
}

func toMessageModel(row db.MessageRow) model.Message {
	msg := model.Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		Role:           model.Role(row.Role),
		Channel:        model.Channel(row.Channel),
		ParticipantID:  row.ParticipantID,
		Type:           model.MessageType(row.MessageType),
		Text:           row.Text,
		CreatedAt:      row.CreatedAt.UTC(),
	}
	if len(row.Metadata) > 0 {
		msg.Metadata = json.RawMessage(row.Metadata)
	}
	return msg
}

func toMessageModels(rows []db.MessageRow) []model.Message {
	out := make([]model.Message, len(rows))
	for i, r := range rows {
		out[i] = toMessageModel(r)
	}
	return out
}

const maxListLimit = 1000

func clampLimit(limit int) int32 {
	switch {
	case limit <= 0:
		return 1
	case limit > maxListLimit:
		return maxListLimit
	default:
		return int32(limit)
	}
}
