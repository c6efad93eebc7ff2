// Package services – ConversationService
//
// This file implements sending, replaying, editing and deleting direct
// messages between two users. Content is trimmed and must not be blank.
// Edits and deletes address a message by id alone; missing ids surface as
// ErrMessageNotFound.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-local-messenger/internal/domain"
	"github.com/tbourn/go-local-messenger/internal/repo"
)

// ConversationService coordinates direct messages.
type ConversationService struct {
	Store Executor
}

// NewConversationService constructs a ConversationService over store.
func NewConversationService(store Executor) *ConversationService {
	return &ConversationService{Store: store}
}

// Send stores a message from one user to another, stamped with the current
// time, and returns its id.
func (s *ConversationService) Send(ctx context.Context, fromID, toID int64, content string) (int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.Int64("message.from", fromID),
			attribute.Int64("message.to", toID),
		),
	)
	defer span.End()

	if fromID <= 0 || toID <= 0 {
		return 0, ErrInvalidUser
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, ErrEmptyContent
	}

	res, err := s.Store.Execute(ctx, repo.InsertMessage{FromID: fromID, ToID: toID, Content: content})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert message")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("message.id", res.InsertID))
	return res.InsertID, nil
}

// History returns the conversation between a and b, oldest first.
func (s *ConversationService) History(ctx context.Context, a, b int64) ([]domain.Message, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.Int64("conversation.a", a),
			attribute.Int64("conversation.b", b),
		),
	)
	defer span.End()

	if a <= 0 || b <= 0 {
		return nil, ErrInvalidUser
	}
	res, err := s.Store.Execute(ctx, repo.ListConversation{UserA: a, UserB: b})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list conversation")
		return nil, err
	}
	out := res.Rows.Messages()
	span.SetAttributes(attribute.Int("messages.count", len(out)))
	return out, nil
}

// Edit replaces the content of message id.
func (s *ConversationService) Edit(ctx context.Context, id int64, content string) error {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Edit",
		trace.WithAttributes(attribute.Int64("message.id", id)),
	)
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	res, err := s.Store.Execute(ctx, repo.UpdateMessageContent{ID: id, Content: content})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update message")
		return err
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// Delete removes message id.
func (s *ConversationService) Delete(ctx context.Context, id int64) error {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int64("message.id", id)),
	)
	defer span.End()

	res, err := s.Store.Execute(ctx, repo.DeleteMessage{ID: id})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete message")
		return err
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
