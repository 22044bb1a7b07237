package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/convia/go-leadchat-backend/internal/domain"
	"github.com/convia/go-leadchat-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FeedbackService records thumbs up/down on assistant messages.
type FeedbackService struct {
	DB *gorm.DB
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(db *gorm.DB) *FeedbackService {
	return &FeedbackService{DB: db}
}

// Leave records value (-1 or 1) against the message, scoped to the session
// that owns it. Each (message, session) pair accepts exactly one vote.
func (f *FeedbackService) Leave(ctx context.Context, sessionID, messageID string, value int) error {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Leave",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("message.id", messageID),
			attribute.Int("value", value),
		),
	)
	defer span.End()

	if value != -1 && value != 1 {
		return ErrInvalidFeedback
	}

	msg, err := repo.GetMessage(f.DB.WithContext(ctx), messageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if msg.SessionID != sessionID {
		return ErrForbiddenFeedback
	}
	if msg.Role != domain.RoleAssistant {
		return ErrForbiddenFeedback
	}

	if _, err := repo.CreateFeedback(ctx, f.DB, sessionID, messageID, value); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return ErrDuplicateFeedback
		}
		return err
	}
	return nil
}
