package services

import (
	"context"
	"errors"
	"testing"

	"github.com/convia/go-leadchat-backend/internal/domain"
	"github.com/convia/go-leadchat-backend/internal/repo"
)

func TestFeedbackService_Leave(t *testing.T) {
	db := newTestDB(t)
	sessSvc := NewSessionService(db)
	svc := NewFeedbackService(db)
	ctx := context.Background()

	sess := openSession(t, sessSvc)
	msgs, err := repo.ListMessages(ctx, db, sess.ID)
	if err != nil || len(msgs) == 0 {
		t.Fatalf("seeded messages: %v", err)
	}
	assistant := msgs[0]

	userMsg, err := repo.CreateMessage(db, sess.ID, domain.RoleUser, "hi", 1, false)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	if err := svc.Leave(ctx, sess.ID, assistant.ID, 0); !errors.Is(err, ErrInvalidFeedback) {
		t.Fatalf("value 0 err = %v", err)
	}
	if err := svc.Leave(ctx, sess.ID, assistant.ID, 2); !errors.Is(err, ErrInvalidFeedback) {
		t.Fatalf("value 2 err = %v", err)
	}
	if err := svc.Leave(ctx, sess.ID, "33333333-3333-3333-3333-333333333333", 1); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("unknown message err = %v", err)
	}
	// A user message may not be rated; the handler maps this to 403.
	if err := svc.Leave(ctx, sess.ID, userMsg.ID, 1); !errors.Is(err, ErrForbiddenFeedback) {
		t.Fatalf("user message err = %v", err)
	}

	other := openSession(t, sessSvc)
	if err := svc.Leave(ctx, other.ID, assistant.ID, 1); !errors.Is(err, ErrForbiddenFeedback) {
		t.Fatalf("foreign session err = %v", err)
	}

	if err := svc.Leave(ctx, sess.ID, assistant.ID, 1); err != nil {
		t.Fatalf("valid vote: %v", err)
	}
	if err := svc.Leave(ctx, sess.ID, assistant.ID, -1); !errors.Is(err, ErrDuplicateFeedback) {
		t.Fatalf("second vote err = %v", err)
	}
}
