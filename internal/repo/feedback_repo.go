// Package repo – feedback persistence for assistant-message ratings.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/convia/go-leadchat-backend/internal/domain"
)

// ErrDuplicate indicates a record already exists for a unique tuple
// (feedback per (message, session); idempotency per (session, key)).
var ErrDuplicate = errors.New("duplicate")

// CreateFeedback inserts a rating row with (message_id, session_id)
// uniqueness; a second rating from the same session maps to ErrDuplicate.
func CreateFeedback(ctx context.Context, db *gorm.DB, sessionID, messageID string, value int) (*domain.Feedback, error) {
	fb := &domain.Feedback{
		ID:        uuid.NewString(),
		MessageID: messageID,
		SessionID: sessionID,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(fb).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return fb, nil
}

// isUniqueViolation detects unique-constraint violations across drivers that
// may not map to gorm.ErrDuplicatedKey. glebarez/sqlite often reports them as
// plain-text errors.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
