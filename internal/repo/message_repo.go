// Package repo – message persistence. Messages are append-only: nothing here
// updates or reorders existing rows, and Seq gives a total order within a
// session that survives identical timestamps.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/convia/go-leadchat-backend/internal/domain"
)

// CreateMessage appends one utterance to a session's log. The caller supplies
// seq; use NextSeq inside the same transaction to keep the order gap-free.
func CreateMessage(db *gorm.DB, sessionID, role, content string, seq int, offersQuickReplies bool) (*domain.Message, error) {
	m := &domain.Message{
		ID:                 uuid.NewString(),
		SessionID:          sessionID,
		Seq:                seq,
		Role:               role,
		Content:            content,
		OffersQuickReplies: offersQuickReplies,
		CreatedAt:          time.Now().UTC(),
	}
	if err := db.Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// NextSeq returns the sequence number the next appended message should use.
func NextSeq(db *gorm.DB, sessionID string) (int, error) {
	var max *int
	err := db.Model(&domain.Message{}).
		Where("session_id = ?", sessionID).
		Select("MAX(seq)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

// GetMessage fetches a single message by ID, or gorm.ErrRecordNotFound.
func GetMessage(db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns a session's full log in turn order. The log is the
// payload for both the generative backend call and the lead submission, so
// order matters and nothing is deduplicated.
func ListMessages(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq asc").
		Find(&out).Error
	return out, err
}

// ListMessagesPage returns one page of a session's log in turn order.
func ListMessagesPage(db *gorm.DB, sessionID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.
		Where("session_id = ?", sessionID).
		Order("seq asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountMessages returns the number of messages in a session.
func CountMessages(db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.Model(&domain.Message{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error
	return total, err
}

// MessagesStats returns the message count and the latest creation timestamp
// for a session, used to build weak ETags for the history endpoint.
func MessagesStats(ctx context.Context, db *gorm.DB, sessionID string) (int64, *time.Time, error) {
	var count int64
	if err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	var maxTS time.Time
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("session_id = ?", sessionID).
		Select("MAX(created_at)").
		Scan(&maxTS).Error
	if err != nil {
		return 0, nil, err
	}
	return count, &maxTS, nil
}
