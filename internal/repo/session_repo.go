// Package repo implements the data persistence layer for the widget engine.
// This file provides repository functions for the Session model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query composition.
//
// Error semantics:
//   - When a session is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated; the service layer
//     decides whether a failure is survivable (for sessions, it always is:
//     an unreadable session is treated as absent).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/convia/go-leadchat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across layers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateSession inserts a fresh session row in the greeting stage. The
// session ID is a randomly generated UUID and LastActivity is set to UTC now.
func CreateSession(ctx context.Context, db *gorm.DB, page, referrer string) (*domain.Session, error) {
	now := time.Now().UTC()
	s := &domain.Session{
		ID:           uuid.NewString(),
		Stage:        domain.StageGreeting,
		LastActivity: now,
		Page:         page,
		Referrer:     referrer,
		CreatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a session by ID, or ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	var s domain.Session
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSession writes the full session snapshot (stage, lead facts, submitted
// flag, last activity) back to its row. The whole record is committed in one
// statement per turn; there is no field-level patching.
func SaveSession(ctx context.Context, db *gorm.DB, s *domain.Session) error {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", s.ID).
		Select("stage", "submitted", "last_activity",
			"lead_name", "lead_email", "lead_company", "lead_phone", "lead_job_title",
			"lead_location", "lead_service_interest", "lead_requirements", "lead_preferred_time").
		Updates(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchSession stamps LastActivity on a restored session so that reopening
// the widget extends the TTL window.
func TouchSession(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Update("last_activity", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteSession destroys a session and everything hanging off it. Messages
// and feedback go first so the delete is complete even when the driver does
// not enforce foreign-key cascades.
func DeleteSession(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("message_id IN (?)", tx.Model(&domain.Message{}).Select("id").Where("session_id = ?", id)).
			Delete(&domain.Feedback{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("session_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Session{}).Error
	})
}

// ExpiredSessionIDs returns the IDs of sessions whose last activity is at or
// before the cutoff. Used by the background reaper; passive expiry at load
// time remains authoritative for correctness.
func ExpiredSessionIDs(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	q := db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("last_activity <= ?", cutoff).
		Order("last_activity asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Pluck("id", &ids).Error
	return ids, err
}
