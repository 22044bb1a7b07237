package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/convia/go-leadchat-backend/internal/repo"
)

// reaperBatch caps how many expired sessions one sweep deletes.
const reaperBatch = 256

// StartReaper launches a background sweep that hard-deletes sessions whose
// last activity is at least ttl old, together with their messages, feedback,
// and idempotency records. It stops when ctx is cancelled.
func StartReaper(ctx context.Context, db *gorm.DB, ttl, interval time.Duration) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				reapOnce(ctx, db, ttl)
			}
		}
	}()
}

func reapOnce(ctx context.Context, db *gorm.DB, ttl time.Duration) {
	cutoff := time.Now().UTC().Add(-ttl)
	ids, err := repo.ExpiredSessionIDs(ctx, db, cutoff, reaperBatch)
	if err != nil {
		log.Warn().Err(err).Msg("session sweep query failed")
		return
	}
	var deleted int
	for _, id := range ids {
		if err := repo.DeleteSession(ctx, db, id); err != nil {
			log.Warn().Str("session_id", id).Err(err).Msg("expired session delete failed")
			continue
		}
		deleted++
	}
	if deleted > 0 {
		log.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("expired sessions reaped")
	}
}
