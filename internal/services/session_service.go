// Package services – SessionService
//
// This file implements the session lifecycle: open-or-restore with TTL
// enforcement, snapshot reads, and paginated history. The cardinal rule is
// that a session is either fully present or fully absent: any read, parse,
// or validation failure on a persisted session is treated as "no session"
// and a fresh one is silently synthesized. Nothing here surfaces a storage
// read error to the widget.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/convia/go-leadchat-backend/internal/dialog"
	"github.com/convia/go-leadchat-backend/internal/domain"
	"github.com/convia/go-leadchat-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSessionTTL is how long a session survives without activity.
const DefaultSessionTTL = 24 * time.Hour

// SessionService owns session lifecycle operations.
type SessionService struct {
	DB  *gorm.DB
	TTL time.Duration

	// now is swappable for TTL boundary tests.
	now func() time.Time
}

// NewSessionService constructs a SessionService with the default TTL.
func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{DB: db, TTL: DefaultSessionTTL, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SessionService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultSessionTTL
}

// Open restores the session with the requested ID when it is still valid, or
// creates a fresh one. restored reports which of the two happened.
//
// Restore rules (all-or-nothing):
//   - empty/unknown ID, unreadable row, or an out-of-enum stage → fresh session;
//   - last activity exactly TTL ago or older → old session destroyed, fresh
//     session created;
//   - otherwise the session is touched (TTL window restarts) and returned.
func (s *SessionService) Open(ctx context.Context, requestedID, page, referrer string) (sess *domain.Session, restored bool, err error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Open",
		trace.WithAttributes(attribute.String("session.requested_id", requestedID)),
	)
	defer span.End()

	now := s.clock()

	if requestedID != "" {
		prev, loadErr := repo.GetSession(ctx, s.DB, requestedID)
		switch {
		case loadErr != nil:
			// Unreadable or missing: identical to "no session found".
			log.Debug().Str("session_id", requestedID).Err(loadErr).Msg("session restore miss")
		case !prev.Stage.Valid():
			// Corrupt stage: discard the whole session, never repair it.
			log.Warn().Str("session_id", requestedID).Str("stage", string(prev.Stage)).Msg("discarding session with unknown stage")
			_ = repo.DeleteSession(ctx, s.DB, requestedID)
		case prev.ExpiredAt(now, s.ttl()):
			log.Info().Str("session_id", requestedID).Time("last_activity", prev.LastActivity).Msg("session expired")
			_ = repo.DeleteSession(ctx, s.DB, requestedID)
		default:
			if touchErr := repo.TouchSession(ctx, s.DB, requestedID, now); touchErr != nil {
				// Best-effort: a failed touch only shortens the TTL window.
				log.Warn().Str("session_id", requestedID).Err(touchErr).Msg("session touch failed")
			} else {
				prev.LastActivity = now
			}
			return prev, true, nil
		}
	}

	fresh, err := s.create(ctx, page, referrer)
	return fresh, false, err
}

// create makes a fresh greeting-stage session seeded with the canned opening
// message, in one transaction.
func (s *SessionService) create(ctx context.Context, page, referrer string) (*domain.Session, error) {
	var sess *domain.Session
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := repo.CreateSession(ctx, tx, page, referrer)
		if err != nil {
			return err
		}
		if _, err := repo.CreateMessage(tx, created.ID, domain.RoleAssistant, dialog.Greeting, 0, true); err != nil {
			return err
		}
		sess = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the current snapshot of a valid, unexpired session, or
// ErrSessionNotFound.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	sess, err := repo.GetSession(ctx, s.DB, id)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if !sess.Stage.Valid() || sess.ExpiredAt(s.clock(), s.ttl()) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// ListPage returns paginated messages for a session in strict turn order.
func (s *SessionService) ListPage(ctx context.Context, sessionID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := repo.GetSession(ctx, s.DB, sessionID); err != nil {
		return nil, 0, ErrSessionNotFound
	}

	total, err := repo.CountMessages(s.DB.WithContext(ctx), sessionID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), sessionID, offset, pageSize)
	return items, total, err
}
