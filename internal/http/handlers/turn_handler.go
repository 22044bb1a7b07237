// Turn HTTP handler.
//
// POST /widget/sessions/{id}/turns accepts one user utterance and returns the
// committed turn (user message, assistant message, updated session snapshot).
// Concurrent turns on the same session are rejected with 409; retries carrying
// the same Idempotency-Key get the originally produced assistant message back.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/convia/go-leadchat-backend/internal/domain"
	"github.com/convia/go-leadchat-backend/internal/repo"
	"github.com/convia/go-leadchat-backend/internal/services"
)

// DefaultIdempotencyTTL is how long a recorded turn result can be replayed
// when no TTL is configured.
const DefaultIdempotencyTTL = 24 * time.Hour

func (h *Handlers) idemTTL() time.Duration {
	if h.IdempotencyTTL > 0 {
		return h.IdempotencyTTL
	}
	return DefaultIdempotencyTTL
}

// TurnRequest is the JSON payload for one conversational turn.
type TurnRequest struct {
	// Content is the user's utterance (1-2000 runes after trimming).
	Content string `json:"content" binding:"required" example:"We need help consolidating our customer data"`
}

// TurnResponse returns both committed messages plus the updated session.
type TurnResponse struct {
	UserMessage      domain.Message  `json:"user_message"`
	AssistantMessage domain.Message  `json:"assistant_message"`
	Session          *domain.Session `json:"session"`

	// Replayed is true when this response was served from an idempotency
	// record rather than a freshly executed turn.
	Replayed bool `json:"replayed,omitempty"`
}

// PostTurn godoc
// @ID          postTurn
// @Summary     Send a message
// @Description Runs one conversational turn: records the user message, advances the qualification dialogue, and returns the assistant reply.
// @Tags        Turns
// @Accept      json
// @Produce     json
//
// @Param       id               path    string  true  "Session ID (UUID)"  format(uuid)
// @Param       Idempotency-Key  header  string  false "Replay an already processed turn instead of running it twice"
// @Param       body             body    handlers.TurnRequest  true  "Turn payload"
//
// @Success     200  {object}  handlers.TurnResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Turn already in flight"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /widget/sessions/{id}/turns [post]
func (h *Handlers) PostTurn(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	db := h.turnDB()
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))

	// Replay path: a retry of an already committed turn returns the stored
	// assistant message without re-running the dialogue.
	if idemKey != "" && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, sessionID, idemKey, time.Now().UTC()); err == nil {
			if resp, ok2 := h.replayTurn(c, db, sessionID, rec.MessageID); ok2 {
				ok(c, rec.Status, resp)
				return
			}
		}
	}

	turn, err := h.turnSvc.Answer(ctx, sessionID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSessionNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		case errors.Is(err, services.ErrTurnInFlight):
			fail(c, http.StatusConflict, ErrCodeTurnInFlight, "a turn is already being processed for this session")
		case errors.Is(err, services.ErrEmptyUtterance):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content too long")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeAnswerFailed, err.Error())
		}
		return
	}

	if idemKey != "" && db != nil {
		// Best effort: losing the record only means a retry re-runs the turn.
		_, _ = repo.CreateIdempotency(ctx, db, sessionID, idemKey, turn.AssistantMessage.ID, http.StatusOK, h.idemTTL())
	}

	ok(c, http.StatusOK, TurnResponse{
		UserMessage:      turn.UserMessage,
		AssistantMessage: turn.AssistantMessage,
		Session:          &turn.Session,
	})
}

// turnDB exposes the concrete service's DB handle for idempotency bookkeeping.
func (h *Handlers) turnDB() *gorm.DB {
	if svc, isConcrete := h.turnSvc.(*services.TurnService); isConcrete {
		return svc.DB
	}
	return nil
}

// replayTurn reconstructs a TurnResponse from a stored assistant message ID.
func (h *Handlers) replayTurn(c *gin.Context, db *gorm.DB, sessionID, messageID string) (*TurnResponse, bool) {
	bot, err := repo.GetMessage(db.WithContext(c.Request.Context()), messageID)
	if err != nil || bot.SessionID != sessionID {
		return nil, false
	}
	sess, err := h.sessSvc.Get(c.Request.Context(), sessionID)
	if err != nil {
		return nil, false
	}
	resp := &TurnResponse{AssistantMessage: *bot, Session: sess, Replayed: true}

	// The paired user message sits at the preceding sequence number.
	if msgs, err := repo.ListMessages(c.Request.Context(), db, sessionID); err == nil {
		for _, m := range msgs {
			if m.Seq == bot.Seq-1 && m.Role == domain.RoleUser {
				resp.UserMessage = m
				break
			}
		}
	}
	return resp, true
}
