// Session HTTP handlers.
//
// This file exposes REST endpoints for widget sessions:
//   - POST /widget/sessions              (open or restore)
//   - GET  /widget/sessions/{id}         (snapshot)
//   - GET  /widget/sessions/{id}/messages (list, paginated, ETag support)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/convia/go-leadchat-backend/internal/domain"
	"github.com/convia/go-leadchat-backend/internal/repo"
	"github.com/convia/go-leadchat-backend/internal/services"
	"github.com/convia/go-leadchat-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SessionService defines session lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type SessionService interface {
	// Open restores the requested session if still valid, or creates a fresh
	// one. restored reports which happened.
	Open(ctx context.Context, requestedID, page, referrer string) (sess *domain.Session, restored bool, err error)
	// Get returns the current snapshot of a live session.
	Get(ctx context.Context, id string) (*domain.Session, error)
	// ListPage returns a page of messages and the total count.
	ListPage(ctx context.Context, sessionID string, page, pageSize int) ([]domain.Message, int64, error)
}

// TurnService runs one conversational turn.
type TurnService interface {
	// Answer processes one user utterance and returns the committed turn.
	Answer(ctx context.Context, sessionID, utterance string) (*services.Turn, error)
}

// FeedbackService records ratings on assistant messages.
type FeedbackService interface {
	// Leave submits a feedback value (-1 or 1) for messageID within sessionID.
	Leave(ctx context.Context, sessionID, messageID string, value int) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for sessions, turns, and feedback.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	sessSvc SessionService
	turnSvc TurnService
	fbSvc   FeedbackService

	// IdempotencyTTL bounds how long a recorded turn result can be replayed.
	// Zero falls back to the package default.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(sessSvc SessionService, turnSvc TurnService, fbSvc FeedbackService) *Handlers {
	return &Handlers{sessSvc: sessSvc, turnSvc: turnSvc, fbSvc: fbSvc}
}

//
// DTOs
//

// OpenSessionRequest is the JSON payload for opening or restoring a session.
type OpenSessionRequest struct {
	// SessionID is the ID the widget remembered, if any. Unknown or expired
	// IDs are silently replaced by a fresh session.
	SessionID string `json:"session_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Page is the URL the widget opened on, for lead attribution.
	Page string `json:"page" example:"https://example.com/pricing"`
	// Referrer is the document referrer at open time.
	Referrer string `json:"referrer" example:"https://www.google.com/"`
}

// OpenSessionResponse returns the live session plus whether it was restored.
type OpenSessionResponse struct {
	Session  *domain.Session `json:"session"`
	Restored bool            `json:"restored"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMessagesResponse wraps a page of messages and pagination information.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// OpenSession godoc
// @ID          openSession
// @Summary     Open or restore a session
// @Description Restores the requested session when it is still live; otherwise creates a fresh greeting-stage session seeded with the opening message.
// @Tags        Sessions
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.OpenSessionRequest  false  "Open session payload"
//
// @Success     200  {object}  handlers.OpenSessionResponse  "Existing session restored"
// @Success     201  {object}  handlers.OpenSessionResponse  "Fresh session created"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /widget/sessions [post]
func (h *Handlers) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	// A malformed remembered ID is identical to no ID at all.
	if req.SessionID != "" {
		if _, err := uuid.Parse(req.SessionID); err != nil {
			req.SessionID = ""
		}
	}

	sess, restored, err := h.sessSvc.Open(c.Request.Context(), req.SessionID, req.Page, req.Referrer)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	status := http.StatusCreated
	if restored {
		status = http.StatusOK
	}
	ok(c, status, OpenSessionResponse{Session: sess, Restored: restored})
}

// GetSession godoc
// @ID          getSession
// @Summary     Get a session snapshot
// @Description Returns the current stage, lead profile, and submission status of a live session.
// @Tags        Sessions
// @Produce     json
//
// @Param       id  path  string  true  "Session ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Session
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Router      /widget/sessions/{id} [get]
func (h *Handlers) GetSession(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}
	sess, err := h.sessSvc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	ok(c, http.StatusOK, sess)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List session messages (paginated)
// @Description Returns a page of the session's messages in turn order. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Sessions
// @Produce     json
//
// @Param       id             path   string  true  "Session ID (UUID)"  format(uuid)
// @Param       If-None-Match  header string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /widget/sessions/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	if _, err := uuid.Parse(sessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, isConcrete := h.sessSvc.(*services.SessionService); isConcrete {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, db, sessionID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"msgs:%s:%d:%d"`, sessionID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.sessSvc.ListPage(ctx, sessionID, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}
