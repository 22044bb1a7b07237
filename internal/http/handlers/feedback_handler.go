// Feedback HTTP handler.
//
// POST /widget/messages/{id}/feedback records a thumbs up/down on an
// assistant message, scoped to the session that owns it.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/convia/go-leadchat-backend/internal/services"
)

// FeedbackRequest is the JSON payload for rating a message.
type FeedbackRequest struct {
	// SessionID identifies the session the rated message belongs to.
	SessionID string `json:"session_id" binding:"required" format:"uuid"`
	// Value is the rating: 1 (up) or -1 (down).
	Value int `json:"value" binding:"required" example:"1"`
}

// LeaveFeedback godoc
// @ID          leaveFeedback
// @Summary     Rate an assistant message
// @Description Records a single up/down vote on an assistant message. A session can rate a given message once.
// @Tags        Feedback
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Message ID (UUID)"  format(uuid)
// @Param       body  body  handlers.FeedbackRequest  true  "Feedback payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Message belongs to another session"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     409  {object} handlers.ErrorResponse "Feedback already exists"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /widget/messages/{id}/feedback [post]
func (h *Handlers) LeaveFeedback(c *gin.Context) {
	messageID := c.Param("id")
	if _, err := uuid.Parse(messageID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message id must be a UUID")
		return
	}

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id and value required")
		return
	}
	if _, err := uuid.Parse(req.SessionID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id must be a UUID")
		return
	}

	err := h.fbSvc.Leave(c.Request.Context(), req.SessionID, messageID, req.Value)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrInvalidFeedback):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must be 1 or -1, on an assistant message")
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
	case errors.Is(err, services.ErrForbiddenFeedback):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "message belongs to another session")
	case errors.Is(err, services.ErrDuplicateFeedback):
		fail(c, http.StatusConflict, ErrCodeConflict, "feedback already exists")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
