// Package services implements the application layer of the widget engine:
// session lifecycle, turn orchestration, and feedback. This file centralizes
// the service-level sentinel errors so handlers can map them to HTTP results
// consistently.
package services

import "errors"

var (
	// ErrSessionNotFound indicates the session does not exist or has expired
	// and been destroyed; the widget should open a fresh session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyUtterance is returned when a turn carries no usable text.
	ErrEmptyUtterance = errors.New("utterance is empty")

	// ErrTooLong is returned when an utterance exceeds the configured
	// maximum length.
	ErrTooLong = errors.New("utterance too long")

	// ErrTurnInFlight is returned when a turn arrives while another turn for
	// the same session is still being processed. At most one turn per
	// session may be in flight.
	ErrTurnInFlight = errors.New("turn already in flight")

	// ErrMessageNotFound indicates the referenced message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidFeedback is returned when a feedback value is outside the
	// allowed set (-1 or 1).
	ErrInvalidFeedback = errors.New("feedback value must be -1 or 1")

	// ErrForbiddenFeedback is returned when feedback targets a message the
	// session may not rate (wrong session, or not an assistant message).
	ErrForbiddenFeedback = errors.New("cannot leave feedback on this message")

	// ErrDuplicateFeedback is returned when the session already rated the
	// message.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)
