// Package llm bridges the widget engine to the generative text backend. The
// backend is opaque to the rest of the system: ordered history plus lead
// facts and stage go in, assistant text comes out. Callers own the fallback
// behavior; this package only reports errors.
package llm

import (
	"context"

	"github.com/convia/go-leadchat-backend/internal/domain"
)

// Responder produces a free-form assistant reply for a delegated turn.
//
// Implementations must honor ctx for cancellation and timeouts and must be
// safe for concurrent use. An empty reply with a nil error is valid and is
// treated by the orchestrator the same as a failure.
type Responder interface {
	Reply(ctx context.Context, history []domain.Message, facts domain.LeadInfo, stage domain.Stage) (string, error)
}
