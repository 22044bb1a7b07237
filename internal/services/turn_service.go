package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/convia/go-leadchat-backend/internal/dialog"
	"github.com/convia/go-leadchat-backend/internal/domain"
	"github.com/convia/go-leadchat-backend/internal/leads"
	"github.com/convia/go-leadchat-backend/internal/llm"
	"github.com/convia/go-leadchat-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReplyFallback is sent when the generative backend fails or returns nothing.
// The turn still commits so the conversation never loses the user's message.
const ReplyFallback = "Sorry, I'm having trouble responding right now. Could you try that again in a moment?"

// MaxUtteranceRunes bounds a single user message.
const MaxUtteranceRunes = 2000

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadchat_turns_total",
		Help: "Completed turns, labelled by how the reply was produced.",
	}, []string{"source"}) // canned | backend | fallback

	leadSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadchat_lead_submissions_total",
		Help: "Lead submission attempts by result.",
	}, []string{"result"}) // ok | error
)

// TurnService orchestrates one conversational turn: gate, validate, advance
// the stage machine, produce a reply, commit both messages plus the session
// snapshot atomically, then maybe submit a lead.
type TurnService struct {
	DB        *gorm.DB
	Responder llm.Responder // nil means the backend is disabled
	Leads     *leads.Client // nil means lead capture is disabled

	BackendTimeout time.Duration
	MaxRunes       int

	gate *turnGate
	now  func() time.Time
}

// NewTurnService wires a TurnService with its per-session gate.
func NewTurnService(db *gorm.DB, responder llm.Responder, leadsClient *leads.Client, backendTimeout time.Duration) *TurnService {
	if backendTimeout <= 0 {
		backendTimeout = 15 * time.Second
	}
	return &TurnService{
		DB:             db,
		Responder:      responder,
		Leads:          leadsClient,
		BackendTimeout: backendTimeout,
		MaxRunes:       MaxUtteranceRunes,
		gate:           newTurnGate(),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Turn is the committed result of one exchange.
type Turn struct {
	UserMessage      domain.Message
	AssistantMessage domain.Message
	Session          domain.Session
}

// Answer runs one turn for the session. At most one turn per session runs at
// a time; a second concurrent call gets ErrTurnInFlight immediately.
func (t *TurnService) Answer(ctx context.Context, sessionID, utterance string) (*Turn, error) {
	tr := otel.Tracer("services/TurnService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	if !t.gate.tryAcquire(sessionID) {
		return nil, ErrTurnInFlight
	}
	defer t.gate.release(sessionID)

	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return nil, ErrEmptyUtterance
	}
	max := t.MaxRunes
	if max <= 0 {
		max = MaxUtteranceRunes
	}
	if utf8.RuneCountInString(trimmed) > max {
		return nil, ErrTooLong
	}

	sess, err := repo.GetSession(ctx, t.DB, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if !sess.Stage.Valid() {
		return nil, ErrSessionNotFound
	}

	outcome := dialog.Advance(trimmed, sess.Stage, sess.Lead)

	span.SetAttributes(
		attribute.String("stage.before", string(sess.Stage)),
		attribute.String("stage.after", string(outcome.NextStage)),
	)

	var replyText string
	var source string
	switch outcome.Kind {
	case dialog.KindReply:
		replyText = outcome.Reply
		source = "canned"
	case dialog.KindDelegate:
		replyText, source = t.delegated(ctx, sessionID, trimmed, outcome)
	}

	now := t.clock()
	sess.Stage = outcome.NextStage
	sess.Lead = outcome.Facts
	sess.LastActivity = now

	var userMsg, botMsg *domain.Message
	err = t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := repo.NextSeq(tx, sessionID)
		if err != nil {
			return err
		}
		if userMsg, err = repo.CreateMessage(tx, sessionID, domain.RoleUser, trimmed, seq, false); err != nil {
			return err
		}
		if botMsg, err = repo.CreateMessage(tx, sessionID, domain.RoleAssistant, replyText, seq+1, outcome.OffersQuickReplies); err != nil {
			return err
		}
		return repo.SaveSession(ctx, tx, sess)
	})
	if err != nil {
		log.Error().Str("session_id", sessionID).Err(err).Msg("turn commit failed")
		return nil, err
	}

	// Submission runs after the commit so the delivered transcript includes
	// this turn's messages; a flipped flag gets its own best-effort write.
	if t.maybeSubmitLead(ctx, sess) {
		if err := repo.SaveSession(ctx, t.DB, sess); err != nil {
			log.Error().Str("session_id", sessionID).Err(err).Msg("submitted flag save failed")
		}
	}

	turnsTotal.WithLabelValues(source).Inc()
	log.Info().
		Str("session_id", sessionID).
		Str("stage", string(sess.Stage)).
		Str("source", source).
		Msg("turn completed")

	return &Turn{UserMessage: *userMsg, AssistantMessage: *botMsg, Session: *sess}, nil
}

// delegated asks the generative backend for a reply, with the prior history
// plus the new utterance, under a hard timeout. Any failure or empty answer
// degrades to the fallback apology.
func (t *TurnService) delegated(ctx context.Context, sessionID, utterance string, outcome dialog.Outcome) (string, string) {
	if t.Responder == nil {
		return ReplyFallback, "fallback"
	}

	history, err := repo.ListMessages(ctx, t.DB, sessionID)
	if err != nil {
		log.Warn().Str("session_id", sessionID).Err(err).Msg("history load failed, using fallback reply")
		return ReplyFallback, "fallback"
	}
	history = append(history, domain.Message{SessionID: sessionID, Role: domain.RoleUser, Content: utterance})

	cctx, cancel := context.WithTimeout(ctx, t.BackendTimeout)
	defer cancel()

	answer, err := t.Responder.Reply(cctx, history, outcome.Facts, outcome.NextStage)
	if err != nil || answer == "" {
		log.Warn().Str("session_id", sessionID).Err(err).Msg("backend reply failed, using fallback")
		return ReplyFallback, "fallback"
	}
	return answer, "backend"
}

// maybeSubmitLead fires the lead submission when the profile first
// qualifies and reports whether the Submitted flag flipped. The flag flips
// only on success (or when capture is disabled), so a failed delivery
// leaves it false and the next qualifying turn retries. A successful
// submission is permanent; later fact changes never cause a resubmit.
func (t *TurnService) maybeSubmitLead(ctx context.Context, sess *domain.Session) bool {
	if sess.Submitted || !sess.Lead.Qualified() {
		return false
	}

	if t.Leads == nil {
		sess.Submitted = true
		log.Info().Str("session_id", sess.ID).Msg("lead qualified, capture disabled")
		return true
	}

	history, err := repo.ListMessages(ctx, t.DB, sess.ID)
	if err != nil {
		history = nil
	}
	sub := leads.Submission{
		SessionID:   sess.ID,
		Lead:        sess.Lead,
		Transcript:  leads.Transcript(history),
		Page:        sess.Page,
		Referrer:    sess.Referrer,
		SubmittedAt: t.clock(),
	}
	if err := t.Leads.Submit(ctx, sub); err != nil {
		leadSubmissionsTotal.WithLabelValues("error").Inc()
		log.Error().Str("session_id", sess.ID).Err(err).Msg("lead submission failed")
		return false
	}
	sess.Submitted = true
	leadSubmissionsTotal.WithLabelValues("ok").Inc()
	log.Info().Str("session_id", sess.ID).Msg("lead submitted")
	return true
}

func (t *TurnService) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now().UTC()
}
