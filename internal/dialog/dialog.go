// Package dialog implements the qualification stage machine: a pure
// transition function from (utterance, stage, lead facts) to an outcome. The
// original widget interleaved this logic with rendering and network calls;
// here it is kept free of I/O so the same utterance sequence always produces
// the same stage and reply sequence.
//
// Each turn yields exactly one of two outcome kinds: a canned reply produced
// here, or a delegation to the generative backend. Never both.
package dialog

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/convia/go-leadchat-backend/internal/domain"
	"github.com/convia/go-leadchat-backend/internal/extract"
)

// Kind tags the two mutually exclusive outcome variants.
type Kind int

const (
	// KindReply means the stage machine produced a deterministic reply and
	// the generative backend must not be consulted this turn.
	KindReply Kind = iota
	// KindDelegate means no canned reply applies; the orchestrator calls the
	// generative backend with the full history.
	KindDelegate
)

// Outcome is the explicit transition record for one turn.
type Outcome struct {
	Kind      Kind
	Reply     string // set only when Kind == KindReply
	NextStage domain.Stage
	Facts     domain.LeadInfo

	// OffersQuickReplies hints the widget to render suggestion buttons under
	// the canned reply (e.g. a "Skip" chip during fact collection).
	OffersQuickReplies bool
}

// Heuristic bounds for accepted free-text facts.
const (
	minNameRunes = 2
	maxNameRunes = 49
	maxFactRunes = 99
)

var titleCaser = cases.Title(language.English)

// Advance consumes one user utterance against the current stage and facts and
// returns the transition for this turn. It never mutates its inputs; the
// returned Facts value is the new accumulated profile.
func Advance(utterance string, stage domain.Stage, facts domain.LeadInfo) Outcome {
	text := strings.TrimSpace(utterance)
	found := extract.Extract(text, facts)
	facts = mergeFacts(facts, found)

	// Cross-cutting interrupt: scheduling intent with no name yet redirects
	// into name collection from any stage, overriding the stage's own rule.
	// Inside collecting_name this keeps the utterance from being stored as
	// the visitor's name.
	if found.SchedulingIntent && facts.Name == "" {
		return reply(replyNameForCall, domain.StageCollectingName, facts, false)
	}

	switch stage {
	case domain.StageGreeting:
		// The opening question is answered by the backend; the dialogue then
		// enters single-shot discovery.
		return delegate(domain.StageDiscovery, facts)

	case domain.StageDiscovery:
		return advanceDiscovery(text, facts)

	case domain.StageCollectingName:
		return collectName(text, facts)

	case domain.StageCollectingEmail:
		return collectEmail(text, facts, found)

	case domain.StageCollectingCompany:
		return collectFact(text, facts, collectRule{
			assign: func(f *domain.LeadInfo, v string) { f.Company = v },
			ask:    replyAskJobTitle,
			reAsk:  replyAskCompany,
			cur:    domain.StageCollectingCompany,
			next:   domain.StageCollectingJobTitle,
		})

	case domain.StageCollectingJobTitle:
		return collectFact(text, facts, collectRule{
			assign: func(f *domain.LeadInfo, v string) { f.JobTitle = v },
			ask:    replyAskLocation,
			reAsk:  replyAskJobTitle,
			cur:    domain.StageCollectingJobTitle,
			next:   domain.StageCollectingLocation,
		})

	case domain.StageCollectingLocation:
		return collectFact(text, facts, collectRule{
			assign: func(f *domain.LeadInfo, v string) { f.Location = v },
			ask:    replyAskTime,
			reAsk:  replyAskLocation,
			cur:    domain.StageCollectingLocation,
			next:   domain.StageScheduling,
		})

	case domain.StageScheduling:
		return collectTime(text, facts, found)

	case domain.StageQualified, domain.StageGeneralChat:
		// Absorbing stages: everything passes through to the backend.
		return delegate(stage, facts)
	}

	// Unknown stage values are discarded at the persistence layer; reaching
	// here means a programming error upstream. Degrade to general chat.
	return delegate(domain.StageGeneralChat, facts)
}

// advanceDiscovery consumes the single-shot discovery stage: any non-trivial
// utterance pulls the visitor into qualification. When a concrete interest
// was signalled, the utterance is also kept as the stated requirements.
func advanceDiscovery(text string, facts domain.LeadInfo) Outcome {
	if utf8.RuneCountInString(text) < 2 {
		return delegate(domain.StageDiscovery, facts)
	}
	if facts.ServiceInterest != "" && facts.Requirements == "" {
		facts.Requirements = text
	}
	return reply(replyAskName, domain.StageCollectingName, facts, false)
}

func collectName(text string, facts domain.LeadInfo) Outcome {
	switch escapeWord(text) {
	case "skip":
		return reply(replyAskEmailNoName, domain.StageCollectingEmail, facts, true)
	case "why":
		return reply(replyWhyCollect, domain.StageCollectingName, facts, true)
	}
	if acceptableName(text) {
		facts.Name = titleCaser.String(strings.ToLower(text))
		return reply(fmt.Sprintf(replyAskEmail, firstName(facts.Name)), domain.StageCollectingEmail, facts, false)
	}
	return reply(replyReAskName, domain.StageCollectingName, facts, true)
}

func collectEmail(text string, facts domain.LeadInfo, found extract.Result) Outcome {
	switch escapeWord(text) {
	case "skip":
		return reply(replyAskCompany, domain.StageCollectingCompany, facts, true)
	case "why":
		return reply(replyWhyCollect, domain.StageCollectingEmail, facts, true)
	}
	if found.PersonalEmail {
		// The one corrective case: an accepted-looking fact is discarded and
		// the visitor is re-prompted for a work address.
		facts.Email = ""
		return reply(replyWorkEmail, domain.StageCollectingEmail, facts, false)
	}
	if found.Email != "" {
		return reply(replyAskCompany, domain.StageCollectingCompany, facts, false)
	}
	return reply(replyReAskEmail, domain.StageCollectingEmail, facts, true)
}

// collectRule describes a generic length-checked fact collection step.
type collectRule struct {
	assign func(*domain.LeadInfo, string)
	ask    string // transition reply, asks the next question
	reAsk  string // emitted when the candidate is rejected
	cur    domain.Stage
	next   domain.Stage
}

func collectFact(text string, facts domain.LeadInfo, rule collectRule) Outcome {
	switch escapeWord(text) {
	case "skip":
		return reply(replySkipToNext+" "+rule.ask, rule.next, facts, true)
	case "why":
		return reply(replyWhyCollect, rule.cur, facts, true)
	}
	if n := utf8.RuneCountInString(text); n >= minNameRunes && n <= maxFactRunes {
		rule.assign(&facts, text)
		return reply(rule.ask, rule.next, facts, false)
	}
	return reply(rule.reAsk, rule.cur, facts, true)
}

func collectTime(text string, facts domain.LeadInfo, found extract.Result) Outcome {
	switch escapeWord(text) {
	case "skip":
		return reply(replyQualified, domain.StageQualified, facts, false)
	case "why":
		return reply(replyWhyCollect, domain.StageScheduling, facts, true)
	}
	if found.PreferredTime != "" || utf8.RuneCountInString(text) >= 3 {
		facts.PreferredTime = text
		return reply(replyQualified, domain.StageQualified, facts, false)
	}
	return reply(replyReAskTime, domain.StageScheduling, facts, true)
}

// mergeFacts folds extracted entities into the accumulated profile.
// Growth is monotonic: fields are set or overwritten, never cleared here.
func mergeFacts(facts domain.LeadInfo, found extract.Result) domain.LeadInfo {
	if found.Email != "" {
		facts.Email = found.Email
	}
	if found.Phone != "" {
		facts.Phone = found.Phone
	}
	if found.ServiceInterest != "" {
		facts.ServiceInterest = found.ServiceInterest
	}
	if found.PreferredTime != "" {
		facts.PreferredTime = found.PreferredTime
	}
	return facts
}

// escapeWord normalizes the two escape keywords checked before any fact
// acceptance. Anything else returns "".
func escapeWord(text string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Trim(text, "?!."))) {
	case "skip":
		return "skip"
	case "why":
		return "why"
	}
	return ""
}

// acceptableName applies the shape heuristics for a human name: bounded
// length and no '@' (so a pasted email is not mistaken for a name).
func acceptableName(text string) bool {
	n := utf8.RuneCountInString(text)
	return n >= minNameRunes && n <= maxNameRunes && !strings.ContainsRune(text, '@')
}

// firstName returns the leading word of a full name for informal replies.
func firstName(full string) string {
	if i := strings.IndexRune(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}

func reply(text string, next domain.Stage, facts domain.LeadInfo, quick bool) Outcome {
	return Outcome{Kind: KindReply, Reply: text, NextStage: next, Facts: facts, OffersQuickReplies: quick}
}

func delegate(next domain.Stage, facts domain.LeadInfo) Outcome {
	return Outcome{Kind: KindDelegate, NextStage: next, Facts: facts}
}
