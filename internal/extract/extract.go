// Package extract implements best-effort entity extraction over a single
// visitor utterance. Extraction is a pure function: no state, no I/O, and the
// same utterance always yields the same Result. Anything the patterns miss is
// simply left for a later turn; the dialog layer never depends on extraction
// succeeding.
package extract

import (
	"regexp"
	"strings"

	"github.com/convia/go-leadchat-backend/internal/domain"
)

// Result is the partial fact set pulled from one utterance. Zero values mean
// "nothing found"; the caller merges non-zero fields into its LeadInfo.
type Result struct {
	// Email is a syntactically valid address on a non-personal domain.
	// Empty when no address was found or the address was personal.
	Email string

	// PersonalEmail is set when a valid address was found but its domain is
	// on the consumer-mail denylist. The address itself is never surfaced;
	// the dialog layer re-prompts for a work address instead.
	PersonalEmail bool

	// Phone is the first loose NANP-style match, stored verbatim.
	Phone string

	// ServiceInterest is the first matching topic bucket, or empty.
	ServiceInterest string

	// SchedulingIntent is set when the utterance contains any scheduling
	// keyword, independent of the current stage.
	SchedulingIntent bool

	// PreferredTime holds the whole utterance verbatim when a temporal
	// keyword was present. No structured date parsing is attempted.
	PreferredTime string
}

var (
	emailRE = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Loose North-American phone shapes: "+1 212-555-1212", "(212) 555 1212",
	// "212.555.1212". Matches are stored verbatim, not normalized.
	phoneRE = regexp.MustCompile(`(\+?1[ .\-]?)?\(?\d{3}\)?[ .\-]?\d{3}[ .\-]?\d{4}`)
)

// personalDomains is the fixed denylist of consumer mail domains. An address
// on one of these is rejected rather than stored as a lead email.
var personalDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"yahoo.co.uk":    {},
	"ymail.com":      {},
	"hotmail.com":    {},
	"hotmail.co.uk":  {},
	"outlook.com":    {},
	"live.com":       {},
	"msn.com":        {},
	"aol.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"proton.me":      {},
	"protonmail.com": {},
	"gmx.com":        {},
	"mail.com":       {},
	"zoho.com":       {},
}

// serviceBucket pairs a canonical interest label with its trigger keywords.
// Buckets are evaluated in declaration order and the first hit wins; ties go
// to the earlier bucket, not the more relevant one. That is a deliberate
// simplification inherited from the original keyword classifier.
type serviceBucket struct {
	label    string
	keywords []string
}

var serviceBuckets = []serviceBucket{
	{"data-analytics", []string{"data", "analytics", "warehouse", "etl", "pipeline", "dashboard", "reporting", "business intelligence"}},
	{"ai-ml", []string{"ai", "artificial intelligence", "machine learning", "ml", "llm", "chatbot", "genai", "generative"}},
	{"cloud", []string{"cloud", "aws", "azure", "gcp", "migration", "kubernetes", "infrastructure", "devops"}},
	{"marketing-cdp", []string{"marketing", "cdp", "customer data platform", "campaign", "personalization", "crm"}},
	{"security", []string{"security", "cyber", "cybersecurity", "compliance", "penetration", "threat", "vulnerability"}},
	{"digital-transformation", []string{"transformation", "automation", "modernization", "digitization", "workflow"}},
}

var schedulingKeywords = []string{"schedule", "call", "meeting", "talk to", "consultation"}

var timeKeywords = []string{"morning", "afternoon", "tomorrow", "next week", "this week"}

// wordRE tokenizes an utterance for whole-word keyword checks, so short
// keywords like "ai" cannot fire inside words like "email".
var wordRE = regexp.MustCompile(`[a-z0-9]+`)

// hasKeyword matches single-word keywords against whole tokens and phrase
// keywords by substring.
func hasKeyword(lower string, tokens map[string]struct{}, kw string) bool {
	if strings.ContainsRune(kw, ' ') {
		return strings.Contains(lower, kw)
	}
	_, ok := tokens[kw]
	return ok
}

func tokenize(lower string) map[string]struct{} {
	toks := wordRE.FindAllString(lower, -1)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// Extract pulls partial lead facts from a raw utterance. The current facts
// are consulted only to avoid classifying a service interest twice; nothing
// is mutated.
func Extract(utterance string, current domain.LeadInfo) Result {
	var r Result
	lower := strings.ToLower(utterance)
	tokens := tokenize(lower)

	if addr := emailRE.FindString(utterance); addr != "" {
		if IsPersonalDomain(addr) {
			r.PersonalEmail = true
		} else {
			r.Email = addr
		}
	}

	if p := phoneRE.FindString(utterance); p != "" {
		r.Phone = p
	}

	if current.ServiceInterest == "" {
		r.ServiceInterest = classifyInterest(lower, tokens)
	}

	for _, kw := range schedulingKeywords {
		if hasKeyword(lower, tokens, kw) {
			r.SchedulingIntent = true
			break
		}
	}

	for _, kw := range timeKeywords {
		if strings.Contains(lower, kw) {
			r.PreferredTime = strings.TrimSpace(utterance)
			break
		}
	}

	return r
}

// IsPersonalDomain reports whether the address's domain part is on the
// consumer-mail denylist. Malformed input (no '@') is treated as personal so
// it is never accepted by accident.
func IsPersonalDomain(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return true
	}
	domainPart := strings.ToLower(email[at+1:])
	_, personal := personalDomains[domainPart]
	return personal
}

// classifyInterest returns the label of the first bucket with a keyword hit.
func classifyInterest(lower string, tokens map[string]struct{}) string {
	for _, b := range serviceBuckets {
		for _, kw := range b.keywords {
			if hasKeyword(lower, tokens, kw) {
				return b.label
			}
		}
	}
	return ""
}
