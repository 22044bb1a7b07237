package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/convia/go-leadchat-backend/internal/domain"
)

const defaultModel = "gemini-1.5-flash"

// Gemini implements Responder on top of the Google generative AI API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini dials the generative API. An empty model selects a sensible
// default; timeout bounds every Reply call (zero disables the bound, which
// is not recommended: a hung call would pin the session's turn gate).
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gemini, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &Gemini{client: cl, model: model, timeout: timeout}, nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Reply sends the conversation so far and returns the generated assistant
// text. The last user message is the prompt; everything before it becomes
// chat history with widget roles mapped onto the API's user/model roles.
func (g *Gemini) Reply(ctx context.Context, history []domain.Message, facts domain.LeadInfo, stage domain.Stage) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	m := g.client.GenerativeModel(g.model)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(facts, stage))},
	}

	prompt, prior := splitHistory(history)
	if prompt == "" {
		return "", fmt.Errorf("gemini reply: empty history")
	}

	cs := m.StartChat()
	cs.History = prior

	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini reply: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// splitHistory peels off the trailing user message as the prompt and maps the
// rest to API content. System notices are folded into the user side so the
// alternation the API expects is preserved.
func splitHistory(history []domain.Message) (prompt string, prior []*genai.Content) {
	last := len(history) - 1
	for last >= 0 && history[last].Role != domain.RoleUser {
		last--
	}
	if last < 0 {
		return "", nil
	}
	prompt = history[last].Content

	for _, msg := range history[:last] {
		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}
		prior = append(prior, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return prompt, prior
}

// systemPrompt frames the assistant persona and shares what the engine has
// already learned, so the backend neither re-asks answered questions nor
// invents facts about the visitor.
func systemPrompt(facts domain.LeadInfo, stage domain.Stage) string {
	var b strings.Builder
	b.WriteString("You are a friendly, concise assistant embedded in a company website chat widget. ")
	b.WriteString("Answer questions about data, analytics, AI, cloud, marketing technology, security, and digital transformation consulting services. ")
	b.WriteString("Keep replies short (2-4 sentences). Do not ask for contact details; the widget collects those separately.\n")

	known := make([]string, 0, 6)
	if facts.Name != "" {
		known = append(known, "name: "+facts.Name)
	}
	if facts.Company != "" {
		known = append(known, "company: "+facts.Company)
	}
	if facts.JobTitle != "" {
		known = append(known, "role: "+facts.JobTitle)
	}
	if facts.Location != "" {
		known = append(known, "location: "+facts.Location)
	}
	if facts.ServiceInterest != "" {
		known = append(known, "interested in: "+facts.ServiceInterest)
	}
	if facts.Requirements != "" {
		known = append(known, "stated need: "+facts.Requirements)
	}
	if len(known) > 0 {
		b.WriteString("Known about the visitor: ")
		b.WriteString(strings.Join(known, "; "))
		b.WriteString(".\n")
	}
	b.WriteString("Conversation stage: ")
	b.WriteString(string(stage))
	b.WriteString(".")
	return b.String()
}
