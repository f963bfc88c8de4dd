package gpt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
	"github.com/hammamikhairi/basil/internal/timer"
)

// MaxTips caps how many tips are kept from a reply.
const MaxTips = 4

// Progress is the cook-along state handed to the model as context.
type Progress struct {
	Active    bool
	Finished  bool
	StepIndex int
	Remaining int
	Running   bool
}

// Agent wraps a Chatter with cooking-domain context building.
type Agent struct {
	chat Chatter
	log  *logger.Logger
}

var _ domain.TipSource = (*Agent)(nil)

// NewAgent creates a cooking agent backed by chat.
func NewAgent(chat Chatter, log *logger.Logger) *Agent {
	return &Agent{chat: chat, log: log}
}

// ── Public API ───────────────────────────────────────────────────

// EatingTips asks for a few short sensory tips on enjoying the finished
// dish. The reply is expected as a JSON array; anything else is split into
// lines.
func (a *Agent) EatingTips(ctx context.Context, recipe *domain.Recipe) ([]string, error) {
	if recipe == nil {
		return nil, fmt.Errorf("gpt: tips: %w", domain.ErrNotFound)
	}
	messages := a.buildMessages(PromptTips, fmt.Sprintf("The %s is done. How should I enjoy it?", recipe.Title), recipe,
		&Progress{Active: true, Finished: true})
	raw, err := a.chat.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	tips := ParseTips(raw)
	if len(tips) == 0 {
		return nil, fmt.Errorf("gpt: tips: %w", domain.ErrEmptyResult)
	}
	a.log.Debug("gpt: %d tips for %s", len(tips), recipe.Title)
	return tips, nil
}

// AskQuestion sends a free-form question together with the cooking context
// and returns the answer.
func (a *Agent) AskQuestion(ctx context.Context, question string, recipe *domain.Recipe, progress *Progress) (string, error) {
	messages := a.buildMessages(PromptQuestion, question, recipe, progress)
	answer, err := a.chat.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// classifyResponse is the JSON the model returns for intent classification.
type classifyResponse struct {
	Intent  string `json:"intent"`
	Payload string `json:"payload"`
}

// Classify maps unrecognised input onto a known intent. A reply that cannot
// be parsed yields IntentUnknown rather than an error.
func (a *Agent) Classify(ctx context.Context, input string, recipe *domain.Recipe, progress *Progress) (*domain.Intent, error) {
	messages := a.buildMessages(PromptClassify, input, recipe, progress)
	raw, err := a.chat.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	raw = stripCodeFence(raw)

	var resp classifyResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		a.log.Warn("gpt: failed to parse classify JSON: %v (raw: %s)", err, truncate(raw, 120))
		return &domain.Intent{Type: domain.IntentUnknown, Payload: input}, nil
	}

	intentType := domain.IntentFromString(resp.Intent)
	a.log.Debug("gpt: classified %q -> %s (payload=%q)", input, intentType, resp.Payload)

	payload := resp.Payload
	if payload == "" {
		payload = input
	}
	return &domain.Intent{Type: intentType, Payload: payload}, nil
}

// ParseTips extracts tips from a model reply: a JSON array of strings, an
// object with a "tips" array, or failing both, one tip per non-empty line.
func ParseTips(raw string) []string {
	raw = stripCodeFence(raw)

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		var wrapped struct {
			Tips []string `json:"tips"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err == nil {
			list = wrapped.Tips
		} else {
			list = strings.Split(raw, "\n")
		}
	}

	out := make([]string, 0, MaxTips)
	for _, t := range list {
		t = cleanTip(t)
		if t == "" {
			continue
		}
		out = append(out, t)
		if len(out) == MaxTips {
			break
		}
	}
	return out
}

// cleanTip strips list markers and surrounding quotes.
func cleanTip(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•")
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".)"); i > 0 && i <= 2 && isDigits(s[:i]) {
		s = strings.TrimSpace(s[i+1:])
	}
	return strings.Trim(s, "\"' ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// stripCodeFence removes ```json ... ``` wrappers that LLMs love to add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// ── Context building ─────────────────────────────────────────────

// buildMessages assembles the system prompt, an optional cooking-context
// message, and the user query.
func (a *Agent) buildMessages(systemPrompt, userQuery string, recipe *domain.Recipe, progress *Progress) []Message {
	msgs := []Message{
		TextMessage(RoleSystem, systemPrompt),
	}
	if block := buildContext(recipe, progress); block != "" {
		msgs = append(msgs, TextMessage(RoleUser, block))
		// Fake an ack so the model treats context as established.
		msgs = append(msgs, TextMessage(RoleAssistant, "Got it, I have the context."))
	}
	msgs = append(msgs, TextMessage(RoleUser, userQuery))
	return msgs
}

// buildContext serializes the recipe and cook-along progress into a
// plain-text block the model can reason over.
func buildContext(recipe *domain.Recipe, progress *Progress) string {
	if recipe == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("[Current Recipe Context]\n")
	fmt.Fprintf(&b, "Recipe: %s\n", recipe.Title)
	if recipe.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", recipe.Description)
	}
	if recipe.Servings > 0 {
		fmt.Fprintf(&b, "Servings: %d\n", recipe.Servings)
	}

	if len(recipe.Ingredients) > 0 {
		b.WriteString("\nIngredients:\n")
		for _, ing := range recipe.Ingredients {
			b.WriteString("- ")
			b.WriteString(FormatIngredient(ing))
			b.WriteString("\n")
		}
	}

	b.WriteString("\nSteps:\n")
	for i, step := range recipe.Steps {
		fmt.Fprintf(&b, "%d. %s: %s [%s]\n", i+1, step.Label, step.Instruction, timer.FormatClock(step.DurationSeconds))
	}

	switch {
	case progress == nil || !progress.Active:
		b.WriteString("\n[No active cook-along. The user is browsing.]\n")
	case progress.Finished:
		b.WriteString("\n[Cook-along finished. The dish is ready.]\n")
	default:
		state := "paused"
		if progress.Running {
			state = "running"
		}
		fmt.Fprintf(&b, "\n[Session State]\nCurrent step: %d of %d\nTimer: %s left, %s\n",
			progress.StepIndex+1, len(recipe.Steps), timer.FormatClock(progress.Remaining), state)
	}
	return b.String()
}

// FormatIngredient renders an ingredient the way it is read out.
func FormatIngredient(ing domain.Ingredient) string {
	opt := ""
	if ing.Optional {
		opt = " (optional)"
	}
	if ing.Quantity <= 0 {
		if ing.SizeDescriptor != "" {
			return fmt.Sprintf("%s, %s%s", ing.Name, ing.SizeDescriptor, opt)
		}
		return ing.Name + opt
	}
	parts := []string{strconv.FormatFloat(ing.Quantity, 'f', -1, 64)}
	if ing.SizeDescriptor != "" {
		parts = append(parts, ing.SizeDescriptor)
	}
	if ing.Unit != "" && ing.Unit != "pieces" {
		parts = append(parts, ing.Unit)
	}
	parts = append(parts, ing.Name)
	return strings.Join(parts, " ") + opt
}
