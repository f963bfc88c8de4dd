package gpt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

// mockChatter returns a canned reply and records what it was sent.
type mockChatter struct {
	mu    sync.Mutex
	reply string
	err   error
	sent  [][]Message
}

func (m *mockChatter) Chat(_ context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages)
	return m.reply, m.err
}

func (m *mockChatter) last() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

func testRecipe() *domain.Recipe {
	return &domain.Recipe{
		ID:    "toast",
		Title: "Butter Toast",
		Ingredients: []domain.Ingredient{
			{Name: "bread", Quantity: 2, Unit: "slices"},
			{Name: "butter", Quantity: 15, Unit: "g"},
		},
		Steps: []domain.Step{
			{Label: "Toast", Instruction: "Toast the bread.", DurationSeconds: 150},
			{Label: "Butter", Instruction: "Spread the butter.", DurationSeconds: 30},
		},
	}
}

func newTestAgent(reply string, err error) (*Agent, *mockChatter) {
	chat := &mockChatter{reply: reply, err: err}
	return NewAgent(chat, logger.New(logger.LevelOff, nil)), chat
}

func TestParseTips(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"json array", `["Eat it hot.", "Add salt."]`, []string{"Eat it hot.", "Add salt."}},
		{"fenced", "```json\n[\"Crunch first.\"]\n```", []string{"Crunch first."}},
		{"wrapped object", `{"tips": ["Dip it."]}`, []string{"Dip it."}},
		{"bulleted lines", "- Eat it hot.\n\n* Add salt.\n", []string{"Eat it hot.", "Add salt."}},
		{"numbered lines", "1. Eat it hot.\n2) Add salt.", []string{"Eat it hot.", "Add salt."}},
		{"capped", `["a","b","c","d","e"]`, []string{"a", "b", "c", "d"}},
		{"blank entries skipped", `["", "  ", "ok"]`, []string{"ok"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTips(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("tip %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestEatingTips(t *testing.T) {
	agent, chat := newTestAgent(`["Eat it while the butter is still melting."]`, nil)

	tips, err := agent.EatingTips(context.Background(), testRecipe())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tips) != 1 {
		t.Fatalf("expected 1 tip, got %v", tips)
	}

	msgs := chat.last()
	if msgs[0].Role != RoleSystem || msgs[0].Text != PromptTips {
		t.Fatalf("expected tips system prompt, got %+v", msgs[0])
	}
	if !strings.Contains(msgs[1].Text, "Cook-along finished") {
		t.Fatalf("expected finished context, got %q", msgs[1].Text)
	}
}

func TestEatingTipsErrors(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		recipe  *domain.Recipe
		wantErr error
	}{
		{"empty reply", "[]", nil, testRecipe(), domain.ErrEmptyResult},
		{"nil recipe", "", nil, nil, domain.ErrNotFound},
		{"chat failure", "", context.DeadlineExceeded, testRecipe(), context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, _ := newTestAgent(tt.reply, tt.err)
			_, err := agent.EatingTips(context.Background(), tt.recipe)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		input       string
		wantType    domain.IntentType
		wantPayload string
	}{
		{"plain json", `{"intent":"advance"}`, "done with this", domain.IntentAdvance, "done with this"},
		{"fenced json", "```json\n{\"intent\":\"ask_question\",\"payload\":\"can I use oil\"}\n```", "oil?", domain.IntentAsk, "can I use oil"},
		{"unknown name", `{"intent":"dance"}`, "dance", domain.IntentUnknown, "dance"},
		{"not json", "sure thing", "hmm", domain.IntentUnknown, "hmm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, _ := newTestAgent(tt.reply, nil)
			intent, err := agent.Classify(context.Background(), tt.input, nil, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if intent.Type != tt.wantType || intent.Payload != tt.wantPayload {
				t.Fatalf("expected %s/%q, got %s/%q", tt.wantType, tt.wantPayload, intent.Type, intent.Payload)
			}
		})
	}
}

func TestAskQuestionIncludesSessionState(t *testing.T) {
	agent, chat := newTestAgent("  Yes, margarine works.  ", nil)

	answer, err := agent.AskQuestion(context.Background(), "Can I use margarine?", testRecipe(),
		&Progress{Active: true, StepIndex: 1, Remaining: 25, Running: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Yes, margarine works." {
		t.Fatalf("unexpected answer %q", answer)
	}

	msgs := chat.last()
	if len(msgs) != 4 {
		t.Fatalf("expected system, context, ack, question; got %d messages", len(msgs))
	}
	ctxBlock := msgs[1].Text
	for _, want := range []string{"Butter Toast", "2 slices bread", "Current step: 2 of 2", "00:25 left, running"} {
		if !strings.Contains(ctxBlock, want) {
			t.Fatalf("context missing %q:\n%s", want, ctxBlock)
		}
	}
	if msgs[3].Text != "Can I use margarine?" {
		t.Fatalf("question not last: %+v", msgs[3])
	}
}

func TestAskQuestionWithoutRecipeSkipsContext(t *testing.T) {
	agent, chat := newTestAgent("Salt.", nil)
	if _, err := agent.AskQuestion(context.Background(), "What goes on eggs?", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(chat.last()); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
}

func TestFormatIngredient(t *testing.T) {
	tests := []struct {
		ing  domain.Ingredient
		want string
	}{
		{domain.Ingredient{Name: "flour", Quantity: 250, Unit: "g"}, "250 g flour"},
		{domain.Ingredient{Name: "milk", Quantity: 0.5, Unit: "cups"}, "0.5 cups milk"},
		{domain.Ingredient{Name: "eggs", Quantity: 2, Unit: "pieces", SizeDescriptor: "large"}, "2 large eggs"},
		{domain.Ingredient{Name: "salt"}, "salt"},
		{domain.Ingredient{Name: "garlic", SizeDescriptor: "to taste", Optional: true}, "garlic, to taste (optional)"},
	}

	for _, tt := range tests {
		if got := FormatIngredient(tt.ing); got != tt.want {
			t.Fatalf("FormatIngredient(%+v) = %q, want %q", tt.ing, got, tt.want)
		}
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 8, "abcde..."},
		{"Crème brûlée needs a torch", 8, "Crèm..."},
		{"Crème brûlée needs a torch", 6, "Cr..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want {
			t.Fatalf("truncate(%q, %d): expected %q, got %q", tt.in, tt.n, tt.want, got)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%q, %d) split a rune: %q", tt.in, tt.n, got)
		}
	}
}
