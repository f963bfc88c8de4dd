package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

func TestKeywordParser(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	parser := NewKeywordParser(log)
	ctx := context.Background()

	tests := []struct {
		input       string
		wantType    domain.IntentType
		wantPayload string
	}{
		// Advance
		{"next", domain.IntentAdvance, ""},
		{"Done.", domain.IntentAdvance, ""},
		{"n", domain.IntentAdvance, ""},

		// Countdown control
		{"toggle", domain.IntentToggle, ""},
		{"pause", domain.IntentPause, ""},
		{"hold on", domain.IntentPause, ""},
		{"resume", domain.IntentResume, ""},
		{"start timer", domain.IntentResume, ""},

		// Narration
		{"repeat", domain.IntentRepeat, ""},
		{"what?", domain.IntentRepeat, ""},
		{"shhh", domain.IntentHush, ""},
		{"stop talking", domain.IntentHush, ""},

		{"status", domain.IntentStatus, ""},
		{"tips", domain.IntentTips, ""},
		{"close", domain.IntentClose, ""},
		{"stop cooking", domain.IntentClose, ""},
		{"quit", domain.IntentQuit, ""},
		{"q", domain.IntentQuit, ""},
		{"help", domain.IntentHelp, ""},
		{"?", domain.IntentHelp, ""},
		{"recipes", domain.IntentListRecipes, ""},
		{"let's go!", domain.IntentStartCooking, ""},

		// Select
		{"1", domain.IntentSelectRecipe, "1"},
		{"12", domain.IntentSelectRecipe, "12"},
		{"select 2", domain.IntentSelectRecipe, "2"},
		{"make chicken alfredo", domain.IntentSelectRecipe, "chicken alfredo"},

		// Questions
		{"can I use oil instead of butter", domain.IntentAsk, "can I use oil instead of butter"},
		{"salt now?", domain.IntentAsk, "salt now?"},
		{"ask whether garlic burns", domain.IntentAsk, "whether garlic burns"},

		// Unknown
		{"flambé the cat", domain.IntentUnknown, "flambé the cat"},
		{"", domain.IntentUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			intent, err := parser.Parse(ctx, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if intent.Type != tt.wantType {
				t.Errorf("input=%q: got type %s, want %s", tt.input, intent.Type, tt.wantType)
			}
			if tt.wantPayload != "" && intent.Payload != tt.wantPayload {
				t.Errorf("input=%q: got payload %q, want %q", tt.input, intent.Payload, tt.wantPayload)
			}
		})
	}
}

type printLog struct {
	mu    sync.Mutex
	lines []string
}

func (p *printLog) printf(format string, a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, fmt.Sprintf(format, a...))
}

func TestCLINotifier(t *testing.T) {
	out := &printLog{}
	n := NewCLINotifier(logger.New(logger.LevelOff, nil), out.printf)
	ctx := context.Background()

	if err := n.Notify(ctx, "timer running"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := n.NotifyUrgent(ctx, "still paused"); err != nil {
		t.Fatalf("notify urgent: %v", err)
	}

	if len(out.lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(out.lines))
	}
	if !strings.Contains(out.lines[0], "timer running") || strings.Contains(out.lines[0], bold) {
		t.Fatalf("unexpected normal line %q", out.lines[0])
	}
	if !strings.Contains(out.lines[1], "still paused") || !strings.Contains(out.lines[1], red+bold) {
		t.Fatalf("unexpected urgent line %q", out.lines[1])
	}
}
