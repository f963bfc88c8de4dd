// Package conversation turns typed or spoken commands into intents and
// prints notices for the user.
package conversation

import (
	"context"
	"regexp"
	"strings"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

var _ domain.IntentParser = (*KeywordParser)(nil)

// KeywordParser matches user input to intents using keywords and simple
// patterns. Anything it cannot place comes back as IntentUnknown with the
// input as payload, so a chat model can take a second look.
type KeywordParser struct {
	log      *logger.Logger
	patterns []patternRule
}

type patternRule struct {
	regex  *regexp.Regexp
	intent domain.IntentType
}

// NewKeywordParser creates a keyword-based intent parser.
func NewKeywordParser(log *logger.Logger) *KeywordParser {
	p := &KeywordParser{log: log}
	p.patterns = []patternRule{
		{regexp.MustCompile(`(?i)^(next|done|continue|n|advance|next step)$`), domain.IntentAdvance},
		{regexp.MustCompile(`(?i)^(toggle|t|space)$`), domain.IntentToggle},
		{regexp.MustCompile(`(?i)^(pause|brb|wait|hold on|p|pause timer)$`), domain.IntentPause},
		{regexp.MustCompile(`(?i)^(resume|unpause|back|timer|start timer|r)$`), domain.IntentResume},
		{regexp.MustCompile(`(?i)^(repeat|again|what\?|say that again|come again)$`), domain.IntentRepeat},
		{regexp.MustCompile(`(?i)^(status|where|progress|info|time left)$`), domain.IntentStatus},
		{regexp.MustCompile(`(?i)^(tips|tip|how do i eat it|serve|serving)$`), domain.IntentTips},
		{regexp.MustCompile(`(?i)^(hush|shh+|quiet|silence|stop talking|shut up)$`), domain.IntentHush},
		{regexp.MustCompile(`(?i)^(close|abandon|stop cooking|cancel)$`), domain.IntentClose},
		{regexp.MustCompile(`(?i)^(quit|exit|q|bye)$`), domain.IntentQuit},
		{regexp.MustCompile(`(?i)^(help|h|\?)$`), domain.IntentHelp},
		{regexp.MustCompile(`(?i)^(list|recipes|show|browse|menu)$`), domain.IntentListRecipes},
		{regexp.MustCompile(`(?i)^(start|cook|go|begin|let'?s go|ready)$`), domain.IntentStartCooking},
	}
	return p
}

// Parse converts user input into an intent.
func (p *KeywordParser) Parse(_ context.Context, input string) (*domain.Intent, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return &domain.Intent{Type: domain.IntentUnknown}, nil
	}

	p.log.Debug("parsing input: %q", trimmed)

	// Recipe selection by list number ("1", "12").
	if len(trimmed) <= 2 && isDigits(trimmed) {
		return &domain.Intent{Type: domain.IntentSelectRecipe, Payload: trimmed}, nil
	}

	normalized := strings.TrimRight(trimmed, ".!")
	for _, rule := range p.patterns {
		if rule.regex.MatchString(normalized) {
			p.log.Debug("matched intent: %s", rule.intent)
			return &domain.Intent{Type: rule.intent}, nil
		}
	}

	lower := strings.ToLower(trimmed)
	for _, prefix := range []string{"select ", "pick ", "cook ", "make "} {
		if strings.HasPrefix(lower, prefix) {
			if ref := strings.TrimSpace(trimmed[len(prefix):]); ref != "" {
				return &domain.Intent{Type: domain.IntentSelectRecipe, Payload: ref}, nil
			}
		}
	}

	if strings.HasPrefix(lower, "ask ") {
		return &domain.Intent{Type: domain.IntentAsk, Payload: strings.TrimSpace(trimmed[4:])}, nil
	}
	if isQuestion(trimmed) {
		return &domain.Intent{Type: domain.IntentAsk, Payload: trimmed}, nil
	}

	p.log.Debug("no match, returning unknown intent")
	return &domain.Intent{Type: domain.IntentUnknown, Payload: trimmed}, nil
}

// questionPrefixes are common English question starters.
var questionPrefixes = []string{
	"how", "what", "why", "when", "where", "who", "which",
	"can", "could", "should", "would", "will", "do", "does", "is", "are",
	"am i", "tell me", "explain",
}

func isQuestion(s string) bool {
	if strings.HasSuffix(s, "?") {
		return true
	}
	lower := strings.ToLower(s)
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(lower, prefix+" ") {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
