package speech

import (
	"context"
	"regexp"
	"strings"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

// Announcer speaks a line through whatever narrator is live.
type Announcer interface {
	Announce(text string, p Priority)
}

// Compile-time interface check.
var _ domain.Notifier = (*SpeakingNotifier)(nil)

// SpeakingNotifier wraps a text notifier and also speaks messages. Messages
// are printed immediately (via the inner notifier) and handed to the
// announcer: plain notices only when the narrator is idle, urgent ones
// preempt.
type SpeakingNotifier struct {
	text  domain.Notifier
	voice Announcer
	log   *logger.Logger
}

// NewSpeakingNotifier creates a notifier that both prints and speaks.
func NewSpeakingNotifier(text domain.Notifier, voice Announcer, log *logger.Logger) *SpeakingNotifier {
	return &SpeakingNotifier{
		text:  text,
		voice: voice,
		log:   log,
	}
}

// Notify prints the message and speaks it if nothing else is playing.
func (n *SpeakingNotifier) Notify(ctx context.Context, message string) error {
	if err := n.text.Notify(ctx, message); err != nil {
		return err
	}
	n.voice.Announce(cleanForSpeech(message), PriorityLow)
	return nil
}

// NotifyUrgent prints the message and speaks it, interrupting narration.
func (n *SpeakingNotifier) NotifyUrgent(ctx context.Context, message string) error {
	if err := n.text.NotifyUrgent(ctx, message); err != nil {
		return err
	}
	n.voice.Announce(cleanForSpeech(message), PriorityHigh)
	return nil
}

// cleanForSpeech strips formatting artifacts that shouldn't be spoken.
var bracketPrefix = regexp.MustCompile(`^\[[A-Za-z]+\]\s*`)
var ansiCodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func cleanForSpeech(msg string) string {
	cleaned := ansiCodes.ReplaceAllString(msg, "")
	cleaned = bracketPrefix.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	return cleaned
}
