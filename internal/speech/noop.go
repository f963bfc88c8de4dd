package speech

import (
	"sync"

	"github.com/hammamikhairi/basil/internal/logger"
)

// NoOp is a silent narrator. Used when voice is disabled; it remembers the
// last line so "repeat" still has something to show.
type NoOp struct {
	log  *logger.Logger
	mu   sync.Mutex
	last string
}

// NewNoOp creates a silent narrator.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

// Speak records text without playing it.
func (n *NoOp) Speak(text string) {
	n.Say(text, PriorityNormal)
}

// Say records text without playing it.
func (n *NoOp) Say(text string, _ Priority) bool {
	text = cleanForSpeech(text)
	if text == "" {
		return false
	}
	n.mu.Lock()
	n.last = text
	n.mu.Unlock()
	n.log.Debug("speech no-op: would say %q", text)
	return true
}

func (n *NoOp) Cancel()         {}
func (n *NoOp) Close()          {}
func (n *NoOp) Speaking() bool  { return false }
func (n *NoOp) Prefetch(string) {}

// Last returns the most recent line.
func (n *NoOp) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}
