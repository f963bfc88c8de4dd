// Package speech: lines.go centralises every spoken string.
// Edit this file to change Basil's personality. Keep lines short and
// direct; the TTS engine handles inflection.
package speech

import (
	"fmt"
	"math/rand"
	"strings"
)

// ── Greeting / Global ────────────────────────────────────────────

func LineWelcome() string {
	return "Hello. What are we cooking today?"
}

func LineBye() string {
	return "Bye."
}

func LineNothingToRepeat() string {
	return "I haven't said anything yet."
}

func LineUnknown(input string) string {
	return fmt.Sprintf("Didn't catch that: %s.", input)
}

// ── Recipe selection ─────────────────────────────────────────────

// LineRecipeSelected is spoken after the user picks a recipe number.
// It reads out the ingredients so they can gather them.
func LineRecipeSelected(title string, ingredients []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s. ", title)
	if len(ingredients) > 0 {
		b.WriteString("You'll need: ")
		b.WriteString(joinSpoken(ingredients))
		b.WriteString(". ")
	}
	b.WriteString("Say start when you're ready.")
	return b.String()
}

func LineInvalidSelection(payload string) string {
	return fmt.Sprintf("Invalid selection: %s. Pick a number from the list.", payload)
}

func LinePickRecipeFirst() string {
	return "Pick a recipe first."
}

func LineRecipeRejected() string {
	return "That recipe can't be cooked along. It needs timed steps."
}

// ── Cook-along ───────────────────────────────────────────────────

func LineCookingStart(title string) string {
	return fmt.Sprintf("Let's cook %s.", title)
}

func LineNoSession() string {
	return "No active session."
}

func LineAlreadyDone() string {
	return "That was the last step. Say tips, or close to wrap up."
}

func LineClosed() string {
	return "Cook-along closed."
}

func LineTimerRunning(remaining string) string {
	return fmt.Sprintf("Timer running. %s left.", remaining)
}

func LineTimerPaused(remaining string) string {
	return fmt.Sprintf("Paused with %s left.", remaining)
}

// LineStep builds the spoken text for a step. The hint, when present, is
// read after the instruction.
func LineStep(order, total int, label, instruction, hint, duration string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d of %d. %s. %s", order, total, label, instruction)
	if !strings.HasSuffix(strings.TrimSpace(instruction), ".") {
		b.WriteString(".")
	}
	if hint != "" {
		fmt.Fprintf(&b, " Tip: %s.", strings.TrimSuffix(hint, "."))
	}
	fmt.Fprintf(&b, " Timer: %s. Start it when you begin.", duration)
	return b.String()
}

// LineFinished is spoken when the last step ends. A recipe-provided
// closing line wins over the stock one.
func LineFinished(title, closing string) string {
	if closing != "" {
		return closing
	}
	return fmt.Sprintf("Bon Appétit! Your %s is ready.", title)
}

// LineTips reads the sensory "how to eat" tips.
func LineTips(tips []string) string {
	if len(tips) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("A few ways to enjoy it. ")
	for _, t := range tips {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		b.WriteString(t)
		if !strings.HasSuffix(t, ".") && !strings.HasSuffix(t, "!") {
			b.WriteString(".")
		}
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

func LineNoTips() string {
	return "No tips yet. They arrive once the dish is done."
}

// LineStatus summarises the session for the "status" command.
func LineStatus(order, total int, title, label, remaining string, running bool) string {
	state := "paused"
	if running {
		state = "running"
	}
	return fmt.Sprintf("Cooking %s. Step %d of %d, %s. %s left, %s.", title, order, total, label, remaining, state)
}

// ── Chat agent ───────────────────────────────────────────────────

func LineThinking() string {
	return "Let me think."
}

func LineNoAgent() string {
	return "I can't answer questions without a chat model configured."
}

func LineAgentError() string {
	return "Sorry, I couldn't get an answer just now."
}

// ── Listening acknowledgment ─────────────────────────────────────
// Spoken when the wake word is detected, so the user knows they've
// been heard and should start talking.

var listeningFillers = []string{
	"I'm listening.",
	"Listening.",
	"Yes chef?",
	"What do you need?",
	"I'm here.",
	"Yes?",
}

// LineListening returns a random acknowledgment for when the wake
// word is detected.
func LineListening() string {
	return listeningFillers[rand.Intn(len(listeningFillers))]
}

// ListeningFillers returns all listening acknowledgment strings so
// they can be prefetched into the TTS cache at startup.
func ListeningFillers() []string {
	out := make([]string, len(listeningFillers))
	copy(out, listeningFillers)
	return out
}

// ── Helpers ──────────────────────────────────────────────────────

// joinSpoken joins items as "a, b, and c".
func joinSpoken(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}
