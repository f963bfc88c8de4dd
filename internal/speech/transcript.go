package speech

import (
	"regexp"
	"sort"
	"strings"
)

// Default wake phrases, matched case-insensitively on word boundaries.
var defaultWakeWords = []string{
	"hey basil",
	"hey, basil",
	"hey bazil",
	"hey chef",
	"hey, chef",
	"okay basil",
}

// wakeSet finds wake phrases in a transcription.
type wakeSet struct {
	re *regexp.Regexp // nil when there are no phrases
}

func newWakeSet(words []string) *wakeSet {
	alts := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			alts = append(alts, regexp.QuoteMeta(strings.ToLower(w)))
		}
	}
	if len(alts) == 0 {
		return &wakeSet{}
	}
	// Longest first so "hey, basil" is not cut short by a shorter phrase.
	sort.Slice(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	return &wakeSet{re: regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)}
}

// match reports whether text contains a wake phrase and returns whatever
// was said after the first one. Words before the phrase are dropped.
func (w *wakeSet) match(text string) (string, bool) {
	if w.re == nil {
		return "", false
	}
	loc := w.re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := strings.TrimLeft(text[loc[1]:], " ,.!?\t")
	if strings.Trim(rest, " ,.!?\t") == "" {
		return "", true
	}
	return strings.TrimSpace(rest), true
}

// strip removes every wake phrase from text.
func (w *wakeSet) strip(text string) string {
	if w.re != nil {
		text = w.re.ReplaceAllString(text, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

// Empty chunks tolerated while waiting for the speaker to start, and once
// they have.
const (
	leadInSilence = 4
	trailSilence  = 2
)

// utterance accumulates the chunks of one spoken command.
type utterance struct {
	wake    *wakeSet
	parts   []string
	silent  int
	started bool
}

// add takes one cleaned chunk and reports whether the command is over.
func (u *utterance) add(chunk string) bool {
	if chunk == "" {
		u.silent++
		limit := leadInSilence
		if u.started {
			limit = trailSilence
		}
		return u.silent >= limit
	}
	u.silent = 0
	u.started = true
	// Speakers often repeat the wake phrase mid-command.
	if words := u.wake.strip(chunk); words != "" {
		u.parts = append(u.parts, words)
	}
	return false
}

func (u *utterance) text() string {
	return strings.Join(u.parts, " ")
}

var (
	// Alphabetic sound annotations: "(keyboard clicking)", "[Music]".
	envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z\s]*[\)\]]`)
	// Markers the annotation pattern misses: "[BLANK_AUDIO]" and segment
	// timestamps like "[00:00:00.000 --> 00:00:02.000]".
	whisperMarker = regexp.MustCompile(`(?i)\[blank_audio\]|\[\s*[\d:.]+\s*-->\s*[\d:.]+\s*\]`)
)

// hallucinations are whole transcriptions whisper invents from silence,
// lowercased.
var hallucinations = map[string]bool{
	"...":                     true,
	"you":                     true,
	"thank you.":              true,
	"thanks for watching!":    true,
	"thank you for watching.": true,
	"bye.":                    true,
	"bye!":                    true,
	"the end.":                true,
	"sous-titres réalisés para la communauté d'amara.org": true,
}

// cleanTranscription strips whisper's markers and sound annotations,
// collapses whitespace, and blanks out known silence hallucinations.
func cleanTranscription(s string) string {
	s = whisperMarker.ReplaceAllString(s, " ")
	s = envAnnotation.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	if hallucinations[strings.ToLower(s)] {
		return ""
	}
	return s
}
