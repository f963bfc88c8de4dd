package display

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/basil/internal/engine"
	"github.com/hammamikhairi/basil/internal/media"
	"github.com/hammamikhairi/basil/internal/timer"
)

// segment is one piece of the status bar with its style.
type segment struct {
	text  string
	style lipgloss.Style
}

const barSep = "  │  "

// statusSegments lays out the bar for a snapshot.
func statusSegments(s engine.Snapshot) []segment {
	switch s.Phase {
	case engine.PhaseInactive:
		return []segment{{"no recipe, type list to browse", timerPendingStyle}}

	case engine.PhaseFinished:
		segs := []segment{
			{s.RecipeTitle, labelStyle},
			{"finished", timerDoneStyle},
			{"dish " + finishGlyph(s), labelStyle},
		}
		if s.TipsRequested {
			segs = append(segs, segment{"tips " + tipsWord(s.TipsStatus), labelStyle})
		}
		return withSpeaking(segs, s)
	}

	state, style := "paused", timerPendingStyle
	if s.Running {
		state, style = "running", timerRunStyle
	}
	segs := []segment{
		{s.RecipeTitle, labelStyle},
		{"step " + strconv.Itoa(s.StepIndex+1) + "/" + strconv.Itoa(s.StepCount) + " " + s.Step.Label, stepStyle},
		{timer.FormatClock(s.Remaining) + " " + state, style},
		{"img " + imageGlyphs(s), labelStyle},
	}
	return withSpeaking(segs, s)
}

func withSpeaking(segs []segment, s engine.Snapshot) []segment {
	if s.Speaking {
		segs = append(segs, segment{"♪", chatStyle})
	}
	return segs
}

// statusLine is the unstyled bar text.
func statusLine(s engine.Snapshot) string {
	segs := statusSegments(s)
	parts := make([]string, len(segs))
	for i, seg := range segs {
		parts[i] = seg.text
	}
	return strings.Join(parts, barSep)
}

func renderStatus(s engine.Snapshot, width int) string {
	segs := statusSegments(s)
	parts := make([]string, len(segs))
	for i, seg := range segs {
		parts[i] = seg.style.Render(seg.text)
	}
	if width <= 0 {
		width = 80
	}
	return barBg.Width(width).Render(" " + strings.Join(parts, sepStyle.Render(barSep)) + " ")
}

// windowTitle is the terminal title for a snapshot.
func windowTitle(s engine.Snapshot) string {
	switch s.Phase {
	case engine.PhaseActive:
		return "Basil: " + s.Step.Label + " " + timer.FormatClock(s.Remaining)
	case engine.PhaseFinished:
		return "Basil: " + s.RecipeTitle + " is ready"
	default:
		return "Basil"
	}
}

// imageGlyphs shows one glyph per step: · not requested, ◌ pending,
// ● ready, × unavailable.
func imageGlyphs(s engine.Snapshot) string {
	var b strings.Builder
	for i := 0; i < s.StepCount; i++ {
		e, ok := s.Images[i]
		if !ok {
			b.WriteString("·")
			continue
		}
		b.WriteString(statusGlyph(e.Status))
	}
	return b.String()
}

func finishGlyph(s engine.Snapshot) string {
	if !s.FinishRequested {
		return "·"
	}
	return statusGlyph(s.Finish.Status)
}

func statusGlyph(st media.Status) string {
	switch st {
	case media.StatusResolved:
		return "●"
	case media.StatusUnavailable:
		return "×"
	default:
		return "◌"
	}
}

func tipsWord(st media.Status) string {
	switch st {
	case media.StatusResolved:
		return "ready"
	case media.StatusUnavailable:
		return "unavailable"
	default:
		return "coming"
	}
}
