package display

import (
	_ "embed"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
)

//go:embed banner.txt
var bannerRaw string

const tagline = "one step at a time"

// RenderBanner returns the banner art centred for the current terminal
// width, followed by a dimmed tagline.
func RenderBanner() string {
	return renderBanner(termWidth())
}

func renderBanner(width int) string {
	lines := strings.Split(strings.TrimRight(bannerRaw, "\n"), "\n")

	maxW := 0
	for _, l := range lines {
		if len(l) > maxW {
			maxW = len(l)
		}
	}

	var b strings.Builder
	center := func(w int) {
		if width > w {
			b.WriteString(strings.Repeat(" ", (width-w)/2))
		}
	}
	for _, l := range lines {
		center(maxW)
		b.WriteString(BannerStyle.Render(l))
		b.WriteByte('\n')
	}
	center(len(tagline))
	b.WriteString(secondaryStyle.Render(tagline))
	b.WriteByte('\n')
	return b.String()
}

// termWidth returns the current terminal column count, or 80 as fallback.
func termWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 80
}
