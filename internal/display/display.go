// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] type keeps a cook-along status bar and an input prompt at the
// bottom of the terminal. All application output is printed above the
// rendered area via Program.Println / Printf, so concurrent writes never
// garble the display.
package display

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/basil/internal/engine"
)

// RefreshInterval is how often the status bar re-reads the snapshot.
const RefreshInterval = 250 * time.Millisecond

const prompt = "basil> "

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	timerRunStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	timerDoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#86efac"))

	timerPendingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#71717a")).
				Italic(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#86efac"))

	// BannerStyle is used for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#86efac"))

	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	primaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	urgentOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fca5a5"))

	userInputEchoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#a1a1aa"))
)

// Source is what the status bar renders from.
type Source interface {
	Snapshot() engine.Snapshot
}

// Controls are the actions bound to keys.
type Controls interface {
	ToggleRun() bool
	AdvanceFrom(step int) bool
}

// ── UI ───────────────────────────────────────────────────────────

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI] then [UI.Run] (blocking). Other goroutines may safely call
// [UI.Println], [UI.Printf], and read from [UI.InputChan] at any time after
// [UI.WaitReady] returns.
type UI struct {
	program  *tea.Program
	source   Source
	controls Controls
	inputCh  chan string
	readyCh  chan struct{}
	quitCh   chan struct{}
	done     atomic.Bool
}

// NewUI creates the display. controls may be nil, which disables the key
// bindings. Call Run() to start.
func NewUI(source Source, controls Controls) *UI {
	return &UI{
		source:   source,
		controls: controls,
		inputCh:  make(chan string, 16),
		readyCh:  make(chan struct{}),
		quitCh:   make(chan struct{}),
	}
}

// Println prints a line above the prompt. Thread-safe. Falls back to
// fmt.Println before the program starts and after it exits.
func (u *UI) Println(a ...any) {
	if u.program != nil && !u.done.Load() {
		u.program.Println(a...)
	} else {
		fmt.Println(a...)
	}
}

// Printf prints formatted text above the prompt on its own line.
func (u *UI) Printf(format string, a ...any) {
	if u.program != nil && !u.done.Load() {
		u.program.Printf(format, a...)
	} else {
		fmt.Printf(format+"\n", a...)
	}
}

// InputChan returns completed user-input lines.
func (u *UI) InputChan() <-chan string { return u.inputCh }

// ── Styled print helpers ─────────────────────────────────────────

// PrintChat prints an assistant line.
func (u *UI) PrintChat(text string) {
	u.Println(chatStyle.Render("  " + text))
}

// PrintStep prints a step header like "Step 2/6: Sear (3 minutes)".
func (u *UI) PrintStep(text string) {
	u.Println(stepStyle.Render("  " + text))
}

// PrintInstruction prints the step's instruction text.
func (u *UI) PrintInstruction(text string) {
	u.Println(primaryStyle.Render("  " + text))
}

// PrintHint prints a dimmed line.
func (u *UI) PrintHint(text string) {
	u.Println(secondaryStyle.Render("  " + text))
}

// PrintUrgent prints an error or alert line.
func (u *UI) PrintUrgent(text string) {
	u.Println(urgentOutputStyle.Render("  " + text))
}

// PrintVoice prints a line heard by the voice ear.
func (u *UI) PrintVoice(text string) {
	u.Println(secondaryStyle.Render("[voice] ") + primaryStyle.Render(text))
}

// PrintUserInput echoes a typed command into the scrollback.
func (u *UI) PrintUserInput(text string) {
	u.Println(promptStyle.Render("basil") + secondaryStyle.Render("> ") + userInputEchoStyle.Render(text))
}

// WaitReady blocks until the Bubble Tea event loop is running.
func (u *UI) WaitReady() { <-u.readyCh }

// Quit tells Bubble Tea to exit.
func (u *UI) Quit() {
	if u.program != nil {
		u.program.Quit()
	}
}

// QuitChan is closed when Run returns.
func (u *UI) QuitChan() <-chan struct{} { return u.quitCh }

// Run starts the Bubble Tea event loop. Blocks until quit.
func (u *UI) Run() error {
	u.program = tea.NewProgram(u.newModel())
	_, err := u.program.Run()
	u.done.Store(true)
	close(u.quitCh)
	return err
}

func (u *UI) newModel() model {
	ti := textinput.New()
	// A plain-text prompt keeps the textinput width math correct; styled
	// prompts add invisible ANSI bytes.
	ti.Prompt = prompt
	ti.PromptStyle = promptStyle
	ti.TextStyle = userInputEchoStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#86efac"))
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	return model{
		source:   u.source,
		controls: u.controls,
		input:    ti,
		inputCh:  u.inputCh,
		readyCh:  u.readyCh,
		echoFn:   u.PrintUserInput,
		snap:     engine.Snapshot{StepIndex: -1},
	}
}

// ── Bubble Tea model ─────────────────────────────────────────────

type model struct {
	source   Source
	controls Controls
	input    textinput.Model
	inputCh  chan<- string
	readyCh  chan struct{}
	echoFn   func(string)
	snap     engine.Snapshot
	width    int
}

type tickMsg time.Time

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tickCmd(),
		signalReady(m.readyCh),
	)
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		close(ch)
		return nil
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyTab:
			// Advance from the step the user is looking at, not whatever
			// the machine may have moved to since the last render.
			if m.controls != nil && m.snap.Phase == engine.PhaseActive {
				m.controls.AdvanceFrom(m.snap.StepIndex)
			}
			return m, nil
		case tea.KeyCtrlT:
			if m.controls != nil {
				m.controls.ToggleRun()
			}
			return m, nil
		case tea.KeyEnter:
			v := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(v) == "" {
				return m, nil
			}
			m.inputCh <- v
			// Echo from a Cmd so Println does not block inside Update.
			echoFn := m.echoFn
			return m, func() tea.Msg {
				echoFn(v)
				return nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Width > len(prompt) {
			m.input.Width = msg.Width - len(prompt)
		}
		return m, nil

	case tickMsg:
		if m.source != nil {
			m.snap = m.source.Snapshot()
		}
		return m, tea.Batch(tickCmd(), tea.SetWindowTitle(windowTitle(m.snap)))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(renderStatus(m.snap, m.width))
	b.WriteByte('\n')
	b.WriteByte('\n')
	b.WriteString(m.input.View())
	return b.String()
}
