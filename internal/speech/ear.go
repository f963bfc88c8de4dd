package speech

import (
	"context"
	"os/exec"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/basil/internal/logger"
)

// Voice is what the ear needs from the narration side: silence it on the
// wake word, acknowledge, and avoid recording while it talks.
type Voice interface {
	Announcer
	Hush()
	Speaking() bool
}

// recorder captures d worth of microphone audio and returns its
// transcription, or "" when nothing usable was heard.
type recorder func(ctx context.Context, d time.Duration) string

const (
	idlePoll      = 200 * time.Millisecond
	settleDelay   = 500 * time.Millisecond
	recordBackoff = 2 * time.Second
)

// EarOption configures the Ear.
type EarOption func(*Ear)

// WithRecordDuration sets the length of each chunk recorded while a
// command is being taken.
func WithRecordDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.chunk = d }
}

// WithDormantDuration sets the length of each clip scanned for the wake
// word.
func WithDormantDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.clip = d }
}

// WithListenTimeout caps how long one command may take.
func WithListenTimeout(d time.Duration) EarOption {
	return func(e *Ear) { e.listenTimeout = d }
}

// WithWakeWords overrides the default wake phrases.
func WithWakeWords(words ...string) EarOption {
	return func(e *Ear) { e.wake = newWakeSet(words) }
}

// WithTempDir sets the directory whisper writes its WAV files to.
func WithTempDir(dir string) EarOption {
	return func(e *Ear) { e.tempDir = dir }
}

// Ear is wake-word-triggered voice input backed by a local whisper model.
// It scans short clips for a wake phrase, hushes narration when it hears
// one, then records the command that follows and sends it on C.
type Ear struct {
	whisperBin string
	modelPath  string
	tempDir    string
	log        *logger.Logger
	voice      Voice // optional

	wake          *wakeSet
	clip          time.Duration
	chunk         time.Duration
	listenTimeout time.Duration
	settle        time.Duration // pause before taking a command
	record        recorder

	out chan string
}

// NewEar creates an ear that runs whisperBin against the model at
// modelPath. voice may be nil.
func NewEar(whisperBin, modelPath string, voice Voice, log *logger.Logger, opts ...EarOption) *Ear {
	e := &Ear{
		whisperBin:    whisperBin,
		modelPath:     modelPath,
		tempDir:       ".basil-stt",
		log:           log,
		voice:         voice,
		wake:          newWakeSet(defaultWakeWords),
		clip:          3 * time.Second,
		chunk:         time.Second,
		listenTimeout: 15 * time.Second,
		settle:        settleDelay,
		out:           make(chan string, 8),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.record = e.whisper

	if _, err := exec.LookPath(e.whisperBin); err != nil {
		log.Error("ear: whisper binary %q not found in PATH: %v", e.whisperBin, err)
	}
	return e
}

// C delivers each recognised command, wake phrase removed.
func (e *Ear) C() <-chan string {
	return e.out
}

// Run listens until ctx is cancelled.
func (e *Ear) Run(ctx context.Context) {
	e.log.Info("ear: started (clip=%s, chunk=%s, timeout=%s)", e.clip, e.chunk, e.listenTimeout)
	defer e.log.Info("ear: stopped")

	for ctx.Err() == nil {
		e.turn(ctx)
	}
}

// turn runs one wake-and-command cycle.
func (e *Ear) turn(ctx context.Context) {
	if e.talking() {
		// Recording now would transcribe our own narration.
		sleepCtx(ctx, idlePoll)
		return
	}

	cmd, woke := e.listenForWake(ctx)
	if !woke {
		return
	}
	if cmd == "" {
		e.acknowledge()
		cmd = e.takeCommand(ctx)
	}
	if cmd == "" {
		e.log.Debug("ear: woke but heard no command")
		return
	}
	e.send(ctx, cmd)
}

// listenForWake records one clip and checks it for a wake phrase. On a
// hit narration is hushed and any command spoken in the same breath is
// returned.
func (e *Ear) listenForWake(ctx context.Context) (string, bool) {
	heard := cleanTranscription(e.record(ctx, e.clip))
	if e.talking() {
		e.log.Debug("ear: dropping clip, narration started while recording")
		return "", false
	}
	if heard == "" {
		return "", false
	}

	cmd, ok := e.wake.match(heard)
	if !ok {
		e.log.Debug("ear: no wake word in %q", heard)
		return "", false
	}
	e.log.Info("ear: wake word in %q", heard)
	if e.voice != nil {
		e.voice.Hush()
	}
	return cmd, true
}

// takeCommand records chunks until the speaker goes quiet or the listen
// timeout passes and returns what they said.
func (e *Ear) takeCommand(ctx context.Context) string {
	e.waitForVoice(ctx)
	if !sleepCtx(ctx, e.settle) {
		return ""
	}

	u := utterance{wake: e.wake}
	deadline := time.Now().Add(e.listenTimeout)
	for ctx.Err() == nil && time.Now().Before(deadline) {
		if u.add(cleanTranscription(e.record(ctx, e.chunk))) {
			break
		}
	}
	if ctx.Err() != nil {
		return ""
	}
	return u.text()
}

func (e *Ear) acknowledge() {
	if e.voice == nil {
		return
	}
	line := LineListening()
	e.voice.Announce(line, PriorityHigh)
	e.log.Debug("ear: said %q", line)
}

func (e *Ear) send(ctx context.Context, cmd string) {
	e.log.Info("ear: heard command %q", cmd)
	select {
	case e.out <- cmd:
	case <-ctx.Done():
	}
}

func (e *Ear) talking() bool {
	return e.voice != nil && e.voice.Speaking()
}

// waitForVoice blocks while narration (usually the acknowledgment) plays.
func (e *Ear) waitForVoice(ctx context.Context) {
	for e.talking() {
		if !sleepCtx(ctx, 100*time.Millisecond) {
			return
		}
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// whisper is the default recorder: one microphone capture transcribed by
// whisper-cli.
func (e *Ear) whisper(ctx context.Context, d time.Duration) string {
	heard := make(chan string, 1)
	onText := func(text string) {
		select {
		case heard <- text:
		default:
		}
	}

	verbose := e.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(e.whisperBin, e.modelPath, e.tempDir, "wav", onText, verbose)
	if err != nil {
		e.log.Error("ear: transcriber init failed: %v", err)
		sleepCtx(ctx, recordBackoff)
		return ""
	}
	if err := t.Start(); err != nil {
		e.log.Error("ear: recording start failed: %v", err)
		sleepCtx(ctx, recordBackoff)
		return ""
	}

	finished := sleepCtx(ctx, d)
	t.Stop()
	text := <-heard
	if !finished {
		return ""
	}
	return text
}
