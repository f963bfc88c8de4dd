package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/media"
	"github.com/hammamikhairi/basil/internal/speech"
)

// ── Images ───────────────────────────────────────────────────────

// fakeImages returns an image tagged with the prompt. When gated, every
// call blocks until release.
type fakeImages struct {
	mu         sync.Mutex
	steps      []media.StepPrompt
	finishes   []string
	failFinish bool
	gate       chan struct{}
}

func newFakeImages(gated bool) *fakeImages {
	f := &fakeImages{}
	if gated {
		f.gate = make(chan struct{})
	}
	return f
}

func (f *fakeImages) wait(ctx context.Context) error {
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeImages) release() { close(f.gate) }

func (f *fakeImages) StepImage(ctx context.Context, p media.StepPrompt) (*media.Image, error) {
	f.mu.Lock()
	f.steps = append(f.steps, p)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return &media.Image{MIMEType: "image/png", Data: []byte(p.RecipeTitle + "/" + p.StepLabel)}, nil
}

func (f *fakeImages) FinishImage(ctx context.Context, title string) (*media.Image, error) {
	f.mu.Lock()
	f.finishes = append(f.finishes, title)
	fail := f.failFinish
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if fail {
		return nil, errors.New("quota exceeded")
	}
	return &media.Image{MIMEType: "image/png", Data: []byte("finish/" + title)}, nil
}

func (f *fakeImages) stepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.steps)
}

func (f *fakeImages) stepLabels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.steps))
	for i, p := range f.steps {
		out[i] = p.StepLabel
	}
	return out
}

func (f *fakeImages) finishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finishes)
}

// ── Narration ────────────────────────────────────────────────────

// voiceLog collects every line said by every narrator it creates.
type voiceLog struct {
	mu        sync.Mutex
	lines     []string
	cancels   int
	closed    int
	prefetch  []string
	narrators int
}

func (v *voiceLog) factory() NarratorFactory {
	return func(ctx context.Context, onChange func(bool)) Narrator {
		v.mu.Lock()
		v.narrators++
		v.mu.Unlock()
		return &fakeNarrator{log: v}
	}
}

func (v *voiceLog) said() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.lines...)
}

func (v *voiceLog) count(substr string) int {
	n := 0
	for _, l := range v.said() {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

type fakeNarrator struct {
	log    *voiceLog
	mu     sync.Mutex
	closed bool
	last   string
}

func (n *fakeNarrator) Say(text string, _ speech.Priority) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return false
	}
	n.last = text
	n.log.mu.Lock()
	n.log.lines = append(n.log.lines, text)
	n.log.mu.Unlock()
	return true
}

func (n *fakeNarrator) Cancel() {
	n.log.mu.Lock()
	n.log.cancels++
	n.log.mu.Unlock()
}

func (n *fakeNarrator) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.log.mu.Lock()
	n.log.closed++
	n.log.mu.Unlock()
}

func (n *fakeNarrator) Speaking() bool { return false }

func (n *fakeNarrator) Prefetch(text string) {
	n.log.mu.Lock()
	n.log.prefetch = append(n.log.prefetch, text)
	n.log.mu.Unlock()
}

func (n *fakeNarrator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// ── Tips ─────────────────────────────────────────────────────────

type fakeTips struct {
	mu    sync.Mutex
	calls int
	tips  []string
	err   error
	gate  chan struct{}
}

func (f *fakeTips) EatingTips(ctx context.Context, r *domain.Recipe) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.tips, f.err
}

func (f *fakeTips) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ── Recipes ──────────────────────────────────────────────────────

func timedRecipe(title string, secs ...int) *domain.Recipe {
	r := &domain.Recipe{ID: strings.ToLower(title), Title: title}
	for i, s := range secs {
		r.Steps = append(r.Steps, domain.Step{
			Label:           title + " step " + string(rune('A'+i)),
			Instruction:     "Do the thing.",
			DurationSeconds: s,
		})
	}
	return r
}

// heldSynth blocks every fetch until release and then returns audio even
// when the caller's context is already cancelled.
type heldSynth struct {
	mu       sync.Mutex
	gate     chan struct{}
	calls    []string
	returned int
}

func newHeldSynth() *heldSynth { return &heldSynth{gate: make(chan struct{})} }

func (h *heldSynth) release() { close(h.gate) }

func (h *heldSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	h.mu.Lock()
	h.calls = append(h.calls, text)
	h.mu.Unlock()

	<-h.gate

	h.mu.Lock()
	h.returned++
	h.mu.Unlock()
	return []byte("audio:" + text), nil
}

func (h *heldSynth) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func (h *heldSynth) returnedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.returned
}

// clipSink records started clips; each clip plays until stopped.
type clipSink struct {
	mu    sync.Mutex
	clips []string
}

func (s *clipSink) Start(audio []byte) (speech.Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips = append(s.clips, string(audio))
	return &clip{done: make(chan struct{})}, nil
}

func (s *clipSink) played() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clips...)
}

type clip struct {
	once sync.Once
	done chan struct{}
}

func (c *clip) Stop()                 { c.once.Do(func() { close(c.done) }) }
func (c *clip) Done() <-chan struct{} { return c.done }
