package speech

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hammamikhairi/basil/internal/logger"
	"github.com/hammamikhairi/basil/internal/metrics"
)

// NarratorOption configures a Narrator.
type NarratorOption func(*Narrator)

// WithFetchTimeout bounds each synthesis call.
func WithFetchTimeout(d time.Duration) NarratorOption {
	return func(n *Narrator) {
		n.timeout = d
	}
}

// WithNarrationMetrics records played, superseded, and failed narrations.
func WithNarrationMetrics(m *metrics.Metrics) NarratorOption {
	return func(n *Narrator) {
		n.metrics = m
	}
}

// WithSpeakingChange registers a callback fired whenever the narrator goes
// busy or idle. It runs outside the narrator lock.
func WithSpeakingChange(fn func(speaking bool)) NarratorOption {
	return func(n *Narrator) {
		n.onChange = fn
	}
}

// Narrator is a single-slot voice channel. A new line cancels whatever is
// being fetched or played, and a generation counter makes sure audio for a
// superseded line never reaches the speaker. Failures are logged and
// swallowed: narration is best effort.
type Narrator struct {
	synth    Synthesizer
	sink     Sink
	log      *logger.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	onChange func(bool)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	gen         uint64
	busy        bool
	closed      bool
	playing     Playback
	cancelFetch context.CancelFunc
	last        string
}

// NewNarrator creates a narrator. Fetches are bound to ctx.
func NewNarrator(ctx context.Context, synth Synthesizer, sink Sink, log *logger.Logger, opts ...NarratorOption) *Narrator {
	n := &Narrator{
		synth:   synth,
		sink:    sink,
		log:     log,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.ctx, n.cancel = context.WithCancel(ctx)
	return n
}

// Speak narrates text, interrupting anything in progress.
func (n *Narrator) Speak(text string) {
	n.Say(text, PriorityNormal)
}

// Say narrates text at the given priority. Low-priority lines are dropped
// while the narrator is busy; everything else preempts. It reports whether
// the line was accepted.
func (n *Narrator) Say(text string, p Priority) bool {
	text = cleanForSpeech(text)
	if text == "" {
		return false
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return false
	}
	if p == PriorityLow && n.busy {
		n.mu.Unlock()
		n.log.Debug("narrator: busy, dropping low-priority line: %s", truncate(text, 60))
		return false
	}
	n.stopLocked()

	gen := n.gen
	ctx, cancel := context.WithTimeout(n.ctx, n.timeout)
	n.cancelFetch = cancel
	n.busy = true
	n.last = text
	n.wg.Add(1)
	n.mu.Unlock()

	n.log.Debug("narrator: gen=%d say: %s", gen, truncate(text, 60))
	n.changed(true)

	go n.deliver(ctx, cancel, gen, text)
	return true
}

// Cancel stops the current narration immediately. Idempotent.
func (n *Narrator) Cancel() {
	n.mu.Lock()
	wasBusy := n.busy
	n.stopLocked()
	n.mu.Unlock()

	if wasBusy {
		n.changed(false)
	}
}

// Close cancels narration and refuses further lines.
func (n *Narrator) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	wasBusy := n.busy
	n.stopLocked()
	n.closed = true
	n.mu.Unlock()

	n.cancel()
	if wasBusy {
		n.changed(false)
	}
}

// Speaking reports whether a line is being fetched or played.
func (n *Narrator) Speaking() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.busy
}

// Last returns the most recent line accepted by Say.
func (n *Narrator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// Prefetch warms the synthesizer's cache for a line that will be spoken
// soon. No-op when the synthesizer does not cache.
func (n *Narrator) Prefetch(text string) {
	p, ok := n.synth.(Prefetcher)
	if !ok {
		return
	}
	text = cleanForSpeech(text)
	if text == "" {
		return
	}
	p.Prefetch(n.ctx, text)
}

// Wait blocks until every accepted line has been delivered or dropped.
func (n *Narrator) Wait() {
	n.wg.Wait()
}

// stopLocked invalidates the current generation. Must be called with n.mu
// held.
func (n *Narrator) stopLocked() {
	if n.busy {
		n.metrics.Narration("superseded")
	}
	n.gen++
	if n.cancelFetch != nil {
		n.cancelFetch()
		n.cancelFetch = nil
	}
	if n.playing != nil {
		n.playing.Stop()
		n.playing = nil
	}
	n.busy = false
}

func (n *Narrator) deliver(ctx context.Context, cancel context.CancelFunc, gen uint64, text string) {
	defer n.wg.Done()
	defer cancel()

	audio, err := n.synth.Synthesize(ctx, text)

	n.mu.Lock()
	if gen != n.gen || n.closed {
		n.mu.Unlock()
		n.log.Debug("narrator: gen=%d superseded before playback", gen)
		return
	}
	if err == nil && len(audio) == 0 {
		err = errors.New("empty audio")
	}
	if err != nil {
		n.busy = false
		n.cancelFetch = nil
		n.mu.Unlock()
		n.log.Warn("narrator: synthesis failed: %v", err)
		n.metrics.Narration("failed")
		n.changed(false)
		return
	}

	pb, err := n.sink.Start(audio)
	if err != nil {
		n.busy = false
		n.cancelFetch = nil
		n.mu.Unlock()
		n.log.Warn("narrator: playback failed: %v", err)
		n.metrics.Narration("failed")
		n.changed(false)
		return
	}
	n.playing = pb
	n.mu.Unlock()

	<-pb.Done()

	n.mu.Lock()
	if gen != n.gen {
		n.mu.Unlock()
		return
	}
	n.playing = nil
	n.busy = false
	n.cancelFetch = nil
	n.mu.Unlock()

	n.metrics.Narration("played")
	n.changed(false)
}

func (n *Narrator) changed(speaking bool) {
	if n.onChange != nil {
		n.onChange(speaking)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
