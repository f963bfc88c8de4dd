package speech

import (
	"context"
	"errors"
	"sync"
)

// gatedSynth returns "audio:<text>" once the text's gate is released.
// With ignoreCtx set it behaves like a backend that finishes the request
// even after the caller gave up.
type gatedSynth struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	calls     []string
	fail      map[string]bool
	ignoreCtx bool
	returned  int
}

func newGatedSynth() *gatedSynth {
	return &gatedSynth{gates: map[string]chan struct{}{}, fail: map[string]bool{}}
}

func (g *gatedSynth) gate(text string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[text]
	if !ok {
		ch = make(chan struct{})
		g.gates[text] = ch
	}
	return ch
}

func (g *gatedSynth) release(text string) { close(g.gate(text)) }

func (g *gatedSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	g.mu.Lock()
	g.calls = append(g.calls, text)
	fail := g.fail[text]
	ignoreCtx := g.ignoreCtx
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.returned++
		g.mu.Unlock()
	}()

	if ignoreCtx {
		<-g.gate(text)
	} else {
		select {
		case <-g.gate(text):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("tts down")
	}
	return []byte("audio:" + text), nil
}

func (g *gatedSynth) returnedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.returned
}

func (g *gatedSynth) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// recordingSink records every started clip. Clips end when finished or
// stopped.
type recordingSink struct {
	mu      sync.Mutex
	started []string
	pbs     []*fakePlayback
}

func (s *recordingSink) Start(audio []byte) (Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pb := &fakePlayback{done: make(chan struct{})}
	s.started = append(s.started, string(audio))
	s.pbs = append(s.pbs, pb)
	return pb, nil
}

func (s *recordingSink) played() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...)
}

func (s *recordingSink) finishAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pb := range s.pbs {
		pb.end()
	}
}

type fakePlayback struct {
	once    sync.Once
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
}

func (p *fakePlayback) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.end()
}

func (p *fakePlayback) Done() <-chan struct{} { return p.done }

func (p *fakePlayback) end() { p.once.Do(func() { close(p.done) }) }

func (p *fakePlayback) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
