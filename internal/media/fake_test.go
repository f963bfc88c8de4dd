package media

import (
	"context"
	"errors"
	"sync"
)

// fakeGenerator records calls and blocks each one until released.
type fakeGenerator struct {
	mu       sync.Mutex
	steps    []StepPrompt
	finishes []string
	gate     chan struct{}
	fail     map[string]bool // step label or recipe title -> fail
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{gate: make(chan struct{}), fail: map[string]bool{}}
}

func (f *fakeGenerator) StepImage(ctx context.Context, p StepPrompt) (*Image, error) {
	f.mu.Lock()
	f.steps = append(f.steps, p)
	fail := f.fail[p.StepLabel]
	f.mu.Unlock()
	return f.wait(ctx, fail, "step:"+p.StepLabel)
}

func (f *fakeGenerator) FinishImage(ctx context.Context, title string) (*Image, error) {
	f.mu.Lock()
	f.finishes = append(f.finishes, title)
	fail := f.fail[title]
	f.mu.Unlock()
	return f.wait(ctx, fail, "finish:"+title)
}

func (f *fakeGenerator) wait(ctx context.Context, fail bool, tag string) (*Image, error) {
	select {
	case <-f.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if fail {
		return nil, errors.New("generator down")
	}
	return &Image{MIMEType: "image/png", Data: []byte(tag)}, nil
}

func (f *fakeGenerator) release() { close(f.gate) }

func (f *fakeGenerator) stepCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.steps)
}

func (f *fakeGenerator) finishCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finishes)
}
