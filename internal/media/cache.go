package media

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
	"github.com/hammamikhairi/basil/internal/metrics"
)

// FinishSlot is the cache key of the finishing image.
const FinishSlot = -1

// CacheOption configures a StepCache.
type CacheOption func(*StepCache)

// WithRequestTimeout bounds each generator call.
func WithRequestTimeout(d time.Duration) CacheOption {
	return func(c *StepCache) {
		c.timeout = d
	}
}

// WithOnChange registers a callback fired after a slot changes state. It
// runs outside the cache lock.
func WithOnChange(fn func(slot int, e Entry)) CacheOption {
	return func(c *StepCache) {
		c.onChange = fn
	}
}

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.Metrics) CacheOption {
	return func(c *StepCache) {
		c.metrics = m
	}
}

// StepCache holds one session's images, keyed by step index. Slots are
// written at most once: Pending, then Resolved or Unavailable. A slot is
// never retried and never removed; the whole cache is dropped at session end.
type StepCache struct {
	gen      Generator
	log      *logger.Logger
	timeout  time.Duration
	onChange func(int, Entry)
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	slots     map[int]*Entry
	discarded bool
}

// NewStepCache creates an empty cache. In-flight calls are bound to ctx.
func NewStepCache(ctx context.Context, gen Generator, log *logger.Logger, opts ...CacheOption) *StepCache {
	c := &StepCache{
		gen:     gen,
		log:     log,
		timeout: 90 * time.Second,
		slots:   make(map[int]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	return c
}

// Request ensures an image for step index exists or is being fetched. It
// reports whether a new external call was issued.
func (c *StepCache) Request(index int, p StepPrompt) bool {
	if index < 0 {
		return false
	}
	return c.request(index, "step", func(ctx context.Context) (*Image, error) {
		return c.gen.StepImage(ctx, p)
	})
}

// RequestFinish ensures the finishing image is requested exactly once.
func (c *StepCache) RequestFinish(recipeTitle string) bool {
	return c.request(FinishSlot, "finish", func(ctx context.Context) (*Image, error) {
		return c.gen.FinishImage(ctx, recipeTitle)
	})
}

func (c *StepCache) request(slot int, kind string, fetch func(context.Context) (*Image, error)) bool {
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return false
	}
	if _, ok := c.slots[slot]; ok {
		c.mu.Unlock()
		return false
	}
	c.slots[slot] = &Entry{Status: StatusPending}
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.Debug("image cache: requesting %s image, slot=%d", kind, slot)
	c.changed(slot, Entry{Status: StatusPending})

	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
		defer cancel()

		img, err := fetch(ctx)
		if err == nil && (img == nil || len(img.Data) == 0) {
			err = domain.ErrEmptyResult
		}
		c.resolve(slot, kind, img, err)
	}()
	return true
}

func (c *StepCache) resolve(slot int, kind string, img *Image, err error) {
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		c.log.Debug("image cache: dropping late %s image for slot %d", kind, slot)
		return
	}
	e, ok := c.slots[slot]
	if !ok || e.Status != StatusPending {
		c.mu.Unlock()
		return
	}
	if err != nil {
		e.Status = StatusUnavailable
	} else {
		e.Status = StatusResolved
		e.Image = img
	}
	out := *e
	c.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.log.Debug("image cache: %s image slot %d cancelled", kind, slot)
		} else {
			c.log.Warn("image cache: %s image slot %d unavailable: %v", kind, slot, err)
		}
	} else {
		c.log.Debug("image cache: %s image slot %d resolved (%d bytes)", kind, slot, len(img.Data))
	}
	c.metrics.Image(kind, out.Status.String())
	c.changed(slot, out)
}

func (c *StepCache) changed(slot int, e Entry) {
	if c.onChange != nil {
		c.onChange(slot, e)
	}
}

// Get returns the entry for step index.
func (c *StepCache) Get(index int) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.slots[index]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Finish returns the finishing-image entry.
func (c *StepCache) Finish() (Entry, bool) {
	return c.Get(FinishSlot)
}

// Entries returns a copy of every step slot, excluding the finishing image.
func (c *StepCache) Entries() map[int]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]Entry, len(c.slots))
	for k, e := range c.slots {
		if k == FinishSlot {
			continue
		}
		out[k] = *e
	}
	return out
}

// Discard cancels in-flight calls. Completions arriving afterwards are
// dropped and further requests are refused.
func (c *StepCache) Discard() {
	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return
	}
	c.discarded = true
	c.mu.Unlock()
	c.cancel()
}

// Wait blocks until every issued request has completed.
func (c *StepCache) Wait() {
	c.wg.Wait()
}
