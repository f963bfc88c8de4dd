package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/hammamikhairi/basil/internal/kv"
	"github.com/hammamikhairi/basil/internal/logger"
)

// Prefetcher is implemented by synthesizers that can warm a cache ahead of
// time.
type Prefetcher interface {
	Prefetch(ctx context.Context, text string)
}

const audioKeyPrefix = "audio:"

// AudioCache is a thread-safe two-tier cache (in-memory + key-value store)
// for synthesized audio. The cache key is sha256(voice + ":" + text) so a
// voice change automatically causes cache misses until the voice is
// switched back.
type AudioCache struct {
	mu      sync.RWMutex
	entries map[string][]byte // hash -> audio bytes
	log     *logger.Logger
	voice   string   // included in every cache key
	store   kv.Store // persistent tier, nil = memory only
	hits    int64
	misses  int64
}

// NewAudioCache creates an audio cache. A nil store disables the
// persistent tier.
func NewAudioCache(voice string, store kv.Store, log *logger.Logger) *AudioCache {
	return &AudioCache{
		entries: make(map[string][]byte),
		log:     log,
		voice:   voice,
		store:   store,
	}
}

// Get returns cached audio for the given text and true, or nil and false.
// It checks memory first, then the persistent tier.
func (c *AudioCache) Get(ctx context.Context, text string) ([]byte, bool) {
	key := c.hashKey(text)

	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		c.log.Debug("cache hit (mem): %s (%d bytes)", truncate(text, 40), len(data))
		return data, true
	}

	if c.store != nil {
		stored, err := c.store.Get(ctx, audioKeyPrefix+key)
		switch {
		case err == nil:
			c.mu.Lock()
			c.entries[key] = stored
			c.hits++
			c.mu.Unlock()
			c.log.Debug("cache hit (kv): %s (%d bytes)", truncate(text, 40), len(stored))
			return stored, true
		case !errors.Is(err, kv.ErrNotFound):
			c.log.Warn("cache: kv read failed: %v", err)
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for the given text in both tiers.
func (c *AudioCache) Put(ctx context.Context, text string, audio []byte) {
	key := c.hashKey(text)

	c.mu.Lock()
	c.entries[key] = audio
	size := len(c.entries)
	c.mu.Unlock()

	c.log.Debug("cache store (mem): %s (%d bytes, %d entries)", truncate(text, 40), len(audio), size)

	if c.store != nil {
		if err := c.store.Set(ctx, audioKeyPrefix+key, audio); err != nil {
			c.log.Error("cache: kv write failed for %s: %v", key[:12], err)
		}
	}
}

// Has returns true if audio for the text is cached in either tier.
func (c *AudioCache) Has(ctx context.Context, text string) bool {
	key := c.hashKey(text)

	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return true
	}
	if c.store != nil {
		_, err := c.store.Get(ctx, audioKeyPrefix+key)
		return err == nil
	}
	return false
}

// Len returns the number of in-memory cached entries.
func (c *AudioCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// hashKey returns a hex-encoded SHA-256 of voice + ":" + text.
func (c *AudioCache) hashKey(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

// ── CachedSynthesizer ────────────────────────────────────────────

// Compile-time interface checks.
var (
	_ Synthesizer = (*CachedSynthesizer)(nil)
	_ Prefetcher  = (*CachedSynthesizer)(nil)
)

// CachedSynthesizer decorates a Synthesizer with an AudioCache. Concurrent
// requests for the same text share one upstream call.
type CachedSynthesizer struct {
	next  Synthesizer
	cache *AudioCache
	log   *logger.Logger

	mu       sync.Mutex
	inflight map[string]*flight
}

type flight struct {
	done  chan struct{}
	audio []byte
	err   error
}

// NewCachedSynthesizer wraps next. The cache voice is taken from next when
// it implements Voiced.
func NewCachedSynthesizer(next Synthesizer, store kv.Store, log *logger.Logger) *CachedSynthesizer {
	voice := "default"
	if v, ok := next.(Voiced); ok {
		voice = v.Voice()
	}
	return &CachedSynthesizer{
		next:     next,
		cache:    NewAudioCache(voice, store, log),
		log:      log,
		inflight: make(map[string]*flight),
	}
}

// Cache exposes the underlying cache.
func (s *CachedSynthesizer) Cache() *AudioCache {
	return s.cache
}

// Synthesize returns cached audio or fetches and stores it.
func (s *CachedSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if audio, ok := s.cache.Get(ctx, text); ok {
		return audio, nil
	}

	s.mu.Lock()
	if f, ok := s.inflight[text]; ok {
		s.mu.Unlock()
		select {
		case <-f.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		// The owner's context may have been cancelled while ours is live.
		if errors.Is(f.err, context.Canceled) || errors.Is(f.err, context.DeadlineExceeded) {
			return s.Synthesize(ctx, text)
		}
		return f.audio, f.err
	}
	f := &flight{done: make(chan struct{})}
	s.inflight[text] = f
	s.mu.Unlock()

	f.audio, f.err = s.next.Synthesize(ctx, text)
	if f.err == nil && len(f.audio) > 0 {
		s.cache.Put(ctx, text, f.audio)
	}

	s.mu.Lock()
	delete(s.inflight, text)
	s.mu.Unlock()
	close(f.done)

	return f.audio, f.err
}

// Prefetch synthesizes text in the background unless it is already cached.
func (s *CachedSynthesizer) Prefetch(ctx context.Context, text string) {
	go func() {
		if s.cache.Has(ctx, text) {
			return
		}
		fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := s.Synthesize(fetchCtx, text); err != nil {
			s.log.Debug("prefetch failed for %q: %v", truncate(text, 40), err)
			return
		}
		s.log.Debug("prefetched: %s", truncate(text, 40))
	}()
}
