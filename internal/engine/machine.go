// Package engine implements the cook-along state machine and the session
// controller that feeds it recipes and records history.
package engine

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
	"github.com/hammamikhairi/basil/internal/media"
	"github.com/hammamikhairi/basil/internal/metrics"
	"github.com/hammamikhairi/basil/internal/speech"
	"github.com/hammamikhairi/basil/internal/timer"
)

// Narrator is the voice channel owned by one session.
type Narrator interface {
	Say(text string, p speech.Priority) bool
	Cancel()
	Close()
	Speaking() bool
	Prefetch(text string)
	Last() string
}

// NarratorFactory builds a narrator bound to ctx. onChange must be wired to
// the narrator's speaking-change callback so the UI can refresh.
type NarratorFactory func(ctx context.Context, onChange func(speaking bool)) Narrator

// Option configures the machine.
type Option func(*Machine)

// WithImages enables per-step images from gen.
func WithImages(gen media.Generator, opts ...media.CacheOption) Option {
	return func(m *Machine) {
		m.images = gen
		m.cacheOpts = opts
	}
}

// WithImageLookahead also requests images for the next n steps whenever a
// step is entered.
func WithImageLookahead(n int) Option {
	return func(m *Machine) {
		m.lookahead = n
	}
}

// WithNarration enables voice narration through narrators built by f.
func WithNarration(f NarratorFactory) Option {
	return func(m *Machine) {
		m.narration = f
	}
}

// WithStepNarration controls whether each step is read aloud on entry.
func WithStepNarration(enabled bool) Option {
	return func(m *Machine) {
		m.narrateSteps = enabled
	}
}

// WithTips enables sensory "how to eat" tips on completion.
func WithTips(src domain.TipSource) Option {
	return func(m *Machine) {
		m.tips = src
	}
}

// WithTipsTimeout bounds the tips request.
func WithTipsTimeout(d time.Duration) Option {
	return func(m *Machine) {
		m.tipsTimeout = d
	}
}

// WithTickInterval sets the countdown tick period. Tests shrink it.
func WithTickInterval(d time.Duration) Option {
	return func(m *Machine) {
		m.tick = d
	}
}

// WithMetrics records transitions and session outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) {
		m.metrics = mt
	}
}

// session is the live state of one cook-along.
type session struct {
	gen       uint64
	id        string
	recipe    *domain.Recipe
	step      int
	visited   int
	finished  bool
	clock     *timer.Clock
	images    *media.StepCache
	narrator  Narrator
	startedAt time.Time
	since     time.Time

	tipsRequested bool
	tipsStatus    media.Status
	tips          []string

	ctx    context.Context
	cancel context.CancelFunc
}

// Machine is the cook-along state machine: Inactive, Active(step,
// remaining, running), Finished. Every event (user action, clock expiry,
// async completion) enters through a method that takes the machine lock,
// checks the event still belongs to the live session, and mutates. The
// lock is never held across an external call.
type Machine struct {
	log          *logger.Logger
	images       media.Generator
	cacheOpts    []media.CacheOption
	lookahead    int
	narration    NarratorFactory
	narrateSteps bool
	tips         domain.TipSource
	tipsTimeout  time.Duration
	tick         time.Duration
	metrics      *metrics.Metrics

	changes chan struct{}

	mu        sync.Mutex
	gen       uint64
	s         *session
	lobby     Narrator // speaks while no session is live
	observers []func(Event)
}

// NewMachine creates an inactive machine.
func NewMachine(log *logger.Logger, opts ...Option) *Machine {
	m := &Machine{
		log:          log,
		narrateSteps: true,
		tipsTimeout:  45 * time.Second,
		tick:         time.Second,
		changes:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Observe registers fn to receive lifecycle events. Events are delivered
// outside the machine lock, on the goroutine that caused them.
func (m *Machine) Observe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Changes returns a channel that receives a value after state changes and
// countdown ticks. Notifications coalesce.
func (m *Machine) Changes() <-chan struct{} {
	return m.changes
}

// ── Transitions ──────────────────────────────────────────────────

// Start begins a cook-along for recipe, closing any live session first.
// A malformed recipe is rejected and leaves the machine untouched.
func (m *Machine) Start(recipe *domain.Recipe) error {
	if err := recipe.Validate(); err != nil {
		m.metrics.Session("rejected")
		m.log.Warn("rejecting recipe: %v", err)
		return err
	}

	r := *recipe
	r.Steps = append([]domain.Step(nil), recipe.Steps...)

	m.mu.Lock()
	var events []Event
	if ev, ok := m.closeLocked(); ok {
		events = append(events, ev)
	}
	if m.lobby != nil {
		m.lobby.Cancel()
	}

	m.gen++
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		gen:       m.gen,
		id:        uuid.NewString(),
		recipe:    &r,
		visited:   1,
		startedAt: now,
		since:     now,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.clock = m.newClock(s.gen, 0, r.Steps[0].DurationSeconds)
	s.narrator = m.newNarrator(ctx)
	if m.images != nil {
		opts := append([]media.CacheOption{
			media.WithMetrics(m.metrics),
		}, m.cacheOpts...)
		opts = append(opts, media.WithOnChange(func(int, media.Entry) { m.signal() }))
		s.images = media.NewStepCache(ctx, m.images, m.log, opts...)
	}
	m.s = s
	m.enterStepLocked(s)
	events = append(events, m.eventLocked(s, EventStarted))
	m.mu.Unlock()

	m.metrics.Session("started")
	m.log.Info("cook-along %s started: %q (%d steps, %ds)", shortID(s.id), r.Title, len(r.Steps), r.TotalSeconds())
	m.signal()
	m.emit(events)
	return nil
}

// ToggleRun starts or pauses the current step's countdown. It reports
// whether anything changed; outside Active it is a no-op.
func (m *Machine) ToggleRun() bool {
	m.mu.Lock()
	s := m.s
	if s == nil || s.finished {
		m.mu.Unlock()
		m.log.Debug("toggle ignored: no active step")
		return false
	}
	changed := true
	if s.clock.Running() {
		s.clock.Pause()
	} else {
		changed = s.clock.Start()
	}
	if changed {
		s.since = time.Now()
	}
	running := s.clock.Running()
	m.mu.Unlock()

	m.log.Debug("toggle: running=%v", running)
	m.signal()
	return changed
}

// Advance moves to the next step, or to Finished after the last one. It is
// ignored while finishing or finished, and when inactive.
func (m *Machine) Advance() bool {
	m.mu.Lock()
	s := m.s
	if s == nil || s.finished {
		m.mu.Unlock()
		m.log.Debug("advance ignored: no active step")
		return false
	}
	ev := m.stepForwardLocked(s, "manual")
	m.mu.Unlock()

	m.signal()
	m.emit([]Event{ev})
	return true
}

// AdvanceFrom advances only if the current step is still step. A UI binds
// it to the step it rendered so a key press racing an expiry cannot skip
// two steps.
func (m *Machine) AdvanceFrom(step int) bool {
	m.mu.Lock()
	s := m.s
	if s == nil || s.finished || s.step != step {
		m.mu.Unlock()
		m.log.Debug("advance from %d ignored: stale", step)
		return false
	}
	ev := m.stepForwardLocked(s, "manual")
	m.mu.Unlock()

	m.signal()
	m.emit([]Event{ev})
	return true
}

// expire is pushed by a step's clock when it reaches zero. It is dropped
// unless (gen, step) still names the live step.
func (m *Machine) expire(gen uint64, step int) {
	m.mu.Lock()
	s := m.s
	if s == nil || s.gen != gen || s.finished || s.step != step {
		m.mu.Unlock()
		m.log.Debug("expiry for gen=%d step=%d dropped: stale", gen, step)
		return
	}
	ev := m.stepForwardLocked(s, "expiry")
	m.mu.Unlock()

	m.signal()
	m.emit([]Event{ev})
}

// Close ends the live session from any state. Idempotent.
func (m *Machine) Close() {
	m.mu.Lock()
	ev, ok := m.closeLocked()
	m.mu.Unlock()

	if !ok {
		return
	}
	m.signal()
	m.emit([]Event{ev})
}

// Shutdown closes the session and the idle narrator.
func (m *Machine) Shutdown() {
	m.Close()

	m.mu.Lock()
	lobby := m.lobby
	m.lobby = nil
	m.mu.Unlock()

	if lobby != nil {
		lobby.Close()
	}
}

// ── Voice ────────────────────────────────────────────────────────

// Repeat re-narrates the current step, or the completion line once
// finished. It reports whether a session was live.
func (m *Machine) Repeat() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.s
	if s == nil {
		return false
	}
	if s.finished {
		s.narrator.Say(speech.LineFinished(s.recipe.Title, s.recipe.Closing), speech.PriorityNormal)
		return true
	}
	s.narrator.Say(m.stepLine(s, s.step), speech.PriorityNormal)
	return true
}

// SpeakTips reads the tips aloud when they are available.
func (m *Machine) SpeakTips() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.s
	if s == nil || s.tipsStatus != media.StatusResolved || len(s.tips) == 0 {
		return false
	}
	return s.narrator.Say(speech.LineTips(s.tips), speech.PriorityNormal)
}

// Announce speaks text through the live narrator: the session's when one
// is active, otherwise the idle narrator.
func (m *Machine) Announce(text string, p speech.Priority) {
	m.mu.Lock()
	n := m.voiceLocked()
	m.mu.Unlock()
	n.Say(text, p)
}

// Hush silences narration without touching the countdown.
func (m *Machine) Hush() {
	m.mu.Lock()
	n := m.voiceLocked()
	m.mu.Unlock()
	n.Cancel()
}

// Speaking reports whether any narration is in progress.
func (m *Machine) Speaking() bool {
	m.mu.Lock()
	n := m.voiceLocked()
	m.mu.Unlock()
	return n.Speaking()
}

// Prefetch warms the narration cache for text.
func (m *Machine) Prefetch(text string) {
	m.mu.Lock()
	n := m.voiceLocked()
	m.mu.Unlock()
	n.Prefetch(text)
}

// ── Internals ────────────────────────────────────────────────────

// stepForwardLocked performs the advance transition. Caller holds m.mu and
// has checked that s is live and not finished.
func (m *Machine) stepForwardLocked(s *session, cause string) Event {
	s.narrator.Cancel()
	s.clock.Stop()
	s.since = time.Now()

	if s.step+1 < len(s.recipe.Steps) {
		s.step++
		s.visited++
		s.clock = m.newClock(s.gen, s.step, s.recipe.Steps[s.step].DurationSeconds)
		m.metrics.Transition(cause, "step")
		m.log.Info("cook-along %s: step %d/%d (%s)", shortID(s.id), s.step+1, len(s.recipe.Steps), cause)
		m.enterStepLocked(s)
		return m.eventLocked(s, EventStep)
	}

	s.finished = true
	m.metrics.Transition(cause, "finished")
	m.metrics.Session("completed")
	m.log.Info("cook-along %s: finished (%s)", shortID(s.id), cause)
	m.finishLocked(s)
	return m.eventLocked(s, EventFinished)
}

// enterStepLocked runs the side effects of landing on s.step.
func (m *Machine) enterStepLocked(s *session) {
	if s.images != nil {
		for i := s.step; i <= s.step+m.lookahead && i < len(s.recipe.Steps); i++ {
			st := s.recipe.Steps[i]
			s.images.Request(i, media.StepPrompt{
				RecipeTitle: s.recipe.Title,
				StepLabel:   st.Label,
				Instruction: st.Instruction,
			})
		}
	}
	if m.narrateSteps {
		s.narrator.Say(m.stepLine(s, s.step), speech.PriorityNormal)
		if s.step+1 < len(s.recipe.Steps) {
			s.narrator.Prefetch(m.stepLine(s, s.step+1))
		} else {
			s.narrator.Prefetch(speech.LineFinished(s.recipe.Title, s.recipe.Closing))
		}
	}
}

// finishLocked issues the finishing image, completion line and tips
// request. Reached once per session because finished is set first.
func (m *Machine) finishLocked(s *session) {
	if s.images != nil {
		s.images.RequestFinish(s.recipe.Title)
	}
	s.narrator.Say(speech.LineFinished(s.recipe.Title, s.recipe.Closing), speech.PriorityNormal)

	if m.tips != nil && !s.tipsRequested {
		s.tipsRequested = true
		s.tipsStatus = media.StatusPending
		go m.fetchTips(s.ctx, s.gen, s.recipe)
	}
}

func (m *Machine) fetchTips(ctx context.Context, gen uint64, recipe *domain.Recipe) {
	ctx, cancel := context.WithTimeout(ctx, m.tipsTimeout)
	defer cancel()

	tips, err := m.tips.EatingTips(ctx, recipe)

	m.mu.Lock()
	s := m.s
	if s == nil || s.gen != gen {
		m.mu.Unlock()
		m.log.Debug("tips for gen=%d dropped: session gone", gen)
		return
	}
	if err != nil || len(tips) == 0 {
		s.tipsStatus = media.StatusUnavailable
	} else {
		s.tipsStatus = media.StatusResolved
		s.tips = tips
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("tips unavailable: %v", err)
		m.metrics.Tips("failed")
	} else if len(tips) == 0 {
		m.metrics.Tips("empty")
	} else {
		m.log.Debug("tips resolved: %d", len(tips))
		m.metrics.Tips("ok")
	}
	m.signal()
}

// closeLocked tears down the live session, reporting the Closed event.
func (m *Machine) closeLocked() (Event, bool) {
	s := m.s
	if s == nil {
		return Event{}, false
	}
	s.clock.Stop()
	s.narrator.Close()
	if s.images != nil {
		s.images.Discard()
	}
	s.cancel()
	ev := m.eventLocked(s, EventClosed)
	m.s = nil

	if !s.finished {
		m.metrics.Session("abandoned")
	}
	m.log.Info("cook-along %s closed (finished=%v)", shortID(s.id), s.finished)
	return ev, true
}

func (m *Machine) newClock(gen uint64, step, seconds int) *timer.Clock {
	return timer.NewClock(seconds,
		timer.WithTickInterval(m.tick),
		timer.OnTick(func(int) { m.signal() }),
		timer.OnExpire(func() { m.expire(gen, step) }),
	)
}

func (m *Machine) newNarrator(ctx context.Context) Narrator {
	if m.narration == nil {
		return speech.NewNoOp(m.log)
	}
	return m.narration(ctx, func(bool) { m.signal() })
}

// voiceLocked returns the narrator that should speak right now.
func (m *Machine) voiceLocked() Narrator {
	if m.s != nil {
		return m.s.narrator
	}
	if m.lobby == nil {
		m.lobby = m.newNarrator(context.Background())
	}
	return m.lobby
}

func (m *Machine) stepLine(s *session, idx int) string {
	st := s.recipe.Steps[idx]
	return speech.LineStep(idx+1, len(s.recipe.Steps), st.Label, st.Instruction, st.Hint,
		timer.FormatSpoken(st.DurationSeconds))
}

func (m *Machine) signal() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

func (m *Machine) emit(events []Event) {
	m.mu.Lock()
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	for _, ev := range events {
		for _, fn := range observers {
			fn(ev)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
