package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

// Status is the slice of cook-along state the watcher needs.
type Status struct {
	SessionID string
	Active    bool
	Finished  bool
	Running   bool
	StepIndex int
	StepCount int
	StepLabel string
	Remaining int
	Duration  int
	Since     time.Time // last start, pause, or step change
}

// StatusReader exposes the live session status.
type StatusReader interface {
	WatchStatus() Status
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets how often the watcher checks session state.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.interval = d
	}
}

// WithPauseNudge sets how long a started step may sit paused before the
// watcher speaks up. Zero disables the nudge.
func WithPauseNudge(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pauseAfter = d
	}
}

// WithIdleNudge sets how long a fresh step may wait for its countdown to be
// started. Zero disables the nudge.
func WithIdleNudge(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.idleAfter = d
	}
}

// WithAlmostDoneThreshold sets how close to expiry a running countdown must
// be to trigger the "almost done" warning.
func WithAlmostDoneThreshold(seconds int) WatcherOption {
	return func(w *Watcher) {
		w.almostDone = seconds
	}
}

// Watcher periodically inspects the session status and nudges the cook:
// a step paused for too long, a step whose countdown was never started, or
// a countdown about to run out. Each nudge fires once per episode.
type Watcher struct {
	source     StatusReader
	notifier   domain.Notifier
	log        *logger.Logger
	interval   time.Duration
	pauseAfter time.Duration
	idleAfter  time.Duration
	almostDone int

	mu      sync.Mutex
	nudged  map[string]bool
	running bool
	cancel  context.CancelFunc
}

// NewWatcher creates a watcher with the given dependencies.
func NewWatcher(source StatusReader, notifier domain.Notifier, log *logger.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		source:     source,
		notifier:   notifier,
		log:        log,
		interval:   5 * time.Second,
		pauseAfter: 2 * time.Minute,
		idleAfter:  3 * time.Minute,
		almostDone: 30,
		nudged:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the background watch loop. Non-blocking.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		w.log.Warn("watcher already running")
		return
	}

	childCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	go w.loop(childCtx)

	w.log.Info("watcher started (interval=%s)", w.interval)
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.cancel()
	w.running = false
	w.log.Info("watcher stopped")
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx, time.Now())
		}
	}
}

// check runs one watcher cycle.
func (w *Watcher) check(ctx context.Context, now time.Time) {
	st := w.source.WatchStatus()
	if !st.Active || st.Finished {
		return
	}

	w.log.Debug("watcher: session=%s step=%d/%d running=%v remaining=%d",
		shortID(st.SessionID), st.StepIndex+1, st.StepCount, st.Running, st.Remaining)

	key, msg, urgent := w.buildMessage(st, now)
	if msg == "" {
		return
	}

	w.mu.Lock()
	if w.nudged[key] {
		w.mu.Unlock()
		return
	}
	w.nudged[key] = true
	w.mu.Unlock()

	var err error
	if urgent {
		err = w.notifier.NotifyUrgent(ctx, msg)
	} else {
		err = w.notifier.Notify(ctx, msg)
	}
	if err != nil {
		w.log.Error("watcher: notify: %v", err)
	}
}

// buildMessage decides what to tell the user. The key identifies the
// episode so the same nudge is never repeated.
func (w *Watcher) buildMessage(st Status, now time.Time) (key, msg string, urgent bool) {
	episode := fmt.Sprintf("%s/%d/%d", st.SessionID, st.StepIndex, st.Since.UnixNano())
	idleFor := now.Sub(st.Since)

	if st.Running {
		if w.almostDone > 0 && st.Duration > w.almostDone*2 && st.Remaining <= w.almostDone {
			return fmt.Sprintf("%s/%d/almost", st.SessionID, st.StepIndex),
				fmt.Sprintf("[Timer] %s, almost done. %s left.", st.StepLabel, FormatSpoken(st.Remaining)),
				true
		}
		return "", "", false
	}

	if st.Remaining < st.Duration {
		if w.pauseAfter > 0 && idleFor >= w.pauseAfter {
			return episode + "/paused",
				fmt.Sprintf("[Watcher] %s has been paused for %s. Your food isn't cooking itself.",
					st.StepLabel, FormatSpoken(int(idleFor.Round(time.Second).Seconds()))),
				false
		}
		return "", "", false
	}

	if w.idleAfter > 0 && idleFor >= w.idleAfter {
		return episode + "/idle",
			fmt.Sprintf("[Watcher] Step %d, %s, is ready whenever you are. Start the timer when you begin.",
				st.StepIndex+1, st.StepLabel),
			false
	}
	return "", "", false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
