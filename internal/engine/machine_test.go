package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
	"github.com/hammamikhairi/basil/internal/media"
	"github.com/hammamikhairi/basil/internal/metrics"
	"github.com/hammamikhairi/basil/internal/speech"
)

const (
	waitFor = 2 * time.Second
	pollGap = 2 * time.Millisecond
)

func newTestMachine(t *testing.T, opts ...Option) *Machine {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	m := NewMachine(log, append([]Option{WithTickInterval(5 * time.Millisecond)}, opts...)...)
	t.Cleanup(m.Shutdown)
	return m
}

func currentGen(m *Machine) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func TestStartRejectsMalformedRecipe(t *testing.T) {
	tests := []struct {
		name   string
		recipe *domain.Recipe
	}{
		{"nil", nil},
		{"no steps", &domain.Recipe{Title: "Air"}},
		{"zero duration", timedRecipe("Zero", 10, 0)},
		{"negative duration", timedRecipe("Neg", -5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine(t)
			err := m.Start(tt.recipe)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedRecipe))
			assert.Equal(t, PhaseInactive, m.Snapshot().Phase)
		})
	}
}

func TestStartRejectedKeepsLiveSession(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, m.Start(timedRecipe("Soup", 60, 30)))
	m.Advance()

	require.Error(t, m.Start(timedRecipe("Broken", 0)))

	snap := m.Snapshot()
	assert.Equal(t, PhaseActive, snap.Phase)
	assert.Equal(t, "Soup", snap.RecipeTitle)
	assert.Equal(t, 1, snap.StepIndex)
}

func TestStartEntersFirstStepPaused(t *testing.T) {
	images := newFakeImages(false)
	voice := &voiceLog{}
	m := newTestMachine(t, WithImages(images), WithNarration(voice.factory()))

	require.NoError(t, m.Start(timedRecipe("Rice", 600, 300)))

	snap := m.Snapshot()
	assert.Equal(t, PhaseActive, snap.Phase)
	assert.Equal(t, 0, snap.StepIndex)
	assert.Equal(t, 2, snap.StepCount)
	assert.Equal(t, 600, snap.Remaining)
	assert.False(t, snap.Running)
	assert.NotEmpty(t, snap.SessionID)

	require.Eventually(t, func() bool { return images.stepCount() == 1 }, waitFor, pollGap)
	assert.Equal(t, []string{"Rice step A"}, images.stepLabels())
	assert.Equal(t, 1, voice.count("Step 1 of 2"))

	select {
	case <-m.Changes():
	default:
		t.Fatal("expected a change notification after start")
	}
}

func TestAdvanceVisitsEveryStep(t *testing.T) {
	durations := []int{30, 20, 10, 40}
	m := newTestMachine(t)
	require.NoError(t, m.Start(timedRecipe("Stew", durations...)))

	for i, d := range durations {
		snap := m.Snapshot()
		require.Equal(t, PhaseActive, snap.Phase)
		require.Equal(t, i, snap.StepIndex)
		require.Equal(t, d, snap.Remaining, "step %d remaining on entry", i)
		require.False(t, snap.Running)
		require.True(t, m.Advance())
	}

	assert.Equal(t, PhaseFinished, m.Snapshot().Phase)
	assert.False(t, m.Advance(), "advance after finish must be ignored")
	assert.False(t, m.ToggleRun(), "toggle after finish must be ignored")
}

func TestCountdownRunsThroughRecipe(t *testing.T) {
	images := newFakeImages(false)
	voice := &voiceLog{}
	m := newTestMachine(t, WithImages(images), WithNarration(voice.factory()))

	require.NoError(t, m.Start(timedRecipe("Eggs", 5, 3)))
	require.True(t, m.ToggleRun())
	assert.True(t, m.Snapshot().Running)

	require.Eventually(t, func() bool { return m.Snapshot().StepIndex == 1 }, waitFor, pollGap)
	snap := m.Snapshot()
	assert.Equal(t, PhaseActive, snap.Phase)
	assert.Equal(t, 3, snap.Remaining)
	assert.False(t, snap.Running, "a new step starts paused")

	require.Eventually(t, func() bool { return images.stepCount() == 2 }, waitFor, pollGap)
	assert.Equal(t, []string{"Eggs step A", "Eggs step B"}, images.stepLabels())

	require.True(t, m.ToggleRun())
	require.Eventually(t, func() bool { return m.Snapshot().Phase == PhaseFinished }, waitFor, pollGap)
	require.Eventually(t, func() bool { return images.finishCount() == 1 }, waitFor, pollGap)

	assert.False(t, m.Advance())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, images.finishCount())
	assert.Equal(t, 1, voice.count("Bon Appétit! Your Eggs is ready."))

	require.Eventually(t, func() bool {
		return m.Snapshot().Finish.Status == media.StatusResolved
	}, waitFor, pollGap)
	assert.Equal(t, "finish/Eggs", string(m.Snapshot().Finish.Image.Data))
}

func TestConcurrentAdvanceFinishesOnce(t *testing.T) {
	images := newFakeImages(false)
	voice := &voiceLog{}
	m := newTestMachine(t, WithImages(images), WithNarration(voice.factory()))
	require.NoError(t, m.Start(timedRecipe("Toast", 60)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Advance() {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	require.Eventually(t, func() bool { return images.finishCount() == 1 }, waitFor, pollGap)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, images.finishCount())
	assert.Equal(t, 1, voice.count("is ready"))
}

func TestStaleExpiryIsDropped(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, m.Start(timedRecipe("Bread", 60, 60, 60)))
	gen := currentGen(m)

	m.expire(gen+1, 0)
	assert.Equal(t, 0, m.Snapshot().StepIndex, "expiry from another session")

	m.expire(gen, 0)
	assert.Equal(t, 1, m.Snapshot().StepIndex)

	m.expire(gen, 0)
	assert.Equal(t, 1, m.Snapshot().StepIndex, "expiry for a step already left")

	m.Close()
	m.expire(gen, 1)
	assert.Equal(t, PhaseInactive, m.Snapshot().Phase)
}

func TestAdvanceFromIgnoresStaleStep(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, m.Start(timedRecipe("Pie", 60, 60)))

	assert.False(t, m.AdvanceFrom(1))
	assert.True(t, m.AdvanceFrom(0))
	assert.False(t, m.AdvanceFrom(0))
	assert.Equal(t, 1, m.Snapshot().StepIndex)
}

func TestPauseKeepsRemaining(t *testing.T) {
	m := newTestMachine(t)
	require.NoError(t, m.Start(timedRecipe("Tea", 1000)))

	require.True(t, m.ToggleRun())
	require.Eventually(t, func() bool { return m.Snapshot().Remaining <= 997 }, waitFor, pollGap)
	require.True(t, m.ToggleRun())

	paused := m.Snapshot()
	assert.False(t, paused.Running)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, paused.Remaining, m.Snapshot().Remaining)
}

func TestCloseDropsLateResults(t *testing.T) {
	images := newFakeImages(true)
	m := newTestMachine(t, WithImages(images))

	require.NoError(t, m.Start(timedRecipe("Alpha", 60)))
	m.Close()
	assert.Equal(t, PhaseInactive, m.Snapshot().Phase)

	require.NoError(t, m.Start(timedRecipe("Beta", 60)))
	images.release()

	require.Eventually(t, func() bool {
		e, ok := m.Snapshot().Images[0]
		return ok && e.Status == media.StatusResolved
	}, waitFor, pollGap)

	snap := m.Snapshot()
	assert.Equal(t, "Beta", snap.RecipeTitle)
	assert.Equal(t, "Beta/Beta step A", string(snap.Images[0].Image.Data))
	assert.Len(t, snap.Images, 1)
}

func TestCloseFromEveryState(t *testing.T) {
	voice := &voiceLog{}
	m := newTestMachine(t, WithNarration(voice.factory()))

	m.Close()
	assert.Equal(t, PhaseInactive, m.Snapshot().Phase)

	require.NoError(t, m.Start(timedRecipe("Jam", 60)))
	m.ToggleRun()
	m.Close()
	assert.Equal(t, PhaseInactive, m.Snapshot().Phase)
	assert.Equal(t, -1, m.Snapshot().StepIndex)

	require.NoError(t, m.Start(timedRecipe("Jam", 60)))
	m.Advance()
	require.Equal(t, PhaseFinished, m.Snapshot().Phase)
	m.Close()
	m.Close()
	assert.Equal(t, PhaseInactive, m.Snapshot().Phase)

	voice.mu.Lock()
	defer voice.mu.Unlock()
	assert.Equal(t, 2, voice.closed, "each session narrator closed once")
}

func TestFinishImageFailureStillFinishes(t *testing.T) {
	images := newFakeImages(false)
	images.failFinish = true
	m := newTestMachine(t, WithImages(images))

	require.NoError(t, m.Start(timedRecipe("Cake", 60)))
	m.Advance()

	require.Eventually(t, func() bool {
		snap := m.Snapshot()
		return snap.FinishRequested && snap.Finish.Status == media.StatusUnavailable
	}, waitFor, pollGap)
	assert.Equal(t, PhaseFinished, m.Snapshot().Phase)
	assert.Equal(t, 1, images.finishCount())
}

func TestAdvanceCancelsNarration(t *testing.T) {
	voice := &voiceLog{}
	m := newTestMachine(t, WithNarration(voice.factory()))
	require.NoError(t, m.Start(timedRecipe("Curry", 60, 60)))

	m.Advance()

	voice.mu.Lock()
	cancels := voice.cancels
	prefetched := append([]string(nil), voice.prefetch...)
	voice.mu.Unlock()

	assert.GreaterOrEqual(t, cancels, 1)
	assert.Equal(t, 1, voice.count("Step 2 of 2"))
	assert.Contains(t, prefetched[0], "Step 2 of 2", "next step line is prefetched on entry")
}

func TestStaleNarrationNeverReachesNextSession(t *testing.T) {
	synth := newHeldSynth()
	sink := &clipSink{}
	log := logger.New(logger.LevelOff, nil)
	factory := func(ctx context.Context, onChange func(bool)) Narrator {
		return speech.NewNarrator(ctx, synth, sink, log, speech.WithSpeakingChange(onChange))
	}
	m := newTestMachine(t, WithNarration(factory))

	require.NoError(t, m.Start(timedRecipe("Alpha", 60, 60)))
	require.Eventually(t, func() bool { return synth.callCount() == 1 }, waitFor, pollGap)

	m.Close()
	require.NoError(t, m.Start(timedRecipe("Beta", 60, 60)))
	require.Eventually(t, func() bool { return synth.callCount() == 2 }, waitFor, pollGap)

	// Both fetches finish with audio; only the live session's may play.
	synth.release()
	require.Eventually(t, func() bool { return synth.returnedCount() == 2 }, waitFor, pollGap)
	require.Eventually(t, func() bool { return len(sink.played()) >= 1 }, waitFor, pollGap)
	assert.Never(t, func() bool { return len(sink.played()) > 1 }, 100*time.Millisecond, pollGap)

	played := sink.played()
	require.Len(t, played, 1)
	assert.Contains(t, played[0], "Beta step A")
	assert.NotContains(t, played[0], "Alpha")
}

func TestStepNarrationCanBeDisabled(t *testing.T) {
	voice := &voiceLog{}
	m := newTestMachine(t, WithNarration(voice.factory()), WithStepNarration(false))
	require.NoError(t, m.Start(timedRecipe("Salad", 60)))

	assert.Zero(t, voice.count("Step 1"))
	m.Advance()
	assert.Equal(t, 1, voice.count("is ready"), "completion is always announced")
}

func TestRepeat(t *testing.T) {
	voice := &voiceLog{}
	m := newTestMachine(t, WithNarration(voice.factory()))

	assert.False(t, m.Repeat())

	require.NoError(t, m.Start(timedRecipe("Dal", 60)))
	assert.True(t, m.Repeat())
	assert.Equal(t, 2, voice.count("Step 1 of 1"))

	m.Advance()
	assert.True(t, m.Repeat())
	assert.Equal(t, 2, voice.count("is ready"))
}

func TestTipsArriveAfterFinish(t *testing.T) {
	tips := &fakeTips{tips: []string{"Eat it hot", "Squeeze lemon over the top"}}
	voice := &voiceLog{}
	m := newTestMachine(t, WithTips(tips), WithNarration(voice.factory()))

	require.NoError(t, m.Start(timedRecipe("Fish", 60)))
	assert.False(t, m.SpeakTips())
	m.Advance()

	require.Eventually(t, func() bool {
		return m.Snapshot().TipsStatus == media.StatusResolved
	}, waitFor, pollGap)
	snap := m.Snapshot()
	assert.True(t, snap.TipsRequested)
	assert.Equal(t, []string{"Eat it hot", "Squeeze lemon over the top"}, snap.Tips)

	assert.True(t, m.SpeakTips())
	assert.Equal(t, 1, voice.count("A few ways to enjoy it"))

	m.Repeat()
	assert.Equal(t, 1, tips.callCount())
}

func TestTipsFailureIsUnavailable(t *testing.T) {
	tips := &fakeTips{err: errors.New("boom")}
	m := newTestMachine(t, WithTips(tips))

	require.NoError(t, m.Start(timedRecipe("Fish", 60)))
	m.Advance()

	require.Eventually(t, func() bool {
		return m.Snapshot().TipsStatus == media.StatusUnavailable
	}, waitFor, pollGap)
	assert.Equal(t, PhaseFinished, m.Snapshot().Phase)
}

func TestTipsDroppedAfterClose(t *testing.T) {
	tips := &fakeTips{tips: []string{"late"}, gate: make(chan struct{})}
	m := newTestMachine(t, WithTips(tips))

	require.NoError(t, m.Start(timedRecipe("Old", 60)))
	m.Advance()
	require.Eventually(t, func() bool { return tips.callCount() == 1 }, waitFor, pollGap)

	require.NoError(t, m.Start(timedRecipe("New", 60)))
	close(tips.gate)
	time.Sleep(20 * time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, "New", snap.RecipeTitle)
	assert.False(t, snap.TipsRequested)
	assert.Empty(t, snap.Tips)
}

func TestImageLookahead(t *testing.T) {
	images := newFakeImages(false)
	m := newTestMachine(t, WithImages(images), WithImageLookahead(1))

	require.NoError(t, m.Start(timedRecipe("Bao", 60, 60, 60)))
	require.Eventually(t, func() bool { return images.stepCount() == 2 }, waitFor, pollGap)

	m.Advance()
	require.Eventually(t, func() bool { return images.stepCount() == 3 }, waitFor, pollGap)
	assert.Equal(t, []string{"Bao step A", "Bao step B", "Bao step C"}, images.stepLabels())

	m.Advance()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 3, images.stepCount(), "cached steps are not requested again")
}

func TestObserverSeesLifecycle(t *testing.T) {
	m := newTestMachine(t)

	var mu sync.Mutex
	var kinds []EventKind
	m.Observe(func(ev Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})

	require.NoError(t, m.Start(timedRecipe("Ramen", 60, 60)))
	m.Advance()
	m.Advance()
	m.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventStarted, EventStep, EventFinished, EventClosed}, kinds)
}

func TestWatchStatus(t *testing.T) {
	m := newTestMachine(t)
	assert.False(t, m.WatchStatus().Active)

	require.NoError(t, m.Start(timedRecipe("Chili", 90, 30)))
	st := m.WatchStatus()
	assert.True(t, st.Active)
	assert.False(t, st.Running)
	assert.Equal(t, 90, st.Duration)
	assert.Equal(t, 90, st.Remaining)
	assert.Equal(t, "Chili step A", st.StepLabel)
}

func TestMachineMetrics(t *testing.T) {
	mt := metrics.New()
	m := newTestMachine(t, WithMetrics(mt))

	require.NoError(t, m.Start(timedRecipe("Gumbo", 60, 60)))
	m.Advance()
	m.Close()
	require.NoError(t, m.Start(timedRecipe("Gumbo", 60)))
	m.Advance()
	_ = m.Start(nil)

	assert.Equal(t, 2.0, sessionCount(t, mt, "started"))
	assert.Equal(t, 1.0, sessionCount(t, mt, "abandoned"))
	assert.Equal(t, 1.0, sessionCount(t, mt, "completed"))
	assert.Equal(t, 1.0, sessionCount(t, mt, "rejected"))
}

func sessionCount(t *testing.T, mt *metrics.Metrics, outcome string) float64 {
	t.Helper()
	families, err := mt.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "basil_sessions_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
