package engine

import (
	"time"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/media"
	"github.com/hammamikhairi/basil/internal/timer"
)

// Phase is the coarse machine state.
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseActive
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseFinished:
		return "finished"
	default:
		return "inactive"
	}
}

// Snapshot is an immutable view of the machine for rendering.
type Snapshot struct {
	Phase       Phase
	SessionID   string
	RecipeID    string
	RecipeTitle string
	StepIndex   int // -1 when inactive
	StepCount   int
	Step        domain.Step
	Remaining   int
	Running     bool
	StartedAt   time.Time
	Since       time.Time

	Images map[int]media.Entry
	Finish media.Entry
	// FinishRequested is false until the finishing image has been asked for.
	FinishRequested bool

	Tips          []string
	TipsStatus    media.Status
	TipsRequested bool

	Speaking bool
	LastLine string
}

// Active reports whether a cook-along is live, finished or not.
func (s Snapshot) Active() bool {
	return s.Phase != PhaseInactive
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	s := m.s
	if s == nil {
		m.mu.Unlock()
		return Snapshot{Phase: PhaseInactive, StepIndex: -1}
	}

	snap := Snapshot{
		Phase:         PhaseActive,
		SessionID:     s.id,
		RecipeID:      s.recipe.ID,
		RecipeTitle:   s.recipe.Title,
		StepIndex:     s.step,
		StepCount:     len(s.recipe.Steps),
		Step:          s.recipe.Steps[s.step],
		Remaining:     s.clock.Remaining(),
		Running:       s.clock.Running(),
		StartedAt:     s.startedAt,
		Since:         s.since,
		TipsStatus:    s.tipsStatus,
		TipsRequested: s.tipsRequested,
		Tips:          append([]string(nil), s.tips...),
	}
	if s.finished {
		snap.Phase = PhaseFinished
		snap.Remaining = 0
		snap.Running = false
	}
	images := s.images
	narrator := s.narrator
	m.mu.Unlock()

	if images != nil {
		snap.Images = images.Entries()
		snap.Finish, snap.FinishRequested = images.Finish()
	}
	snap.Speaking = narrator.Speaking()
	snap.LastLine = narrator.Last()
	return snap
}

// WatchStatus implements timer.StatusReader.
func (m *Machine) WatchStatus() timer.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.s
	if s == nil {
		return timer.Status{StepIndex: -1}
	}
	st := s.recipe.Steps[s.step]
	return timer.Status{
		SessionID: s.id,
		Active:    true,
		Finished:  s.finished,
		Running:   !s.finished && s.clock.Running(),
		StepIndex: s.step,
		StepCount: len(s.recipe.Steps),
		StepLabel: st.Label,
		Remaining: s.clock.Remaining(),
		Duration:  st.DurationSeconds,
		Since:     s.since,
	}
}

var _ timer.StatusReader = (*Machine)(nil)

// EventKind names a session lifecycle event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStep
	EventFinished
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStep:
		return "step"
	case EventFinished:
		return "finished"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event describes a session transition after it happened.
type Event struct {
	Kind        EventKind
	SessionID   string
	RecipeID    string
	RecipeTitle string
	StepIndex   int
	StepCount   int
	Visited     int
	Finished    bool
	StartedAt   time.Time
	At          time.Time
}

func (m *Machine) eventLocked(s *session, kind EventKind) Event {
	return Event{
		Kind:        kind,
		SessionID:   s.id,
		RecipeID:    s.recipe.ID,
		RecipeTitle: s.recipe.Title,
		StepIndex:   s.step,
		StepCount:   len(s.recipe.Steps),
		Visited:     s.visited,
		Finished:    s.finished,
		StartedAt:   s.startedAt,
		At:          time.Now(),
	}
}
