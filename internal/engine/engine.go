package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithHistoryTimeout bounds each history write.
func WithHistoryTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.historyTimeout = d
	}
}

// Engine is the session controller. It resolves recipes, drives the
// machine and records a history entry for every session that ends. It
// depends only on interfaces and is fully testable with mocks.
type Engine struct {
	recipes        domain.RecipeSource
	history        domain.HistoryStore
	machine        *Machine
	log            *logger.Logger
	historyTimeout time.Duration
}

// New creates an engine. history may be nil to skip recording.
func New(recipes domain.RecipeSource, history domain.HistoryStore, machine *Machine, log *logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		recipes:        recipes,
		history:        history,
		machine:        machine,
		log:            log,
		historyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	machine.Observe(e.record)
	return e
}

// Machine exposes the underlying state machine.
func (e *Engine) Machine() *Machine {
	return e.machine
}

// ListRecipes returns all available recipes.
func (e *Engine) ListRecipes(ctx context.Context) ([]domain.RecipeSummary, error) {
	return e.recipes.List(ctx)
}

// SearchRecipes filters recipes by a free-text query.
func (e *Engine) SearchRecipes(ctx context.Context, query string) ([]domain.RecipeSummary, error) {
	return e.recipes.Search(ctx, query)
}

// GetRecipe returns a full recipe by ID.
func (e *Engine) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	return e.recipes.Get(ctx, id)
}

// Start looks up a recipe and begins cooking it.
func (e *Engine) Start(ctx context.Context, recipeID string) (*domain.Recipe, error) {
	recipe, err := e.recipes.Get(ctx, recipeID)
	if err != nil {
		return nil, fmt.Errorf("getting recipe: %w", err)
	}
	if err := e.machine.Start(recipe); err != nil {
		return nil, fmt.Errorf("starting %q: %w", recipe.Title, err)
	}
	return recipe, nil
}

// StartRecipe begins cooking a recipe that did not come from the source.
func (e *Engine) StartRecipe(recipe *domain.Recipe) error {
	return e.machine.Start(recipe)
}

// ToggleRun starts or pauses the current countdown.
func (e *Engine) ToggleRun() bool {
	return e.machine.ToggleRun()
}

// Advance moves to the next step.
func (e *Engine) Advance() bool {
	return e.machine.Advance()
}

// AdvanceFrom moves on only if step is still current.
func (e *Engine) AdvanceFrom(step int) bool {
	return e.machine.AdvanceFrom(step)
}

// Repeat re-narrates the current step.
func (e *Engine) Repeat() bool {
	return e.machine.Repeat()
}

// Close ends the live session.
func (e *Engine) Close() {
	e.machine.Close()
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	return e.machine.Snapshot()
}

// Changes signals state changes.
func (e *Engine) Changes() <-chan struct{} {
	return e.machine.Changes()
}

// History returns past sessions, newest first.
func (e *Engine) History(ctx context.Context) ([]*domain.CookRecord, error) {
	if e.history == nil {
		return nil, nil
	}
	return e.history.List(ctx)
}

// record saves one history entry per session: completed when the last step
// ends, abandoned when closed before that.
func (e *Engine) record(ev Event) {
	if e.history == nil {
		return
	}
	var outcome domain.CookOutcome
	switch {
	case ev.Kind == EventFinished:
		outcome = domain.OutcomeCompleted
	case ev.Kind == EventClosed && !ev.Finished:
		outcome = domain.OutcomeAbandoned
	default:
		return
	}

	rec := &domain.CookRecord{
		ID:           uuid.NewString(),
		SessionID:    ev.SessionID,
		RecipeID:     ev.RecipeID,
		RecipeTitle:  ev.RecipeTitle,
		StartedAt:    ev.StartedAt,
		EndedAt:      ev.At,
		StepsVisited: ev.Visited,
		StepCount:    ev.StepCount,
		Outcome:      outcome,
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.historyTimeout)
	defer cancel()
	if err := e.history.Save(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			e.log.Debug("history: %s already recorded", rec.ID)
			return
		}
		e.log.Error("history: saving %s: %v", rec.RecipeTitle, err)
		return
	}
	e.log.Debug("history: recorded %s as %s", rec.RecipeTitle, outcome)
}
