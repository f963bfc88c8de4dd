package domain

import "time"

// CookOutcome records how a cook-along session ended.
type CookOutcome int

const (
	OutcomeCompleted CookOutcome = iota
	OutcomeAbandoned
)

// String returns a human-readable outcome.
func (o CookOutcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// CookRecord is the history entry written when a session ends.
type CookRecord struct {
	ID           string      `msgpack:"id"`
	SessionID    string      `msgpack:"session_id"`
	RecipeID     string      `msgpack:"recipe_id"`
	RecipeTitle  string      `msgpack:"recipe_title"`
	StartedAt    time.Time   `msgpack:"started_at"`
	EndedAt      time.Time   `msgpack:"ended_at"`
	StepsVisited int         `msgpack:"steps_visited"`
	StepCount    int         `msgpack:"step_count"`
	Outcome      CookOutcome `msgpack:"outcome"`
}

// Elapsed is the wall-clock length of the session.
func (c *CookRecord) Elapsed() time.Duration {
	return c.EndedAt.Sub(c.StartedAt)
}
