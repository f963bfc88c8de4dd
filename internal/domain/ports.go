package domain

import "context"

// RecipeSource provides recipes. Implementations can be in-memory (built in)
// or file-based.
type RecipeSource interface {
	List(ctx context.Context) ([]RecipeSummary, error)
	Get(ctx context.Context, id string) (*Recipe, error)
	Search(ctx context.Context, query string) ([]RecipeSummary, error)
}

// HistoryStore persists finished and abandoned cook-along sessions.
type HistoryStore interface {
	Save(ctx context.Context, rec *CookRecord) error
	Load(ctx context.Context, id string) (*CookRecord, error)
	List(ctx context.Context) ([]*CookRecord, error)
}

// TipSource produces short sensory "how to eat" tips for a finished dish.
type TipSource interface {
	EatingTips(ctx context.Context, recipe *Recipe) ([]string, error)
}

// IntentParser converts raw user input into structured intents.
type IntentParser interface {
	Parse(ctx context.Context, input string) (*Intent, error)
}

// Notifier delivers messages to the user. Implementations can write to
// stdout or also speak through the narrator.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}
