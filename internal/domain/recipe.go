// Package domain defines the core types and interfaces for the cook-along
// assistant. All other packages depend on domain; domain depends on nothing.
package domain

import "fmt"

// Recipe represents a complete cooking recipe. A recipe is treated as
// immutable once a cook-along session has started with it.
type Recipe struct {
	ID          string       `yaml:"id"`
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Servings    int          `yaml:"servings"`
	Tags        []string     `yaml:"tags"`
	Ingredients []Ingredient `yaml:"ingredients"`
	Steps       []Step       `yaml:"steps"`
	Closing     string       `yaml:"closing,omitempty"` // spoken when the last step ends
	Version     int          `yaml:"-"`
}

// RecipeSummary is a lightweight view of a recipe for listing.
type RecipeSummary struct {
	ID          string
	Title       string
	Description string
	Tags        []string
	StepCount   int
	TotalSecs   int
}

// Ingredient represents a single ingredient with human-style quantities.
type Ingredient struct {
	Name           string  `yaml:"name"`
	Quantity       float64 `yaml:"quantity,omitempty"`
	Unit           string  `yaml:"unit,omitempty"` // "pieces", "cups", "tablespoons", "grams", ""
	SizeDescriptor string  `yaml:"size,omitempty"` // "small", "medium", "large", "handful", ""
	Optional       bool    `yaml:"optional,omitempty"`
}

// Step is one timed stage of a recipe.
type Step struct {
	Label           string `yaml:"label"`
	Instruction     string `yaml:"instruction"`
	DurationSeconds int    `yaml:"seconds"`
	Hint            string `yaml:"hint,omitempty"` // e.g. "while waiting, chop the herbs"
}

// Summary returns the listing view of r.
func (r *Recipe) Summary() RecipeSummary {
	return RecipeSummary{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
		StepCount:   len(r.Steps),
		TotalSecs:   r.TotalSeconds(),
	}
}

// TotalSeconds is the sum of all step durations.
func (r *Recipe) TotalSeconds() int {
	total := 0
	for _, s := range r.Steps {
		total += s.DurationSeconds
	}
	return total
}

// Validate reports whether the recipe can drive a cook-along session.
// Every failure wraps ErrMalformedRecipe.
func (r *Recipe) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil recipe", ErrMalformedRecipe)
	}
	if r.Title == "" {
		return fmt.Errorf("%w: missing title", ErrMalformedRecipe)
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("%w: %q has no steps", ErrMalformedRecipe, r.Title)
	}
	for i, s := range r.Steps {
		if s.DurationSeconds <= 0 {
			return fmt.Errorf("%w: %q step %d has non-positive duration %d",
				ErrMalformedRecipe, r.Title, i+1, s.DurationSeconds)
		}
	}
	return nil
}
