// Package recipe provides recipe source implementations.
package recipe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

// Compile-time interface check.
var _ domain.RecipeSource = (*MemorySource)(nil)

// MemorySource holds recipes in memory. Safe for concurrent reads.
type MemorySource struct {
	mu      sync.RWMutex
	recipes map[string]*domain.Recipe
	log     *logger.Logger
}

// NewMemorySource creates a recipe source preloaded with built-in recipes.
func NewMemorySource(log *logger.Logger) *MemorySource {
	src := &MemorySource{
		recipes: make(map[string]*domain.Recipe),
		log:     log,
	}
	src.seed()
	return src
}

// List returns summaries of all available recipes, sorted by title.
func (s *MemorySource) List(ctx context.Context) ([]domain.RecipeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.log.Debug("listing all recipes, count=%d", len(s.recipes))

	out := make([]domain.RecipeSummary, 0, len(s.recipes))
	for _, r := range s.recipes {
		out = append(out, r.Summary())
	}
	sortSummaries(out)
	return out, nil
}

// Get returns a recipe by ID.
func (s *MemorySource) Get(ctx context.Context, id string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		s.log.Debug("recipe not found: %s", id)
		return nil, fmt.Errorf("recipe %q: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

// Add registers a recipe. It must be valid and its ID unused.
func (s *MemorySource) Add(recipe *domain.Recipe) error {
	if err := recipe.Validate(); err != nil {
		return err
	}
	if recipe.ID == "" {
		recipe.ID = Slug(recipe.Title)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipes[recipe.ID]; ok {
		return fmt.Errorf("recipe %q: %w", recipe.ID, domain.ErrAlreadyExists)
	}
	recipe.Version++
	s.recipes[recipe.ID] = recipe
	s.log.Debug("recipe added: %s (v%d)", recipe.Title, recipe.Version)
	return nil
}

// Search returns recipes whose title, description or tags contain the
// query string.
func (s *MemorySource) Search(ctx context.Context, query string) ([]domain.RecipeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	s.log.Debug("searching recipes for: %s", q)

	var out []domain.RecipeSummary
	for _, r := range s.recipes {
		if matches(r, q) {
			out = append(out, r.Summary())
		}
	}
	sortSummaries(out)
	return out, nil
}

func matches(r *domain.Recipe, query string) bool {
	if strings.Contains(strings.ToLower(r.Title), query) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Description), query) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func sortSummaries(out []domain.RecipeSummary) {
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
}

// Slug turns a title into a recipe ID.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// seed populates the source with built-in recipes.
func (s *MemorySource) seed() {
	recipes := []*domain.Recipe{
		softBoiledEggs(),
		vegetableStirFry(),
		chickenAlfredo(),
	}
	for _, r := range recipes {
		r.Version = 1
		s.recipes[r.ID] = r
	}
	s.log.Debug("seeded %d recipes", len(recipes))
}

func softBoiledEggs() *domain.Recipe {
	return &domain.Recipe{
		ID:          "soft-boiled-eggs",
		Title:       "Soft Boiled Eggs",
		Description: "Jammy yolks and set whites. Three steps, no guesswork.",
		Servings:    1,
		Tags:        []string{"breakfast", "quick", "eggs"},
		Ingredients: []domain.Ingredient{
			{Name: "eggs", Quantity: 2, Unit: "pieces", SizeDescriptor: "large"},
			{Name: "flaky salt", SizeDescriptor: "to taste"},
		},
		Steps: []domain.Step{
			{
				Label:           "Boil the water",
				Instruction:     "Bring a small pot of water to a rolling boil.",
				DurationSeconds: 300,
				Hint:            "while waiting, take the eggs out of the fridge",
			},
			{
				Label:           "Cook the eggs",
				Instruction:     "Lower the eggs in gently with a spoon and keep the water at a steady simmer.",
				DurationSeconds: 390,
			},
			{
				Label:           "Ice bath",
				Instruction:     "Move the eggs to a bowl of ice water to stop the cooking.",
				DurationSeconds: 120,
				Hint:            "while they cool, toast some bread for dipping",
			},
		},
		Closing: "Eggs are done. Crack, peel, and salt them while they're warm.",
	}
}

func vegetableStirFry() *domain.Recipe {
	return &domain.Recipe{
		ID:          "vegetable-stir-fry",
		Title:       "Vegetable Stir Fry",
		Description: "Fast, crunchy, and customizable. The key is a screaming hot pan and not overcrowding it.",
		Servings:    2,
		Tags:        []string{"asian", "vegetables", "quick", "vegan", "healthy"},
		Ingredients: []domain.Ingredient{
			{Name: "bell pepper", Quantity: 1, Unit: "pieces", SizeDescriptor: "large"},
			{Name: "broccoli florets", Quantity: 2, Unit: "cups"},
			{Name: "carrot", Quantity: 1, Unit: "pieces", SizeDescriptor: "medium"},
			{Name: "snap peas", Quantity: 1, Unit: "cup"},
			{Name: "garlic", Quantity: 3, Unit: "cloves", SizeDescriptor: "medium"},
			{Name: "fresh ginger", Quantity: 1, Unit: "tablespoon", SizeDescriptor: "grated"},
			{Name: "soy sauce", Quantity: 2, Unit: "tablespoons"},
			{Name: "sesame oil", Quantity: 1, Unit: "tablespoon"},
			{Name: "vegetable oil", Quantity: 2, Unit: "tablespoons"},
			{Name: "cornstarch", Quantity: 1, Unit: "teaspoon", Optional: true},
		},
		Steps: []domain.Step{
			{
				Label:           "Prep",
				Instruction:     "Slice the pepper into strips, cut the broccoli small, julienne the carrot and mince the garlic and ginger. Everything is cut before the pan goes on.",
				DurationSeconds: 600,
			},
			{
				Label:           "Heat the wok",
				Instruction:     "Heat the wok on high until it just starts to smoke, then swirl in the vegetable oil.",
				DurationSeconds: 120,
				Hint:            "while it heats, mix soy sauce, sesame oil and cornstarch with two tablespoons of water",
			},
			{
				Label:           "Hard veg",
				Instruction:     "Add broccoli and carrot. Let them char without stirring constantly.",
				DurationSeconds: 120,
			},
			{
				Label:           "Soft veg",
				Instruction:     "Add the pepper and snap peas and keep tossing.",
				DurationSeconds: 120,
			},
			{
				Label:           "Aromatics",
				Instruction:     "Push everything aside, add garlic and ginger to the middle until fragrant, then toss together.",
				DurationSeconds: 30,
			},
			{
				Label:           "Sauce",
				Instruction:     "Pour the sauce over and toss until glossy.",
				DurationSeconds: 30,
			},
		},
	}
}

func chickenAlfredo() *domain.Recipe {
	return &domain.Recipe{
		ID:          "chicken-alfredo",
		Title:       "Chicken Alfredo",
		Description: "Creamy spaghetti alfredo with pan-seared chicken. Rich, indulgent, and not from a jar.",
		Servings:    2,
		Tags:        []string{"italian", "pasta", "chicken", "comfort"},
		Ingredients: []domain.Ingredient{
			{Name: "spaghetti", Quantity: 250, Unit: "grams"},
			{Name: "chicken breast", Quantity: 2, Unit: "pieces", SizeDescriptor: "medium"},
			{Name: "creme fraiche", Quantity: 1, Unit: "cup"},
			{Name: "gruyere cheese", Quantity: 1, Unit: "cup", SizeDescriptor: "grated"},
			{Name: "butter", Quantity: 3, Unit: "tablespoons"},
			{Name: "garlic", Quantity: 4, Unit: "cloves", SizeDescriptor: "medium"},
			{Name: "olive oil", Quantity: 1, Unit: "tablespoon"},
		},
		Steps: []domain.Step{
			{
				Label:           "Boil the water",
				Instruction:     "Bring a large pot of well salted water to a boil.",
				DurationSeconds: 480,
				Hint:            "while waiting, season the chicken and pound it to an even thickness",
			},
			{
				Label:           "Sear the chicken",
				Instruction:     "Sear the chicken in olive oil over medium-high heat, about six minutes a side, until golden and cooked through. Let it rest.",
				DurationSeconds: 720,
			},
			{
				Label:           "Cook the pasta",
				Instruction:     "Drop the spaghetti into the boiling water and cook until al dente. Save a cup of pasta water before draining.",
				DurationSeconds: 600,
			},
			{
				Label:           "Garlic butter",
				Instruction:     "Melt the butter in the chicken pan and cook the garlic until fragrant. Do not let it burn.",
				DurationSeconds: 60,
			},
			{
				Label:           "Reduce the cream",
				Instruction:     "Stir in the creme fraiche and simmer until it coats the back of a spoon.",
				DurationSeconds: 180,
			},
			{
				Label:           "Finish the sauce",
				Instruction:     "Off the heat, stir in the gruyere until smooth. Loosen with pasta water, then toss with the pasta and sliced chicken.",
				DurationSeconds: 120,
			},
		},
	}
}
