package media

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/hammamikhairi/basil/internal/domain"
)

func TestPromptsCarryStepContext(t *testing.T) {
	p := StepImagePrompt(StepPrompt{RecipeTitle: "Shakshuka", StepLabel: "Crack eggs", Instruction: "Make wells in the sauce."})
	assert.Contains(t, p, "Shakshuka")
	assert.Contains(t, p, "Crack eggs")
	assert.Contains(t, p, "Make wells in the sauce.")
	assert.Contains(t, FinishImagePrompt("Shakshuka"), "The finished dish, Shakshuka")
}

func TestTipsQuery(t *testing.T) {
	q := TipsQuery(&domain.Recipe{
		Title:       "Shakshuka",
		Description: "Eggs poached in spiced tomato sauce.",
		Ingredients: []domain.Ingredient{
			{Name: "eggs", Quantity: 4, Unit: "pieces"},
			{Name: "cumin", SizeDescriptor: "a pinch"},
		},
	})
	assert.Contains(t, q, "I just finished cooking Shakshuka. Eggs poached")
	assert.Contains(t, q, "Ingredients: 4 eggs; cumin, a pinch.")
	assert.Contains(t, q, "How should I enjoy it?")
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	got := truncate("Bon Appétit! Your eggs are ready.", 11)
	assert.Equal(t, "Bon App...", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "fits", truncate("fits", 4))
}
