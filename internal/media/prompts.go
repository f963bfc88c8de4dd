package media

import "fmt"

// Image prompts live here so the visual style is a single-file edit.

const styleSuffix = "Overhead kitchen photograph, natural window light, wooden counter, " +
	"no text, no hands covering the food, appetising and realistic."

// StepImagePrompt builds the prompt for one step's illustration.
func StepImagePrompt(p StepPrompt) string {
	return fmt.Sprintf("A home cook is making %s. Current stage: %s. %s %s",
		p.RecipeTitle, p.StepLabel, p.Instruction, styleSuffix)
}

// FinishImagePrompt builds the prompt for the plated dish.
func FinishImagePrompt(recipeTitle string) string {
	return fmt.Sprintf("The finished dish, %s, plated and ready to eat. %s", recipeTitle, styleSuffix)
}
