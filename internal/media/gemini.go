package media

import (
	"context"
	"fmt"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

// Compile-time interface check.
var _ Generator = (*Gemini)(nil)

// DefaultGeminiImageModel is used when no model is configured.
const DefaultGeminiImageModel = "gemini-2.5-flash-image"

// Gemini generates images with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewGemini wraps an existing genai client.
func NewGemini(client *genai.Client, model string, log *logger.Logger) *Gemini {
	if model == "" {
		model = DefaultGeminiImageModel
	}
	return &Gemini{client: client, model: model, log: log}
}

// StepImage illustrates one step.
func (g *Gemini) StepImage(ctx context.Context, p StepPrompt) (*Image, error) {
	return g.generate(ctx, StepImagePrompt(p))
}

// FinishImage illustrates the plated dish.
func (g *Gemini) FinishImage(ctx context.Context, recipeTitle string) (*Image, error) {
	return g.generate(ctx, FinishImagePrompt(recipeTitle))
}

func (g *Gemini) generate(ctx context.Context, prompt string) (*Image, error) {
	g.log.Debug("gemini image: model=%s prompt=%q", g.model, truncate(prompt, 80))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{Parts: []*genai.Part{{Text: prompt}}, Role: "user"},
	}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini image: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini image: %w", domain.ErrEmptyResult)
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return &Image{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}, nil
		}
	}
	return nil, fmt.Errorf("gemini image: no inline image: %w", domain.ErrEmptyResult)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
