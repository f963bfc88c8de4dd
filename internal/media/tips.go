package media

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/gpt"
	"github.com/hammamikhairi/basil/internal/logger"
)

var _ domain.TipSource = (*GeminiTips)(nil)

// DefaultGeminiTextModel is used for tips when no model is configured.
const DefaultGeminiTextModel = "gemini-2.5-flash"

// GeminiTips asks a Gemini text model how to enjoy a finished dish.
type GeminiTips struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewGeminiTips wraps an existing genai client.
func NewGeminiTips(client *genai.Client, model string, log *logger.Logger) *GeminiTips {
	if model == "" {
		model = DefaultGeminiTextModel
	}
	return &GeminiTips{client: client, model: model, log: log}
}

// EatingTips returns up to gpt.MaxTips short tips.
func (g *GeminiTips) EatingTips(ctx context.Context, recipe *domain.Recipe) ([]string, error) {
	if recipe == nil {
		return nil, fmt.Errorf("gemini tips: %w", domain.ErrNotFound)
	}

	temp := float32(0.8)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{Parts: []*genai.Part{{Text: TipsQuery(recipe)}}, Role: "user"},
	}, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(gpt.PromptTips)}},
		ResponseMIMEType:  "application/json",
		Temperature:       &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini tips: %w", err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}

	tips := gpt.ParseTips(sb.String())
	if len(tips) == 0 {
		return nil, fmt.Errorf("gemini tips: %w", domain.ErrEmptyResult)
	}
	g.log.Debug("gemini tips: %d for %s", len(tips), recipe.Title)
	return tips, nil
}

// TipsQuery describes the finished dish for a tips request.
func TipsQuery(recipe *domain.Recipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I just finished cooking %s.", recipe.Title)
	if recipe.Description != "" {
		fmt.Fprintf(&b, " %s", recipe.Description)
	}
	if len(recipe.Ingredients) > 0 {
		names := make([]string, 0, len(recipe.Ingredients))
		for _, ing := range recipe.Ingredients {
			names = append(names, gpt.FormatIngredient(ing))
		}
		fmt.Fprintf(&b, "\nIngredients: %s.", strings.Join(names, "; "))
	}
	b.WriteString("\nHow should I enjoy it?")
	return b.String()
}
