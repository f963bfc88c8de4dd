package media

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

// Compile-time interface check.
var _ Generator = (*OpenAI)(nil)

// OpenAI generates images with the OpenAI Images API.
type OpenAI struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

// NewOpenAI wraps an existing OpenAI client. An empty model selects DALL-E 3.
func NewOpenAI(client *openai.Client, model string, log *logger.Logger) *OpenAI {
	if model == "" {
		model = string(openai.ImageModelDallE3)
	}
	return &OpenAI{client: client, model: model, log: log}
}

// StepImage illustrates one step.
func (o *OpenAI) StepImage(ctx context.Context, p StepPrompt) (*Image, error) {
	return o.generate(ctx, StepImagePrompt(p))
}

// FinishImage illustrates the plated dish.
func (o *OpenAI) FinishImage(ctx context.Context, recipeTitle string) (*Image, error) {
	return o.generate(ctx, FinishImagePrompt(recipeTitle))
}

func (o *OpenAI) generate(ctx context.Context, prompt string) (*Image, error) {
	o.log.Debug("openai image: model=%s prompt=%q", o.model, truncate(prompt, 80))

	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(o.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai image: %w", domain.ErrEmptyResult)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai image: decode: %w", err)
	}
	return &Image{MIMEType: "image/png", Data: data}, nil
}
