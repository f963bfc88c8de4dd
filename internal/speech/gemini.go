package speech

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/logger"
)

// Compile-time interface checks.
var (
	_ Synthesizer = (*GeminiTTS)(nil)
	_ Voiced      = (*GeminiTTS)(nil)
)

// DefaultGeminiTTSModel is used when no model is configured.
const DefaultGeminiTTSModel = "gemini-2.5-flash-preview-tts"

// GeminiTTS synthesizes speech with the Gemini API. The service returns raw
// 24 kHz mono 16-bit PCM.
type GeminiTTS struct {
	client *genai.Client
	model  string
	voice  string
	log    *logger.Logger
}

// NewGeminiTTS wraps an existing genai client.
func NewGeminiTTS(client *genai.Client, model, voice string, log *logger.Logger) *GeminiTTS {
	if model == "" {
		model = DefaultGeminiTTSModel
	}
	if voice == "" {
		voice = DefaultGeminiVoice
	}
	return &GeminiTTS{client: client, model: model, voice: voice, log: log}
}

// Voice returns the prebuilt voice name.
func (g *GeminiTTS) Voice() string { return g.voice }

// Synthesize converts text to PCM audio.
func (g *GeminiTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	g.log.Debug("gemini tts: synthesizing %d chars with voice %s", len(text), g.voice)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{Parts: []*genai.Part{{Text: text}}, Role: "user"},
	}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini tts: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini tts: %w", domain.ErrEmptyResult)
	}

	var pcm []byte
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil {
			pcm = append(pcm, part.InlineData.Data...)
		}
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("gemini tts: no audio: %w", domain.ErrEmptyResult)
	}

	g.log.Debug("gemini tts: got %d bytes of audio", len(pcm))
	return pcm, nil
}
