package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"

	"github.com/hammamikhairi/basil/internal/logger"
)

// Compile-time interface checks.
var (
	_ Synthesizer = (*OpenAITTS)(nil)
	_ Voiced      = (*OpenAITTS)(nil)
)

// OpenAITTS synthesizes speech with the OpenAI audio API in raw PCM format
// (24 kHz mono 16-bit, matching the player).
type OpenAITTS struct {
	client *openai.Client
	model  string
	voice  string
	log    *logger.Logger
}

// NewOpenAITTS wraps an existing OpenAI client.
func NewOpenAITTS(client *openai.Client, model, voice string, log *logger.Logger) *OpenAITTS {
	if model == "" {
		model = string(openai.SpeechModelTTS1)
	}
	if voice == "" {
		voice = DefaultOpenAIVoice
	}
	return &OpenAITTS{client: client, model: model, voice: voice, log: log}
}

// Voice returns the configured voice name.
func (o *OpenAITTS) Voice() string { return o.voice }

// Synthesize converts text to PCM audio.
func (o *OpenAITTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	o.log.Debug("openai tts: synthesizing %d chars with voice %s", len(text), o.voice)

	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.model),
		Voice:          openai.AudioSpeechNewParamsVoice(o.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: reading audio: %w", err)
	}

	o.log.Debug("openai tts: got %d bytes of audio", len(audio))
	return audio, nil
}
