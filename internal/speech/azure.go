package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hammamikhairi/basil/internal/logger"
)

var (
	_ Synthesizer = (*AzureClient)(nil)
	_ Voiced      = (*AzureClient)(nil)
)

// AzureOption configures the Azure TTS client.
type AzureOption func(*AzureClient)

// WithVoice sets the neural voice name.
func WithVoice(voice string) AzureOption {
	return func(c *AzureClient) { c.voice = voice }
}

// WithEndpoint replaces the regional synthesis URL.
func WithEndpoint(url string) AzureOption {
	return func(c *AzureClient) { c.endpoint = url }
}

// AzureClient synthesizes speech with Azure Cognitive Services.
type AzureClient struct {
	key      string
	endpoint string
	voice    string
	http     *http.Client
	log      *logger.Logger
}

// NewAzureClient creates a client for the given subscription key and region.
func NewAzureClient(key, region string, log *logger.Logger, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		key:      key,
		endpoint: fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		voice:    DefaultVoice,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Voice returns the configured voice name.
func (c *AzureClient) Voice() string { return c.voice }

// Synthesize returns text spoken as 24 kHz mono RIFF WAV.
func (c *AzureClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := ssml(c.voice, text)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("azure tts: building request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", DefaultAudioFormat)
	req.Header.Set("User-Agent", "Basil/1.0")

	c.log.Debug("azure tts: %d chars as %s", len(text), c.voice)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure tts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("azure tts: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure tts: reading audio: %w", err)
	}
	c.log.Debug("azure tts: %d bytes", len(audio))
	return audio, nil
}

// ssml wraps text in a single-voice speak document. Both the voice name
// and the text are escaped, so "salt & pepper" stays well formed.
func ssml(voice, text string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`<speak version="1.0" xml:lang="en-US"><voice xml:lang="en-US" name="`)
	if err := xml.EscapeText(&b, []byte(voice)); err != nil {
		return nil, fmt.Errorf("azure tts: escaping voice: %w", err)
	}
	b.WriteString(`">`)
	if err := xml.EscapeText(&b, []byte(text)); err != nil {
		return nil, fmt.Errorf("azure tts: escaping text: %w", err)
	}
	b.WriteString(`</voice></speak>`)
	return b.Bytes(), nil
}
