// Package speech provides narration: text-to-speech clients, the audio
// player, a synthesized-audio cache, the preemptible narrator, and the
// whisper-based voice command ear.
package speech

import "context"

// Default voice for Azure TTS.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const DefaultVoice = "en-US-AvaNeural"

// Default voices for the other providers.
const (
	DefaultGeminiVoice = "Kore"
	DefaultOpenAIVoice = "alloy"
)

// Audio format returned by Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Audio parameters shared by every provider and the player.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Env var names for speech credentials.
const (
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
)

// Priority decides whether a line may interrupt current narration.
type Priority int

const (
	PriorityLow    Priority = iota // nudges, idle chatter; dropped while speaking
	PriorityNormal                 // step narration; preempts
	PriorityHigh                   // timer warnings; preempts
)

// Synthesizer turns text into 24 kHz mono 16-bit audio, either RIFF WAV or
// raw little-endian PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Voiced is implemented by synthesizers that know their voice name. The
// audio cache folds it into its keys.
type Voiced interface {
	Voice() string
}

// Playback is one sound in progress.
type Playback interface {
	// Stop silences the sound. Safe to call more than once.
	Stop()
	// Done is closed when the sound ends or is stopped.
	Done() <-chan struct{}
}

// Sink starts playing audio and returns immediately.
type Sink interface {
	Start(audio []byte) (Playback, error)
}
