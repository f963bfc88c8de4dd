package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/basil/internal/logger"
)

// Compile-time interface check.
var _ Sink = (*Player)(nil)

// Player handles audio playback of WAV/PCM data via oto.
type Player struct {
	ctx *oto.Context
	log *logger.Logger
}

// NewPlayer creates an audio player. Initializes the system audio context.
// Returns an error if the audio device is unavailable.
func NewPlayer(log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log}, nil
}

// Start begins playing audio and returns a handle to stop it. RIFF WAV input
// has its header stripped; anything else is treated as raw PCM.
func (p *Player) Start(audio []byte) (Playback, error) {
	pcm, err := toPCM(audio)
	if err != nil {
		return nil, err
	}

	op := p.ctx.NewPlayer(bytes.NewReader(pcm))
	pb := &otoPlayback{player: op, done: make(chan struct{}), log: p.log}
	op.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	go pb.watch()
	return pb, nil
}

// Play plays audio synchronously. Blocks until playback finishes.
func (p *Player) Play(audio []byte) error {
	pb, err := p.Start(audio)
	if err != nil {
		return err
	}
	<-pb.Done()
	return nil
}

// otoPlayback tracks one oto player until it drains or is stopped.
type otoPlayback struct {
	player *oto.Player
	log    *logger.Logger
	once   sync.Once
	done   chan struct{}
}

func (pb *otoPlayback) watch() {
	for pb.player.IsPlaying() {
		select {
		case <-pb.done:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	pb.finish()
}

func (pb *otoPlayback) Stop() {
	pb.player.Pause()
	pb.finish()
	pb.log.Debug("audio player: interrupted")
}

func (pb *otoPlayback) Done() <-chan struct{} {
	return pb.done
}

func (pb *otoPlayback) finish() {
	pb.once.Do(func() {
		close(pb.done)
		if err := pb.player.Close(); err != nil {
			pb.log.Debug("audio player: close: %v", err)
		}
	})
}

// toPCM returns raw PCM for WAV or PCM input.
func toPCM(audio []byte) ([]byte, error) {
	if len(audio) >= 12 && string(audio[0:4]) == "RIFF" {
		return extractPCM(audio)
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio")
	}
	if len(audio)%2 != 0 {
		audio = audio[:len(audio)-1]
	}
	return audio, nil
}

// extractPCM strips the WAV/RIFF header and returns raw PCM data.
func extractPCM(wav []byte) ([]byte, error) {
	if len(wav) < 44 {
		return nil, errors.New("wav data too short")
	}

	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	// Walk chunks to find the "data" chunk.
	pos := 12
	for pos < len(wav)-8 {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))

		if chunkID == "data" {
			start := pos + 8
			end := start + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			return wav[start:end], nil
		}

		pos += 8 + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}
