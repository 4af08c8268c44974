// Package responder turns assistant reply text into audio played back into
// the meeting.
//
// Speak synthesizes the text with a [tts.Provider] under a single deadline
// (speech is time-sensitive, so a failed synthesis is dropped rather than
// retried) and writes the clip to the outbound [audio.FrameSink] in frame-sized
// chunks tagged as self-playback. The segmenter uses that tag to keep the
// assistant from transcribing its own voice.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jperram92/JamesConvoBot/pkg/audio"
	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
)

// Default parameters.
const (
	defaultTimeout  = 15 * time.Second
	defaultFrameDur = 20 * time.Millisecond
)

// Option is a functional option for configuring a Responder.
type Option func(*Responder)

// WithTimeout sets the synthesis deadline. Defaults to 15s.
func WithTimeout(d time.Duration) Option {
	return func(r *Responder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithVoice sets the voice passed to the backend.
func WithVoice(voice string) Option {
	return func(r *Responder) { r.voice = voice }
}

// WithFrameDuration sets the playback frame size. Defaults to 20ms.
func WithFrameDuration(d time.Duration) Option {
	return func(r *Responder) {
		if d > 0 {
			r.frameDur = d
		}
	}
}

// Responder synthesizes and plays spoken replies. Safe for concurrent use,
// though the engine serializes Speak calls so replies do not overlap.
type Responder struct {
	provider tts.Provider
	sink     audio.FrameSink
	timeout  time.Duration
	frameDur time.Duration

	mu    sync.RWMutex
	voice string

	speaking atomic.Bool
}

// New creates a Responder that plays synthesized speech into sink.
func New(p tts.Provider, sink audio.FrameSink, opts ...Option) *Responder {
	r := &Responder{
		provider: p,
		sink:     sink,
		timeout:  defaultTimeout,
		frameDur: defaultFrameDur,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Speaking reports whether a reply is currently being written to the sink.
// The capture side uses this to tag inbound frames that overlap playback.
func (r *Responder) Speaking() bool {
	return r.speaking.Load()
}

// Voice returns the voice currently passed to the backend.
func (r *Responder) Voice() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.voice
}

// SetVoice swaps the backend voice at runtime (config hot reload). Takes
// effect on the next Speak call.
func (r *Responder) SetVoice(voice string) {
	r.mu.Lock()
	r.voice = voice
	r.mu.Unlock()
}

// Speak synthesizes text and writes the resulting clip to the sink. Synthesis
// runs under the configured deadline and is not retried: a reply that arrives
// seconds late is worse than no reply, so failures are logged and the response
// is dropped.
func (r *Responder) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	synthCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	clip, err := r.provider.Synthesize(synthCtx, text, r.Voice())
	if err != nil {
		slog.Error("speech synthesis failed, dropping response",
			"text_len", len(text),
			"elapsed", time.Since(started),
			"error", err,
		)
		return fmt.Errorf("responder: synthesize: %w", err)
	}

	slog.Debug("speech synthesized",
		"text_len", len(text),
		"pcm_bytes", len(clip.PCM),
		"sample_rate", clip.SampleRate,
		"elapsed", time.Since(started),
	)

	r.speaking.Store(true)
	defer r.speaking.Store(false)

	if err := r.playClip(ctx, clip); err != nil {
		return fmt.Errorf("responder: playback: %w", err)
	}
	return nil
}

// playClip chops the clip into frame-sized chunks and writes them to the sink.
// Each frame is tagged as self-playback.
func (r *Responder) playClip(ctx context.Context, clip tts.Clip) error {
	if len(clip.PCM) == 0 {
		return nil
	}
	if clip.SampleRate <= 0 || clip.Channels <= 0 {
		return fmt.Errorf("invalid clip format: rate=%d channels=%d", clip.SampleRate, clip.Channels)
	}

	bytesPerFrame := int(float64(clip.SampleRate)*r.frameDur.Seconds()) * clip.Channels * 2
	if bytesPerFrame <= 0 {
		bytesPerFrame = len(clip.PCM)
	}

	for off := 0; off < len(clip.PCM); off += bytesPerFrame {
		end := off + bytesPerFrame
		if end > len(clip.PCM) {
			end = len(clip.PCM)
		}
		frame := audio.AudioFrame{
			Data:       clip.PCM[off:end],
			SampleRate: clip.SampleRate,
			Channels:   clip.Channels,
			Timestamp:  time.Now(),
			Channel:    audio.ChannelSelfPlayback,
		}
		if err := r.sink.WriteFrame(ctx, frame); err != nil {
			return err
		}
	}
	return nil
}
