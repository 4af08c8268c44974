// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., the OpenAI speech
// API or a local Coqui server) behind a uniform per-utterance interface: the
// responder hands over a complete response text and receives a PCM clip ready
// for playback through the audio device.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Clip is a synthesized speech utterance as raw 16-bit little-endian PCM.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders the given text as speech. voice selects a
	// backend-specific voice; an empty string uses the backend default.
	// Synthesis is bounded by ctx — callers apply their own deadline and do
	// not retry failed synthesis.
	Synthesize(ctx context.Context, text string, voice string) (Clip, error)
}
