// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a local whisper.cpp model or
// a hosted API such as OpenAI's Whisper endpoint) behind a uniform per-segment
// interface: the segmenter delivers complete speech segments, and the provider
// returns the recognized text with an optional confidence score.
//
// Implementations must be safe for concurrent use. Multiple segments may be
// transcribed simultaneously by the transcription worker pool.
package stt

import (
	"context"

	"github.com/jperram92/JamesConvoBot/pkg/audio"
)

// Result is a speech-to-text result for a single segment.
type Result struct {
	// Text is the transcribed speech content. May be empty when the segment
	// contained no recognizable speech.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// backend does not report confidence.
	Confidence float64
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe runs recognition over a complete speech segment. The language
	// is a BCP-47 tag (e.g., "en"); an empty string lets the backend pick its
	// configured default. The call honours ctx cancellation and deadlines.
	Transcribe(ctx context.Context, seg audio.Segment, language string) (Result, error)
}
