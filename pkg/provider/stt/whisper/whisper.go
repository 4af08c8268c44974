// This file contains the Provider implementation backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

// Package whisper implements a local, offline stt.Provider using whisper.cpp.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jperram92/JamesConvoBot/pkg/audio"
	"github.com/jperram92/JamesConvoBot/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	defaultLanguage = "en"

	// whisperSampleRate is the only sample rate whisper.cpp accepts. Segments
	// captured at other rates are resampled before inference.
	whisperSampleRate = 16000
)

// Provider implements stt.Provider using whisper.cpp Go bindings (CGO),
// eliminating network overhead entirely. The model is loaded once at startup
// and shared across all inferences.
type Provider struct {
	model    whisperlib.Model
	language string
}

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code used when the caller does not
// supply one (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// New creates a Provider that loads the whisper.cpp model from the given file
// path. The caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference over the segment's PCM. The segment is
// down-mixed to mono and resampled to 16 kHz as required by whisper.cpp.
//
// Each call creates its own whisper.cpp context from the shared model, so
// concurrent calls do not interfere. whisper.cpp does not report an overall
// confidence, so Result.Confidence is always zero.
func (p *Provider) Transcribe(ctx context.Context, seg audio.Segment, language string) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if language == "" {
		language = p.language
	}

	samples := pcmToFloat32Mono(seg.PCM, seg.Channels)
	if seg.SampleRate != whisperSampleRate && seg.SampleRate > 0 {
		samples = resampleLinear(samples, seg.SampleRate, whisperSampleRate)
	}

	// A fresh context per inference. Contexts are NOT thread-safe but the
	// model can be shared across goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return stt.Result{Text: strings.Join(parts, " ")}, nil
}
