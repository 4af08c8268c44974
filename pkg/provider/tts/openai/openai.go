// Package openai provides a TTS provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
)

// DefaultModel is the default OpenAI speech model.
const DefaultModel = oai.SpeechModelTTS1

// DefaultVoice is used when the caller does not request a specific voice.
const DefaultVoice = "alloy"

// The API's pcm response format is 24 kHz 16-bit mono little-endian.
const (
	pcmSampleRate = 24000
	pcmChannels   = 1
)

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI speech Provider.
// If model is empty, DefaultModel (tts-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Synthesize implements tts.Provider. The response is requested in raw PCM
// format so no container parsing is needed.
func (p *Provider) Synthesize(ctx context.Context, text string, voice string) (tts.Clip, error) {
	if text == "" {
		return tts.Clip{}, fmt.Errorf("openai tts: text must not be empty")
	}
	if voice == "" {
		voice = DefaultVoice
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          p.model,
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return tts.Clip{}, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("openai tts: read audio: %w", err)
	}
	return tts.Clip{PCM: pcm, SampleRate: pcmSampleRate, Channels: pcmChannels}, nil
}
