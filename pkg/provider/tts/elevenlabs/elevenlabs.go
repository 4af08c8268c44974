// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs HTTP synthesis API. It implements the tts.Provider interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
	defaultTimeout   = 30 * time.Second
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "pcm_16000",
// "pcm_24000"). Only pcm_* formats are supported; others fail at synthesis.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithBaseURL overrides the default API base URL. Useful for tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by the ElevenLabs HTTP API.
type Provider struct {
	apiKey       string
	baseURL      string
	model        string
	outputFormat string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesisRequest is the JSON body sent to POST /v1/text-to-speech/{voice}.
type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize implements tts.Provider. voice must be an ElevenLabs voice ID.
// The response is raw little-endian 16-bit PCM at the rate encoded in the
// configured output format.
func (p *Provider) Synthesize(ctx context.Context, text string, voice string) (tts.Clip, error) {
	if text == "" {
		return tts.Clip{}, errors.New("elevenlabs: text must not be empty")
	}
	if voice == "" {
		return tts.Clip{}, errors.New("elevenlabs: voice must not be empty")
	}
	rate, err := outputFormatRate(p.outputFormat)
	if err != nil {
		return tts.Clip{}, err
	}

	body := synthesisRequest{
		Text:    text,
		ModelID: p.model,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", p.baseURL, voice, p.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tts.Clip{}, fmt.Errorf("elevenlabs: synthesize returned status %d", resp.StatusCode)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return tts.Clip{PCM: pcm, SampleRate: rate, Channels: 1}, nil
}

// outputFormatRate extracts the sample rate from a pcm_* output format name.
func outputFormatRate(format string) (int, error) {
	rest, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: unsupported output format %q (only pcm_* formats)", format)
	}
	rate, err := strconv.Atoi(rest)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("elevenlabs: invalid output format %q", format)
	}
	return rate, nil
}
