// Package openai provides a networked STT provider backed by the OpenAI
// Whisper transcription API.
package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/jperram92/JamesConvoBot/pkg/audio"
	"github.com/jperram92/JamesConvoBot/pkg/provider/stt"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

const bitsPerSample = 16

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI audio transcription API.
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

// WithBaseURL overrides the default OpenAI API base URL. Useful for
// API-compatible gateways and self-hosted whisper servers.
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

// New constructs a new OpenAI transcription Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
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

// Transcribe implements stt.Provider. The segment's PCM is wrapped in a WAV
// container and uploaded; Whisper accepts arbitrary sample rates so no
// resampling happens client-side.
func (p *Provider) Transcribe(ctx context.Context, seg audio.Segment, language string) (stt.Result, error) {
	if len(seg.PCM) == 0 {
		return stt.Result{}, fmt.Errorf("openai stt: empty segment")
	}

	wav := encodeWAV(seg.PCM, seg.SampleRate, seg.Channels)
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "segment.wav", "audio/wav"),
		Model: p.model,
	}
	if language != "" {
		params.Language = param.NewOpt(language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Result{}, fmt.Errorf("openai stt: transcribe: %w", err)
	}
	// The API does not report an overall confidence for whisper-1.
	return stt.Result{Text: resp.Text}, nil
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container. The returned byte slice is suitable for direct upload.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
