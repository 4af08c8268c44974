// Package coqui provides a local TTS provider that connects to either a Coqui
// XTTS v2 server or a standard Coqui TTS server via its REST API. It
// implements the tts.Provider interface.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts with
//     URL query parameters.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis is
//     performed via POST /tts_to_audio/ with a JSON body; the voice argument
//     selects the speaker_wav.
//
// Both servers operate in batch mode (one HTTP call per utterance), which
// matches the per-utterance Provider contract directly.
package coqui

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
	ttsEndpoint     = "/tts_to_audio/"
	apiTTSEndpoint  = "/api/tts"
)

// APIMode selects which Coqui server API the provider will target.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode.
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code sent to the TTS server (e.g.,
// "en", "de", "fr"). Defaults to "en" if not set.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout for calls to the TTS server.
// Defaults to 30 s if not set.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode. Use APIModeStandard (default) for the
// standard Coqui TTS Docker image or APIModeXTTS for the XTTS v2 API server.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// WithOutputSampleRate configures the provider to resample synthesised PCM to
// the given sample rate (e.g., 48000 for the opus bridge). When 0 (default),
// no resampling is performed and PCM is emitted at the model's native rate.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) {
		p.outputRate = rate
	}
}

// Provider implements tts.Provider backed by a locally-running Coqui TTS
// server. It is safe for concurrent use.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
	apiMode    APIMode
	outputRate int // target sample rate; 0 = no resampling
}

// New creates a new Coqui Provider that targets the TTS server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL: strings.TrimRight(serverURL, "/"),
		language:  defaultLanguage,
		apiMode:   APIModeStandard,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ttsRequest is the JSON body sent to POST /tts_to_audio/ (XTTS mode).
type ttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize implements tts.Provider. The WAV response is stripped of its
// container header and returned as a raw PCM clip, optionally resampled to
// the configured output rate.
func (p *Provider) Synthesize(ctx context.Context, text string, voice string) (tts.Clip, error) {
	if text == "" {
		return tts.Clip{}, errors.New("coqui: text must not be empty")
	}
	if voice == "" && p.apiMode == APIModeXTTS {
		return tts.Clip{}, errors.New("coqui: voice must not be empty (required for XTTS mode)")
	}

	var (
		wav []byte
		err error
	)
	if p.apiMode == APIModeStandard {
		wav, err = p.synthesizeStandard(ctx, text, voice)
	} else {
		wav, err = p.synthesizeXTTS(ctx, text, voice)
	}
	if err != nil {
		return tts.Clip{}, err
	}

	info, err := parseWAV(wav)
	if err != nil {
		return tts.Clip{}, err
	}

	pcm := wav[info.DataOffset:]
	rate := info.SampleRate
	if p.outputRate > 0 && info.SampleRate != p.outputRate && info.Channels == 1 {
		pcm = resampleMono16(pcm, info.SampleRate, p.outputRate)
		rate = p.outputRate
	}
	return tts.Clip{PCM: pcm, SampleRate: rate, Channels: info.Channels}, nil
}

// synthesizeXTTS performs a single POST /tts_to_audio/ call (XTTS v2 mode)
// and returns the raw WAV response.
func (p *Provider) synthesizeXTTS(ctx context.Context, text, voice string) ([]byte, error) {
	body := ttsRequest{
		Text:       text,
		SpeakerWav: voice,
		Language:   p.language,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: POST %s: %w", ttsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: POST %s returned status %d", ttsEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	return wav, nil
}

// synthesizeStandard performs a single GET /api/tts request (standard server
// mode) using URL query parameters and returns the raw WAV response.
func (p *Provider) synthesizeStandard(ctx context.Context, text, voice string) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	if voice != "" {
		params.Set("speaker_id", voice)
	}
	if p.language != "" {
		params.Set("language_id", p.language)
	}

	reqURL := p.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	return wav, nil
}

// resampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. The input must be little-endian int16 samples. If
// srcRate == dstRate, the input is returned unchanged.
func resampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := 0; i < dstSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// wavInfo holds the format metadata extracted from a RIFF/WAVE header.
type wavInfo struct {
	DataOffset int // byte offset of the first PCM sample
	SampleRate int // samples per second (e.g., 22050, 44100, 48000)
	Channels   int // 1 = mono, 2 = stereo
}

// parseWAV scans the RIFF/WAVE container in wav and returns the data offset
// and audio format from the "fmt " sub-chunk. This is more robust than
// hardcoding a fixed 44-byte offset because the fmt chunk size may vary.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 {
		return wavInfo{}, errors.New("coqui: WAV response too short to be a valid RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return wavInfo{}, errors.New("coqui: WAV response missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("coqui: WAV response missing WAVE identifier")
	}

	var info wavInfo
	foundFmt := false

	// Walk RIFF chunks starting immediately after the 12-byte RIFF/WAVE header.
	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(wav) {
				fmtData := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				foundFmt = true
			}
		case "data":
			info.DataOffset = offset + 8
			if !foundFmt {
				// fmt chunk should appear before data, but be lenient.
				info.SampleRate = 22050
				info.Channels = 1
			}
			return info, nil
		}

		// Advance past this chunk (chunks are word-aligned: pad by 1 if odd size).
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, errors.New("coqui: WAV response missing data chunk")
}
