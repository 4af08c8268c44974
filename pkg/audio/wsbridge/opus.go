package wsbridge

import (
	"fmt"

	"layeh.com/gopus"
)

// The bridge carries 48 kHz mono Opus at 20 ms frame size.
const (
	bridgeSampleRate  = 48000
	bridgeChannels    = 1
	bridgeFrameSizeMs = 20
	// bridgeFrameSize is the number of samples per 20 ms frame.
	bridgeFrameSize = bridgeSampleRate * bridgeFrameSizeMs / 1000 // 960

	// maxPacketBytes bounds an encoded Opus packet.
	maxPacketBytes = 4000
)

// opusDecoder wraps a gopus decoder for the inbound stream. Decoder state
// spans consecutive packets, so it is recreated on every reconnect.
type opusDecoder struct {
	dec *gopus.Decoder
}

func newOpusDecoder() (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(bridgeSampleRate, bridgeChannels)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec}, nil
}

// decode decodes one Opus packet into little-endian int16 PCM bytes.
func (d *opusDecoder) decode(pkt []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(pkt, bridgeFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: opus decode: %w", err)
	}
	return int16sToBytes(pcm), nil
}

// opusEncoder wraps a gopus encoder for the outbound stream.
type opusEncoder struct {
	enc *gopus.Encoder
}

func newOpusEncoder() (*opusEncoder, error) {
	enc, err := gopus.NewEncoder(bridgeSampleRate, bridgeChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc}, nil
}

// encode encodes exactly one 960-sample frame into an Opus packet.
func (e *opusEncoder) encode(pcm []int16) ([]byte, error) {
	pkt, err := e.enc.Encode(pcm, bridgeFrameSize, maxPacketBytes)
	if err != nil {
		return nil, fmt.Errorf("wsbridge: opus encode: %w", err)
	}
	return pkt, nil
}

// int16sToBytes converts int16 PCM samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// bytesToInt16s converts little-endian bytes to int16 PCM samples.
func bytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
