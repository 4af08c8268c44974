// Package wsbridge implements [audio.Device] over a WebSocket meeting bridge.
//
// The bridge speaks a minimal binary protocol: every WebSocket binary message
// is one 20 ms Opus packet of 48 kHz mono meeting audio. Inbound packets are
// decoded and surfaced through the device's capture side tagged as live
// frames; frames written to the playback side are resampled to the bridge
// format, encoded, and sent back.
//
// A dropped connection is re-established with exponential backoff. When the
// retry budget is exhausted the capture side closes, which ends the session
// pipeline cleanly.
package wsbridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/jperram92/JamesConvoBot/pkg/audio"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Option is a functional option for configuring a Bridge.
type Option func(*Bridge)

// WithHeader sets additional HTTP headers sent on the WebSocket handshake
// (authentication tokens, meeting identifiers).
func WithHeader(h http.Header) Option {
	return func(b *Bridge) { b.header = h }
}

// WithReconnect tunes the reconnection policy. Doubling backoff between
// attempts, capped at max.
func WithReconnect(maxRetries int, backoff, maxBackoff time.Duration) Option {
	return func(b *Bridge) {
		if maxRetries > 0 {
			b.maxRetries = maxRetries
		}
		if backoff > 0 {
			b.backoff = backoff
		}
		if maxBackoff > 0 {
			b.maxBackoff = maxBackoff
		}
	}
}

// Bridge is a WebSocket-backed [audio.Device]. Safe for concurrent use; the
// playback side expects a single writer, which the responder guarantees.
type Bridge struct {
	url    string
	header http.Header

	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration

	src *audio.Source

	// conv normalizes outbound frames to the bridge format before encoding.
	conv audio.FormatConverter

	mu   sync.Mutex
	conn *websocket.Conn
	enc  *opusEncoder

	// pending holds outbound samples that do not yet fill an Opus frame.
	pendingMu sync.Mutex
	pending   []int16

	done      chan struct{}
	closeOnce sync.Once
}

var _ audio.Device = (*Bridge)(nil)

// Dial connects to the bridge at url and starts the inbound read loop.
func Dial(ctx context.Context, url string, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		url:        url,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		maxBackoff: defaultMaxBackoff,
		src:        audio.NewSource(audio.ChannelLive),
		conv:       audio.FormatConverter{Target: audio.Format{SampleRate: bridgeSampleRate, Channels: bridgeChannels}},
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}

	conn, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}
	enc, err := newOpusEncoder()
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encoder init failed")
		return nil, err
	}
	b.conn = conn
	b.enc = enc

	go b.readLoop(context.Background())
	return b, nil
}

// dial performs one WebSocket handshake.
func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, b.url, &websocket.DialOptions{
		HTTPHeader: b.header,
	})
	if err != nil {
		return nil, fmt.Errorf("wsbridge: dial %s: %w", b.url, err)
	}
	return conn, nil
}

// NextFrame implements [audio.FrameSource]. Frames are 48 kHz mono live
// captures; the stream ends when the bridge closes or reconnection gives up.
func (b *Bridge) NextFrame(ctx context.Context) (audio.AudioFrame, bool) {
	return b.src.NextFrame(ctx)
}

// WriteFrame implements [audio.FrameSink]. The frame's PCM is downmixed and
// resampled to the bridge format, then sent as one or more Opus packets.
// Samples short of a full packet are buffered for the next write.
func (b *Bridge) WriteFrame(ctx context.Context, frame audio.AudioFrame) error {
	if !frame.Valid() {
		return fmt.Errorf("wsbridge: invalid frame")
	}

	converted := b.conv.Convert(frame)
	if len(converted.Data) == 0 {
		return nil
	}
	samples := bytesToInt16s(converted.Data)

	b.pendingMu.Lock()
	b.pending = append(b.pending, samples...)
	var packets [][]byte
	for len(b.pending) >= bridgeFrameSize {
		pkt, err := b.enc.encode(b.pending[:bridgeFrameSize])
		if err != nil {
			b.pendingMu.Unlock()
			return err
		}
		packets = append(packets, pkt)
		b.pending = b.pending[bridgeFrameSize:]
	}
	b.pendingMu.Unlock()

	conn := b.currentConn()
	if conn == nil {
		return fmt.Errorf("wsbridge: not connected")
	}
	for _, pkt := range packets {
		if err := conn.Write(ctx, websocket.MessageBinary, pkt); err != nil {
			return fmt.Errorf("wsbridge: write packet: %w", err)
		}
	}
	return nil
}

// Close implements [audio.Device]. It terminates the capture stream and the
// WebSocket connection. Safe to call multiple times.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		b.src.Close()
		if conn := b.currentConn(); conn != nil {
			err = conn.Close(websocket.StatusNormalClosure, "session ended")
		}
	})
	return err
}

func (b *Bridge) currentConn() *websocket.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *Bridge) setConn(conn *websocket.Conn) {
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
}

// readLoop decodes inbound packets into live frames until the bridge closes.
// Read errors trigger reconnection; a failed reconnection closes the capture
// stream.
func (b *Bridge) readLoop(ctx context.Context) {
	dec, err := newOpusDecoder()
	if err != nil {
		slog.Error("wsbridge: decoder init failed", "error", err)
		b.src.Close()
		return
	}

	for {
		select {
		case <-b.done:
			return
		default:
		}

		conn := b.currentConn()
		typ, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case <-b.done:
				return
			default:
			}
			slog.Warn("wsbridge: read failed, reconnecting", "error", err)
			newDec, ok := b.reconnect(ctx)
			if !ok {
				b.src.Close()
				return
			}
			dec = newDec
			continue
		}
		if typ != websocket.MessageBinary {
			continue
		}

		pcm, err := dec.decode(data)
		if err != nil {
			slog.Debug("wsbridge: dropping undecodable packet", "error", err)
			continue
		}
		frame := audio.AudioFrame{
			Data:       pcm,
			SampleRate: bridgeSampleRate,
			Channels:   bridgeChannels,
		}
		if err := b.src.Emit(ctx, frame); err != nil {
			return
		}
	}
}

// reconnect re-establishes the connection with exponential backoff. On
// success it installs the new connection and returns a fresh decoder (codec
// state does not survive a transport restart).
func (b *Bridge) reconnect(ctx context.Context) (*opusDecoder, bool) {
	currentBackoff := b.backoff

	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, false
		case <-b.done:
			return nil, false
		default:
		}

		slog.Info("wsbridge: attempting reconnection",
			"url", b.url,
			"attempt", attempt,
			"max_retries", b.maxRetries,
			"backoff", currentBackoff,
		)

		conn, err := b.dial(ctx)
		if err == nil {
			old := b.currentConn()
			b.setConn(conn)
			if old != nil {
				_ = old.Close(websocket.StatusGoingAway, "replaced by reconnect")
			}

			dec, decErr := newOpusDecoder()
			if decErr != nil {
				slog.Error("wsbridge: decoder init failed after reconnect", "error", decErr)
				return nil, false
			}

			slog.Info("wsbridge: reconnection successful", "url", b.url, "attempt", attempt)
			return dec, true
		}

		slog.Warn("wsbridge: reconnection attempt failed",
			"url", b.url,
			"attempt", attempt,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, false
		case <-b.done:
			return nil, false
		case <-time.After(currentBackoff):
		}

		currentBackoff *= 2
		if currentBackoff > b.maxBackoff {
			currentBackoff = b.maxBackoff
		}
	}

	slog.Error("wsbridge: reconnection failed after max retries",
		"url", b.url,
		"max_retries", b.maxRetries,
	)
	return nil, false
}
