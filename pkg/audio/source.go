// Package audio defines the frame types and device interfaces for audio
// transport within ConvoBot.
//
// The two primary abstractions are:
//
//   - [Source] — hands captured frames to exactly one consumer, one at a time.
//   - [Device] — the full capture/playback contract a bridge implementation
//     (e.g., audio/wsbridge) satisfies.
//
// This package lives under pkg/ because external code (alternative device
// bridges) is expected to implement [Device].
package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by [Source.Emit] and [Device] write methods after the
// stream has been closed.
var ErrClosed = errors.New("audio: source closed")

// FrameSource is the read half of an audio device: a blocking, single-consumer
// stream of captured frames.
type FrameSource interface {
	// NextFrame blocks until a frame is available, the source is closed, or
	// ctx is done. The second return is false exactly when no frame will ever
	// follow (closure or cancellation); closure is terminal for all waiters
	// and is not an error.
	NextFrame(ctx context.Context) (AudioFrame, bool)
}

// FrameSink is the write half of an audio device: synthesized speech is
// written here for playback into the meeting.
type FrameSink interface {
	WriteFrame(ctx context.Context, frame AudioFrame) error
}

// Device combines both halves plus teardown. Implementations must be safe for
// concurrent use.
type Device interface {
	FrameSource
	FrameSink

	// Close tears the device down. Safe to call more than once.
	Close() error
}

// Source is the canonical [FrameSource] implementation: an unbuffered handoff
// between one producer and one consumer. The producer's Emit does not return
// until the consumer has taken the frame, so capture backpressure propagates
// to the device layer instead of growing a queue.
type Source struct {
	channel Channel

	frames chan AudioFrame
	done   chan struct{}

	closeOnce sync.Once
	seq       atomic.Uint64
}

var _ FrameSource = (*Source)(nil)

// NewSource creates a Source whose frames are tagged with the given channel.
// The tag is fixed for the lifetime of the source.
func NewSource(channel Channel) *Source {
	return &Source{
		channel: channel,
		frames:  make(chan AudioFrame),
		done:    make(chan struct{}),
	}
}

// Channel returns the origin tag applied to every emitted frame.
func (s *Source) Channel() Channel { return s.channel }

// Emit hands a frame to the consumer, blocking until it is taken. The frame's
// Seq, Channel, and (if zero) Timestamp are stamped here. Returns [ErrClosed]
// after Close, or ctx.Err() on cancellation.
func (s *Source) Emit(ctx context.Context, frame AudioFrame) error {
	frame.Seq = s.seq.Add(1)
	frame.Channel = s.channel
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	// Check closure first so an Emit racing Close never wins the select by
	// chance against a concurrent NextFrame.
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.frames <- frame:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextFrame implements [FrameSource].
func (s *Source) NextFrame(ctx context.Context) (AudioFrame, bool) {
	select {
	case frame := <-s.frames:
		return frame, true
	case <-s.done:
		return AudioFrame{}, false
	case <-ctx.Done():
		return AudioFrame{}, false
	}
}

// Close ends the stream. All blocked and future NextFrame calls observe
// ok=false; all blocked and future Emit calls return [ErrClosed]. Close is
// idempotent.
func (s *Source) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Closed reports whether Close has been called.
func (s *Source) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
