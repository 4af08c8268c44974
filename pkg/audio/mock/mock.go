// Package mock provides an in-memory mock implementation of the [audio.Device]
// interface for use in unit tests.
//
// The mock is safe for concurrent use. It records every written frame so that
// tests can assert on playback output, and its capture side is fed by the test
// through [Device.Feed] and [Device.CloseSource].
//
// Typical usage:
//
//	dev := mock.NewDevice()
//	dev.Feed(audio.AudioFrame{Data: pcm, SampleRate: 16000, Channels: 1})
//	dev.CloseSource()
//	frame, ok := dev.NextFrame(ctx)
package mock

import (
	"context"
	"sync"

	"github.com/jperram92/JamesConvoBot/pkg/audio"
)

// Device is a mock implementation of [audio.Device].
// Feed frames in with Feed; inspect playback via WrittenFrames.
type Device struct {
	mu sync.Mutex

	// WriteFrameError, when set, is returned by every WriteFrame call.
	WriteFrameError error

	// CloseError is returned by Close.
	CloseError error

	// WrittenFrames records every frame passed to WriteFrame, in order.
	WrittenFrames []audio.AudioFrame

	// CallCountClose records how many times Close was called.
	CallCountClose int

	src *audio.Source
}

var _ audio.Device = (*Device)(nil)

// NewDevice creates a mock device whose capture side tags frames as live.
func NewDevice() *Device {
	return &Device{src: audio.NewSource(audio.ChannelLive)}
}

// Feed hands a frame to the capture side. It blocks until a NextFrame call
// consumes it, mirroring the single in-flight semantics of the real source.
func (d *Device) Feed(frame audio.AudioFrame) error {
	return d.src.Emit(context.Background(), frame)
}

// CloseSource ends the capture stream without tearing down the device.
func (d *Device) CloseSource() { d.src.Close() }

// NextFrame implements [audio.FrameSource].
func (d *Device) NextFrame(ctx context.Context) (audio.AudioFrame, bool) {
	return d.src.NextFrame(ctx)
}

// WriteFrame implements [audio.FrameSink]. Records the frame and returns
// WriteFrameError.
func (d *Device) WriteFrame(_ context.Context, frame audio.AudioFrame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.WriteFrameError != nil {
		return d.WriteFrameError
	}
	d.WrittenFrames = append(d.WrittenFrames, frame)
	return nil
}

// Written returns a copy of the frames written so far.
func (d *Device) Written() []audio.AudioFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]audio.AudioFrame, len(d.WrittenFrames))
	copy(out, d.WrittenFrames)
	return out
}

// Close implements [audio.Device]. Closes the capture stream and returns
// CloseError.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountClose++
	d.src.Close()
	return d.CloseError
}
