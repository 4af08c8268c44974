package responder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jperram92/JamesConvoBot/pkg/audio"
	audiomock "github.com/jperram92/JamesConvoBot/pkg/audio/mock"
	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
	ttsmock "github.com/jperram92/JamesConvoBot/pkg/provider/tts/mock"
)

// clip returns one second of 16kHz mono PCM.
func clip() tts.Clip {
	return tts.Clip{PCM: make([]byte, 32000), SampleRate: 16000, Channels: 1}
}

func TestSpeakWritesSelfPlaybackFrames(t *testing.T) {
	p := &ttsmock.Provider{Clip: clip()}
	dev := audiomock.NewDevice()
	r := New(p, dev, WithVoice("alloy"))

	if err := r.Speak(context.Background(), "hello meeting"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if p.LastText() != "hello meeting" {
		t.Errorf("LastText = %q", p.LastText())
	}
	if p.Calls[0].Voice != "alloy" {
		t.Errorf("Voice = %q, want alloy", p.Calls[0].Voice)
	}

	frames := dev.Written()
	// 1s of audio in 20ms frames.
	if len(frames) != 50 {
		t.Fatalf("frames = %d, want 50", len(frames))
	}
	total := 0
	for i, f := range frames {
		if f.Channel != audio.ChannelSelfPlayback {
			t.Fatalf("frames[%d].Channel = %q, want self-playback", i, f.Channel)
		}
		if f.SampleRate != 16000 || f.Channels != 1 {
			t.Fatalf("frames[%d] format = %d/%d", i, f.SampleRate, f.Channels)
		}
		total += len(f.Data)
	}
	if total != 32000 {
		t.Errorf("total bytes = %d, want 32000", total)
	}
}

func TestSpeakPartialTailFrame(t *testing.T) {
	// 650 bytes at 16kHz mono: one full 640-byte frame plus a 10-byte tail.
	p := &ttsmock.Provider{Clip: tts.Clip{PCM: make([]byte, 650), SampleRate: 16000, Channels: 1}}
	dev := audiomock.NewDevice()
	r := New(p, dev)

	if err := r.Speak(context.Background(), "hi"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	frames := dev.Written()
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if len(frames[0].Data) != 640 || len(frames[1].Data) != 10 {
		t.Errorf("frame sizes = %d,%d, want 640,10", len(frames[0].Data), len(frames[1].Data))
	}
}

func TestSynthesisFailureDropsResponse(t *testing.T) {
	p := &ttsmock.Provider{Err: errors.New("backend down")}
	dev := audiomock.NewDevice()
	r := New(p, dev)

	if err := r.Speak(context.Background(), "unlucky"); err == nil {
		t.Fatal("Speak succeeded with failing backend")
	}
	if p.CallCount() != 1 {
		t.Errorf("calls = %d, want 1 (no retries)", p.CallCount())
	}
	if len(dev.Written()) != 0 {
		t.Error("frames written despite synthesis failure")
	}
}

func TestSynthesisTimeout(t *testing.T) {
	p := &ttsmock.Provider{
		Delay: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	dev := audiomock.NewDevice()
	r := New(p, dev, WithTimeout(5*time.Millisecond))

	err := r.Speak(context.Background(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if p.CallCount() != 1 {
		t.Errorf("calls = %d, want 1 (timeouts are not retried)", p.CallCount())
	}
}

func TestSpeakingFlagDuringPlayback(t *testing.T) {
	p := &ttsmock.Provider{Clip: clip()}
	dev := audiomock.NewDevice()
	r := New(p, dev)

	if r.Speaking() {
		t.Error("Speaking = true before Speak")
	}
	if err := r.Speak(context.Background(), "check flag"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if r.Speaking() {
		t.Error("Speaking = true after Speak returned")
	}
}

func TestSpeakEmptyTextIsNoop(t *testing.T) {
	p := &ttsmock.Provider{Clip: clip()}
	dev := audiomock.NewDevice()
	r := New(p, dev)

	if err := r.Speak(context.Background(), ""); err != nil {
		t.Fatalf("Speak(\"\"): %v", err)
	}
	if p.CallCount() != 0 {
		t.Errorf("calls = %d, want 0", p.CallCount())
	}
}

func TestSinkErrorPropagates(t *testing.T) {
	p := &ttsmock.Provider{Clip: clip()}
	dev := audiomock.NewDevice()
	dev.WriteFrameError = errors.New("transport gone")
	r := New(p, dev)

	if err := r.Speak(context.Background(), "doomed"); err == nil {
		t.Fatal("Speak succeeded with failing sink")
	}
}

func TestSetVoiceAppliesToNextSpeak(t *testing.T) {
	p := &ttsmock.Provider{Clip: clip()}
	dev := audiomock.NewDevice()
	r := New(p, dev, WithVoice("alloy"))

	if err := r.Speak(context.Background(), "before"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	r.SetVoice("nova")
	if err := r.Speak(context.Background(), "after"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if p.Calls[0].Voice != "alloy" || p.Calls[1].Voice != "nova" {
		t.Errorf("voices = %q,%q, want alloy,nova", p.Calls[0].Voice, p.Calls[1].Voice)
	}
	if r.Voice() != "nova" {
		t.Errorf("Voice() = %q, want nova", r.Voice())
	}
}
