package transcriber

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jperram92/JamesConvoBot/internal/resilience"
	"github.com/jperram92/JamesConvoBot/internal/transcript"
	"github.com/jperram92/JamesConvoBot/pkg/audio"
	"github.com/jperram92/JamesConvoBot/pkg/provider/stt"
	sttmock "github.com/jperram92/JamesConvoBot/pkg/provider/stt/mock"
)

func segment() audio.Segment {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return audio.Segment{
		Seq:        7,
		PCM:        make([]byte, 640),
		SampleRate: 16000,
		Channels:   1,
		Start:      start,
		End:        start.Add(time.Second),
	}
}

func TestTranscribeSuccess(t *testing.T) {
	p := &sttmock.Provider{Result: stt.Result{Text: "hello there", Confidence: 0.92}}
	tr := New(p, WithLanguage("en"))

	e := tr.Transcribe(context.Background(), segment())
	if e.Status != transcript.StatusOK {
		t.Fatalf("Status = %q, want ok", e.Status)
	}
	if e.Text != "hello there" || e.Confidence != 0.92 {
		t.Errorf("entry = %+v", e)
	}
	if !e.Start.Equal(segment().Start) || !e.End.Equal(segment().End) {
		t.Errorf("timestamps not carried from segment: %+v", e)
	}
	if p.CallCount() != 1 {
		t.Errorf("calls = %d, want 1", p.CallCount())
	}
	if p.Calls[0].Language != "en" {
		t.Errorf("language = %q, want en", p.Calls[0].Language)
	}
}

func TestRetriesThenSucceeds(t *testing.T) {
	p := &sttmock.Provider{
		ResultFunc: func(call int, _ audio.Segment) (stt.Result, error) {
			if call < 2 {
				return stt.Result{}, errors.New("backend unavailable")
			}
			return stt.Result{Text: "third time lucky"}, nil
		},
	}
	tr := New(p, WithMaxRetries(2), WithBackoff(time.Millisecond, 2*time.Millisecond))

	e := tr.Transcribe(context.Background(), segment())
	if e.Status != transcript.StatusOK || e.Text != "third time lucky" {
		t.Fatalf("entry = %+v", e)
	}
	if p.CallCount() != 3 {
		t.Errorf("calls = %d, want 3", p.CallCount())
	}
}

func TestErrorStatusAfterExhaustedRetries(t *testing.T) {
	p := &sttmock.Provider{Err: errors.New("permanent failure")}
	tr := New(p, WithMaxRetries(1), WithBackoff(time.Millisecond, time.Millisecond))

	e := tr.Transcribe(context.Background(), segment())
	if e.Status != transcript.StatusError {
		t.Fatalf("Status = %q, want error", e.Status)
	}
	if e.Text != "" {
		t.Errorf("Text = %q, want empty", e.Text)
	}
	if !e.Start.Equal(segment().Start) || !e.End.Equal(segment().End) {
		t.Errorf("failed entry lost segment timestamps: %+v", e)
	}
	if p.CallCount() != 2 {
		t.Errorf("calls = %d, want 2", p.CallCount())
	}
}

func TestTimeoutStatus(t *testing.T) {
	p := &sttmock.Provider{
		Delay: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	tr := New(p,
		WithTimeout(5*time.Millisecond),
		WithMaxRetries(1),
		WithBackoff(time.Millisecond, time.Millisecond),
	)

	e := tr.Transcribe(context.Background(), segment())
	if e.Status != transcript.StatusTimeout {
		t.Fatalf("Status = %q, want timeout", e.Status)
	}
	if p.CallCount() != 2 {
		t.Errorf("calls = %d, want 2 (timeout is retried)", p.CallCount())
	}
}

func TestParentCancelStopsRetries(t *testing.T) {
	p := &sttmock.Provider{Err: errors.New("flaky")}
	tr := New(p, WithMaxRetries(5), WithBackoff(50*time.Millisecond, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	e := tr.Transcribe(ctx, segment())
	if e.Status == transcript.StatusOK {
		t.Fatal("cancelled transcription reported ok")
	}
	if p.CallCount() > 2 {
		t.Errorf("calls = %d, want retries abandoned on cancel", p.CallCount())
	}
}

func TestOpenBreakerFailsFast(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "stt-test",
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	p := &sttmock.Provider{Err: errors.New("down")}
	tr := New(p, WithCircuitBreaker(cb), WithMaxRetries(3), WithBackoff(time.Millisecond, time.Millisecond))

	// First segment trips the breaker on its initial attempt, then the open
	// breaker short-circuits the remaining retries.
	e := tr.Transcribe(context.Background(), segment())
	if e.Status != transcript.StatusError {
		t.Fatalf("Status = %q, want error", e.Status)
	}
	if p.CallCount() != 1 {
		t.Fatalf("calls = %d, want 1 (breaker open after first failure)", p.CallCount())
	}

	// Subsequent segments never reach the backend.
	e = tr.Transcribe(context.Background(), segment())
	if e.Status != transcript.StatusError {
		t.Fatalf("Status = %q, want error", e.Status)
	}
	if p.CallCount() != 1 {
		t.Errorf("calls = %d, want 1 (no backend call while open)", p.CallCount())
	}
}

func TestSetLanguageAppliesToNextCall(t *testing.T) {
	p := &sttmock.Provider{Result: stt.Result{Text: "hallo"}}
	tr := New(p, WithLanguage("en"))

	tr.Transcribe(context.Background(), segment())
	tr.SetLanguage("de")
	tr.Transcribe(context.Background(), segment())

	if p.Calls[0].Language != "en" || p.Calls[1].Language != "de" {
		t.Errorf("languages = %q,%q, want en,de", p.Calls[0].Language, p.Calls[1].Language)
	}
	if tr.Language() != "de" {
		t.Errorf("Language() = %q, want de", tr.Language())
	}
}
