package coqui

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
)

// buildWAV constructs a minimal RIFF/WAVE file around the given PCM payload.
func buildWAV(pcm []byte, sampleRate, channels int) []byte {
	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

func TestSynthesizeStandardStripsWAVHeader(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tts" {
			t.Errorf("path = %q, want /api/tts", r.URL.Path)
		}
		if got := r.URL.Query().Get("text"); got != "hello" {
			t.Errorf("text = %q, want hello", got)
		}
		w.Write(buildWAV(pcm, 22050, 1))
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	clip, err := p.Synthesize(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(clip.PCM) != string(pcm) {
		t.Errorf("PCM = %v, want %v", clip.PCM, pcm)
	}
	if clip.SampleRate != 22050 || clip.Channels != 1 {
		t.Errorf("format = %d/%d, want 22050/1", clip.SampleRate, clip.Channels)
	}
}

func TestSynthesizeXTTSRequiresVoice(t *testing.T) {
	p, err := New("http://localhost:1", WithAPIMode(APIModeXTTS))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "hello", ""); err == nil {
		t.Fatal("Synthesize without voice in XTTS mode succeeded, want error")
	}
}

func TestSynthesizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	if _, err := p.Synthesize(context.Background(), "hello", ""); err == nil {
		t.Fatal("Synthesize against failing server succeeded, want error")
	}
}

func TestSynthesizeResamplesToOutputRate(t *testing.T) {
	pcm := make([]byte, 2*220) // 10 ms at 22.05 kHz mono
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buildWAV(pcm, 22050, 1))
	}))
	defer srv.Close()

	p, _ := New(srv.URL, WithOutputSampleRate(44100))
	clip, err := p.Synthesize(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", clip.SampleRate)
	}
	if len(clip.PCM) != 2*440 {
		t.Errorf("PCM length = %d, want %d", len(clip.PCM), 2*440)
	}
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	if _, err := parseWAV([]byte("not a wav file at all")); err == nil {
		t.Error("parseWAV accepted garbage input")
	}
	if _, err := parseWAV(nil); err == nil {
		t.Error("parseWAV accepted nil input")
	}
}

func TestResampleMono16Identity(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	if got := resampleMono16(pcm, 16000, 16000); string(got) != string(pcm) {
		t.Error("same-rate resample modified data")
	}
}
