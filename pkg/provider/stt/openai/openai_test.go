package openai

import (
	"encoding/binary"
	"testing"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Fatal("New with empty apiKey succeeded, want error")
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := encodeWAV(pcm, 16000, 1)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate = %d, want 32000", got)
	}
}
