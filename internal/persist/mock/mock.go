// Package mock provides an in-memory mock implementation of [persist.Sink]
// for use in unit tests.
//
// The mock is safe for concurrent use. It records every write so that tests
// can assert on persisted entries, summaries, and recording frames.
package mock

import (
	"context"
	"sync"

	"github.com/jperram92/JamesConvoBot/internal/persist"
	"github.com/jperram92/JamesConvoBot/internal/transcript"
	"github.com/jperram92/JamesConvoBot/pkg/audio"
)

// EntryWrite records one WriteEntry invocation.
type EntryWrite struct {
	SessionID string
	Entry     transcript.Entry
}

// SummaryWrite records one WriteSummary invocation.
type SummaryWrite struct {
	SessionID string
	Text      string
}

// Sink is a mock implementation of [persist.Sink].
// Set the exported error fields before use; inspect the records after.
type Sink struct {
	mu sync.Mutex

	// WriteEntryError, when set, is returned by every WriteEntry call.
	WriteEntryError error

	// OpenRecordingError, when set, is returned by OpenRecording.
	OpenRecordingError error

	// Entries records all WriteEntry invocations.
	Entries []EntryWrite

	// Summaries records all WriteSummary invocations.
	Summaries []SummaryWrite

	// Recordings holds every recording opened through this sink, in order.
	Recordings []*Recording

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

var _ persist.Sink = (*Sink)(nil)

// WriteEntry implements [persist.Sink].
func (s *Sink) WriteEntry(_ context.Context, sessionID string, e transcript.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteEntryError != nil {
		return s.WriteEntryError
	}
	s.Entries = append(s.Entries, EntryWrite{SessionID: sessionID, Entry: e})
	return nil
}

// WriteSummary implements [persist.Sink].
func (s *Sink) WriteSummary(_ context.Context, sessionID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Summaries = append(s.Summaries, SummaryWrite{SessionID: sessionID, Text: text})
	return nil
}

// OpenRecording implements [persist.Sink].
func (s *Sink) OpenRecording(_ context.Context, sessionID string) (persist.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenRecordingError != nil {
		return nil, s.OpenRecordingError
	}
	rec := &Recording{SessionID: sessionID}
	s.Recordings = append(s.Recordings, rec)
	return rec, nil
}

// Close implements [persist.Sink].
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
}

// EntryCount returns the number of persisted entries.
func (s *Sink) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Entries)
}

// StoredEntries returns a copy of all persisted entries.
func (s *Sink) StoredEntries() []EntryWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntryWrite, len(s.Entries))
	copy(out, s.Entries)
	return out
}

// Recording is a mock [persist.Recording] that collects written frames.
type Recording struct {
	mu sync.Mutex

	// SessionID is the session the recording was opened for.
	SessionID string

	// WriteFrameError, when set, is returned by every WriteFrame call.
	WriteFrameError error

	// Frames records every written frame in order.
	Frames []audio.AudioFrame

	// Closed reports whether Close was called.
	Closed bool
}

var _ persist.Recording = (*Recording)(nil)

// WriteFrame implements [persist.Recording].
func (r *Recording) WriteFrame(_ context.Context, frame audio.AudioFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.WriteFrameError != nil {
		return r.WriteFrameError
	}
	r.Frames = append(r.Frames, frame)
	return nil
}

// Close implements [persist.Recording].
func (r *Recording) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed = true
	return nil
}

// FrameCount returns the number of frames written so far.
func (r *Recording) FrameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Frames)
}

// IsClosed reports whether the recording was closed.
func (r *Recording) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Closed
}
