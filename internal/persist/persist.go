// Package persist defines the durable storage abstraction for session
// artifacts: transcript entries, meeting summaries, and raw audio recordings.
//
// The engine writes through a [Sink] without knowing the backend; the
// PostgreSQL implementation lives in the postgres subpackage, and [NullSink]
// serves deployments that run without persistence.
//
// Implementations must be safe for concurrent use.
package persist

import (
	"context"

	"github.com/jperram92/JamesConvoBot/internal/transcript"
	"github.com/jperram92/JamesConvoBot/pkg/audio"
)

// Sink is the abstraction over session artifact storage.
type Sink interface {
	// WriteEntry stores one durable transcript entry for the session.
	// Transient entries are never passed here.
	WriteEntry(ctx context.Context, sessionID string, e transcript.Entry) error

	// WriteSummary stores a generated meeting summary for the session.
	WriteSummary(ctx context.Context, sessionID string, text string) error

	// OpenRecording starts a new audio recording for the session and returns
	// a handle frames are written through. Multiple recordings per session
	// are allowed (one per record/stop-recording cycle).
	OpenRecording(ctx context.Context, sessionID string) (Recording, error)

	// Close releases backend resources. Writes after Close fail.
	Close()
}

// Recording is an open audio recording. Not safe for concurrent use; the
// engine writes frames from a single goroutine.
type Recording interface {
	// WriteFrame appends one captured frame to the recording.
	WriteFrame(ctx context.Context, frame audio.AudioFrame) error

	// Close finalizes the recording. The handle is unusable afterwards.
	Close(ctx context.Context) error
}

// NullSink discards everything. It backs sessions configured without
// persistence so the engine never has to branch on a nil sink.
type NullSink struct{}

var _ Sink = NullSink{}

// WriteEntry implements [Sink]. It discards the entry.
func (NullSink) WriteEntry(context.Context, string, transcript.Entry) error { return nil }

// WriteSummary implements [Sink]. It discards the summary.
func (NullSink) WriteSummary(context.Context, string, string) error { return nil }

// OpenRecording implements [Sink]. The returned recording discards frames.
func (NullSink) OpenRecording(context.Context, string) (Recording, error) {
	return nullRecording{}, nil
}

// Close implements [Sink]. It is a no-op.
func (NullSink) Close() {}

type nullRecording struct{}

func (nullRecording) WriteFrame(context.Context, audio.AudioFrame) error { return nil }
func (nullRecording) Close(context.Context) error                        { return nil }
