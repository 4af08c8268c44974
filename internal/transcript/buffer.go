// Package transcript holds the session transcript: an append-only, in-memory
// log of transcription results with strictly increasing sequence numbers.
//
// The [Buffer] is the single point of coordination between the transcription
// workers (producers) and the command worker (consumer): appended entries are
// stored for snapshot reads and simultaneously delivered on the Updates
// channel in append order. Entries appended while transcription is disabled
// are transient — they flow through Updates for command matching but are not
// recorded in the durable log.
package transcript

import (
	"sync"
	"time"
)

// Status classifies the outcome of transcribing one speech segment.
type Status string

const (
	// StatusOK marks a successful transcription.
	StatusOK Status = "ok"

	// StatusTimeout marks a transcription that exceeded its deadline after
	// all retries.
	StatusTimeout Status = "timeout"

	// StatusError marks a transcription that failed with a backend error
	// after all retries.
	StatusError Status = "error"
)

// Entry is one line of the session transcript.
type Entry struct {
	// Seq is assigned by the buffer: strictly increasing and gap-free within
	// the durable log. Transient entries draw from a separate counter.
	Seq uint64

	// Text is the recognized speech. Empty for timeout/error entries.
	Text string

	// Confidence is the backend's confidence score, when reported.
	Confidence float64

	// Status records the transcription outcome.
	Status Status

	// Start and End are the capture timestamps of the underlying segment.
	Start time.Time
	End   time.Time

	// Transient marks entries produced while transcription was disabled.
	// They are delivered for command matching but never stored or persisted.
	Transient bool
}

// Buffer is the append-only transcript log. It is safe for concurrent use;
// snapshot reads do not block appends beyond the brief critical section.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry

	transientSeq uint64

	updates chan Entry
	done    chan struct{}
	once    sync.Once
}

// New creates a Buffer whose Updates channel holds up to depth undelivered
// entries. When the channel is full, Append blocks, propagating backpressure
// to the transcription workers. depth values below 1 are clamped to 1.
func New(depth int) *Buffer {
	if depth < 1 {
		depth = 1
	}
	return &Buffer{
		updates: make(chan Entry, depth),
		done:    make(chan struct{}),
	}
}

// Append stamps the entry with the next durable sequence number, stores it,
// and delivers it on Updates. Returns the stamped entry. Blocks while the
// Updates channel is full; returns without delivering after Close.
func (b *Buffer) Append(e Entry) Entry {
	b.mu.Lock()
	e.Seq = uint64(len(b.entries)) + 1
	e.Transient = false
	b.entries = append(b.entries, e)
	b.mu.Unlock()

	b.deliver(e)
	return e
}

// AppendTransient stamps the entry from the transient counter and delivers it
// on Updates without storing it. Returns the stamped entry.
func (b *Buffer) AppendTransient(e Entry) Entry {
	b.mu.Lock()
	b.transientSeq++
	e.Seq = b.transientSeq
	e.Transient = true
	b.mu.Unlock()

	b.deliver(e)
	return e
}

func (b *Buffer) deliver(e Entry) {
	select {
	case b.updates <- e:
	case <-b.done:
	}
}

// Updates returns the channel on which appended entries are delivered in
// append order. The channel is never closed; consumers should select on it
// together with their own shutdown signal.
func (b *Buffer) Updates() <-chan Entry { return b.updates }

// Snapshot returns a copy of the durable log. The copy is independent of the
// buffer; callers may retain or mutate it freely.
func (b *Buffer) Snapshot() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of durable entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// LastSeq returns the sequence number of the newest durable entry, or 0 when
// the log is empty. Workers use it to reconcile after a restart.
func (b *Buffer) LastSeq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint64(len(b.entries))
}

// Close releases blocked and future appenders. Stored entries remain readable
// via Snapshot. Close is idempotent.
func (b *Buffer) Close() {
	b.once.Do(func() { close(b.done) })
}
