// Package segment turns the raw audio frame stream into discrete speech
// segments using energy-based voice activity detection.
//
// The segmenter is a SILENT → ACTIVE → SILENT state machine: a run of
// consecutive frames above the energy threshold opens a segment, and a
// hangover period of silence closes it. Segments shorter than the configured
// minimum are discarded as noise. The segmenter never fails: malformed frames
// are dropped and counted, and every state transition is driven purely by
// frame energy and duration.
package segment

import (
	"log/slog"
	"time"

	"github.com/jperram92/JamesConvoBot/pkg/audio"
)

const (
	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// sample units) above which a frame counts as speech.
	defaultRMSThreshold = 300.0

	// defaultActivationFrames is the number of consecutive speech frames
	// required to open a segment.
	defaultActivationFrames = 3

	// defaultHangover is the silence duration tolerated inside a segment
	// before it closes.
	defaultHangover = 500 * time.Millisecond

	// defaultMinSegmentDuration rejects blips shorter than this as noise.
	defaultMinSegmentDuration = 250 * time.Millisecond

	// defaultMaxSegmentDuration force-closes a segment regardless of ongoing
	// speech, bounding transcription latency and memory.
	defaultMaxSegmentDuration = 10 * time.Second

	// Adaptive noise-floor parameters.
	defaultNoiseDamping = 0.15
	defaultNoiseRatio   = 1.5
)

type state int

const (
	stateSilent state = iota
	stateActive
)

// Option is a functional option for configuring a Segmenter.
type Option func(*Segmenter)

// WithThreshold sets the static RMS energy threshold. Defaults to 300.
func WithThreshold(rms float64) Option {
	return func(s *Segmenter) { s.staticThreshold = rms }
}

// WithActivationFrames sets how many consecutive speech frames open a
// segment. Defaults to 3; values below 1 are clamped to 1.
func WithActivationFrames(n int) Option {
	return func(s *Segmenter) {
		if n < 1 {
			n = 1
		}
		s.activationFrames = n
	}
}

// WithHangover sets the silence duration tolerated before a segment closes.
// Defaults to 500 ms.
func WithHangover(d time.Duration) Option {
	return func(s *Segmenter) { s.hangover = d }
}

// WithMinSegmentDuration sets the minimum duration below which a closed
// segment is discarded as noise. Defaults to 250 ms.
func WithMinSegmentDuration(d time.Duration) Option {
	return func(s *Segmenter) { s.minSegmentDuration = d }
}

// WithMaxSegmentDuration sets the duration at which an open segment is
// force-closed. Defaults to 10 s.
func WithMaxSegmentDuration(d time.Duration) Option {
	return func(s *Segmenter) { s.maxSegmentDuration = d }
}

// WithAdaptiveThreshold enables the rolling noise-floor estimator: the
// activation threshold follows the ambient energy of silent frames instead of
// staying fixed. damping controls how fast the floor adapts (0–1) and ratio
// is the speech-to-floor multiplier. Zero values select the defaults
// (0.15 and 1.5).
func WithAdaptiveThreshold(damping, ratio float64) Option {
	return func(s *Segmenter) {
		if damping <= 0 {
			damping = defaultNoiseDamping
		}
		if ratio <= 0 {
			ratio = defaultNoiseRatio
		}
		s.adaptive = true
		s.noiseDamping = damping
		s.noiseRatio = ratio
	}
}

// Segmenter extracts speech segments from a frame stream.
//
// It is NOT safe for concurrent use: all mutable state is confined to the
// capture worker goroutine that owns it, mirroring how the rest of the
// pipeline confines per-stage state.
type Segmenter struct {
	staticThreshold    float64
	activationFrames   int
	hangover           time.Duration
	minSegmentDuration time.Duration
	maxSegmentDuration time.Duration

	adaptive     bool
	noiseDamping float64
	noiseRatio   float64
	floor        *noiseFloor

	st         state
	activeRun  []audio.AudioFrame // consecutive speech frames while SILENT
	buffer     []audio.AudioFrame // frames of the open segment
	lastSpeech int                // index in buffer of the newest speech frame
	silence    time.Duration      // accumulated trailing silence while ACTIVE
	segmentSeq uint64

	malformed uint64
	discarded uint64
}

// New creates a Segmenter with the given options applied over the defaults.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		staticThreshold:    defaultRMSThreshold,
		activationFrames:   defaultActivationFrames,
		hangover:           defaultHangover,
		minSegmentDuration: defaultMinSegmentDuration,
		maxSegmentDuration: defaultMaxSegmentDuration,
		noiseDamping:       defaultNoiseDamping,
		noiseRatio:         defaultNoiseRatio,
	}
	for _, o := range opts {
		o(s)
	}
	if s.adaptive {
		s.floor = newNoiseFloor(s.staticThreshold, s.noiseDamping, s.noiseRatio)
	}
	return s
}

// threshold returns the currently effective activation threshold.
func (s *Segmenter) threshold() float64 {
	if s.floor != nil {
		return s.floor.threshold()
	}
	return s.staticThreshold
}

// Process feeds one frame into the state machine. When this frame closes a
// segment, that segment is returned with ok=true; otherwise ok is false.
// Malformed frames are dropped (and counted) without affecting state.
func (s *Segmenter) Process(frame audio.AudioFrame) (audio.Segment, bool) {
	if !frame.Valid() {
		s.malformed++
		slog.Debug("segment: dropped malformed frame", "seq", frame.Seq, "bytes", len(frame.Data))
		return audio.Segment{}, false
	}

	rms := computeRMS(frame.Data)
	speech := rms >= s.threshold()

	switch s.st {
	case stateSilent:
		if !speech {
			if s.floor != nil {
				s.floor.observe(rms)
			}
			s.activeRun = s.activeRun[:0]
			return audio.Segment{}, false
		}
		s.activeRun = append(s.activeRun, frame)
		if len(s.activeRun) < s.activationFrames {
			return audio.Segment{}, false
		}
		// Activation reached: the whole run becomes the segment head.
		s.st = stateActive
		s.buffer = append(s.buffer[:0], s.activeRun...)
		s.lastSpeech = len(s.buffer) - 1
		s.activeRun = s.activeRun[:0]
		s.silence = 0
		return audio.Segment{}, false

	case stateActive:
		s.buffer = append(s.buffer, frame)
		if speech {
			s.lastSpeech = len(s.buffer) - 1
			s.silence = 0
		} else {
			s.silence += frame.Duration()
			if s.floor != nil {
				s.floor.observe(rms)
			}
			if s.silence >= s.hangover {
				return s.close()
			}
		}
		if s.bufferedDuration() >= s.maxSegmentDuration {
			return s.close()
		}
	}
	return audio.Segment{}, false
}

// Flush closes any open segment. Call at end of stream so trailing speech is
// not lost.
func (s *Segmenter) Flush() (audio.Segment, bool) {
	if s.st != stateActive {
		s.activeRun = s.activeRun[:0]
		return audio.Segment{}, false
	}
	return s.close()
}

// MalformedFrames returns how many malformed frames have been dropped.
func (s *Segmenter) MalformedFrames() uint64 { return s.malformed }

// DiscardedSegments returns how many too-short segments have been discarded.
func (s *Segmenter) DiscardedSegments() uint64 { return s.discarded }

// bufferedDuration sums the duration of the open segment's frames.
func (s *Segmenter) bufferedDuration() time.Duration {
	var d time.Duration
	for _, f := range s.buffer {
		d += f.Duration()
	}
	return d
}

// close finalizes the open segment, resets to SILENT, and applies the minimum
// duration filter. Trailing hangover silence is trimmed so the segment covers
// the speech, not the pause that ended it.
func (s *Segmenter) close() (audio.Segment, bool) {
	frames := s.buffer[:s.lastSpeech+1]
	s.buffer = nil
	s.lastSpeech = 0
	s.st = stateSilent
	s.silence = 0

	if len(frames) == 0 {
		return audio.Segment{}, false
	}

	first, last := frames[0], frames[len(frames)-1]
	seg := audio.Segment{
		SampleRate: first.SampleRate,
		Channels:   first.Channels,
		Start:      first.Timestamp,
		End:        last.Timestamp.Add(last.Duration()),
		Channel:    first.Channel,
		Frames:     len(frames),
	}
	var total int
	for _, f := range frames {
		total += len(f.Data)
	}
	seg.PCM = make([]byte, 0, total)
	for _, f := range frames {
		seg.PCM = append(seg.PCM, f.Data...)
	}

	if seg.Duration() < s.minSegmentDuration {
		s.discarded++
		slog.Debug("segment: discarded short segment", "duration", seg.Duration(), "frames", seg.Frames)
		return audio.Segment{}, false
	}

	s.segmentSeq++
	seg.Seq = s.segmentSeq
	slog.Debug("segment: closed", "seq", seg.Seq, "duration", seg.Duration(), "frames", seg.Frames)
	return seg, true
}
