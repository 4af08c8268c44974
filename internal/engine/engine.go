// Package engine runs the session pipeline: capture, transcription, and
// command handling.
//
// Three long-lived workers cooperate through bounded queues:
//
//   - The capture worker pulls frames from the audio device, runs the speech
//     segmenter, and enqueues closed segments. A full segment queue blocks
//     capture (logged as backpressure) rather than dropping speech.
//   - The transcription worker drains the segment queue in order and appends
//     the resulting entries to the transcript buffer.
//   - The command worker consumes buffer updates, recognizes spoken commands,
//     drives the session state machine, and speaks responses.
//
// Workers that fail are restarted up to a configurable limit; exceeding it
// tears the whole session down. A spoken leave command (or [Engine.Stop])
// moves the session to LEAVING, after which capture stops, in-flight segments
// drain, and the state machine is marked LEFT.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/jperram92/JamesConvoBot/internal/command"
	"github.com/jperram92/JamesConvoBot/internal/observe"
	"github.com/jperram92/JamesConvoBot/internal/persist"
	"github.com/jperram92/JamesConvoBot/internal/responder"
	"github.com/jperram92/JamesConvoBot/internal/segment"
	"github.com/jperram92/JamesConvoBot/internal/session"
	"github.com/jperram92/JamesConvoBot/internal/summarize"
	"github.com/jperram92/JamesConvoBot/internal/transcriber"
	"github.com/jperram92/JamesConvoBot/internal/transcript"
	"github.com/jperram92/JamesConvoBot/pkg/audio"
	"github.com/jperram92/JamesConvoBot/pkg/provider/agent"
)

// Default tuning parameters.
const (
	defaultQueueDepth   = 16
	defaultUpdateDepth  = 32
	defaultMaxRestarts  = 3
	defaultContextLines = 10
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithSessionID sets the session identifier used for persistence and logging.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.sessionID = id
		}
	}
}

// WithSink sets the persistence sink. Defaults to [persist.NullSink].
func WithSink(s persist.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithAgent sets the external agent collaborator used for free-form queries.
// Without one, queries get a spoken notice instead of an answer.
func WithAgent(c agent.Collaborator) Option {
	return func(e *Engine) { e.agent = c }
}

// WithSummarizer sets the meeting summarizer. Without one, the summarize
// command gets a spoken notice.
func WithSummarizer(s summarize.Summarizer) Option {
	return func(e *Engine) { e.summarizer = s }
}

// WithQueueDepth sets the segment queue capacity. Defaults to 16.
func WithQueueDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueDepth = n
		}
	}
}

// WithMaxWorkerRestarts sets how many times each worker may be restarted
// after a failure before the session is torn down. Defaults to 3.
func WithMaxWorkerRestarts(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRestarts = n
		}
	}
}

// WithContextLines sets how many recent transcript lines accompany agent
// queries. Defaults to 10.
func WithContextLines(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.contextLines = n
		}
	}
}

// WithParticipants supplies a callback returning the current participant
// names, used by the list participants command.
func WithParticipants(fn func() []string) Option {
	return func(e *Engine) { e.participants = fn }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// Engine owns the session pipeline. Create with [New], drive with [Engine.Run].
type Engine struct {
	device     audio.Device
	seg        *segment.Segmenter
	trans      *transcriber.Transcriber
	resp       *responder.Responder
	buffer     *transcript.Buffer
	recognizer *command.Recognizer
	machine    *session.Machine

	sink         persist.Sink
	agent        agent.Collaborator
	summarizer   summarize.Summarizer
	participants func() []string
	metrics      *observe.Metrics

	sessionID    string
	queueDepth   int
	maxRestarts  int
	contextLines int

	segments chan audio.Segment

	// recording is the open recording handle, owned by the command worker and
	// read by the capture worker.
	recMu     sync.Mutex
	recording persist.Recording

	// segmenter counters exported as metric deltas after each Process call.
	prevMalformed uint64
	prevDiscarded uint64
}

// New assembles an Engine from its pipeline stages. recognizerOpts configure
// the command recognizer (trigger word, aliases).
func New(device audio.Device, seg *segment.Segmenter, trans *transcriber.Transcriber, resp *responder.Responder, recognizerOpts []command.Option, opts ...Option) *Engine {
	e := &Engine{
		device:       device,
		seg:          seg,
		trans:        trans,
		resp:         resp,
		recognizer:   command.New(recognizerOpts...),
		machine:      session.New(),
		sink:         persist.NullSink{},
		sessionID:    fmt.Sprintf("session-%s", time.Now().UTC().Format("20060102T150405Z")),
		queueDepth:   defaultQueueDepth,
		maxRestarts:  defaultMaxRestarts,
		contextLines: defaultContextLines,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	e.buffer = transcript.New(defaultUpdateDepth)
	e.segments = make(chan audio.Segment, e.queueDepth)
	return e
}

// Machine exposes the session state machine.
func (e *Engine) Machine() *session.Machine { return e.machine }

// Buffer exposes the transcript buffer.
func (e *Engine) Buffer() *transcript.Buffer { return e.buffer }

// SessionID returns the session identifier.
func (e *Engine) SessionID() string { return e.sessionID }

// SetTrigger swaps the wake word on the running session (config hot reload).
func (e *Engine) SetTrigger(word string) { e.recognizer.SetTrigger(word) }

// SetVoice swaps the TTS voice on the running session (config hot reload).
func (e *Engine) SetVoice(voice string) { e.resp.SetVoice(voice) }

// SetLanguage swaps the STT language hint on the running session (config hot
// reload).
func (e *Engine) SetLanguage(lang string) { e.trans.SetLanguage(lang) }

// Stop initiates a graceful shutdown, equivalent to a spoken leave command.
// It returns immediately; Run returns once the pipeline has drained.
func (e *Engine) Stop() {
	e.machine.Apply(command.VerbLeave)
}

// Run executes the pipeline until the audio source closes, a leave completes,
// the context is cancelled, or a worker exceeds its restart budget. It blocks
// and is intended to be called once.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	captureCtx, cancelCapture := context.WithCancel(gctx)
	defer cancelCapture()

	// Entering LEAVING stops capture; the rest of the pipeline drains behind it.
	e.machine.Subscribe(func(tr session.Transition) {
		if tr.To.Phase == session.PhaseLeaving {
			cancelCapture()
		}
	})
	// Stop may have been called before the subscription was registered.
	if e.machine.State().Phase != session.PhaseRunning {
		cancelCapture()
	}

	e.metrics.ActiveSessions.Add(ctx, 1)
	defer e.metrics.ActiveSessions.Add(ctx, -1)
	defer e.buffer.Close()
	defer e.closeRecording(context.Background())

	// A cancelled group must also release any append blocked on a full update
	// channel, or the transcription worker would never observe the cancel.
	stopClose := context.AfterFunc(gctx, e.buffer.Close)
	defer stopClose()

	// transDone signals that the transcription worker has drained the segment
	// queue and no further entries will be appended.
	transDone := make(chan struct{})

	g.Go(func() error {
		defer close(e.segments)
		return e.runWorker(gctx, "capture", func() error {
			return e.captureLoop(captureCtx, gctx)
		})
	})

	g.Go(func() error {
		defer close(transDone)
		return e.runWorker(gctx, "transcription", func() error {
			return e.transcriptionLoop(gctx)
		})
	})

	g.Go(func() error {
		return e.runWorker(gctx, "command", func() error {
			return e.commandLoop(gctx, transDone)
		})
	})

	err := g.Wait()

	// A session that reached LEAVING has fully drained by now.
	e.machine.MarkLeft()

	slog.Info("session pipeline stopped",
		"session_id", e.sessionID,
		"state", e.machine.State().String(),
		"entries", e.buffer.Len(),
		"error", err,
	)
	return err
}

// runWorker executes fn, restarting it after failures or panics until the
// restart budget is exhausted. A clean return stops the worker for good.
func (e *Engine) runWorker(ctx context.Context, name string, fn func() error) error {
	restarts := 0
	for {
		err := runSafely(fn)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		if restarts >= e.maxRestarts {
			slog.Error("worker exceeded restart budget, tearing down session",
				"worker", name,
				"session_id", e.sessionID,
				"restarts", restarts,
				"error", err,
			)
			return fmt.Errorf("engine: %s worker failed permanently: %w", name, err)
		}

		restarts++
		e.metrics.RecordWorkerRestart(ctx, name)
		slog.Warn("worker failed, restarting",
			"worker", name,
			"session_id", e.sessionID,
			"restart", restarts,
			"max_restarts", e.maxRestarts,
			"error", err,
		)
	}
}

// runSafely invokes fn and converts panics into errors so a crashing worker
// can be restarted instead of killing the process.
func runSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return fn()
}

// captureLoop pulls frames from the device and feeds the segmenter. It exits
// cleanly when the source closes or captureCtx is cancelled (leave), flushing
// any open segment first.
func (e *Engine) captureLoop(captureCtx, gctx context.Context) error {
	for {
		frame, ok := e.device.NextFrame(captureCtx)
		if !ok {
			if seg, open := e.seg.Flush(); open {
				e.enqueueSegment(gctx, seg)
			}
			slog.Debug("capture stopped", "session_id", e.sessionID)
			return nil
		}

		e.metrics.FramesCaptured.Add(gctx, 1,
			metric.WithAttributes(observe.Attr("channel", string(frame.Channel))))

		// The assistant's own playback must not be transcribed. Frames tagged
		// by the transport are skipped, as is anything captured while the
		// responder is actively speaking.
		if frame.Channel == audio.ChannelSelfPlayback || e.resp.Speaking() {
			continue
		}

		st := e.machine.State()
		if st.Phase != session.PhaseRunning {
			continue
		}

		if rec := e.currentRecording(); rec != nil {
			if err := rec.WriteFrame(gctx, frame); err != nil {
				slog.Warn("recording frame write failed",
					"session_id", e.sessionID, "error", err)
			}
		}

		seg, closed := e.seg.Process(frame)
		e.recordSegmenterCounters(gctx)
		if closed {
			e.enqueueSegment(gctx, seg)
		}
	}
}

// enqueueSegment places a segment on the transcription queue. When the queue
// is full the send blocks, stalling capture; the stall is logged and counted
// but the segment is never dropped.
func (e *Engine) enqueueSegment(ctx context.Context, seg audio.Segment) {
	select {
	case e.segments <- seg:
		e.metrics.SegmentsProduced.Add(ctx, 1)
		e.metrics.SegmentQueueDepth.Add(ctx, 1)
		return
	default:
	}

	e.metrics.BackpressureStalls.Add(ctx, 1)
	slog.Warn("segment queue full, capture stalling",
		"session_id", e.sessionID,
		"segment_seq", seg.Seq,
		"queue_depth", e.queueDepth,
	)
	select {
	case e.segments <- seg:
		e.metrics.SegmentsProduced.Add(ctx, 1)
		e.metrics.SegmentQueueDepth.Add(ctx, 1)
	case <-ctx.Done():
	}
}

// transcriptionLoop drains the segment queue in order, transcribes each
// segment, and appends the entry to the buffer. It exits cleanly when the
// queue is closed and empty.
func (e *Engine) transcriptionLoop(ctx context.Context) error {
	for seg := range e.segments {
		e.metrics.SegmentQueueDepth.Add(ctx, -1)

		started := time.Now()
		entry := e.trans.Transcribe(ctx, seg)
		e.metrics.STTDuration.Record(ctx, time.Since(started).Seconds())
		e.metrics.RecordEntry(ctx, string(entry.Status))

		st := e.machine.State()
		if st.Facets.Transcribing {
			stamped := e.buffer.Append(entry)
			if err := e.sink.WriteEntry(ctx, e.sessionID, stamped); err != nil {
				slog.Warn("transcript entry persistence failed",
					"session_id", e.sessionID,
					"entry_seq", stamped.Seq,
					"error", err,
				)
			}
		} else {
			// Disabled transcription still flows through the buffer so spoken
			// commands keep working; the entries are transient and unstored.
			e.buffer.AppendTransient(entry)
		}
	}
	return nil
}

// commandLoop consumes buffer updates and executes recognized commands. After
// the transcription worker finishes, it drains the remaining updates and
// returns.
func (e *Engine) commandLoop(ctx context.Context, transDone <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case entry := <-e.buffer.Updates():
			e.handleEntry(ctx, entry)
		case <-transDone:
			for {
				select {
				case entry := <-e.buffer.Updates():
					e.handleEntry(ctx, entry)
				default:
					return nil
				}
			}
		}
	}
}

// recordSegmenterCounters exports the segmenter's malformed and discarded
// counters as metric deltas.
func (e *Engine) recordSegmenterCounters(ctx context.Context) {
	if m := e.seg.MalformedFrames(); m > e.prevMalformed {
		e.metrics.FramesMalformed.Add(ctx, int64(m-e.prevMalformed))
		e.prevMalformed = m
	}
	if d := e.seg.DiscardedSegments(); d > e.prevDiscarded {
		e.metrics.SegmentsDiscarded.Add(ctx, int64(d-e.prevDiscarded))
		e.prevDiscarded = d
	}
}

// currentRecording returns the open recording handle, or nil.
func (e *Engine) currentRecording() persist.Recording {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	return e.recording
}

// setRecording swaps the recording handle and returns the previous one.
func (e *Engine) setRecording(rec persist.Recording) persist.Recording {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	prev := e.recording
	e.recording = rec
	return prev
}

// closeRecording finalizes any open recording.
func (e *Engine) closeRecording(ctx context.Context) {
	if prev := e.setRecording(nil); prev != nil {
		if err := prev.Close(ctx); err != nil {
			slog.Warn("recording close failed",
				"session_id", e.sessionID, "error", err)
		}
	}
}
