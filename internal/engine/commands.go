package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jperram92/JamesConvoBot/internal/command"
	"github.com/jperram92/JamesConvoBot/internal/session"
	"github.com/jperram92/JamesConvoBot/internal/summarize"
	"github.com/jperram92/JamesConvoBot/internal/transcript"
	"github.com/jperram92/JamesConvoBot/pkg/provider/agent"
)

// Spoken acknowledgements for state commands.
const (
	ackMuted            = "Muted. I'll stay quiet until you unmute me."
	ackUnmuted          = "Unmuted."
	ackRecording        = "Recording started."
	ackStopRecording    = "Recording stopped."
	ackTranscribe       = "Transcription enabled."
	ackStopTranscribing = "Transcription disabled. I'm still listening for commands."
	ackTakeNotes        = "Taking notes."
	ackGoodbye          = "Goodbye."

	noticeNoAgent      = "I don't have an assistant backend configured, so I can't answer that."
	noticeNoSummarizer = "Summarization isn't configured for this session."
	noticeNoRoster     = "I can't see the participant list on this transport."
)

// handleEntry runs one transcript entry through the recognizer and executes
// the resulting command, if any.
func (e *Engine) handleEntry(ctx context.Context, entry transcript.Entry) {
	cmd, ok := e.recognizer.Recognize(entry)
	if !ok {
		return
	}

	st := e.machine.State()
	e.metrics.RecordCommand(ctx, string(cmd.Verb))
	slog.Info("command recognized",
		"session_id", e.sessionID,
		"verb", cmd.Verb,
		"entry_seq", cmd.EntrySeq,
		"transient", cmd.Transient,
	)

	switch cmd.Verb {
	case command.VerbMute:
		if _, changed := e.machine.Apply(cmd.Verb); changed {
			e.say(ctx, ackMuted, true)
		}
	case command.VerbUnmute:
		if _, changed := e.machine.Apply(cmd.Verb); changed {
			e.say(ctx, ackUnmuted, false)
		}
	case command.VerbRecord:
		e.startRecording(ctx)
	case command.VerbStopRecording:
		if _, changed := e.machine.Apply(cmd.Verb); changed {
			e.closeRecording(ctx)
			e.say(ctx, ackStopRecording, false)
		}
	case command.VerbTranscribe:
		if _, changed := e.machine.Apply(cmd.Verb); changed {
			e.say(ctx, ackTranscribe, false)
		}
	case command.VerbTakeNotes:
		e.machine.Apply(cmd.Verb)
		e.say(ctx, ackTakeNotes, false)
	case command.VerbStopTranscribing:
		if _, changed := e.machine.Apply(cmd.Verb); changed {
			e.say(ctx, ackStopTranscribing, false)
		}
	case command.VerbLeave:
		// Say goodbye before the transition stops capture.
		e.say(ctx, ackGoodbye, true)
		e.machine.Apply(cmd.Verb)
	case command.VerbHelp:
		e.say(ctx, command.HelpText(e.recognizer.Trigger()), false)
	case command.VerbStatus:
		e.say(ctx, e.statusText(st), false)
	case command.VerbListParticipants:
		e.say(ctx, e.participantsText(), false)
	case command.VerbSummarize:
		e.speakSummary(ctx)
	case command.VerbQuery:
		e.answerQuery(ctx, cmd.Argument)
	default:
		slog.Warn("unhandled command verb",
			"session_id", e.sessionID, "verb", cmd.Verb)
	}
}

// startRecording opens a sink recording and enables the recording facet. On
// failure the facet is rolled back so state and storage stay in sync.
func (e *Engine) startRecording(ctx context.Context) {
	if _, changed := e.machine.Apply(command.VerbRecord); !changed {
		return
	}
	rec, err := e.sink.OpenRecording(ctx, e.sessionID)
	if err != nil {
		slog.Error("failed to open recording",
			"session_id", e.sessionID, "error", err)
		e.machine.Apply(command.VerbStopRecording)
		e.say(ctx, "I couldn't start the recording.", false)
		return
	}
	if prev := e.setRecording(rec); prev != nil {
		_ = prev.Close(ctx)
	}
	e.say(ctx, ackRecording, false)
}

// speakSummary snapshots the transcript, asks the summarizer, and speaks the
// result. The summary is also persisted.
func (e *Engine) speakSummary(ctx context.Context) {
	if e.summarizer == nil {
		e.say(ctx, noticeNoSummarizer, false)
		return
	}

	text, err := e.summarizer.Summarize(ctx, e.buffer.Snapshot())
	if err != nil {
		slog.Error("summarization failed",
			"session_id", e.sessionID, "error", err)
		e.say(ctx, "I couldn't produce a summary right now.", false)
		return
	}

	if err := e.sink.WriteSummary(ctx, e.sessionID, text); err != nil {
		slog.Warn("summary persistence failed",
			"session_id", e.sessionID, "error", err)
	}
	e.say(ctx, text, false)
}

// answerQuery forwards a free-form question to the agent collaborator with
// recent transcript context and speaks the answer.
func (e *Engine) answerQuery(ctx context.Context, question string) {
	if e.agent == nil {
		e.say(ctx, noticeNoAgent, false)
		return
	}

	started := time.Now()
	answer, err := e.agent.Ask(ctx, agent.Query{
		Text:    question,
		Context: summarize.Lines(e.buffer.Snapshot(), e.contextLines),
	})
	e.metrics.AgentDuration.Record(ctx, time.Since(started).Seconds())
	if err != nil {
		slog.Error("agent query failed",
			"session_id", e.sessionID, "error", err)
		e.say(ctx, "I couldn't reach my assistant backend.", false)
		return
	}
	e.say(ctx, answer, false)
}

// statusText renders the spoken status report.
func (e *Engine) statusText(st session.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current state: %s.", strings.ToLower(st.String()))
	if st.Facets.Recording {
		b.WriteString(" Recording is on.")
	}
	if !st.Facets.Transcribing {
		b.WriteString(" Transcription is off.")
	}
	fmt.Fprintf(&b, " The transcript has %d entries.", e.buffer.Len())
	return b.String()
}

// participantsText renders the spoken participant roster.
func (e *Engine) participantsText() string {
	if e.participants == nil {
		return noticeNoRoster
	}
	names := e.participants()
	if len(names) == 0 {
		return "I don't see any participants right now."
	}
	return "Participants: " + strings.Join(names, ", ") + "."
}

// say speaks text through the responder. Responses are suppressed while
// muted unless evenIfMuted is set (mute and leave acknowledgements).
func (e *Engine) say(ctx context.Context, text string, evenIfMuted bool) {
	if text == "" {
		return
	}
	if !evenIfMuted && e.machine.State().Facets.Muted {
		return
	}
	started := time.Now()
	if err := e.resp.Speak(ctx, text); err != nil {
		// Already logged by the responder; the session carries on silently.
		return
	}
	e.metrics.TTSDuration.Record(ctx, time.Since(started).Seconds())
}
