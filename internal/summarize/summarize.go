// Package summarize produces spoken meeting summaries from the transcript.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jperram92/JamesConvoBot/internal/transcript"
	"github.com/jperram92/JamesConvoBot/pkg/provider/agent"
)

// Summarizer condenses a transcript snapshot into a short spoken summary.
type Summarizer interface {
	Summarize(ctx context.Context, entries []transcript.Entry) (string, error)
}

const summaryInstruction = "Summarize the meeting transcript below in a few " +
	"short spoken sentences. Cover the main topics, decisions, and action " +
	"items. Do not mention that you are working from a transcript."

// Default parameters.
const (
	defaultMaxEntries = 200
	defaultTimeout    = 30 * time.Second
)

// Option is a functional option for configuring an AgentSummarizer.
type Option func(*AgentSummarizer)

// WithMaxEntries caps how many of the newest transcript entries are sent to
// the agent. Defaults to 200.
func WithMaxEntries(n int) Option {
	return func(s *AgentSummarizer) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithTimeout sets the deadline for the agent call. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(s *AgentSummarizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// AgentSummarizer implements [Summarizer] on top of the external agent
// collaborator. Safe for concurrent use when the collaborator is.
type AgentSummarizer struct {
	agent      agent.Collaborator
	maxEntries int
	timeout    time.Duration
}

var _ Summarizer = (*AgentSummarizer)(nil)

// New creates an AgentSummarizer backed by the given collaborator.
func New(c agent.Collaborator, opts ...Option) *AgentSummarizer {
	s := &AgentSummarizer{
		agent:      c,
		maxEntries: defaultMaxEntries,
		timeout:    defaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarize sends the newest transcript lines to the agent and returns its
// spoken-form summary. Entries with failed transcriptions are skipped; when
// nothing transcribable remains, a fixed notice is returned without calling
// the agent.
func (s *AgentSummarizer) Summarize(ctx context.Context, entries []transcript.Entry) (string, error) {
	lines := Lines(entries, s.maxEntries)
	if len(lines) == 0 {
		return "There is nothing in the transcript to summarize yet.", nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer, err := s.agent.Ask(callCtx, agent.Query{
		Text:    summaryInstruction,
		Context: lines,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: agent: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// Lines renders the newest transcript entries as timestamped text lines,
// oldest first, skipping failed transcriptions. max caps the number of lines;
// values below 1 mean no cap.
func Lines(entries []transcript.Entry, max int) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Status != transcript.StatusOK || e.Text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", e.Start.Format("15:04:05"), e.Text))
	}
	if max > 0 && len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}
