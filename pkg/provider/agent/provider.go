// Package agent defines the Collaborator interface for the external AI agent
// that answers free-form questions addressed to the assistant.
//
// When a triggered utterance does not match any command verb, the remaining
// text is routed here as a query together with recent meeting context. The
// collaborator is also the backend used for meeting summarization.
//
// Implementations must be safe for concurrent use.
package agent

import "context"

// Query is a free-form request forwarded to the external agent.
type Query struct {
	// Text is the user's question, with the trigger word already stripped.
	Text string

	// Context carries recent transcript lines (oldest first) so the agent can
	// answer questions about the meeting so far. May be empty.
	Context []string
}

// Collaborator is the abstraction over the external agent backend.
type Collaborator interface {
	// Ask forwards the query and returns the agent's spoken-form answer.
	Ask(ctx context.Context, q Query) (string, error)
}
