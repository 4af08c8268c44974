package resilience

import (
	"context"

	"github.com/jperram92/JamesConvoBot/pkg/provider/agent"
)

// AgentFallback implements [agent.Collaborator] with automatic failover across
// multiple agent backends. Each backend has its own circuit breaker.
type AgentFallback struct {
	group *FallbackGroup[agent.Collaborator]
}

// Compile-time interface assertion.
var _ agent.Collaborator = (*AgentFallback)(nil)

// NewAgentFallback creates an [AgentFallback] with primary as the preferred backend.
func NewAgentFallback(primary agent.Collaborator, primaryName string, cfg FallbackConfig) *AgentFallback {
	return &AgentFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional agent backend as a fallback.
func (f *AgentFallback) AddFallback(name string, collaborator agent.Collaborator) {
	f.group.AddFallback(name, collaborator)
}

// Ask forwards the query to the first healthy backend.
func (f *AgentFallback) Ask(ctx context.Context, q agent.Query) (string, error) {
	return ExecuteWithResult(f.group, func(c agent.Collaborator) (string, error) {
		return c.Ask(ctx, q)
	})
}
