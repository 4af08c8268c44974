// Package mock provides an in-memory mock implementation of
// [agent.Collaborator] for use in unit tests.
//
// The mock is safe for concurrent use. It records every call so that tests
// can assert on call counts and arguments, and exposes exported fields the
// test can set to control return values.
package mock

import (
	"context"
	"sync"

	"github.com/jperram92/JamesConvoBot/pkg/provider/agent"
)

// Collaborator is a mock implementation of [agent.Collaborator].
// Set the exported fields before use; inspect Queries after.
type Collaborator struct {
	mu sync.Mutex

	// Answer is returned by Ask.
	Answer string

	// Err is returned by Ask.
	Err error

	// Queries records all Ask invocations.
	Queries []agent.Query
}

var _ agent.Collaborator = (*Collaborator)(nil)

// Ask implements [agent.Collaborator]. Records the query and returns the
// configured answer.
func (c *Collaborator) Ask(_ context.Context, q agent.Query) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queries = append(c.Queries, q)
	return c.Answer, c.Err
}

// CallCount returns the number of Ask invocations so far.
func (c *Collaborator) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Queries)
}

// LastQuery returns the most recent query, or a zero value when none.
func (c *Collaborator) LastQuery() agent.Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Queries) == 0 {
		return agent.Query{}
	}
	return c.Queries[len(c.Queries)-1]
}
