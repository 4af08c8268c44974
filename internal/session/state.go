// Package session tracks the assistant's presence in a meeting as a composite
// state: a lifecycle phase plus three independent facets (muted, recording,
// transcribing).
//
// All transitions happen inside a single mutex-guarded Apply call driven by
// recognized commands; the machine performs no I/O of its own, so the lock is
// never held across network or disk operations. Observers subscribe for
// transition callbacks, which are invoked after the lock is released.
package session

import (
	"sync"
	"time"

	"github.com/jperram92/JamesConvoBot/internal/command"
)

// Phase is the lifecycle phase of the session.
type Phase int

const (
	// PhaseIdle is the zero value: the machine exists but the session has
	// not started.
	PhaseIdle Phase = iota

	// PhaseRunning is the normal operating phase.
	PhaseRunning

	// PhaseLeaving is entered by the leave command; the engine drains
	// in-flight work while the machine is here.
	PhaseLeaving

	// PhaseLeft is terminal.
	PhaseLeft
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseRunning:
		return "RUNNING"
	case PhaseLeaving:
		return "LEAVING"
	case PhaseLeft:
		return "LEFT"
	default:
		return "UNKNOWN"
	}
}

// Facets are the independent toggles layered over the phase.
type Facets struct {
	Muted        bool
	Recording    bool
	Transcribing bool
}

// State is the composite session state.
type State struct {
	Phase  Phase
	Facets Facets
}

// String renders the display state. The phase dominates; within RUNNING the
// most specific active facet names the state, falling back to LISTENING.
func (s State) String() string {
	switch s.Phase {
	case PhaseLeaving:
		return "LEAVING"
	case PhaseLeft:
		return "LEFT"
	case PhaseIdle:
		return "IDLE"
	}
	switch {
	case s.Facets.Muted:
		return "MUTED"
	case s.Facets.Recording:
		return "RECORDING"
	case s.Facets.Transcribing:
		return "TRANSCRIBING"
	default:
		return "LISTENING"
	}
}

// Transition records one applied state change.
type Transition struct {
	From State
	To   State
	Verb command.Verb
	At   time.Time
}

// Machine is the session state machine. Safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	state   State
	history []Transition
	subs    []func(Transition)
}

// New creates a Machine in the running phase with transcription enabled,
// matching how a session starts: listening and transcribing, not recording,
// not muted.
func New() *Machine {
	return &Machine{
		state: State{
			Phase:  PhaseRunning,
			Facets: Facets{Transcribing: true},
		},
	}
}

// State returns the current composite state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns a copy of all applied transitions in order.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Subscribe registers a callback invoked after every applied transition. The
// callback runs outside the machine's lock, on the goroutine that called
// Apply; it must not block for long.
func (m *Machine) Subscribe(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Apply executes the state effect of a command verb. It returns the recorded
// transition and true when the verb changed the state; informational verbs,
// redundant toggles (muting while muted), and any verb arriving after the
// leaving phase began return false.
func (m *Machine) Apply(verb command.Verb) (Transition, bool) {
	m.mu.Lock()

	if m.state.Phase != PhaseRunning {
		m.mu.Unlock()
		return Transition{}, false
	}

	from := m.state
	to := from

	switch verb {
	case command.VerbMute:
		to.Facets.Muted = true
	case command.VerbUnmute:
		to.Facets.Muted = false
	case command.VerbRecord:
		to.Facets.Recording = true
	case command.VerbStopRecording:
		to.Facets.Recording = false
	case command.VerbTranscribe, command.VerbTakeNotes:
		to.Facets.Transcribing = true
	case command.VerbStopTranscribing:
		to.Facets.Transcribing = false
	case command.VerbLeave:
		to.Phase = PhaseLeaving
	default:
		// Informational verbs carry no state effect.
		m.mu.Unlock()
		return Transition{}, false
	}

	if to == from {
		m.mu.Unlock()
		return Transition{}, false
	}

	tr := Transition{From: from, To: to, Verb: verb, At: time.Now()}
	m.state = to
	m.history = append(m.history, tr)
	subs := make([]func(Transition), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(tr)
	}
	return tr, true
}

// MarkLeft moves the machine from LEAVING to the terminal LEFT phase once the
// engine has finished draining. It is a no-op in any other phase.
func (m *Machine) MarkLeft() {
	m.mu.Lock()
	if m.state.Phase != PhaseLeaving {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.state.Phase = PhaseLeft
	tr := Transition{From: from, To: m.state, Verb: command.VerbLeave, At: time.Now()}
	m.history = append(m.history, tr)
	subs := make([]func(Transition), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(tr)
	}
}
