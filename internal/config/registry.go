package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jperram92/JamesConvoBot/pkg/provider/agent"
	"github.com/jperram92/JamesConvoBot/pkg/provider/stt"
	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	stt   map[string]func(ProviderEntry) (stt.Provider, error)
	tts   map[string]func(ProviderEntry) (tts.Provider, error)
	agent map[string]func(ProviderEntry) (agent.Collaborator, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:   make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts:   make(map[string]func(ProviderEntry) (tts.Provider, error)),
		agent: make(map[string]func(ProviderEntry) (agent.Collaborator, error)),
	}
}

// RegisterSTT registers an STT provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterAgent registers an agent collaborator factory under name.
func (r *Registry) RegisterAgent(name string, factory func(ProviderEntry) (agent.Collaborator, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agent[name] = factory
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAgent instantiates an agent collaborator using the factory registered under entry.Name.
func (r *Registry) CreateAgent(entry ProviderEntry) (agent.Collaborator, error) {
	r.mu.RLock()
	factory, ok := r.agent[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: agent/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
